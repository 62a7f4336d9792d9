package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/zeus-insurance/zeus-agent/internal/apperr"
	"github.com/zeus-insurance/zeus-agent/internal/db"
	"github.com/zeus-insurance/zeus-agent/internal/model"
)

// PostgresStore implements Store using pgxpool and pgvector.
type PostgresStore struct {
	pool      db.Pool
	dimension int
	closeFn   func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool. dimension is
// the width of the policy_documents.embedding column.
func NewPostgres(ctx context.Context, connString string, dimension int, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := poolConfig(connString, poolCfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, dimension: dimension, closeFn: pool.Close}, nil
}

// poolConfig parses connString and applies pool sizing. Statements are
// prepared and cached per connection on first use.
func poolConfig(connString string, poolCfg *PoolConfig) (*pgxpool.Config, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheStatement

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		// The vector type only exists once the extension is installed; the
		// first migrate run connects before that.
		if err := pgxvec.RegisterTypes(ctx, conn); err != nil && !isUndefinedVectorType(err) {
			return eris.Wrap(err, "postgres: register vector types")
		}
		return nil
	}
	return pgxCfg, nil
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

func postgresMigration(dimension int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS car_models (
	id              BIGINT PRIMARY KEY,
	brand           TEXT NOT NULL,
	model           TEXT NOT NULL,
	sub_model       TEXT NOT NULL DEFAULT '',
	year            INTEGER NOT NULL,
	estimated_price NUMERIC(14,2) NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS insurance_plans (
	id           BIGINT PRIMARY KEY,
	plan_type    TEXT NOT NULL,
	plan_name    TEXT NOT NULL,
	insurer_name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS premiums (
	car_model_id BIGINT NOT NULL REFERENCES car_models(id),
	plan_id      BIGINT NOT NULL REFERENCES insurance_plans(id),
	base_premium NUMERIC(14,2) NOT NULL,
	deductible   NUMERIC(14,2) NOT NULL DEFAULT 0,
	PRIMARY KEY (car_model_id, plan_id)
);

CREATE TABLE IF NOT EXISTS policy_documents (
	id        BIGSERIAL PRIMARY KEY,
	section   TEXT NOT NULL,
	plan_type TEXT NOT NULL DEFAULT 'All',
	content   TEXT NOT NULL,
	metadata  JSONB,
	embedding vector(%d)
);

CREATE TABLE IF NOT EXISTS quotations (
	id               TEXT PRIMARY KEY,
	quotation_number TEXT NOT NULL UNIQUE,
	session_id       TEXT NOT NULL DEFAULT '',
	car_model_id     BIGINT NOT NULL REFERENCES car_models(id),
	plan_id          BIGINT NOT NULL REFERENCES insurance_plans(id),
	customer_name    TEXT NOT NULL DEFAULT '',
	customer_email   TEXT NOT NULL DEFAULT '',
	customer_phone   TEXT NOT NULL DEFAULT '',
	car_price        NUMERIC(14,2) NOT NULL,
	base_premium     NUMERIC(14,2) NOT NULL,
	deductible       NUMERIC(14,2) NOT NULL,
	total_premium    NUMERIC(14,2) NOT NULL,
	status           TEXT NOT NULL DEFAULT 'draft',
	valid_until      TIMESTAMPTZ NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS orders (
	id                TEXT PRIMARY KEY,
	order_number      TEXT NOT NULL UNIQUE,
	quotation_id      TEXT NOT NULL UNIQUE REFERENCES quotations(id),
	payment_status    TEXT NOT NULL DEFAULT 'pending',
	payment_method    TEXT NOT NULL DEFAULT 'pending',
	payment_date      TIMESTAMPTZ,
	policy_number     TEXT NOT NULL UNIQUE,
	policy_start_date TIMESTAMPTZ NOT NULL,
	policy_end_date   TIMESTAMPTZ NOT NULL,
	policy_status     TEXT NOT NULL DEFAULT 'inactive',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT orders_active_requires_paid CHECK (policy_status <> 'active' OR payment_status = 'paid')
);

CREATE TABLE IF NOT EXISTS chat_sessions (
	id         BIGSERIAL PRIMARY KEY,
	session_id TEXT NOT NULL,
	role       TEXT NOT NULL,
	message    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_car_models_brand_model ON car_models(lower(brand), lower(model));
CREATE INDEX IF NOT EXISTS idx_policy_documents_section ON policy_documents(section);
CREATE INDEX IF NOT EXISTS idx_policy_documents_embedding ON policy_documents USING hnsw (embedding vector_cosine_ops);
CREATE INDEX IF NOT EXISTS idx_quotations_session ON quotations(session_id);
CREATE INDEX IF NOT EXISTS idx_chat_sessions_session ON chat_sessions(session_id, id);
`, dimension)
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration(s.dimension))
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Catalog ---

func (s *PostgresStore) FindVehicles(ctx context.Context, filter VehicleFilter) ([]model.Vehicle, error) {
	where, args := vehicleWhere(filter, dollar)
	query := `SELECT id, brand, model, sub_model, year, estimated_price::text FROM car_models` + where + vehicleOrder
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find vehicles")
	}
	defer rows.Close()

	var out []model.Vehicle
	for rows.Next() {
		var v model.Vehicle
		var price string
		if err := rows.Scan(&v.ID, &v.Brand, &v.Model, &v.SubModel, &v.Year, &price); err != nil {
			return nil, eris.Wrap(err, "postgres: scan vehicle")
		}
		if v.EstimatedPrice, err = parseDecimal(price); err != nil {
			return nil, eris.Wrapf(err, "postgres: vehicle %d price", v.ID)
		}
		out = append(out, v)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate vehicles")
}

func (s *PostgresStore) ListOffers(ctx context.Context, vehicleIDs []int64) ([]model.PlanOffer, error) {
	if len(vehicleIDs) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT p.car_model_id, p.base_premium::text, p.deductible::text, ip.id, ip.plan_type, ip.plan_name, ip.insurer_name
		FROM premiums p JOIN insurance_plans ip ON ip.id = p.plan_id
		WHERE p.car_model_id = ANY($1)
		ORDER BY p.car_model_id, p.base_premium, ip.id`,
		vehicleIDs,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list offers")
	}
	defer rows.Close()

	var out []model.PlanOffer
	for rows.Next() {
		var o model.PlanOffer
		var base, deductible, planType string
		if err := rows.Scan(&o.VehicleID, &base, &deductible, &o.Plan.ID, &planType, &o.Plan.Name, &o.Plan.Insurer); err != nil {
			return nil, eris.Wrap(err, "postgres: scan offer")
		}
		o.Plan.Type = model.PlanType(planType)
		if err := parseAmounts(amount{&o.BasePremium, base}, amount{&o.Deductible, deductible}); err != nil {
			return nil, eris.Wrap(err, "postgres: offer amounts")
		}
		out = append(out, o)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate offers")
}

func (s *PostgresStore) GetQuotationDetail(ctx context.Context, vehicleID, planID int64) (*model.QuotationDetail, error) {
	var d model.QuotationDetail
	var price, base, deductible, planType string
	err := s.pool.QueryRow(ctx,
		`SELECT c.id, c.brand, c.model, c.sub_model, c.year, c.estimated_price::text,
			ip.id, ip.plan_type, ip.plan_name, ip.insurer_name, p.base_premium::text, p.deductible::text
		FROM premiums p
		JOIN car_models c ON c.id = p.car_model_id
		JOIN insurance_plans ip ON ip.id = p.plan_id
		WHERE p.car_model_id = $1 AND p.plan_id = $2`,
		vehicleID, planID,
	).Scan(&d.Vehicle.ID, &d.Vehicle.Brand, &d.Vehicle.Model, &d.Vehicle.SubModel, &d.Vehicle.Year, &price,
		&d.Plan.ID, &planType, &d.Plan.Name, &d.Plan.Insurer, &base, &deductible)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("no premium for car model %d and plan %d", vehicleID, planID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get quotation detail %d/%d", vehicleID, planID)
	}
	d.Plan.Type = model.PlanType(planType)
	if err := parseAmounts(
		amount{&d.Vehicle.EstimatedPrice, price},
		amount{&d.BasePremium, base},
		amount{&d.Deductible, deductible},
	); err != nil {
		return nil, eris.Wrap(err, "postgres: quotation detail")
	}
	return &d, nil
}

// --- Policy documents ---

// MatchDocuments ranks documents by cosine similarity using the pgvector
// <=> (cosine distance) operator.
func (s *PostgresStore) MatchDocuments(ctx context.Context, q DocumentQuery) ([]model.DocumentMatch, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 4
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, section, plan_type, content, metadata, 1 - (embedding <=> $1) AS similarity
		FROM policy_documents
		WHERE embedding IS NOT NULL
			AND ($2 = '' OR section = $2)
			AND 1 - (embedding <=> $1) > $3
		ORDER BY embedding <=> $1
		LIMIT $4`,
		pgvector.NewVector(q.Embedding), string(q.Section), q.Threshold, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: match documents")
	}
	defer rows.Close()

	var out []model.DocumentMatch
	for rows.Next() {
		var m model.DocumentMatch
		var section string
		var meta []byte
		if err := rows.Scan(&m.Document.ID, &section, &m.Document.PlanType, &m.Document.Content, &meta, &m.Similarity); err != nil {
			return nil, eris.Wrap(err, "postgres: scan document match")
		}
		m.Document.Section = model.Section(section)
		if len(meta) > 0 {
			m.Document.Metadata = meta
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate document matches")
}

func (s *PostgresStore) ListUnembeddedDocuments(ctx context.Context, limit int) ([]model.PolicyDocument, error) {
	query := `SELECT id, section, plan_type, content, metadata FROM policy_documents WHERE embedding IS NULL ORDER BY id`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list unembedded documents")
	}
	defer rows.Close()

	var out []model.PolicyDocument
	for rows.Next() {
		var d model.PolicyDocument
		var section string
		var meta []byte
		if err := rows.Scan(&d.ID, &section, &d.PlanType, &d.Content, &meta); err != nil {
			return nil, eris.Wrap(err, "postgres: scan document")
		}
		d.Section = model.Section(section)
		if len(meta) > 0 {
			d.Metadata = meta
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate documents")
}

func (s *PostgresStore) SetDocumentEmbedding(ctx context.Context, id int64, embedding []float32) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE policy_documents SET embedding = $1 WHERE id = $2`,
		pgvector.NewVector(embedding), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set embedding %d", id)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("policy document %d not found", id)
	}
	return nil
}

// --- Quotations ---

const pgQuotationColumns = `id, quotation_number, session_id, car_model_id, plan_id, customer_name, customer_email,
	customer_phone, car_price::text, base_premium::text, deductible::text, total_premium::text, status,
	valid_until, created_at, updated_at`

func (s *PostgresStore) InsertQuotation(ctx context.Context, q *model.Quotation) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO quotations (id, quotation_number, session_id, car_model_id, plan_id,
			customer_name, customer_email, customer_phone, car_price, base_premium, deductible,
			total_premium, status, valid_until, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		q.ID, q.Number, q.SessionID, q.VehicleID, q.PlanID,
		q.Customer.Name, q.Customer.Email, q.Customer.Phone,
		numeric(q.CarPrice), numeric(q.BasePremium), numeric(q.Deductible), numeric(q.TotalPremium),
		string(q.Status), q.ValidUntil, q.CreatedAt, q.UpdatedAt,
	)
	if db.IsUniqueViolation(err) {
		return apperr.Conflict("quotation number %s already exists", q.Number)
	}
	return eris.Wrapf(err, "postgres: insert quotation %s", q.Number)
}

func (s *PostgresStore) GetQuotation(ctx context.Context, id string) (*model.Quotation, error) {
	q, err := scanQuotation(s.pool.QueryRow(ctx, `SELECT `+pgQuotationColumns+` FROM quotations WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("quotation %s not found", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get quotation %s", id)
	}
	return q, nil
}

func (s *PostgresStore) TransitionQuotation(ctx context.Context, id string, from, to model.QuotationStatus, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE quotations SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
		string(to), at, id, string(from),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: transition quotation %s", id)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("quotation %s is no longer %s", id, from)
	}
	return nil
}

// --- Orders ---

// InsertOrder stores the order and marks its quotation accepted in one
// transaction.
func (s *PostgresStore) InsertOrder(ctx context.Context, o *model.Order) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin order tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO orders (id, order_number, quotation_id, payment_status, payment_method, payment_date,
			policy_number, policy_start_date, policy_end_date, policy_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		o.ID, o.Number, o.QuotationID, string(o.PaymentStatus), string(o.PaymentMethod), o.PaymentDate,
		o.PolicyNumber, o.PolicyStartDate, o.PolicyEndDate, string(o.PolicyStatus), o.CreatedAt, o.UpdatedAt,
	)
	if db.IsUniqueViolation(err) {
		return apperr.Conflict("order for quotation %s conflicts on %s", o.QuotationID, db.ConstraintName(err))
	}
	if err != nil {
		return eris.Wrapf(err, "postgres: insert order %s", o.Number)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE quotations SET status = $1, updated_at = $2 WHERE id = $3`,
		string(model.QuotationAccepted), o.CreatedAt, o.QuotationID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: accept quotation %s", o.QuotationID)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("quotation %s not found", o.QuotationID)
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit order")
}

func (s *PostgresStore) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	return s.getOrder(ctx, "id", id)
}

func (s *PostgresStore) GetOrderByNumber(ctx context.Context, number string) (*model.Order, error) {
	return s.getOrder(ctx, "order_number", number)
}

// GetOrderByQuotation returns nil, nil when the quotation has no order.
func (s *PostgresStore) GetOrderByQuotation(ctx context.Context, quotationID string) (*model.Order, error) {
	o, err := s.getOrder(ctx, "quotation_id", quotationID)
	if apperr.Is(err, apperr.KindNotFound) {
		return nil, nil
	}
	return o, err
}

func (s *PostgresStore) getOrder(ctx context.Context, column, value string) (*model.Order, error) {
	var o model.Order
	var paymentStatus, paymentMethod, policyStatus string
	err := s.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE `+column+` = $1`, value,
	).Scan(&o.ID, &o.Number, &o.QuotationID, &paymentStatus, &paymentMethod, &o.PaymentDate,
		&o.PolicyNumber, &o.PolicyStartDate, &o.PolicyEndDate, &policyStatus, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("order %s not found", value)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get order %s", value)
	}
	o.PaymentStatus = model.PaymentStatus(paymentStatus)
	o.PaymentMethod = model.PaymentMethod(paymentMethod)
	o.PolicyStatus = model.PolicyStatus(policyStatus)
	return &o, nil
}

func (s *PostgresStore) UpdateOrderPayment(ctx context.Context, u PaymentUpdate) error {
	var policyStatus *string
	if u.PolicyStatus != "" {
		ps := string(u.PolicyStatus)
		policyStatus = &ps
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE orders SET payment_status = $1, updated_at = $2,
			policy_status = COALESCE($3, policy_status),
			payment_date = COALESCE($4, payment_date)
		WHERE id = $5 AND payment_status = $6`,
		string(u.To), u.UpdatedAt, policyStatus, u.PaymentDate, u.OrderID, string(u.From),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update order payment %s", u.OrderID)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("order %s payment is no longer %s", u.OrderID, u.From)
	}
	return nil
}

// --- Transcript ---

const recentTurnsSQL = `SELECT id, session_id, role, message, created_at FROM (
	SELECT id, session_id, role, message, created_at FROM chat_sessions
	WHERE session_id = $1 ORDER BY id DESC LIMIT $2
) t ORDER BY id`

func (s *PostgresStore) AppendTurns(ctx context.Context, turns ...model.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin transcript tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, t := range turns {
		if _, err := tx.Exec(ctx,
			`INSERT INTO chat_sessions (session_id, role, message, created_at) VALUES ($1, $2, $3, $4)`,
			t.SessionID, string(t.Role), t.Message, t.CreatedAt,
		); err != nil {
			return eris.Wrapf(err, "postgres: append turn for session %s", t.SessionID)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit transcript")
}

// RecentTurns returns the last limit turns of a session in chronological order.
func (s *PostgresStore) RecentTurns(ctx context.Context, sessionID string, limit int) ([]model.Turn, error) {
	rows, err := s.pool.Query(ctx, recentTurnsSQL, sessionID, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: recent turns %s", sessionID)
	}
	defer rows.Close()

	var out []model.Turn
	for rows.Next() {
		var t model.Turn
		var role string
		if err := rows.Scan(&t.ID, &t.SessionID, &role, &t.Message, &t.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan turn")
		}
		t.Role = model.Role(role)
		out = append(out, t)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate turns")
}

// --- Seeding ---

func (s *PostgresStore) UpsertVehicles(ctx context.Context, vehicles []model.Vehicle) (int64, error) {
	rows := make([][]any, len(vehicles))
	for i, v := range vehicles {
		rows[i] = []any{v.ID, v.Brand, v.Model, v.SubModel, int32(v.Year), numeric(v.EstimatedPrice)}
	}
	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "car_models",
		Columns:      []string{"id", "brand", "model", "sub_model", "year", "estimated_price"},
		ConflictKeys: []string{"id"},
	}, rows)
}

func (s *PostgresStore) UpsertPlans(ctx context.Context, plans []model.Plan) (int64, error) {
	rows := make([][]any, len(plans))
	for i, p := range plans {
		rows[i] = []any{p.ID, string(p.Type), p.Name, p.Insurer}
	}
	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "insurance_plans",
		Columns:      []string{"id", "plan_type", "plan_name", "insurer_name"},
		ConflictKeys: []string{"id"},
	}, rows)
}

func (s *PostgresStore) UpsertPremiums(ctx context.Context, premiums []model.Premium) (int64, error) {
	rows := make([][]any, len(premiums))
	for i, p := range premiums {
		rows[i] = []any{p.VehicleID, p.PlanID, numeric(p.BasePremium), numeric(p.Deductible)}
	}
	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "premiums",
		Columns:      []string{"car_model_id", "plan_id", "base_premium", "deductible"},
		ConflictKeys: []string{"car_model_id", "plan_id"},
	}, rows)
}

func (s *PostgresStore) InsertDocuments(ctx context.Context, docs []model.PolicyDocument) (int64, error) {
	rows := make([][]any, len(docs))
	for i, d := range docs {
		var meta any
		if len(d.Metadata) > 0 {
			meta = string(d.Metadata)
		}
		var emb any
		if len(d.Embedding) > 0 {
			emb = pgvector.NewVector(d.Embedding)
		}
		planType := d.PlanType
		if planType == "" {
			planType = model.PlanTypeAll
		}
		rows[i] = []any{string(d.Section), planType, d.Content, meta, emb}
	}
	return db.CopyFrom(ctx, s.pool, "policy_documents",
		[]string{"section", "plan_type", "content", "metadata", "embedding"}, rows)
}

// numeric converts a decimal to the pgx numeric representation.
func numeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.String())
	return n
}

func isUndefinedVectorType(err error) bool {
	return strings.Contains(err.Error(), "vector type not found")
}
