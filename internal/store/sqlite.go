package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/zeus-insurance/zeus-agent/internal/apperr"
	"github.com/zeus-insurance/zeus-agent/internal/db"
	"github.com/zeus-insurance/zeus-agent/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Vector search is
// computed in process, which suits local development and tests.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	// In-memory databases are per connection.
	if strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS car_models (
	id              INTEGER PRIMARY KEY,
	brand           TEXT NOT NULL,
	model           TEXT NOT NULL,
	sub_model       TEXT NOT NULL DEFAULT '',
	year            INTEGER NOT NULL,
	estimated_price TEXT NOT NULL DEFAULT '0'
);

CREATE TABLE IF NOT EXISTS insurance_plans (
	id           INTEGER PRIMARY KEY,
	plan_type    TEXT NOT NULL,
	plan_name    TEXT NOT NULL,
	insurer_name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS premiums (
	car_model_id INTEGER NOT NULL REFERENCES car_models(id),
	plan_id      INTEGER NOT NULL REFERENCES insurance_plans(id),
	base_premium TEXT NOT NULL,
	deductible   TEXT NOT NULL DEFAULT '0',
	PRIMARY KEY (car_model_id, plan_id)
);

CREATE TABLE IF NOT EXISTS policy_documents (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	section   TEXT NOT NULL,
	plan_type TEXT NOT NULL DEFAULT 'All',
	content   TEXT NOT NULL,
	metadata  TEXT,
	embedding TEXT
);

CREATE TABLE IF NOT EXISTS quotations (
	id               TEXT PRIMARY KEY,
	quotation_number TEXT NOT NULL UNIQUE,
	session_id       TEXT NOT NULL DEFAULT '',
	car_model_id     INTEGER NOT NULL REFERENCES car_models(id),
	plan_id          INTEGER NOT NULL REFERENCES insurance_plans(id),
	customer_name    TEXT NOT NULL DEFAULT '',
	customer_email   TEXT NOT NULL DEFAULT '',
	customer_phone   TEXT NOT NULL DEFAULT '',
	car_price        TEXT NOT NULL,
	base_premium     TEXT NOT NULL,
	deductible       TEXT NOT NULL,
	total_premium    TEXT NOT NULL,
	status           TEXT NOT NULL DEFAULT 'draft',
	valid_until      DATETIME NOT NULL,
	created_at       DATETIME NOT NULL,
	updated_at       DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS orders (
	id                TEXT PRIMARY KEY,
	order_number      TEXT NOT NULL UNIQUE,
	quotation_id      TEXT NOT NULL UNIQUE REFERENCES quotations(id),
	payment_status    TEXT NOT NULL DEFAULT 'pending',
	payment_method    TEXT NOT NULL DEFAULT 'pending',
	payment_date      DATETIME,
	policy_number     TEXT NOT NULL UNIQUE,
	policy_start_date DATETIME NOT NULL,
	policy_end_date   DATETIME NOT NULL,
	policy_status     TEXT NOT NULL DEFAULT 'inactive',
	created_at        DATETIME NOT NULL,
	updated_at        DATETIME NOT NULL,
	CONSTRAINT orders_active_requires_paid CHECK (policy_status <> 'active' OR payment_status = 'paid')
);

CREATE TABLE IF NOT EXISTS chat_sessions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	role       TEXT NOT NULL,
	message    TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_car_models_brand_model ON car_models(brand, model);
CREATE INDEX IF NOT EXISTS idx_policy_documents_section ON policy_documents(section);
CREATE INDEX IF NOT EXISTS idx_quotations_session ON quotations(session_id);
CREATE INDEX IF NOT EXISTS idx_chat_sessions_session ON chat_sessions(session_id, id);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Catalog ---

func (s *SQLiteStore) FindVehicles(ctx context.Context, filter VehicleFilter) ([]model.Vehicle, error) {
	where, args := vehicleWhere(filter, question)
	query := `SELECT id, brand, model, sub_model, year, estimated_price FROM car_models` + where + vehicleOrder
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find vehicles")
	}
	defer rows.Close()

	var out []model.Vehicle
	for rows.Next() {
		var v model.Vehicle
		var price string
		if err := rows.Scan(&v.ID, &v.Brand, &v.Model, &v.SubModel, &v.Year, &price); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan vehicle")
		}
		if v.EstimatedPrice, err = parseDecimal(price); err != nil {
			return nil, eris.Wrapf(err, "sqlite: vehicle %d price", v.ID)
		}
		out = append(out, v)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate vehicles")
}

func (s *SQLiteStore) ListOffers(ctx context.Context, vehicleIDs []int64) ([]model.PlanOffer, error) {
	if len(vehicleIDs) == 0 {
		return nil, nil
	}
	marks := make([]string, len(vehicleIDs))
	args := make([]any, len(vehicleIDs))
	for i, id := range vehicleIDs {
		marks[i] = "?"
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT p.car_model_id, p.base_premium, p.deductible, ip.id, ip.plan_type, ip.plan_name, ip.insurer_name
		FROM premiums p JOIN insurance_plans ip ON ip.id = p.plan_id
		WHERE p.car_model_id IN (`+strings.Join(marks, ", ")+`)
		ORDER BY p.car_model_id, ip.id`,
		args...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list offers")
	}
	defer rows.Close()

	var out []model.PlanOffer
	for rows.Next() {
		var o model.PlanOffer
		var base, deductible, planType string
		if err := rows.Scan(&o.VehicleID, &base, &deductible, &o.Plan.ID, &planType, &o.Plan.Name, &o.Plan.Insurer); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan offer")
		}
		o.Plan.Type = model.PlanType(planType)
		if o.BasePremium, err = parseDecimal(base); err != nil {
			return nil, eris.Wrap(err, "sqlite: offer premium")
		}
		if o.Deductible, err = parseDecimal(deductible); err != nil {
			return nil, eris.Wrap(err, "sqlite: offer deductible")
		}
		out = append(out, o)
	}
	// Premiums are TEXT here, so order numerically in Go.
	sortOffers(out)
	return out, eris.Wrap(rows.Err(), "sqlite: iterate offers")
}

func (s *SQLiteStore) GetQuotationDetail(ctx context.Context, vehicleID, planID int64) (*model.QuotationDetail, error) {
	var d model.QuotationDetail
	var price, base, deductible, planType string
	err := s.db.QueryRowContext(ctx,
		`SELECT c.id, c.brand, c.model, c.sub_model, c.year, c.estimated_price,
			ip.id, ip.plan_type, ip.plan_name, ip.insurer_name, p.base_premium, p.deductible
		FROM premiums p
		JOIN car_models c ON c.id = p.car_model_id
		JOIN insurance_plans ip ON ip.id = p.plan_id
		WHERE p.car_model_id = ? AND p.plan_id = ?`,
		vehicleID, planID,
	).Scan(&d.Vehicle.ID, &d.Vehicle.Brand, &d.Vehicle.Model, &d.Vehicle.SubModel, &d.Vehicle.Year, &price,
		&d.Plan.ID, &planType, &d.Plan.Name, &d.Plan.Insurer, &base, &deductible)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("no premium for car model %d and plan %d", vehicleID, planID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get quotation detail %d/%d", vehicleID, planID)
	}
	d.Plan.Type = model.PlanType(planType)
	if err := parseAmounts(
		amount{&d.Vehicle.EstimatedPrice, price},
		amount{&d.BasePremium, base},
		amount{&d.Deductible, deductible},
	); err != nil {
		return nil, eris.Wrap(err, "sqlite: quotation detail")
	}
	return &d, nil
}

// --- Policy documents ---

func (s *SQLiteStore) MatchDocuments(ctx context.Context, q DocumentQuery) ([]model.DocumentMatch, error) {
	query := `SELECT id, section, plan_type, content, metadata, embedding FROM policy_documents WHERE embedding IS NOT NULL`
	var args []any
	if q.Section != "" {
		query += ` AND section = ?`
		args = append(args, string(q.Section))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: match documents")
	}
	defer rows.Close()

	var out []model.DocumentMatch
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		sim := cosineSimilarity(q.Embedding, doc.Embedding)
		if sim <= q.Threshold {
			continue
		}
		doc.Embedding = nil
		out = append(out, model.DocumentMatch{Document: *doc, Similarity: sim})
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate documents")
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *SQLiteStore) ListUnembeddedDocuments(ctx context.Context, limit int) ([]model.PolicyDocument, error) {
	query := `SELECT id, section, plan_type, content, metadata, embedding FROM policy_documents WHERE embedding IS NULL ORDER BY id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list unembedded documents")
	}
	defer rows.Close()

	var out []model.PolicyDocument
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *doc)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate documents")
}

func (s *SQLiteStore) SetDocumentEmbedding(ctx context.Context, id int64, embedding []float32) error {
	raw, err := json.Marshal(embedding)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal embedding")
	}
	res, err := s.db.ExecContext(ctx, `UPDATE policy_documents SET embedding = ? WHERE id = ?`, string(raw), id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set embedding %d", id)
	}
	return checkRowsAffected(res, "policy document", id)
}

// --- Quotations ---

func (s *SQLiteStore) InsertQuotation(ctx context.Context, q *model.Quotation) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO quotations (id, quotation_number, session_id, car_model_id, plan_id,
			customer_name, customer_email, customer_phone, car_price, base_premium, deductible,
			total_premium, status, valid_until, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.Number, q.SessionID, q.VehicleID, q.PlanID,
		q.Customer.Name, q.Customer.Email, q.Customer.Phone,
		q.CarPrice.String(), q.BasePremium.String(), q.Deductible.String(), q.TotalPremium.String(),
		string(q.Status), q.ValidUntil, q.CreatedAt, q.UpdatedAt,
	)
	if db.IsUniqueViolation(err) {
		return apperr.Conflict("quotation number %s already exists", q.Number)
	}
	return eris.Wrapf(err, "sqlite: insert quotation %s", q.Number)
}

func (s *SQLiteStore) GetQuotation(ctx context.Context, id string) (*model.Quotation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+quotationColumns+` FROM quotations WHERE id = ?`, id)
	q, err := scanQuotation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("quotation %s not found", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get quotation %s", id)
	}
	return q, nil
}

func (s *SQLiteStore) TransitionQuotation(ctx context.Context, id string, from, to model.QuotationStatus, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE quotations SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), at, id, string(from),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: transition quotation %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return apperr.Conflict("quotation %s is no longer %s", id, from)
	}
	return nil
}

// --- Orders ---

// InsertOrder stores the order and marks its quotation accepted in one
// transaction.
func (s *SQLiteStore) InsertOrder(ctx context.Context, o *model.Order) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin order tx")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO orders (id, order_number, quotation_id, payment_status, payment_method, payment_date,
			policy_number, policy_start_date, policy_end_date, policy_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.Number, o.QuotationID, string(o.PaymentStatus), string(o.PaymentMethod), nullTime(o.PaymentDate),
		o.PolicyNumber, o.PolicyStartDate, o.PolicyEndDate, string(o.PolicyStatus), o.CreatedAt, o.UpdatedAt,
	)
	if db.IsUniqueViolation(err) {
		return apperr.Conflict("order for quotation %s conflicts with an existing order", o.QuotationID)
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert order %s", o.Number)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE quotations SET status = ?, updated_at = ? WHERE id = ?`,
		string(model.QuotationAccepted), o.CreatedAt, o.QuotationID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: accept quotation %s", o.QuotationID)
	}
	if err := checkRowsAffected(res, "quotation", o.QuotationID); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit order")
}

func (s *SQLiteStore) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	return s.getOrder(ctx, "id", id)
}

func (s *SQLiteStore) GetOrderByNumber(ctx context.Context, number string) (*model.Order, error) {
	return s.getOrder(ctx, "order_number", number)
}

// GetOrderByQuotation returns nil, nil when the quotation has no order.
func (s *SQLiteStore) GetOrderByQuotation(ctx context.Context, quotationID string) (*model.Order, error) {
	o, err := s.getOrder(ctx, "quotation_id", quotationID)
	if apperr.Is(err, apperr.KindNotFound) {
		return nil, nil
	}
	return o, err
}

func (s *SQLiteStore) getOrder(ctx context.Context, column, value string) (*model.Order, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE `+column+` = ?`, value)
	var o model.Order
	var paymentStatus, paymentMethod, policyStatus string
	var paymentDate sql.NullTime
	err := row.Scan(&o.ID, &o.Number, &o.QuotationID, &paymentStatus, &paymentMethod, &paymentDate,
		&o.PolicyNumber, &o.PolicyStartDate, &o.PolicyEndDate, &policyStatus, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("order %s not found", value)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get order %s", value)
	}
	o.PaymentStatus = model.PaymentStatus(paymentStatus)
	o.PaymentMethod = model.PaymentMethod(paymentMethod)
	o.PolicyStatus = model.PolicyStatus(policyStatus)
	if paymentDate.Valid {
		t := paymentDate.Time
		o.PaymentDate = &t
	}
	return &o, nil
}

func (s *SQLiteStore) UpdateOrderPayment(ctx context.Context, u PaymentUpdate) error {
	query := `UPDATE orders SET payment_status = ?, updated_at = ?`
	args := []any{string(u.To), u.UpdatedAt}
	if u.PolicyStatus != "" {
		query += `, policy_status = ?`
		args = append(args, string(u.PolicyStatus))
	}
	if u.PaymentDate != nil {
		query += `, payment_date = ?`
		args = append(args, *u.PaymentDate)
	}
	query += ` WHERE id = ? AND payment_status = ?`
	args = append(args, u.OrderID, string(u.From))

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update order payment %s", u.OrderID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return apperr.Conflict("order %s payment is no longer %s", u.OrderID, u.From)
	}
	return nil
}

// --- Transcript ---

func (s *SQLiteStore) AppendTurns(ctx context.Context, turns ...model.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin transcript tx")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, t := range turns {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chat_sessions (session_id, role, message, created_at) VALUES (?, ?, ?, ?)`,
			t.SessionID, string(t.Role), t.Message, t.CreatedAt,
		); err != nil {
			return eris.Wrapf(err, "sqlite: append turn for session %s", t.SessionID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit transcript")
}

// RecentTurns returns the last limit turns of a session in chronological order.
func (s *SQLiteStore) RecentTurns(ctx context.Context, sessionID string, limit int) ([]model.Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, message, created_at FROM (
			SELECT id, session_id, role, message, created_at FROM chat_sessions
			WHERE session_id = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id`,
		sessionID, limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: recent turns %s", sessionID)
	}
	defer rows.Close()

	var out []model.Turn
	for rows.Next() {
		var t model.Turn
		var role string
		if err := rows.Scan(&t.ID, &t.SessionID, &role, &t.Message, &t.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan turn")
		}
		t.Role = model.Role(role)
		out = append(out, t)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate turns")
}

// --- Seeding ---

func (s *SQLiteStore) UpsertVehicles(ctx context.Context, vehicles []model.Vehicle) (int64, error) {
	return s.upsertEach(ctx, "car models", len(vehicles),
		`INSERT INTO car_models (id, brand, model, sub_model, year, estimated_price) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET brand = excluded.brand, model = excluded.model,
			sub_model = excluded.sub_model, year = excluded.year, estimated_price = excluded.estimated_price`,
		func(i int) []any {
			v := vehicles[i]
			return []any{v.ID, v.Brand, v.Model, v.SubModel, v.Year, v.EstimatedPrice.String()}
		})
}

func (s *SQLiteStore) UpsertPlans(ctx context.Context, plans []model.Plan) (int64, error) {
	return s.upsertEach(ctx, "insurance plans", len(plans),
		`INSERT INTO insurance_plans (id, plan_type, plan_name, insurer_name) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET plan_type = excluded.plan_type, plan_name = excluded.plan_name,
			insurer_name = excluded.insurer_name`,
		func(i int) []any {
			p := plans[i]
			return []any{p.ID, string(p.Type), p.Name, p.Insurer}
		})
}

func (s *SQLiteStore) UpsertPremiums(ctx context.Context, premiums []model.Premium) (int64, error) {
	return s.upsertEach(ctx, "premiums", len(premiums),
		`INSERT INTO premiums (car_model_id, plan_id, base_premium, deductible) VALUES (?, ?, ?, ?)
		ON CONFLICT (car_model_id, plan_id) DO UPDATE SET base_premium = excluded.base_premium,
			deductible = excluded.deductible`,
		func(i int) []any {
			p := premiums[i]
			return []any{p.VehicleID, p.PlanID, p.BasePremium.String(), p.Deductible.String()}
		})
}

func (s *SQLiteStore) InsertDocuments(ctx context.Context, docs []model.PolicyDocument) (int64, error) {
	return s.upsertEach(ctx, "policy documents", len(docs),
		`INSERT INTO policy_documents (section, plan_type, content, metadata, embedding) VALUES (?, ?, ?, ?, ?)`,
		func(i int) []any {
			d := docs[i]
			var meta, emb any
			if len(d.Metadata) > 0 {
				meta = string(d.Metadata)
			}
			if len(d.Embedding) > 0 {
				raw, _ := json.Marshal(d.Embedding)
				emb = string(raw)
			}
			planType := d.PlanType
			if planType == "" {
				planType = model.PlanTypeAll
			}
			return []any{string(d.Section), planType, d.Content, meta, emb}
		})
}

func (s *SQLiteStore) upsertEach(ctx context.Context, entity string, n int, query string, args func(i int) []any) (int64, error) {
	if n == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: begin %s tx", entity)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: prepare %s", entity)
	}
	defer stmt.Close() //nolint:errcheck

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: write %s row %d", entity, i)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrapf(err, "sqlite: commit %s", entity)
	}
	return int64(n), nil
}

const quotationColumns = `id, quotation_number, session_id, car_model_id, plan_id, customer_name, customer_email,
	customer_phone, car_price, base_premium, deductible, total_premium, status, valid_until, created_at, updated_at`

const orderColumns = `id, order_number, quotation_id, payment_status, payment_method, payment_date,
	policy_number, policy_start_date, policy_end_date, policy_status, created_at, updated_at`

func scanDocument(row scannable) (*model.PolicyDocument, error) {
	var d model.PolicyDocument
	var section string
	var meta, emb sql.NullString
	if err := row.Scan(&d.ID, &section, &d.PlanType, &d.Content, &meta, &emb); err != nil {
		return nil, eris.Wrap(err, "sqlite: scan document")
	}
	d.Section = model.Section(section)
	if meta.Valid && meta.String != "" {
		d.Metadata = json.RawMessage(meta.String)
	}
	if emb.Valid && emb.String != "" {
		if err := json.Unmarshal([]byte(emb.String), &d.Embedding); err != nil {
			return nil, eris.Wrapf(err, "sqlite: decode embedding %d", d.ID)
		}
	}
	return &d, nil
}

func checkRowsAffected(res sql.Result, entity string, id any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return apperr.NotFound("%s %v not found", entity, id)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// cosineSimilarity returns 0 for mismatched or zero-length vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
