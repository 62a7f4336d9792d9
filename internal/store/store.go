// Package store persists the vehicle catalog, premium matrix, policy
// documents, quotations, orders and chat transcripts.
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/zeus-insurance/zeus-agent/internal/model"
)

// MatchMode selects how a text field is compared. Both modes are
// case-insensitive.
type MatchMode int

const (
	// MatchExact compares the whole value.
	MatchExact MatchMode = iota
	// MatchContains matches the value as a substring.
	MatchContains
)

// TextFilter constrains one text column. An empty Value leaves the column
// unconstrained.
type TextFilter struct {
	Value string
	Mode  MatchMode
}

// Exact returns an exact-match filter.
func Exact(v string) TextFilter { return TextFilter{Value: v, Mode: MatchExact} }

// Contains returns a substring filter.
func Contains(v string) TextFilter { return TextFilter{Value: v, Mode: MatchContains} }

// VehicleFilter selects catalog rows. Year 0 leaves the year unconstrained.
type VehicleFilter struct {
	Brand    TextFilter
	Model    TextFilter
	SubModel TextFilter
	Year     int
	Limit    int
}

// Empty reports whether the filter constrains nothing.
func (f VehicleFilter) Empty() bool {
	return f.Brand.Value == "" && f.Model.Value == "" && f.SubModel.Value == "" && f.Year == 0
}

// DocumentQuery is a nearest-neighbour request over policy documents.
// Section, when set, restricts the candidate set before ranking.
type DocumentQuery struct {
	Embedding []float32
	Threshold float64
	Limit     int
	Section   model.Section
}

// PaymentUpdate is a conditional change of an order's payment state. It
// only applies while the stored payment status still equals From.
type PaymentUpdate struct {
	OrderID      string
	From         model.PaymentStatus
	To           model.PaymentStatus
	PolicyStatus model.PolicyStatus // empty leaves policy_status unchanged
	PaymentDate  *time.Time         // nil leaves payment_date unchanged
	UpdatedAt    time.Time
}

// Store defines the persistence interface for the quotation service.
type Store interface {
	// Catalog
	FindVehicles(ctx context.Context, filter VehicleFilter) ([]model.Vehicle, error)
	ListOffers(ctx context.Context, vehicleIDs []int64) ([]model.PlanOffer, error)
	GetQuotationDetail(ctx context.Context, vehicleID, planID int64) (*model.QuotationDetail, error)

	// Policy documents
	MatchDocuments(ctx context.Context, q DocumentQuery) ([]model.DocumentMatch, error)
	ListUnembeddedDocuments(ctx context.Context, limit int) ([]model.PolicyDocument, error)
	SetDocumentEmbedding(ctx context.Context, id int64, embedding []float32) error

	// Quotations
	InsertQuotation(ctx context.Context, q *model.Quotation) error
	GetQuotation(ctx context.Context, id string) (*model.Quotation, error)
	TransitionQuotation(ctx context.Context, id string, from, to model.QuotationStatus, at time.Time) error

	// Orders
	InsertOrder(ctx context.Context, o *model.Order) error
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	GetOrderByNumber(ctx context.Context, number string) (*model.Order, error)
	GetOrderByQuotation(ctx context.Context, quotationID string) (*model.Order, error)
	UpdateOrderPayment(ctx context.Context, u PaymentUpdate) error

	// Transcript
	AppendTurns(ctx context.Context, turns ...model.Turn) error
	RecentTurns(ctx context.Context, sessionID string, limit int) ([]model.Turn, error)

	// Seeding
	UpsertVehicles(ctx context.Context, vehicles []model.Vehicle) (int64, error)
	UpsertPlans(ctx context.Context, plans []model.Plan) (int64, error)
	UpsertPremiums(ctx context.Context, premiums []model.Premium) (int64, error)
	InsertDocuments(ctx context.Context, docs []model.PolicyDocument) (int64, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// placeholder renders the n-th (1-based) bind parameter for a dialect.
type placeholder func(n int) string

func dollar(n int) string   { return fmt.Sprintf("$%d", n) }
func question(_ int) string { return "?" }

// likeEscaper escapes LIKE metacharacters; patterns use ESCAPE '\'.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// vehicleWhere builds the WHERE clause shared by both dialects.
func vehicleWhere(f VehicleFilter, ph placeholder) (string, []any) {
	var conds []string
	var args []any

	text := func(col string, tf TextFilter) {
		if tf.Value == "" {
			return
		}
		switch tf.Mode {
		case MatchContains:
			args = append(args, "%"+likeEscaper.Replace(strings.ToLower(tf.Value))+"%")
			conds = append(conds, fmt.Sprintf(`lower(%s) LIKE %s ESCAPE '\'`, col, ph(len(args))))
		default:
			args = append(args, strings.ToLower(tf.Value))
			conds = append(conds, fmt.Sprintf("lower(%s) = %s", col, ph(len(args))))
		}
	}

	text("brand", f.Brand)
	text("model", f.Model)
	text("sub_model", f.SubModel)
	if f.Year != 0 {
		args = append(args, f.Year)
		conds = append(conds, fmt.Sprintf("year = %s", ph(len(args))))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

const vehicleOrder = " ORDER BY brand, model, year DESC, sub_model, id"

// scannable is satisfied by *sql.Row, *sql.Rows, pgx.Row and pgx.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// amount pairs a decimal destination with its textual database value.
type amount struct {
	dst *decimal.Decimal
	raw string
}

func parseAmounts(amounts ...amount) error {
	for _, a := range amounts {
		d, err := parseDecimal(a.raw)
		if err != nil {
			return err
		}
		*a.dst = d
	}
	return nil
}

func parseDecimal(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, eris.Wrapf(err, "store: parse amount %q", raw)
	}
	return d, nil
}

// scanQuotation reads the quotation column list with amounts rendered as text.
func scanQuotation(row scannable) (*model.Quotation, error) {
	var q model.Quotation
	var status, carPrice, base, deductible, total string
	if err := row.Scan(&q.ID, &q.Number, &q.SessionID, &q.VehicleID, &q.PlanID,
		&q.Customer.Name, &q.Customer.Email, &q.Customer.Phone,
		&carPrice, &base, &deductible, &total, &status,
		&q.ValidUntil, &q.CreatedAt, &q.UpdatedAt); err != nil {
		return nil, err
	}
	q.Status = model.QuotationStatus(status)
	if err := parseAmounts(
		amount{&q.CarPrice, carPrice},
		amount{&q.BasePremium, base},
		amount{&q.Deductible, deductible},
		amount{&q.TotalPremium, total},
	); err != nil {
		return nil, err
	}
	return &q, nil
}

// sortOffers orders offers by vehicle, then cheapest premium, then plan id.
func sortOffers(offers []model.PlanOffer) {
	sort.SliceStable(offers, func(i, j int) bool {
		a, b := offers[i], offers[j]
		if a.VehicleID != b.VehicleID {
			return a.VehicleID < b.VehicleID
		}
		if c := a.BasePremium.Cmp(b.BasePremium); c != 0 {
			return c < 0
		}
		return a.Plan.ID < b.Plan.ID
	})
}
