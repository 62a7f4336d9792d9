package agent

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/zeus-insurance/zeus-agent/internal/apperr"
	"github.com/zeus-insurance/zeus-agent/internal/catalog"
	"github.com/zeus-insurance/zeus-agent/internal/model"
	"github.com/zeus-insurance/zeus-agent/internal/quote"
	"github.com/zeus-insurance/zeus-agent/internal/retrieval"
)

// VehicleResolver resolves vehicle descriptions.
type VehicleResolver interface {
	Resolve(ctx context.Context, q catalog.VehicleQuery) (*catalog.Resolution, error)
}

// DocumentSearcher searches policy wording.
type DocumentSearcher interface {
	Search(ctx context.Context, q retrieval.Query) (*retrieval.Result, error)
}

// QuoteService owns quotation and order mutations.
type QuoteService interface {
	CreateQuotation(ctx context.Context, in quote.CreateQuotationInput) (*model.Quotation, error)
	SendQuotation(ctx context.Context, id string) (*model.Quotation, error)
	CreateOrder(ctx context.Context, quotationID string, method model.PaymentMethod) (*quote.OrderResult, error)
	UpdateOrderPayment(ctx context.Context, in quote.PaymentInput) (*model.Order, error)
	GetOrderStatus(ctx context.Context, orderNumber string) (*model.OrderView, error)
}

// Result is what the model reads back from a tool call.
type Result struct {
	Tool      ToolName    `json:"tool"`
	Success   bool        `json:"success"`
	Message   string      `json:"message,omitempty"`
	Data      any         `json:"data,omitempty"`
	ErrorKind apperr.Kind `json:"error_kind,omitempty"`
}

// JSON renders the result compactly for a tool_result block.
func (r Result) JSON() string {
	b, err := json.Marshal(r)
	if err != nil {
		return `{"success":false,"message":"result could not be encoded"}`
	}
	return string(b)
}

// Failure builds the result for an error the model should handle itself.
func Failure(tool ToolName, err error) Result {
	return Result{Tool: tool, Success: false, ErrorKind: apperr.KindOf(err), Message: apperr.Message(err)}
}

// Dispatcher maps decoded requests onto the catalog, search and quotation
// components.
type Dispatcher struct {
	resolver VehicleResolver
	searcher DocumentSearcher
	quotes   QuoteService
	loc      *time.Location
}

// NewDispatcher creates a Dispatcher. Dates in results are rendered in loc.
func NewDispatcher(resolver VehicleResolver, searcher DocumentSearcher, quotes QuoteService, loc *time.Location) *Dispatcher {
	if loc == nil {
		loc = time.UTC
	}
	return &Dispatcher{resolver: resolver, searcher: searcher, quotes: quotes, loc: loc}
}

// Dispatch runs one request for a session. Errors the model can act on
// (not found, expired, invalid transition, validation, conflict) come back
// as an unsuccessful Result; upstream and internal failures are returned
// as errors and end the turn.
func (d *Dispatcher) Dispatch(ctx context.Context, sessionID string, req Request) (Result, error) {
	start := time.Now()
	data, msg, err := d.run(ctx, sessionID, req)

	fields := []zap.Field{
		zap.String("session_id", sessionID),
		zap.String("tool", string(req.Tool())),
		zap.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		kind := apperr.KindOf(err)
		if kind.Recoverable() || kind == apperr.KindConflict {
			zap.L().Info("agent: tool rejected", append(fields, zap.String("kind", string(kind)), zap.Error(err))...)
			return Failure(req.Tool(), err), nil
		}
		zap.L().Error("agent: tool failed", append(fields, zap.Error(err))...)
		return Result{}, eris.Wrapf(err, "agent: %s", req.Tool())
	}
	zap.L().Info("agent: tool succeeded", fields...)
	return Result{Tool: req.Tool(), Success: true, Message: msg, Data: data}, nil
}

func (d *Dispatcher) run(ctx context.Context, sessionID string, req Request) (any, string, error) {
	switch r := req.(type) {
	case SearchVehiclesRequest:
		return d.searchVehicles(ctx, r)
	case SearchPolicyRequest:
		return d.searchPolicy(ctx, r)
	case CreateQuotationRequest:
		q, err := d.quotes.CreateQuotation(ctx, quote.CreateQuotationInput{
			SessionID: sessionID,
			VehicleID: r.CarModelID,
			PlanID:    r.PlanID,
			Customer:  model.Customer{Name: r.CustomerName, Email: r.CustomerEmail, Phone: r.CustomerPhone},
		})
		if err != nil {
			return nil, "", err
		}
		return d.quotationView(q), "Quotation created.", nil
	case SendQuotationRequest:
		q, err := d.quotes.SendQuotation(ctx, r.QuotationID)
		if err != nil {
			return nil, "", err
		}
		return d.quotationView(q), "Quotation marked as sent.", nil
	case CreateOrderRequest:
		res, err := d.quotes.CreateOrder(ctx, r.QuotationID, r.PaymentMethod)
		if err != nil {
			return nil, "", err
		}
		msg := "Order created."
		if res.Existing {
			msg = "An order already exists for this quotation."
		}
		v := d.orderView(&res.OrderView)
		v.PaymentInstructions = res.PaymentInstructions
		return v, msg, nil
	case UpdatePaymentRequest:
		o, err := d.quotes.UpdateOrderPayment(ctx, quote.PaymentInput{OrderID: r.OrderID, Status: r.PaymentStatus})
		if err != nil {
			return nil, "", err
		}
		return d.orderOnlyView(o), "Payment status updated.", nil
	case OrderStatusRequest:
		v, err := d.quotes.GetOrderStatus(ctx, r.OrderNumber)
		if err != nil {
			return nil, "", err
		}
		return d.orderView(v), "", nil
	default:
		return nil, "", apperr.Validation("unsupported request %T", req)
	}
}

func (d *Dispatcher) searchVehicles(ctx context.Context, r SearchVehiclesRequest) (any, string, error) {
	res, err := d.resolver.Resolve(ctx, catalog.VehicleQuery{
		Brand: r.Brand, Model: r.Model, SubModel: r.SubModel, Year: r.Year, Keyword: r.Keyword,
	})
	if err != nil {
		return nil, "", err
	}
	out := vehicleSearchView{Matched: res.Matched, Stage: string(res.Stage), Vehicles: []vehicleView{}}
	for _, m := range res.Matches {
		v := vehicleView{
			CarModelID:     m.Vehicle.ID,
			Name:           m.Vehicle.DisplayName(),
			Year:           m.Vehicle.Year,
			EstimatedPrice: m.Vehicle.EstimatedPrice.StringFixed(2),
			Plans:          make([]offerView, 0, len(m.Offers)),
		}
		for _, o := range m.Offers {
			v.Plans = append(v.Plans, offerView{
				PlanID:      o.Plan.ID,
				PlanName:    o.Plan.Name,
				PlanType:    string(o.Plan.Type),
				Insurer:     o.Plan.Insurer,
				BasePremium: o.BasePremium.StringFixed(2),
				Deductible:  o.Deductible.StringFixed(2),
			})
		}
		out.Vehicles = append(out.Vehicles, v)
	}
	if !res.Matched {
		return out, "No matching vehicles found. Ask the user to confirm brand, model and year.", nil
	}
	return out, "", nil
}

func (d *Dispatcher) searchPolicy(ctx context.Context, r SearchPolicyRequest) (any, string, error) {
	res, err := d.searcher.Search(ctx, retrieval.Query{Text: r.Query, Section: r.Section, TopK: r.TopK})
	if err != nil {
		return nil, "", err
	}
	docs := make([]documentView, 0, len(res.Matches))
	for _, m := range res.Matches {
		docs = append(docs, documentView{
			Section:    string(m.Document.Section),
			PlanType:   m.Document.PlanType,
			Content:    m.Document.Content,
			Similarity: math.Round(m.Similarity*10000) / 10000,
		})
	}
	if len(docs) == 0 {
		return docs, "No relevant policy text found. Say the information is not available.", nil
	}
	return docs, "", nil
}

type vehicleSearchView struct {
	Matched  bool          `json:"matched"`
	Stage    string        `json:"stage"`
	Vehicles []vehicleView `json:"vehicles"`
}

type vehicleView struct {
	CarModelID     int64       `json:"car_model_id"`
	Name           string      `json:"name"`
	Year           int         `json:"year"`
	EstimatedPrice string      `json:"car_estimated_price"`
	Plans          []offerView `json:"plans"`
}

type offerView struct {
	PlanID      int64  `json:"plan_id"`
	PlanName    string `json:"plan_name"`
	PlanType    string `json:"plan_type"`
	Insurer     string `json:"insurer_name"`
	BasePremium string `json:"base_premium"`
	Deductible  string `json:"deductible"`
}

type documentView struct {
	Section    string  `json:"section"`
	PlanType   string  `json:"plan_type"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}

type quotationView struct {
	QuotationID     string `json:"quotation_id"`
	QuotationNumber string `json:"quotation_number"`
	CarModelID      int64  `json:"car_model_id"`
	PlanID          int64  `json:"plan_id"`
	CarPrice        string `json:"car_estimated_price"`
	BasePremium     string `json:"base_premium"`
	Deductible      string `json:"deductible"`
	TotalPremium    string `json:"total_premium"`
	Status          string `json:"status"`
	ValidUntil      string `json:"valid_until"`
}

type orderView struct {
	OrderID             string `json:"order_id"`
	OrderNumber         string `json:"order_number"`
	QuotationNumber     string `json:"quotation_number,omitempty"`
	PolicyNumber        string `json:"policy_number"`
	PaymentMethod       string `json:"payment_method"`
	PaymentStatus       string `json:"payment_status"`
	PaymentDate         string `json:"payment_date,omitempty"`
	PolicyStatus        string `json:"policy_status"`
	PolicyStartDate     string `json:"policy_start_date"`
	PolicyEndDate       string `json:"policy_end_date"`
	TotalAmount         string `json:"total_amount,omitempty"`
	PaymentInstructions string `json:"payment_instructions,omitempty"`
}

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04"
)

func (d *Dispatcher) quotationView(q *model.Quotation) quotationView {
	return quotationView{
		QuotationID:     q.ID,
		QuotationNumber: q.Number,
		CarModelID:      q.VehicleID,
		PlanID:          q.PlanID,
		CarPrice:        q.CarPrice.StringFixed(2),
		BasePremium:     q.BasePremium.StringFixed(2),
		Deductible:      q.Deductible.StringFixed(2),
		TotalPremium:    q.TotalPremium.StringFixed(2),
		Status:          string(q.Status),
		ValidUntil:      q.ValidUntil.In(d.loc).Format(dateLayout),
	}
}

func (d *Dispatcher) orderOnlyView(o *model.Order) orderView {
	var paidAt string
	if o.PaymentDate != nil {
		paidAt = o.PaymentDate.In(d.loc).Format(dateTimeLayout)
	}
	return orderView{
		OrderID:         o.ID,
		OrderNumber:     o.Number,
		PolicyNumber:    o.PolicyNumber,
		PaymentMethod:   string(o.PaymentMethod),
		PaymentStatus:   string(o.PaymentStatus),
		PaymentDate:     paidAt,
		PolicyStatus:    string(o.PolicyStatus),
		PolicyStartDate: o.PolicyStartDate.In(d.loc).Format(dateLayout),
		PolicyEndDate:   o.PolicyEndDate.In(d.loc).Format(dateLayout),
	}
}

func (d *Dispatcher) orderView(v *model.OrderView) orderView {
	out := d.orderOnlyView(&v.Order)
	out.QuotationNumber = v.Quotation.Number
	out.TotalAmount = v.TotalAmount.StringFixed(2)
	return out
}
