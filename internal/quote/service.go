// Package quote implements the quotation and order lifecycle: quotation
// creation, promotion to an order with payment instructions, and payment
// driven policy activation.
package quote

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/zeus-insurance/zeus-agent/internal/apperr"
	"github.com/zeus-insurance/zeus-agent/internal/config"
	"github.com/zeus-insurance/zeus-agent/internal/model"
	"github.com/zeus-insurance/zeus-agent/internal/resilience"
	"github.com/zeus-insurance/zeus-agent/internal/store"
)

// Service owns every quotation and order mutation.
type Service struct {
	store    store.Store
	quoteCfg config.QuoteConfig
	payCfg   config.PaymentConfig
	loc      *time.Location

	now    func() time.Time
	suffix func(n int) string
}

// NewService creates a Service.
func NewService(st store.Store, quoteCfg config.QuoteConfig, payCfg config.PaymentConfig) *Service {
	if quoteCfg.ValidityDays <= 0 {
		quoteCfg.ValidityDays = 30
	}
	if quoteCfg.SuffixLen <= 0 {
		quoteCfg.SuffixLen = 6
	}
	if quoteCfg.MaxNumberAttempts <= 0 {
		quoteCfg.MaxNumberAttempts = 5
	}
	return &Service{
		store:    st,
		quoteCfg: quoteCfg,
		payCfg:   payCfg,
		loc:      quoteCfg.Location(),
		now:      func() time.Time { return time.Now().UTC() },
		suffix:   randomSuffix,
	}
}

// CreateQuotationInput selects one vehicle and plan for a session.
type CreateQuotationInput struct {
	SessionID string
	VehicleID int64
	PlanID    int64
	Customer  model.Customer
}

// CreateQuotation snapshots the premium for a vehicle and plan into a new
// draft quotation valid for the configured number of days.
func (s *Service) CreateQuotation(ctx context.Context, in CreateQuotationInput) (*model.Quotation, error) {
	if in.VehicleID <= 0 || in.PlanID <= 0 {
		return nil, apperr.Validation("car_model_id and plan_id are required")
	}
	customer, err := cleanCustomer(in.Customer)
	if err != nil {
		return nil, err
	}

	detail, err := s.store.GetQuotationDetail(ctx, in.VehicleID, in.PlanID)
	if err != nil {
		return nil, storeErr(err, "quote: load premium")
	}

	now := s.now()
	q := &model.Quotation{
		ID:           uuid.NewString(),
		SessionID:    in.SessionID,
		VehicleID:    detail.Vehicle.ID,
		PlanID:       detail.Plan.ID,
		Customer:     customer,
		CarPrice:     detail.Vehicle.EstimatedPrice,
		BasePremium:  detail.BasePremium,
		Deductible:   detail.Deductible,
		TotalPremium: detail.BasePremium,
		Status:       model.QuotationDraft,
		ValidUntil:   now.AddDate(0, 0, s.quoteCfg.ValidityDays),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.withFreshNumbers(ctx, "quotation", func(ctx context.Context) error {
		q.Number = s.number(PrefixQuotation, now)
		return s.store.InsertQuotation(ctx, q)
	})
	if err != nil {
		return nil, storeErr(err, "quote: insert quotation")
	}

	zap.L().Info("quote: quotation created",
		zap.String("quotation_number", q.Number),
		zap.String("session_id", q.SessionID),
		zap.Int64("car_model_id", q.VehicleID),
		zap.Int64("plan_id", q.PlanID),
		zap.String("total_premium", q.TotalPremium.StringFixed(2)),
	)
	return q, nil
}

// GetQuotation returns a quotation with its status evaluated at read time.
func (s *Service) GetQuotation(ctx context.Context, id string) (*model.Quotation, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperr.Validation("quotation_id is required")
	}
	q, err := s.store.GetQuotation(ctx, id)
	if err != nil {
		return nil, storeErr(err, "quote: get quotation")
	}
	q.Status = q.EffectiveStatus(s.now())
	return q, nil
}

// SendQuotation marks a draft quotation as sent to the customer.
func (s *Service) SendQuotation(ctx context.Context, id string) (*model.Quotation, error) {
	q, err := s.GetQuotation(ctx, id)
	if err != nil {
		return nil, err
	}
	switch q.Status {
	case model.QuotationSent:
		return q, nil
	case model.QuotationExpired:
		return nil, apperr.Expired("quotation %s expired on %s", q.Number, q.ValidUntil.In(s.loc).Format("2006-01-02"))
	case model.QuotationDraft:
	default:
		return nil, apperr.InvalidTransition("quotation %s is %s and cannot be sent", q.Number, q.Status)
	}

	now := s.now()
	if err := s.store.TransitionQuotation(ctx, q.ID, model.QuotationDraft, model.QuotationSent, now); err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			return nil, apperr.InvalidTransition("quotation %s changed status concurrently", q.Number)
		}
		return nil, storeErr(err, "quote: send quotation")
	}
	q.Status = model.QuotationSent
	q.UpdatedAt = now
	zap.L().Info("quote: quotation sent", zap.String("quotation_number", q.Number))
	return q, nil
}

// OrderResult is an order with the quotation it came from and the payment
// text for its method.
type OrderResult struct {
	model.OrderView
	QuotationNumber     string `json:"quotation_number"`
	PaymentInstructions string `json:"payment_instructions"`
	Existing            bool   `json:"existing"`
}

// CreateOrder promotes a quotation into an order. Calling it again for the
// same quotation returns the existing order.
func (s *Service) CreateOrder(ctx context.Context, quotationID string, method model.PaymentMethod) (*OrderResult, error) {
	if method == "" {
		method = model.PaymentMethodPending
	}
	if !method.Valid() {
		return nil, apperr.Validation("unknown payment method %q, expected one of %v", method, model.PaymentMethods)
	}

	q, err := s.GetQuotation(ctx, quotationID)
	if err != nil {
		return nil, err
	}

	if existing, err := s.store.GetOrderByQuotation(ctx, q.ID); err != nil {
		return nil, storeErr(err, "quote: find order")
	} else if existing != nil {
		return s.orderResult(existing, q, true)
	}

	switch q.Status {
	case model.QuotationExpired:
		return nil, apperr.Expired("quotation %s expired on %s, please request a new quotation",
			q.Number, q.ValidUntil.In(s.loc).Format("2006-01-02"))
	case model.QuotationDraft, model.QuotationSent:
	default:
		return nil, apperr.InvalidTransition("quotation %s is %s and cannot be ordered", q.Number, q.Status)
	}

	now := s.now()
	start := startOfDay(now, s.loc)
	o := &model.Order{
		ID:              uuid.NewString(),
		QuotationID:     q.ID,
		PaymentStatus:   model.PaymentPending,
		PaymentMethod:   method,
		PolicyStartDate: start,
		PolicyEndDate:   start.AddDate(1, 0, 0),
		PolicyStatus:    model.PolicyInactive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = s.withFreshNumbers(ctx, "order", func(ctx context.Context) error {
		o.Number = s.number(PrefixOrder, now)
		o.PolicyNumber = s.number(PrefixPolicy, now)
		return s.store.InsertOrder(ctx, o)
	})
	if apperr.Is(err, apperr.KindConflict) {
		// A concurrent turn may have ordered the same quotation.
		if existing, ferr := s.store.GetOrderByQuotation(ctx, q.ID); ferr == nil && existing != nil {
			return s.orderResult(existing, q, true)
		}
	}
	if err != nil {
		return nil, storeErr(err, "quote: insert order")
	}

	q.Status = model.QuotationAccepted
	zap.L().Info("quote: order created",
		zap.String("order_number", o.Number),
		zap.String("policy_number", o.PolicyNumber),
		zap.String("quotation_number", q.Number),
		zap.String("payment_method", string(method)),
	)
	return s.orderResult(o, q, false)
}

func (s *Service) orderResult(o *model.Order, q *model.Quotation, existing bool) (*OrderResult, error) {
	instructions, err := PaymentInstructions(s.payCfg, o.PaymentMethod, o.Number, q.TotalPremium)
	if err != nil {
		return nil, err
	}
	o.PolicyStatus = o.EffectivePolicyStatus(s.now())
	return &OrderResult{
		OrderView: model.OrderView{
			Order:       *o,
			Quotation:   *q,
			TotalAmount: q.TotalPremium,
		},
		QuotationNumber:     q.Number,
		PaymentInstructions: instructions,
		Existing:            existing,
	}, nil
}

// PaymentInput requests a payment status change. PaymentDate defaults to now
// when moving to paid.
type PaymentInput struct {
	OrderID     string
	Status      model.PaymentStatus
	PaymentDate *time.Time
}

// transition describes one allowed payment status change.
type transition struct {
	from   model.PaymentStatus
	to     model.PaymentStatus
	policy model.PolicyStatus
}

var paymentTransitions = []transition{
	{model.PaymentPending, model.PaymentPaid, model.PolicyActive},
	{model.PaymentPending, model.PaymentFailed, ""},
	{model.PaymentPaid, model.PaymentRefunded, model.PolicyCancelled},
}

func findTransition(from, to model.PaymentStatus) (transition, bool) {
	for _, t := range paymentTransitions {
		if t.from == from && t.to == to {
			return t, true
		}
	}
	return transition{}, false
}

// UpdateOrderPayment applies a payment status change. Paying activates the
// policy and refunding cancels it in the same conditional update; these are
// the only writes that change policy_status.
func (s *Service) UpdateOrderPayment(ctx context.Context, in PaymentInput) (*model.Order, error) {
	if strings.TrimSpace(in.OrderID) == "" {
		return nil, apperr.Validation("order_id is required")
	}
	if !in.Status.Valid() {
		return nil, apperr.Validation("unknown payment status %q", in.Status)
	}
	o, err := s.store.GetOrder(ctx, in.OrderID)
	if err != nil {
		return nil, storeErr(err, "quote: get order")
	}

	t, ok := findTransition(o.PaymentStatus, in.Status)
	if !ok {
		return nil, apperr.InvalidTransition("payment status of order %s cannot change from %s to %s",
			o.Number, o.PaymentStatus, in.Status)
	}

	now := s.now()
	update := store.PaymentUpdate{
		OrderID:      o.ID,
		From:         t.from,
		To:           t.to,
		PolicyStatus: t.policy,
		UpdatedAt:    now,
	}
	next := *o
	next.PaymentStatus = t.to
	next.UpdatedAt = now
	if t.policy != "" {
		next.PolicyStatus = t.policy
	}
	if t.to == model.PaymentPaid {
		paidAt := now
		if in.PaymentDate != nil {
			paidAt = in.PaymentDate.UTC()
		}
		update.PaymentDate = &paidAt
		next.PaymentDate = &paidAt
	}
	if err := next.CheckInvariant(); err != nil {
		return nil, eris.Wrap(err, "quote: payment update")
	}

	if err := s.store.UpdateOrderPayment(ctx, update); err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			return nil, apperr.InvalidTransition("order %s payment changed concurrently, it is no longer %s", o.Number, t.from)
		}
		return nil, storeErr(err, "quote: update payment")
	}

	zap.L().Info("quote: payment updated",
		zap.String("order_number", o.Number),
		zap.String("from", string(t.from)),
		zap.String("to", string(t.to)),
		zap.String("policy_status", string(next.PolicyStatus)),
	)
	return &next, nil
}

// GetOrderStatus looks an order up by its number. It never mutates state.
func (s *Service) GetOrderStatus(ctx context.Context, orderNumber string) (*model.OrderView, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		return nil, apperr.Validation("order_number is required")
	}
	o, err := s.store.GetOrderByNumber(ctx, orderNumber)
	if err != nil {
		return nil, storeErr(err, "quote: get order")
	}
	q, err := s.store.GetQuotation(ctx, o.QuotationID)
	if err != nil {
		return nil, storeErr(err, "quote: get order quotation")
	}
	now := s.now()
	o.PolicyStatus = o.EffectivePolicyStatus(now)
	q.Status = q.EffectiveStatus(now)
	return &model.OrderView{Order: *o, Quotation: *q, TotalAmount: q.TotalPremium}, nil
}

func (s *Service) number(prefix string, at time.Time) string {
	return formatNumber(prefix, at, s.loc, s.suffix(s.quoteCfg.SuffixLen))
}

// withFreshNumbers retries fn with newly generated numbers while the store
// reports a uniqueness conflict.
func (s *Service) withFreshNumbers(ctx context.Context, entity string, fn func(ctx context.Context) error) error {
	return resilience.Do(ctx, resilience.RetryConfig{
		MaxAttempts:    s.quoteCfg.MaxNumberAttempts,
		InitialBackoff: 5 * time.Millisecond,
		MaxBackoff:     50 * time.Millisecond,
		ShouldRetry:    func(err error) bool { return apperr.Is(err, apperr.KindConflict) },
		OnRetry:        resilience.RetryLogger("quote", entity+" number"),
	}, fn)
}

// storeErr keeps domain errors from the store and marks everything else as
// an upstream failure.
func storeErr(err error, msg string) error {
	switch apperr.KindOf(err) {
	case apperr.KindInternal:
		return apperr.Upstream(eris.Wrap(err, msg), "database unavailable")
	default:
		return err
	}
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func cleanCustomer(c model.Customer) (model.Customer, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(c.Email)
	c.Phone = strings.TrimSpace(c.Phone)
	if c.Email != "" {
		if _, err := mail.ParseAddress(c.Email); err != nil {
			return c, apperr.Validation("customer_email %q is not a valid address", c.Email)
		}
	}
	return c, nil
}
