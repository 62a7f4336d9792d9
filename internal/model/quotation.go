package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuotationStatus is the lifecycle state of a quotation.
type QuotationStatus string

const (
	QuotationDraft    QuotationStatus = "draft"
	QuotationSent     QuotationStatus = "sent"
	QuotationAccepted QuotationStatus = "accepted"
	QuotationExpired  QuotationStatus = "expired"
)

// Customer holds optional contact details captured on a quotation.
type Customer struct {
	Name  string `json:"customer_name,omitempty"`
	Email string `json:"customer_email,omitempty"`
	Phone string `json:"customer_phone,omitempty"`
}

// Quotation is a priced, time-bounded offer for one vehicle and plan. The
// financial fields are a snapshot taken at creation and never recomputed.
type Quotation struct {
	ID           string          `json:"quotation_id"`
	Number       string          `json:"quotation_number"`
	SessionID    string          `json:"session_id"`
	VehicleID    int64           `json:"car_model_id"`
	PlanID       int64           `json:"plan_id"`
	Customer     Customer        `json:"customer"`
	CarPrice     decimal.Decimal `json:"car_estimated_price"`
	BasePremium  decimal.Decimal `json:"base_premium"`
	Deductible   decimal.Decimal `json:"deductible"`
	TotalPremium decimal.Decimal `json:"total_premium"`
	Status       QuotationStatus `json:"status"`
	ValidUntil   time.Time       `json:"valid_until"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Expired reports whether the quotation is past its validity deadline at now.
func (q *Quotation) Expired(now time.Time) bool {
	return q.Status == QuotationExpired || now.After(q.ValidUntil)
}

// EffectiveStatus returns the status as seen at now. Expiry is evaluated at
// read time; an accepted quotation stays accepted.
func (q *Quotation) EffectiveStatus(now time.Time) QuotationStatus {
	if q.Status == QuotationAccepted {
		return q.Status
	}
	if q.Expired(now) {
		return QuotationExpired
	}
	return q.Status
}
