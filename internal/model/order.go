package model

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
)

// PaymentStatus tracks payment for an order.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// PaymentStatuses lists every payment status.
var PaymentStatuses = []PaymentStatus{PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded}

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	for _, v := range PaymentStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// PolicyStatus tracks the policy issued by an order.
type PolicyStatus string

const (
	PolicyInactive  PolicyStatus = "inactive"
	PolicyActive    PolicyStatus = "active"
	PolicyCancelled PolicyStatus = "cancelled"
	PolicyExpired   PolicyStatus = "expired"
)

// PaymentMethod is how the customer intends to pay.
type PaymentMethod string

const (
	PaymentMethodCreditCard   PaymentMethod = "credit_card"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodPromptPay    PaymentMethod = "promptpay"
	PaymentMethodPending      PaymentMethod = "pending"
)

// PaymentMethods lists the accepted payment methods.
var PaymentMethods = []PaymentMethod{
	PaymentMethodCreditCard, PaymentMethodBankTransfer, PaymentMethodPromptPay, PaymentMethodPending,
}

// Valid reports whether m is an accepted payment method.
func (m PaymentMethod) Valid() bool {
	for _, v := range PaymentMethods {
		if m == v {
			return true
		}
	}
	return false
}

// Order is a purchase created from a quotation.
type Order struct {
	ID              string        `json:"order_id"`
	Number          string        `json:"order_number"`
	QuotationID     string        `json:"quotation_id"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	PaymentMethod   PaymentMethod `json:"payment_method"`
	PaymentDate     *time.Time    `json:"payment_date,omitempty"`
	PolicyNumber    string        `json:"policy_number"`
	PolicyStartDate time.Time     `json:"policy_start_date"`
	PolicyEndDate   time.Time     `json:"policy_end_date"`
	PolicyStatus    PolicyStatus  `json:"policy_status"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// OrderView is an order together with the quotation it was created from.
type OrderView struct {
	Order       Order           `json:"order"`
	Quotation   Quotation       `json:"quotation"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// CheckInvariant verifies that the policy is only active once payment is in.
func (o *Order) CheckInvariant() error {
	if o.PolicyStatus == PolicyActive && o.PaymentStatus != PaymentPaid {
		return eris.Errorf("model: order %s has active policy with payment %s", o.Number, o.PaymentStatus)
	}
	return nil
}

// EffectivePolicyStatus returns the policy status as seen at now: an active
// policy past its end date reads as expired.
func (o *Order) EffectivePolicyStatus(now time.Time) PolicyStatus {
	if o.PolicyStatus == PolicyActive && now.After(o.PolicyEndDate) {
		return PolicyExpired
	}
	return o.PolicyStatus
}
