package agent

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/zeus-insurance/zeus-agent/internal/apperr"
	"github.com/zeus-insurance/zeus-agent/internal/model"
)

// ToolName is the name the model uses to call an operation.
type ToolName string

const (
	ToolSearchVehicles  ToolName = "search_vehicles"
	ToolSearchPolicy    ToolName = "search_policy_documents"
	ToolCreateQuotation ToolName = "create_quotation"
	ToolSendQuotation   ToolName = "send_quotation"
	ToolCreateOrder     ToolName = "create_order"
	ToolUpdatePayment   ToolName = "update_order_payment"
	ToolOrderStatus     ToolName = "get_order_status"
)

// Request is one decoded operation call. Each tool has exactly one
// implementation; Dispatch switches on the concrete type.
type Request interface {
	Tool() ToolName
	Validate() error
}

// SearchVehiclesRequest resolves a vehicle description to catalog rows and
// their plan offers.
type SearchVehiclesRequest struct {
	Brand    string `json:"brand"`
	Model    string `json:"model"`
	SubModel string `json:"sub_model"`
	Year     int    `json:"year"`
	Keyword  string `json:"keyword"`
}

func (SearchVehiclesRequest) Tool() ToolName { return ToolSearchVehicles }

func (r SearchVehiclesRequest) Validate() error {
	if blank(r.Brand) && blank(r.Model) && blank(r.SubModel) && r.Year == 0 && blank(r.Keyword) {
		return apperr.Validation("search_vehicles needs at least one of brand, model, sub_model, year or keyword")
	}
	return nil
}

// SearchPolicyRequest runs a semantic search over policy wording.
type SearchPolicyRequest struct {
	Query   string        `json:"query"`
	Section model.Section `json:"section"`
	TopK    int           `json:"top_k"`
}

func (SearchPolicyRequest) Tool() ToolName { return ToolSearchPolicy }

func (r SearchPolicyRequest) Validate() error {
	if blank(r.Query) {
		return apperr.Validation("query is required")
	}
	if r.Section != "" && !r.Section.Valid() {
		return apperr.Validation("section must be one of %v", model.Sections)
	}
	if r.TopK < 0 || r.TopK > 20 {
		return apperr.Validation("top_k must be between 1 and 20")
	}
	return nil
}

// CreateQuotationRequest prices one vehicle and plan into a draft quotation.
type CreateQuotationRequest struct {
	CarModelID    int64  `json:"car_model_id"`
	PlanID        int64  `json:"plan_id"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`
}

func (CreateQuotationRequest) Tool() ToolName { return ToolCreateQuotation }

func (r CreateQuotationRequest) Validate() error {
	if r.CarModelID <= 0 || r.PlanID <= 0 {
		return apperr.Validation("car_model_id and plan_id are required")
	}
	return nil
}

// SendQuotationRequest marks a quotation as sent to the customer.
type SendQuotationRequest struct {
	QuotationID string `json:"quotation_id"`
}

func (SendQuotationRequest) Tool() ToolName { return ToolSendQuotation }

func (r SendQuotationRequest) Validate() error {
	if blank(r.QuotationID) {
		return apperr.Validation("quotation_id is required")
	}
	return nil
}

// CreateOrderRequest turns a quotation into an order.
type CreateOrderRequest struct {
	QuotationID   string              `json:"quotation_id"`
	PaymentMethod model.PaymentMethod `json:"payment_method"`
}

func (CreateOrderRequest) Tool() ToolName { return ToolCreateOrder }

func (r CreateOrderRequest) Validate() error {
	if blank(r.QuotationID) {
		return apperr.Validation("quotation_id is required")
	}
	if r.PaymentMethod != "" && !r.PaymentMethod.Valid() {
		return apperr.Validation("payment_method must be one of %v", model.PaymentMethods)
	}
	return nil
}

// UpdatePaymentRequest changes an order's payment status.
type UpdatePaymentRequest struct {
	OrderID       string              `json:"order_id"`
	PaymentStatus model.PaymentStatus `json:"payment_status"`
}

func (UpdatePaymentRequest) Tool() ToolName { return ToolUpdatePayment }

func (r UpdatePaymentRequest) Validate() error {
	if blank(r.OrderID) {
		return apperr.Validation("order_id is required")
	}
	if !r.PaymentStatus.Valid() {
		return apperr.Validation("payment_status must be one of pending, paid, failed, refunded")
	}
	return nil
}

// OrderStatusRequest reads an order by its number.
type OrderStatusRequest struct {
	OrderNumber string `json:"order_number"`
}

func (OrderStatusRequest) Tool() ToolName { return ToolOrderStatus }

func (r OrderStatusRequest) Validate() error {
	if blank(r.OrderNumber) {
		return apperr.Validation("order_number is required")
	}
	return nil
}

// Decode parses a tool call into its typed request and validates it.
// Unknown tools and malformed input are validation errors.
func Decode(name string, input json.RawMessage) (Request, error) {
	var (
		req Request
		err error
	)
	switch ToolName(name) {
	case ToolSearchVehicles:
		req, err = decodeAs[SearchVehiclesRequest](input)
	case ToolSearchPolicy:
		req, err = decodeAs[SearchPolicyRequest](input)
	case ToolCreateQuotation:
		req, err = decodeAs[CreateQuotationRequest](input)
	case ToolSendQuotation:
		req, err = decodeAs[SendQuotationRequest](input)
	case ToolCreateOrder:
		req, err = decodeAs[CreateOrderRequest](input)
	case ToolUpdatePayment:
		req, err = decodeAs[UpdatePaymentRequest](input)
	case ToolOrderStatus:
		req, err = decodeAs[OrderStatusRequest](input)
	default:
		return nil, apperr.Validation("unknown tool %q", name)
	}
	if err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

func decodeAs[T Request](input json.RawMessage) (Request, error) {
	var v T
	if len(bytes.TrimSpace(input)) == 0 {
		input = json.RawMessage(`{}`)
	}
	if err := json.Unmarshal(input, &v); err != nil {
		return nil, apperr.Validation("invalid arguments: %v", err)
	}
	return v, nil
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }
