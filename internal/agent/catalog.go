package agent

import (
	"github.com/zeus-insurance/zeus-agent/internal/model"
	"github.com/zeus-insurance/zeus-agent/pkg/anthropic"
)

func str(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func integer(desc string) map[string]any {
	return map[string]any{"type": "integer", "description": desc}
}

func enum[T ~string](desc string, values []T) map[string]any {
	s := make([]string, len(values))
	for i, v := range values {
		s[i] = string(v)
	}
	return map[string]any{"type": "string", "description": desc, "enum": s}
}

// Tools returns the operations offered to the model. Payment updates are
// only offered when allowPayments is set.
func Tools(allowPayments bool) []anthropic.Tool {
	tools := []anthropic.Tool{
		{
			Name: string(ToolSearchVehicles),
			Description: "Look up vehicles in the insurance catalog together with every plan offered for them " +
				"(plan name, type, insurer, annual base premium and deductible). Call this whenever the user " +
				"mentions a car before stating any price. Fill the structured fields you know; the search relaxes " +
				"sub_model, then year, then matches the model name partially. Use keyword only for a single free " +
				"text term such as \"Tank\" when you cannot tell brand from model.",
			InputSchema: anthropic.InputSchema{
				Properties: map[string]any{
					"brand":     str("Manufacturer, e.g. Honda"),
					"model":     str("Model name, e.g. Civic"),
					"sub_model": str("Trim, e.g. e:HEV RS"),
					"year":      integer("Model year, e.g. 2024"),
					"keyword":   str("Free text term matched against model, sub_model and brand"),
				},
			},
		},
		{
			Name: string(ToolSearchPolicy),
			Description: "Semantic search over the policy wording. Use it before stating any coverage rule, " +
				"deductible rule, claim procedure or eligibility condition. Before confirming that a scenario is " +
				"covered, search again with section \"Exclusion\".",
			InputSchema: anthropic.InputSchema{
				Properties: map[string]any{
					"query":   str("A full natural language question, e.g. \"Is flood damage covered?\""),
					"section": enum("Restrict results to one section", model.Sections),
					"top_k":   integer("Maximum excerpts to return (default 4)"),
				},
				Required: []string{"query"},
			},
		},
		{
			Name: string(ToolCreateQuotation),
			Description: "Create an official quotation once the customer has chosen one vehicle and one plan. " +
				"Use car_model_id and plan_id exactly as returned by search_vehicles. The quotation is valid for 30 days.",
			InputSchema: anthropic.InputSchema{
				Properties: map[string]any{
					"car_model_id":   integer("Vehicle id from search_vehicles"),
					"plan_id":        integer("Plan id from search_vehicles"),
					"customer_name":  str("Customer name, if given"),
					"customer_email": str("Customer email, if given"),
					"customer_phone": str("Customer phone, if given"),
				},
				Required: []string{"car_model_id", "plan_id"},
			},
		},
		{
			Name:        string(ToolSendQuotation),
			Description: "Mark a draft quotation as sent once it has been presented to the customer.",
			InputSchema: anthropic.InputSchema{
				Properties: map[string]any{
					"quotation_id": str("quotation_id returned by create_quotation"),
				},
				Required: []string{"quotation_id"},
			},
		},
		{
			Name: string(ToolCreateOrder),
			Description: "Create an order when the customer confirms they want to buy a quoted policy. " +
				"Returns the order and policy numbers and payment instructions to show the customer. " +
				"Calling it again for the same quotation returns the existing order.",
			InputSchema: anthropic.InputSchema{
				Properties: map[string]any{
					"quotation_id":   str("quotation_id returned by create_quotation"),
					"payment_method": enum("How the customer will pay", model.PaymentMethods),
				},
				Required: []string{"quotation_id"},
			},
		},
		{
			Name:        string(ToolOrderStatus),
			Description: "Read the payment and policy status of an order by its order number (ORD-...).",
			InputSchema: anthropic.InputSchema{
				Properties: map[string]any{
					"order_number": str("Order number, e.g. ORD-20250302-1A2B3C"),
				},
				Required: []string{"order_number"},
			},
		},
	}
	if allowPayments {
		tools = append(tools, anthropic.Tool{
			Name: string(ToolUpdatePayment),
			Description: "Record a payment result for an order. paid activates the policy, refunded cancels it, " +
				"failed leaves it inactive. Only use this when a staff user reports a confirmed payment event.",
			InputSchema: anthropic.InputSchema{
				Properties: map[string]any{
					"order_id":       str("order_id returned by create_order"),
					"payment_status": enum("New payment status", model.PaymentStatuses),
				},
				Required: []string{"order_id", "payment_status"},
			},
		})
	}
	return tools
}
