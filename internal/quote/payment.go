package quote

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/zeus-insurance/zeus-agent/internal/apperr"
	"github.com/zeus-insurance/zeus-agent/internal/config"
	"github.com/zeus-insurance/zeus-agent/internal/model"
)

// FormatAmount renders an amount with thousands separators and two decimals,
// e.g. 25000 -> "25,000.00".
func FormatAmount(d decimal.Decimal) string {
	return message.NewPrinter(language.English).Sprint(number.Decimal(d.InexactFloat64(), number.Scale(2)))
}

// PaymentInstructions returns the customer-facing payment text for an order.
// The text depends only on the method, order number, amount and the
// configured accounts.
func PaymentInstructions(cfg config.PaymentConfig, method model.PaymentMethod, orderNumber string, amount decimal.Decimal) (string, error) {
	currency := cfg.Currency
	if currency == "" {
		currency = "THB"
	}
	total := FormatAmount(amount) + " " + currency

	switch method {
	case model.PaymentMethodCreditCard:
		return fmt.Sprintf("Please proceed to the payment gateway to complete your credit card payment of %s.\nReference: %s",
			total, orderNumber), nil
	case model.PaymentMethodBankTransfer:
		return fmt.Sprintf("Please transfer %s to:\nBank: %s\nAccount: %s\nName: %s\nReference: %s",
			total, cfg.BankName, cfg.BankAccount, cfg.AccountName, orderNumber), nil
	case model.PaymentMethodPromptPay:
		return fmt.Sprintf("Please scan the QR code or transfer to PromptPay ID: %s\nAmount: %s\nReference: %s",
			cfg.PromptPayID, total, orderNumber), nil
	case model.PaymentMethodPending:
		return "Payment method not selected. Please choose a payment method to proceed.", nil
	default:
		return "", apperr.Validation("unknown payment method %q, expected one of %v", method, model.PaymentMethods)
	}
}
