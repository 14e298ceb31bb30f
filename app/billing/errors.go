package billing

import "fmt"

// Validation codes reported by PaymentValidationError.Code.
const (
	CodeUnknownPayload   = "unknown_payload"
	CodeBadDuration      = "bad_duration"
	CodeBadPrice         = "bad_price"
	CodeUnknownPlan      = "unknown_plan"
	CodePriceMismatch    = "price_mismatch"
	CodeCurrencyMismatch = "currency_mismatch"
	CodeTotalMismatch    = "total_mismatch"
)

// PaymentValidationError rejects a purchase intent. Reason is safe to show
// to the payer.
type PaymentValidationError struct {
	Kind   string
	Reason string
}

func (e *PaymentValidationError) Error() string {
	return fmt.Sprintf("billing: invalid payment (%s): %s", e.Kind, e.Reason)
}

// Code names the error for handler summaries.
func (e *PaymentValidationError) Code() string { return e.Kind }

func invalid(kind, reason string) *PaymentValidationError {
	return &PaymentValidationError{Kind: kind, Reason: reason}
}
