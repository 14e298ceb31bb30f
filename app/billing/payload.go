package billing

import (
	"fmt"
	"strconv"
	"strings"
)

// PayloadPrefix marks invoices issued by this bot.
const PayloadPrefix = "docshelf.sub"

// MaxMonths bounds the duration a single purchase may carry.
const MaxMonths = 36

// Intent is the decoded purchase carried in an invoice payload.
type Intent struct {
	Months int
	Price  int
}

// EncodePayload renders the invoice payload for a plan, e.g. "docshelf.sub:3m:250".
func EncodePayload(months, price int) string {
	return fmt.Sprintf("%s:%dm:%d", PayloadPrefix, months, price)
}

// ParsePayload decodes an invoice payload. Structural problems yield a
// *PaymentValidationError; catalog membership is checked separately.
func ParsePayload(s string) (Intent, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 || parts[0] != PayloadPrefix {
		return Intent{}, invalid(CodeUnknownPayload, "This invoice was not issued by this bot.")
	}

	dur, ok := strings.CutSuffix(parts[1], "m")
	if !ok || dur == "" {
		return Intent{}, invalid(CodeBadDuration, "The subscription duration is missing.")
	}
	months, err := strconv.Atoi(dur)
	if err != nil || months < 1 || months > MaxMonths {
		return Intent{}, invalid(CodeBadDuration, "The subscription duration is not valid.")
	}

	price, err := strconv.Atoi(parts[2])
	if err != nil || price < 0 {
		return Intent{}, invalid(CodeBadPrice, "The subscription price is not valid.")
	}
	return Intent{Months: months, Price: price}, nil
}

// String renders the intent back into its payload form.
func (i Intent) String() string {
	return EncodePayload(i.Months, i.Price)
}
