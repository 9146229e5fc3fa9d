package txparse

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var ErrMalformedAmount = errors.New("malformed amount")

type Amount struct {
	Value    float64
	Currency string
}

const DefaultCurrency = "USD"

var currencySymbols = map[rune]string{
	'$': "USD",
	'€': "EUR",
	'£': "GBP",
}

var (
	amountNoise = regexp.MustCompile(`[^0-9.,+-]`)
	// plain digits, or digits grouped by thousands separators, with an optional fraction
	wellFormedAmount = regexp.MustCompile(`^[+-]?(\d+|\d{1,3}(,\d{3})+)(\.\d+)?$`)
)

// ParseAmount parses formatted money such as "-$27.91" or "£1,204.00".
//
// The currency comes from the first symbol after an optional sign, anything
// other than $, € or £ falls back to USD. Malformed numbers return
// ErrMalformedAmount with a NaN value.
func ParseAmount(text string) (Amount, error) {
	trimmed := strings.TrimSpace(text)
	out := Amount{Value: math.NaN(), Currency: detectCurrency(trimmed)}

	numeric := amountNoise.ReplaceAllString(trimmed, "")
	if !wellFormedAmount.MatchString(numeric) {
		return out, fmt.Errorf("%w: %q", ErrMalformedAmount, text)
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(numeric, ",", ""), 64)
	if err != nil {
		return out, fmt.Errorf("%w: %q: %w", ErrMalformedAmount, text, err)
	}
	out.Value = value
	return out, nil
}

func detectCurrency(text string) string {
	text = strings.TrimLeft(text, "+- ")
	for _, r := range text {
		code, ok := currencySymbols[r]
		if ok {
			return code
		}
		return DefaultCurrency
	}
	return DefaultCurrency
}
