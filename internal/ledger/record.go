package ledger

import (
	"fmt"
	"strconv"
	"time"

	"github.com/mazen160/go-random"
)

// Record is one captured payment transaction. ExternalReference is the
// order id the transaction links to, empty when there is none.
type Record struct {
	ID                string   `json:"transactionId"`
	Date              string   `json:"transactionDate"`
	PaymentMethod     string   `json:"paymentMethod"`
	Amount            float64  `json:"amount"`
	Currency          string   `json:"currency"`
	ExternalReference string   `json:"orderId"`
	Status            string   `json:"status"`
	Merchant          string   `json:"merchant"`
	Items             []string `json:"items"`
}

// NaturalKey identifies a transaction independently of when it was captured.
// Two records with equal keys are the same transaction.
type NaturalKey struct {
	Date              string
	ExternalReference string
	Amount            float64
	PaymentMethod     string
}

func (r Record) Key() NaturalKey {
	return NaturalKey{
		Date:              r.Date,
		ExternalReference: r.ExternalReference,
		Amount:            r.Amount,
		PaymentMethod:     r.PaymentMethod,
	}
}

// NewRecordID generates a store key of the form <date>_<reference>_<suffix>,
// a missing reference is replaced with the current unix milliseconds.
func NewRecordID(date, reference string, now time.Time) (string, error) {
	if reference == "" {
		reference = strconv.FormatInt(now.UnixMilli(), 10)
	}
	suffix, err := random.String(9)
	if err != nil {
		return "", fmt.Errorf("generate record id: %w", err)
	}
	return fmt.Sprintf("%s_%s_%s", date, reference, suffix), nil
}
