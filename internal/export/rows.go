// Package export renders a capture session. Every rendering is a pure
// function of the session it is given.
package export

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"txexport/internal/ledger"
)

var baseHeader = []string{"Date", "PaymentMethod", "Amount", "Currency", "OrderId", "Status"}

// Sorted returns the records of session newest first. Records of the same
// day are ordered by reference, then id, so the output is stable.
func Sorted(session ledger.Session) []ledger.Record {
	records := make([]ledger.Record, 0, len(session.Records))
	for _, r := range session.Records {
		records = append(records, r)
	}
	slices.SortFunc(records, func(a, b ledger.Record) int {
		c := cmp.Compare(b.Date, a.Date)
		if c != 0 {
			return c
		}
		c = cmp.Compare(a.ExternalReference, b.ExternalReference)
		if c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return records
}

// MaxItems is the largest number of enrichment items on a single record.
func MaxItems(records []ledger.Record) int {
	most := 0
	for _, r := range records {
		most = max(most, len(r.Items))
	}
	return most
}

// Header is the tabular header for records, one Item column per item slot.
func Header(records []ledger.Record) []string {
	header := slices.Clone(baseHeader)
	for i := 1; i <= MaxItems(records); i++ {
		header = append(header, fmt.Sprintf("Item%d", i))
	}
	return header
}

// Row is the tabular rendering of r padded to itemSlots item columns.
func Row(r ledger.Record, itemSlots int) []string {
	row := []string{
		r.Date,
		r.PaymentMethod,
		FormatAmount(r.Amount),
		r.Currency,
		r.ExternalReference,
		r.Status,
	}
	for i := 0; i < itemSlots; i++ {
		item := ""
		if i < len(r.Items) {
			item = r.Items[i]
		}
		row = append(row, item)
	}
	return row
}

// FormatAmount writes the shortest decimal that reads back as amount.
func FormatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}

// Table is the header followed by one row per record, newest first.
func Table(session ledger.Session) [][]string {
	records := Sorted(session)
	slots := MaxItems(records)
	out := [][]string{Header(records)}
	for _, r := range records {
		out = append(out, Row(r, slots))
	}
	return out
}
