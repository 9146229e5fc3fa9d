package export

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"txexport/internal/ledger"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/xuri/excelize/v2"
)

type Format string

const (
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
	FormatXLSX  Format = "xlsx"
	FormatTable Format = "table"
)

// SheetName is the worksheet the XLSX rendering writes to.
const SheetName = "Transactions"

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON, FormatXLSX, FormatTable:
		return f, nil
	}
	return "", fmt.Errorf("unknown export format %q (csv, json, xlsx, table)", s)
}

// Extension is the file extension conventionally used for f.
func (f Format) Extension() string {
	if f == FormatTable {
		return "txt"
	}
	return string(f)
}

func Write(w io.Writer, format Format, session ledger.Session) error {
	switch format {
	case FormatCSV:
		return CSV(w, session)
	case FormatJSON:
		return JSON(w, session)
	case FormatXLSX:
		return XLSX(w, session)
	case FormatTable:
		_, err := io.WriteString(w, Pretty(session)+"\n")
		return err
	}
	return fmt.Errorf("unknown export format %q", format)
}

// CSV writes every value quoted, embedded quotes are doubled. An empty
// session renders nothing.
func CSV(w io.Writer, session ledger.Session) error {
	if len(session.Records) == 0 {
		return nil
	}

	var out strings.Builder
	for i, row := range Table(session) {
		if i > 0 {
			out.WriteByte('\n')
		}
		if i == 0 {
			out.WriteString(strings.Join(row, ","))
			continue
		}
		for j, value := range row {
			if j > 0 {
				out.WriteByte(',')
			}
			out.WriteByte('"')
			out.WriteString(strings.ReplaceAll(value, `"`, `""`))
			out.WriteByte('"')
		}
	}
	_, err := io.WriteString(w, out.String())
	return err
}

// JSON writes the whole session, indented.
func JSON(w io.Writer, session ledger.Session) error {
	out, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(out, '\n'))
	return err
}

// XLSX writes the rows of CSV to a single worksheet, amounts stay numeric.
func XLSX(w io.Writer, session ledger.Session) error {
	f := excelize.NewFile()
	defer f.Close()

	err := f.SetSheetName("Sheet1", SheetName)
	if err != nil {
		return err
	}

	records := Sorted(session)
	slots := MaxItems(records)
	header := Header(records)
	err = f.SetSheetRow(SheetName, "A1", &header)
	if err != nil {
		return err
	}

	for i, r := range records {
		row := []any{}
		for j, value := range Row(r, slots) {
			if j == 2 {
				row = append(row, r.Amount)
				continue
			}
			row = append(row, value)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		err = f.SetSheetRow(SheetName, cell, &row)
		if err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	_, err = f.WriteTo(w)
	return err
}

// Pretty renders the records as a table for a terminal.
func Pretty(session ledger.Session) string {
	rows := Table(session)

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)

	header := table.Row{}
	for _, h := range rows[0] {
		header = append(header, h)
	}
	t.AppendHeader(header)
	for _, row := range rows[1:] {
		r := table.Row{}
		for _, value := range row {
			r = append(r, value)
		}
		t.AppendRow(r)
	}
	t.AppendFooter(table.Row{"Total", len(rows) - 1})
	return t.Render()
}

// Summary describes the session at a glance.
func Summary(session ledger.Session) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)

	lastUpdate := "never"
	if !session.LastUpdate.IsZero() {
		lastUpdate = session.LastUpdate.Format("2006-01-02 15:04:05 MST")
	}
	t.AppendRows([]table.Row{
		{"Transactions", session.Total},
		{"Items", session.ItemCount()},
		{"Captures", session.Captures},
		{"Last update", lastUpdate},
		{"Pages to capture", session.PagesToCapture},
	})

	if session.MultiPageRun != nil {
		run := session.MultiPageRun
		t.AppendRow(table.Row{"Active run", fmt.Sprintf("page %d/%d", run.CurrentPage, run.TotalPages)})
	}
	if session.StopRequested {
		t.AppendRow(table.Row{"Stop requested", "yes"})
	}
	if session.LastRun != nil {
		last := session.LastRun
		status := fmt.Sprintf(
			"%s after %d/%d pages: %d captured, %d failed, %d skipped",
			last.Outcome, last.PagesCaptured, last.TotalPages,
			last.Captured, last.Failed, last.Skipped,
		)
		if last.Reason != "" {
			status += " (" + last.Reason + ")"
		}
		t.AppendRow(table.Row{"Last run", status})
	}
	return t.Render()
}
