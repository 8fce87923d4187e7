package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// Sheet names of the positioning workbook.
const (
	SheetPositioning = "Positioning"
	SheetSummary     = "Summary"
)

var positioningHeader = []any{
	"Family", "Section", "Method", "Channel", "Invocation", "Metric", "Value",
	"Status", "Range Lo", "Range Hi", "Position", "Notes", "Reason",
}

// WriteXLSX stores the report as a workbook with one row per record and a
// per-family section count sheet.
func WriteXLSX(r *Report, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	err := f.SetSheetName(f.GetSheetName(0), SheetPositioning)
	if err != nil {
		return fmt.Errorf("report: xlsx: %w", err)
	}

	err = f.SetSheetRow(SheetPositioning, "A1", &positioningHeader)
	if err != nil {
		return fmt.Errorf("report: xlsx: %w", err)
	}

	row := 2

	for _, fam := range r.Families {
		for _, s := range fam.Sections {
			for _, rec := range s.Records {
				values := []any{
					string(fam.Family), string(s.Kind), rec.Method, rec.Channel, rec.Invocation,
					rec.Metric, FormatValue(rec.Value), string(rec.Status), "", "",
					string(rec.Position), joinNotes(rec.Notes), rec.Reason,
				}
				if rec.Range != nil {
					values[8], values[9] = rec.Range.Lo, rec.Range.Hi
				}

				cell, err := excelize.CoordinatesToCellName(1, row)
				if err != nil {
					return fmt.Errorf("report: xlsx: %w", err)
				}

				err = f.SetSheetRow(SheetPositioning, cell, &values)
				if err != nil {
					return fmt.Errorf("report: xlsx: %w", err)
				}

				row++
			}
		}
	}

	err = writeSummarySheet(f, r)
	if err != nil {
		return err
	}

	err = f.SaveAs(path)
	if err != nil {
		return fmt.Errorf("report: xlsx: %w", err)
	}

	return nil
}

func writeSummarySheet(f *excelize.File, r *Report) error {
	_, err := f.NewSheet(SheetSummary)
	if err != nil {
		return fmt.Errorf("report: xlsx: %w", err)
	}

	for i, fam := range r.Families {
		if i == 0 {
			header := []any{"Family"}
			for _, s := range fam.Sections {
				header = append(header, string(s.Kind))
			}

			err := f.SetSheetRow(SheetSummary, "A1", &header)
			if err != nil {
				return fmt.Errorf("report: xlsx: %w", err)
			}
		}

		counts := []any{string(fam.Family)}
		for _, s := range fam.Sections {
			counts = append(counts, len(s.Records))
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("report: xlsx: %w", err)
		}

		err = f.SetSheetRow(SheetSummary, cell, &counts)
		if err != nil {
			return fmt.Errorf("report: xlsx: %w", err)
		}
	}

	return nil
}
