package pipeline

import (
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"movedesk/internal"
)

// ExportDraftToXLSX writes a review sheet for one draft: the current item
// list with flags and prices, clarification status per row. Pending rows sort
// to the top so the reviewer sees what still blocks submission.
func ExportDraftToXLSX(items []internal.ParsedItem, pending []internal.ClarificationEntry, outputPath string) error {
	pendingIdx := map[int]bool{}
	for _, e := range pending {
		pendingIdx[e.ItemIndex] = true
	}

	type row struct {
		position int
		item     internal.ParsedItem
		pending  bool
	}
	rows := make([]row, 0, len(items))
	for i, item := range items {
		rows = append(rows, row{position: i + 1, item: item, pending: pendingIdx[i]})
	}
	ordered := make([]row, 0, len(rows))
	for _, r := range rows {
		if r.pending {
			ordered = append(ordered, r)
		}
	}
	for _, r := range rows {
		if !r.pending {
			ordered = append(ordered, r)
		}
	}

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	headers := []string{
		"line_no", "item_type_id", "name_en", "name_he", "quantity", "room",
		"fragile", "assembly", "disassembly", "special_handling", "notes",
		"unit_price", "status",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, r := range ordered {
		rowNo := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, rowNo)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, r.position)
		set(2, r.item.ItemTypeID)
		set(3, r.item.NameEn)
		set(4, r.item.NameHe)
		set(5, r.item.Quantity)
		set(6, r.item.Room)
		set(7, boolMark(r.item.IsFragile))
		set(8, boolMark(r.item.RequiresAssembly))
		set(9, boolMark(r.item.RequiresDisassembly))
		set(10, boolMark(r.item.RequiresSpecialHandling))
		set(11, r.item.SpecialNotes)
		if r.item.UnitPrice != nil {
			set(12, r.item.UnitPrice.InexactFloat64())
		}
		if r.pending {
			set(13, "needs_clarification")
		} else {
			set(13, "resolved")
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func boolMark(v bool) string {
	if v {
		return "yes"
	}
	return ""
}
