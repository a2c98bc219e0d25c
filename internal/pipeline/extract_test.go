package pipeline

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestInventoryLinesFromText(t *testing.T) {
	text := "Hi,\n\n2 wardrobes with sliding doors\nSofa x1 (living room)\nThanks,\nDana\nTel: 050-0000000\n"
	lines := inventoryLinesFromText(text)
	if len(lines) != 2 {
		t.Fatalf("lines=%v", lines)
	}
	if lines[0] != "2 wardrobes with sliding doors" {
		t.Fatalf("line0=%q", lines[0])
	}
}

func TestInventoryLinesFromTextHebrewSignature(t *testing.T) {
	lines := inventoryLinesFromText("ארון 3 דלתות\nתודה רבה\nבברכה, דנה")
	if len(lines) != 1 || lines[0] != "ארון 3 דלתות" {
		t.Fatalf("lines=%v", lines)
	}
}

func TestInventoryLinesFromHTMLTable(t *testing.T) {
	html := `<html><body><table>
<tr><th>Item</th><th>Qty</th><th>Room</th></tr>
<tr><td>Wardrobe</td><td>2</td><td>Bedroom</td></tr>
<tr><td>Dining table</td><td>1</td><td></td></tr>
</table></body></html>`

	lines := inventoryLinesFromHTML(html)
	if len(lines) != 2 {
		t.Fatalf("lines=%v", lines)
	}
	if lines[0] != "Wardrobe x2 (Bedroom)" {
		t.Fatalf("line0=%q", lines[0])
	}
	if lines[1] != "Dining table x1" {
		t.Fatalf("line1=%q", lines[1])
	}
}

func mkXLSX(rows [][]any) []byte {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	buf := bytes.NewBuffer(nil)
	_, _ = f.WriteTo(buf)
	return buf.Bytes()
}

func TestInventoryLinesFromXLSX(t *testing.T) {
	blob := mkXLSX([][]any{
		{"Item", "Quantity", "Room"},
		{"Wardrobe", 2, "Bedroom"},
		{"Piano", 1, "Living room"},
	})
	lines, err := inventoryLinesFromXLSX(blob)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 2 {
		t.Fatalf("lines=%v", lines)
	}
	if lines[1] != "Piano x1 (Living room)" {
		t.Fatalf("line1=%q", lines[1])
	}
}

func TestExtractDescriptionDedupes(t *testing.T) {
	raw := []byte("From: dana@example.com\r\n" +
		"Subject: Moving quote\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"Sofa x1 (living room)\r\n" +
		"sofa x1 (living room)\r\n" +
		"2 wardrobes\r\n")

	mail, err := ExtractDescription(raw)
	if err != nil {
		t.Fatal(err)
	}
	if mail.Subject != "Moving quote" {
		t.Fatalf("subject=%q", mail.Subject)
	}
	if len(mail.Lines) != 2 {
		t.Fatalf("duplicate line survived: %v", mail.Lines)
	}
}
