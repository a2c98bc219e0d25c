package pipeline

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"
	pdf "github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"movedesk/internal/util"
)

// ExtractedMail is everything the intake pipeline pulls out of one raw email:
// the inventory lines to feed the upstream description parser plus the
// metadata the move-request detector looks at.
type ExtractedMail struct {
	Subject         string
	Text            string
	HTML            string
	Lines           []string
	AttachmentNames []string
}

// Description joins the extracted inventory lines into the free-text blob the
// parse endpoint expects.
func (e ExtractedMail) Description() string {
	return strings.Join(e.Lines, "\n")
}

var ignorePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^--+$`),
	regexp.MustCompile(`(?i)^(thanks|thank you|best regards|regards|sent from)`),
	regexp.MustCompile(`^(תודה|בברכה|נשלח מ)`),
	regexp.MustCompile(`(?i)^(tel|phone|mobile|e-?mail)[:\s]`),
	regexp.MustCompile(`^(טל|נייד|דוא"ל)[:\s]`),
	regexp.MustCompile(`(?i)^http`),
}

// ExtractDescription parses one raw RFC 5322 message and collects inventory
// lines from the plain body, HTML tables and XLSX/PDF attachments. Attachment
// parse failures are skipped, not fatal: a quote email with a broken PDF still
// has its body.
func ExtractDescription(raw []byte) (ExtractedMail, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return ExtractedMail{}, err
	}

	out := ExtractedMail{
		Subject: env.GetHeader("Subject"),
		Text:    env.Text,
		HTML:    env.HTML,
	}

	if env.Text != "" {
		out.Lines = append(out.Lines, inventoryLinesFromText(env.Text)...)
	}
	if env.HTML != "" {
		out.Lines = append(out.Lines, inventoryLinesFromHTML(env.HTML)...)
	}

	for _, att := range env.Attachments {
		filename := strings.TrimSpace(att.FileName)
		if filename == "" {
			filename = "attachment"
		}
		out.AttachmentNames = append(out.AttachmentNames, filename)
		lower := strings.ToLower(filename)

		if strings.HasSuffix(lower, ".xlsx") || strings.HasSuffix(lower, ".xls") {
			if extra, err := inventoryLinesFromXLSX(att.Content); err == nil {
				out.Lines = append(out.Lines, extra...)
			}
		}
		if strings.HasSuffix(lower, ".pdf") {
			if extra, err := inventoryLinesFromPDF(att.Content); err == nil {
				out.Lines = append(out.Lines, extra...)
			}
		}
	}

	out.Lines = dedupeLines(out.Lines)
	return out, nil
}

func inventoryLinesFromText(text string) []string {
	lines := splitLines(text)
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		compact := util.CollapseSpaces(line)
		if compact == "" || isLikelyNoise(compact) {
			continue
		}
		// A greeting or one-word reply carries no inventory; keep anything
		// with letters and either a count or some substance.
		hasLetters := regexp.MustCompile(`[A-Za-zא-ת]`).MatchString(compact)
		hasDigit := regexp.MustCompile(`\d`).MatchString(compact)
		if !hasLetters || (!hasDigit && len([]rune(compact)) < 8) {
			continue
		}
		out = append(out, compact)
	}
	return out
}

func inventoryLinesFromHTML(html string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var out []string
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		rows := table.Find("tr")
		if rows.Length() < 2 {
			return
		}

		headers := []string{}
		rows.First().Find("th,td").Each(func(_ int, cell *goquery.Selection) {
			headers = append(headers, strings.ToLower(strings.TrimSpace(cell.Text())))
		})

		nameIdx := findHeaderIndex(headers, []string{"item", "furniture", "description", "פריט", "רהיט", "תיאור"})
		qtyIdx := findHeaderIndex(headers, []string{"qty", "quantity", "count", "כמות", "מספר"})
		roomIdx := findHeaderIndex(headers, []string{"room", "location", "חדר", "מיקום"})

		rows.Slice(1, rows.Length()).Each(func(_ int, row *goquery.Selection) {
			cells := []string{}
			row.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, util.CollapseSpaces(cell.Text()))
			})
			if len(cells) == 0 {
				return
			}

			name := pickCell(cells, nameIdx, 0)
			if strings.TrimSpace(name) == "" {
				return
			}

			parts := []string{name}
			if qty := pickCell(cells, qtyIdx, -1); qty != "" {
				parts = append(parts, "x"+qty)
			}
			if room := pickCell(cells, roomIdx, -1); room != "" {
				parts = append(parts, "("+room+")")
			}
			out = append(out, strings.Join(parts, " "))
		})
	})

	return out
}

func inventoryLinesFromXLSX(content []byte) ([]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			continue
		}

		nameIdx, qtyIdx, roomIdx := -1, -1, -1
		for i, row := range rows {
			cells := normalizeCells(row)
			if len(cells) == 0 {
				continue
			}
			if i < 3 && nameIdx < 0 {
				nameIdx, qtyIdx, roomIdx = inferInventoryColumns(cells)
				if nameIdx >= 0 || qtyIdx >= 0 {
					continue
				}
			}
			if nameIdx < 0 {
				nameIdx, qtyIdx, roomIdx = 0, 1, 2
			}

			name := pickCell(cells, nameIdx, 0)
			if strings.TrimSpace(name) == "" {
				continue
			}
			parts := []string{name}
			if qty := pickCell(cells, qtyIdx, -1); qty != "" {
				parts = append(parts, "x"+qty)
			}
			if room := pickCell(cells, roomIdx, -1); room != "" {
				parts = append(parts, "("+room+")")
			}
			out = append(out, strings.Join(parts, " "))
		}
	}

	return out, nil
}

func inventoryLinesFromPDF(content []byte) ([]string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, err
	}

	var out []string
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		out = append(out, inventoryLinesFromText(text)...)
	}
	return out, nil
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isLikelyNoise(line string) bool {
	for _, re := range ignorePatterns {
		if re.MatchString(strings.TrimSpace(line)) {
			return true
		}
	}
	return false
}

func dedupeLines(lines []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		key := strings.ToLower(line)
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, line)
	}
	return out
}

func findHeaderIndex(headers []string, probes []string) int {
	for i, h := range headers {
		for _, probe := range probes {
			if strings.Contains(h, probe) {
				return i
			}
		}
	}
	return -1
}

func pickCell(cells []string, idx int, fallback int) string {
	if idx >= 0 && idx < len(cells) {
		return strings.TrimSpace(cells[idx])
	}
	if fallback >= 0 && fallback < len(cells) {
		return strings.TrimSpace(cells[fallback])
	}
	return ""
}

func inferInventoryColumns(headers []string) (nameIdx, qtyIdx, roomIdx int) {
	norm := make([]string, 0, len(headers))
	for _, h := range headers {
		norm = append(norm, strings.ToLower(h))
	}
	nameIdx = findHeaderIndex(norm, []string{"item", "furniture", "description", "פריט", "רהיט", "תיאור"})
	qtyIdx = findHeaderIndex(norm, []string{"qty", "quantity", "count", "כמות"})
	roomIdx = findHeaderIndex(norm, []string{"room", "location", "חדר", "מיקום"})
	return
}

func normalizeCells(row []string) []string {
	out := make([]string, 0, len(row))
	for _, c := range row {
		out = append(out, util.CollapseSpaces(c))
	}
	return out
}
