package pipeline

import (
	"fmt"
	"os"
	"strings"
)

// DescriptionFromInput builds parser input without going through the mailbox:
// raw text, a text file, or an inventory spreadsheet/PDF on disk.
func DescriptionFromInput(inputType, input string) (string, error) {
	switch inputType {
	case "text":
		return strings.Join(inventoryLinesFromText(input), "\n"), nil
	case "file":
		blob, err := os.ReadFile(input)
		if err != nil {
			return "", err
		}
		return strings.Join(inventoryLinesFromText(string(blob)), "\n"), nil
	case "xlsx":
		blob, err := os.ReadFile(input)
		if err != nil {
			return "", err
		}
		lines, err := inventoryLinesFromXLSX(blob)
		if err != nil {
			return "", err
		}
		return strings.Join(lines, "\n"), nil
	case "pdf":
		blob, err := os.ReadFile(input)
		if err != nil {
			return "", err
		}
		lines, err := inventoryLinesFromPDF(blob)
		if err != nil {
			return "", err
		}
		return strings.Join(lines, "\n"), nil
	default:
		return "", fmt.Errorf("unsupported input type: %s", inputType)
	}
}
