package musiclink

import (
	"strings"
)

// ParseCSV splits a lookup table into rows of fields. Rows are separated by
// '\n'. A double quote toggles quoted mode unless it directly follows a
// backslash, in which case it stays literal text. Commas inside quotes do not
// separate fields. Each field is trimmed and loses one surrounding quote pair.
func ParseCSV(text string) [][]string {
	lines := strings.Split(text, "\n")
	rows := make([][]string, 0, len(lines))
	for _, line := range lines {
		rows = append(rows, parseCSVLine(line))
	}
	return rows
}

func parseCSVLine(line string) []string {
	var fields []string
	start := 0
	inQuotes := false

	for i := 0; i < len(line); i++ {
		switch {
		case line[i] == '"' && (i == 0 || line[i-1] != '\\'):
			inQuotes = !inQuotes
		case line[i] == ',' && !inQuotes:
			fields = append(fields, cleanCSVField(line[start:i]))
			start = i + 1
		}
	}

	return append(fields, cleanCSVField(line[start:]))
}

func cleanCSVField(field string) string {
	field = strings.TrimSpace(field)
	if len(field) >= 2 && field[0] == '"' && field[len(field)-1] == '"' {
		return field[1 : len(field)-1]
	}
	return field
}
