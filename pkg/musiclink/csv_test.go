package musiclink

import (
	"reflect"
	"testing"
)

func TestParseCSV(t *testing.T) {
	t.Helper()

	tests := []struct {
		name     string
		input    string
		expected [][]string
	}{
		{
			name:     "Quoted comma",
			input:    `A,"B,C",D`,
			expected: [][]string{{"A", "B,C", "D"}},
		},
		{
			name:     "Escaped quote is literal",
			input:    `A,\"B,C`,
			expected: [][]string{{"A", `\"B`, "C"}},
		},
		{
			name:     "Fields are trimmed",
			input:    " 1 ,  https://open.spotify.com/track/abc  ",
			expected: [][]string{{"1", "https://open.spotify.com/track/abc"}},
		},
		{
			name:     "Carriage returns are trimmed",
			input:    "Card#,URL\r\n7,x\r\n",
			expected: [][]string{{"Card#", "URL"}, {"7", "x"}, {""}},
		},
		{
			name:     "Only one quote pair stripped",
			input:    `""quoted""`,
			expected: [][]string{{`"quoted"`}},
		},
		{
			name:     "Empty input",
			input:    "",
			expected: [][]string{{""}},
		},
		{
			name:     "Empty fields",
			input:    "a,,b,",
			expected: [][]string{{"a", "", "b", ""}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseCSV(tt.input)
			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("ParseCSV(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}
