package utils

import (
	"strings"
	"testing"
)

type acquireArgs struct {
	Symbol string `json:"symbol"`
	Market string `json:"market"`
}

func TestRepairJSON(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{
			name:  "Missing quotes around keys",
			input: `{symbol: "AAPL", market: "US"}`,
		},
		{
			name:  "Single quotes",
			input: `{'symbol': 'AAPL', 'market': 'US'}`,
		},
		{
			name:  "Trailing comma",
			input: `{"symbol": "AAPL", "market": "US",}`,
		},
		{
			name:  "Unclosed object",
			input: `{"symbol": "AAPL", "market": "US"`,
		},
		{
			name:  "Markdown code block",
			input: "```json\n{\"symbol\": \"AAPL\", \"market\": \"US\"}\n```",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			repaired, err := RepairJSON(tc.input)
			if err != nil {
				t.Fatalf("RepairJSON failed: %v", err)
			}
			if !strings.Contains(repaired, `"symbol"`) {
				t.Errorf("expected repaired JSON with quoted keys, got %s", repaired)
			}
		})
	}
}

func TestParseHJSON(t *testing.T) {
	input := `{
		# which filing to pull
		symbol: AAPL
		// discovery market
		market: US
	}`

	result, err := ParseHJSON(input)
	if err != nil {
		t.Fatalf("ParseHJSON failed: %v", err)
	}
	if !strings.Contains(result, `"symbol":"AAPL"`) {
		t.Errorf("expected standard JSON output, got %s", result)
	}
}

func TestParseHJSONToStruct(t *testing.T) {
	input := `{
		symbol: "600143"
		market: CN
	}`

	var args acquireArgs
	if err := ParseHJSONToStruct(input, &args); err != nil {
		t.Fatalf("ParseHJSONToStruct failed: %v", err)
	}
	if args.Symbol != "600143" || args.Market != "CN" {
		t.Errorf("unexpected decode result: %+v", args)
	}
}

func TestSmartParse(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{
			name:  "Valid JSON",
			input: `{"symbol": "AAPL", "market": "US"}`,
		},
		{
			name:  "Needs repair",
			input: `{symbol: 'AAPL', market: 'US'}`,
		},
		{
			name: "Hjson with comments",
			input: `{
				# args typed by hand
				symbol: AAPL
				market: US
			}`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var args acquireArgs
			if _, err := SmartParse(tc.input, &args); err != nil {
				t.Fatalf("SmartParse failed: %v", err)
			}
			if args.Symbol != "AAPL" {
				t.Errorf("expected symbol AAPL, got %q", args.Symbol)
			}
			if args.Market != "US" {
				t.Errorf("expected market US, got %q", args.Market)
			}
		})
	}
}

func TestCleanMarkdown(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Plain text untouched",
			input:    "Revenue grew 12% year over year.",
			expected: "Revenue grew 12% year over year.",
		},
		{
			name:     "Markdown fence stripped",
			input:    "```markdown\n# Quarterly Report\nRevenue grew.\n```",
			expected: "# Quarterly Report\nRevenue grew.",
		},
		{
			name:     "Generic fence stripped",
			input:    "```\nNet income was flat.\n```",
			expected: "Net income was flat.",
		},
		{
			name:     "Surrounding whitespace trimmed",
			input:    "  \n\nCash flow was positive.\n ",
			expected: "Cash flow was positive.",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CleanMarkdown(tc.input); got != tc.expected {
				t.Errorf("CleanMarkdown(%q) = %q, want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestValidateMarkdown(t *testing.T) {
	if !ValidateMarkdown("# Report\n\n- revenue\n- profit\n") {
		t.Error("expected well-formed markdown to validate")
	}
	if !ValidateMarkdown("") {
		t.Error("goldmark accepts empty input; validation should too")
	}
}
