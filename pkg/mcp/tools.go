package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"finresearch/pkg/core/analysis"
	"finresearch/pkg/core/locate"
	"finresearch/pkg/core/pipeline"
	"finresearch/pkg/core/utils"
)

// ErrInvalidArgs marks argument validation failures so the dispatcher can
// answer with InvalidParams instead of InternalError.
var ErrInvalidArgs = errors.New("invalid arguments")

func invalidArgs(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgs, fmt.Sprintf(format, a...))
}

// Tool pairs the protocol declaration with its executor.
type Tool struct {
	sdk.Tool // Name, Description, InputSchema
	Execute  func(ctx context.Context, s *Server, args json.RawMessage) (any, error)
}

// decodeArgs parses tool arguments leniently. Clients hand-typing calls or
// shelling out produce sloppy JSON often enough that the strict decoder
// alone rejects too much. Arguments may also arrive double-encoded as a
// JSON string; unwrap that first.
func decodeArgs(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return nil
	}
	payload := string(raw)
	var wrapped string
	if err := json.Unmarshal(raw, &wrapped); err == nil {
		payload = wrapped
	}
	if _, err := utils.SmartParse(payload, out); err != nil {
		return invalidArgs("could not parse tool arguments")
	}
	return nil
}

func allTools() []*Tool {
	return []*Tool{FetchLatestReport, ExtractReportText, AnalyzeText, AnalyzeSymbol}
}

// FetchLatestReport locates the newest periodic filing for a symbol without
// downloading it.
var FetchLatestReport = &Tool{
	Tool: sdk.Tool{
		Name:        "fetch_latest_report",
		Description: "Locate the most recent quarterly or annual report filing for a stock symbol. Returns filing metadata including title, date and the document URL.",
		Annotations: &sdk.ToolAnnotations{Title: "Fetch Latest Report"},
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"symbol": map[string]any{
					"type":        "string",
					"description": "Stock ticker or code, e.g. AAPL or 600143",
				},
				"market": map[string]any{
					"type":        "string",
					"description": "Market the symbol trades in",
					"enum":        []string{"US", "CN"},
				},
			},
			"required": []string{"symbol"},
		},
	},
	Execute: execFetchLatestReport,
}

func execFetchLatestReport(ctx context.Context, s *Server, raw json.RawMessage) (any, error) {
	var args struct {
		Symbol string `json:"symbol"`
		Market string `json:"market"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if args.Symbol == "" {
		return nil, invalidArgs("symbol is required")
	}

	market := s.deps.DefaultMarket
	if args.Market != "" {
		market = locate.ParseMarket(args.Market)
	}

	meta, err := s.deps.Locator.Locate(ctx, args.Symbol, market)
	if err != nil {
		return nil, fmt.Errorf("filing discovery failed: %w", err)
	}
	return meta, nil
}

// ExtractReportText downloads a report URL and returns its plain text. The
// pipeline handles index pages, HTML and PDF; failures come back as a
// structured outcome rather than a protocol error.
var ExtractReportText = &Tool{
	Tool: sdk.Tool{
		Name:        "extract_report_text",
		Description: "Download a report document URL and extract its plain text. Index pages are resolved to the primary document first. Returns the acquisition outcome with the text or a stage-tagged failure.",
		Annotations: &sdk.ToolAnnotations{Title: "Extract Report Text"},
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"url": map[string]any{
					"type":        "string",
					"description": "Absolute http(s) URL of a report document or filing index page",
				},
			},
			"required": []string{"url"},
		},
	},
	Execute: execExtractReportText,
}

func execExtractReportText(ctx context.Context, s *Server, raw json.RawMessage) (any, error) {
	var args struct {
		URL string `json:"url"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if args.URL == "" {
		return nil, invalidArgs("url is required")
	}

	outcome := s.deps.Acquirer.Acquire(ctx, args.URL, s.deps.DefaultMarket)
	return outcome, nil
}

// AnalyzeText runs the rule-based financial review over caller-supplied text.
var AnalyzeText = &Tool{
	Tool: sdk.Tool{
		Name:        "analyze_text",
		Description: "Run a plain-language financial health review over report text. Detects Chinese-language reports automatically and switches to the A-share analyzer.",
		Annotations: &sdk.ToolAnnotations{Title: "Analyze Text"},
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text": map[string]any{
					"type":        "string",
					"description": "Extracted report text to review",
				},
			},
			"required": []string{"text"},
		},
	},
	Execute: execAnalyzeText,
}

func execAnalyzeText(ctx context.Context, s *Server, raw json.RawMessage) (any, error) {
	var args struct {
		Text string `json:"text"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}

	text := utils.CleanMarkdown(args.Text)
	if text == "" {
		return nil, invalidArgs("text is required")
	}
	return s.deps.Engine.Analyze(text), nil
}

// AnalyzeSymbol runs the full flow: locate, download, extract, review, and
// optionally archive an HTML report.
var AnalyzeSymbol = &Tool{
	Tool: sdk.Tool{
		Name:        "analyze_symbol",
		Description: "Acquire the latest report for a symbol and produce a financial health review in one call. Set save to true to also render and archive an HTML report page.",
		Annotations: &sdk.ToolAnnotations{Title: "Analyze Symbol"},
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"symbol": map[string]any{
					"type":        "string",
					"description": "Stock ticker or code, or an absolute report URL",
				},
				"market": map[string]any{
					"type":        "string",
					"description": "Market the symbol trades in",
					"enum":        []string{"US", "CN"},
				},
				"save": map[string]any{
					"type":        "boolean",
					"description": "Render and archive an HTML report page",
				},
			},
			"required": []string{"symbol"},
		},
	},
	Execute: execAnalyzeSymbol,
}

// symbolReview is the analyze_symbol payload: the acquisition outcome plus
// the review and, when saved, the archived page path.
type symbolReview struct {
	pipeline.Outcome
	Review     *analysis.Result `json:"review,omitempty"`
	ReportPath string           `json:"report_path,omitempty"`
}

func execAnalyzeSymbol(ctx context.Context, s *Server, raw json.RawMessage) (any, error) {
	var args struct {
		Symbol string `json:"symbol"`
		Market string `json:"market"`
		Save   bool   `json:"save"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if args.Symbol == "" {
		return nil, invalidArgs("symbol is required")
	}

	market := s.deps.DefaultMarket
	if args.Market != "" {
		market = locate.ParseMarket(args.Market)
	}

	outcome := s.deps.Acquirer.Acquire(ctx, args.Symbol, market)
	resp := symbolReview{Outcome: outcome}
	if !outcome.OK {
		return resp, nil
	}

	review := s.deps.Engine.Analyze(outcome.Extraction.Text)
	resp.Review = &review

	if args.Save {
		if s.deps.Saver == nil {
			s.deps.Logger.Warn().Str("symbol", args.Symbol).Msg("save requested but no saver configured")
		} else if path, err := s.deps.Saver.Save(ctx, *outcome.Metadata, *outcome.Extraction, review); err != nil {
			s.deps.Logger.Warn().Err(err).Str("symbol", args.Symbol).Msg("report save failed")
		} else {
			resp.ReportPath = path
		}
	}
	return resp, nil
}
