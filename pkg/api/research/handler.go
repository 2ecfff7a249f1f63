// Package research provides the HTTP API for report acquisition, analysis
// and rendered report retrieval.
package research

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"finresearch/pkg/core/analysis"
	"finresearch/pkg/core/locate"
	"finresearch/pkg/core/pipeline"
	"finresearch/pkg/core/report"
	"finresearch/pkg/core/store"
	"finresearch/pkg/core/utils"
)

// Acquirer runs one acquisition. *pipeline.Orchestrator satisfies it.
type Acquirer interface {
	Acquire(ctx context.Context, target string, market locate.Market) pipeline.Outcome
}

// Deps bundles everything the handlers need. Repo may carry a nil pool and
// Saver may be nil when persistence is disabled.
type Deps struct {
	Acquirer      Acquirer
	Engine        *analysis.Engine
	Renderer      *report.Renderer
	Saver         *report.Saver
	Repo          *store.ReportRepo
	DefaultMarket locate.Market
	PDFSupport    bool
	Logger        zerolog.Logger
}

var deps Deps

// InitHandler initializes the handlers with their dependencies.
func InitHandler(d Deps) {
	if d.DefaultMarket == "" {
		d.DefaultMarket = locate.DefaultMarket
	}
	if d.Renderer == nil {
		d.Renderer = report.NewRenderer()
	}
	deps = d
}

// AcquireRequest drives POST /api/research/acquire. Target is a symbol or
// an absolute report URL. Save implies Analyze.
type AcquireRequest struct {
	Target  string `json:"target"`
	Market  string `json:"market"`
	Analyze bool   `json:"analyze"`
	Save    bool   `json:"save"`
}

// AcquireResponse carries the pipeline outcome plus optional analysis and
// archive results.
type AcquireResponse struct {
	pipeline.Outcome
	Review     *analysis.Result `json:"review,omitempty"`
	ReportPath string           `json:"report_path,omitempty"`
	ElapsedMs  int64            `json:"elapsed_ms"`
}

// HandleAcquire handles POST /api/research/acquire.
func HandleAcquire(w http.ResponseWriter, r *http.Request) {
	writeCORS(w, "POST, OPTIONS")
	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req AcquireRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Target == "" {
		http.Error(w, "target is required (symbol or report URL)", http.StatusBadRequest)
		return
	}

	market := deps.DefaultMarket
	if req.Market != "" {
		market = locate.ParseMarket(req.Market)
	}

	startTime := time.Now()
	outcome := deps.Acquirer.Acquire(r.Context(), req.Target, market)
	resp := AcquireResponse{Outcome: outcome}

	if outcome.OK && (req.Analyze || req.Save) {
		review := deps.Engine.Analyze(outcome.Extraction.Text)
		resp.Review = &review

		if req.Save {
			if deps.Saver == nil {
				deps.Logger.Warn().Str("target", req.Target).Msg("save requested but no saver configured")
			} else if path, err := deps.Saver.Save(r.Context(), *outcome.Metadata, *outcome.Extraction, review); err != nil {
				deps.Logger.Warn().Err(err).Str("target", req.Target).Msg("report save failed")
			} else {
				resp.ReportPath = path
			}
		}
	}

	resp.ElapsedMs = time.Since(startTime).Milliseconds()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// AnalyzeRequest drives POST /api/research/analyze. Callers pass either
// raw report text or a target to acquire first; text wins when both are
// present.
type AnalyzeRequest struct {
	Text   string `json:"text"`
	Target string `json:"target"`
	Market string `json:"market"`
}

// HandleAnalyze handles POST /api/research/analyze. With text it runs the
// rule-based review directly, stripping outer markdown fences first. With
// a target it runs the full acquisition chain and reviews the result.
func HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	writeCORS(w, "POST, OPTIONS")
	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if text := utils.CleanMarkdown(req.Text); text != "" {
		review := deps.Engine.Analyze(text)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(review)
		return
	}
	if req.Target == "" {
		http.Error(w, "text or target is required", http.StatusBadRequest)
		return
	}

	market := deps.DefaultMarket
	if req.Market != "" {
		market = locate.ParseMarket(req.Market)
	}

	startTime := time.Now()
	outcome := deps.Acquirer.Acquire(r.Context(), req.Target, market)
	resp := AcquireResponse{Outcome: outcome}
	if outcome.OK {
		review := deps.Engine.Analyze(outcome.Extraction.Text)
		resp.Review = &review
	}
	resp.ElapsedMs = time.Since(startTime).Milliseconds()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// HandleReport handles GET /api/research/report?symbol=AAPL&market=US.
// It serves the rendered HTML review page, reusing the latest stored
// record when the database holds one and running a fresh acquisition
// otherwise. Acquisition failures come back as a JSON outcome body.
func HandleReport(w http.ResponseWriter, r *http.Request) {
	writeCORS(w, "GET, OPTIONS")
	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != "GET" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		http.Error(w, "symbol query parameter is required", http.StatusBadRequest)
		return
	}
	market := deps.DefaultMarket
	if v := r.URL.Query().Get("market"); v != "" {
		market = locate.ParseMarket(v)
	}

	if deps.Repo != nil {
		if rec, err := deps.Repo.Latest(r.Context(), symbol, market); err == nil && rec.Review != nil {
			writeReportPage(w, report.PageFromRecord(rec))
			return
		}
		// Disabled stores and cache misses both fall through to a fresh run.
	}

	outcome := deps.Acquirer.Acquire(r.Context(), symbol, market)
	if !outcome.OK {
		status := http.StatusBadGateway
		if outcome.Failure != nil {
			switch outcome.Failure.Kind {
			case pipeline.KindNotFound:
				status = http.StatusNotFound
			case pipeline.KindUnsupportedMarket:
				status = http.StatusBadRequest
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(outcome)
		return
	}

	review := deps.Engine.Analyze(outcome.Extraction.Text)
	writeReportPage(w, report.PageFor(*outcome.Metadata, review))
}

func writeReportPage(w http.ResponseWriter, page report.Page) {
	html, err := deps.Renderer.Render(page)
	if err != nil {
		deps.Logger.Error().Err(err).Str("symbol", page.Symbol).Msg("report render failed")
		http.Error(w, "Failed to render report", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(html))
}

// HealthResponse reports process capabilities for monitoring.
type HealthResponse struct {
	Status     string `json:"status"`
	PDFSupport bool   `json:"pdf_support"`
	Store      string `json:"store"`
}

// HandleHealth handles GET /api/health.
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeCORS(w, "GET, OPTIONS")
	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	storeState := "disabled"
	if deps.Repo != nil && deps.Repo.Enabled() {
		storeState = "enabled"
	}
	resp := HealthResponse{
		Status:     "ok",
		PDFSupport: deps.PDFSupport,
		Store:      storeState,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// writeCORS adds the permissive headers the local frontend needs.
func writeCORS(w http.ResponseWriter, methods string) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", methods)
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}
