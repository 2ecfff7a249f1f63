// Package mcp exposes the research pipeline over the Model Context Protocol:
// a JSON-RPC 2.0 loop on stdio with tools for filing discovery, text
// extraction and analysis, plus report resources.
//
// Only protocol JSON goes to stdout; all diagnostics go to the logger,
// which callers must point at stderr.
package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"finresearch/pkg/core/analysis"
	"finresearch/pkg/core/locate"
	"finresearch/pkg/core/pipeline"
	"finresearch/pkg/core/report"
	"finresearch/pkg/core/store"
)

const (
	serverName      = "finresearch-mcp"
	serverVersion   = "1.0.0"
	protocolVersion = "2024-11-05"
)

// Acquirer runs one acquisition. *pipeline.Orchestrator satisfies it.
type Acquirer interface {
	Acquire(ctx context.Context, target string, market locate.Market) pipeline.Outcome
}

// Deps bundles everything the server needs. Repo and Archive may be nil
// when persistence is disabled.
type Deps struct {
	Locator       pipeline.FilingLocator
	Acquirer      Acquirer
	Engine        *analysis.Engine
	Renderer      *report.Renderer
	Saver         *report.Saver
	Repo          *store.ReportRepo
	Archive       *store.Archive
	DefaultMarket locate.Market
	Logger        zerolog.Logger
}

// Server handles MCP protocol requests.
type Server struct {
	deps  Deps
	tools map[string]*Tool
}

// NewServer creates an MCP server over the given dependencies.
func NewServer(deps Deps) *Server {
	if deps.DefaultMarket == "" {
		deps.DefaultMarket = locate.DefaultMarket
	}
	if deps.Renderer == nil {
		deps.Renderer = report.NewRenderer()
	}
	tools := make(map[string]*Tool)
	for _, t := range allTools() {
		tools[t.Name] = t
	}
	return &Server{deps: deps, tools: tools}
}

// Frames larger than this are rejected rather than buffered.
const maxFrameBytes = 16 * 1024 * 1024

// Run processes newline-delimited requests from r until EOF, writing
// responses to w. Each line is one frame: a malformed line gets a single
// parse-error answer and the loop moves on to the next line, so one bad
// frame never takes the server down. Notifications get no reply.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameBytes)
	encoder := json.NewEncoder(w)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var request Request
		if err := json.Unmarshal(line, &request); err != nil {
			s.deps.Logger.Warn().Err(err).Msg("failed to parse request")
			// Parse errors carry no usable ID; JSON-RPC wants a non-null one.
			resp := s.errorResponse(0, ParseError, "Failed to parse request")
			if encodeErr := encoder.Encode(resp); encodeErr != nil {
				return fmt.Errorf("failed to encode error response: %w", encodeErr)
			}
			continue
		}

		response := s.HandleRequest(ctx, &request)
		if response == nil || request.ID == nil {
			continue
		}
		if err := encoder.Encode(response); err != nil {
			return fmt.Errorf("failed to encode response: %w", err)
		}
	}
	return scanner.Err()
}

// HandleRequest processes one request. It returns nil for notifications
// (requests without an ID) on unknown methods; they don't require responses.
func (s *Server) HandleRequest(ctx context.Context, req *Request) *Response {
	requestID := req.ID

	switch req.Method {
	case "initialize":
		return s.handleInitialize(requestID)
	case "tools/list":
		return s.handleToolsList(requestID)
	case "tools/call":
		return s.handleToolsCall(ctx, req, requestID)
	case "resources/list":
		return s.handleResourcesList(ctx, requestID)
	case "resources/read":
		return s.handleResourcesRead(ctx, req, requestID)
	case "ping":
		return &Response{JSONRPC: "2.0", ID: requestID, Result: json.RawMessage(`"pong"`)}
	}

	if requestID == nil {
		return nil
	}
	return s.errorResponse(requestID, MethodNotFound, "Method not found")
}

func (s *Server) handleInitialize(id any) *Response {
	result := map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities": map[string]any{
			"tools":     map[string]any{},
			"resources": map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    serverName,
			"version": serverVersion,
		},
	}
	return s.resultResponse(id, result)
}

func (s *Server) handleToolsList(id any) *Response {
	declarations := make([]sdk.Tool, 0, len(s.tools))
	for _, t := range allTools() {
		declarations = append(declarations, t.Tool)
	}
	return s.resultResponse(id, map[string]any{"tools": declarations})
}

func (s *Server) handleToolsCall(ctx context.Context, req *Request, id any) *Response {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(id, InvalidParams, "Invalid parameters")
	}

	tool, ok := s.tools[params.Name]
	if !ok {
		return s.errorResponse(id, InvalidParams, "Unknown tool: "+params.Name)
	}

	s.deps.Logger.Debug().Str("tool", params.Name).Msg("tool call")
	data, err := tool.Execute(ctx, s, params.Arguments)
	if err != nil {
		code := InternalError
		if errors.Is(err, ErrInvalidArgs) {
			code = InvalidParams
		}
		return s.errorResponse(id, code, err.Error())
	}
	return s.successResponse(id, data)
}

func (s *Server) handleResourcesList(ctx context.Context, id any) *Response {
	return s.resultResponse(id, map[string]any{"resources": s.listResources(ctx)})
}

func (s *Server) handleResourcesRead(ctx context.Context, req *Request, id any) *Response {
	var params ResourceReadParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.URI == "" {
		return s.errorResponse(id, InvalidParams, "uri is required")
	}

	contents, err := s.readResource(ctx, params.URI)
	if err != nil {
		var notFound *ResourceNotFoundError
		if errors.As(err, &notFound) {
			return s.errorResponse(id, ResourceNotFound, err.Error())
		}
		return s.errorResponse(id, InternalError, err.Error())
	}
	return s.resultResponse(id, map[string]any{"contents": contents})
}

// successResponse wraps tool output in the MCP content envelope.
func (s *Server) successResponse(id, data any) *Response {
	result := map[string]any{
		"content": []map[string]any{
			{
				"type": "text",
				"text": formatResult(data),
			},
		},
		"isError": false,
	}
	return s.resultResponse(id, result)
}

func (s *Server) resultResponse(id, result any) *Response {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return s.errorResponse(id, InternalError, fmt.Sprintf("Failed to marshal result: %v", err))
	}
	return &Response{JSONRPC: "2.0", ID: id, Result: json.RawMessage(resultJSON)}
}

func (s *Server) errorResponse(id any, code int, message string) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      id,
		Error: &ErrorObject{
			Code:    code,
			Message: message,
		},
	}
}

func formatResult(data any) string {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(jsonData)
}
