package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/a3tai/mcp-pdf-overlay/internal/config"
	"github.com/a3tai/mcp-pdf-overlay/internal/descriptions"
	"github.com/a3tai/mcp-pdf-overlay/internal/pdf"
	"github.com/a3tai/mcp-pdf-overlay/internal/pdf/extraction"
)

// Tool names
const (
	ToolOpenDocument    = "pdf_open_document"
	ToolPageElements    = "pdf_page_elements"
	ToolSetScale        = "pdf_set_scale"
	ToolQueryElements   = "pdf_query_elements"
	ToolRenderPage      = "pdf_render_page"
	ToolCloseDocument   = "pdf_close_document"
	ToolExtractElements = "pdf_extract_elements"
	ToolServerInfo      = "pdf_server_info"
)

const shutdownTimeout = 5 * time.Second

// Server represents the MCP server instance
type Server struct {
	config     *config.Config
	pdfService *pdf.Service
	mcpServer  *server.MCPServer

	// stdio transport endpoints, replaced in tests
	stdin  io.Reader
	stdout io.Writer
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, pdfService *pdf.Service) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if pdfService == nil {
		return nil, fmt.Errorf("pdfService cannot be nil")
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false), // The tool list never changes at runtime
		server.WithRecovery(),
	)

	s := &Server{
		config:     cfg,
		pdfService: pdfService,
		mcpServer:  mcpServer,
		stdin:      os.Stdin,
		stdout:     os.Stdout,
	}

	s.registerTools()

	return s, nil
}

// MCPServer exposes the underlying protocol server
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	sessionID := mcp.WithString("session_id",
		mcp.Required(),
		mcp.Description("Session id returned by pdf_open_document"),
	)

	s.mcpServer.AddTool(mcp.NewTool(ToolOpenDocument,
		mcp.WithDescription(descriptions.GetToolDescription(ToolOpenDocument)),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the PDF file, absolute or relative to the default directory"),
		),
		mcp.WithNumber("scale",
			mcp.Description("Zoom scale, 1.0 is 72 pixels per inch (uses the server default if omitted)"),
		),
		mcp.WithString("scale_mode",
			mcp.Description("How later scale changes are applied"),
			mcp.Enum("rescale", "reparse"),
		),
	), s.handleOpenDocument)

	s.mcpServer.AddTool(mcp.NewTool(ToolPageElements,
		mcp.WithDescription(descriptions.GetToolDescription(ToolPageElements)),
		sessionID,
		mcp.WithNumber("page",
			mcp.Description("1-based page number; 0 or omitted returns every page"),
		),
	), s.handlePageElements)

	s.mcpServer.AddTool(mcp.NewTool(ToolSetScale,
		mcp.WithDescription(descriptions.GetToolDescription(ToolSetScale)),
		sessionID,
		mcp.WithNumber("scale",
			mcp.Required(),
			mcp.Description("New zoom scale"),
		),
	), s.handleSetScale)

	s.mcpServer.AddTool(mcp.NewTool(ToolQueryElements,
		mcp.WithDescription(descriptions.GetToolDescription(ToolQueryElements)),
		sessionID,
		mcp.WithArray("types",
			mcp.Description("Element types to keep"),
			mcp.Items(map[string]any{
				"type": "string",
				"enum": []string{"text", "annotation", "image", "form-field"},
			}),
		),
		mcp.WithArray("pages",
			mcp.Description("1-based page numbers to keep"),
			mcp.Items(map[string]any{"type": "number"}),
		),
		mcp.WithObject("box",
			mcp.Description("Viewport region; only elements fully inside it are kept"),
			mcp.Properties(map[string]any{
				"x":      map[string]any{"type": "number"},
				"y":      map[string]any{"type": "number"},
				"width":  map[string]any{"type": "number"},
				"height": map[string]any{"type": "number"},
			}),
		),
		mcp.WithString("text",
			mcp.Description("Case-insensitive substring the element content must contain"),
		),
	), s.handleQueryElements)

	s.mcpServer.AddTool(mcp.NewTool(ToolRenderPage,
		mcp.WithDescription(descriptions.GetToolDescription(ToolRenderPage)),
		sessionID,
		mcp.WithNumber("page",
			mcp.Required(),
			mcp.Description("1-based page number"),
		),
	), s.handleRenderPage)

	s.mcpServer.AddTool(mcp.NewTool(ToolCloseDocument,
		mcp.WithDescription(descriptions.GetToolDescription(ToolCloseDocument)),
		sessionID,
	), s.handleCloseDocument)

	s.mcpServer.AddTool(mcp.NewTool(ToolExtractElements,
		mcp.WithDescription(descriptions.GetToolDescription(ToolExtractElements)),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the PDF file, absolute or relative to the default directory"),
		),
		mcp.WithNumber("scale",
			mcp.Description("Zoom scale (uses the server default if omitted)"),
		),
		mcp.WithNumber("page",
			mcp.Description("1-based page number; 0 or omitted extracts every page"),
		),
	), s.handleExtractElements)

	s.mcpServer.AddTool(mcp.NewTool(ToolServerInfo,
		mcp.WithDescription(descriptions.GetToolDescription(ToolServerInfo)),
	), s.handleServerInfo)
}

// Handler functions
func (s *Server) handleOpenDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	args := request.GetArguments()
	scale, err := floatArg(args, "scale")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.pdfService.OpenDocument(ctx, pdf.PDFOpenDocumentRequest{
		Path:      path,
		Scale:     scale,
		ScaleMode: stringArg(args, "scale_mode"),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	header := fmt.Sprintf("Opened %s as session %s: %d page(s), %d element(s) at scale %.2f (%s)",
		result.Path, result.SessionID, result.PageCount, result.ElementCount, result.Scale, result.ScaleMode)
	return jsonResult(header, result)
}

func (s *Server) handlePageElements(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	page, err := intArg(request.GetArguments(), "page")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.pdfService.PageElements(pdf.PDFPageElementsRequest{SessionID: id, Page: page})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	count := 0
	for _, p := range result.Pages {
		count += len(p.Elements)
	}
	header := fmt.Sprintf("%d element(s) on %d page(s) at scale %.2f", count, len(result.Pages), result.Scale)
	return jsonResult(header, result)
}

func (s *Server) handleSetScale(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	scale, err := request.RequireFloat("scale")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.pdfService.SetScale(ctx, pdf.PDFSetScaleRequest{SessionID: id, Scale: scale})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	header := fmt.Sprintf("Scale changed from %.2f to %.2f (%s)", result.PreviousScale, result.Scale, result.ScaleMode)
	return jsonResult(header, result)
}

func (s *Server) handleQueryElements(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	args := request.GetArguments()

	req := pdf.PDFQueryElementsRequest{SessionID: id, Text: stringArg(args, "text")}
	if req.Types, err = stringSliceArg(args, "types"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if req.Pages, err = intSliceArg(args, "pages"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if req.Box, err = boxArg(args, "box"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.pdfService.QueryElements(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(fmt.Sprintf("%d matching element(s)", result.MatchCount), result)
}

func (s *Server) handleRenderPage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	page, err := intArg(request.GetArguments(), "page")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.pdfService.RenderPage(ctx, pdf.PDFRenderPageRequest{SessionID: id, Page: page})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if result.Cancelled {
		return mcp.NewToolResultText(fmt.Sprintf("Render of page %d was cancelled by a newer request", result.Page)), nil
	}

	text := fmt.Sprintf("Page %d rendered at scale %.2f: %dx%d pixels", result.Page, result.Scale, result.Width, result.Height)
	return mcp.NewToolResultImage(text, base64.StdEncoding.EncodeToString(result.Data), result.MimeType), nil
}

func (s *Server) handleCloseDocument(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.pdfService.CloseDocument(pdf.PDFCloseDocumentRequest{SessionID: id})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Session %s closed", result.SessionID)), nil
}

func (s *Server) handleExtractElements(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	args := request.GetArguments()
	scale, err := floatArg(args, "scale")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	page, err := intArg(args, "page")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.pdfService.ExtractElements(ctx, pdf.PDFExtractElementsRequest{Path: path, Scale: scale, Page: page})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	header := fmt.Sprintf("Extracted %d of %d page(s) from %s at scale %.2f\n%s",
		len(result.Pages), result.PageCount, result.Path, result.Scale, result.Summary)
	return jsonResult(header, result)
}

func (s *Server) handleServerInfo(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.pdfService.ServerInfo(ctx, pdf.PDFServerInfoRequest{}, s.config.ServerName, s.config.Version)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(s.formatServerInfoResult(result)), nil
}

// Formatting methods
func (s *Server) formatServerInfoResult(result *pdf.PDFServerInfoResult) string {
	text := fmt.Sprintf("📋 %s v%s - Server Information\n", result.ServerName, result.Version)
	text += fmt.Sprintf("📁 Default Directory: %s\n", result.DefaultDirectory)
	text += fmt.Sprintf("📏 Max File Size: %d MB\n", result.MaxFileSize/(1024*1024))
	text += fmt.Sprintf("🔍 Scale: default %.2f, range %.2f-%.2f, mode %s\n",
		result.DefaultScale, result.MinScale, result.MaxScale, result.ScaleMode)
	text += fmt.Sprintf("🖼️  Rendering: %s\n", enabled(result.RenderEnabled))
	text += fmt.Sprintf("📑 Open Sessions: %d of %d (hit rate %.0f%%)\n\n",
		len(result.OpenSessions), result.SessionCache.Capacity, result.SessionCache.HitRate)

	if len(result.DirectoryContents) > 0 {
		text += fmt.Sprintf("📂 Directory Contents (%d PDF files found):\n", len(result.DirectoryContents))
		for i, file := range result.DirectoryContents {
			if i >= 10 { // Limit to first 10 files for readability
				text += fmt.Sprintf("   ... and %d more files\n", len(result.DirectoryContents)-10)
				break
			}
			text += fmt.Sprintf("   %d. %s (%d bytes)\n", i+1, file.Name, file.Size)
		}
		if result.Truncated {
			text += "   (listing truncated)\n"
		}
		text += "\n"
	} else {
		text += "📂 Directory Contents: No PDF files found in default directory\n\n"
	}

	text += "🛠️  Available Tools:\n"
	for _, tool := range result.AvailableTools {
		text += fmt.Sprintf("• %s: %s\n", tool.Name, tool.Description)
	}

	text += "\n" + result.UsageGuidance

	return text
}

func enabled(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

// jsonResult returns a header line followed by the indented JSON of v
func jsonResult(header string, v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(header + "\n\n" + string(data)), nil
}

// Run starts the MCP server in the configured mode and blocks until ctx is
// done or the transport fails
func (s *Server) Run(ctx context.Context) error {
	if s.config.IsServerMode() {
		return s.runServerMode(ctx)
	}
	return s.runStdioMode(ctx)
}

// runStdioMode serves MCP over stdin/stdout
func (s *Server) runStdioMode(ctx context.Context) error {
	if s.config.IsDebug() {
		log.Printf("[MCP] Starting PDF overlay server in stdio mode")
		log.Printf("[MCP] PDF directory: %s", s.config.PDFDirectory)
	}

	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(log.New(log.Writer(), "[MCP] ", log.LstdFlags))

	err := stdio.Listen(ctx, s.stdin, s.stdout)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

// runServerMode serves MCP over HTTP with server-sent events
func (s *Server) runServerMode(ctx context.Context) error {
	addr := s.config.Address()
	sse := server.NewSSEServer(s.mcpServer, server.WithBaseURL("http://"+addr))

	log.Printf("[MCP] Starting PDF overlay server on http://%s (SSE endpoint /sse)", addr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- sse.Start(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := sse.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}

// Argument helpers. JSON numbers arrive as float64.

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func floatArg(args map[string]any, key string) (float64, error) {
	switch v := args[key].(type) {
	case nil:
		return 0, nil
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("argument %q must be a number", key)
	}
}

func intArg(args map[string]any, key string) (int, error) {
	f, err := floatArg(args, key)
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("argument %q must be a whole number", key)
	}
	return int(f), nil
}

func stringSliceArg(args map[string]any, key string) ([]string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("argument %q must be an array of strings", key)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		str, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("argument %q must be an array of strings", key)
		}
		out = append(out, str)
	}
	return out, nil
}

func intSliceArg(args map[string]any, key string) ([]int, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("argument %q must be an array of numbers", key)
	}
	out := make([]int, 0, len(items))
	for i := range items {
		n, err := intArg(map[string]any{key: items[i]}, key)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func boxArg(args map[string]any, key string) (*extraction.Box, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}
	fields, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("argument %q must be an object", key)
	}
	var box extraction.Box
	for name, dst := range map[string]*float64{"x": &box.X, "y": &box.Y, "width": &box.Width, "height": &box.Height} {
		v, err := floatArg(fields, name)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", key, err)
		}
		*dst = v
	}
	return &box, nil
}
