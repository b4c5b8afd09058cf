package pdf

import (
	"time"

	"github.com/a3tai/mcp-pdf-overlay/internal/cache"
	"github.com/a3tai/mcp-pdf-overlay/internal/pdf/extraction"
)

// FileInfo represents a PDF file in the library directory
type FileInfo struct {
	Path         string `json:"path"`
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	ModifiedTime string `json:"modified_time"`
}

// PageSummary condenses one page of a view
type PageSummary struct {
	PageNumber   int      `json:"page_number"`
	Width        float64  `json:"width"`
	Height       float64  `json:"height"`
	ElementCount int      `json:"element_count"`
	Errors       []string `json:"errors,omitempty"`
}

// Request Types

// PDFOpenDocumentRequest opens a document session
type PDFOpenDocumentRequest struct {
	Path      string  `json:"path"`
	Scale     float64 `json:"scale,omitempty"`
	ScaleMode string  `json:"scale_mode,omitempty"`
}

// PDFPageElementsRequest reads the elements of a session; Page 0 means all pages
type PDFPageElementsRequest struct {
	SessionID string `json:"session_id"`
	Page      int    `json:"page,omitempty"`
}

// PDFSetScaleRequest changes the scale of a session
type PDFSetScaleRequest struct {
	SessionID string  `json:"session_id"`
	Scale     float64 `json:"scale"`
}

// PDFQueryElementsRequest filters the elements of a session
type PDFQueryElementsRequest struct {
	SessionID string          `json:"session_id"`
	Types     []string        `json:"types,omitempty"`
	Pages     []int           `json:"pages,omitempty"`
	Box       *extraction.Box `json:"box,omitempty"`
	Text      string          `json:"text,omitempty"`
}

// PDFRenderPageRequest renders one page of a session
type PDFRenderPageRequest struct {
	SessionID string `json:"session_id"`
	Page      int    `json:"page"`
}

// PDFCloseDocumentRequest closes a session
type PDFCloseDocumentRequest struct {
	SessionID string `json:"session_id"`
}

// PDFExtractElementsRequest extracts elements without a session; Page 0
// means all pages
type PDFExtractElementsRequest struct {
	Path  string  `json:"path"`
	Scale float64 `json:"scale,omitempty"`
	Page  int     `json:"page,omitempty"`
}

// PDFServerInfoRequest represents a request to get server information and capabilities
type PDFServerInfoRequest struct {
	// No parameters needed for server info
}

// Response Types

// PDFOpenDocumentResult describes a new session
type PDFOpenDocumentResult struct {
	SessionID     string        `json:"session_id"`
	Path          string        `json:"path"`
	PageCount     int           `json:"page_count"`
	Scale         float64       `json:"scale"`
	ScaleMode     string        `json:"scale_mode"`
	Generation    uint64        `json:"generation"`
	ElementCount  int           `json:"element_count"`
	RenderEnabled bool          `json:"render_enabled"`
	CreatedAt     time.Time     `json:"created_at"`
	Pages         []PageSummary `json:"pages"`
}

// PDFPageElementsResult holds page results of the current view
type PDFPageElementsResult struct {
	SessionID  string                  `json:"session_id"`
	Scale      float64                 `json:"scale"`
	Generation uint64                  `json:"generation"`
	Pages      []extraction.PageResult `json:"pages"`
}

// PDFSetScaleResult reports the published view after a scale change
type PDFSetScaleResult struct {
	SessionID     string  `json:"session_id"`
	PreviousScale float64 `json:"previous_scale"`
	Scale         float64 `json:"scale"`
	ScaleMode     string  `json:"scale_mode"`
	Generation    uint64  `json:"generation"`
	ElementCount  int     `json:"element_count"`
}

// PDFQueryElementsResult holds the matching elements
type PDFQueryElementsResult struct {
	SessionID  string               `json:"session_id"`
	Scale      float64              `json:"scale"`
	MatchCount int                  `json:"match_count"`
	Elements   []extraction.Element `json:"elements"`
}

// PDFRenderPageResult holds a rendered page. Cancelled renders have no data.
type PDFRenderPageResult struct {
	SessionID string  `json:"session_id"`
	Page      int     `json:"page"`
	Scale     float64 `json:"scale"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	MimeType  string  `json:"mime_type"`
	Cancelled bool    `json:"cancelled"`
	Data      []byte  `json:"-"`
}

// PDFCloseDocumentResult confirms a closed session
type PDFCloseDocumentResult struct {
	SessionID string `json:"session_id"`
	Closed    bool   `json:"closed"`
}

// PDFExtractElementsResult holds a one-shot extraction
type PDFExtractElementsResult struct {
	Path      string                  `json:"path"`
	Scale     float64                 `json:"scale"`
	PageCount int                     `json:"page_count"`
	Pages     []extraction.PageResult `json:"pages"`
	Summary   string                  `json:"summary"`
}

// PDFServerInfoResult represents server information and usage guidance
type PDFServerInfoResult struct {
	ServerName        string      `json:"server_name"`
	Version           string      `json:"version"`
	DefaultDirectory  string      `json:"default_directory"`
	MaxFileSize       int64       `json:"max_file_size"`
	DefaultScale      float64     `json:"default_scale"`
	MinScale          float64     `json:"min_scale"`
	MaxScale          float64     `json:"max_scale"`
	ScaleMode         string      `json:"scale_mode"`
	RenderEnabled     bool        `json:"render_enabled"`
	OpenSessions      []string    `json:"open_sessions"`
	SessionCache      cache.Stats `json:"session_cache"`
	AvailableTools    []ToolInfo  `json:"available_tools"`
	DirectoryContents []FileInfo  `json:"directory_contents"`
	Truncated         bool        `json:"directory_truncated"`
	UsageGuidance     string      `json:"usage_guidance"`
}

// ToolInfo represents information about an available tool
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}
