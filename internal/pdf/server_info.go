package pdf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/a3tai/mcp-pdf-overlay/internal/descriptions"
)

// Library scan limits for server info
const (
	scanMaxDepth  = 5
	scanFileLimit = 100
	scanTimeLimit = 3 * time.Second
	scanCacheTTL  = 5 * time.Minute
)

// libraryScanner lists PDFs below a directory within depth, count and time
// limits. Hidden entries and symlinks are skipped.
type libraryScanner struct {
	maxDepth  int
	fileLimit int
	timeLimit time.Duration
}

type scanResult struct {
	files     []FileInfo
	truncated bool
	scannedAt time.Time
}

func (s *libraryScanner) scan(ctx context.Context, root string) (*scanResult, error) {
	result := &scanResult{files: []FileInfo{}}
	deadline := time.Now().Add(s.timeLimit)

	err := filepath.WalkDir(root, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are skipped
			if entry != nil && entry.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if len(result.files) >= s.fileLimit || time.Now().After(deadline) {
			result.truncated = true
			return filepath.SkipAll
		}
		if path == root {
			return nil
		}

		name := entry.Name()
		if strings.HasPrefix(name, ".") || entry.Type()&os.ModeSymlink != 0 {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if entry.IsDir() {
			rel, _ := filepath.Rel(root, path)
			if strings.Count(rel, string(filepath.Separator))+1 >= s.maxDepth {
				return filepath.SkipDir
			}
			return nil
		}

		if !strings.EqualFold(filepath.Ext(name), ".pdf") {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return nil
		}
		result.files = append(result.files, FileInfo{
			Name:         name,
			Path:         path,
			Size:         info.Size(),
			ModifiedTime: info.ModTime().Format("2006-01-02 15:04:05"),
		})
		return nil
	})
	result.scannedAt = time.Now()
	return result, err
}

// libraryCache keeps the last scan of the library for a while
type libraryCache struct {
	mu     sync.Mutex
	ttl    time.Duration
	result *scanResult
}

func (c *libraryCache) get() *scanResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.result == nil || time.Since(c.result.scannedAt) > c.ttl {
		return nil
	}
	return c.result
}

func (c *libraryCache) set(r *scanResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.result = r
}

// ServerInfo reports limits, open sessions and the PDFs in the library
func (s *Service) ServerInfo(ctx context.Context, _ PDFServerInfoRequest, serverName, version string) (*PDFServerInfoResult, error) {
	scan := s.library.get()
	if scan == nil {
		var err error
		scan, err = s.scanner.scan(ctx, s.pathValidator.Root())
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("server info cancelled: %w", ctx.Err())
			}
			// A missing or unreadable library is reported as empty
			scan = &scanResult{files: []FileInfo{}, scannedAt: time.Now()}
		}
		s.library.set(scan)
	}

	tools := make([]ToolInfo, 0, len(descriptions.ToolSummaries))
	for _, name := range descriptions.GetAllToolNames() {
		tools = append(tools, ToolInfo{Name: name, Description: descriptions.ToolSummaries[name]})
	}

	return &PDFServerInfoResult{
		ServerName:        serverName,
		Version:           version,
		DefaultDirectory:  s.pathValidator.Root(),
		MaxFileSize:       s.opts.MaxFileSize,
		DefaultScale:      s.opts.Scale,
		MinScale:          s.opts.MinScale,
		MaxScale:          s.opts.MaxScale,
		ScaleMode:         string(s.opts.ScaleMode),
		RenderEnabled:     s.RenderEnabled(),
		OpenSessions:      s.sessions.Keys(),
		SessionCache:      s.sessions.Stats(),
		AvailableTools:    tools,
		DirectoryContents: scan.files,
		Truncated:         scan.truncated,
		UsageGuidance:     s.usageGuidance(),
	}, nil
}

func (s *Service) usageGuidance() string {
	return `PDF Overlay MCP Server Usage Guide:

1. DISCOVER:
   - Use 'pdf_server_info' to list the PDFs in the default directory

2. OPEN A SESSION:
   - Use 'pdf_open_document' with a path and optional scale (default ` + fmt.Sprintf("%.2f", s.opts.Scale) + `)
   - Keep the returned session_id

3. READ ELEMENTS:
   - Use 'pdf_page_elements' for one page or all pages
   - Elements have an id, a type (text, annotation, image, form-field), a subtype and
     x/y/width/height in top-left viewport coordinates at the session's scale
   - Text subtypes: heading, subheading, list-item, title, symbol, paragraph

4. ZOOM:
   - Use 'pdf_set_scale' (allowed range ` + fmt.Sprintf("%.2f-%.2f", s.opts.MinScale, s.opts.MaxScale) + `)
   - Element ids stay the same; geometry follows the new scale

5. FIND:
   - Use 'pdf_query_elements' to filter by type, page, box or text

6. RENDER (if enabled):
   - Use 'pdf_render_page' for a PNG of a page at the current scale

7. CLEAN UP:
   - Use 'pdf_close_document' when done

IMPORTANT NOTES:
- Paths must be inside the default directory; relative paths are resolved against it
- The server can handle files up to ` + fmt.Sprintf("%d", s.opts.MaxFileSize/(1024*1024)) + `MB
- At most ` + fmt.Sprintf("%d", s.opts.MaxSessions) + ` sessions stay open; the least recently used is closed first
- Image elements are placeholders stacked down the left margin, not true image bounds`
}
