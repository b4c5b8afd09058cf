package pdf

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/a3tai/mcp-pdf-overlay/internal/cache"
	pdferrors "github.com/a3tai/mcp-pdf-overlay/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-overlay/internal/pdf/extraction"
	"github.com/a3tai/mcp-pdf-overlay/internal/pdf/security"
	"github.com/a3tai/mcp-pdf-overlay/internal/pdf/source"
	"github.com/a3tai/mcp-pdf-overlay/internal/render"
	"github.com/a3tai/mcp-pdf-overlay/internal/session"
)

// Defaults applied by NewService to zero-valued options
const (
	DefaultScale       = 1.0
	DefaultMinScale    = 0.25
	DefaultMaxScale    = 5.0
	DefaultMaxSessions = 16
)

// ServiceOptions configures a Service
type ServiceOptions struct {
	MaxFileSize     int64
	Directory       string
	Scale           float64
	MinScale        float64
	MaxScale        float64
	ScaleMode       session.ScaleMode
	LineTolerance   float64
	LineHeightRatio float64
	MaxSessions     int
	// RenderPool enables page rendering; nil disables it
	RenderPool    *render.Pool
	RenderTimeout time.Duration
	Logger        *log.Logger
}

// Service opens documents inside the configured directory and keeps their
// sessions in a bounded registry
type Service struct {
	opts          ServiceOptions
	validator     *Validator
	pathValidator *security.PathValidator
	builder       *extraction.Builder
	sessions      *cache.LRU[*session.Session]
	scanner       *libraryScanner
	library       *libraryCache
	logger        *log.Logger

	// reserveMu guards pending, the opens holding a render instance that
	// are not yet in the registry
	reserveMu sync.Mutex
	pending   int
}

// NewService creates a new PDF service with all components
func NewService(opts ServiceOptions) (*Service, error) {
	pathValidator, err := security.NewPathValidator(opts.Directory)
	if err != nil {
		return nil, fmt.Errorf("failed to create path validator: %w", err)
	}

	if opts.Scale == 0 {
		opts.Scale = DefaultScale
	}
	if opts.MinScale == 0 {
		opts.MinScale = DefaultMinScale
	}
	if opts.MaxScale == 0 {
		opts.MaxScale = DefaultMaxScale
	}
	if opts.ScaleMode == "" {
		opts.ScaleMode = session.ScaleModeRescale
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = DefaultMaxSessions
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	s := &Service{
		opts:          opts,
		validator:     NewValidator(opts.MaxFileSize),
		pathValidator: pathValidator,
		builder: extraction.NewBuilder(
			extraction.WithLineGrouper(extraction.NewLineGrouper(opts.LineTolerance, opts.LineHeightRatio)),
			extraction.WithLogger(opts.Logger),
		),
		scanner: &libraryScanner{maxDepth: scanMaxDepth, fileLimit: scanFileLimit, timeLimit: scanTimeLimit},
		library: &libraryCache{ttl: scanCacheTTL},
		logger:  opts.Logger,
	}
	if err := s.ValidateConfiguration(); err != nil {
		return nil, err
	}

	s.sessions = cache.NewLRU[*session.Session](opts.MaxSessions, func(id string, sess *session.Session) {
		if err := sess.Close(); err != nil {
			s.logger.Printf("[Service] failed to close session %s: %v", id, err)
		}
	})
	return s, nil
}

// ValidateConfiguration validates the service configuration
func (s *Service) ValidateConfiguration() error {
	if s.opts.MaxFileSize <= 0 {
		return fmt.Errorf("maxFileSize must be greater than 0")
	}
	if s.opts.MaxFileSize > 1024*1024*1024 {
		return fmt.Errorf("maxFileSize cannot exceed 1GB")
	}
	if s.opts.MinScale <= 0 || s.opts.MinScale > s.opts.MaxScale {
		return fmt.Errorf("invalid scale range [%v, %v]", s.opts.MinScale, s.opts.MaxScale)
	}
	if err := s.checkScale(s.opts.Scale); err != nil {
		return fmt.Errorf("default scale: %w", err)
	}
	return nil
}

// GetMaxFileSize returns the maximum file size limit
func (s *Service) GetMaxFileSize() int64 {
	return s.opts.MaxFileSize
}

// RenderEnabled reports whether page rendering is available
func (s *Service) RenderEnabled() bool {
	return s.opts.RenderPool != nil
}

// OpenDocument opens a session on a PDF inside the configured directory
func (s *Service) OpenDocument(ctx context.Context, req PDFOpenDocumentRequest) (*PDFOpenDocumentResult, error) {
	scale, err := s.scaleOrDefault(req.Scale)
	if err != nil {
		return nil, err
	}
	mode := s.opts.ScaleMode
	if req.ScaleMode != "" {
		if mode, err = session.ParseScaleMode(req.ScaleMode); err != nil {
			return nil, err
		}
	}

	doc, path, err := s.openSource(req.Path)
	if err != nil {
		return nil, err
	}

	release := s.reserveSession()
	defer release()

	renderer := s.openRenderer(doc)
	sess, err := session.New(ctx, doc, session.Options{
		Scale:         scale,
		Mode:          mode,
		Builder:       s.builder,
		Renderer:      renderer,
		RenderTimeout: s.opts.RenderTimeout,
		Logger:        s.logger,
	})
	if err != nil {
		if renderer != nil {
			renderer.Close()
		}
		doc.Close()
		return nil, fmt.Errorf("failed to open session: %w", err)
	}
	s.sessions.Put(sess.ID(), sess)
	release()

	view := sess.State()
	result := &PDFOpenDocumentResult{
		SessionID:     sess.ID(),
		Path:          path,
		CreatedAt:     sess.CreatedAt(),
		PageCount:     sess.NumPages(),
		Scale:         view.Scale,
		ScaleMode:     string(sess.Mode()),
		Generation:    view.Generation,
		RenderEnabled: renderer != nil,
		Pages:         summarize(view.Pages),
	}
	for _, p := range result.Pages {
		result.ElementCount += p.ElementCount
	}
	return result, nil
}

// PageElements returns the current view of one page or every page
func (s *Service) PageElements(req PDFPageElementsRequest) (*PDFPageElementsResult, error) {
	sess, err := s.session(req.SessionID)
	if err != nil {
		return nil, err
	}

	view := sess.State()
	pages := view.Pages
	if req.Page != 0 {
		page, ok := view.Page(req.Page)
		if !ok {
			return nil, fmt.Errorf("page %d out of range (1-%d)", req.Page, len(view.Pages))
		}
		pages = []extraction.PageResult{page}
	}

	return &PDFPageElementsResult{
		SessionID:  sess.ID(),
		Scale:      view.Scale,
		Generation: view.Generation,
		Pages:      pages,
	}, nil
}

// SetScale changes the zoom scale of a session
func (s *Service) SetScale(ctx context.Context, req PDFSetScaleRequest) (*PDFSetScaleResult, error) {
	sess, err := s.session(req.SessionID)
	if err != nil {
		return nil, err
	}
	if err := s.checkScale(req.Scale); err != nil {
		return nil, err
	}

	previous := sess.State().Scale
	if err := sess.SetScale(ctx, req.Scale); err != nil {
		return nil, fmt.Errorf("failed to set scale: %w", err)
	}

	view := sess.State()
	return &PDFSetScaleResult{
		SessionID:     sess.ID(),
		PreviousScale: previous,
		Scale:         view.Scale,
		ScaleMode:     string(sess.Mode()),
		Generation:    view.Generation,
		ElementCount:  len(view.Elements()),
	}, nil
}

// QueryElements filters the current view of a session
func (s *Service) QueryElements(req PDFQueryElementsRequest) (*PDFQueryElementsResult, error) {
	sess, err := s.session(req.SessionID)
	if err != nil {
		return nil, err
	}

	query := extraction.Query{Pages: req.Pages, Box: req.Box, Text: req.Text}
	for _, name := range req.Types {
		t, err := extraction.ParseElementType(name)
		if err != nil {
			return nil, err
		}
		query.Types = append(query.Types, t)
	}

	view := sess.State()
	matches := query.Apply(view.Elements())
	return &PDFQueryElementsResult{
		SessionID:  sess.ID(),
		Scale:      view.Scale,
		MatchCount: len(matches),
		Elements:   matches,
	}, nil
}

// RenderPage rasterises a page of a session to PNG
func (s *Service) RenderPage(ctx context.Context, req PDFRenderPageRequest) (*PDFRenderPageResult, error) {
	sess, err := s.session(req.SessionID)
	if err != nil {
		return nil, err
	}

	scale := sess.State().Scale
	img, err := sess.RenderPage(ctx, req.Page)
	if err != nil {
		return nil, fmt.Errorf("failed to render page %d: %w", req.Page, err)
	}

	result := &PDFRenderPageResult{
		SessionID: sess.ID(),
		Page:      req.Page,
		Scale:     scale,
		MimeType:  "image/png",
	}
	if img == nil {
		result.Cancelled = true
		return result, nil
	}

	var buf bytes.Buffer
	if err := render.EncodePNG(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode page %d: %w", req.Page, err)
	}
	result.Width = img.Bounds().Dx()
	result.Height = img.Bounds().Dy()
	result.Data = buf.Bytes()
	return result, nil
}

// CloseDocument closes a session
func (s *Service) CloseDocument(req PDFCloseDocumentRequest) (*PDFCloseDocumentResult, error) {
	if !s.sessions.Remove(req.SessionID) {
		return nil, s.notFound(req.SessionID)
	}
	return &PDFCloseDocumentResult{SessionID: req.SessionID, Closed: true}, nil
}

// ExtractElements builds the element lists of a file without keeping a session
func (s *Service) ExtractElements(ctx context.Context, req PDFExtractElementsRequest) (*PDFExtractElementsResult, error) {
	scale, err := s.scaleOrDefault(req.Scale)
	if err != nil {
		return nil, err
	}

	doc, path, err := s.openSource(req.Path)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	var pages []extraction.PageResult
	if req.Page != 0 {
		if req.Page < 1 || req.Page > doc.NumPages() {
			return nil, fmt.Errorf("page %d out of range (1-%d)", req.Page, doc.NumPages())
		}
		pages = []extraction.PageResult{s.builder.BuildPage(ctx, doc, req.Page, scale)}
	} else if pages, err = s.builder.BuildDocument(ctx, doc, scale); err != nil {
		return nil, fmt.Errorf("failed to extract elements: %w", err)
	}

	errs := pdferrors.NewErrorCollection(path)
	for _, p := range pages {
		for _, e := range p.Errors {
			errs.Add(e)
		}
	}

	return &PDFExtractElementsResult{
		Path:      path,
		Scale:     scale,
		PageCount: doc.NumPages(),
		Pages:     pages,
		Summary:   errs.Summary(),
	}, nil
}

// Close closes every open session
func (s *Service) Close() {
	s.sessions.Clear()
}

func (s *Service) openSource(path string) (*source.Document, string, error) {
	resolved, err := s.pathValidator.Resolve(path)
	if err != nil {
		return nil, "", fmt.Errorf("security validation failed: %w", err)
	}
	if err := s.validator.ValidateFile(resolved); err != nil {
		return nil, "", err
	}

	doc, err := source.Open(resolved, source.Options{MaxFileSize: s.opts.MaxFileSize, Logger: s.logger})
	if err != nil {
		return nil, "", pdferrors.WrapError(pdferrors.ErrorTypeInvalidDocument, err).WithFile(resolved)
	}
	return doc, resolved, nil
}

// openRenderer returns nil when rendering is disabled or PDFium cannot load
// the file; extraction does not depend on it
// reserveSession makes room for one more session before a render instance
// is taken. Every open session holds an instance until it is closed, so the
// registry is trimmed first or the pool would wait on its own eviction.
// The returned release is safe to call more than once.
func (s *Service) reserveSession() (release func()) {
	if s.opts.RenderPool == nil {
		return func() {}
	}

	s.reserveMu.Lock()
	for s.sessions.Len()+s.pending >= s.sessions.Capacity() {
		if !s.sessions.EvictOldest() {
			break
		}
	}
	s.pending++
	s.reserveMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.reserveMu.Lock()
			s.pending--
			s.reserveMu.Unlock()
		})
	}
}

func (s *Service) openRenderer(doc *source.Document) render.Renderer {
	if s.opts.RenderPool == nil {
		return nil
	}
	r, err := s.opts.RenderPool.Open(doc.Bytes())
	if err != nil {
		s.logger.Printf("[Service] rendering unavailable for %s: %v", doc.Path(), err)
		return nil
	}
	return r
}

func (s *Service) session(id string) (*session.Session, error) {
	sess, ok := s.sessions.Get(id)
	if !ok {
		return nil, s.notFound(id)
	}
	return sess, nil
}

func (s *Service) notFound(id string) error {
	return pdferrors.NewPDFErrorWithContext(pdferrors.ErrorTypeSessionNotFound, "no open session", id)
}

func (s *Service) scaleOrDefault(scale float64) (float64, error) {
	if scale == 0 {
		return s.opts.Scale, nil
	}
	return scale, s.checkScale(scale)
}

func (s *Service) checkScale(scale float64) error {
	if err := extraction.ValidateScale(scale); err != nil {
		return err
	}
	if scale < s.opts.MinScale || scale > s.opts.MaxScale {
		return pdferrors.NewPDFError(pdferrors.ErrorTypeInvalidScale,
			fmt.Sprintf("scale %v outside allowed range [%v, %v]", scale, s.opts.MinScale, s.opts.MaxScale))
	}
	return nil
}

func summarize(pages []extraction.PageResult) []PageSummary {
	out := make([]PageSummary, len(pages))
	for i, p := range pages {
		out[i] = PageSummary{
			PageNumber:   p.PageNumber,
			Width:        p.Viewport.Width,
			Height:       p.Viewport.Height,
			ElementCount: len(p.Elements),
		}
		for _, e := range p.Errors {
			out[i].Errors = append(out[i].Errors, e.Error())
		}
	}
	return out
}
