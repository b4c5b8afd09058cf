// Package session owns one opened document, its current scale and the element
// lists derived from it.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	pdferrors "github.com/a3tai/mcp-pdf-overlay/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-overlay/internal/pdf/extraction"
	"github.com/a3tai/mcp-pdf-overlay/internal/render"
	"github.com/google/uuid"
)

// ScaleMode selects how a scale change derives the new element lists
type ScaleMode string

const (
	// ScaleModeRescale multiplies the current geometry by new/old
	ScaleModeRescale ScaleMode = "rescale"
	// ScaleModeReparse rebuilds every page at the new scale
	ScaleModeReparse ScaleMode = "reparse"
)

// ParseScaleMode accepts "rescale" or "reparse"; empty means rescale
func ParseScaleMode(s string) (ScaleMode, error) {
	switch ScaleMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ScaleModeRescale:
		return ScaleModeRescale, nil
	case ScaleModeReparse:
		return ScaleModeReparse, nil
	default:
		return "", fmt.Errorf("invalid scale mode %q: must be rescale or reparse", s)
	}
}

var (
	// ErrClosed is returned by operations on a closed session
	ErrClosed = errors.New("session is closed")
	// ErrSuperseded is returned when a newer scale change or reload
	// replaced the requested one before it could be published
	ErrSuperseded = errors.New("superseded by a newer view change")
	// ErrRenderingDisabled is returned when the session has no renderer
	ErrRenderingDisabled = errors.New("rendering is disabled")
)

// Document is a page source the session owns and closes
type Document interface {
	extraction.Document
	Close() error
}

// Options configures New
type Options struct {
	Scale         float64
	Mode          ScaleMode
	Builder       *extraction.Builder
	Renderer      render.Renderer
	RenderTimeout time.Duration
	Logger        *log.Logger
}

// ViewState pairs a scale with the element lists built for it. A published
// ViewState is never modified.
type ViewState struct {
	Scale      float64                 `json:"scale"`
	Generation uint64                  `json:"generation"`
	Pages      []extraction.PageResult `json:"pages"`
}

// Page returns the result for a 1-based page number
func (v *ViewState) Page(pageNum int) (extraction.PageResult, bool) {
	if pageNum < 1 || pageNum > len(v.Pages) {
		return extraction.PageResult{}, false
	}
	return v.Pages[pageNum-1], true
}

// Elements returns every element in page order
func (v *ViewState) Elements() []extraction.Element {
	return extraction.Flatten(v.Pages)
}

// Errors collects the page and kind failures of the view
func (v *ViewState) Errors() *pdferrors.ErrorCollection {
	ec := pdferrors.NewErrorCollection("")
	for _, p := range v.Pages {
		for _, e := range p.Errors {
			ec.Add(e)
		}
	}
	return ec
}

type renderTask struct {
	cancel context.CancelFunc
}

type canvas struct {
	generation uint64
	image      image.Image
}

// Session mediates scale changes and page renders for one document
type Session struct {
	id        string
	createdAt time.Time
	doc       Document
	builder   *extraction.Builder
	renderer  render.Renderer
	mode      ScaleMode
	timeout   time.Duration
	logger    *log.Logger

	state atomic.Pointer[ViewState]

	mu            sync.Mutex
	generation    uint64
	extractCancel context.CancelFunc
	renders       map[int]*renderTask
	canvases      map[int]canvas
	closed        bool
}

// New builds the initial view of doc at opts.Scale. The view is published only
// after every page has been extracted.
func New(ctx context.Context, doc Document, opts Options) (*Session, error) {
	if opts.Scale == 0 {
		opts.Scale = 1.0
	}
	if err := extraction.ValidateScale(opts.Scale); err != nil {
		return nil, err
	}
	if opts.Mode == "" {
		opts.Mode = ScaleModeRescale
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Builder == nil {
		opts.Builder = extraction.NewBuilder(extraction.WithLogger(opts.Logger))
	}

	s := &Session{
		id:        uuid.New().String(),
		createdAt: time.Now(),
		doc:       doc,
		builder:   opts.Builder,
		renderer:  opts.Renderer,
		mode:      opts.Mode,
		timeout:   opts.RenderTimeout,
		logger:    opts.Logger,
		renders:   make(map[int]*renderTask),
		canvases:  make(map[int]canvas),
	}

	if err := s.rebuild(ctx, opts.Scale, true); err != nil {
		return nil, fmt.Errorf("failed to build initial view: %w", err)
	}
	s.logger.Printf("[Session] %s opened: %d pages at scale %.2f", s.id, doc.NumPages(), opts.Scale)
	return s, nil
}

// ID returns the session's unique id
func (s *Session) ID() string { return s.id }

// CreatedAt returns when the session was opened
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Mode returns how scale changes are applied
func (s *Session) Mode() ScaleMode { return s.mode }

// NumPages returns the document's page count
func (s *Session) NumPages() int { return s.doc.NumPages() }

// State returns the current view. It is never nil for an open session and
// never changes after it is returned.
func (s *Session) State() *ViewState {
	return s.state.Load()
}

// SetScale abandons in-flight extraction and renders and publishes the view
// for scale. If another change is requested before this one finishes, this
// one returns ErrSuperseded and leaves the newer view in place.
func (s *Session) SetScale(ctx context.Context, scale float64) error {
	if err := extraction.ValidateScale(scale); err != nil {
		return err
	}
	return s.rebuild(ctx, scale, s.mode == ScaleModeReparse)
}

// Reload reparses every page at the current scale
func (s *Session) Reload(ctx context.Context) error {
	current := s.State()
	if current == nil {
		return ErrClosed
	}
	return s.rebuild(ctx, current.Scale, true)
}

func (s *Session) rebuild(ctx context.Context, scale float64, reparse bool) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.generation++
	gen := s.generation
	if s.extractCancel != nil {
		s.extractCancel()
	}
	s.cancelRendersLocked()
	workCtx, cancel := context.WithCancel(ctx)
	s.extractCancel = cancel
	current := s.state.Load()
	s.mu.Unlock()
	defer cancel()

	var pages []extraction.PageResult
	var err error
	if reparse || current == nil {
		pages, err = s.builder.BuildDocument(workCtx, s.doc, scale)
	} else {
		pages, err = extraction.RescalePages(current.Pages, scale, current.Scale)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if gen != s.generation {
		return ErrSuperseded
	}
	s.extractCancel = nil
	if err != nil {
		return err
	}

	s.state.Store(&ViewState{Scale: scale, Generation: gen, Pages: pages})
	s.canvases = make(map[int]canvas)
	return nil
}

// RenderPage rasterises pageNum at the current scale, replacing any render
// of that page still in flight. A cancelled render returns a nil image and a
// nil error; other failures are logged and returned.
func (s *Session) RenderPage(ctx context.Context, pageNum int) (image.Image, error) {
	if s.renderer == nil {
		return nil, ErrRenderingDisabled
	}
	if pageNum < 1 || pageNum > s.doc.NumPages() {
		return nil, fmt.Errorf("page %d out of range (1-%d)", pageNum, s.doc.NumPages())
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if prev, ok := s.renders[pageNum]; ok {
		prev.cancel()
	}
	var renderCtx context.Context
	var cancel context.CancelFunc
	if s.timeout > 0 {
		renderCtx, cancel = context.WithTimeout(ctx, s.timeout)
	} else {
		renderCtx, cancel = context.WithCancel(ctx)
	}
	task := &renderTask{cancel: cancel}
	s.renders[pageNum] = task
	view := s.state.Load()
	s.mu.Unlock()

	defer s.finishRender(pageNum, task)

	img, err := s.renderer.RenderPage(renderCtx, pageNum, view.Scale)
	if err != nil {
		if errors.Is(renderCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = pdferrors.NewRenderFailure(pageNum, fmt.Errorf("timed out after %s", s.timeout))
		} else if pdferrors.IsRenderCancelled(err) || renderCtx.Err() != nil {
			return nil, nil
		}
		s.logger.Printf("[Session] %s render page %d failed: %v", s.id, pageNum, err)
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.state.Load().Generation != view.Generation {
		return nil, nil
	}
	s.canvases[pageNum] = canvas{generation: view.Generation, image: img}
	return img, nil
}

// RenderAll renders every page in order and collects the failures
func (s *Session) RenderAll(ctx context.Context) *pdferrors.ErrorCollection {
	ec := pdferrors.NewErrorCollection("")
	for pageNum := 1; pageNum <= s.doc.NumPages(); pageNum++ {
		if ctx.Err() != nil {
			break
		}
		if _, err := s.RenderPage(ctx, pageNum); err != nil {
			var pdfErr *pdferrors.PDFError
			if !errors.As(err, &pdfErr) {
				pdfErr = pdferrors.NewRenderFailure(pageNum, err)
			}
			ec.Add(pdfErr)
		}
	}
	return ec
}

// Canvas returns the last image rendered for pageNum at the current view
func (s *Session) Canvas(pageNum int) (image.Image, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.canvases[pageNum]
	if !ok || s.state.Load().Generation != c.generation {
		return nil, false
	}
	return c.image, true
}

// PendingRenders returns the number of renders in flight
func (s *Session) PendingRenders() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.renders)
}

func (s *Session) finishRender(pageNum int, task *renderTask) {
	s.mu.Lock()
	if s.renders[pageNum] == task {
		delete(s.renders, pageNum)
	}
	s.mu.Unlock()
	task.cancel()
}

func (s *Session) cancelRendersLocked() {
	for pageNum, task := range s.renders {
		task.cancel()
		delete(s.renders, pageNum)
	}
}

// Close cancels all outstanding work and closes the document and renderer.
// Closing twice is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.extractCancel != nil {
		s.extractCancel()
		s.extractCancel = nil
	}
	s.cancelRendersLocked()
	s.canvases = nil
	s.mu.Unlock()

	var errs []error
	if s.renderer != nil {
		if err := s.renderer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close renderer: %w", err))
		}
	}
	if err := s.doc.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close document: %w", err))
	}
	s.logger.Printf("[Session] %s closed", s.id)
	return errors.Join(errs...)
}
