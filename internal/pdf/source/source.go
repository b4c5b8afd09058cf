// Package source loads PDF files and exposes their pages as raw text runs,
// annotations and image operators for the element builder.
package source

import (
	"bytes"
	"io"
	"log"
	"os"
	"sync"

	"github.com/a3tai/mcp-pdf-overlay/internal/pdf/extraction"
	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/pkg/errors"
)

const (
	defaultMaxFileSize  = 100 * 1024 * 1024
	defaultMaxFormDepth = 8
)

var pdfHeader = []byte("%PDF-")

// Options configures Open
type Options struct {
	// MaxFileSize rejects larger files before parsing; zero means 100MB
	MaxFileSize int64
	// MaxFormDepth bounds Form XObject recursion; zero means 8
	MaxFormDepth int
	Logger       *log.Logger
}

// Document is an opened PDF. The raw bytes are shared by the content-stream
// reader, the annotation reader and any renderer.
type Document struct {
	path     string
	data     []byte
	reader   *pdf.Reader
	ctx      *model.Context
	annots   *annotationReader
	logger   *log.Logger
	maxDepth int

	mu    sync.Mutex
	pages map[int]*Page

	// decode serialises access to the parsers, which cache objects internally
	decode sync.Mutex
}

// Open validates and loads the file at path
func Open(path string, opts Options) (*Document, error) {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = defaultMaxFileSize
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot access file")
	}
	if info.IsDir() {
		return nil, errors.Errorf("path is a directory, not a file: %s", path)
	}
	if info.Size() > opts.MaxFileSize {
		return nil, errors.Errorf("file too large: %d bytes (max: %d bytes)", info.Size(), opts.MaxFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read file")
	}

	doc, err := Load(data, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	doc.path = path
	return doc, nil
}

// Load parses an in-memory PDF
func Load(data []byte, opts Options) (*Document, error) {
	if opts.MaxFormDepth <= 0 {
		opts.MaxFormDepth = defaultMaxFormDepth
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if len(data) == 0 {
		return nil, errors.New("file is empty")
	}
	if !bytes.HasPrefix(data, pdfHeader) {
		return nil, errors.New("missing %PDF- header")
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse content streams")
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read PDF context")
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, errors.Wrap(err, "failed to ensure page count")
	}

	return &Document{
		data:     data,
		reader:   reader,
		ctx:      ctx,
		annots:   &annotationReader{ctx: ctx},
		logger:   opts.Logger,
		maxDepth: opts.MaxFormDepth,
		pages:    make(map[int]*Page),
	}, nil
}

// Path returns the file the document was opened from, if any
func (d *Document) Path() string { return d.path }

// Bytes returns the raw file contents
func (d *Document) Bytes() []byte { return d.data }

// Reader returns a fresh reader over the raw file contents
func (d *Document) Reader() io.ReadSeeker { return bytes.NewReader(d.data) }

// NumPages implements extraction.Document
func (d *Document) NumPages() int {
	return d.ctx.PageCount
}

// Page implements extraction.Document. Pages are decoded lazily and cached.
func (d *Document) Page(pageNum int) (extraction.Page, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pages == nil {
		return nil, errors.New("document is closed")
	}
	if p, ok := d.pages[pageNum]; ok {
		return p, nil
	}
	if pageNum < 1 || pageNum > d.NumPages() {
		return nil, errors.Errorf("page %d out of range (1-%d)", pageNum, d.NumPages())
	}

	p, err := d.loadPage(pageNum)
	if err != nil {
		return nil, err
	}
	d.pages[pageNum] = p
	return p, nil
}

func (d *Document) loadPage(pageNum int) (p *Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			p = nil
			err = errors.Errorf("panic while decoding page %d: %v", pageNum, r)
		}
	}()

	pageDict, _, attrs, err := d.ctx.PageDict(pageNum, false)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read page %d dictionary", pageNum)
	}
	if pageDict == nil {
		return nil, errors.Errorf("page %d has no dictionary", pageNum)
	}

	page := d.reader.Page(pageNum)
	if page.V.IsNull() {
		return nil, errors.Errorf("page %d not found in page tree", pageNum)
	}

	return &Page{
		doc:     d,
		number:  pageNum,
		box:     pageBox(attrs),
		dict:    pageDict,
		pdfPage: page,
	}, nil
}

// Close releases the document. The data is owned by the Document, so this
// only drops references.
func (d *Document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pages = nil
	d.reader = nil
	return nil
}

func pageBox(attrs *model.InheritedPageAttrs) extraction.Rect {
	if attrs == nil {
		return extraction.Rect{}
	}
	if r := toRect(attrs.CropBox); r != nil {
		return *r
	}
	if r := toRect(attrs.MediaBox); r != nil {
		return *r
	}
	return extraction.Rect{}
}

func toRect(r *types.Rectangle) *extraction.Rect {
	if r == nil || r.Width() <= 0 || r.Height() <= 0 {
		return nil
	}
	return &extraction.Rect{X0: r.LL.X, Y0: r.LL.Y, X1: r.UR.X, Y1: r.UR.Y}
}

// Page is one page of a Document. Content and annotations are decoded on
// first access and then reused.
type Page struct {
	doc     *Document
	number  int
	box     extraction.Rect
	dict    types.Dict
	pdfPage pdf.Page

	contentOnce sync.Once
	runs        []extraction.RawTextRun
	images      []extraction.RawImageOp
	runsErr     error
	imagesErr   error

	annotOnce sync.Once
	annots    []extraction.RawAnnotation
	annotErr  error
}

// Number returns the 1-based page number
func (p *Page) Number() int { return p.number }

// Box implements extraction.Page
func (p *Page) Box() extraction.Rect { return p.box }

// TextRuns implements extraction.Page
func (p *Page) TextRuns() ([]extraction.RawTextRun, error) {
	p.loadContent()
	if p.runsErr != nil {
		return nil, p.runsErr
	}
	return p.runs, nil
}

// ImageOps implements extraction.Page
func (p *Page) ImageOps() ([]extraction.RawImageOp, error) {
	p.loadContent()
	if p.imagesErr != nil {
		return nil, p.imagesErr
	}
	return p.images, nil
}

// Annotations implements extraction.Page
func (p *Page) Annotations() ([]extraction.RawAnnotation, error) {
	p.annotOnce.Do(func() {
		p.doc.decode.Lock()
		defer p.doc.decode.Unlock()
		defer func() {
			if r := recover(); r != nil {
				p.annots = nil
				p.annotErr = errors.Errorf("panic while reading annotations: %v", r)
			}
		}()
		p.annots, p.annotErr = p.doc.annots.read(p.dict)
		if p.annotErr == nil {
			p.annotErr = validateAll(p.annots)
		}
	})
	return p.annots, p.annotErr
}

func (p *Page) loadContent() {
	p.contentOnce.Do(func() {
		p.doc.decode.Lock()
		defer p.doc.decode.Unlock()
		runs, images, err := readContent(p.pdfPage, p.doc.maxDepth, p.doc.logger)
		if err != nil {
			p.doc.logger.Printf("[Source] page %d: %v", p.number, err)
		}
		p.setContent(runs, images, err)
	})
}

// setContent stores the decoded stream. Runs and image operators are
// validated separately so a bad run does not hide the page's images.
func (p *Page) setContent(runs []extraction.RawTextRun, images []extraction.RawImageOp, err error) {
	if err != nil {
		p.runsErr, p.imagesErr = err, err
		return
	}

	p.runs, p.images = runs, images
	for _, r := range runs {
		if err := r.Validate(); err != nil {
			p.runs, p.runsErr = nil, errors.Wrapf(err, "page %d", p.number)
			break
		}
	}
	for _, op := range images {
		if err := op.Validate(); err != nil {
			p.images, p.imagesErr = nil, errors.Wrapf(err, "page %d", p.number)
			break
		}
	}
}

func validateAll(annots []extraction.RawAnnotation) error {
	for i, a := range annots {
		if err := a.Validate(); err != nil {
			return errors.Wrapf(err, "annotation %d", i)
		}
	}
	return nil
}
