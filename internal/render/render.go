// Package render rasterises PDF pages for the overlay's canvas layer.
package render

import (
	"context"
	"image"
	"image/png"
	"io"
	"math"
	"sync"
	"time"

	pdferrors "github.com/a3tai/mcp-pdf-overlay/internal/pdf/errors"
	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/references"
	"github.com/klippa-app/go-pdfium/requests"
	"github.com/klippa-app/go-pdfium/webassembly"
	"github.com/pkg/errors"
)

// pointsPerInch maps scale 1.0 onto PDF user-space units
const pointsPerInch = 72.0

// Renderer draws one page of an already opened document
type Renderer interface {
	RenderPage(ctx context.Context, pageNumber int, scale float64) (image.Image, error)
	Close() error
}

// Pool owns the PDFium WebAssembly runtime. One pool serves every document.
type Pool struct {
	pool    pdfium.Pool
	timeout time.Duration
}

// NewPool starts the runtime with up to maxInstances concurrent documents
func NewPool(maxInstances int, timeout time.Duration) (*Pool, error) {
	if maxInstances <= 0 {
		maxInstances = 1
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	pool, err := webassembly.Init(webassembly.Config{
		MinIdle:  1,
		MaxIdle:  1,
		MaxTotal: maxInstances,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialise pdfium")
	}
	return &Pool{pool: pool, timeout: timeout}, nil
}

// Open loads data into a dedicated PDFium instance
func (p *Pool) Open(data []byte) (*PDFium, error) {
	instance, err := p.pool.GetInstance(p.timeout)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get pdfium instance")
	}

	doc, err := instance.OpenDocument(&requests.OpenDocument{File: &data})
	if err != nil {
		instance.Close()
		return nil, errors.Wrap(err, "failed to open PDF document")
	}

	count, err := instance.FPDF_GetPageCount(&requests.FPDF_GetPageCount{Document: doc.Document})
	if err != nil {
		instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{Document: doc.Document})
		instance.Close()
		return nil, errors.Wrap(err, "failed to get page count")
	}

	return &PDFium{instance: instance, doc: doc.Document, pageCount: count.PageCount}, nil
}

// Close shuts the runtime down
func (p *Pool) Close() error {
	return p.pool.Close()
}

// PDFium renders pages of one document. PDFium instances are not safe for
// concurrent use, so renders are serialised.
type PDFium struct {
	mu        sync.Mutex
	instance  pdfium.Pdfium
	doc       references.FPDF_DOCUMENT
	pageCount int
	closed    bool
}

// PageCount returns the number of pages PDFium sees
func (r *PDFium) PageCount() int { return r.pageCount }

// RenderPage rasterises pageNumber (1-based) at 72*scale DPI. A context
// cancelled before or during the render yields a render-cancelled error and
// no image.
func (r *PDFium) RenderPage(ctx context.Context, pageNumber int, scale float64) (image.Image, error) {
	if ctx.Err() != nil {
		return nil, pdferrors.NewRenderCancelled(pageNumber)
	}
	if pageNumber < 1 || pageNumber > r.pageCount {
		return nil, pdferrors.NewRenderFailure(pageNumber, errors.Errorf("page out of range (1-%d)", r.pageCount))
	}
	if math.IsNaN(scale) || math.IsInf(scale, 0) || scale <= 0 {
		return nil, pdferrors.NewRenderFailure(pageNumber, errors.Errorf("invalid scale %v", scale))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, pdferrors.NewRenderCancelled(pageNumber)
	}
	if ctx.Err() != nil {
		return nil, pdferrors.NewRenderCancelled(pageNumber)
	}

	resp, err := r.instance.RenderPageInDPI(&requests.RenderPageInDPI{
		DPI: int(math.Round(pointsPerInch * scale)),
		Page: requests.Page{
			ByIndex: &requests.PageByIndex{
				Document: r.doc,
				Index:    pageNumber - 1,
			},
		},
	})
	if err != nil {
		return nil, pdferrors.NewRenderFailure(pageNumber, err)
	}
	defer resp.Cleanup()

	// The result buffer is released by Cleanup
	src := resp.Result.Image
	img := image.NewRGBA(src.Bounds())
	copy(img.Pix, src.Pix)

	if ctx.Err() != nil {
		return nil, pdferrors.NewRenderCancelled(pageNumber)
	}
	return img, nil
}

// Close releases the document and returns the instance to the pool
func (r *PDFium) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	_, closeErr := r.instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{Document: r.doc})
	if err := r.instance.Close(); err != nil {
		return errors.Wrap(err, "failed to release pdfium instance")
	}
	return closeErr
}

// EncodePNG writes img as PNG
func EncodePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}
