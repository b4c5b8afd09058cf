package extraction

import (
	"errors"
	"io"
	"log"
)

var errAccessor = errors.New("accessor failed")

type fakePage struct {
	box       Rect
	runs      []RawTextRun
	annots    []RawAnnotation
	images    []RawImageOp
	runsErr   error
	annotsErr error
	imagesErr error
	panicOn   string
}

func (p *fakePage) Box() Rect { return p.box }

func (p *fakePage) TextRuns() ([]RawTextRun, error) {
	if p.panicOn == kindText {
		panic("broken text stream")
	}
	return p.runs, p.runsErr
}

func (p *fakePage) Annotations() ([]RawAnnotation, error) {
	if p.panicOn == kindAnnotation {
		panic("broken annotation dictionary")
	}
	return p.annots, p.annotsErr
}

func (p *fakePage) ImageOps() ([]RawImageOp, error) {
	if p.panicOn == kindImage {
		panic("broken operator list")
	}
	return p.images, p.imagesErr
}

type fakeDocument struct {
	pages   []*fakePage
	pageErr map[int]error
}

func (d *fakeDocument) NumPages() int { return len(d.pages) }

func (d *fakeDocument) Page(n int) (Page, error) {
	if err := d.pageErr[n]; err != nil {
		return nil, err
	}
	if n < 1 || n > len(d.pages) {
		return nil, errors.New("page out of range")
	}
	return d.pages[n-1], nil
}

// docWithPageAt places p at pageNum, preceded by empty letter pages
func docWithPageAt(pageNum int, p *fakePage) *fakeDocument {
	pages := make([]*fakePage, pageNum)
	for i := range pages[:pageNum-1] {
		pages[i] = &fakePage{box: letterBox()}
	}
	pages[pageNum-1] = p
	return &fakeDocument{pages: pages}
}

func letterBox() Rect { return Rect{X0: 0, Y0: 0, X1: 612, Y1: 792} }

func run(text string, x, y, w, h float64) RawTextRun {
	return RawTextRun{
		Text:      text,
		Transform: [6]float64{h, 0, 0, h, x, y},
		Width:     w,
		Height:    h,
		FontName:  "Helvetica",
		Dir:       "ltr",
	}
}

func quietBuilder(opts ...BuilderOption) *Builder {
	return NewBuilder(append([]BuilderOption{WithLogger(log.New(io.Discard, "", 0))}, opts...)...)
}
