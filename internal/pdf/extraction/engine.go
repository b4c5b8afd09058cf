package extraction

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"

	pdferrors "github.com/a3tai/mcp-pdf-overlay/internal/pdf/errors"
)

// Minimum element sizes in viewport space
const (
	minElementSize       = 1.0
	minAnnotationWidth   = 10.0
	minAnnotationHeight  = 10.0
	minFormFieldWidth    = 20.0
	minFormFieldHeight   = 15.0
	minTextFontSize      = 8.0
	imageOffset          = 50.0
	imageStride          = 100.0
	imageSize            = 100.0
	imageSubtypeEmbedded = "embedded"
	unknownSubtype       = "unknown"
)

// Element kinds as reported in kind failures
const (
	kindText       = "text"
	kindAnnotation = "annotation"
	kindImage      = "image"
	kindForm       = "form"
)

// PageResult is the outcome of building one page. A page that failed its
// top-level parse has no elements and at least one error.
type PageResult struct {
	PageNumber int                   `json:"page_number"`
	Viewport   Viewport              `json:"viewport"`
	Elements   []Element             `json:"elements"`
	Errors     []*pdferrors.PDFError `json:"errors,omitempty"`
}

// Builder turns the raw content of a page into an ordered element list:
// text, then annotations, then images, then form fields
type Builder struct {
	grouper LineGrouper
	logger  *log.Logger
}

// BuilderOption configures a Builder
type BuilderOption func(*Builder)

// WithLineGrouper overrides the line grouping tolerances
func WithLineGrouper(g LineGrouper) BuilderOption {
	return func(b *Builder) { b.grouper = g }
}

// WithLogger sets the logger used for kind and page failures
func WithLogger(l *log.Logger) BuilderOption {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBuilder creates a builder with default grouping and the standard logger
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		grouper: DefaultLineGrouper(),
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BuildDocument builds every page in order. Page failures are recorded in
// their PageResult; only an invalid scale or a cancelled context returns an
// error, and in the cancelled case the partial result is discarded.
func (b *Builder) BuildDocument(ctx context.Context, doc Document, scale float64) ([]PageResult, error) {
	if err := ValidateScale(scale); err != nil {
		return nil, err
	}

	total := doc.NumPages()
	results := make([]PageResult, 0, total)
	for pageNum := 1; pageNum <= total; pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results = append(results, b.BuildPage(ctx, doc, pageNum, scale))
	}
	return results, nil
}

// BuildPage builds the elements of one page. It never panics and never
// returns a partially built page on top-level failure.
func (b *Builder) BuildPage(_ context.Context, doc Document, pageNum int, scale float64) (result PageResult) {
	result = PageResult{PageNumber: pageNum, Elements: []Element{}}

	defer func() {
		if r := recover(); r != nil {
			b.logger.Printf("[Builder] PANIC on page %d: %v", pageNum, r)
			result.Elements = []Element{}
			result.Errors = append(result.Errors, pdferrors.NewParseFailure(pageNum, fmt.Errorf("panic: %v", r)))
		}
	}()

	if err := ValidateScale(scale); err != nil {
		result.Errors = append(result.Errors, pdferrors.NewParseFailure(pageNum, err))
		return result
	}

	page, err := doc.Page(pageNum)
	if err != nil {
		b.logger.Printf("[Builder] page %d: parse failed: %v", pageNum, err)
		result.Errors = append(result.Errors, pdferrors.NewParseFailure(pageNum, err))
		return result
	}

	box := page.Box()
	_, pageHeight := PageSize(box)
	result.Viewport = NewViewport(box, scale)

	kinds := []struct {
		name  string
		build func() ([]Element, error)
	}{
		{kindText, func() ([]Element, error) { return b.buildText(page, pageNum, pageHeight, scale) }},
		{kindAnnotation, func() ([]Element, error) { return b.buildAnnotations(page, pageNum, pageHeight, scale) }},
		{kindImage, func() ([]Element, error) { return b.buildImages(page, pageNum, scale) }},
		{kindForm, func() ([]Element, error) { return b.buildFormFields(page, pageNum, pageHeight, scale) }},
	}

	for _, k := range kinds {
		elements, kindErr := b.runKind(pageNum, k.name, k.build)
		if kindErr != nil {
			result.Errors = append(result.Errors, kindErr)
			continue
		}
		result.Elements = append(result.Elements, elements...)
	}

	return result
}

// runKind isolates one element kind so its failure leaves the others intact
func (b *Builder) runKind(pageNum int, kind string, build func() ([]Element, error)) (elements []Element, kindErr *pdferrors.PDFError) {
	defer func() {
		if r := recover(); r != nil {
			elements = nil
			kindErr = pdferrors.NewKindFailure(pageNum, kind, fmt.Errorf("panic: %v", r))
			b.logger.Printf("[Builder] PANIC in %s extraction on page %d: %v", kind, pageNum, r)
		}
	}()

	elements, err := build()
	if err != nil {
		b.logger.Printf("[Builder] page %d: %s extraction failed: %v", pageNum, kind, err)
		return nil, pdferrors.NewKindFailure(pageNum, kind, err)
	}
	return elements, nil
}

func (b *Builder) buildText(page Page, pageNum int, pageHeight, scale float64) ([]Element, error) {
	runs, err := page.TextRuns()
	if err != nil {
		return nil, err
	}

	var elements []Element
	for lineIdx, line := range b.grouper.Group(runs) {
		for itemIdx, run := range line {
			if strings.TrimSpace(run.Text) == "" {
				continue
			}
			if err := run.Validate(); err != nil {
				return nil, err
			}

			x, y := ToViewport(run.X(), run.Y(), pageHeight, scale)
			width := run.Width * scale
			height := run.Height * scale
			x, y, width, height = clampGeometry(x, y, width, height, minElementSize, minElementSize)

			elements = append(elements, Element{
				ID:         fmt.Sprintf("text-%d-%d-%d", pageNum, lineIdx, itemIdx),
				Type:       ElementTypeText,
				Subtype:    Classify(run.Height, run.Text),
				Content:    run.Text,
				X:          x,
				Y:          y,
				Width:      width,
				Height:     height,
				FontSize:   math.Max(minTextFontSize, run.Height*scale),
				FontFamily: run.FontName,
				PageNumber: pageNum,
				Scale:      scale,
				Metadata: Metadata{Text: &TextMetadata{
					LineIndex:      lineIdx,
					ItemIndex:      itemIdx,
					HasEOL:         run.EOL,
					Direction:      run.Dir,
					OriginalWidth:  run.Width,
					OriginalHeight: run.Height,
					OriginalX:      run.X(),
					OriginalY:      run.Y(),
				}},
			})
		}
	}
	return elements, nil
}

func (b *Builder) buildAnnotations(page Page, pageNum int, pageHeight, scale float64) ([]Element, error) {
	annots, err := page.Annotations()
	if err != nil {
		return nil, err
	}

	elements := make([]Element, 0, len(annots))
	for i, annot := range annots {
		if err := annot.Validate(); err != nil {
			return nil, err
		}

		x, y, w, h := rectToViewport(annot.Rect, pageHeight, scale)
		x, y, w, h = clampGeometry(x, y, w, h, minAnnotationWidth, minAnnotationHeight)

		subtype := annot.Subtype
		if subtype == "" {
			subtype = unknownSubtype
		}

		elements = append(elements, Element{
			ID:         fmt.Sprintf("annotation-%d-%d", pageNum, i),
			Type:       ElementTypeAnnotation,
			Subtype:    subtype,
			Content:    annotationContent(annot),
			X:          x,
			Y:          y,
			Width:      w,
			Height:     h,
			PageNumber: pageNum,
			Scale:      scale,
			Metadata: Metadata{Annotation: &AnnotationMetadata{
				AnnotationType: annot.Subtype,
				HasContent:     annot.Contents != "" || annot.Title != "",
				URL:            annot.URL,
				Dest:           annot.Dest,
				OriginalRect:   annot.Rect.Normalize(),
			}},
		})
	}
	return elements, nil
}

// buildImages places image elements on a fixed stacked grid. Real image
// bounds would need the CTM at each paint operator; this is an estimate.
func (b *Builder) buildImages(page Page, pageNum int, scale float64) ([]Element, error) {
	ops, err := page.ImageOps()
	if err != nil {
		return nil, err
	}

	elements := make([]Element, 0, len(ops))
	for i, op := range ops {
		if err := op.Validate(); err != nil {
			return nil, err
		}

		elements = append(elements, Element{
			ID:         fmt.Sprintf("image-%d-%d", pageNum, i),
			Type:       ElementTypeImage,
			Subtype:    imageSubtypeEmbedded,
			Content:    fmt.Sprintf("Image %d", i+1),
			X:          imageOffset * scale,
			Y:          (imageOffset + imageStride*float64(i)) * scale,
			Width:      imageSize * scale,
			Height:     imageSize * scale,
			PageNumber: pageNum,
			Scale:      scale,
			Metadata: Metadata{Image: &ImageMetadata{
				OperatorIndex: op.OperatorIndex,
				ImageIndex:    i,
				Name:          op.Name,
				PixelWidth:    op.PixelWidth,
				PixelHeight:   op.PixelHeight,
			}},
		})
	}
	return elements, nil
}

// buildFormFields emits one element per widget annotation. The id index is
// the annotation's position, so form ids can have gaps.
func (b *Builder) buildFormFields(page Page, pageNum int, pageHeight, scale float64) ([]Element, error) {
	annots, err := page.Annotations()
	if err != nil {
		return nil, err
	}

	var elements []Element
	for i, annot := range annots {
		if annot.Field == nil {
			continue
		}
		if err := annot.Validate(); err != nil {
			return nil, err
		}

		field := annot.Field
		x, y, w, h := rectToViewport(annot.Rect, pageHeight, scale)
		x, y, w, h = clampGeometry(x, y, w, h, minFormFieldWidth, minFormFieldHeight)

		content := field.FieldName
		if content == "" {
			content = field.FieldType + " field"
		}

		elements = append(elements, Element{
			ID:         fmt.Sprintf("form-%d-%d", pageNum, i),
			Type:       ElementTypeFormField,
			Subtype:    field.FieldType,
			Content:    content,
			X:          x,
			Y:          y,
			Width:      w,
			Height:     h,
			PageNumber: pageNum,
			Scale:      scale,
			Metadata: Metadata{Form: &FormMetadata{
				FieldType:    field.FieldType,
				FieldName:    field.FieldName,
				FieldValue:   field.FieldValue,
				Required:     field.Required,
				ReadOnly:     field.ReadOnly,
				OriginalRect: annot.Rect.Normalize(),
			}},
		})
	}
	return elements, nil
}

func annotationContent(a RawAnnotation) string {
	switch {
	case a.Contents != "":
		return a.Contents
	case a.Title != "":
		return a.Title
	case a.Subtype != "":
		return a.Subtype + " annotation"
	default:
		return unknownSubtype + " annotation"
	}
}
