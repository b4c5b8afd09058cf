package extraction

import (
	"fmt"
	"math"
)

// ElementType is the top-level kind of a document element
type ElementType string

const (
	ElementTypeText       ElementType = "text"
	ElementTypeAnnotation ElementType = "annotation"
	ElementTypeImage      ElementType = "image"
	ElementTypeFormField  ElementType = "form-field"
)

// ParseElementType maps user input onto an ElementType. "form" is accepted
// as shorthand for form-field.
func ParseElementType(s string) (ElementType, error) {
	switch s {
	case "text":
		return ElementTypeText, nil
	case "annotation":
		return ElementTypeAnnotation, nil
	case "image":
		return ElementTypeImage, nil
	case "form-field", "form":
		return ElementTypeFormField, nil
	default:
		return "", fmt.Errorf("unknown element type %q", s)
	}
}

// Rect is a rectangle in PDF user space, origin bottom-left
type Rect struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// Normalize returns r with X0 <= X1 and Y0 <= Y1
func (r Rect) Normalize() Rect {
	if r.X0 > r.X1 {
		r.X0, r.X1 = r.X1, r.X0
	}
	if r.Y0 > r.Y1 {
		r.Y0, r.Y1 = r.Y1, r.Y0
	}
	return r
}

func (r Rect) Width() float64  { return r.X1 - r.X0 }
func (r Rect) Height() float64 { return r.Y1 - r.Y0 }

func (r Rect) finite() bool {
	return isFinite(r.X0) && isFinite(r.Y0) && isFinite(r.X1) && isFinite(r.Y1)
}

// RawTextRun is one glyph run as emitted by the content-stream reader, in
// stream order. Transform is the text rendering matrix [a b c d e f]; (e, f)
// is the baseline origin in user space.
type RawTextRun struct {
	Text      string     `json:"text"`
	Transform [6]float64 `json:"transform"`
	Width     float64    `json:"width"`
	Height    float64    `json:"height"`
	FontName  string     `json:"font_name,omitempty"`
	EOL       bool       `json:"eol"`
	Dir       string     `json:"dir,omitempty"`
}

// X returns the baseline origin x in user space
func (r RawTextRun) X() float64 { return r.Transform[4] }

// Y returns the baseline origin y in user space
func (r RawTextRun) Y() float64 { return r.Transform[5] }

// Validate rejects runs the core cannot place
func (r RawTextRun) Validate() error {
	for i, v := range r.Transform {
		if !isFinite(v) {
			return fmt.Errorf("text run %q: transform[%d] is not finite", r.Text, i)
		}
	}
	if !isFinite(r.Width) || r.Width < 0 {
		return fmt.Errorf("text run %q: invalid width %v", r.Text, r.Width)
	}
	if !isFinite(r.Height) || r.Height < 0 {
		return fmt.Errorf("text run %q: invalid height %v", r.Text, r.Height)
	}
	return nil
}

// RawFormField carries the field descriptors of a widget annotation
type RawFormField struct {
	FieldType  string `json:"field_type"`
	FieldName  string `json:"field_name,omitempty"`
	FieldValue string `json:"field_value,omitempty"`
	Required   bool   `json:"required"`
	ReadOnly   bool   `json:"read_only"`
}

// Validate rejects form descriptors without a field type
func (f RawFormField) Validate() error {
	if f.FieldType == "" {
		return fmt.Errorf("form field %q: missing field type", f.FieldName)
	}
	return nil
}

// RawAnnotation is one entry of a page's annotation array
type RawAnnotation struct {
	Rect     Rect          `json:"rect"`
	Subtype  string        `json:"subtype"`
	Contents string        `json:"contents,omitempty"`
	Title    string        `json:"title,omitempty"`
	URL      string        `json:"url,omitempty"`
	Dest     string        `json:"dest,omitempty"`
	Field    *RawFormField `json:"field,omitempty"`
}

// Validate rejects annotations with unusable rectangles or field descriptors
func (a RawAnnotation) Validate() error {
	if !a.Rect.finite() {
		return fmt.Errorf("%s annotation: rectangle is not finite", a.Subtype)
	}
	if a.Field != nil {
		if err := a.Field.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// RawImageOp is an image paint operator found in the page's operator list
type RawImageOp struct {
	OperatorIndex int    `json:"operator_index"`
	Name          string `json:"name,omitempty"`
	PixelWidth    int    `json:"pixel_width,omitempty"`
	PixelHeight   int    `json:"pixel_height,omitempty"`
}

// Validate rejects operators with a negative position
func (op RawImageOp) Validate() error {
	if op.OperatorIndex < 0 {
		return fmt.Errorf("image op %q: negative operator index", op.Name)
	}
	return nil
}

// Element is one typed region of a page in viewport space. X, Y, Width,
// Height and FontSize are only meaningful together with Scale.
type Element struct {
	ID         string      `json:"id"`
	Type       ElementType `json:"type"`
	Subtype    string      `json:"subtype"`
	Content    string      `json:"content"`
	X          float64     `json:"x"`
	Y          float64     `json:"y"`
	Width      float64     `json:"width"`
	Height     float64     `json:"height"`
	FontSize   float64     `json:"font_size,omitempty"`
	FontFamily string      `json:"font_family,omitempty"`
	PageNumber int         `json:"page_number"`
	Scale      float64     `json:"scale"`
	Metadata   Metadata    `json:"metadata"`
}

// Metadata holds exactly one kind-specific record
type Metadata struct {
	Text       *TextMetadata       `json:"text,omitempty"`
	Annotation *AnnotationMetadata `json:"annotation,omitempty"`
	Image      *ImageMetadata      `json:"image,omitempty"`
	Form       *FormMetadata       `json:"form,omitempty"`
}

type TextMetadata struct {
	LineIndex      int     `json:"line_index"`
	ItemIndex      int     `json:"item_index"`
	HasEOL         bool    `json:"has_eol"`
	Direction      string  `json:"direction,omitempty"`
	OriginalWidth  float64 `json:"original_width"`
	OriginalHeight float64 `json:"original_height"`
	OriginalX      float64 `json:"original_x"`
	OriginalY      float64 `json:"original_y"`
}

type AnnotationMetadata struct {
	AnnotationType string `json:"annotation_type"`
	HasContent     bool   `json:"has_content"`
	URL            string `json:"url,omitempty"`
	Dest           string `json:"dest,omitempty"`
	OriginalRect   Rect   `json:"original_rect"`
}

type ImageMetadata struct {
	OperatorIndex int    `json:"operator_index"`
	ImageIndex    int    `json:"image_index"`
	Name          string `json:"name,omitempty"`
	PixelWidth    int    `json:"pixel_width,omitempty"`
	PixelHeight   int    `json:"pixel_height,omitempty"`
}

type FormMetadata struct {
	FieldType    string `json:"field_type"`
	FieldName    string `json:"field_name,omitempty"`
	FieldValue   string `json:"field_value,omitempty"`
	Required     bool   `json:"required"`
	ReadOnly     bool   `json:"read_only"`
	OriginalRect Rect   `json:"original_rect"`
}

// Page is the per-page accessor set of a loaded document
type Page interface {
	// Box returns the visible page rectangle in user space
	Box() Rect
	TextRuns() ([]RawTextRun, error)
	Annotations() ([]RawAnnotation, error)
	ImageOps() ([]RawImageOp, error)
}

// Document is a loaded document handle. Page numbers are 1-based.
type Document interface {
	NumPages() int
	Page(pageNumber int) (Page, error)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
