package source

import (
	"strings"

	"github.com/a3tai/mcp-pdf-overlay/internal/pdf/extraction"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/pkg/errors"
)

// Field flag bits (PDF 32000-1, table 221)
const (
	fieldFlagReadOnly = 1 << 0
	fieldFlagRequired = 1 << 1
)

// maxParentDepth bounds walks up the field hierarchy
const maxParentDepth = 32

// annotationReader decodes a page's /Annots array through pdfcpu
type annotationReader struct {
	ctx *model.Context
}

// read returns the page's annotations in array order. A malformed entry fails
// the whole page's annotations.
func (ar *annotationReader) read(pageDict types.Dict) ([]extraction.RawAnnotation, error) {
	annotsObj, found := pageDict.Find("Annots")
	if !found {
		return nil, nil
	}

	annots, err := ar.ctx.DereferenceArray(annotsObj)
	if err != nil {
		return nil, errors.Wrap(err, "failed to dereference Annots array")
	}

	out := make([]extraction.RawAnnotation, 0, len(annots))
	for i, obj := range annots {
		dict, err := ar.ctx.DereferenceDict(obj)
		if err != nil {
			return nil, errors.Wrapf(err, "annotation %d", i)
		}
		if dict == nil {
			return nil, errors.Errorf("annotation %d: not a dictionary", i)
		}

		annot, err := ar.annotation(dict)
		if err != nil {
			return nil, errors.Wrapf(err, "annotation %d", i)
		}
		out = append(out, annot)
	}
	return out, nil
}

func (ar *annotationReader) annotation(dict types.Dict) (extraction.RawAnnotation, error) {
	var annot extraction.RawAnnotation

	rect, err := ar.rect(dict)
	if err != nil {
		return annot, err
	}
	annot.Rect = rect
	annot.Subtype = ar.name(dict, "Subtype")
	annot.Contents = ar.text(dict, "Contents")

	if fieldType := ar.fieldType(dict); fieldType != "" {
		annot.Field = ar.formField(dict, fieldType)
	} else {
		// T is the author for markup annotations and the field name for widgets
		annot.Title = ar.text(dict, "T")
	}

	annot.URL, annot.Dest = ar.action(dict)
	return annot, nil
}

func (ar *annotationReader) rect(dict types.Dict) (extraction.Rect, error) {
	obj, found := dict.Find("Rect")
	if !found {
		return extraction.Rect{}, errors.New("missing Rect")
	}
	arr, err := ar.ctx.DereferenceArray(obj)
	if err != nil {
		return extraction.Rect{}, errors.Wrap(err, "invalid Rect")
	}
	if len(arr) != 4 {
		return extraction.Rect{}, errors.Errorf("Rect has %d entries", len(arr))
	}

	var coords [4]float64
	for i, c := range arr {
		f, err := ar.ctx.DereferenceNumber(c)
		if err != nil {
			return extraction.Rect{}, errors.Wrapf(err, "Rect entry %d", i)
		}
		coords[i] = f
	}
	return extraction.Rect{X0: coords[0], Y0: coords[1], X1: coords[2], Y1: coords[3]}.Normalize(), nil
}

// fieldType resolves FT, inherited through the Parent chain for kids
func (ar *annotationReader) fieldType(dict types.Dict) string {
	return ar.inheritedName(dict, "FT")
}

func (ar *annotationReader) formField(dict types.Dict, fieldType string) *extraction.RawFormField {
	field := &extraction.RawFormField{
		FieldType: fieldType,
		FieldName: ar.qualifiedName(dict),
	}

	if v, ok := ar.inherited(dict, "V"); ok {
		field.FieldValue = ar.value(v)
	}

	if ffObj, ok := ar.inherited(dict, "Ff"); ok {
		if ff, err := ar.ctx.DereferenceInteger(ffObj); err == nil && ff != nil {
			flags := int(*ff)
			field.ReadOnly = flags&fieldFlagReadOnly != 0
			field.Required = flags&fieldFlagRequired != 0
		}
	}
	return field
}

// qualifiedName joins the partial names of the field and its ancestors with dots
func (ar *annotationReader) qualifiedName(dict types.Dict) string {
	var parts []string
	current := dict
	for depth := 0; current != nil && depth < maxParentDepth; depth++ {
		if t := ar.text(current, "T"); t != "" {
			parts = append(parts, t)
		}
		current = ar.parent(current)
	}

	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, ".")
}

// value renders V as display text. Names (checkboxes, radios) keep their
// export value; choice arrays are joined.
func (ar *annotationReader) value(obj types.Object) string {
	if s, err := ar.ctx.DereferenceStringOrHexLiteral(obj, model.V10, nil); err == nil {
		return s
	}
	if n, err := ar.ctx.DereferenceName(obj, model.V10, nil); err == nil {
		return string(n)
	}
	if arr, err := ar.ctx.DereferenceArray(obj); err == nil {
		var values []string
		for _, item := range arr {
			if s, err := ar.ctx.DereferenceStringOrHexLiteral(item, model.V10, nil); err == nil {
				values = append(values, s)
			}
		}
		return strings.Join(values, ", ")
	}
	return ""
}

// action extracts a link target: a URI action, a GoTo destination or a
// plain /Dest entry
func (ar *annotationReader) action(dict types.Dict) (url, dest string) {
	if d, found := dict.Find("Dest"); found {
		dest = ar.destination(d)
	}

	aObj, found := dict.Find("A")
	if !found {
		return url, dest
	}
	action, err := ar.ctx.DereferenceDict(aObj)
	if err != nil || action == nil {
		return url, dest
	}

	switch ar.name(action, "S") {
	case "URI":
		url = ar.text(action, "URI")
	case "GoTo":
		if d, found := action.Find("D"); found && dest == "" {
			dest = ar.destination(d)
		}
	}
	return url, dest
}

func (ar *annotationReader) destination(obj types.Object) string {
	if s, err := ar.ctx.DereferenceStringOrHexLiteral(obj, model.V10, nil); err == nil {
		return s
	}
	if n, err := ar.ctx.DereferenceName(obj, model.V10, nil); err == nil {
		return string(n)
	}
	if arr, err := ar.ctx.DereferenceArray(obj); err == nil && arr != nil {
		return arr.String()
	}
	return ""
}

func (ar *annotationReader) inherited(dict types.Dict, key string) (types.Object, bool) {
	current := dict
	for depth := 0; current != nil && depth < maxParentDepth; depth++ {
		if obj, found := current.Find(key); found {
			return obj, true
		}
		current = ar.parent(current)
	}
	return nil, false
}

func (ar *annotationReader) inheritedName(dict types.Dict, key string) string {
	obj, ok := ar.inherited(dict, key)
	if !ok {
		return ""
	}
	n, err := ar.ctx.DereferenceName(obj, model.V10, nil)
	if err != nil {
		return ""
	}
	return string(n)
}

func (ar *annotationReader) parent(dict types.Dict) types.Dict {
	obj, found := dict.Find("Parent")
	if !found {
		return nil
	}
	parent, err := ar.ctx.DereferenceDict(obj)
	if err != nil {
		return nil
	}
	return parent
}

func (ar *annotationReader) name(dict types.Dict, key string) string {
	obj, found := dict.Find(key)
	if !found {
		return ""
	}
	n, err := ar.ctx.DereferenceName(obj, model.V10, nil)
	if err != nil {
		return ""
	}
	return string(n)
}

func (ar *annotationReader) text(dict types.Dict, key string) string {
	obj, found := dict.Find(key)
	if !found {
		return ""
	}
	s, err := ar.ctx.DereferenceStringOrHexLiteral(obj, model.V10, nil)
	if err != nil {
		return ""
	}
	return s
}
