package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func queryFixture() []Element {
	return []Element{
		{ID: "text-1-0-0", Type: ElementTypeText, Content: "Photosynthesis", PageNumber: 1, X: 10, Y: 10, Width: 50, Height: 10},
		{ID: "annotation-1-0", Type: ElementTypeAnnotation, Content: "Link annotation", PageNumber: 1, X: 100, Y: 100, Width: 10, Height: 10},
		{ID: "text-2-0-0", Type: ElementTypeText, Content: "Cell biology", PageNumber: 2, X: 0, Y: 0, Width: 200, Height: 20},
		{ID: "form-2-3", Type: ElementTypeFormField, Content: "email", PageNumber: 2, X: 40, Y: 40, Width: 20, Height: 15},
	}
}

func ids(elements []Element) []string {
	out := []string{}
	for _, el := range elements {
		out = append(out, el.ID)
	}
	return out
}

func TestQuery_Apply(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		want  []string
	}{
		{"empty query matches everything", Query{}, []string{"text-1-0-0", "annotation-1-0", "text-2-0-0", "form-2-3"}},
		{"by type", Query{Types: []ElementType{ElementTypeText}}, []string{"text-1-0-0", "text-2-0-0"}},
		{"by page", Query{Pages: []int{2}}, []string{"text-2-0-0", "form-2-3"}},
		{"by text is case insensitive", Query{Text: "BIOLOGY"}, []string{"text-2-0-0"}},
		{"box requires full containment", Query{Box: &Box{X: 0, Y: 0, Width: 60, Height: 60}}, []string{"text-1-0-0", "form-2-3"}},
		{"combined criteria", Query{Types: []ElementType{ElementTypeText}, Pages: []int{1}, Text: "photo"}, []string{"text-1-0-0"}},
		{"no match", Query{Pages: []int{9}}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(tt.query.Apply(queryFixture())))
		})
	}
}

func TestFilterHelpers(t *testing.T) {
	elements := queryFixture()

	assert.Equal(t, []string{"form-2-3"}, ids(FilterByType(elements, ElementTypeFormField)))
	assert.Equal(t, []string{"text-1-0-0", "annotation-1-0"}, ids(FilterByPage(elements, 1)))
	assert.Equal(t, []string{"annotation-1-0"}, ids(WithinBox(elements, 95, 95, 20, 20)))
	assert.Empty(t, WithinBox(elements, 95, 95, 10, 10))
}

func TestParseElementType(t *testing.T) {
	got, err := ParseElementType("form")
	assert.NoError(t, err)
	assert.Equal(t, ElementTypeFormField, got)

	_, err = ParseElementType("vector")
	assert.Error(t, err)
}

func TestFlatten(t *testing.T) {
	pages := []PageResult{
		{PageNumber: 1, Elements: queryFixture()[:2]},
		{PageNumber: 2},
		{PageNumber: 3, Elements: queryFixture()[2:]},
	}
	assert.Equal(t, ids(queryFixture()), ids(Flatten(pages)))
}
