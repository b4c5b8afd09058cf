package extraction

import "strings"

// Box is an axis-aligned region in viewport space
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Contains reports whether el lies entirely inside the box
func (b Box) Contains(el Element) bool {
	return el.X >= b.X &&
		el.Y >= b.Y &&
		el.X+el.Width <= b.X+b.Width &&
		el.Y+el.Height <= b.Y+b.Height
}

// Query selects elements. Empty criteria match everything.
type Query struct {
	Types []ElementType `json:"types,omitempty"`
	Pages []int         `json:"pages,omitempty"`
	Box   *Box          `json:"box,omitempty"`
	Text  string        `json:"text,omitempty"`
}

// Apply returns the elements matching q, in input order
func (q Query) Apply(elements []Element) []Element {
	filtered := []Element{}
	for _, el := range elements {
		if q.Matches(el) {
			filtered = append(filtered, el)
		}
	}
	return filtered
}

// Matches checks a single element against every criterion of q
func (q Query) Matches(el Element) bool {
	if len(q.Types) > 0 {
		found := false
		for _, t := range q.Types {
			if el.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(q.Pages) > 0 {
		found := false
		for _, p := range q.Pages {
			if el.PageNumber == p {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if q.Box != nil && !q.Box.Contains(el) {
		return false
	}

	if q.Text != "" && !strings.Contains(strings.ToLower(el.Content), strings.ToLower(q.Text)) {
		return false
	}

	return true
}

// FilterByType keeps elements of the given kind
func FilterByType(elements []Element, t ElementType) []Element {
	return Query{Types: []ElementType{t}}.Apply(elements)
}

// FilterByPage keeps elements of the given page
func FilterByPage(elements []Element, pageNum int) []Element {
	return Query{Pages: []int{pageNum}}.Apply(elements)
}

// WithinBox keeps elements fully contained in the given viewport region
func WithinBox(elements []Element, x, y, width, height float64) []Element {
	return Query{Box: &Box{X: x, Y: y, Width: width, Height: height}}.Apply(elements)
}

// Flatten concatenates the elements of every page in page order
func Flatten(pages []PageResult) []Element {
	var n int
	for _, p := range pages {
		n += len(p.Elements)
	}
	out := make([]Element, 0, n)
	for _, p := range pages {
		out = append(out, p.Elements...)
	}
	return out
}
