package extraction

// Rescale returns a new list with every geometric field multiplied by
// newScale/oldScale. Ids, content and metadata are carried over; the input is
// not modified.
//
// Image elements keep their rescaled positions, which is not what a fresh
// parse at newScale would produce once more than one image sits on a page.
// Minimum sizes are not reapplied either.
func Rescale(elements []Element, newScale, oldScale float64) ([]Element, error) {
	if err := ValidateScale(newScale); err != nil {
		return nil, err
	}
	if err := ValidateScale(oldScale); err != nil {
		return nil, err
	}

	factor := newScale / oldScale
	out := make([]Element, len(elements))
	for i, el := range elements {
		el.X *= factor
		el.Y *= factor
		el.Width *= factor
		el.Height *= factor
		if el.FontSize != 0 {
			el.FontSize *= factor
		}
		el.Scale = newScale
		out[i] = el
	}
	return out, nil
}

// RescalePages applies Rescale to every page result, viewports included
func RescalePages(pages []PageResult, newScale, oldScale float64) ([]PageResult, error) {
	out := make([]PageResult, len(pages))
	for i, p := range pages {
		elements, err := Rescale(p.Elements, newScale, oldScale)
		if err != nil {
			return nil, err
		}
		factor := newScale / oldScale
		out[i] = PageResult{
			PageNumber: p.PageNumber,
			Viewport: Viewport{
				Width:  p.Viewport.Width * factor,
				Height: p.Viewport.Height * factor,
				Scale:  newScale,
			},
			Elements: elements,
			Errors:   p.Errors,
		}
	}
	return out, nil
}
