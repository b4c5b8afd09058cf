package extraction

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePage() *fakeDocument {
	return &fakeDocument{pages: []*fakePage{{
		box: letterBox(),
		runs: []RawTextRun{
			run("Chapter One", 72, 720, 120, 24),
			run("Body copy for the page.", 72, 690, 200, 11),
		},
		annots: []RawAnnotation{
			{Rect: Rect{X0: 72, Y0: 100, X1: 300, Y1: 130}, Subtype: "Link", URL: "https://example.com"},
			{Rect: Rect{X0: 72, Y0: 200, X1: 372, Y1: 230}, Subtype: "Widget",
				Field: &RawFormField{FieldType: "Tx", FieldName: "name"}},
		},
		images: []RawImageOp{{OperatorIndex: 4}},
	}}}
}

func TestRescale_RoundTrip(t *testing.T) {
	elements := quietBuilder().BuildPage(context.Background(), samplePage(), 1, 1.0).Elements
	require.NotEmpty(t, elements)

	for _, pair := range [][2]float64{{1, 2}, {1, 0.3}, {1.75, 4.2}} {
		s1, s2 := pair[0], pair[1]
		start, err := Rescale(elements, s1, 1.0)
		require.NoError(t, err)

		there, err := Rescale(start, s2, s1)
		require.NoError(t, err)
		back, err := Rescale(there, s1, s2)
		require.NoError(t, err)

		require.Len(t, back, len(start))
		for i := range start {
			assert.InDelta(t, start[i].X, back[i].X, 1e-9)
			assert.InDelta(t, start[i].Y, back[i].Y, 1e-9)
			assert.InDelta(t, start[i].Width, back[i].Width, 1e-9)
			assert.InDelta(t, start[i].Height, back[i].Height, 1e-9)
			assert.InDelta(t, start[i].FontSize, back[i].FontSize, 1e-9)
			assert.Equal(t, s1, back[i].Scale)
		}
	}
}

func TestRescale_MatchesReparse(t *testing.T) {
	b := quietBuilder()
	doc := samplePage()

	base := b.BuildPage(context.Background(), doc, 1, 1.0).Elements
	rescaled, err := Rescale(base, 2.0, 1.0)
	require.NoError(t, err)
	reparsed := b.BuildPage(context.Background(), doc, 1, 2.0).Elements

	require.Len(t, rescaled, len(reparsed))
	for i := range reparsed {
		assert.Equal(t, reparsed[i].ID, rescaled[i].ID)
		assert.InDelta(t, reparsed[i].X, rescaled[i].X, 1e-9, reparsed[i].ID)
		assert.InDelta(t, reparsed[i].Y, rescaled[i].Y, 1e-9, reparsed[i].ID)
		assert.InDelta(t, reparsed[i].Width, rescaled[i].Width, 1e-9, reparsed[i].ID)
		assert.InDelta(t, reparsed[i].Height, rescaled[i].Height, 1e-9, reparsed[i].ID)
	}
}

func TestRescale_DoesNotMutateInput(t *testing.T) {
	in := []Element{{ID: "text-1-0-0", X: 10, Y: 20, Width: 30, Height: 40, FontSize: 12, Scale: 1}}
	out, err := Rescale(in, 2, 1)
	require.NoError(t, err)

	assert.Equal(t, 10.0, in[0].X)
	assert.Equal(t, 1.0, in[0].Scale)
	assert.Equal(t, Element{ID: "text-1-0-0", X: 20, Y: 40, Width: 60, Height: 80, FontSize: 24, Scale: 2}, out[0])
}

func TestRescale_InvalidScale(t *testing.T) {
	_, err := Rescale(nil, 1, 0)
	assert.ErrorIs(t, err, ErrInvalidScale)
	_, err = Rescale(nil, -2, 1)
	assert.ErrorIs(t, err, ErrInvalidScale)
}

func TestRescalePages(t *testing.T) {
	pages, err := quietBuilder().BuildDocument(context.Background(), samplePage(), 1.0)
	require.NoError(t, err)

	out, err := RescalePages(pages, 0.5, 1.0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, Viewport{Width: 306, Height: 396, Scale: 0.5}, out[0].Viewport)
	assert.Equal(t, 1.0, pages[0].Viewport.Scale)
}
