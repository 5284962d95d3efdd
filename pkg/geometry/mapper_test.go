package geometry

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tolerance = 1e-9

func assertRectInDelta(t *testing.T, want, got Rect) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, tolerance, "x")
	assert.InDelta(t, want.Y, got.Y, tolerance, "y")
	assert.InDelta(t, want.W, got.W, tolerance, "w")
	assert.InDelta(t, want.H, got.H, tolerance, "h")
}

func TestCanvasToPDF_A4AtUnitScale(t *testing.T) {
	page := Size{W: 595, H: 842}
	canvas := Size{W: 595, H: 842}

	got := CanvasToPDF(R(100, 100, 200, 50), canvas, page)

	assertRectInDelta(t, Rect{X: 100, Y: 692, W: 200, H: 50}, got)
}

func TestCanvasToPDF_ScaledCanvas(t *testing.T) {
	page := Size{W: 595, H: 842}
	canvas := page.Scale(2)

	got := CanvasToPDF(R(200, 200, 400, 100), canvas, page)

	assertRectInDelta(t, Rect{X: 100, Y: 692, W: 200, H: 50}, got)
}

func TestCanvasToPDF_NonNegativeSize(t *testing.T) {
	page := Size{W: 612, H: 792}
	canvas := Size{W: 306, H: 396}

	got := CanvasToPDF(Rect{X: 50, Y: 60, W: -20, H: -30}, canvas, page)

	assert.GreaterOrEqual(t, got.W, 0.0)
	assert.GreaterOrEqual(t, got.H, 0.0)
	assertRectInDelta(t, Rect{X: 60, Y: 792 - 120, W: 40, H: 60}, got)
}

func TestCanvasToPDF_ZeroAreaStaysZero(t *testing.T) {
	page := Size{W: 595, H: 842}
	got := CanvasToPDF(R(10, 10, 0, 0), page, page)
	assert.True(t, got.Empty())
	assert.InDelta(t, 832.0, got.Y, tolerance)
}

func TestCanvasToPDF_RoundTrip(t *testing.T) {
	page := Size{W: 595.28, H: 841.89}
	scales := []float64{0.37, 1, 1.5, 2.25, 3}
	rects := []Rect{
		R(0, 0, 1, 1),
		R(12.5, 300.25, 80, 20),
		R(100, 100, 200, 50),
		R(400, 700, 150.75, 99.5),
	}

	for _, s := range scales {
		canvas := page.Scale(s)
		for _, r := range rects {
			r := r.Scale(s)
			back := PDFToCanvas(CanvasToPDF(r, canvas, page), canvas, page)
			assertRectInDelta(t, r, back)
		}
	}
}

func TestAffineInverse(t *testing.T) {
	tr := NewAffine(2, 0, 0, -2, 10, 500)
	inv, err := tr.Inverse()
	require.NoError(t, err)

	p := Pt(33, 44)
	back := inv.Apply(tr.Apply(p))
	assert.InDelta(t, p.X, back.X, tolerance)
	assert.InDelta(t, p.Y, back.Y, tolerance)

	_, err = NewAffine(0, 0, 0, 0, 1, 1).Inverse()
	assert.Error(t, err)
}

func TestRectFromPoints_AnyDragDirection(t *testing.T) {
	want := Rect{X: 10, Y: 20, W: 30, H: 40}
	assert.Equal(t, want, RectFromPoints(Pt(10, 20), Pt(40, 60)))
	assert.Equal(t, want, RectFromPoints(Pt(40, 60), Pt(10, 20)))
	assert.Equal(t, want, RectFromPoints(Pt(40, 20), Pt(10, 60)))
	assert.Equal(t, want, RectFromPoints(Pt(10, 60), Pt(40, 20)))
}

func TestRectImageRoundsOutwards(t *testing.T) {
	assert.Equal(t, image.Rect(1, 2, 5, 7), R(1.2, 2.9, 3.5, 4.05).Image())
}

func TestRectIntersect(t *testing.T) {
	a := R(0, 0, 10, 10)
	assert.Equal(t, R(5, 5, 5, 5), a.Intersect(R(5, 5, 20, 20)))
	assert.True(t, a.Intersect(R(20, 20, 5, 5)).Empty())
}

func TestParseRect(t *testing.T) {
	r, err := ParseRect("100, 100,200,50")
	require.NoError(t, err)
	assert.Equal(t, Rect{X: 100, Y: 100, W: 200, H: 50}, r)
	assert.Equal(t, "100,100,200,50", r.String())

	r, err = ParseRect("300,150,-200,-50")
	require.NoError(t, err)
	assert.Equal(t, Rect{X: 100, Y: 100, W: 200, H: 50}, r)

	for _, bad := range []string{"", "1,2,3", "1,2,3,x", "1,2,3,4,5"} {
		_, err := ParseRect(bad)
		assert.Error(t, err, bad)
	}
}
