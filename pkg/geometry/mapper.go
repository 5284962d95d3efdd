package geometry

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Affine is a 2D affine transform stored as a 3x3 homogeneous matrix.
type Affine struct {
	m *mat.Dense
}

// NewAffine builds the transform
//
//	x' = a*x + c*y + e
//	y' = b*x + d*y + f
//
// using the same argument order as a PDF "cm" operator.
func NewAffine(a, b, c, d, e, f float64) Affine {
	return Affine{m: mat.NewDense(3, 3, []float64{
		a, c, e,
		b, d, f,
		0, 0, 1,
	})}
}

// Apply transforms a single point.
func (t Affine) Apply(p Point) Point {
	in := mat.NewVecDense(3, []float64{p.X, p.Y, 1})
	var out mat.VecDense
	out.MulVec(t.m, in)
	return Point{X: out.AtVec(0), Y: out.AtVec(1)}
}

// ApplyRect transforms both corners of r and returns their normalized bounding box.
// Only valid for transforms without rotation or shear, which is all the mapper builds.
func (t Affine) ApplyRect(r Rect) Rect {
	return RectFromPoints(t.Apply(r.Min()), t.Apply(r.Max()))
}

// Inverse returns the inverse transform.
func (t Affine) Inverse() (Affine, error) {
	var inv mat.Dense
	if err := inv.Inverse(t.m); err != nil {
		return Affine{}, fmt.Errorf("transform is not invertible: %w", err)
	}
	return Affine{m: &inv}, nil
}

// CanvasToPDFTransform returns the transform from canvas pixels to PDF points for a page
// rendered onto a canvas of the given pixel size. Both axes use the horizontal scale
// factor; the surface is always rendered with the page aspect.
func CanvasToPDFTransform(canvas, page Size) Affine {
	s := page.W / canvas.W
	return NewAffine(s, 0, 0, -s, 0, page.H)
}

// CanvasToPDF converts a canvas-pixel rectangle to PDF point space, flipping the Y axis:
//
//	pdfY = pageHeight - (rect.Y + rect.H) * scale, scale = pageWidth / canvasWidth
//
// The canvas must have a positive width; callers never map before a surface exists.
func CanvasToPDF(rect Rect, canvas, page Size) Rect {
	if canvas.W <= 0 {
		return Rect{}
	}
	return CanvasToPDFTransform(canvas, page).ApplyRect(rect.Normalize())
}

// PDFToCanvas is the inverse of CanvasToPDF.
func PDFToCanvas(rect Rect, canvas, page Size) Rect {
	if canvas.W <= 0 || page.W <= 0 {
		return Rect{}
	}
	inv, err := CanvasToPDFTransform(canvas, page).Inverse()
	if err != nil {
		return Rect{}
	}
	return inv.ApplyRect(rect.Normalize())
}
