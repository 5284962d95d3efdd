// Package pdftest builds small PDF and image fixtures for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"regexp"
	"strconv"
	"testing"

	"codeberg.org/go-pdf/fpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/gardar/pdfretouch/pkg/document"
	"github.com/gardar/pdfretouch/pkg/geometry"
)

// A4 is the ISO A4 page size in points.
var A4 = geometry.Size{W: 595, H: 842}

// PDF returns a PDF with one page per size, each carrying a line of text.
func PDF(tb testing.TB, sizes ...geometry.Size) document.Document {
	tb.Helper()
	if len(sizes) == 0 {
		sizes = []geometry.Size{A4}
	}

	pdf := fpdf.New("P", "pt", "", "")
	pdf.SetFont("Helvetica", "", 14)
	for i, s := range sizes {
		pdf.AddPageFormat("P", fpdf.SizeType{Wd: s.W, Ht: s.H})
		pdf.Text(40, 60, fmt.Sprintf("Page %d original text", i+1))
		pdf.Rect(100, 100, 200, 50, "D")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		tb.Fatalf("failed to build fixture PDF: %v", err)
	}
	return document.New(buf.Bytes())
}

// Solid returns a w x h image filled with c.
func Solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// Fill paints r of img with c.
func Fill(img *image.RGBA, r image.Rectangle, c color.Color) {
	r = r.Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.Set(x, y, c)
		}
	}
}

// PNG encodes a solid w x h image.
func PNG(tb testing.TB, w, h int, c color.Color) []byte {
	tb.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, Solid(w, h, c)); err != nil {
		tb.Fatalf("failed to encode fixture PNG: %v", err)
	}
	return buf.Bytes()
}

var (
	// fpdf draws images as "q w 0 0 h x y cm /In Do Q"
	imagePlacement = regexp.MustCompile(`([-\d.]+) 0 0 ([-\d.]+) ([-\d.]+) ([-\d.]+) cm /(I\w*) Do`)
	xobjectUse     = regexp.MustCompile(`/([^\s/\[\]()<>]+) Do`)
)

// ImagePlacements returns the PDF rectangles images are drawn at on a 1-based page,
// including images inside the form XObjects the page draws, such as imported pages.
func ImagePlacements(tb testing.TB, doc document.Document, pageNr int) []geometry.Rect {
	tb.Helper()
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	ctx, err := api.ReadContext(bytes.NewReader(doc.Bytes()), conf)
	if err != nil {
		tb.Fatalf("failed to read PDF: %v", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		tb.Fatalf("failed to count pages: %v", err)
	}
	page, _, _, err := ctx.PageDict(pageNr, false)
	if err != nil {
		tb.Fatalf("failed to find page %d: %v", pageNr, err)
	}
	content, err := ctx.PageContent(page, pageNr)
	if err != nil {
		tb.Fatalf("failed to read content of page %d: %v", pageNr, err)
	}
	res, err := ctx.DereferenceDict(page["Resources"])
	if err != nil {
		tb.Fatalf("failed to read resources of page %d: %v", pageNr, err)
	}
	return placements(tb, ctx.XRefTable, content, res, 0)
}

func placements(tb testing.TB, xt *model.XRefTable, content []byte, res types.Dict, depth int) []geometry.Rect {
	var rects []geometry.Rect
	for _, m := range imagePlacement.FindAllSubmatch(content, -1) {
		var v [4]float64
		for i := range v {
			f, err := strconv.ParseFloat(string(m[i+1]), 64)
			if err != nil {
				tb.Fatalf("bad image matrix %q: %v", m[0], err)
			}
			v[i] = f
		}
		rects = append(rects, geometry.Rect{X: v[2], Y: v[3], W: v[0], H: v[1]})
	}
	if depth > 4 || res == nil {
		return rects
	}

	xobjects, err := xt.DereferenceDict(res["XObject"])
	if err != nil || xobjects == nil {
		return rects
	}
	for _, m := range xobjectUse.FindAllSubmatch(content, -1) {
		obj, ok := xobjects.Find(string(m[1]))
		if !ok {
			continue
		}
		sd, _, err := xt.DereferenceStreamDict(obj)
		if err != nil || sd == nil {
			continue
		}
		if subtype := sd.Dict.NameEntry("Subtype"); subtype == nil || *subtype != "Form" {
			continue
		}
		if err := sd.Decode(); err != nil {
			tb.Fatalf("failed to decode form %s: %v", m[1], err)
		}
		formRes := res
		if r, err := xt.DereferenceDict(sd.Dict["Resources"]); err == nil && r != nil {
			formRes = r
		}
		rects = append(rects, placements(tb, xt, sd.Content, formRes, depth+1)...)
	}
	return rects
}
