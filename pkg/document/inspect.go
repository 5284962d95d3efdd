package document

import (
	"errors"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/gardar/pdfretouch/pkg/geometry"
)

// ErrInvalidDocument is returned when the bytes cannot be opened as a PDF.
var ErrInvalidDocument = errors.New("document: not a readable PDF")

func init() {
	// pdfcpu would otherwise create a config directory in the user's home.
	api.DisableConfigDir()
}

// Info describes the page geometry of a Document.
type Info struct {
	Pages []geometry.Size // Page sizes in PDF points, index 0 is page 1
}

// PageCount returns the number of pages.
func (i Info) PageCount() int {
	return len(i.Pages)
}

// PageSize returns the point size of a 0-based page index.
func (i Info) PageSize(index int) (geometry.Size, error) {
	if index < 0 || index >= len(i.Pages) {
		return geometry.Size{}, fmt.Errorf("page index %d out of range [0, %d)", index, len(i.Pages))
	}
	return i.Pages[index], nil
}

// Inspect opens the document with pdfcpu and reports its pages.
func Inspect(doc Document) (Info, error) {
	if doc.Len() == 0 {
		return Info{}, fmt.Errorf("%w: empty input", ErrInvalidDocument)
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	dims, err := api.PageDims(doc.reader(), conf)
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if len(dims) == 0 {
		return Info{}, fmt.Errorf("%w: no pages", ErrInvalidDocument)
	}

	info := Info{Pages: make([]geometry.Size, 0, len(dims))}
	for i, d := range dims {
		if d.Width <= 0 || d.Height <= 0 {
			return Info{}, fmt.Errorf("%w: page %d has no size", ErrInvalidDocument, i+1)
		}
		info.Pages = append(info.Pages, geometry.Size{W: d.Width, H: d.Height})
	}
	return info, nil
}
