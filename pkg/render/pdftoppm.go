package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/gardar/pdfretouch/pkg/document"
)

// Pdftoppm renders pages by running poppler's pdftoppm.
type Pdftoppm struct {
	Command string // Executable name or path, "pdftoppm" when empty
	TempDir string // Directory for scratch files, os.TempDir() when empty
	Logger  logrus.FieldLogger
}

// Available reports whether the pdftoppm executable can be found.
func (p *Pdftoppm) Available() bool {
	_, err := exec.LookPath(p.command())
	return err == nil
}

func (p *Pdftoppm) command() string {
	if p.Command == "" {
		return "pdftoppm"
	}
	return p.Command
}

func (p *Pdftoppm) logger() logrus.FieldLogger {
	if p.Logger == nil {
		return logrus.StandardLogger()
	}
	return p.Logger
}

// Render writes the document to a scratch directory and rasterizes a single page
// scaled to exactly req.Width x req.Height pixels.
func (p *Pdftoppm) Render(ctx context.Context, doc document.Document, req Request) (image.Image, error) {
	if req.Width <= 0 || req.Height <= 0 {
		return nil, fmt.Errorf("invalid render size %dx%d", req.Width, req.Height)
	}
	if req.PageIndex < 0 {
		return nil, fmt.Errorf("invalid page index %d", req.PageIndex)
	}

	tmpDir, err := os.MkdirTemp(p.TempDir, "pdfretouch-render-")
	if err != nil {
		return nil, fmt.Errorf("failed to create render directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	pdfPath := filepath.Join(tmpDir, "input.pdf")
	if err := os.WriteFile(pdfPath, doc.Bytes(), 0600); err != nil {
		return nil, fmt.Errorf("failed to write render input: %w", err)
	}

	pageNum := strconv.Itoa(req.PageIndex + 1)
	prefix := filepath.Join(tmpDir, "page")
	args := []string{
		"-png", "-q", "-singlefile",
		"-f", pageNum, "-l", pageNum,
		"-scale-to-x", strconv.Itoa(req.Width),
		"-scale-to-y", strconv.Itoa(req.Height),
		pdfPath, prefix,
	}

	log := p.logger().WithFields(logrus.Fields{
		"page":   req.PageIndex + 1,
		"width":  req.Width,
		"height": req.Height,
	})
	log.Debug("Rendering page with pdftoppm")

	cmd := exec.CommandContext(ctx, p.command(), args...)
	cmd.Env = append(os.Environ(), "LANG=C.UTF-8", "LC_ALL=C.UTF-8")
	out, err := cmd.CombinedOutput()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		return nil, fmt.Errorf("pdftoppm failed on page %s: %w: %s", pageNum, err, strings.TrimSpace(string(out)))
	}

	f, err := os.Open(prefix + ".png")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("pdftoppm produced no image for page %s", pageNum)
		}
		return nil, err
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode rendered page %s: %w", pageNum, err)
	}
	return img, nil
}
