package ocr

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/gardar/pdfretouch/pkg/document"
	"github.com/gardar/pdfretouch/pkg/geometry"
)

// DocumentAIConfig identifies the Document AI OCR processor.
type DocumentAIConfig struct {
	ProjectID       string `yaml:"project_id"`
	Location        string `yaml:"location"` // e.g. "eu" or "us"
	ProcessorID     string `yaml:"processor_id"`
	CredentialsFile string `yaml:"credentials_file"` // Defaults to GOOGLE_APPLICATION_CREDENTIALS
}

// Validate checks that the processor is fully named.
func (c DocumentAIConfig) Validate() error {
	var missing []string
	if c.ProjectID == "" {
		missing = append(missing, "project_id")
	}
	if c.Location == "" {
		missing = append(missing, "location")
	}
	if c.ProcessorID == "" {
		missing = append(missing, "processor_id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("document_ai: missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// ProcessorName returns the full resource name of the processor.
func (c DocumentAIConfig) ProcessorName() string {
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s", c.ProjectID, c.Location, c.ProcessorID)
}

// DocumentAI recognizes words with a Google Document AI OCR processor.
type DocumentAI struct {
	Config  DocumentAIConfig
	Logger  logrus.FieldLogger
	Dump    io.Writer // When set, the raw response is written here as JSON
	Options []option.ClientOption
}

// NewDocumentAI returns a recognizer for cfg.
func NewDocumentAI(cfg DocumentAIConfig, logger logrus.FieldLogger) (*DocumentAI, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &DocumentAI{Config: cfg, Logger: logger}, nil
}

// Recognize sends the image to the processor and converts the tokens of its first
// page into words.
func (d *DocumentAI) Recognize(ctx context.Context, png []byte) (Result, error) {
	raw, err := d.process(ctx, png)
	if err != nil {
		return Result{}, err
	}

	if d.Dump != nil {
		data, err := protojson.MarshalOptions{Multiline: true}.Marshal(raw)
		if err != nil {
			return Result{}, fmt.Errorf("failed to encode Document AI response: %w", err)
		}
		if _, err := d.Dump.Write(data); err != nil {
			return Result{}, fmt.Errorf("failed to write Document AI response: %w", err)
		}
	}

	res := WordsFromProto(raw)
	if res.Width == 0 || res.Height == 0 {
		// Fall back to the image itself when the processor did not report dimensions
		w, h, err := ImageSize(png)
		if err != nil {
			return Result{}, err
		}
		res.Width, res.Height = w, h
	}
	d.Logger.WithField("words", len(res.Words)).Debug("Document AI recognized region")
	return res, nil
}

func (d *DocumentAI) process(ctx context.Context, png []byte) (*documentaipb.Document, error) {
	endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", d.Config.Location)

	opts := []option.ClientOption{option.WithEndpoint(endpoint)}
	credentials := d.Config.CredentialsFile
	if credentials == "" {
		credentials = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
	}
	if credentials != "" {
		opts = append(opts, option.WithCredentialsFile(credentials))
	}
	opts = append(opts, d.Options...)

	client, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Document AI client: %w", err)
	}
	defer client.Close()

	req := &documentaipb.ProcessRequest{
		Name: d.Config.ProcessorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  png,
				MimeType: "image/png",
			},
		},
		SkipHumanReview: true,
	}

	resp, err := client.ProcessDocument(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to process image: %w", err)
	}
	return resp.GetDocument(), nil
}

// WordsFromProto converts the tokens of the first page of a Document AI response to
// words with pixel boxes.
func WordsFromProto(doc *documentaipb.Document) Result {
	if doc == nil || len(doc.GetPages()) == 0 {
		return Result{}
	}
	page := doc.GetPages()[0]
	dim := page.GetDimension()
	var w, h float64
	if dim != nil {
		w, h = float64(dim.GetWidth()), float64(dim.GetHeight())
	}

	res := Result{Width: int(math.Round(w)), Height: int(math.Round(h))}
	for _, token := range page.GetTokens() {
		text := strings.TrimSpace(textFromLayout(token.GetLayout(), doc.GetText()))
		text = strings.ReplaceAll(text, "\n", " ")
		text = strings.ReplaceAll(text, "\r", "")
		if text == "" {
			continue
		}
		box, ok := boxFromLayout(token.GetLayout(), w, h)
		if !ok {
			continue
		}
		res.Words = append(res.Words, document.Word{Text: text, Box: box})
	}
	return res
}

// textFromLayout extracts text from a layout's text anchor segments
func textFromLayout(layout *documentaipb.Document_Page_Layout, fullText string) string {
	if layout == nil || layout.GetTextAnchor() == nil {
		return ""
	}
	runes := []rune(fullText)
	var sb strings.Builder
	total := len(runes)

	for _, seg := range layout.GetTextAnchor().GetTextSegments() {
		start := int(seg.GetStartIndex())
		end := int(seg.GetEndIndex())
		if start < 0 {
			start = 0
		}
		if end > total {
			end = total
		}
		if start > end {
			start = end
		}
		sb.WriteString(string(runes[start:end]))
	}
	return sb.String()
}

// boxFromLayout returns the pixel bounding box of a layout. Normalized vertices are
// scaled by the page dimension; absolute vertices are used as they are.
func boxFromLayout(layout *documentaipb.Document_Page_Layout, w, h float64) (geometry.Rect, bool) {
	poly := layout.GetBoundingPoly()
	if poly == nil {
		return geometry.Rect{}, false
	}

	var pts []geometry.Point
	if nv := poly.GetNormalizedVertices(); len(nv) > 0 && w > 0 && h > 0 {
		for _, v := range nv {
			pts = append(pts, geometry.Pt(float64(v.GetX())*w, float64(v.GetY())*h))
		}
	} else {
		for _, v := range poly.GetVertices() {
			pts = append(pts, geometry.Pt(float64(v.GetX()), float64(v.GetY())))
		}
	}
	if len(pts) == 0 {
		return geometry.Rect{}, false
	}

	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := minX, minY
	for _, p := range pts[1:] {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	r := geometry.Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
	return r, !r.Empty()
}
