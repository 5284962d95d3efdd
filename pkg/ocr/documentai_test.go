package ocr

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gardar/pdfretouch/pkg/geometry"
)

func token(start, end int64, verts ...float32) *documentaipb.Document_Page_Token {
	var nv []*documentaipb.NormalizedVertex
	for i := 0; i+1 < len(verts); i += 2 {
		nv = append(nv, &documentaipb.NormalizedVertex{X: verts[i], Y: verts[i+1]})
	}
	return &documentaipb.Document_Page_Token{
		Layout: &documentaipb.Document_Page_Layout{
			TextAnchor: &documentaipb.Document_TextAnchor{
				TextSegments: []*documentaipb.Document_TextAnchor_TextSegment{{StartIndex: start, EndIndex: end}},
			},
			BoundingPoly: &documentaipb.BoundingPoly{NormalizedVertices: nv},
		},
	}
}

func TestWordsFromProto(t *testing.T) {
	doc := &documentaipb.Document{
		Text: "Hello wörld\n",
		Pages: []*documentaipb.Document_Page{{
			Dimension: &documentaipb.Document_Page_Dimension{Width: 400, Height: 100},
			Tokens: []*documentaipb.Document_Page_Token{
				token(0, 6, 0.0, 0.25, 0.5, 0.25, 0.5, 0.75, 0.0, 0.75),
				token(6, 12, 0.5, 0.25, 1.0, 0.25, 1.0, 0.75, 0.5, 0.75),
				token(11, 12), // whitespace only, no box
			},
		}},
	}

	res := WordsFromProto(doc)
	assert.Equal(t, 400, res.Width)
	assert.Equal(t, 100, res.Height)
	require.Len(t, res.Words, 2)
	assert.Equal(t, "Hello", res.Words[0].Text)
	assert.Equal(t, geometry.Rect{X: 0, Y: 25, W: 200, H: 50}, res.Words[0].Box)
	assert.Equal(t, "wörld", res.Words[1].Text)
	assert.Equal(t, geometry.Rect{X: 200, Y: 25, W: 200, H: 50}, res.Words[1].Box)
	assert.Equal(t, "Hello wörld", res.Text())

	layer := res.Layer("Region")
	assert.Equal(t, "Region", layer.Name)
	assert.Equal(t, geometry.Size{W: 400, H: 100}, layer.Source)
}

func TestWordsFromProtoAbsoluteVertices(t *testing.T) {
	tok := &documentaipb.Document_Page_Token{
		Layout: &documentaipb.Document_Page_Layout{
			TextAnchor: &documentaipb.Document_TextAnchor{
				TextSegments: []*documentaipb.Document_TextAnchor_TextSegment{{StartIndex: 0, EndIndex: 2}},
			},
			BoundingPoly: &documentaipb.BoundingPoly{Vertices: []*documentaipb.Vertex{
				{X: 30, Y: 10}, {X: 10, Y: 10}, {X: 10, Y: 20}, {X: 30, Y: 20},
			}},
		},
	}
	doc := &documentaipb.Document{
		Text:  "OK",
		Pages: []*documentaipb.Document_Page{{Tokens: []*documentaipb.Document_Page_Token{tok}}},
	}
	res := WordsFromProto(doc)
	require.Len(t, res.Words, 1)
	assert.Equal(t, geometry.Rect{X: 10, Y: 10, W: 20, H: 10}, res.Words[0].Box)
}

func TestWordsFromProtoEmpty(t *testing.T) {
	assert.Empty(t, WordsFromProto(nil).Words)
	assert.Empty(t, WordsFromProto(&documentaipb.Document{}).Words)
}

func TestTextFromLayoutClampsSegments(t *testing.T) {
	layout := &documentaipb.Document_Page_Layout{
		TextAnchor: &documentaipb.Document_TextAnchor{
			TextSegments: []*documentaipb.Document_TextAnchor_TextSegment{{StartIndex: 2, EndIndex: 99}},
		},
	}
	assert.Equal(t, "llo", textFromLayout(layout, "Hello"))
	assert.Equal(t, "", textFromLayout(nil, "Hello"))
}

func TestDocumentAIConfigValidate(t *testing.T) {
	_, err := NewDocumentAI(DocumentAIConfig{ProjectID: "p"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "location")
	assert.Contains(t, err.Error(), "processor_id")

	cfg := DocumentAIConfig{ProjectID: "p", Location: "eu", ProcessorID: "abc"}
	d, err := NewDocumentAI(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "projects/p/locations/eu/processors/abc", d.Config.ProcessorName())
}

func TestImageSize(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 7, 3))))
	w, h, err := ImageSize(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 7, w)
	assert.Equal(t, 3, h)

	_, _, err = ImageSize([]byte("nope"))
	assert.Error(t, err)
}
