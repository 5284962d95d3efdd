package imagegen

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	cfg := Config{Endpoint: srv.URL, Model: "test-model"}
	c, err := NewClient(context.Background(), cfg, nil,
		option.WithHTTPClient(srv.Client()),
		option.WithEndpoint(srv.URL),
	)
	require.NoError(t, err)
	return c, &calls
}

func imageResponse(data []byte) string {
	return fmt.Sprintf(`{"candidates":[{"content":{"role":"model","parts":[
		{"text":"here you go"},
		{"inlineData":{"mimeType":"image/png","data":%q}}
	]},"finishReason":"STOP"}]}`, base64.StdEncoding.EncodeToString(data))
}

func TestGenerateSendsImagesAndInstruction(t *testing.T) {
	var got generateRequest
	var path string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, imageResponse([]byte("PNGDATA")))
	})

	resp, err := c.Generate(context.Background(), Request{
		Images: []Image{
			{MIME: "image/png", Data: []byte("target")},
			{MIME: "image/png", Data: []byte("sample")},
		},
		Instruction: "erase the text",
	})
	require.NoError(t, err)

	assert.Equal(t, "/v1beta/models/test-model:generateContent", path)
	require.Len(t, got.Contents, 1)
	parts := got.Contents[0].Parts
	require.Len(t, parts, 3)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("target")), parts[0].InlineData.Data)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("sample")), parts[1].InlineData.Data)
	assert.Equal(t, "erase the text", parts[2].Text)
	assert.Equal(t, []string{"TEXT", "IMAGE"}, got.GenerationConfig.ResponseModalities)

	assert.Equal(t, []byte("PNGDATA"), resp.Image.Data)
	assert.Equal(t, "image/png", resp.Image.MIME)
	assert.Equal(t, "here you go", resp.Text)
}

func TestGenerateNoImage(t *testing.T) {
	cases := map[string]string{
		"text only":    `{"candidates":[{"content":{"parts":[{"text":"I cannot do that"}]}}]}`,
		"no candidate": `{"candidates":[]}`,
		"blocked":      `{"promptFeedback":{"blockReason":"SAFETY"}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, body)
			})
			_, err := c.Generate(context.Background(), Request{Images: []Image{{MIME: "image/png", Data: []byte("x")}}})
			assert.ErrorIs(t, err, ErrNoImageReturned)
			assert.NotErrorIs(t, err, ErrServiceUnavailable)
		})
	}
}

func TestGenerateServiceUnavailable(t *testing.T) {
	t.Run("error status", func(t *testing.T) {
		c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"error":{"code":403,"message":"API key not valid","status":"PERMISSION_DENIED"}}`)
		})
		_, err := c.Generate(context.Background(), Request{Images: []Image{{MIME: "image/png", Data: []byte("x")}}})
		require.ErrorIs(t, err, ErrServiceUnavailable)
		assert.True(t, strings.Contains(err.Error(), "API key not valid"))
		assert.Equal(t, int32(1), atomic.LoadInt32(calls), "must not retry")
	})

	t.Run("malformed body", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"candidates":`)
		})
		_, err := c.Generate(context.Background(), Request{Images: []Image{{MIME: "image/png", Data: []byte("x")}}})
		assert.ErrorIs(t, err, ErrServiceUnavailable)
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		c, err := NewClient(context.Background(), Config{Endpoint: url, Model: "m"}, nil,
			option.WithHTTPClient(http.DefaultClient), option.WithEndpoint(url))
		require.NoError(t, err)
		_, err = c.Generate(context.Background(), Request{Images: []Image{{MIME: "image/png", Data: []byte("x")}}})
		assert.ErrorIs(t, err, ErrServiceUnavailable)
	})
}

func TestGenerateRejectsEmptyRequest(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	_, err := c.Generate(context.Background(), Request{Instruction: "x"})
	assert.Error(t, err)
	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}

func TestNewClientNeedsModel(t *testing.T) {
	_, err := NewClient(context.Background(), Config{}, nil, option.WithHTTPClient(http.DefaultClient))
	assert.Error(t, err)
}
