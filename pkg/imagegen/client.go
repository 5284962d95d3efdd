package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
	htransport "google.golang.org/api/transport/http"
)

// DefaultEndpoint is the public Generative Language API.
const DefaultEndpoint = "https://generativelanguage.googleapis.com"

// Config holds the connection settings of the image service.
type Config struct {
	Endpoint        string        `yaml:"endpoint"`
	Model           string        `yaml:"model"`
	APIKeyEnv       string        `yaml:"api_key_env"`      // Environment variable holding the API key
	CredentialsFile string        `yaml:"credentials_file"` // Service account file, used when no API key is set
	Timeout         time.Duration `yaml:"timeout"`
}

// DefaultConfig returns the settings used when the config file leaves them out.
func DefaultConfig() Config {
	return Config{
		Endpoint:  DefaultEndpoint,
		Model:     "gemini-2.5-flash-image",
		APIKeyEnv: "GEMINI_API_KEY",
		Timeout:   120 * time.Second,
	}
}

// Client calls a generateContent endpoint over HTTP.
type Client struct {
	http     *http.Client
	endpoint string
	model    string
	timeout  time.Duration
	log      logrus.FieldLogger
}

// NewClient builds a client from cfg. Extra options are applied after the ones
// derived from cfg, so tests can inject option.WithHTTPClient or option.WithEndpoint.
func NewClient(ctx context.Context, cfg Config, logger logrus.FieldLogger, opts ...option.ClientOption) (*Client, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("image service model is not set")
	}

	clientOpts := []option.ClientOption{option.WithEndpoint(cfg.Endpoint)}
	apiKey := ""
	if cfg.APIKeyEnv != "" {
		apiKey = os.Getenv(cfg.APIKeyEnv)
	}
	switch {
	case apiKey != "":
		clientOpts = append(clientOpts, option.WithAPIKey(apiKey))
	case cfg.CredentialsFile != "":
		clientOpts = append(clientOpts,
			option.WithCredentialsFile(cfg.CredentialsFile),
			option.WithScopes("https://www.googleapis.com/auth/generative-language"),
		)
	}
	clientOpts = append(clientOpts, opts...)

	hc, endpoint, err := htransport.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create image service client: %w", err)
	}
	if endpoint == "" {
		endpoint = cfg.Endpoint
	}

	return &Client{
		http:     hc,
		endpoint: strings.TrimRight(endpoint, "/"),
		model:    cfg.Model,
		timeout:  cfg.Timeout,
		log:      logger,
	}, nil
}

// Wire format of generateContent

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseModalities []string `json:"responseModalities"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Generate sends the images and instruction and returns the first image part of the
// answer. The call is made once.
func (c *Client) Generate(ctx context.Context, req Request) (Response, error) {
	if len(req.Images) == 0 {
		return Response{}, fmt.Errorf("image request has no images")
	}

	parts := make([]part, 0, len(req.Images)+1)
	for _, img := range req.Images {
		parts = append(parts, part{InlineData: &inlineData{
			MimeType: img.MIME,
			Data:     base64.StdEncoding.EncodeToString(img.Data),
		}})
	}
	parts = append(parts, part{Text: req.Instruction})

	body, err := json.Marshal(generateRequest{
		Contents:         []content{{Role: "user", Parts: parts}},
		GenerationConfig: generationConfig{ResponseModalities: []string{"TEXT", "IMAGE"}},
	})
	if err != nil {
		return Response{}, fmt.Errorf("failed to encode image request: %w", err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.endpoint, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("failed to build image request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	log := c.log.WithFields(logrus.Fields{
		"model":  c.model,
		"images": len(req.Images),
	})
	log.Debug("Sending image generation request")
	start := time.Now()

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("%w: failed to read response: %v", ErrServiceUnavailable, err)
	}
	log = log.WithFields(logrus.Fields{
		"status":   resp.StatusCode,
		"duration": time.Since(start).Round(time.Millisecond),
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr apiError
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		log.WithField("error", msg).Warn("Image service returned an error status")
		return Response{}, fmt.Errorf("%w: status %d: %s", ErrServiceUnavailable, resp.StatusCode, msg)
	}

	var gr generateResponse
	if err := json.Unmarshal(data, &gr); err != nil {
		return Response{}, fmt.Errorf("%w: malformed response: %v", ErrServiceUnavailable, err)
	}

	out, err := firstImage(gr)
	if err != nil {
		log.Warn("Image service response held no image")
		return Response{}, err
	}
	log.WithField("bytes", len(out.Image.Data)).Debug("Received generated image")
	return out, nil
}

// firstImage picks the first inline image of the first candidate that has one and
// collects the text parts next to it.
func firstImage(gr generateResponse) (Response, error) {
	for _, cand := range gr.Candidates {
		var text []string
		var img *Image
		for _, p := range cand.Content.Parts {
			if p.Text != "" {
				text = append(text, p.Text)
			}
			if img != nil || p.InlineData == nil || p.InlineData.Data == "" {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
			if err != nil {
				return Response{}, fmt.Errorf("%w: bad image payload: %v", ErrNoImageReturned, err)
			}
			img = &Image{MIME: p.InlineData.MimeType, Data: data}
		}
		if img != nil {
			return Response{Image: *img, Text: strings.Join(text, "\n")}, nil
		}
	}
	if gr.PromptFeedback != nil && gr.PromptFeedback.BlockReason != "" {
		return Response{}, fmt.Errorf("%w: request blocked (%s)", ErrNoImageReturned, gr.PromptFeedback.BlockReason)
	}
	return Response{}, ErrNoImageReturned
}
