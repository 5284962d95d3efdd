// Package imagegen talks to the external image-generation service that redraws an
// edited region.
//
// A request carries one or two images (the target crop and an optional style sample)
// plus a natural-language instruction; a successful response carries exactly one
// image. The service is treated as a non-deterministic black box: one attempt is
// made per call and nothing is retried.
//
// Key Features:
//
// - Generator interface so pipelines can be tested against deterministic stubs
// - REST client for generateContent-style multimodal endpoints
// - Authentication through google.golang.org/api client options (API key or credentials file)
// - Two failure kinds callers can branch on: ErrServiceUnavailable and ErrNoImageReturned
//
package imagegen

import (
	"context"
	"errors"
)

var (
	// ErrServiceUnavailable means the call could not complete: transport or auth
	// failure, a non-2xx status, or an unreadable response.
	ErrServiceUnavailable = errors.New("image service unavailable")
	// ErrNoImageReturned means the service answered but the answer held no image.
	ErrNoImageReturned = errors.New("image service returned no image")
)

// Image is an encoded raster sent to or received from the service.
type Image struct {
	MIME string // e.g. "image/png"
	Data []byte
}

// Request is one edit call.
type Request struct {
	Images      []Image // Target crop first, then the optional sample crop
	Instruction string
}

// Response holds the single image returned by the service.
type Response struct {
	Image Image
	Text  string // Any text parts the service returned alongside the image
}

// Generator produces a new image from a request.
type Generator interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req Request) (Response, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}
