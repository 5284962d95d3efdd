// pdfretouch is a command-line tool for retouching regions of PDF pages with a generative image service.
//
// A region is selected on the rendered page in canvas pixels, optionally with a second "sample" region
// that shows the service what the surrounding font and background look like. The region is cropped,
// upscaled and sent to the image service, and the image that comes back is drawn over the same spot of
// the page. The original page content stays in the file underneath the new image. Optionally the new
// image is read back with OCR and an invisible text layer is added so the region stays searchable.
//
// Configuration:
//
// All settings are optional; see package config for the full list. A minimal file:
//
//	image_service:
//	  model: "gemini-2.5-flash-image"
//	  api_key_env: "GEMINI_API_KEY"
//	text_layer:
//	  provider: "documentai"
//	  document_ai:
//	    project_id: "your-gcp-project-id"
//	    location: "eu"
//	    processor_id: "your-processor-id"
//
// Usage:
//
//	pdfretouch [--config config.yml] [--log-level debug] <command>
//
// Commands:
//
//	info <pdf>                   Print page count, page sizes, digest and optional-content layers
//	render <pdf> --out page.png  Render a page at the viewer scale, with selections drawn on top
//	edit <pdf> --target x,y,w,h  Replace (--text) or erase a region and write the result to --out
//	run <script.yml>             Run a scripted editing session with zoom, selection, apply and undo
//
// Rectangles are given in canvas pixels of the page rendered at --zoom (and fitted to --width/--height
// when those are set), which is what a user sees in the viewer.
//
// Requirements:
//
// - poppler's pdftoppm in PATH for rendering
// - an API key for the image service in the environment variable named by image_service.api_key_env
// - for text_layer.provider "documentai": GOOGLE_APPLICATION_CREDENTIALS or document_ai.credentials_file
// - for text_layer.provider "tesseract": a binary built with -tags tesseract
//
// Example:
//
//	export GEMINI_API_KEY=...
//	pdfretouch render invoice.pdf --zoom 1.5 --target 150,150,300,75 --out preview.png
//	pdfretouch edit invoice.pdf --zoom 1.5 --target 150,150,300,75 --text "Paid in full" --out invoice_paid.pdf
//	pdfretouch edit scan.pdf --page 2 --target 80,400,220,40 --sample 80,460,220,40 --out scan_clean.pdf
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
