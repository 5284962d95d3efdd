// Package document wraps the PDF bytes the editor works on and the collaborators that
// read and rebuild them.
//
// A Document is an immutable snapshot: every edit produces a new Document and the old
// one stays valid, which is what the undo history relies on.
//
// Key Features:
//
// - Inspect a PDF for page count and per-page point sizes (pdfcpu)
// - Composite a replacement raster onto a page at a PDF-space rectangle (fpdf + gofpdi)
// - Draw an invisible, searchable text layer over the replaced region
// - List optional-content layers already present in a PDF
//
// Main Functions:
//
// - New: Wraps uploaded bytes as a Document
// - Inspect: Validates a Document and reports its page geometry
// - Composer.Overlay: Returns a new Document with an image drawn on one page
// - Layers: Lists optional-content layer names
package document

import (
	"bytes"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Document is an immutable PDF byte buffer.
type Document struct {
	data   []byte
	digest string
}

// New copies data into a new Document. The caller may reuse data afterwards.
func New(data []byte) Document {
	buf := make([]byte, len(data))
	copy(buf, data)
	sum := blake2b.Sum256(buf)
	return Document{data: buf, digest: hex.EncodeToString(sum[:])}
}

// Bytes returns a copy of the document bytes, suitable for download.
func (d Document) Bytes() []byte {
	buf := make([]byte, len(d.data))
	copy(buf, d.data)
	return buf
}

// Len returns the document size in bytes.
func (d Document) Len() int {
	return len(d.data)
}

// IsZero reports whether the Document was never loaded.
func (d Document) IsZero() bool {
	return d.data == nil
}

// Digest returns the hex BLAKE2b-256 of the document bytes.
func (d Document) Digest() string {
	return d.digest
}

// Equal reports whether two documents hold byte-identical content.
func (d Document) Equal(other Document) bool {
	return d.digest == other.digest && bytes.Equal(d.data, other.data)
}

// reader returns a fresh ReadSeeker over the shared bytes without copying.
func (d Document) reader() *bytes.Reader {
	return bytes.NewReader(d.data)
}
