package document

import (
	"fmt"
	"regexp"
	"strings"
)

// pdfString matches the body of a literal string, escaped parentheses included.
const pdfString = `\(((?:\\[\s\S]|[^\\)])*)\)`

var ocgPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/Type\s*/OCG\s*/Name\s*` + pdfString),
	regexp.MustCompile(`/OCG\s*<<[^>]*?/Name\s*` + pdfString),
	regexp.MustCompile(`/Name\s*` + pdfString + `[\s\S]{1,50}/Type\s*/OCG`),
}

// Layers lists the optional-content layer names found in the raw document bytes,
// in order of first appearance. Only uncompressed object dictionaries are seen,
// which covers the layers this package writes.
func Layers(doc Document) []string {
	content := string(doc.data)

	var layers []string
	for _, pattern := range ocgPatterns {
		for _, match := range pattern.FindAllStringSubmatch(content, -1) {
			if len(match) < 2 {
				continue
			}
			name := unescapePDFString(match[1])
			if decoded, err := decodeUTF16BE([]byte(name)); err == nil {
				name = decoded
			}
			layers = append(layers, name)
		}
	}

	// Deduplicate
	unique := make([]string, 0, len(layers))
	seen := make(map[string]bool)
	for _, l := range layers {
		if !seen[l] {
			seen[l] = true
			unique = append(unique, l)
		}
	}
	return unique
}

// HasLayer reports whether a layer named prefix, or prefix followed by a page
// suffix such as " (Page 3)", exists in the document.
func HasLayer(doc Document, prefix string) bool {
	for _, l := range Layers(doc) {
		if l == prefix || strings.HasPrefix(l, prefix+" (Page ") {
			return true
		}
	}
	return false
}

func unescapePDFString(s string) string {
	s = strings.ReplaceAll(s, "\\r", "\r")
	s = strings.ReplaceAll(s, "\\(", "(")
	s = strings.ReplaceAll(s, "\\)", ")")
	s = strings.ReplaceAll(s, "\\\\", "\\")
	return s
}

func decodeUTF16BE(b []byte) (string, error) {
	if len(b) < 2 || b[0] != 0xFE || b[1] != 0xFF {
		return "", fmt.Errorf("no BOM detected, cannot confirm UTF-16BE")
	}
	b = b[2:]
	runes := make([]rune, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		runes = append(runes, rune(uint16(b[i])<<8|uint16(b[i+1])))
	}
	return string(runes), nil
}
