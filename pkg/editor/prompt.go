package editor

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// DefaultReplacePrompt is used when the edit supplies replacement text.
const DefaultReplacePrompt = `Edit the first image: replace the text in it with exactly "{{.Text}}". ` +
	`Keep the background, paper texture and scan noise as they are, and match the font, size and ink color of the original text.` +
	`{{if .HasSample}} The second image is a sample from the same page; use it as the reference for font and background.{{end}}` +
	`{{with .Instruction}} {{.}}{{end}}` +
	` Return only the edited image with the same aspect ratio.`

// DefaultErasePrompt is used when the edit supplies no replacement text.
const DefaultErasePrompt = `Edit the first image: remove all text and marks from it, leaving blank background ` +
	`that matches the surrounding paper texture and scan noise.` +
	`{{if .HasSample}} The second image is a sample of the background to match.{{end}}` +
	`{{with .Instruction}} {{.}}{{end}}` +
	` Return only the edited image with the same aspect ratio.`

// promptData is what the prompt templates can refer to.
type promptData struct {
	Text        string
	Instruction string
	HasSample   bool
}

type prompts struct {
	replace *template.Template
	erase   *template.Template
}

func parsePrompts(replace, erase string) (prompts, error) {
	if replace == "" {
		replace = DefaultReplacePrompt
	}
	if erase == "" {
		erase = DefaultErasePrompt
	}
	r, err := template.New("replace").Option("missingkey=error").Parse(replace)
	if err != nil {
		return prompts{}, fmt.Errorf("invalid replace prompt: %w", err)
	}
	e, err := template.New("erase").Option("missingkey=error").Parse(erase)
	if err != nil {
		return prompts{}, fmt.Errorf("invalid erase prompt: %w", err)
	}
	return prompts{replace: r, erase: e}, nil
}

// build picks the template purely on whether there is replacement text.
func (p prompts) build(data promptData) (string, error) {
	tmpl := p.replace
	if data.Text == "" {
		tmpl = p.erase
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to build %s prompt: %w", tmpl.Name(), err)
	}
	return strings.TrimSpace(buf.String()), nil
}
