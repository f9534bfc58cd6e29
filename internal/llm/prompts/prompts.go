// Package prompts renders the review prompts sent to the language model.
package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"text/template"
	"unicode/utf8"
)

//go:embed review_*.txt
var Embedded embed.FS

var candidateCodeRegex = regexp.MustCompile(`(?i)</?\s*candidate-code\b[^>]*>`)

// maxCodeRunes caps the code forwarded to the model.
const maxCodeRunes = 10000

// Variant selects the tone of the review.
type Variant string

const (
	VariantStrict   Variant = "strict"
	VariantStandard Variant = "standard"
	VariantLenient  Variant = "lenient"
)

var variants = []Variant{VariantStrict, VariantStandard, VariantLenient}

// IsValidVariant checks if a prompt variant name is valid.
func IsValidVariant(v string) bool {
	for _, known := range variants {
		if Variant(v) == known {
			return true
		}
	}
	return false
}

// ReviewData holds template data for review prompts.
type ReviewData struct {
	Title    string
	Body     string
	Tier     string
	Expected string
	Status   string
	Stdout   string
	Code     string
}

// Templates holds the parsed review templates, one per variant.
type Templates struct {
	review map[Variant]*template.Template
}

// Load parses review_<variant>.txt for every variant from fsys.
func Load(fsys fs.FS) (*Templates, error) {
	t := &Templates{review: make(map[Variant]*template.Template, len(variants))}
	for _, v := range variants {
		name := "review_" + string(v) + ".txt"
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read prompt file %s: %w", name, err)
		}
		tmpl, err := template.New(name).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("parse prompt template %s: %w", name, err)
		}
		t.review[v] = tmpl
	}
	return t, nil
}

// BuildReviewPrompt renders the review prompt for a variant.
func (t *Templates) BuildReviewPrompt(variant Variant, data ReviewData) (string, error) {
	tmpl, ok := t.review[variant]
	if !ok {
		return "", fmt.Errorf("invalid prompt variant: %s", variant)
	}
	data.Code = SanitizeCode(data.Code)
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// SanitizeCode strips delimiter tags from candidate code and truncates it.
func SanitizeCode(code string) string {
	code = candidateCodeRegex.ReplaceAllString(code, "")
	code = strings.TrimSpace(code)

	if code == "" {
		return "[No code provided]"
	}

	if utf8.RuneCountInString(code) > maxCodeRunes {
		runes := []rune(code)
		code = string(runes[:maxCodeRunes]) + "\n\n[Code truncated due to length]"
	}
	return code
}
