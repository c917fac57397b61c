// Package templates renders the localized text of notifications and emails.
// Each template file defines three blocks: "subject" (email subject and in-app
// title), "short" (in-app and push message) and "body" (email text).
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"text/template"

	"barecourier/internal/types"
)

//go:embed locales/*/*.tmpl
var localeFS embed.FS

// FallbackLocale is used when neither the full locale nor its language has a
// template.
const FallbackLocale = "en"

// Rendered is the output of one template.
type Rendered struct {
	Subject string
	Short   string
	Body    string
}

// Renderer holds the parsed templates keyed by locale and template id.
type Renderer struct {
	sets map[string]map[string]*template.Template
}

// NewRenderer parses every embedded template. It fails if any file does not
// parse or does not define all three blocks.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{sets: make(map[string]map[string]*template.Template)}

	locales, err := fs.ReadDir(localeFS, "locales")
	if err != nil {
		return nil, fmt.Errorf("templates: failed to list locales: %w", err)
	}
	for _, dir := range locales {
		if !dir.IsDir() {
			continue
		}
		locale := dir.Name()
		files, err := fs.Glob(localeFS, path.Join("locales", locale, "*.tmpl"))
		if err != nil {
			return nil, fmt.Errorf("templates: failed to list %s: %w", locale, err)
		}
		set := make(map[string]*template.Template, len(files))
		for _, file := range files {
			id := strings.TrimSuffix(path.Base(file), ".tmpl")
			tmpl, err := template.New(id).Option("missingkey=zero").Funcs(funcs).ParseFS(localeFS, file)
			if err != nil {
				return nil, fmt.Errorf("templates: failed to parse %s: %w", file, err)
			}
			for _, block := range []string{"subject", "short", "body"} {
				if tmpl.Lookup(block) == nil {
					return nil, fmt.Errorf("templates: %s does not define %q", file, block)
				}
			}
			set[id] = tmpl
		}
		r.sets[locale] = set
	}

	if _, ok := r.sets[FallbackLocale]; !ok {
		return nil, fmt.Errorf("templates: fallback locale %q missing", FallbackLocale)
	}
	return r, nil
}

// MustNewRenderer is NewRenderer for package-level wiring; the embedded files
// are fixed at build time.
func MustNewRenderer() *Renderer {
	r, err := NewRenderer()
	if err != nil {
		panic(err)
	}
	return r
}

// Known reports whether templateID exists in the fallback locale.
func (r *Renderer) Known(templateID string) bool {
	_, ok := r.sets[FallbackLocale][templateID]
	return ok
}

// Render executes templateID for locale, trying the full locale, then its
// language, then the fallback locale.
func (r *Renderer) Render(templateID, locale string, data map[string]any) (Rendered, error) {
	tmpl := r.lookup(templateID, locale)
	if tmpl == nil {
		return Rendered{}, types.NewAppError(types.ErrCodeValidationUnknownTemplate,
			fmt.Sprintf("unknown template %q", templateID), nil)
	}

	var out Rendered
	for _, b := range []struct {
		name string
		dst  *string
	}{
		{"subject", &out.Subject},
		{"short", &out.Short},
		{"body", &out.Body},
	} {
		var buf bytes.Buffer
		if err := tmpl.ExecuteTemplate(&buf, b.name, data); err != nil {
			return Rendered{}, types.NewAppError(types.ErrCodeInternalUnexpected,
				fmt.Sprintf("failed to render %s/%s", templateID, b.name), err)
		}
		*b.dst = strings.TrimSpace(buf.String())
	}
	return out, nil
}

func (r *Renderer) lookup(templateID, locale string) *template.Template {
	for _, candidate := range LocaleChain(locale) {
		if tmpl, ok := r.sets[candidate][templateID]; ok {
			return tmpl
		}
	}
	return nil
}

// LocaleChain returns the lookup order for locale, e.g. "pt-PT" gives
// ["pt-pt", "pt", "en"].
func LocaleChain(locale string) []string {
	locale = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(locale), "_", "-"))
	var chain []string
	if locale != "" {
		chain = append(chain, locale)
		if lang, _, ok := strings.Cut(locale, "-"); ok {
			chain = append(chain, lang)
		}
	}
	if len(chain) == 0 || chain[len(chain)-1] != FallbackLocale {
		chain = append(chain, FallbackLocale)
	}
	return chain
}

var funcs = template.FuncMap{
	"default": func(def, v any) any {
		if v == nil || v == "" {
			return def
		}
		return v
	},
}
