package card

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Renderer draws a ViewModel as an HTML page.
type Renderer struct {
	tmpl    *template.Template
	md      goldmark.Markdown
	policy  *bluemonday.Policy
	actions string
	assets  string
	refresh int
	labels  func(lang, key string) string

	mu     sync.Mutex
	guides map[string]template.HTML
}

// RenderOptions configures a Renderer.
type RenderOptions struct {
	// ActionBase prefixes every form action, e.g. /api/v1/card.
	ActionBase string
	AssetBase  string
	// RefreshSeconds is the reload interval while a scan is in flight.
	RefreshSeconds int
	// Labels translates template strings.
	Labels func(lang, key string) string
}

type pageData struct {
	View           ViewModel
	Actions        string
	AssetBase      string
	RefreshSeconds int
	GuideHTML      template.HTML
	labels         func(lang, key string) string
}

// T translates key in the page language.
func (p pageData) T(key string) string {
	if p.labels == nil {
		return key
	}
	return p.labels(p.View.Lang, key)
}

// NewRenderer parses the embedded templates.
func NewRenderer(opts RenderOptions) (*Renderer, error) {
	tmpl, err := template.New("_root").ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("card: parse templates: %w", err)
	}
	refresh := opts.RefreshSeconds
	if refresh <= 0 {
		refresh = 1
	}
	return &Renderer{
		tmpl:    tmpl,
		md:      goldmark.New(goldmark.WithExtensions(extension.Linkify)),
		policy:  newGuidePolicy(),
		actions: opts.ActionBase,
		assets:  opts.AssetBase,
		refresh: refresh,
		labels:  opts.Labels,
		guides:  map[string]template.HTML{},
	}, nil
}

func newGuidePolicy() *bluemonday.Policy {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").OnElements("code", "p", "span")
	policy.RequireNoFollowOnLinks(true)
	return policy
}

// Render writes the page for vm.
func (r *Renderer) Render(w io.Writer, vm ViewModel) error {
	data := pageData{
		View:           vm,
		Actions:        r.actions,
		AssetBase:      r.assets,
		RefreshSeconds: r.refresh,
		labels:         r.labels,
	}
	if vm.Scan != nil && vm.Scan.Guide != nil && vm.Scan.Guide.Enabled {
		html, err := r.Guide(vm.Scan.Guide.Markdown)
		if err != nil {
			return err
		}
		data.GuideHTML = html
	}
	return r.tmpl.ExecuteTemplate(w, "card", data)
}

// Guide converts guide markdown into sanitized HTML. Results are cached by source.
func (r *Renderer) Guide(markdown string) (template.HTML, error) {
	r.mu.Lock()
	cached, ok := r.guides[markdown]
	r.mu.Unlock()
	if ok {
		return cached, nil
	}
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("card: render guide: %w", err)
	}
	html := template.HTML(r.policy.SanitizeBytes(buf.Bytes()))
	r.mu.Lock()
	r.guides[markdown] = html
	r.mu.Unlock()
	return html, nil
}
