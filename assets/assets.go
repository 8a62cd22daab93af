// Package assets embeds the web page served by the designer.
package assets

import (
	"bytes"
	_ "embed"
	"fmt"
	"text/template"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/svg"
)

// Favicon is the site icon.
//
//go:embed favicon.svg
var Favicon []byte

//go:embed index.html.tpl
var indexTemplate string

//go:embed style.css
var styleCSS string

//go:embed script.js
var scriptJS string

// PageData is substituted into the page template.
type PageData struct {
	CSS string
	JS  string
	SVG string
}

// Build minifies the stylesheet, script and icon, inlines them into the
// page template and returns the minified page.
func Build() ([]byte, error) {
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("text/html", html.Minify)
	m.AddFunc("text/javascript", js.Minify)
	m.AddFunc("image/svg+xml", svg.Minify)

	cssMin, err := m.String("text/css", styleCSS)
	if err != nil {
		return nil, fmt.Errorf("minify CSS: %w", err)
	}
	jsMin, err := m.String("text/javascript", scriptJS)
	if err != nil {
		return nil, fmt.Errorf("minify JS: %w", err)
	}
	svgMin, err := m.String("image/svg+xml", string(Favicon))
	if err != nil {
		return nil, fmt.Errorf("minify SVG: %w", err)
	}

	tmpl, err := template.New("index").Parse(indexTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, PageData{
		CSS: cssMin,
		JS:  jsMin,
		SVG: svgMin,
	})
	if err != nil {
		return nil, fmt.Errorf("execute template: %w", err)
	}

	var out bytes.Buffer
	if err := m.Minify("text/html", &out, &buf); err != nil {
		return nil, fmt.Errorf("minify HTML: %w", err)
	}

	return out.Bytes(), nil
}
