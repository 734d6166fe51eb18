package web

import (
	"embed"
	"html/template"
	"time"

	"github.com/dustin/go-humanize"
)

//go:embed templates/*.html
var templateFS embed.FS

type templates struct {
	Stories *template.Template
	Reddits *template.Template
	Stats   *template.Template
	About   *template.Template
}

func loadTemplates() (*templates, error) {
	funcs := template.FuncMap{
		"ago":   func(t time.Time) string { return humanize.Time(t) },
		"comma": func(n int64) string { return humanize.Comma(n) },
		"host":  niceHost,
	}

	layout, err := templateFS.ReadFile("templates/layout.html")
	if err != nil {
		return nil, err
	}

	makePage := func(name string) (*template.Template, error) {
		page, err := templateFS.ReadFile("templates/" + name + ".html")
		if err != nil {
			return nil, err
		}
		t, err := template.New("layout").Funcs(funcs).Parse(string(layout))
		if err != nil {
			return nil, err
		}
		return t.Parse(string(page))
	}

	var t templates
	for name, dst := range map[string]**template.Template{
		"stories": &t.Stories,
		"reddits": &t.Reddits,
		"stats":   &t.Stats,
		"about":   &t.About,
	} {
		page, err := makePage(name)
		if err != nil {
			return nil, err
		}
		*dst = page
	}
	return &t, nil
}
