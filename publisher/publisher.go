// Package publisher turns a finished draft into a standalone article file:
// an HTML page with the hero image inlined, or Markdown with a sources list.
package publisher

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"blog_generator/blog"
)

// ErrNoDraft is returned when there is nothing to export yet.
var ErrNoDraft = errors.New("publisher: no draft to export")

// Format selects the export encoding.
type Format string

const (
	FormatHTML     Format = "html"
	FormatMarkdown Format = "md"
)

const digestLimit = 160

// ParseFormat maps a query or flag value onto a Format; empty means HTML.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "html":
		return FormatHTML, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("publisher: unknown format %q", s)
	}
}

// Ext is the file extension for f.
func (f Format) Ext() string {
	if f == FormatMarkdown {
		return ".md"
	}
	return ".html"
}

// ContentType is the MIME type for f.
func (f Format) ContentType() string {
	if f == FormatMarkdown {
		return "text/markdown; charset=utf-8"
	}
	return "text/html; charset=utf-8"
}

// Article is the exported document.
type Article struct {
	Title     string
	Author    string
	Digest    string
	Content   template.HTML
	Markdown  string
	Image     string
	Citations []blog.Citation
}

// Params are the optional fields of an export.
type Params struct {
	Author string
	Digest string
}

// Build assembles the article from the session state. The edited HTML wins
// over the generated markdown when present.
func Build(state blog.WorkflowState, params Params) (Article, error) {
	d := state.DraftArticle
	if d == nil {
		return Article{}, ErrNoDraft
	}
	html := state.EditedContent
	if strings.TrimSpace(html) == "" {
		var err error
		if html, err = mdToHTML(d.Content); err != nil {
			return Article{}, err
		}
	}
	digest := params.Digest
	if digest == "" {
		digest = defaultDigest(d.Content, digestLimit)
	}
	art := Article{
		Title:     d.Title,
		Author:    params.Author,
		Digest:    digest,
		Content:   SanitizeHTML(html),
		Markdown:  d.Content,
		Citations: d.Citations,
	}
	if len(state.GeneratedImages) > 0 {
		art.Image = ImageRef(state.GeneratedImages[0])
	}
	return art, nil
}

// Render encodes the article in format f.
func Render(art Article, f Format) ([]byte, error) {
	var buf bytes.Buffer
	switch f {
	case FormatMarkdown:
		writeMarkdown(&buf, art)
	default:
		if err := pageTmpl.Execute(&buf, art); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// Export is Build followed by Render.
func Export(state blog.WorkflowState, f Format, params Params) ([]byte, error) {
	art, err := Build(state, params)
	if err != nil {
		return nil, err
	}
	return Render(art, f)
}

// ImageRef returns a loadable reference for a generated image: URLs and data
// URIs pass through, bare payloads are base64 PNG.
func ImageRef(img string) string {
	img = strings.TrimSpace(img)
	if strings.HasPrefix(img, "http://") || strings.HasPrefix(img, "https://") || strings.HasPrefix(img, "data:") {
		return img
	}
	return "data:image/png;base64," + img
}

// ImageSrc is ImageRef for html/template. Only data:image URIs are marked
// safe; any other reference goes through the template's URL filter, which
// rewrites javascript: and similar schemes.
func ImageSrc(img string) any {
	ref := ImageRef(img)
	if strings.HasPrefix(ref, "data:image/") {
		return template.URL(ref)
	}
	return ref
}

// articlePolicy keeps the formatting an editor produces and drops scripts,
// event handlers and unsafe URLs.
var articlePolicy = bluemonday.UGCPolicy()

// SanitizeHTML cleans user-edited article HTML for display.
func SanitizeHTML(s string) template.HTML {
	return template.HTML(articlePolicy.Sanitize(s))
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Filename derives a file name from the title.
func Filename(title string, f Format) string {
	slug := strings.Trim(slugRe.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if slug == "" {
		slug = "blog-post"
	}
	return slug + f.Ext()
}

func mdToHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.New(goldmark.WithExtensions(extension.GFM)).Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var headingRe = regexp.MustCompile(`(?m)^#{1,6}\s+`)

func defaultDigest(md string, limit int) string {
	compact := strings.Fields(headingRe.ReplaceAllString(md, ""))
	joined := strings.Join(compact, " ")
	runes := []rune(joined)
	if len(runes) <= limit {
		return joined
	}
	return string(runes[:limit])
}

func writeMarkdown(buf *bytes.Buffer, art Article) {
	body := strings.TrimSpace(art.Markdown)
	if !strings.HasPrefix(body, "# ") && art.Title != "" {
		fmt.Fprintf(buf, "# %s\n\n", art.Title)
	}
	if art.Image != "" {
		fmt.Fprintf(buf, "![%s](%s)\n\n", art.Title, art.Image)
	}
	buf.WriteString(body)
	buf.WriteString("\n")
	if len(art.Citations) > 0 {
		buf.WriteString("\n## Sources\n\n")
		for _, c := range art.Citations {
			fmt.Fprintf(buf, "- [%s](%s)", c.Title, c.URL)
			if c.Relevance != "" {
				fmt.Fprintf(buf, ": %s", c.Relevance)
			}
			buf.WriteString("\n")
		}
	}
}

var pageTmpl = template.Must(template.New("article").Funcs(template.FuncMap{"imageSrc": ImageSrc}).Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
{{with .Digest}}<meta name="description" content="{{.}}">{{end}}
{{with .Author}}<meta name="author" content="{{.}}">{{end}}
<style>body{max-width:46rem;margin:2rem auto;padding:0 1rem;font-family:Georgia,serif;line-height:1.6}img{max-width:100%}</style>
</head>
<body>
<article>
{{with .Image}}<img alt="Hero image" src="{{imageSrc .}}">{{end}}
{{.Content}}
{{with .Citations}}<section><h2>Sources</h2><ol>{{range .}}<li><a href="{{.URL}}">{{.Title}}</a>{{with .Relevance}}: {{.}}{{end}}</li>{{end}}</ol></section>{{end}}
</article>
</body>
</html>
`))
