// Package render consumes completed document results: it writes them as
// JSON for downstream tooling and as a standalone HTML report for review.
// Rendering is read-only over the result and never feeds back into
// orchestration.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/dgallion1/docparse/internal/document"
)

// WriteJSON saves the result under dir as <name>.json and returns the path.
func WriteJSON(res *document.Result, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create result dir: %w", err)
	}
	out := filepath.Join(dir, baseName(res.Name)+".json")
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return "", fmt.Errorf("write result: %w", err)
	}
	return out, nil
}

// WriteHTML saves the HTML report under dir as <name>.html.
func WriteHTML(res *document.Result, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create result dir: %w", err)
	}
	page, err := HTML(res)
	if err != nil {
		return "", err
	}
	out := filepath.Join(dir, baseName(res.Name)+".html")
	if err := os.WriteFile(out, page, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return out, nil
}

// HTML renders the merged markdown to a full HTML page. Headings get
// stable anchor ids so reviewers can deep-link into long documents, and
// any gaps are summarized in a banner at the top.
func HTML(res *document.Result) ([]byte, error) {
	var converted bytes.Buffer
	if err := goldmark.Convert([]byte(res.Markdown), &converted); err != nil {
		return nil, fmt.Errorf("convert markdown: %w", err)
	}

	doc, err := html.Parse(bytes.NewReader(converted.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("parse rendered html: %w", err)
	}

	anchorHeadings(doc)

	body := findElement(doc, atom.Body)
	if body != nil {
		banner, err := parseFragment(bannerHTML(res))
		if err != nil {
			return nil, err
		}
		for i := len(banner) - 1; i >= 0; i-- {
			n := banner[i]
			n.Parent, n.PrevSibling, n.NextSibling = nil, nil, nil
			body.InsertBefore(n, body.FirstChild)
		}
	}

	var out bytes.Buffer
	if err := html.Render(&out, doc); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	return out.Bytes(), nil
}

// bannerHTML builds the status header: document name, parse status, and a
// notice per gap naming the missing page range and failure reason.
func bannerHTML(res *document.Result) string {
	var sb strings.Builder
	sb.WriteString(`<header class="parse-summary">`)
	fmt.Fprintf(&sb, `<h1>%s</h1><p class="status status-%s">status: %s, pages %d-%d</p>`,
		html.EscapeString(res.Name), res.Status, res.Status, res.StartPage, res.EndPage)
	if len(res.Gaps) > 0 {
		sb.WriteString(`<ul class="gaps">`)
		for _, gap := range res.Gaps {
			fmt.Fprintf(&sb, `<li>pages %d&ndash;%d missing: %s</li>`,
				gap.StartPage, gap.EndPage, html.EscapeString(gap.Reason))
		}
		sb.WriteString(`</ul>`)
	}
	sb.WriteString(`</header>`)
	return sb.String()
}

var headingAtoms = map[atom.Atom]bool{
	atom.H1: true, atom.H2: true, atom.H3: true,
	atom.H4: true, atom.H5: true, atom.H6: true,
}

// anchorHeadings assigns an id to every heading that lacks one, derived
// from its text, de-duplicated with a numeric suffix.
func anchorHeadings(doc *html.Node) {
	seen := map[string]int{}
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && headingAtoms[n.DataAtom] && !hasAttr(n, "id") {
			slug := slugify(textOf(n))
			if slug != "" {
				seen[slug]++
				if count := seen[slug]; count > 1 {
					slug = fmt.Sprintf("%s-%d", slug, count)
				}
				n.Attr = append(n.Attr, html.Attribute{Key: "id", Val: slug})
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

func parseFragment(s string) ([]*html.Node, error) {
	ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(s), ctx)
	if err != nil {
		return nil, fmt.Errorf("parse banner fragment: %w", err)
	}
	return nodes, nil
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var sb strings.Builder
	lastDash := true
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				sb.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(sb.String(), "-")
}

func baseName(name string) string {
	base := filepath.Base(name)
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	if base == "" || base == "." {
		base = "result"
	}
	return base
}
