package parser

import (
	"fmt"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"golang.org/x/net/html"

	"github.com/alexraputa/agent-skills-sub001/rules"
)

var excessiveLinesRe = regexp.MustCompile(`\n{3,}`)

// HTMLParser reads rule documents authored as HTML. Metadata comes from
// <meta name="..." content="..."> elements and the <title> element; the
// main content is converted to markdown and becomes the body.
type HTMLParser struct {
	converter *md.Converter
}

// NewHTMLParser creates an HTML rule parser.
func NewHTMLParser() *HTMLParser {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	return &HTMLParser{converter: converter}
}

// Name returns the parser name.
func (p *HTMLParser) Name() string {
	return "html"
}

// Extensions returns the file extensions handled by this parser.
func (p *HTMLParser) Extensions() []string {
	return []string{".html", ".htm"}
}

// Parse extracts metadata and a markdown body from an HTML document.
func (p *HTMLParser) Parse(content []byte) (*Document, error) {
	root, err := html.Parse(strings.NewReader(string(content)))
	if err != nil {
		return nil, &rules.DocumentError{Kind: rules.KindParse, Err: fmt.Errorf("parse html: %w", err)}
	}

	meta := Metadata{}
	var title string
	var mainNode, bodyNode *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "meta":
				name, value := attr(n, "name"), attr(n, "content")
				if name != "" {
					if _, exists := meta.Get(name); !exists {
						meta[name] = strings.TrimSpace(value)
					}
				}
			case "title":
				if title == "" && n.FirstChild != nil {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "main", "article":
				if mainNode == nil {
					mainNode = n
				}
			case "body":
				if bodyNode == nil {
					bodyNode = n
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	if _, ok := meta.Get("title"); !ok && title != "" {
		meta["title"] = title
	}

	body := mainNode
	if body == nil {
		body = bodyNode
	}

	var markdown string
	if body != nil {
		removeElements(body, "script", "style", "nav", "noscript")
		markdown, err = p.converter.ConvertString(renderNode(body))
		if err != nil {
			return nil, &rules.DocumentError{Kind: rules.KindParse, Err: fmt.Errorf("convert html: %w", err)}
		}
		markdown = strings.TrimSpace(excessiveLinesRe.ReplaceAllString(markdown, "\n\n")) + "\n"
	}

	return &Document{
		Metadata:    meta,
		Body:        markdown,
		HasMetadata: len(meta) > 0,
	}, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

// removeElements removes all descendants of n with the given tag names.
func removeElements(n *html.Node, tags ...string) {
	tagSet := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tagSet[tag] = true
	}

	var toRemove []*html.Node
	var collect func(*html.Node)
	collect = func(node *html.Node) {
		if node.Type == html.ElementNode && tagSet[node.Data] {
			toRemove = append(toRemove, node)
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)

	for _, node := range toRemove {
		if node.Parent != nil {
			node.Parent.RemoveChild(node)
		}
	}
}

func renderNode(n *html.Node) string {
	var sb strings.Builder
	_ = html.Render(&sb, n)
	return sb.String()
}
