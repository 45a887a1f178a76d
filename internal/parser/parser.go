// Package parser converts documents into an ordered stream of typed
// elements with page indexes, the structured form the engine indexes.
package parser

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// ElementType classifies one parsed element.
type ElementType string

const (
	ElementText     ElementType = "text"
	ElementHeading  ElementType = "heading"
	ElementTable    ElementType = "table"
	ElementImage    ElementType = "image"
	ElementEquation ElementType = "equation"
)

// Element is one structural unit of a parsed document.
type Element struct {
	Type ElementType
	Text string
	Page int
}

// Document is the parsed form of one input file.
type Document struct {
	// Frontmatter metadata (from YAML), empty map when absent.
	Frontmatter map[string]any

	// Title extracted from frontmatter or the first h1.
	Title string

	// Elements in document order.
	Elements []Element

	// Pages is the number of pages seen (at least 1 for non-empty input).
	Pages int
}

var (
	imageRe    = regexp.MustCompile(`^!\[[^\]]*\]\([^)]*\)`)
	headingRe  = regexp.MustCompile(`^#{1,6}\s+`)
	titleH1Re  = regexp.MustCompile(`(?m)^#\s+(.+)$`)
	equationRe = regexp.MustCompile(`^\$\$`)
)

// ParseFile reads and parses a document from disk.
func ParseFile(path string) (*Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return Parse(string(content))
}

// Parse parses document content into structured form. Pages are delimited
// by form-feed characters; input without page breaks is a single page 0.
func Parse(content string) (*Document, error) {
	doc := &Document{
		Frontmatter: make(map[string]any),
	}

	remaining := stripFrontmatter(content, doc)
	doc.Title = extractTitle(doc.Frontmatter, remaining)

	page := 0
	for _, pageText := range strings.Split(remaining, "\f") {
		for _, block := range splitBlocks(pageText) {
			doc.Elements = append(doc.Elements, Element{
				Type: classify(block),
				Text: block,
				Page: page,
			})
		}
		page++
	}
	doc.Pages = page

	return doc, nil
}

// Markdown serializes the parsed document back to a single markdown string,
// used by the model-assisted chunking strategy.
func (d *Document) Markdown() string {
	parts := make([]string, 0, len(d.Elements))
	for _, el := range d.Elements {
		if strings.TrimSpace(el.Text) == "" {
			continue
		}
		parts = append(parts, el.Text)
	}
	return strings.Join(parts, "\n\n")
}

// stripFrontmatter removes a leading YAML frontmatter block, storing its
// parsed content on doc. YAML errors are ignored; the block is still removed.
func stripFrontmatter(content string, doc *Document) string {
	if !strings.HasPrefix(content, "---\n") {
		return content
	}
	endIdx := strings.Index(content[4:], "\n---")
	if endIdx <= 0 {
		return content
	}

	frontmatterYAML := content[4 : 4+endIdx]
	remaining := strings.TrimPrefix(content[4+endIdx+4:], "\n")

	if err := yaml.Unmarshal([]byte(frontmatterYAML), &doc.Frontmatter); err != nil {
		doc.Frontmatter = make(map[string]any)
	}
	return remaining
}

// extractTitle gets title from frontmatter or first h1.
func extractTitle(fm map[string]any, content string) string {
	if title, ok := fm["title"].(string); ok && title != "" {
		return title
	}
	if name, ok := fm["name"].(string); ok && name != "" {
		return name
	}
	if match := titleH1Re.FindStringSubmatch(content); len(match) > 1 {
		return strings.TrimSpace(match[1])
	}
	return ""
}

// splitBlocks splits page text on blank lines, keeping blocks trimmed and
// non-empty. Table rows and equation bodies stay together as one block.
func splitBlocks(text string) []string {
	var blocks []string
	for _, raw := range strings.Split(text, "\n\n") {
		block := strings.TrimSpace(raw)
		if block == "" {
			continue
		}
		blocks = append(blocks, block)
	}
	return blocks
}

// classify tags a block with its element type.
func classify(block string) ElementType {
	switch {
	case imageRe.MatchString(block):
		return ElementImage
	case equationRe.MatchString(block):
		return ElementEquation
	case headingRe.MatchString(block):
		return ElementHeading
	case looksLikeTable(block):
		return ElementTable
	default:
		return ElementText
	}
}

// looksLikeTable detects markdown pipe tables: at least two lines where the
// majority are pipe-delimited rows.
func looksLikeTable(block string) bool {
	lines := strings.Split(block, "\n")
	if len(lines) < 2 {
		return false
	}
	pipeRows := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "|") && strings.Count(trimmed, "|") > 2 {
			pipeRows++
		}
	}
	return pipeRows >= len(lines)-1 && pipeRows >= 2
}
