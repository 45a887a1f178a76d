package parser

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseClassification(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantTypes []ElementType
	}{
		{
			name:      "plain paragraph",
			content:   "Just some text.",
			wantTypes: []ElementType{ElementText},
		},
		{
			name:      "heading and paragraph",
			content:   "# Title\n\nBody text here.",
			wantTypes: []ElementType{ElementHeading, ElementText},
		},
		{
			name:      "image reference",
			content:   "![diagram](assets/flow.png)",
			wantTypes: []ElementType{ElementImage},
		},
		{
			name:      "display equation",
			content:   "$$\nE = mc^2\n$$",
			wantTypes: []ElementType{ElementEquation},
		},
		{
			name:      "pipe table",
			content:   "| name | qty |\n|------|-----|\n| bolt | 4 |",
			wantTypes: []ElementType{ElementTable},
		},
		{
			name:      "mixed document",
			content:   "# Report\n\nIntro paragraph.\n\n![chart](c.png)\n\nClosing notes.",
			wantTypes: []ElementType{ElementHeading, ElementText, ElementImage, ElementText},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse(tt.content)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if len(doc.Elements) != len(tt.wantTypes) {
				t.Fatalf("Parse() got %d elements, want %d", len(doc.Elements), len(tt.wantTypes))
			}
			for i, el := range doc.Elements {
				if el.Type != tt.wantTypes[i] {
					t.Errorf("element[%d].Type = %q, want %q (text %q)", i, el.Type, tt.wantTypes[i], el.Text)
				}
			}
		})
	}
}

func TestParsePages(t *testing.T) {
	doc, err := Parse("page zero text\fpage one text\fpage two text")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if doc.Pages != 3 {
		t.Errorf("Pages = %d, want 3", doc.Pages)
	}
	for i, el := range doc.Elements {
		if el.Page != i {
			t.Errorf("element[%d].Page = %d, want %d", i, el.Page, i)
		}
	}
}

func TestParseFrontmatter(t *testing.T) {
	content := "---\ntitle: Handbook\nversion: 2\n---\n\n# Ignored H1\n\nBody."
	doc, err := Parse(content)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if doc.Title != "Handbook" {
		t.Errorf("Title = %q, want Handbook", doc.Title)
	}
	if v, ok := doc.Frontmatter["version"]; !ok || v != 2 {
		t.Errorf("Frontmatter[version] = %v, want 2", v)
	}
	for _, el := range doc.Elements {
		if el.Text == "title: Handbook" {
			t.Error("frontmatter leaked into elements")
		}
	}
}

func TestParseTitleFromH1(t *testing.T) {
	doc, err := Parse("# Quarterly Review\n\nContents.")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if doc.Title != "Quarterly Review" {
		t.Errorf("Title = %q, want Quarterly Review", doc.Title)
	}
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.md")
	if err := os.WriteFile(path, []byte("# Hello\n\nWorld."), 0o644); err != nil {
		t.Fatal(err)
	}

	doc, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if len(doc.Elements) != 2 {
		t.Fatalf("got %d elements, want 2", len(doc.Elements))
	}

	if _, err := ParseFile(filepath.Join(dir, "missing.md")); err == nil {
		t.Error("ParseFile() on missing file should error")
	}
}

func TestMarkdownRoundTrip(t *testing.T) {
	doc, err := Parse("# A\n\nfirst\n\nsecond")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	want := "# A\n\nfirst\n\nsecond"
	if got := doc.Markdown(); got != want {
		t.Errorf("Markdown() = %q, want %q", got, want)
	}
}
