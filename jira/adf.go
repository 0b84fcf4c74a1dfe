package jira

import "strings"

// ADFDocument is an Atlassian Document Format document, the rich-text
// body format of the v3 (Cloud) API.
type ADFDocument struct {
	Version int       `json:"version"`
	Type    string    `json:"type"`
	Content []ADFNode `json:"content,omitempty"`
}

// ADFNode is one node in an ADF document tree.
type ADFNode struct {
	Type    string         `json:"type"`
	Text    string         `json:"text,omitempty"`
	Attrs   map[string]any `json:"attrs,omitempty"`
	Content []ADFNode      `json:"content,omitempty"`
}

// NewADFDocument creates an empty ADF document.
func NewADFDocument() *ADFDocument {
	return &ADFDocument{Version: 1, Type: "doc"}
}

// AddParagraph appends a paragraph of plain text.
func (d *ADFDocument) AddParagraph(text string) {
	d.Content = append(d.Content, ADFNode{
		Type: "paragraph",
		Content: []ADFNode{
			{Type: "text", Text: text},
		},
	})
}

// AddCodeBlock appends a code block.
func (d *ADFDocument) AddCodeBlock(code, language string) {
	node := ADFNode{
		Type: "codeBlock",
		Content: []ADFNode{
			{Type: "text", Text: code},
		},
	}
	if language != "" {
		node.Attrs = map[string]any{"language": language}
	}
	d.Content = append(d.Content, node)
}

// TextDocument builds a single-paragraph ADF document, the shape used
// for run-report comments.
func TextDocument(text string) *ADFDocument {
	doc := NewADFDocument()
	for _, line := range strings.Split(text, "\n") {
		doc.AddParagraph(line)
	}
	return doc
}

// PlainText flattens the document to plain text, one line per block.
func (d *ADFDocument) PlainText() string {
	if d == nil {
		return ""
	}
	var b strings.Builder
	for i, node := range d.Content {
		if i > 0 {
			b.WriteString("\n")
		}
		writeNodeText(&b, node)
	}
	return b.String()
}

func writeNodeText(b *strings.Builder, node ADFNode) {
	if node.Text != "" {
		b.WriteString(node.Text)
	}
	for _, child := range node.Content {
		writeNodeText(b, child)
	}
}

// adfPlainText extracts plain text from a decoded JSON body that may be
// an ADF tree (v3) or a plain string (v2).
func adfPlainText(v any) string {
	switch body := v.(type) {
	case nil:
		return ""
	case string:
		return body
	case map[string]any:
		var b strings.Builder
		collectText(&b, body)
		return b.String()
	}
	return ""
}

func collectText(b *strings.Builder, node map[string]any) {
	if node["type"] == "paragraph" && b.Len() > 0 {
		b.WriteString("\n")
	}
	if t, ok := node["text"].(string); ok {
		b.WriteString(t)
	}
	content, ok := node["content"].([]any)
	if !ok {
		return
	}
	for _, child := range content {
		if m, ok := child.(map[string]any); ok {
			collectText(b, m)
		}
	}
}
