package document

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fullConfig = Config{
	Formatting: true,
	Layouts:    [][]int{{1, 1}, {1, 1, 1}, {2, 1}, {1, 2}, {1, 2, 1}},
	Links:      true,
	Dividers:   true,
}

func bold(text string) Node {
	n := Leaf(text)
	n.Bold = true
	return n
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		doc     Document
		cfg     Config
		wantErr bool
	}{
		{
			name: "empty paragraph is valid with zero config",
			doc:  Empty(),
			cfg:  Config{},
		},
		{
			name:    "no blocks",
			doc:     Document{},
			cfg:     fullConfig,
			wantErr: true,
		},
		{
			name: "heading with formatting",
			doc:  Document{{Type: TypeHeading, Level: 2, Children: []Node{Leaf("Title")}}},
			cfg:  fullConfig,
		},
		{
			name:    "heading without formatting",
			doc:     Document{{Type: TypeHeading, Level: 2, Children: []Node{Leaf("Title")}}},
			cfg:     Config{},
			wantErr: true,
		},
		{
			name:    "heading level out of range",
			doc:     Document{{Type: TypeHeading, Level: 7, Children: []Node{Leaf("Title")}}},
			cfg:     fullConfig,
			wantErr: true,
		},
		{
			name:    "marks without formatting",
			doc:     Document{Paragraph(bold("loud"))},
			cfg:     Config{Links: true},
			wantErr: true,
		},
		{
			name: "allowed layout",
			doc: Document{{Type: TypeLayout, Layout: []int{2, 1}, Children: []Node{
				{Type: TypeLayoutArea, Children: []Node{Paragraph(Leaf("left"))}},
				{Type: TypeLayoutArea, Children: []Node{Paragraph(Leaf("right"))}},
			}}},
			cfg: fullConfig,
		},
		{
			name: "disallowed layout",
			doc: Document{{Type: TypeLayout, Layout: []int{3, 1}, Children: []Node{
				{Type: TypeLayoutArea, Children: []Node{Paragraph()}},
				{Type: TypeLayoutArea, Children: []Node{Paragraph()}},
			}}},
			cfg:     fullConfig,
			wantErr: true,
		},
		{
			name: "layout area count mismatch",
			doc: Document{{Type: TypeLayout, Layout: []int{1, 1, 1}, Children: []Node{
				{Type: TypeLayoutArea, Children: []Node{Paragraph()}},
			}}},
			cfg:     fullConfig,
			wantErr: true,
		},
		{
			name: "link",
			doc:  Document{Paragraph(Leaf("see "), Node{Type: TypeLink, Href: "https://example.com", Children: []Node{Leaf("here")}})},
			cfg:  fullConfig,
		},
		{
			name:    "link disabled",
			doc:     Document{Paragraph(Node{Type: TypeLink, Href: "https://example.com", Children: []Node{Leaf("here")}})},
			cfg:     Config{Formatting: true},
			wantErr: true,
		},
		{
			name:    "link without href",
			doc:     Document{Paragraph(Node{Type: TypeLink, Children: []Node{Leaf("here")}})},
			cfg:     fullConfig,
			wantErr: true,
		},
		{
			name:    "javascript link",
			doc:     Document{Paragraph(Node{Type: TypeLink, Href: "javascript:alert(document.cookie)", Children: []Node{Leaf("x")}})},
			cfg:     fullConfig,
			wantErr: true,
		},
		{
			name:    "data link",
			doc:     Document{Paragraph(Node{Type: TypeLink, Href: "data:text/html,<script>alert(1)</script>", Children: []Node{Leaf("x")}})},
			cfg:     fullConfig,
			wantErr: true,
		},
		{
			name: "relative link",
			doc:  Document{Paragraph(Node{Type: TypeLink, Href: "/posts/1#top", Children: []Node{Leaf("x")}})},
			cfg:  fullConfig,
		},
		{
			name: "divider",
			doc:  Document{Paragraph(Leaf("a")), {Type: TypeDivider, Children: []Node{Leaf("")}}, Paragraph(Leaf("b"))},
			cfg:  fullConfig,
		},
		{
			name:    "divider disabled",
			doc:     Document{{Type: TypeDivider, Children: []Node{Leaf("")}}},
			cfg:     Config{Formatting: true},
			wantErr: true,
		},
		{
			name: "nested lists",
			doc: Document{{Type: TypeUnorderedList, Children: []Node{
				{Type: TypeListItem, Children: []Node{
					{Type: TypeListItemContent, Children: []Node{Leaf("one")}},
					{Type: TypeOrderedList, Children: []Node{
						{Type: TypeListItem, Children: []Node{
							{Type: TypeListItemContent, Children: []Node{Leaf("one.a")}},
						}},
					}},
				}},
			}}},
			cfg: fullConfig,
		},
		{
			name:    "list item without content",
			doc:     Document{{Type: TypeOrderedList, Children: []Node{{Type: TypeListItem, Children: []Node{Paragraph()}}}}},
			cfg:     fullConfig,
			wantErr: true,
		},
		{
			name:    "unknown block",
			doc:     Document{{Type: "video", Children: []Node{Leaf("")}}},
			cfg:     fullConfig,
			wantErr: true,
		},
		{
			name:    "leaf at top level",
			doc:     Document{Leaf("loose")},
			cfg:     fullConfig,
			wantErr: true,
		},
		{
			name:    "code block with marks",
			doc:     Document{{Type: TypeCode, Children: []Node{bold("x")}}},
			cfg:     fullConfig,
			wantErr: true,
		},
		{
			name: "centered paragraph",
			doc:  Document{{Type: TypeParagraph, TextAlign: AlignCenter, Children: []Node{Leaf("mid")}}},
			cfg:  fullConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.doc, tt.cfg)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalid)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestFrom(t *testing.T) {
	raw := `[{"type":"paragraph","children":[{"text":"hello","bold":true}]}]`

	var decoded any
	require.NoError(t, json.Unmarshal([]byte(raw), &decoded))

	for name, in := range map[string]any{
		"string":  raw,
		"bytes":   []byte(raw),
		"raw":     json.RawMessage(raw),
		"decoded": decoded,
	} {
		t.Run(name, func(t *testing.T) {
			doc, err := From(in)
			require.NoError(t, err)
			require.Len(t, doc, 1)
			assert.Equal(t, TypeParagraph, doc[0].Type)
			require.Len(t, doc[0].Children, 1)
			assert.True(t, doc[0].Children[0].Bold)
			assert.Equal(t, "hello", *doc[0].Children[0].Text)
		})
	}

	_, err := From(nil)
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = From("not json")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestEmptyRoundTripKeepsTextLeaf(t *testing.T) {
	data, err := json.Marshal(Empty())
	require.NoError(t, err)
	assert.JSONEq(t, `[{"type":"paragraph","children":[{"text":""}]}]`, string(data))
}

func TestPlainText(t *testing.T) {
	doc := Document{
		Paragraph(Leaf("Hello "), bold("world")),
		Paragraph(Node{Type: TypeLink, Href: "/x", Children: []Node{Leaf("link")}}),
	}
	assert.Equal(t, "Hello world\nlink", doc.PlainText())
}

func TestRender(t *testing.T) {
	doc := Document{
		{Type: TypeHeading, Level: 2, Children: []Node{Leaf("Title")}},
		Paragraph(Leaf("a "), bold("b"), Node{Type: TypeLink, Href: "https://example.com", Children: []Node{Leaf("c")}}),
		{Type: TypeDivider, Children: []Node{Leaf("")}},
		{Type: TypeLayout, Layout: []int{1, 2}, Children: []Node{
			{Type: TypeLayoutArea, Children: []Node{Paragraph(Leaf("l"))}},
			{Type: TypeLayoutArea, Children: []Node{Paragraph(Leaf("r"))}},
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, Render(doc).Render(&buf))
	html := buf.String()

	assert.Contains(t, html, "<h2>Title</h2>")
	assert.Contains(t, html, "<strong>b</strong>")
	assert.Contains(t, html, `<a href="https://example.com">c</a>`)
	assert.Contains(t, html, "<hr>")
	assert.Contains(t, html, "grid-template-columns: 1fr 2fr")
}

func TestSafeHref(t *testing.T) {
	tests := []struct {
		href string
		want bool
	}{
		{"https://example.com/a?b=c", true},
		{"http://example.com", true},
		{"mailto:ada@example.com", true},
		{"tel:+15550100", true},
		{"/admin/posts", true},
		{"../up", true},
		{"#section", true},
		{"//example.com/x", true},
		{"javascript:alert(1)", false},
		{"JavaScript:alert(1)", false},
		{" javascript:alert(1)", false},
		{"java\tscript:alert(1)", false},
		{"data:text/html;base64,PHNjcmlwdD4=", false},
		{"vbscript:msgbox", false},
		{"file:///etc/passwd", false},
	}
	for _, tt := range tests {
		t.Run(tt.href, func(t *testing.T) {
			assert.Equal(t, tt.want, SafeHref(tt.href))
		})
	}
}

func TestRenderDropsUnsafeLink(t *testing.T) {
	doc := Document{Paragraph(Node{Type: TypeLink, Href: "javascript:alert(1)", Children: []Node{Leaf("x")}})}

	var buf bytes.Buffer
	require.NoError(t, Render(doc).Render(&buf))
	assert.Equal(t, `<div class="document"><p>x</p></div>`, buf.String())
}
