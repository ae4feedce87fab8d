// Package structure turns per-verse streams of tagged content nodes into
// chapters, paragraphs, verses, tokens, alignment records, and translator
// sections. The low-level tokenizer that produces the tagged nodes from raw
// markup lives outside this package (see internal/usfm and internal/usx);
// structure never parses raw markup characters directly.
package structure

// NodeType represents the kind of a tagged content node.
type NodeType string

// Node type constants.
const (
	// NodeText is inter-word text: punctuation and whitespace.
	NodeText NodeType = "text"

	// NodeWord is a single word of surface text.
	NodeWord NodeType = "word"

	// NodeMilestone is an alignment milestone wrapping the target-language
	// words that translate one anchor-language unit. Milestones nest for
	// multi-word idioms aligned as one unit.
	NodeMilestone NodeType = "alignment-milestone"

	// NodeParagraph is a paragraph marker. It declares the style of the
	// paragraph that starts at the next verse, not the current one.
	NodeParagraph NodeType = "paragraph-marker"

	// NodeSection is an in-text translator-section boundary marker.
	NodeSection NodeType = "section-marker"
)

// Milestone carries the lexical metadata of one alignment milestone level.
type Milestone struct {
	// Content is the anchor-language surface form this milestone aligns.
	Content string `json:"content"`

	// Lemma is the anchor dictionary form.
	Lemma string `json:"lemma,omitempty"`

	// Strong is the Strong's-style lexical id.
	Strong string `json:"strong,omitempty"`

	// Morph is the anchor morphological code.
	Morph string `json:"morph,omitempty"`

	// Occurrence is the 1-based occurrence of Content within its verse.
	Occurrence int `json:"occurrence"`

	// Occurrences is the total occurrences of Content within its verse.
	Occurrences int `json:"occurrences"`
}

// Node is one tagged content node as produced by a low-level tokenizer.
type Node struct {
	// Type is the node type.
	Type NodeType `json:"type"`

	// Text is the surface text for text and word nodes.
	Text string `json:"text,omitempty"`

	// Style is the paragraph style for paragraph-marker nodes
	// (e.g., "p", "q1", "q2").
	Style string `json:"style,omitempty"`

	// Milestone is the lexical metadata for alignment-milestone nodes.
	Milestone *Milestone `json:"milestone,omitempty"`

	// Children are the nested nodes of an alignment milestone: literal
	// word/text nodes mixed with nested milestones, in document order.
	Children []*Node `json:"children,omitempty"`
}

// ChapterSource is the tagged input for one chapter: a map from verse-key
// string ("1", "2", or a span like "4-6") to that verse's ordered nodes.
type ChapterSource struct {
	// Number is the chapter number (1-indexed).
	Number int `json:"number"`

	// Verses maps verse keys to ordered node lists.
	Verses map[string][]*Node `json:"verses"`
}

// BookSource is the tagged input for one book.
type BookSource struct {
	// BookID is the USFM book code (e.g., "3JN").
	BookID string `json:"book_id"`

	// Front holds front-matter nodes appearing before chapter 1.
	// Paragraph markers here seed the style of the first paragraph and
	// section markers seed a translator section starting at 1:1.
	Front []*Node `json:"front,omitempty"`

	// Chapters are the chapter sources in ascending order.
	Chapters []*ChapterSource `json:"chapters"`
}
