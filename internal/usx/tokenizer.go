// Package usx is the low-level tokenizer for USX 3 scripture XML. It walks
// the XML tree in document order and produces the same tagged node arrays as
// the USFM tokenizer, so the structural builder is format-agnostic: chapters
// and verses arrive as milestone elements, words as char[@style='w'] runs,
// and alignment as paired zaln-s/zaln-e milestones.
package usx

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/FocuswithJustin/CedarAlign/core/errors"
	"github.com/FocuswithJustin/CedarAlign/core/structure"
)

var bookExpr = xpath.MustCompile("//book")

// Tokenize converts USX data into a tagged book source.
func Tokenize(data []byte) (*structure.BookSource, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, errors.NewParse("USX", "", err.Error())
	}

	book := xmlquery.QuerySelector(doc, bookExpr)
	if book == nil {
		return nil, errors.NewParse("USX", "", "missing book element")
	}
	bookID := strings.ToUpper(book.SelectAttr("code"))
	if bookID == "" {
		return nil, errors.NewParse("USX", "", "book element has no code")
	}

	w := &walker{src: &structure.BookSource{BookID: bookID}}
	w.walk(doc)
	return w.src, nil
}

// walker holds the document-order scan state. Nodes before the first verse
// of chapter 1 accumulate in front matter; paragraph and section markers
// between verses attach to the most recently opened verse, matching the
// USFM tokenizer's convention.
type walker struct {
	src     *structure.BookSource
	chapter *structure.ChapterSource
	verse   string
	stack   []*structure.Node
}

func (w *walker) append(n *structure.Node) {
	if len(w.stack) > 0 {
		top := w.stack[len(w.stack)-1]
		top.Children = append(top.Children, n)
		return
	}
	if w.chapter == nil || w.verse == "" {
		w.src.Front = append(w.src.Front, n)
		return
	}
	w.chapter.Verses[w.verse] = append(w.chapter.Verses[w.verse], n)
}

func (w *walker) walk(n *xmlquery.Node) {
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		switch child.Type {
		case xmlquery.TextNode:
			if text := child.Data; strings.TrimSpace(text) != "" || w.verse != "" {
				w.append(&structure.Node{Type: structure.NodeText, Text: text})
			}

		case xmlquery.ElementNode:
			w.element(child)
		}
	}
}

func (w *walker) element(n *xmlquery.Node) {
	switch n.Data {
	case "book":
		// Handled up front; its children are header text.

	case "chapter":
		num, err := strconv.Atoi(n.SelectAttr("number"))
		if err != nil || num < 1 {
			return // chapter-end milestone (eid only) or malformed
		}
		w.chapter = &structure.ChapterSource{
			Number: num,
			Verses: make(map[string][]*structure.Node),
		}
		w.src.Chapters = append(w.src.Chapters, w.chapter)
		w.verse = ""

	case "verse":
		if key := n.SelectAttr("number"); key != "" && w.chapter != nil {
			w.verse = key
			if _, ok := w.chapter.Verses[key]; !ok {
				w.chapter.Verses[key] = nil
			}
		}
		// verse-end milestones (eid only) leave the verse open, so
		// markers between verses attach to the preceding one.

	case "para":
		style := n.SelectAttr("style")
		if isSectionStyle(style) {
			w.append(&structure.Node{Type: structure.NodeSection})
			return
		}
		if isParagraphStyle(style) {
			w.append(&structure.Node{Type: structure.NodeParagraph, Style: style})
		}
		w.walk(n)

	case "char":
		switch style := n.SelectAttr("style"); style {
		case "w":
			if word := innerText(n); word != "" {
				w.append(&structure.Node{Type: structure.NodeWord, Text: word})
			}
		default:
			w.walk(n)
		}

	case "ms":
		switch style := n.SelectAttr("style"); {
		case style == "zaln-s":
			ms := &structure.Node{
				Type:      structure.NodeMilestone,
				Milestone: milestoneAttrs(n),
			}
			w.append(ms)
			w.stack = append(w.stack, ms)
		case style == "zaln-e":
			if len(w.stack) > 0 {
				w.stack = w.stack[:len(w.stack)-1]
			}
		case isSectionStyle(style):
			w.append(&structure.Node{Type: structure.NodeSection})
		}

	case "note":
		// Footnotes and cross-references carry no verse content.

	default:
		w.walk(n)
	}
}

// innerText returns the word text of a char element, dropping any USFM-style
// attribute tail after a pipe.
func innerText(n *xmlquery.Node) string {
	text := n.InnerText()
	if i := strings.IndexByte(text, '|'); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}

func milestoneAttrs(n *xmlquery.Node) *structure.Milestone {
	m := &structure.Milestone{
		Content: n.SelectAttr("x-content"),
		Lemma:   n.SelectAttr("x-lemma"),
		Strong:  n.SelectAttr("x-strong"),
		Morph:   n.SelectAttr("x-morph"),
	}
	m.Occurrence, _ = strconv.Atoi(n.SelectAttr("x-occurrence"))
	m.Occurrences, _ = strconv.Atoi(n.SelectAttr("x-occurrences"))
	if *m == (structure.Milestone{}) {
		return nil
	}
	return m
}

func isSectionStyle(style string) bool {
	return style == "ts" || style == "ts-s" || style == "ts-e" || style == "s5"
}

var paragraphStyles = map[string]bool{
	"p": true, "m": true, "mi": true, "pi": true, "nb": true,
	"q": true, "qm": true, "qr": true, "qc": true, "pc": true,
	"li": true, "cls": true,
}

func isParagraphStyle(style string) bool {
	base := strings.TrimRight(style, "0123456789")
	return paragraphStyles[base]
}
