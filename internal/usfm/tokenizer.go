// Package usfm is the low-level tokenizer for USFM 3 scripture markup. It
// converts raw markup into the per-verse tagged node arrays the structural
// builder consumes: text, word, alignment-milestone, paragraph-marker, and
// section-marker nodes. Word-level alignment arrives as \zaln-s milestones
// wrapping \w word tokens; translator sections as \ts\* (or legacy \s5)
// markers. Nothing downstream of this package touches raw markup.
package usfm

import (
	"bufio"
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/CedarAlign/core/errors"
	"github.com/FocuswithJustin/CedarAlign/core/structure"
)

// milestoneAttrRegex matches one x-attribute inside a \zaln-s marker.
var milestoneAttrRegex = regexp.MustCompile(`([a-z-]+)="([^"]*)"`)

// paragraphStyles is the set of paragraph-level markers (style letters,
// optionally followed by an indent digit in the source).
var paragraphStyles = map[string]bool{
	"p": true, "m": true, "mi": true, "pi": true, "nb": true,
	"q": true, "qm": true, "qr": true, "qc": true, "pc": true,
	"li": true, "cls": true,
}

// metadataMarkers are book-header markers dropped entirely.
var metadataMarkers = map[string]bool{
	"id": true, "usfm": true, "ide": true, "sts": true, "rem": true,
	"h": true, "toc1": true, "toc2": true, "toc3": true,
	"mt": true, "mt1": true, "mt2": true, "mt3": true,
}

// Tokenize converts raw USFM data into a tagged book source. The outer scan
// is line oriented: \id names the book, \c and \v delimit chapters and
// verses, and every other line joins the open verse's inline content (or the
// front matter before chapter 1). Inline content is then parsed into nodes.
func Tokenize(data []byte) (*structure.BookSource, error) {
	var (
		bookID  string
		front   strings.Builder
		current *strings.Builder
		chapter *rawChapter
		raw     []*rawChapter
	)

	appendContent := func(s string) {
		buf := current
		if buf == nil {
			buf = &front
		}
		if buf.Len() > 0 {
			buf.WriteString(" ")
		}
		buf.WriteString(s)
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "\\") {
			appendContent(line)
			continue
		}

		marker, value, _ := strings.Cut(line[1:], " ")
		switch {
		case marker == "id":
			fields := strings.Fields(value)
			if len(fields) > 0 {
				bookID = strings.ToUpper(fields[0])
			}

		case marker == "c":
			num, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil || num < 1 {
				continue // recoverable: malformed chapter number
			}
			chapter = &rawChapter{number: num}
			raw = append(raw, chapter)
			current = nil

		case marker == "v":
			if chapter == nil {
				continue // verse outside any chapter
			}
			key, rest, _ := strings.Cut(value, " ")
			v := &rawVerse{key: key}
			chapter.verses = append(chapter.verses, v)
			current = &v.content
			if rest != "" {
				v.content.WriteString(rest)
			}

		case metadataMarkers[marker]:
			// Book headers carry no verse content.

		default:
			// Paragraph markers, section markers, and continuation
			// markup all stay in the content stream; the inline
			// parser understands them in document order.
			appendContent(line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.NewParse("USFM", "", err.Error())
	}
	if bookID == "" {
		return nil, errors.NewParse("USFM", "", "missing \\id marker")
	}

	src := &structure.BookSource{
		BookID: bookID,
		Front:  parseInline(front.String()),
	}
	for _, ch := range raw {
		out := &structure.ChapterSource{
			Number: ch.number,
			Verses: make(map[string][]*structure.Node, len(ch.verses)),
		}
		for _, v := range ch.verses {
			out.Verses[v.key] = parseInline(v.content.String())
		}
		src.Chapters = append(src.Chapters, out)
	}
	return src, nil
}

type rawChapter struct {
	number int
	verses []*rawVerse
}

type rawVerse struct {
	key     string
	content strings.Builder
}

// parseInline parses a verse's (or the front matter's) inline markup into
// tagged nodes. Alignment milestones nest via a stack; unmatched \zaln-e
// markers and truncated spans degrade to plain content rather than failing.
func parseInline(content string) []*structure.Node {
	var (
		roots []*structure.Node
		stack []*structure.Node
	)

	appendNode := func(n *structure.Node) {
		if len(stack) > 0 {
			top := stack[len(stack)-1]
			top.Children = append(top.Children, n)
		} else {
			roots = append(roots, n)
		}
	}
	emitText := func(s string) {
		if s != "" {
			appendNode(&structure.Node{Type: structure.NodeText, Text: s})
		}
	}

	i := 0
	for i < len(content) {
		idx := strings.IndexByte(content[i:], '\\')
		if idx < 0 {
			emitText(content[i:])
			break
		}
		emitText(content[i : i+idx])
		i += idx
		rest := content[i:]

		switch {
		case strings.HasPrefix(rest, `\zaln-s`):
			end := strings.Index(rest, `\*`)
			if end < 0 {
				// Truncated milestone: drop the marker, keep the text.
				i += len(`\zaln-s`)
				continue
			}
			n := &structure.Node{
				Type:      structure.NodeMilestone,
				Milestone: parseMilestoneAttrs(rest[len(`\zaln-s`):end]),
			}
			appendNode(n)
			stack = append(stack, n)
			i += end + 2

		case strings.HasPrefix(rest, `\zaln-e\*`):
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			i += len(`\zaln-e\*`)

		case strings.HasPrefix(rest, `\w `):
			end := strings.Index(rest, `\w*`)
			if end < 0 {
				i += len(`\w `)
				continue
			}
			inner := rest[len(`\w `):end]
			word, _, _ := strings.Cut(inner, "|")
			if word = strings.TrimSpace(word); word != "" {
				appendNode(&structure.Node{Type: structure.NodeWord, Text: word})
			}
			i += end + len(`\w*`)

		case strings.HasPrefix(rest, `\f `):
			i += skipSpan(rest, `\f*`)

		case strings.HasPrefix(rest, `\x `):
			i += skipSpan(rest, `\x*`)

		default:
			name, width := markerName(rest)
			switch {
			case isSectionMarker(name):
				appendNode(&structure.Node{Type: structure.NodeSection})
			case isParagraphMarker(name):
				appendNode(&structure.Node{Type: structure.NodeParagraph, Style: name})
			}
			i += width
		}
	}
	return roots
}

// skipSpan returns the width of a paired span (footnote, cross-reference)
// including its closing marker, or the opening marker alone when unclosed.
func skipSpan(rest, closer string) int {
	if end := strings.Index(rest, closer); end >= 0 {
		return end + len(closer)
	}
	return 2
}

// markerName reads the marker at the start of rest (which begins with a
// backslash) and returns its name and total width including any milestone
// terminator.
func markerName(rest string) (string, int) {
	i := 1
	for i < len(rest) {
		c := rest[i]
		if c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '-' {
			i++
			continue
		}
		break
	}
	name := rest[1:i]
	width := i
	if strings.HasPrefix(rest[i:], `\*`) {
		width += 2
	} else if strings.HasPrefix(rest[i:], `*`) {
		width++
	}
	return name, width
}

// isSectionMarker reports whether the marker is a translator-section
// boundary: the \ts milestone family or the legacy \s5 chunk marker.
func isSectionMarker(name string) bool {
	return name == "ts" || name == "ts-s" || name == "ts-e" || name == "s5"
}

// isParagraphMarker reports whether the marker is a paragraph style,
// allowing an indent digit suffix ("q2", "li1").
func isParagraphMarker(name string) bool {
	base := strings.TrimRight(name, "0123456789")
	return base != "" && paragraphStyles[base]
}

// parseMilestoneAttrs parses the x-attributes of a \zaln-s marker.
func parseMilestoneAttrs(attrs string) *structure.Milestone {
	m := &structure.Milestone{}
	for _, match := range milestoneAttrRegex.FindAllStringSubmatch(attrs, -1) {
		key, val := match[1], match[2]
		switch key {
		case "x-content":
			m.Content = val
		case "x-lemma":
			m.Lemma = val
		case "x-strong":
			m.Strong = val
		case "x-morph":
			m.Morph = val
		case "x-occurrence":
			m.Occurrence, _ = strconv.Atoi(val)
		case "x-occurrences":
			m.Occurrences, _ = strconv.Atoi(val)
		}
	}
	if *m == (structure.Milestone{}) {
		return nil
	}
	return m
}
