package structure

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/FocuswithJustin/CedarAlign/core/token"
)

// Options controls structural building.
type Options struct {
	// DefaultSections is the fallback translator-section table for the
	// book, consulted only when zero in-text section markers are found.
	// Typically loaded from internal/sections and passed in by the
	// caller so the builder itself stays pure.
	DefaultSections []Section
}

// defaultStyle is the paragraph style used when no marker declares one.
const defaultStyle = "p"

// residualEscape matches leftover backslash escape sequences that a
// low-level tokenizer may pass through inside text content.
var residualEscape = regexp.MustCompile(`\\[a-zA-Z][a-zA-Z0-9]*\*?`)

// Build turns a tagged book source into an immutable Book. It never fails:
// malformed verse keys and empty alignment nodes are skipped, empty chapters
// produce empty output. The result is safe for concurrent reads.
func Build(src *BookSource, opts Options) *Book {
	b := &builder{
		book:        &Book{ID: src.BookID},
		nextTokenID: 1,
	}

	// Front matter may declare the first paragraph style and seed a
	// section starting at 1:1.
	for _, n := range src.Front {
		switch n.Type {
		case NodeParagraph:
			b.pendingStyle = paragraphStyle(n.Style)
			b.hasPending = true
		case NodeSection:
			start := token.VerseRef{Chapter: 1, Verse: 1}
			b.openSection = &start
			b.sawSectionMarker = true
		}
	}

	chapters := make([]*ChapterSource, len(src.Chapters))
	copy(chapters, src.Chapters)
	sort.Slice(chapters, func(i, j int) bool { return chapters[i].Number < chapters[j].Number })

	for _, ch := range chapters {
		b.buildChapter(ch)
	}

	// The final open paragraph and section close at the end of the book.
	b.closeParagraph()
	if b.openSection != nil {
		b.book.Sections = append(b.book.Sections, Section{Start: *b.openSection, End: b.book.LastRef()})
		b.openSection = nil
	}
	if !b.sawSectionMarker {
		b.book.Sections = append(b.book.Sections, opts.DefaultSections...)
	}

	b.book.Counts = Counts{
		Chapters:   len(b.book.Chapters),
		Verses:     b.verseCount,
		Paragraphs: b.paragraphCount,
		Sections:   len(b.book.Sections),
		Alignments: len(b.book.Alignments),
	}
	return b.book
}

// builder carries the mutable state of one Build call.
type builder struct {
	book *Book

	nextTokenID int
	verseCount  int

	// Paragraph state. A paragraph marker inside a verse declares the
	// style of the NEXT paragraph, so the style is held pending until a
	// verse actually opens one.
	pendingStyle   string
	hasPending     bool
	openPara       *Paragraph
	openParaTexts  []string
	openParaVerses []*Verse
	openParaChap   *Chapter
	paragraphCount int

	// Section state.
	openSection      *token.VerseRef
	sawSectionMarker bool
	prevRef          token.VerseRef
}

// verseEntry is one parsed verse key with its nodes.
type verseEntry struct {
	primary int
	isSpan  bool
	spanEnd int
	nodes   []*Node
}

// parseVerseKey parses a numeric or span ("A-B", A <= B) verse key.
// The second return is false for invalid keys, which callers skip.
func parseVerseKey(key string) (verseEntry, bool) {
	key = strings.TrimSpace(key)
	if lo, hi, ok := strings.Cut(key, "-"); ok {
		a, errA := strconv.Atoi(strings.TrimSpace(lo))
		z, errZ := strconv.Atoi(strings.TrimSpace(hi))
		if errA != nil || errZ != nil || a < 1 || z < a {
			return verseEntry{}, false
		}
		return verseEntry{primary: a, isSpan: true, spanEnd: z}, true
	}
	n, err := strconv.Atoi(key)
	if err != nil || n < 1 {
		return verseEntry{}, false
	}
	return verseEntry{primary: n}, true
}

func (b *builder) buildChapter(src *ChapterSource) {
	ch := &Chapter{Number: src.Number}
	b.book.Chapters = append(b.book.Chapters, ch)

	// Paragraphs do not cross chapter boundaries; a pending style (or the
	// default) always opens a fresh one at the chapter's first verse.
	b.closeParagraph()
	b.openParaChap = ch

	entries := make([]verseEntry, 0, len(src.Verses))
	for key, nodes := range src.Verses {
		e, ok := parseVerseKey(key)
		if !ok {
			continue // recoverable: invalid verse key
		}
		e.nodes = nodes
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].primary < entries[j].primary })

	for _, e := range entries {
		b.buildVerse(ch, e)
	}
}

func (b *builder) buildVerse(ch *Chapter, e verseEntry) {
	v := &Verse{
		Number: e.primary,
		IsSpan: e.isSpan,
	}
	if e.isSpan {
		v.SpanStart = e.primary
		v.SpanEnd = e.spanEnd
	}
	vref := token.VerseRef{Chapter: ch.Number, Verse: e.primary}

	vb := &verseBuilder{builder: b, ref: vref}
	sawSection := false
	var markerStyle string
	sawMarker := false

	for _, n := range e.nodes {
		switch n.Type {
		case NodeText:
			vb.text(n.Text)
		case NodeWord:
			vb.word(n.Text, nil)
		case NodeMilestone:
			vb.milestone(n, nil)
		case NodeParagraph:
			markerStyle = paragraphStyle(n.Style)
			sawMarker = true
		case NodeSection:
			sawSection = true
		}
	}

	v.Text = vb.finish()
	v.Tokens = vb.tokens
	token.CountOccurrences(v.Tokens)

	// Section boundaries: a marker in this verse closes the open section
	// at the previous verse and opens a new one here.
	if sawSection {
		b.sawSectionMarker = true
		if b.openSection != nil && b.prevRef.Verse > 0 {
			b.book.Sections = append(b.book.Sections, Section{Start: *b.openSection, End: b.prevRef})
		}
		start := vref
		if e.isSpan {
			start.Verse = v.SpanStart
		}
		b.openSection = &start
	}

	// Paragraph grouping: the first verse of a chapter and every verse
	// preceded by a pending style open a new paragraph.
	if b.openPara == nil || b.hasPending {
		b.startParagraph()
	}
	v.ParagraphID = b.openPara.ID
	b.openPara.VerseNumbers = append(b.openPara.VerseNumbers, v.Number)
	b.openParaTexts = append(b.openParaTexts, v.Text)
	b.openParaVerses = append(b.openParaVerses, v)

	if sawMarker {
		b.pendingStyle = markerStyle
		b.hasPending = true
	}

	ch.Verses = append(ch.Verses, v)
	b.verseCount++
	b.prevRef = token.VerseRef{Chapter: ch.Number, Verse: v.Number}
	if e.isSpan {
		b.prevRef.Verse = e.spanEnd
	}
}

func (b *builder) startParagraph() {
	b.closeParagraph()
	style := defaultStyle
	if b.hasPending {
		style = b.pendingStyle
		b.hasPending = false
	}
	b.openPara = &Paragraph{
		ID:     b.paragraphCount,
		Style:  style,
		Indent: styleIndent(style),
	}
	b.paragraphCount++
}

// closeParagraph finalizes the open paragraph: verse texts are space-joined
// into CombinedText and each verse's tokens are re-anchored against it.
func (b *builder) closeParagraph() {
	if b.openPara == nil {
		return
	}
	p := b.openPara
	p.CombinedText = strings.Join(b.openParaTexts, " ")

	offset := 0
	for i, v := range b.openParaVerses {
		if i > 0 {
			offset++ // joining space
		}
		for _, t := range v.Tokens {
			shifted := *t
			shifted.CharStart += offset
			shifted.CharEnd += offset
			p.Tokens = append(p.Tokens, &shifted)
		}
		offset += len(b.openParaTexts[i])
	}

	if b.openParaChap != nil {
		b.openParaChap.Paragraphs = append(b.openParaChap.Paragraphs, p)
	}
	b.openPara = nil
	b.openParaTexts = nil
	b.openParaVerses = nil
}

// verseBuilder accumulates one verse's text and tokens.
type verseBuilder struct {
	*builder
	ref    token.VerseRef
	buf    strings.Builder
	tokens token.Stream
}

// text appends inter-word content: whitespace collapses to single spaces and
// every run of punctuation becomes a punctuation token.
func (vb *verseBuilder) text(raw string) {
	s := cleanText(raw)
	var run []rune
	runStart := 0

	flush := func() {
		if len(run) == 0 {
			return
		}
		vb.emit(string(run), token.Punctuation, nil, runStart)
		run = nil
	}

	for _, r := range s {
		switch classify(r) {
		case classSpace:
			flush()
			vb.space()
		case classWord:
			// A low-level tokenizer normally separates words into
			// word nodes; stray letters in text content still
			// tokenize rather than vanish.
			flush()
			vb.word(string(r), nil)
		default:
			if len(run) == 0 {
				runStart = vb.buf.Len()
			}
			run = append(run, r)
			vb.buf.WriteRune(r)
		}
	}
	flush()
}

// word appends one word token, optionally carrying an alignment link.
func (vb *verseBuilder) word(raw string, link *token.AlignmentLink) {
	text := strings.TrimSpace(cleanText(raw))
	if text == "" {
		return
	}
	start := vb.buf.Len()
	vb.buf.WriteString(text)
	vb.emit(text, token.Word, link, start)
}

// milestone recursively extracts an alignment milestone: its own words and
// text in document order, then each nested milestone's words. Every word
// token emitted carries a link naming all anchor words of the chain.
// A milestone with no metadata and no children yields nothing.
func (vb *verseBuilder) milestone(n *Node, chain []*Node) []string {
	if n.Milestone == nil && len(n.Children) == 0 {
		return nil // recoverable: empty alignment node
	}

	chain = append(chain, n)
	topLevel := len(chain) == 1
	var words []string

	for _, child := range n.Children {
		switch child.Type {
		case NodeText:
			vb.text(child.Text)
		case NodeWord:
			text := strings.TrimSpace(cleanText(child.Text))
			if text == "" {
				continue
			}
			vb.word(text, linkFromChain(chain))
			words = append(words, text)
		case NodeMilestone:
			words = append(words, vb.milestone(child, chain)...)
		}
	}

	if topLevel {
		rec := &Alignment{Ref: vb.ref, Text: strings.Join(words, " ")}
		if n.Milestone != nil {
			rec.Meta = append(rec.Meta, n.Milestone)
		}
		rec.Meta = appendNestedMeta(rec.Meta, n)
		if rec.Text != "" || len(rec.Meta) > 0 {
			vb.book.Alignments = append(vb.book.Alignments, rec)
		}
	}
	return words
}

// appendNestedMeta collects metadata of nested milestones below n in
// document order, one entry per nesting level.
func appendNestedMeta(meta []*Milestone, n *Node) []*Milestone {
	for _, child := range n.Children {
		if child.Type != NodeMilestone {
			continue
		}
		if child.Milestone != nil {
			meta = append(meta, child.Milestone)
		}
		meta = appendNestedMeta(meta, child)
	}
	return meta
}

// linkFromChain builds the alignment link for a word inside the given
// milestone nesting, innermost entry mirrored into the singular fields.
func linkFromChain(chain []*Node) *token.AlignmentLink {
	link := &token.AlignmentLink{}
	for _, n := range chain {
		m := n.Milestone
		if m == nil {
			continue
		}
		link.Chain = append(link.Chain, token.AnchorWord{
			Content:    m.Content,
			Lemma:      m.Lemma,
			Strong:     m.Strong,
			Morph:      m.Morph,
			Occurrence: m.Occurrence,
		})
	}
	if len(link.Chain) == 0 {
		return nil
	}
	inner := link.Chain[len(link.Chain)-1]
	link.Content = inner.Content
	link.Lemma = inner.Lemma
	link.Strong = inner.Strong
	link.Morph = inner.Morph
	link.Occurrence = inner.Occurrence
	return link
}

// space appends a single joining space, collapsing runs and suppressing
// leading whitespace.
func (vb *verseBuilder) space() {
	s := vb.buf.String()
	if s == "" || strings.HasSuffix(s, " ") {
		return
	}
	vb.buf.WriteString(" ")
}

func (vb *verseBuilder) emit(text string, typ token.Type, link *token.AlignmentLink, start int) {
	vb.tokens = append(vb.tokens, &token.Token{
		ID:        vb.nextTokenID,
		Text:      text,
		Type:      typ,
		Ref:       vb.ref,
		CharStart: start,
		CharEnd:   start + len(text),
		Align:     link,
	})
	vb.nextTokenID++
}

// finish returns the verse text. Token offsets stay valid because only
// trailing whitespace is trimmed.
func (vb *verseBuilder) finish() string {
	return strings.TrimRight(vb.buf.String(), " ")
}

type runeClass int

const (
	classSpace runeClass = iota
	classWord
	classPunct
)

func classify(r rune) runeClass {
	switch {
	case unicode.IsSpace(r):
		return classSpace
	case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'':
		return classWord
	default:
		return classPunct
	}
}

// cleanText strips residual escape sequences and normalizes exotic
// whitespace so offsets stay stable across resources.
func cleanText(s string) string {
	if strings.ContainsRune(s, '\\') {
		s = residualEscape.ReplaceAllString(s, "")
		s = strings.ReplaceAll(s, "\\", "")
	}
	s = strings.ReplaceAll(s, "\uFEFF", "")
	return s
}

// paragraphStyle normalizes a marker style, defaulting to "p".
func paragraphStyle(style string) string {
	style = strings.TrimSpace(style)
	if style == "" {
		return defaultStyle
	}
	return style
}

// styleIndent derives the indent level from a paragraph style: trailing
// digits win ("q2" -> 2), a bare poetry style indents one level.
func styleIndent(style string) int {
	i := len(style)
	for i > 0 && style[i-1] >= '0' && style[i-1] <= '9' {
		i--
	}
	if i < len(style) {
		n, _ := strconv.Atoi(style[i:])
		return n
	}
	if strings.HasPrefix(style, "q") {
		return 1
	}
	return 0
}
