package structure

import (
	"github.com/FocuswithJustin/CedarAlign/core/ref"
	"github.com/FocuswithJustin/CedarAlign/core/token"
)

// Verse is one verse unit. A source verse span such as "4-6" becomes a
// single Verse with the primary number of the span start.
type Verse struct {
	// Number is the primary verse number.
	Number int `json:"number"`

	// Text is the verse text with escape residue removed and whitespace
	// collapsed. Token offsets are relative to this string.
	Text string `json:"text"`

	// Tokens are the verse's tokens in document order.
	Tokens token.Stream `json:"tokens"`

	// ParagraphID is the id of the paragraph that owns this verse.
	ParagraphID int `json:"paragraph_id"`

	// IsSpan is true when the verse came from a span key like "4-6".
	IsSpan bool `json:"is_span,omitempty"`

	// SpanStart is the first verse number of a span.
	SpanStart int `json:"span_start,omitempty"`

	// SpanEnd is the last verse number of a span.
	SpanEnd int `json:"span_end,omitempty"`
}

// Paragraph groups consecutive verses that share one paragraph style.
type Paragraph struct {
	// ID is the paragraph id, sequential across the book.
	ID int `json:"id"`

	// Style is the paragraph style (default "p").
	Style string `json:"style"`

	// Indent is the indent level parsed from styles like "q2".
	Indent int `json:"indent,omitempty"`

	// CombinedText is the space-joined text of all member verses.
	CombinedText string `json:"combined_text"`

	// VerseNumbers lists the primary numbers of member verses in order.
	VerseNumbers []int `json:"verse_numbers"`

	// Tokens are re-anchored copies of the member verses' tokens: same
	// ids, offsets relative to CombinedText. Walking them in order and
	// filling inter-token gaps with the original substring reproduces
	// CombinedText exactly.
	Tokens token.Stream `json:"tokens"`
}

// Chapter is one built chapter.
type Chapter struct {
	// Number is the chapter number (1-indexed).
	Number int `json:"number"`

	// Verses are the chapter's verses in ascending primary order.
	Verses []*Verse `json:"verses"`

	// Paragraphs are the chapter's paragraphs in document order.
	Paragraphs []*Paragraph `json:"paragraphs"`
}

// Section is a translator-section boundary pair.
type Section struct {
	// Start is the first verse of the section.
	Start token.VerseRef `json:"start"`

	// End is the last verse of the section.
	End token.VerseRef `json:"end"`
}

// Alignment is one book-level alignment record extracted from a top-level
// alignment milestone.
type Alignment struct {
	// Ref is the verse the milestone appeared in.
	Ref token.VerseRef `json:"ref"`

	// Text is the cleaned target-language text of the unit.
	Text string `json:"text"`

	// Meta holds one lexical entry per milestone nesting level,
	// outermost first.
	Meta []*Milestone `json:"meta"`
}

// Counts are the aggregate counts of a built book.
type Counts struct {
	Chapters   int `json:"chapters"`
	Verses     int `json:"verses"`
	Paragraphs int `json:"paragraphs"`
	Sections   int `json:"sections"`
	Alignments int `json:"alignments"`
}

// Book is the immutable built structure of one (resource, book) pair.
// Build it once, then hand it to the quote resolver and alignment projector;
// neither mutates it.
type Book struct {
	// ID is the USFM book code.
	ID string `json:"id"`

	// Chapters are the built chapters in ascending order.
	Chapters []*Chapter `json:"chapters"`

	// Sections are the translator sections, from in-text markers or the
	// caller-supplied fallback table.
	Sections []Section `json:"sections,omitempty"`

	// Alignments are the book-level alignment records.
	Alignments []*Alignment `json:"alignments,omitempty"`

	// Counts are the aggregate counts.
	Counts Counts `json:"counts"`
}

// Tokens returns the book's full token stream in document order.
func (b *Book) Tokens() token.Stream {
	var s token.Stream
	for _, ch := range b.Chapters {
		for _, v := range ch.Verses {
			s = append(s, v.Tokens...)
		}
	}
	return s
}

// TokensInRange returns the tokens of every verse inside the range, in
// ascending (chapter, verse) order. A verse span is included when any verse
// it covers falls inside the range. The book id is not checked; ranges are
// resolved against the book the caller already selected.
func (b *Book) TokensInRange(r *ref.Range) token.Stream {
	var s token.Stream
	for _, ch := range b.Chapters {
		for _, v := range ch.Verses {
			lo, hi := v.Number, v.Number
			if v.IsSpan {
				lo, hi = v.SpanStart, v.SpanEnd
			}
			for n := lo; n <= hi; n++ {
				if r.Contains(token.VerseRef{Chapter: ch.Number, Verse: n}) {
					s = append(s, v.Tokens...)
					break
				}
			}
		}
	}
	return s
}

// Verse returns the verse with the given chapter and primary number, or nil.
func (b *Book) Verse(chapter, verse int) *Verse {
	for _, ch := range b.Chapters {
		if ch.Number != chapter {
			continue
		}
		for _, v := range ch.Verses {
			if v.Number == verse {
				return v
			}
		}
	}
	return nil
}

// LastRef returns the (chapter, verse) of the book's final verse, using the
// span end for a trailing verse span. Zero values mean an empty book.
func (b *Book) LastRef() token.VerseRef {
	if len(b.Chapters) == 0 {
		return token.VerseRef{}
	}
	ch := b.Chapters[len(b.Chapters)-1]
	if len(ch.Verses) == 0 {
		return token.VerseRef{Chapter: ch.Number}
	}
	v := ch.Verses[len(ch.Verses)-1]
	last := v.Number
	if v.IsSpan {
		last = v.SpanEnd
	}
	return token.VerseRef{Chapter: ch.Number, Verse: last}
}
