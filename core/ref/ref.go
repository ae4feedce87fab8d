// Package ref provides scripture reference ranges and a parser for the
// human-readable reference strings annotation resources use (e.g. "3JN 1:1",
// "TIT 1:1-3", "JHN 3:16-4:2").
package ref

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/FocuswithJustin/CedarAlign/core/token"
)

// Range represents the verse or verse-range scope a quote is resolved
// within: book + start chapter/verse + optional end chapter/verse.
type Range struct {
	// Book is the USFM book code (e.g., "GEN", "3JN", "TIT").
	Book string `json:"book"`

	// StartChapter is the first chapter of the range (1-indexed).
	StartChapter int `json:"start_chapter"`

	// StartVerse is the first verse of the range (1-indexed).
	StartVerse int `json:"start_verse"`

	// EndChapter is the last chapter of the range. Defaults to
	// StartChapter when the source reference omits it.
	EndChapter int `json:"end_chapter"`

	// EndVerse is the last verse of the range. Defaults to StartVerse
	// for single-verse references.
	EndVerse int `json:"end_verse"`
}

// rangeGrammar is the participle grammar for reference ranges.
// Examples: "3JN 1:1", "TIT 1:1-3", "JHN 3:16-4:2"
//
//nolint:govet // participle grammar tags are not standard struct tags
type rangeGrammar struct {
	BookPrefix string   `@Int?`
	BookName   string   `@Ident`
	Chapter    int      `@Int ":"`
	Verse      int      `@Int`
	End        *endPart `( "-" @@ )?`
}

//nolint:govet // participle grammar tags are not standard struct tags
type endPart struct {
	First  int  `@Int`
	Second *int `( ":" @Int )?`
}

// rangeLexer defines the lexer for reference strings.
var rangeLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Ident", Pattern: `[A-Za-z][A-Za-z0-9]*`},
	{Name: "Punct", Pattern: `[:\-]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

// rangeParser is the participle parser for reference ranges.
var rangeParser = participle.MustBuild[rangeGrammar](
	participle.Lexer(rangeLexer),
	participle.Elide("Whitespace"),
)

// Parse parses a reference-range string.
// Supported formats:
//   - "3JN 1:1" (single verse)
//   - "TIT 1:1-3" (verse range within one chapter)
//   - "JHN 3:16-4:2" (range crossing a chapter boundary)
func Parse(s string) (*Range, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty reference string")
	}

	parsed, err := rangeParser.ParseString("", s)
	if err != nil {
		return nil, fmt.Errorf("invalid reference format: %q: %w", s, err)
	}

	r := &Range{
		Book:         strings.ToUpper(parsed.BookPrefix + parsed.BookName),
		StartChapter: parsed.Chapter,
		StartVerse:   parsed.Verse,
		EndChapter:   parsed.Chapter,
		EndVerse:     parsed.Verse,
	}

	if parsed.End != nil {
		if parsed.End.Second != nil {
			// "C:V" end form: first is a chapter, second a verse.
			r.EndChapter = parsed.End.First
			r.EndVerse = *parsed.End.Second
		} else {
			// Bare verse end form stays in the start chapter.
			r.EndVerse = parsed.End.First
		}
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks that all chapter/verse values resolve to integers >= 1
// and that the range does not run backwards.
func (r *Range) Validate() error {
	if r.StartChapter < 1 || r.StartVerse < 1 || r.EndChapter < 1 || r.EndVerse < 1 {
		return fmt.Errorf("invalid range %s: chapter and verse must be >= 1", r)
	}
	if r.EndChapter < r.StartChapter {
		return fmt.Errorf("invalid range %s: end chapter before start chapter", r)
	}
	if r.EndChapter == r.StartChapter && r.EndVerse < r.StartVerse {
		return fmt.Errorf("invalid range %s: end verse before start verse", r)
	}
	return nil
}

// String returns the canonical string form of the range.
func (r *Range) String() string {
	var sb strings.Builder
	sb.WriteString(r.Book)
	sb.WriteString(" ")
	sb.WriteString(strconv.Itoa(r.StartChapter))
	sb.WriteString(":")
	sb.WriteString(strconv.Itoa(r.StartVerse))

	if r.EndChapter != r.StartChapter {
		sb.WriteString("-")
		sb.WriteString(strconv.Itoa(r.EndChapter))
		sb.WriteString(":")
		sb.WriteString(strconv.Itoa(r.EndVerse))
	} else if r.EndVerse != r.StartVerse {
		sb.WriteString("-")
		sb.WriteString(strconv.Itoa(r.EndVerse))
	}

	return sb.String()
}

// IsRange returns true if this reference spans more than one verse.
func (r *Range) IsRange() bool {
	return r.EndChapter != r.StartChapter || r.EndVerse != r.StartVerse
}

// Contains returns true if the verse reference falls inside the range.
// A verse span (e.g. "4-6") is inside if its primary number is.
func (r *Range) Contains(v token.VerseRef) bool {
	if v.Chapter < r.StartChapter || v.Chapter > r.EndChapter {
		return false
	}
	if v.Chapter == r.StartChapter && v.Verse < r.StartVerse {
		return false
	}
	if v.Chapter == r.EndChapter && v.Verse > r.EndVerse {
		return false
	}
	return true
}
