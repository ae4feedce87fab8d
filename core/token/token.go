// Package token defines the shared token and alignment data model that the
// structural builder, quote resolver, and alignment projector all operate on.
package token

// Type represents the kind of a token.
type Type string

// Token type constants.
const (
	// Word is a word token; only word tokens participate in quote matching.
	Word Type = "word"

	// Punctuation is a punctuation token; preserved for position
	// bookkeeping and phrase reconstruction, never matched by quotes.
	Punctuation Type = "punctuation"
)

// validTypes is the set of valid token types.
var validTypes = map[Type]bool{
	Word:        true,
	Punctuation: true,
}

// IsValid returns true if the token type is valid.
func (t Type) IsValid() bool {
	return validTypes[t]
}

// VerseRef locates a token within its book.
type VerseRef struct {
	// Chapter is the chapter number (1-indexed).
	Chapter int `json:"chapter"`

	// Verse is the primary verse number (1-indexed). For a verse span
	// such as "4-6" this is the span start.
	Verse int `json:"verse"`
}

// Before reports whether r comes strictly before other in document order.
func (r VerseRef) Before(other VerseRef) bool {
	if r.Chapter != other.Chapter {
		return r.Chapter < other.Chapter
	}
	return r.Verse < other.Verse
}

// AnchorWord names one anchor-language word an alignment milestone level
// refers to, by surface form and in-verse occurrence.
type AnchorWord struct {
	// Content is the anchor surface form.
	Content string `json:"content"`

	// Lemma is the anchor dictionary form.
	Lemma string `json:"lemma,omitempty"`

	// Strong is the Strong's-style lexical id.
	Strong string `json:"strong,omitempty"`

	// Morph is the anchor morphological code.
	Morph string `json:"morph,omitempty"`

	// Occurrence is the 1-based occurrence of Content within its verse.
	Occurrence int `json:"occurrence"`
}

// AlignmentLink attaches a target-resource token to the anchor-resource
// tokens it translates. The reference is strictly one-directional: tokens of
// the original-language (anchor) resource never carry a link to themselves.
type AlignmentLink struct {
	// AnchorIDs is the set of anchor-resource token ids this token is
	// aligned to. Empty until bound against a concrete anchor structure.
	AnchorIDs []int `json:"anchor_ids,omitempty"`

	// Content is the anchor surface form this alignment names.
	Content string `json:"content"`

	// Lemma is the dictionary form copied from the anchor milestone.
	Lemma string `json:"lemma,omitempty"`

	// Strong is the Strong's-style lexical id (e.g., "G10180").
	Strong string `json:"strong,omitempty"`

	// Morph is the morphological code (e.g., "Gr,N,,,,,DMS,").
	Morph string `json:"morph,omitempty"`

	// Occurrence is the 1-based occurrence of Content within its verse
	// on the anchor side, as declared by the alignment milestone.
	Occurrence int `json:"occurrence,omitempty"`

	// Chain lists every anchor word the milestone nesting named,
	// outermost level first. Nested milestones align a multi-word idiom
	// to several anchor words at once; the singular fields above mirror
	// the innermost entry.
	Chain []AnchorWord `json:"chain,omitempty"`
}

// LinksTo returns true if the link references the given anchor token id.
func (l *AlignmentLink) LinksTo(id int) bool {
	for _, a := range l.AnchorIDs {
		if a == id {
			return true
		}
	}
	return false
}

// Token is the smallest addressable unit of text.
type Token struct {
	// ID is the token id, unique and document-ordered within the scope
	// of one (resource, book) structure. Adjacent tokens have adjacent ids.
	ID int `json:"id"`

	// Text is the trimmed surface text.
	Text string `json:"text"`

	// Type is the token type (word or punctuation).
	Type Type `json:"type"`

	// Ref is the verse this token belongs to.
	Ref VerseRef `json:"ref"`

	// CharStart is the byte offset where the token starts within its
	// immediate container (verse text, or re-anchored paragraph text).
	CharStart int `json:"char_start"`

	// CharEnd is the byte offset where the token ends.
	CharEnd int `json:"char_end"`

	// Occurrence is the 1-based ordinal of this exact surface form
	// within its verse.
	Occurrence int `json:"occurrence"`

	// Occurrences is the total count of this exact surface form within
	// its verse.
	Occurrences int `json:"occurrences"`

	// Align carries alignment back to the anchor resource. Present only
	// on tokens of target-language resources.
	Align *AlignmentLink `json:"align,omitempty"`
}

// IsWord returns true if this token is a word token.
func (t *Token) IsWord() bool {
	return t.Type == Word
}

// Length returns the length of the token in bytes.
func (t *Token) Length() int {
	return t.CharEnd - t.CharStart
}

// Stream is a document-ordered sequence of tokens.
type Stream []*Token

// Words returns only the word tokens of the stream, in order.
func (s Stream) Words() Stream {
	var words Stream
	for _, t := range s {
		if t.IsWord() {
			words = append(words, t)
		}
	}
	return words
}

// ByID returns the token with the given id, or nil if the stream has none.
// Streams are ordered by id, so this is a binary search.
func (s Stream) ByID(id int) *Token {
	lo, hi := 0, len(s)
	for lo < hi {
		mid := (lo + hi) / 2
		switch {
		case s[mid].ID < id:
			lo = mid + 1
		case s[mid].ID > id:
			hi = mid
		default:
			return s[mid]
		}
	}
	return nil
}

// Between returns the tokens whose ids lie strictly between lo and hi.
func (s Stream) Between(lo, hi int) Stream {
	var out Stream
	for _, t := range s {
		if t.ID > lo && t.ID < hi {
			out = append(out, t)
		}
	}
	return out
}

// CountOccurrences fills the Occurrence and Occurrences fields of every
// token in the stream, counting exact surface forms per verse. Word and
// punctuation tokens are counted independently of each other only in the
// sense that the surface form is what matters: two commas in one verse are
// occurrence 1 and 2 of ",".
func CountOccurrences(s Stream) {
	totals := make(map[VerseRef]map[string]int)
	for _, t := range s {
		verse := totals[t.Ref]
		if verse == nil {
			verse = make(map[string]int)
			totals[t.Ref] = verse
		}
		verse[t.Text]++
		t.Occurrence = verse[t.Text]
	}
	for _, t := range s {
		t.Occurrences = totals[t.Ref][t.Text]
	}
}
