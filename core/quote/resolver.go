// Package quote resolves free-text quote expressions written by annotation
// authors (e.g. "Γαΐῳ & τῷ & ἀγαπητῷ", occurrence 2) to exact token spans
// inside a verse or verse range of the anchor-language resource.
package quote

import (
	"fmt"
	"strings"

	"github.com/FocuswithJustin/CedarAlign/core/ref"
	"github.com/FocuswithJustin/CedarAlign/core/token"
)

// Delimiter separates the sub-quotes of a compound quote expression.
// It is matched literally, surrounding spaces included.
const Delimiter = " & "

// Match is the resolution of one sub-quote.
type Match struct {
	// Quote is the trimmed sub-quote text.
	Quote string `json:"quote"`

	// Ref is the verse the match starts in.
	Ref token.VerseRef `json:"ref"`

	// Tokens are the matched word tokens in document order. Punctuation
	// between the words is never part of the matched sequence.
	Tokens token.Stream `json:"tokens"`

	// CharStart is the offset of the first matched token within its verse.
	CharStart int `json:"char_start"`

	// CharEnd is the offset just past the last matched token within its
	// verse.
	CharEnd int `json:"char_end"`
}

// Resolved is the result of resolving a full quote expression. It is always
// returned by value semantics: a failed resolution carries no partial
// matches, only Err.
type Resolved struct {
	// Success is true when every sub-quote resolved.
	Success bool `json:"success"`

	// Matches are the per-sub-quote matches in resolution order.
	Matches []*Match `json:"matches,omitempty"`

	// TotalTokens flattens all matched tokens across sub-quotes in
	// resolution order, for highlighting the whole logical quote even
	// when its pieces are not adjacent.
	TotalTokens token.Stream `json:"total_tokens,omitempty"`

	// Err describes why resolution failed. Nil on success.
	Err error `json:"-"`
}

// Resolve maps a quote expression plus occurrence ordinal to token spans
// within the reference range. The stream is the anchor resource's
// document-ordered tokens (whole book or wider); only tokens inside rng are
// considered.
//
// Sub-quotes resolve sequentially with a cursor: the first uses the
// caller-supplied occurrence counted over the entire range, every later one
// uses the next occurrence strictly after the previous match. Resolution is
// total and pure: inputs are never mutated and lookup failures come back as
// Resolved{Success: false}, never as a panic.
//
// A nil range is a programming error and panics.
func Resolve(stream token.Stream, expr string, occurrence int, rng *ref.Range) Resolved {
	if rng == nil {
		panic("quote: Resolve called with nil range")
	}
	if err := rng.Validate(); err != nil {
		return failure(err)
	}
	if occurrence < 1 {
		return failure(fmt.Errorf("invalid occurrence %d: must be >= 1", occurrence))
	}

	subs := splitQuote(expr)
	if len(subs) == 0 {
		return failure(fmt.Errorf("empty quote expression"))
	}

	var candidates token.Stream
	for _, t := range stream {
		if rng.Contains(t.Ref) {
			candidates = append(candidates, t)
		}
	}

	result := Resolved{Success: true}
	cursor := 0
	for i, sub := range subs {
		// Compound semantics: "first A, then the next B after that,
		// then the next C after that."
		target := 1
		if i == 0 {
			target = occurrence
		}

		m, next := find(candidates, sub, cursor, target)
		if m == nil {
			return failure(fmt.Errorf("quote %q (occurrence %d) not found in %s", sub, target, rng))
		}
		cursor = next
		result.Matches = append(result.Matches, m)
		result.TotalTokens = append(result.TotalTokens, m.Tokens...)
	}
	return result
}

func failure(err error) Resolved {
	return Resolved{Success: false, Err: err}
}

// splitQuote parses a quote expression into trimmed sub-quote word lists,
// splitting on the literal delimiter. Blank sub-quotes are dropped.
func splitQuote(expr string) []string {
	var subs []string
	for _, part := range strings.Split(expr, Delimiter) {
		part = strings.TrimSpace(part)
		if part != "" {
			subs = append(subs, part)
		}
	}
	return subs
}

// find locates the target-th occurrence of the sub-quote phrase at or after
// cursor. It returns the match and the candidate index just past it, or
// (nil, 0) when no qualifying occurrence exists.
func find(candidates token.Stream, sub string, cursor, target int) (*Match, int) {
	words := strings.Fields(sub)
	count := 0
	for i := cursor; i < len(candidates); i++ {
		end := matchAt(candidates, i, words)
		if end < 0 {
			continue
		}
		count++
		if count < target {
			continue
		}

		var matched token.Stream
		for j := i; j <= end; j++ {
			if candidates[j].IsWord() {
				matched = append(matched, candidates[j])
			}
		}
		m := &Match{
			Quote:     sub,
			Ref:       matched[0].Ref,
			Tokens:    matched,
			CharStart: matched[0].CharStart,
			CharEnd:   matched[len(matched)-1].CharEnd,
		}
		return m, end + 1
	}
	return nil, 0
}

// matchAt reports whether the contiguous word phrase starts at candidate
// index i, returning the index of its last token or -1. Word comparison is
// trimmed, case-sensitive surface equality; punctuation tokens between the
// words are stepped over without breaking contiguity.
func matchAt(candidates token.Stream, i int, words []string) int {
	if !candidates[i].IsWord() || candidates[i].Text != words[0] {
		return -1
	}
	last := i
	j := i + 1
	for _, w := range words[1:] {
		for j < len(candidates) && !candidates[j].IsWord() {
			j++
		}
		if j >= len(candidates) || candidates[j].Text != w {
			return -1
		}
		last = j
		j++
	}
	return last
}
