// Package align projects resolved anchor-token spans onto other tokenized
// resources. Alignment is a one-directional reference from translation to
// original: target tokens name anchor token ids, anchor tokens link to
// nothing. BindAnchors resolves author-written milestone metadata into those
// ids; Project intersects an anchor-id set with a target stream and
// reconstructs a readable phrase.
package align

import (
	"sort"
	"strings"

	"github.com/FocuswithJustin/CedarAlign/core/token"
)

// Ellipsis replaces a gap containing content words during phrase
// reconstruction.
const Ellipsis = "…"

// Projection is the result of projecting an anchor-token set onto one
// target resource. Zero matches is an empty Projection, not an error.
type Projection struct {
	// MatchedTokens are the target tokens aligned to the anchor set,
	// deduplicated and ordered by id.
	MatchedTokens token.Stream `json:"matched_tokens"`

	// Phrase is the reconstructed target-language phrase. Small gaps are
	// filled with the original punctuation, larger ones with an ellipsis.
	Phrase string `json:"phrase"`
}

// Project finds every target token whose alignment intersects the anchor-id
// set and reconstructs the corresponding phrase. The target stream must be
// the resource's full document-ordered stream so that gap tokens can be
// inspected.
func Project(anchorIDs []int, target token.Stream) Projection {
	want := make(map[int]bool, len(anchorIDs))
	for _, id := range anchorIDs {
		want[id] = true
	}

	seen := make(map[int]bool)
	var matched token.Stream
	for _, t := range target {
		if t.Align == nil || seen[t.ID] {
			continue
		}
		for _, a := range t.Align.AnchorIDs {
			if want[a] {
				seen[t.ID] = true
				matched = append(matched, t)
				break
			}
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	return Projection{
		MatchedTokens: matched,
		Phrase:        buildPhrase(matched, target),
	}
}

// ProjectFrom projects starting from a click on a single token. A target
// token contributes its own anchor ids; an anchor token contributes itself.
// The origin resource showing up among its own results is expected, not an
// error: that is how self-highlighting works.
func ProjectFrom(origin *token.Token, target token.Stream) Projection {
	var anchorIDs []int
	if origin.Align != nil && len(origin.Align.AnchorIDs) > 0 {
		anchorIDs = origin.Align.AnchorIDs
	} else {
		anchorIDs = []int{origin.ID}
	}
	return Project(anchorIDs, target)
}

// buildPhrase reconstructs a readable phrase from matched tokens. Adjacent
// ids join with a space. A wider gap is filled with the intervening tokens'
// literal text when they are all punctuation, otherwise with an ellipsis.
func buildPhrase(matched, target token.Stream) string {
	switch len(matched) {
	case 0:
		return ""
	case 1:
		return strings.TrimSpace(matched[0].Text)
	}

	var sb strings.Builder
	sb.WriteString(matched[0].Text)
	for i := 1; i < len(matched); i++ {
		prev, cur := matched[i-1], matched[i]
		switch gap := cur.ID - prev.ID; {
		case gap <= 1:
			sb.WriteString(" ")
		default:
			between := target.Between(prev.ID, cur.ID)
			if allPunctuation(between) {
				for _, t := range between {
					sb.WriteString(t.Text)
				}
				sb.WriteString(" ")
			} else {
				sb.WriteString(" ")
				sb.WriteString(Ellipsis)
				sb.WriteString(" ")
			}
		}
		sb.WriteString(cur.Text)
	}
	return sb.String()
}

func allPunctuation(s token.Stream) bool {
	if len(s) == 0 {
		return false
	}
	for _, t := range s {
		if t.Type != token.Punctuation {
			return false
		}
	}
	return true
}
