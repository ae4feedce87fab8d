package align

import (
	"sort"

	"github.com/FocuswithJustin/CedarAlign/core/structure"
	"github.com/FocuswithJustin/CedarAlign/core/token"
)

// anchorKey identifies one anchor word by verse, surface form, and in-verse
// occurrence, which is exactly how alignment milestones name anchor words.
type anchorKey struct {
	ref        token.VerseRef
	content    string
	occurrence int
}

// BindAnchors resolves the alignment links of a target book against a
// concrete anchor book: every link's named anchor words (verse + surface
// form + occurrence) are looked up in the anchor structure and the matching
// token ids filled into AnchorIDs. Links naming words the anchor does not
// have keep an empty id set, which the projector treats as an alignment gap.
//
// Binding runs once per (target, anchor) pair, after both structures are
// fully built. It is the only step that writes to a built structure, so the
// host must not hand the target book to resolver or projector calls until
// binding returns.
func BindAnchors(target, anchor *structure.Book) {
	index := make(map[anchorKey]int)
	for _, t := range anchor.Tokens() {
		if !t.IsWord() {
			continue
		}
		index[anchorKey{ref: t.Ref, content: t.Text, occurrence: t.Occurrence}] = t.ID
	}

	for _, ch := range target.Chapters {
		for _, v := range ch.Verses {
			for _, t := range v.Tokens {
				bindToken(t, index)
			}
		}
		// Paragraph streams hold re-anchored copies; bind them the
		// same way so both views carry identical links.
		for _, p := range ch.Paragraphs {
			for _, t := range p.Tokens {
				bindToken(t, index)
			}
		}
	}
}

func bindToken(t *token.Token, index map[anchorKey]int) {
	if t.Align == nil {
		return
	}
	words := t.Align.Chain
	if len(words) == 0 {
		words = []token.AnchorWord{{Content: t.Align.Content, Occurrence: t.Align.Occurrence}}
	}

	seen := make(map[int]bool)
	ids := t.Align.AnchorIDs[:0]
	for _, w := range words {
		key := anchorKey{ref: t.Ref, content: w.Content, occurrence: w.Occurrence}
		if id, ok := index[key]; ok && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	t.Align.AnchorIDs = ids
}
