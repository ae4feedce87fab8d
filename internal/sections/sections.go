// Package sections holds fallback translator-section tables for resources
// whose markup carries no in-text section markers. The structural builder
// consults the table for a book only when it found zero markers, so marked
// resources always win over the static chunking.
package sections

import (
	"github.com/FocuswithJustin/CedarAlign/core/structure"
	"github.com/FocuswithJustin/CedarAlign/core/token"
)

// tables maps USFM book codes to their default section chunking. Entries
// follow the conventional translation-chunk boundaries for each book.
var tables = map[string][]structure.Section{
	"3JN": {
		sec(1, 1, 1, 4),
		sec(1, 5, 1, 8),
		sec(1, 9, 1, 12),
		sec(1, 13, 1, 15),
	},
	"2JN": {
		sec(1, 1, 1, 3),
		sec(1, 4, 1, 6),
		sec(1, 7, 1, 11),
		sec(1, 12, 1, 13),
	},
	"JUD": {
		sec(1, 1, 1, 4),
		sec(1, 5, 1, 8),
		sec(1, 9, 1, 13),
		sec(1, 14, 1, 19),
		sec(1, 20, 1, 25),
	},
	"PHM": {
		sec(1, 1, 1, 3),
		sec(1, 4, 1, 7),
		sec(1, 8, 1, 16),
		sec(1, 17, 1, 22),
		sec(1, 23, 1, 25),
	},
	"OBA": {
		sec(1, 1, 1, 4),
		sec(1, 5, 1, 9),
		sec(1, 10, 1, 14),
		sec(1, 15, 1, 18),
		sec(1, 19, 1, 21),
	},
	"TIT": {
		sec(1, 1, 1, 4),
		sec(1, 5, 1, 9),
		sec(1, 10, 1, 16),
		sec(2, 1, 2, 8),
		sec(2, 9, 2, 15),
		sec(3, 1, 3, 8),
		sec(3, 9, 3, 15),
	},
}

func sec(c1, v1, c2, v2 int) structure.Section {
	return structure.Section{
		Start: token.VerseRef{Chapter: c1, Verse: v1},
		End:   token.VerseRef{Chapter: c2, Verse: v2},
	}
}

// For returns the fallback section table for a book, or nil when none is
// known. The returned slice is shared; callers must not mutate it.
func For(bookID string) []structure.Section {
	return tables[bookID]
}

// Known reports whether a fallback table exists for the book.
func Known(bookID string) bool {
	_, ok := tables[bookID]
	return ok
}
