package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/FocuswithJustin/CedarAlign/core/align"
	"github.com/FocuswithJustin/CedarAlign/core/quote"
	"github.com/FocuswithJustin/CedarAlign/core/ref"
	"github.com/FocuswithJustin/CedarAlign/internal/store"
)

const anchorUSFM = `\id 3JN unfoldingWord Greek New Testament
\c 1
\v 1 \w Ὁ|lemma="ὁ" strong="G35880"\w* \w πρεσβύτερος|lemma="πρεσβύτερος" strong="G42450"\w* \w Γαΐῳ|lemma="Γάϊος" strong="G10500"\w*.
`

const targetUSFM = `\id 3JN unfoldingWord Literal Text
\c 1
\v 1 \zaln-s |x-strong="G42450" x-lemma="πρεσβύτερος" x-morph="Gr,N,,,,,NMS," x-occurrence="1" x-occurrences="1" x-content="πρεσβύτερος"\*\w The|x-occurrence="1" x-occurrences="1"\w* \w elder|x-occurrence="1" x-occurrences="1"\w*\zaln-e\* \w writes|x-occurrence="1" x-occurrences="1"\w*.
`

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "cedar.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// The full production pipeline: tokenize both resources, build and store the
// anchor, build the target against it, then resolve and project from the
// stored structures alone.
func TestBuildThenProjectPipeline(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	anchorSrc, err := tokenize([]byte(anchorUSFM), "ugnt_3jn.usfm", "auto")
	if err != nil {
		t.Fatalf("tokenize anchor: %v", err)
	}
	if _, err := buildBook(ctx, st, "ugnt", "", store.HashSource([]byte(anchorUSFM)), anchorSrc); err != nil {
		t.Fatalf("buildBook anchor: %v", err)
	}

	targetSrc, err := tokenize([]byte(targetUSFM), "ult_3jn.usfm", "auto")
	if err != nil {
		t.Fatalf("tokenize target: %v", err)
	}
	if _, err := buildBook(ctx, st, "ult", "ugnt", store.HashSource([]byte(targetUSFM)), targetSrc); err != nil {
		t.Fatalf("buildBook target: %v", err)
	}

	// From here on only stored structures are read, the way the resolve
	// and project commands work.
	anchor, err := st.GetBook(ctx, "ugnt", "3JN")
	if err != nil {
		t.Fatalf("GetBook anchor: %v", err)
	}
	target, err := st.GetBook(ctx, "ult", "3JN")
	if err != nil {
		t.Fatalf("GetBook target: %v", err)
	}

	rng, err := ref.Parse("3JN 1:1")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	resolved := quote.Resolve(anchor.Tokens(), "πρεσβύτερος", 1, rng)
	if !resolved.Success {
		t.Fatalf("Resolve() failed: %v", resolved.Err)
	}

	var ids []int
	for _, tok := range resolved.TotalTokens {
		ids = append(ids, tok.ID)
	}
	projection := align.Project(ids, target.Tokens())
	if len(projection.MatchedTokens) != 2 {
		t.Fatalf("got %d matched tokens, want 2", len(projection.MatchedTokens))
	}
	if projection.Phrase != "The elder" {
		t.Errorf("Phrase = %q, want %q", projection.Phrase, "The elder")
	}
}

func TestBuildBookMissingAnchor(t *testing.T) {
	st := openTestStore(t)

	targetSrc, err := tokenize([]byte(targetUSFM), "ult_3jn.usfm", "auto")
	if err != nil {
		t.Fatalf("tokenize target: %v", err)
	}
	hash := store.HashSource([]byte(targetUSFM))
	if _, err := buildBook(context.Background(), st, "ult", "ugnt", hash, targetSrc); err == nil {
		t.Error("buildBook succeeded with no stored anchor book, want error")
	}
}

func TestTokenizeFormatSelection(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		format string
		data   string
	}{
		{"explicit usfm", "book.dat", "usfm", anchorUSFM},
		{"usfm extension", "book.usfm", "auto", anchorUSFM},
		{"sniffed usfm", "book", "auto", anchorUSFM},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := tokenize([]byte(tt.data), tt.path, tt.format)
			if err != nil {
				t.Fatalf("tokenize() error = %v", err)
			}
			if src.BookID != "3JN" {
				t.Errorf("BookID = %q, want %q", src.BookID, "3JN")
			}
		})
	}
}
