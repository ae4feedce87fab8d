// Command cedar is the CLI tool for CedarAlign.
// It builds tokenized book structures from USFM or USX markup, resolves
// quote expressions to anchor token spans, projects alignments onto other
// resources, and serves the study API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/CedarAlign/core/align"
	"github.com/FocuswithJustin/CedarAlign/core/quote"
	"github.com/FocuswithJustin/CedarAlign/core/ref"
	"github.com/FocuswithJustin/CedarAlign/core/structure"
	"github.com/FocuswithJustin/CedarAlign/internal/api"
	"github.com/FocuswithJustin/CedarAlign/internal/logging"
	"github.com/FocuswithJustin/CedarAlign/internal/sections"
	"github.com/FocuswithJustin/CedarAlign/internal/store"
	"github.com/FocuswithJustin/CedarAlign/internal/usfm"
	"github.com/FocuswithJustin/CedarAlign/internal/usx"
)

const version = "0.1.0"

// CLI defines the command-line interface for cedar.
var CLI struct {
	// Global flags
	DB        string `name:"db" help:"Path to the structure database" default:"cedar.db" type:"path"`
	Verbose   bool   `name:"verbose" short:"v" help:"Enable debug logging"`
	LogFormat string `name:"log-format" help:"Log output format" enum:"text,json" default:"text"`

	Build   BuildCmd   `cmd:"" help:"Tokenize a book from USFM or USX markup and store it"`
	Resolve ResolveCmd `cmd:"" help:"Resolve a quote expression to anchor token spans"`
	Project ProjectCmd `cmd:"" help:"Project anchor tokens onto a target resource"`
	Books   BooksCmd   `cmd:"" help:"List stored books for a resource"`
	Serve   ServeCmd   `cmd:"" help:"Start the alignment API server"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

func openStore() (*store.Store, error) {
	return store.Open(CLI.DB)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// BuildCmd tokenizes one markup file and stores the built structure.
type BuildCmd struct {
	Path           string `arg:"" help:"USFM or USX file to build" type:"existingfile"`
	Resource       string `name:"resource" short:"r" required:"" help:"Resource id (e.g. ult, ugnt)"`
	Format         string `name:"format" help:"Input format" enum:"auto,usfm,usx" default:"auto"`
	AnchorResource string `name:"anchor-resource" short:"a" help:"Stored anchor resource to bind alignment links against (e.g. ugnt)"`
	Force          bool   `name:"force" help:"Rebuild even when the stored source hash matches"`
}

func (c *BuildCmd) Run() error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		return err
	}

	src, err := tokenize(data, c.Path, c.Format)
	if err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	hash := store.HashSource(data)
	if !c.Force {
		if stored, err := st.SourceHash(ctx, c.Resource, src.BookID); err == nil && stored == hash {
			fmt.Printf("%s/%s is up to date\n", c.Resource, src.BookID)
			return nil
		}
	}

	book, err := buildBook(ctx, st, c.Resource, c.AnchorResource, hash, src)
	if err != nil {
		return err
	}

	logging.StructureBuilt(c.Resource, book.ID,
		book.Counts.Verses, book.Counts.Paragraphs, book.Counts.Alignments)
	fmt.Printf("built %s/%s: %d chapters, %d verses, %d paragraphs, %d sections, %d alignments\n",
		c.Resource, book.ID, book.Counts.Chapters, book.Counts.Verses,
		book.Counts.Paragraphs, book.Counts.Sections, book.Counts.Alignments)
	return nil
}

// buildBook builds the structure for one tokenized book, binds its alignment
// links against the stored anchor book when an anchor resource is named, and
// stores the result. Projection reads anchor ids off the stored target, so a
// target resource built without its anchor carries unbound links and projects
// nothing.
func buildBook(ctx context.Context, st *store.Store, resource, anchorResource, sourceHash string, src *structure.BookSource) (*structure.Book, error) {
	book := structure.Build(src, structure.Options{
		DefaultSections: sections.For(src.BookID),
	})

	if anchorResource != "" && anchorResource != resource {
		anchor, err := st.GetBook(ctx, anchorResource, src.BookID)
		if err != nil {
			return nil, fmt.Errorf("loading anchor %s/%s: %w", anchorResource, src.BookID, err)
		}
		align.BindAnchors(book, anchor)
	}

	if err := st.PutBook(ctx, resource, sourceHash, book); err != nil {
		return nil, err
	}
	return book, nil
}

// tokenize picks the low-level tokenizer by explicit format, file extension,
// or content sniffing, in that order.
func tokenize(data []byte, path, format string) (*structure.BookSource, error) {
	switch format {
	case "usfm":
		return usfm.Tokenize(data)
	case "usx":
		return usx.Tokenize(data)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".usx", ".xml":
		return usx.Tokenize(data)
	case ".usfm", ".sfm", ".txt":
		return usfm.Tokenize(data)
	}
	if strings.HasPrefix(strings.TrimSpace(string(data)), "<") {
		return usx.Tokenize(data)
	}
	return usfm.Tokenize(data)
}

// ResolveCmd resolves a quote expression against a stored anchor book.
type ResolveCmd struct {
	Reference  string `arg:"" help:"Verse reference or range (e.g. \"3JN 1:1\" or \"3JN 1:9-12\")"`
	Quote      string `arg:"" help:"Quote expression; sub-quotes join with \" & \""`
	Resource   string `name:"resource" short:"r" default:"ugnt" help:"Anchor resource id"`
	Book       string `name:"book" short:"b" help:"Book code (defaults to the reference's book)"`
	Occurrence int    `name:"occurrence" short:"n" default:"1" help:"Occurrence ordinal of the first sub-quote"`
}

func (c *ResolveCmd) Run() error {
	rng, err := ref.Parse(c.Reference)
	if err != nil {
		return err
	}
	bookID := c.Book
	if bookID == "" {
		bookID = rng.Book
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	book, err := st.GetBook(context.Background(), c.Resource, bookID)
	if err != nil {
		return err
	}

	resolved := quote.Resolve(book.Tokens(), c.Quote, c.Occurrence, rng)
	logging.QuoteResolved(c.Quote, c.Reference, resolved.Success, len(resolved.TotalTokens))
	if !resolved.Success {
		fmt.Fprintf(os.Stderr, "resolution failed: %v\n", resolved.Err)
	}
	return printJSON(resolved)
}

// ProjectCmd projects anchor tokens onto a target resource, either from
// explicit anchor token ids or by resolving a quote first.
type ProjectCmd struct {
	Resource       string `name:"resource" short:"r" required:"" help:"Target resource id"`
	Book           string `name:"book" short:"b" required:"" help:"Book code"`
	IDs            []int  `name:"ids" xor:"source" help:"Anchor token ids to project"`
	Quote          string `name:"quote" xor:"source" help:"Quote expression to resolve first"`
	Reference      string `name:"reference" help:"Verse reference for --quote"`
	Occurrence     int    `name:"occurrence" short:"n" default:"1" help:"Occurrence ordinal for --quote"`
	AnchorResource string `name:"anchor-resource" default:"ugnt" help:"Anchor resource id for --quote"`
}

func (c *ProjectCmd) Run() error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	ctx := context.Background()

	ids := c.IDs
	if c.Quote != "" {
		if c.Reference == "" {
			return fmt.Errorf("--quote requires --reference")
		}
		rng, err := ref.Parse(c.Reference)
		if err != nil {
			return err
		}
		anchor, err := st.GetBook(ctx, c.AnchorResource, c.Book)
		if err != nil {
			return err
		}
		resolved := quote.Resolve(anchor.Tokens(), c.Quote, c.Occurrence, rng)
		if !resolved.Success {
			return fmt.Errorf("quote resolution failed: %v", resolved.Err)
		}
		for _, t := range resolved.TotalTokens {
			ids = append(ids, t.ID)
		}
	}
	if len(ids) == 0 {
		return fmt.Errorf("nothing to project: pass --ids or --quote")
	}

	target, err := st.GetBook(ctx, c.Resource, c.Book)
	if err != nil {
		return err
	}
	return printJSON(align.Project(ids, target.Tokens()))
}

// BooksCmd lists the books stored for a resource.
type BooksCmd struct {
	Resource string `arg:"" help:"Resource id"`
}

func (c *BooksCmd) Run() error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	books, err := st.ListBooks(context.Background(), c.Resource)
	if err != nil {
		return err
	}
	for _, b := range books {
		fmt.Println(b)
	}
	return nil
}

// ServeCmd starts the HTTP API and WebSocket hub.
type ServeCmd struct {
	Addr string `name:"addr" default:":8721" help:"Listen address"`
}

func (c *ServeCmd) Run() error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	srv := api.NewServer(api.NewProvider(st))
	return srv.ListenAndServe(c.Addr)
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("cedar %s (sqlite driver: %s)\n", version, store.DriverType())
	return nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("cedar"),
		kong.Description("CedarAlign - scripture translation-alignment toolkit"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	level := logging.LevelInfo
	if CLI.Verbose {
		level = logging.LevelDebug
	}
	format := logging.FormatText
	if CLI.LogFormat == "json" {
		format = logging.FormatJSON
	}
	logging.InitLogger(level, format)

	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
