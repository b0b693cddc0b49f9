package main

import (
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"

	"github.com/omprakashjha/URLBookmarks/internal/codec"
	"github.com/omprakashjha/URLBookmarks/internal/repository"
)

// One-shot import of a bookmark file (JSON, CSV or HTML export) into the
// local database.
func main() {
	if len(os.Args) != 3 {
		fmt.Fprintln(os.Stderr, "usage: importer <db file> <bookmark file>")
		os.Exit(1)
	}
	dbFilename, importFilename := os.Args[1], os.Args[2]

	var store repository.Store
	if err := store.InitAndVerifyDb(dbFilename); err != nil {
		panic(err)
	}
	defer store.Close()

	file, err := os.Open(importFilename)
	if err != nil {
		panic(err)
	}
	defer file.Close()

	summary, err := codec.ImportInto(&store, file, importFilename)
	if err != nil {
		panic(err)
	}
	fmt.Printf("Imported %d of %d bookmarks from %s (%d skipped as duplicates)\n",
		summary.Imported, summary.TotalItems, summary.Source, summary.Skipped)
	for _, importError := range summary.Errors {
		fmt.Printf("  entry %d: %s\n", importError.Entry, importError.Message)
	}
}
