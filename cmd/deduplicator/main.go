// deduplicator audits a store tree for trading dates written more than once.
// Usage: go run ./cmd/deduplicator --config configs/twstock.yaml
//
// Exits 1 when any duplicate or unreadable store is found.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rickgao/twstock-daily/internal/config"
	"github.com/rickgao/twstock-daily/internal/sink"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults apply when empty)")
	root := flag.String("root", "", "store root to audit (overrides storage.root)")
	flag.Parse()

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *root == "" {
		*root = cfg.Storage.Root
	}

	report, err := sink.Audit(*root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "audit %s: %v\n", *root, err)
		os.Exit(1)
	}

	for _, d := range report.Duplicates {
		fmt.Printf("%s\t%s\t%d\n", d.Path, d.Date, d.Count)
	}
	for path, err := range report.Unreadable {
		fmt.Fprintf(os.Stderr, "unreadable %s: %v\n", path, err)
	}
	fmt.Fprintf(os.Stderr, "stores=%d rows=%d duplicates=%d unreadable=%d\n",
		report.Stores, report.Rows, len(report.Duplicates), len(report.Unreadable))

	if len(report.Duplicates) > 0 || len(report.Unreadable) > 0 {
		os.Exit(1)
	}
}
