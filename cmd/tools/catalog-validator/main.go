// cmd/tools/catalog-validator/main.go
//
// Validates the query catalog and every static fallback file against the
// result schema its catalog entry declares. Run before shipping new demo
// data; a fallback file that doesn't match its producer's shape will
// otherwise surface as a confusing runtime decode failure.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"fleet-insights/pkg/catalog"
)

func main() {
	catalogPath := flag.String("catalog", "configs/catalog.json", "Path to catalog file")
	fallbackDir := flag.String("fallback-dir", "fallback", "Path to static fallback directory")
	strict := flag.Bool("strict", false, "Fail when a catalog entry has no fallback file")
	flag.Parse()

	cat, err := catalog.Load(*catalogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "catalog invalid: %v\n", err)
		os.Exit(1)
	}

	failures := 0
	for _, key := range cat.Keys() {
		entry, _ := cat.Lookup(key)

		path := filepath.Join(*fallbackDir, key+".json")
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				if *strict {
					fmt.Printf("FAIL %s: no fallback file at %s\n", key, path)
					failures++
				} else {
					fmt.Printf("SKIP %s: no fallback file\n", key)
				}
				continue
			}
			fmt.Printf("FAIL %s: %v\n", key, err)
			failures++
			continue
		}

		if err := entry.ValidateResult(data); err != nil {
			fmt.Printf("FAIL %s: %v\n", key, err)
			failures++
			continue
		}
		fmt.Printf("OK   %s\n", key)
	}

	if failures > 0 {
		fmt.Printf("\n%d fallback file(s) failed validation\n", failures)
		os.Exit(1)
	}
	fmt.Println("\ncatalog and fallback files are consistent")
}
