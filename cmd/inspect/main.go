// inspect dumps the raw contents of a session store for debugging.
package main

import (
	"flag"
	"fmt"
	"os"

	"heartlink/pkg/logger"
	"heartlink/pkg/session"
)

func main() {
	var path, prefix string
	flag.StringVar(&path, "path", "", "session store path")
	flag.StringVar(&prefix, "prefix", "", "key prefix filter (e.g. profile:)")
	flag.Parse()
	if path == "" {
		fmt.Fprintln(os.Stderr, "--path required")
		os.Exit(2)
	}
	logger.Init()

	if err := session.Open(path); err != nil {
		fmt.Fprintf(os.Stderr, "open failed: %v\n", err)
		os.Exit(1)
	}
	defer session.Close()

	entries, err := session.List(prefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list failed: %v\n", err)
		os.Exit(1)
	}
	for _, e := range entries {
		fmt.Printf("%s\t%s\n", e.Key, e.Value)
	}
	fmt.Fprintf(os.Stderr, "%d entries\n", len(entries))
}
