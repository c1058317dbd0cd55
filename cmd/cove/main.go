package main

import (
	"flag"
	"fmt"
	"os"

	"cove/internal/client"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "cove server base URL")
	uploader := flag.String("uploader", "", "uploader label attached to the drops")
	flag.Parse()

	parsed, err := client.ParseArgs(flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	c := client.New(*server, *uploader)

	failed := 0
	for _, p := range parsed {
		name, err := c.Push(p)
		if err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", p.FullPath, err)
			failed++
			continue
		}
		fmt.Printf("✓ %s dropped (available for 1 hour)\n", name)
	}

	if failed > 0 {
		os.Exit(1)
	}
}
