// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CertLedger Contributors

// Command gen-schema writes the JSON Schemas of the HTTP API request bodies.
package main

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/certledger/certledger/internal/httpapi"
)

func main() {
	outDir := "schemas"
	if len(os.Args) > 1 {
		outDir = os.Args[1]
	}

	schemas, err := httpapi.GenerateSchemas()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating schemas: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(outDir, 0o750); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating directory: %v\n", err)
		os.Exit(1)
	}

	for _, name := range slices.Sorted(maps.Keys(schemas)) {
		outPath := filepath.Join(outDir, name)
		if err := os.WriteFile(outPath, schemas[name], 0o600); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Generated %s\n", outPath)
	}
}
