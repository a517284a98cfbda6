//go:build ignore

// concat.go собирает static/js/src/*.js в static/js/app.js.
// Usage: go run concat.go [-src dir] [-out file]

package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

func main() {
	srcDir := flag.String("src", "static/js/src", "directory with numbered JS sources")
	outFile := flag.String("out", "static/js/app.js", "output bundle")
	flag.Parse()

	files, err := filepath.Glob(filepath.Join(*srcDir, "*.js"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error finding source files: %v\n", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "No .js files found in %s\n", *srcDir)
		os.Exit(1)
	}
	sort.Strings(files) // порядок по префиксу 00-, 10-, ...

	var buf bytes.Buffer
	buf.WriteString("// Generated from src/*.js by concat.go. DO NOT EDIT.\n")
	buf.WriteString("// Run 'go generate ./ui' to rebuild.\n\n")
	buf.WriteString("(function () {\n'use strict';\n\n")

	for _, f := range files {
		content, err := os.ReadFile(f)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", f, err)
			os.Exit(1)
		}
		fmt.Fprintf(&buf, "// --- %s ---\n", filepath.Base(f))
		buf.Write(bytes.TrimRight(content, "\n"))
		buf.WriteString("\n\n")
	}
	buf.WriteString("})();\n")

	// не трогаем файл, если содержимое не изменилось
	if old, err := os.ReadFile(*outFile); err == nil && bytes.Equal(old, buf.Bytes()) {
		fmt.Printf("%s is up to date\n", *outFile)
		return
	}
	if err := os.WriteFile(*outFile, buf.Bytes(), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", *outFile, err)
		os.Exit(1)
	}
	fmt.Printf("Generated %s from %d files\n", *outFile, len(files))
}
