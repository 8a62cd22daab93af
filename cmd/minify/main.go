package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/woozymasta/sprinkler/assets"
)

// outFile receives the bundled page for static hosting or inspection.
// The server builds the same bundle itself at startup.
const outFile = "dist/index.html"

func main() {
	page, err := assets.Build()
	if err != nil {
		log.Fatal("error build page:", err)
	}

	if err := os.MkdirAll(filepath.Dir(outFile), 0755); err != nil {
		log.Fatal(err)
	}

	err = os.WriteFile(outFile, page, 0644)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("minify done")
}
