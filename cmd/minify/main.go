// Command minify writes minified copies of the browser client into dist/.
//
//	go run ./cmd/minify                      # static/ -> dist/static/
//	go run ./cmd/minify -input=a.css -output=b.css -type=css
package main

import (
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
)

var mediaTypes = map[string]string{
	".css":  "text/css",
	".html": "text/html",
	".js":   "application/javascript",
}

func main() {
	var (
		srcDir     = flag.String("src", "static", "Source asset directory")
		dstDir     = flag.String("dst", filepath.Join("dist", "static"), "Destination directory")
		inputFile  = flag.String("input", "", "Minify a single input file")
		outputFile = flag.String("output", "", "Output path for -input")
		fileType   = flag.String("type", "", "File type for -input (css, js or html)")
	)
	flag.Parse()

	m := newMinifier()

	if *inputFile != "" {
		if *outputFile == "" || *fileType == "" {
			log.Fatal("Usage: go run ./cmd/minify -input=<file> -output=<file> -type=<css|js|html>")
		}
		mediaType, ok := mediaTypes["."+strings.ToLower(*fileType)]
		if !ok {
			log.Fatalf("Unsupported file type: %s (supported: css, js, html)", *fileType)
		}
		if _, err := minifyFile(m, *inputFile, *outputFile, mediaType); err != nil {
			log.Fatalf("Failed to minify %s: %v", *inputFile, err)
		}
		fmt.Printf("Successfully minified %s -> %s\n", *inputFile, *outputFile)
		return
	}

	stats, err := minifyDir(m, *srcDir, *dstDir)
	if err != nil {
		log.Fatalf("Failed to minify %s: %v", *srcDir, err)
	}
	for _, s := range stats {
		fmt.Printf("%s: %d bytes -> %d bytes (%.1f%% reduction)\n", s.Path, s.Before, s.After, s.Reduction())
	}
	fmt.Printf("Minified files are in %s\n", *dstDir)
}

func newMinifier() *minify.M {
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("text/html", html.Minify)
	m.AddFunc("application/javascript", js.Minify)
	return m
}

type fileStat struct {
	Path   string
	Before int
	After  int
}

func (s fileStat) Reduction() float64 {
	if s.Before == 0 {
		return 0
	}
	return float64(s.Before-s.After) / float64(s.Before) * 100
}

// minifyDir mirrors src into dst, minifying known asset types and copying
// everything else unchanged.
func minifyDir(m *minify.M, src, dst string) ([]fileStat, error) {
	var stats []fileStat
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		out := filepath.Join(dst, rel)

		mediaType, ok := mediaTypes[strings.ToLower(filepath.Ext(path))]
		if !ok {
			return copyFile(path, out)
		}
		stat, err := minifyFile(m, path, out, mediaType)
		if err != nil {
			return err
		}
		stats = append(stats, stat)
		return nil
	})
	return stats, err
}

func minifyFile(m *minify.M, srcPath, dstPath, mediaType string) (fileStat, error) {
	src, err := os.ReadFile(srcPath)
	if err != nil {
		return fileStat{}, err
	}

	minified, err := m.Bytes(mediaType, src)
	if err != nil {
		return fileStat{}, fmt.Errorf("minify %s: %w", srcPath, err)
	}

	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return fileStat{}, err
	}
	if err := os.WriteFile(dstPath, minified, 0644); err != nil {
		return fileStat{}, err
	}
	return fileStat{Path: srcPath, Before: len(src), After: len(minified)}, nil
}

func copyFile(srcPath, dstPath string) error {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return err
	}
	return os.WriteFile(dstPath, data, 0644)
}
