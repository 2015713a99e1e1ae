package sources

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"screenlist/pkg/browser"
)

// FileLister reads titles from a local file, one per line.
// Blank lines and lines starting with '#' are skipped.
type FileLister struct {
	path string
}

// NewFileLister creates a file lister
func NewFileLister(path string) *FileLister {
	return &FileLister{path: path}
}

// Name returns the lister name
func (l *FileLister) Name() string {
	return "file"
}

// ListPage reads the whole file as page 0
func (l *FileLister) ListPage(ctx context.Context, _ browser.Session, index int) (Page, error) {
	page := Page{Index: index, URL: l.path, NoMorePages: true}
	if index > 0 {
		return page, nil
	}

	file, err := os.Open(l.path)
	if err != nil {
		return page, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		line = strings.TrimRight(line, ", \t")
		if line == "" {
			continue
		}
		page.Entries = append(page.Entries, Entry{Title: line})
	}

	if err := scanner.Err(); err != nil {
		return page, fmt.Errorf("error reading file at line %d: %w", lineNum, err)
	}
	return page, nil
}
