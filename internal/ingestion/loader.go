package ingestion

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Page is the text of one page of a source document. Plain-text and
// markdown files and fetched URLs are a single page 0.
type Page struct {
	// Source is the file path or URL the page came from.
	Source string
	// Number is the zero-based page index within Source.
	Number int
	// Text is the extracted plain text.
	Text string
}

// supportedExt lists the file extensions LoadDirectory reads.
var supportedExt = map[string]bool{
	".pdf": true,
	".txt": true,
	".md":  true,
}

// LoadDirectory walks dir and extracts pages from every supported file.
// Files are visited in lexical order so chunk ids are stable across runs.
// Pages with no extractable text are skipped.
func LoadDirectory(dir string) ([]Page, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("ingestion: data directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("ingestion: %s is not a directory", dir)
	}

	var files []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if supportedExt[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ingestion: walk %s: %w", dir, err)
	}
	sort.Strings(files)

	var pages []Page
	for _, path := range files {
		filePages, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		pages = append(pages, filePages...)
	}
	return pages, nil
}

// LoadFile extracts the pages of a single file.
func LoadFile(path string) ([]Page, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return loadPDF(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ingestion: read %s: %w", path, err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, nil
	}
	return []Page{{Source: path, Number: 0, Text: text}}, nil
}

// loadPDF extracts plain text page by page.
func loadPDF(path string) ([]Page, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ingestion: open pdf %s: %w", path, err)
	}
	defer f.Close()

	var pages []Page
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("ingestion: extract page %d of %s: %w", i, path, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		pages = append(pages, Page{Source: path, Number: i - 1, Text: text})
	}
	return pages, nil
}

// fetchURL retrieves the raw text content of a URL as a single page.
func fetchURL(ctx context.Context, client *http.Client, userAgent, url string) (Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Page{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/plain, text/markdown, text/html")

	resp, err := client.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Page{}, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Page{}, fmt.Errorf("reading body: %w", err)
	}

	return Page{Source: url, Number: 0, Text: strings.TrimSpace(string(body))}, nil
}
