package ingestion

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// InferredMetadata holds the document format and a human-readable title
// inferred from a source path or URL.
type InferredMetadata struct {
	// Format is the document kind (pdf, text, markdown, html).
	Format string
	// Title is the file or page name with separators turned into spaces,
	// e.g. "monopoly" for data/monopoly.pdf.
	Title string
}

// formatByExt maps lowercase file extensions to a document format.
var formatByExt = map[string]string{
	".pdf":  "pdf",
	".txt":  "text",
	".md":   "markdown",
	".html": "html",
	".htm":  "html",
}

// InferMetadata inspects a source path or http(s) URL and returns best-effort
// metadata. Unknown extensions default to "text"; URLs without an extension
// default to "html".
func InferMetadata(source string) InferredMetadata {
	name := source
	isURL := false
	if parsed, err := url.Parse(source); err == nil && (parsed.Scheme == "http" || parsed.Scheme == "https") {
		isURL = true
		segments := trimSegments(parsed.Path)
		if len(segments) > 0 {
			name = segments[len(segments)-1]
		} else {
			name = parsed.Hostname()
		}
	} else {
		name = filepath.Base(source)
	}

	ext := strings.ToLower(path.Ext(name))
	m := InferredMetadata{Format: formatByExt[ext]}
	if m.Format == "" {
		if isURL {
			m.Format = "html"
		} else {
			m.Format = "text"
		}
	}
	if _, known := formatByExt[ext]; known {
		name = name[:len(name)-len(ext)]
	}
	m.Title = strings.Join(strings.FieldsFunc(name, func(r rune) bool {
		return r == '-' || r == '_'
	}), " ")
	return m
}

// trimSegments splits a URL path into non-empty segments.
func trimSegments(p string) []string {
	parts := strings.Split(p, "/")
	out := make([]string, 0, len(parts))
	for _, s := range parts {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
