// Package frontmatter reads content files from a directory tree and decodes
// their YAML frontmatter. Markdown-like files carry a leading "---" block;
// YAML and JSON files are decoded whole.
package frontmatter

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"contentgraph/backend/internal/constants"
	apperrors "contentgraph/backend/pkg/errors"
	"contentgraph/backend/pkg/logger"
)

// Document is one parsed content file
type Document struct {
	// Path is the file path as walked (root joined with the relative path).
	Path string

	// Collection is the first directory segment below the walk root.
	Collection string

	// Slug is the path below the collection directory without extension.
	// "guides/index.md" has slug "guides".
	Slug string

	Data map[string]any
	Body string
}

// ID returns the frontmatter id when present, otherwise the slug
func (d Document) ID() string {
	if id, ok := d.Data["id"].(string); ok && id != "" {
		return id
	}
	if slug, ok := d.Data["slug"].(string); ok && slug != "" {
		return slug
	}
	return d.Slug
}

var delimiter = []byte("---")

// Parse decodes the frontmatter of a single file. The extension of path
// selects whole-file decoding for .yaml, .yml and .json.
func Parse(path string, raw []byte) (map[string]any, string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		data, err := decode(raw)
		return data, "", err
	}

	raw = bytes.TrimPrefix(raw, []byte("\uFEFF"))
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if !bytes.HasPrefix(trimmed, delimiter) {
		return map[string]any{}, string(raw), nil
	}

	rest := trimmed[len(delimiter):]
	nl := bytes.IndexByte(rest, '\n')
	if nl < 0 {
		return nil, "", fmt.Errorf("unterminated frontmatter")
	}
	if len(bytes.TrimSpace(rest[:nl])) != 0 {
		// "----" or "--- text" is a horizontal rule, not a frontmatter fence.
		return map[string]any{}, string(raw), nil
	}
	rest = rest[nl+1:]

	pos := 0
	for _, line := range bytes.SplitAfter(rest, []byte("\n")) {
		if bytes.Equal(bytes.TrimRight(line, " \t\r\n"), delimiter) {
			data, err := decode(rest[:pos])
			if err != nil {
				return nil, "", err
			}
			body := bytes.TrimLeft(rest[pos+len(line):], "\r\n")
			return data, string(body), nil
		}
		pos += len(line)
	}
	return nil, "", fmt.Errorf("unterminated frontmatter")
}

func decode(raw []byte) (map[string]any, error) {
	var data map[string]any
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	if data == nil {
		data = map[string]any{}
	}
	return data, nil
}

// Walk reads every content file below root. Files that cannot be read or
// parsed are logged and skipped. A missing root yields no documents.
func Walk(root string, log *zap.Logger) ([]Document, error) {
	return walk(root, root, log)
}

// WalkCollection reads the content files of one collection directory below root
func WalkCollection(root, collection string, log *zap.Logger) ([]Document, error) {
	return walk(root, filepath.Join(root, collection), log)
}

// Collections lists the collection directories directly below root
func Collections(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list content root: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() && !hidden(e.Name()) {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")
}

func walk(root, start string, log *zap.Logger) ([]Document, error) {
	log = logger.OrDefault(log)

	if _, err := os.Stat(start); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to stat content root: %w", err)
	}

	var docs []Document
	err := filepath.WalkDir(start, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warn("Skipping unreadable path", zap.String("path", path), zap.Error(err))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if path != start && hidden(name) {
				return fs.SkipDir
			}
			return nil
		}
		if hidden(name) {
			return nil
		}
		if !slices.Contains(constants.ContentExtensions, strings.ToLower(filepath.Ext(name))) {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		collection, slug := split(rel)
		if collection == "" {
			return nil
		}

		doc, err := ReadFile(path)
		if err != nil {
			log.Warn("Skipping malformed content file", zap.Error(apperrors.NewMalformedFrontmatter(path, err)))
			return nil
		}
		doc.Collection = collection
		doc.Slug = slug
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", start, err)
	}
	return docs, nil
}

// ReadFile parses one file without collection/slug information
func ReadFile(path string) (Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}
	data, body, err := Parse(path, raw)
	if err != nil {
		return Document{}, err
	}
	return Document{Path: path, Data: data, Body: body}, nil
}

// split turns "blog/2024/post.md" into ("blog", "2024/post")
func split(rel string) (string, string) {
	rel = filepath.ToSlash(rel)
	collection, rest, ok := strings.Cut(rel, "/")
	if !ok {
		return "", ""
	}
	rest = strings.TrimSuffix(rest, filepath.Ext(rest))
	if rest == "index" {
		return collection, "index"
	}
	rest = strings.TrimSuffix(rest, "/index")
	return collection, rest
}
