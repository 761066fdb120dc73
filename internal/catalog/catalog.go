// Package catalog maintains a browsable, searchable inventory of the
// chapter documents in the content directory.
package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"go.uber.org/zap"

	"github.com/chalkboard-ai/manabi/internal/curriculum"
)

// DocumentInfo describes one chapter document.
type DocumentInfo struct {
	// Filename is the path relative to the content directory, with
	// forward slashes on every platform.
	Filename    string   `json:"filename"`
	DisplayName string   `json:"display_name"`
	Chapter     string   `json:"chapter,omitempty"`
	Topics      []string `json:"topics"`
	TopicCount  int      `json:"topic_count"`
}

// indexEntry is the searchable projection of a document.
type indexEntry struct {
	DisplayName string   `json:"display_name"`
	Chapter     string   `json:"chapter"`
	Topics      []string `json:"topics"`
	Filename    string   `json:"filename"`
}

// Catalog tracks the content directory and serves listing and keyword
// search over it. All methods are safe for concurrent use.
type Catalog struct {
	contentDir string
	chapters   map[string]string // relative file path -> chapter name
	logger     *zap.Logger

	mu    sync.RWMutex
	docs  map[string]*DocumentInfo
	index bleve.Index
}

// CatalogOption customizes a Catalog.
type CatalogOption func(*Catalog)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) CatalogOption {
	return func(c *Catalog) {
		c.logger = logger
	}
}

// New creates an empty catalog over contentDir backed by an in-memory
// keyword index. chapters maps relative document paths to their routed
// chapter names and may be nil. Call Scan to populate the catalog.
func New(contentDir string, chapters map[string]string, opts ...CatalogOption) (*Catalog, error) {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	textField := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so a query
	// like "fraction" matches the stored word exactly.
	textField.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("display_name", textField)
	docMapping.AddFieldMappingsAt("chapter", textField)
	docMapping.AddFieldMappingsAt("topics", textField)
	keywordField := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("filename", keywordField)
	im.DefaultMapping = docMapping

	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog index: %w", err)
	}

	c := &Catalog{
		contentDir: contentDir,
		chapters:   chapters,
		logger:     zap.NewNop(),
		docs:       make(map[string]*DocumentInfo),
		index:      index,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Scan walks the content directory and rebuilds the catalog from the
// chapter documents found there. Entries for files that no longer exist
// are dropped. Unreadable documents stay listed with an error marker so
// a broken file is visible rather than silently missing.
func (c *Catalog) Scan(ctx context.Context) error {
	if _, err := os.Stat(c.contentDir); err != nil {
		return fmt.Errorf("content directory: %w", err)
	}
	var paths []string
	err := filepath.WalkDir(c.contentDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isChapterFile(p) {
			return nil
		}
		paths = append(paths, p)
		return nil
	})
	if err != nil {
		return fmt.Errorf("scanning content directory: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		id, err := c.upsertLocked(p)
		if err != nil {
			return err
		}
		seen[id] = struct{}{}
	}
	for id, doc := range c.docs {
		if _, ok := seen[id]; ok {
			continue
		}
		delete(c.docs, id)
		if err := c.index.Delete(id); err != nil {
			c.logger.Warn("failed to drop stale catalog entry",
				zap.String("file", doc.Filename), zap.Error(err))
		}
	}

	c.logger.Info("catalog scan complete", zap.Int("documents", len(c.docs)))
	return nil
}

// Refresh re-reads one document after a filesystem change, dropping it
// when the file is gone. Paths that are not chapter documents are
// ignored.
func (c *Catalog) Refresh(ctx context.Context, p string) error {
	if !isChapterFile(p) {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := os.Stat(p); err != nil {
		if os.IsNotExist(err) {
			id := docID(p)
			if doc, ok := c.docs[id]; ok {
				delete(c.docs, id)
				if err := c.index.Delete(id); err != nil {
					return err
				}
				c.logger.Debug("removed catalog entry", zap.String("file", doc.Filename))
			}
			return nil
		}
		return err
	}
	_, err := c.upsertLocked(p)
	return err
}

// Documents lists every cataloged document sorted by filename.
func (c *Catalog) Documents() []*DocumentInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	docs := make([]*DocumentInfo, 0, len(c.docs))
	for _, doc := range c.docs {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Filename < docs[j].Filename })
	return docs
}

// Len reports the number of cataloged documents.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.docs)
}

// Close releases the keyword index.
func (c *Catalog) Close() error {
	return c.index.Close()
}

func (c *Catalog) upsertLocked(p string) (string, error) {
	rel, err := filepath.Rel(c.contentDir, p)
	if err != nil {
		rel = filepath.Base(p)
	}
	rel = filepath.ToSlash(rel)
	id := docID(p)

	info := &DocumentInfo{Filename: rel, DisplayName: displayName(rel)}
	if chapter, ok := c.chapters[rel]; ok {
		info.Chapter = chapter
	}

	topics, err := curriculum.LoadDocument(p)
	if err != nil {
		c.logger.Warn("unreadable chapter document", zap.String("file", rel), zap.Error(err))
		info.Topics = []string{"Error reading file"}
	} else {
		names := make([]string, 0, len(topics))
		for _, t := range topics {
			names = append(names, t.TopicName)
		}
		info.Topics = names
		info.TopicCount = len(names)
		if len(names) > 0 {
			info.DisplayName = names[0]
		}
	}

	c.docs[id] = info
	entry := indexEntry{
		DisplayName: info.DisplayName,
		Chapter:     info.Chapter,
		Topics:      info.Topics,
		Filename:    info.Filename,
	}
	if err := c.index.Index(id, entry); err != nil {
		return id, fmt.Errorf("indexing %s: %w", rel, err)
	}
	return id, nil
}

// isChapterFile reports whether a path names a chapter document. Mapping
// files live alongside chapters and are excluded.
func isChapterFile(p string) bool {
	base := filepath.Base(p)
	if !strings.HasSuffix(base, ".json") {
		return false
	}
	return !strings.HasPrefix(base, "chapter_mapping")
}

// docID derives a stable catalog ID from a document path.
func docID(p string) string {
	hash := sha256.Sum256([]byte(filepath.Clean(p)))
	return "doc:" + hex.EncodeToString(hash[:])
}

// displayName falls back to a title-cased file stem when a document has
// no readable topics: "number_systems.json" becomes "Number Systems".
func displayName(rel string) string {
	stem := strings.TrimSuffix(path.Base(rel), ".json")
	words := strings.Fields(strings.ReplaceAll(stem, "_", " "))
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
