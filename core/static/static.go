// Package static serves configured paths from files before routing.
package static

import (
	"container/list"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Loader resolves a file alias to its bytes and content type.
// ok is false when the alias cannot be read.
type Loader interface {
	Load(alias string) (data []byte, contentType string, ok bool)
}

// Table maps request paths to file aliases. It is read-only once the
// dispatcher is built.
type Table struct {
	files map[string]string
}

// NewTable creates an empty table
func NewTable() *Table {
	return &Table{files: make(map[string]string)}
}

// Add maps path to alias, replacing an earlier mapping
func (t *Table) Add(path, alias string) {
	t.files[path] = alias
}

// Lookup returns the alias configured for path
func (t *Table) Lookup(path string) (string, bool) {
	alias, ok := t.files[path]
	return alias, ok
}

// Len returns the number of configured paths
func (t *Table) Len() int {
	return len(t.files)
}

// DirLoader reads aliases relative to a root directory and keeps the most
// recently used files in memory.
type DirLoader struct {
	root   string
	logger *zap.Logger

	mu       sync.Mutex
	cache    map[string]*cacheEntry
	lruList  *list.List
	maxFiles int
}

type cacheEntry struct {
	data        []byte
	contentType string
	element     *list.Element
}

// NewDirLoader creates a loader rooted at root caching up to maxFiles files.
// maxFiles <= 0 disables caching.
func NewDirLoader(root string, maxFiles int, logger *zap.Logger) *DirLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirLoader{
		root:     root,
		logger:   logger,
		cache:    make(map[string]*cacheEntry),
		lruList:  list.New(),
		maxFiles: maxFiles,
	}
}

// Load implements Loader
func (l *DirLoader) Load(alias string) ([]byte, string, bool) {
	l.mu.Lock()
	if entry, ok := l.cache[alias]; ok {
		l.lruList.MoveToFront(entry.element)
		l.mu.Unlock()
		return entry.data, entry.contentType, true
	}
	l.mu.Unlock()

	full, err := l.resolve(alias)
	if err != nil {
		l.logger.Warn("static alias rejected", zap.String("alias", alias), zap.Error(err))
		return nil, "", false
	}

	data, err := os.ReadFile(full)
	if err != nil {
		l.logger.Debug("static file unavailable", zap.String("alias", alias), zap.Error(err))
		return nil, "", false
	}
	contentType := ContentType(alias)

	if l.maxFiles > 0 {
		l.store(alias, data, contentType)
	}
	return data, contentType, true
}

func (l *DirLoader) store(alias string, data []byte, contentType string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.cache[alias]; ok {
		return
	}

	element := l.lruList.PushFront(alias)
	l.cache[alias] = &cacheEntry{data: data, contentType: contentType, element: element}

	// Evict oldest if over limit
	if l.lruList.Len() > l.maxFiles {
		oldest := l.lruList.Back()
		delete(l.cache, oldest.Value.(string))
		l.lruList.Remove(oldest)
	}
}

// Cached returns the number of files held in memory
func (l *DirLoader) Cached() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.cache)
}

// Purge drops all cached files
func (l *DirLoader) Purge() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = make(map[string]*cacheEntry)
	l.lruList.Init()
}

// resolve joins alias to the root and rejects paths that leave it
func (l *DirLoader) resolve(alias string) (string, error) {
	if filepath.IsAbs(alias) {
		return "", errors.Newf("absolute alias %q", alias)
	}
	full := filepath.Join(l.root, filepath.FromSlash(alias))
	rel, err := filepath.Rel(l.root, full)
	if err != nil {
		return "", errors.Wrapf(err, "resolve %q", alias)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.Newf("alias %q escapes root", alias)
	}
	return full, nil
}

// ContentType returns the MIME type for a file name by extension
func ContentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".html", ".htm":
		return "text/html; charset=utf-8"
	case ".css":
		return "text/css; charset=utf-8"
	case ".js":
		return "application/javascript; charset=utf-8"
	case ".json":
		return "application/json; charset=utf-8"
	case ".txt":
		return "text/plain; charset=utf-8"
	case ".svg":
		return "image/svg+xml"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".ico":
		return "image/x-icon"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}
