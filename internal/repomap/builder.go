package repomap

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/ringo380/agentik/internal/repomap/parser"
)

// defaultIgnorePatterns are always skipped during a full walk, regardless
// of .gitignore contents — they're never source of interest and walking
// into them (especially .git) is expensive.
var defaultIgnorePatterns = []string{
	".git", ".git/**",
	"node_modules", "node_modules/**",
	".agentik", ".agentik/**",
	"vendor", "vendor/**",
	"target", "target/**",
	"dist", "dist/**",
	"build", "build/**",
}

// Builder owns the parser bundle and drives full rebuilds and incremental
// refreshes of a RepoMap, persisting through a Cache and scoring through a
// Scorer.
type Builder struct {
	root   string
	ignore []string
	cache  *Cache
	scorer *Scorer

	mu     sync.Mutex
	parser *parser.Parser
}

// NewBuilder returns a Builder rooted at root. extraIgnore is appended to
// the built-in ignore patterns plus anything found in the root's
// .gitignore.
func NewBuilder(root string, rankCfg RankConfig, extraIgnore []string) (*Builder, error) {
	p, err := parser.New()
	if err != nil {
		return nil, fmt.Errorf("repomap: init parser: %w", err)
	}
	return &Builder{
		root:   root,
		ignore: append(append([]string{}, defaultIgnorePatterns...), append(extraIgnore, readGitignore(root)...)...),
		cache:  NewCache(root),
		scorer: NewScorer(rankCfg),
		parser: p,
	}, nil
}

// Cache exposes the builder's cache, so callers can start the file watcher.
func (b *Builder) Cache() *Cache {
	return b.cache
}

// Build loads the cache; on a cache miss or version mismatch it does a full
// rebuild. On a cache hit it drains any pending watcher updates and applies
// them incrementally. Either way the returned RepoMap has current ranks.
func (b *Builder) Build(ctx context.Context) (*RepoMap, error) {
	cached, err := b.cache.Load()
	if err != nil && !errors.Is(err, ErrCacheVersionMismatch) {
		return nil, err
	}
	if err != nil || cached == nil {
		return b.rebuild(ctx)
	}
	return b.refresh(ctx, cached)
}

// rebuild walks the whole repo tree, parses every supported file, builds
// the dependency graph, and scores it.
func (b *Builder) rebuild(ctx context.Context) (*RepoMap, error) {
	m := NewRepoMap(b.root)

	err := filepath.WalkDir(b.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(b.root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		if b.isIgnored(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		lang := parser.LanguageFromExtension(strings.TrimPrefix(filepath.Ext(path), "."))
		if !lang.IsSupported() {
			return nil
		}

		info, parseErr := b.parseFile(path, rel)
		if parseErr != nil {
			return nil
		}
		m.AddFile(info)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("repomap: walk repo: %w", err)
	}

	b.score(m)
	if err := b.cache.Save(m); err != nil {
		return nil, err
	}
	return m, nil
}

// refresh drains pending watcher updates against a previously cached map:
// deleted files are dropped, modified files are re-parsed, then the graph
// and ranks are rebuilt from scratch (cheap relative to a full walk+parse).
func (b *Builder) refresh(ctx context.Context, m *RepoMap) (*RepoMap, error) {
	pending := b.cache.PendingUpdates()
	if !pending.HasUpdates() {
		return m, nil
	}

	for p := range pending.Deleted {
		m.RemoveFile(p)
	}
	for p := range pending.Modified {
		full := filepath.Join(b.root, filepath.FromSlash(p))
		info, err := b.parseFile(full, p)
		if err != nil {
			m.RemoveFile(p)
			continue
		}
		m.AddFile(info)
	}

	b.score(m)
	if err := b.cache.Save(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (b *Builder) score(m *RepoMap) {
	graph := BuildGraph(m)
	scores := b.scorer.Compute(graph)
	m.Ranks = scores
}

func (b *Builder) parseFile(fullPath, relPath string) (FileInfo, error) {
	content, err := os.ReadFile(fullPath)
	if err != nil {
		return FileInfo{}, err
	}
	stat, err := os.Stat(fullPath)
	if err != nil {
		return FileInfo{}, err
	}

	b.mu.Lock()
	parsed, err := b.parser.ParseFile(relPath, content)
	b.mu.Unlock()
	if err != nil {
		return FileInfo{}, err
	}

	info := toFileInfo(parsed)
	info.ModTime = stat.ModTime()
	info.Size = stat.Size()
	return info, nil
}

func (b *Builder) isIgnored(rel string, isDir bool) bool {
	candidates := []string{rel}
	if isDir {
		candidates = append(candidates, rel+"/")
	}
	for _, pattern := range b.ignore {
		for _, c := range candidates {
			if ok, _ := doublestar.Match(pattern, c); ok {
				return true
			}
		}
	}
	return false
}

// readGitignore returns the non-comment, non-blank patterns in
// <root>/.gitignore, or nil if there isn't one.
func readGitignore(root string) []string {
	f, err := os.Open(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, strings.TrimPrefix(line, "/"))
	}
	return patterns
}

// toFileInfo converts the parser package's language-agnostic result into
// this package's FileInfo (everything but ModTime/Size, which the caller
// who has filesystem access fills in).
func toFileInfo(f parser.FileInfo) FileInfo {
	symbols := make([]Symbol, len(f.Symbols))
	for i, s := range f.Symbols {
		symbols[i] = Symbol{
			Name:      s.Name,
			Kind:      SymbolKind(s.Kind),
			Signature: s.Signature,
			Line:      s.Line,
			Parent:    s.Parent,
		}
	}
	imports := make([]Import, len(f.Imports))
	for i, imp := range f.Imports {
		imports[i] = Import{RawPath: imp.RawPath, Items: imp.Items, Line: imp.Line}
	}
	return FileInfo{
		Path:     f.Path,
		Language: Language(f.Language),
		Symbols:  symbols,
		Imports:  imports,
		ModTime:  time.Time{},
	}
}
