// Package repomap builds a ranked map of a repository's source files: a
// tree-sitter-backed parser extracts symbols and imports per file, a
// dependency graph resolves imports to sibling files, and a PageRank pass
// scores files by how central they are to that graph. The result is
// serialized into a compact, token-budgeted form for prompt injection.
package repomap

import (
	"sort"
	"time"
)

// Language is a tree-sitter grammar this package knows how to parse.
type Language int

const (
	LanguageUnknown Language = iota
	LanguageRust
	LanguageTypeScript
	LanguageJavaScript
	LanguagePython
	LanguageGo
	LanguageJava
)

// LanguageFromExtension detects a Language from a file extension (without
// the leading dot). Matching is case-sensitive: "RS" is not recognized.
func LanguageFromExtension(ext string) Language {
	switch ext {
	case "rs":
		return LanguageRust
	case "ts", "tsx":
		return LanguageTypeScript
	case "js", "jsx", "mjs", "cjs":
		return LanguageJavaScript
	case "py", "pyi":
		return LanguagePython
	case "go":
		return LanguageGo
	case "java":
		return LanguageJava
	default:
		return LanguageUnknown
	}
}

// IsSupported reports whether files of this language can be parsed.
func (l Language) IsSupported() bool {
	return l != LanguageUnknown
}

func (l Language) String() string {
	switch l {
	case LanguageRust:
		return "rust"
	case LanguageTypeScript:
		return "typescript"
	case LanguageJavaScript:
		return "javascript"
	case LanguagePython:
		return "python"
	case LanguageGo:
		return "go"
	case LanguageJava:
		return "java"
	default:
		return "unknown"
	}
}

// SymbolKind classifies a Symbol extracted from source.
type SymbolKind int

const (
	SymbolFunction SymbolKind = iota
	SymbolStruct
	SymbolEnum
	SymbolTrait
	SymbolTypeAlias
	SymbolConstant
	SymbolModule
)

// Prefix returns the short rendering prefix used by the serializer
// ("fn", "struct", "enum", "trait", "type", "const", "mod").
func (k SymbolKind) Prefix() string {
	switch k {
	case SymbolFunction:
		return "fn"
	case SymbolStruct:
		return "struct"
	case SymbolEnum:
		return "enum"
	case SymbolTrait:
		return "trait"
	case SymbolTypeAlias:
		return "type"
	case SymbolConstant:
		return "const"
	case SymbolModule:
		return "mod"
	default:
		return "?"
	}
}

// Symbol is a named declaration extracted from a source file.
type Symbol struct {
	Name      string
	Kind      SymbolKind
	Signature string // empty when the declaration yields no usable signature slice
	Line      int    // 1-indexed
	Parent    string // enclosing type/trait name, empty at top level
}

// Import is a single import/use declaration found in a source file.
type Import struct {
	RawPath      string
	ResolvedPath string // repo-relative; empty until the dependency graph resolves it
	Items        []string
	Line         int
}

// FileInfo holds everything extracted from one source file.
type FileInfo struct {
	Path     string // repo-relative, forward-slash separated
	Language Language
	Symbols  []Symbol
	Imports  []Import
	ModTime  time.Time
	Size     int64
}

// Functions returns the file's function/method symbols, in declaration order.
func (f *FileInfo) Functions() []Symbol {
	var out []Symbol
	for _, s := range f.Symbols {
		if s.Kind == SymbolFunction {
			out = append(out, s)
		}
	}
	return out
}

// Types returns the file's struct/enum/trait symbols, in declaration order.
func (f *FileInfo) Types() []Symbol {
	var out []Symbol
	for _, s := range f.Symbols {
		switch s.Kind {
		case SymbolStruct, SymbolEnum, SymbolTrait:
			out = append(out, s)
		}
	}
	return out
}

// CacheVersion is bumped whenever the on-disk RepoMap JSON shape changes in
// a way that makes older caches unreadable.
const CacheVersion = 1

// RepoMap is the complete parsed-and-scored view of a repository.
type RepoMap struct {
	Root    string              `json:"root"`
	Files   map[string]FileInfo `json:"files"` // key: repo-relative path
	Ranks   map[string]float64  `json:"ranks"` // key: repo-relative path
	Version int                 `json:"version"`
}

// NewRepoMap returns an empty RepoMap rooted at root.
func NewRepoMap(root string) *RepoMap {
	return &RepoMap{
		Root:    root,
		Files:   make(map[string]FileInfo),
		Ranks:   make(map[string]float64),
		Version: CacheVersion,
	}
}

// AddFile inserts or replaces a file's entry.
func (m *RepoMap) AddFile(info FileInfo) {
	m.Files[info.Path] = info
}

// RemoveFile drops a file and its rank.
func (m *RepoMap) RemoveFile(path string) {
	delete(m.Files, path)
	delete(m.Ranks, path)
}

// GetFile looks up a file by repo-relative path.
func (m *RepoMap) GetFile(path string) (FileInfo, bool) {
	f, ok := m.Files[path]
	return f, ok
}

// GetRank returns a file's PageRank score, or 0 if unscored.
func (m *RepoMap) GetRank(path string) float64 {
	return m.Ranks[path]
}

// FileCount returns the number of tracked files.
func (m *RepoMap) FileCount() int {
	return len(m.Files)
}

// SymbolCount returns the total symbol count across all files.
func (m *RepoMap) SymbolCount() int {
	n := 0
	for _, f := range m.Files {
		n += len(f.Symbols)
	}
	return n
}

// IsCompatible reports whether the map's version matches CacheVersion.
func (m *RepoMap) IsCompatible() bool {
	return m.Version == CacheVersion
}

// FilesByRank returns every file sorted by descending PageRank score, ties
// broken by path for deterministic output.
func (m *RepoMap) FilesByRank() []FileInfo {
	files := make([]FileInfo, 0, len(m.Files))
	for _, f := range m.Files {
		files = append(files, f)
	}
	ranks := m.Ranks
	sort.Slice(files, func(i, j int) bool {
		ri, rj := ranks[files[i].Path], ranks[files[j].Path]
		if ri != rj {
			return ri > rj
		}
		return files[i].Path < files[j].Path
	})
	return files
}
