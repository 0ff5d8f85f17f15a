// Package parser extracts symbols and imports from source files using
// tree-sitter grammars. It has no dependency on the rest of repomap so it
// can be tested and reasoned about in isolation; repomap.Builder converts
// its FileInfo into the package-level repomap.FileInfo it persists.
package parser

// Language mirrors repomap.Language; kept as a separate type so this
// package doesn't import repomap (which imports this package).
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
// the leading dot).
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

// IsSupported reports whether this language has a registered grammar.
func (l Language) IsSupported() bool {
	return l != LanguageUnknown
}

// SymbolKind mirrors repomap.SymbolKind.
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

// Symbol is a named declaration found in a source file.
type Symbol struct {
	Name      string
	Kind      SymbolKind
	Signature string
	Line      int // 1-indexed
	Parent    string
}

// Import is a single import/use declaration.
type Import struct {
	RawPath string
	Items   []string
	Line    int
}

// FileInfo is one file's extraction result.
type FileInfo struct {
	Path     string
	Language Language
	Symbols  []Symbol
	Imports  []Import
}

// ErrUnsupportedLanguage is returned by ParseFile when the path's extension
// doesn't map to a registered grammar.
type ErrUnsupportedLanguage struct {
	Path string
}

func (e *ErrUnsupportedLanguage) Error() string {
	return "parser: unsupported language for " + e.Path
}
