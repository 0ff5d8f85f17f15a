package parser

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Parser is a stateful bundle of tree-sitter parsers, one per supported
// grammar. It is not safe for concurrent use — callers that share a Parser
// across goroutines must serialize access (repomap.Builder does this with
// a mutex).
type Parser struct {
	rust       *sitter.Parser
	typescript *sitter.Parser
	javascript *sitter.Parser
	python     *sitter.Parser
	golang     *sitter.Parser
	java       *sitter.Parser
}

// New builds a Parser with every supported grammar loaded.
func New() (*Parser, error) {
	return &Parser{
		rust:       newSitterParser(rust.GetLanguage()),
		typescript: newSitterParser(typescript.GetLanguage()),
		javascript: newSitterParser(javascript.GetLanguage()),
		python:     newSitterParser(python.GetLanguage()),
		golang:     newSitterParser(golang.GetLanguage()),
		java:       newSitterParser(java.GetLanguage()),
	}, nil
}

func newSitterParser(lang *sitter.Language) *sitter.Parser {
	p := sitter.NewParser()
	p.SetLanguage(lang)
	return p
}

// ParseFile detects path's language by extension and extracts its symbols
// and imports. Unsupported extensions return *ErrUnsupportedLanguage.
func (p *Parser) ParseFile(path string, content []byte) (FileInfo, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	lang := LanguageFromExtension(ext)
	if !lang.IsSupported() {
		return FileInfo{}, &ErrUnsupportedLanguage{Path: path}
	}

	info := FileInfo{Path: filepath.ToSlash(path), Language: lang}

	var symbols []Symbol
	var imports []Import
	var err error

	switch lang {
	case LanguageRust:
		symbols, imports, err = p.parseRust(content)
	case LanguageTypeScript, LanguageJavaScript:
		symbols, imports, err = p.parseTSOrJS(content, lang)
	case LanguagePython:
		symbols, imports, err = p.parsePython(content)
	case LanguageGo:
		symbols, imports, err = p.parseGo(content)
	case LanguageJava:
		symbols, imports, err = p.parseJava(content)
	}
	if err != nil {
		return FileInfo{}, fmt.Errorf("parser: parse %s: %w", path, err)
	}

	info.Symbols = symbols
	info.Imports = imports
	return info, nil
}

// parseTree parses content with the given sitter.Parser and returns its
// root node. A background context is used: tree-sitter parsing of a single
// file is fast enough that cancellation isn't worth plumbing through yet.
func parseTree(p *sitter.Parser, content []byte) (*sitter.Node, error) {
	tree, err := p.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, err
	}
	return tree.RootNode(), nil
}

// lineOf returns the 1-indexed source line a node starts on.
func lineOf(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

// signatureUpTo returns the raw source slice from n's start byte to the
// start byte of body (or, if body is nil, n's own end byte), trimmed of
// trailing whitespace and the given cut characters. Blank signatures
// collapse to "".
func signatureUpTo(n, body *sitter.Node, content []byte, trimSuffixes ...string) string {
	end := n.EndByte()
	if body != nil {
		end = body.StartByte()
	}
	start := n.StartByte()
	if end < start || end > uint32(len(content)) {
		return ""
	}
	sig := string(content[start:end])
	sig = strings.TrimRight(sig, " \t\r\n")
	for _, suffix := range trimSuffixes {
		sig = strings.TrimSuffix(sig, suffix)
	}
	sig = strings.TrimRight(sig, " \t\r\n")
	return sig
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '`' && s[len(s)-1] == '`') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
