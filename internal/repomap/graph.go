package repomap

import (
	"path"
	"strings"
)

// Graph is a directed adjacency over repo-relative file paths. An edge
// A -> B means "A imports B". Both directions are maintained so rank
// computation and neighbor lookups don't need to invert anything.
type Graph struct {
	dependencies map[string]map[string]struct{} // file -> files it imports
	dependents   map[string]map[string]struct{} // file -> files that import it
	files        map[string]struct{}
}

// NewGraph returns an empty Graph.
func NewGraph() *Graph {
	return &Graph{
		dependencies: make(map[string]map[string]struct{}),
		dependents:   make(map[string]map[string]struct{}),
		files:        make(map[string]struct{}),
	}
}

// BuildGraph constructs a Graph from a RepoMap: every file becomes a node,
// then each import is resolved against the known file set and added as an
// edge. Unresolved imports are dropped (they remain visible on FileInfo).
func BuildGraph(m *RepoMap) *Graph {
	g := NewGraph()
	for p := range m.Files {
		g.AddFile(p)
	}
	for p, info := range m.Files {
		for _, imp := range info.Imports {
			if resolved, ok := resolveImport(m.Root, p, imp.RawPath, info.Language, g.files); ok {
				g.AddEdge(p, resolved)
			}
		}
	}
	return g
}

// AddFile registers a node with no edges if it isn't already present.
func (g *Graph) AddFile(p string) {
	g.files[p] = struct{}{}
	if g.dependencies[p] == nil {
		g.dependencies[p] = make(map[string]struct{})
	}
	if g.dependents[p] == nil {
		g.dependents[p] = make(map[string]struct{})
	}
}

// AddEdge records "from imports to". Self-loops are ignored.
func (g *Graph) AddEdge(from, to string) {
	if from == to {
		return
	}
	g.AddFile(from)
	g.AddFile(to)
	g.dependencies[from][to] = struct{}{}
	g.dependents[to][from] = struct{}{}
}

// Dependencies returns the files p imports.
func (g *Graph) Dependencies(p string) []string {
	return keys(g.dependencies[p])
}

// Dependents returns the files that import p.
func (g *Graph) Dependents(p string) []string {
	return keys(g.dependents[p])
}

// Files returns every node in the graph, in no particular order.
func (g *Graph) Files() []string {
	return keys(g.files)
}

// FileCount returns the number of nodes.
func (g *Graph) FileCount() int {
	return len(g.files)
}

// EdgeCount returns the number of directed edges.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, deps := range g.dependencies {
		n += len(deps)
	}
	return n
}

// OutDegree returns how many files p imports.
func (g *Graph) OutDegree(p string) int {
	return len(g.dependencies[p])
}

// InDegree returns how many files import p.
func (g *Graph) InDegree(p string) int {
	return len(g.dependents[p])
}

// Neighbors returns the union of p's dependencies and dependents.
func (g *Graph) Neighbors(p string) map[string]struct{} {
	out := make(map[string]struct{})
	for d := range g.dependencies[p] {
		out[d] = struct{}{}
	}
	for d := range g.dependents[p] {
		out[d] = struct{}{}
	}
	return out
}

func keys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// resolveImport dispatches to the per-language resolver. root is the
// repository root (used only to compute search bases, not string-compared
// against paths — everything in known is repo-relative).
func resolveImport(root, sourceFile, importPath string, lang Language, known map[string]struct{}) (string, bool) {
	switch lang {
	case LanguageRust:
		return resolveRustImport(sourceFile, importPath, known)
	case LanguageTypeScript, LanguageJavaScript:
		return resolveTSImport(sourceFile, importPath, known)
	case LanguagePython:
		return resolvePythonImport(sourceFile, importPath, known)
	case LanguageGo:
		return resolveGoImport(importPath, known)
	case LanguageJava:
		return resolveJavaImport(importPath, known)
	default:
		return "", false
	}
}

func hasFile(known map[string]struct{}, p string) bool {
	_, ok := known[path.Clean(p)]
	return ok
}

// resolveRustImport handles crate::, super::, and self:: paths. External
// crates and anything else are left unresolved.
func resolveRustImport(sourceFile, importPath string, known map[string]struct{}) (string, bool) {
	if !strings.HasPrefix(importPath, "crate::") &&
		!strings.HasPrefix(importPath, "super::") &&
		!strings.HasPrefix(importPath, "self::") {
		return "", false
	}

	parts := strings.Split(importPath, "::")
	sourceDir := path.Dir(sourceFile)

	var base string
	switch parts[0] {
	case "crate":
		base = path.Join(rustCrateRoot(sourceFile), "src")
	case "super":
		base = path.Dir(sourceDir)
	case "self":
		if path.Base(sourceFile) == "mod.rs" {
			base = sourceDir
		} else {
			stem := strings.TrimSuffix(path.Base(sourceFile), ".rs")
			base = path.Join(sourceDir, stem)
		}
	default:
		return "", false
	}

	for _, part := range parts[1:] {
		moduleFile := path.Join(base, part+".rs")
		moduleDir := path.Join(base, part, "mod.rs")
		if hasFile(known, moduleFile) {
			return path.Clean(moduleFile), true
		}
		if hasFile(known, moduleDir) {
			return path.Clean(moduleDir), true
		}
		base = path.Join(base, part)
	}
	return "", false
}

// rustCrateRoot walks up from sourceFile looking for the repo root; since we
// only have repo-relative paths here, crate root is simply ".".
func rustCrateRoot(string) string {
	return "."
}

var tsExtensions = []string{"ts", "tsx", "js", "jsx", "mjs"}

func resolveTSImport(sourceFile, importPath string, known map[string]struct{}) (string, bool) {
	if !strings.HasPrefix(importPath, ".") && !strings.HasPrefix(importPath, "@") {
		return "", false
	}

	var base string
	if strings.HasPrefix(importPath, "@") {
		rest := strings.TrimPrefix(importPath, "@/")
		base = path.Join("src", rest)
	} else {
		base = path.Join(path.Dir(sourceFile), importPath)
	}

	for _, ext := range tsExtensions {
		candidate := base + "." + ext
		if hasFile(known, candidate) {
			return path.Clean(candidate), true
		}
	}
	for _, ext := range tsExtensions {
		candidate := path.Join(base, "index."+ext)
		if hasFile(known, candidate) {
			return path.Clean(candidate), true
		}
	}
	return "", false
}

func resolvePythonImport(sourceFile, importPath string, known map[string]struct{}) (string, bool) {
	sourceDir := path.Dir(sourceFile)

	if strings.HasPrefix(importPath, ".") {
		dir := sourceDir
		i := 0
		for i < len(importPath) && importPath[i] == '.' {
			if i > 0 {
				dir = path.Dir(dir)
			}
			i++
		}
		remaining := strings.ReplaceAll(importPath[i:], ".", "/")
		return tryPythonModulePaths(path.Join(dir, remaining), known)
	}

	modulePath := strings.ReplaceAll(importPath, ".", "/")
	if resolved, ok := tryPythonModulePaths(modulePath, known); ok {
		return resolved, true
	}
	for _, srcDir := range []string{"src", "lib"} {
		if resolved, ok := tryPythonModulePaths(path.Join(srcDir, modulePath), known); ok {
			return resolved, true
		}
	}
	return "", false
}

func tryPythonModulePaths(base string, known map[string]struct{}) (string, bool) {
	pyFile := base + ".py"
	if hasFile(known, pyFile) {
		return path.Clean(pyFile), true
	}
	initFile := path.Join(base, "__init__.py")
	if hasFile(known, initFile) {
		return path.Clean(initFile), true
	}
	return "", false
}

// resolveGoImport is best-effort: it only matches local packages whose
// directory name is the import path's final segment. External module paths
// are left unresolved.
func resolveGoImport(importPath string, known map[string]struct{}) (string, bool) {
	parts := strings.Split(importPath, "/")
	last := parts[len(parts)-1]

	for file := range known {
		if path.Base(path.Dir(file)) == last {
			return file, true
		}
	}
	return "", false
}

func resolveJavaImport(importPath string, known map[string]struct{}) (string, bool) {
	classPath := strings.ReplaceAll(importPath, ".", "/") + ".java"
	for _, srcDir := range []string{"src/main/java", "src", ""} {
		candidate := classPath
		if srcDir != "" {
			candidate = path.Join(srcDir, classPath)
		}
		if hasFile(known, candidate) {
			return path.Clean(candidate), true
		}
	}
	return "", false
}
