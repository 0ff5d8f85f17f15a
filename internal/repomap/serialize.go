package repomap

import (
	"fmt"
	"strings"
)

// SerializeConfig tunes how Serialize/SerializeForTool render a RepoMap for
// prompt injection.
type SerializeConfig struct {
	TokenBudget       int
	IncludeRanks      bool
	IncludeSignatures bool
	MaxFiles          *int // nil means unlimited
	MinRank           float64
}

// DefaultSerializeConfig matches the reference implementation's defaults.
func DefaultSerializeConfig() SerializeConfig {
	return SerializeConfig{
		TokenBudget:       2000,
		IncludeRanks:      true,
		IncludeSignatures: true,
		MinRank:           0,
	}
}

const maxSymbolsPerFile = 10

// Serialize renders a RepoMap as compact text for prompt injection, walking
// files in descending rank order until the token budget runs out. When the
// next file's full rendering would blow the budget, a header-only line for
// that file is written if it fits, and rendering stops there either way.
func Serialize(m *RepoMap, cfg SerializeConfig) string {
	var out strings.Builder
	tokens := 0

	files := filterByMinRank(m.FilesByRank(), m, cfg.MinRank)
	if cfg.MaxFiles != nil && *cfg.MaxFiles < len(files) {
		files = files[:*cfg.MaxFiles]
	}

	for i := range files {
		file := &files[i]
		rendered := formatFile(file, m.GetRank(file.Path), cfg)
		fileTokens := estimateTokens(rendered)

		if tokens+fileTokens > cfg.TokenBudget {
			minimal := formatFileMinimal(file, m.GetRank(file.Path), cfg)
			if tokens+estimateTokens(minimal) <= cfg.TokenBudget {
				out.WriteString(minimal)
			}
			break
		}

		out.WriteString(rendered)
		tokens += fileTokens
	}

	return out.String()
}

// SerializeForTool renders a RepoMap for a tool call result: an optional
// "## Focus Files" section in full detail, followed by "## Related Files"
// in rank order, optionally filtered by a case-insensitive query matched
// against paths and symbol names.
func SerializeForTool(m *RepoMap, focusFiles []string, query string, cfg SerializeConfig) string {
	var out strings.Builder

	focusSet := make(map[string]struct{}, len(focusFiles))
	if len(focusFiles) > 0 {
		out.WriteString("## Focus Files\n\n")
		for _, p := range focusFiles {
			focusSet[p] = struct{}{}
			if file, ok := m.GetFile(p); ok {
				out.WriteString(formatFileDetailed(&file, m.GetRank(p), cfg))
				out.WriteString("\n")
			}
		}
		out.WriteString("\n## Related Files\n\n")
	}

	files := m.FilesByRank()
	if query != "" {
		q := strings.ToLower(query)
		files = filterByQuery(files, q)
	}

	maxFiles := 50
	if cfg.MaxFiles != nil {
		maxFiles = *cfg.MaxFiles
	}

	count := 0
	for i := range files {
		file := &files[i]
		if _, skip := focusSet[file.Path]; skip {
			continue
		}
		if count >= maxFiles {
			break
		}
		out.WriteString(formatFile(file, m.GetRank(file.Path), cfg))
		count++
	}

	return out.String()
}

func filterByMinRank(files []FileInfo, m *RepoMap, minRank float64) []FileInfo {
	if minRank <= 0 {
		return files
	}
	out := files[:0:0]
	for _, f := range files {
		if m.GetRank(f.Path) >= minRank {
			out = append(out, f)
		}
	}
	return out
}

func filterByQuery(files []FileInfo, qLower string) []FileInfo {
	out := files[:0:0]
	for _, f := range files {
		if strings.Contains(strings.ToLower(f.Path), qLower) {
			out = append(out, f)
			continue
		}
		for _, s := range f.Symbols {
			if strings.Contains(strings.ToLower(s.Name), qLower) {
				out = append(out, f)
				break
			}
		}
	}
	return out
}

func formatFile(file *FileInfo, rank float64, cfg SerializeConfig) string {
	var out strings.Builder
	writeHeader(&out, file.Path, rank, cfg.IncludeRanks, "")

	symbolCount := 0
	types := file.Types()
	if len(types) > 5 {
		types = types[:5]
	}
	for _, sym := range types {
		if symbolCount >= maxSymbolsPerFile {
			break
		}
		out.WriteString(formatSymbol(sym, cfg))
		symbolCount++
	}

	remaining := maxSymbolsPerFile - symbolCount
	if remaining > 0 {
		functions := file.Functions()
		if len(functions) > remaining {
			functions = functions[:remaining]
		}
		for _, sym := range functions {
			out.WriteString(formatSymbol(sym, cfg))
		}
	}

	return out.String()
}

func formatFileMinimal(file *FileInfo, rank float64, cfg SerializeConfig) string {
	var out strings.Builder
	writeHeader(&out, file.Path, rank, cfg.IncludeRanks, "")
	return out.String()
}

func formatFileDetailed(file *FileInfo, rank float64, cfg SerializeConfig) string {
	var out strings.Builder
	writeHeader(&out, file.Path, rank, cfg.IncludeRanks, "### ")

	types := file.Types()
	if len(types) > 0 {
		out.WriteString("\n**Types:**\n")
		for _, sym := range types {
			fmt.Fprintf(&out, "- %s\n", formatSymbolInline(sym))
		}
	}

	functions := file.Functions()
	if len(functions) > 0 {
		out.WriteString("\n**Functions:**\n")
		for _, sym := range functions {
			out.WriteString(formatSymbol(sym, cfg))
		}
	}

	return out.String()
}

func writeHeader(out *strings.Builder, path string, rank float64, includeRank bool, prefix string) {
	if includeRank {
		fmt.Fprintf(out, "%s%s (%.2f)\n", prefix, path, rank)
	} else {
		fmt.Fprintf(out, "%s%s\n", prefix, path)
	}
}

func formatSymbol(sym Symbol, cfg SerializeConfig) string {
	prefix := sym.Kind.Prefix()

	if cfg.IncludeSignatures && sym.Signature != "" {
		sig := sym.Signature
		if len(sig) > 80 {
			sig = sig[:77] + "…"
		}
		return fmt.Sprintf("  %s %s\n", prefix, sig)
	}

	if sym.Parent != "" {
		return fmt.Sprintf("  %s %s::%s\n", prefix, sym.Parent, sym.Name)
	}
	return fmt.Sprintf("  %s %s\n", prefix, sym.Name)
}

func formatSymbolInline(sym Symbol) string {
	prefix := sym.Kind.Prefix()
	if sym.Parent != "" {
		return fmt.Sprintf("%s %s::%s", prefix, sym.Parent, sym.Name)
	}
	return fmt.Sprintf("%s %s", prefix, sym.Name)
}

// estimateTokens approximates token count as one token per four characters,
// matching internal/context/window.go's EstimateTokens ratio.
func estimateTokens(text string) int {
	return (len(text) + 3) / 4
}
