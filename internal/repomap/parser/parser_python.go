package parser

import (
	sitter "github.com/smacker/go-tree-sitter"
)

func (p *Parser) parsePython(content []byte) ([]Symbol, []Import, error) {
	root, err := parseTree(p.python, content)
	if err != nil {
		return nil, nil, err
	}
	var symbols []Symbol
	var imports []Import
	walkPython(root, content, &symbols, &imports, "")
	return symbols, imports, nil
}

func walkPython(n *sitter.Node, content []byte, symbols *[]Symbol, imports *[]Import, parent string) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "function_definition":
			if sym, ok := pythonFunction(child, content, parent); ok {
				*symbols = append(*symbols, sym)
			}
		case "class_definition":
			name, ok := pythonName(child, content)
			if ok {
				*symbols = append(*symbols, Symbol{Name: name, Kind: SymbolStruct, Line: lineOf(child)})
			}
			walkPython(child, content, symbols, imports, name)
		case "import_statement", "import_from_statement":
			if imp, ok := pythonImport(child, content); ok {
				*imports = append(*imports, imp)
			}
		default:
			walkPython(child, content, symbols, imports, parent)
		}
	}
}

func pythonFunction(n *sitter.Node, content []byte, parent string) (Symbol, bool) {
	name, ok := pythonName(n, content)
	if !ok {
		return Symbol{}, false
	}
	var body *sitter.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); c.Type() == "block" {
			body = c
			break
		}
	}
	return Symbol{
		Name:      name,
		Kind:      SymbolFunction,
		Signature: signatureUpTo(n, body, content, ":"),
		Line:      lineOf(n),
		Parent:    parent,
	}, true
}

func pythonName(n *sitter.Node, content []byte) (string, bool) {
	name := n.ChildByFieldName("name")
	if name == nil {
		return "", false
	}
	return name.Content(content), true
}

// pythonImport handles both "import foo, bar" (first dotted_name child) and
// "from foo import bar, baz" (dotted_name/relative_import child followed by
// the imported identifiers).
func pythonImport(n *sitter.Node, content []byte) (Import, bool) {
	if n.Type() == "import_statement" {
		for i := 0; i < int(n.ChildCount()); i++ {
			c := n.Child(i)
			if c.Type() == "dotted_name" {
				return Import{RawPath: c.Content(content), Line: lineOf(n)}, true
			}
		}
		return Import{}, false
	}

	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c.Type() != "dotted_name" && c.Type() != "relative_import" {
			continue
		}
		path := c.Content(content)
		var items []string
		for j := i + 1; j < int(n.ChildCount()); j++ {
			item := n.Child(j)
			if item.Type() == "identifier" {
				items = append(items, item.Content(content))
			}
		}
		return Import{RawPath: path, Items: items, Line: lineOf(n)}, true
	}
	return Import{}, false
}
