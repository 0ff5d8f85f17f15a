package parser

import (
	sitter "github.com/smacker/go-tree-sitter"
)

func (p *Parser) parseJava(content []byte) ([]Symbol, []Import, error) {
	root, err := parseTree(p.java, content)
	if err != nil {
		return nil, nil, err
	}
	var symbols []Symbol
	var imports []Import
	walkJava(root, content, &symbols, &imports, "")
	return symbols, imports, nil
}

func walkJava(n *sitter.Node, content []byte, symbols *[]Symbol, imports *[]Import, parent string) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "method_declaration", "constructor_declaration":
			if sym, ok := javaMethod(child, content, parent); ok {
				*symbols = append(*symbols, sym)
			}
		case "class_declaration":
			name, ok := javaName(child, content)
			if ok {
				*symbols = append(*symbols, Symbol{Name: name, Kind: SymbolStruct, Line: lineOf(child)})
			}
			walkJava(child, content, symbols, imports, name)
		case "interface_declaration":
			name, ok := javaName(child, content)
			if ok {
				*symbols = append(*symbols, Symbol{Name: name, Kind: SymbolTrait, Line: lineOf(child)})
			}
			walkJava(child, content, symbols, imports, name)
		case "enum_declaration":
			if name, ok := javaName(child, content); ok {
				*symbols = append(*symbols, Symbol{Name: name, Kind: SymbolEnum, Line: lineOf(child)})
			}
		case "import_declaration":
			if imp, ok := javaImport(child, content); ok {
				*imports = append(*imports, imp)
			}
		default:
			walkJava(child, content, symbols, imports, parent)
		}
	}
}

func javaMethod(n *sitter.Node, content []byte, parent string) (Symbol, bool) {
	name, ok := javaName(n, content)
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
		Signature: signatureUpTo(n, body, content),
		Line:      lineOf(n),
		Parent:    parent,
	}, true
}

func javaName(n *sitter.Node, content []byte) (string, bool) {
	name := n.ChildByFieldName("name")
	if name == nil {
		return "", false
	}
	return name.Content(content), true
}

func javaImport(n *sitter.Node, content []byte) (Import, bool) {
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c.Type() == "scoped_identifier" {
			return Import{RawPath: c.Content(content), Line: lineOf(n)}, true
		}
	}
	return Import{}, false
}
