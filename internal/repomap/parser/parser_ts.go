package parser

import (
	sitter "github.com/smacker/go-tree-sitter"
)

func (p *Parser) parseTSOrJS(content []byte, lang Language) ([]Symbol, []Import, error) {
	sp := p.javascript
	if lang == LanguageTypeScript {
		sp = p.typescript
	}
	root, err := parseTree(sp, content)
	if err != nil {
		return nil, nil, err
	}
	var symbols []Symbol
	var imports []Import
	walkTS(root, content, &symbols, &imports, "")
	return symbols, imports, nil
}

func walkTS(n *sitter.Node, content []byte, symbols *[]Symbol, imports *[]Import, parent string) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "function_declaration", "method_definition", "arrow_function":
			if sym, ok := tsFunction(child, content, parent); ok {
				*symbols = append(*symbols, sym)
			}
		case "class_declaration":
			name, ok := tsName(child, content)
			if ok {
				*symbols = append(*symbols, Symbol{Name: name, Kind: SymbolStruct, Line: lineOf(child)})
			}
			walkTS(child, content, symbols, imports, name)
		case "interface_declaration", "type_alias_declaration":
			if name, ok := tsName(child, content); ok {
				kind := SymbolTypeAlias
				if child.Type() == "interface_declaration" {
					kind = SymbolTrait
				}
				*symbols = append(*symbols, Symbol{Name: name, Kind: kind, Line: lineOf(child)})
			}
		case "enum_declaration":
			if name, ok := tsName(child, content); ok {
				*symbols = append(*symbols, Symbol{Name: name, Kind: SymbolEnum, Line: lineOf(child)})
			}
		case "import_statement":
			if imp, ok := tsImport(child, content); ok {
				*imports = append(*imports, imp)
			}
		case "export_statement", "lexical_declaration", "variable_declaration":
			walkTS(child, content, symbols, imports, parent)
		case "variable_declarator":
			if sym, ok := tsConstFunction(child, content, parent); ok {
				*symbols = append(*symbols, sym)
			}
		default:
			walkTS(child, content, symbols, imports, parent)
		}
	}
}

func tsFunction(n *sitter.Node, content []byte, parent string) (Symbol, bool) {
	name, ok := tsName(n, content)
	if !ok {
		return Symbol{}, false
	}
	var body *sitter.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); c.Type() == "statement_block" {
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

func tsConstFunction(n *sitter.Node, content []byte, parent string) (Symbol, bool) {
	name := n.ChildByFieldName("name")
	value := n.ChildByFieldName("value")
	if name == nil || value == nil || value.Type() != "arrow_function" {
		return Symbol{}, false
	}
	return Symbol{
		Name:   name.Content(content),
		Kind:   SymbolFunction,
		Line:   lineOf(n),
		Parent: parent,
	}, true
}

func tsName(n *sitter.Node, content []byte) (string, bool) {
	name := n.ChildByFieldName("name")
	if name == nil {
		return "", false
	}
	return name.Content(content), true
}

func tsImport(n *sitter.Node, content []byte) (Import, bool) {
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c.Type() == "string" {
			return Import{RawPath: unquote(c.Content(content)), Line: lineOf(n)}, true
		}
	}
	return Import{}, false
}
