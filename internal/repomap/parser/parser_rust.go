package parser

import (
	sitter "github.com/smacker/go-tree-sitter"
)

func (p *Parser) parseRust(content []byte) ([]Symbol, []Import, error) {
	root, err := parseTree(p.rust, content)
	if err != nil {
		return nil, nil, err
	}
	var symbols []Symbol
	var imports []Import
	walkRust(root, content, &symbols, &imports, "")
	return symbols, imports, nil
}

func walkRust(n *sitter.Node, content []byte, symbols *[]Symbol, imports *[]Import, parent string) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "function_item", "function_signature_item":
			if sym, ok := rustFunction(child, content, parent); ok {
				*symbols = append(*symbols, sym)
			}
		case "struct_item":
			if name, ok := rustName(child, content); ok {
				*symbols = append(*symbols, Symbol{Name: name, Kind: SymbolStruct, Line: lineOf(child)})
			}
		case "enum_item":
			if name, ok := rustName(child, content); ok {
				*symbols = append(*symbols, Symbol{Name: name, Kind: SymbolEnum, Line: lineOf(child)})
			}
		case "trait_item":
			name, ok := rustName(child, content)
			if ok {
				*symbols = append(*symbols, Symbol{Name: name, Kind: SymbolTrait, Line: lineOf(child)})
			}
			walkRust(child, content, symbols, imports, name)
		case "impl_item":
			implType := rustImplType(child, content)
			walkRust(child, content, symbols, imports, implType)
		case "mod_item":
			if name, ok := rustModName(child, content); ok {
				*symbols = append(*symbols, Symbol{Name: name, Kind: SymbolModule, Line: lineOf(child)})
			}
			walkRust(child, content, symbols, imports, parent)
		case "type_item":
			if name, ok := rustName(child, content); ok {
				*symbols = append(*symbols, Symbol{Name: name, Kind: SymbolTypeAlias, Line: lineOf(child)})
			}
		case "const_item", "static_item":
			if name, ok := rustName(child, content); ok {
				*symbols = append(*symbols, Symbol{Name: name, Kind: SymbolConstant, Line: lineOf(child)})
			}
		case "use_declaration":
			if imp, ok := rustUse(child, content); ok {
				*imports = append(*imports, imp)
			}
		default:
			walkRust(child, content, symbols, imports, parent)
		}
	}
}

func rustFunction(n *sitter.Node, content []byte, parent string) (Symbol, bool) {
	name := n.ChildByFieldName("name")
	if name == nil {
		return Symbol{}, false
	}
	sig := rustSignature(n, content)
	return Symbol{
		Name:      name.Content(content),
		Kind:      SymbolFunction,
		Signature: sig,
		Line:      lineOf(n),
		Parent:    parent,
	}, true
}

// rustSignature truncates n's source slice at the first "block" or ";"
// direct child, since function items don't expose a "body" field name.
func rustSignature(n *sitter.Node, content []byte) string {
	var body *sitter.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c.Type() == "block" || c.Type() == ";" {
			body = c
			break
		}
	}
	return signatureUpTo(n, body, content)
}

func rustName(n *sitter.Node, content []byte) (string, bool) {
	name := n.ChildByFieldName("name")
	if name == nil {
		return "", false
	}
	return name.Content(content), true
}

func rustModName(n *sitter.Node, content []byte) (string, bool) {
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c.Type() == "identifier" {
			return c.Content(content), true
		}
	}
	return "", false
}

func rustImplType(n *sitter.Node, content []byte) string {
	typ := n.ChildByFieldName("type")
	if typ == nil {
		return ""
	}
	return typ.Content(content)
}

func rustUse(n *sitter.Node, content []byte) (Import, bool) {
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c.Type() == "use_tree" || c.Type() == "scoped_identifier" || c.Type() == "identifier" {
			return Import{RawPath: c.Content(content), Line: lineOf(n)}, true
		}
	}
	return Import{}, false
}
