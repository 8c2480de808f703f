// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package submission

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// discoverPython parses Python source and returns the signatures of its
// top-level functions.
//
// Description:
//
//	Only module-level def statements count, decorated or not. Methods,
//	nested functions and lambdas assigned to names are not capabilities.
//	Parameters with defaults widen MaxArgs, *args makes the function
//	variadic and keyword-only parameters are not counted.
//
// Outputs:
//
//	[]Signature - Sorted by name.
//	error - Wraps ErrSyntax with the first error line if parsing failed.
func discoverPython(ctx context.Context, content []byte) ([]Signature, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parse python: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, fmt.Errorf("%w at line %d", ErrSyntax, firstErrorLine(root))
	}

	byName := make(map[string]Signature)
	for i := 0; i < int(root.NamedChildCount()); i++ {
		node := root.NamedChild(i)
		if node.Type() == "decorated_definition" {
			node = node.ChildByFieldName("definition")
		}
		if node == nil || node.Type() != "function_definition" {
			continue
		}
		nameNode := node.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		sig := pythonSignature(node.ChildByFieldName("parameters"))
		sig.Name = nameNode.Content(content)
		// Later definitions shadow earlier ones, as at runtime.
		byName[sig.Name] = sig
	}
	return sortedSignatures(byName), nil
}

func pythonSignature(params *sitter.Node) Signature {
	var sig Signature
	if params == nil {
		return sig
	}
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		switch p.Type() {
		case "identifier", "typed_parameter":
			switch splatKind(p) {
			case "list_splat_pattern":
				sig.MaxArgs = -1
				return sig
			case "dictionary_splat_pattern":
				return sig
			}
			sig.MinArgs++
			sig.MaxArgs++
		case "default_parameter", "typed_default_parameter":
			sig.MaxArgs++
		case "list_splat_pattern":
			sig.MaxArgs = -1
			return sig
		case "keyword_separator", "dictionary_splat_pattern":
			return sig
		}
	}
	return sig
}

// splatKind returns the splat node type wrapped by a typed parameter such
// as *args: int, or "" for a plain parameter.
func splatKind(p *sitter.Node) string {
	for i := 0; i < int(p.NamedChildCount()); i++ {
		switch t := p.NamedChild(i).Type(); t {
		case "list_splat_pattern", "dictionary_splat_pattern":
			return t
		}
	}
	return ""
}

func firstErrorLine(n *sitter.Node) int {
	if n.IsError() || n.IsMissing() {
		return int(n.StartPoint().Row) + 1
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child.HasError() || child.IsError() || child.IsMissing() {
			return firstErrorLine(child)
		}
	}
	return int(n.StartPoint().Row) + 1
}
