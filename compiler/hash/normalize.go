package hash

import (
	"fmt"

	"github.com/chazu/loom/compiler"
)

// ---------------------------------------------------------------------------
// Normalization: AST → position-free tree
// ---------------------------------------------------------------------------

// node is the frozen, position-free form a method hashes over. Source
// spans are dropped so formatting never changes a fingerprint; field
// order is fixed by the canonical encoder, not by this struct.
type node struct {
	Tag      string  `cbor:"t"`
	Str      string  `cbor:"s,omitempty"`
	Int      int64   `cbor:"i,omitempty"`
	Float    float64 `cbor:"f,omitempty"`
	Bool     bool    `cbor:"b,omitempty"`
	Strs     []string `cbor:"ss,omitempty"`
	Children []*node `cbor:"c,omitempty"`
}

// normalizeMethod freezes a method definition. The receiver expression
// is excluded: a fingerprint identifies the body under a selector, not
// the class it happens to be installed on.
func normalizeMethod(def *compiler.MethodDef) (*node, error) {
	body, err := normalizeStmts(def.Statements)
	if err != nil {
		return nil, err
	}
	return &node{
		Tag:      "method",
		Str:      def.Selector,
		Bool:     def.ClassSide,
		Strs:     append(append([]string{}, def.Parameters...), def.Temps...),
		Children: body,
	}, nil
}

func normalizeStmts(stmts []compiler.Stmt) ([]*node, error) {
	out := make([]*node, 0, len(stmts))
	for _, s := range stmts {
		n, err := normalizeNode(s)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func normalizeExprs(exprs []compiler.Expr) ([]*node, error) {
	out := make([]*node, 0, len(exprs))
	for _, e := range exprs {
		n, err := normalizeNode(e)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func normalizeNode(n compiler.Node) (*node, error) {
	switch x := n.(type) {
	case *compiler.IntLiteral:
		return &node{Tag: "int", Int: x.Value}, nil
	case *compiler.FloatLiteral:
		return &node{Tag: "float", Float: x.Value}, nil
	case *compiler.StringLiteral:
		return &node{Tag: "string", Str: x.Value}, nil
	case *compiler.SymbolLiteral:
		return &node{Tag: "symbol", Str: x.Value}, nil
	case *compiler.Ident:
		return &node{Tag: "ident", Str: x.Name}, nil
	case *compiler.SelfRef:
		return &node{Tag: "self"}, nil
	case *compiler.NilRef:
		return &node{Tag: "nil"}, nil
	case *compiler.TrueRef:
		return &node{Tag: "true"}, nil
	case *compiler.FalseRef:
		return &node{Tag: "false"}, nil

	case *compiler.Assignment:
		v, err := normalizeNode(x.Value)
		if err != nil {
			return nil, err
		}
		return &node{Tag: "assign", Str: x.Name, Children: []*node{v}}, nil

	case *compiler.Message:
		var children []*node
		if x.Receiver != nil {
			r, err := normalizeNode(x.Receiver)
			if err != nil {
				return nil, err
			}
			children = append(children, r)
		}
		args, err := normalizeExprs(x.Arguments)
		if err != nil {
			return nil, err
		}
		children = append(children, args...)
		return &node{Tag: "send", Str: x.Selector, Bool: x.Receiver == nil, Children: children}, nil

	case *compiler.Cascade:
		r, err := normalizeNode(x.Receiver)
		if err != nil {
			return nil, err
		}
		children := []*node{r}
		for _, part := range x.Messages {
			args, err := normalizeExprs(part.Arguments)
			if err != nil {
				return nil, err
			}
			children = append(children, &node{Tag: "part", Str: part.Selector, Children: args})
		}
		return &node{Tag: "cascade", Children: children}, nil

	case *compiler.SuperSend:
		args, err := normalizeExprs(x.Arguments)
		if err != nil {
			return nil, err
		}
		return &node{Tag: "super", Str: x.Selector + "|" + x.Qualifier, Children: args}, nil

	case *compiler.Return:
		if x.Value == nil {
			return &node{Tag: "return"}, nil
		}
		v, err := normalizeNode(x.Value)
		if err != nil {
			return nil, err
		}
		return &node{Tag: "return", Children: []*node{v}}, nil

	case *compiler.ExprStmt:
		v, err := normalizeNode(x.Expr)
		if err != nil {
			return nil, err
		}
		return &node{Tag: "stmt", Children: []*node{v}}, nil

	case *compiler.Block:
		body, err := normalizeStmts(x.Statements)
		if err != nil {
			return nil, err
		}
		return &node{
			Tag:      "block",
			Strs:     append(append([]string{}, x.Parameters...), x.Temps...),
			Int:      int64(len(x.Parameters)),
			Children: body,
		}, nil

	case *compiler.ArrayNode:
		elems, err := normalizeExprs(x.Elements)
		if err != nil {
			return nil, err
		}
		return &node{Tag: "array", Children: elems}, nil

	case *compiler.TableNode:
		var children []*node
		for _, e := range x.Entries {
			k, err := normalizeNode(e.Key)
			if err != nil {
				return nil, err
			}
			v, err := normalizeNode(e.Value)
			if err != nil {
				return nil, err
			}
			children = append(children, &node{Tag: "entry", Children: []*node{k, v}})
		}
		return &node{Tag: "table", Children: children}, nil

	case *compiler.SlotAccess:
		// Lowered form normalizes identically to its source form, so a
		// fingerprint is stable across install-time lowering.
		if x.IsAssign {
			v, err := normalizeNode(x.Value)
			if err != nil {
				return nil, err
			}
			return &node{Tag: "assign", Str: x.Name, Children: []*node{v}}, nil
		}
		return &node{Tag: "ident", Str: x.Name}, nil

	case *compiler.PrimitiveNode:
		body, err := normalizeStmts(x.Fallback)
		if err != nil {
			return nil, err
		}
		return &node{Tag: "primitive", Str: x.Name, Children: body}, nil

	case *compiler.MethodDef:
		return normalizeMethod(x)

	default:
		return nil, fmt.Errorf("hash: cannot normalize %T", n)
	}
}
