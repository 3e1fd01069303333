package vm

import (
	"github.com/chazu/loom/compiler"
)

// ---------------------------------------------------------------------------
// Lowering: resolve instance-variable references to slot indices
// ---------------------------------------------------------------------------

// lowerMethod rebuilds a method entry's executable body from its raw
// statements: identifiers and assignments naming a slot of the holding
// class become SlotAccess nodes carrying the merged slot index, so the
// interpreter reads and writes receiver slots in O(1) with no lookup.
// Parameters, temporaries and block-locals shadow slot names.
func lowerMethod(m *MethodEntry, holder *Class) {
	scope := newShadowScope(nil)
	for _, p := range m.Parameters {
		scope.add(p)
	}
	for _, t := range m.Temps {
		scope.add(t)
	}

	lowered := lowerStmts(m.Raw, holder, scope)
	m.Body = &Block{
		Parameters: m.Parameters,
		Temps:      m.Temps,
		Body:       lowered,
		IsMethod:   true,
		Selector:   m.Selector,
		Defining:   holder,
	}
}

// shadowScope tracks names bound by enclosing parameters and
// temporaries during lowering.
type shadowScope struct {
	parent *shadowScope
	names  map[string]struct{}
}

func newShadowScope(parent *shadowScope) *shadowScope {
	return &shadowScope{parent: parent, names: make(map[string]struct{})}
}

func (s *shadowScope) add(name string) {
	s.names[name] = struct{}{}
}

func (s *shadowScope) shadows(name string) bool {
	for cur := s; cur != nil; cur = cur.parent {
		if _, ok := cur.names[name]; ok {
			return true
		}
	}
	return false
}

func lowerStmts(stmts []compiler.Stmt, holder *Class, scope *shadowScope) []compiler.Stmt {
	if stmts == nil {
		return nil
	}
	out := make([]compiler.Stmt, len(stmts))
	for i, s := range stmts {
		out[i] = lowerStmt(s, holder, scope)
	}
	return out
}

func lowerStmt(s compiler.Stmt, holder *Class, scope *shadowScope) compiler.Stmt {
	switch n := s.(type) {
	case *compiler.ExprStmt:
		return &compiler.ExprStmt{SpanVal: n.SpanVal, Expr: lowerExpr(n.Expr, holder, scope)}
	case *compiler.Return:
		if n.Value == nil {
			return n
		}
		return &compiler.Return{SpanVal: n.SpanVal, Value: lowerExpr(n.Value, holder, scope)}
	case *compiler.PrimitiveNode:
		return &compiler.PrimitiveNode{
			SpanVal:  n.SpanVal,
			Name:     n.Name,
			Fallback: lowerStmts(n.Fallback, holder, scope),
		}
	case *compiler.MethodDef:
		// A nested installation lowers against its own holder at its
		// own install time; only the receiver expression belongs to
		// this scope.
		return &compiler.MethodDef{
			SpanVal:    n.SpanVal,
			Receiver:   lowerExpr(n.Receiver, holder, scope),
			ClassSide:  n.ClassSide,
			Selector:   n.Selector,
			Parameters: n.Parameters,
			Temps:      n.Temps,
			Statements: n.Statements,
		}
	default:
		return s
	}
}

func lowerExpr(e compiler.Expr, holder *Class, scope *shadowScope) compiler.Expr {
	switch n := e.(type) {
	case *compiler.Ident:
		if !scope.shadows(n.Name) {
			if idx := holder.SlotIndex(n.Name); idx >= 0 {
				return &compiler.SlotAccess{SpanVal: n.SpanVal, Name: n.Name, Index: idx}
			}
		}
		return n

	case *compiler.Assignment:
		value := lowerExpr(n.Value, holder, scope)
		if !scope.shadows(n.Name) {
			if idx := holder.SlotIndex(n.Name); idx >= 0 {
				return &compiler.SlotAccess{
					SpanVal:  n.SpanVal,
					Name:     n.Name,
					Index:    idx,
					IsAssign: true,
					Value:    value,
				}
			}
		}
		return &compiler.Assignment{SpanVal: n.SpanVal, Name: n.Name, Value: value}

	case *compiler.Message:
		recv := n.Receiver
		if recv != nil {
			recv = lowerExpr(recv, holder, scope)
		}
		return &compiler.Message{
			SpanVal:   n.SpanVal,
			Receiver:  recv,
			Selector:  n.Selector,
			Arguments: lowerExprs(n.Arguments, holder, scope),
		}

	case *compiler.Cascade:
		parts := make([]compiler.CascadePart, len(n.Messages))
		for i, part := range n.Messages {
			parts[i] = compiler.CascadePart{
				Selector:  part.Selector,
				Arguments: lowerExprs(part.Arguments, holder, scope),
			}
		}
		return &compiler.Cascade{
			SpanVal:  n.SpanVal,
			Receiver: lowerExpr(n.Receiver, holder, scope),
			Messages: parts,
		}

	case *compiler.SuperSend:
		return &compiler.SuperSend{
			SpanVal:   n.SpanVal,
			Selector:  n.Selector,
			Arguments: lowerExprs(n.Arguments, holder, scope),
			Qualifier: n.Qualifier,
		}

	case *compiler.Block:
		inner := newShadowScope(scope)
		for _, p := range n.Parameters {
			inner.add(p)
		}
		for _, t := range n.Temps {
			inner.add(t)
		}
		return &compiler.Block{
			SpanVal:    n.SpanVal,
			Parameters: n.Parameters,
			Temps:      n.Temps,
			Statements: lowerStmts(n.Statements, holder, inner),
		}

	case *compiler.ArrayNode:
		return &compiler.ArrayNode{SpanVal: n.SpanVal, Elements: lowerExprs(n.Elements, holder, scope)}

	case *compiler.TableNode:
		entries := make([]compiler.TableEntry, len(n.Entries))
		for i, en := range n.Entries {
			entries[i] = compiler.TableEntry{
				Key:   lowerExpr(en.Key, holder, scope),
				Value: lowerExpr(en.Value, holder, scope),
			}
		}
		return &compiler.TableNode{SpanVal: n.SpanVal, Entries: entries}

	default:
		// Literals, pseudo-variables and already-lowered slot accesses
		// pass through unchanged.
		return e
	}
}

func lowerExprs(exprs []compiler.Expr, holder *Class, scope *shadowScope) []compiler.Expr {
	if exprs == nil {
		return nil
	}
	out := make([]compiler.Expr, len(exprs))
	for i, e := range exprs {
		out[i] = lowerExpr(e, holder, scope)
	}
	return out
}
