package refine

import (
	"fmt"
)

// EquivalenceMap is a union-find over leaf expressions. Literal constants
// are always kept as the representative of their class.
type EquivalenceMap struct {
	parent map[string]string
	leaves map[string]Expr
}

// NewEquivalenceMap returns a new, empty instance of EquivalenceMap.
func NewEquivalenceMap() *EquivalenceMap {
	return &EquivalenceMap{
		parent: make(map[string]string),
		leaves: make(map[string]Expr),
	}
}

// BuildEquivalenceMap returns a map built from the simple equalities in cs.
func BuildEquivalenceMap(cs ConstraintSet) *EquivalenceMap {
	m := NewEquivalenceMap()
	for _, c := range cs {
		if lhs, rhs, ok := IsSimpleEq(c); ok {
			m.Union(lhs, rhs)
		}
	}
	return m
}

// IsSimpleEq returns the operands of c if it is an equality between two leaves.
func IsSimpleEq(c Clause) (lhs, rhs Expr, ok bool) {
	be, ok := c.(*BoolExpr)
	if !ok || be.Pred != EQ || !isEquivLeaf(be.LHS) || !isEquivLeaf(be.RHS) {
		return nil, nil, false
	}
	return be.LHS, be.RHS, true
}

func isEquivLeaf(e Expr) bool {
	switch e.(type) {
	case *ConstantExpr, *ValueExpr, *UseExpr:
		return true
	default:
		return false
	}
}

// leafKey returns the union-find key of a leaf. A use of a value shares the
// key of the value itself.
func leafKey(e Expr) string {
	switch e := e.(type) {
	case *ConstantExpr:
		return fmt.Sprintf("#%d:%d", e.Width, e.Value)
	case *ValueExpr:
		return ValueName(e.Value)
	case *UseExpr:
		return ValueName(e.Value)
	default:
		panic(fmt.Sprintf("not an equivalence leaf: %T", e))
	}
}

// leafValue returns the representative form of a leaf.
func leafValue(e Expr) Expr {
	if e, ok := e.(*UseExpr); ok {
		return &ValueExpr{Value: e.Value, Width: e.Width}
	}
	return e
}

// find returns the root key of k, compressing the path along the way.
func (m *EquivalenceMap) find(k string) string {
	p, ok := m.parent[k]
	if !ok || p == k {
		return k
	}
	root := m.find(p)
	m.parent[k] = root
	return root
}

// Union merges the classes of a & b. Two classes rooted at different
// literals are never merged.
func (m *EquivalenceMap) Union(a, b Expr) {
	ak, bk := leafKey(a), leafKey(b)
	if _, ok := m.leaves[ak]; !ok {
		m.leaves[ak] = leafValue(a)
	}
	if _, ok := m.leaves[bk]; !ok {
		m.leaves[bk] = leafValue(b)
	}

	ra, rb := m.find(ak), m.find(bk)
	if ra == rb {
		return
	}

	ca, cb := IsConstantExpr(m.leaves[ra]), IsConstantExpr(m.leaves[rb])
	switch {
	case ca && cb:
		return
	case cb:
		m.parent[ra] = rb
	case ca:
		m.parent[rb] = ra
	case CompareExpr(m.leaves[ra], m.leaves[rb]) <= 0:
		m.parent[rb] = ra
	default:
		m.parent[ra] = rb
	}
}

// Root returns a copy of the representative of e's class. Non-leaf
// expressions and unknown leaves are their own representative.
func (m *EquivalenceMap) Root(e Expr) Expr {
	if !isEquivLeaf(e) {
		return CloneExpr(e)
	}
	k := m.find(leafKey(e))
	if root, ok := m.leaves[k]; ok {
		return CloneExpr(root)
	}
	return CloneExpr(leafValue(e))
}

// Replace returns a copy of c with every leaf replaced by its representative.
func (m *EquivalenceMap) Replace(c Clause) Clause {
	return RewriteClause(c, func(e Expr) Expr {
		if isEquivLeaf(e) {
			return m.Root(e)
		}
		return CloneExpr(e)
	})
}

// Len returns the number of leaves tracked by the map.
func (m *EquivalenceMap) Len() int {
	return len(m.leaves)
}
