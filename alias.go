package refine

import (
	"fmt"
	"go/constant"
	"go/token"
	"go/types"
	"sort"
	"strings"
	"time"

	"github.com/benbjohnson/immutable"
	log "github.com/sirupsen/logrus"
	"golang.org/x/tools/go/ssa"
)

// AliasResult is the answer to an aliasing query.
type AliasResult int

const (
	NoAlias AliasResult = iota
	MayAlias
	MustAlias
)

// String returns the string representation of the result.
func (r AliasResult) String() string {
	switch r {
	case NoAlias:
		return "NoAlias"
	case MustAlias:
		return "MustAlias"
	default:
		return "MayAlias"
	}
}

// AliasOracle answers whether two pointers may address the same memory.
type AliasOracle interface {
	Alias(a, b ssa.Value) AliasResult
}

// Querier is the subset of the solver used to refine alias answers.
type Querier interface {
	Satisfiable(c Clause) (bool, error)
	Provable(c Clause) (bool, error)
}

// Ensure types implement interface.
var (
	_ AliasOracle = (*BaseOracle)(nil)
	_ AliasOracle = (*RefinedOracle)(nil)
)

// BaseOracle answers aliasing queries structurally. Every pointer is
// traced to a root object (a global or an allocation) and a path of field
// & array index selections from that root.
type BaseOracle struct{}

// NewBaseOracle returns a new instance of BaseOracle.
func NewBaseOracle() *BaseOracle {
	return &BaseOracle{}
}

// Alias returns MustAlias for identical paths from the same root, NoAlias
// for different roots or paths that differ by a constant selection, and
// MayAlias otherwise.
func (o *BaseOracle) Alias(a, b ssa.Value) AliasResult {
	if a == b {
		return MustAlias
	}

	ra, ok := ResolveAddr(a)
	if !ok {
		return MayAlias
	}
	rb, ok := ResolveAddr(b)
	if !ok {
		return MayAlias
	}

	if ra.Root != rb.Root {
		return NoAlias
	} else if len(ra.Path) != len(rb.Path) {
		return MayAlias
	}

	result := MustAlias
	for i := range ra.Path {
		switch ra.Path[i].compare(rb.Path[i]) {
		case NoAlias:
			return NoAlias
		case MayAlias:
			result = MayAlias
		}
	}
	return result
}

// Addr is a pointer resolved to its root object.
type Addr struct {
	Root ssa.Value // *ssa.Global or *ssa.Alloc
	Path []Selector
}

// Selector is a single field or array element selection.
type Selector struct {
	Field int       // field index, or -1 for an element
	Index ssa.Value // element index
}

func (s Selector) compare(other Selector) AliasResult {
	if s.Field >= 0 || other.Field >= 0 {
		if s.Field == other.Field {
			return MustAlias
		} else if s.Field >= 0 && other.Field >= 0 {
			return NoAlias
		}
		return MayAlias
	}

	if s.Index == other.Index {
		return MustAlias
	}
	ci, iok := s.Index.(*ssa.Const)
	cj, jok := other.Index.(*ssa.Const)
	if iok && jok {
		if constant.Compare(ci.Value, token.EQL, cj.Value) {
			return MustAlias
		}
		return NoAlias
	}
	return MayAlias
}

// ResolveAddr traces v back to a global or allocation.
func ResolveAddr(v ssa.Value) (Addr, bool) {
	switch v := v.(type) {
	case *ssa.Global, *ssa.Alloc:
		return Addr{Root: v}, true

	case *ssa.FieldAddr:
		addr, ok := ResolveAddr(v.X)
		if !ok {
			return Addr{}, false
		}
		addr.Path = append(append([]Selector{}, addr.Path...), Selector{Field: v.Field})
		return addr, true

	case *ssa.IndexAddr:
		if !isArrayPointer(v.X) {
			return Addr{}, false
		}
		addr, ok := ResolveAddr(v.X)
		if !ok {
			return Addr{}, false
		}
		addr.Path = append(append([]Selector{}, addr.Path...), Selector{Field: -1, Index: v.Index})
		return addr, true

	case *ssa.ChangeType:
		return ResolveAddr(v.X)
	}
	return Addr{}, false
}

// String returns the string representation of the address.
func (a Addr) String() string {
	var buf strings.Builder
	buf.WriteString(a.Root.Name())
	for _, sel := range a.Path {
		if sel.Field >= 0 {
			fmt.Fprintf(&buf, ".%d", sel.Field)
		} else {
			fmt.Fprintf(&buf, "[%s]", sel.Index.Name())
		}
	}
	return buf.String()
}

// RefinedOracle narrows the answers of a base oracle by asking the solver
// whether two fixed pointers can or must be equal.
type RefinedOracle struct {
	Base   AliasOracle
	Solver Querier

	// Number of slowest queries kept for diagnostics.
	SlowQueries int

	fixed *FixedValueSet
	cache *immutable.SortedMap
	stats AliasStats

	Logger *log.Entry
}

// NewRefinedOracle returns a new oracle refining base with solver.
func NewRefinedOracle(base AliasOracle, solver Querier) *RefinedOracle {
	return &RefinedOracle{
		Base:        base,
		Solver:      solver,
		SlowQueries: 5,
		cache:       immutable.NewSortedMap(&aliasKeyComparer{}),
		Logger:      log.WithField("component", "alias"),
	}
}

// SetFixed sets the fixed values that may be refined.
func (o *RefinedOracle) SetFixed(fixed *FixedValueSet) {
	o.fixed = fixed
}

// Recalculate drops every cached answer. Called whenever the solver's
// constraint set is rebuilt.
func (o *RefinedOracle) Recalculate() {
	o.cache = immutable.NewSortedMap(&aliasKeyComparer{})
}

// CacheLen returns the number of cached answers.
func (o *RefinedOracle) CacheLen() int {
	return o.cache.Len()
}

// Alias returns the refined answer for a & b.
func (o *RefinedOracle) Alias(a, b ssa.Value) AliasResult {
	result := o.Base.Alias(a, b)
	if result != MayAlias || o.Solver == nil {
		return result
	} else if !o.fixed.Contains(a) || !o.fixed.Contains(b) || !IsQuantity(a) || !IsQuantity(b) {
		return result
	}

	key := newAliasKey(a, b)
	if v, ok := o.cache.Get(key); ok {
		return v.(AliasResult)
	}

	t := time.Now()
	result = o.query(a, b, result)
	o.record(key, time.Since(t))

	o.cache = o.cache.Set(key, result)
	return result
}

func (o *RefinedOracle) query(a, b ssa.Value, base AliasResult) AliasResult {
	lhs, err := NewValueExpr(a)
	if err != nil {
		return base
	}
	rhs, err := NewValueExpr(b)
	if err != nil {
		return base
	}
	eq, err := NewBoolExpr(EQ, lhs, rhs)
	if err != nil {
		return base
	}

	if sat, err := o.Solver.Satisfiable(eq); err != nil {
		o.Logger.WithError(err).Debugf("alias query failed: %s", eq)
		return base
	} else if !sat {
		return NoAlias
	}

	if ok, err := o.Solver.Provable(eq); err != nil {
		o.Logger.WithError(err).Debugf("alias query failed: %s", eq)
		return base
	} else if ok {
		return MustAlias
	}
	return MayAlias
}

func (o *RefinedOracle) record(key aliasKey, d time.Duration) {
	o.stats.N++
	o.stats.Time += d

	if o.SlowQueries <= 0 {
		return
	}
	o.stats.Slowest = append(o.stats.Slowest, SlowQuery{A: key.a, B: key.b, Duration: d})
	sort.SliceStable(o.stats.Slowest, func(i, j int) bool {
		return o.stats.Slowest[i].Duration > o.stats.Slowest[j].Duration
	})
	if len(o.stats.Slowest) > o.SlowQueries {
		o.stats.Slowest = o.stats.Slowest[:o.SlowQueries]
	}
}

// Stats returns query statistics.
func (o *RefinedOracle) Stats() AliasStats {
	return o.stats
}

// AliasStats represents statistics for solver-backed alias queries.
type AliasStats struct {
	N       int
	Time    time.Duration
	Slowest []SlowQuery
}

// SlowQuery records the duration of a single solver-backed query.
type SlowQuery struct {
	A, B     string
	Duration time.Duration
}

// aliasKey is an unordered pair of value names.
type aliasKey struct {
	a, b string
}

func newAliasKey(a, b ssa.Value) aliasKey {
	an, bn := ValueName(a), ValueName(b)
	if bn < an {
		an, bn = bn, an
	}
	return aliasKey{a: an, b: bn}
}

// aliasKeyComparer compares two alias keys. Implements immutable.Comparer.
type aliasKeyComparer struct{}

// Compare returns -1 if a is less than b, returns 1 if a is greater than b, and
// returns 0 if a is equal to b. Panic if a or b is not an aliasKey.
func (c *aliasKeyComparer) Compare(a, b interface{}) int {
	x, y := a.(aliasKey), b.(aliasKey)
	if cmp := strings.Compare(x.a, y.a); cmp != 0 {
		return cmp
	}
	return strings.Compare(x.b, y.b)
}

func isArrayPointer(v ssa.Value) bool {
	ptr, ok := v.Type().Underlying().(*types.Pointer)
	if !ok {
		return false
	}
	_, ok = ptr.Elem().Underlying().(*types.Array)
	return ok
}
