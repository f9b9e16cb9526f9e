// Package shapeguard rejects oversized queries before any resolution begins.
//
// Both checks are pure static functions of the query's shape: nesting depth,
// and a weighted field count where list-producing fields multiply the weight
// of everything beneath them. Data never influences the verdict, so a
// rejected query costs the backend nothing.
package shapeguard

import (
	"github.com/graphql-go/graphql/language/ast"

	"github.com/mercatolabs/mercato/internal/gqlerrors"
)

const (
	DefaultMaxDepth      = 10
	DefaultMaxComplexity = 1000
	DefaultListWeight    = 10

	// multiplierCeiling stops nested list fields from overflowing the cost
	// accumulator; any multiplier this large exceeds every sane bound anyway.
	multiplierCeiling = 1 << 20
)

// Config bounds the accepted query shapes. IsListField reports whether a
// field name produces a list; it is supplied by the schema layer so the guard
// never guesses from naming conventions.
type Config struct {
	MaxDepth      int
	MaxComplexity int
	ListWeight    int
	IsListField   func(fieldName string) bool
}

type Guard struct {
	cfg Config
}

func New(cfg Config) *Guard {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultMaxDepth
	}
	if cfg.MaxComplexity <= 0 {
		cfg.MaxComplexity = DefaultMaxComplexity
	}
	if cfg.ListWeight <= 0 {
		cfg.ListWeight = DefaultListWeight
	}
	if cfg.IsListField == nil {
		cfg.IsListField = func(string) bool { return false }
	}
	return &Guard{cfg: cfg}
}

// Check walks every operation in the document and fails with SHAPE_REJECTED
// if any exceeds the depth or complexity bound.
func (g *Guard) Check(doc *ast.Document) error {
	fragments := make(map[string]*ast.FragmentDefinition)
	for _, def := range doc.Definitions {
		if frag, ok := def.(*ast.FragmentDefinition); ok {
			fragments[frag.Name.Value] = frag
		}
	}

	for _, def := range doc.Definitions {
		op, ok := def.(*ast.OperationDefinition)
		if !ok {
			continue
		}

		w := walker{cfg: g.cfg, fragments: fragments, visiting: make(map[string]bool)}

		depth := w.depth(op.SelectionSet)
		if depth > g.cfg.MaxDepth {
			return gqlerrors.ShapeRejected("query depth %d exceeds maximum of %d", depth, g.cfg.MaxDepth)
		}

		cost := w.cost(op.SelectionSet, 1)
		if cost > g.cfg.MaxComplexity {
			return gqlerrors.ShapeRejected("query complexity %d exceeds maximum of %d", cost, g.cfg.MaxComplexity)
		}
	}

	return nil
}

type walker struct {
	cfg       Config
	fragments map[string]*ast.FragmentDefinition
	// visiting guards fragment spreads against cycles; a cyclic spread is
	// counted once and otherwise ignored (validation rejects it later).
	visiting map[string]bool
}

func (w *walker) depth(set *ast.SelectionSet) int {
	if set == nil {
		return 0
	}

	max := 0
	for _, sel := range set.Selections {
		var d int
		switch s := sel.(type) {
		case *ast.Field:
			d = 1 + w.depth(s.SelectionSet)
		case *ast.InlineFragment:
			d = w.depth(s.SelectionSet)
		case *ast.FragmentSpread:
			d = w.fragmentDepth(s.Name.Value)
		}
		if d > max {
			max = d
		}
	}
	return max
}

func (w *walker) fragmentDepth(name string) int {
	frag, ok := w.fragments[name]
	if !ok || w.visiting[name] {
		return 0
	}
	w.visiting[name] = true
	defer delete(w.visiting, name)
	return w.depth(frag.SelectionSet)
}

func (w *walker) cost(set *ast.SelectionSet, multiplier int) int {
	if set == nil {
		return 0
	}

	total := 0
	for _, sel := range set.Selections {
		switch s := sel.(type) {
		case *ast.Field:
			total += multiplier

			childMultiplier := multiplier
			if w.cfg.IsListField(s.Name.Value) {
				childMultiplier *= w.cfg.ListWeight
				if childMultiplier > multiplierCeiling {
					childMultiplier = multiplierCeiling
				}
			}
			total += w.cost(s.SelectionSet, childMultiplier)
		case *ast.InlineFragment:
			total += w.cost(s.SelectionSet, multiplier)
		case *ast.FragmentSpread:
			total += w.fragmentCost(s.Name.Value, multiplier)
		}
	}
	return total
}

func (w *walker) fragmentCost(name string, multiplier int) int {
	frag, ok := w.fragments[name]
	if !ok || w.visiting[name] {
		return 0
	}
	w.visiting[name] = true
	defer delete(w.visiting, name)
	return w.cost(frag.SelectionSet, multiplier)
}
