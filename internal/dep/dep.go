// Copyright 2024 The Stu Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package dep implements the dependency algebra (spec.md §3 "Dep", §4.2
// "Dep normalization"). Dep is a sum type; this package follows the same
// shape android/paths.go uses for its Path sum type (an interface plus
// several concrete struct implementations, switched on with a type switch)
// rather than a tagged union struct, since Go has no native sum types and
// this is the teacher's own idiom for one.
package dep

import (
	"fmt"

	"stu/internal/flags"
	"stu/internal/hashdep"
	"stu/internal/name"
	"stu/internal/place"
)

// Dep is the sum type of dependency forms: Plain, Dynamic, Concat,
// Compound, or Root.
type Dep interface {
	isDep()
	// LinkFlags returns the edge-only flags carried directly on this node
	// (InputRedirect/ResultNotify/ResultCopy/PhaseB); Concat/Compound/Root
	// never carry them directly and return 0.
	LinkFlags() flags.Flags
	// Place returns the node's own source location for diagnostics.
	Place() place.Place
}

// Placed records, for each of the three placed flags, the source Place
// where it was attached (the zero Place if the flag is absent).
type Placed struct {
	Persistent place.Place
	Optional   place.Place
	Trivial    place.Place
}

// Plain is a PlaceTarget plus link flags, an optional variable name, and
// places for each placed flag (spec.md §3).
type Plain struct {
	Target       name.PlaceTarget
	Flags        flags.Flags
	VariableName string // non-empty iff Flags.Has(flags.Variable)
	Placed       Placed
	RedirectAt   place.Place // set iff Flags.Has(flags.InputRedirect)
}

func (*Plain) isDep() {}

func (p *Plain) LinkFlags() flags.Flags { return p.Flags.Link() }
func (p *Plain) Place() place.Place     { return p.Target.Place }

// Dynamic wraps exactly one inner Dep; carries its own flags and places.
type Dynamic struct {
	Inner      Dep
	Flags      flags.Flags
	Placed     Placed
	RedirectAt place.Place
	At         place.Place
}

func (*Dynamic) isDep() {}

func (d *Dynamic) LinkFlags() flags.Flags { return d.Flags.Link() }
func (d *Dynamic) Place() place.Place     { return d.At }

// Concat is an ordered list of >=2 Deps representing the Cartesian-product
// expansion of its children. A normalized Concat's children are never
// themselves Concat (spec.md invariant 4).
type Concat struct {
	Children []Dep
	At       place.Place
}

func (*Concat) isDep() {}

func (c *Concat) LinkFlags() flags.Flags { return 0 }
func (c *Concat) Place() place.Place     { return c.At }

// Compound is an ordered list of Deps treated as a syntactic group. It
// never survives normalize() except transiently as a Concat child while
// ConcatExecutor is assembling buckets (spec.md §4.9).
type Compound struct {
	Children []Dep
	At       place.Place
}

func (*Compound) isDep() {}

func (c *Compound) LinkFlags() flags.Flags { return 0 }
func (c *Compound) Place() place.Place     { return c.At }

// Root is the synthetic parent of top-level requests; exactly one instance
// exists per build.
type Root struct{}

func (*Root) isDep() {}

func (*Root) LinkFlags() flags.Flags { return 0 }
func (*Root) Place() place.Place     { return place.Place{} }

// IsNormalized reports whether d is Plain, Dynamic over a normalized Dep,
// or Concat whose children are each normalized and are never themselves
// Concat (spec.md §3 "Normalized form"). It recurses through every level
// of Dynamic and Concat nesting, matching the definition's own recursive
// shape.
func IsNormalized(d Dep) bool {
	switch v := d.(type) {
	case *Plain:
		return true
	case *Dynamic:
		return IsNormalized(v.Inner)
	case *Concat:
		if len(v.Children) < 2 {
			return false
		}
		for _, c := range v.Children {
			if _, isConcat := c.(*Concat); isConcat {
				return false
			}
			if !IsNormalized(c) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// HashDepOf builds the flat HashDep encoding of a normalized, non-Compound,
// non-Concat Dep (spec.md §3 "HashDep").
func HashDepOf(d Dep) hashdep.HashDep {
	switch v := d.(type) {
	case *Plain:
		return hashdep.New(v.Flags, v.Target.Name.Literal())
	case *Dynamic:
		return hashdep.Wrap(v.Flags, HashDepOf(v.Inner))
	default:
		panic(fmt.Sprintf("hashdep: dep %T is not a valid HashDep source", d))
	}
}

// Normalize appends zero or more normalized Deps to out, following spec.md
// §4.2. Logical errors encountered while expanding a Concat are appended to
// errs and that particular combination is skipped, so a single malformed
// concatenation does not abort unrelated ones (the caller decides, via -k,
// whether to keep going at all).
func Normalize(d Dep, out []Dep, errs *[]*place.Error) []Dep {
	switch v := d.(type) {
	case *Plain:
		return append(out, v)
	case *Dynamic:
		var inner []Dep
		inner = Normalize(v.Inner, inner, errs)
		for _, piece := range inner {
			out = append(out, &Dynamic{
				Inner:      piece,
				Flags:      v.Flags,
				Placed:     v.Placed,
				RedirectAt: v.RedirectAt,
				At:         v.At,
			})
		}
		return out
	case *Compound:
		for _, c := range v.Children {
			out = Normalize(c, out, errs)
		}
		return out
	case *Concat:
		pieces := normalizeConcat(v.Children, errs)
		return append(out, pieces...)
	case *Root:
		return append(out, v)
	default:
		panic(fmt.Sprintf("dep: unknown Dep variant %T", d))
	}
}

// normalizeConcat implements normalize_concat: build the normalized head
// and the normalized rest, then take the Cartesian product via concat.
func normalizeConcat(children []Dep, errs *[]*place.Error) []Dep {
	if len(children) == 0 {
		return nil
	}
	if len(children) == 1 {
		var out []Dep
		return Normalize(children[0], out, errs)
	}

	var head []Dep
	head = Normalize(children[0], head, errs)
	rest := normalizeConcat(children[1:], errs)

	var out []Dep
	for _, h := range head {
		for _, r := range rest {
			combined, err := Concatenate(h, r)
			if err != nil {
				*errs = append(*errs, err)
				continue
			}
			out = append(out, combined)
		}
	}
	return out
}

// Concatenate combines two normalized Deps into one (spec.md §4.2
// "concat(a, b)"). It rejects the five forbidden combinations with a
// logical error attributed to the offending side's place.
func Concatenate(a, b Dep) (Dep, *place.Error) {
	if a.LinkFlags().Has(flags.InputRedirect) {
		return nil, place.NewLogical(a.Place(), "left side of concatenation has input redirection, which cannot propagate through concatenation")
	}
	if b.LinkFlags().Has(flags.InputRedirect) {
		return nil, place.NewLogical(b.Place(), "right side of concatenation has input redirection; redirection must be leftmost")
	}
	if bp, ok := b.(*Plain); ok && bp.Flags.Placed() != 0 {
		return nil, place.NewLogical(b.Place(), "right side of concatenation is placed (-p/-o/-t), which must not be introduced mid-concatenation")
	}
	if isTransient(b) {
		return nil, place.NewLogical(b.Place(), "right side of concatenation is transient; only files may be concatenated")
	}
	if isVariable(a) {
		return nil, place.NewLogical(a.Place(), "left side of concatenation is a variable dependency, which is not concatenable")
	}
	if isVariable(b) {
		return nil, place.NewLogical(b.Place(), "right side of concatenation is a variable dependency, which is not concatenable")
	}

	ap, aPlain := a.(*Plain)
	bp, bPlain := b.(*Plain)
	if aPlain && bPlain {
		if !ap.Target.Name.Unparametrized() || !bp.Target.Name.Unparametrized() {
			return nil, place.NewLogical(a.Place(), "both sides of a concatenation must be unparametrized by the time concatenation is performed")
		}
		return &Plain{
			Target: name.PlaceTarget{
				Name:      name.NewLiteral(ap.Target.Name.Literal() + bp.Target.Name.Literal()),
				Transient: false,
				Place:     ap.Target.Place,
			},
			Flags: ap.Flags | bp.Flags,
		}, nil
	}

	children := append(flattenConcat(a), flattenConcat(b)...)
	return &Concat{Children: children, At: a.Place()}, nil
}

func flattenConcat(d Dep) []Dep {
	if c, ok := d.(*Concat); ok {
		return append([]Dep(nil), c.Children...)
	}
	return []Dep{d}
}

func isTransient(d Dep) bool {
	if p, ok := d.(*Plain); ok {
		return p.Target.Transient
	}
	return false
}

func isVariable(d Dep) bool {
	if p, ok := d.(*Plain); ok {
		return p.Flags.Has(flags.Variable)
	}
	return false
}

// WithLinkFlags returns a shallow copy of a Plain dep with additional link
// flags unioned in; used by the executor graph to union edge flags on a
// cache hit (spec.md §4.4) without mutating a Dep reachable from elsewhere.
func (p *Plain) WithLinkFlags(add flags.Flags) *Plain {
	cp := *p
	cp.Flags = cp.Flags | add
	return &cp
}
