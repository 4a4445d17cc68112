// Package callback implements the descriptor dispatch used by resx's
// descriptor-configured hooks: access-matrix path and node predicates,
// callback-built hashers, and the callback RPC transport are invoked
// through it. Content combiners and reducer hooks are plain function
// values and are called directly, not through this package.
//
// A descriptor is one of four shapes: a bare function with a known
// arity, a registry-resolved (module, function, arity) triple, a
// (module, function, prebound args) triple, or the latter plus an
// input placement controlling where call-time inputs are spliced into
// the prebound argument list.
package callback

import (
	"context"
	"sort"

	"github.com/meigma/resx/resource"
)

// Func is the callable shape every descriptor resolves to.
type Func func(ctx context.Context, args ...any) (any, error)

// Requirement states whether call-time inputs must be delivered.
type Requirement int

const (
	// Required inputs must reach the callee; discarding them is an error.
	Required Requirement = iota

	// Optional inputs may be discarded by a none-placement descriptor.
	Optional
)

// Placement controls where inputs are spliced into prebound arguments.
type Placement struct {
	index     int
	positions []int
	none      bool
	set       bool
}

// At places all inputs contiguously at the given index of the prebound
// argument list.
func At(index int) Placement {
	return Placement{index: index, set: true}
}

// Positions places each input at the corresponding position of the
// final argument list, ascending, interleaving the prebound arguments
// into the remaining slots.
func Positions(p ...int) Placement {
	return Placement{positions: p, set: true}
}

// NoInputs discards call-time inputs. Only valid with Optional.
func NoInputs() Placement {
	return Placement{none: true, set: true}
}

// Descriptor identifies a callable plus its argument protocol.
type Descriptor struct {
	fn        Func
	arity     int
	module    string
	function  string
	named     bool
	prebound  []any
	bound     bool
	placement Placement
}

// New describes a bare function with a known arity. An arity of -1
// accepts any number of inputs.
func New(fn Func, arity int) Descriptor {
	return Descriptor{fn: fn, arity: arity}
}

// Named describes a registry-resolved function with a fixed arity.
func Named(module, function string, arity int) Descriptor {
	return Descriptor{module: module, function: function, named: true, arity: arity}
}

// Bound describes a registry-resolved function with prebound arguments;
// call-time inputs are appended after them.
func Bound(module, function string, args ...any) Descriptor {
	return Descriptor{module: module, function: function, named: true, bound: true, prebound: args}
}

// BoundAt is Bound with an explicit input placement.
func BoundAt(module, function string, placement Placement, args ...any) Descriptor {
	return Descriptor{module: module, function: function, named: true, bound: true, prebound: args, placement: placement}
}

// Zero reports whether the descriptor is the zero value (no callable).
func (d Descriptor) Zero() bool {
	return d.fn == nil && !d.named
}

// Call dispatches inputs to the descriptor's callable according to its
// placement rules.
func Call(ctx context.Context, d Descriptor, inputs []any, req Requirement) (any, error) {
	fn := d.fn
	if d.named {
		resolved, ok := Lookup(d.module, d.function)
		if !ok {
			return nil, resource.Internalf("callback %s.%s is not registered", d.module, d.function)
		}
		fn = resolved
	}
	if fn == nil {
		return nil, resource.Internalf("callback descriptor has no callable")
	}

	args, err := d.arguments(inputs, req)
	if err != nil {
		return nil, err
	}
	return fn(ctx, args...)
}

// arguments assembles the final argument list per the dispatch rules.
func (d Descriptor) arguments(inputs []any, req Requirement) ([]any, error) {
	// Explicit-arity forms take the inputs verbatim.
	if !d.bound {
		if d.arity >= 0 && len(inputs) != d.arity {
			return nil, resource.Internalf("callback arity mismatch: want %d inputs, have %d", d.arity, len(inputs))
		}
		return inputs, nil
	}

	p := d.placement
	switch {
	case !p.set:
		// No placement: append inputs after the prebound arguments.
		return append(append([]any{}, d.prebound...), inputs...), nil

	case p.none:
		if req == Required {
			return nil, resource.Internalf("callback discards required inputs")
		}
		return append([]any{}, d.prebound...), nil

	case p.positions != nil:
		return mergeAtPositions(d.prebound, inputs, p.positions)

	default:
		// Integer placement: split the prebound list and splice the
		// inputs in between.
		idx := p.index
		if idx < 0 || idx > len(d.prebound) {
			return nil, resource.Internalf("callback placement index %d out of range", idx)
		}
		args := make([]any, 0, len(d.prebound)+len(inputs))
		args = append(args, d.prebound[:idx]...)
		args = append(args, inputs...)
		args = append(args, d.prebound[idx:]...)
		return args, nil
	}
}

// mergeAtPositions zips (position, input) pairs and merges them into the
// prebound list in ascending position order, interleaving the remaining
// prebound arguments into the unclaimed slots.
func mergeAtPositions(prebound, inputs []any, positions []int) ([]any, error) {
	if len(positions) != len(inputs) {
		return nil, resource.Internalf("callback placement: %d positions for %d inputs", len(positions), len(inputs))
	}

	type slot struct {
		pos   int
		value any
	}
	slots := make([]slot, len(positions))
	for i, pos := range positions {
		if pos < 0 {
			return nil, resource.Internalf("callback placement position %d is negative", pos)
		}
		slots[i] = slot{pos: pos, value: inputs[i]}
	}
	sort.SliceStable(slots, func(i, j int) bool { return slots[i].pos < slots[j].pos })

	total := len(prebound) + len(inputs)
	args := make([]any, 0, total)
	next := 0 // cursor into prebound
	for i := 0; i < total; i++ {
		if len(slots) > 0 && slots[0].pos == i {
			args = append(args, slots[0].value)
			slots = slots[1:]
			continue
		}
		if next >= len(prebound) {
			return nil, resource.Internalf("callback placement position %d beyond argument list", slots[0].pos)
		}
		args = append(args, prebound[next])
		next++
	}
	return args, nil
}
