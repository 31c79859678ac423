// Package pointwise implements the full per-tree routing the engine uses to
// turn a DecisionForest into a scalar evaluator: every tree is assigned, in
// order of preference, to the single-input evaluator (when every one of its
// conditions reads the same float or int64 input), then to the bitmask
// evaluator (oblivious view, else a direct small tree), then to the regular
// tree walker, with each stage gated by a CompilationParams flag so callers
// can force any subset off for testing or benchmarking.
package pointwise

import (
	"errors"

	"github.com/katalvlaran/ensemble/condition"
	"github.com/katalvlaran/ensemble/evalcore"
	"github.com/katalvlaran/ensemble/forest"
	"github.com/katalvlaran/ensemble/frame"
	"github.com/katalvlaran/ensemble/qtype"
	"github.com/katalvlaran/ensemble/singleinput"
)

// ErrNoOutputs is returned by Compile when outputs is empty.
var ErrNoOutputs = errors.New("pointwise: outputs must be non-empty")

// ErrOverlappingGroups is returned by Compile when more than one output
// group's filter matches the same tree; group filters must partition the
// forest's trees, not overlap them.
var ErrOverlappingGroups = errors.New("pointwise: intersection of groups' filtered trees is not empty")

// Output pairs a TreeFilter selecting a subset of a forest's trees with the
// output slot their combined contribution is written to.
type Output struct {
	Filter forest.TreeFilter
	Slot   frame.OutputSlot
}

// CompilationParams gates which of the three evaluators a tree may be
// routed to. All three default to enabled; disabling one forces every tree
// it would otherwise have claimed onto the next stage, or a compile error
// if none can take it.
type CompilationParams struct {
	enableSingleInput bool
	enableBitmask     bool
	enableRegular     bool
}

// CompilationOption configures a CompilationParams.
type CompilationOption func(*CompilationParams)

// WithSingleInputEval toggles routing single-input-eligible trees to the
// piecewise-constant evaluator.
func WithSingleInputEval(enabled bool) CompilationOption {
	return func(p *CompilationParams) { p.enableSingleInput = enabled }
}

// WithBitmaskEval toggles routing bitmask-eligible trees to the mask
// evaluator.
func WithBitmaskEval(enabled bool) CompilationOption {
	return func(p *CompilationParams) { p.enableBitmask = enabled }
}

// WithRegularEval toggles routing trees to the general tree walker.
func WithRegularEval(enabled bool) CompilationOption {
	return func(p *CompilationParams) { p.enableRegular = enabled }
}

func newCompilationParams(opts ...CompilationOption) CompilationParams {
	p := CompilationParams{enableSingleInput: true, enableBitmask: true, enableRegular: true}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// Evaluator is a compiled pointwise forest evaluator: call Eval once per
// row, after populating in with every required input.
type Evaluator struct {
	core         *evalcore.Evaluator
	single       *singleinput.Evaluator
	groupOutputs []frame.OutputSlot
}

// Compile builds an Evaluator for f. inputSlots must bind every input id
// f.RequiredQTypes names to a Slot in the frame layout in uses will be
// evaluated against. outputs describes how trees partition into output
// groups; outputs must be non-empty, and at most one group's filter may
// match any given tree — Compile returns ErrOverlappingGroups otherwise.
func Compile(f *forest.DecisionForest, inputSlots map[int]frame.Slot, outputs []Output, opts ...CompilationOption) (*Evaluator, error) {
	if len(outputs) == 0 {
		return nil, ErrNoOutputs
	}
	params := newCompilationParams(opts...)

	bound := make(map[int]qtype.QType, len(inputSlots))
	for id, s := range inputSlots {
		bound[id] = s.QType()
	}
	if err := f.ValidateInputSlots(bound); err != nil {
		return nil, err
	}

	groupOutputs := make([]frame.OutputSlot, len(outputs))
	for i, o := range outputs {
		groupOutputs[i] = o.Slot
	}

	siBuilder := singleinput.NewBuilder(len(outputs))
	var coreGroups []evalcore.TreeGroup

	trees := f.Trees()
	for ti := range trees {
		t := &trees[ti]
		matched := -1
		for gi, o := range outputs {
			if !o.Filter.Matches(t.Tag) {
				continue
			}
			if matched != -1 {
				return nil, ErrOverlappingGroups
			}
			matched = gi
		}
		if matched == -1 {
			continue
		}

		routed := false
		if params.enableSingleInput {
			if sig, ok := singleInputSignature(t); ok {
				if err := siBuilder.AddTree(matched, sig.InputID, sig.QType, *t); err == nil {
					routed = true
				}
			}
		}
		if !routed {
			coreGroups = append(coreGroups, evalcore.TreeGroup{Tree: t, GroupIndex: matched})
		}
	}

	core, err := evalcore.Compile(coreGroups, inputSlots, evalcore.Params{
		EnableRegular: params.enableRegular,
		EnableBitmask: params.enableBitmask,
	})
	if err != nil {
		return nil, err
	}

	var single *singleinput.Evaluator
	if !siBuilder.Empty() {
		single, err = siBuilder.Build(inputSlots)
		if err != nil {
			return nil, err
		}
	}

	return &Evaluator{core: core, single: single, groupOutputs: groupOutputs}, nil
}

// Eval adds every tree's contribution into its output group's slot in out,
// reading inputs from in. in and out may be the same Frame.
func (e *Evaluator) Eval(in *frame.Frame, out *frame.Frame) {
	e.core.Eval(in, e.groupOutputs, out)
	if e.single != nil {
		e.single.Eval(in, e.groupOutputs, out)
	}
}

// singleInputSignature reports the (inputID, qtype) every split node in t
// shares, when t has at least one split and every condition reads the same
// float32 or int64 input.
func singleInputSignature(t *forest.DecisionTree) (condition.InputSignature, bool) {
	if len(t.SplitNodes) == 0 {
		return condition.InputSignature{}, false
	}
	var sig condition.InputSignature
	for i, sn := range t.SplitNodes {
		s := sn.Condition.InputSignatures()[0]
		if s.QType != qtype.Float32 && s.QType != qtype.Int64 {
			return condition.InputSignature{}, false
		}
		if i == 0 {
			sig = s
		} else if s != sig {
			return condition.InputSignature{}, false
		}
	}
	return sig, true
}
