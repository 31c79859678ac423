// Package forest holds the immutable data model every evaluator compiles
// from: NodeId, SplitNode, DecisionTree, DecisionForest, and TreeFilter.
// The layout mirrors core/types.go's approach to a validated, immutable
// handle type built through a single fallible constructor rather than
// exported mutable fields.
package forest

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/katalvlaran/ensemble/condition"
	"github.com/katalvlaran/ensemble/fingerprint"
	"github.com/katalvlaran/ensemble/qtype"
)

// Sentinel errors returned while validating trees and forests.
var (
	// ErrNoTrees is returned by FromTrees when given an empty slice.
	ErrNoTrees = errors.New("forest: forest must contain at least one tree")
	// ErrBadAdjustmentCount is returned when a tree's adjustments slice
	// does not have exactly len(split_nodes)+1 entries.
	ErrBadAdjustmentCount = errors.New("forest: adjustments count must equal split node count + 1")
	// ErrChildOutOfRange is returned when a split node's child references
	// a split index or adjustment index outside the tree's bounds.
	ErrChildOutOfRange = errors.New("forest: child node id out of range")
	// ErrConflictingQType is returned when two trees disagree on the qtype
	// of the same input id.
	ErrConflictingQType = errors.New("forest: conflicting qtype for input")
	// ErrMissingInput is returned when an evaluator is compiled without a
	// slot for an input the forest requires.
	ErrMissingInput = errors.New("forest: required input has no bound slot")
)

// NodeId addresses either a split node or a leaf (adjustment) within a
// single DecisionTree. Non-negative values are split node indices; negative
// values encode leaf/adjustment indices as -(index)-1, so that 0 (a valid
// split index, the tree root) and -1 (adjustment index 0) are distinguishable.
type NodeId int64

// SplitNodeID builds a NodeId addressing the split node at idx.
func SplitNodeID(idx int) NodeId { return NodeId(idx) }

// AdjustmentID builds a NodeId addressing the leaf adjustment at idx.
func AdjustmentID(idx int) NodeId { return NodeId(-idx - 1) }

// IsLeaf reports whether the id addresses a leaf/adjustment.
func (n NodeId) IsLeaf() bool { return n < 0 }

// SplitIndex returns the split node index; valid only when !IsLeaf().
func (n NodeId) SplitIndex() int { return int(n) }

// AdjustmentIndex returns the adjustment index; valid only when IsLeaf().
func (n NodeId) AdjustmentIndex() int { return int(-n - 1) }

// SplitNode is one internal node of a DecisionTree: a condition plus the two
// children to follow depending on its outcome.
type SplitNode struct {
	Condition    condition.SplitCondition
	ChildIfFalse NodeId
	ChildIfTrue  NodeId
}

// Tag carries a tree's provenance within an ensemble: the boosting step it
// was added at, and which submodel (in a multi-submodel forest) it belongs
// to. TreeFilter selects trees by matching against this.
type Tag struct {
	Step       int
	SubmodelID int
}

// DecisionTree is one tree in a forest: a flat array of split nodes (the
// root is always split node 0 when len(SplitNodes) > 0) plus the leaf
// adjustments those splits route to, and a weight multiplying every
// adjustment this tree contributes.
type DecisionTree struct {
	SplitNodes  []SplitNode
	Adjustments []float32
	Weight      float32
	Tag         Tag
}

// RootID returns the NodeId of the tree's root: split node 0 if the tree has
// any splits, otherwise the tree's single adjustment (a constant tree).
func (t *DecisionTree) RootID() NodeId {
	if len(t.SplitNodes) == 0 {
		return AdjustmentID(0)
	}
	return SplitNodeID(0)
}

func validateTree(t DecisionTree) error {
	n := len(t.SplitNodes)
	if len(t.Adjustments) != n+1 {
		return fmt.Errorf("%w: got %d split nodes and %d adjustments", ErrBadAdjustmentCount, n, len(t.Adjustments))
	}
	for i, sn := range t.SplitNodes {
		for _, child := range []NodeId{sn.ChildIfFalse, sn.ChildIfTrue} {
			if child.IsLeaf() {
				idx := child.AdjustmentIndex()
				if idx < 0 || idx >= len(t.Adjustments) {
					return fmt.Errorf("%w: split node %d references adjustment %d", ErrChildOutOfRange, i, idx)
				}
				continue
			}
			idx := child.SplitIndex()
			if idx < 1 || idx >= n {
				return fmt.Errorf("%w: split node %d references split %d", ErrChildOutOfRange, i, idx)
			}
		}
	}
	return nil
}

// TreeFilter selects a subset of a forest's trees by boosting step range
// and submodel membership. The zero value is not usable; use
// DefaultTreeFilter or NewTreeFilter.
type TreeFilter struct {
	StepFrom   int
	StepTo     int // exclusive; -1 means unbounded
	Submodels  map[int]struct{}
	allSubmods bool
}

// DefaultTreeFilter selects every tree regardless of step or submodel.
func DefaultTreeFilter() TreeFilter {
	return TreeFilter{StepFrom: 0, StepTo: -1, allSubmods: true}
}

// NewTreeFilter selects trees whose step lies in [stepFrom, stepTo) (stepTo
// == -1 means unbounded) and whose submodel id is in submodels (empty means
// every submodel).
func NewTreeFilter(stepFrom, stepTo int, submodels ...int) TreeFilter {
	f := TreeFilter{StepFrom: stepFrom, StepTo: stepTo}
	if len(submodels) == 0 {
		f.allSubmods = true
		return f
	}
	f.Submodels = make(map[int]struct{}, len(submodels))
	for _, s := range submodels {
		f.Submodels[s] = struct{}{}
	}
	return f
}

// Matches reports whether a tree tagged with tag passes this filter.
func (f TreeFilter) Matches(tag Tag) bool {
	if tag.Step < f.StepFrom {
		return false
	}
	if f.StepTo >= 0 && tag.Step >= f.StepTo {
		return false
	}
	if f.allSubmods {
		return true
	}
	_, ok := f.Submodels[tag.SubmodelID]
	return ok
}

// DecisionForest is an immutable, validated collection of decision trees
// sharing a single input-id space. Construct with FromTrees; the zero value
// is invalid.
type DecisionForest struct {
	trees          []DecisionTree
	requiredQTypes map[int]qtype.QType
	submodelCount  int
	stepCount      int
	fingerprint    uint64
}

// FromTrees validates and wraps trees into a DecisionForest. Every tree is
// checked independently (adjustment counts, child bounds); input ids shared
// across trees must agree on qtype.
func FromTrees(trees []DecisionTree) (*DecisionForest, error) {
	if len(trees) == 0 {
		return nil, ErrNoTrees
	}
	required := make(map[int]qtype.QType)
	maxStep, maxSubmodel := 0, 0
	hashes := make([]uint64, 0, len(trees))
	for i, t := range trees {
		if err := validateTree(t); err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		for _, sn := range t.SplitNodes {
			for _, sig := range sn.Condition.InputSignatures() {
				if existing, ok := required[sig.InputID]; ok && existing != sig.QType {
					return nil, fmt.Errorf("%w: input #%d", ErrConflictingQType, sig.InputID)
				}
				required[sig.InputID] = sig.QType
			}
		}
		if t.Tag.Step+1 > maxStep {
			maxStep = t.Tag.Step + 1
		}
		if t.Tag.SubmodelID+1 > maxSubmodel {
			maxSubmodel = t.Tag.SubmodelID + 1
		}
		hashes = append(hashes, treeFingerprint(t))
	}
	return &DecisionForest{
		trees:          trees,
		requiredQTypes: required,
		submodelCount:  maxSubmodel,
		stepCount:      maxStep,
		fingerprint:    fingerprint.Combine(hashes...),
	}, nil
}

func treeFingerprint(t DecisionTree) uint64 {
	b := fingerprint.New().
		WriteUint64(uint64(t.Tag.Step)).
		WriteUint64(uint64(t.Tag.SubmodelID)).
		WriteFloat32(t.Weight)
	for _, sn := range t.SplitNodes {
		b.WriteUint64(sn.Condition.Hash())
		b.WriteUint64(uint64(sn.ChildIfFalse))
		b.WriteUint64(uint64(sn.ChildIfTrue))
	}
	for _, a := range t.Adjustments {
		b.WriteFloat32(a)
	}
	return b.Sum64()
}

// Trees returns the forest's trees in compile order. The returned slice
// must not be mutated.
func (f *DecisionForest) Trees() []DecisionTree { return f.trees }

// RequiredQTypes returns the qtype every input id referenced by a split
// condition must be bound to. The returned map must not be mutated.
func (f *DecisionForest) RequiredQTypes() map[int]qtype.QType { return f.requiredQTypes }

// SubmodelCount returns one plus the highest submodel id used by any tree.
func (f *DecisionForest) SubmodelCount() int { return f.submodelCount }

// StepCount returns one plus the highest boosting step used by any tree.
func (f *DecisionForest) StepCount() int { return f.stepCount }

// Fingerprint returns a stable hash identifying this forest's structure and
// weights, suitable for cache keys.
func (f *DecisionForest) Fingerprint() uint64 { return f.fingerprint }

// ValidateInputSlots checks that bound has a qtype for every input the
// forest requires and that the qtypes agree.
func (f *DecisionForest) ValidateInputSlots(bound map[int]qtype.QType) error {
	for id, want := range f.requiredQTypes {
		got, ok := bound[id]
		if !ok {
			return fmt.Errorf("%w: #%d", ErrMissingInput, id)
		}
		if got != want {
			return fmt.Errorf("%w: #%d expected %s got %s", ErrConflictingQType, id, want, got)
		}
	}
	return nil
}

// NaiveEvaluation computes a tree's contribution by walking its split nodes
// directly, the reference semantics every specialized evaluator must agree
// with. inputs maps input id to value; missing entries are treated as
// qtype.Missing.
func NaiveEvaluation(t *DecisionTree, inputs map[int]qtype.Value) float32 {
	id := t.RootID()
	for !id.IsLeaf() {
		node := t.SplitNodes[id.SplitIndex()]
		sig := node.Condition.InputSignatures()[0]
		v, ok := inputs[sig.InputID]
		if !ok {
			v = qtype.Missing(sig.QType)
		}
		if node.Condition.Evaluate(v) {
			id = node.ChildIfTrue
		} else {
			id = node.ChildIfFalse
		}
	}
	return t.Adjustments[id.AdjustmentIndex()] * t.Weight
}

// Eval sums NaiveEvaluation over every tree matching filter. It is the
// forest-level reference used by tests to check specialized evaluators.
func (f *DecisionForest) Eval(inputs map[int]qtype.Value, filter TreeFilter) float32 {
	var sum float32
	for i := range f.trees {
		if !filter.Matches(f.trees[i].Tag) {
			continue
		}
		sum += NaiveEvaluation(&f.trees[i], inputs)
	}
	return sum
}

// DebugString renders the forest the way the engine's to_debug_string does:
// required inputs followed by one block per tree listing its tag, weight,
// split nodes, and adjustments.
func (f *DecisionForest) DebugString() string {
	var b strings.Builder
	ids := make([]int, 0, len(f.requiredQTypes))
	for id := range f.requiredQTypes {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fmt.Fprintf(&b, "inputs:\n")
	for _, id := range ids {
		fmt.Fprintf(&b, "  #%d: %s\n", id, f.requiredQTypes[id])
	}
	for i, t := range f.trees {
		fmt.Fprintf(&b, "tree %d tag{%d %d} weight: %.6f\n", i, t.Tag.Step, t.Tag.SubmodelID, t.Weight)
		for j, sn := range t.SplitNodes {
			fmt.Fprintf(&b, "%d: IF %s THEN goto %s ELSE goto %s\n", j, sn.Condition, nodeIDString(sn.ChildIfTrue), nodeIDString(sn.ChildIfFalse))
		}
		fmt.Fprintf(&b, "adjustments:")
		for _, a := range t.Adjustments {
			fmt.Fprintf(&b, " %.6f", a)
		}
		fmt.Fprintf(&b, "\n")
	}
	return b.String()
}

func nodeIDString(id NodeId) string {
	if id.IsLeaf() {
		return fmt.Sprintf("adjustments[%d]", id.AdjustmentIndex())
	}
	return fmt.Sprintf("%d", id.SplitIndex())
}
