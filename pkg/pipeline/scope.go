package pipeline

import (
	"github.com/pkg/errors"

	"github.com/askiada/go-labflow/pkg/pipeline/model"
)

// Branch selects one side of a Conditional node.
type Branch string

const (
	BranchTrue  Branch = "true"
	BranchFalse Branch = "false"
)

// Port returns the Conditional output port feeding the branch.
func (b Branch) Port() string {
	if b == BranchTrue {
		return model.PortTrueBranch
	}

	return model.PortFalseBranch
}

// ScopeResolver splits a pipeline into top level nodes and the nodes owned by ForEach bodies
// and Conditional branches. It is a snapshot: rebuild it when the pipeline changes.
type ScopeResolver struct {
	order    []string
	types    map[string]model.NodeType
	bodies   map[string]NodeSet
	branches map[string]map[Branch]NodeSet
	scoped   NodeSet
}

// NewScopeResolver computes the scopes of p. It fails with a *CycleError when p is not acyclic.
func NewScopeResolver(p *Pipeline) (*ScopeResolver, error) {
	order, err := p.TopologicalSort()
	if err != nil {
		return nil, errors.Wrap(err, "unable to order nodes")
	}

	res := &ScopeResolver{
		order:    order,
		types:    make(map[string]model.NodeType, len(order)),
		bodies:   make(map[string]NodeSet),
		branches: make(map[string]map[Branch]NodeSet),
		scoped:   NodeSet{},
	}

	for _, id := range order {
		node, ok := p.Node(id)
		if !ok {
			continue
		}
		res.types[id] = node.Type

		switch node.Type {
		case model.NodeTypeForEach:
			body := NodeSet{}
			for _, port := range []string{model.PortCurrentItem, model.PortIndex} {
				for member := range p.DownstreamFromPort(id, port) {
					body.add(member)
				}
			}
			res.bodies[id] = body
			res.markScoped(body)
		case model.NodeTypeConditional:
			sets := make(map[Branch]NodeSet, 2)
			for _, branch := range []Branch{BranchTrue, BranchFalse} {
				sets[branch] = p.DownstreamFromPort(id, branch.Port())
				res.markScoped(sets[branch])
			}
			res.branches[id] = sets
		}
	}

	return res, nil
}

func (r *ScopeResolver) markScoped(set NodeSet) {
	for id := range set {
		r.scoped.add(id)
	}
}

// IsScoped reports whether a node only runs inside a ForEach body or a Conditional branch.
func (r *ScopeResolver) IsScoped(id string) bool {
	return r.scoped.Has(id)
}

// TopLevelNodeIDs returns the topological order without the scoped nodes.
func (r *ScopeResolver) TopLevelNodeIDs() []string {
	out := make([]string, 0, len(r.order))
	for _, id := range r.order {
		if !r.scoped.Has(id) {
			out = append(out, id)
		}
	}

	return out
}

// BodySorted returns the nodes a ForEach runs on each iteration, in topological order.
func (r *ScopeResolver) BodySorted(ownerID string) ([]string, error) {
	if r.types[ownerID] != model.NodeTypeForEach {
		return nil, errors.Wrapf(ErrNotScopeOwner, "node %q is not a ForEach", ownerID)
	}

	return r.sorted(r.bodies[ownerID]), nil
}

// BranchSorted returns the nodes a Conditional runs when branch is taken, in topological order.
func (r *ScopeResolver) BranchSorted(ownerID string, branch Branch) ([]string, error) {
	if r.types[ownerID] != model.NodeTypeConditional {
		return nil, errors.Wrapf(ErrNotScopeOwner, "node %q is not a Conditional", ownerID)
	}
	if branch != BranchTrue && branch != BranchFalse {
		return nil, errors.Errorf("unknown branch %q", branch)
	}

	return r.sorted(r.branches[ownerID][branch]), nil
}

// members returns every node owned by ownerID, all branches included.
func (r *ScopeResolver) members(ownerID string) NodeSet {
	if body, ok := r.bodies[ownerID]; ok {
		return body
	}

	all := NodeSet{}
	for _, set := range r.branches[ownerID] {
		for id := range set {
			all.add(id)
		}
	}

	return all
}

// sorted orders set topologically, leaving out what a nested owner inside set runs itself.
func (r *ScopeResolver) sorted(set NodeSet) []string {
	nested := NodeSet{}
	for id := range set {
		if r.types[id].IsScopeOwner() {
			for member := range r.members(id) {
				nested.add(member)
			}
		}
	}

	out := make([]string, 0, len(set))
	for _, id := range r.order {
		if set.Has(id) && !nested.Has(id) {
			out = append(out, id)
		}
	}

	return out
}
