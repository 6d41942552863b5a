package pipeline

import (
	"fmt"

	"github.com/askiada/go-labflow/pkg/pipeline/model"
)

// Validate lists the problems that make the pipeline unsafe to execute.
// It never mutates the pipeline, an empty result means the pipeline can run.
func (p *Pipeline) Validate() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var problems []string
	report := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	for _, id := range p.nodeOrder {
		node := p.nodes[id]
		if _, ok := model.Lookup(node.Type); !ok {
			report("node %q: unknown node type %q", id, node.Type)
		}
		for _, port := range append(append([]model.Port(nil), node.Inputs...), node.Outputs...) {
			if !port.Type.Valid() {
				report("node %q: port %q has unknown type %q", id, port.ID, port.Type)
			}
		}
	}

	incoming := make(map[[2]string]int)
	for _, cid := range p.connOrder {
		conn := p.connections[cid]

		src, srcOK := p.nodes[conn.SourceNodeID]
		if !srcOK {
			report("connection %q: source node %q does not exist", cid, conn.SourceNodeID)
		}
		tgt, tgtOK := p.nodes[conn.TargetNodeID]
		if !tgtOK {
			report("connection %q: target node %q does not exist", cid, conn.TargetNodeID)
		}
		if !srcOK || !tgtOK {
			continue
		}

		incoming[[2]string{conn.TargetNodeID, conn.TargetPortID}]++

		srcPort, srcPortOK := src.Output(conn.SourcePortID)
		if !srcPortOK {
			if _, isInput := src.Input(conn.SourcePortID); isInput {
				report("connection %q: source port %s.%s is not an output", cid, conn.SourceNodeID, conn.SourcePortID)
			} else {
				report("connection %q: source port %s.%s does not exist", cid, conn.SourceNodeID, conn.SourcePortID)
			}
		}
		tgtPort, tgtPortOK := tgt.Input(conn.TargetPortID)
		if !tgtPortOK {
			if _, isOutput := tgt.Output(conn.TargetPortID); isOutput {
				report("connection %q: target port %s.%s is not an input", cid, conn.TargetNodeID, conn.TargetPortID)
			} else {
				report("connection %q: target port %s.%s does not exist", cid, conn.TargetNodeID, conn.TargetPortID)
			}
		}
		if srcPortOK && tgtPortOK && !srcPort.Type.CompatibleWith(tgtPort.Type) {
			report("connection %q: incompatible port types %s -> %s", cid, srcPort.Type, tgtPort.Type)
		}
	}

	for _, id := range p.nodeOrder {
		node := p.nodes[id]
		for _, port := range node.Inputs {
			if n := incoming[[2]string{id, port.ID}]; n > 1 {
				report("node %q: input port %q has %d incoming connections", id, port.ID, n)
			}
		}

		spec, ok := model.Lookup(node.Type)
		if !ok {
			continue
		}
		for _, ps := range spec.Inputs {
			if ps.Required && incoming[[2]string{id, ps.ID}] == 0 {
				report("node %q: required input %q is not connected", id, ps.ID)
			}
		}
		// A required key may hold null, e.g. a Constant emitting null.
		for _, key := range spec.RequiredConfig {
			if _, ok := node.Config[key]; !ok {
				report("node %q: missing required config %q", id, key)
			}
		}
	}

	gra, _, selfLoops, err := p.graphLocked()
	if err != nil {
		report("unable to build graph: %v", err)

		return problems
	}
	if cycle := p.cycleErrorLocked(gra, selfLoops); len(cycle.NodeIDs) > 0 {
		report("%s", cycle.Error())
	}

	return problems
}
