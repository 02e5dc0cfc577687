package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/varpath/internal/ir"
)

// Cycle report levels.
const (
	LevelError = "error" // type contains itself by value and has no finite size
	LevelInfo  = "info"  // type reaches itself only through a pointer
)

// CycleWarning represents a reference cycle between type definitions.
//
// By-value cycles are errors: a struct that embeds itself has no size.
// Cycles broken by a pointer are reported at info level because linked
// structures such as RecursiveStruct.next are legitimate.
type CycleWarning struct {
	Path    []string `json:"path"`    // Cycle path: ["A", "B", "A"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "error" or "info"
}

// AnalyzeCycles performs static cycle analysis on type definitions.
//
// The algorithm:
//  1. Build a name -> name graph with one edge per reference. Edges through a
//     pointer are tagged so by-value containment can be checked separately.
//  2. Use Tarjan's algorithm on the by-value subgraph; every SCC with more
//     than one member, or a self-loop, is an error.
//  3. Repeat on the full graph and report the remaining SCCs as info.
//
// Output is sorted by path so reports are stable across runs.
func AnalyzeCycles(types []ir.TypeDef) []CycleWarning {
	if len(types) == 0 {
		return []CycleWarning{}
	}

	value, all := buildDependencyGraph(types)

	var warnings []CycleWarning
	inValueCycle := make(map[string]bool)
	for _, scc := range tarjanSCC(value) {
		if len(scc) > 1 || hasSelfLoop(scc[0], value) {
			for _, n := range scc {
				inValueCycle[n] = true
			}
			warnings = append(warnings, cycleSCCToWarning(scc, value, LevelError))
		}
	}

	for _, scc := range tarjanSCC(all) {
		if len(scc) == 1 && !hasSelfLoop(scc[0], all) {
			continue
		}
		if covered(scc, inValueCycle) {
			continue
		}
		warnings = append(warnings, cycleSCCToWarning(scc, all, LevelInfo))
	}

	sort.Slice(warnings, func(i, j int) bool {
		if warnings[i].Level != warnings[j].Level {
			return warnings[i].Level == LevelError
		}
		return strings.Join(warnings[i].Path, ",") < strings.Join(warnings[j].Path, ",")
	})
	return warnings
}

// dependencyGraph maps type name -> referenced type names.
type dependencyGraph map[string][]string

// buildDependencyGraph returns the by-value containment graph and the graph of
// all references. Only defined names become nodes; builtins and unknown names
// are leaves and cannot close a cycle.
func buildDependencyGraph(types []ir.TypeDef) (value, all dependencyGraph) {
	value = make(dependencyGraph)
	all = make(dependencyGraph)

	defined := make(map[string]bool, len(types))
	for _, td := range types {
		defined[td.Name] = true
		value[td.Name] = []string{}
		all[td.Name] = []string{}
	}

	addRef := func(from, text string, viaPointer bool) {
		ref, ok := ir.ParseTypeRef(text)
		if !ok || !defined[ref.Name] {
			return
		}
		all[from] = append(all[from], ref.Name)
		if !viaPointer && ref.Pointers == 0 {
			value[from] = append(value[from], ref.Name)
		}
	}

	for _, td := range types {
		switch td.Kind {
		case ir.KindStruct:
			for _, f := range td.Fields {
				addRef(td.Name, f.Type, false)
			}
		case ir.KindArray:
			addRef(td.Name, td.Elem, false)
		case ir.KindTypedef:
			addRef(td.Name, td.To, false)
		case ir.KindPointer:
			addRef(td.Name, td.To, true)
		}
	}

	for name := range value {
		sort.Strings(value[name])
		sort.Strings(all[name])
	}
	return value, all
}

func covered(scc []string, set map[string]bool) bool {
	for _, n := range scc {
		if !set[n] {
			return false
		}
	}
	return true
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph dependencyGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in sorted order so SCC membership order is deterministic.
func tarjanSCC(graph dependencyGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sort.Strings(scc)
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

func cycleSCCToWarning(scc []string, graph dependencyGraph, level string) CycleWarning {
	if len(scc) == 1 {
		name := scc[0]
		msg := fmt.Sprintf("Type %s contains itself by value", name)
		if level == LevelInfo {
			msg = fmt.Sprintf("Self-referencing type through pointer: %s → %s", name, name)
		}
		return CycleWarning{
			Path:    []string{name, name},
			Message: msg,
			Level:   level,
		}
	}

	path := reconstructCyclePath(scc, graph)
	pathStr := strings.Join(path, " → ")
	msg := fmt.Sprintf("By-value type cycle: %s", pathStr)
	if level == LevelInfo {
		msg = fmt.Sprintf("Type cycle through pointer: %s", pathStr)
	}
	return CycleWarning{
		Path:    path,
		Message: msg,
		Level:   level,
	}
}

// reconstructCyclePath builds a cycle path from an SCC by following edges
// from its first member until the walk returns to it.
func reconstructCyclePath(scc []string, graph dependencyGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	sccSet := make(map[string]bool)
	for _, node := range scc {
		sccSet[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if sccSet[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}

		if next == "" {
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}

	return path
}
