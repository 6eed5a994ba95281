package analyzer

import (
	"log/slog"

	"github.com/meansend/ladder/pkg/tree"
)

// Key identifies an element across the relationship maps.
type Key struct {
	Label   tree.Label
	Summary string
}

// KeyOf returns the map key for an element.
func KeyOf(e Element) Key { return Key{Label: e.Label, Summary: e.Summary} }

// Mappings groups the relationship bookkeeping needed to materialize one
// answer's elements into graph nodes in causal order.
type Mappings struct {
	Elements        map[Key]Element
	InRelationship  map[Key]bool
	Sources         map[Key]bool
	Targets         map[Key]bool
	EndNodes        map[Key]bool
	RelationshipMap map[Key][]Key
	SourceOrder     []Key
}

// BuildMappings indexes elements and relationships for graph insertion.
// End nodes are targets that never appear as a source.
func BuildMappings(elements []Element, rels []Relationship) Mappings {
	m := Mappings{
		Elements:        map[Key]Element{},
		InRelationship:  map[Key]bool{},
		Sources:         map[Key]bool{},
		Targets:         map[Key]bool{},
		EndNodes:        map[Key]bool{},
		RelationshipMap: map[Key][]Key{},
	}
	for _, e := range elements {
		m.Elements[KeyOf(e)] = e
	}
	for _, rel := range rels {
		sk, tk := KeyOf(rel.Source), KeyOf(rel.Target)
		m.InRelationship[sk] = true
		m.InRelationship[tk] = true
		m.Sources[sk] = true
		m.Targets[tk] = true
		if _, seen := m.RelationshipMap[sk]; !seen {
			m.SourceOrder = append(m.SourceOrder, sk)
		}
		m.RelationshipMap[sk] = append(m.RelationshipMap[sk], tk)
	}
	for tk := range m.Targets {
		if !m.Sources[tk] {
			m.EndNodes[tk] = true
		}
	}
	return m
}

// valuesInCompleteChains returns the VALUE keys reachable from an ATTRIBUTE
// through the answer's own relationship graph.
func valuesInCompleteChains(elements []Element, rels []Relationship) map[Key]bool {
	graph := map[Key][]Key{}
	for _, rel := range rels {
		sk := KeyOf(rel.Source)
		graph[sk] = append(graph[sk], KeyOf(rel.Target))
	}

	var connectedToAttribute func(k Key, visited map[Key]bool) bool
	connectedToAttribute = func(k Key, visited map[Key]bool) bool {
		if visited[k] {
			return false
		}
		visited[k] = true
		for src, targets := range graph {
			for _, t := range targets {
				if t != k {
					continue
				}
				if src.Label == tree.LabelAttribute {
					return true
				}
				if connectedToAttribute(src, visited) {
					return true
				}
			}
		}
		return false
	}

	out := map[Key]bool{}
	for _, e := range elements {
		if e.Label != tree.LabelValue {
			continue
		}
		vk := KeyOf(e)
		if connectedToAttribute(vk, map[Key]bool{}) {
			out[vk] = true
		}
	}
	return out
}

// FilterACVChains removes values that arrived as the tail of a complete
// attribute-consequence-value chain in a single answer, together with the
// consequence-to-value links pointing at them. Such values are re-elicited
// one rung at a time instead of being accepted wholesale.
func FilterACVChains(elements []Element, rels []Relationship) ([]Element, []Relationship) {
	chained := valuesInCompleteChains(elements, rels)
	if len(chained) == 0 {
		return elements, rels
	}
	slog.Info("Values in complete chains filtered", "count", len(chained))

	var keptElements []Element
	for _, e := range elements {
		if e.Label == tree.LabelValue && chained[KeyOf(e)] {
			continue
		}
		keptElements = append(keptElements, e)
	}

	var keptRels []Relationship
	for _, rel := range rels {
		if rel.Source.Label == tree.LabelConsequence && rel.Target.Label == tree.LabelValue && chained[KeyOf(rel.Target)] {
			continue
		}
		keptRels = append(keptRels, rel)
	}
	return keptElements, keptRels
}

// connectedToValue reports whether a consequence reaches a VALUE through the
// answer's relationship graph.
func connectedToValue(k Key, rels []Relationship, visited map[Key]bool) bool {
	if visited[k] {
		return false
	}
	visited[k] = true
	for _, rel := range rels {
		if KeyOf(rel.Source) != k {
			continue
		}
		if rel.Target.Label == tree.LabelValue {
			return true
		}
		if rel.Target.Label == tree.LabelConsequence && connectedToValue(KeyOf(rel.Target), rels, visited) {
			return true
		}
	}
	return false
}

// FilterConsequencesWithoutValues drops consequences with no path to a value
// when the active node is a consequence and the answer carried both kinds.
// Values take priority at that rung.
func FilterConsequencesWithoutValues(active *tree.Node, elements []Element, rels []Relationship) []Element {
	if active == nil || active.Label != tree.LabelConsequence {
		return elements
	}
	hasC, hasV := false, false
	for _, e := range elements {
		switch e.Label {
		case tree.LabelConsequence:
			hasC = true
		case tree.LabelValue:
			hasV = true
		}
	}
	if !hasC || !hasV {
		return elements
	}

	connected := map[Key]bool{}
	for _, e := range elements {
		if e.Label != tree.LabelConsequence {
			continue
		}
		k := KeyOf(e)
		if connectedToValue(k, rels, map[Key]bool{}) {
			connected[k] = true
		}
	}

	var kept []Element
	for _, e := range elements {
		if e.Label == tree.LabelConsequence && !connected[KeyOf(e)] {
			slog.Info("Dropping consequence with no path to a value", "summary", e.Summary)
			continue
		}
		kept = append(kept, e)
	}
	return kept
}

// SpecialCase classifies how a restated source element should be handled.
type SpecialCase int

const (
	// SpecialNone means the source is processed normally.
	SpecialNone SpecialCase = iota
	// SpecialTargetsWithoutParent skips the restated source but still
	// creates its new targets, attached at the current position.
	SpecialTargetsWithoutParent
	// SpecialSkipAll drops the source and everything hanging off it.
	SpecialSkipAll
)

// ClassifySource decides the handling for a relationship source that the
// model marked as already known. A restated attribute while a consequence is
// being probed belongs to a different branch and is dropped wholesale; other
// restatements keep their new targets.
func ClassifySource(active *tree.Node, source Element) SpecialCase {
	if source.IsNew || active == nil {
		return SpecialNone
	}
	switch active.Label {
	case tree.LabelAttribute:
		if source.Label == tree.LabelAttribute || source.Label == tree.LabelConsequence {
			return SpecialTargetsWithoutParent
		}
	case tree.LabelConsequence:
		if source.Label == tree.LabelConsequence || source.Label == tree.LabelValue {
			return SpecialTargetsWithoutParent
		}
		if source.Label == tree.LabelAttribute {
			return SpecialSkipAll
		}
	}
	return SpecialNone
}

// FilterIrrelevantDominance collapses an answer containing any irrelevant
// element down to just the first irrelevant one. A partially off-topic
// answer is treated as off-topic.
func FilterIrrelevantDominance(elements []Element) []Element {
	for _, e := range elements {
		if e.Label == tree.LabelIrrelevant {
			return []Element{e}
		}
	}
	return elements
}
