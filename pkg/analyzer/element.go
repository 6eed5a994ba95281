// Package analyzer extracts laddering elements from interviewee answers and
// post-processes the causal relationships the model reports between them.
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/meansend/ladder/pkg/llm"
	"github.com/meansend/ladder/pkg/prompt"
	"github.com/meansend/ladder/pkg/tree"
)

const (
	// MinResponseLength is the shortest summary accepted for a real element.
	MinResponseLength = 10
	// minIrrelevantLength is the relaxed floor for irrelevant summaries.
	minIrrelevantLength = 3
	// MaxSummaryLength caps stored summaries; longer ones are truncated.
	MaxSummaryLength = 50
)

// Querier is the structured-output surface the analyzer needs from the LLM
// client. Tests substitute a stub.
type Querier interface {
	QueryStructured(ctx context.Context, messages []llm.Message, schema map[string]any, temperature float32) (string, error)
}

// Element is one extracted laddering element from an answer.
type Element struct {
	Label       tree.Label
	Summary     string
	TextSegment string
	IsNew       bool
}

// Relationship is a validated causal link between two extracted elements.
type Relationship struct {
	Source      Element
	Target      Element
	Type        string
	Explanation string
}

// IdeaResult is the verdict on an opening answer.
type IdeaResult struct {
	IsIdea     bool
	Summary    string
	IsRelevant bool
}

// Analyzer runs the LLM-backed element analyses for one interview.
type Analyzer struct {
	Client   Querier
	Topic    string
	Stimulus string
}

var ideaSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"is_idea":     map[string]any{"type": "boolean"},
		"summary":     map[string]any{"type": "string"},
		"is_relevant": map[string]any{"type": "boolean"},
		"explanation": map[string]any{"type": "string"},
	},
	"required": []string{"is_idea", "summary", "is_relevant", "explanation"},
}

var analysisSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"contains_multiple_elements": map[string]any{"type": "boolean"},
		"elements": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"category":       map[string]any{"type": "string", "enum": []string{"ATTRIBUTE", "CONSEQUENCE", "VALUE", "IRRELEVANT"}},
					"summary":        map[string]any{"type": "string"},
					"text_segment":   map[string]any{"type": "string"},
					"is_new_element": map[string]any{"type": "boolean"},
				},
				"required": []string{"category", "summary", "text_segment", "is_new_element"},
			},
		},
		"causal_relationships": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"source_element_index": map[string]any{"type": "integer"},
					"target_element_index": map[string]any{"type": "integer"},
					"relationship_type":    map[string]any{"type": "string", "enum": []string{"A→C", "C→C", "C→V"}},
					"explanation":          map[string]any{"type": "string"},
				},
				"required": []string{"source_element_index", "target_element_index", "relationship_type"},
			},
		},
	},
	"required": []string{"contains_multiple_elements", "elements"},
}

// CheckIdea classifies the first content answer of a stimulus chat.
func (a *Analyzer) CheckIdea(ctx context.Context, message string) (IdeaResult, error) {
	system, err := prompt.Render("idea_check", map[string]any{
		"topic":    a.Topic,
		"stimulus": a.Stimulus,
		"message":  message,
	})
	if err != nil {
		return IdeaResult{}, err
	}

	raw, err := a.Client.QueryStructured(ctx, []llm.Message{{Role: "system", Content: system}}, ideaSchema, 0.2)
	if err != nil {
		return IdeaResult{}, fmt.Errorf("analyzer: idea check: %w", err)
	}

	var parsed struct {
		IsIdea     bool   `json:"is_idea"`
		Summary    string `json:"summary"`
		IsRelevant bool   `json:"is_relevant"`
	}
	if err := json.Unmarshal([]byte(llm.CleanJSON(raw)), &parsed); err != nil {
		return IdeaResult{}, fmt.Errorf("analyzer: idea check response: %w", err)
	}

	res := IdeaResult{IsIdea: parsed.IsIdea, Summary: truncateSummary(strings.TrimSpace(parsed.Summary)), IsRelevant: parsed.IsRelevant}
	slog.Info("Idea check", "is_idea", res.IsIdea, "is_relevant", res.IsRelevant, "summary", res.Summary)
	return res, nil
}

// JudgeMulti extracts every element an answer contains plus the causal links
// the answer expresses between them. Failures yield empty results.
func (a *Analyzer) JudgeMulti(ctx context.Context, t *tree.Tree, previousQuestion, message string) ([]Element, []Relationship) {
	effective := effectiveActive(t)

	activeLabel := "UNKNOWN"
	activeContent := ""
	if effective != nil {
		activeLabel = string(effective.Label)
		activeContent = effective.Conclusion
	}

	system, err := prompt.Render("node_type_analysis", map[string]any{
		"topic":             a.Topic,
		"stimulus":          a.Stimulus,
		"context":           formatContext(effective),
		"active_label":      activeLabel,
		"active_content":    activeContent,
		"previous_question": previousQuestion,
		"message":           message,
	})
	if err != nil {
		slog.Error("Element analysis prompt failed", "error", err)
		return nil, nil
	}

	raw, err := a.Client.QueryStructured(ctx, []llm.Message{{Role: "system", Content: system}}, analysisSchema, 0.2)
	if err != nil {
		slog.Error("Element analysis request failed", "error", err)
		return nil, nil
	}

	var parsed analysisResponse
	if err := json.Unmarshal([]byte(llm.CleanJSON(raw)), &parsed); err != nil {
		slog.Error("Element analysis response unparseable", "error", err)
		return nil, nil
	}
	return parsed.validate(message)
}

// effectiveActive resolves the node the analysis should be framed around:
// the active node, or its latest parent when the active node is an
// irrelevant dummy, or the root as a last resort.
func effectiveActive(t *tree.Tree) *tree.Node {
	if t == nil || t.Active == nil {
		return nil
	}
	n := t.Active
	if n.Label != tree.LabelIrrelevant {
		return n
	}
	if p := n.LatestParent(); p != nil {
		return p
	}
	return t.Root
}

// formatContext renders the path from the root down to n with one level of
// indentation per rung. Artificial nodes are skipped.
func formatContext(n *tree.Node) string {
	if n == nil {
		return ""
	}
	path := tree.OptimizedPathExcludingIrrelevant(n)
	var kept []*tree.Node
	for _, p := range path {
		if !tree.IsArtificial(p) {
			kept = append(kept, p)
		}
	}
	var b strings.Builder
	for i := len(kept) - 1; i >= 0; i-- {
		depth := len(kept) - 1 - i
		fmt.Fprintf(&b, "%s%s: %s\n", strings.Repeat("└─", depth), kept[i].Label, kept[i].Conclusion)
	}
	return strings.TrimRight(b.String(), "\n")
}

type analysisResponse struct {
	Elements []struct {
		Category    string `json:"category"`
		Summary     string `json:"summary"`
		TextSegment string `json:"text_segment"`
		IsNew       bool   `json:"is_new_element"`
	} `json:"elements"`
	CausalRelationships []struct {
		SourceIndex int    `json:"source_element_index"`
		TargetIndex int    `json:"target_element_index"`
		Type        string `json:"relationship_type"`
		Explanation string `json:"explanation"`
	} `json:"causal_relationships"`
}

// validate filters the raw response down to well-formed elements and
// relationships whose endpoint labels match the declared link type.
func (r *analysisResponse) validate(message string) ([]Element, []Relationship) {
	var elements []Element
	// raw model index -> position in elements, for relationship rebinding
	indexMap := map[int]int{}

	for i, e := range r.Elements {
		label, ok := parseCategory(e.Category)
		if !ok {
			slog.Warn("Unknown element category", "category", e.Category)
			continue
		}
		summary := strings.TrimSpace(e.Summary)
		minLen := MinResponseLength
		isNew := e.IsNew
		if label == tree.LabelIrrelevant {
			minLen = minIrrelevantLength
			isNew = true
		}
		if len(summary) < minLen {
			continue
		}
		segment := strings.TrimSpace(e.TextSegment)
		if segment == "" {
			segment = message
		}
		indexMap[i] = len(elements)
		elements = append(elements, Element{
			Label:       label,
			Summary:     truncateSummary(summary),
			TextSegment: segment,
			IsNew:       isNew,
		})
	}

	var rels []Relationship
	for _, rel := range r.CausalRelationships {
		si, sok := indexMap[rel.SourceIndex]
		ti, tok := indexMap[rel.TargetIndex]
		if !sok || !tok || si == ti {
			slog.Warn("Dropping relationship with invalid indexes", "source", rel.SourceIndex, "target", rel.TargetIndex)
			continue
		}
		src, tgt := elements[si], elements[ti]
		if !validLinkType(rel.Type, src.Label, tgt.Label) {
			slog.Warn("Dropping relationship with mismatched labels", "type", rel.Type, "source", src.Label, "target", tgt.Label)
			continue
		}
		rels = append(rels, Relationship{Source: src, Target: tgt, Type: rel.Type, Explanation: rel.Explanation})
	}

	slog.Info("Elements extracted", "elements", len(elements), "relationships", len(rels))
	return elements, rels
}

func parseCategory(category string) (tree.Label, bool) {
	switch strings.ToUpper(strings.TrimSpace(category)) {
	case "ATTRIBUTE":
		return tree.LabelAttribute, true
	case "CONSEQUENCE":
		return tree.LabelConsequence, true
	case "VALUE":
		return tree.LabelValue, true
	case "IRRELEVANT":
		return tree.LabelIrrelevant, true
	}
	return "", false
}

func validLinkType(relType string, src, tgt tree.Label) bool {
	switch relType {
	case "A→C":
		return src == tree.LabelAttribute && tgt == tree.LabelConsequence
	case "C→C":
		return src == tree.LabelConsequence && tgt == tree.LabelConsequence
	case "C→V":
		return src == tree.LabelConsequence && tgt == tree.LabelValue
	}
	return false
}

func truncateSummary(s string) string {
	if len(s) <= MaxSummaryLength {
		return s
	}
	return s[:MaxSummaryLength-3] + "..."
}
