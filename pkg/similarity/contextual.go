package similarity

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

// ConfidenceFloor is the minimum confidence a contextual judgement needs to
// influence the merge decision, in either direction.
const ConfidenceFloor = 70

// Candidate is one existing node submitted to the contextual check.
type Candidate struct {
	ID          string
	Node        *tree.Node
	ContextPath string
	SameParent  bool
}

// Judgement is the model's verdict on one candidate.
type Judgement struct {
	CandidateID string `json:"candidate_id"`
	ShouldMerge bool   `json:"should_merge"`
	Explanation string `json:"explanation"`
	Confidence  int    `json:"confidence_score"`
}

// Judge decides, per candidate, whether a new element means the same thing.
type Judge interface {
	Judge(ctx context.Context, topic, stimulus string, label tree.Label, summary string, candidates []Candidate) ([]Judgement, error)
}

// LLMJudge batches all candidates into a single structured-output request.
type LLMJudge struct {
	Client *llm.Client
}

var judgementSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"similarity_results": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"candidate_id":     map[string]any{"type": "string"},
					"should_merge":     map[string]any{"type": "boolean"},
					"explanation":      map[string]any{"type": "string"},
					"confidence_score": map[string]any{"type": "integer", "minimum": 0, "maximum": 100},
				},
				"required": []string{"candidate_id", "should_merge", "confidence_score"},
			},
		},
	},
	"required": []string{"similarity_results"},
}

// Judge runs the batched similarity check. On any failure every candidate
// is reported as non-mergeable with zero confidence, so failures never
// cause merges.
func (j *LLMJudge) Judge(ctx context.Context, topic, stimulus string, label tree.Label, summary string, candidates []Candidate) ([]Judgement, error) {
	var b strings.Builder
	for i, c := range candidates {
		fmt.Fprintf(&b, "CANDIDATE %d (id %s):\n  element: %s\n  context: %s\n", i+1, c.ID, c.Node.Conclusion, c.ContextPath)
	}
	system, err := prompt.Render("node_similarity_check", map[string]any{
		"topic":      topic,
		"stimulus":   stimulus,
		"label":      string(label),
		"summary":    summary,
		"candidates": b.String(),
	})
	if err != nil {
		return noMerge(candidates), err
	}

	raw, err := j.Client.QueryStructured(ctx,
		[]llm.Message{{Role: "system", Content: system}},
		judgementSchema, 0.1)
	if err != nil {
		slog.Warn("Contextual similarity check failed", "error", err)
		return noMerge(candidates), nil
	}

	var parsed struct {
		SimilarityResults []Judgement `json:"similarity_results"`
	}
	if err := json.Unmarshal([]byte(llm.CleanJSON(raw)), &parsed); err != nil {
		slog.Warn("Contextual similarity response unparseable", "error", err)
		return noMerge(candidates), nil
	}
	return parsed.SimilarityResults, nil
}

func noMerge(candidates []Candidate) []Judgement {
	out := make([]Judgement, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, Judgement{CandidateID: c.ID, ShouldMerge: false, Confidence: 0})
	}
	return out
}
