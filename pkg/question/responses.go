package question

import (
	"fmt"

	"github.com/meansend/ladder/pkg/models"
	"github.com/meansend/ladder/pkg/tree"
)

// build assembles a full response around a Next object. Chains and the tree
// export always come from the graph, never from the model.
func build(t *tree.Tree, next models.Next) models.InterviewResponse {
	resp := models.InterviewResponse{Next: next, Chains: tree.FormatChains(t)}
	if t != nil {
		e := t.ToExport()
		resp.Tree = &e
	}
	return resp
}

// EndOfInterview signals a normally completed stimulus chat.
func EndOfInterview(t *tree.Tree) models.InterviewResponse {
	return build(t, models.Next{
		NextQuestion:         "Thank you very much for your participation in this interview so far! Your insights about this topic have been valuable and provided us with all the information we need. If you notice any other open chat discussions for different stimuli, please complete those as well to finish the entire interview process.",
		AskingIntervieweeFor: TypeEnd,
		ThoughtProcess:       "Interview completed, no more stimuli to discuss",
		EndOfInterview:       true,
	})
}

// ValuesLimit ends the chat because enough value nodes were collected.
func ValuesLimit(t *tree.Tree, stimulus string, count, max int) models.InterviewResponse {
	reached := true
	return build(t, models.Next{
		NextQuestion:         fmt.Sprintf("Thank you for sharing your insights! You have identified %d core values, which reaches our target for this interview. Your responses have provided valuable information about what matters most to you regarding %s.", count, stimulus),
		AskingIntervieweeFor: "VALUES_LIMIT_REACHED",
		ThoughtProcess:       fmt.Sprintf("Interview completed due to reaching the maximum values limit of %d. The participant has successfully identified %d values.", max, count),
		EndOfInterview:       true,
		ValuesCount:          &count,
		ValuesMax:            &max,
		ValuesReached:        &reached,
		CompletionReason:     "VALUES_LIMIT_REACHED",
	})
}

// Fallback keeps the interview going after an internal processing problem.
func Fallback(t *tree.Tree, stimulus, questionType, reason string) models.InterviewResponse {
	if questionType == "" {
		questionType = "fallback"
	}
	return build(t, models.Next{
		NextQuestion:         fmt.Sprintf("Could you tell me more about your experience with %s? I'm particularly interested in what features or aspects you find valuable.", fallbackSubject(stimulus)),
		AskingIntervieweeFor: questionType,
		ThoughtProcess:       "Error handling: " + reason,
	})
}

// ErrorRecovery keeps the interview going after a generation error.
func ErrorRecovery(t *tree.Tree, stimulus string, err error) models.InterviewResponse {
	return build(t, models.Next{
		NextQuestion:         fmt.Sprintf("I apologize, but I encountered a problem with the interview structure. Could we continue our discussion about %s?", fallbackSubject(stimulus)),
		AskingIntervieweeFor: "error_recovery",
		ThoughtProcess:       "Error recovery: " + err.Error(),
	})
}

func fallbackSubject(stimulus string) string {
	if stimulus == "" {
		return "this topic"
	}
	return stimulus
}
