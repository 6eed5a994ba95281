package llm

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
)

var (
	reSingleQuoteKey = regexp.MustCompile(`([,{\[]\s*)'(\w+)'\s*:`)
	reSingleQuoteVal = regexp.MustCompile(`:\s*'(.*?)'(,|})`)
	reTrailingComma  = regexp.MustCompile(`,\s*([}\]])`)
	rePyTrue         = regexp.MustCompile(`\bTrue\b`)
	rePyFalse        = regexp.MustCompile(`\bFalse\b`)
	rePyNone         = regexp.MustCompile(`\bNone\b`)
	reNextObject     = regexp.MustCompile(`"Next"\s*:\s*\{(?:[^{}]|\{[^{}]*\})*\}`)
	reAnyObject      = regexp.MustCompile(`"\w+"\s*:\s*\{(?:[^{}]|\{[^{}]*\})*\}`)
)

// CleanJSON repairs the usual defects in model output: reasoning blocks,
// markdown fences, surrounding prose, trailing commas, single quotes, and
// Python literals. Returns the input unchanged when it already parses.
func CleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "<think>") {
		if end := strings.Index(text, "</think>"); end != -1 {
			text = strings.TrimSpace(text[end+len("</think>"):])
		}
	}

	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	if json.Valid([]byte(text)) {
		return text
	}
	slog.Warn("Repairing malformed JSON response")

	if first, last := strings.Index(text, "{"), strings.LastIndex(text, "}"); first != -1 && last > first {
		text = text[first : last+1]
	}
	text = fixCommonErrors(text)
	if json.Valid([]byte(text)) {
		return text
	}
	return extractObject(text)
}

func fixCommonErrors(text string) string {
	text = strings.ReplaceAll(text, "\ufeff", "")
	text = reSingleQuoteKey.ReplaceAllString(text, `$1"$2":`)
	text = reSingleQuoteVal.ReplaceAllString(text, `: "$1"$2`)
	text = reTrailingComma.ReplaceAllString(text, `$1`)
	text = rePyTrue.ReplaceAllString(text, "true")
	text = rePyFalse.ReplaceAllString(text, "false")
	text = rePyNone.ReplaceAllString(text, "null")
	return text
}

// extractObject salvages a nested object from irreparable text, preferring
// the "Next" object used by question responses.
func extractObject(text string) string {
	if m := reNextObject.FindString(text); m != "" {
		candidate := "{" + m + "}"
		if json.Valid([]byte(candidate)) {
			return candidate
		}
	}
	if m := reAnyObject.FindString(text); m != "" {
		candidate := "{" + m + "}"
		if json.Valid([]byte(candidate)) {
			return candidate
		}
	}
	slog.Warn("JSON salvage failed, returning error object")
	return `{"error":"failed to extract valid JSON from response"}`
}
