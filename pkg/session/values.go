// Package session runs interviews: one chat per stimulus, a cache of live
// sessions, and snapshot persistence after every turn.
package session

import (
	"log/slog"

	"github.com/meansend/ladder/pkg/tree"
)

// CountValues returns the number of VALUE nodes in a tree.
func CountValues(t *tree.Tree) int {
	if t == nil {
		return 0
	}
	return len(t.NodesByLabel(tree.LabelValue))
}

// ReachedValuesLimit reports whether the chat collected enough value nodes.
// A max of 0 or below means unlimited.
func ReachedValuesLimit(t *tree.Tree, max int) bool {
	if max <= 0 || t == nil {
		return false
	}
	count := CountValues(t)
	if count >= max {
		slog.Info("Values limit reached", "count", count, "max", max)
		return true
	}
	return false
}
