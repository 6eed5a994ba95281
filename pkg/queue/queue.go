// Package queue decides which graph node the interview probes next.
package queue

import (
	"log/slog"

	"github.com/meansend/ladder/pkg/tree"
)

// DefaultMaxUnchanged is the retry cap per probe target.
const DefaultMaxUnchanged = 3

// effectively unlimited when the cap is disabled with -1
const unlimitedUnchanged = 999999

// Manager holds the pending probe targets for one stimulus chat.
// Only STIMULUS, ATTRIBUTE, and CONSEQUENCE nodes are ever queued: IDEA
// becomes active directly, VALUE and IRRELEVANT are never enqueued.
type Manager struct {
	tree         *tree.Tree
	items        []*tree.Node
	active       *tree.Node
	unchanged    int
	maxUnchanged int
}

// NewManager creates a queue over the given tree. maxUnchanged -1 disables
// the retry cap.
func NewManager(t *tree.Tree, maxUnchanged int) *Manager {
	if maxUnchanged == 0 {
		maxUnchanged = DefaultMaxUnchanged
	}
	if maxUnchanged == -1 {
		maxUnchanged = unlimitedUnchanged
	}
	return &Manager{tree: t, maxUnchanged: maxUnchanged}
}

// InitializeStimulus makes the stimulus root the first active probe target.
func (m *Manager) InitializeStimulus() {
	m.setActive(m.tree.Root)
}

// Active returns the node currently being probed.
func (m *Manager) Active() *tree.Node { return m.active }

// UnchangedCount returns how many turns the active node has gone without a
// required element.
func (m *Manager) UnchangedCount() int { return m.unchanged }

// MaxUnchanged returns the effective retry cap.
func (m *Manager) MaxUnchanged() int { return m.maxUnchanged }

// Pending returns the queued nodes in probe order.
func (m *Manager) Pending() []*tree.Node {
	return append([]*tree.Node(nil), m.items...)
}

func (m *Manager) setActive(n *tree.Node) {
	m.active = n
	m.unchanged = 0
	if n != nil {
		m.tree.Active = n
	}
}

func (m *Manager) dropActiveIrrelevant() {
	if m.tree.Active != nil && m.tree.Active.Label == tree.LabelIrrelevant {
		m.tree.RemoveIrrelevant()
	}
}

// Add routes a newly created node into the queue according to its label.
func (m *Manager) Add(n *tree.Node) {
	if n == nil {
		return
	}
	switch n.Label {
	case tree.LabelIdea:
		m.dropActiveIrrelevant()
		m.setActive(n)
		slog.Debug("Idea set active directly", "node_id", n.ID)
		return
	case tree.LabelValue:
		// Values are terminal: never probed, just resync with the tree.
		m.dropActiveIrrelevant()
		m.active = m.tree.Active
		return
	case tree.LabelIrrelevant:
		// Keep the retry counter when one dummy replaces another, so
		// stacked irrelevant answers still count toward the cap.
		if m.active != nil && m.active.Label == tree.LabelIrrelevant {
			m.active = n
			m.tree.Active = n
		} else {
			m.setActive(n)
		}
		return
	}

	for _, q := range m.items {
		if q.ID == n.ID {
			return
		}
	}
	pos := m.insertPosition(n.Label)
	m.items = append(m.items, nil)
	copy(m.items[pos+1:], m.items[pos:])
	m.items[pos] = n
	slog.Debug("Node queued", "node_id", n.ID, "label", n.Label, "position", pos)
}

// insertPosition implements depth-first probing: a fresh consequence goes to
// the front; a fresh attribute goes after the last attribute, else after the
// last consequence, else to the end.
func (m *Manager) insertPosition(l tree.Label) int {
	switch l {
	case tree.LabelConsequence:
		return 0
	case tree.LabelAttribute:
		last := -1
		for i, q := range m.items {
			if q.Label == tree.LabelAttribute {
				last = i
			}
		}
		if last >= 0 {
			return last + 1
		}
		for i, q := range m.items {
			if q.Label == tree.LabelConsequence {
				last = i
			}
		}
		if last >= 0 {
			return last + 1
		}
	}
	return len(m.items)
}

// UpdateUnchanged resets the retry counter when a required element arrived,
// otherwise increments it.
func (m *Manager) UpdateUnchanged(found bool) {
	if found {
		m.unchanged = 0
		return
	}
	m.unchanged++
	slog.Debug("Active node unchanged", "count", m.unchanged, "max", m.maxUnchanged)
}

// ShouldAdvance reports whether the active node exhausted its retries.
func (m *Manager) ShouldAdvance() bool {
	return m.unchanged >= m.maxUnchanged
}

// NextActive pops the next probe target. The active reference is first
// re-synced with the tree; an active irrelevant dummy still under the retry
// cap is removed from the graph before advancing. Returns nil when the
// queue is exhausted.
func (m *Manager) NextActive() *tree.Node {
	m.active = m.tree.Active
	if m.active != nil && m.active.Label == tree.LabelIrrelevant && m.unchanged < m.maxUnchanged {
		m.tree.RemoveIrrelevant()
	}
	if len(m.items) == 0 {
		return nil
	}
	next := m.items[0]
	m.items = m.items[1:]
	m.setActive(next)
	return next
}

// Snapshot returns the queued node IDs, active ID, and retry counter.
func (m *Manager) Snapshot() ([]string, string, int) {
	ids := make([]string, 0, len(m.items))
	for _, n := range m.items {
		ids = append(ids, n.ID)
	}
	activeID := ""
	if m.active != nil {
		activeID = m.active.ID
	}
	return ids, activeID, m.unchanged
}

// Restore rebinds a snapshot against the restored tree. IDs that no longer
// resolve are dropped.
func (m *Manager) Restore(ids []string, activeID string, unchanged int) {
	m.items = nil
	for _, id := range ids {
		if n := m.tree.NodeByID(id); n != nil {
			m.items = append(m.items, n)
		}
	}
	m.active = m.tree.NodeByID(activeID)
	m.unchanged = unchanged
}
