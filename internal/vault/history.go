package vault

// DefaultHistoryLimit bounds the undo stack when no explicit limit is set.
const DefaultHistoryLimit = 100

// HistoryEntry records one committed action together with the snapshots on
// either side of it. Snapshots are immutable so holding them is safe.
type HistoryEntry struct {
	Action Action
	Before *State
	After  *State
}

// History is a bounded undo/redo stack of committed actions. It is not safe
// for concurrent use; Session serializes access to it.
type History struct {
	limit int
	undo  []HistoryEntry
	redo  []HistoryEntry
}

// NewHistory returns a history bounded to limit entries; a non-positive
// limit selects DefaultHistoryLimit.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{limit: limit}
}

// Push records a committed action. Any redoable entries are discarded: a new
// action after an undo forks the timeline. When the stack is full the oldest
// entry falls off.
func (h *History) Push(entry HistoryEntry) {
	h.redo = nil
	h.undo = append(h.undo, entry)
	if len(h.undo) > h.limit {
		h.undo = append([]HistoryEntry(nil), h.undo[len(h.undo)-h.limit:]...)
	}
}

// Undo pops the most recent entry and returns its before-snapshot. It
// returns false when nothing can be undone.
func (h *History) Undo() (*State, bool) {
	if len(h.undo) == 0 {
		return nil, false
	}
	entry := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, entry)
	return entry.Before, true
}

// Redo re-applies the most recently undone entry and returns its
// after-snapshot. It returns false when nothing can be redone.
func (h *History) Redo() (*State, bool) {
	if len(h.redo) == 0 {
		return nil, false
	}
	entry := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, entry)
	return entry.After, true
}

// CanUndo reports whether an undoable entry exists.
func (h *History) CanUndo() bool { return len(h.undo) > 0 }

// CanRedo reports whether a redoable entry exists.
func (h *History) CanRedo() bool { return len(h.redo) > 0 }

// Depth reports the current undo stack size.
func (h *History) Depth() int { return len(h.undo) }
