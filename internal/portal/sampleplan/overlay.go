package sampleplan

import (
	"sort"
	"sync"
)

// SelectionOverlay tracks the user's in-progress unit selections per learner
// row. It is purely client-side state: it is never persisted, only
// serialized into the apply payload. Both direct user clicks and the
// post-fetch reconciliation write into it, and reconciliation only ever adds
// entries — it must never remove a selection the user just made.
type SelectionOverlay struct {
	mu       sync.RWMutex
	selected map[string]map[string]struct{} // learnerKey -> unitKey set
}

// NewSelectionOverlay returns an empty overlay.
func NewSelectionOverlay() *SelectionOverlay {
	return &SelectionOverlay{
		selected: make(map[string]map[string]struct{}),
	}
}

// Select marks a unit as selected for a learner row.
func (o *SelectionOverlay) Select(learnerKey, unitKey string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.selected[learnerKey]; !ok {
		o.selected[learnerKey] = make(map[string]struct{})
	}
	o.selected[learnerKey][unitKey] = struct{}{}
}

// Deselect removes a unit selection for a learner row.
func (o *SelectionOverlay) Deselect(learnerKey, unitKey string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if units, ok := o.selected[learnerKey]; ok {
		delete(units, unitKey)
		if len(units) == 0 {
			delete(o.selected, learnerKey)
		}
	}
}

// Toggle flips a unit's selection and reports the new state.
func (o *SelectionOverlay) Toggle(learnerKey, unitKey string) bool {
	if o.Has(learnerKey, unitKey) {
		o.Deselect(learnerKey, unitKey)
		return false
	}
	o.Select(learnerKey, unitKey)
	return true
}

// Has reports whether the unit is selected for the learner row.
func (o *SelectionOverlay) Has(learnerKey, unitKey string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	units, ok := o.selected[learnerKey]
	if !ok {
		return false
	}
	_, ok = units[unitKey]
	return ok
}

// SelectedUnits returns the sorted unit keys selected for a learner row.
func (o *SelectionOverlay) SelectedUnits(learnerKey string) []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	units, ok := o.selected[learnerKey]
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(units))
	for k := range units {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Count returns the total number of selected units across all rows.
func (o *SelectionOverlay) Count() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	n := 0
	for _, units := range o.selected {
		n += len(units)
	}
	return n
}

// Clear empties the overlay.
func (o *SelectionOverlay) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.selected = make(map[string]map[string]struct{})
}

// MergeServerSelections reconciles freshly fetched rows into the overlay.
// Units the server flags is_selected=true are added when the overlay does
// not already hold an entry for that unit key. Merge, don't overwrite: a
// refetch triggered by an unrelated save must not erase an in-progress user
// selection, and server pre-selections must not be lost either.
func (o *SelectionOverlay) MergeServerSelections(rows []LearnerRow) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, row := range rows {
		learnerKey := row.Key(i)
		for _, unit := range row.Units {
			if !unit.Selected {
				continue
			}
			if _, ok := o.selected[learnerKey]; !ok {
				o.selected[learnerKey] = make(map[string]struct{})
			}
			if _, ok := o.selected[learnerKey][unit.Key()]; !ok {
				o.selected[learnerKey][unit.Key()] = struct{}{}
			}
		}
	}
}
