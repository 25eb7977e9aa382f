package engine

import "sort"

// Selection is the set of record ids marked for bulk action. It never holds
// an id absent from the cached collection: Retain drops stale ids after every
// refresh.
type Selection map[string]struct{}

func (s Selection) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Toggle adds id if absent, removes it if present.
func (s Selection) Toggle(id string) {
	if s.Has(id) {
		delete(s, id)
	} else {
		s[id] = struct{}{}
	}
}

// ToggleAll is the toggle-all-on-page operation: if every visible id is
// already selected, the visible ids are deselected; otherwise all of them are
// selected.
func (s Selection) ToggleAll(visible []string) {
	if len(visible) == 0 {
		return
	}
	all := true
	for _, id := range visible {
		if !s.Has(id) {
			all = false
			break
		}
	}
	for _, id := range visible {
		if all {
			delete(s, id)
		} else {
			s[id] = struct{}{}
		}
	}
}

func (s Selection) Clear() {
	for id := range s {
		delete(s, id)
	}
}

// Retain silently drops every id not present in the refreshed collection.
func (s Selection) Retain(present map[string]struct{}) {
	for id := range s {
		if _, ok := present[id]; !ok {
			delete(s, id)
		}
	}
}

// IDs returns the selected ids in stable order.
func (s Selection) IDs() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
