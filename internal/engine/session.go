package engine

import "github.com/studyhub-gh/backoffice/internal/resource"

type SessionState string

const (
	StateCreating   SessionState = "creating"
	StateEditing    SessionState = "editing"
	StateCommitting SessionState = "committing"
)

// Session is the one open edit transaction of an engine. Entering editing
// seeds the draft with a deep copy of the target record, so in-place edits
// never touch the cached collection until commit. At most one session is open
// at a time; opening another implicitly cancels this one.
type Session struct {
	State    SessionState
	RecordID string // set when editing an existing record
	Draft    *resource.Draft
	LastErr  string // last failed commit, kept for the view
}

// SessionView is the serialized session state exposed to the presentation
// layer.
type SessionView struct {
	State    SessionState    `json:"state"`
	RecordID string          `json:"record_id,omitempty"`
	Draft    *resource.Draft `json:"draft"`
	Error    string          `json:"error,omitempty"`
}

func (s *Session) view() *SessionView {
	if s == nil {
		return nil
	}
	return &SessionView{State: s.State, RecordID: s.RecordID, Draft: s.Draft, Error: s.LastErr}
}
