package types

import "fmt"

// SessionMeta carries the identity of one terminal session for log
// context. One SessionMeta covers exactly one channel lifetime.
type SessionMeta struct {
	// SessionID uniquely identifies this client session.
	SessionID string
	// RuntimeID is the assigned runtime, once known. May be empty
	// during acquisition.
	RuntimeID string
	// Variant is the requested hardware class.
	Variant Variant
}

// Validate checks session metadata before use.
func (m *SessionMeta) Validate() error {
	if m == nil {
		return fmt.Errorf("session metadata is required")
	}
	if m.SessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	return nil
}
