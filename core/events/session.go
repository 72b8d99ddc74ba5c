package events

// SessionEvent reports hub membership changes. Action is "added" or "removed".
type SessionEvent struct {
	SessionID string
	AccountID string
	Action    string
}
