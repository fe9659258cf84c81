package constants

// MessageStatus message delivery status constants
type MessageStatus string

const (
	MessageStatusQueued    MessageStatus = "QUEUED"    // Store-and-forward, destination offline
	MessageStatusSent      MessageStatus = "SENT"      // Handed to transport, outcome pending
	MessageStatusDelivered MessageStatus = "DELIVERED"
	MessageStatusFailed    MessageStatus = "FAILED"
	MessageStatusExpired   MessageStatus = "EXPIRED" // Queued past its expiry, swept by purge
)

func (s MessageStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition is permitted.
func (s MessageStatus) IsTerminal() bool {
	switch s {
	case MessageStatusDelivered, MessageStatusFailed, MessageStatusExpired:
		return true
	}
	return false
}
