package constants

// NodeStatus node status constants
type NodeStatus string

const (
	NodeStatusOnline  NodeStatus = "ONLINE"  // Connected, heartbeat fresh
	NodeStatusOffline NodeStatus = "OFFLINE" // Disconnected or heartbeat stale
)

func (s NodeStatus) String() string {
	return string(s)
}

// NodeType node type constants
type NodeType string

const (
	NodeTypeWorker   NodeType = "WORKER"
	NodeTypeOperator NodeType = "OPERATOR"
)

func (t NodeType) String() string {
	return string(t)
}

// IsValid reports whether the node type is a known value.
func (t NodeType) IsValid() bool {
	return t == NodeTypeWorker || t == NodeTypeOperator
}

// BroadcastTarget is the destination marker for broadcast messages.
const BroadcastTarget = "*"
