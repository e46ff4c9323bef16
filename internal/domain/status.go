package domain

type NodeStatus string

const (
	NodeCreated  NodeStatus = "created"
	NodeStarting NodeStatus = "starting"
	NodeRunning  NodeStatus = "running"
	NodeStopping NodeStatus = "stopping"
	NodeStopped  NodeStatus = "stopped"
	NodeError    NodeStatus = "error"
)

func (s NodeStatus) String() string {
	return string(s)
}

func (s NodeStatus) CanTransitionTo(target NodeStatus) bool {
	switch s {
	case NodeCreated:
		return target == NodeStarting
	case NodeStarting:
		return target == NodeRunning || target == NodeError
	case NodeRunning:
		return target == NodeStopping || target == NodeError
	case NodeStopping:
		return target == NodeStopped || target == NodeError
	case NodeStopped:
		return target == NodeStarting
	default:
		return false
	}
}

type NetworkStatus string

const (
	NetworkUninitialized NetworkStatus = "uninitialized"
	NetworkInitializing  NetworkStatus = "initializing"
	NetworkRunning       NetworkStatus = "running"
	NetworkStopping      NetworkStatus = "stopping"
	NetworkStopped       NetworkStatus = "stopped"
	NetworkError         NetworkStatus = "error"
)

func (s NetworkStatus) String() string {
	return string(s)
}

func (s NetworkStatus) CanTransitionTo(target NetworkStatus) bool {
	switch s {
	case NetworkUninitialized:
		return target == NetworkInitializing
	case NetworkInitializing:
		return target == NetworkRunning || target == NetworkError
	case NetworkRunning:
		return target == NetworkStopping || target == NetworkError
	case NetworkStopping:
		return target == NetworkStopped
	case NetworkError:
		return target == NetworkStopping
	default:
		return false
	}
}

func NodeStatusNames(statuses ...NodeStatus) []string {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	return names
}

func NetworkStatusNames(statuses ...NetworkStatus) []string {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	return names
}
