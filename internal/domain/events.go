package domain

import "time"

type EventKind string

const (
	EventNodeStatusChanged EventKind = "node.status_changed"
	EventMembershipChanged EventKind = "network.membership_changed"
	EventNewBlock          EventKind = "network.new_block"
)

type Event interface {
	Kind() EventKind
}

type NodeStatusChanged struct {
	Cluster string     `json:"cluster"`
	Node    string     `json:"node"`
	From    NodeStatus `json:"from"`
	To      NodeStatus `json:"to"`
	At      time.Time  `json:"at"`
}

func (NodeStatusChanged) Kind() EventKind { return EventNodeStatusChanged }

type MembershipAction string

const (
	MembershipAdded   MembershipAction = "added"
	MembershipRemoved MembershipAction = "removed"
)

type MembershipChanged struct {
	Cluster    string           `json:"cluster"`
	Node       string           `json:"node"`
	Action     MembershipAction `json:"action"`
	Validator  bool             `json:"validator"`
	Validators []string         `json:"validators"`
	At         time.Time        `json:"at"`
}

func (MembershipChanged) Kind() EventKind { return EventMembershipChanged }

type NewBlock struct {
	Cluster string    `json:"cluster"`
	Number  uint64    `json:"number"`
	At      time.Time `json:"at"`
}

func (NewBlock) Kind() EventKind { return EventNewBlock }
