package domain

import (
	"time"
)

type LineageAction string

const (
	LineagePublish LineageAction = "publish"
	LineageFetch   LineageAction = "fetch"
	LineageEvict   LineageAction = "evict"
)

// LineageRecord is one append-only audit entry of the data flow: which
// node output fed which node input, and when buffered values were freed.
type LineageRecord struct {
	Action    LineageAction `json:"action"`
	Producer  string        `json:"producer"`
	Port      string        `json:"port"`
	Consumer  string        `json:"consumer,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}
