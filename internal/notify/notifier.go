// Package notify provides an in-process notification bus for dataset changes.
package notify

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// NotificationType represents the type of notification.
type NotificationType int

const (
	// DatasetLoaded is published for the first successful fetch.
	DatasetLoaded NotificationType = iota
	// DatasetChanged is published when a fetch returns different data.
	DatasetChanged
	// DatasetInvalidated is published when the cached dataset is dropped.
	DatasetInvalidated
)

// String returns the lower case name of the type.
func (t NotificationType) String() string {
	switch t {
	case DatasetLoaded:
		return "loaded"
	case DatasetChanged:
		return "changed"
	case DatasetInvalidated:
		return "invalidated"
	default:
		return "unknown"
	}
}

// MarshalText encodes the type by name.
func (t NotificationType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Notification describes one dataset event.
type Notification struct {
	Type        NotificationType `json:"type"`
	Table       string           `json:"table"`
	Fingerprint uint64           `json:"fingerprint"`
	Previous    uint64           `json:"previous,omitempty"`
	Records     int              `json:"records"`
	Timestamp   int64            `json:"timestamp"`
}

// Subscriber receives notifications on Ch.
type Subscriber struct {
	ID      string
	Filters []string
	Ch      chan Notification
}

// Notifier is a pub/sub bus. Publishing never blocks.
type Notifier struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	bufferSize  int
}

// NewNotifier creates a notifier whose subscriber channels hold bufferSize
// notifications.
func NewNotifier(bufferSize int) *Notifier {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Notifier{
		subscribers: make(map[string]*Subscriber),
		bufferSize:  bufferSize,
	}
}

// Publish sends notif to every matching subscriber. A subscriber whose channel
// is full misses the notification.
// The read lock keeps Unsubscribe from closing a channel mid-send.
func (n *Notifier) Publish(notif Notification) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, sub := range n.subscribers {
		if !matchesFilter(sub, notif.Table) {
			continue
		}
		select {
		case sub.Ch <- notif:
		default:
		}
	}
}

// Subscribe adds a subscriber. Filters are table name prefixes; none means
// every table.
func (n *Notifier) Subscribe(filters ...string) *Subscriber {
	sub := &Subscriber{
		ID:      uuid.New().String(),
		Filters: filters,
		Ch:      make(chan Notification, n.bufferSize),
	}
	n.mu.Lock()
	n.subscribers[sub.ID] = sub
	n.mu.Unlock()
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (n *Notifier) Unsubscribe(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if sub, ok := n.subscribers[id]; ok {
		delete(n.subscribers, id)
		close(sub.Ch)
	}
}

// Len returns the number of subscribers.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subscribers)
}

func matchesFilter(sub *Subscriber, table string) bool {
	if len(sub.Filters) == 0 {
		return true
	}
	for _, filter := range sub.Filters {
		if filter == "" || strings.HasPrefix(table, filter) {
			return true
		}
	}
	return false
}
