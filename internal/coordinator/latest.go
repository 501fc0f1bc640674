package coordinator

import "sync"

// Latest enforces last-selection-wins at the presentation boundary: once an
// artifact built from selection seq N has been presented for a view, any
// artifact for that view built from an older selection is rejected.
type Latest struct {
	mu   sync.Mutex
	seen map[View]uint64
}

// NewLatest creates an empty guard
func NewLatest() *Latest {
	return &Latest{seen: make(map[View]uint64)}
}

// Accept records seq for view and reports whether it may be presented.
// Equal sequence numbers are accepted so an explicit refresh can resend.
func (l *Latest) Accept(v View, seq uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if last, ok := l.seen[v]; ok && seq < last {
		return false
	}
	l.seen[v] = seq
	return true
}
