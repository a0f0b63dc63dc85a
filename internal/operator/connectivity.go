package operator

import "sync"

// Connectivity tracks whether the document store is believed reachable.
type Connectivity struct {
	mu          sync.RWMutex
	online      bool
	reconnected chan struct{}
}

func NewConnectivity(online bool) *Connectivity {
	return &Connectivity{
		online:      online,
		reconnected: make(chan struct{}, 1),
	}
}

func (c *Connectivity) Online() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.online
}

// SetOnline records the new state. Going from offline to online signals Reconnected.
func (c *Connectivity) SetOnline(online bool) {
	c.mu.Lock()
	wasOnline := c.online
	c.online = online
	c.mu.Unlock()

	if online && !wasOnline {
		select {
		case c.reconnected <- struct{}{}:
		default:
		}
	}
}

// Reconnected fires after the store comes back. Pending signals coalesce.
func (c *Connectivity) Reconnected() <-chan struct{} {
	return c.reconnected
}
