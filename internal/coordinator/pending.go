package coordinator

// Pending reports which mutations are currently in flight.
type Pending struct {
	CreatingChat bool
	sending      map[string]bool
}

// Sending reports whether a message post to chatID is in flight.
func (p Pending) Sending(chatID string) bool {
	return p.sending[chatID]
}

// Pending returns a snapshot of the in-flight mutations.
func (c *Coordinator) Pending() Pending {
	c.mu.Lock()
	defer c.mu.Unlock()

	sending := make(map[string]bool, len(c.sending))
	for chatID, n := range c.sending {
		if n > 0 {
			sending[chatID] = true
		}
	}
	return Pending{CreatingChat: c.creating > 0, sending: sending}
}

func (c *Coordinator) track(counter *int, delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	*counter += delta
}

func (c *Coordinator) trackSending(chatID string, delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sending[chatID] += delta
	if c.sending[chatID] <= 0 {
		delete(c.sending, chatID)
	}
}
