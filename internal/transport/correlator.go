package transport

import "sync"

// reply is the outcome delivered to a pending request.
type reply struct {
	text string
	err  error
}

// correlator holds the ordered set of reply handlers for in-flight queries.
// The wire format has no request id, so the earliest registered handler is
// the one a reply fulfills.
type correlator struct {
	mu       sync.Mutex
	handlers []chan reply
}

// add registers a handler and returns its channel.
func (c *correlator) add() chan reply {
	ch := make(chan reply, 1)
	c.mu.Lock()
	c.handlers = append(c.handlers, ch)
	c.mu.Unlock()
	return ch
}

// remove deregisters a handler, returning false if it was already fulfilled.
func (c *correlator) remove(ch chan reply) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, h := range c.handlers {
		if h == ch {
			c.handlers = append(c.handlers[:i], c.handlers[i+1:]...)
			return true
		}
	}
	return false
}

// fulfill delivers a reply to the earliest registered handler and
// deregisters it. Returns false when no handler was waiting.
func (c *correlator) fulfill(r reply) bool {
	c.mu.Lock()
	if len(c.handlers) == 0 {
		c.mu.Unlock()
		return false
	}
	ch := c.handlers[0]
	c.handlers = c.handlers[1:]
	c.mu.Unlock()

	ch <- r
	return true
}

// failAll rejects every pending handler. Used on connection teardown so no
// request is ever left dangling.
func (c *correlator) failAll(err error) {
	c.mu.Lock()
	handlers := c.handlers
	c.handlers = nil
	c.mu.Unlock()

	for _, ch := range handlers {
		ch <- reply{err: err}
	}
}

// size reports the number of pending handlers.
func (c *correlator) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handlers)
}
