/*
Package resilience provides the retry and failure-isolation primitives used
around the chat backend.

Backoff implements the reconnection policy for the streaming transport:
bounded exponential delays with a hard attempt ceiling, so a dropped
connection self-heals from transient network blips without producing a retry
storm against a degraded backend.

Breaker implements a circuit breaker guarding the HTTP fallback path, so
repeated fallback failures stop generating load until the backend recovers.

Example Usage:

	b := resilience.NewBackoff(time.Second, 5)
	for {
		delay, ok := b.Next()
		if !ok {
			break // ceiling reached
		}
		time.Sleep(delay)
		// try to reconnect ...
	}
*/
package resilience
