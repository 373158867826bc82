package gateway

import (
	"strings"
	"sync"
)

// callResult is what every waiter on a deduplicated request receives
type callResult struct {
	status int
	body   []byte
	err    error
}

// inflightCall tracks one in-progress backend request
type inflightCall struct {
	done   chan struct{}
	result callResult
}

// inflightRegistry deduplicates concurrent identical requests. UI re-renders
// can fire the same fetch several times; only the first issues a network call,
// the rest share its result. Entries are removed when the call settles,
// success or failure.
type inflightRegistry struct {
	mu    sync.Mutex
	calls map[string]*inflightCall
}

func newInflightRegistry() *inflightRegistry {
	return &inflightRegistry{calls: make(map[string]*inflightCall)}
}

// requestKey canonicalizes a request signature. identity is the caller's
// session key and token: the client is shared by every HTTP session, so two
// different users issuing the same request must never share a response.
func requestKey(identity, method, path, query string, body []byte) string {
	var b strings.Builder
	b.WriteString(identity)
	b.WriteByte('|')
	b.WriteString(method)
	b.WriteByte('|')
	b.WriteString(path)
	b.WriteByte('|')
	b.WriteString(query)
	b.WriteByte('|')
	b.Write(body)
	return b.String()
}

// begin either registers a new call (owner == true) or returns the existing
// one to wait on
func (r *inflightRegistry) begin(key string) (*inflightCall, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if call, ok := r.calls[key]; ok {
		return call, false
	}
	call := &inflightCall{done: make(chan struct{})}
	r.calls[key] = call
	return call, true
}

// settle publishes the result and removes the registry entry
func (r *inflightRegistry) settle(key string, call *inflightCall, res callResult) {
	r.mu.Lock()
	delete(r.calls, key)
	r.mu.Unlock()

	call.result = res
	close(call.done)
}
