package manager

import "sync"

// keyedQueue serializes work per key. Patch operations have no internal
// locking around their load-mutate-save cycle, so every mutating manager
// call for a session runs through Do with the session id as the key; two
// concurrent captures or undos against the same session can never
// interleave.
type keyedQueue struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedQueue() *keyedQueue {
	return &keyedQueue{locks: make(map[string]*sync.Mutex)}
}

// Do runs fn while holding the lock for key. Work for different keys
// proceeds in parallel; work for the same key runs in arrival order.
func (q *keyedQueue) Do(key string, fn func()) {
	q.mu.Lock()
	l, ok := q.locks[key]
	if !ok {
		l = &sync.Mutex{}
		q.locks[key] = l
	}
	q.mu.Unlock()

	l.Lock()
	defer l.Unlock()
	fn()
}
