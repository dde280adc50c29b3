package manager

import (
	"github.com/rs/zerolog/log"
)

// scheduleRetention queues retention enforcement for a session as an
// observable background task; Flush waits for it.
func (m *Manager) scheduleRetention(sessionID string) {
	m.bg.Add(1)
	go func() {
		defer m.bg.Done()
		m.queue.Do(sessionID, func() {
			m.enforceRetention(sessionID)
		})
	}()
}

// enforceRetention evicts oldest-first until the session is back under the
// configured patch count and byte budget. Must run inside the session
// queue.
func (m *Manager) enforceRetention(sessionID string) {
	m.mu.Lock()
	current := m.sessionID
	ix, store := m.index, m.store
	m.mu.Unlock()
	if current != sessionID {
		// The session moved on before this ran; the new session gets its
		// own retention pass on its next capture.
		return
	}

	evict := m.policy.Evict(ix, store.SizeOf)
	if len(evict) == 0 {
		return
	}

	numbers := make(map[int]struct{}, len(evict))
	for _, meta := range evict {
		numbers[meta.PatchNumber] = struct{}{}
	}
	ix.RemoveMany(numbers)
	if err := ix.Save(m.indexPath(sessionID)); err != nil {
		log.Warn().Err(err).Str("session", sessionID).Msg("retention: failed to save index after eviction")
	}
	for _, meta := range evict {
		store.Delete(meta.PatchFile)
	}
	log.Info().Int("evicted", len(evict)).Str("session", sessionID).Msg("retention: evicted oldest patches")
}
