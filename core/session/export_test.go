package session

// PutRawForTest stores bytes without encoding them.
func PutRawForTest(m *MemoryBackend, key string, data []byte) {
	m.mu.Lock()
	m.items[key] = data
	m.mu.Unlock()
}
