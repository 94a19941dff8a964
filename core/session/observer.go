package session

// Observer receives chain and save events for metrics.
// Implementations must be safe for concurrent use.
type Observer interface {
	// TierHit reports a read served by the backend at the given write-order index.
	TierHit(tier int)
	// Miss reports a read that found no live record.
	Miss()
	// SaveAttempt reports one write-through attempt of a dirty session.
	SaveAttempt()
	// SaveSucceeded reports a completed save and the attempts it took.
	SaveSucceeded(attempts int)
	// SaveAbandoned reports a save that gave up: "exhausted", "fatal" or "deadline".
	SaveAbandoned(reason string)
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) TierHit(int)          {}
func (NopObserver) Miss()                {}
func (NopObserver) SaveAttempt()         {}
func (NopObserver) SaveSucceeded(int)    {}
func (NopObserver) SaveAbandoned(string) {}
