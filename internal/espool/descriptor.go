package espool

// Descriptor is the contract an entropy source presents to the surrounding
// source manager: estimates, fetch and a human-readable status. The manager
// never receives a hard error through this interface; a struggling source
// reports fewer (possibly zero) entropy bits instead.
type Descriptor interface {
	Name() string
	EntropyLevel(requestedBits uint32) uint32
	PoolSize() uint32
	Fetch(requestedBits uint32, oversampled bool) ([]byte, uint32)
	State() string
}

var _ Descriptor = (*Pool)(nil)
