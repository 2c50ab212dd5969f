package atomics

// Scope is the coherence domain in which atomic operations are visible.
type Scope int

const (
	// ScopeHost covers the threads of the host process.
	ScopeHost Scope = iota
	// ScopeSystem covers every processor mapping the same memory: other
	// processes and attached devices.
	ScopeSystem
)

func (s Scope) String() string {
	if s == ScopeSystem {
		return "system"
	}
	return "host"
}
