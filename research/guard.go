// Iteration Guard - shared termination policy for research loops.
//
// Information Hiding:
// - Budget accounting hidden behind Record/ShouldContinue
// - Caps injected at construction, never hardwired in loop bodies

package research

// IterationState tracks progress against an iteration budget. It is a value
// threaded through a single loop instance, never shared between loops, so
// concurrent workers need no synchronization around their counters.
type IterationState struct {
	Count int
	Cap   int
}

// Guard is the termination policy consulted by worker and supervisor loops.
// A cap of c allows exactly c+1 decide passes before forcing termination.
type Guard struct {
	cap int
}

// NewGuard creates a guard with the given iteration cap.
func NewGuard(cap int) Guard {
	if cap < 0 {
		cap = 0
	}
	return Guard{cap: cap}
}

// Cap returns the configured iteration cap.
func (g Guard) Cap() int {
	return g.cap
}

// Start returns the initial iteration state for one loop instance.
func (g Guard) Start() IterationState {
	return IterationState{Cap: g.cap}
}

// Record counts one loop pass. Called before the decide step.
func (g Guard) Record(state IterationState) IterationState {
	state.Count++
	return state
}

// ShouldContinue reports whether the loop may enter another pass.
func (g Guard) ShouldContinue(state IterationState) bool {
	return state.Count <= state.Cap
}
