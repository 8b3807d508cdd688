package chat

import "sync"

// Registry is the room's directory of currently-connected humans and active
// personas. It is the only shared mutable state in the core; every operation
// takes the internal mutex so adds, removes, and listings are linearizable
// with respect to each other. Connection handlers and the scheduler must
// never hold references into its internals.
type Registry struct {
	mu           sync.Mutex
	humans       map[string]Participant
	humanOrder   []string
	personas     map[string]Participant
	personaOrder []string
}

// NewRegistry returns an empty presence registry.
func NewRegistry() *Registry {
	return &Registry{
		humans:   make(map[string]Participant),
		personas: make(map[string]Participant),
	}
}

// AddHuman registers a human participant. Re-adding an existing id refreshes
// the stored attributes in place (reconnect race) without changing the count
// or the roster position.
func (r *Registry) AddHuman(p Participant) {
	p.IsPersona = false
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.humans[p.ID]; !ok {
		r.humanOrder = append(r.humanOrder, p.ID)
	}
	r.humans[p.ID] = p
}

// RemoveHuman deregisters a human by id. Removing an absent id is a no-op
// reporting found=false.
func (r *Registry) RemoveHuman(id string) (Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.humans[id]
	if !ok {
		return Participant{}, false
	}
	delete(r.humans, id)
	for i, existing := range r.humanOrder {
		if existing == id {
			r.humanOrder = append(r.humanOrder[:i], r.humanOrder[i+1:]...)
			break
		}
	}
	return p, true
}

// AddPersona registers a persona participant, deduplicated by id like humans.
func (r *Registry) AddPersona(p Participant) {
	p.IsPersona = true
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.personas[p.ID]; !ok {
		r.personaOrder = append(r.personaOrder, p.ID)
	}
	r.personas[p.ID] = p
}

// ClearPersonas removes every persona from the roster.
func (r *Registry) ClearPersonas() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.personas = make(map[string]Participant)
	r.personaOrder = nil
}

// ListAll returns the roster: humans first, then personas, each group in
// insertion order. The slice is a copy.
func (r *Registry) ListAll() []Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Participant, 0, len(r.humanOrder)+len(r.personaOrder))
	for _, id := range r.humanOrder {
		out = append(out, r.humans[id])
	}
	for _, id := range r.personaOrder {
		out = append(out, r.personas[id])
	}
	return out
}

// HumanCount returns the number of connected humans, excluding personas.
func (r *Registry) HumanCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.humans)
}

// TotalCount returns the number of all online participants, personas
// included.
func (r *Registry) TotalCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.humans) + len(r.personas)
}

// IsHumanOnline reports whether a human with the given id is connected.
func (r *Registry) IsHumanOnline(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.humans[id]
	return ok
}
