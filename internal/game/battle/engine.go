package battle

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Engine holds every live battle, keyed by id. All methods are safe for
// concurrent use.
type Engine struct {
	mu      sync.RWMutex
	battles map[string]*Battle
}

// NewEngine creates an empty Engine.
func NewEngine() *Engine {
	return &Engine{battles: make(map[string]*Battle)}
}

// Start creates a battle from opts and registers it. An empty opts.ID is
// replaced with a fresh UUID.
func (e *Engine) Start(opts Options) (*Battle, error) {
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.battles[opts.ID]; exists {
		return nil, fmt.Errorf("battle %q already running", opts.ID)
	}
	b, err := New(opts)
	if err != nil {
		return nil, err
	}
	e.battles[b.ID()] = b
	return b, nil
}

// Get returns the battle with id.
func (e *Engine) Get(id string) (*Battle, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	b, ok := e.battles[id]
	return b, ok
}

// End forgets the battle with id.
func (e *Engine) End(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.battles, id)
}

// IDs returns the ids of every live battle, sorted.
func (e *Engine) IDs() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]string, 0, len(e.battles))
	for id := range e.battles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
