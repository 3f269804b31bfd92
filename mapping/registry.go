package mapping

import (
	"sync"

	"github.com/pkg/errors"
)

// ErrUnknownStatement is returned when a statement id is not registered.
var ErrUnknownStatement = errors.New("mapping: unknown statement")

// Registry holds the mapped statements by id.
type Registry struct {
	mu         sync.RWMutex
	statements map[string]*Statement
}

func NewRegistry() *Registry {
	return &Registry{statements: make(map[string]*Statement)}
}

// Add registers stmt. Ids must be unique.
func (r *Registry) Add(stmt *Statement) error {
	if stmt == nil || stmt.ID == "" {
		return errors.New("mapping: statement requires an id")
	}
	if stmt.Source == nil {
		return errors.Errorf("mapping: statement %s has no sql source", stmt.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.statements[stmt.ID]; ok {
		return errors.Errorf("mapping: statement %s already registered", stmt.ID)
	}
	r.statements[stmt.ID] = stmt
	return nil
}

func (r *Registry) Statement(id string) (*Statement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stmt, ok := r.statements[id]
	if !ok {
		return nil, errors.Wrap(ErrUnknownStatement, id)
	}
	return stmt, nil
}

func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.statements[id]
	return ok
}
