package board

import "sync"

// TargetKind tells what a droppable region represents.
type TargetKind int

const (
	TargetNone TargetKind = iota
	TargetColumn
	TargetCard
)

// Surface is the capability a drag-and-drop system exposes to the board.
// Columns and cards register themselves; the platform reports drag start and end.
type Surface interface {
	RegisterDraggable(id string)
	RegisterDroppable(id string, kind TargetKind)
	OnDragStart(id string) (Outcome, error)
	OnDragEnd(id, targetID string) Outcome
}

// Registry records which ids are draggable and which are drop targets.
type Registry struct {
	mu         sync.RWMutex
	draggables map[string]struct{}
	droppables map[string]TargetKind
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		draggables: make(map[string]struct{}),
		droppables: make(map[string]TargetKind),
	}
}

func (r *Registry) RegisterDraggable(id string) {
	r.mu.Lock()
	r.draggables[id] = struct{}{}
	r.mu.Unlock()
}

func (r *Registry) RegisterDroppable(id string, kind TargetKind) {
	if kind == TargetNone {
		return
	}
	r.mu.Lock()
	r.droppables[id] = kind
	r.mu.Unlock()
}

// Unregister forgets id as both drag source and drop target.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	delete(r.draggables, id)
	delete(r.droppables, id)
	r.mu.Unlock()
}

// Reset drops every registration, used when a view re-renders from a fresh list.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.draggables = make(map[string]struct{})
	r.droppables = make(map[string]TargetKind)
	r.mu.Unlock()
}

// Draggable reports whether id was registered as a drag source.
func (r *Registry) Draggable(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.draggables[id]
	return ok
}

// Target returns the kind of drop target registered under id.
func (r *Registry) Target(id string) TargetKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.droppables[id]
}
