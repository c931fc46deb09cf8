// Package source tracks the live set of sound emitters and snapshots it into the batch-local
// source lists traced each frame.
package source

import (
	"github.com/acoustrace/acoustrace/oerror"
	"github.com/acoustrace/acoustrace/raytrace"
	"github.com/elliotchance/orderedmap/v2"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/sasha-s/go-deadlock"
)

// Emitter is a sound source in the scene.
type Emitter struct {
	ID       uuid.UUID
	Name     string
	Position mgl64.Vec3
	// Enabled emitters take part in raytracing. Disabled ones are kept but never snapshotted.
	Enabled bool
}

// Registry holds emitters in insertion order.
type Registry struct {
	emitters *orderedmap.OrderedMap[uuid.UUID, *Emitter]

	deadlock.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{emitters: orderedmap.NewOrderedMap[uuid.UUID, *Emitter]()}
}

// Add registers an enabled emitter and returns its id.
func (r *Registry) Add(name string, pos mgl64.Vec3) (uuid.UUID, error) {
	r.Lock()
	defer r.Unlock()

	if r.emitters.Len() >= raytrace.MaxSources {
		return uuid.Nil, oerror.Configuration("registry is full (%d emitters)", raytrace.MaxSources)
	}
	e := &Emitter{ID: uuid.New(), Name: name, Position: pos, Enabled: true}
	r.emitters.Set(e.ID, e)
	return e.ID, nil
}

// Remove deletes an emitter. It returns false if the id is unknown.
func (r *Registry) Remove(id uuid.UUID) bool {
	r.Lock()
	defer r.Unlock()
	return r.emitters.Delete(id)
}

func (r *Registry) SetPosition(id uuid.UUID, pos mgl64.Vec3) bool {
	r.Lock()
	defer r.Unlock()

	e, ok := r.emitters.Get(id)
	if ok {
		e.Position = pos
	}
	return ok
}

func (r *Registry) SetEnabled(id uuid.UUID, enabled bool) bool {
	r.Lock()
	defer r.Unlock()

	e, ok := r.emitters.Get(id)
	if ok {
		e.Enabled = enabled
	}
	return ok
}

// Emitter returns a copy of the emitter with the given id.
func (r *Registry) Emitter(id uuid.UUID) (Emitter, bool) {
	r.RLock()
	defer r.RUnlock()

	e, ok := r.emitters.Get(id)
	if !ok {
		return Emitter{}, false
	}
	return *e, true
}

func (r *Registry) Len() int {
	r.RLock()
	defer r.RUnlock()
	return r.emitters.Len()
}

// Snapshot assigns batch-local indices to the enabled emitters, in insertion order.
func (r *Registry) Snapshot() Snapshot {
	r.RLock()
	defer r.RUnlock()

	s := Snapshot{
		Sources: make([]raytrace.Source, 0, r.emitters.Len()),
		IDs:     make([]uuid.UUID, 0, r.emitters.Len()),
	}
	for el := r.emitters.Front(); el != nil; el = el.Next() {
		if !el.Value.Enabled {
			continue
		}
		s.Sources = append(s.Sources, raytrace.Source{Index: uint16(len(s.Sources)), Position: el.Value.Position})
		s.IDs = append(s.IDs, el.Key)
	}
	return s
}

// Snapshot is the source list of one frame. Sources[i].Index == i and IDs[i] is the emitter
// behind it.
type Snapshot struct {
	Sources []raytrace.Source
	IDs     []uuid.UUID
}

// Resolve maps a batch-local index back to its emitter.
func (s Snapshot) Resolve(index uint16) (uuid.UUID, bool) {
	if int(index) >= len(s.IDs) {
		return uuid.Nil, false
	}
	return s.IDs[index], true
}
