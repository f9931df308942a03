package sim

import (
	"errors"
	"fmt"
)

var (
	// ErrResourceHeld is returned when a train claims a resource another train holds.
	ErrResourceHeld = errors.New("resource held by another train")
	// ErrUnknownResource is returned when a section references an unregistered resource.
	ErrUnknownResource = errors.New("unknown resource")
)

// ResourceID indexes the Registry.
type ResourceID int

// Resource is a serially reusable piece of track or platform.
//
// State machine: free -> held (Enter) -> held, vacated (Exit) -> free (Release,
// once ReleaseTime has elapsed since the exit). A held resource stays
// unavailable to other trains during the release cooldown.
type Resource struct {
	ID               ResourceID
	Name             string
	ReleaseTime      int64
	FollowingAllowed bool

	holder    TrainID
	occupied  bool
	releaseAt int64
}

// Holder returns the train currently holding the resource, or NoTrain.
func (r *Resource) Holder() TrainID {
	return r.holder
}

// Occupied reports whether the holder is physically on the resource.
func (r *Resource) Occupied() bool {
	return r.occupied
}

// ReleaseAt returns the earliest time a vacated resource becomes free.
func (r *Resource) ReleaseAt() int64 {
	return r.releaseAt
}

// IsFreeFor reports whether train may enter: the resource is unheld or already held by train.
func (r *Resource) IsFreeFor(train TrainID) bool {
	return r.holder == NoTrain || r.holder == train
}

func (r *Resource) reset() {
	r.holder = NoTrain
	r.occupied = false
	r.releaseAt = Unset
}

// Registry owns every resource of a problem instance.
// Not thread-safe: only the simulation loop mutates it.
type Registry struct {
	resources []Resource
	byName    map[string]ResourceID
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		resources: make([]Resource, 0),
		byName:    make(map[string]ResourceID),
	}
}

// Add registers a resource and returns its ID. Registering a name twice returns the existing ID.
func (g *Registry) Add(name string, releaseTime int64, followingAllowed bool) ResourceID {
	if id, ok := g.byName[name]; ok {
		return id
	}
	id := ResourceID(len(g.resources))
	r := Resource{ID: id, Name: name, ReleaseTime: releaseTime, FollowingAllowed: followingAllowed}
	r.reset()
	g.resources = append(g.resources, r)
	g.byName[name] = id
	return id
}

// Lookup returns the ID of the named resource.
func (g *Registry) Lookup(name string) (ResourceID, error) {
	id, ok := g.byName[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownResource, name)
	}
	return id, nil
}

// Len returns the number of registered resources.
func (g *Registry) Len() int {
	return len(g.resources)
}

// Get returns the resource with the given ID.
func (g *Registry) Get(id ResourceID) *Resource {
	return &g.resources[id]
}

// Contains reports whether id is registered.
func (g *Registry) Contains(id ResourceID) bool {
	return id >= 0 && int(id) < len(g.resources)
}

// IsFreeFor reports whether train may enter resource id.
func (g *Registry) IsFreeFor(id ResourceID, train TrainID) bool {
	return g.resources[id].IsFreeFor(train)
}

// Enter marks the resource held and occupied by train.
func (g *Registry) Enter(id ResourceID, train TrainID, at int64) error {
	r := &g.resources[id]
	if !r.IsFreeFor(train) {
		return fmt.Errorf("%w: %s held by train %d, claimed by train %d at %d", ErrResourceHeld, r.Name, r.holder, train, at)
	}
	r.holder = train
	r.occupied = true
	r.releaseAt = Unset
	return nil
}

// Exit records that train left the resource at the given time and returns
// the time its deferred release becomes due.
func (g *Registry) Exit(id ResourceID, train TrainID, at int64) int64 {
	r := &g.resources[id]
	if r.holder != train {
		return at + r.ReleaseTime
	}
	r.occupied = false
	r.releaseAt = at + r.ReleaseTime
	return r.releaseAt
}

// Release clears train's hold once the cooldown has elapsed. It is a no-op
// when the train re-entered the resource or a later exit moved the due time.
func (g *Registry) Release(id ResourceID, train TrainID, at int64) bool {
	r := &g.resources[id]
	if r.holder != train || r.occupied || at < r.releaseAt {
		return false
	}
	r.holder = NoTrain
	r.releaseAt = Unset
	return true
}

// Restore sets a hold directly; used when rebuilding state after a rollback.
func (g *Registry) Restore(id ResourceID, train TrainID, occupied bool, releaseAt int64) error {
	r := &g.resources[id]
	if !r.IsFreeFor(train) {
		return fmt.Errorf("%w: restoring %s for train %d, held by train %d", ErrResourceHeld, r.Name, train, r.holder)
	}
	r.holder = train
	r.occupied = occupied
	r.releaseAt = releaseAt
	return nil
}

// FreeAll resets every resource to unheld with no pending history.
func (g *Registry) FreeAll() {
	for i := range g.resources {
		g.resources[i].reset()
	}
}
