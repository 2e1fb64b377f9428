package ecs

// World owns the ID pool, the component registry, and a deferred destruction
// queue flushed by CleanupSystem each tick. Pooled instances keep their ID
// for their whole lifetime; only pool teardown queues them for destruction.
type World struct {
	ids          *IDPool
	registry     *Registry
	destroyQueue []EntityID
}

func NewWorld() *World {
	return &World{
		ids:          NewIDPool(),
		registry:     NewRegistry(),
		destroyQueue: make([]EntityID, 0, 64),
	}
}

func (w *World) IDs() *IDPool        { return w.ids }
func (w *World) Registry() *Registry { return w.registry }

func (w *World) CreateEntity() EntityID {
	return w.ids.Create()
}

func (w *World) Alive(id EntityID) bool {
	return w.ids.Alive(id)
}

// MarkForDestruction queues an entity for end-of-tick cleanup.
func (w *World) MarkForDestruction(id EntityID) {
	w.destroyQueue = append(w.destroyQueue, id)
}

// PendingDestruction returns the number of queued entities.
func (w *World) PendingDestruction() int { return len(w.destroyQueue) }

// FlushDestroyQueue destroys all queued entities and clears their components.
func (w *World) FlushDestroyQueue() int {
	n := 0
	for _, id := range w.destroyQueue {
		w.registry.RemoveAll(id)
		if w.ids.Destroy(id) {
			n++
		}
	}
	w.destroyQueue = w.destroyQueue[:0]
	return n
}
