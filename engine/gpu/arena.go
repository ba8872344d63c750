package gpu

// arena stores backend-owned objects behind monotonically increasing handles.
// Handles are never reused, so a stale handle can only miss, never alias a newer object.
type arena[T any] struct {
	next  uint32
	items map[uint32]T
}

func newArena[T any]() *arena[T] {
	return &arena[T]{items: make(map[uint32]T)}
}

func (a *arena[T]) add(v T) uint32 {
	a.next++
	a.items[a.next] = v
	return a.next
}

func (a *arena[T]) get(id uint32) (T, bool) {
	v, ok := a.items[id]
	return v, ok
}

func (a *arena[T]) remove(id uint32) (T, bool) {
	v, ok := a.items[id]
	if ok {
		delete(a.items, id)
	}
	return v, ok
}

func (a *arena[T]) len() int {
	return len(a.items)
}

// drain removes every item in descending handle order, newest first, and hands it to release.
func (a *arena[T]) drain(release func(T)) {
	for id := a.next; id > 0; id-- {
		if v, ok := a.items[id]; ok {
			delete(a.items, id)
			release(v)
		}
	}
}
