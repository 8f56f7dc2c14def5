package dsstub

import (
	"errors"
	"math"
	"sync"
)

var errIDSpaceExhausted = errors.New("id space exhausted")

// idAllocator hands out leaf ids. next is always greater than every id
// allocated or observed in storage, except that it saturates at
// math.MaxInt64, which is never handed out. Ids are never handed out twice.
type idAllocator struct {
	mu   sync.Mutex
	next int64
}

func (a *idAllocator) reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.next = 1
}

func (a *idAllocator) allocate() (int64, error) {
	start, _, err := a.allocateRange(1)
	return start, err
}

// allocateRange reserves [start, end).
func (a *idAllocator) allocateRange(size int64) (start, end int64, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if size > math.MaxInt64-a.next {
		return 0, 0, internalErrorf(errIDSpaceExhausted, "cannot allocate %d ids after %d", size, a.next)
	}
	start = a.next
	a.next += size
	return start, a.next, nil
}

// observe makes sure id will never be allocated.
func (a *idAllocator) observe(id int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if id >= a.next {
		if id == math.MaxInt64 {
			a.next = math.MaxInt64
		} else {
			a.next = id + 1
		}
	}
}

func (a *idAllocator) peek() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.next
}

// AllocateIds reserves size consecutive ids and returns them as
// [start, end). The key only selects the app; ids are global to the engine.
func (e *Engine) AllocateIds(key *Key, size int64) (start, end int64, err error) {
	if key == nil || len(key.Path) == 0 {
		return 0, 0, badRequestf("AllocateIds requires a model key")
	}
	if size <= 0 {
		return 0, 0, badRequestf("AllocateIds size must be positive, got %d", size)
	}
	if size > math.MaxInt32 {
		return 0, 0, badRequestf("AllocateIds size %d is too large", size)
	}
	start, end, err = e.ids.allocateRange(size)
	if err != nil {
		return 0, 0, err
	}
	if e.verbose {
		e.logger.Debug("dsstub: ALLOCATE", "app", e.resolveKey(key).App, "start", start, "end", end)
	}
	return start, end, nil
}
