package sshclient

import (
	"sync"
)

// idAllocator hands out request ids.
// It is only ever used from the owning goroutine of a Channel, and so takes no lock.
type idAllocator struct {
	next uint32
}

// Next returns the next request id.
// Ids wrap around after 2^32 allocations.
func (a *idAllocator) Next() uint32 {
	a.next++
	return a.next
}

// pageAllocator recycles the buffers outbound packets are marshaled into.
// Pages are tracked by the request id they were taken for,
// and all return to the pool once that request has been written.
type pageAllocator struct {
	sync.Mutex

	pageSize  int
	available [][]byte
	// map key is the request id
	used map[uint32][][]byte
}

func newPageAllocator(pageSize int) *pageAllocator {
	return &pageAllocator{
		pageSize: pageSize,
		used:     make(map[uint32][][]byte),
	}
}

// GetPage returns a previously allocated and unused []byte or creates a new one.
// The page has zero length and a capacity of at least pageSize.
func (a *pageAllocator) GetPage(requestID uint32) []byte {
	a.Lock()
	defer a.Unlock()

	var result []byte

	// get an available page and remove it from the available ones
	if n := len(a.available); n > 0 {
		result = a.available[n-1]

		a.available[n-1] = nil // clear out the internal pointer
		a.available = a.available[:n-1]
	}

	if result == nil {
		result = make([]byte, 0, a.pageSize)
	}

	a.used[requestID] = append(a.used[requestID], result)

	return result[:0]
}

// ReleasePages marks unused all pages in use for the given request id.
func (a *pageAllocator) ReleasePages(requestID uint32) {
	a.Lock()
	defer a.Unlock()

	if used := a.used[requestID]; len(used) > 0 {
		a.available = append(a.available, used...)
	}
	delete(a.used, requestID)
}

// Free removes all the used and free pages.
func (a *pageAllocator) Free() {
	a.Lock()
	defer a.Unlock()

	a.available = nil
	a.used = make(map[uint32][][]byte)
}

func (a *pageAllocator) countUsedPages() int {
	a.Lock()
	defer a.Unlock()

	num := 0
	for _, p := range a.used {
		num += len(p)
	}
	return num
}

func (a *pageAllocator) countAvailablePages() int {
	a.Lock()
	defer a.Unlock()

	return len(a.available)
}

func (a *pageAllocator) isRequestIDUsed(requestID uint32) bool {
	a.Lock()
	defer a.Unlock()

	_, ok := a.used[requestID]
	return ok
}
