package sshclient

import (
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDAllocator(t *testing.T) {
	var ids idAllocator

	seen := make(map[uint32]bool)
	for i := 0; i < 1000; i++ {
		id := ids.Next()
		assert.False(t, seen[id], "id %d handed out twice", id)
		seen[id] = true
	}

	ids.next = ^uint32(0)
	assert.Equal(t, uint32(0), ids.Next())
	assert.Equal(t, uint32(1), ids.Next())
}

func TestPageAllocator(t *testing.T) {
	const pageSize = 64

	allocator := newPageAllocator(pageSize)
	// get a page for request id 1
	page := allocator.GetPage(1)
	assert.Equal(t, 0, len(page))
	assert.Equal(t, pageSize, cap(page))
	page = append(page, 0, 1)
	assert.Equal(t, 1, allocator.countUsedPages())
	// get another page for request id 1, we now have 2 used pages
	page = allocator.GetPage(1)
	page = append(page, 2)
	assert.Equal(t, 2, allocator.countUsedPages())
	// get another page for request id 1, we now have 3 used pages
	page = allocator.GetPage(1)
	page = append(page, 0, 0, 3)
	assert.Equal(t, 3, allocator.countUsedPages())
	// release the pages for request id 1, we now have 3 available pages
	allocator.ReleasePages(1)
	assert.False(t, allocator.isRequestIDUsed(1))
	assert.Equal(t, 3, allocator.countAvailablePages())
	// get a page for request id 2
	// we get the latest released page, verify that by checking the previously written values
	page = allocator.GetPage(2)
	assert.Equal(t, uint8(3), page[:3][2])
	assert.Equal(t, 2, allocator.countAvailablePages())
	assert.Equal(t, 1, allocator.countUsedPages())
	page = allocator.GetPage(2)
	assert.Equal(t, uint8(2), page[:1][0])
	assert.Equal(t, 1, allocator.countAvailablePages())
	assert.Equal(t, 2, allocator.countUsedPages())
	page = allocator.GetPage(2)
	assert.Equal(t, uint8(1), page[:2][1])
	// we now have 3 used pages for request id 2 and no available pages
	assert.Equal(t, 0, allocator.countAvailablePages())
	assert.Equal(t, 3, allocator.countUsedPages())
	assert.True(t, allocator.isRequestIDUsed(2), "page with request id 2 must be used")
	assert.False(t, allocator.isRequestIDUsed(1), "page with request id 1 must be not used")
	// release some request id with no allocated pages, should have no effect
	allocator.ReleasePages(1)
	allocator.ReleasePages(3)
	assert.Equal(t, 0, allocator.countAvailablePages())
	assert.Equal(t, 3, allocator.countUsedPages())
	// now get a page for another request id
	allocator.GetPage(3)
	assert.Equal(t, 0, allocator.countAvailablePages())
	assert.Equal(t, 4, allocator.countUsedPages())
	assert.True(t, allocator.isRequestIDUsed(3), "page with request id 3 must be used")
	allocator.ReleasePages(2)
	allocator.ReleasePages(3)
	assert.Equal(t, 4, allocator.countAvailablePages())
	assert.Equal(t, 0, allocator.countUsedPages())
	// free the allocator
	allocator.Free()
	assert.Equal(t, 0, allocator.countAvailablePages())
	assert.Equal(t, 0, allocator.countUsedPages())
}

func BenchmarkPageAllocatorSerial(b *testing.B) {
	allocator := newPageAllocator(1024)
	for i := 0; i < b.N; i++ {
		benchPageAllocator(allocator, uint32(i))
	}
}

func BenchmarkPageAllocatorParallel(b *testing.B) {
	var counter uint32
	allocator := newPageAllocator(1024)
	for i := 1; i <= 8; i *= 2 {
		b.Run(strconv.Itoa(i), func(b *testing.B) {
			b.SetParallelism(i)
			b.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					benchPageAllocator(allocator, atomic.AddUint32(&counter, 1))
				}
			})
		})
	}
}

func benchPageAllocator(allocator *pageAllocator, requestID uint32) {
	// simulates the page taken by the writer to marshal a request
	allocator.GetPage(requestID)
	// release the allocated pages once written
	allocator.ReleasePages(requestID)
}
