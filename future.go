package sshclient

import (
	"context"
	"sync"
)

// Future is the eventual result of an asynchronous operation.
// It resolves exactly once, with either a value or an error.
type Future[T any] struct {
	once sync.Once
	done chan struct{}

	val T
	err error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{
		done: make(chan struct{}),
	}
}

// resolve sets the result of f, and reports whether this call was the one to resolve it.
func (f *Future[T]) resolve(val T, err error) bool {
	resolved := false

	f.once.Do(func() {
		f.val, f.err = val, err
		close(f.done)
		resolved = true
	})

	return resolved
}

func (f *Future[T]) fail(err error) bool {
	var zero T
	return f.resolve(zero, err)
}

// Done returns a channel that is closed once f has resolved.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until f resolves or ctx is done.
//
// A canceled ctx only stops the wait.
// The operation itself stays outstanding, and f still resolves once it completes.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Get blocks until f resolves.
func (f *Future[T]) Get() (T, error) {
	<-f.done
	return f.val, f.err
}
