package observable

import (
	"context"
	"sync"
)

// Collection gathers every value of a Source until it completes.
type Collection[T any] struct {
	mu     sync.Mutex
	values []T
	err    error
	sub    Subscription
	done   chan struct{}
	once   sync.Once
}

// SubscribeAll subscribes to src right away, so values emitted between this
// call and Wait are not lost. Pair it with Take to bound the collection.
func SubscribeAll[T any](src Source[T]) *Collection[T] {
	c := &Collection[T]{
		done: make(chan struct{}),
	}

	sub := src.Subscribe(Observer[T]{
		Next: func(v T) {
			c.mu.Lock()
			c.values = append(c.values, v)
			c.mu.Unlock()
		},
		Error: func(err error) {
			c.finish(err)
		},
		Complete: func() {
			c.finish(nil)
		},
	})

	c.mu.Lock()
	c.sub = sub
	c.mu.Unlock()

	return c
}

func (c *Collection[T]) finish(err error) {
	c.once.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.done)
	})
}

// Done is closed once the source completes or errors.
func (c *Collection[T]) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the source completes and returns the values in emission
// order. When ctx ends first the subscription is dropped and ctx.Err() is
// returned.
func (c *Collection[T]) Wait(ctx context.Context) ([]T, error) {
	select {
	case <-c.done:
		c.Unsubscribe()
		c.mu.Lock()
		defer c.mu.Unlock()
		values := make([]T, len(c.values))
		copy(values, c.values)
		return values, c.err
	case <-ctx.Done():
		c.Unsubscribe()
		return nil, ctx.Err()
	}
}

func (c *Collection[T]) Unsubscribe() {
	c.mu.Lock()
	sub := c.sub
	c.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}
}
