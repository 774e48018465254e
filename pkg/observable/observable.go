package observable

import "sync"

// Observer receives the notifications of a Source. Nil callbacks are skipped.
type Observer[T any] struct {
	Next     func(T)
	Error    func(error)
	Complete func()
}

func (o Observer[T]) next(v T) {
	if o.Next != nil {
		o.Next(v)
	}
}

func (o Observer[T]) error(err error) {
	if o.Error != nil {
		o.Error(err)
	}
}

func (o Observer[T]) complete() {
	if o.Complete != nil {
		o.Complete()
	}
}

// Subscription releases the resources held for an observer. Calling
// Unsubscribe more than once is allowed.
type Subscription interface {
	Unsubscribe()
}

// SubscriptionFunc adapts a function to Subscription.
type SubscriptionFunc func()

func (f SubscriptionFunc) Unsubscribe() {
	f()
}

var noopSubscription = SubscriptionFunc(func() {})

// Source is anything that can be observed.
type Source[T any] interface {
	Subscribe(o Observer[T]) Subscription
}

// SourceFunc adapts a function to Source.
type SourceFunc[T any] func(o Observer[T]) Subscription

func (f SourceFunc[T]) Subscribe(o Observer[T]) Subscription {
	return f(o)
}

// Take mirrors the first n values of src, then completes and drops its
// upstream subscription.
func Take[T any](src Source[T], n int) Source[T] {
	return SourceFunc[T](func(o Observer[T]) Subscription {
		if n <= 0 {
			o.complete()
			return noopSubscription
		}

		var (
			mu           sync.Mutex
			count        int
			finished     bool
			upstream     Subscription
			pendingUnsub bool
		)

		up := src.Subscribe(Observer[T]{
			Next: func(v T) {
				mu.Lock()
				if finished {
					mu.Unlock()
					return
				}
				count++
				last := count >= n
				sub := upstream
				if last {
					finished = true
					if sub == nil {
						// still inside src.Subscribe, e.g. a replayed value
						pendingUnsub = true
					}
				}
				mu.Unlock()

				o.next(v)
				if last {
					o.complete()
					if sub != nil {
						sub.Unsubscribe()
					}
				}
			},
			Error: func(err error) {
				mu.Lock()
				if finished {
					mu.Unlock()
					return
				}
				finished = true
				mu.Unlock()
				o.error(err)
			},
			Complete: func() {
				mu.Lock()
				if finished {
					mu.Unlock()
					return
				}
				finished = true
				mu.Unlock()
				o.complete()
			},
		})

		mu.Lock()
		upstream = up
		unsubNow := pendingUnsub
		mu.Unlock()
		if unsubNow {
			up.Unsubscribe()
		}

		return SubscriptionFunc(func() {
			mu.Lock()
			finished = true
			mu.Unlock()
			up.Unsubscribe()
		})
	})
}

// Filter mirrors the values of src for which pred returns true.
func Filter[T any](src Source[T], pred func(T) bool) Source[T] {
	return SourceFunc[T](func(o Observer[T]) Subscription {
		return src.Subscribe(Observer[T]{
			Next: func(v T) {
				if pred(v) {
					o.next(v)
				}
			},
			Error:    o.Error,
			Complete: o.Complete,
		})
	})
}

// Map transforms every value of src with fn.
func Map[T, R any](src Source[T], fn func(T) R) Source[R] {
	return SourceFunc[R](func(o Observer[R]) Subscription {
		return src.Subscribe(Observer[T]{
			Next: func(v T) {
				o.next(fn(v))
			},
			Error:    o.Error,
			Complete: o.Complete,
		})
	})
}
