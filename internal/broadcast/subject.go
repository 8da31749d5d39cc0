// Package broadcast provides a push-based subject holding a current value.
//
// Subscribers are invoked synchronously, in subscription order, from the
// goroutine that calls Publish. A Subject is not safe for concurrent use;
// the owner serializes Publish calls.
package broadcast

import "context"

// Subject holds the latest published value and notifies subscribers of new ones.
type Subject[T any] struct {
	value  T
	equal  func(a, b T) bool
	subs   []*subscription[T]
	nextID int
}

type subscription[T any] struct {
	id int
	fn func(context.Context, T)
}

// New creates a subject that notifies on every Publish.
func New[T any](initial T) *Subject[T] {
	return &Subject[T]{value: initial}
}

// NewDistinct creates a subject that drops values equal to the current one.
func NewDistinct[T any](initial T, equal func(a, b T) bool) *Subject[T] {
	return &Subject[T]{value: initial, equal: equal}
}

// Value returns the current value.
func (s *Subject[T]) Value() T {
	return s.value
}

// Set replaces the current value without notifying anyone.
func (s *Subject[T]) Set(v T) {
	s.value = v
}

// Publish stores v and notifies subscribers. It reports whether subscribers
// were notified.
func (s *Subject[T]) Publish(ctx context.Context, v T) bool {
	if s.equal != nil && s.equal(s.value, v) {
		return false
	}
	s.value = v
	// Snapshot so subscribers may unsubscribe while being notified.
	subs := append([]*subscription[T](nil), s.subs...)
	for _, sub := range subs {
		sub.fn(ctx, v)
	}
	return true
}

// Subscribe registers fn and returns a function that removes it.
func (s *Subject[T]) Subscribe(fn func(context.Context, T)) (unsubscribe func()) {
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, &subscription[T]{id: id, fn: fn})
	return func() {
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// Len returns the number of active subscribers.
func (s *Subject[T]) Len() int {
	return len(s.subs)
}
