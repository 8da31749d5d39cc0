package broadcast

import (
	"context"
	"slices"
	"testing"
)

func TestSubjectNotifiesInSubscriptionOrder(t *testing.T) {
	s := New(0)
	var got []string
	s.Subscribe(func(context.Context, int) { got = append(got, "a") })
	s.Subscribe(func(context.Context, int) { got = append(got, "b") })

	s.Publish(context.Background(), 1)

	if !slices.Equal(got, []string{"a", "b"}) {
		t.Fatalf("unexpected order: %v", got)
	}
	if s.Value() != 1 {
		t.Fatalf("expected value 1, got %d", s.Value())
	}
}

func TestSubjectUnsubscribe(t *testing.T) {
	s := New("")
	calls := 0
	unsub := s.Subscribe(func(context.Context, string) { calls++ })
	s.Publish(context.Background(), "x")
	unsub()
	s.Publish(context.Background(), "y")

	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	if s.Len() != 0 {
		t.Fatalf("expected no subscribers, got %d", s.Len())
	}
}

func TestSubjectUnsubscribeDuringPublish(t *testing.T) {
	s := New(0)
	calls := 0
	var unsub func()
	unsub = s.Subscribe(func(context.Context, int) { calls++; unsub() })
	s.Subscribe(func(context.Context, int) { calls++ })

	s.Publish(context.Background(), 1)
	s.Publish(context.Background(), 2)

	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestSubjectSetIsSilent(t *testing.T) {
	s := NewDistinct(0, func(a, b int) bool { return a == b })
	calls := 0
	s.Subscribe(func(context.Context, int) { calls++ })

	s.Set(5)
	if s.Publish(context.Background(), 5) {
		t.Fatalf("value equal to the one set should not be published")
	}
	if calls != 0 || s.Value() != 5 {
		t.Fatalf("calls=%d value=%d", calls, s.Value())
	}
}

func TestDistinctSuppressesEqualValues(t *testing.T) {
	s := NewDistinct([]int{1, 2}, func(a, b []int) bool { return slices.Equal(a, b) })
	calls := 0
	s.Subscribe(func(context.Context, []int) { calls++ })

	if s.Publish(context.Background(), []int{1, 2}) {
		t.Fatalf("equal value should not be published")
	}
	if !s.Publish(context.Background(), []int{1, 2, 3}) {
		t.Fatalf("changed value should be published")
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}
