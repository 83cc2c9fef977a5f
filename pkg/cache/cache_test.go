package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }
	ctx := context.Background()

	m.Set(ctx, "a", []byte("1"), time.Minute)
	if data, err := m.Get(ctx, "a"); err != nil || string(data) != "1" {
		t.Errorf("Expected cached value, got %q %v", data, err)
	}

	now = now.Add(time.Minute)
	if _, err := m.Get(ctx, "a"); !errors.Is(err, ErrMiss) {
		t.Errorf("Expected miss after expiry, got %v", err)
	}
	if _, err := m.Get(ctx, "b"); !errors.Is(err, ErrMiss) {
		t.Errorf("Expected miss for unknown key, got %v", err)
	}
}

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestHelperHandle(t *testing.T) {
	ctx := context.Background()
	helper := NewHelper[sample](NewMemory())
	calls := 0
	fn := func(context.Context) (sample, error) {
		calls++
		return sample{Name: "Dataset", Count: 3}, nil
	}

	var first sample
	hit, err := helper.Handle(ctx, "k", &first, fn, time.Minute)
	if err != nil || hit {
		t.Fatalf("Expected miss without error, got hit=%v err=%v", hit, err)
	}
	var second sample
	hit, err = helper.Handle(ctx, "k", &second, fn, time.Minute)
	if err != nil || !hit {
		t.Fatalf("Expected hit, got hit=%v err=%v", hit, err)
	}
	if calls != 1 {
		t.Errorf("Expected one call, got %d", calls)
	}
	if second != first {
		t.Errorf("Expected %+v, got %+v", first, second)
	}
}

func TestHelperDoesNotCacheErrors(t *testing.T) {
	ctx := context.Background()
	helper := NewHelper[sample](NewMemory())
	failure := errors.New("boom")
	var out sample
	if _, err := helper.Handle(ctx, "k", &out, func(context.Context) (sample, error) {
		return sample{}, failure
	}, time.Minute); !errors.Is(err, failure) {
		t.Fatalf("Expected error, got %v", err)
	}
	if _, err := helper.Store.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Errorf("Failed results must not be cached")
	}
}

func TestHelperWithoutStore(t *testing.T) {
	helper := NewHelper[sample](nil)
	var out sample
	hit, err := helper.Handle(context.Background(), "k", &out, func(context.Context) (sample, error) {
		return sample{Name: "x"}, nil
	}, time.Minute)
	if hit || err != nil || out.Name != "x" {
		t.Errorf("Unexpected result hit=%v err=%v out=%+v", hit, err, out)
	}
}

func TestMemorySweepsExpired(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }
	ctx := context.Background()
	for i := 0; i < sweepSize; i++ {
		m.Set(ctx, time.Duration(i).String(), nil, time.Second)
	}
	now = now.Add(time.Minute)
	m.Set(ctx, "fresh", []byte("x"), time.Minute)
	if len(m.entries) != 1 {
		t.Errorf("Expected expired entries to be swept, got %d", len(m.entries))
	}
}
