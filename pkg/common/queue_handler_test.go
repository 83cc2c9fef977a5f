package common

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestQueueHandlerBatches(t *testing.T) {
	var mu sync.Mutex
	var batches [][]int
	q := NewQueueHandlerWithInterval[int](func(items []int) {
		mu.Lock()
		defer mu.Unlock()
		batches = append(batches, items)
	}, 2, time.Hour)

	q.Add(1, 2, 3)
	if err := q.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	mu.Lock()
	defer mu.Unlock()
	total := 0
	for _, b := range batches {
		if len(b) > 2 {
			t.Errorf("Expected batches of at most 2, got %v", b)
		}
		total += len(b)
	}
	if total != 3 {
		t.Errorf("Expected all items processed, got %v", batches)
	}
	if q.Len() != 0 {
		t.Errorf("Expected empty queue, got %d", q.Len())
	}
}

func TestQueueHandlerFlushesOnTick(t *testing.T) {
	processed := make(chan []string, 1)
	q := NewQueueHandlerWithInterval[string](func(items []string) {
		processed <- items
	}, 10, 10*time.Millisecond)
	defer q.Close(context.Background())

	q.Add("a")
	select {
	case items := <-processed:
		if len(items) != 1 || items[0] != "a" {
			t.Errorf("Unexpected batch %v", items)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected the queue to be processed on tick")
	}
}
