package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestKeyedMutex_SerialisesSameKey(t *testing.T) {
	k := NewKeyedMutex()
	var wg sync.WaitGroup
	var mu sync.Mutex
	inside, maxInside := 0, 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := k.Lock(context.Background(), "subj")
			if err != nil {
				t.Errorf("lock: %v", err)
				return
			}
			mu.Lock()
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	if maxInside != 1 {
		t.Fatalf("max holders = %d; want 1", maxInside)
	}
	if len(k.locks) != 0 {
		t.Fatalf("entries leaked: %d", len(k.locks))
	}
}

func TestKeyedMutex_DifferentKeysIndependent(t *testing.T) {
	k := NewKeyedMutex()
	unlockA, err := k.Lock(context.Background(), "a")
	if err != nil {
		t.Fatal(err)
	}
	defer unlockA()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := k.Lock(ctx, "b")
	if err != nil {
		t.Fatalf("key b blocked by key a: %v", err)
	}
	unlockB()
}

func TestKeyedMutex_ContextCancel(t *testing.T) {
	k := NewKeyedMutex()
	unlock, err := k.Lock(context.Background(), "a")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := k.Lock(ctx, "a"); !errors.Is(err, ErrNotObtained) {
		t.Fatalf("want ErrNotObtained, got %v", err)
	}
	unlock()
	unlock() // second call is a no-op
	again, err := k.Lock(context.Background(), "a")
	if err != nil {
		t.Fatalf("relock after release: %v", err)
	}
	again()
}
