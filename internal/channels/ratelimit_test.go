package channels

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestRateLimiterBurst(t *testing.T) {
	rl := NewRateLimiter(1, 5, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	for i := 0; i < 5; i++ {
		if err := rl.Wait(ctx, 0); err != nil {
			t.Fatalf("Wait() %d within burst: %v", i+1, err)
		}
	}
	if err := rl.Wait(ctx, 0); err == nil {
		t.Error("expected the sixth call to exceed the deadline")
	}
}

func TestRateLimiterGlobalPacing(t *testing.T) {
	rl := NewRateLimiter(100, 1, 0)
	ctx := context.Background()

	if err := rl.Wait(ctx, 0); err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	if err := rl.Wait(ctx, 0); err != nil {
		t.Fatal(err)
	}
	// 100/s means one token per 10ms.
	if elapsed := time.Since(start); elapsed < 5*time.Millisecond {
		t.Errorf("second Wait() returned after %v, expected it to block", elapsed)
	}
}

func TestRateLimiterPerChat(t *testing.T) {
	rl := NewRateLimiter(0, 1, 0.5)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	for i := 0; i < perChatBurst; i++ {
		if err := rl.Wait(ctx, 7); err != nil {
			t.Fatalf("Wait() %d within chat burst: %v", i+1, err)
		}
	}
	if err := rl.Wait(ctx, 7); err == nil {
		t.Error("expected chat 7 to be throttled")
	}
	if err := rl.Wait(ctx, 8); err != nil {
		t.Errorf("chat 8 should have its own bucket: %v", err)
	}
}

func TestRateLimiterZeroChatSkipsChatBucket(t *testing.T) {
	rl := NewRateLimiter(0, 1, 0.5)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	for i := 0; i < 10; i++ {
		if err := rl.Wait(ctx, 0); err != nil {
			t.Fatalf("Wait() %d: %v", i+1, err)
		}
	}
	if len(rl.chats) != 0 {
		t.Errorf("created %d chat buckets for chat 0", len(rl.chats))
	}
}

func TestRateLimiterCancelled(t *testing.T) {
	rl := NewRateLimiter(0.1, 1, 0)
	if err := rl.Wait(context.Background(), 0); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := rl.Wait(ctx, 0); err == nil {
		t.Error("expected Wait() on a cancelled context to fail")
	}
}

func TestRateLimiterConcurrentChats(t *testing.T) {
	rl := NewRateLimiter(0, 1, 1000)

	var wg sync.WaitGroup
	for i := 1; i <= 100; i++ {
		wg.Add(1)
		go func(chatID int64) {
			defer wg.Done()
			if err := rl.Wait(context.Background(), chatID); err != nil {
				t.Errorf("Wait(%d) error = %v", chatID, err)
			}
		}(int64(i))
	}
	wg.Wait()

	if len(rl.chats) != 100 {
		t.Errorf("chat buckets = %d, want 100", len(rl.chats))
	}
}
