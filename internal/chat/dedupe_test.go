package chat

import (
	"context"
	"testing"
	"time"
)

func TestMemoryDeduperMarksSecondDelivery(t *testing.T) {
	deduper := NewMemoryDeduper(time.Minute)

	seen, err := deduper.Seen(context.Background(), "ev-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen {
		t.Fatal("first delivery should not be seen")
	}

	seen, err = deduper.Seen(context.Background(), "ev-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !seen {
		t.Fatal("second delivery should be seen")
	}

	seen, _ = deduper.Seen(context.Background(), "ev-2")
	if seen {
		t.Fatal("distinct event should not be seen")
	}
}

func TestMemoryDeduperExpires(t *testing.T) {
	deduper := NewMemoryDeduper(10 * time.Millisecond)

	if seen, _ := deduper.Seen(context.Background(), "ev-1"); seen {
		t.Fatal("first delivery should not be seen")
	}
	time.Sleep(20 * time.Millisecond)
	if seen, _ := deduper.Seen(context.Background(), "ev-1"); seen {
		t.Fatal("expired entry should not be seen")
	}
}
