package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/weihan/menu-copilot-back/internal/domain"
)

func TestMemoryStoreConversationLifecycle(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	conv := &domain.Conversation{
		ID:        "conv-1",
		ChannelID: "C1",
		ThreadID:  "T1",
		State:     domain.StateAwaitingInfo,
		CreatedAt: time.Now().UTC(),
	}
	if err := store.CreateConversation(ctx, conv); err != nil {
		t.Fatalf("create: %v", err)
	}

	loaded, err := store.GetConversationByThread(ctx, "C1", "T1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.State != domain.StateAwaitingInfo {
		t.Fatalf("unexpected state: %s", loaded.State)
	}

	loaded.State = domain.StateActive
	if err := store.UpdateConversation(ctx, loaded); err != nil {
		t.Fatalf("update: %v", err)
	}
	reloaded, _ := store.GetConversationByThread(ctx, "C1", "T1")
	if reloaded.State != domain.StateActive {
		t.Fatalf("update not visible: %s", reloaded.State)
	}

	if _, err := store.GetConversationByThread(ctx, "C1", "other"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := store.UpdateConversation(ctx, &domain.Conversation{ID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on missing update, got %v", err)
	}
}

func TestMemoryStoreTurnOrdering(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Now().UTC()

	turns := []domain.Turn{
		{ID: "t2", ConversationID: "conv-1", Role: domain.RoleAssistant, Content: "second", CreatedAt: base.Add(time.Second)},
		{ID: "t1", ConversationID: "conv-1", Role: domain.RoleHuman, Content: "first", CreatedAt: base},
		{ID: "t3", ConversationID: "conv-1", Role: domain.RoleHuman, Content: "third", CreatedAt: base.Add(2 * time.Second)},
	}
	for i := range turns {
		if err := store.AppendTurn(ctx, &turns[i]); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	listed, err := store.ListTurns(ctx, "conv-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(listed))
	}
	for i, want := range []string{"first", "second", "third"} {
		if listed[i].Content != want {
			t.Fatalf("turn %d: got %q, want %q", i, listed[i].Content, want)
		}
	}
}

func TestMemoryStoreInTxRollsBackOnError(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	boom := errors.New("handler failed")
	err := store.InTx(ctx, func(tx Store) error {
		if err := tx.CreateDocument(ctx, &domain.Document{ID: "doc-1", Name: "menu.jpg", CreatedAt: now}); err != nil {
			return err
		}
		if err := tx.CreateConversation(ctx, &domain.Conversation{
			ID: "conv-1", ChannelID: "C1", ThreadID: "T1",
			State: domain.StateAwaitingInfo, CreatedAt: now,
		}); err != nil {
			return err
		}
		if err := tx.AppendTurn(ctx, &domain.Turn{
			ID: "t1", ConversationID: "conv-1", Role: domain.RoleHuman, Content: "hi", CreatedAt: now,
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected handler error back, got %v", err)
	}

	if _, err := store.GetDocument(ctx, "doc-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("document survived rollback: %v", err)
	}
	if _, err := store.GetConversationByThread(ctx, "C1", "T1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("conversation survived rollback: %v", err)
	}
	turns, _ := store.ListTurns(ctx, "conv-1")
	if len(turns) != 0 {
		t.Fatalf("turns survived rollback: %d", len(turns))
	}
}

func TestMemoryStoreInTxRestoresUpdatedConversation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	conv := &domain.Conversation{
		ID: "conv-1", ChannelID: "C1", ThreadID: "T1",
		State: domain.StateActive, CreatedAt: time.Now().UTC(),
	}
	if err := store.CreateConversation(ctx, conv); err != nil {
		t.Fatalf("create: %v", err)
	}

	boom := errors.New("handler failed")
	err := store.InTx(ctx, func(tx Store) error {
		loaded, err := tx.GetConversationByThread(ctx, "C1", "T1")
		if err != nil {
			return err
		}
		loaded.State = domain.StateAwaitingPreparerName
		loaded.PreparerName = "partial"
		if err := tx.UpdateConversation(ctx, loaded); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected handler error back, got %v", err)
	}

	reloaded, err := store.GetConversationByThread(ctx, "C1", "T1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if reloaded.State != domain.StateActive || reloaded.PreparerName != "" {
		t.Fatalf("update survived rollback: %+v", reloaded)
	}
}

func TestMemoryStoreInTxCommitsOnSuccess(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	err := store.InTx(ctx, func(tx Store) error {
		return tx.CreateConversation(ctx, &domain.Conversation{
			ID: "conv-1", ChannelID: "C1", ThreadID: "T1",
			State: domain.StateAwaitingInfo, CreatedAt: time.Now().UTC(),
		})
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if _, err := store.GetConversationByThread(ctx, "C1", "T1"); err != nil {
		t.Fatalf("committed write missing: %v", err)
	}
}

func TestMemoryStoreDocumentRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	doc := &domain.Document{ID: "doc-1", Name: "menu.jpg", StorageRef: "ref", CreatedAt: time.Now().UTC()}
	if err := store.CreateDocument(ctx, doc); err != nil {
		t.Fatalf("create: %v", err)
	}
	loaded, err := store.GetDocument(ctx, "doc-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.Name != "menu.jpg" {
		t.Fatalf("unexpected name: %q", loaded.Name)
	}
	if _, err := store.GetDocument(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
