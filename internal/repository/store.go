package repository

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/weihan/menu-copilot-back/internal/domain"
)

var ErrNotFound = errors.New("resource not found")

// Store abstracts persistence for documents, conversations and turns.
// The conversation lookup is keyed by (channel, thread).
type Store interface {
	CreateDocument(ctx context.Context, doc *domain.Document) error
	GetDocument(ctx context.Context, documentID string) (*domain.Document, error)

	CreateConversation(ctx context.Context, conv *domain.Conversation) error
	GetConversationByThread(ctx context.Context, channelID, threadID string) (*domain.Conversation, error)
	UpdateConversation(ctx context.Context, conv *domain.Conversation) error

	AppendTurn(ctx context.Context, turn *domain.Turn) error
	ListTurns(ctx context.Context, conversationID string) ([]domain.Turn, error)

	// InTx runs fn against a transactional view of the store; every write
	// fn performed is rolled back when fn returns an error.
	InTx(ctx context.Context, fn func(Store) error) error
}

// MemoryStore keeps everything in process memory for local development.
type MemoryStore struct {
	mu            sync.RWMutex
	documents     map[string]*domain.Document
	conversations map[string]*domain.Conversation
	turns         map[string][]domain.Turn
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		documents:     make(map[string]*domain.Document),
		conversations: make(map[string]*domain.Conversation),
		turns:         make(map[string][]domain.Turn),
	}
}

func (s *MemoryStore) CreateDocument(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *doc
	s.documents[doc.ID] = &clone
	return nil
}

func (s *MemoryStore) GetDocument(_ context.Context, documentID string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[documentID]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *doc
	return &clone, nil
}

func (s *MemoryStore) CreateConversation(_ context.Context, conv *domain.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *conv
	s.conversations[conv.ID] = &clone
	return nil
}

func (s *MemoryStore) GetConversationByThread(_ context.Context, channelID, threadID string) (*domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, conv := range s.conversations {
		if conv.ChannelID == channelID && conv.ThreadID == threadID {
			clone := *conv
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) UpdateConversation(_ context.Context, conv *domain.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[conv.ID]; !ok {
		return ErrNotFound
	}
	clone := *conv
	s.conversations[conv.ID] = &clone
	return nil
}

func (s *MemoryStore) AppendTurn(_ context.Context, turn *domain.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.turns[turn.ConversationID] = append(s.turns[turn.ConversationID], *turn)
	return nil
}

func (s *MemoryStore) ListTurns(_ context.Context, conversationID string) ([]domain.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.turns[conversationID]
	turns := make([]domain.Turn, len(stored))
	copy(turns, stored)
	sort.SliceStable(turns, func(i, j int) bool {
		return turns[i].CreatedAt.Before(turns[j].CreatedAt)
	})
	return turns, nil
}

// InTx runs fn against a journaled view of the store. When fn fails,
// every write it performed is undone key by key, so concurrent writes to
// other conversations survive the rollback.
func (s *MemoryStore) InTx(ctx context.Context, fn func(Store) error) error {
	tx := &memoryTx{
		store:          s,
		priorDocuments: make(map[string]*domain.Document),
		priorConvs:     make(map[string]*domain.Conversation),
		priorTurnLens:  make(map[string]int),
	}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// memoryTx records, per touched key, the value that was in place before
// the first write inside the transaction.
type memoryTx struct {
	store *MemoryStore

	priorDocuments map[string]*domain.Document
	priorConvs     map[string]*domain.Conversation
	priorTurnLens  map[string]int
}

func (t *memoryTx) noteDocument(documentID string) {
	if _, noted := t.priorDocuments[documentID]; noted {
		return
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	if prior, ok := t.store.documents[documentID]; ok {
		clone := *prior
		t.priorDocuments[documentID] = &clone
	} else {
		t.priorDocuments[documentID] = nil
	}
}

func (t *memoryTx) noteConversation(conversationID string) {
	if _, noted := t.priorConvs[conversationID]; noted {
		return
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	if prior, ok := t.store.conversations[conversationID]; ok {
		clone := *prior
		t.priorConvs[conversationID] = &clone
	} else {
		t.priorConvs[conversationID] = nil
	}
}

func (t *memoryTx) noteTurns(conversationID string) {
	if _, noted := t.priorTurnLens[conversationID]; noted {
		return
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	t.priorTurnLens[conversationID] = len(t.store.turns[conversationID])
}

func (t *memoryTx) rollback() {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	for id, prior := range t.priorDocuments {
		if prior == nil {
			delete(t.store.documents, id)
		} else {
			t.store.documents[id] = prior
		}
	}
	for id, prior := range t.priorConvs {
		if prior == nil {
			delete(t.store.conversations, id)
		} else {
			t.store.conversations[id] = prior
		}
	}
	for id, length := range t.priorTurnLens {
		t.store.turns[id] = t.store.turns[id][:length]
	}
}

func (t *memoryTx) CreateDocument(ctx context.Context, doc *domain.Document) error {
	t.noteDocument(doc.ID)
	return t.store.CreateDocument(ctx, doc)
}

func (t *memoryTx) GetDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	return t.store.GetDocument(ctx, documentID)
}

func (t *memoryTx) CreateConversation(ctx context.Context, conv *domain.Conversation) error {
	t.noteConversation(conv.ID)
	return t.store.CreateConversation(ctx, conv)
}

func (t *memoryTx) GetConversationByThread(ctx context.Context, channelID, threadID string) (*domain.Conversation, error) {
	return t.store.GetConversationByThread(ctx, channelID, threadID)
}

func (t *memoryTx) UpdateConversation(ctx context.Context, conv *domain.Conversation) error {
	t.noteConversation(conv.ID)
	return t.store.UpdateConversation(ctx, conv)
}

func (t *memoryTx) AppendTurn(ctx context.Context, turn *domain.Turn) error {
	t.noteTurns(turn.ConversationID)
	return t.store.AppendTurn(ctx, turn)
}

func (t *memoryTx) ListTurns(ctx context.Context, conversationID string) ([]domain.Turn, error) {
	return t.store.ListTurns(ctx, conversationID)
}

// Already inside a transaction.
func (t *memoryTx) InTx(_ context.Context, fn func(Store) error) error {
	return fn(t)
}
