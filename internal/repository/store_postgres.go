package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/weihan/menu-copilot-back/internal/domain"
)

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore is the production store. A nil pool means the instance
// is a transactional view created by InTx.
type PostgresStore struct {
	db   pgxQuerier
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pg pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping pg: %w", err)
	}
	return &PostgresStore{db: pool, pool: pool}, nil
}

func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables when they do not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			storage_ref TEXT NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS conversations (
			id              TEXT PRIMARY KEY,
			channel_id      TEXT NOT NULL,
			thread_id       TEXT NOT NULL,
			document_id     TEXT NOT NULL DEFAULT '',
			state           TEXT NOT NULL,
			preparer_name   TEXT NOT NULL DEFAULT '',
			closing_date    TEXT NOT NULL DEFAULT '',
			subject_name    TEXT NOT NULL DEFAULT '',
			target_aov      TEXT NOT NULL DEFAULT '',
			target_audience TEXT NOT NULL DEFAULT '',
			created_at      TIMESTAMPTZ NOT NULL,
			UNIQUE (channel_id, thread_id)
		);
		CREATE TABLE IF NOT EXISTS turns (
			id              TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES conversations(id),
			role            TEXT NOT NULL,
			content         TEXT NOT NULL,
			created_at      TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_turns_conversation
			ON turns (conversation_id, created_at);
	`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateDocument(ctx context.Context, doc *domain.Document) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO documents (id, name, storage_ref, created_at)
		VALUES ($1, $2, $3, $4)
	`, doc.ID, doc.Name, doc.StorageRef, doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	var doc domain.Document
	err := s.db.QueryRow(ctx, `
		SELECT id, name, storage_ref, created_at
		FROM documents
		WHERE id = $1
	`, documentID).Scan(&doc.ID, &doc.Name, &doc.StorageRef, &doc.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query document: %w", err)
	}
	return &doc, nil
}

func (s *PostgresStore) CreateConversation(ctx context.Context, conv *domain.Conversation) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO conversations (
			id, channel_id, thread_id, document_id, state,
			preparer_name, closing_date, subject_name,
			target_aov, target_audience, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		conv.ID,
		conv.ChannelID,
		conv.ThreadID,
		conv.DocumentID,
		string(conv.State),
		conv.PreparerName,
		conv.ClosingDate,
		conv.SubjectName,
		conv.TargetAOV,
		conv.TargetAudience,
		conv.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetConversationByThread(ctx context.Context, channelID, threadID string) (*domain.Conversation, error) {
	var (
		conv  domain.Conversation
		state string
	)
	err := s.db.QueryRow(ctx, `
		SELECT id, channel_id, thread_id, document_id, state,
			preparer_name, closing_date, subject_name,
			target_aov, target_audience, created_at
		FROM conversations
		WHERE channel_id = $1 AND thread_id = $2
	`, channelID, threadID).Scan(
		&conv.ID,
		&conv.ChannelID,
		&conv.ThreadID,
		&conv.DocumentID,
		&state,
		&conv.PreparerName,
		&conv.ClosingDate,
		&conv.SubjectName,
		&conv.TargetAOV,
		&conv.TargetAudience,
		&conv.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	conv.State = domain.ConversationState(state)
	return &conv, nil
}

func (s *PostgresStore) UpdateConversation(ctx context.Context, conv *domain.Conversation) error {
	command, err := s.db.Exec(ctx, `
		UPDATE conversations
		SET document_id = $2,
			state = $3,
			preparer_name = $4,
			closing_date = $5,
			subject_name = $6,
			target_aov = $7,
			target_audience = $8
		WHERE id = $1
	`,
		conv.ID,
		conv.DocumentID,
		string(conv.State),
		conv.PreparerName,
		conv.ClosingDate,
		conv.SubjectName,
		conv.TargetAOV,
		conv.TargetAudience,
	)
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	if command.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) AppendTurn(ctx context.Context, turn *domain.Turn) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO turns (id, conversation_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, turn.ID, turn.ConversationID, string(turn.Role), turn.Content, turn.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListTurns(ctx context.Context, conversationID string) ([]domain.Turn, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, conversation_id, role, content, created_at
		FROM turns
		WHERE conversation_id = $1
		ORDER BY created_at ASC, id ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	turns := make([]domain.Turn, 0)
	for rows.Next() {
		var (
			turn domain.Turn
			role string
		)
		if err := rows.Scan(&turn.ID, &turn.ConversationID, &role, &turn.Content, &turn.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turn.Role = domain.TurnRole(role)
		turns = append(turns, turn)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate turns: %w", rows.Err())
	}
	return turns, nil
}

func (s *PostgresStore) InTx(ctx context.Context, fn func(Store) error) error {
	if s.pool == nil {
		// Already inside a transaction.
		return fn(s)
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&PostgresStore{db: tx})
	})
}
