package domain

import "time"

type ConversationState string

const (
	StateAwaitingInfo         ConversationState = "awaiting_info"
	StateActive               ConversationState = "active"
	StateAwaitingPreparerName ConversationState = "awaiting_preparer_name"
	StateAwaitingClosingDate  ConversationState = "awaiting_closing_date"
	StateAwaitingSubjectName  ConversationState = "awaiting_subject_name"
	StateGeneratingReport     ConversationState = "generating_report"
)

type TurnRole string

const (
	RoleHuman     TurnRole = "human"
	RoleAssistant TurnRole = "assistant"
)

// Command phrases recognized inside an advisory thread. Detection is by
// containment on the sanitized message text.
const (
	CommandResummarize   = "重新整理建議"
	CommandExport        = "匯出上架菜單"
	CommandClosingReport = "產出結案報告"
)

// Document is an uploaded menu source file. Immutable after creation.
type Document struct {
	ID         string
	Name       string
	StorageRef string
	CreatedAt  time.Time
}

// Conversation is the unit of workflow state, keyed by (channel, thread).
// Mutated only by the bot engine; never deleted.
type Conversation struct {
	ID         string
	ChannelID  string
	ThreadID   string
	DocumentID string
	State      ConversationState

	// Collected during the closing-report sub-flow.
	PreparerName string
	ClosingDate  string
	SubjectName  string

	// Parsed heuristically from the background-info answer, best effort.
	TargetAOV      string
	TargetAudience string

	CreatedAt time.Time
}

// Turn is one recorded exchange unit. Turns are append-only; the ordered
// sequence for a conversation is its history and is replayed to the
// completion service on every later call.
type Turn struct {
	ID             string
	ConversationID string
	Role           TurnRole
	Content        string
	CreatedAt      time.Time
}
