// Package bot owns the per-thread conversation state machine: it
// interprets inbound free text as state-specific answers or global
// commands, sequences extraction, prompting, response parsing and
// artifact generation, and persists every transition.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/weihan/menu-copilot-back/internal/ai"
	"github.com/weihan/menu-copilot-back/internal/chat"
	"github.com/weihan/menu-copilot-back/internal/docstore"
	"github.com/weihan/menu-copilot-back/internal/domain"
	"github.com/weihan/menu-copilot-back/internal/export"
	"github.com/weihan/menu-copilot-back/internal/extract"
	"github.com/weihan/menu-copilot-back/internal/prompt"
	"github.com/weihan/menu-copilot-back/internal/repository"
	"github.com/weihan/menu-copilot-back/internal/response"
	"github.com/weihan/menu-copilot-back/internal/textutil"
)

// TextExtractor turns a stored document into text.
type TextExtractor interface {
	Text(ctx context.Context, doc domain.Document) (string, error)
}

type Dependencies struct {
	Store      repository.Store
	Documents  docstore.Store
	Extractor  TextExtractor
	Completer  ai.Completer
	Poster     chat.Poster
	Uploader   chat.Uploader
	Downloader chat.Downloader
	LogoPath   string
	Logger     *log.Logger
}

// Engine is the top-level conversation controller. All collaborator
// handles are injected so tests can substitute fakes.
type Engine struct {
	deps Dependencies

	reportWG sync.WaitGroup
}

func NewEngine(deps Dependencies) *Engine {
	return &Engine{deps: deps}
}

// Wait blocks until all in-flight closing-report generations finish.
func (e *Engine) Wait() {
	e.reportWG.Wait()
}

const (
	msgAskInfo = "菜單已收到！請簡單描述店家背景與目標（例如：目標客單價 250、目標客群 上班族），我會依此產出優化建議。"

	msgThreadBusy    = "此討論串已有進行中的菜單分析。"
	msgAskPreparer   = "好的，開始準備結案報告。請問報告製作人是？"
	msgAskDate       = "請問結案日期？（格式 YYYY/MM/DD）"
	msgDateFormat    = "日期格式不正確，請使用 YYYY/MM/DD（例如 2024/01/15）。"
	msgAskSubject    = "請問結案報告的對象店家名稱？"
	msgReportStarted = "收到，結案報告產出中，完成後會傳到這個討論串。"
	msgPleaseWait    = "結案報告產出中，請稍候…"

	exportFilename = "上架菜單.xlsx"
	exportCaption  = "上架菜單已產出"
	reportCaption  = "結案報告已完成"
)

var errNoDocument = errors.New("conversation has no linked document")

// OnFileShared opens a new advisory thread for an uploaded document.
func (e *Engine) OnFileShared(ctx context.Context, event chat.FileEvent) {
	if err := e.handleFileShared(ctx, event); err != nil {
		e.logf("handle file failed channel=%s thread=%s: %v", event.ChannelID, event.ThreadID, err)
		e.post(ctx, event.ChannelID, event.ThreadID, humanMessage(err))
	}
}

func (e *Engine) handleFileShared(ctx context.Context, event chat.FileEvent) error {
	if _, err := e.deps.Store.GetConversationByThread(ctx, event.ChannelID, event.ThreadID); err == nil {
		e.post(ctx, event.ChannelID, event.ThreadID, msgThreadBusy)
		return nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	content, name, err := e.deps.Downloader.DownloadFile(ctx, event.FileID)
	if err != nil {
		return fmt.Errorf("download uploaded file: %w", err)
	}
	if strings.TrimSpace(name) == "" {
		name = event.FileName
	}

	ref, err := e.deps.Documents.Save(ctx, content, name)
	if err != nil {
		return fmt.Errorf("store uploaded file: %w", err)
	}

	now := time.Now().UTC()
	doc := domain.Document{
		ID:         uuid.NewString(),
		Name:       textutil.Sanitize(name),
		StorageRef: ref,
		CreatedAt:  now,
	}
	conv := domain.Conversation{
		ID:         uuid.NewString(),
		ChannelID:  event.ChannelID,
		ThreadID:   event.ThreadID,
		DocumentID: doc.ID,
		State:      domain.StateAwaitingInfo,
		CreatedAt:  now,
	}

	err = e.deps.Store.InTx(ctx, func(store repository.Store) error {
		if err := store.CreateDocument(ctx, &doc); err != nil {
			return err
		}
		return store.CreateConversation(ctx, &conv)
	})
	if err != nil {
		return err
	}

	return e.deps.Poster.PostReply(ctx, event.ChannelID, event.ThreadID, msgAskInfo)
}

// OnMessage routes one inbound thread message through the state machine.
// Handler failures roll back the in-flight transaction, leave the state
// untouched and post a human-readable error.
func (e *Engine) OnMessage(ctx context.Context, event chat.MessageEvent) {
	text := textutil.Sanitize(strings.TrimSpace(event.Text))
	if text == "" {
		return
	}

	var followUp func()
	err := e.deps.Store.InTx(ctx, func(store repository.Store) error {
		conv, err := store.GetConversationByThread(ctx, event.ChannelID, event.ThreadID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				// Not an advisory thread.
				return nil
			}
			return err
		}
		followUp, err = e.handleState(ctx, store, conv, text)
		return err
	})
	if err != nil {
		e.logf("handle message failed channel=%s thread=%s: %v", event.ChannelID, event.ThreadID, err)
		e.post(ctx, event.ChannelID, event.ThreadID, humanMessage(err))
		return
	}
	if followUp != nil {
		followUp()
	}
}

func (e *Engine) handleState(ctx context.Context, store repository.Store, conv *domain.Conversation, text string) (func(), error) {
	switch conv.State {
	case domain.StateAwaitingInfo:
		return nil, e.handleAwaitingInfo(ctx, store, conv, text)
	case domain.StateActive:
		return nil, e.handleActive(ctx, store, conv, text)
	case domain.StateAwaitingPreparerName:
		conv.PreparerName = text
		conv.State = domain.StateAwaitingClosingDate
		if err := store.UpdateConversation(ctx, conv); err != nil {
			return nil, err
		}
		return nil, e.deps.Poster.PostReply(ctx, conv.ChannelID, conv.ThreadID, msgAskDate)
	case domain.StateAwaitingClosingDate:
		if !validClosingDate(text) {
			return nil, e.deps.Poster.PostReply(ctx, conv.ChannelID, conv.ThreadID, msgDateFormat)
		}
		conv.ClosingDate = text
		conv.State = domain.StateAwaitingSubjectName
		if err := store.UpdateConversation(ctx, conv); err != nil {
			return nil, err
		}
		return nil, e.deps.Poster.PostReply(ctx, conv.ChannelID, conv.ThreadID, msgAskSubject)
	case domain.StateAwaitingSubjectName:
		return e.handleSubjectName(ctx, store, conv, text)
	case domain.StateGeneratingReport:
		return nil, e.deps.Poster.PostReply(ctx, conv.ChannelID, conv.ThreadID, msgPleaseWait)
	default:
		return nil, fmt.Errorf("conversation %s in unknown state %q", conv.ID, conv.State)
	}
}

func (e *Engine) handleAwaitingInfo(ctx context.Context, store repository.Store, conv *domain.Conversation, text string) error {
	doc, err := store.GetDocument(ctx, conv.DocumentID)
	if err != nil {
		return err
	}
	menuText, err := e.deps.Extractor.Text(ctx, *doc)
	if err != nil {
		return err
	}

	parseTargets(conv, text)

	instruction, err := prompt.InitialAnalysis(text, menuText)
	if err != nil {
		return err
	}
	// First turn: no prior history.
	reply, err := e.deps.Completer.Complete(ctx, instruction, nil)
	if err != nil {
		return err
	}

	if err := e.appendExchange(ctx, store, conv.ID, text, reply); err != nil {
		return err
	}
	conv.State = domain.StateActive
	if err := store.UpdateConversation(ctx, conv); err != nil {
		return err
	}
	return e.deps.Poster.PostReply(ctx, conv.ChannelID, conv.ThreadID, reply)
}

func (e *Engine) handleActive(ctx context.Context, store repository.Store, conv *domain.Conversation, text string) error {
	switch {
	case strings.Contains(text, domain.CommandResummarize):
		return e.handleResummarize(ctx, store, conv)
	case strings.Contains(text, domain.CommandExport):
		return e.handleExport(ctx, store, conv)
	case strings.Contains(text, domain.CommandClosingReport):
		if conv.DocumentID == "" {
			return errNoDocument
		}
		conv.State = domain.StateAwaitingPreparerName
		if err := store.UpdateConversation(ctx, conv); err != nil {
			return err
		}
		return e.deps.Poster.PostReply(ctx, conv.ChannelID, conv.ThreadID, msgAskPreparer)
	default:
		return e.handleChat(ctx, store, conv, text)
	}
}

func (e *Engine) handleChat(ctx context.Context, store repository.Store, conv *domain.Conversation, text string) error {
	history, err := store.ListTurns(ctx, conv.ID)
	if err != nil {
		return err
	}
	reply, err := e.deps.Completer.Complete(ctx, text, history)
	if err != nil {
		return err
	}
	if err := e.appendExchange(ctx, store, conv.ID, text, reply); err != nil {
		return err
	}
	return e.deps.Poster.PostReply(ctx, conv.ChannelID, conv.ThreadID, reply)
}

// handleResummarize regenerates the advice from the full history minus
// command turns. The exchange itself is not persisted.
func (e *Engine) handleResummarize(ctx context.Context, store repository.Store, conv *domain.Conversation) error {
	doc, err := store.GetDocument(ctx, conv.DocumentID)
	if err != nil {
		return err
	}
	menuText, err := e.deps.Extractor.Text(ctx, *doc)
	if err != nil {
		return err
	}

	history, err := store.ListTurns(ctx, conv.ID)
	if err != nil {
		return err
	}
	filtered := make([]domain.Turn, 0, len(history))
	for _, turn := range history {
		if turn.Role == domain.RoleHuman && strings.Contains(turn.Content, domain.CommandResummarize) {
			continue
		}
		filtered = append(filtered, turn)
	}

	instruction, err := prompt.Resummarize(menuText)
	if err != nil {
		return err
	}
	reply, err := e.deps.Completer.Complete(ctx, instruction, filtered)
	if err != nil {
		return err
	}
	return e.deps.Poster.PostReply(ctx, conv.ChannelID, conv.ThreadID, reply)
}

// handleExport asks for the structured item list and uploads the
// tabular artifact. No turn is persisted for this command.
func (e *Engine) handleExport(ctx context.Context, store repository.Store, conv *domain.Conversation) error {
	history, err := store.ListTurns(ctx, conv.ID)
	if err != nil {
		return err
	}
	raw, err := e.deps.Completer.Complete(ctx, prompt.MenuExport(), history)
	if err != nil {
		return err
	}
	items, err := response.Items(raw)
	if err != nil {
		return err
	}
	rows, err := export.Rows(items)
	if err != nil {
		return err
	}
	content, err := export.EncodeXLSX(rows)
	if err != nil {
		return err
	}
	return e.deps.Uploader.UploadFile(ctx, conv.ChannelID, conv.ThreadID, content, exportFilename, exportCaption)
}

func (e *Engine) handleSubjectName(ctx context.Context, store repository.Store, conv *domain.Conversation, text string) (func(), error) {
	conv.SubjectName = text
	conv.State = domain.StateGeneratingReport
	if err := store.UpdateConversation(ctx, conv); err != nil {
		return nil, err
	}
	if err := e.deps.Poster.PostReply(ctx, conv.ChannelID, conv.ThreadID, msgReportStarted); err != nil {
		return nil, err
	}

	snapshot := *conv
	// Spawned only after the transaction commits.
	return func() {
		e.reportWG.Add(1)
		go func() {
			defer e.reportWG.Done()
			e.runReport(snapshot)
		}()
	}, nil
}

// runReport generates the closing report. Whatever happens, the
// conversation returns to Active so a thread can never get stuck in
// GeneratingReport.
func (e *Engine) runReport(conv domain.Conversation) {
	ctx := context.Background()
	defer e.revertToActive(ctx, conv)

	if err := e.generateReport(ctx, conv); err != nil {
		e.logf("closing report failed conversation=%s: %v", conv.ID, err)
		e.post(ctx, conv.ChannelID, conv.ThreadID, humanMessage(err))
	}
}

func (e *Engine) generateReport(ctx context.Context, conv domain.Conversation) error {
	doc, err := e.deps.Store.GetDocument(ctx, conv.DocumentID)
	if err != nil {
		return err
	}
	menuText, err := e.deps.Extractor.Text(ctx, *doc)
	if err != nil {
		return err
	}
	turns, err := e.deps.Store.ListTurns(ctx, conv.ID)
	if err != nil {
		return err
	}

	advice := response.FinalAdvice(turns, doc.Name, menuText)
	instruction, err := prompt.ClosingReport(prompt.ReportFacts{
		SubjectName:    conv.SubjectName,
		PreparerName:   conv.PreparerName,
		ClosingDate:    conv.ClosingDate,
		TargetAOV:      conv.TargetAOV,
		TargetAudience: conv.TargetAudience,
		MenuExcerpt:    response.Excerpt(menuText, 400),
		FinalAdvice:    advice,
	})
	if err != nil {
		return err
	}

	raw, err := e.deps.Completer.Complete(ctx, instruction, nil)
	if err != nil {
		return err
	}
	blocks := export.Blocks(response.Markdown(raw))

	var logo []byte
	if e.deps.LogoPath != "" {
		// A missing or unreadable logo just ships the report without it.
		logo, _ = os.ReadFile(e.deps.LogoPath)
	}
	content, err := export.EncodeDOCX(blocks, logo)
	if err != nil {
		return err
	}

	filename := conv.SubjectName + "_結案報告.docx"
	return e.deps.Uploader.UploadFile(ctx, conv.ChannelID, conv.ThreadID, content, filename, reportCaption)
}

func (e *Engine) revertToActive(ctx context.Context, conv domain.Conversation) {
	fresh, err := e.deps.Store.GetConversationByThread(ctx, conv.ChannelID, conv.ThreadID)
	if err != nil {
		e.logf("revert state load failed conversation=%s: %v", conv.ID, err)
		return
	}
	fresh.State = domain.StateActive
	if err := e.deps.Store.UpdateConversation(ctx, fresh); err != nil {
		e.logf("revert state update failed conversation=%s: %v", conv.ID, err)
	}
}

// appendExchange persists one human turn and the assistant turn that
// answered it, keeping history ordering stable even on equal clocks.
func (e *Engine) appendExchange(ctx context.Context, store repository.Store, conversationID, humanText, assistantText string) error {
	human := newTurn(conversationID, domain.RoleHuman, humanText)
	assistant := newTurn(conversationID, domain.RoleAssistant, assistantText)
	if !assistant.CreatedAt.After(human.CreatedAt) {
		assistant.CreatedAt = human.CreatedAt.Add(time.Millisecond)
	}
	if err := store.AppendTurn(ctx, &human); err != nil {
		return err
	}
	return store.AppendTurn(ctx, &assistant)
}

func newTurn(conversationID string, role domain.TurnRole, content string) domain.Turn {
	return domain.Turn{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        textutil.Sanitize(content),
		CreatedAt:      time.Now().UTC(),
	}
}

var closingDatePattern = regexp.MustCompile(`^\d{4}/\d{2}/\d{2}$`)

func validClosingDate(text string) bool {
	if !closingDatePattern.MatchString(text) {
		return false
	}
	_, err := time.Parse("2006/01/02", text)
	return err == nil
}

var (
	targetAOVPattern      = regexp.MustCompile(`客單價[:：]?\s*([0-9][0-9,]*)`)
	targetAudiencePattern = regexp.MustCompile(`客群[:：]?\s*([^\s,，。、;；]+)`)
)

// parseTargets lifts the optional targeting fields out of the free-text
// background answer. Best effort only.
func parseTargets(conv *domain.Conversation, text string) {
	if match := targetAOVPattern.FindStringSubmatch(text); match != nil {
		conv.TargetAOV = strings.ReplaceAll(match[1], ",", "")
	}
	if match := targetAudiencePattern.FindStringSubmatch(text); match != nil {
		conv.TargetAudience = match[1]
	}
}

func humanMessage(err error) string {
	var extractErr *extract.ExtractError
	if errors.As(err, &extractErr) {
		return fmt.Sprintf("讀取菜單內容失敗：%v", extractErr.Err)
	}
	var parseErr *response.ParseError
	if errors.As(err, &parseErr) {
		return "AI 回覆無法解析成菜單項目，原始內容如下：\n" + parseErr.Raw
	}
	if errors.Is(err, export.ErrNoItems) {
		return "AI 回覆中沒有任何菜單項目，請稍後再試一次。"
	}
	if errors.Is(err, errNoDocument) {
		return "此討論串沒有連結的菜單文件，無法產出結案報告。"
	}
	return "處理訊息時發生錯誤，請稍後再試。"
}

func (e *Engine) post(ctx context.Context, channelID, threadID, text string) {
	if err := e.deps.Poster.PostReply(ctx, channelID, threadID, text); err != nil {
		e.logf("post reply failed channel=%s thread=%s: %v", channelID, threadID, err)
	}
}

func (e *Engine) logf(format string, args ...any) {
	if e.deps.Logger == nil {
		return
	}
	e.deps.Logger.Printf(format, args...)
}
