package ai

import (
	"context"
	"errors"

	"github.com/weihan/menu-copilot-back/internal/domain"
)

var ErrUnavailable = errors.New("completion service is not configured")

// Completer sends one instruction text plus prior conversation turns to
// the text-completion collaborator and returns the raw model output.
type Completer interface {
	Complete(ctx context.Context, prompt string, history []domain.Turn) (string, error)
}
