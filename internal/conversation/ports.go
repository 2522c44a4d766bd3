package conversation

import (
	"context"
	"errors"
	"time"

	"github.com/carbonledger/analyst/internal/emissions"
	"github.com/carbonledger/analyst/internal/query"
)

var (
	// ErrSessionUnavailable wraps failures to load or persist a session.
	ErrSessionUnavailable = errors.New("session unavailable")
	// ErrSessionNotFound is returned by Session for an unknown id.
	ErrSessionNotFound = errors.New("session not found")
)

// SessionStore persists chat sessions. LoadSession returns nil, nil when the
// session does not exist. AppendMessages writes all messages atomically and
// creates the session on first use.
type SessionStore interface {
	LoadSession(ctx context.Context, sessionID string) (*emissions.ChatSession, error)
	AppendMessages(ctx context.Context, session emissions.ChatSession, messages []emissions.ChatMessage) error
}

type CatalogSource interface {
	GetCatalog(ctx context.Context, organizationID string) (emissions.Catalog, error)
}

type FiscalSource interface {
	GetFiscalYearStart(ctx context.Context, organizationID string) (time.Month, error)
}

// Publisher emits turn events. A nil Publisher disables publishing.
type Publisher interface {
	Publish(subject string, data any) error
}

// TurnContext is what a session carries from one turn to the next.
type TurnContext struct {
	Prior *query.EmissionQuery `json:"prior,omitempty"`
	Turns int                  `json:"turns"`
}

// Advance returns the context after a turn that produced q.
func (tc TurnContext) Advance(q query.EmissionQuery) TurnContext {
	next := q.Clone()
	return TurnContext{Prior: &next, Turns: tc.Turns + 1}
}
