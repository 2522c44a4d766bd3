package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carbonledger/analyst/internal/aggregate"
	"github.com/carbonledger/analyst/internal/compose"
	"github.com/carbonledger/analyst/internal/emissions"
	"github.com/carbonledger/analyst/internal/hermes"
	"github.com/carbonledger/analyst/internal/query"
)

// Manager answers conversation turns. Turns of one session run strictly one
// after another; different sessions run in parallel.
type Manager struct {
	sessions    SessionStore
	engine      *aggregate.Engine
	catalogs    *CatalogCache
	fiscal      FiscalSource
	publisher   Publisher
	fiscalStart time.Month
	logger      *slog.Logger
	now         func() time.Time

	locks     *sessionLocks
	mu        sync.Mutex
	contexts  map[string]cachedContext
	lastSweep time.Time
}

// contextIdleTTL is how long a session's turn context stays in memory without
// a turn. Evicted contexts are rebuilt by Replay on the next turn.
const contextIdleTTL = 30 * time.Minute

type cachedContext struct {
	tc   TurnContext
	used time.Time
}

// New creates a Manager. publisher may be nil; defaultFiscalStart is used
// when an organization has no fiscal configuration.
func New(sessions SessionStore, engine *aggregate.Engine, catalogs *CatalogCache, fiscal FiscalSource, publisher Publisher, defaultFiscalStart time.Month, logger *slog.Logger) *Manager {
	if defaultFiscalStart < time.January || defaultFiscalStart > time.December {
		defaultFiscalStart = time.January
	}
	return &Manager{
		sessions:    sessions,
		engine:      engine,
		catalogs:    catalogs,
		fiscal:      fiscal,
		publisher:   publisher,
		fiscalStart: defaultFiscalStart,
		logger:      logger,
		now:         time.Now,
		locks:       newSessionLocks(),
		contexts:    make(map[string]cachedContext),
	}
}

// HandleTurn answers one user utterance within a session. The returned result
// is always well formed. The error is non-nil only when ctx is done before the
// turn is persisted, or when the session cannot be loaded or saved; in both
// cases the conversation is left exactly as it was.
func (m *Manager) HandleTurn(ctx context.Context, sessionID, text, organizationID string) (compose.QueryResult, error) {
	started := m.now()
	if err := ctx.Err(); err != nil {
		return compose.Failure(query.EmissionQuery{}, compose.ErrorCanceled), err
	}

	unlock, err := m.locks.acquire(ctx, sessionID)
	if err != nil {
		return compose.Failure(query.EmissionQuery{}, compose.ErrorCanceled), err
	}
	defer unlock()

	session, err := m.sessions.LoadSession(ctx, sessionID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return compose.Failure(query.EmissionQuery{}, compose.ErrorCanceled), ctxErr
		}
		m.logger.Error("failed to load session", "session_id", sessionID, "error", err)
		return compose.Failure(query.EmissionQuery{}, compose.ErrorSessionUnavailable), fmt.Errorf("load session: %w: %w", ErrSessionUnavailable, err)
	}
	if session != nil && session.OrganizationID != organizationID {
		return compose.Failure(query.EmissionQuery{}, compose.ErrorSessionUnavailable),
			fmt.Errorf("session %s belongs to another organization: %w", sessionID, ErrSessionUnavailable)
	}

	fiscalStart := m.fiscalYearStart(ctx, organizationID)
	ref := m.now().UTC()

	var result compose.QueryResult
	catalogOK := true
	catalog, err := m.catalogs.Get(ctx, organizationID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return compose.Failure(query.EmissionQuery{}, compose.ErrorCanceled), ctxErr
		}
		catalogOK = false
		m.logger.Error("failed to load catalog", "organization_id", organizationID, "error", err)
	}

	tc, cached := m.turnContext(sessionID)
	if !cached && catalogOK {
		tc = Replay(session, catalog, fiscalStart)
	}

	q, trace := query.Build(query.Input{
		Text:            text,
		Catalog:         catalog,
		Reference:       ref,
		FiscalYearStart: fiscalStart,
	}, tc.Prior)

	m.logger.Debug("query built",
		"session_id", sessionID,
		"intent", q.Intent,
		"period", q.Period().Label(),
		"periods_found", len(trace.Periods),
		"ambiguous", len(trace.Entities.Ambiguous),
	)
	if len(trace.Entities.Ambiguous) > 0 {
		m.logger.Warn("entity resolution ambiguous, using first declared entry",
			"session_id", sessionID,
			"slots", trace.Entities.Ambiguous,
			"error", query.ErrResolutionAmbiguous,
		)
	}

	if !catalogOK {
		result = compose.Failure(q, compose.ErrorStorageUnavailable)
	} else {
		res, err := m.engine.Run(ctx, organizationID, q, aggregate.Options{AsOf: ref, Catalog: catalog})
		switch {
		case err == nil:
			result = compose.Compose(q, res, catalog)
		case ctx.Err() != nil:
			return compose.Failure(q, compose.ErrorCanceled), ctx.Err()
		default:
			m.logger.Error("aggregation failed", "session_id", sessionID, "organization_id", organizationID, "error", err)
			result = compose.Failure(q, compose.ErrorStorageUnavailable)
		}
	}

	if err := ctx.Err(); err != nil {
		return compose.Failure(q, compose.ErrorCanceled), err
	}

	messages, err := m.messages(text, result, ref)
	if err != nil {
		return compose.Failure(q, compose.ErrorSessionUnavailable), fmt.Errorf("encode reply: %w: %w", ErrSessionUnavailable, err)
	}
	header := emissions.ChatSession{ID: sessionID, OrganizationID: organizationID, CreatedAt: ref, UpdatedAt: ref}
	if session != nil {
		header.ProjectID = session.ProjectID
		header.CreatedAt = session.CreatedAt
	}
	if err := m.sessions.AppendMessages(ctx, header, messages); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return compose.Failure(q, compose.ErrorCanceled), ctxErr
		}
		m.logger.Error("failed to append messages", "session_id", sessionID, "error", err)
		return compose.Failure(q, compose.ErrorSessionUnavailable), fmt.Errorf("append messages: %w: %w", ErrSessionUnavailable, err)
	}

	// A context built without the catalog would differ from a later replay,
	// so it is dropped and rebuilt on the next turn.
	if catalogOK {
		tc = tc.Advance(q)
		m.storeTurnContext(sessionID, tc)
	} else {
		m.forgetTurnContext(sessionID)
	}

	m.publishTurn(sessionID, organizationID, tc.Turns, result, started)

	m.logger.Info("turn handled",
		"session_id", sessionID,
		"organization_id", organizationID,
		"intent", q.Intent,
		"shape", result.Shape,
		"duration_ms", m.now().Sub(started).Milliseconds(),
	)
	return result, nil
}

// Session returns the stored session.
func (m *Manager) Session(ctx context.Context, sessionID string) (*emissions.ChatSession, error) {
	s, err := m.sessions.LoadSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w: %w", ErrSessionUnavailable, err)
	}
	if s == nil {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Replay rebuilds a session's turn context by running its stored user
// messages through the query builder in order, each against the time it was
// sent.
func Replay(session *emissions.ChatSession, catalog emissions.Catalog, fiscalStart time.Month) TurnContext {
	var tc TurnContext
	if session == nil {
		return tc
	}
	for _, msg := range session.UserMessages() {
		q, _ := query.Build(query.Input{
			Text:            msg.Content,
			Catalog:         catalog,
			Reference:       msg.Timestamp.UTC(),
			FiscalYearStart: fiscalStart,
		}, tc.Prior)
		tc = tc.Advance(q)
	}
	return tc
}

func (m *Manager) messages(text string, result compose.QueryResult, ref time.Time) ([]emissions.ChatMessage, error) {
	attachment, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return []emissions.ChatMessage{
		{ID: uuid.NewString(), Role: emissions.RoleUser, Content: text, Timestamp: ref},
		{ID: uuid.NewString(), Role: emissions.RoleAssistant, Content: result.Summary, Timestamp: ref, Attachment: attachment},
	}, nil
}

func (m *Manager) fiscalYearStart(ctx context.Context, organizationID string) time.Month {
	if m.fiscal == nil {
		return m.fiscalStart
	}
	month, err := m.fiscal.GetFiscalYearStart(ctx, organizationID)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			m.logger.Warn("fiscal year start unavailable, using default", "organization_id", organizationID, "error", err)
		}
		return m.fiscalStart
	}
	if month < time.January || month > time.December {
		return m.fiscalStart
	}
	return month
}

func (m *Manager) publishTurn(sessionID, organizationID string, turn int, result compose.QueryResult, started time.Time) {
	if m.publisher == nil {
		return
	}
	evt := hermes.TurnCompleted{
		SessionID:      sessionID,
		OrganizationID: organizationID,
		Turn:           turn,
		Intent:         string(result.Query.Intent),
		Shape:          string(result.Shape),
		DurationMS:     m.now().Sub(started).Milliseconds(),
		CompletedAt:    m.now().UTC(),
	}
	if result.Data != nil {
		evt.RecordCount = result.Data.RecordCount
	}
	if result.Error != nil {
		evt.ErrorKind = string(result.Error.Kind)
	}
	if err := m.publisher.Publish(hermes.SubjectTurnCompleted, evt); err != nil {
		m.logger.Error("failed to publish turn completed", "session_id", sessionID, "error", err)
	}
}

func (m *Manager) turnContext(sessionID string) (TurnContext, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.contexts[sessionID]
	if !ok {
		return TurnContext{}, false
	}
	if m.now().Sub(e.used) > contextIdleTTL {
		delete(m.contexts, sessionID)
		return TurnContext{}, false
	}
	return e.tc, true
}

// storeTurnContext records tc and, at most once per idle TTL, drops every
// context that has been idle longer than that.
func (m *Manager) storeTurnContext(sessionID string, tc TurnContext) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contexts[sessionID] = cachedContext{tc: tc, used: now}
	if now.Sub(m.lastSweep) < contextIdleTTL {
		return
	}
	for id, e := range m.contexts {
		if now.Sub(e.used) > contextIdleTTL {
			delete(m.contexts, id)
		}
	}
	m.lastSweep = now
}

func (m *Manager) forgetTurnContext(sessionID string) {
	m.mu.Lock()
	delete(m.contexts, sessionID)
	m.mu.Unlock()
}

// CreateSession registers an empty session for an organization and returns it.
func (m *Manager) CreateSession(ctx context.Context, organizationID, projectID string) (emissions.ChatSession, error) {
	now := m.now().UTC()
	s := emissions.ChatSession{
		ID:             uuid.NewString(),
		OrganizationID: organizationID,
		ProjectID:      projectID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := m.sessions.AppendMessages(ctx, s, nil); err != nil {
		return emissions.ChatSession{}, fmt.Errorf("create session: %w: %w", ErrSessionUnavailable, err)
	}
	m.logger.Info("session created", "session_id", s.ID, "organization_id", organizationID)
	return s, nil
}
