package reconcile

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/raritone/session-backend/internal/accountcart"
	"github.com/raritone/session-backend/internal/catalog"
	"github.com/raritone/session-backend/internal/guestcart"
	pkgerrors "github.com/raritone/session-backend/pkg/errors"
	"github.com/raritone/session-backend/pkg/logger"
	"github.com/raritone/session-backend/pkg/metrics"
	"github.com/raritone/session-backend/pkg/pubsub"
	"github.com/raritone/session-backend/pkg/types"
)

// Outcome classifies a reconciliation attempt for the notification layer.
type Outcome string

const (
	// OutcomeMerged means every guest line made it into the account cart.
	OutcomeMerged Outcome = "merged"
	// OutcomePartial means the merge completed but something was degraded:
	// quantities were capped at stock, or the guest store could not be read
	// or cleared.
	OutcomePartial Outcome = "partial"
	// OutcomeFailed means the account cart write never succeeded; the guest
	// cart is kept intact for a retry on the next load.
	OutcomeFailed Outcome = "failed"
)

// OutcomeHook is invoked synchronously after every reconciliation attempt.
type OutcomeHook func(outcome Outcome)

// LocalStore is the guest-session side of the reconciliation.
type LocalStore interface {
	Load(ctx context.Context, sessionID string) (guestcart.State, error)
	Save(ctx context.Context, sessionID string, state guestcart.State) error
	Clear(ctx context.Context, sessionID string) error
}

// RemoteStore is the durable account side of the reconciliation.
type RemoteStore interface {
	Load(ctx context.Context, userID uuid.UUID) (accountcart.State, error)
	Save(ctx context.Context, userID uuid.UUID, state accountcart.State) error
	SaveWithRetry(ctx context.Context, userID uuid.UUID, state accountcart.State) error
	Clear(ctx context.Context, userID uuid.UUID) error
}

// MergePublisher pushes merge outcomes to downstream consumers.
type MergePublisher interface {
	PublishMergeEvent(ctx context.Context, event pubsub.MergeEvent) error
}

// LoginResult reports what a login reconciliation did.
type LoginResult struct {
	Outcome    Outcome
	Coalesced  bool
	CappedKeys []types.ItemKey
	State      accountcart.State
}

// EngineParams groups dependencies for the reconciliation engine.
type EngineParams struct {
	Local     LocalStore
	Remote    RemoteStore
	Stock     catalog.StockProvider
	Logger    *logger.Logger
	Metrics   *metrics.MergeMetrics
	Publisher MergePublisher
}

// Engine owns the guest-to-account state transitions. Login merges the guest
// cart into the account cart, logout resets the guest session, and an account
// switch re-points the authoritative store. Only one merge runs per user at a
// time; duplicate login events are coalesced. Session subscribers hear about
// the resulting state from the facade once it re-points, not from the engine.
type Engine struct {
	local     LocalStore
	remote    RemoteStore
	stock     catalog.StockProvider
	logg      *logger.Logger
	metrics   *metrics.MergeMetrics
	publisher MergePublisher

	mu       sync.Mutex
	inFlight map[uuid.UUID]struct{}
	hooks    []OutcomeHook
}

// NewEngine builds a reconciliation engine with the required dependencies.
// Stock, Metrics and Publisher are optional.
func NewEngine(params EngineParams) (*Engine, error) {
	if params.Local == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "local store is required")
	}
	if params.Remote == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "remote store is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	return &Engine{
		local:     params.Local,
		remote:    params.Remote,
		stock:     params.Stock,
		logg:      params.Logger,
		metrics:   params.Metrics,
		publisher: params.Publisher,
		inFlight:  map[uuid.UUID]struct{}{},
	}, nil
}

// OnMergeOutcome registers a hook called synchronously after every
// reconciliation attempt. The engine never renders UI itself.
func (e *Engine) OnMergeOutcome(hook OutcomeHook) {
	if hook == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hooks = append(e.hooks, hook)
}

// LoginCompleted merges the guest session's cart into the account cart. The
// merged result is written to the account store first; the guest document is
// cleared only after that write is confirmed, so a failed write never loses
// guest lines. A login event arriving while a merge for the same user is in
// flight is ignored.
func (e *Engine) LoginCompleted(ctx context.Context, sessionID string, userID uuid.UUID) (LoginResult, error) {
	if strings.TrimSpace(sessionID) == "" {
		return LoginResult{}, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	if userID == uuid.Nil {
		return LoginResult{}, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	if !e.acquire(userID) {
		e.logg.Info(e.logCtx(ctx, sessionID, userID), "duplicate login event coalesced")
		return LoginResult{Coalesced: true}, nil
	}
	defer e.release(userID)

	start := time.Now()
	result, err := e.merge(ctx, sessionID, userID)
	e.metrics.ObserveDuration("login", time.Since(start))
	e.metrics.IncOutcome(string(result.Outcome))
	e.notify(ctx, sessionID, userID, result)
	return result, err
}

func (e *Engine) merge(ctx context.Context, sessionID string, userID uuid.UUID) (LoginResult, error) {
	ctx = e.logCtx(ctx, sessionID, userID)

	localDegraded := false
	local, err := e.local.Load(ctx, sessionID)
	if err != nil {
		// The guest document stays in place; it will be merged on a later
		// load once the store recovers.
		e.metrics.IncStoreFailure("local", "load")
		e.logg.Warn(ctx, "guest cart unreadable during merge, proceeding with account cart only")
		local = guestcart.EmptyState()
		localDegraded = true
	}

	remote, err := e.remote.Load(ctx, userID)
	if err != nil {
		e.metrics.IncStoreFailure("remote", "load")
		return LoginResult{Outcome: OutcomeFailed}, err
	}

	mergedCart, capped := MergeCarts(local.Cart, remote.Cart, e.ceilingFunc(ctx))
	mergedWishlist := MergeWishlists(local.Wishlist, remote.Wishlist)
	merged := accountcart.State{Cart: mergedCart, Wishlist: mergedWishlist}

	if err := e.remote.SaveWithRetry(ctx, userID, merged); err != nil {
		e.metrics.IncStoreFailure("remote", "save")
		e.logg.Error(ctx, "account cart write failed, keeping guest cart for retry", err)
		return LoginResult{Outcome: OutcomeFailed, CappedKeys: capped}, err
	}

	clearFailed := false
	if !localDegraded {
		if err := e.local.Clear(ctx, sessionID); err != nil {
			e.metrics.IncStoreFailure("local", "clear")
			e.logg.Warn(ctx, "guest cart clear failed after merge; a later login may re-merge these lines")
			clearFailed = true
		}
	}

	outcome := OutcomeMerged
	if len(capped) > 0 || localDegraded || clearFailed {
		outcome = OutcomePartial
	}

	return LoginResult{Outcome: outcome, CappedKeys: capped, State: merged}, nil
}

// LoggedOut resets the guest session to empty. The account cart is durable
// per account and stays untouched, so a shared device never leaks one
// account's cart into the next anonymous session.
func (e *Engine) LoggedOut(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}

	ctx = e.logg.WithSessionID(ctx, sessionID)
	if err := e.local.Clear(ctx, sessionID); err != nil {
		e.metrics.IncStoreFailure("local", "clear")
		return err
	}

	e.logg.Info(ctx, "guest session reset on logout")
	return nil
}

// SwitchAccount re-points the session at a different account without merging.
// Any guest lines accumulated before the switch are discarded with a warning;
// merging them into the second account would be surprising, since they were
// picked while signed in to the first.
func (e *Engine) SwitchAccount(ctx context.Context, sessionID string, newUserID uuid.UUID) (accountcart.State, error) {
	if strings.TrimSpace(sessionID) == "" {
		return accountcart.State{}, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	if newUserID == uuid.Nil {
		return accountcart.State{}, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	ctx = e.logCtx(ctx, sessionID, newUserID)

	local, err := e.local.Load(ctx, sessionID)
	if err == nil && (local.Cart.Len() > 0 || local.Wishlist.Len() > 0) {
		e.logg.Warn(ctx, "discarding pending guest cart on account switch")
	}
	if err := e.local.Clear(ctx, sessionID); err != nil {
		e.metrics.IncStoreFailure("local", "clear")
		return accountcart.State{}, err
	}

	state, err := e.remote.Load(ctx, newUserID)
	if err != nil {
		e.metrics.IncStoreFailure("remote", "load")
		return accountcart.State{}, err
	}

	return state, nil
}

func (e *Engine) ceilingFunc(ctx context.Context) CeilingFunc {
	if e.stock == nil {
		return nil
	}
	return func(key types.ItemKey) *int {
		ceiling, err := e.stock.StockCeiling(ctx, key)
		if err != nil {
			// A catalog outage must not block the merge.
			e.logg.Warn(e.logg.WithField(ctx, "item_key", key.String()), "stock ceiling lookup failed, merging uncapped")
			return nil
		}
		return ceiling
	}
}

func (e *Engine) acquire(userID uuid.UUID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.inFlight[userID]; ok {
		return false
	}
	e.inFlight[userID] = struct{}{}
	return true
}

func (e *Engine) release(userID uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inFlight, userID)
}

func (e *Engine) notify(ctx context.Context, sessionID string, userID uuid.UUID, result LoginResult) {
	e.mu.Lock()
	hooks := make([]OutcomeHook, len(e.hooks))
	copy(hooks, e.hooks)
	e.mu.Unlock()
	for _, hook := range hooks {
		hook(result.Outcome)
	}

	if e.publisher == nil {
		return
	}
	capped := make([]string, 0, len(result.CappedKeys))
	for _, key := range result.CappedKeys {
		capped = append(capped, key.String())
	}
	event := pubsub.MergeEvent{
		UserID:     userID.String(),
		SessionID:  sessionID,
		Outcome:    string(result.Outcome),
		LineCount:  result.State.Cart.Len(),
		CappedKeys: capped,
		OccurredAt: time.Now().UTC(),
	}
	if err := e.publisher.PublishMergeEvent(ctx, event); err != nil {
		e.logg.Warn(e.logCtx(ctx, sessionID, userID), "merge event publish failed")
	}
}

func (e *Engine) logCtx(ctx context.Context, sessionID string, userID uuid.UUID) context.Context {
	return e.logg.WithUserID(e.logg.WithSessionID(ctx, sessionID), userID.String())
}
