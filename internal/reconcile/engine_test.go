package reconcile

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/raritone/session-backend/internal/accountcart"
	"github.com/raritone/session-backend/internal/guestcart"
	pkgerrors "github.com/raritone/session-backend/pkg/errors"
	"github.com/raritone/session-backend/pkg/logger"
	"github.com/raritone/session-backend/pkg/types"
)

type stubLocal struct {
	mu      sync.Mutex
	states  map[string]guestcart.State
	loadErr error
	saveErr error
	delErr  error
}

func newStubLocal() *stubLocal {
	return &stubLocal{states: map[string]guestcart.State{}}
}

func (s *stubLocal) Load(_ context.Context, sessionID string) (guestcart.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return guestcart.State{}, s.loadErr
	}
	if state, ok := s.states[sessionID]; ok {
		return state, nil
	}
	return guestcart.EmptyState(), nil
}

func (s *stubLocal) Save(_ context.Context, sessionID string, state guestcart.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.states[sessionID] = state
	return nil
}

func (s *stubLocal) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.delErr != nil {
		return s.delErr
	}
	delete(s.states, sessionID)
	return nil
}

type stubRemote struct {
	mu        sync.Mutex
	states    map[uuid.UUID]accountcart.State
	loadErr   error
	saveErr   error
	saveGate  chan struct{}
	saveCalls int
}

func newStubRemote() *stubRemote {
	return &stubRemote{states: map[uuid.UUID]accountcart.State{}}
}

func (s *stubRemote) Load(_ context.Context, userID uuid.UUID) (accountcart.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return accountcart.State{}, s.loadErr
	}
	if state, ok := s.states[userID]; ok {
		return state, nil
	}
	return accountcart.EmptyState(), nil
}

func (s *stubRemote) Save(ctx context.Context, userID uuid.UUID, state accountcart.State) error {
	return s.SaveWithRetry(ctx, userID, state)
}

func (s *stubRemote) SaveWithRetry(_ context.Context, userID uuid.UUID, state accountcart.State) error {
	s.mu.Lock()
	s.saveCalls++
	s.mu.Unlock()

	// Count the call before parking on the gate, so tests can observe that a
	// write is in flight while it is still blocked.
	if s.saveGate != nil {
		<-s.saveGate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.states[userID] = state
	return nil
}

func (s *stubRemote) Clear(_ context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, userID)
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func newTestEngine(t *testing.T, local LocalStore, remote RemoteStore) *Engine {
	t.Helper()
	engine, err := NewEngine(EngineParams{
		Local:  local,
		Remote: remote,
		Logger: testLogger(),
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return engine
}

func guestStateWith(key types.ItemKey, qty int, at time.Time) guestcart.State {
	state := guestcart.EmptyState()
	state.Cart.Add(key, qty, decimal.NewFromInt(20), at)
	return state
}

func TestLoginMergesGuestIntoAccount(t *testing.T) {
	t.Parallel()

	tshirt := types.NewItemKey("t-shirt", "M")
	hoodie := types.NewItemKey("hoodie", "L")
	userID := uuid.New()

	local := newStubLocal()
	local.states["sess-1"] = guestStateWith(tshirt, 2, time.Now().UTC())

	remote := newStubRemote()
	account := accountcart.EmptyState()
	account.Cart.Add(tshirt, 1, decimal.NewFromInt(20), time.Now().UTC().Add(-time.Hour))
	account.Cart.Add(hoodie, 1, decimal.NewFromInt(60), time.Now().UTC().Add(-time.Hour))
	remote.states[userID] = account

	engine := newTestEngine(t, local, remote)
	result, err := engine.LoginCompleted(context.Background(), "sess-1", userID)
	if err != nil {
		t.Fatalf("LoginCompleted: %v", err)
	}
	if result.Outcome != OutcomeMerged {
		t.Fatalf("expected merged outcome, got %s", result.Outcome)
	}

	saved := remote.states[userID]
	if line, _ := saved.Cart.Get(tshirt); line.Quantity != 3 {
		t.Fatalf("expected t-shirt quantity 3 after merge, got %d", line.Quantity)
	}
	if line, _ := saved.Cart.Get(hoodie); line.Quantity != 1 {
		t.Fatalf("expected hoodie carried over, got %d", line.Quantity)
	}
	if _, ok := local.states["sess-1"]; ok {
		t.Fatal("guest document must be cleared after a confirmed remote write")
	}
}

func TestLoginEmptyGuestKeepsAccountUnchanged(t *testing.T) {
	t.Parallel()

	jeans := types.NewItemKey("jeans", "32")
	userID := uuid.New()

	remote := newStubRemote()
	account := accountcart.EmptyState()
	account.Cart.Add(jeans, 1, decimal.NewFromInt(80), time.Now().UTC())
	remote.states[userID] = account

	local := newStubLocal()
	engine := newTestEngine(t, local, remote)

	result, err := engine.LoginCompleted(context.Background(), "sess-1", userID)
	if err != nil {
		t.Fatalf("LoginCompleted: %v", err)
	}
	if result.Outcome != OutcomeMerged {
		t.Fatalf("expected merged outcome, got %s", result.Outcome)
	}
	saved := remote.states[userID]
	if saved.Cart.Len() != 1 {
		t.Fatalf("expected account cart unchanged, got %d lines", saved.Cart.Len())
	}
	if line, _ := saved.Cart.Get(jeans); line.Quantity != 1 {
		t.Fatalf("expected jeans quantity 1, got %d", line.Quantity)
	}
}

func TestLoginRemoteWriteFailureKeepsGuestCart(t *testing.T) {
	t.Parallel()

	key := types.NewItemKey("tee-03", "")
	userID := uuid.New()

	local := newStubLocal()
	local.states["sess-1"] = guestStateWith(key, 2, time.Now().UTC())

	remote := newStubRemote()
	remote.saveErr = pkgerrors.New(pkgerrors.CodeSyncFailed, "write exhausted retries")

	engine := newTestEngine(t, local, remote)

	outcomes := []Outcome{}
	engine.OnMergeOutcome(func(o Outcome) { outcomes = append(outcomes, o) })

	result, err := engine.LoginCompleted(context.Background(), "sess-1", userID)
	if err == nil {
		t.Fatal("expected error when remote write fails")
	}
	if result.Outcome != OutcomeFailed {
		t.Fatalf("expected failed outcome, got %s", result.Outcome)
	}
	state, ok := local.states["sess-1"]
	if !ok || state.Cart.Len() != 1 {
		t.Fatal("guest cart must remain intact when the remote write fails")
	}
	if len(outcomes) != 1 || outcomes[0] != OutcomeFailed {
		t.Fatalf("expected failed outcome delivered to hook, got %v", outcomes)
	}
}

func TestLoginDuplicateEventsCoalesced(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	local := newStubLocal()
	remote := newStubRemote()
	remote.saveGate = make(chan struct{})

	engine := newTestEngine(t, local, remote)
	ctx := context.Background()

	done := make(chan LoginResult, 1)
	go func() {
		result, _ := engine.LoginCompleted(ctx, "sess-1", userID)
		done <- result
	}()

	// Wait for the first merge to reach the gated remote write.
	deadline := time.After(2 * time.Second)
	for {
		remote.mu.Lock()
		started := remote.saveCalls > 0
		remote.mu.Unlock()
		if started {
			break
		}
		select {
		case <-deadline:
			close(remote.saveGate)
			t.Fatal("first merge never reached the remote write")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	dup, err := engine.LoginCompleted(ctx, "sess-1", userID)
	if err != nil {
		t.Fatalf("duplicate LoginCompleted: %v", err)
	}
	if !dup.Coalesced {
		t.Fatal("expected duplicate login event to be coalesced")
	}

	close(remote.saveGate)
	first := <-done
	if first.Coalesced {
		t.Fatal("first login must run the merge")
	}

	remote.mu.Lock()
	calls := remote.saveCalls
	remote.mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected exactly one remote write, got %d", calls)
	}
}

func TestLoggedOutResetsGuestOnly(t *testing.T) {
	t.Parallel()

	jeans := types.NewItemKey("jeans", "32")
	userID := uuid.New()

	local := newStubLocal()
	local.states["sess-1"] = guestStateWith(jeans, 1, time.Now().UTC())

	remote := newStubRemote()
	account := accountcart.EmptyState()
	account.Cart.Add(jeans, 1, decimal.NewFromInt(80), time.Now().UTC())
	remote.states[userID] = account

	engine := newTestEngine(t, local, remote)

	if err := engine.LoggedOut(context.Background(), "sess-1"); err != nil {
		t.Fatalf("LoggedOut: %v", err)
	}

	if _, ok := local.states["sess-1"]; ok {
		t.Fatal("guest session must reset to empty on logout")
	}
	if line, _ := remote.states[userID].Cart.Get(jeans); line.Quantity != 1 {
		t.Fatal("account cart must stay untouched on logout")
	}
}

func TestSwitchAccountDiscardsPendingGuestCart(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	local := newStubLocal()
	local.states["sess-1"] = guestStateWith(types.NewItemKey("pending", ""), 5, time.Now().UTC())

	remote := newStubRemote()
	account := accountcart.EmptyState()
	account.Cart.Add(types.NewItemKey("jeans", "32"), 1, decimal.NewFromInt(80), time.Now().UTC())
	remote.states[userID] = account

	engine := newTestEngine(t, local, remote)
	state, err := engine.SwitchAccount(context.Background(), "sess-1", userID)
	if err != nil {
		t.Fatalf("SwitchAccount: %v", err)
	}

	if _, ok := local.states["sess-1"]; ok {
		t.Fatal("pending guest cart must be discarded on account switch")
	}
	if state.Cart.Len() != 1 {
		t.Fatalf("expected new account's cart returned, got %d lines", state.Cart.Len())
	}
	if _, ok := state.Cart.Get(types.NewItemKey("pending", "")); ok {
		t.Fatal("guest lines must not leak into the switched account")
	}
}

func TestLoginPartialWhenGuestStoreUnreadable(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	local := newStubLocal()
	local.loadErr = pkgerrors.New(pkgerrors.CodeStoreUnavailable, "redis down")

	remote := newStubRemote()
	engine := newTestEngine(t, local, remote)

	result, err := engine.LoginCompleted(context.Background(), "sess-1", userID)
	if err != nil {
		t.Fatalf("LoginCompleted: %v", err)
	}
	if result.Outcome != OutcomePartial {
		t.Fatalf("expected partial outcome when the guest store is unreadable, got %s", result.Outcome)
	}
}

func TestLoginValidatesInput(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, newStubLocal(), newStubRemote())

	if _, err := engine.LoginCompleted(context.Background(), "", uuid.New()); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for empty session, got %v", err)
	}
	if _, err := engine.LoginCompleted(context.Background(), "sess-1", uuid.Nil); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for nil user, got %v", err)
	}
}
