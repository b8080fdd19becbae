package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"favorsweb/internal/auth"
	"favorsweb/internal/domain"
)

type State int

const (
	StateUnauthenticated State = iota
	StateLoading
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// AuthAPI is the part of the backend the session talks to.
type AuthAPI interface {
	Login(ctx context.Context, req domain.LoginRequest) (domain.AuthResponse, error)
	Register(ctx context.Context, req domain.RegisterRequest) (domain.AuthResponse, error)
	Me(ctx context.Context) (domain.User, error)
}

// Manager owns the bearer token and the current user. It persists the token
// in a Store under a fixed key and serves it to the backend client as its
// TokenSource. Safe for concurrent use.
type Manager struct {
	store  Store
	sealer auth.TokenSealer
	logger *slog.Logger

	mu    sync.RWMutex
	api   AuthAPI
	state State
	token string
	user  *domain.User
	subs  map[chan State]struct{}
}

func NewManager(store Store, sealer auth.TokenSealer, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:  store,
		sealer: sealer,
		logger: logger,
		subs:   make(map[chan State]struct{}),
	}
}

// SetAuthAPI connects the manager to the backend. The backend client itself
// depends on the manager for tokens, so this happens after construction.
func (m *Manager) SetAuthAPI(api AuthAPI) {
	m.mu.Lock()
	m.api = api
	m.mu.Unlock()
}

func (m *Manager) authAPI() (AuthAPI, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.api == nil {
		return nil, errors.New("session: auth api not set")
	}
	return m.api, nil
}

// Token implements backend.TokenSource.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Manager) IsAuthenticated() bool { return m.State() == StateAuthenticated }

// User returns the cached current user.
func (m *Manager) User() (domain.User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return domain.User{}, false
	}
	return *m.user, true
}

// Init restores a stored session: with a stored token the user is fetched
// and the session becomes authenticated; if that fails the token is
// discarded. Only store failures are returned.
func (m *Manager) Init(ctx context.Context) error {
	api, err := m.authAPI()
	if err != nil {
		return err
	}

	stored, err := m.store.Load(ctx, auth.TokenStorageKey)
	if errors.Is(err, domain.ErrNotFound) {
		m.set(StateUnauthenticated, "", nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load session token: %w", err)
	}

	token, ok := m.sealer.Open(stored)
	if !ok {
		m.logger.Warn("session: stored token unreadable, discarding")
		return m.clear(ctx)
	}

	m.set(StateLoading, token, nil)
	u, err := api.Me(ctx)
	if err != nil {
		m.logger.Info("session: stored token rejected", "err", err)
		return m.clear(ctx)
	}
	m.set(StateAuthenticated, token, &u)
	return nil
}

func (m *Manager) Login(ctx context.Context, username, password string) (domain.User, error) {
	api, err := m.authAPI()
	if err != nil {
		return domain.User{}, err
	}
	resp, err := api.Login(ctx, domain.LoginRequest{Username: username, Password: password})
	if err != nil {
		return domain.User{}, err
	}
	return m.establish(ctx, resp)
}

func (m *Manager) Register(ctx context.Context, req domain.RegisterRequest) (domain.User, error) {
	api, err := m.authAPI()
	if err != nil {
		return domain.User{}, err
	}
	resp, err := api.Register(ctx, req)
	if err != nil {
		return domain.User{}, err
	}
	return m.establish(ctx, resp)
}

func (m *Manager) establish(ctx context.Context, resp domain.AuthResponse) (domain.User, error) {
	if resp.Token == "" {
		return domain.User{}, fmt.Errorf("%w: backend returned no token", domain.ErrBackend)
	}
	sealed, err := m.sealer.Seal(resp.Token)
	if err != nil {
		return domain.User{}, err
	}
	if err := m.store.Save(ctx, auth.TokenStorageKey, sealed); err != nil {
		return domain.User{}, fmt.Errorf("save session token: %w", err)
	}
	u := resp.User
	m.set(StateAuthenticated, resp.Token, &u)
	return u, nil
}

// Logout forgets the session locally. The backend is not told.
func (m *Manager) Logout(ctx context.Context) error {
	return m.clear(ctx)
}

// HandleUnauthorized is the backend client's hook for rejected tokens. A
// rejection of a token other than the current one is ignored.
func (m *Manager) HandleUnauthorized(token string) {
	current := m.Token()
	if current == "" || token != current {
		return
	}
	m.logger.Info("session: token rejected, signing out")
	if err := m.clear(context.Background()); err != nil {
		m.logger.Error("session: clear token failed", "err", err)
	}
}

func (m *Manager) clear(ctx context.Context) error {
	m.set(StateUnauthenticated, "", nil)
	if err := m.store.Delete(ctx, auth.TokenStorageKey); err != nil {
		return fmt.Errorf("delete session token: %w", err)
	}
	return nil
}

func (m *Manager) set(state State, token string, user *domain.User) {
	m.mu.Lock()
	changed := m.state != state
	m.state = state
	m.token = token
	m.user = user
	var subs []chan State
	if changed {
		for ch := range m.subs {
			subs = append(subs, ch)
		}
	}
	m.mu.Unlock()

	for _, ch := range subs {
		// Keep only the latest state for slow subscribers.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- state:
		default:
		}
	}
}

// Subscribe returns a channel that receives the session state after every
// transition. Call cancel to stop receiving.
func (m *Manager) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)
	m.mu.Lock()
	m.subs[ch] = struct{}{}
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, ch)
			m.mu.Unlock()
		})
	}
}
