// Package session holds operator credentials and the HMAC key derived from them.
// The key is refreshed on a fixed interval while credentials are set.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/pv/precog-panel/internal/logger"
	"github.com/pv/precog-panel/internal/metrics"
	"github.com/pv/precog-panel/internal/poller"
	"github.com/pv/precog-panel/internal/precog"
)

// AuthErrorMessage is shown after a failed key request.
const AuthErrorMessage = "Username or password doesn’t match.\nIf you forgot your password, please reset it at vidasoftservices.com."

const requestTimeout = 30 * time.Second

var (
	ErrNoToken        = errors.New("not authenticated")
	ErrAuthenticating = errors.New("authentication already in progress")
)

// Authenticator обменивает учётные данные на ключ
type Authenticator interface {
	RequestHMACKey(ctx context.Context, userName, password string) (string, error)
	GetUserDetails(ctx context.Context) (*precog.UserDetails, error)
}

// Status снимок состояния сессии
type Status struct {
	Authenticated  bool   `json:"authenticated"`
	Authenticating bool   `json:"authenticating"`
	UserName       string `json:"userName,omitempty"`
	DisplayName    string `json:"displayName,omitempty"`
	Error          string `json:"error,omitempty"`
	// Generation растёт при каждой смене ключа (получен, обновлён, сброшен)
	Generation uint64 `json:"generation"`
}

// ChangeCallback вызывается при смене ключа или ошибки (вне блокировки)
type ChangeCallback func(Status)

// Session держит учётные данные в памяти и реализует oauth2.TokenSource
type Session struct {
	auth    Authenticator
	sched   *poller.Scheduler
	refresh time.Duration

	mu             sync.Mutex
	userName       string
	password       string
	token          *oauth2.Token
	authErr        string
	displayName    string
	authenticating bool
	done           chan struct{}
	epoch          uint64
	generation     uint64
	listeners      []ChangeCallback
}

var _ oauth2.TokenSource = (*Session)(nil)

// New создаёт сессию. Задача обновления ключа выполняется в sched.
func New(auth Authenticator, sched *poller.Scheduler, refresh time.Duration) *Session {
	return &Session{
		auth:    auth,
		sched:   sched,
		refresh: refresh,
	}
}

// OnChange регистрирует слушателя изменений
func (s *Session) OnChange(cb ChangeCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, cb)
}

// SetCredentials задаёт учётные данные и запускает асинхронный запрос ключа.
// Пустые учётные данные означают выход.
func (s *Session) SetCredentials(userName, password string) error {
	if userName == "" || password == "" {
		s.Logout()
		return nil
	}

	s.mu.Lock()
	if s.authenticating {
		s.mu.Unlock()
		return ErrAuthenticating
	}
	s.epoch++
	epoch := s.epoch
	// ключ прежнего пользователя не должен жить до ответа на новый запрос
	dropped := s.token != nil && s.userName != userName
	if dropped {
		s.token = nil
		s.displayName = ""
		s.generation++
	}
	s.userName = userName
	s.password = password
	s.authenticating = true
	s.done = make(chan struct{})
	status, listeners := s.statusLocked(), s.listenersLocked()
	s.mu.Unlock()

	if dropped {
		notify(listeners, status)
	}

	s.sched.Replace(poller.RoleTokenRefresh, s.refresh, true, func(ctx context.Context) {
		s.requestKey(ctx, epoch)
	})

	logger.Info("Authenticating", "user", userName)
	return nil
}

// Logout сбрасывает учётные данные, ключ и ошибку
func (s *Session) Logout() {
	s.sched.Cancel(poller.RoleTokenRefresh)

	s.mu.Lock()
	s.epoch++
	hadToken := s.token != nil
	s.userName, s.password = "", ""
	s.token = nil
	s.authErr = ""
	s.displayName = ""
	s.finishLocked()
	if hadToken {
		s.generation++
	}
	status, listeners := s.statusLocked(), s.listenersLocked()
	s.mu.Unlock()

	logger.Info("Logged out")
	notify(listeners, status)
}

func (s *Session) requestKey(ctx context.Context, epoch uint64) {
	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		return
	}
	userName, password := s.userName, s.password
	if !s.authenticating {
		s.authenticating = true
		s.done = make(chan struct{})
	}
	prevKey := ""
	if s.token != nil {
		prevKey = s.token.AccessToken
	}
	s.mu.Unlock()

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	key, err := s.auth.RequestHMACKey(reqCtx, userName, password)
	cancel()
	metrics.IncAuth(err)

	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		return
	}
	prevErr := s.authErr
	if err != nil {
		logger.Warn("Failed to fetch HMAC key", "user", userName, "error", err)
		s.token = nil
		s.displayName = ""
		s.authErr = AuthErrorMessage
	} else {
		s.token = &oauth2.Token{
			AccessToken: key,
			TokenType:   precog.HeaderHMACKey,
			Expiry:      time.Now().Add(s.refresh),
		}
		s.authErr = ""
	}
	changed := (s.token == nil) != (prevKey == "") || (s.token != nil && s.token.AccessToken != prevKey)
	if changed {
		s.generation++
	}
	s.mu.Unlock()

	if err == nil {
		s.loadDisplayName(ctx, epoch)
	}

	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		return
	}
	s.finishLocked()
	status, listeners := s.statusLocked(), s.listenersLocked()
	errChanged := prevErr != s.authErr
	s.mu.Unlock()

	if changed || errChanged {
		notify(listeners, status)
	}
}

func (s *Session) loadDisplayName(ctx context.Context, epoch uint64) {
	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	details, err := s.auth.GetUserDetails(reqCtx)
	if err != nil {
		logger.Debug("Failed to fetch user details", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch == s.epoch && details != nil {
		s.displayName = details.DisplayName
	}
}

func (s *Session) finishLocked() {
	if s.authenticating {
		s.authenticating = false
		close(s.done)
	}
}

func (s *Session) statusLocked() Status {
	return Status{
		Authenticated:  s.token != nil,
		Authenticating: s.authenticating,
		UserName:       s.userName,
		DisplayName:    s.displayName,
		Error:          s.authErr,
		Generation:     s.generation,
	}
}

func (s *Session) listenersLocked() []ChangeCallback {
	return append([]ChangeCallback(nil), s.listeners...)
}

func notify(listeners []ChangeCallback, status Status) {
	for _, cb := range listeners {
		cb(status)
	}
}

// Token implements oauth2.TokenSource.
func (s *Session) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == nil {
		return nil, ErrNoToken
	}
	tok := *s.token
	return &tok, nil
}

// Status возвращает текущее состояние
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

// IsAuthenticating сообщает, выполняется ли запрос ключа
func (s *Session) IsAuthenticating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticating
}

// Wait блокируется до завершения текущего запроса ключа
func (s *Session) Wait(ctx context.Context) error {
	s.mu.Lock()
	done, pending := s.done, s.authenticating
	s.mu.Unlock()

	if !pending {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
