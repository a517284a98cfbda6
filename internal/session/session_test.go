package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pv/precog-panel/internal/poller"
	"github.com/pv/precog-panel/internal/precog"
)

type fakeAuth struct {
	mu      sync.Mutex
	keys    []string
	fail    bool
	calls   atomic.Int32
	release chan struct{}
}

func (f *fakeAuth) RequestHMACKey(ctx context.Context, userName, password string) (string, error) {
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	n := f.calls.Add(1)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail || password != "pw" {
		return "", errors.New("401 - unauthorized")
	}
	if int(n) <= len(f.keys) {
		return f.keys[n-1], nil
	}
	return f.keys[len(f.keys)-1], nil
}

func (f *fakeAuth) GetUserDetails(ctx context.Context) (*precog.UserDetails, error) {
	return &precog.UserDetails{DisplayName: "Alice A."}, nil
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestSessionLoginSuccess(t *testing.T) {
	sched := poller.NewScheduler()
	defer sched.Stop()

	s := New(&fakeAuth{keys: []string{"k1"}}, sched, time.Hour)

	var statuses []Status
	var mu sync.Mutex
	s.OnChange(func(st Status) {
		mu.Lock()
		statuses = append(statuses, st)
		mu.Unlock()
	})

	if err := s.SetCredentials("alice", "pw"); err != nil {
		t.Fatalf("SetCredentials failed: %v", err)
	}
	if err := s.Wait(waitCtx(t)); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}

	tok, err := s.Token()
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if tok.AccessToken != "k1" {
		t.Errorf("expected k1, got %s", tok.AccessToken)
	}

	st := s.Status()
	if !st.Authenticated || st.Authenticating || st.Error != "" {
		t.Errorf("unexpected status: %+v", st)
	}
	if st.DisplayName != "Alice A." {
		t.Errorf("expected display name, got %q", st.DisplayName)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(statuses) != 1 || !statuses[0].Authenticated {
		t.Errorf("expected one authenticated notification, got %+v", statuses)
	}
}

func TestSessionLoginFailure(t *testing.T) {
	sched := poller.NewScheduler()
	defer sched.Stop()

	s := New(&fakeAuth{keys: []string{"k1"}}, sched, time.Hour)
	s.SetCredentials("alice", "wrong")
	s.Wait(waitCtx(t))

	if _, err := s.Token(); !errors.Is(err, ErrNoToken) {
		t.Errorf("expected ErrNoToken, got %v", err)
	}
	st := s.Status()
	if st.Error != AuthErrorMessage {
		t.Errorf("unexpected error text: %q", st.Error)
	}
	if st.Authenticated {
		t.Error("should not be authenticated")
	}
}

func TestSessionRejectsResubmission(t *testing.T) {
	sched := poller.NewScheduler()
	defer sched.Stop()

	auth := &fakeAuth{keys: []string{"k1"}, release: make(chan struct{})}
	s := New(auth, sched, time.Hour)

	if err := s.SetCredentials("alice", "pw"); err != nil {
		t.Fatalf("first SetCredentials failed: %v", err)
	}
	if !s.IsAuthenticating() {
		t.Fatal("should be authenticating")
	}
	if err := s.SetCredentials("alice", "pw"); !errors.Is(err, ErrAuthenticating) {
		t.Errorf("expected ErrAuthenticating, got %v", err)
	}

	close(auth.release)
	s.Wait(waitCtx(t))
	if s.IsAuthenticating() {
		t.Error("should have finished")
	}
}

func TestSessionLogout(t *testing.T) {
	sched := poller.NewScheduler()
	defer sched.Stop()

	s := New(&fakeAuth{keys: []string{"k1"}}, sched, time.Hour)
	s.SetCredentials("alice", "pw")
	s.Wait(waitCtx(t))
	gen := s.Status().Generation

	var lost atomic.Bool
	s.OnChange(func(st Status) {
		if !st.Authenticated {
			lost.Store(true)
		}
	})

	if err := s.SetCredentials("", ""); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if _, err := s.Token(); !errors.Is(err, ErrNoToken) {
		t.Error("token should be cleared")
	}
	st := s.Status()
	if st.Error != "" || st.UserName != "" || st.DisplayName != "" {
		t.Errorf("status not cleared: %+v", st)
	}
	if st.Generation != gen+1 {
		t.Errorf("generation = %d, want %d", st.Generation, gen+1)
	}
	if sched.Active(poller.RoleTokenRefresh) {
		t.Error("refresh task should be cancelled")
	}
	if !lost.Load() {
		t.Error("listeners should hear about logout")
	}
}

func TestSessionUserChangeDropsKey(t *testing.T) {
	sched := poller.NewScheduler()
	defer sched.Stop()

	auth := &fakeAuth{keys: []string{"k1", "k2"}}
	s := New(auth, sched, time.Hour)
	s.SetCredentials("alice", "pw")
	s.Wait(waitCtx(t))
	gen := s.Status().Generation

	changes := make(chan Status, 4)
	s.OnChange(func(st Status) { changes <- st })

	auth.release = make(chan struct{})
	if err := s.SetCredentials("bob", "pw"); err != nil {
		t.Fatalf("SetCredentials failed: %v", err)
	}

	// пока запрос bob висит, ключ alice уже недоступен
	if _, err := s.Token(); !errors.Is(err, ErrNoToken) {
		t.Errorf("previous user's key should be dropped, got %v", err)
	}
	st := s.Status()
	if st.Authenticated || !st.Authenticating || st.UserName != "bob" || st.DisplayName != "" {
		t.Errorf("unexpected status: %+v", st)
	}
	if st.Generation != gen+1 {
		t.Errorf("generation = %d, want %d", st.Generation, gen+1)
	}
	select {
	case ch := <-changes:
		if ch.Authenticated {
			t.Errorf("listeners should hear the key loss, got %+v", ch)
		}
	case <-time.After(time.Second):
		t.Fatal("no change notification")
	}

	close(auth.release)
	s.Wait(waitCtx(t))
	tok, err := s.Token()
	if err != nil || tok.AccessToken != "k2" {
		t.Errorf("expected bob's key k2, got %v %v", tok, err)
	}
}

func TestSessionSameUserKeepsKey(t *testing.T) {
	sched := poller.NewScheduler()
	defer sched.Stop()

	auth := &fakeAuth{keys: []string{"k1", "k2"}}
	s := New(auth, sched, time.Hour)
	s.SetCredentials("alice", "pw")
	s.Wait(waitCtx(t))

	auth.release = make(chan struct{})
	s.SetCredentials("alice", "pw")
	if tok, err := s.Token(); err != nil || tok.AccessToken != "k1" {
		t.Errorf("same user should keep k1 while re-authenticating, got %v %v", tok, err)
	}
	close(auth.release)
	s.Wait(waitCtx(t))
}

func TestSessionRefreshRotatesKey(t *testing.T) {
	sched := poller.NewScheduler()
	defer sched.Stop()

	auth := &fakeAuth{keys: []string{"k1", "k2"}}
	s := New(auth, sched, 20*time.Millisecond)

	changes := make(chan Status, 8)
	s.OnChange(func(st Status) { changes <- st })

	s.SetCredentials("alice", "pw")

	first := <-changes
	second := <-changes
	if second.Generation <= first.Generation {
		t.Errorf("generation should grow: %d -> %d", first.Generation, second.Generation)
	}
	tok, _ := s.Token()
	if tok.AccessToken != "k2" {
		t.Errorf("expected refreshed key k2, got %s", tok.AccessToken)
	}
}

func TestSessionLogoutDuringRequest(t *testing.T) {
	sched := poller.NewScheduler()
	defer sched.Stop()

	auth := &fakeAuth{keys: []string{"k1"}, release: make(chan struct{})}
	s := New(auth, sched, time.Hour)
	s.SetCredentials("alice", "pw")

	s.Logout()
	if s.IsAuthenticating() {
		t.Error("logout should end the pending state")
	}
	close(auth.release)

	time.Sleep(20 * time.Millisecond)
	if _, err := s.Token(); !errors.Is(err, ErrNoToken) {
		t.Error("late key must be dropped after logout")
	}
}
