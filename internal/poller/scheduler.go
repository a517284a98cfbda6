package poller

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pv/precog-panel/internal/logger"
)

// Роли периодических задач
const (
	RoleTokenRefresh = "token-refresh"
	RoleDevicePoll   = "device-poll"
	RoleRealtime     = "realtime-chart"
)

// Func тело периодической задачи. ctx отменяется при замене или остановке задачи.
type Func func(ctx context.Context)

type task struct {
	role     string
	interval time.Duration
	fn       Func
	ctx      context.Context
	cancel   context.CancelFunc
}

// Scheduler держит не более одной активной задачи на роль.
// Replace отменяет предыдущую задачу роли до запуска новой, так что
// тики старого замыкания после замены не выполняются.
type Scheduler struct {
	mu     sync.Mutex
	tasks  map[string]*task
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler создаёт планировщик
func NewScheduler() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		tasks:  make(map[string]*task),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Replace запускает fn каждые interval под ролью role, отменяя прежнюю задачу роли.
// При immediate первый вызов выполняется сразу.
// Можно вызывать из тела задачи: ожидания завершения старой задачи нет.
func (s *Scheduler) Replace(role string, interval time.Duration, immediate bool, fn Func) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx.Err() != nil {
		return
	}
	if old, ok := s.tasks[role]; ok {
		old.cancel()
	}

	ctx, cancel := context.WithCancel(s.ctx)
	t := &task{
		role:     role,
		interval: interval,
		fn:       fn,
		ctx:      ctx,
		cancel:   cancel,
	}
	s.tasks[role] = t

	s.wg.Add(1)
	go s.loop(t, immediate)
	logger.Debug("Task scheduled", "role", role, "interval", interval)
}

// Cancel останавливает задачу роли (если есть)
func (s *Scheduler) Cancel(role string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.tasks[role]; ok {
		t.cancel()
		delete(s.tasks, role)
		logger.Debug("Task cancelled", "role", role)
	}
}

// Active сообщает, есть ли задача у роли
func (s *Scheduler) Active(role string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[role]
	return ok
}

// Roles возвращает активные роли
func (s *Scheduler) Roles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	roles := make([]string, 0, len(s.tasks))
	for role := range s.tasks {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}

// Stop отменяет все задачи и ждёт их завершения. Не вызывать из тела задачи.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.cancel()
	s.tasks = make(map[string]*task)
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Scheduler) loop(t *task, immediate bool) {
	defer s.wg.Done()

	if immediate {
		s.tick(t)
	}

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
			s.tick(t)
		}
	}
}

func (s *Scheduler) tick(t *task) {
	if t.ctx.Err() != nil {
		return
	}
	t.fn(t.ctx)
}
