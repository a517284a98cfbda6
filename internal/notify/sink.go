package notify

import (
	"context"
	"sync"
	"time"

	"github.com/pv/precog-panel/internal/logger"
	"github.com/pv/precog-panel/internal/metrics"
)

const deliverTimeout = 10 * time.Second

// Sink получатель оповещений
type Sink interface {
	Name() string
	Deliver(ctx context.Context, alert Alert) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc struct {
	SinkName string
	Fn       func(ctx context.Context, alert Alert) error
}

func (f SinkFunc) Name() string { return f.SinkName }

func (f SinkFunc) Deliver(ctx context.Context, alert Alert) error {
	return f.Fn(ctx, alert)
}

// Dispatcher доставляет оповещения всем получателям в отдельной горутине,
// чтобы медленный получатель не задерживал цикл опроса.
type Dispatcher struct {
	mu    sync.RWMutex
	sinks []Sink
	queue chan Alert

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDispatcher создаёт диспетчер с буфером bufferSize оповещений
func NewDispatcher(bufferSize int, sinks ...Sink) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		sinks:  sinks,
		queue:  make(chan Alert, bufferSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add регистрирует получателя
func (d *Dispatcher) Add(s Sink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sinks = append(d.sinks, s)
}

// SinkNames returns the registered sink names.
func (d *Dispatcher) SinkNames() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, len(d.sinks))
	for i, s := range d.sinks {
		names[i] = s.Name()
	}
	return names
}

// Start запускает доставку
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go d.run()
	logger.Info("Alert dispatcher started", "sinks", d.SinkNames())
}

// Stop останавливает доставку. Оповещения, оставшиеся в очереди, отбрасываются.
func (d *Dispatcher) Stop() {
	d.cancel()
	d.wg.Wait()
	logger.Info("Alert dispatcher stopped")
}

// Publish ставит оповещения в очередь, не блокируясь. При переполнении оповещение отбрасывается.
func (d *Dispatcher) Publish(alerts ...Alert) {
	for _, a := range alerts {
		select {
		case d.queue <- a:
		default:
			logger.Warn("Alert queue full, dropping alert", "kind", a.Kind, "device", a.DeviceID)
		}
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case a := <-d.queue:
			d.deliver(a)
		}
	}
}

func (d *Dispatcher) deliver(a Alert) {
	d.mu.RLock()
	sinks := append([]Sink(nil), d.sinks...)
	d.mu.RUnlock()

	for _, s := range sinks {
		ctx, cancel := context.WithTimeout(d.ctx, deliverTimeout)
		err := s.Deliver(ctx, a)
		cancel()
		if err != nil {
			logger.Warn("Alert delivery failed", "sink", s.Name(), "alert", a.ID, "error", err)
			metrics.IncSinkError(s.Name())
		}
	}
}
