package wifi

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wzhhnet/esp32-mg-server/internal/logging"
	"github.com/wzhhnet/esp32-mg-server/internal/record"
)

// Driver is the radio driver boundary. Every call only issues the request;
// completion arrives later through Controller.Notify.
type Driver interface {
	SetMode(mode Mode) error
	Start() error
	SetCredentials(cr Credentials) error
	Connect() error
	Disconnect() error
	Scan() error
	CancelScan() error
}

// Records persists the provisioning record. Each mutation commits before
// returning.
type Records interface {
	Read() (record.Record, error)
	Write(r record.Record) error
	Erase() error
}

// Config holds controller tunables
type Config struct {
	MaxRetry       int
	BusyTimeout    time.Duration
	ReconnectAfter time.Duration

	// RecordRetry is the delay before a failed record write is re-attempted.
	RecordRetry time.Duration

	// QueueSize is the capacity of the inbound event queue.
	QueueSize int
}

// DefaultConfig returns the configuration used by the daemon when nothing
// else is set.
func DefaultConfig() Config {
	return Config{
		MaxRetry:    DefaultMaxRetry,
		BusyTimeout: DefaultBusyTimeout,
		RecordRetry: 5 * time.Second,
		QueueSize:   32,
	}
}

type envelope struct {
	ev    Event
	reply chan error
}

// Controller owns the provisioning model and the goroutine that advances it.
type Controller struct {
	driver   Driver
	records  Records
	notifier Notifier
	policy   Policy
	cfg      Config

	mu    sync.Mutex
	model Model

	events chan envelope
	done   chan struct{}
	wg     sync.WaitGroup

	startOnce sync.Once
	closeOnce sync.Once

	timerMu sync.Mutex
	timers  map[string]*time.Timer
}

// NewController creates a controller. Call Start before using it.
func NewController(driver Driver, records Records, notifier Notifier, cfg Config) *Controller {
	def := DefaultConfig()
	if cfg.MaxRetry <= 0 {
		cfg.MaxRetry = def.MaxRetry
	}
	if cfg.RecordRetry <= 0 {
		cfg.RecordRetry = def.RecordRetry
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Controller{
		driver:   driver,
		records:  records,
		notifier: notifier,
		cfg:      cfg,
		policy: Policy{
			MaxRetry:       cfg.MaxRetry,
			BusyTimeout:    cfg.BusyTimeout,
			ReconnectAfter: cfg.ReconnectAfter,
		},
		events: make(chan envelope, cfg.QueueSize),
		done:   make(chan struct{}),
		timers: make(map[string]*time.Timer),
	}
}

// Start launches the event goroutine.
func (c *Controller) Start() {
	c.startOnce.Do(func() {
		c.wg.Add(1)
		go c.run()
	})
}

// Close stops the event goroutine and any pending timers. Queued events
// are dropped.
func (c *Controller) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.timerMu.Lock()
		for name, t := range c.timers {
			t.Stop()
			delete(c.timers, name)
		}
		c.timerMu.Unlock()
		c.wg.Wait()
	})
	return nil
}

// Init reads the durable record and starts the radio in the matching mode.
// Calling it again is a no-op.
func (c *Controller) Init(ctx context.Context) error {
	rec, err := c.records.Read()
	if err != nil {
		if !errors.Is(err, record.ErrCorrupt) {
			return &Error{Kind: KindPersistence, Op: "init", Err: err}
		}
		logging.Warn("Ignoring corrupt provisioning record", zap.Error(err))
		rec = record.Record{}
	}
	return c.submit(ctx, Init{Record: rec})
}

// ScanStart requests a scan. It fails with ErrBusy unless the controller is
// idle.
func (c *Controller) ScanStart(ctx context.Context) error {
	return c.submit(ctx, ScanRequest{})
}

// ScanResults returns a copy of the last scan, at most MaxScanResults long.
func (c *Controller) ScanResults() []Network {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Network(nil), c.model.Networks...)
}

// Provision hands new credentials to the state machine. It returns once the
// resulting driver calls have been issued; the outcome is observable
// through Provisioned and the notifier.
func (c *Controller) Provision(ctx context.Context, cr Credentials) error {
	if err := cr.Validate(); err != nil {
		return err
	}
	return c.submit(ctx, Provision{Credentials: cr})
}

// Provisioned reports the durable provisioning status.
func (c *Controller) Provisioned() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec := c.model.Record
	st := Status{
		Provisioned: rec.Provisioned(),
		SSID:        rec.SSID,
		IP:          rec.IP,
	}
	if st.Provisioned && c.model.IP != "" && c.model.Target == rec.SSID {
		st.IP = c.model.IP
	}
	return st
}

// Busy reports whether a scan, connect or reprovision is in flight.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model.State.Busy()
}

// Snapshot returns a copy of the whole model.
func (c *Controller) Snapshot() Model {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model.clone()
}

// Notify is called by the driver to deliver radio and address events. It
// blocks until the event is queued.
func (c *Controller) Notify(ev Event) error {
	if ev.Class() == ClassUser {
		return &Error{Kind: KindInvalid, Op: "notify " + ev.Name()}
	}
	return c.enqueue(context.Background(), envelope{ev: ev})
}

func (c *Controller) submit(ctx context.Context, ev Event) error {
	reply := make(chan error, 1)
	if err := c.enqueue(ctx, envelope{ev: ev, reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	}
}

func (c *Controller) enqueue(ctx context.Context, env envelope) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.events <- env:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	}
}

// schedule posts ev after d, replacing any timer pending for the same event
// type.
func (c *Controller) schedule(ev Event, d time.Duration) {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()

	select {
	case <-c.done:
		return
	default:
	}

	name := ev.Name()
	if t, ok := c.timers[name]; ok {
		t.Stop()
	}
	c.timers[name] = time.AfterFunc(d, func() {
		if err := c.enqueue(context.Background(), envelope{ev: ev}); err != nil {
			logging.Debug("Dropped timer event", zap.String("event", name), zap.Error(err))
		}
	})
}
