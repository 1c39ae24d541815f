package notify

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/xenking/furniture-store/internal/domain/order"
)

// ErrClosed is returned when sending through a closed Dispatcher.
var ErrClosed = errors.New("dispatcher closed")

// Config tunes the Dispatcher.
type Config struct {
	// Store is the shop name used in subjects and footers.
	Store string
	// OperatorEmail receives a packing notification for every order. Empty
	// disables the notification.
	OperatorEmail string
	// PlaceholderEmail is a customer address that never receives mail.
	PlaceholderEmail string

	QueueSize   int
	Workers     int
	MaxAttempts int
	// Backoff is multiplied by the attempt number between retries.
	Backoff time.Duration

	MeterProvider metric.MeterProvider
}

func (c *Config) setDefaults() {
	if c.Store == "" {
		c.Store = "Nilambur Interiors & Furniture"
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.Backoff <= 0 {
		c.Backoff = time.Second
	}
	if c.MeterProvider == nil {
		c.MeterProvider = metricnoop.NewMeterProvider()
	}
}

type job struct {
	kind string
	msg  Message
}

// Dispatcher queues order emails and delivers them with a pool of workers.
// Enqueueing never blocks: a full queue drops the message with an error log.
type Dispatcher struct {
	mailer Mailer
	cfg    Config
	lg     *zap.Logger

	mu     sync.RWMutex
	closed bool
	jobs   chan job
	wg     sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
	sleep  func(ctx context.Context, d time.Duration) error

	sent    metric.Int64Counter
	failed  metric.Int64Counter
	dropped metric.Int64Counter
}

var _ order.Notifier = (*Dispatcher)(nil)

// NewDispatcher creates a Dispatcher and starts its workers.
func NewDispatcher(mailer Mailer, cfg Config, lg *zap.Logger) (*Dispatcher, error) {
	cfg.setDefaults()
	if lg == nil {
		lg = zap.NewNop()
	}

	meter := cfg.MeterProvider.Meter("store/notify")
	sent, err := meter.Int64Counter("notify.sent")
	if err != nil {
		return nil, errors.Wrap(err, "create notify.sent counter")
	}
	failed, err := meter.Int64Counter("notify.failed")
	if err != nil {
		return nil, errors.Wrap(err, "create notify.failed counter")
	}
	dropped, err := meter.Int64Counter("notify.dropped")
	if err != nil {
		return nil, errors.Wrap(err, "create notify.dropped counter")
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		mailer:  mailer,
		cfg:     cfg,
		lg:      lg,
		jobs:    make(chan job, cfg.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
		sleep:   sleepCtx,
		sent:    sent,
		failed:  failed,
		dropped: dropped,
	}
	for range cfg.Workers {
		d.wg.Add(1)
		go d.worker()
	}
	return d, nil
}

// OrderPlaced queues the customer confirmation and the operator
// notification.
func (d *Dispatcher) OrderPlaced(_ context.Context, o order.Order) {
	if d.customerReachable(o) {
		msg, err := ConfirmationMessage(d.cfg.Store, o)
		d.enqueue("confirmation", msg, err, o.OrderID)
	}

	if d.cfg.OperatorEmail == "" {
		d.lg.Warn("Operator email not set, skipping order notification",
			zap.String("order_id", o.OrderID),
		)
		return
	}
	msg, err := OperatorMessage(d.cfg.OperatorEmail, o)
	d.enqueue("operator", msg, err, o.OrderID)
}

// StatusChanged queues the customer status update email.
func (d *Dispatcher) StatusChanged(_ context.Context, o order.Order) {
	if !d.customerReachable(o) {
		return
	}
	msg, err := StatusUpdateMessage(d.cfg.Store, o)
	d.enqueue("status_update", msg, err, o.OrderID)
}

// Send delivers msg synchronously, bypassing the queue. It is used where the
// caller must know whether delivery succeeded.
func (d *Dispatcher) Send(ctx context.Context, msg Message) error {
	d.mu.RLock()
	closed := d.closed
	d.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	if err := d.mailer.Send(ctx, msg); err != nil {
		d.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", "direct")))
		return errors.Wrap(err, "send mail")
	}
	d.sent.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", "direct")))
	return nil
}

// Close stops accepting messages and waits for queued ones to be delivered.
// If ctx ends first, in-flight retries are abandoned.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

// Backlog returns the number of queued messages not yet picked up by a
// worker.
func (d *Dispatcher) Backlog() int {
	return len(d.jobs)
}

func (d *Dispatcher) customerReachable(o order.Order) bool {
	email := strings.TrimSpace(o.Customer.Email)
	return email != "" && !strings.EqualFold(email, d.cfg.PlaceholderEmail)
}

func (d *Dispatcher) enqueue(kind string, msg Message, renderErr error, orderID string) {
	if renderErr != nil {
		d.lg.Error("Render email",
			zap.String("kind", kind),
			zap.String("order_id", orderID),
			zap.Error(renderErr),
		)
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.lg.Warn("Dispatcher closed, dropping email",
			zap.String("kind", kind),
			zap.String("order_id", orderID),
		)
		return
	}

	select {
	case d.jobs <- job{kind: kind, msg: msg}:
	default:
		d.dropped.Add(d.ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
		d.lg.Error("Notification queue full, dropping email",
			zap.String("kind", kind),
			zap.String("order_id", orderID),
			zap.String("to", msg.To),
		)
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.jobs {
		d.deliver(j)
	}
}

func (d *Dispatcher) deliver(j job) {
	attrs := metric.WithAttributes(attribute.String("kind", j.kind))
	var err error
	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		if err = d.mailer.Send(d.ctx, j.msg); err == nil {
			d.sent.Add(d.ctx, 1, attrs)
			d.lg.Info("Email sent",
				zap.String("kind", j.kind),
				zap.String("to", j.msg.To),
			)
			return
		}
		if attempt == d.cfg.MaxAttempts {
			break
		}
		d.lg.Warn("Send email failed, retrying",
			zap.String("kind", j.kind),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if d.sleep(d.ctx, d.cfg.Backoff*time.Duration(attempt)) != nil {
			break
		}
	}
	d.failed.Add(context.Background(), 1, attrs)
	d.lg.Error("Send email failed",
		zap.String("kind", j.kind),
		zap.String("to", j.msg.To),
		zap.Error(err),
	)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
