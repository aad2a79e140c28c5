package alert

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/portfolio-risk/internal/adapter"
	apperrors "github.com/portfolio-risk/internal/errors"
	"github.com/portfolio-risk/internal/logging"
	"github.com/portfolio-risk/internal/metrics"
)

const (
	DefaultPollInterval = 30 * time.Second
	DefaultFetchTimeout = 10 * time.Second
	archiveTimeout      = 5 * time.Second
)

// MonitorConfig holds the monitor's collaborators and timings
type MonitorConfig struct {
	Registry     *Registry
	Prices       adapter.SpotPriceSource
	Email        EmailSender
	Archive      Archive
	Metrics      *metrics.Registry
	Logger       *logging.Logger
	PollInterval time.Duration
	FetchTimeout time.Duration
}

// TickResult summarizes one pass over the active alerts
type TickResult struct {
	Checked   int
	Triggered int
	Failed    int
	Removed   int
}

// Monitor polls prices for active alerts on one shared schedule
type Monitor struct {
	registry     *Registry
	prices       adapter.SpotPriceSource
	email        EmailSender
	archive      Archive
	metrics      *metrics.Registry
	logger       *logging.Logger
	pollInterval time.Duration
	fetchTimeout time.Duration

	tickMu sync.Mutex
	emails sync.WaitGroup

	mu         sync.RWMutex
	scheduler  *cron.Cron
	running    bool
	cancel     context.CancelFunc
	lastTickAt time.Time
	tickCount  int64
}

// NewMonitor creates a stopped monitor
func NewMonitor(cfg MonitorConfig) (*Monitor, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("alert registry cannot be nil")
	}
	if cfg.Prices == nil {
		return nil, fmt.Errorf("price source cannot be nil")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.GetGlobalLogger()
	}
	if cfg.Email == nil {
		cfg.Email = NewLogNotifier(cfg.Logger)
	}

	return &Monitor{
		registry:     cfg.Registry,
		prices:       cfg.Prices,
		email:        cfg.Email,
		archive:      cfg.Archive,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger.WithField("component", "alert_monitor"),
		pollInterval: cfg.PollInterval,
		fetchTimeout: cfg.FetchTimeout,
	}, nil
}

// Start schedules the recurring check
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("alert monitor is already running")
	}

	// Each schedule owns its context, so a late tick of a stopped schedule
	// never runs under the context of a later Start
	var tickCtx context.Context
	tickCtx, m.cancel = context.WithCancel(logging.WithLogger(context.WithoutCancel(ctx), m.logger))
	cl := cronLogger{logger: m.logger}
	m.scheduler = cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	m.scheduler.Schedule(cron.Every(m.pollInterval), cron.FuncJob(func() {
		m.CheckAlerts(tickCtx)
	}))
	m.scheduler.Start()
	m.running = true

	m.logger.WithField("interval", m.pollInterval.String()).Info("Alert monitor started")
	return nil
}

// Stop cancels the schedule, lets the current tick finish and waits for
// in-flight email dispatches
func (m *Monitor) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return fmt.Errorf("alert monitor is not running")
	}
	m.running = false
	scheduler, cancel := m.scheduler, m.cancel
	m.mu.Unlock()

	defer cancel()

	select {
	case <-scheduler.Stop().Done():
	case <-ctx.Done():
		m.logger.Warn("Alert monitor stop timed out waiting for tick")
		return ctx.Err()
	}

	emailsDone := make(chan struct{})
	go func() {
		m.emails.Wait()
		close(emailsDone)
	}()

	select {
	case <-emailsDone:
	case <-ctx.Done():
		m.logger.Warn("Alert monitor stop timed out waiting for email dispatch")
		return ctx.Err()
	}

	m.logger.Info("Alert monitor stopped")
	return nil
}

// Running reports whether the schedule is active
func (m *Monitor) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// TickStats returns the time of the last completed tick and the tick count
func (m *Monitor) TickStats() (time.Time, int64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastTickAt, m.tickCount
}

// CheckAlerts runs one tick: every non-triggered alert gets one price fetch,
// sequentially. A failed fetch is logged and skipped.
func (m *Monitor) CheckAlerts(ctx context.Context) TickResult {
	m.tickMu.Lock()
	defer m.tickMu.Unlock()

	start := time.Now()
	var result TickResult

	for _, a := range m.registry.Active() {
		if ctx.Err() != nil {
			break
		}

		fetchCtx, cancel := context.WithTimeout(ctx, m.fetchTimeout)
		quote, err := m.prices.GetSpotPrice(fetchCtx, a.Symbol)
		cancel()

		log := m.logger.WithFields(map[string]interface{}{
			"alert_id": a.ID,
			"symbol":   a.Symbol,
		})

		if err != nil {
			result.Failed++
			m.metrics.RecordAlertCheck("error")
			log.WithError(err).Warn("Price fetch failed, skipping alert this tick")
			continue
		}

		trigger, exists := m.registry.Evaluate(a.ID, quote.PriceUSD)
		if !exists {
			result.Removed++
			m.metrics.RecordAlertCheck("removed")
			log.Debug("Alert removed during tick")
			continue
		}

		result.Checked++
		m.metrics.RecordAlertCheck("ok")
		if trigger != nil {
			result.Triggered++
			m.handleTrigger(ctx, trigger)
		}
	}

	_, active, _ := m.registry.Counts()
	m.metrics.ObserveAlertTick(time.Since(start), active)

	m.mu.Lock()
	m.lastTickAt = time.Now().UTC()
	m.tickCount++
	m.mu.Unlock()

	if result.Triggered > 0 || result.Failed > 0 {
		m.logger.WithFields(map[string]interface{}{
			"checked":   result.Checked,
			"triggered": result.Triggered,
			"failed":    result.Failed,
		}).Info("Alert tick completed")
	}
	return result
}

func (m *Monitor) handleTrigger(ctx context.Context, t *Trigger) {
	m.metrics.RecordAlertTrigger(string(t.Record.ThresholdType))
	m.logger.WithFields(map[string]interface{}{
		"alert_id":        t.Alert.ID,
		"symbol":          t.Alert.Symbol,
		"price":           t.Record.Price,
		"threshold_type":  string(t.Record.ThresholdType),
		"threshold_value": t.Record.ThresholdValue,
	}).Info("Price alert triggered")

	m.archiveTrigger(ctx, t)

	if t.Alert.NotifyEmail == "" {
		return
	}

	// detached so Stop, not the tick, bounds the dispatch
	emailCtx := context.WithoutCancel(ctx)
	m.emails.Add(1)
	go func() {
		defer m.emails.Done()
		m.dispatchEmail(emailCtx, t)
	}()
}

func (m *Monitor) dispatchEmail(ctx context.Context, t *Trigger) {
	sent := m.sendEmail(ctx, t)
	if sent {
		m.metrics.RecordEmailDispatch("sent")
	} else {
		m.metrics.RecordEmailDispatch("failed")
		m.logger.WithError(apperrors.NewEmailDeliveryError(t.Alert.NotifyEmail, t.Alert.ID)).Warn("Alert email not delivered")
	}

	m.registry.SetEmailOutcome(t.Record.ID, sent)
	if m.archive != nil {
		actx, cancel := context.WithTimeout(ctx, archiveTimeout)
		defer cancel()
		if err := m.archive.UpdateEmailOutcome(actx, t.Record.ID, sent); err != nil {
			m.logger.WithError(err).Warn("Failed to archive email outcome")
		}
	}
}

// sendEmail shields the monitor from a panicking sender
func (m *Monitor) sendEmail(ctx context.Context, t *Trigger) (sent bool) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.WithField("panic", fmt.Sprint(r)).Error("Email sender panicked")
			sent = false
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, m.fetchTimeout)
	defer cancel()

	return m.email.SendAlertEmail(ctx, t.Alert.NotifyEmail, t.Alert.Symbol, t.Record.Price,
		t.Record.ThresholdType, t.Record.ThresholdValue, t.Alert.ID)
}

func (m *Monitor) archiveTrigger(ctx context.Context, t *Trigger) {
	if m.archive == nil {
		return
	}

	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
	defer cancel()

	rec := t.Record
	if err := m.archive.SaveTriggeredRecord(actx, &rec); err != nil {
		m.logger.WithError(err).Warn("Failed to archive triggered alert")
	}
	n := t.Notification
	if err := m.archive.SaveNotification(actx, &n); err != nil {
		m.logger.WithError(err).Warn("Failed to archive notification")
	}
}

// cronLogger routes scheduler logs through the service logger
type cronLogger struct {
	logger *logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(kvFields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(kvFields(keysAndValues)).WithError(err).Error(msg)
}

func kvFields(kv []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
