package alert

import (
	"battery-status-bot/internal/metrics"
	"battery-status-bot/internal/types"
	"context"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultInterval     = 10 * time.Minute
	DefaultFetchTimeout = 10 * time.Second
	DefaultHysteresis   = 5.0
)

// Fetcher returns the current SoC of a device. It must not block past ctx.
type Fetcher interface {
	FetchSoC(ctx context.Context, ref string) types.Reading
}

// Channel delivers a rendered alert to the fixed alert destination.
type Channel interface {
	Send(ctx context.Context, text string) error
}

// Recorder stores readings and emitted alerts for history views.
type Recorder interface {
	RecordReading(ctx context.Context, ref string, soc float64, at time.Time) error
	RecordAlert(ctx context.Context, event types.AlertEvent) error
}

// Clock provides time for the run loop.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type stateKey struct {
	ref       string
	threshold float64
}

// DeviceState is a point-in-time view of one device for status listings.
type DeviceState struct {
	Device      types.MonitoredDevice
	Fired       map[float64]bool
	LastReading types.Reading
	LastSeen    time.Time
}

// Alerter checks SoC on a fixed interval and fires one alert per threshold crossing.
// Fired flags live in memory only and start cleared on every process start.
type Alerter struct {
	devices      []types.MonitoredDevice
	fetcher      Fetcher
	channel      Channel
	template     *Template
	recorder     Recorder
	clock        Clock
	interval     time.Duration
	fetchTimeout time.Duration

	mu       sync.Mutex
	fired    map[stateKey]bool
	last     map[string]types.Reading
	lastSeen map[string]time.Time
}

// Option configures the alerter.
type Option func(*Alerter)

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(a *Alerter) {
		if clock != nil {
			a.clock = clock
		}
	}
}

// WithInterval sets the tick period.
func WithInterval(interval time.Duration) Option {
	return func(a *Alerter) {
		if interval > 0 {
			a.interval = interval
		}
	}
}

// WithFetchTimeout bounds every single device fetch.
func WithFetchTimeout(timeout time.Duration) Option {
	return func(a *Alerter) {
		if timeout > 0 {
			a.fetchTimeout = timeout
		}
	}
}

// WithTemplate replaces the default message template.
func WithTemplate(tpl *Template) Option {
	return func(a *Alerter) {
		if tpl != nil {
			a.template = tpl
		}
	}
}

// WithRecorder stores readings and alerts as they are observed.
func WithRecorder(recorder Recorder) Option {
	return func(a *Alerter) {
		a.recorder = recorder
	}
}

// NewAlerter constructs an alerter for the given devices.
func NewAlerter(devices []types.MonitoredDevice, fetcher Fetcher, channel Channel, opts ...Option) (*Alerter, error) {
	if len(devices) == 0 {
		return nil, errors.New("alerter: no monitored devices")
	}
	if fetcher == nil {
		return nil, errors.New("alerter: nil fetcher")
	}
	if channel == nil {
		return nil, errors.New("alerter: nil channel")
	}

	tpl, err := NewTemplate("")
	if err != nil {
		return nil, err
	}

	a := &Alerter{
		devices:      normalize(devices),
		fetcher:      fetcher,
		channel:      channel,
		template:     tpl,
		clock:        systemClock{},
		interval:     DefaultInterval,
		fetchTimeout: DefaultFetchTimeout,
		fired:        make(map[stateKey]bool),
		last:         make(map[string]types.Reading),
		lastSeen:     make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Devices returns the monitored devices with thresholds sorted descending.
func (a *Alerter) Devices() []types.MonitoredDevice {
	return a.devices
}

// Tick evaluates every device once and returns the alerts it emitted.
func (a *Alerter) Tick(ctx context.Context, now time.Time) []types.AlertEvent {
	var events []types.AlertEvent

	for _, device := range a.devices {
		reading := a.fetch(ctx, device.Ref)
		if !reading.Valid {
			log.Warnf("⚠️ SoC unavailable for %s (%s), skipping this tick", device.DisplayName(), device.Ref)
			metrics.FetchFailed(device.Ref)
			continue
		}

		log.Debugf("🔍 %s SoC %.1f%% | thresholds %v | hysteresis %.1f",
			device.DisplayName(), reading.Value, device.Thresholds, device.Hysteresis)
		metrics.ObserveSoC(device.Ref, reading.Value)
		a.record(ctx, device.Ref, reading.Value, now)

		fired := a.evaluate(device, reading, now)
		for _, event := range fired {
			a.deliver(ctx, event)
		}
		events = append(events, fired...)
	}

	return events
}

// evaluate applies the per-threshold state machine and updates the snapshot.
// Thresholds are independent: a reading below the lowest one still rearms the higher ones.
func (a *Alerter) evaluate(device types.MonitoredDevice, reading types.Reading, now time.Time) []types.AlertEvent {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.last[device.Ref] = reading
	a.lastSeen[device.Ref] = now

	soc := reading.Value
	var events []types.AlertEvent
	for _, threshold := range device.Thresholds {
		key := stateKey{ref: device.Ref, threshold: threshold}
		switch {
		case soc <= threshold && !a.fired[key]:
			a.fired[key] = true
			events = append(events, types.AlertEvent{
				DeviceRef:  device.Ref,
				DeviceName: device.DisplayName(),
				Threshold:  threshold,
				SoC:        soc,
				Severity:   types.SeverityFor(soc, device.Thresholds),
				At:         now,
			})
		case soc > threshold+device.Hysteresis && a.fired[key]:
			a.fired[key] = false
			log.Infof("🔁 %s rearmed at %.0f%% (SoC %.1f%%)", device.DisplayName(), threshold, soc)
		}
	}
	return events
}

func (a *Alerter) fetch(ctx context.Context, ref string) types.Reading {
	fetchCtx, cancel := context.WithTimeout(ctx, a.fetchTimeout)
	defer cancel()
	return a.fetcher.FetchSoC(fetchCtx, ref)
}

func (a *Alerter) deliver(ctx context.Context, event types.AlertEvent) {
	metrics.AlertFired(event.DeviceRef, event.Threshold)

	if a.recorder != nil {
		if err := a.recorder.RecordAlert(ctx, event); err != nil {
			log.Errorf("❌ Failed to store alert for %s: %v", event.DeviceRef, err)
		}
	}

	text, err := a.template.Render(event)
	if err != nil {
		log.Errorf("❌ Failed to render alert for %s: %v", event.DeviceRef, err)
		metrics.NotifyFailed()
		return
	}

	if err := a.channel.Send(ctx, text); err != nil {
		log.Errorf("❌ Failed to send alert for %s at %.0f%%: %v", event.DeviceName, event.Threshold, err)
		metrics.NotifyFailed()
		return
	}
	log.Infof("✅ Alert sent for %s: SoC %.1f%% <= %.0f%%", event.DeviceName, event.SoC, event.Threshold)
}

func (a *Alerter) record(ctx context.Context, ref string, soc float64, at time.Time) {
	if a.recorder == nil {
		return
	}
	if err := a.recorder.RecordReading(ctx, ref, soc, at); err != nil {
		log.Errorf("❌ Failed to store reading for %s: %v", ref, err)
	}
}

// Fired reports whether the threshold of a device is currently fired.
func (a *Alerter) Fired(ref string, threshold float64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fired[stateKey{ref: ref, threshold: threshold}]
}

// Snapshot returns a copy of the current alert state for every device.
func (a *Alerter) Snapshot() []DeviceState {
	a.mu.Lock()
	defer a.mu.Unlock()

	states := make([]DeviceState, 0, len(a.devices))
	for _, device := range a.devices {
		fired := make(map[float64]bool, len(device.Thresholds))
		for _, threshold := range device.Thresholds {
			fired[threshold] = a.fired[stateKey{ref: device.Ref, threshold: threshold}]
		}
		states = append(states, DeviceState{
			Device:      device,
			Fired:       fired,
			LastReading: a.last[device.Ref],
			LastSeen:    a.lastSeen[device.Ref],
		})
	}
	return states
}

// Run ticks immediately and then every interval until ctx is cancelled.
// A tick always completes before the next one is scheduled.
func (a *Alerter) Run(ctx context.Context) {
	log.Infof("🚀 Alert service started: %d device(s), every %s", len(a.devices), a.interval)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		a.safeTick(ctx)

		select {
		case <-ctx.Done():
			log.Info("Alert service stopping...")
			return
		case <-ticker.C:
		}
	}
}

func (a *Alerter) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("🔥 Panic recovered in alert checker: %v\nStack trace: %s", r, debug.Stack())
		}
	}()

	log.Debug("🔄 Checking battery levels...")
	events := a.Tick(ctx, a.clock.Now())
	log.Debugf("✅ Battery check completed, %d alert(s)", len(events))
}

func normalize(devices []types.MonitoredDevice) []types.MonitoredDevice {
	out := make([]types.MonitoredDevice, 0, len(devices))
	for _, d := range devices {
		thresholds := append([]float64(nil), d.Thresholds...)
		sort.Sort(sort.Reverse(sort.Float64Slice(thresholds)))
		d.Thresholds = thresholds
		if d.Hysteresis < 0 {
			d.Hysteresis = DefaultHysteresis
		}
		out = append(out, d)
	}
	return out
}
