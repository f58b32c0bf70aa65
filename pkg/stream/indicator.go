package stream

import (
	"sync"
	"time"
)

// Indicator drives the debounced "thinking" affordance and the elapsed-time readout
// of an open thinking span. It is safe to call from the turn goroutine while its
// timers fire on their own goroutines.
type Indicator struct {
	host     IndicatorHost
	debounce time.Duration
	interval time.Duration
	now      func() time.Time

	mu            sync.Mutex
	generation    uint64
	debounceTimer *time.Timer
	ticker        *time.Ticker
	tickerStop    chan struct{}
	visible       bool
	thinking      bool
	responseStart time.Time
	elapsedStart  time.Time
}

type IndicatorOption func(*Indicator)

func WithIndicatorClock(now func() time.Time) IndicatorOption {
	return func(i *Indicator) {
		i.now = now
	}
}

// NewIndicator creates an indicator for host. A nil host yields an indicator that
// never shows anything.
func NewIndicator(host IndicatorHost, debounce, interval time.Duration, options ...IndicatorOption) *Indicator {
	ret := &Indicator{
		host:     host,
		debounce: debounce,
		interval: interval,
		now:      time.Now,
	}
	for _, o := range options {
		o(ret)
	}
	return ret
}

// SetResponseStart records when the turn started; the zero time means no turn.
func (i *Indicator) SetResponseStart(t time.Time) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.responseStart = t
	if t.IsZero() {
		i.elapsedStart = time.Time{}
	}
}

// SetThinking marks whether a thinking span is open. While it is, the affordance is
// never shown.
func (i *Indicator) SetThinking(active bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.thinking = active
}

// Schedule shows the affordance once the debounce delay passes without Hide being
// called. Scheduling again restarts the delay.
func (i *Indicator) Schedule() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.host == nil || i.thinking || i.responseStart.IsZero() {
		return
	}
	i.stopDebounceLocked()
	gen := i.generation
	i.debounceTimer = time.AfterFunc(i.debounce, func() {
		i.fire(gen)
	})
}

func (i *Indicator) fire(gen uint64) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if gen != i.generation || i.debounceTimer == nil {
		return
	}
	i.debounceTimer = nil
	i.showLocked()
}

// Show displays the affordance immediately, or moves it to the bottom when it is
// already visible.
func (i *Indicator) Show() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.showLocked()
}

func (i *Indicator) showLocked() {
	if i.host == nil || i.thinking || i.responseStart.IsZero() || !i.host.Attached() {
		return
	}
	if i.visible {
		i.host.MoveIndicatorToBottom()
		return
	}
	i.host.ShowIndicator()
	i.visible = true
}

// Hide removes the affordance and the elapsed readout and clears both the debounce
// and the elapsed timers.
func (i *Indicator) Hide() {
	i.mu.Lock()
	defer i.mu.Unlock()
	ticking := i.ticker != nil
	i.stopDebounceLocked()
	i.stopTickerLocked()
	if i.visible || ticking {
		i.visible = false
		if i.host != nil {
			i.host.HideIndicator()
		}
	}
}

// StartElapsed starts the elapsed readout measured from start. Each tick stops the
// readout when the host detached or the start time was cleared.
func (i *Indicator) StartElapsed(start time.Time) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.stopTickerLocked()
	i.elapsedStart = start
	if i.host == nil || i.interval <= 0 || start.IsZero() {
		return
	}
	t := time.NewTicker(i.interval)
	stop := make(chan struct{})
	i.ticker, i.tickerStop = t, stop
	go i.tick(t, stop)
}

func (i *Indicator) StopElapsed() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.stopTickerLocked()
	i.elapsedStart = time.Time{}
}

func (i *Indicator) tick(t *time.Ticker, stop chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			if !i.onTick(t) {
				return
			}
		}
	}
}

func (i *Indicator) onTick(t *time.Ticker) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.ticker != t {
		return false
	}
	if !i.host.Attached() || i.elapsedStart.IsZero() || i.responseStart.IsZero() {
		i.stopTickerLocked()
		return false
	}
	i.host.UpdateElapsed(i.now().Sub(i.elapsedStart))
	return true
}

func (i *Indicator) stopDebounceLocked() {
	i.generation++
	if i.debounceTimer != nil {
		i.debounceTimer.Stop()
		i.debounceTimer = nil
	}
}

func (i *Indicator) stopTickerLocked() {
	if i.ticker != nil {
		i.ticker.Stop()
		close(i.tickerStop)
		i.ticker = nil
		i.tickerStop = nil
	}
}

// Visible reports whether the affordance is currently shown.
func (i *Indicator) Visible() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.visible
}

// Scheduled reports whether a debounced show is armed.
func (i *Indicator) Scheduled() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.debounceTimer != nil
}

// Ticking reports whether the elapsed readout is running.
func (i *Indicator) Ticking() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.ticker != nil
}
