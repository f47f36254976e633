// Package loop implements the start/stop state machine behind the periodic
// word change.
//
// A Controller is either idle or running. Start picks an initial word, fires
// an immediate tick with it and schedules a recurring ticker; Stop cancels the
// ticker and waits for the tick goroutine to exit, so no tick is delivered
// after Stop returns. Ticks are delivered one at a time from a single
// goroutine: a slow callback delays the next tick instead of overlapping it.
package loop

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultInterval is the time between two word changes.
const DefaultInterval = 5 * time.Second

var (
	// ErrAlreadyRunning is returned by Start when the loop is running.
	ErrAlreadyRunning = errors.New("loop is already running")
	// ErrNotRunning is returned by Stop when the loop is idle.
	ErrNotRunning = errors.New("loop is not running")
)

// Picker supplies the next word.
type Picker interface {
	Pick() string
}

// TickFunc receives every word the loop produces, including the initial one.
// It must not call Stop on the same Controller.
type TickFunc func(word string)

// State is a snapshot of the loop. CurrentWord is empty iff Running is false.
type State struct {
	Running     bool
	CurrentWord string
}

// Word returns the current word, or nil when the loop is idle.
func (s State) Word() *string {
	if !s.Running {
		return nil
	}
	w := s.CurrentWord
	return &w
}

// Controller owns the loop state and its ticker.
type Controller struct {
	picker   Picker
	clock    clockwork.Clock
	interval time.Duration

	mu          sync.Mutex
	running     bool
	currentWord string
	stopCh      chan struct{}
	doneCh      chan struct{}
}

// NewController creates an idle controller. A non-positive interval falls back
// to DefaultInterval.
func NewController(picker Picker, interval time.Duration, clock clockwork.Clock) *Controller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Controller{
		picker:   picker,
		clock:    clock,
		interval: interval,
	}
}

// Interval returns the configured tick interval.
func (c *Controller) Interval() time.Duration {
	return c.interval
}

// Start moves the loop to running and returns the initial word.
func (c *Controller) Start(onTick TickFunc) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return "", ErrAlreadyRunning
	}

	word := c.picker.Pick()
	c.running = true
	c.currentWord = word
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})

	ticker := c.clock.NewTicker(c.interval)
	go c.run(ticker, word, c.stopCh, c.doneCh, onTick)

	slog.Info("Word loop started", "initial_word", word, "interval", c.interval)
	return word, nil
}

// Stop moves the loop to idle. It returns once the tick goroutine has exited;
// a tick that was already being delivered is allowed to finish first.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return ErrNotRunning
	}
	c.running = false
	c.currentWord = ""
	close(c.stopCh)
	done := c.doneCh
	c.stopCh, c.doneCh = nil, nil
	c.mu.Unlock()

	<-done
	slog.Info("Word loop stopped")
	return nil
}

// Shutdown stops the loop if it is running.
func (c *Controller) Shutdown() {
	if err := c.Stop(); err != nil && !errors.Is(err, ErrNotRunning) {
		slog.Error("Failed to stop word loop", "error", err)
	}
}

// State returns a snapshot of the loop.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{Running: c.running, CurrentWord: c.currentWord}
}

// IsRunning reports whether the loop is running.
func (c *Controller) IsRunning() bool {
	return c.State().Running
}

func (c *Controller) run(ticker clockwork.Ticker, initial string, stop <-chan struct{}, done chan<- struct{}, onTick TickFunc) {
	defer close(done)
	defer ticker.Stop()

	select {
	case <-stop:
		return
	default:
	}
	c.notify(onTick, initial)

	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			word, ok := c.advance(stop)
			if !ok {
				return
			}
			slog.Debug("Word changed", "word", word)
			c.notify(onTick, word)
		}
	}
}

// advance picks the next word unless stop has been closed. Stop closes the
// channel while holding mu, so a stopped loop never gets a new word.
func (c *Controller) advance(stop <-chan struct{}) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-stop:
		return "", false
	default:
	}

	c.currentWord = c.picker.Pick()
	return c.currentWord, true
}

func (c *Controller) notify(onTick TickFunc, word string) {
	if onTick == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Word loop tick callback panicked", "panic", r, "word", word)
		}
	}()
	onTick(word)
}
