package lifecycle

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Component is one registered shutdown participant. Stop is the graceful
// path; Kill, when present, is the escape hatch after Stop fails or exceeds
// its timeout.
type Component struct {
	Name    string
	Stop    func() error
	Timeout time.Duration
	Kill    func()
}

// Outcome records how one component's shutdown went.
type Outcome struct {
	Name     string        `json:"name"`
	Graceful bool          `json:"graceful"`
	Forced   bool          `json:"forced"`
	Err      string        `json:"error,omitempty"`
	Elapsed  time.Duration `json:"elapsed"`
}

// Coordinator runs an ordered, timeout-bounded teardown. Components stop in
// reverse registration order (outermost surfaces first, lowest-level inputs
// last), each on its own goroutine joined with its timeout, and one
// component's failure never prevents the rest from stopping.
type Coordinator struct {
	defaultTimeout time.Duration
	logger         *slog.Logger

	components []Component
	outcomes   []Outcome
	clean      bool

	once sync.Once
	mu   sync.Mutex
}

// NewCoordinator creates a coordinator with a default per-component timeout.
func NewCoordinator(defaultTimeout time.Duration, logger *slog.Logger) *Coordinator {
	if defaultTimeout <= 0 {
		defaultTimeout = 5 * time.Second
	}

	return &Coordinator{
		defaultTimeout: defaultTimeout,
		logger:         logger,
	}
}

// Register appends a component to the shutdown list. Call order matters:
// stopping happens last-registered first.
func (c *Coordinator) Register(name string, stop func() error, timeout time.Duration, kill func()) {
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.components = append(c.components, Component{
		Name:    name,
		Stop:    stop,
		Timeout: timeout,
		Kill:    kill,
	})
}

// Shutdown tears everything down in reverse registration order. Safe to call
// from any goroutine, including a signal handler; only the first call runs,
// subsequent calls return the first outcome. Returns true only if every
// component stopped gracefully.
func (c *Coordinator) Shutdown() bool {
	c.once.Do(c.run)

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clean
}

// Outcomes returns per-component results of the shutdown, or nil if shutdown
// has not run.
func (c *Coordinator) Outcomes() []Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	outcomes := make([]Outcome, len(c.outcomes))
	copy(outcomes, c.outcomes)
	return outcomes
}

func (c *Coordinator) run() {
	c.mu.Lock()
	components := make([]Component, len(c.components))
	copy(components, c.components)
	c.mu.Unlock()

	c.logger.Info("Shutdown started", slog.Int("components", len(components)))

	startTime := time.Now()
	clean := true
	outcomes := make([]Outcome, 0, len(components))

	for i := len(components) - 1; i >= 0; i-- {
		outcome := c.stopComponent(components[i])
		if !outcome.Graceful {
			clean = false
		}
		outcomes = append(outcomes, outcome)
	}

	c.mu.Lock()
	c.outcomes = outcomes
	c.clean = clean
	c.mu.Unlock()

	c.logger.Info("Shutdown complete",
		slog.Bool("clean", clean),
		slog.Duration("elapsed", time.Since(startTime)),
	)
}

// stopComponent runs one component's stop function on its own goroutine and
// joins it with the component timeout. A panic inside stop is recovered and
// treated as failure; on timeout or failure the kill function runs if
// present.
func (c *Coordinator) stopComponent(component Component) Outcome {
	c.logger.Info("Stopping component",
		slog.String("component", component.Name),
		slog.Duration("timeout", component.Timeout),
	)

	startTime := time.Now()
	done := make(chan error, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("stop panicked: %v", r)
			}
		}()
		done <- component.Stop()
	}()

	var stopErr error
	timedOut := false

	select {
	case err := <-done:
		stopErr = err
	case <-time.After(component.Timeout):
		timedOut = true
		stopErr = fmt.Errorf("stop timed out after %v", component.Timeout)
	}

	elapsed := time.Since(startTime)

	if stopErr == nil {
		c.logger.Info("Component stopped",
			slog.String("component", component.Name),
			slog.Duration("elapsed", elapsed),
		)
		return Outcome{Name: component.Name, Graceful: true, Elapsed: elapsed}
	}

	c.logger.Error("Component did not stop gracefully",
		slog.String("component", component.Name),
		slog.Bool("timed_out", timedOut),
		slog.String("error", stopErr.Error()),
	)

	forced := false
	if component.Kill != nil {
		forced = true
		c.forceKill(component)
	}

	return Outcome{
		Name:    component.Name,
		Forced:  forced,
		Err:     stopErr.Error(),
		Elapsed: elapsed,
	}
}

func (c *Coordinator) forceKill(component Component) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Kill panicked",
				slog.String("component", component.Name),
				slog.Any("panic", r),
			)
		}
	}()

	c.logger.Warn("Forcing component shutdown", slog.String("component", component.Name))
	component.Kill()
}
