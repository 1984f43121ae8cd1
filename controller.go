package provision

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Controller runs one operation against one profile and reports its progress
// as a stream of events. A Controller is single-use: Run succeeds once.
type Controller struct {
	settings   Settings
	supervisor Supervisor
	transfer   Transferer
	cfg        ControllerConfig
	template   *Template

	mu        sync.Mutex
	state     State
	started   bool
	cancelled bool
	cancel    context.CancelFunc
	process   Process
	session   Session

	emitMu sync.Mutex
	events chan Event
	closed bool
}

// NewController creates an idle Controller. supervisor runs the remote-shell
// tool for Build and Backup; transfer opens sessions for Upload. Either may
// be nil when the caller never runs the corresponding kinds.
func NewController(settings Settings, supervisor Supervisor, transfer Transferer, opts ...Option) *Controller {
	cfg := DefaultControllerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	tmpl := NewTemplate(settings)
	tmpl.Now = cfg.Now

	return &Controller{
		settings:   settings,
		supervisor: supervisor,
		transfer:   transfer,
		cfg:        cfg,
		template:   tmpl,
		state:      StateIdle,
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Run validates the profile for kind and starts the operation in the
// background. The returned channel delivers every event in order and is
// closed after the single terminal event. The caller must drain it.
//
// Validation failures do not return an error: they are reported as an Error
// event followed by the kind's terminal event, and the controller never
// enters StateRunning. Run returns ErrNotIdle if the controller was used before.
func (c *Controller) Run(ctx context.Context, p Profile, kind Kind) (<-chan Event, error) {
	c.mu.Lock()

	if c.started || c.state != StateIdle {
		c.mu.Unlock()

		return nil, ErrNotIdle
	}

	c.started = true
	c.events = make(chan Event, c.cfg.Buffer)
	events := c.events

	p = p.WithDefaults()
	log := c.cfg.Logger.With(
		zap.String("kind", kind.String()),
		zap.String("alias", p.Alias),
		zap.String("host", p.Host))

	strat, err := strategyFor(kind)
	if err != nil {
		c.state = StateFailed
		c.mu.Unlock()

		log.Warn("run rejected", zap.Error(err))

		go c.reject(err, Failed(err))

		return events, nil
	}

	plan, err := c.template.Render(p, kind)
	if err != nil {
		final := strat.rejection(err)
		c.state = stateFor(final.Kind)
		c.mu.Unlock()

		log.Warn("run rejected", zap.Error(err))

		go c.reject(err, final)

		return events, nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.state = StateRunning
	c.mu.Unlock()

	log.Info("run started", zap.String("auth", p.AuthMode().String()))

	go c.work(runCtx, strat, &run{profile: p, plan: plan, log: log})

	return events, nil
}

// Cancel asks the running operation to stop. It returns immediately; the
// Terminated event follows once the delegate has stopped. Cancel is a no-op
// unless the controller is running, and only the first call has any effect.
func (c *Controller) Cancel() {
	c.mu.Lock()

	if c.state != StateRunning || c.cancelled {
		c.mu.Unlock()

		return
	}

	c.cancelled = true
	cancel := c.cancel
	proc := c.process
	sess := c.session
	c.mu.Unlock()

	c.cfg.Logger.Info("cancel requested")

	cancel()

	if proc == nil && sess == nil {
		return
	}

	go func() {
		if proc != nil {
			if err := proc.Terminate(); err != nil {
				c.emit(ErrorLine("终止进程出错: " + err.Error()))
			}
		}

		if sess != nil {
			if err := sess.Abort(); err != nil {
				c.emit(ErrorLine("终止传输出错: " + err.Error()))
			}
		}
	}()
}

func (c *Controller) work(ctx context.Context, strat strategy, r *run) {
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("operation panicked: %v", rec)
			r.log.Error("run panicked", zap.Error(err))
			c.emit(ErrorLine(err.Error()))
			c.finish(Failed(err), r.log, start)
		}
	}()

	final := strat.execute(ctx, c, r)
	c.finish(final, r.log, start)
}

// finish records the terminal state, releases the run context, and emits the
// terminal event. A cancelled run always ends as Terminated.
func (c *Controller) finish(ev Event, log *zap.Logger, start time.Time) {
	c.mu.Lock()

	if c.cancelled {
		ev = Event{Kind: EventTerminated}
	}

	c.state = stateFor(ev.Kind)
	c.process = nil
	c.session = nil
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	log.Info("run finished",
		zap.String("state", stateFor(ev.Kind).String()),
		zap.Int("exit_code", ev.ExitCode),
		zap.Duration("duration", time.Since(start)))

	c.emit(ev)
}

func (c *Controller) reject(err error, final Event) {
	c.emit(ErrorLine(err.Error()))
	c.emit(final)
}

// attachProcess records the running process. It reports false if a cancel
// arrived first, in which case the caller must stop the process itself.
func (c *Controller) attachProcess(p Process) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancelled {
		return false
	}

	c.process = p

	return true
}

func (c *Controller) attachSession(s Session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancelled {
		return false
	}

	c.session = s

	return true
}

// emit delivers ev in order. Events after the terminal one are dropped.
func (c *Controller) emit(ev Event) bool {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	if c.closed {
		return false
	}

	c.events <- ev

	if ev.Terminal() {
		c.closed = true
		close(c.events)
	}

	return true
}

// Drain reads events until the channel closes, calling fn for each one, and
// returns the terminal event.
func Drain(events <-chan Event, fn func(Event)) Event {
	var last Event

	for ev := range events {
		if fn != nil {
			fn(ev)
		}

		last = ev
	}

	return last
}
