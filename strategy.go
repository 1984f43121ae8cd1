package provision

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// run carries the per-run values a strategy works with.
type run struct {
	profile Profile
	plan    *Plan
	log     *zap.Logger
}

// strategy is the execution path of one operation kind.
type strategy interface {
	// execute performs the operation and returns the terminal event.
	execute(ctx context.Context, c *Controller, r *run) Event

	// rejection is the terminal event reported when validation fails before start.
	rejection(err error) Event
}

// strategyFor maps every Kind to exactly one execution path.
func strategyFor(k Kind) (strategy, error) {
	switch k {
	case Upload:
		return sessionStrategy{}, nil
	case Build, Backup:
		return processStrategy{}, nil
	default:
		return nil, &ConfigError{Reason: fmt.Sprintf("unknown operation kind %d", int(k))}
	}
}

// processStrategy runs the remote script through the remote-shell tool.
// Remote failures arrive as text markers; the run always completes.
type processStrategy struct{}

func (processStrategy) rejection(_ error) Event {
	return Event{Kind: EventCompleted, ExitCode: -1}
}

func (processStrategy) execute(ctx context.Context, c *Controller, r *run) Event {
	if c.supervisor == nil {
		c.emit(ErrorLine((&ConfigError{Reason: "no process supervisor configured"}).Error()))

		return Event{Kind: EventCompleted, ExitCode: -1}
	}

	stdout := NewLineWriter(func(line string) { c.emit(OutputLine(line)) })
	stderr := NewLineWriter(func(line string) { c.emit(ErrorLine(line)) })

	cmd := *r.plan.Command
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if c.cfg.CommandEcho {
		c.emit(OutputLine("[调试] 执行命令: " + cmd.Redact(passwordFlag).String()))
	}

	proc, err := c.supervisor.Start(ctx, &cmd)
	if err != nil {
		if ctx.Err() != nil {
			return Event{Kind: EventTerminated}
		}

		r.log.Error("failed to start remote shell", zap.Error(err))
		c.emit(ErrorLine(fmt.Sprintf("执行%s命令出错: %v", r.plan.Kind.Description(), err)))

		return Event{Kind: EventCompleted, ExitCode: -1}
	}

	defer func() { _ = proc.Close() }()

	if !c.attachProcess(proc) {
		_ = proc.Terminate()
	}

	waitErr := proc.Wait()

	_ = stdout.Close()
	_ = stderr.Close()

	res := proc.Result()
	r.log.Info("remote shell exited",
		zap.Int("exit_code", res.ExitCode),
		zap.Duration("duration", res.Duration))

	if ctx.Err() != nil {
		return Event{Kind: EventTerminated}
	}

	var exitErr *ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		c.emit(ErrorLine(waitErr.Error()))
	}

	return Event{Kind: EventCompleted, ExitCode: res.ExitCode}
}

// sessionStrategy copies the artifact over a transfer session.
type sessionStrategy struct{}

func (sessionStrategy) rejection(err error) Event {
	return Failed(err)
}

func (sessionStrategy) execute(ctx context.Context, c *Controller, r *run) Event {
	if c.transfer == nil {
		err := &ConfigError{Reason: "no transfer session configured"}
		c.emit(ErrorLine(err.Error()))

		return Failed(err)
	}

	c.emit(OutputLine("连接远程服务器 " + r.profile.Address()))

	sess, err := c.transfer.Open(ctx, r.profile)
	if err != nil {
		if ctx.Err() != nil {
			return Event{Kind: EventTerminated}
		}

		r.log.Error("failed to open transfer session", zap.Error(err))
		c.emit(ErrorLine(err.Error()))

		return Failed(err)
	}

	defer func() { _ = sess.Close() }()

	if !c.attachSession(sess) {
		_ = sess.Abort()

		return Event{Kind: EventTerminated}
	}

	c.emit(OutputLine(fmt.Sprintf("上传文件 %s -> %s", r.plan.LocalPath, r.plan.RemotePath)))

	tracker := &progressTracker{emit: c.emit}

	err = sess.PutFile(ctx, r.plan.LocalPath, r.plan.RemotePath, tracker.report)
	if err != nil {
		if ctx.Err() != nil {
			return Event{Kind: EventTerminated}
		}

		r.log.Error("transfer failed", zap.Error(err))
		c.emit(ErrorLine(err.Error()))

		return Failed(err)
	}

	tracker.finish()
	c.emit(OutputLine("上传成功: " + r.plan.RemotePath))

	return Event{Kind: EventCompleted}
}

// progressStep is the smallest fraction increase worth an event.
const progressStep = 0.01

// progressTracker turns byte counts into non-decreasing fractions in [0, 1].
type progressTracker struct {
	emit    func(Event) bool
	last    float64
	started bool
}

func (t *progressTracker) report(current, total int64) {
	if total <= 0 {
		return
	}

	f := float64(current) / float64(total)
	if f > 1 {
		f = 1
	}

	if t.started && (f < t.last+progressStep && f < 1 || f <= t.last) {
		return
	}

	t.started = true
	t.last = f
	t.emit(Progress(f))
}

func (t *progressTracker) finish() {
	if t.started && t.last >= 1 {
		return
	}

	t.started = true
	t.last = 1
	t.emit(Progress(1))
}
