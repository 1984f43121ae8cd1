package provision

import (
	"fmt"
	"strings"
)

// Kind enumerates the supported remote operations.
type Kind int

const (
	// Upload copies the local artifact into the remote save directory.
	Upload Kind = iota
	// Build runs the remote run.sh script with "build" then "status".
	Build
	// Backup copies the remote artifact into the backup directory with a timestamp suffix.
	Backup
)

// Kinds lists every operation kind.
func Kinds() []Kind {
	return []Kind{Upload, Build, Backup}
}

func (k Kind) String() string {
	switch k {
	case Upload:
		return "upload"
	case Build:
		return "build"
	case Backup:
		return "backup"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Description returns the display name shown to operators.
func (k Kind) Description() string {
	switch k {
	case Upload:
		return "上传"
	case Build:
		return "编译"
	case Backup:
		return "备份"
	default:
		return k.String()
	}
}

// ParseKind converts "upload", "build" or "backup" to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "upload":
		return Upload, nil
	case "build":
		return Build, nil
	case "backup":
		return Backup, nil
	default:
		return 0, fmt.Errorf("unknown operation kind %q", s)
	}
}

// usesProcess reports whether the kind runs through the remote-shell tool.
func (k Kind) usesProcess() bool {
	return k == Build || k == Backup
}

// EventKind tags an Event.
type EventKind int

const (
	// EventOutput is a non-empty line read from standard output, or a status line.
	EventOutput EventKind = iota
	// EventError is a non-empty line read from standard error, or an error report.
	EventError
	// EventProgress carries a transfer fraction in [0, 1].
	EventProgress
	// EventCompleted ends a run that was not cancelled and did not fail.
	EventCompleted
	// EventFailed ends a run that failed.
	EventFailed
	// EventTerminated ends a run that was cancelled.
	EventTerminated
)

func (k EventKind) String() string {
	switch k {
	case EventOutput:
		return "output"
	case EventError:
		return "error"
	case EventProgress:
		return "progress"
	case EventCompleted:
		return "completed"
	case EventFailed:
		return "failed"
	case EventTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Event is one item of a run's event stream.
type Event struct {
	Kind     EventKind
	Text     string  // Line text (Output, Error) or failure reason (Failed)
	Fraction float64 // Progress only
	ExitCode int     // Completed on the process path only
	Err      error   // Failed only
}

// Terminal reports whether no further events follow this one.
func (e Event) Terminal() bool {
	return e.Kind == EventCompleted || e.Kind == EventFailed || e.Kind == EventTerminated
}

// OutputLine builds an EventOutput.
func OutputLine(text string) Event {
	return Event{Kind: EventOutput, Text: text}
}

// ErrorLine builds an EventError.
func ErrorLine(text string) Event {
	return Event{Kind: EventError, Text: text}
}

// Progress builds an EventProgress.
func Progress(fraction float64) Event {
	return Event{Kind: EventProgress, Fraction: fraction}
}

// Failed builds an EventFailed from err.
func Failed(err error) Event {
	return Event{Kind: EventFailed, Text: err.Error(), Err: err}
}

// State is the lifecycle position of a Controller.
type State int

const (
	// StateIdle is the only state a run may start from.
	StateIdle State = iota
	// StateRunning means a process or session is live.
	StateRunning
	// StateCompleted is terminal.
	StateCompleted
	// StateTerminated is terminal and follows a Cancel.
	StateTerminated
	// StateFailed is terminal.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateTerminated:
		return "terminated"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateTerminated || s == StateFailed
}

// stateFor maps a terminal event to the state it leaves the controller in.
func stateFor(k EventKind) State {
	switch k {
	case EventCompleted:
		return StateCompleted
	case EventTerminated:
		return StateTerminated
	case EventFailed:
		return StateFailed
	case EventOutput, EventError, EventProgress:
		return StateRunning
	default:
		return StateRunning
	}
}
