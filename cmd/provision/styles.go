package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/ruffel/provision"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")) // Pink

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // Cyan

	stampStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")) // Grey

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")) // Red

	progressStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")) // Blue

	checkStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("46")) // Green
)

// errorPrefix marks error lines that do not already carry it.
const errorPrefix = "错误: "

// sink renders a run's events as timestamped terminal lines.
type sink struct {
	out io.Writer
	now func() time.Time
}

func newSink(out io.Writer, now func() time.Time) *sink {
	return &sink{out: out, now: now}
}

func (s *sink) title(text string) {
	_, _ = fmt.Fprintln(s.out, titleStyle.Render(text))
}

func (s *sink) line(text string) {
	stamp := stampStyle.Render("[" + s.now().Format(time.TimeOnly) + "]")
	_, _ = fmt.Fprintln(s.out, stamp+" "+text)
}

func (s *sink) handle(ev provision.Event) {
	switch ev.Kind {
	case provision.EventOutput:
		s.line(ev.Text)
	case provision.EventError:
		text := ev.Text
		if !strings.HasPrefix(text, errorPrefix) {
			text = errorPrefix + text
		}

		s.line(errorStyle.Render(text))
	case provision.EventProgress:
		s.line(progressStyle.Render(fmt.Sprintf("上传进度: %3.0f%%", ev.Fraction*100)))
	case provision.EventCompleted:
		msg := "✅ 操作完成"
		if ev.ExitCode != 0 {
			msg += fmt.Sprintf(" (退出码 %d)", ev.ExitCode)
		}

		s.line(checkStyle.Render(msg))
	case provision.EventFailed:
		s.line(errorStyle.Render("❌ 操作失败: " + ev.Text))
	case provision.EventTerminated:
		s.line(infoStyle.Render("⏹ 操作已终止"))
	}
}
