// Package tui is the terminal launcher: it runs the analyzer, streams its
// console output into one pane and keeps a live preview of the log file in
// another.
package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"loganalyzer/internal/adapter/journal"
	"loganalyzer/internal/domain"
	"loganalyzer/internal/launcher"
	"loganalyzer/internal/usecase"
)

// Runner runs one analysis in this process and reports every event to sink.
type Runner func(ctx context.Context, promptPath, logPath string, sink func(domain.Event)) domain.RunResult

type Config struct {
	AnalyzerPath     string
	AnalyzerArgs     []string
	Dir              string
	PromptPath       string
	LogPath          string
	PromptCandidates []string
	LogCandidates    []string
	KillGrace        time.Duration
	// InProcess, when set, replaces the child process.
	InProcess Runner
}

const (
	fieldAnalyzer = iota
	fieldPrompt
	fieldLog
	fieldCount
)

type (
	outputMsg struct{ line string }
	exitMsg   struct {
		code int
		err  error
	}
	runDoneMsg    struct{ result domain.RunResult }
	killedMsg     struct{ err error }
	logChangedMsg struct{}
)

// session is the mutable state shared with background goroutines.
type session struct {
	sup         *launcher.Supervisor
	events      chan tea.Msg
	quit        chan struct{}
	cancelRun   context.CancelFunc
	cancelWatch context.CancelFunc
	watching    string
}

func (s *session) send(msg tea.Msg) {
	select {
	case s.events <- msg:
	case <-s.quit:
	}
}

func (s *session) listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-s.events:
			return msg
		case <-s.quit:
			return nil
		}
	}
}

type model struct {
	cfg     Config
	inputs  []textinput.Model
	focus   int
	cursor  [fieldCount]int
	output  viewport.Model
	preview viewport.Model
	lines   []string
	entries int
	status  string
	running bool
	width   int
	height  int
	s       *session
}

// Run starts the launcher and blocks until the user quits.
func Run(cfg Config) error {
	m := newModel(cfg)
	p := tea.NewProgram(m, tea.WithAltScreen())
	final, err := p.Run()
	if fm, ok := final.(model); ok {
		fm.shutdown()
	} else {
		m.shutdown()
	}
	return err
}

func newModel(cfg Config) model {
	labels := [fieldCount]string{"analyzer", "prompt", "log"}
	values := [fieldCount]string{cfg.AnalyzerPath, cfg.PromptPath, cfg.LogPath}

	inputs := make([]textinput.Model, fieldCount)
	for i := range inputs {
		ti := textinput.New()
		ti.Prompt = ""
		ti.Placeholder = labels[i] + " path"
		ti.CharLimit = 0
		ti.Width = 60
		ti.SetValue(values[i])
		inputs[i] = ti
	}

	m := model{
		cfg:     cfg,
		inputs:  inputs,
		focus:   fieldPrompt,
		output:  viewport.New(40, 10),
		preview: viewport.New(40, 10),
		status:  "Ready",
		s: &session{
			sup:    launcher.NewSupervisor(cfg.KillGrace),
			events: make(chan tea.Msg, 256),
			quit:   make(chan struct{}),
		},
	}
	if cfg.InProcess != nil {
		m.inputs[fieldAnalyzer].SetValue("(in-process)")
	}
	m.inputs[m.focus].Focus()
	m.refreshPreview()
	return m
}

func (m model) Init() tea.Cmd {
	m.rewatch()
	return tea.Batch(textinput.Blink, m.s.listen())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.shutdown()
			return m, tea.Quit
		case "tab", "down":
			cmd := m.setFocus((m.focus + 1) % fieldCount)
			return m, cmd
		case "shift+tab", "up":
			cmd := m.setFocus((m.focus + fieldCount - 1) % fieldCount)
			return m, cmd
		case "ctrl+r":
			return m.start()
		case "ctrl+k":
			return m.kill()
		case "ctrl+o":
			m.openLog()
			return m, nil
		case "ctrl+l", "enter":
			m.refreshPreview()
			m.rewatch()
			return m, nil
		case "ctrl+n":
			m.cycle(1)
			return m, nil
		case "ctrl+p":
			m.cycle(-1)
			return m, nil
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.output, cmd = m.output.Update(msg)
			return m, cmd
		}
		var cmd tea.Cmd
		m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
		return m, cmd

	case outputMsg:
		m.appendOutput(msg.line)
		return m, m.s.listen()

	case exitMsg:
		m.running = false
		if msg.err != nil {
			m.status = "Execution error: " + msg.err.Error()
		} else {
			m.status = launcher.ExitStatus(msg.code)
		}
		m.refreshPreview()
		return m, m.s.listen()

	case runDoneMsg:
		m.running = false
		m.s.cancelRun = nil
		m.status = "Analysis " + msg.result.State.String()
		m.refreshPreview()
		return m, m.s.listen()

	case killedMsg:
		if msg.err != nil {
			m.status = "Kill error: " + msg.err.Error()
		} else {
			m.status = "Process killed"
		}
		return m, nil

	case logChangedMsg:
		m.refreshPreview()
		return m, m.s.listen()
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m *model) setFocus(i int) tea.Cmd {
	if m.focus == fieldLog && i != fieldLog {
		m.refreshPreview()
		m.rewatch()
	}
	m.inputs[m.focus].Blur()
	m.focus = i
	return m.inputs[m.focus].Focus()
}

func (m model) value(field int) string {
	return strings.TrimSpace(m.inputs[field].Value())
}

// validate returns the status shown when the inputs cannot start a run,
// or "" when they can.
func (m model) validate() string {
	if m.cfg.InProcess == nil && !isFile(m.value(fieldAnalyzer)) {
		return "Missing analyzer: please select the analyzer executable."
	}
	if !isFile(m.value(fieldPrompt)) {
		return "Missing prompt file: please select a valid prompt file."
	}
	if m.value(fieldLog) == "" {
		return "Missing log file: please select or enter a log file path."
	}
	return ""
}

func isFile(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func (m model) start() (tea.Model, tea.Cmd) {
	if m.running {
		m.status = "An analysis is already running"
		return m, nil
	}
	if problem := m.validate(); problem != "" {
		m.status = problem
		return m, nil
	}

	m.lines = nil
	m.output.SetContent("")
	m.status = "Starting analyzer..."
	m.rewatch()

	promptPath, logPath := m.value(fieldPrompt), m.value(fieldLog)
	s := m.s

	if m.cfg.InProcess != nil {
		ctx, cancel := context.WithCancel(context.Background())
		s.cancelRun = cancel
		m.running = true
		m.status = "Analysis running..."
		run := m.cfg.InProcess
		return m, func() tea.Msg {
			defer cancel()
			res := run(ctx, promptPath, logPath, func(ev domain.Event) {
				for _, line := range strings.Split(usecase.RenderEvent(ev), "\n") {
					s.send(outputMsg{line: line})
				}
			})
			s.send(runDoneMsg{result: res})
			return nil
		}
	}

	err := s.sup.Start(launcher.Job{
		Program:    m.value(fieldAnalyzer),
		Args:       m.cfg.AnalyzerArgs,
		Dir:        m.cfg.Dir,
		PromptPath: promptPath,
		LogPath:    logPath,
	}, launcher.Handlers{
		OnLine: func(line string) { s.send(outputMsg{line: line}) },
		OnExit: func(code int, err error) { s.send(exitMsg{code: code, err: err}) },
	})
	if err != nil {
		m.status = "Execution error: " + err.Error()
		return m, nil
	}
	m.running = true
	m.status = "Process running..."
	return m, nil
}

func (m model) kill() (tea.Model, tea.Cmd) {
	if !m.running {
		m.status = "No running process"
		return m, nil
	}
	if m.s.cancelRun != nil {
		m.s.cancelRun()
		m.status = "Cancelling analysis..."
		return m, nil
	}
	m.status = "Terminated process, waiting for shutdown..."
	sup := m.s.sup
	return m, func() tea.Msg {
		return killedMsg{err: sup.Kill()}
	}
}

func (m *model) openLog() {
	path := m.value(fieldLog)
	if path == "" {
		m.status = "Cannot open: select a valid log file to open externally."
		return
	}
	if err := launcher.OpenExternal(path); err != nil {
		if errors.Is(err, launcher.ErrNoLogFile) {
			m.status = "Cannot open: select a valid log file to open externally."
		} else {
			m.status = "Open error: " + err.Error()
		}
		return
	}
	m.status = "Opened " + path
}

// cycle steps the focused field through its candidate files.
func (m *model) cycle(step int) {
	var candidates []string
	switch m.focus {
	case fieldPrompt:
		candidates = m.cfg.PromptCandidates
	case fieldLog:
		candidates = m.cfg.LogCandidates
	}
	if len(candidates) == 0 {
		m.status = "No candidate files found"
		return
	}
	i := (m.cursor[m.focus] + step + len(candidates)) % len(candidates)
	m.cursor[m.focus] = i
	m.inputs[m.focus].SetValue(candidates[i])
	m.inputs[m.focus].CursorEnd()
	m.status = fmt.Sprintf("%d/%d %s", i+1, len(candidates), candidates[i])
	if m.focus == fieldLog {
		m.refreshPreview()
	}
}

func (m *model) refreshPreview() {
	path := m.value(fieldLog)
	m.preview.SetContent(launcher.Preview(path))
	m.preview.GotoBottom()
	m.entries = 0
	if path != "" {
		if entries, err := journal.ReadEntries(path); err == nil {
			m.entries = len(entries)
		}
	}
}

// rewatch follows the current log path, restarting the watcher when it
// changed.
func (m *model) rewatch() {
	path := m.value(fieldLog)
	if path == m.s.watching {
		return
	}
	if m.s.cancelWatch != nil {
		m.s.cancelWatch()
		m.s.cancelWatch = nil
	}
	m.s.watching = path
	if path == "" {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.s.cancelWatch = cancel
	s := m.s
	go func() {
		_ = launcher.WatchFile(ctx, path, func() { s.send(logChangedMsg{}) })
	}()
}

func (m *model) appendOutput(line string) {
	m.lines = append(m.lines, line)
	m.output.SetContent(strings.Join(m.lines, "\n"))
	m.output.GotoBottom()
}

func (m *model) shutdown() {
	select {
	case <-m.s.quit:
		return
	default:
	}
	if m.s.cancelRun != nil {
		m.s.cancelRun()
	}
	if m.s.sup.Running() {
		_ = m.s.sup.Kill()
	}
	if m.s.cancelWatch != nil {
		m.s.cancelWatch()
	}
	close(m.s.quit)
}

func (m *model) layout() {
	paneWidth := (m.width - 4) / 2
	if paneWidth < 20 {
		paneWidth = 20
	}
	paneHeight := m.height - 10
	if paneHeight < 3 {
		paneHeight = 3
	}
	m.output.Width, m.output.Height = paneWidth, paneHeight
	m.preview.Width, m.preview.Height = paneWidth, paneHeight
	for i := range m.inputs {
		m.inputs[i].Width = m.width - 14
	}
	m.output.GotoBottom()
	m.preview.GotoBottom()
}

func (m model) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Log Analyzer"))
	sb.WriteString("\n")

	labels := [fieldCount]string{"Analyzer", "Prompt", "Log"}
	for i, in := range m.inputs {
		style := labelStyle
		if i == m.focus {
			style = focusedLabelStyle
		}
		sb.WriteString(style.Render(labels[i]) + " " + in.View() + "\n")
	}
	sb.WriteString("\n")

	left := lipgloss.JoinVertical(lipgloss.Left,
		paneTitleStyle.Render("Output"),
		paneStyle.Render(m.output.View()))
	right := lipgloss.JoinVertical(lipgloss.Left,
		paneTitleStyle.Render(fmt.Sprintf("Log preview (%d entries)", m.entries)),
		paneStyle.Render(m.preview.View()))
	sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, right))
	sb.WriteString("\n")

	sb.WriteString(statusStyle.Render(m.status))
	sb.WriteString("\n")
	sb.WriteString(helpStyle.Render("ctrl+r run  ctrl+k kill  ctrl+o open log  ctrl+l refresh  ctrl+n/p browse  tab next field  esc quit"))
	return sb.String()
}
