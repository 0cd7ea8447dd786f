// Package ui implements the clawdeck terminal user interface.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"clawdeck/internal/cache"
	"clawdeck/internal/config"
	"clawdeck/internal/controller"
	"clawdeck/internal/gateway"
	"clawdeck/internal/tunnel"
)

// ── State ─────────────────────────────────────────────────────────────────────

type appState int

const (
	stateConnecting appState = iota
	stateDashboard
	stateCompose
	stateHistory
	stateError
)

const historyLimit = 50

// ── Tea messages ──────────────────────────────────────────────────────────────

type connectDoneMsg struct {
	client   *gateway.Client
	tun      *tunnel.Tunnel
	resolved config.GatewayConfig
	dash     *controller.Sessions
	dispatch *controller.Dispatch
	snap     controller.SessionsSnapshot
}

type connectErrMsg struct{ err error }

type dashboardMsg controller.SessionsSnapshot

type dispatchMsg controller.DispatchSnapshot

// ── App ───────────────────────────────────────────────────────────────────────

// App is the top-level Bubble Tea model.
type App struct {
	cfg     *config.Overrides
	log     *zap.Logger
	version string

	state appState
	err   error

	// Connection
	client   *gateway.Client
	tun      *tunnel.Tunnel
	resolved config.GatewayConfig

	// Controllers
	dash     *controller.Sessions
	dispatch *controller.Dispatch

	// Snapshots being rendered
	snap  controller.SessionsSnapshot
	dsnap controller.DispatchSnapshot

	// Dashboard cursor and open history row
	cursor     int
	historyKey string

	// UI components
	viewport viewport.Model
	input    textinput.Model
	spin     spinner.Model
	renderer *glamour.TermRenderer

	// Layout
	width  int
	height int
	ready  bool
}

// New creates the App model.
func New(cfg *config.Overrides, log *zap.Logger, version string) *App {
	if log == nil {
		log = zap.NewNop()
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styleBadgePending

	ti := textinput.New()
	ti.Placeholder = "Type a message…"
	ti.CharLimit = 4096
	ti.Width = 80

	return &App{
		cfg:     cfg,
		log:     log,
		version: version,
		state:   stateConnecting,
		spin:    sp,
		input:   ti,
	}
}

// ── Init ──────────────────────────────────────────────────────────────────────

func (a *App) Init() tea.Cmd {
	return tea.Batch(
		a.spin.Tick,
		a.connectCmd(),
	)
}

// connectCmd resolves the gateway config, brings up the optional SSH
// tunnel, builds the client stack and performs the initial fleet load.
func (a *App) connectCmd() tea.Cmd {
	cfg := a.cfg
	log := a.log
	return func() tea.Msg {
		resolver := config.NewResolver(*cfg, log)
		resolved, err := resolver.Resolve()
		if err != nil {
			return connectErrMsg{err}
		}

		var tun *tunnel.Tunnel
		if cfg.SSHEnabled() {
			t, err := tunnel.Start(cfg.SSH)
			if err != nil {
				return connectErrMsg{fmt.Errorf("SSH tunnel: %w", err)}
			}
			tun = t
			resolved.URL = t.GatewayURL()
		}

		client, err := gateway.New(gateway.Options{
			BaseURL: resolved.URL,
			Token:   resolved.Token,
			Logger:  log,
		})
		if err != nil {
			if tun != nil {
				tun.Stop()
			}
			return connectErrMsg{fmt.Errorf("gateway: %w", err)}
		}

		sessions := cache.New(client, 0, log)
		dash := controller.NewSessions(sessions, client, log)
		dispatch := controller.NewDispatch(client, sessions, cfg.SessionKey(), cfg.WaitForResponse, log)

		snap := dash.Load(context.Background())
		return connectDoneMsg{
			client:   client,
			tun:      tun,
			resolved: resolved,
			dash:     dash,
			dispatch: dispatch,
			snap:     snap,
		}
	}
}

// ── Update ────────────────────────────────────────────────────────────────────

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.rebuildLayout()

	case tea.KeyMsg:
		switch a.state {
		case stateConnecting:
			if msg.String() == "ctrl+c" {
				return a, tea.Quit
			}
		case stateDashboard:
			if cmd := a.handleDashboardKey(msg); cmd != nil {
				return a, cmd
			}
		case stateCompose:
			if cmd := a.handleComposeKey(msg); cmd != nil {
				return a, cmd
			}
		case stateHistory:
			if cmd := a.handleHistoryKey(msg); cmd != nil {
				return a, cmd
			}
		case stateError:
			return a, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spin, cmd = a.spin.Update(msg)
		cmds = append(cmds, cmd)

	case connectDoneMsg:
		a.client = msg.client
		a.tun = msg.tun
		a.resolved = msg.resolved
		a.dash = msg.dash
		a.dispatch = msg.dispatch
		a.snap = msg.snap
		a.state = stateDashboard
		a.rebuildLayout()

	case connectErrMsg:
		a.err = msg.err
		a.state = stateError

	case dashboardMsg:
		a.snap = controller.SessionsSnapshot(msg)
		a.clampCursor()
		if a.state == stateHistory {
			row, ok := a.snap.Rows[a.historyKey]
			if !ok {
				a.state = stateDashboard
			} else if row.Phase == controller.RowHistoryReady || row.ErrKind != "" {
				a.flushHistoryViewport(row)
			}
		}

	case dispatchMsg:
		a.dsnap = controller.DispatchSnapshot(msg)

	}

	if a.ready {
		switch a.state {
		case stateHistory:
			var cmd tea.Cmd
			a.viewport, cmd = a.viewport.Update(msg)
			cmds = append(cmds, cmd)
		case stateCompose:
			var cmd tea.Cmd
			a.input, cmd = a.input.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	return a, tea.Batch(cmds...)
}

func (a *App) handleDashboardKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+c", "q":
		a.cleanup()
		return tea.Quit
	case "up", "k":
		if a.cursor > 0 {
			a.cursor--
		}
	case "down", "j":
		if a.cursor < len(a.snap.Sessions)-1 {
			a.cursor++
		}
	case "r":
		return a.refreshCmd()
	case "m":
		if s, ok := a.selectedSession(); ok {
			if _, switchable := gateway.ToggleTarget(s.Model); switchable {
				return a.toggleModelCmd(s.Key)
			}
		}
	case "enter", "h":
		if s, ok := a.selectedSession(); ok {
			a.historyKey = s.Key
			a.state = stateHistory
			a.viewport.SetContent(styleSystemMsg.Render("  loading history…"))
			return a.loadHistoryCmd(s.Key)
		}
	case "c":
		a.enterCompose("")
		return textinput.Blink
	}
	return nil
}

func (a *App) handleComposeKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+c":
		a.cleanup()
		return tea.Quit
	case "esc":
		a.state = stateDashboard
		a.input.Blur()
		return nil
	case "enter":
		return a.submitCmd(false)
	case "ctrl+s":
		// Flip the configured send mode for this one send.
		return a.submitCmd(true)
	case "ctrl+r":
		if a.dsnap.State == controller.DispatchFailed || a.dsnap.State == controller.DispatchTimedOut {
			return a.retryCmd()
		}
	}
	return nil
}

func (a *App) handleHistoryKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+c":
		a.cleanup()
		return tea.Quit
	case "esc", "q":
		key := a.historyKey
		a.state = stateDashboard
		return func() tea.Msg {
			return dashboardMsg(a.dash.CloseHistory(key))
		}
	}
	return nil
}

// ── Commands ──────────────────────────────────────────────────────────────────

func (a *App) refreshCmd() tea.Cmd {
	dash := a.dash
	return func() tea.Msg {
		return dashboardMsg(dash.Refresh(context.Background()))
	}
}

func (a *App) loadHistoryCmd(key string) tea.Cmd {
	dash := a.dash
	return func() tea.Msg {
		return dashboardMsg(dash.LoadHistory(context.Background(), key, historyLimit))
	}
}

func (a *App) toggleModelCmd(key string) tea.Cmd {
	dash := a.dash
	return func() tea.Msg {
		snap, _ := dash.ToggleModel(context.Background(), key)
		return dashboardMsg(snap)
	}
}

func (a *App) submitCmd(alternate bool) tea.Cmd {
	text := strings.TrimSpace(a.input.Value())
	if text == "" {
		return nil
	}
	a.input.SetValue("")
	dispatch := a.dispatch
	a.dsnap = dispatch.Compose(text, "")
	return func() tea.Msg {
		snap, _ := dispatch.Submit(context.Background(), alternate)
		return dispatchMsg(snap)
	}
}

func (a *App) retryCmd() tea.Cmd {
	dispatch := a.dispatch
	return func() tea.Msg {
		snap, _ := dispatch.Retry(context.Background())
		return dispatchMsg(snap)
	}
}

// ── View ──────────────────────────────────────────────────────────────────────

func (a *App) View() string {
	if a.width == 0 {
		return ""
	}
	switch a.state {
	case stateConnecting:
		return a.viewConnecting()
	case stateDashboard:
		return a.viewDashboard()
	case stateCompose:
		return a.viewCompose()
	case stateHistory:
		return a.viewHistory()
	case stateError:
		return a.viewError()
	}
	return ""
}

func (a *App) viewConnecting() string {
	var statusLine string
	if a.cfg.SSHEnabled() {
		statusLine = fmt.Sprintf("%s Establishing SSH tunnel to %s…", a.spin.View(), a.cfg.SSH.Host)
	} else {
		statusLine = fmt.Sprintf("%s Resolving gateway…", a.spin.View())
	}

	content := lipgloss.JoinVertical(lipgloss.Center,
		styleConnectTitle.Render("🦞 clawdeck "+a.version),
		"",
		statusLine,
		"",
		styleHelp.Render("ctrl+c to quit"),
	)

	box := styleConnectBox.Render(content)
	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, box)
}

func (a *App) viewError() string {
	content := lipgloss.JoinVertical(lipgloss.Left,
		styleError.Render("Startup Error"),
		"",
		fmt.Sprintf("%v", a.err),
		"",
		styleHelp.Render("Press any key to quit."),
	)
	box := styleConnectBox.Width(60).Render(content)
	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, box)
}

func (a *App) viewDashboard() string {
	header := a.renderHeaderBar("sessions")

	var rows []string
	now := time.Now()
	for i, s := range a.snap.Sessions {
		rows = append(rows, a.renderSessionRow(i, s, now))
	}
	if len(rows) == 0 {
		rows = append(rows, styleSystemMsg.Render("  no sessions"))
	}
	body := styleDashBox.
		Width(a.width - 2).
		Height(a.height - 5).
		Render(strings.Join(rows, "\n"))

	status := a.renderStatusLine()
	help := styleHelp.Render("  ↑↓: select   enter: history   m: model   c: compose   r: refresh   q: quit")

	return strings.Join([]string{header, body, status, help}, "\n")
}

func (a *App) renderSessionRow(i int, s gateway.Session, now time.Time) string {
	cursor := "  "
	if i == a.cursor {
		cursor = styleCursor.Render("▸ ")
	}

	name := s.Label()
	activity := controller.ActivityLabel(now, s.LastActivity)
	actStyle := styleIdle
	if activity == "Active" {
		actStyle = styleActive
	}

	model := s.Model
	if _, switchable := gateway.ToggleTarget(s.Model); switchable {
		model += " ⇄"
	}

	line := fmt.Sprintf("%s%-24s %-20s %-10s %s",
		cursor,
		truncate(name, 24),
		truncate(model, 20),
		actStyle.Render(activity),
		styleTokens.Render(fmt.Sprintf("%d tok", s.TokenUsage)),
	)

	if row, ok := a.snap.Rows[s.Key]; ok {
		switch {
		case row.Phase == controller.RowModelSwitching:
			line += "  " + a.spin.View() + styleSystemMsg.Render(" switching model")
		case row.Phase == controller.RowHistoryLoading:
			line += "  " + a.spin.View() + styleSystemMsg.Render(" loading history")
		case row.ErrKind != "":
			line += "  " + styleError.Render("⚠ "+string(row.ErrKind))
		}
	}
	return line
}

func (a *App) renderStatusLine() string {
	if a.snap.ErrKind != "" {
		return styleError.Render("  ⚠ " + a.snap.ErrMsg + " (showing last known sessions)")
	}
	return styleSession.Render(fmt.Sprintf("  %d sessions · %s", len(a.snap.Sessions), a.resolved.Source))
}

func (a *App) viewCompose() string {
	header := a.renderHeaderBar("compose → " + a.dsnap.Draft.SessionKey)

	status := a.renderDispatchStatus()
	body := styleDashBox.
		Width(a.width - 2).
		Height(a.height - 8).
		Render(status)

	inputBox := styleInputBoxFocused.
		Width(a.width - 2).
		Render(a.input.View())

	mode := "send"
	alt := "send & wait"
	if a.dispatchDefaultWait() {
		mode, alt = alt, "send only"
	}
	help := styleHelp.Render(fmt.Sprintf("  enter: %s   ctrl+s: %s   ctrl+r: retry   esc: back", mode, alt))

	return strings.Join([]string{header, body, inputBox, help}, "\n")
}

func (a *App) dispatchDefaultWait() bool {
	return a.cfg.WaitForResponse
}

func (a *App) renderDispatchStatus() string {
	switch a.dsnap.State {
	case controller.DispatchSubmitting:
		return a.spin.View() + styleSystemMsg.Render(" sending…")
	case controller.DispatchAwaitingResponse:
		return a.spin.View() + styleSystemMsg.Render(" awaiting response…")
	case controller.DispatchSent:
		return styleActive.Render("  ✓ sent") + styleSystemMsg.Render("  (fire-and-forget)")
	case controller.DispatchResponded:
		out := styleActive.Render("  ✓ responded") + "\n\n"
		return out + a.renderMarkdown(a.dsnap.Response)
	case controller.DispatchTimedOut:
		return styleSystemMsg.Render("  ◷ no response yet — the agent may still be working. ctrl+r to retry.")
	case controller.DispatchFailed:
		return styleError.Render("  ✗ "+a.dsnap.ErrMsg) + styleHelp.Render("\n  ctrl+r to retry with the same message")
	default:
		return styleSystemMsg.Render("  compose a message and press enter")
	}
}

func (a *App) viewHistory() string {
	header := a.renderHeaderBar("history · " + a.historyKey)
	body := styleChatBox.
		Width(a.width - 2).
		Render(a.viewport.View())
	help := styleHelp.Render("  ↑↓ PgUp PgDn: scroll   esc: back")
	return strings.Join([]string{header, body, help}, "\n")
}

func (a *App) renderHeaderBar(section string) string {
	left := styleAppTitle.Render("🦞 clawdeck") + "  " + styleSession.Render(section)

	var badges []string
	if a.tun != nil {
		badges = append(badges, styleBadgeSSH.Render(" SSH "))
	}
	badges = append(badges, styleBadgeConnected.Render("● "+a.resolved.URL))
	right := strings.Join(badges, "  ")

	gap := a.width - lipgloss.Width(left) - lipgloss.Width(right) - 4
	if gap < 1 {
		gap = 1
	}
	line := left + strings.Repeat(" ", gap) + right
	return styleHeaderBar.Width(a.width).Render(line)
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func (a *App) enterCompose(prefill string) {
	a.state = stateCompose
	a.input.SetValue(prefill)
	a.input.Focus()
	a.dsnap = a.dispatch.Snapshot()
}

func (a *App) selectedSession() (gateway.Session, bool) {
	if a.cursor < 0 || a.cursor >= len(a.snap.Sessions) {
		return gateway.Session{}, false
	}
	return a.snap.Sessions[a.cursor], true
}

func (a *App) clampCursor() {
	if a.cursor >= len(a.snap.Sessions) {
		a.cursor = len(a.snap.Sessions) - 1
	}
	if a.cursor < 0 {
		a.cursor = 0
	}
}

func (a *App) rebuildLayout() {
	if a.width == 0 || a.height == 0 {
		return
	}

	vpHeight := a.height - 5
	if vpHeight < 3 {
		vpHeight = 3
	}
	vpWidth := a.width - 4
	if vpWidth < 20 {
		vpWidth = 20
	}

	if !a.ready {
		a.viewport = viewport.New(vpWidth, vpHeight)
	} else {
		a.viewport.Width = vpWidth
		a.viewport.Height = vpHeight
	}
	a.ready = true

	a.input.Width = a.width - 6

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(vpWidth-2),
	)
	if err == nil {
		a.renderer = r
	}
}

// flushHistoryViewport renders one session's transcript into the viewport.
func (a *App) flushHistoryViewport(row controller.Row) {
	if !a.ready {
		return
	}
	if row.ErrKind != "" {
		a.viewport.SetContent(styleError.Render("  ⚠ " + row.ErrMsg))
		return
	}
	var sb strings.Builder
	for _, m := range row.History {
		tsStr := ""
		if !m.Timestamp.IsZero() {
			tsStr = "  " + styleTimestamp.Render(m.Timestamp.Format("Jan 2 15:04"))
		}
		switch m.Role {
		case "user":
			sb.WriteString("\n" + styleUserLabel.Render("  you") + tsStr + "\n")
			sb.WriteString(indentBlock(m.Content, "  ") + "\n")
		case "assistant":
			sb.WriteString("\n" + styleAssistantLabel.Render("  assistant") + tsStr + "\n")
			sb.WriteString(a.renderMarkdown(m.Content) + "\n")
		default:
			sb.WriteString("\n" + styleSystemMsg.Render("  "+m.Content) + "\n")
		}
	}
	if len(row.History) == 0 {
		sb.WriteString(styleSystemMsg.Render("  no messages yet"))
	}
	a.viewport.SetContent(sb.String())
	a.viewport.GotoBottom()
}

// renderMarkdown renders assistant output through glamour, falling back to
// the raw text when rendering fails.
func (a *App) renderMarkdown(content string) string {
	if a.renderer == nil {
		return indentBlock(content, "  ")
	}
	out, err := a.renderer.Render(content)
	if err != nil {
		return indentBlock(content, "  ")
	}
	return strings.TrimRight(out, "\n")
}

func (a *App) cleanup() {
	if a.tun != nil {
		a.tun.Stop()
	}
}

// indentBlock adds a prefix to every line.
func indentBlock(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

// truncate shortens s to max runes with an ellipsis.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
