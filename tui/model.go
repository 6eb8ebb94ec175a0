// Package tui renders the task board in the terminal and drives the drag
// coordinator from the keyboard: space picks a card up, left and right move
// it across columns, enter drops it and esc cancels.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lakshaytakkar/suprans-team-portal-repl-sub002/board"
	"github.com/lakshaytakkar/suprans-team-portal-repl-sub002/domain"
	"github.com/lakshaytakkar/suprans-team-portal-repl-sub002/session"
)

const (
	eventBuffer        = 16
	defaultColumnWidth = 26
	minColumnWidth     = 16
)

// Deps are the board collaborators the model drives.
type Deps struct {
	Ctx         context.Context
	Query       *board.TaskQuery
	Coordinator *board.Coordinator
	Dispatcher  *board.Dispatcher
	Bus         board.Bus
	Session     *session.Session
	Users       domain.Directory
	Now         func() time.Time
}

type tasksLoadedMsg struct {
	tasks []domain.Task
	err   error
}

type invalidatedMsg struct{}

type mutationFailedMsg struct {
	taskID string
	err    error
}

// Model is the Bubble Tea model of the board.
type Model struct {
	deps        Deps
	events      chan tea.Msg
	unsubscribe func()

	columns []board.Column
	tasks   []domain.Task
	loaded  bool

	col, row int
	hover    int
	detail   bool

	status string
	err    error
	width  int
	height int
}

// New subscribes the model to invalidations and mutation failures.
func New(deps Deps) Model {
	if deps.Ctx == nil {
		deps.Ctx = context.Background()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	events := make(chan tea.Msg, eventBuffer)
	send := func(msg tea.Msg) {
		select {
		case events <- msg:
		default:
		}
	}
	m := Model{deps: deps, events: events, columns: board.Columns()}
	if deps.Bus != nil {
		m.unsubscribe = deps.Bus.Subscribe(board.TopicTasks, func() { send(invalidatedMsg{}) })
	}
	if deps.Dispatcher != nil {
		deps.Dispatcher.OnError(func(taskID string, err error) {
			send(mutationFailedMsg{taskID: taskID, err: err})
		})
	}
	return m
}

// Close detaches the model from the bus.
func (m Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.fetch(), m.listen())
}

func (m Model) fetch() tea.Cmd {
	q, ctx := m.deps.Query, m.deps.Ctx
	return func() tea.Msg {
		tasks, err := q.Get(ctx)
		return tasksLoadedMsg{tasks: tasks, err: err}
	}
}

// listen waits for the next event pushed from outside the program loop.
func (m Model) listen() tea.Cmd {
	events, ctx := m.events, m.deps.Ctx
	return func() tea.Msg {
		select {
		case msg := <-events:
			return msg
		case <-ctx.Done():
			return nil
		}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tasksLoadedMsg:
		if msg.err != nil {
			m.err = fmt.Errorf("load tasks: %w", msg.err)
			m.deps.Session.SetLastError(m.err)
			return m, nil
		}
		m.tasks = msg.tasks
		m.loaded = true
		m.register()
		m.clamp()
		if m.deps.Query.Stale() {
			return m, m.fetch()
		}
		return m, nil

	case invalidatedMsg:
		return m, tea.Batch(m.fetch(), m.listen())

	case mutationFailedMsg:
		m.err = fmt.Errorf("move %s: %w", msg.taskID, msg.err)
		m.status = ""
		m.deps.Session.SetLastError(m.err)
		return m, m.listen()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	dragging := m.deps.Coordinator.State() == board.Dragging
	switch msg.String() {
	case "ctrl+c", "q":
		m.deps.Coordinator.Cancel()
		return m, tea.Quit
	case "left", "h":
		m.step(-1, dragging)
	case "right", "l":
		m.step(1, dragging)
	case "up", "k":
		if !dragging {
			m.row--
			m.clamp()
		}
	case "down", "j":
		if !dragging {
			m.row++
			m.clamp()
		}
	case " ":
		if dragging {
			m.drop()
		} else {
			m.pickUp()
		}
	case "enter":
		if dragging {
			m.drop()
		} else {
			m.openDetail()
		}
	case "esc":
		if dragging {
			m.deps.Coordinator.Cancel()
			m.status = "Drag cancelled"
		} else if m.detail {
			m.detail = false
			m.deps.Session.SetActiveTask("")
		}
	case "r":
		m.deps.Query.Invalidate()
		return m, m.fetch()
	case "v":
		return m.cycleRole()
	}
	return m, nil
}

func (m *Model) step(delta int, dragging bool) {
	if dragging {
		m.hover = clampInt(m.hover+delta, 0, len(m.columns)-1)
		return
	}
	m.col = clampInt(m.col+delta, 0, len(m.columns)-1)
	m.clamp()
}

func (m *Model) pickUp() {
	t, ok := m.selected()
	if !ok {
		return
	}
	out, err := m.deps.Coordinator.OnDragStart(t.ID)
	if err != nil {
		m.err = err
		return
	}
	m.err = nil
	m.hover = m.col
	m.status = fmt.Sprintf("Moving %q from %s", t.Title, out.From.Label())
}

func (m *Model) drop() {
	out := m.deps.Coordinator.OnDragEnd("", m.columns[m.hover].DropID())
	switch out.Kind {
	case board.OutcomeMoved:
		m.status = fmt.Sprintf("Moved to %s, waiting for server", out.To.Label())
	case board.OutcomeCancelled:
		m.status = "Drag cancelled"
	default:
		m.status = ""
	}
}

func (m *Model) openDetail() {
	t, ok := m.selected()
	if !ok {
		return
	}
	press := m.deps.Coordinator.Press(t.ID)
	if !m.deps.Coordinator.OpensDetail(press) {
		return
	}
	m.detail = true
	m.deps.Session.SetActiveTask(t.ID)
}

// cycleRole steps the view-as role down through the roles the user may
// assume, wrapping back to the signed-in role.
func (m Model) cycleRole() (tea.Model, tea.Cmd) {
	s := m.deps.Session
	var allowed []domain.Role
	for _, r := range []domain.Role{domain.RoleAdmin, domain.RoleManager, domain.RoleMember} {
		if s.Role().CanViewAs(r) {
			allowed = append(allowed, r)
		}
	}
	if len(allowed) < 2 {
		return m, nil
	}
	next := allowed[0]
	for i, r := range allowed {
		if r == s.EffectiveRole() && i+1 < len(allowed) {
			next = allowed[i+1]
		}
	}
	if err := s.SetEffectiveRole(next); err != nil {
		m.err = err
		return m, nil
	}
	m.deps.Coordinator.Cancel()
	m.detail = false
	s.SetActiveTask("")
	m.deps.Query.SetKey(board.QueryKey{TeamID: s.TeamID(), Role: next})
	m.status = "Viewing as " + string(next)
	return m, m.fetch()
}

// register makes the current columns and cards known to the drag surface.
func (m *Model) register() {
	m.deps.Coordinator.Reset()
	for _, c := range m.columns {
		c.Register(m.deps.Coordinator, m.tasks)
	}
}

func (m *Model) clamp() {
	m.col = clampInt(m.col, 0, len(m.columns)-1)
	n := len(m.columns[m.col].Tasks(m.tasks))
	m.row = clampInt(m.row, 0, n-1)
}

func (m Model) selected() (domain.Task, bool) {
	tasks := m.columns[m.col].Tasks(m.tasks)
	if m.row < 0 || m.row >= len(tasks) {
		return domain.Task{}, false
	}
	return tasks[m.row], true
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.loaded && m.err == nil {
		return subtleStyle.Render("Loading tasks…")
	}
	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n\n")

	active, dragging := m.deps.Coordinator.Active()
	width := m.columnWidth()
	views := make([]string, len(m.columns))
	for i, c := range m.columns {
		views[i] = m.renderColumn(i, c, width, active, dragging)
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, views...))
	b.WriteString("\n")

	if m.detail {
		if t, ok := m.selected(); ok {
			b.WriteString(m.renderDetail(t))
			b.WriteString("\n")
		}
	}
	if m.status != "" {
		b.WriteString(subtleStyle.Render(m.status))
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString(errorStyle.Render("Error: " + m.err.Error()))
		b.WriteString("\n")
	}
	b.WriteString(subtleStyle.Render(m.help(dragging)))
	return b.String()
}

func (m Model) header() string {
	s := m.deps.Session
	line := fmt.Sprintf("Team %s · %s (%s)", s.TeamID(), m.deps.Users.Name(s.UserID()), s.Role())
	if s.EffectiveRole() != s.Role() {
		line += " · viewing as " + string(s.EffectiveRole())
	}
	return titleStyle.Render(line)
}

func (m Model) help(dragging bool) string {
	if dragging {
		return "←/→ choose column · enter/space drop · esc cancel"
	}
	return "←/→/↑/↓ select · space pick up · enter details · v view as · r refresh · q quit"
}

func (m Model) columnWidth() int {
	if m.width <= 0 {
		return defaultColumnWidth
	}
	w := m.width/len(m.columns) - 4
	if w < minColumnWidth {
		return minColumnWidth
	}
	return w
}

func (m Model) renderColumn(i int, c board.Column, width int, active domain.Task, dragging bool) string {
	tasks := c.Tasks(m.tasks)
	lines := []string{
		stageStyle(c.Stage.Color).Render(fmt.Sprintf("%s (%d)", c.Stage.Label, len(tasks))),
		"",
	}
	if dragging && i == m.hover {
		lines = append(lines, overlayStyle.Render("» "+truncate(active.Title, width-4)), "")
	}
	now := m.deps.Now()
	for j, t := range tasks {
		card := board.NewCard(t, m.deps.Users, now)
		style := cardStyle
		switch {
		case dragging && t.ID == active.ID:
			style = draggedCardStyle
		case !dragging && i == m.col && j == m.row:
			style = selectedCardStyle
		}
		meta := card.Meta()
		if card.Priority == domain.PriorityHigh {
			meta = highBadgeStyle.Render(card.Badge()) + strings.TrimPrefix(meta, card.Badge())
		}
		lines = append(lines, style.Render(truncate(card.Title, width-2)+"\n"+subtleStyle.Render(meta)))
	}
	if len(tasks) == 0 {
		lines = append(lines, subtleStyle.Render("No tasks"))
	}
	style := columnStyle
	if dragging && i == m.hover {
		style = hoverColumnStyle
	}
	return style.Width(width).Render(strings.Join(lines, "\n"))
}

func (m Model) renderDetail(t domain.Task) string {
	lines := []string{
		titleStyle.Render(t.Title),
		fmt.Sprintf("Status: %s   Priority: %s", t.Status.Label(), t.Priority),
	}
	if t.AssignedTo != "" {
		lines = append(lines, "Assignee: "+m.deps.Users.Name(t.AssignedTo))
	}
	if t.DueDate != nil {
		lines = append(lines, "Due: "+t.DueDate.Format("Mon Jan 2 2006"))
	}
	if len(t.Tags) > 0 {
		lines = append(lines, "Tags: "+strings.Join(t.Tags, ", "))
	}
	if t.Description != "" {
		lines = append(lines, "", t.Description)
	}
	return detailStyle.Render(strings.Join(lines, "\n"))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 1 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
