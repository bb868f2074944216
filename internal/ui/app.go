package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/roster/internal/api"
	"github.com/five82/roster/internal/prefs"
	"github.com/five82/roster/internal/query"
	"github.com/five82/roster/internal/state"
)

// View represents the current active view.
type View int

const (
	ViewClasses View = iota
	ViewSubjects
	ViewUsers
	ViewMaterials
	ViewLogs
	numViews
)

var viewNames = [numViews]string{"classes", "subjects", "users", "materials", "logs"}

func (v View) String() string {
	if v < 0 || v >= numViews {
		return "classes"
	}
	return viewNames[v]
}

// parseView maps a saved view name back to a View.
func parseView(name string) View {
	for i, n := range viewNames {
		if n == strings.ToLower(strings.TrimSpace(name)) {
			return View(i)
		}
	}
	return ViewClasses
}

// Options configures the console.
type Options struct {
	Context   context.Context
	Store     *state.Store
	User      api.User
	LogPath   string
	PollTick  time.Duration
	Prefs     prefs.Prefs
	PrefsPath string
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx       context.Context
	store     *state.Store
	user      api.User
	logPath   string
	prefsPath string
	prefs     prefs.Prefs
	pollTick  time.Duration
	keys      keyMap
	watch     *watcher

	// UI state
	theme       Theme
	currentView View
	width       int
	height      int
	ready       bool

	// Data state
	snapshot    state.Snapshot
	lastUpdated time.Time
	entries     [numViews]query.Entry

	// Table state
	selected [numViews]int
	classID  int64

	// Flash line under the content
	status    string
	statusErr bool

	// Delete confirmation and new-subject prompt
	confirmDelete bool
	prompting     bool
	prompt        textinput.Model

	// Log state
	logViewport viewport.Model
	logState    logState

	// Help overlay
	showHelp bool
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	pollTick := opts.PollTick
	if pollTick == 0 {
		pollTick = time.Second
	}

	p := opts.Prefs
	if p.Theme == "" {
		p.Theme = defaultThemeName
	}

	ti := textinput.New()
	ti.Placeholder = "CODE Subject name"
	ti.CharLimit = 120

	return Model{
		ctx:         ctx,
		store:       opts.Store,
		user:        opts.User,
		logPath:     opts.LogPath,
		prefsPath:   opts.PrefsPath,
		prefs:       p,
		pollTick:    pollTick,
		keys:        DefaultKeyMap(),
		watch:       newWatcher(ctx),
		theme:       GetTheme(p.Theme),
		currentView: parseView(p.LastView),
		classID:     p.ClassID,
		prompt:      ti,
		logState:    logState{follow: true},
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tea.EnterAltScreen,
		tickCmd(m.pollTick),
		m.watch.wait(),
	}
	if m.store != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.store), m.watchView(m.currentView))
	}
	if m.currentView == ViewLogs {
		cmds = append(cmds, m.refreshLogs())
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.updateLogViewport()
		return m, nil

	case tickMsg:
		return m.handleTick()

	case snapshotMsg:
		m.snapshot = state.Snapshot(msg)
		m.lastUpdated = time.Now()
		return m, nil

	case changeMsg:
		m.sync()
		return m, m.watch.wait()

	case syncMsg:
		m.sync()
		return m, nil

	case mutationMsg:
		m.status, m.statusErr = msg.text(), msg.err != nil
		m.sync()
		return m, fetchSnapshotCmd(m.store)

	case logLinesMsg:
		m.handleLogLines(msg)
		return m, nil
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	return m.renderMain()
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}
	if m.prompting {
		return m.handlePromptKey(msg)
	}
	if m.confirmDelete {
		m.confirmDelete = false
		if key.Matches(msg, m.keys.Yes) {
			return m, m.deleteSelected()
		}
		m.status = "Delete cancelled"
		m.statusErr = false
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.watch.close()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.prefs.Theme = m.theme.Name
		m.savePrefs()
		m.updateLogViewport()
		return m, nil

	case key.Matches(msg, m.keys.Tab):
		return m.switchView((m.currentView + 1) % numViews)

	case key.Matches(msg, m.keys.ShiftTab):
		return m.switchView((m.currentView + numViews - 1) % numViews)

	case key.Matches(msg, m.keys.Escape):
		return m.switchView(ViewClasses)

	case key.Matches(msg, m.keys.ViewClasses):
		return m.switchView(ViewClasses)

	case key.Matches(msg, m.keys.ViewSubjects):
		return m.switchView(ViewSubjects)

	case key.Matches(msg, m.keys.ViewUsers):
		return m.switchView(ViewUsers)

	case key.Matches(msg, m.keys.ViewMaterials):
		return m.switchView(ViewMaterials)

	case key.Matches(msg, m.keys.ViewLogs):
		return m.switchView(ViewLogs)
	}

	if m.currentView == ViewLogs {
		return m.handleLogsKey(msg)
	}
	return m.handleTableKey(msg)
}

// switchView activates v, subscribing to its data on first use.
func (m Model) switchView(v View) (tea.Model, tea.Cmd) {
	m.currentView = v
	m.confirmDelete = false
	m.prefs.LastView = v.String()
	m.savePrefs()
	m.sync()
	if v == ViewLogs {
		return m, m.refreshLogs()
	}
	return m, m.watchView(v)
}

// handleTableKey processes keyboard input for the table views.
func (m Model) handleTableKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	count := m.rowCount(m.currentView)
	sel := &m.selected[m.currentView]
	half := max(1, m.tableHeight()/2)

	switch {
	case key.Matches(msg, m.keys.Down):
		if *sel < count-1 {
			*sel++
		}
	case key.Matches(msg, m.keys.Up):
		if *sel > 0 {
			*sel--
		}
	case key.Matches(msg, m.keys.Top):
		*sel = 0
	case key.Matches(msg, m.keys.Bottom):
		*sel = max(0, count-1)
	case key.Matches(msg, m.keys.HalfPageDown):
		*sel = min(max(0, count-1), *sel+half)
	case key.Matches(msg, m.keys.HalfPageUp):
		*sel = max(0, *sel-half)

	case key.Matches(msg, m.keys.Refresh):
		return m, m.refetchView()

	case key.Matches(msg, m.keys.Select):
		if m.currentView != ViewClasses {
			return m, nil
		}
		classes, _ := query.Value[[]api.Class](m.entries[ViewClasses])
		if *sel >= len(classes) {
			return m, nil
		}
		m.selectClass(classes[*sel].ID)
		return m.switchView(ViewMaterials)

	case key.Matches(msg, m.keys.New):
		if m.currentView != ViewSubjects {
			return m, nil
		}
		m.prompting = true
		m.prompt.Reset()
		return m, m.prompt.Focus()

	case key.Matches(msg, m.keys.Delete):
		if label := m.selectedLabel(); label != "" {
			m.confirmDelete = true
			m.status = fmt.Sprintf("Delete %s? press y to confirm", label)
			m.statusErr = false
		}
	}
	return m, nil
}

// handlePromptKey feeds the new-subject prompt.
func (m Model) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyCtrlC:
		m.watch.close()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Escape):
		m.prompting = false
		m.prompt.Blur()
		return m, nil
	case key.Matches(msg, m.keys.Confirm):
		m.prompting = false
		m.prompt.Blur()
		in, err := parseSubjectInput(m.prompt.Value())
		if err != nil {
			m.status, m.statusErr = err.Error(), true
			return m, nil
		}
		return m, m.createSubject(in)
	}
	var cmd tea.Cmd
	m.prompt, cmd = m.prompt.Update(msg)
	return m, cmd
}

// parseSubjectInput reads "CODE name words" into a SubjectInput.
func parseSubjectInput(raw string) (api.SubjectInput, error) {
	code, name, ok := strings.Cut(strings.TrimSpace(raw), " ")
	name = strings.TrimSpace(name)
	if !ok || code == "" || name == "" {
		return api.SubjectInput{}, errors.New("expected: CODE Subject name")
	}
	return api.SubjectInput{SubjectCode: code, SubjectName: name}, nil
}

// selectClass scopes the class views to id.
func (m *Model) selectClass(id int64) {
	if m.classID == id {
		return
	}
	if m.classID > 0 {
		m.watch.drop(state.MaterialsKey(m.classID))
	}
	m.classID = id
	m.selected[ViewMaterials] = 0
	m.prefs.ClassID = id
	m.savePrefs()
}

// sync copies the entries of every table view out of the cache.
func (m *Model) sync() {
	if m.store == nil {
		return
	}
	c := m.store.Cache()
	m.entries[ViewClasses] = c.Peek(state.ClassesKey)
	m.entries[ViewSubjects] = c.Peek(state.SubjectsKey)
	m.entries[ViewUsers] = c.Peek(state.UsersKey)
	m.entries[ViewMaterials] = c.Peek(state.MaterialsKey(m.classID))
	for v := View(0); v < numViews; v++ {
		if n := m.rowCount(v); m.selected[v] >= n {
			m.selected[v] = max(0, n-1)
		}
	}
}

func (m *Model) savePrefs() {
	if m.prefsPath == "" {
		return
	}
	if err := prefs.Save(m.prefsPath, m.prefs); err != nil {
		m.status, m.statusErr = "save prefs: "+err.Error(), true
	}
}

// handleTick processes the polling tick.
func (m Model) handleTick() (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	if m.store != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.store))
	}
	if m.currentView == ViewLogs && m.logState.follow {
		cmds = append(cmds, m.refreshLogs())
	}
	cmds = append(cmds, tickCmd(m.pollTick))
	return m, tea.Batch(cmds...)
}

// renderMain renders the full console.
func (m Model) renderMain() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderCommandBar())
	b.WriteString("\n")
	b.WriteString(m.renderContent())
	b.WriteString("\n")
	b.WriteString(m.renderStatusLine())
	return b.String()
}

// renderContent renders the main content area based on current view.
func (m Model) renderContent() string {
	if m.currentView == ViewLogs {
		return m.renderLogs()
	}
	return m.renderTable(m.currentView)
}

// Messages

type tickMsg time.Time

type snapshotMsg state.Snapshot

// syncMsg re-reads the cache without re-arming the watcher.
type syncMsg struct{}

// mutationMsg reports a settled mutation started from the console.
type mutationMsg struct {
	action string
	err    error
}

func (msg mutationMsg) text() string {
	if msg.err == nil {
		return msg.action + ": done"
	}
	if apiErr := (*api.Error)(nil); errors.As(msg.err, &apiErr) && len(apiErr.Fields) > 0 {
		f := apiErr.Fields[0]
		return fmt.Sprintf("%s failed: %s %s", msg.action, f.Field, f.Message)
	}
	return fmt.Sprintf("%s failed: %v", msg.action, msg.err)
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshotCmd(store *state.Store) tea.Cmd {
	if store == nil {
		return nil
	}
	return func() tea.Msg {
		return snapshotMsg(store.Snapshot())
	}
}

// watchView subscribes to the data of v and starts a fetch when stale.
func (m Model) watchView(v View) tea.Cmd {
	if m.store == nil {
		return nil
	}
	ctx, s, w := m.ctx, m.store, m.watch
	switch v {
	case ViewClasses:
		w.add(state.ClassesKey, func(fn func(query.Entry)) func() {
			_, unsub := s.Classes().Watch(ctx, fn)
			return unsub
		})
	case ViewSubjects:
		w.add(state.SubjectsKey, func(fn func(query.Entry)) func() {
			_, unsub := s.Subjects().Watch(ctx, fn)
			return unsub
		})
	case ViewUsers:
		w.add(state.UsersKey, func(fn func(query.Entry)) func() {
			_, unsub := s.Users().Watch(ctx, fn)
			return unsub
		})
	case ViewMaterials:
		if m.classID <= 0 {
			return nil
		}
		classID := m.classID
		w.add(state.MaterialsKey(classID), func(fn func(query.Entry)) func() {
			_, unsub := s.Materials(classID).Watch(ctx, fn)
			return unsub
		})
	}
	return func() tea.Msg { return syncMsg{} }
}

// refetchView reloads the current table regardless of freshness.
func (m Model) refetchView() tea.Cmd {
	if m.store == nil {
		return nil
	}
	ctx, s, v, classID := m.ctx, m.store, m.currentView, m.classID
	return func() tea.Msg {
		var err error
		switch v {
		case ViewClasses:
			_, err = s.Classes().Refetch(ctx)
		case ViewSubjects:
			_, err = s.Subjects().Refetch(ctx)
		case ViewUsers:
			_, err = s.Users().Refetch(ctx)
		case ViewMaterials:
			_, err = s.Materials(classID).Refetch(ctx)
		}
		return mutationMsg{action: "refetch " + v.String(), err: err}
	}
}

func (m Model) createSubject(in api.SubjectInput) tea.Cmd {
	ctx, s := m.ctx, m.store
	return func() tea.Msg {
		res := s.CreateSubject(ctx, in)
		return mutationMsg{action: "create subject " + in.SubjectCode, err: res.Err()}
	}
}

// deleteSelected deletes the highlighted row of the current table.
func (m Model) deleteSelected() tea.Cmd {
	if m.store == nil {
		return nil
	}
	ctx, s, sel, classID := m.ctx, m.store, m.selected[m.currentView], m.classID
	label := m.selectedLabel()
	e := m.entries[m.currentView]

	var del func() error
	switch m.currentView {
	case ViewClasses:
		rows, _ := query.Value[[]api.Class](e)
		if sel < len(rows) {
			id := rows[sel].ID
			del = func() error { return s.DeleteClass(ctx, id).Err() }
		}
	case ViewSubjects:
		rows, _ := query.Value[[]api.Subject](e)
		if sel < len(rows) {
			id := rows[sel].ID
			del = func() error { return s.DeleteSubject(ctx, id).Err() }
		}
	case ViewUsers:
		rows, _ := query.Value[[]api.User](e)
		if sel < len(rows) {
			id := rows[sel].ID
			del = func() error { return s.DeleteUser(ctx, id).Err() }
		}
	case ViewMaterials:
		rows, _ := query.Value[[]api.Material](e)
		if sel < len(rows) {
			ref := state.Ref{ClassID: classID, ID: rows[sel].ID}
			del = func() error { return s.DeleteMaterial(ctx, ref).Err() }
		}
	}
	if del == nil {
		return nil
	}
	return func() tea.Msg {
		return mutationMsg{action: "delete " + label, err: del()}
	}
}

// Run starts the Bubble Tea program.
func Run(opts Options) error {
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))
	_, err := p.Run()
	m.watch.close()
	if errors.Is(err, tea.ErrProgramKilled) && m.ctx.Err() != nil {
		return nil
	}
	return err
}
