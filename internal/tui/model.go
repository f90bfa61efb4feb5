// Package tui renders the live dashboards in the terminal with Bubble Tea.
//
// The model never fetches on its own. A synchronizer subscription feeds it
// AdminViewMsg or MemberViewMsg, and intents run through the page so their
// optimistic overlays show up in the next view.
package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mmynk/chama/internal/apperr"
	"github.com/mmynk/chama/internal/livesync"
	"github.com/mmynk/chama/internal/models"
	"github.com/mmynk/chama/internal/pages"
)

// actionTimeout bounds every intent started from a key press.
const actionTimeout = 15 * time.Second

// Kind selects which dashboard the model renders.
type Kind int

const (
	KindMember Kind = iota
	KindAdmin
)

// Section is the selectable list of the admin dashboard.
type Section int

const (
	SectionLoans Section = iota
	SectionWithdrawals
	SectionJoinRequests
	sectionCount
)

func (s Section) String() string {
	switch s {
	case SectionLoans:
		return "Loans"
	case SectionWithdrawals:
		return "Withdrawals"
	case SectionJoinRequests:
		return "Join requests"
	}
	return "Unknown"
}

// AdminActions are the intents reachable from the admin dashboard.
// *pages.AdminDashboard implements it.
type AdminActions interface {
	Refresh()
	ApproveLoan(ctx context.Context, loanID int64) (*models.MessageResponse, error)
	VoteWithdrawal(ctx context.Context, withdrawalID int64, approve bool) (*models.VoteResponse, error)
	CancelWithdrawal(ctx context.Context, withdrawalID int64) (*models.CancelWithdrawalResponse, error)
	DecideJoinRequest(ctx context.Context, requestID int64, approve bool) (*models.MessageResponse, error)
}

var _ AdminActions = (*pages.AdminDashboard)(nil)

// Model is the Bubble Tea model of a dashboard.
type Model struct {
	kind  Kind
	title string
	ctx   context.Context

	admin   livesync.View[models.GroupSnapshot]
	member  livesync.View[pages.MemberSnapshot]
	actions AdminActions
	refresh func()
	start   func()

	section Section
	cursor  int
	busy    bool

	// toast is the non-blocking message line.
	toast    string
	toastErr bool

	width    int
	height   int
	quitting bool

	styles Styles
}

// Styles contains lipgloss styles for the TUI
type Styles struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Section  lipgloss.Style
	Selected lipgloss.Style
	Error    lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Muted    lipgloss.Style
	Border   lipgloss.Style
	Help     lipgloss.Style
}

// DefaultStyles returns the default lipgloss styles
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42")), // Green
		Subtitle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")), // Gray
		Section: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")). // Cyan
			MarginTop(1),
		Selected: lipgloss.NewStyle().
			Background(lipgloss.Color("42")).
			Foreground(lipgloss.Color("230")).
			Bold(true),
		Error: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")), // Red
		Success: lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")), // Green
		Warning: lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")), // Yellow
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("42")).
			Padding(0, 1),
		Help: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1),
	}
}

// NewAdminModel creates the admin dashboard model.
func NewAdminModel(ctx context.Context, title string, actions AdminActions) Model {
	return Model{
		kind:    KindAdmin,
		title:   title,
		ctx:     ctx,
		actions: actions,
		refresh: actions.Refresh,
		section: SectionWithdrawals,
		styles:  DefaultStyles(),
	}
}

// NewMemberModel creates the member dashboard model. refresh may be nil.
func NewMemberModel(ctx context.Context, title string, refresh func()) Model {
	return Model{
		kind:    KindMember,
		title:   title,
		ctx:     ctx,
		refresh: refresh,
		styles:  DefaultStyles(),
	}
}

// AdminViewMsg carries a new admin dashboard view.
type AdminViewMsg livesync.View[models.GroupSnapshot]

// MemberViewMsg carries a new member dashboard view.
type MemberViewMsg livesync.View[pages.MemberSnapshot]

// ActionResultMsg reports the outcome of an intent.
type ActionResultMsg struct {
	Message string
	Err     error
}

// Init initializes the TUI model (required by Bubble Tea)
func (m Model) Init() tea.Cmd {
	if m.start == nil {
		return nil
	}
	start := m.start
	return func() tea.Msg {
		start()
		return nil
	}
}

// Update handles messages and updates the model state (required by Bubble Tea)
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case AdminViewMsg:
		m.admin = livesync.View[models.GroupSnapshot](msg)
		m.noteFetchError(msg.Loaded, msg.Err)
		m.clampCursor()
		return m, nil

	case MemberViewMsg:
		m.member = livesync.View[pages.MemberSnapshot](msg)
		m.noteFetchError(msg.Loaded, msg.Err)
		return m, nil

	case ActionResultMsg:
		m.busy = false
		if msg.Err != nil {
			m.toast, m.toastErr = apperr.UserMessage(msg.Err), true
		} else {
			m.toast, m.toastErr = msg.Message, false
		}
		return m, nil
	}

	return m, nil
}

// noteFetchError turns a failed re-fetch into a toast. Before the first
// snapshot the error is rendered in place of the dashboard instead.
func (m *Model) noteFetchError(loaded bool, err error) {
	if err != nil && loaded {
		m.toast, m.toastErr = apperr.UserMessage(err), true
	}
}

// handleKeyPress handles keyboard input
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.quitting = true
		return m, tea.Quit

	case "r":
		if m.refresh != nil {
			m.refresh()
		}
		return m, nil

	case "esc":
		m.toast = ""
		return m, nil
	}

	if m.kind != KindAdmin {
		return m, nil
	}

	switch msg.String() {
	case "tab":
		m.section = (m.section + 1) % sectionCount
		m.cursor = 0
	case "shift+tab":
		m.section = (m.section + sectionCount - 1) % sectionCount
		m.cursor = 0
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < m.rows()-1 {
			m.cursor++
		}
	case "a", "enter":
		return m.act(true)
	case "x":
		return m.act(false)
	case "c":
		return m.cancelWithdrawal()
	}
	return m, nil
}

// act approves (or rejects) the selected row of the current section.
func (m Model) act(approve bool) (tea.Model, tea.Cmd) {
	if m.busy || m.actions == nil {
		return m, nil
	}

	var run func(ctx context.Context) (string, error)
	switch m.section {
	case SectionLoans:
		loans := m.admin.Snapshot.PendingLoans
		if m.cursor >= len(loans) || !approve {
			return m, nil
		}
		id := loans[m.cursor].ID
		if m.admin.Overlay.Has(pages.LoanKey(id)) {
			return m, nil
		}
		run = func(ctx context.Context) (string, error) {
			resp, err := m.actions.ApproveLoan(ctx, id)
			return messageOf(resp, err, "Loan approved")
		}

	case SectionWithdrawals:
		list := pages.VisibleWithdrawals(m.admin)
		if m.cursor >= len(list) {
			return m, nil
		}
		id := list[m.cursor].ID
		// Already voted; wait for the next snapshot.
		if m.admin.Overlay.Has(pages.VoteKey(id)) {
			return m, nil
		}
		run = func(ctx context.Context) (string, error) {
			resp, err := m.actions.VoteWithdrawal(ctx, id, approve)
			if err != nil {
				return "", err
			}
			return resp.Message, nil
		}

	case SectionJoinRequests:
		list := pages.VisibleJoinRequests(m.admin)
		if m.cursor >= len(list) {
			return m, nil
		}
		id := list[m.cursor].ID
		run = func(ctx context.Context) (string, error) {
			resp, err := m.actions.DecideJoinRequest(ctx, id, approve)
			return messageOf(resp, err, "Join request updated")
		}
	}

	m.busy = true
	return m, m.perform(run)
}

func (m Model) cancelWithdrawal() (tea.Model, tea.Cmd) {
	if m.busy || m.actions == nil || m.section != SectionWithdrawals {
		return m, nil
	}
	list := pages.VisibleWithdrawals(m.admin)
	if m.cursor >= len(list) {
		return m, nil
	}
	id := list[m.cursor].ID

	m.busy = true
	return m, m.perform(func(ctx context.Context) (string, error) {
		resp, err := m.actions.CancelWithdrawal(ctx, id)
		if err != nil {
			return "", err
		}
		return resp.Message, nil
	})
}

func (m Model) perform(run func(ctx context.Context) (string, error)) tea.Cmd {
	parent := m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, actionTimeout)
		defer cancel()
		message, err := run(ctx)
		return ActionResultMsg{Message: message, Err: err}
	}
}

func messageOf(resp *models.MessageResponse, err error, fallback string) (string, error) {
	if err != nil {
		return "", err
	}
	if resp == nil || resp.Message == "" {
		return fallback, nil
	}
	return resp.Message, nil
}

// rows is the length of the current admin section.
func (m Model) rows() int {
	switch m.section {
	case SectionLoans:
		return len(m.admin.Snapshot.PendingLoans)
	case SectionWithdrawals:
		return len(pages.VisibleWithdrawals(m.admin))
	case SectionJoinRequests:
		return len(pages.VisibleJoinRequests(m.admin))
	}
	return 0
}

func (m *Model) clampCursor() {
	if n := m.rows(); m.cursor >= n {
		m.cursor = max(n-1, 0)
	}
}
