package tui

import (
	"fmt"
	"strings"

	"github.com/mmynk/chama/internal/apperr"
	"github.com/mmynk/chama/internal/livesync"
	"github.com/mmynk/chama/internal/models"
	"github.com/mmynk/chama/internal/pages"
)

// recentTransactions is how many ledger rows the member view lists.
const recentTransactions = 5

// View renders the TUI (required by Bubble Tea)
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.styles.Title.Render(m.title))
	b.WriteString("  ")
	b.WriteString(m.renderStatus())
	b.WriteString("\n")

	loaded, loading, err := m.admin.Loaded, m.admin.Loading, m.admin.Err
	if m.kind == KindMember {
		loaded, loading, err = m.member.Loaded, m.member.Loading, m.member.Err
	}

	switch {
	case !loaded && err != nil:
		b.WriteString("\n")
		b.WriteString(m.styles.Border.Render(m.styles.Error.Render("Error: ") + apperr.UserMessage(err)))
		b.WriteString("\n")
	case !loaded:
		b.WriteString("\n")
		if loading {
			b.WriteString(m.styles.Muted.Render("Loading..."))
		} else {
			b.WriteString(m.styles.Muted.Render("Waiting for data"))
		}
		b.WriteString("\n")
	case m.kind == KindAdmin:
		b.WriteString(m.renderAdmin())
	default:
		b.WriteString(m.renderMember())
	}

	if m.toast != "" {
		b.WriteString("\n")
		if m.toastErr {
			b.WriteString(m.styles.Error.Render("! " + m.toast))
		} else {
			b.WriteString(m.styles.Success.Render(m.toast))
		}
		b.WriteString("\n")
	}

	b.WriteString(m.renderHelpLine())
	return b.String()
}

// renderStatus shows liveness, cache and fetch state next to the title.
func (m Model) renderStatus() string {
	live, stale, loading := m.admin.Live, m.admin.Stale, m.admin.Loading
	if m.kind == KindMember {
		live, stale, loading = m.member.Live, m.member.Stale, m.member.Loading
	}

	var parts []string
	if live {
		parts = append(parts, m.styles.Success.Render("● live"))
	} else {
		parts = append(parts, m.styles.Warning.Render("○ offline"))
	}
	if stale {
		parts = append(parts, m.styles.Warning.Render("cached"))
	}
	if loading {
		parts = append(parts, m.styles.Muted.Render("refreshing"))
	}
	if m.busy {
		parts = append(parts, m.styles.Muted.Render("working"))
	}
	return strings.Join(parts, " ")
}

func (m Model) renderAdmin() string {
	v := m.admin
	snap := v.Snapshot

	var b strings.Builder
	b.WriteString(m.styles.Subtitle.Render(fmt.Sprintf("%s · %s · join code %s · daily ksh %s · required so far ksh %s",
		snap.GroupName, snap.Month, snap.JoinCode, money(snap.DailyContributionAmount), money(snap.RequiredSoFar))))
	b.WriteString("\n")
	if p := snap.LoanPolicy; p != nil {
		b.WriteString(m.styles.Muted.Render(fmt.Sprintf("Loan policy: %.1f%% %s", p.InterestRate, p.Method)))
		b.WriteString("\n")
	}

	b.WriteString(m.styles.Section.Render("Members"))
	b.WriteString("\n")
	for _, mem := range snap.Members {
		status := m.styles.Success.Render(mem.Status)
		if mem.Status != "met" {
			status = m.styles.Warning.Render(mem.Status)
		}
		name := mem.Name
		if mem.IsAdmin {
			name += " (admin)"
		}
		fmt.Fprintf(&b, "  %-24s ksh %10s  %s\n", name, money(mem.TotalContributed), status)
	}

	b.WriteString(m.renderSection(SectionLoans, m.loanRows(v)))
	b.WriteString(m.renderSection(SectionWithdrawals, m.withdrawalRows(v)))
	b.WriteString(m.renderSection(SectionJoinRequests, m.joinRows(v)))

	if list := pages.VisibleAnnouncements(v); len(list) > 0 {
		b.WriteString(m.styles.Section.Render("Announcements"))
		b.WriteString("\n")
		for _, a := range list {
			fmt.Fprintf(&b, "  %s: %s\n", a.Title, a.Message)
		}
	}
	return b.String()
}

func (m Model) renderSection(s Section, rows []string) string {
	var b strings.Builder
	header := s.String()
	if s == m.section {
		header = "▸ " + header
	}
	b.WriteString(m.styles.Section.Render(header))
	b.WriteString("\n")
	if len(rows) == 0 {
		b.WriteString(m.styles.Muted.Render("  none"))
		b.WriteString("\n")
		return b.String()
	}
	for i, row := range rows {
		line := "  " + row
		if s == m.section && i == m.cursor {
			line = m.styles.Selected.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) loanRows(v livesync.View[models.GroupSnapshot]) []string {
	rows := make([]string, 0, len(v.Snapshot.PendingLoans))
	for _, l := range v.Snapshot.PendingLoans {
		row := fmt.Sprintf("#%d %-20s ksh %s", l.ID, l.MemberName, money(l.Amount))
		if mark, ok := v.Overlay.Get(pages.LoanKey(l.ID)); ok {
			row += "  [" + mark + "]"
		}
		rows = append(rows, row)
	}
	return rows
}

func (m Model) withdrawalRows(v livesync.View[models.GroupSnapshot]) []string {
	list := pages.VisibleWithdrawals(v)
	rows := make([]string, 0, len(list))
	for _, w := range list {
		row := fmt.Sprintf("#%d %-20s ksh %s  %d✓ %d✗  %s", w.ID, w.RequestedBy, money(w.Amount), w.Approvals, w.Rejections, w.Reason)
		if mark, ok := v.Overlay.Get(pages.VoteKey(w.ID)); ok {
			row += "  [you " + mark + "]"
		}
		rows = append(rows, row)
	}
	return rows
}

func (m Model) joinRows(v livesync.View[models.GroupSnapshot]) []string {
	list := pages.VisibleJoinRequests(v)
	rows := make([]string, 0, len(list))
	for _, r := range list {
		rows = append(rows, fmt.Sprintf("#%d %s", r.ID, r.UserName))
	}
	return rows
}

func (m Model) renderMember() string {
	snap := m.member.Snapshot
	s := snap.Summary

	var b strings.Builder
	b.WriteString(m.styles.Subtitle.Render(fmt.Sprintf("%s · %s", s.GroupName, s.Month)))
	b.WriteString("\n")

	b.WriteString(m.styles.Section.Render("This month"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "  Contributed      ksh %s of %s required\n", money(s.MonthlyContributed), money(s.RequiredSoFar))
	if s.PendingAmount > 0 {
		b.WriteString("  " + m.styles.Warning.Render("Pending          ksh "+money(s.PendingAmount)) + "\n")
	}

	b.WriteString(m.styles.Section.Render("Group"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "  Funds            ksh %s\n", money(s.AdjustedGroupFunds))
	fmt.Fprintf(&b, "  Your share       %.2f%%\n", s.PercentageShare)
	fmt.Fprintf(&b, "  Loan limit       ksh %s\n", money(s.LoanLimit))

	b.WriteString(m.styles.Section.Render("Loans"))
	b.WriteString("\n")
	if len(snap.Loans) == 0 {
		b.WriteString(m.styles.Muted.Render("  none") + "\n")
	}
	for _, l := range snap.Loans {
		fmt.Fprintf(&b, "  #%d ksh %s, owing ksh %s\n", l.ID, money(l.Principal), money(l.AccruedBalance))
	}

	b.WriteString(m.styles.Section.Render("Recent transactions"))
	b.WriteString("\n")
	for i, tx := range snap.Transactions {
		if i == recentTransactions {
			break
		}
		sign := "+"
		if tx.Type == models.TransactionDebit {
			sign = "-"
		}
		fmt.Fprintf(&b, "  %s ksh %s  %s\n", sign, money(tx.Amount), tx.Reason)
	}

	if len(snap.Announcements) > 0 {
		b.WriteString(m.styles.Section.Render("Announcements"))
		b.WriteString("\n")
		for _, a := range snap.Announcements {
			fmt.Fprintf(&b, "  %s: %s\n", a.Title, a.Message)
		}
	}
	return b.String()
}

// renderHelpLine renders the key bindings
func (m Model) renderHelpLine() string {
	keys := "r refresh · esc dismiss · q quit"
	if m.kind == KindAdmin {
		keys = "tab section · ↑/↓ select · a approve · x reject · c cancel withdrawal · " + keys
	}
	return m.styles.Help.Render(keys)
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
