package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmynk/chama/internal/livesync"
	"github.com/mmynk/chama/internal/models"
	"github.com/mmynk/chama/internal/pages"
)

// RunAdmin mounts the admin dashboard and blocks until the user quits or
// ctx is canceled. The page is closed on return.
func RunAdmin(ctx context.Context, title string, page *pages.AdminDashboard, opts ...tea.ProgramOption) error {
	return run(ctx, NewAdminModel(ctx, title, page), page.Synchronizer, func(v livesync.View[models.GroupSnapshot]) tea.Msg {
		return AdminViewMsg(v)
	}, opts)
}

// RunMember mounts the member dashboard. See RunAdmin.
func RunMember(ctx context.Context, title string, page *pages.MemberDashboard, opts ...tea.ProgramOption) error {
	return run(ctx, NewMemberModel(ctx, title, page.Refresh), page.Synchronizer, func(v livesync.View[pages.MemberSnapshot]) tea.Msg {
		return MemberViewMsg(v)
	}, opts)
}

// run wires the synchronizer into the program. The synchronizer starts from
// Init so that its first publish reaches a running event loop.
func run[T any](ctx context.Context, m Model, sync *livesync.Synchronizer[T], wrap func(livesync.View[T]) tea.Msg, opts []tea.ProgramOption) error {
	m.start = func() { sync.Start(ctx) }
	program := tea.NewProgram(m, append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)...)

	unsubscribe := sync.Subscribe(func(v livesync.View[T]) {
		program.Send(wrap(v))
	})
	defer unsubscribe()
	defer sync.Close()

	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("failed to run dashboard: %w", err)
	}
	return nil
}
