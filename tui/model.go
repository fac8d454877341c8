package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"macroprox/game"
	"macroprox/logger"
)

const (
	frameInterval = 16 * time.Millisecond
	maxFrameDt    = 100 * time.Millisecond // 卡顿后不做大步跳跃
)

var (
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#E8C4A0")).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8A890"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#E06C75")).Bold(true)
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7EBB81"))
)

// Options 界面参数
type Options struct {
	Title     string  // 状态栏标题，如 "host :5508"
	BaseSpeed float64 // 每秒移动的世界单位
}

type frameMsg time.Time

func nextFrame() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg { return frameMsg(t) })
}

// Model bubbletea 模型：每帧对共享状态执行一次 game.Step 并渲染快照
type Model struct {
	st    *game.State
	opts  Options
	keys  keyState
	world game.World

	last          time.Time
	width, height int
	dots          int
	now           func() time.Time
}

// New 创建界面模型
func New(st *game.State, opts Options) Model {
	if opts.BaseSpeed <= 0 {
		opts.BaseSpeed = game.BaseSpeed
	}
	return Model{
		st:     st,
		opts:   opts,
		world:  st.Snapshot(),
		width:  80,
		height: 24,
		now:    time.Now,
	}
}

func (m Model) Init() tea.Cmd {
	return nextFrame()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			return m, tea.Quit
		}
		m.keys.press(msg.String(), m.now())
		return m, nil
	case frameMsg:
		m.frame(time.Time(msg))
		return m, nextFrame()
	}
	return m, nil
}

// frame 推进一帧；出错后不再模拟
func (m *Model) frame(now time.Time) {
	dt := time.Duration(0)
	if !m.last.IsZero() {
		dt = min(now.Sub(m.last), maxFrameDt)
	}
	m.last = now
	m.dots = (m.dots + 1) % 60

	r := m.st.Readiness()
	switch {
	case r.IsError():
		// 锁故障时锁可能已不可用，只更新就绪状态
		m.world.Readiness = r
		return
	case !r.IsReady():
		m.world = m.st.Snapshot()
		return
	}
	m.world = game.Step(m.st, m.keys.input(now), dt, m.opts.BaseSpeed)
}

func (m Model) View() string {
	switch r := m.world.Readiness; r.Kind {
	case game.Failed:
		return m.viewError(r.Message)
	case game.Loading:
		return m.viewLoading()
	default:
		return m.viewGame()
	}
}

func (m Model) viewLoading() string {
	dots := strings.Repeat(".", m.dots/15+1)
	body := lipgloss.JoinVertical(lipgloss.Center,
		titleStyle.Render("MACROPROX"),
		"",
		mutedStyle.Render("Loading"+dots),
	)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, body)
}

func (m Model) viewError(msg string) string {
	body := lipgloss.JoinVertical(lipgloss.Center,
		titleStyle.Render("MACROPROX"),
		"",
		errorStyle.Render("Error: "+msg),
		mutedStyle.Render("Press q to quit"),
	)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, body)
}

func (m Model) viewGame() string {
	rows := max(m.height-1, 1)
	world := renderWorld(m.world, m.width, rows)

	status := fmt.Sprintf("%s  players %d", m.opts.Title, len(m.world.Players))
	if me, ok := m.world.OwnPlayer(); ok {
		status += fmt.Sprintf("  %s (%.0f, %.0f)", me.Name, me.Position.X, me.Position.Y)
	}
	status += "  wasd move, WASD sprint, q quit"
	return world + "\n" + statusStyle.Render(status)
}

// Run 运行界面直到用户退出或 ctx 取消
func Run(ctx context.Context, st *game.State, opts Options) error {
	p := tea.NewProgram(New(st, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run tui: %w", err)
	}
	logger.Log.Info("tui exited")
	return nil
}
