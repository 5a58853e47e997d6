// Package board 在终端中渲染引擎提交的视图。
package board

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/SlpAus/ricebowl-portal/internal/view"
	tea "github.com/charmbracelet/bubbletea"
)

// Controller 是终端界面可以触发的引擎操作
type Controller interface {
	ToggleWeek(ctx context.Context, week int) (bool, error)
	Refresh(ctx context.Context) (bool, error)
}

// StateMsg 携带一次 Flush 之后的视图
type StateMsg view.State

type toggledMsg struct {
	week     int
	expanded bool
}

type refreshMsg struct{ started bool }

type errMsg struct{ err error }

const commandTimeout = 5 * time.Second

// Model 是终端看板的 bubbletea 模型
type Model struct {
	ctrl     Controller
	state    view.State
	selected int
	status   string
	width    int
}

// New 用当前视图创建模型
func New(ctrl Controller, initial view.State) Model {
	return Model{ctrl: ctrl, state: initial}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case StateMsg:
		m.state = view.State(msg)
		if n := len(m.pastWeeks()); m.selected >= n {
			m.selected = max(n-1, 0)
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case toggledMsg:
		if msg.expanded {
			m.status = fmt.Sprintf("已展开第%d周", msg.week)
		} else {
			m.status = fmt.Sprintf("已折叠第%d周", msg.week)
		}
		return m, nil

	case refreshMsg:
		if msg.started {
			m.status = "正在刷新..."
		} else {
			m.status = "刷新进行中，已忽略"
		}
		return m, nil

	case errMsg:
		m.status = "错误: " + msg.err.Error()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	weeks := m.pastWeeks()
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
	case "down", "j":
		if m.selected < len(weeks)-1 {
			m.selected++
		}
	case "enter", " ":
		if m.selected < len(weeks) {
			return m, m.toggle(weeks[m.selected])
		}
	case "r":
		return m, m.refresh()
	default:
		// 数字键直接切换对应的往期条目
		if s := msg.String(); len(s) == 1 && s[0] >= '1' && s[0] <= '9' {
			want := int(s[0] - '0')
			for i, w := range weeks {
				if w == want {
					m.selected = i
					return m, m.toggle(w)
				}
			}
		}
	}
	return m, nil
}

func (m Model) toggle(week int) tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		open, err := ctrl.ToggleWeek(ctx, week)
		if err != nil {
			return errMsg{err}
		}
		return toggledMsg{week: week, expanded: open}
	}
}

func (m Model) refresh() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		started, err := ctrl.Refresh(ctx)
		if err != nil {
			return errMsg{err}
		}
		return refreshMsg{started: started}
	}
}

// pastWeeks 返回往期列表中的周数，保持列表顺序
func (m Model) pastWeeks() []int {
	var weeks []int
	for _, n := range m.state.Elements[view.BindPastWeeks].Children {
		if w, err := strconv.Atoi(n.Attr(view.AttrWeek)); err == nil {
			weeks = append(weeks, w)
		}
	}
	return weeks
}

// Forward 把文档的每次 Flush 转发给 send，直到 ctx 结束。
func Forward(ctx context.Context, doc *view.Document, send func(tea.Msg)) {
	updates, cancel := doc.Subscribe()
	defer cancel()
	for {
		select {
		case st := <-updates:
			send(StateMsg(st))
		case <-ctx.Done():
			return
		}
	}
}
