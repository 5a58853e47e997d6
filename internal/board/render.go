package board

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/SlpAus/ricebowl-portal/internal/view"
	"github.com/charmbracelet/lipgloss"
)

const thermometerWidth = 30

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("141"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	bannerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("124")).Padding(0, 1)
	urgentStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	selectStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	fillStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	sectionStyle = lipgloss.NewStyle().MarginTop(1)
)

func (m Model) View() string {
	el := m.state.Elements
	var sections []string

	theme := el[view.BindTheme].Text
	sections = append(sections, titleStyle.Render("Rice Bowl")+" "+mutedStyle.Render("["+theme+"]"))

	if banner, ok := el[view.BindErrorBanner]; ok && !banner.Hidden && banner.Text != "" {
		sections = append(sections, bannerStyle.Render(banner.Text))
	}
	if ann := el[view.BindAnnouncements]; !ann.Hidden && len(ann.Children) > 0 {
		sections = append(sections, renderList("Announcements", ann.Children))
	}

	sections = append(sections, m.renderQuiz())
	sections = append(sections, m.renderPastWeeks())
	sections = append(sections, m.renderTotals())

	footer := mutedStyle.Render("↑/↓ 选择  enter 展开/折叠  r 刷新  q 退出")
	if m.status != "" {
		footer = m.status + "\n" + footer
	}
	sections = append(sections, footer)

	out := lipgloss.JoinVertical(lipgloss.Left, sections...)
	if m.width > 0 {
		out = lipgloss.NewStyle().MaxWidth(m.width).Render(out)
	}
	return out
}

func (m Model) renderQuiz() string {
	el := m.state.Elements
	if el[view.BindQuizSection].Hidden {
		return sectionStyle.Render(mutedStyle.Render("No quiz this week"))
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render(el[view.BindQuizTitle].Text))
	if desc := el[view.BindQuizDescription].Text; desc != "" {
		b.WriteString("\n" + desc)
	}
	if cd := el[view.BindCountdown]; !cd.Hidden && cd.Text != "" {
		text := cd.Text
		if cd.Attrs[view.AttrUrgent] == view.BoolAttr(true) {
			text = urgentStyle.Render(text)
		}
		b.WriteString("\nCloses in: " + text)
	}
	if link := el[view.BindQuizFormsLink].Attrs[view.AttrHref]; link != "" {
		b.WriteString("\n" + mutedStyle.Render(link))
	}
	b.WriteString(fmt.Sprintf("\nParticipants: %s", el[view.BindQuizParticipantCount].Text))
	if winners := el[view.BindQuizWinners].Children; len(winners) > 0 {
		b.WriteString("\n" + renderList("Winners", winners))
	}
	return sectionStyle.Render(b.String())
}

func (m Model) renderPastWeeks() string {
	nodes := m.state.Elements[view.BindPastWeeks].Children
	if len(nodes) == 0 {
		return ""
	}
	lines := []string{headerStyle.Render("Past Weeks")}
	for i, n := range nodes {
		marker := "▸"
		expanded := n.Attr(view.AttrExpanded) == view.BoolAttr(true)
		if expanded {
			marker = "▾"
		}
		line := marker + " " + n.Text
		if i == m.selected {
			line = selectStyle.Render(line)
		}
		lines = append(lines, line)
		if expanded {
			for _, c := range n.Children {
				lines = append(lines, "    "+c.Text)
			}
		}
	}
	return sectionStyle.Render(strings.Join(lines, "\n"))
}

func (m Model) renderTotals() string {
	el := m.state.Elements
	lines := []string{headerStyle.Render("Leaderboard")}
	for _, n := range el[view.BindLeaderboard].Children {
		lines = append(lines, n.Text)
	}
	lines = append(lines, "Rice Bowl total: "+el[view.BindClassTotal].Text)

	if agg := el[view.BindAggregateSection]; !agg.Hidden && el[view.BindAggregateTotal].Text != "" {
		lines = append(lines, "Grand total: "+el[view.BindAggregateTotal].Text)
		if fill := el[view.BindThermometerFill]; !fill.Hidden {
			lines = append(lines, thermometer(fill.Attrs[view.AttrFillPercent]))
		}
	}
	return sectionStyle.Render(strings.Join(lines, "\n"))
}

func renderList(title string, nodes []view.Node) string {
	lines := []string{headerStyle.Render(title)}
	for _, n := range nodes {
		lines = append(lines, "  • "+n.Text)
	}
	return strings.Join(lines, "\n")
}

// thermometer 把百分比渲染成一条横向进度条
func thermometer(percent string) string {
	p, err := strconv.ParseFloat(percent, 64)
	if err != nil {
		return ""
	}
	filled := int(p / 100 * thermometerWidth)
	filled = min(max(filled, 0), thermometerWidth)
	bar := fillStyle.Render(strings.Repeat("█", filled)) + mutedStyle.Render(strings.Repeat("░", thermometerWidth-filled))
	return fmt.Sprintf("[%s] %s%%", bar, percent)
}
