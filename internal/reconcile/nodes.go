package reconcile

import (
	"strconv"

	"github.com/SlpAus/ricebowl-portal/internal/campaign"
	"github.com/SlpAus/ricebowl-portal/internal/format"
	"github.com/SlpAus/ricebowl-portal/internal/ranking"
	"github.com/SlpAus/ricebowl-portal/internal/view"
)

func participantNodes(names []string) []view.Node {
	if len(names) == 0 {
		return []view.Node{{
			Text:  NoParticipantsText,
			Attrs: map[string]string{view.AttrEmpty: view.BoolAttr(true)},
		}}
	}
	nodes := make([]view.Node, len(names))
	for i, name := range names {
		nodes[i] = view.Node{Text: name}
	}
	return nodes
}

// winnerNodes 按位置给获奖者加上奖牌，第三名之后不加标记。
func winnerNodes(winners []string) []view.Node {
	nodes := make([]view.Node, len(winners))
	for i, name := range winners {
		pos := i + 1
		attrs := map[string]string{view.AttrRank: strconv.Itoa(pos)}
		text := name
		if format.HasMedal(pos) {
			medal := format.Medal(pos)
			attrs[view.AttrMedal] = medal
			text = medal + " " + name
		}
		nodes[i] = view.Node{Text: text, Attrs: attrs}
	}
	return nodes
}

func pastWeekNode(q campaign.Quiz) view.Node {
	children := winnerNodes(q.Winners)
	if len(children) == 0 {
		children = []view.Node{{
			Text:  NoWinnersText,
			Attrs: map[string]string{view.AttrEmpty: view.BoolAttr(true)},
		}}
	}
	children = append(children, view.Node{Text: format.Count(q.ParticipantCount) + " participants"})

	return view.Node{
		ID:   view.PastWeekID(q.WeekNumber),
		Text: quizTitle(q),
		Attrs: map[string]string{
			view.AttrWeek:     strconv.Itoa(q.WeekNumber),
			view.AttrExpanded: view.BoolAttr(false),
		},
		Children: children,
	}
}

func standingNode(s ranking.Standing) view.Node {
	amount := format.Currency(s.Amount)
	attrs := map[string]string{
		view.AttrRank:   strconv.Itoa(s.Position),
		view.AttrAmount: amount,
	}
	if format.HasMedal(s.Position) {
		attrs[view.AttrMedal] = format.Medal(s.Position)
	}
	return view.Node{
		Text:  format.Medal(s.Position) + " " + s.Group.Name + " " + amount,
		Attrs: attrs,
		Children: []view.Node{
			{Text: format.Medal(s.Position)},
			{Text: s.Group.Name},
			{Text: amount},
		},
	}
}

func podiumPlaceholder(pos int) view.Node {
	return view.Node{
		Text: PodiumPlaceholder,
		Attrs: map[string]string{
			view.AttrRank:  strconv.Itoa(pos),
			view.AttrMedal: format.Medal(pos),
			view.AttrEmpty: view.BoolAttr(true),
		},
	}
}
