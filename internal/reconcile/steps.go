package reconcile

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/SlpAus/ricebowl-portal/internal/campaign"
	"github.com/SlpAus/ricebowl-portal/internal/format"
	"github.com/SlpAus/ricebowl-portal/internal/gate"
	"github.com/SlpAus/ricebowl-portal/internal/ranking"
	"github.com/SlpAus/ricebowl-portal/internal/view"
	"github.com/shopspring/decimal"
)

// 空状态文本
const (
	NoDataText         = "No data yet"
	NoParticipantsText = "No participants yet"
	NoWinnersText      = "Winners not announced yet"
	PodiumPlaceholder  = "TBD"
	podiumSize         = 3
)

func (r *Reconciler) applyTheme(p *pass) error {
	r.commitTheme(p.snap.Settings.String(campaign.SettingTheme, r.opts.DefaultTheme))
	return nil
}

func (r *Reconciler) defaultTheme(*pass) {
	r.commitTheme(r.opts.DefaultTheme)
}

func (r *Reconciler) commitTheme(theme string) {
	r.sink.SetText(view.BindTheme, theme)
	r.sink.SetAttr(view.BindTheme, view.AttrTheme, theme)
}

func (r *Reconciler) applyBranding(p *pass) error {
	settings := p.snap.Settings
	if logo, ok := settings.Lookup(campaign.SettingSchoolLogoURL); ok {
		r.sink.SetAttr(view.BindSchoolLogo, view.AttrSrc, logo)
		r.sink.SetVisible(view.BindSchoolLogo, true)
	} else {
		r.sink.SetVisible(view.BindSchoolLogo, false)
	}
	r.sink.SetVisible(view.BindCRSImagery, settings.Bool(campaign.SettingEnableCRSImagery, true))
	return nil
}

func (r *Reconciler) applyDonationLink(p *pass) error {
	link, ok := p.snap.Settings.Lookup(campaign.SettingDonationLink)
	if !ok {
		r.diagnose(p, "donation-link", "缺少捐款链接，保留现有链接")
		return nil
	}
	r.sink.SetAttr(view.BindDonationLinks, view.AttrHref, link)
	return nil
}

func (r *Reconciler) applyOnlineAlms(p *pass) error {
	amount := p.snap.Settings.Amount(campaign.SettingOnlineAlmsTotal)
	if raw, present := p.snap.Settings.Lookup(campaign.SettingOnlineAlmsTotal); present && !amount.Valid {
		r.diagnose(p, "online-alms", fmt.Sprintf("在线捐款总额无效: %q", raw))
	}
	p.alms = amount.OrZero()
	r.sink.SetText(view.BindOnlineAlms, format.Currency(p.alms))
	return nil
}

func (r *Reconciler) defaultOnlineAlms(p *pass) {
	p.alms = decimal.Zero
	r.sink.SetText(view.BindOnlineAlms, format.Currency(decimal.Zero))
}

func (r *Reconciler) applyAnnouncements(p *pass) error {
	enabled := p.snap.EnabledAnnouncements()
	if len(enabled) == 0 {
		r.hideAnnouncements(p)
		return nil
	}
	nodes := make([]view.Node, len(enabled))
	for i, a := range enabled {
		nodes[i] = view.Node{Text: a.Text}
	}
	r.sink.ReplaceChildren(view.BindAnnouncements, nodes)
	r.sink.SetVisible(view.BindAnnouncements, true)
	return nil
}

func (r *Reconciler) hideAnnouncements(*pass) {
	r.sink.ReplaceChildren(view.BindAnnouncements, nil)
	r.sink.SetVisible(view.BindAnnouncements, false)
}

func (r *Reconciler) applyCurrentQuiz(p *pass) error {
	quiz, ok := p.snap.CurrentQuiz()
	if !ok {
		r.hideCurrentQuiz(p)
		r.diagnose(p, "current-quiz", fmt.Sprintf("第%d周没有可见的问答", p.snap.CurrentWeek))
		return nil
	}
	p.report.HasCurrentQuiz = true

	r.sink.SetText(view.BindQuizTitle, quizTitle(quiz))
	r.sink.SetText(view.BindQuizDescription, quiz.Description)
	if quiz.FormsLink != "" {
		r.sink.SetAttr(view.BindQuizFormsLink, view.AttrHref, quiz.FormsLink)
		r.sink.SetVisible(view.BindQuizFormsLink, true)
	} else {
		r.sink.SetVisible(view.BindQuizFormsLink, false)
	}
	r.sink.SetText(view.BindQuizParticipantCount, format.Count(quiz.ParticipantCount))
	r.sink.ReplaceChildren(view.BindQuizParticipants, participantNodes(quiz.Participants))
	r.sink.ReplaceChildren(view.BindQuizWinners, winnerNodes(quiz.Winners))
	r.sink.SetVisible(view.BindQuizWinners, len(quiz.Winners) > 0)
	r.sink.SetVisible(view.BindQuizSection, true)

	if quiz.ClosesAt == nil {
		r.stopCountdown()
		r.diagnose(p, "current-quiz", fmt.Sprintf("第%d周缺少有效的截止时间", quiz.WeekNumber))
		return nil
	}
	target := *quiz.ClosesAt
	if prev := r.state.closeTarget; prev == nil || !prev.Equal(target) {
		r.log.Info().Int("week", quiz.WeekNumber).Time("closesAt", target).Msg("截止时间已更新")
	}
	r.state.closeTarget = &target
	r.countdown.Start(target)
	return nil
}

func (r *Reconciler) hideCurrentQuiz(*pass) {
	r.stopCountdown()
	r.sink.SetVisible(view.BindQuizSection, false)
}

func (r *Reconciler) stopCountdown() {
	r.countdown.Stop()
	r.state.closeTarget = nil
	r.sink.SetText(view.BindCountdown, "")
	r.sink.SetVisible(view.BindCountdown, false)
}

func (r *Reconciler) applyPastWeeks(p *pass) error {
	past := p.snap.PastQuizzes()
	weeks := make([]int, len(past))
	nodes := make([]view.Node, len(past))
	for i, q := range past {
		weeks[i] = q.WeekNumber
		nodes[i] = pastWeekNode(q)
	}

	r.state.pastWeeks = weeks
	r.state.expanded = make(map[int]bool, len(weeks))
	r.sink.ReplaceChildren(view.BindPastWeeks, nodes)
	r.sink.SetVisible(view.BindPastWeeks, len(nodes) > 0)
	return nil
}

func (r *Reconciler) clearPastWeeks(*pass) {
	r.state.pastWeeks = nil
	r.state.expanded = make(map[int]bool)
	r.sink.ReplaceChildren(view.BindPastWeeks, nil)
	r.sink.SetVisible(view.BindPastWeeks, false)
}

func (r *Reconciler) applyLeaderboard(p *pass) error {
	standings := ranking.Rank(p.snap.Groups)
	if len(standings) == 0 {
		r.emptyLeaderboard(p)
		return nil
	}

	rows := make([]view.Node, len(standings))
	for i, s := range standings {
		rows[i] = standingNode(s)
	}
	podium := make([]view.Node, 0, podiumSize)
	for _, s := range ranking.Top(standings, podiumSize) {
		podium = append(podium, standingNode(s))
	}
	for pos := len(podium) + 1; pos <= podiumSize; pos++ {
		podium = append(podium, podiumPlaceholder(pos))
	}

	r.sink.ReplaceChildren(view.BindLeaderboard, rows)
	r.sink.ReplaceChildren(view.BindPodium, podium)
	return nil
}

func (r *Reconciler) emptyLeaderboard(*pass) {
	r.sink.ReplaceChildren(view.BindLeaderboard, []view.Node{{
		Text:  NoDataText,
		Attrs: map[string]string{view.AttrEmpty: view.BoolAttr(true)},
	}})
	podium := make([]view.Node, podiumSize)
	for i := range podium {
		podium[i] = podiumPlaceholder(i + 1)
	}
	r.sink.ReplaceChildren(view.BindPodium, podium)
}

func (r *Reconciler) applyClassTotal(p *pass) error {
	p.classTotal = p.snap.ClassTotal.OrZero()
	r.sink.SetText(view.BindClassTotal, format.Currency(p.classTotal))
	return nil
}

func (r *Reconciler) defaultClassTotal(p *pass) {
	p.classTotal = decimal.Zero
	r.sink.SetText(view.BindClassTotal, format.Currency(decimal.Zero))
}

func (r *Reconciler) applyAggregate(p *pass) error {
	force := p.snap.Settings.Bool(campaign.SettingShowGrandTotal, false)
	if !gate.IsVisible(force, p.now, r.opts.RevealAt) {
		r.hideAggregate(p)
		return nil
	}
	total := p.classTotal.Add(p.alms)
	p.aggregate = &total
	p.report.AggregateShown = true
	r.sink.SetText(view.BindAggregateTotal, format.Currency(total))
	r.sink.SetVisible(view.BindAggregateSection, true)
	return nil
}

func (r *Reconciler) hideAggregate(p *pass) {
	p.aggregate = nil
	p.report.AggregateShown = false
	r.sink.SetText(view.BindAggregateTotal, "")
	r.sink.SetVisible(view.BindAggregateSection, false)
}

func (r *Reconciler) applyThermometer(p *pass) error {
	if p.aggregate == nil {
		r.clearThermometer(p)
		return nil
	}
	if !r.opts.ScaleMax.IsPositive() {
		return errors.New("温度计刻度上限必须为正数")
	}
	fill := Fill(*p.aggregate, r.opts.ScaleMax, r.opts.MinFill)
	r.sink.SetAttr(view.BindThermometerFill, view.AttrFillPercent, format.Percent(fill))
	r.sink.SetVisible(view.BindThermometerFill, true)
	return nil
}

func (r *Reconciler) clearThermometer(*pass) {
	r.sink.SetAttr(view.BindThermometerFill, view.AttrFillPercent, "")
	r.sink.SetVisible(view.BindThermometerFill, false)
}

// Fill 计算温度计的填充比例：clamp(min(total/scaleMax, 1), minFill, 1)。
// 超出刻度的总额仍按真实值显示，只有填充比例封顶为1。
func Fill(total, scaleMax, minFill decimal.Decimal) decimal.Decimal {
	one := decimal.NewFromInt(1)
	ratio := one
	if scaleMax.IsPositive() {
		ratio = decimal.Min(total.Div(scaleMax), one)
	}
	return decimal.Min(decimal.Max(ratio, minFill), one)
}

func quizTitle(q campaign.Quiz) string {
	if q.CountryName == "" {
		return "Week " + strconv.Itoa(q.WeekNumber)
	}
	return fmt.Sprintf("Week %d: %s", q.WeekNumber, q.CountryName)
}
