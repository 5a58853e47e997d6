package reconcile

import (
	"time"

	"github.com/SlpAus/ricebowl-portal/internal/campaign"
	"github.com/SlpAus/ricebowl-portal/internal/view"
	"github.com/shopspring/decimal"
)

// armRevealIfGated 在总额因揭晓时间未到而隐藏时，安排一次到点的揭晓。
func (r *Reconciler) armRevealIfGated(p *pass) {
	if p.aggregate != nil {
		return
	}
	if p.snap.Settings.Bool(campaign.SettingShowGrandTotal, false) {
		return
	}
	if !p.now.Before(r.opts.RevealAt) {
		return
	}
	r.armReveal(p.now, p.classTotal, p.alms)
}

func (r *Reconciler) armReveal(now time.Time, classTotal, alms decimal.Decimal) {
	r.state.reveal = r.sched.Every(r.opts.RevealAt.Sub(now), func() {
		r.revealAggregate(classTotal, alms)
	})
}

func (r *Reconciler) cancelReveal() {
	if r.state == nil || r.state.reveal == nil {
		return
	}
	r.state.reveal.Cancel()
	r.state.reveal = nil
}

// revealAggregate 用上一个快照的班级总额和在线捐款重新提交总额与温度计。
func (r *Reconciler) revealAggregate(classTotal, alms decimal.Decimal) {
	if r.state == nil {
		return
	}
	r.cancelReveal()

	now := r.sched.Now()
	if now.Before(r.opts.RevealAt) {
		r.armReveal(now, classTotal, alms)
		return
	}

	p := &pass{
		snap:       &campaign.Snapshot{},
		now:        now,
		alms:       alms,
		classTotal: classTotal,
		report:     &Report{At: now},
	}
	r.runStep(p, r.aggregateStep())
	r.runStep(p, r.thermometerStep())
	view.Flush(r.sink)

	last := &r.state.last
	last.AggregateShown = p.report.AggregateShown
	if len(p.report.Diagnostics) > 0 {
		last.Diagnostics = append(append([]Diagnostic(nil), last.Diagnostics...), p.report.Diagnostics...)
	}
	r.log.Info().Time("revealAt", r.opts.RevealAt).Bool("shown", p.report.AggregateShown).Msg("已到揭晓时间，总额已提交")
}
