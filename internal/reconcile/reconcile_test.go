package reconcile

import (
	"strings"
	"testing"
	"time"

	"github.com/SlpAus/ricebowl-portal/internal/campaign"
	"github.com/SlpAus/ricebowl-portal/internal/countdown"
	"github.com/SlpAus/ricebowl-portal/internal/schedule"
	"github.com/SlpAus/ricebowl-portal/internal/view"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	now      = time.Date(2026, 3, 11, 15, 0, 0, 0, time.UTC)
	revealAt = time.Date(2026, 4, 5, 0, 0, 0, 0, time.UTC)
)

type fixture struct {
	clock *schedule.Manual
	rec   *view.Recorder
	r     *Reconciler
}

func newFixture(t *testing.T, mutate ...func(*Options)) *fixture {
	t.Helper()
	opts := DefaultOptions()
	opts.RevealAt = revealAt
	for _, m := range mutate {
		m(&opts)
	}
	clock := schedule.NewManual(now)
	rec := view.NewRecorder()
	return &fixture{clock: clock, rec: rec, r: New(clock, rec, opts)}
}

func (f *fixture) doc() *view.Document { return f.rec.Doc() }

func at(t time.Time) *time.Time { return &t }

func amount(s string) campaign.Amount { return campaign.ParseAmount(s) }

func sampleSnapshot() *campaign.Snapshot {
	return &campaign.Snapshot{
		CurrentWeek: 3,
		Quizzes: []campaign.Quiz{
			{WeekNumber: 1, Visible: true, CountryName: "Guatemala", ParticipantCount: 41, Winners: []string{"Ana", "Ben", "Cy"}},
			{WeekNumber: 2, Visible: true, CountryName: "Zambia", ParticipantCount: 12},
			{
				WeekNumber: 3, Visible: true, CountryName: "Kenya", Description: "Farming",
				FormsLink: "https://forms.example/3", ClosesAt: at(now.Add(90 * time.Second)),
				ParticipantCount: 2, Participants: []string{"Dee", "Eli"}, Winners: []string{"Ana"},
			},
			{WeekNumber: 4, Visible: false, CountryName: "Peru"},
		},
		Groups: []campaign.Group{
			{Name: "3A", Amount: amount("120.5")},
			{Name: "3B", Amount: campaign.Amount{}},
			{Name: "4A", Amount: amount("300")},
		},
		Settings: campaign.Settings{
			campaign.SettingDonationLink:    "https://crs.example/give",
			campaign.SettingOnlineAlmsTotal: "250.00",
			campaign.SettingShowGrandTotal:  "false",
			campaign.SettingTheme:           "ocean",
		},
		Announcements: []campaign.Announcement{
			{Text: "Bring rice bowls Friday", Enabled: true},
			{Text: "Hidden", Enabled: false},
		},
		ClassTotal: amount("420.5"),
	}
}

func texts(nodes []view.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Text
	}
	return out
}

func TestReconcileFullSnapshot(t *testing.T) {
	f := newFixture(t)
	report := f.r.Reconcile(sampleSnapshot())
	doc := f.doc()

	assert.Equal(t, "ocean", doc.Text(view.BindTheme))
	assert.Equal(t, "https://crs.example/give", doc.Attr(view.BindDonationLinks, view.AttrHref))
	assert.Equal(t, "$250.00", doc.Text(view.BindOnlineAlms))
	assert.Equal(t, []string{"Bring rice bowls Friday"}, texts(doc.Children(view.BindAnnouncements)))

	assert.True(t, doc.Visible(view.BindQuizSection))
	assert.Equal(t, "Week 3: Kenya", doc.Text(view.BindQuizTitle))
	assert.Equal(t, "https://forms.example/3", doc.Attr(view.BindQuizFormsLink, view.AttrHref))
	assert.Equal(t, []string{"Dee", "Eli"}, texts(doc.Children(view.BindQuizParticipants)))
	assert.Equal(t, []string{"🥇 Ana"}, texts(doc.Children(view.BindQuizWinners)))
	assert.Equal(t, "1 min, 30 sec", doc.Text(view.BindCountdown))
	assert.Equal(t, countdown.Running, f.r.Countdown().State())

	past := doc.Children(view.BindPastWeeks)
	require.Len(t, past, 2)
	assert.Equal(t, view.PastWeekID(2), past[0].ID)
	assert.Equal(t, view.PastWeekID(1), past[1].ID)
	assert.Equal(t, "false", past[0].Attr(view.AttrExpanded))

	board := doc.Children(view.BindLeaderboard)
	require.Len(t, board, 3)
	assert.Equal(t, "🥇 4A $300.00", board[0].Text)
	assert.Equal(t, "🥈 3A $120.50", board[1].Text)
	assert.Equal(t, "🥉 3B $0.00", board[2].Text)
	assert.Len(t, doc.Children(view.BindPodium), 3)

	assert.Equal(t, "$420.50", doc.Text(view.BindClassTotal))
	assert.False(t, doc.Visible(view.BindAggregateSection))
	assert.False(t, doc.Visible(view.BindErrorBanner))

	assert.Equal(t, 3, report.CurrentWeek)
	assert.True(t, report.HasCurrentQuiz)
	assert.False(t, report.AggregateShown)
	assert.Empty(t, report.Diagnostics)
	assert.EqualValues(t, 1, doc.Current().Sequence, "一个快照只产生一个修订")
}

func TestReconcileIsIdempotent(t *testing.T) {
	f := newFixture(t)
	snap := sampleSnapshot()

	f.r.Reconcile(snap)
	first := f.rec.Ops()
	f.rec.Reset()
	f.r.Reconcile(snap)

	assert.Equal(t, first, f.rec.Ops())
	assert.Equal(t, 2, f.clock.Pending(), "只能有一个倒计时任务和一个揭晓任务")
}

func TestReconcileFlushesOnce(t *testing.T) {
	f := newFixture(t)
	f.r.Reconcile(sampleSnapshot())

	flushes := 0
	for _, op := range f.rec.Raw() {
		if op.Kind == "flush" {
			flushes++
		}
	}
	assert.Equal(t, 1, flushes)
	assert.Equal(t, "flush", f.rec.Ops()[len(f.rec.Ops())-1])
}

func TestAggregateHiddenBeforeCutoff(t *testing.T) {
	f := newFixture(t)
	f.r.Reconcile(sampleSnapshot())

	state := f.doc().Current()
	assert.True(t, state.Elements[view.BindAggregateSection].Hidden)
	assert.Empty(t, state.Elements[view.BindAggregateTotal].Text)
	assert.Empty(t, state.Elements[view.BindThermometerFill].Attrs[view.AttrFillPercent])
	for _, op := range f.rec.Raw() {
		assert.NotContains(t, op.Value, "670.5", "总额不能出现在任何提交中")
	}
}

func TestAggregateRevealedByFlag(t *testing.T) {
	f := newFixture(t)
	snap := sampleSnapshot()
	snap.Settings[campaign.SettingShowGrandTotal] = "true"

	report := f.r.Reconcile(snap)

	assert.True(t, report.AggregateShown)
	assert.True(t, f.doc().Visible(view.BindAggregateSection))
	assert.Equal(t, "$670.50", f.doc().Text(view.BindAggregateTotal))
	assert.Equal(t, "13.41", f.doc().Attr(view.BindThermometerFill, view.AttrFillPercent))
}

func TestAggregateRevealedAtCutoff(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.RevealAt = now })
	f.r.Reconcile(sampleSnapshot())
	assert.True(t, f.doc().Visible(view.BindAggregateSection))
}

func TestAggregateDefaultsMissingParts(t *testing.T) {
	f := newFixture(t)
	snap := sampleSnapshot()
	snap.Settings[campaign.SettingShowGrandTotal] = "true"
	snap.Settings[campaign.SettingOnlineAlmsTotal] = "lots"
	snap.ClassTotal = campaign.Amount{}

	report := f.r.Reconcile(snap)

	assert.Equal(t, "$0.00", f.doc().Text(view.BindOnlineAlms))
	assert.Equal(t, "$0.00", f.doc().Text(view.BindClassTotal))
	assert.Equal(t, "$0.00", f.doc().Text(view.BindAggregateTotal))
	assert.Equal(t, "2", f.doc().Attr(view.BindThermometerFill, view.AttrFillPercent))
	require.Len(t, report.Diagnostics, 1)
	assert.Equal(t, "online-alms", report.Diagnostics[0].Step)
}

func TestThermometerSaturates(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.ScaleMax = decimal.NewFromInt(100) })
	snap := sampleSnapshot()
	snap.Settings[campaign.SettingShowGrandTotal] = "true"

	f.r.Reconcile(snap)

	assert.Equal(t, "$670.50", f.doc().Text(view.BindAggregateTotal))
	assert.Equal(t, "100", f.doc().Attr(view.BindThermometerFill, view.AttrFillPercent))
}

func TestFill(t *testing.T) {
	d := decimal.RequireFromString
	tests := []struct {
		total, scale, min, want string
	}{
		{"0", "5000", "0.02", "0.02"},
		{"2500", "5000", "0.02", "0.5"},
		{"9000", "5000", "0.02", "1"},
		{"50", "5000", "0.02", "0.02"},
		{"100", "0", "0.02", "1"},
	}
	for _, tt := range tests {
		got := Fill(d(tt.total), d(tt.scale), d(tt.min))
		assert.True(t, got.Equal(d(tt.want)), "%s/%s = %s", tt.total, tt.scale, got)
	}
}

func TestEmptyGroups(t *testing.T) {
	f := newFixture(t)
	snap := sampleSnapshot()
	snap.Groups = nil

	assert.NotPanics(t, func() { f.r.Reconcile(snap) })

	board := f.doc().Children(view.BindLeaderboard)
	require.Len(t, board, 1)
	assert.Equal(t, NoDataText, board[0].Text)
	podium := f.doc().Children(view.BindPodium)
	require.Len(t, podium, 3)
	for i, n := range podium {
		assert.Equal(t, PodiumPlaceholder, n.Text)
		assert.Equal(t, "true", n.Attr(view.AttrEmpty), i)
	}
}

func TestPodiumPadsShortLeaderboard(t *testing.T) {
	f := newFixture(t)
	snap := sampleSnapshot()
	snap.Groups = snap.Groups[:1]

	f.r.Reconcile(snap)

	podium := f.doc().Children(view.BindPodium)
	require.Len(t, podium, 3)
	assert.Equal(t, "🥇 3A $120.50", podium[0].Text)
	assert.Equal(t, PodiumPlaceholder, podium[1].Text)
	assert.Equal(t, "🥉", podium[2].Attr(view.AttrMedal))
}

func TestWinnersMedals(t *testing.T) {
	assert.Equal(t, []string{"🥇 Ana"}, texts(winnerNodes([]string{"Ana"})))
	nodes := winnerNodes([]string{"A", "B", "C", "D"})
	assert.Equal(t, []string{"🥇 A", "🥈 B", "🥉 C", "D"}, texts(nodes))
	assert.Empty(t, nodes[3].Attr(view.AttrMedal))
	assert.Equal(t, "4", nodes[3].Attr(view.AttrRank))
}

func TestEmptyParticipantsPlaceholder(t *testing.T) {
	f := newFixture(t)
	snap := sampleSnapshot()
	snap.Quizzes[2].Participants = nil

	f.r.Reconcile(snap)

	assert.Equal(t, []string{NoParticipantsText}, texts(f.doc().Children(view.BindQuizParticipants)))
}

func TestMissingCurrentQuiz(t *testing.T) {
	f := newFixture(t)
	f.r.Reconcile(sampleSnapshot())
	require.Equal(t, 2, f.clock.Pending())

	snap := sampleSnapshot()
	snap.CurrentWeek = 4
	report := f.r.Reconcile(snap)

	assert.False(t, report.HasCurrentQuiz)
	assert.False(t, f.doc().Visible(view.BindQuizSection))
	assert.Equal(t, countdown.Idle, f.r.Countdown().State())
	assert.Equal(t, 1, f.clock.Pending(), "只剩揭晓任务")
	require.Len(t, report.Diagnostics, 1)
	assert.Equal(t, "current-quiz", report.Diagnostics[0].Step)

	assert.Len(t, f.doc().Children(view.BindPastWeeks), 3, "其余部分照常渲染")
	assert.Equal(t, "$420.50", f.doc().Text(view.BindClassTotal))
}

func TestMissingCloseTimeHidesCountdown(t *testing.T) {
	f := newFixture(t)
	snap := sampleSnapshot()
	snap.Quizzes[2].ClosesAt = nil

	report := f.r.Reconcile(snap)

	assert.True(t, f.doc().Visible(view.BindQuizSection))
	assert.False(t, f.doc().Visible(view.BindCountdown))
	assert.Equal(t, countdown.Idle, f.r.Countdown().State())
	require.Len(t, report.Diagnostics, 1)
}

func TestCountdownRestartsOnNewTarget(t *testing.T) {
	f := newFixture(t)
	f.r.Reconcile(sampleSnapshot())

	snap := sampleSnapshot()
	snap.Quizzes[2].ClosesAt = at(now.Add(2 * time.Hour))
	f.r.Reconcile(snap)

	assert.Equal(t, 2, f.clock.Pending())
	target, ok := f.r.Countdown().Target()
	require.True(t, ok)
	assert.Equal(t, now.Add(2*time.Hour), target)
	assert.Equal(t, "2 hr, 0 min, 0 sec", f.doc().Text(view.BindCountdown))
}

func TestCountdownExpiresBetweenSnapshots(t *testing.T) {
	f := newFixture(t)
	f.r.Reconcile(sampleSnapshot())

	f.clock.Advance(90 * time.Second)

	assert.Equal(t, countdown.Expired, f.r.Countdown().State())
	assert.Equal(t, "Closed", f.doc().Current().Elements[view.BindCountdown].Text)
	assert.Equal(t, 1, f.clock.Pending(), "只剩揭晓任务")
}

func TestMissingDonationLinkLeavesLinksUntouched(t *testing.T) {
	f := newFixture(t)
	f.r.Reconcile(sampleSnapshot())

	snap := sampleSnapshot()
	delete(snap.Settings, campaign.SettingDonationLink)
	report := f.r.Reconcile(snap)

	assert.Equal(t, "https://crs.example/give", f.doc().Attr(view.BindDonationLinks, view.AttrHref))
	require.Len(t, report.Diagnostics, 1)
	assert.Equal(t, "donation-link", report.Diagnostics[0].Step)
}

func TestDefaultsForEmptySettings(t *testing.T) {
	f := newFixture(t)
	snap := sampleSnapshot()
	snap.Settings = nil
	snap.Announcements = nil

	f.r.Reconcile(snap)

	assert.Equal(t, campaign.DefaultTheme, f.doc().Text(view.BindTheme))
	assert.Equal(t, "$0.00", f.doc().Text(view.BindOnlineAlms))
	assert.False(t, f.doc().Visible(view.BindAnnouncements))
	assert.False(t, f.doc().Visible(view.BindSchoolLogo))
	assert.True(t, f.doc().Visible(view.BindCRSImagery))
}

func TestBrandingSettings(t *testing.T) {
	f := newFixture(t)
	snap := sampleSnapshot()
	snap.Settings[campaign.SettingSchoolLogoURL] = "https://school.example/logo.png"
	snap.Settings[campaign.SettingEnableCRSImagery] = "false"

	f.r.Reconcile(snap)

	assert.True(t, f.doc().Visible(view.BindSchoolLogo))
	assert.Equal(t, "https://school.example/logo.png", f.doc().Attr(view.BindSchoolLogo, view.AttrSrc))
	assert.False(t, f.doc().Visible(view.BindCRSImagery))
}

func TestNonNumericAmountRankedAsZero(t *testing.T) {
	f := newFixture(t)
	snap := sampleSnapshot()
	snap.Groups = []campaign.Group{
		{Name: "bad", Amount: amount("n/a")},
		{Name: "good", Amount: amount("1")},
	}

	f.r.Reconcile(snap)

	board := f.doc().Children(view.BindLeaderboard)
	assert.Equal(t, "🥈 bad $0.00", board[1].Text)
}

func TestSnapshotIssuesBecomeDiagnostics(t *testing.T) {
	f := newFixture(t)
	snap := sampleSnapshot()
	snap.Issues = []campaign.Issue{{Field: "classes[1].rice_bowl_amount", Reason: "不是数字金额"}}

	report := f.r.Reconcile(snap)

	require.Len(t, report.Diagnostics, 1)
	assert.Equal(t, "snapshot", report.Diagnostics[0].Step)
	assert.True(t, strings.HasPrefix(report.Diagnostics[0].Message, "classes[1]"))
}

type panicHooks struct {
	diagnostics []string
	elapsed     int
}

func (h *panicHooks) ObserveReconcile(time.Duration, int) { h.elapsed++ }
func (h *panicHooks) ObserveDiagnostic(step string)        { h.diagnostics = append(h.diagnostics, step) }
func (h *panicHooks) ObserveCountdown(countdown.State)     {}

func TestFailingStepDoesNotAbortOthers(t *testing.T) {
	hooks := &panicHooks{}
	opts := DefaultOptions()
	opts.RevealAt = revealAt
	opts.ScaleMax = decimal.Zero
	clock := schedule.NewManual(now)
	rec := view.NewRecorder()
	r := New(clock, rec, opts, WithHooks(hooks))

	snap := sampleSnapshot()
	snap.Settings[campaign.SettingShowGrandTotal] = "true"
	report := r.Reconcile(snap)

	require.Len(t, report.Diagnostics, 1)
	assert.Equal(t, "thermometer", report.Diagnostics[0].Step)
	assert.Equal(t, []string{"thermometer"}, hooks.diagnostics)
	assert.Equal(t, 1, hooks.elapsed)
	assert.False(t, rec.Doc().Visible(view.BindThermometerFill))
	assert.Equal(t, "$670.50", rec.Doc().Text(view.BindAggregateTotal))
}

func TestPanickingStepIsRecovered(t *testing.T) {
	f := newFixture(t)
	p := &pass{snap: sampleSnapshot(), report: &Report{}}

	f.r.runStep(p, step{
		name: "boom",
		run:  func(*pass) error { panic("kaboom") },
		fallback: func(*pass) {
			f.rec.SetText(view.BindTheme, "fallback")
		},
	})

	require.Len(t, p.report.Diagnostics, 1)
	assert.Contains(t, p.report.Diagnostics[0].Message, "kaboom")
	assert.Equal(t, "fallback", f.doc().Text(view.BindTheme))
}
