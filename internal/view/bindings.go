package view

import "strconv"

// 绑定点ID
const (
	BindTheme       = "theme"
	BindSchoolLogo  = "school-logo"
	BindCRSImagery  = "crs-imagery"
	BindErrorBanner = "error-banner"

	BindDonationLinks = "donation-links"
	BindOnlineAlms    = "online-alms-total"
	BindAnnouncements = "announcements"

	BindQuizSection          = "quiz-section"
	BindQuizTitle            = "quiz-title"
	BindQuizDescription      = "quiz-description"
	BindQuizFormsLink        = "quiz-forms-link"
	BindQuizParticipantCount = "quiz-participant-count"
	BindQuizParticipants     = "quiz-participants"
	BindQuizWinners          = "quiz-winners"
	BindCountdown            = "quiz-countdown"

	BindPastWeeks = "past-weeks"

	BindLeaderboard = "leaderboard"
	BindPodium      = "podium"
	BindClassTotal  = "rice-bowl-total"

	BindAggregateSection = "grand-total-section"
	BindAggregateTotal   = "grand-total"
	BindThermometerFill  = "thermometer-fill"
)

// 属性名
const (
	AttrHref        = "href"
	AttrSrc         = "src"
	AttrTheme       = "data-theme"
	AttrUrgent      = "data-urgent"
	AttrState       = "data-state"
	AttrExpanded    = "aria-expanded"
	AttrFillPercent = "data-fill-percent"
	AttrRank        = "data-rank"
	AttrMedal       = "data-medal"
	AttrAmount      = "data-amount"
	AttrWeek        = "data-week"
	AttrEmpty       = "data-empty"
)

// PastWeekID 返回往期列表中某一周条目的节点ID
func PastWeekID(week int) string {
	return "past-week-" + strconv.Itoa(week)
}

// BoolAttr 把布尔值编码为属性值
func BoolAttr(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
