// Package campaign 定义了上游快照文档的数据模型与解码器。
//
// 快照是不可变的：每次拉取得到一个新的 Snapshot，完整替换上一个，不做任何合并。
package campaign

import (
	"time"

	"github.com/shopspring/decimal"
)

// 已识别的设置键
const (
	SettingTheme            = "theme"
	SettingDonationLink     = "crs_donation_link"
	SettingOnlineAlmsTotal  = "online_alms_total"
	SettingShowGrandTotal   = "show_grand_total"
	SettingSchoolLogoURL    = "school_logo_url"
	SettingEnableCRSImagery = "enable_crs_imagery"
)

// DefaultTheme 是缺少 theme 设置时使用的主题
const DefaultTheme = "lenten-purple"

// Amount 是一个可能缺失或无效的金额
type Amount struct {
	Value decimal.Decimal
	Valid bool
}

// NewAmount 创建一个有效金额
func NewAmount(v decimal.Decimal) Amount {
	return Amount{Value: v, Valid: true}
}

// OrZero 返回金额，缺失或无效时返回0
func (a Amount) OrZero() decimal.Decimal {
	if !a.Valid {
		return decimal.Zero
	}
	return a.Value
}

// Quiz 是某一周的问答活动，WeekNumber 是它的唯一标识
type Quiz struct {
	WeekNumber       int
	Visible          bool
	CountryName      string
	Description      string
	FormsLink        string
	OpensAt          *time.Time
	ClosesAt         *time.Time
	ParticipantCount int
	Participants     []string
	Winners          []string
}

// UnnamedGroup 是名称为空的班级在排行榜上使用的名称前缀
const UnnamedGroup = "Unnamed class"

// Group 是参与募捐的班级
type Group struct {
	Name   string
	Amount Amount
}

type Announcement struct {
	Text    string
	Enabled bool
}

// Issue 记录一个被降级为默认值的字段
type Issue struct {
	Field  string
	Reason string
}

func (i Issue) String() string {
	return i.Field + ": " + i.Reason
}

// Snapshot 是一次拉取得到的完整活动数据
type Snapshot struct {
	CurrentWeek    int
	Quizzes        []Quiz
	Groups         []Group
	Settings       Settings
	Announcements  []Announcement
	ClassTotal     Amount
	AggregateTotal Amount

	// Issues 是解码过程中发现的字段级问题
	Issues []Issue
}

// CurrentQuiz 返回当前周且可见的问答，没有时返回 false。
func (s *Snapshot) CurrentQuiz() (Quiz, bool) {
	for _, q := range s.Quizzes {
		if q.Visible && q.WeekNumber == s.CurrentWeek {
			return q, true
		}
	}
	return Quiz{}, false
}

// PastQuizzes 返回周数小于当前周的可见问答，按周数从大到小排列。
func (s *Snapshot) PastQuizzes() []Quiz {
	var past []Quiz
	for _, q := range s.Quizzes {
		if q.Visible && q.WeekNumber < s.CurrentWeek {
			past = append(past, q)
		}
	}
	sortWeeksDescending(past)
	return past
}

// EnabledAnnouncements 返回启用的公告，保持原有顺序
func (s *Snapshot) EnabledAnnouncements() []Announcement {
	var out []Announcement
	for _, a := range s.Announcements {
		if a.Enabled {
			out = append(out, a)
		}
	}
	return out
}
