package campaign

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrNotObject 表示文档整体不是一个JSON对象，这是整次拉取的硬失败。
var ErrNotObject = errors.New("快照不是JSON对象")

type object map[string]json.RawMessage

// Decode 把上游文档解码为 Snapshot。
// 只有文档不是JSON对象时才返回错误；字段级问题记录在 Snapshot.Issues 中并使用默认值。
func Decode(data []byte) (*Snapshot, error) {
	var top object
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotObject, err)
	}
	if top == nil {
		return nil, ErrNotObject
	}

	d := &decoder{}
	s := &Snapshot{
		CurrentWeek: d.currentWeek(top["current_week"]),
		Settings:    d.settings(top["settings"]),
		ClassTotal:  d.amount("rice_bowl_total", top["rice_bowl_total"]),
	}
	s.AggregateTotal = d.amount("grand_total", top["grand_total"])
	s.Quizzes = d.quizzes(top["quizzes"])
	s.Groups = d.groups(top["classes"])
	s.Announcements = d.announcements(top["announcements"])
	s.Issues = d.issues
	return s, nil
}

type decoder struct {
	issues []Issue
}

func (d *decoder) issue(field, format string, args ...any) {
	d.issues = append(d.issues, Issue{Field: field, Reason: fmt.Sprintf(format, args...)})
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || string(trimmed) == "null"
}

func kind(raw json.RawMessage) byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}

func (d *decoder) currentWeek(raw json.RawMessage) int {
	if isNull(raw) {
		d.issue("current_week", "缺失，使用第1周")
		return 1
	}
	week, ok := d.integer("current_week", raw)
	if !ok || week < 1 {
		if ok {
			d.issue("current_week", "必须为正整数，实际为 %d", week)
		}
		return 1
	}
	return week
}

func (d *decoder) integer(field string, raw json.RawMessage) (int, bool) {
	switch kind(raw) {
	case '"':
		var text string
		if err := json.Unmarshal(raw, &text); err == nil {
			if n, err := strconv.Atoi(strings.TrimSpace(text)); err == nil {
				return n, true
			}
		}
	case 0, 'n', 't', 'f', '[', '{':
	default:
		var f float64
		if err := json.Unmarshal(raw, &f); err == nil && f == math.Trunc(f) && math.Abs(f) < math.MaxInt32 {
			return int(f), true
		}
	}
	d.issue(field, "不是整数: %s", truncate(raw))
	return 0, false
}

func (d *decoder) boolean(field string, raw json.RawMessage, def bool) bool {
	if isNull(raw) {
		return def
	}
	switch kind(raw) {
	case 't':
		return true
	case 'f':
		return false
	case '"':
		var text string
		if err := json.Unmarshal(raw, &text); err == nil {
			if b, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(text))); err == nil {
				return b
			}
		}
	default:
		var f float64
		if err := json.Unmarshal(raw, &f); err == nil {
			return f != 0
		}
	}
	d.issue(field, "不是布尔值: %s", truncate(raw))
	return def
}

func (d *decoder) text(field string, raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	switch kind(raw) {
	case '"':
		var text string
		if err := json.Unmarshal(raw, &text); err == nil {
			return text
		}
	case '[', '{':
	default:
		// 数字与布尔值按原样转为文本
		return string(bytes.TrimSpace(raw))
	}
	d.issue(field, "不是字符串: %s", truncate(raw))
	return ""
}

func (d *decoder) amount(field string, raw json.RawMessage) Amount {
	if isNull(raw) {
		return Amount{}
	}
	var text string
	switch kind(raw) {
	case '"':
		if err := json.Unmarshal(raw, &text); err != nil {
			d.issue(field, "不是数字金额: %s", truncate(raw))
			return Amount{}
		}
	case 't', 'f', '[', '{':
		d.issue(field, "不是数字金额: %s", truncate(raw))
		return Amount{}
	default:
		text = string(bytes.TrimSpace(raw))
	}
	v, err := ParseDecimal(text)
	switch {
	case errors.Is(err, ErrAmountOutOfRange):
		d.issue(field, "%v: %s", err, truncate(raw))
		return Amount{}
	case err != nil:
		d.issue(field, "不是数字金额: %s", truncate(raw))
		return Amount{}
	}
	return NewAmount(v)
}

func (d *decoder) instant(field string, raw json.RawMessage) *time.Time {
	if isNull(raw) {
		return nil
	}
	if kind(raw) != '"' {
		d.issue(field, "不是时间字符串: %s", truncate(raw))
		return nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		d.issue(field, "不是时间字符串: %s", truncate(raw))
		return nil
	}
	t, err := ParseInstant(text)
	if err != nil {
		d.issue(field, "%v", err)
		return nil
	}
	return &t
}

func (d *decoder) names(field string, raw json.RawMessage) []string {
	if isNull(raw) {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		d.issue(field, "不是数组: %s", truncate(raw))
		return nil
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		name := strings.TrimSpace(d.text(fmt.Sprintf("%s[%d]", field, i), item))
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}

func (d *decoder) objects(field string, raw json.RawMessage) []object {
	if isNull(raw) {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		d.issue(field, "不是数组: %s", truncate(raw))
		return nil
	}
	out := make([]object, 0, len(items))
	for i, item := range items {
		var obj object
		if err := json.Unmarshal(item, &obj); err != nil || obj == nil {
			d.issue(fmt.Sprintf("%s[%d]", field, i), "不是对象，已跳过")
			continue
		}
		out = append(out, obj)
	}
	return out
}

func (d *decoder) settings(raw json.RawMessage) Settings {
	settings := Settings{}
	if isNull(raw) {
		return settings
	}
	var obj object
	if err := json.Unmarshal(raw, &obj); err != nil {
		d.issue("settings", "不是对象: %s", truncate(raw))
		return settings
	}
	for key, value := range obj {
		if isNull(value) {
			continue
		}
		settings[key] = d.text("settings."+key, value)
	}
	return settings
}

func (d *decoder) quizzes(raw json.RawMessage) []Quiz {
	seen := make(map[int]bool)
	var out []Quiz
	for i, obj := range d.objects("quizzes", raw) {
		prefix := fmt.Sprintf("quizzes[%d].", i)
		week, ok := d.integer(prefix+"week_number", obj["week_number"])
		if !ok || week < 1 {
			d.issue(prefix+"week_number", "缺少有效周数，已跳过")
			continue
		}
		if seen[week] {
			d.issue(prefix+"week_number", "第%d周重复，已跳过", week)
			continue
		}
		seen[week] = true

		q := Quiz{
			WeekNumber:   week,
			Visible:      d.boolean(prefix+"is_visible", obj["is_visible"], false),
			CountryName:  d.text(prefix+"country_name", obj["country_name"]),
			Description:  d.text(prefix+"description", obj["description"]),
			FormsLink:    d.text(prefix+"forms_link", obj["forms_link"]),
			OpensAt:      d.instant(prefix+"opens_at", obj["opens_at"]),
			ClosesAt:     d.instant(prefix+"closes_at", obj["closes_at"]),
			Participants: d.names(prefix+"participants", obj["participants"]),
			Winners:      d.names(prefix+"winners", obj["winners"]),
		}
		if !isNull(obj["participant_count"]) {
			if n, ok := d.integer(prefix+"participant_count", obj["participant_count"]); ok && n >= 0 {
				q.ParticipantCount = n
			}
		}
		out = append(out, q)
	}
	return out
}

func (d *decoder) groups(raw json.RawMessage) []Group {
	var out []Group
	for i, obj := range d.objects("classes", raw) {
		prefix := fmt.Sprintf("classes[%d].", i)
		name := strings.TrimSpace(d.text(prefix+"name", obj["name"]))
		if name == "" {
			name = fmt.Sprintf("%s %d", UnnamedGroup, i+1)
			d.issue(prefix+"name", "班级名称为空，使用 %q", name)
		}
		out = append(out, Group{
			Name:   name,
			Amount: d.amount(prefix+"rice_bowl_amount", obj["rice_bowl_amount"]),
		})
	}
	return out
}

func (d *decoder) announcements(raw json.RawMessage) []Announcement {
	var out []Announcement
	for i, obj := range d.objects("announcements", raw) {
		prefix := fmt.Sprintf("announcements[%d].", i)
		text := strings.TrimSpace(d.text(prefix+"text", obj["text"]))
		if text == "" {
			continue
		}
		out = append(out, Announcement{
			Text:    text,
			Enabled: d.boolean(prefix+"enabled", obj["enabled"], false),
		})
	}
	return out
}

func sortWeeksDescending(quizzes []Quiz) {
	sort.SliceStable(quizzes, func(i, j int) bool {
		return quizzes[i].WeekNumber > quizzes[j].WeekNumber
	})
}

func truncate(raw json.RawMessage) string {
	const limit = 40
	s := string(bytes.TrimSpace(raw))
	if len(s) > limit {
		return s[:limit] + "…"
	}
	return s
}
