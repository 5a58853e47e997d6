// Package format 把金额、时长和名次转换为展示文本，全部是无状态的纯函数。
package format

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// ClosedText 是倒计时结束后的终止文本
const ClosedText = "Closed"

// Currency 格式化金额，保留两位小数并按千分位分组，例如 "$1,234.50"。
func Currency(amount decimal.Decimal) string {
	fixed := amount.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	n, err := strconv.ParseInt(whole, 10, 64)
	grouped := whole
	if err == nil {
		grouped = humanize.Comma(n)
	}

	sign := ""
	if amount.Round(2).IsNegative() {
		sign = "-"
	}
	return sign + "$" + grouped + "." + frac
}

// Remaining 把剩余时长格式化为 "2 days, 3 hr, 0 min, 5 sec"。
// 前导的零值单位被省略，最小显示为 "0 sec"；负数按0处理。
func Remaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	days := total / 86400
	hours := total % 86400 / 3600
	minutes := total % 3600 / 60
	seconds := total % 60

	parts := make([]string, 0, 4)
	if days > 0 {
		unit := "days"
		if days == 1 {
			unit = "day"
		}
		parts = append(parts, fmt.Sprintf("%d %s", days, unit))
	}
	if len(parts) > 0 || hours > 0 {
		parts = append(parts, fmt.Sprintf("%d hr", hours))
	}
	if len(parts) > 0 || minutes > 0 {
		parts = append(parts, fmt.Sprintf("%d min", minutes))
	}
	parts = append(parts, fmt.Sprintf("%d sec", seconds))
	return strings.Join(parts, ", ")
}

var medals = [...]string{"🥇", "🥈", "🥉"}

// Medal 返回名次对应的奖牌，前三名之外返回序数词（"4th"）。
func Medal(position int) string {
	if position >= 1 && position <= len(medals) {
		return medals[position-1]
	}
	return Ordinal(position)
}

// HasMedal 报告该名次是否有奖牌标记
func HasMedal(position int) bool {
	return position >= 1 && position <= len(medals)
}

// Ordinal 返回英文序数词
func Ordinal(n int) string {
	return humanize.Ordinal(n)
}

// Percent 把 [0,1] 范围内的比例格式化为最多两位小数的百分数字符串（不带%）。
func Percent(fraction decimal.Decimal) string {
	return fraction.Mul(decimal.NewFromInt(100)).Round(2).String()
}

// Count 用千分位格式化人数
func Count(n int) string {
	return humanize.Comma(int64(n))
}
