// Package gate 判断按日期揭晓的内容当前是否可见。
package gate

import "time"

// IsVisible 在强制显示或当前时间已到达截止时间（含）时返回 true。
func IsVisible(force bool, now, cutoff time.Time) bool {
	return force || !now.Before(cutoff)
}
