// Package ranking 按捐款金额对班级进行稳定排名。
package ranking

import (
	"sort"

	"github.com/SlpAus/ricebowl-portal/internal/campaign"
	"github.com/shopspring/decimal"
)

// Standing 是排名结果中的一项，Position 从1开始。
type Standing struct {
	Position int
	Group    campaign.Group
	Amount   decimal.Decimal
}

// Rank 按金额从高到低排名，无效或缺失的金额按0比较。
// 金额相同的班级保持输入顺序，名次仍然各不相同。
func Rank(groups []campaign.Group) []Standing {
	standings := make([]Standing, len(groups))
	for i, g := range groups {
		standings[i] = Standing{Group: g, Amount: g.Amount.OrZero()}
	}
	sort.SliceStable(standings, func(i, j int) bool {
		return standings[i].Amount.GreaterThan(standings[j].Amount)
	})
	for i := range standings {
		standings[i].Position = i + 1
	}
	return standings
}

// Top 返回前 n 名
func Top(standings []Standing, n int) []Standing {
	if n < 0 {
		n = 0
	}
	if len(standings) < n {
		n = len(standings)
	}
	return standings[:n]
}
