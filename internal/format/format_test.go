package format

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCurrency(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "$0.00"},
		{"1234.5", "$1,234.50"},
		{"0.005", "$0.01"},
		{"1000000", "$1,000,000.00"},
		{"999.999", "$1,000.00"},
		{"-42.1", "-$42.10"},
		{"-0.001", "$0.00"},
		{"999999999999999.99", "$999,999,999,999,999.99"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Currency(decimal.RequireFromString(tt.in)))
		})
	}
}

func TestRemaining(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0 sec"},
		{-5 * time.Second, "0 sec"},
		{999 * time.Millisecond, "0 sec"},
		{59 * time.Second, "59 sec"},
		{90 * time.Second, "1 min, 30 sec"},
		{time.Hour, "1 hr, 0 min, 0 sec"},
		{time.Hour + 5*time.Second, "1 hr, 0 min, 5 sec"},
		{24 * time.Hour, "1 day, 0 hr, 0 min, 0 sec"},
		{50*time.Hour + 3*time.Minute, "2 days, 2 hr, 3 min, 0 sec"},
	}
	for _, tt := range tests {
		t.Run(tt.in.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, Remaining(tt.in))
		})
	}
}

func TestMedal(t *testing.T) {
	assert.Equal(t, "🥇", Medal(1))
	assert.Equal(t, "🥈", Medal(2))
	assert.Equal(t, "🥉", Medal(3))
	assert.Equal(t, "4th", Medal(4))
	assert.Equal(t, "11th", Medal(11))
	assert.Equal(t, "22nd", Medal(22))
	assert.True(t, HasMedal(3))
	assert.False(t, HasMedal(4))
	assert.False(t, HasMedal(0))
}

func TestPercent(t *testing.T) {
	assert.Equal(t, "100", Percent(decimal.NewFromInt(1)))
	assert.Equal(t, "2", Percent(decimal.RequireFromString("0.02")))
	assert.Equal(t, "33.33", Percent(decimal.NewFromInt(1).Div(decimal.NewFromInt(3))))
}
