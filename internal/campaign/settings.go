package campaign

import (
	"errors"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Settings 是稀疏的键值设置，值统一保存为字符串。
type Settings map[string]string

// String 返回设置值，缺失或为空时返回 def
func (s Settings) String(key, def string) string {
	v, ok := s[key]
	if !ok || strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// Lookup 返回设置值以及它是否存在且非空
func (s Settings) Lookup(key string) (string, bool) {
	v, ok := s[key]
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// Bool 把 "true"/"false" 等值解释为布尔值，无法识别时返回 def
func (s Settings) Bool(key string, def bool) bool {
	v, ok := s.Lookup(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(strings.ToLower(v)))
	if err != nil {
		return def
	}
	return b
}

// Amount 把设置值解析为金额
func (s Settings) Amount(key string) Amount {
	v, ok := s.Lookup(key)
	if !ok {
		return Amount{}
	}
	return ParseAmount(v)
}

const (
	// MaxAmountDigits 是金额整数部分允许的最多位数
	MaxAmountDigits = 15
	// MaxAmountScale 是金额允许的最多小数位数
	MaxAmountScale = 30
)

// ErrAmountOutOfRange 表示金额的量级超出可展示的范围，例如 "1e200000"。
var ErrAmountOutOfRange = errors.New("金额超出范围")

// ParseDecimal 解析数字字符串，并拒绝整数位或小数位过多的值。
func ParseDecimal(text string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(text))
	if err != nil {
		return decimal.Zero, err
	}
	if err := checkMagnitude(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

func checkMagnitude(d decimal.Decimal) error {
	if d.IsZero() {
		return nil
	}
	exp := int(d.Exponent())
	if exp < -MaxAmountScale || d.NumDigits()+exp > MaxAmountDigits {
		return ErrAmountOutOfRange
	}
	return nil
}

// ParseAmount 解析数字字符串，失败或超出范围时返回无效金额
func ParseAmount(text string) Amount {
	d, err := ParseDecimal(text)
	if err != nil {
		return Amount{}
	}
	return NewAmount(d)
}
