package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// AssetPrecision 结算代币的小数位数
const AssetPrecision = 4

// MaxAssetAmount 与链上 asset 的上限一致：2^62-1
const MaxAssetAmount = int64(1)<<62 - 1

var ErrInvalidAsset = errors.New("invalid quantity")

// Asset 定精度的代币数量，Amount 以最小单位计
type Asset struct {
	Amount int64  `json:"amount"`
	Symbol string `json:"symbol"`
}

func NewAsset(amount int64, symbol string) Asset {
	return Asset{Amount: amount, Symbol: symbol}
}

// ParseAsset 解析 "10.0000 TLM" 形式的字符串，小数位必须与精度一致
func ParseAsset(s string) (Asset, error) {
	parts := strings.Fields(s)
	if len(parts) != 2 {
		return Asset{}, fmt.Errorf("%w: %q", ErrInvalidAsset, s)
	}

	number, symbol := parts[0], parts[1]
	dot := strings.IndexByte(number, '.')
	if dot < 0 || len(number)-dot-1 != AssetPrecision {
		return Asset{}, fmt.Errorf("%w: %q must have %d decimals", ErrInvalidAsset, s, AssetPrecision)
	}

	d, err := decimal.NewFromString(number)
	if err != nil {
		return Asset{}, fmt.Errorf("%w: %q", ErrInvalidAsset, s)
	}

	units := d.Shift(AssetPrecision)
	if !units.IsInteger() || units.Abs().GreaterThan(decimal.NewFromInt(MaxAssetAmount)) {
		return Asset{}, fmt.Errorf("%w: %q", ErrInvalidAsset, s)
	}

	a := Asset{Amount: units.IntPart(), Symbol: symbol}
	if !a.IsValid() {
		return Asset{}, fmt.Errorf("%w: %q", ErrInvalidAsset, s)
	}
	return a, nil
}

// IsValid 数量在范围内且符号为 1-7 位大写字母
func (a Asset) IsValid() bool {
	if a.Amount > MaxAssetAmount || a.Amount < -MaxAssetAmount {
		return false
	}
	if len(a.Symbol) == 0 || len(a.Symbol) > 7 {
		return false
	}
	for _, r := range a.Symbol {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func (a Asset) String() string {
	return decimal.New(a.Amount, -AssetPrecision).StringFixed(AssetPrecision) + " " + a.Symbol
}
