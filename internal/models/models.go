package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TxType is the direction of a ledger entry.
type TxType string

const (
	TxIncome  TxType = "income"
	TxExpense TxType = "expense"
)

func (t TxType) Valid() bool {
	return t == TxIncome || t == TxExpense
}

// Label returns the localized name used in bot replies and on pages.
func (t TxType) Label() string {
	if t == TxIncome {
		return "收入"
	}
	return "支出"
}

type Transaction struct {
	ID         int64
	Type       TxType
	Amount     decimal.Decimal
	Category   string
	Note       string
	HappenedOn string // YYYY-MM-DD
	CreatedAt  time.Time
}

// Categories is the closed set of allowed category labels. The web
// form and the bot command parser both validate against this list.
var Categories = []string{
	"餐饮",
	"交通",
	"购物",
	"住房",
	"水电燃气",
	"通讯",
	"医疗",
	"教育",
	"娱乐",
	"旅行",
	"工资",
	"奖金",
	"理财收益",
	"其他",
}

func CategoryAllowed(name string) bool {
	for _, c := range Categories {
		if c == name {
			return true
		}
	}
	return false
}
