package telegram

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JBpeople/stay-ledger/internal/models"
)

// Command is a recording instruction parsed out of a chat message.
type Command struct {
	Type       models.TxType
	Amount     decimal.Decimal
	Category   string
	Note       string
	HappenedOn string
}

// Result is either a help request or a parsed command.
type Result struct {
	Help    bool
	Command *Command
}

// typeNames maps a normalized command token to a transaction type.
// Extend this table to grow the command vocabulary.
var typeNames = map[string]models.TxType{
	"expense":     models.TxExpense,
	"income":      models.TxIncome,
	"add_expense": models.TxExpense,
	"add_income":  models.TxIncome,
	"支出":          models.TxExpense,
	"收入":          models.TxIncome,
}

var (
	errMessageEmpty = errors.New("消息为空，请发送记账命令。")
	errUsage        = errors.New("格式错误。示例：/expense 32.5 餐饮 午饭")
	errUsageAdd     = errors.New("格式错误。示例：/add 支出 32.5 餐饮 午饭")
	errUnknownCmd   = errors.New("不支持的命令。请使用 /expense 或 /income。")
	errAmountNaN    = errors.New("金额必须是数字。")
	errAmountNeg    = errors.New("金额不能小于 0。")
)

// Parse turns free text into a structured command. It is pure: the
// only outside input is the clock used to stamp happened_on.
func Parse(text string, now time.Time) (Result, error) {
	line := strings.TrimSpace(text)
	if line == "" {
		return Result{}, errMessageEmpty
	}

	normalized := strings.TrimPrefix(line, "/")
	parts := strings.Fields(normalized)
	if len(parts) == 0 {
		return Result{}, errMessageEmpty
	}

	cmd := strings.ToLower(parts[0])
	if cmd == "help" || cmd == "start" {
		return Result{Help: true}, nil
	}
	if len(parts) < 3 {
		return Result{}, errUsage
	}

	// "add" carries the type as its second token and is re-dispatched
	// against the type table with the keyword dropped.
	if cmd == "add" {
		if len(parts) < 4 {
			return Result{}, errUsageAdd
		}
		cmd = strings.ToLower(parts[1])
		parts = parts[1:]
	}

	txType, ok := typeNames[cmd]
	if !ok {
		return Result{}, errUnknownCmd
	}

	amount, err := decimal.NewFromString(parts[1])
	if err != nil {
		return Result{}, errAmountNaN
	}
	if amount.IsNegative() {
		return Result{}, errAmountNeg
	}

	category := parts[2]
	if !models.CategoryAllowed(category) {
		return Result{}, fmt.Errorf("分类无效。可用分类：%s", strings.Join(models.Categories, ", "))
	}

	note := ""
	if len(parts) > 3 {
		note = strings.Join(parts[3:], " ")
	}

	return Result{Command: &Command{
		Type:       txType,
		Amount:     amount,
		Category:   category,
		Note:       note,
		HappenedOn: now.Format("2006-01-02"),
	}}, nil
}
