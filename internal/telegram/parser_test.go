package telegram

import (
	"strings"
	"testing"
	"time"

	"github.com/JBpeople/stay-ledger/internal/models"
)

var parseNow = time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

func TestParseEmpty(t *testing.T) {
	for _, text := range []string{"", "   ", "/"} {
		_, err := Parse(text, parseNow)
		if err == nil {
			t.Fatalf("expected error for %q", text)
		}
		if err.Error() != "消息为空，请发送记账命令。" {
			t.Fatalf("unexpected message for %q: %s", text, err)
		}
	}
}

func TestParseExpenseWithNote(t *testing.T) {
	res, err := Parse("/expense 32.5 餐饮 午饭", parseNow)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	cmd := res.Command
	if cmd == nil {
		t.Fatal("expected a command")
	}
	if cmd.Type != models.TxExpense {
		t.Fatalf("unexpected type: %s", cmd.Type)
	}
	if cmd.Amount.StringFixed(2) != "32.50" {
		t.Fatalf("unexpected amount: %s", cmd.Amount)
	}
	if cmd.Category != "餐饮" || cmd.Note != "午饭" {
		t.Fatalf("unexpected command: %+v", cmd)
	}
	if cmd.HappenedOn != "2026-08-23" {
		t.Fatalf("unexpected date: %s", cmd.HappenedOn)
	}
}

func TestParseAddRewrite(t *testing.T) {
	res, err := Parse("/add 收入 100 工资", parseNow)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	cmd := res.Command
	if cmd.Type != models.TxIncome {
		t.Fatalf("unexpected type: %s", cmd.Type)
	}
	if cmd.Amount.StringFixed(2) != "100.00" {
		t.Fatalf("unexpected amount: %s", cmd.Amount)
	}
	if cmd.Category != "工资" || cmd.Note != "" {
		t.Fatalf("unexpected command: %+v", cmd)
	}
}

func TestParseAddTooShort(t *testing.T) {
	_, err := Parse("/add 支出 32.5", parseNow)
	if err == nil || !strings.Contains(err.Error(), "/add 支出 32.5 餐饮 午饭") {
		t.Fatalf("expected add usage error, got %v", err)
	}
}

func TestParseHelp(t *testing.T) {
	for _, text := range []string{"help", "/start", "/HELP"} {
		res, err := Parse(text, parseNow)
		if err != nil {
			t.Fatalf("parse %q: %v", text, err)
		}
		if !res.Help {
			t.Fatalf("expected help marker for %q", text)
		}
	}
}

func TestParseNegativeAmount(t *testing.T) {
	_, err := Parse("/expense -5 餐饮", parseNow)
	if err == nil || err.Error() != "金额不能小于 0。" {
		t.Fatalf("expected negative amount error, got %v", err)
	}
}

func TestParseNonNumericAmount(t *testing.T) {
	_, err := Parse("/expense abc 餐饮", parseNow)
	if err == nil || err.Error() != "金额必须是数字。" {
		t.Fatalf("expected numeric amount error, got %v", err)
	}
}

func TestParseUnknownCategory(t *testing.T) {
	_, err := Parse("/expense 10 不存在分类", parseNow)
	if err == nil || !strings.Contains(err.Error(), "可用分类") {
		t.Fatalf("expected category error, got %v", err)
	}
	for _, c := range models.Categories {
		if !strings.Contains(err.Error(), c) {
			t.Fatalf("category %s missing from error: %s", c, err)
		}
	}
}

func TestParseUnknownCommand(t *testing.T) {
	_, err := Parse("/foo 10 餐饮", parseNow)
	if err == nil || !strings.Contains(err.Error(), "不支持的命令") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}

func TestParseTooFewTokens(t *testing.T) {
	_, err := Parse("/expense 10", parseNow)
	if err == nil || !strings.Contains(err.Error(), "/expense 32.5 餐饮 午饭") {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestParseLocalizedSynonyms(t *testing.T) {
	res, err := Parse("支出 15 交通 地铁 通勤", parseNow)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	cmd := res.Command
	if cmd.Type != models.TxExpense || cmd.Note != "地铁 通勤" {
		t.Fatalf("unexpected command: %+v", cmd)
	}
}
