package telegram

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/JBpeople/stay-ledger/internal/models"
	"github.com/JBpeople/stay-ledger/internal/repository"
)

type fakeConfig struct {
	mu     sync.Mutex
	values map[string]string
}

func newFakeConfig() *fakeConfig {
	return &fakeConfig{values: make(map[string]string)}
}

func (c *fakeConfig) GetConfig(key, defaultVal string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.values[key]; ok {
		return v, nil
	}
	return defaultVal, nil
}

func (c *fakeConfig) SetConfig(key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	return nil
}

type fakeStore struct {
	mu  sync.Mutex
	txs []*models.Transaction
	err error
}

func (s *fakeStore) AddTransaction(tx *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.txs = append(s.txs, tx)
	return nil
}

func (s *fakeStore) GetTransaction(int64) (*models.Transaction, error)     { return nil, nil }
func (s *fakeStore) UpdateTransaction(*models.Transaction) error           { return nil }
func (s *fakeStore) DeleteTransaction(int64) error                         { return nil }
func (s *fakeStore) RecentTransactions(int) ([]*models.Transaction, error) { return nil, nil }
func (s *fakeStore) Totals() (decimal.Decimal, decimal.Decimal, error) {
	return decimal.Zero, decimal.Zero, nil
}
func (s *fakeStore) Months() ([]string, error) { return nil, nil }
func (s *fakeStore) MonthTotals(string) (decimal.Decimal, decimal.Decimal, error) {
	return decimal.Zero, decimal.Zero, nil
}
func (s *fakeStore) CategoryTotals(string, models.TxType) ([]repository.CategoryTotal, error) {
	return nil, nil
}
func (s *fakeStore) MonthTransactions(string, models.TxType) ([]*models.Transaction, error) {
	return nil, nil
}

type fakeAPI struct {
	mu       sync.Mutex
	updates  []Update
	fetchErr error
	offsets  []int64
	sent     []string
	sendTo   []int64
}

func (a *fakeAPI) GetUpdates(_ context.Context, _ string, offset int64) ([]Update, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.offsets = append(a.offsets, offset)
	if a.fetchErr != nil {
		return nil, a.fetchErr
	}
	return a.updates, nil
}

func (a *fakeAPI) SendMessage(_ context.Context, _ string, chatID int64, text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sendTo = append(a.sendTo, chatID)
	a.sent = append(a.sent, text)
	return nil
}

func (a *fakeAPI) messages() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.sent...)
}

func newTestPoller(cfg *fakeConfig, store *fakeStore, api *fakeAPI) *Poller {
	p := NewPoller(cfg, store, api, zap.NewNop())
	p.clock = func() time.Time { return time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC) }
	return p
}

func enable(cfg *fakeConfig) {
	_ = cfg.SetConfig(repository.ConfigTelegramEnabled, "1")
	_ = cfg.SetConfig(repository.ConfigTelegramBotToken, "token")
}

func TestStartIdempotent(t *testing.T) {
	cfg := newFakeConfig()
	p := newTestPoller(cfg, &fakeStore{}, &fakeAPI{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if !p.Start(ctx) {
		t.Fatal("first start must launch the loop")
	}
	if p.Start(ctx) {
		t.Fatal("second start must be a no-op")
	}
	p.Stop()

	if !p.Start(ctx) {
		t.Fatal("start after stop must launch again")
	}
	p.Stop()
}

func TestPollOnceDisabledIdles(t *testing.T) {
	cfg := newFakeConfig()
	api := &fakeAPI{}
	p := newTestPoller(cfg, &fakeStore{}, api)

	if wait := p.pollOnce(context.Background()); wait != idleBackoff {
		t.Fatalf("expected idle backoff, got %s", wait)
	}
	if len(api.offsets) != 0 {
		t.Fatal("disabled poller must not fetch")
	}
}

func TestPollOnceFetchFailure(t *testing.T) {
	cfg := newFakeConfig()
	enable(cfg)
	_ = cfg.SetConfig(repository.ConfigTelegramLastUpdateID, "41")

	store := &fakeStore{}
	api := &fakeAPI{fetchErr: errors.New("api not ok")}
	p := newTestPoller(cfg, store, api)

	if wait := p.pollOnce(context.Background()); wait != 5*time.Second {
		t.Fatalf("expected poll interval wait, got %s", wait)
	}
	if got, _ := cfg.GetConfig(repository.ConfigTelegramLastUpdateID, ""); got != "41" {
		t.Fatalf("cursor must not move on fetch failure, got %s", got)
	}
	if len(store.txs) != 0 {
		t.Fatal("no transaction may be written on fetch failure")
	}
}

func TestPollOnceRequestsNextOffset(t *testing.T) {
	cfg := newFakeConfig()
	enable(cfg)
	_ = cfg.SetConfig(repository.ConfigTelegramLastUpdateID, "7")

	api := &fakeAPI{}
	p := newTestPoller(cfg, &fakeStore{}, api)
	p.pollOnce(context.Background())

	if len(api.offsets) != 1 || api.offsets[0] != 8 {
		t.Fatalf("expected offset 8, got %v", api.offsets)
	}
}

func TestPollIntervalClampAndFallback(t *testing.T) {
	cfg := newFakeConfig()
	p := newTestPoller(cfg, &fakeStore{}, &fakeAPI{})

	if got := p.pollInterval(); got != 5*time.Second {
		t.Fatalf("expected default interval, got %s", got)
	}
	_ = cfg.SetConfig(repository.ConfigTelegramPollInterval, "1")
	if got := p.pollInterval(); got != 2*time.Second {
		t.Fatalf("expected minimum clamp, got %s", got)
	}
	_ = cfg.SetConfig(repository.ConfigTelegramPollInterval, "garbage")
	if got := p.pollInterval(); got != 5*time.Second {
		t.Fatalf("malformed interval must fall back, got %s", got)
	}
}

func TestProcessUpdatesAdvancesCursorPastFailures(t *testing.T) {
	cfg := newFakeConfig()
	enable(cfg)
	store := &fakeStore{}
	api := &fakeAPI{}
	p := newTestPoller(cfg, store, api)

	updates := []Update{
		{UpdateID: 5, Message: &Message{Text: "/expense abc 餐饮", Chat: Chat{ID: 1}}},
		{UpdateID: 6, Message: &Message{Text: "/expense 32.5 餐饮 午饭", Chat: Chat{ID: 1}}},
		{UpdateID: 7, Message: &Message{Text: "not a command", Chat: Chat{ID: 1}}},
	}
	p.processUpdates(context.Background(), "token", updates)

	if got, _ := cfg.GetConfig(repository.ConfigTelegramLastUpdateID, ""); got != "7" {
		t.Fatalf("cursor must equal the max update id, got %s", got)
	}
	if len(store.txs) != 1 {
		t.Fatalf("expected exactly one recorded transaction, got %d", len(store.txs))
	}
	tx := store.txs[0]
	if tx.Type != models.TxExpense || tx.Category != "餐饮" || tx.HappenedOn != "2026-08-23" {
		t.Fatalf("unexpected transaction: %+v", tx)
	}
}

func TestHandleMessageMyIDBypassesGate(t *testing.T) {
	cfg := newFakeConfig()
	_ = cfg.SetConfig(repository.ConfigTelegramAllowedChatID, "456")
	api := &fakeAPI{}
	p := newTestPoller(cfg, &fakeStore{}, api)

	p.handleMessage(context.Background(), "token", Message{Text: "/myid", Chat: Chat{ID: 123}})

	msgs := api.messages()
	if len(msgs) != 1 || msgs[0] != "当前 chat id: 123" {
		t.Fatalf("unexpected reply: %v", msgs)
	}
}

func TestHandleMessageDenied(t *testing.T) {
	cfg := newFakeConfig()
	_ = cfg.SetConfig(repository.ConfigTelegramAllowedChatID, "456")
	store := &fakeStore{}
	api := &fakeAPI{}
	p := newTestPoller(cfg, store, api)

	p.handleMessage(context.Background(), "token", Message{Text: "/expense 10 餐饮", Chat: Chat{ID: 123}})

	if len(store.txs) != 0 {
		t.Fatal("denied chat must not record a transaction")
	}
	msgs := api.messages()
	if len(msgs) != 1 || msgs[0] != "未授权聊天。当前 chat id: 123，请在系统配置中绑定后再试。" {
		t.Fatalf("unexpected reply: %v", msgs)
	}
}

func TestHandleMessageHelp(t *testing.T) {
	cfg := newFakeConfig()
	api := &fakeAPI{}
	p := newTestPoller(cfg, &fakeStore{}, api)

	p.handleMessage(context.Background(), "token", Message{Text: "/help", Chat: Chat{ID: 1}})

	msgs := api.messages()
	if len(msgs) != 1 || msgs[0] != helpText {
		t.Fatalf("unexpected reply: %v", msgs)
	}
}

func TestHandleMessageConfirmation(t *testing.T) {
	cfg := newFakeConfig()
	store := &fakeStore{}
	api := &fakeAPI{}
	p := newTestPoller(cfg, store, api)

	p.handleMessage(context.Background(), "token", Message{Text: "/income 100 工资 八月", Chat: Chat{ID: 9}})

	if len(store.txs) != 1 {
		t.Fatalf("expected a recorded transaction, got %d", len(store.txs))
	}
	msgs := api.messages()
	if len(msgs) != 1 || msgs[0] != "已记账: 收入 ¥100.00 / 工资" {
		t.Fatalf("unexpected confirmation: %v", msgs)
	}
}

func TestHandleMessageStoreFailureSendsNothing(t *testing.T) {
	cfg := newFakeConfig()
	store := &fakeStore{err: errors.New("disk full")}
	api := &fakeAPI{}
	p := newTestPoller(cfg, store, api)

	p.handleMessage(context.Background(), "token", Message{Text: "/expense 10 餐饮", Chat: Chat{ID: 9}})

	if len(api.messages()) != 0 {
		t.Fatal("no confirmation may be sent when the write fails")
	}
}
