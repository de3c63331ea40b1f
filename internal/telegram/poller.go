package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JBpeople/stay-ledger/internal/models"
	"github.com/JBpeople/stay-ledger/internal/repository"
)

const (
	// DefaultPollInterval is seeded into app_config on first start.
	DefaultPollInterval = 5
	minPollInterval     = 2

	idleBackoff = 3 * time.Second

	helpText = "记账命令:\n/expense 金额 分类 备注\n/income 金额 分类 备注\n示例: /expense 32.5 餐饮 午饭"
)

// Poller runs the long-poll ingestion loop in the background. All
// coordination with the web surface goes through the shared stores.
type Poller struct {
	cfg   repository.ConfigStore
	store repository.TransactionStore
	api   API
	log   *zap.Logger
	clock func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewPoller(cfg repository.ConfigStore, store repository.TransactionStore, api API, log *zap.Logger) *Poller {
	return &Poller{
		cfg:   cfg,
		store: store,
		api:   api,
		log:   log,
		clock: time.Now,
	}
}

// Start launches the polling loop. At most one loop runs at a time;
// the call reports whether it started a new one.
func (p *Poller) Start(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return false
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true

	go func() {
		defer close(p.done)
		p.run(ctx)
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()
	return true
}

// Stop cancels the loop and waits for it to exit. Safe to call when
// the poller never started.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (p *Poller) run(ctx context.Context) {
	p.log.Info("telegram poller started")
	for {
		wait := p.pollOnce(ctx)
		if !p.sleep(ctx, wait) {
			p.log.Info("telegram poller stopped")
			return
		}
	}
}

// pollOnce executes one cycle and returns how long to wait before the
// next. No error stops the loop: configuration problems idle, transport
// problems retry after the poll interval.
func (p *Poller) pollOnce(ctx context.Context) time.Duration {
	enabled, _ := p.cfg.GetConfig(repository.ConfigTelegramEnabled, "0")
	token, _ := p.cfg.GetConfig(repository.ConfigTelegramBotToken, "")
	token = strings.TrimSpace(token)
	if enabled != "1" || token == "" {
		return idleBackoff
	}

	interval := p.pollInterval()
	cursor := p.cursor()

	updates, err := p.api.GetUpdates(ctx, token, cursor+1)
	if err != nil {
		if ctx.Err() == nil {
			p.log.Warn("telegram getUpdates failed", zap.Error(err))
		}
		return interval
	}

	p.processUpdates(ctx, token, updates)
	return interval
}

// processUpdates persists the cursor for every update before handling
// its message. A crash in between loses that message instead of
// replaying it: duplicates are worse than a dropped line in the ledger.
func (p *Poller) processUpdates(ctx context.Context, token string, updates []Update) {
	for _, u := range updates {
		if err := p.cfg.SetConfig(repository.ConfigTelegramLastUpdateID, strconv.FormatInt(u.UpdateID, 10)); err != nil {
			p.log.Warn("persist update cursor failed", zap.Int64("update_id", u.UpdateID), zap.Error(err))
		}
		if u.Message != nil {
			p.handleMessage(ctx, token, *u.Message)
		}
	}
}

func (p *Poller) handleMessage(ctx context.Context, token string, msg Message) {
	chatID := msg.Chat.ID

	if IsMyID(msg.Text) {
		p.send(ctx, token, chatID, fmt.Sprintf("当前 chat id: %d", chatID))
		return
	}

	allowed, _ := p.cfg.GetConfig(repository.ConfigTelegramAllowedChatID, "")
	if !Authorize(chatID, allowed) {
		p.send(ctx, token, chatID, fmt.Sprintf("未授权聊天。当前 chat id: %d，请在系统配置中绑定后再试。", chatID))
		return
	}

	res, err := Parse(msg.Text, p.clock())
	if err != nil {
		p.send(ctx, token, chatID, err.Error())
		return
	}
	if res.Help {
		p.send(ctx, token, chatID, helpText)
		return
	}

	cmd := res.Command
	tx := &models.Transaction{
		Type:       cmd.Type,
		Amount:     cmd.Amount,
		Category:   cmd.Category,
		Note:       cmd.Note,
		HappenedOn: cmd.HappenedOn,
	}
	if err := p.store.AddTransaction(tx); err != nil {
		p.log.Error("record transaction failed", zap.Int64("chat_id", chatID), zap.Error(err))
		return
	}
	p.send(ctx, token, chatID, fmt.Sprintf("已记账: %s ¥%s / %s", cmd.Type.Label(), cmd.Amount.StringFixed(2), cmd.Category))
}

// send is best effort: a dropped confirmation never fails the write
// that already committed.
func (p *Poller) send(ctx context.Context, token string, chatID int64, text string) {
	if err := p.api.SendMessage(ctx, token, chatID, text); err != nil {
		p.log.Debug("telegram sendMessage failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (p *Poller) pollInterval() time.Duration {
	raw, _ := p.cfg.GetConfig(repository.ConfigTelegramPollInterval, strconv.Itoa(DefaultPollInterval))
	seconds, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		seconds = DefaultPollInterval
	}
	if seconds < minPollInterval {
		seconds = minPollInterval
	}
	return time.Duration(seconds) * time.Second
}

func (p *Poller) cursor() int64 {
	raw, _ := p.cfg.GetConfig(repository.ConfigTelegramLastUpdateID, "0")
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func (p *Poller) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
