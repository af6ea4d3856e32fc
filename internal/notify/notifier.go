package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"position_engine/internal/models"
	"position_engine/pkg/logger"
)

type Notifier interface {
	Send(msg string)
	Sendf(format string, args ...any)
}

// Positions отдаёт снимок леджера для команды /positions.
type Positions interface {
	Snapshot() []models.PositionRecord
}

// Status отдаёт строку состояния для команды /status.
type Status interface {
	StatusLine() string
}

// Telegram: пассивный нотифайер + команды /positions и /status.
type Telegram struct {
	bot    *tgbot.BotAPI
	chatID int64

	mu        sync.RWMutex
	positions Positions
	status    Status
}

func NewTelegram(token string, chatID int64) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return &Telegram{bot: b, chatID: chatID}, nil
}

// Attach подключает источники для команд; вызывается после сборки движка.
func (t *Telegram) Attach(p Positions, s Status) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.positions, t.status = p, s
	t.mu.Unlock()
}

func (t *Telegram) Send(msg string) {
	if t == nil || t.bot == nil || t.chatID == 0 {
		return
	}
	if _, err := t.bot.Send(tgbot.NewMessage(t.chatID, msg)); err != nil {
		logger.Warn("telegram send: %v", err)
	}
}

func (t *Telegram) Sendf(format string, args ...any) { t.Send(fmt.Sprintf(format, args...)) }

func (t *Telegram) handlePositions() {
	t.mu.RLock()
	src := t.positions
	t.mu.RUnlock()
	if src == nil {
		t.Send("❗️ Леджер не подключён")
		return
	}

	snap := src.Snapshot()
	if len(snap) == 0 {
		t.Send("📭 Открытых позиций нет")
		return
	}
	t.Send(FormatPositions(snap))
}

func (t *Telegram) handleStatus() {
	t.mu.RLock()
	src := t.status
	t.mu.RUnlock()
	if src == nil {
		return
	}
	t.Send(src.StatusLine())
}

// FormatPositions renders the ledger snapshot sorted by symbol.
func FormatPositions(snap []models.PositionRecord) string {
	sorted := append([]models.PositionRecord(nil), snap...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Symbol < sorted[j].Symbol })

	var b strings.Builder
	b.WriteString("📊 Открытые позиции:\n")
	for _, p := range sorted {
		stop := "—"
		if p.HasStop() {
			stop = fmt.Sprintf("%.6g", p.Stop())
		}
		taken := make([]string, 0, len(models.ProfitLevelOrder))
		for _, l := range models.ProfitLevelOrder {
			if p.ProfitsTaken[l] {
				taken = append(taken, string(l))
			}
		}
		fmt.Fprintf(&b, "- %s [%s] size=%.4g/%.4g @ %.6g stop=%s taken=%s trail=%v\n",
			p.Symbol, strings.ToUpper(string(p.Direction)), p.Size, p.OriginalSize,
			p.EntryPrice, stop, strings.Join(taken, ","), p.TrailingStopActive)
	}
	return b.String()
}

// Start: long-polling для messages.
func (t *Telegram) Start(ctx context.Context) error {
	if t == nil || t.bot == nil {
		return nil
	}

	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"message"}

	updates := t.bot.GetUpdatesChan(u)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case upd, ok := <-updates:
				if !ok {
					return
				}
				if upd.Message == nil || upd.Message.Chat == nil ||
					upd.Message.Chat.ID != t.chatID || !upd.Message.IsCommand() {
					continue
				}
				switch upd.Message.Command() {
				case "positions":
					go t.handlePositions()
				case "status":
					go t.handleStatus()
				}
			}
		}
	}()
	return nil
}

func (t *Telegram) Stop() {
	if t == nil || t.bot == nil {
		return
	}
	t.bot.StopReceivingUpdates()
}

// Log: заглушка без токена, всё пишет в лог.
type Log struct{}

func NewLog() *Log                           { return &Log{} }
func (Log) Send(msg string)                  { logger.Info("notify: %s", msg) }
func (Log) Sendf(format string, args ...any) { logger.Info("notify: "+format, args...) }

// Recorder keeps messages in memory; tests use it.
type Recorder struct {
	mu   sync.Mutex
	msgs []string
}

func (r *Recorder) Send(msg string) {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
}

func (r *Recorder) Sendf(format string, args ...any) { r.Send(fmt.Sprintf(format, args...)) }

func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.msgs...)
}
