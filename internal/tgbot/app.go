package tgbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"fest-ledger/internal/apperr"
	"fest-ledger/internal/config"
	"fest-ledger/internal/models"
	"fest-ledger/internal/util"
)

// Ledger is the read side of the registration ledger the bot reports on.
type Ledger interface {
	Lookup(ctx context.Context, registrationID string) (models.Registration, error)
	Export(ctx context.Context, eventName string) ([]models.Registration, error)
}

// botAPI is the part of *tgbotapi.BotAPI the app uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// App is an admin-only Telegram bot: it is told about new registrations and
// confirmed payments, and answers /status, /stats and /export.
type App struct {
	cfg    config.Config
	bot    botAPI
	ledger Ledger
	log    *slog.Logger
}

// New connects to Telegram. The app can notify right away; commands are
// served once Run is given the ledger.
func New(cfg config.Config, log *slog.Logger) (*App, error) {
	b, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, err
	}
	b.Debug = false
	return newApp(cfg, b, nil, log), nil
}

func newApp(cfg config.Config, bot botAPI, ledger Ledger, log *slog.Logger) *App {
	if log == nil {
		log = slog.Default()
	}
	return &App{cfg: cfg, bot: bot, ledger: ledger, log: log}
}

func (a *App) Run(ctx context.Context, ledger Ledger) error {
	if ledger != nil {
		a.ledger = ledger
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := a.bot.GetUpdatesChan(u)
	defer a.bot.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			if upd.Message == nil {
				continue
			}
			if err := a.handleMessage(ctx, upd.Message); err != nil {
				a.log.Warn("handle telegram message", "from", upd.Message.From.ID, "error", err)
			}
		}
	}
}

func (a *App) SendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	_, err := a.bot.Send(msg)
	return err
}

func (a *App) isAdmin(tgID int64) bool {
	return a.cfg.AdminTGIDs[tgID]
}

// ---------- Message handling ----------

const helpText = `Commands:
/status <registration id> - show one registration
/stats [event] - counts and fees collected
/export [event] - CSV export link`

func (a *App) handleMessage(ctx context.Context, m *tgbotapi.Message) error {
	if m.From == nil || m.Chat == nil {
		return nil
	}
	tgID := m.From.ID
	chatID := m.Chat.ID
	if !a.isAdmin(tgID) {
		return a.SendText(chatID, "Access denied.")
	}

	cmd, arg, _ := strings.Cut(strings.TrimSpace(m.Text), " ")
	// commands in groups arrive as /status@botname
	cmd, _, _ = strings.Cut(cmd, "@")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(cmd) {
	case "/start", "/help":
		return a.SendText(chatID, helpText)
	case "/status":
		return a.showStatus(ctx, chatID, arg)
	case "/stats":
		return a.showStats(ctx, chatID, arg)
	case "/export":
		return a.showExportLink(chatID, arg)
	default:
		return a.SendText(chatID, helpText)
	}
}

func (a *App) showStatus(ctx context.Context, chatID int64, id string) error {
	if id == "" {
		return a.SendText(chatID, "Usage: /status <registration id>")
	}
	reg, err := a.ledger.Lookup(ctx, id)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return a.SendText(chatID, "No registration "+id)
	case err != nil:
		_ = a.SendText(chatID, "Lookup failed, try again later.")
		return err
	}
	return a.SendText(chatID, describe(reg))
}

type tally struct {
	pending, paid int
	collected     int64
	outstanding   int64
}

func (a *App) showStats(ctx context.Context, chatID int64, event string) error {
	regs, err := a.ledger.Export(ctx, event)
	if err != nil {
		_ = a.SendText(chatID, "Export failed, try again later.")
		return err
	}
	var t tally
	for _, r := range regs {
		if r.Paid() {
			t.paid++
			t.collected += r.EntryFee
		} else {
			t.pending++
			t.outstanding += r.EntryFee
		}
	}
	scope := "All events"
	if event != "" {
		scope = event
	}
	return a.SendText(chatID, fmt.Sprintf("%s\nRegistrations: %d\nPaid: %d (₹%d)\nPending: %d (₹%d)",
		scope, len(regs), t.paid, t.collected, t.pending, t.outstanding))
}

func (a *App) showExportLink(chatID int64, event string) error {
	if a.cfg.ExportSecret == "" {
		return a.SendText(chatID, "CSV export is disabled (EXPORT_SECRET is not set).")
	}
	return a.SendText(chatID, "📤 CSV: "+a.exportURL(event))
}

func (a *App) exportURL(event string) string {
	q := url.Values{}
	if event != "" {
		q.Set("event", event)
	}
	q.Set("token", util.ExportToken(a.cfg.ExportSecret, event))

	base := a.cfg.BasePublicURL
	if base == "" {
		base = "http://localhost" + a.cfg.HTTPAddr
	}
	return base + "/export/registrations.csv?" + q.Encode()
}

func describe(reg models.Registration) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s / %s\n", reg.ID, reg.EventName, reg.SubEventName)
	fmt.Fprintf(&b, "%s, %s, %s\n", reg.Participant.Name, reg.Participant.Phone, reg.Participant.College)
	if reg.Team.Name != "" {
		fmt.Fprintf(&b, "Team: %s (%s)\n", reg.Team.Name, reg.Team.SizeLabel())
	}
	fmt.Fprintf(&b, "Fee: ₹%d\nStatus: %s", reg.EntryFee, reg.Status)
	if reg.TransactionID != "" {
		fmt.Fprintf(&b, "\nUPI txn: %s", reg.TransactionID)
	}
	return b.String()
}
