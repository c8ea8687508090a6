package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"PersonaPipeline/internal/domain"
	"PersonaPipeline/internal/ports"
)

// Bot is the subset of tgbotapi.BotAPI used for notifications.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// BotFactory creates Bot instances (allows pointing at a fake API).
type BotFactory func(token, apiEndpoint string, client *http.Client) (Bot, error)

var defaultBotFactory BotFactory = func(token, apiEndpoint string, client *http.Client) (Bot, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, apiEndpoint, client)
	if err != nil {
		return nil, err
	}
	return bot, nil
}

// Notifier sends run summaries to a Telegram chat via bot API.
type Notifier struct {
	botToken    string
	chatID      string
	apiEndpoint string
	client      *http.Client
	factory     BotFactory

	mu  sync.Mutex
	bot Bot
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier. The bot is
// authorized on first use.
func NewNotifier(botToken, chatID string) *Notifier {
	return &Notifier{
		botToken:    botToken,
		chatID:      chatID,
		apiEndpoint: tgbotapi.APIEndpoint,
		client:      &http.Client{Timeout: 5 * time.Second},
		factory:     defaultBotFactory,
	}
}

// PublishRunReport posts a short summary of the run.
func (n *Notifier) PublishRunReport(ctx context.Context, report domain.RunReport) error {
	if report.Skipped {
		return nil
	}
	return n.send(ctx, FormatReport(report))
}

func (n *Notifier) send(ctx context.Context, text string) error {
	if n.botToken == "" || n.chatID == "" {
		return fmt.Errorf("telegram notifier misconfigured")
	}
	chatID, err := strconv.ParseInt(n.chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("parse chat id %q: %w", n.chatID, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	bot, err := n.ensureBot()
	if err != nil {
		return err
	}
	if _, err := bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (n *Notifier) ensureBot() (Bot, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.bot != nil {
		return n.bot, nil
	}
	bot, err := n.factory(n.botToken, n.apiEndpoint, n.client)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	n.bot = bot
	return bot, nil
}

// FormatReport renders a report as plain text.
func FormatReport(report domain.RunReport) string {
	name := report.PersonaName
	if name == "" {
		name = fmt.Sprintf("persona %d", report.PersonaID)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s run for %s: %s\n", report.Kind, name, report.Status)
	if report.Kind != domain.RunReanalyze {
		fmt.Fprintf(&b, "discovered %d, new %d, analyzed %d, failed %d\n",
			report.Discovered, report.NewItems,
			report.Count(domain.OutcomeAnalyzed), report.Count(domain.OutcomeFailed))
	}
	if report.Status == domain.StatusReady {
		fmt.Fprintf(&b, "profile built from %d items, %d words\n", report.Totals.Content, report.Totals.Words)
	}
	if report.Error != "" {
		fmt.Fprintf(&b, "error: %s\n", report.Error)
	}
	if !report.FinishedAt.IsZero() && !report.StartedAt.IsZero() {
		fmt.Fprintf(&b, "took %s", report.FinishedAt.Sub(report.StartedAt).Round(time.Second))
	}
	return strings.TrimRight(b.String(), "\n")
}
