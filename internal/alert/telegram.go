// Package alert delivers operational notifications over Telegram and
// answers a few interactive query commands. Alerting is strictly best
// effort: a missing token disables it without failing startup.
package alert

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"market-pulse/internal/domain"

	tele "gopkg.in/telebot.v3"
)

// MarketReader is the service surface the interactive commands use.
type MarketReader interface {
	GetIndicator(ctx context.Context, indicator domain.IndicatorType) (*domain.MarketIndicator, error)
	GetFearGreed(ctx context.Context) (*domain.FearGreedIndex, error)
}

type sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// TelegramNotifier pushes alert messages to a fixed chat. A nil notifier
// is valid and drops everything.
type TelegramNotifier struct {
	bot  sender
	chat tele.ChatID
}

// StartTelegramBot creates the bot, registers the query commands, and
// starts polling in the background. Returns nil when TELEGRAM_BOT_TOKEN
// is unset or the bot cannot be created; the rest of the service runs
// without alerting.
func StartTelegramBot(service MarketReader) *TelegramNotifier {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		log.Println("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return nil
	}
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		log.Printf("failed to create Telegram bot, alerting disabled: %v", err)
		return nil
	}

	b.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})

	b.Handle("/market", func(c tele.Context) error {
		args := c.Args()
		if len(args) == 0 {
			return c.Send(fmt.Sprintf("Usage: /market vix\nSupported: %s", supportedList()))
		}
		indicator := domain.IndicatorType(strings.ToLower(args[0]))
		if !indicator.IsValid() || indicator == domain.IndicatorFearGreed {
			return c.Send(fmt.Sprintf("Unknown indicator: %s\nSupported: %s", args[0], supportedList()))
		}
		result, err := service.GetIndicator(context.Background(), indicator)
		if err != nil {
			return c.Send(fmt.Sprintf("Error fetching %s: %v", indicator, err))
		}
		msg := fmt.Sprintf(
			"%s\nValue: %.2f\nChange: %+.2f%%\nTrend: %s\nSource: %s",
			indicator, result.Value, result.ChangePercent, result.Trend, result.Source,
		)
		return c.Send(msg)
	})

	b.Handle("/feargreed", func(c tele.Context) error {
		index, err := service.GetFearGreed(context.Background())
		if err != nil {
			return c.Send(fmt.Sprintf("Error computing fear/greed index: %v", err))
		}
		msg := fmt.Sprintf(
			"Fear & Greed Index\nValue: %d (%s)\nConfidence: %d%%",
			index.Value, index.Status, index.Confidence,
		)
		return c.Send(msg)
	})

	notifier := &TelegramNotifier{bot: b, chat: chatIDFromEnv()}

	log.Println("Telegram bot started")
	go b.Start()
	return notifier
}

// Notify sends an alert to the configured chat. Safe on a nil notifier
// and when no chat is configured; never returns an error the caller must
// act on beyond logging.
func (n *TelegramNotifier) Notify(_ context.Context, message string) error {
	if n == nil || n.bot == nil {
		return nil
	}
	if n.chat == 0 {
		log.Println("alert: TELEGRAM_CHAT_ID not set, dropping alert")
		return nil
	}
	_, err := n.bot.Send(n.chat, message)
	if err != nil {
		return fmt.Errorf("send telegram alert: %w", err)
	}
	return nil
}

func chatIDFromEnv() tele.ChatID {
	raw := os.Getenv("TELEGRAM_CHAT_ID")
	if raw == "" {
		return 0
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.Printf("alert: invalid TELEGRAM_CHAT_ID %q: %v", raw, err)
		return 0
	}
	return tele.ChatID(id)
}

func supportedList() string {
	names := make([]string, 0, len(domain.SupportedIndicators))
	for _, indicator := range domain.SupportedIndicators {
		if indicator == domain.IndicatorFearGreed {
			continue
		}
		names = append(names, string(indicator))
	}
	return strings.Join(names, ", ")
}
