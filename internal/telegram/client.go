// Package telegram provides a client for sending notifications via Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/carmarket/internal/format"
	"github.com/rewired-gh/carmarket/internal/logger"
	"github.com/rewired-gh/carmarket/internal/models"
)

// StatsSource supplies the numbers for the /stats command.
type StatsSource interface {
	GetStats() (models.MarketStats, error)
}

// Client handles Telegram notifications.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
	stats          StatsSource
}

// NewClient creates a new Telegram client.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// SetStatsSource enables the /stats command.
func (c *Client) SetStatsSource(s StatsSource) {
	c.stats = s
}

// ListenForCommands starts a goroutine that polls for Telegram updates and handles bot commands.
// It returns immediately; the goroutine stops when ctx is cancelled.
func (c *Client) ListenForCommands(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message != nil && update.Message.IsCommand() {
					c.handleCommand(update.Message)
				}
			}
		}
	}()
}

func (c *Client) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "ping":
		reply := tgbotapi.NewMessage(msg.Chat.ID, "Pong")
		c.bot.Send(reply) //nolint:errcheck
	case "stats":
		if c.stats == nil {
			return
		}
		stats, err := c.stats.GetStats()
		if err != nil {
			logger.Warn("Failed to load stats for /stats: %v", err)
			return
		}
		reply := tgbotapi.NewMessage(msg.Chat.ID, formatStats(stats))
		reply.ParseMode = "MarkdownV2"
		c.bot.Send(reply) //nolint:errcheck
	}
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (c *Client) sendMarkdownV2(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if _, err := c.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// SendError sends a refresh error notification.
// Call this only on the first occurrence of a consecutive error sequence.
func (c *Client) SendError(cycleErr error) error {
	text := fmt.Sprintf("⚠️ *Marketplace refresh error*\n`%s`", escapeMarkdownV2(cycleErr.Error()))
	return c.sendMarkdownV2(text)
}

// SendRecovery sends a recovery notification after consecutive failures.
func (c *Client) SendRecovery(failureCount int) error {
	text := fmt.Sprintf("✅ *Marketplace refresh recovered* after %d consecutive failure\\(s\\)", failureCount)
	return c.sendMarkdownV2(text)
}

// Send sends a digest of new marketplace activity.
func (c *Client) Send(items []models.ActivityItem) error {
	return c.sendMarkdownV2(formatMessage(items, time.Now()))
}

// formatMessage formats activity items into a Telegram MarkdownV2 message.
func formatMessage(items []models.ActivityItem, now time.Time) string {
	var b strings.Builder
	b.WriteString("🏁 *Marketplace Activity*\n\n")

	for i, item := range items {
		verb, emoji := "Listed", "🏷"
		if item.Kind == models.KindBought {
			verb, emoji = "Sold", "💰"
		}
		price := escapeMarkdownV2(format.BaseUnitsToDisplay(item.Price) + " SUI")
		fmt.Fprintf(&b, "%d\\. %s *%s* `%s` for *%s*\n",
			i+1, emoji, verb, escapeMarkdownV2(format.ShortenAddress(item.CarID)), price)
		fmt.Fprintf(&b, "   by %s, %s\n",
			escapeMarkdownV2(format.ShortenAddress(item.Address)),
			escapeMarkdownV2(format.RelativeTime(item.Timestamp, now)))
	}

	return b.String()
}

// formatStats formats the dashboard numbers for the /stats command.
func formatStats(s models.MarketStats) string {
	return fmt.Sprintf("📊 *Marketplace Stats*\n\nMinted: %d\nActive listings: %d\nVolume: %s SUI",
		s.TotalMinted, s.ActiveListings, escapeMarkdownV2(s.TotalVolume))
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4) // pre-allocate with room for escapes
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
