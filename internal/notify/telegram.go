package notify

import (
	"context"
	"fmt"

	"github.com/AshishSahani0/saarthi-portal/internal/config"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Sender is the subset of the Telegram API the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier fans staff notifications out to the configured
// chat IDs. Delivery failures to one chat do not block the others.
type TelegramNotifier struct {
	sender  Sender
	chatIDs []int64
	logger  *zerolog.Logger
}

// NewTelegramNotifier connects to the Telegram API with the configured
// bot token.
func NewTelegramNotifier(cfg config.TelegramConfig, logger *zerolog.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	logger.Info().Str("bot", bot.Self.UserName).Msg("telegram notifier connected")
	return &TelegramNotifier{sender: bot, chatIDs: cfg.StaffChatIDs, logger: logger}, nil
}

// NewWithSender builds a notifier on an existing sender. Used in tests.
func NewWithSender(sender Sender, chatIDs []int64, logger *zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{sender: sender, chatIDs: chatIDs, logger: logger}
}

// NotifyStaff sends the text to every configured staff chat.
func (n *TelegramNotifier) NotifyStaff(ctx context.Context, text string) error {
	if n == nil || n.sender == nil {
		return nil
	}

	var lastErr error
	for _, chatID := range n.chatIDs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msg := tgbotapi.NewMessage(chatID, text)
		if _, err := n.sender.Send(msg); err != nil {
			n.logger.Error().Err(err).Int64("chat_id", chatID).Msg("failed to send staff notification")
			lastErr = err
		}
	}
	return lastErr
}
