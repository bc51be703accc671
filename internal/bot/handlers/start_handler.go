package handlers

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewStartHandler greets the user with the companion's welcome message.
func NewStartHandler(deps HandlerDeps) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		log := deps.Logger.With("handler", "start")

		if update.Message == nil {
			return
		}
		chatID := update.Message.Chat.ID

		welcome := deps.Config.Messages.Welcome
		if welcome == "" {
			welcome = fmt.Sprintf("Hi, I'm %s.", deps.Config.Companion.Name)
		}

		if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: welcome}); err != nil {
			log.ErrorContext(ctx, "Failed to send welcome message", "error", err, "chat_id", chatID)
		}
	}
}
