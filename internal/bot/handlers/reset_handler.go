package handlers

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewResetHandler clears the stored conversation history for the chat the
// command was issued in. Admin only; wire it behind the AdminOnly middleware.
func NewResetHandler(deps HandlerDeps) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		log := deps.Logger.With("handler", "reset")

		if update.Message == nil {
			return
		}
		chatID := update.Message.Chat.ID
		conversationID := conversationIDForChat(chatID)

		if err := deps.Store.DeleteConversation(ctx, conversationID); err != nil {
			log.ErrorContext(ctx, "Failed to delete conversation history", "error", err, "conversation_id", conversationID)
			reply(ctx, b, log, chatID, deps.Config.Messages.ResetError)
			return
		}

		log.InfoContext(ctx, "Conversation history cleared", "conversation_id", conversationID)
		reply(ctx, b, log, chatID, deps.Config.Messages.ResetConfirm)
	}
}

func reply(ctx context.Context, b *bot.Bot, log *slog.Logger, chatID int64, text string) {
	if text == "" {
		return
	}
	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		log.ErrorContext(ctx, "Failed to send message", "error", err, "chat_id", chatID)
	}
}
