package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/mveloso/companion-bot/internal/companion"
)

const sendMessageTimeout = 10 * time.Second

// NewChatHandler creates the default handler that runs one conversational
// turn for each incoming text message.
func NewChatHandler(deps HandlerDeps) bot.HandlerFunc {
	return chatHandler{deps}.Handle
}

type chatHandler struct {
	deps HandlerDeps
}

func (h chatHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	deps := h.deps
	log := deps.Logger.With("handler", "chat")

	msg := update.Message
	if msg == nil || msg.From == nil || strings.TrimSpace(msg.Text) == "" {
		log.DebugContext(ctx, "Ignoring update with nil message, empty text, or nil sender", "update_id", update.ID)
		return
	}

	chatID := msg.Chat.ID
	conversationID := conversationIDForChat(chatID)

	userName := msg.From.FirstName
	if userName == "" {
		userName = msg.From.Username
	}

	// Best effort typing indicator while the turn runs.
	if _, err := b.SendChatAction(ctx, &bot.SendChatActionParams{ChatID: chatID, Action: models.ChatActionTyping}); err != nil {
		log.DebugContext(ctx, "Failed to send typing action", "error", err, "chat_id", chatID)
	}

	reply, err := deps.Companion.ExecuteTurn(ctx, conversationID, msg.Text, userName, deps.Config.Companion.MaxReplyLength)
	if err != nil {
		// The executor already recorded the user's message; a failed
		// generation yields no reply and the user may simply retry.
		if errors.Is(err, companion.ErrGeneration) {
			log.ErrorContext(ctx, "Turn generation failed, no reply sent", "error", err, "chat_id", chatID)
		} else {
			log.ErrorContext(ctx, "Turn execution failed", "error", err, "chat_id", chatID)
		}
		return
	}
	if reply == "" {
		log.WarnContext(ctx, "Turn produced empty reply, nothing sent", "chat_id", chatID)
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendMessageTimeout)
	defer cancel()

	if _, err := b.SendMessage(sendCtx, &bot.SendMessageParams{ChatID: chatID, Text: reply}); err != nil {
		log.ErrorContext(ctx, "Failed to send reply", "error", err, "chat_id", chatID)
	}
}

// conversationIDForChat derives the history-store conversation key from a
// Telegram chat ID.
func conversationIDForChat(chatID int64) string {
	return "history-" + strconv.FormatInt(chatID, 10)
}
