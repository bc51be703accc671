package handlers

import (
	"log/slog"

	"github.com/mveloso/companion-bot/internal/companion"
	"github.com/mveloso/companion-bot/internal/config"
	"github.com/mveloso/companion-bot/internal/database"
	"github.com/mveloso/companion-bot/internal/tools"
)

// HandlerDeps provides dependencies for Telegram command and message
// handlers.
type HandlerDeps struct {
	Logger    *slog.Logger
	Config    *config.Config
	Store     database.Store
	Companion *companion.Companion
	Tools     *tools.Registry
}
