package bot

import (
	"errors"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/atinyakov/silicabot/internal/backend"
	"github.com/atinyakov/silicabot/internal/confirm"
	"github.com/atinyakov/silicabot/internal/embed"
)

// Denial texts, one per gate.
const (
	DenyServer  = "❌ This bot is not authorized for use in this server."
	DenyChannel = "❌ This bot can only be used in authorized channels.\nContact an admin for access."
	DenyAdmin   = "❌ This command requires admin permissions."
	DenyUser    = "❌ You do not have permission to use this bot.\nContact an admin for access."
)

const (
	msgGeneric        = "An unexpected error occurred. Please try again later."
	msgInvalidEmail   = "Please provide a valid email address."
	msgInvalidDays    = "Please provide a valid positive number of days."
	msgConfirmTimeout = "Reset cancelled - confirmation timeout"
	msgAlreadyPending = "A reset is already waiting for your confirmation in this channel."
	msgAlreadyAccount = "❌ You already have a registered account.\nContact an admin if you need to reset your account."
)

// ValidationError is a rejected argument list. No backend call was made.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// AuthorizationError is a gate denial. No backend call was made.
type AuthorizationError struct {
	Gate    string
	Message string
}

func (e *AuthorizationError) Error() string {
	return "denied by " + e.Gate + " gate"
}

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}

// replyFor maps a handler error to the single reply the actor sees.
func replyFor(err error, log *zap.Logger) *discordgo.MessageEmbed {
	var (
		ve *ValidationError
		ae *AuthorizationError
		be *backend.Error
	)
	switch {
	case errors.As(err, &ve):
		return embed.Error(ve.Message)
	case errors.As(err, &ae):
		log.Info("command denied", zap.String("gate", ae.Gate))
		return embed.Error(ae.Message)
	case errors.As(err, &be):
		log.Warn("backend call failed", zap.String("op", be.Op), zap.Int("status", be.StatusCode), zap.String("detail", be.Detail()))
		return embed.Error(be.Message)
	case errors.Is(err, confirm.ErrTimeout):
		return embed.Error(msgConfirmTimeout)
	case errors.Is(err, confirm.ErrAlreadyPending):
		return embed.Error(msgAlreadyPending)
	default:
		log.Error("command failed", zap.Error(err))
		return embed.Error(msgGeneric)
	}
}
