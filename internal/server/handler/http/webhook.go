// Package http provides the inbound HTTP surface of the bot: the purchase
// webhook and the health endpoint.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/atinyakov/silicabot/internal/models"
	"github.com/atinyakov/silicabot/internal/notify"
)

// maxWebhookBody caps the size of a purchase event.
const maxWebhookBody = 1 << 20

// Registrar finds the buyer on the chat platform and delivers their credentials.
type Registrar interface {
	// FindByName resolves a chat user name across every known server.
	FindByName(ctx context.Context, name string) (*models.Actor, error)
	// DeliverRegistration sends the credential messages in order.
	DeliverRegistration(ctx context.Context, recipientID string, cred models.Credential, isActive bool, durationDays int) (notify.Report, error)
}

// WebhookHandler handles purchase-completion events from the web shop.
type WebhookHandler struct {
	// Registrar performs recipient lookup and delivery.
	Registrar Registrar
	Logger    *zap.Logger
}

// RegisterEvent is the JSON payload of POST /webhook/register.
type RegisterEvent struct {
	DiscordUsername string `json:"discord_username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	TOTPSecret      string `json:"totp_secret"`
	QRCode          string `json:"qr_code"`
	ProductType     string `json:"product_type"`
	IsActive        bool   `json:"is_active"`
	DurationDays    int    `json:"duration_days"`
}

// RegisterResponse is the body of every webhook answer. Delivered and Total
// report how many credential messages reached the buyer.
type RegisterResponse struct {
	Success   bool   `json:"success,omitempty"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	Delivered *int   `json:"delivered,omitempty"`
	Total     *int   `json:"total,omitempty"`
}

// Register handles purchase events.
// It expects a JSON body with discord_username, email and password, looks the
// buyer up by name and sends them their credentials by DM. A delivery in
// which any message failed is answered with 500 and the partial counts.
func (h *WebhookHandler) Register(w http.ResponseWriter, r *http.Request) {
	// A body that is not declared as JSON is treated as empty.
	if mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mediaType != "application/json" {
		writeJSON(w, http.StatusBadRequest, RegisterResponse{Error: "Missing required fields"})
		return
	}

	var ev RegisterEvent
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxWebhookBody)).Decode(&ev); err != nil {
		writeJSON(w, http.StatusBadRequest, RegisterResponse{Error: "Invalid request body"})
		return
	}
	ev.DiscordUsername = strings.TrimSpace(ev.DiscordUsername)
	ev.Email = models.NormalizeEmail(ev.Email)
	if ev.DiscordUsername == "" || ev.Email == "" || ev.Password == "" {
		writeJSON(w, http.StatusBadRequest, RegisterResponse{Error: "Missing required fields"})
		return
	}

	log := h.Logger.With(
		zap.String("discord_username", ev.DiscordUsername),
		zap.String("product_type", ev.ProductType),
	)

	recipient, err := h.Registrar.FindByName(r.Context(), ev.DiscordUsername)
	if errors.Is(err, notify.ErrRecipientNotFound) {
		log.Info("buyer not found on any server")
		writeJSON(w, http.StatusNotFound, RegisterResponse{Error: "Discord user not found"})
		return
	}
	if err != nil {
		log.Error("recipient lookup failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, RegisterResponse{Error: "Webhook processing failed"})
		return
	}

	cred := models.Credential{
		Email:      ev.Email,
		Password:   ev.Password,
		TOTPSecret: ev.TOTPSecret,
		QRCode:     ev.QRCode,
	}
	report, err := h.Registrar.DeliverRegistration(r.Context(), recipient.ID, cred, ev.IsActive, ev.DurationDays)
	if err != nil {
		log.Warn("credential delivery failed",
			zap.String("recipient_id", recipient.ID),
			zap.Int("sent", report.Sent),
			zap.Int("total", report.Total),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, RegisterResponse{
			Error:     "Could not send DM. User may have DMs disabled.",
			Delivered: &report.Sent,
			Total:     &report.Total,
		})
		return
	}

	log.Info("credentials delivered", zap.String("recipient_id", recipient.ID), zap.String("recipient_tag", recipient.Tag))
	writeJSON(w, http.StatusOK, RegisterResponse{
		Success:   true,
		Message:   "DM sent successfully",
		Delivered: &report.Sent,
		Total:     &report.Total,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
