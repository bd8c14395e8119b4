package notify

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/atinyakov/silicabot/internal/embed"
	"github.com/atinyakov/silicabot/internal/models"
)

// QRFileName is the attachment name of the authenticator QR code.
const QRFileName = "qr-code.png"

// ErrInvalidQRCode is recorded against the QR part when the payload cannot be decoded.
var ErrInvalidQRCode = errors.New("invalid qr code payload")

// RegistrationParts builds the credential messages in delivery order: the
// login summary, the QR code image and the backup code. An empty QR payload
// is left out; a malformed one yields a part that counts as failed.
func RegistrationParts(cred models.Credential, isActive bool, durationDays int) []Part {
	parts := []Part{EmbedPart(credentialsEmbed(cred, isActive, durationDays))}

	if strings.TrimSpace(cred.QRCode) != "" {
		img, err := DecodeQRCode(cred.QRCode)
		if err != nil {
			parts = append(parts, Part{FileName: QRFileName, err: err})
		} else {
			parts = append(parts, FilePart(QRFileName, img))
		}
	}

	parts = append(parts, EmbedPart(embed.Info(
		"📱 2FA Setup Instructions",
		"1. Install Google Authenticator\n2. Scan the QR code above\n3. Keep your 2FA secret safe\n\n"+
			"**Backup Code:** `"+cred.TOTPSecret+"`",
	)))
	return parts
}

// DeliverRegistration sends the one-time credentials to recipientID.
func (n *Notifier) DeliverRegistration(ctx context.Context, recipientID string, cred models.Credential, isActive bool, durationDays int) (Report, error) {
	return n.Deliver(ctx, recipientID, RegistrationParts(cred, isActive, durationDays)...)
}

// DecodeQRCode strips the data-URI header, if any, and decodes the base64 image.
func DecodeQRCode(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if strings.HasPrefix(payload, "data:") {
		_, data, ok := strings.Cut(payload, ",")
		if !ok {
			return nil, fmt.Errorf("%w: missing data", ErrInvalidQRCode)
		}
		payload = data
	}
	img, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQRCode, err)
	}
	if len(img) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrInvalidQRCode)
	}
	return img, nil
}

func credentialsEmbed(cred models.Credential, isActive bool, durationDays int) *discordgo.MessageEmbed {
	status := "inactive"
	if isActive {
		status = "active"
	}

	var b strings.Builder
	b.WriteString("**Purchase Confirmed!** Your account has been created.\n\n")
	fmt.Fprintf(&b, "Email: **%s**\nPassword: **%s**\n\n", cred.Email, cred.Password)
	b.WriteString("**Important Notes:**\n")
	fmt.Fprintf(&b, "• Your account is currently %s\n", status)
	if isActive && durationDays > 0 {
		fmt.Fprintf(&b, "• Your access lasts %d days\n", durationDays)
	} else {
		b.WriteString("• An admin must approve and set duration\n")
		b.WriteString("• You'll receive another DM when activated\n")
	}
	b.WriteString("\nScan this QR code with Google Authenticator:")

	return embed.Success("🔐 Your Silica Client Login Credentials", b.String())
}
