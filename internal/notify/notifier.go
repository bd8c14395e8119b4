// Package notify delivers private messages to chat users.
//
// Delivery is attempted part by part: a failed part does not stop the parts
// after it, and parts already sent are never retracted. The Report returned
// with every delivery says exactly how many parts arrived.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/atinyakov/silicabot/internal/models"
)

// ErrRecipientNotFound means the user is not a member of the searched server(s).
var ErrRecipientNotFound = errors.New("recipient not found")

// membersPageSize is the largest page the member listing endpoint serves.
const membersPageSize = 1000

// Session is the subset of *discordgo.Session the notifier needs.
type Session interface {
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	GuildMembers(guildID string, after string, limit int, options ...discordgo.RequestOption) ([]*discordgo.Member, error)
}

// GuildLister returns the ids of the servers the bot is in, in scan order.
type GuildLister func() []string

// Part is one private message: either an embed or a file attachment.
type Part struct {
	Embed    *discordgo.MessageEmbed
	FileName string
	Data     []byte
	// err marks a part that could not be built; it counts as failed without being sent.
	err error
}

// EmbedPart wraps an embed.
func EmbedPart(e *discordgo.MessageEmbed) Part {
	return Part{Embed: e}
}

// FilePart wraps an attachment.
func FilePart(name string, data []byte) Part {
	return Part{FileName: name, Data: data}
}

func (p Part) message() *discordgo.MessageSend {
	if p.Embed != nil {
		return &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{p.Embed}}
	}
	return &discordgo.MessageSend{Files: []*discordgo.File{{
		Name:        p.FileName,
		ContentType: http.DetectContentType(p.Data),
		Reader:      bytes.NewReader(p.Data),
	}}}
}

// Report describes the outcome of one delivery.
type Report struct {
	Total  int
	Sent   int
	Errors []error
}

// Delivered reports whether every part arrived.
func (r Report) Delivered() bool {
	return r.Total > 0 && r.Sent == r.Total
}

// Partial reports whether some, but not all, parts arrived.
func (r Report) Partial() bool {
	return r.Sent > 0 && r.Sent < r.Total
}

// DeliveryError is returned when at least one part was not delivered.
type DeliveryError struct {
	RecipientID string
	Report      Report
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivered %d of %d messages to %s: %v",
		e.Report.Sent, e.Report.Total, e.RecipientID, errors.Join(e.Report.Errors...))
}

func (e *DeliveryError) Unwrap() []error {
	return e.Report.Errors
}

// Stats counts delivery outcomes since start.
type Stats struct {
	Delivered atomic.Int64
	Failed    atomic.Int64
	// Swallowed counts best-effort notifications that failed silently.
	Swallowed atomic.Int64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Delivered int64 `json:"delivered"`
	Failed    int64 `json:"failed"`
	Swallowed int64 `json:"swallowed"`
}

// Snapshot copies the counters.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Delivered: s.Delivered.Load(),
		Failed:    s.Failed.Load(),
		Swallowed: s.Swallowed.Load(),
	}
}

// Notifier resolves recipients and delivers private messages to them.
type Notifier struct {
	session Session
	guilds  GuildLister
	log     *zap.Logger
	stats   Stats
}

// New creates a Notifier.
func New(session Session, guilds GuildLister, log *zap.Logger) *Notifier {
	return &Notifier{session: session, guilds: guilds, log: log}
}

// Stats exposes the delivery counters.
func (n *Notifier) Stats() *Stats {
	return &n.stats
}

// ResolveRecipient looks userID up among the members of guildID.
func (n *Notifier) ResolveRecipient(ctx context.Context, userID, guildID string) (*models.Actor, error) {
	if userID == "" || guildID == "" {
		return nil, ErrRecipientNotFound
	}
	m, err := n.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		if isNotFound(err) {
			return nil, ErrRecipientNotFound
		}
		return nil, fmt.Errorf("fetch member %s: %w", userID, err)
	}
	actor := ActorFromMember(m, guildID)
	return &actor, nil
}

// FindByName searches every known server, in order, for a member called name.
// Within a server a username match beats a display-name match, which beats a
// full-tag match. Comparison is case-insensitive.
//
// ErrRecipientNotFound means every server was searched. If a member listing
// failed and no other server matched, that listing error is returned instead.
func (n *Notifier) FindByName(ctx context.Context, name string) (*models.Actor, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrRecipientNotFound
	}

	var listErr error
	for _, guildID := range n.guilds() {
		members, err := n.allMembers(ctx, guildID)
		if err != nil {
			n.log.Warn("could not list server members", zap.String("guild_id", guildID), zap.Error(err))
			if listErr == nil {
				listErr = fmt.Errorf("list members of server %s: %w", guildID, err)
			}
			continue
		}
		for _, key := range []func(models.Actor) string{
			func(a models.Actor) string { return a.Username },
			func(a models.Actor) string { return a.DisplayName },
			func(a models.Actor) string { return a.Tag },
		} {
			for _, m := range members {
				actor := ActorFromMember(m, guildID)
				if strings.EqualFold(key(actor), name) {
					return &actor, nil
				}
			}
		}
	}
	if listErr != nil {
		return nil, listErr
	}
	return nil, ErrRecipientNotFound
}

func (n *Notifier) allMembers(ctx context.Context, guildID string) ([]*discordgo.Member, error) {
	var (
		out   []*discordgo.Member
		after string
	)
	for {
		page, err := n.session.GuildMembers(guildID, after, membersPageSize, discordgo.WithContext(ctx))
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < membersPageSize {
			return out, nil
		}
		last := page[len(page)-1]
		if last.User == nil {
			return out, nil
		}
		after = last.User.ID
	}
}

// Deliver opens a private channel to recipientID and sends parts in order.
// Every part is attempted even after a failure.
func (n *Notifier) Deliver(ctx context.Context, recipientID string, parts ...Part) (Report, error) {
	report := Report{Total: len(parts)}

	ch, err := n.session.UserChannelCreate(recipientID, discordgo.WithContext(ctx))
	if err != nil {
		report.Errors = append(report.Errors, fmt.Errorf("open private channel: %w", err))
		return n.finish(recipientID, report)
	}

	for i, p := range parts {
		if p.err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("part %d: %w", i+1, p.err))
			continue
		}
		if _, err := n.session.ChannelMessageSendComplex(ch.ID, p.message(), discordgo.WithContext(ctx)); err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("part %d: %w", i+1, err))
			continue
		}
		report.Sent++
	}
	return n.finish(recipientID, report)
}

func (n *Notifier) finish(recipientID string, report Report) (Report, error) {
	if report.Delivered() {
		n.stats.Delivered.Add(1)
		return report, nil
	}
	n.stats.Failed.Add(1)
	return report, &DeliveryError{RecipientID: recipientID, Report: report}
}

// BestEffort resolves userID in guildID and delivers parts, logging instead of
// returning any failure. It is used after a successful account change, where
// the change stands whether or not the account holder hears about it.
func (n *Notifier) BestEffort(ctx context.Context, guildID, userID, reason string, parts ...Part) {
	log := n.log.With(zap.String("recipient_id", userID), zap.String("reason", reason))

	if userID == "" {
		log.Info("account has no linked user, skipping notification")
		return
	}
	recipient, err := n.ResolveRecipient(ctx, userID, guildID)
	if err != nil {
		n.stats.Swallowed.Add(1)
		log.Warn("could not notify user", zap.Error(err))
		return
	}
	if _, err := n.Deliver(ctx, recipient.ID, parts...); err != nil {
		n.stats.Swallowed.Add(1)
		log.Warn("could not notify user", zap.Error(err))
		return
	}
	log.Info("user notified")
}

// ActorFromMember converts a server member into an Actor.
func ActorFromMember(m *discordgo.Member, guildID string) models.Actor {
	if m == nil || m.User == nil {
		return models.Actor{GuildID: guildID}
	}
	return models.Actor{
		ID:          m.User.ID,
		Username:    m.User.Username,
		DisplayName: displayName(m),
		Tag:         m.User.String(),
		Roles:       m.Roles,
		GuildID:     guildID,
	}
}

func displayName(m *discordgo.Member) string {
	if strings.TrimSpace(m.Nick) != "" {
		return m.Nick
	}
	if strings.TrimSpace(m.User.GlobalName) != "" {
		return m.User.GlobalName
	}
	return m.User.Username
}

func isNotFound(err error) bool {
	var restErr *discordgo.RESTError
	return errors.As(err, &restErr) && restErr.Response != nil &&
		restErr.Response.StatusCode == http.StatusNotFound
}
