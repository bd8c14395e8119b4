package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/atinyakov/silicabot/internal/confirm"
	"github.com/atinyakov/silicabot/internal/embed"
	"github.com/atinyakov/silicabot/internal/models"
	"github.com/atinyakov/silicabot/internal/notify"
)

// maxListedUsers caps the accounts shown by list-users.
const maxListedUsers = 10

// maxFieldValue is the platform's limit on an embed field value, in characters.
const maxFieldValue = 1024

func (r *request) expectArgs(n int) error {
	if len(r.args) != n {
		return invalid(r.command.usage(r.prefix))
	}
	return nil
}

func parseEmail(s string) (string, error) {
	email := models.NormalizeEmail(s)
	if !models.LooksLikeEmail(email) {
		return "", invalid(msgInvalidEmail)
	}
	return email, nil
}

func parseDays(s string) (int, error) {
	days, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || days <= 0 {
		return 0, invalid(msgInvalidDays)
	}
	return days, nil
}

// emailAndDays validates the "<email> <days>" argument shape.
func (r *request) emailAndDays() (string, int, error) {
	if err := r.expectArgs(2); err != nil {
		return "", 0, err
	}
	email, err := parseEmail(r.args[0])
	if err != nil {
		return "", 0, err
	}
	days, err := parseDays(r.args[1])
	if err != nil {
		return "", 0, err
	}
	return email, days, nil
}

func (r *request) singleEmail() (string, error) {
	if err := r.expectArgs(1); err != nil {
		return "", err
	}
	return parseEmail(r.args[0])
}

// notifyHolder informs the owner of an account changed by an admin. Failure is
// logged and counted by the notifier, never returned.
func (d *Dispatcher) notifyHolder(ctx context.Context, req *request, discordID string, e *discordgo.MessageEmbed) {
	d.notifier.BestEffort(ctx, req.msg.GuildID, discordID, req.command.String(), notify.EmbedPart(e))
}

func (d *Dispatcher) help(_ context.Context, req *request) (*discordgo.MessageEmbed, error) {
	p := req.prefix
	var b strings.Builder
	b.WriteString("**Available Commands:**\n\n")
	fmt.Fprintf(&b, "`%sregister <email>` - Register a new account\n", p)
	fmt.Fprintf(&b, "`%shelp` - Show this help message\n\n", p)

	if req.policy.IsAdmin(req.actor()) {
		b.WriteString("**Admin Commands:**\n")
		fmt.Fprintf(&b, "`%sactivate <email> <days>` - Activate a user account\n", p)
		fmt.Fprintf(&b, "`%sadd-duration <email> <days>` - Add days to a user's subscription\n", p)
		fmt.Fprintf(&b, "`%sremove-duration <email> <days>` - Remove days from a user's subscription\n", p)
		fmt.Fprintf(&b, "`%sreset-account <email>` - Reset a user's account\n", p)
		fmt.Fprintf(&b, "`%sreset-hwid <email>` - Reset a user's HWID\n", p)
		fmt.Fprintf(&b, "`%sreset-all-users` - Reset all user accounts (requires confirmation)\n", p)
		fmt.Fprintf(&b, "`%suser-info <email>` - Get detailed user information\n", p)
		fmt.Fprintf(&b, "`%sset-note <email> <note>` - Set a note on a user's account\n", p)
		fmt.Fprintf(&b, "`%slist-users` - List all registered users", p)
	}
	return embed.Info("📚 Help", strings.TrimRight(b.String(), "\n")), nil
}

func (d *Dispatcher) register(ctx context.Context, req *request) (*discordgo.MessageEmbed, error) {
	email, err := req.singleEmail()
	if err != nil {
		return nil, err
	}

	actorID := req.actor().ID
	exists, err := d.backend.CheckAccountExists(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, invalid(msgAlreadyAccount)
	}

	cred, err := d.backend.Register(ctx, email, actorID)
	if err != nil {
		return nil, err
	}

	report, err := d.notifier.DeliverRegistration(ctx, actorID, *cred, false, 0)
	if err != nil {
		req.log.Warn("could not deliver credentials",
			zap.Int("sent", report.Sent),
			zap.Int("total", report.Total),
			zap.Error(err),
		)
		return embed.Warning(
			"✅ Registration Request Submitted",
			fmt.Sprintf("Your registration request has been submitted.\nAn admin will review and activate your account.\n\n"+
				"Email: **%s**\n\nYour login credentials could not be sent by DM. "+
				"Enable direct messages from server members and contact an admin.", email),
		), nil
	}

	return embed.Success(
		"✅ Registration Request Submitted",
		fmt.Sprintf("Your registration request has been submitted.\nAn admin will review and activate your account.\n\n"+
			"Email: **%s**\n\nCheck your DMs for login credentials.", email),
	), nil
}

func (d *Dispatcher) activate(ctx context.Context, req *request) (*discordgo.MessageEmbed, error) {
	email, days, err := req.emailAndDays()
	if err != nil {
		return nil, err
	}

	discordID, err := d.backend.Activate(ctx, email, days)
	if err != nil {
		return nil, err
	}

	d.notifyHolder(ctx, req, discordID, embed.Success(
		"✅ Account Activated",
		fmt.Sprintf("Your account has been activated!\n\nEmail: **%s**\nDuration: **%d days**\n\nYou can now log in to the client.", email, days),
	))
	return embed.Success(
		"✅ Account Activated",
		fmt.Sprintf("Successfully activated account for **%s**\nDuration: **%d days**", email, days),
	), nil
}

func (d *Dispatcher) addDuration(ctx context.Context, req *request) (*discordgo.MessageEmbed, error) {
	email, days, err := req.emailAndDays()
	if err != nil {
		return nil, err
	}

	change, err := d.backend.AddDuration(ctx, email, days)
	if err != nil {
		return nil, err
	}

	d.notifyHolder(ctx, req, change.DiscordID, embed.Success(
		"✅ Duration Extended",
		fmt.Sprintf("Your subscription has been extended!\n\nAdded: **%d days**\nNew expiration: **%s**", days, change.NewExpiry),
	))
	return embed.Success(
		"✅ Duration Added",
		fmt.Sprintf("Added **%d days** to **%s**\nNew expiration: **%s**", days, email, change.NewExpiry),
	), nil
}

func (d *Dispatcher) removeDuration(ctx context.Context, req *request) (*discordgo.MessageEmbed, error) {
	email, days, err := req.emailAndDays()
	if err != nil {
		return nil, err
	}

	change, err := d.backend.RemoveDuration(ctx, email, days)
	if err != nil {
		return nil, err
	}

	d.notifyHolder(ctx, req, change.DiscordID, embed.Warning(
		"⚠️ Duration Reduced",
		fmt.Sprintf("Your subscription duration has been reduced.\n\nRemoved: **%d days**\nNew expiration: **%s**", days, change.NewExpiry),
	))
	return embed.Success(
		"✅ Duration Removed",
		fmt.Sprintf("Removed **%d days** from **%s**\nNew expiration: **%s**", days, email, change.NewExpiry),
	), nil
}

func (d *Dispatcher) resetAccount(ctx context.Context, req *request) (*discordgo.MessageEmbed, error) {
	email, err := req.singleEmail()
	if err != nil {
		return nil, err
	}

	discordID, err := d.backend.ResetAccount(ctx, email)
	if err != nil {
		return nil, err
	}

	d.notifyHolder(ctx, req, discordID, embed.Warning(
		"⚠️ Account Reset",
		fmt.Sprintf("Your account has been reset by an administrator.\nYou can now register a new account using `%sregister`.", req.prefix),
	))
	return embed.Success(
		"✅ Account Reset",
		fmt.Sprintf("Successfully reset account for **%s**\nUser can now register a new account.", email),
	), nil
}

func (d *Dispatcher) resetHWID(ctx context.Context, req *request) (*discordgo.MessageEmbed, error) {
	email, err := req.singleEmail()
	if err != nil {
		return nil, err
	}

	if err := d.backend.ResetHWID(ctx, email); err != nil {
		return nil, err
	}

	req.log.Info("hwid reset", zap.String("email", email), zap.String("admin", req.actor().Tag))
	return embed.Success(
		"✅ HWID Reset Successful",
		fmt.Sprintf("Hardware ID has been reset for **%s**\n\nThe user can now login from a new device.", email),
	), nil
}

func (d *Dispatcher) userInfo(ctx context.Context, req *request) (*discordgo.MessageEmbed, error) {
	email, err := req.singleEmail()
	if err != nil {
		return nil, err
	}

	user, err := d.backend.UserInfo(ctx, email)
	if err != nil {
		return nil, err
	}

	discordTag := "Not Found"
	if user.DiscordID != "" {
		m, err := d.notifier.ResolveRecipient(ctx, user.DiscordID, req.msg.GuildID)
		switch {
		case err == nil:
			discordTag = fmt.Sprintf("%s (%s)", m.Tag, m.ID)
		case !errors.Is(err, notify.ErrRecipientNotFound):
			req.log.Warn("could not look up linked member", zap.String("discord_id", user.DiscordID), zap.Error(err))
		}
	}

	status := "❌ Inactive"
	if user.IsActive {
		status = "✅ Active"
	}
	hwid := "❌ Not Set"
	if user.Status() == models.HWIDSet {
		hwid = "✅ Set"
	}

	e := embed.Info("👤 User Information", "")
	e.Fields = []*discordgo.MessageEmbedField{
		{Name: "Email", Value: user.Email, Inline: true},
		{Name: "Discord", Value: discordTag, Inline: true},
		{Name: "Status", Value: status, Inline: true},
		{Name: "Expires", Value: relative(user.ExpiresAt, "Never"), Inline: true},
		{Name: "Last Login", Value: relative(user.LastLogin, "Never"), Inline: true},
		{Name: "HWID", Value: hwid, Inline: true},
		{Name: "Created", Value: relative(user.CreatedAt, "Unknown"), Inline: true},
	}
	if strings.TrimSpace(user.Note) != "" {
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: "Note", Value: truncate(user.Note, maxFieldValue)})
	}
	return e, nil
}

// relative renders ts as a client-localized relative time.
func relative(ts *models.Timestamp, unset string) string {
	if ts == nil || ts.IsZero() {
		return unset
	}
	return fmt.Sprintf("<t:%d:R>", ts.Unix())
}

// truncate shortens s to at most limit characters, ending in an ellipsis when cut.
func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}

func shortDate(ts *models.Timestamp) string {
	if ts == nil || ts.IsZero() {
		return "Never"
	}
	return ts.Format("2006-01-02")
}

func (d *Dispatcher) setNote(ctx context.Context, req *request) (*discordgo.MessageEmbed, error) {
	if len(req.args) < 2 {
		return nil, invalid(req.command.usage(req.prefix))
	}
	email, err := parseEmail(req.args[0])
	if err != nil {
		return nil, err
	}
	note := strings.Join(req.args[1:], " ")

	if err := d.backend.SetNote(ctx, email, note); err != nil {
		return nil, err
	}
	return embed.Success("✅ Note Updated", fmt.Sprintf("Successfully updated note for **%s**", email)), nil
}

func (d *Dispatcher) listUsers(ctx context.Context, _ *request) (*discordgo.MessageEmbed, error) {
	users, err := d.backend.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return embed.Info("👥 User List", "No users found."), nil
	}

	var b strings.Builder
	for i, u := range users[:min(len(users), maxListedUsers)] {
		status := "🔴"
		if u.IsActive {
			status = "🟢"
		}
		lock := "🔓"
		if u.HWIDStatus == models.HWIDSet {
			lock = "🔒"
		}
		fmt.Fprintf(&b, "%d. %s **%s**\n", i+1, status, u.Email)
		fmt.Fprintf(&b, "   %s HWID: %s | Last: %s | Exp: %s\n\n", lock, u.HWIDStatus, shortDate(u.LastLogin), shortDate(u.ExpiresAt))
	}
	if len(users) > maxListedUsers {
		fmt.Fprintf(&b, "... and %d more users", len(users)-maxListedUsers)
	}

	e := embed.Info("👥 Registered Users", strings.TrimRight(b.String(), "\n"))
	e.Footer = &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Total: %d users", len(users))}
	return e, nil
}

func (d *Dispatcher) resetAllUsers(ctx context.Context, req *request) (*discordgo.MessageEmbed, error) {
	if err := req.expectArgs(0); err != nil {
		return nil, err
	}

	pending, err := d.confirms.Begin(req.actor().ID, req.msg.ChannelID)
	if err != nil {
		return nil, err
	}
	req.log.Warn("reset of all users requested", zap.String("confirmation_id", pending.ID))

	d.reply(req, embed.Warning(
		"⚠️ Confirm Reset All Users",
		"This will:\n"+
			"• Deactivate all user accounts\n"+
			"• Reset all HWIDs\n"+
			"• Remove all expiration dates\n"+
			"• Clear all last login timestamps\n\n"+
			fmt.Sprintf("Are you sure? Reply with `%s` within %s to confirm.", confirm.Token, d.confirms.Timeout()),
	))

	if err := pending.Wait(ctx); err != nil {
		req.log.Info("reset of all users not confirmed", zap.String("confirmation_id", pending.ID), zap.Error(err))
		return nil, err
	}

	affected, err := d.backend.ResetAllUsers(ctx)
	if err != nil {
		return nil, err
	}

	req.log.Warn("all users reset", zap.String("confirmation_id", pending.ID), zap.Int("affected_users", affected))
	return embed.Success(
		"✅ All Users Reset",
		fmt.Sprintf("Successfully reset %d user accounts.\nAll users will need to be reactivated by an admin.", affected),
	), nil
}
