// Package console is the operator shell over the account backend. It offers
// the admin commands of the chat bot for use without the chat platform.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/silicabot/internal/backend"
	"github.com/atinyakov/silicabot/internal/models"
)

// Prompt is printed before every line read.
const Prompt = "silicabot> "

const helpText = `Available commands:
  list-users
  user-info <email>
  reset-hwid <email>
  activate <email> <days>
  add-duration <email> <days>
  remove-duration <email> <days>
  set-note <email> [note]
  help, exit`

// Backend is the subset of backend.Client the shell drives.
type Backend interface {
	ListUsers(ctx context.Context) ([]models.AccountSummary, error)
	UserInfo(ctx context.Context, email string) (*models.UserInfo, error)
	ResetHWID(ctx context.Context, email string) error
	Activate(ctx context.Context, email string, days int) (string, error)
	AddDuration(ctx context.Context, email string, days int) (*models.DurationChange, error)
	RemoveDuration(ctx context.Context, email string, days int) (*models.DurationChange, error)
	SetNote(ctx context.Context, email, note string) error
}

// Shell reads commands line by line and prints the backend's answers.
type Shell struct {
	backend Backend
	in      *bufio.Scanner
	out     io.Writer
	log     *zap.Logger
}

// New creates a Shell reading from in and writing to out.
func New(b Backend, in io.Reader, out io.Writer, log *zap.Logger) *Shell {
	return &Shell{backend: b, in: bufio.NewScanner(in), out: out, log: log}
}

// Run loops until exit, end of input or ctx is cancelled.
func (s *Shell) Run(ctx context.Context) {
	for ctx.Err() == nil {
		fmt.Fprint(s.out, Prompt)
		if !s.in.Scan() {
			fmt.Fprintln(s.out)
			return
		}
		args := strings.Fields(s.in.Text())
		if len(args) == 0 {
			continue
		}
		if args[0] == "exit" || args[0] == "quit" {
			fmt.Fprintln(s.out, "Bye")
			return
		}
		s.exec(ctx, args[0], args[1:])
	}
}

func (s *Shell) exec(ctx context.Context, name string, args []string) {
	var err error
	switch name {
	case "help":
		fmt.Fprintln(s.out, helpText)
	case "list-users":
		err = s.listUsers(ctx)
	case "user-info":
		err = s.withEmail(args, "user-info <email>", func(email string) error { return s.userInfo(ctx, email) })
	case "reset-hwid":
		err = s.withEmail(args, "reset-hwid <email>", func(email string) error {
			if err := s.backend.ResetHWID(ctx, email); err != nil {
				return err
			}
			fmt.Fprintf(s.out, "HWID reset for %s\n", email)
			return nil
		})
	case "activate":
		err = s.withDays(args, "activate <email> <days>", func(email string, days int) error {
			discordID, err := s.backend.Activate(ctx, email, days)
			if err != nil {
				return err
			}
			fmt.Fprintf(s.out, "Activated %s for %d days%s\n", email, days, linked(discordID))
			return nil
		})
	case "add-duration", "remove-duration":
		adjust, verb := s.backend.AddDuration, "Added"
		if name == "remove-duration" {
			adjust, verb = s.backend.RemoveDuration, "Removed"
		}
		err = s.withDays(args, name+" <email> <days>", func(email string, days int) error {
			change, err := adjust(ctx, email, days)
			if err != nil {
				return err
			}
			fmt.Fprintf(s.out, "%s %d days for %s, new expiry %s%s\n", verb, days, email, change.NewExpiry, linked(change.DiscordID))
			return nil
		})
	case "set-note":
		err = s.setNote(ctx, args)
	default:
		fmt.Fprintln(s.out, "Unknown command. Type 'help' for a list of commands.")
	}
	if err != nil {
		s.report(name, err)
	}
}

func (s *Shell) listUsers(ctx context.Context) error {
	users, err := s.backend.ListUsers(ctx)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		fmt.Fprintln(s.out, "No users found")
		return nil
	}
	for _, u := range users {
		status := "inactive"
		if u.IsActive {
			status = "active"
		}
		fmt.Fprintf(s.out, "%-32s %-8s expires %-10s hwid %s\n", u.Email, status, date(u.ExpiresAt), u.HWIDStatus)
	}
	fmt.Fprintf(s.out, "Total users: %d\n", len(users))
	return nil
}

func (s *Shell) userInfo(ctx context.Context, email string) error {
	info, err := s.backend.UserInfo(ctx, email)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Email:      %s\n", info.Email)
	fmt.Fprintf(s.out, "Active:     %t\n", info.IsActive)
	fmt.Fprintf(s.out, "Expires:    %s\n", date(info.ExpiresAt))
	fmt.Fprintf(s.out, "Last login: %s\n", date(info.LastLogin))
	fmt.Fprintf(s.out, "Created:    %s\n", date(info.CreatedAt))
	fmt.Fprintf(s.out, "HWID:       %s\n", info.Status())
	fmt.Fprintf(s.out, "Discord ID: %s\n", orNone(info.DiscordID))
	fmt.Fprintf(s.out, "Note:       %s\n", orNone(info.Note))
	return nil
}

// setNote takes the note from the rest of the line, or prompts for it.
func (s *Shell) setNote(ctx context.Context, args []string) error {
	return s.withEmail(args, "set-note <email> [note]", func(email string) error {
		note := strings.Join(args[1:], " ")
		if note == "" {
			note = s.PromptLine("Enter note: ")
		}
		if note == "" {
			fmt.Fprintln(s.out, "Note must not be empty")
			return nil
		}
		if err := s.backend.SetNote(ctx, email, note); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "Note updated for %s\n", email)
		return nil
	})
}

// PromptLine prints label and returns the next trimmed input line.
func (s *Shell) PromptLine(label string) string {
	fmt.Fprint(s.out, label)
	if !s.in.Scan() {
		return ""
	}
	return strings.TrimSpace(s.in.Text())
}

func (s *Shell) withEmail(args []string, usage string, fn func(email string) error) error {
	if len(args) < 1 {
		fmt.Fprintln(s.out, "Usage: "+usage)
		return nil
	}
	email := models.NormalizeEmail(args[0])
	if !models.LooksLikeEmail(email) {
		fmt.Fprintln(s.out, "Invalid email address")
		return nil
	}
	return fn(email)
}

func (s *Shell) withDays(args []string, usage string, fn func(email string, days int) error) error {
	if len(args) < 2 {
		fmt.Fprintln(s.out, "Usage: "+usage)
		return nil
	}
	days, err := strconv.Atoi(args[1])
	if err != nil || days <= 0 {
		fmt.Fprintln(s.out, "Days must be a positive number")
		return nil
	}
	return s.withEmail(args[:1], usage, func(email string) error { return fn(email, days) })
}

// report prints the error and logs the backend detail when there is one.
func (s *Shell) report(command string, err error) {
	fmt.Fprintln(s.out, "Error: "+err.Error())
	detail := err.Error()
	var berr *backend.Error
	if errors.As(err, &berr) {
		detail = berr.Detail()
	}
	s.log.Warn("command failed", zap.String("command", command), zap.String("detail", detail))
}

func date(t *models.Timestamp) string {
	if t == nil {
		return "Never"
	}
	return t.UTC().Format(time.DateOnly)
}

func linked(discordID string) string {
	if discordID == "" {
		return ""
	}
	return " (discord " + discordID + ")"
}

func orNone(s string) string {
	if s == "" {
		return "None"
	}
	return s
}
