// Package config provides functionality for managing configuration options
// for the bot using command-line flags, an optional JSON file and environment
// variables, in increasing order of precedence.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/atinyakov/silicabot/internal/access"
)

// ErrMissingToken is returned when no bot credential is configured.
var ErrMissingToken = errors.New("DISCORD_TOKEN is required")

// Options holds the configuration values for the bot.
type Options struct {
	// DiscordToken is the bot credential; the process refuses to start without it.
	DiscordToken string `json:"discord_token" env:"DISCORD_TOKEN"`

	// BackendURL is the base URL of the account backend.
	BackendURL string `json:"backend_url" env:"BACKEND_URL"`
	// AdminKey is sent as X-Admin-Key on admin operations.
	AdminKey string `json:"admin_key" env:"ADMIN_KEY"`
	// BackendTimeout bounds every backend request.
	BackendTimeout Duration `json:"backend_timeout" env:"BACKEND_TIMEOUT"`

	AdminRoleID        string   `json:"admin_role_id" env:"ADMIN_ROLE_ID"`
	AllowedRoleID      string   `json:"allowed_role_id" env:"ALLOWED_ROLE_ID"`
	AllowedChannels    []string `json:"allowed_channels" env:"ALLOWED_CHANNELS" envSeparator:","`
	AuthorizedServerID string   `json:"authorized_server_id" env:"AUTHORIZED_SERVER_ID"`
	// BootstrapAdminIDs always have admin rights. Every action they take is audited.
	BootstrapAdminIDs []string `json:"bootstrap_admin_ids" env:"BOOTSTRAP_ADMIN_IDS" envSeparator:","`

	// CommandPrefix starts every chat command.
	CommandPrefix string `json:"command_prefix" env:"COMMAND_PREFIX"`
	// ConfirmTimeout is how long a destructive command waits for "yes".
	ConfirmTimeout Duration `json:"confirm_timeout" env:"CONFIRM_TIMEOUT"`

	// WebhookPort is the listen port of the purchase webhook server.
	WebhookPort    string `json:"webhook_port" env:"WEBHOOK_PORT"`
	WebhookSecret  string `json:"webhook_secret" env:"WEBHOOK_SECRET"`
	WebhookTLSCert string `json:"webhook_tls_cert" env:"WEBHOOK_TLS_CERT"`
	WebhookTLSKey  string `json:"webhook_tls_key" env:"WEBHOOK_TLS_KEY"`

	LogLevel string `json:"log_level" env:"LOG_LEVEL"`
}

// Default returns the options used when nothing else is configured.
func Default() *Options {
	return &Options{
		BackendURL:     "http://localhost:5000",
		BackendTimeout: Duration{15 * time.Second},
		CommandPrefix:  "!",
		ConfirmTimeout: Duration{30 * time.Second},
		WebhookPort:    "3001",
		LogLevel:       "info",
	}
}

// Load reads Options like Read and validates them for running the bot.
func Load(path string) (*Options, error) {
	opts, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// Read builds Options from defaults, then the JSON file at path (skipped when
// path is empty or missing), then environment variables. It does not validate.
func Read(path string) (*Options, error) {
	opts := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			if err := json.Unmarshal(data, opts); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	if err := env.Parse(opts); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	opts.AllowedChannels = cleanIDs(opts.AllowedChannels)
	opts.BootstrapAdminIDs = cleanIDs(opts.BootstrapAdminIDs)
	opts.BackendURL = strings.TrimRight(opts.BackendURL, "/")
	return opts, nil
}

// Validate checks the options the bot cannot start without.
func (o *Options) Validate() error {
	if o.DiscordToken == "" {
		return ErrMissingToken
	}
	if o.ConfirmTimeout.Duration <= 0 {
		return fmt.Errorf("confirm timeout must be positive, got %s", o.ConfirmTimeout)
	}
	if o.CommandPrefix == "" {
		return errors.New("command prefix must not be empty")
	}
	return nil
}

// Parse reads the -config flag (or CONFIG env) from args and loads Options.
// It returns the resolved config path so the caller can reload it later.
func Parse(args []string) (*Options, string, error) {
	fs := flag.NewFlagSet("silicabot", flag.ContinueOnError)
	var path string
	fs.StringVar(&path, "config", "config.json", "path to config file")
	fs.StringVar(&path, "c", "config.json", "path to config file (shorthand)")
	if err := fs.Parse(args); err != nil {
		return nil, "", err
	}

	if configPath := os.Getenv("CONFIG"); configPath != "" {
		path = configPath
	}

	opts, err := Load(path)
	if err != nil {
		return nil, "", err
	}
	return opts, path, nil
}

// Policy extracts the access snapshot.
func (o *Options) Policy() access.Policy {
	return access.Policy{
		BootstrapAdminIDs:  o.BootstrapAdminIDs,
		AdminRoleID:        o.AdminRoleID,
		AllowedRoleID:      o.AllowedRoleID,
		AllowedChannelIDs:  o.AllowedChannels,
		AuthorizedServerID: o.AuthorizedServerID,
	}
}

// WebhookAddr is the listen address of the webhook server.
func (o *Options) WebhookAddr() string {
	return ":" + o.WebhookPort
}

// Duration accepts Go duration strings ("30s") from both JSON and the environment.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func cleanIDs(ids []string) []string {
	out := ids[:0]
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
