// Package config provides functionality for managing configuration options
// for the content API server using command-line flags, a JSON config file
// and environment variables.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"
)

// Duration is a time.Duration written as a string ("12h") in the config file.
type Duration struct {
	time.Duration
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Options holds the configuration values for the application.
type Options struct {
	// Port defines the server's listening address (ip:port).
	Port string `json:"server_address"`

	// DatabaseDSN holds the database connection string for the application.
	DatabaseDSN string `json:"database_dsn"`

	// Config is the path to the Config file.
	Config string `json:"-"`

	// UploadDir is where uploaded files are stored and served from.
	UploadDir string `json:"upload_dir"`

	// SessionTTL is how long a login token stays valid.
	SessionTTL Duration `json:"session_ttl"`

	// TLSCert and TLSKey enable HTTPS when both are set.
	TLSCert string `json:"tls_cert"`
	TLSKey  string `json:"tls_key"`

	// Admin account seeded on startup when AdminEmail and AdminPassword are set.
	AdminEmail    string `json:"admin_email"`
	AdminPassword string `json:"admin_password"`
	AdminName     string `json:"admin_name"`

	// LogLevel is a zap level name.
	LogLevel string `json:"log_level"`
}

func defaults() *Options {
	return &Options{
		Port:       "localhost:8080",
		Config:     "config.json",
		UploadDir:  "uploads",
		SessionTTL: Duration{24 * time.Hour},
		AdminName:  "Admin",
		LogLevel:   "info",
	}
}

// Load builds Options from args and getenv. Precedence, lowest first:
// defaults, config file, flags given in args, environment.
func Load(args []string, getenv func(string) string) (*Options, error) {
	opts := defaults()
	fromFlags := defaults()

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&fromFlags.Port, "a", fromFlags.Port, "run on ip:port server")
	fs.StringVar(&fromFlags.DatabaseDSN, "d", "", "db address")
	fs.StringVar(&fromFlags.Config, "config", fromFlags.Config, "path to config file")
	fs.StringVar(&fromFlags.Config, "c", fromFlags.Config, "path to config file (shorthand)")
	fs.StringVar(&fromFlags.UploadDir, "uploads", fromFlags.UploadDir, "upload directory")
	fs.DurationVar(&fromFlags.SessionTTL.Duration, "session-ttl", fromFlags.SessionTTL.Duration, "login session lifetime")
	fs.StringVar(&fromFlags.TLSCert, "tls-cert", "", "path to TLS certificate")
	fs.StringVar(&fromFlags.TLSKey, "tls-key", "", "path to TLS key")
	fs.StringVar(&fromFlags.AdminEmail, "admin-email", "", "seeded admin email")
	fs.StringVar(&fromFlags.AdminPassword, "admin-password", "", "seeded admin password")
	fs.StringVar(&fromFlags.AdminName, "admin-name", fromFlags.AdminName, "seeded admin display name")
	fs.StringVar(&fromFlags.LogLevel, "log-level", fromFlags.LogLevel, "log level")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	opts.Config = fromFlags.Config
	if configPath := getenv("CONFIG"); configPath != "" {
		opts.Config = configPath
	}
	if err := readFile(opts.Config, opts); err != nil {
		return nil, err
	}

	apply := map[string]func(){
		"a":              func() { opts.Port = fromFlags.Port },
		"d":              func() { opts.DatabaseDSN = fromFlags.DatabaseDSN },
		"uploads":        func() { opts.UploadDir = fromFlags.UploadDir },
		"session-ttl":    func() { opts.SessionTTL = fromFlags.SessionTTL },
		"tls-cert":       func() { opts.TLSCert = fromFlags.TLSCert },
		"tls-key":        func() { opts.TLSKey = fromFlags.TLSKey },
		"admin-email":    func() { opts.AdminEmail = fromFlags.AdminEmail },
		"admin-password": func() { opts.AdminPassword = fromFlags.AdminPassword },
		"admin-name":     func() { opts.AdminName = fromFlags.AdminName },
		"log-level":      func() { opts.LogLevel = fromFlags.LogLevel },
	}
	for name, fn := range apply {
		if set[name] {
			fn()
		}
	}

	for env, dst := range map[string]*string{
		"SERVER_ADDRESS": &opts.Port,
		"DATABASE_DSN":   &opts.DatabaseDSN,
		"ADMIN_EMAIL":    &opts.AdminEmail,
		"ADMIN_PASSWORD": &opts.AdminPassword,
	} {
		if v := getenv(env); v != "" {
			*dst = v
		}
	}

	if (opts.TLSCert == "") != (opts.TLSKey == "") {
		return nil, errors.New("tls-cert and tls-key must be set together")
	}
	return opts, nil
}

// readFile merges the JSON config at path into opts. A missing file is
// not an error.
func readFile(path string, opts *Options) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("error while reading config file: %w", err)
	}
	if err := json.Unmarshal(data, opts); err != nil {
		return fmt.Errorf("error while parsing config file: %w", err)
	}
	return nil
}

// Parse parses the command-line flags and environment variables to set
// configuration values. It exits the process on invalid configuration.
func Parse() *Options {
	opts, err := Load(os.Args[1:], os.Getenv)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return opts
}
