// Package main wires the members server: configuration, logging,
// persistence, and the HTTP surface.
package main

import (
	"flag"
	"os"
)

// Config holds runtime settings for the members server.
//
// Fields:
//   - ListenAddr: bind address for the HTTP listener.
//   - DatabaseDSN: store connection string (sqlite file or shared DSN).
//   - SessionSecret: HMAC secret signing the session cookie. Do not use
//     the development default in production.
type Config struct {
	ListenAddr    string
	DatabaseDSN   string
	SessionSecret string
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.ListenAddr = ":3000"
	c.DatabaseDSN = "file:members.db?cache=shared&mode=rwc"
	c.SessionSecret = "development-secret"
}

// LoadConfig builds a Config by applying defaults, then overlaying
// environment variables and finally command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	cfg.parseEnv()
	cfg.parseFlags(os.Args[1:])
	return cfg
}

func (c *Config) parseEnv() {
	if v := os.Getenv("MEMBERS_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.ListenAddr = ":" + v
	}
	if v := os.Getenv("MEMBERS_DATABASE_DSN"); v != "" {
		c.DatabaseDSN = v
	}
	if v := os.Getenv("MEMBERS_SESSION_SECRET"); v != "" {
		c.SessionSecret = v
	}
}

func (c *Config) parseFlags(args []string) {
	fs := flag.NewFlagSet("members", flag.ContinueOnError)

	fs.StringVar(&c.ListenAddr, "a", c.ListenAddr, "address and port to run server")
	fs.StringVar(&c.DatabaseDSN, "d", c.DatabaseDSN, "database DSN")
	fs.StringVar(&c.SessionSecret, "s", c.SessionSecret, "session cookie signing secret")

	if err := fs.Parse(args); err != nil {
		fs.Usage()
		os.Exit(2)
	}
}
