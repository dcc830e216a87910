// Package config holds the server settings, read from flags, ALHEURE_*
// environment variables and an optional config file, in that order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/MysteryBlokHed/alheure/internal/game"
)

const EnvPrefix = "ALHEURE"

type Config struct {
	Bind string
	Port int

	AnswerTime     int
	ShowdownTime   int
	BuzzAnswerTime int
	CategoryPolicy string

	QuestionFile  string
	ExportFile    string
	SingleSession bool
	PublicURL     string

	HostUser string
	HostPass string

	ConfigFile string
	Verbose    bool
}

// Register adds the server flags to fs, with their defaults.
func Register(fs *pflag.FlagSet, c *Config) {
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&c.Bind, "bind", "b", "0.0.0.0", "address to bind to (env: ALHEURE_BIND)")
	fs.IntVarP(&c.Port, "port", "p", 8080, "port to listen on (env: ALHEURE_PORT)")
	fs.IntVar(&c.AnswerTime, "answer-time", 30, "seconds a player has to answer a normal question, 0 to disable (env: ALHEURE_ANSWER_TIME)")
	fs.IntVar(&c.ShowdownTime, "showdown-time", 15, "seconds before an unbuzzed showdown question fails, 0 to disable (env: ALHEURE_SHOWDOWN_TIME)")
	fs.IntVar(&c.BuzzAnswerTime, "buzz-answer-time", 10, "seconds the buzzer has to answer, 0 to disable (env: ALHEURE_BUZZ_ANSWER_TIME)")
	fs.StringVar(&c.CategoryPolicy, "category-policy", game.PolicyRoundRobin, "how question categories are picked: "+strings.Join(game.Policies, ", ")+" (env: ALHEURE_CATEGORY_POLICY)")
	fs.StringVarP(&c.QuestionFile, "questions", "q", "", "JSON question file to use instead of the built-in set (env: ALHEURE_QUESTIONS)")
	fs.StringVar(&c.ExportFile, "export-file", "", "append finished game results to this file (env: ALHEURE_EXPORT_FILE)")
	fs.BoolVar(&c.SingleSession, "single-session", true, "creating a session ends the previous one (env: ALHEURE_SINGLE_SESSION)")
	fs.StringVar(&c.PublicURL, "public-url", "", "base URL players use to reach the server, for join QR codes (env: ALHEURE_PUBLIC_URL)")
	fs.StringVar(&c.HostUser, "host-user", "", "username protecting session creation (env: ALHEURE_HOST_USER)")
	fs.StringVar(&c.HostPass, "host-pass", "", "password protecting session creation (env: ALHEURE_HOST_PASS)")
	fs.StringVarP(&c.ConfigFile, "config", "c", "", "path to a config file (env: ALHEURE_CONFIG)")
	fs.BoolVarP(&c.Verbose, "verbose", "v", false, "display additional output (env: ALHEURE_VERBOSE)")
}

// Load fills every flag the command line left unset from the environment
// and, when one is named, the config file.
func Load(v *viper.Viper, fs *pflag.FlagSet) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
	})

	// the config file location may itself come from the environment
	path := v.GetString("config")
	if path != "" {
		v.SetConfigFile(path)
		if rerr := v.ReadInConfig(); rerr != nil {
			return fmt.Errorf("read config %s: %w", path, rerr)
		}
	}

	fs.VisitAll(func(f *pflag.Flag) {
		if err != nil || f.Changed || !v.IsSet(f.Name) {
			return
		}
		if serr := fs.Set(f.Name, v.GetString(f.Name)); serr != nil {
			err = fmt.Errorf("invalid value for %s: %w", f.Name, serr)
		}
	})
	return err
}

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if c.AnswerTime < 0 || c.ShowdownTime < 0 || c.BuzzAnswerTime < 0 {
		return errors.New("answer times must not be negative")
	}
	if !slices.Contains(game.Policies, c.CategoryPolicy) {
		return fmt.Errorf("unknown category policy %q (want one of %s)", c.CategoryPolicy, strings.Join(game.Policies, ", "))
	}
	if (c.HostUser == "") != (c.HostPass == "") {
		return errors.New("both --host-user and --host-pass must be provided together")
	}
	if c.PublicURL != "" {
		u, err := url.Parse(c.PublicURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid public url %q", c.PublicURL)
		}
	}
	return nil
}

func (c *Config) Addr() string {
	return net.JoinHostPort(c.Bind, strconv.Itoa(c.Port))
}

// Session returns the defaults for newly created sessions.
func (c *Config) Session() game.SessionConfig {
	return game.SessionConfig{
		AnswerTime:     c.AnswerTime,
		ShowdownTime:   c.ShowdownTime,
		BuzzAnswerTime: c.BuzzAnswerTime,
		CategoryPolicy: c.CategoryPolicy,
	}
}

// HostAuth reports whether session creation is password protected.
func (c *Config) HostAuth() bool {
	return c.HostUser != "" && c.HostPass != ""
}

// JoinURL is the address players open to join the session with the given
// code.
func (c *Config) JoinURL(code string) string {
	base := c.PublicURL
	if base == "" {
		base = "http://" + net.JoinHostPort("localhost", strconv.Itoa(c.Port))
	}
	return strings.TrimRight(base, "/") + "/join/" + url.PathEscape(code)
}
