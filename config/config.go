// Package config loads the JSON settings file and carries the runtime
// options chosen on the command line.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rustyeddy/fxtrader/fxerr"
	"github.com/rustyeddy/fxtrader/market"
	"github.com/rustyeddy/fxtrader/session"
)

// DefaultPath is where the settings file is looked up when --config is not
// given.
const DefaultPath = "settings.json"

// Account selects which broker account the run trades.
type Account string

const (
	Paper Account = "PAPER"
	Live  Account = "LIVE"
)

// ParseAccount accepts PAPER or LIVE in any case.
func ParseAccount(s string) (Account, error) {
	switch a := Account(strings.ToUpper(strings.TrimSpace(s))); a {
	case Paper, Live:
		return a, nil
	default:
		return "", fxerr.Errorf("config.ParseAccount", fxerr.Config, "account %q: use PAPER or LIVE", s)
	}
}

// Settings mirrors the keys of the settings file.
type Settings struct {
	Username      string   `json:"Username" mapstructure:"Username"`
	PaperUsername string   `json:"Paper_Username" mapstructure:"Paper_Username"`
	APIKey        string   `json:"API_Key" mapstructure:"API_Key"`
	Positions     []string `json:"Positions" mapstructure:"Positions"`
	OrderSize     int      `json:"Order_Size" mapstructure:"Order_Size"`

	UpdateInterval string `json:"Update_Interval" mapstructure:"Update_Interval"`
	UpdateSpan     int    `json:"Update_Span" mapstructure:"Update_Span"`
	NumDataPoints  int    `json:"Num_Data_Points" mapstructure:"Num_Data_Points"`

	StartHour int `json:"Start_Hour_London_Exchange" mapstructure:"Start_Hour_London_Exchange"`
	EndHour   int `json:"End_Hour_London_Exchange" mapstructure:"End_Hour_London_Exchange"`
}

var envKeys = map[string]string{
	"Username":       "FX_USERNAME",
	"Paper_Username": "FX_PAPER_USERNAME",
	"API_Key":        "FX_API_KEY",
}

// Load reads the settings file at path, applies environment overrides and
// validates the result. JSON is assumed unless the extension says YAML.
func Load(path string) (*Settings, error) {
	const op = "config.Load"

	v := viper.New()
	v.SetConfigFile(path)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		v.SetConfigType("yaml")
	default:
		v.SetConfigType("json")
	}
	for key, env := range envKeys {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fxerr.E(op, fxerr.Config, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fxerr.E(op, fxerr.Config, fmt.Errorf("read %s: %w", path, err))
	}

	s := &Settings{}
	if err := v.Unmarshal(s); err != nil {
		return nil, fxerr.E(op, fxerr.Config, fmt.Errorf("decode %s: %w", path, err))
	}
	s.normalize()

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) normalize() {
	s.UpdateInterval = strings.ToUpper(strings.TrimSpace(s.UpdateInterval))
	for i, p := range s.Positions {
		s.Positions[i] = market.NormalizeSymbol(p)
	}
}

// Validate checks the settings without touching the network.
func (s *Settings) Validate() error {
	const op = "config.Validate"

	if len(s.Positions) == 0 {
		return fxerr.Errorf(op, fxerr.Config, "Positions: at least one symbol is required")
	}
	for _, p := range s.Positions {
		if strings.TrimSpace(p) == "" {
			return fxerr.Errorf(op, fxerr.Config, "Positions: empty symbol")
		}
	}
	if s.OrderSize <= 0 {
		return fxerr.Errorf(op, fxerr.Config, "Order_Size must be positive, got %d", s.OrderSize)
	}
	if _, err := session.ValidateInterval(s.UpdateInterval, s.UpdateSpan); err != nil {
		return err
	}
	if s.NumDataPoints <= 0 {
		return fxerr.Errorf(op, fxerr.Config, "Num_Data_Points must be positive, got %d", s.NumDataPoints)
	}
	if s.StartHour < 0 || s.StartHour > 24 || s.EndHour < 0 || s.EndHour > 24 {
		return fxerr.Errorf(op, fxerr.Config, "session hours %d-%d: provide values between 0 and 24", s.StartHour, s.EndHour)
	}
	if s.EndHour <= s.StartHour {
		return fxerr.Errorf(op, fxerr.Config, "End_Hour_London_Exchange %d is not after Start_Hour_London_Exchange %d", s.EndHour, s.StartHour)
	}
	return nil
}

// BarInterval is the configured bar length. Settings must be valid.
func (s *Settings) BarInterval() time.Duration {
	secs, _ := session.ValidateInterval(s.UpdateInterval, s.UpdateSpan)
	return time.Duration(secs) * time.Second
}

// UsernameFor returns the login for the given account.
func (s *Settings) UsernameFor(a Account) (string, error) {
	name := s.Username
	key := "Username"
	if a == Paper {
		name, key = s.PaperUsername, "Paper_Username"
	}
	if name == "" {
		return "", fxerr.Errorf("config.UsernameFor", fxerr.Config, "%s is required for %s account", key, a)
	}
	return name, nil
}

// SaveToFile writes the settings as indented JSON.
func (s *Settings) SaveToFile(path string) error {
	data, err := json.MarshalIndent(s, "", "    ")
	if err != nil {
		return fxerr.E("config.SaveToFile", fxerr.Config, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fxerr.E("config.SaveToFile", fxerr.Config, err)
	}
	return nil
}

// Default returns a settings file that validates, for `config init`.
func Default() *Settings {
	return &Settings{
		Username:       "",
		PaperUsername:  "",
		APIKey:         "",
		Positions:      []string{"EUR/USD", "GBP/USD", "USD/JPY"},
		OrderSize:      2000,
		UpdateInterval: "MINUTE",
		UpdateSpan:     5,
		NumDataPoints:  50,
		StartHour:      8,
		EndHour:        20,
	}
}
