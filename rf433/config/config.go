// Package config holds the rf433d settings and their ini file format.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/TheusHen/rf433/rf433/auth"
	"github.com/TheusHen/rf433/rf433/protocol"
	"github.com/TheusHen/rf433/rf433/statefile"
	"github.com/mitchellh/go-homedir"
	"github.com/pion/logging"
	"github.com/vaughan0/go-ini"
)

var (
	errIniNotFound = errors.New("not found")
)

// Settings is the collection of all rf433d settings.
type Settings struct {
	// auth section
	Mode      string // key schedule, direct or chain
	Profile   string // packet profile, radio or network
	StateFile string // secret and schedule state

	// gateway section
	Listen       string        // UDP listen address for datagrams
	Transmit     string        // UDP address of the radio bridge
	SendInterval time.Duration // gap between radio bursts
	Repeats      int           // transmissions per frame
	FECParity    int           // Reed-Solomon parity bytes, 0 disables
	Verify       bool          // authenticate before transmitting
	Capture      string        // capture file, empty disables

	// relay section
	RelayListen string   // QUIC listen address, empty disables
	Repeaters   []string // repeater addresses to forward to
	MDNS        bool     // announce and discover repeaters
	Name        string   // instance name for mdns

	// log section
	LogLevel string
}

// New returns a default settings structure.
func New() *Settings {
	return &Settings{
		// auth
		Mode:      auth.ModeDirect.String(),
		Profile:   protocol.RadioProfile.Name,
		StateFile: statefile.DefaultPath,

		// gateway
		Listen:       ":433",
		SendInterval: 2500 * time.Millisecond,
		Repeats:      1,
		Verify:       true,

		// relay
		Name: "rf433",

		// log
		LogLevel: "info",
	}
}

// Load retrieves settings from an ini file. Additionally it expands all ~ to
// the current user home directory.
func (s *Settings) Load(filename string) error {
	cfg, err := ini.LoadFile(filename)
	if err != nil {
		return err
	}

	// auth
	if v, ok := cfg.Get("auth", "mode"); ok {
		s.Mode = v
	}
	if v, ok := cfg.Get("auth", "profile"); ok {
		s.Profile = v
	}
	if v, ok := cfg.Get("auth", "statefile"); ok {
		s.StateFile = v
	}

	// gateway
	if v, ok := cfg.Get("gateway", "listen"); ok {
		s.Listen = v
	}
	if v, ok := cfg.Get("gateway", "transmit"); ok {
		s.Transmit = v
	}
	if v, ok := cfg.Get("gateway", "sendinterval"); ok {
		s.SendInterval, err = time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("sendinterval invalid: %v", err)
		}
	}
	if v, ok := cfg.Get("gateway", "repeats"); ok {
		s.Repeats, err = strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("repeats invalid: %v", err)
		}
	}
	if v, ok := cfg.Get("gateway", "fecparity"); ok {
		s.FECParity, err = strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("fecparity invalid: %v", err)
		}
	}
	err = iniBool(cfg, &s.Verify, "gateway", "verify")
	if err != nil && err != errIniNotFound {
		return err
	}
	if v, ok := cfg.Get("gateway", "capture"); ok {
		s.Capture = v
	}

	// relay
	if v, ok := cfg.Get("relay", "listen"); ok {
		s.RelayListen = v
	}
	if v, ok := cfg.Get("relay", "repeater"); ok {
		s.Repeaters = splitList(v)
	}
	err = iniBool(cfg, &s.MDNS, "relay", "mdns")
	if err != nil && err != errIniNotFound {
		return err
	}
	if v, ok := cfg.Get("relay", "name"); ok {
		s.Name = v
	}

	// log
	if v, ok := cfg.Get("log", "level"); ok {
		s.LogLevel = v
	}

	if err := s.expand(); err != nil {
		return err
	}
	return s.Validate()
}

func (s *Settings) expand() error {
	var err error
	if s.StateFile, err = homedir.Expand(s.StateFile); err != nil {
		return err
	}
	if s.Capture != "" {
		if s.Capture, err = homedir.Expand(s.Capture); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks values that Load cannot check while parsing.
func (s *Settings) Validate() error {
	if _, err := auth.ParseMode(s.Mode); err != nil {
		return fmt.Errorf("invalid mode: %v", s.Mode)
	}
	p, err := protocol.ProfileByName(s.Profile)
	if err != nil {
		return fmt.Errorf("invalid profile: %v", s.Profile)
	}
	if s.SendInterval < 0 {
		return fmt.Errorf("sendinterval must not be negative")
	}
	if s.Repeats < 1 {
		return fmt.Errorf("repeats must be at least 1")
	}
	if s.FECParity < 0 {
		return fmt.Errorf("fecparity must not be negative")
	}
	if s.FECParity > 0 && !p.Fixed() {
		return fmt.Errorf("fecparity requires a fixed size profile")
	}
	if _, err := ParseLogLevel(s.LogLevel); err != nil {
		return err
	}
	return nil
}

// AuthMode returns the parsed key schedule.
func (s *Settings) AuthMode() auth.Mode {
	m, _ := auth.ParseMode(s.Mode)
	return m
}

// PacketProfile returns the parsed profile.
func (s *Settings) PacketProfile() protocol.Profile {
	p, _ := protocol.ProfileByName(s.Profile)
	return p
}

// LoggerFactory returns a pion logger factory at the configured level.
func (s *Settings) LoggerFactory() logging.LoggerFactory {
	lf := logging.NewDefaultLoggerFactory()
	if level, err := ParseLogLevel(s.LogLevel); err == nil {
		lf.DefaultLogLevel = level
	}
	return lf
}

// ParseLogLevel maps a level name to a pion log level.
func ParseLogLevel(level string) (logging.LogLevel, error) {
	switch strings.ToLower(level) {
	case "disabled", "off":
		return logging.LogLevelDisabled, nil
	case "error":
		return logging.LogLevelError, nil
	case "warn", "warning":
		return logging.LogLevelWarn, nil
	case "info":
		return logging.LogLevelInfo, nil
	case "debug":
		return logging.LogLevelDebug, nil
	case "trace":
		return logging.LogLevelTrace, nil
	default:
		return logging.LogLevelDisabled, fmt.Errorf("invalid log level: %v", level)
	}
}

func splitList(v string) []string {
	var out []string
	for _, f := range strings.Split(v, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func iniBool(cfg ini.File, p *bool, section, key string) error {
	v, ok := cfg.Get(section, key)
	if ok {
		switch strings.ToLower(v) {
		case "yes":
			*p = true
			return nil
		case "no":
			*p = false
			return nil
		default:
			return fmt.Errorf("[%v]%v must be yes or no",
				section, key)
		}
	}
	return errIniNotFound
}
