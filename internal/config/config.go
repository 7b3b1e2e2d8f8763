package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	GPS    GPSConfig    `yaml:"gps"`
	Record RecordConfig `yaml:"record"`
	Replay ReplayConfig `yaml:"replay"`
	Output OutputConfig `yaml:"output"`
	Web    WebConfig    `yaml:"web"`
	Log    LogConfig    `yaml:"log"`
}

type GPSConfig struct {
	Enable bool `yaml:"enable"`

	// Source is one of "serial", "gpsd" or "tcp".
	Source string `yaml:"source"`

	Device       string `yaml:"device"`
	Baud         int    `yaml:"baud"`
	SerialDriver string `yaml:"serial_driver"`

	// Addr is host:port for the gpsd and tcp sources.
	Addr string `yaml:"addr"`

	StaleAfter time.Duration       `yaml:"stale_after"`
	Custom     []CustomFieldConfig `yaml:"custom"`
	SkyView    bool                `yaml:"sky_view"`
}

// CustomFieldConfig binds a term of an arbitrary sentence to a name that
// shows up in the snapshot's custom map.
type CustomFieldConfig struct {
	Name     string `yaml:"name"`
	Sentence string `yaml:"sentence"`
	Term     int    `yaml:"term"`
	Numeric  bool   `yaml:"numeric"`
}

type RecordConfig struct {
	Enable bool   `yaml:"enable"`
	Path   string `yaml:"path"`
}

type ReplayConfig struct {
	Enable bool    `yaml:"enable"`
	Path   string  `yaml:"path"`
	Speed  float64 `yaml:"speed"`
	Loop   bool    `yaml:"loop"`
}

type OutputConfig struct {
	Interval time.Duration `yaml:"interval"`
	UDP      UDPConfig     `yaml:"udp"`
	MQTT     MQTTConfig    `yaml:"mqtt"`
}

type UDPConfig struct {
	Enable bool   `yaml:"enable"`
	Dest   string `yaml:"dest"`
}

type MQTTConfig struct {
	Enable   bool   `yaml:"enable"`
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
	QoS      int    `yaml:"qos"`
	Retained bool   `yaml:"retained"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type WebConfig struct {
	Enable     bool          `yaml:"enable"`
	Listen     string        `yaml:"listen"`
	WSInterval time.Duration `yaml:"ws_interval"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

var sentenceNameRE = regexp.MustCompile(`^[A-Z0-9]{2,10}$`)

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		if msg, ok := unknownFields(err); ok {
			return Config{}, fmt.Errorf("config contains unknown fields: %s", msg)
		}
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if err := DefaultAndValidate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var yamlLinePrefix = regexp.MustCompile(`^line \d+: `)

func unknownFields(err error) (string, bool) {
	var te *yaml.TypeError
	if !errors.As(err, &te) || len(te.Errors) == 0 {
		return "", false
	}
	msgs := make([]string, 0, len(te.Errors))
	for _, e := range te.Errors {
		if !strings.Contains(e, "not found in type") {
			return "", false
		}
		msgs = append(msgs, yamlLinePrefix.ReplaceAllString(e, ""))
	}
	return strings.Join(msgs, "; "), true
}

// DefaultAndValidate fills in defaults and rejects inconsistent settings.
// Load calls it; callers that build a Config in code should too.
func DefaultAndValidate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	if !cfg.GPS.Enable && !cfg.Replay.Enable {
		return fmt.Errorf("gps.enable or replay.enable is required")
	}
	if cfg.GPS.Enable && cfg.Replay.Enable {
		return fmt.Errorf("gps and replay cannot both be enabled")
	}

	if err := defaultGPS(&cfg.GPS); err != nil {
		return err
	}

	if cfg.Record.Enable {
		if cfg.Record.Path == "" {
			return fmt.Errorf("record.path is required when record.enable is true")
		}
		if cfg.Replay.Enable {
			return fmt.Errorf("record and replay cannot both be enabled")
		}
	}

	if cfg.Replay.Enable {
		if cfg.Replay.Path == "" {
			return fmt.Errorf("replay.path is required when replay.enable is true")
		}
		if cfg.Replay.Speed == 0 {
			cfg.Replay.Speed = 1
		}
		if cfg.Replay.Speed < 0 {
			return fmt.Errorf("replay.speed must be > 0")
		}
	}

	if cfg.Output.Interval <= 0 {
		cfg.Output.Interval = 1 * time.Second
	}
	if cfg.Output.UDP.Enable && strings.TrimSpace(cfg.Output.UDP.Dest) == "" {
		return fmt.Errorf("output.udp.dest is required when output.udp.enable is true")
	}
	if err := defaultMQTT(&cfg.Output.MQTT); err != nil {
		return err
	}

	if cfg.Web.Listen == "" {
		cfg.Web.Listen = ":8080"
	}
	if cfg.Web.WSInterval <= 0 {
		cfg.Web.WSInterval = cfg.Output.Interval
	}

	return defaultLog(&cfg.Log)
}

func defaultGPS(g *GPSConfig) error {
	g.Source = strings.ToLower(strings.TrimSpace(g.Source))
	if g.Source == "" {
		g.Source = "serial"
	}
	switch g.Source {
	case "serial":
		if g.Baud == 0 {
			g.Baud = 9600
		}
		if g.Baud < 0 {
			return fmt.Errorf("gps.baud must be > 0")
		}
		g.SerialDriver = strings.ToLower(strings.TrimSpace(g.SerialDriver))
		if g.SerialDriver == "" {
			g.SerialDriver = "termios"
		}
		if g.SerialDriver != "termios" && g.SerialDriver != "portable" {
			return fmt.Errorf("gps.serial_driver must be 'termios' or 'portable'")
		}
	case "gpsd":
		if strings.TrimSpace(g.Addr) == "" {
			g.Addr = "127.0.0.1:2947"
		}
	case "tcp":
		if strings.TrimSpace(g.Addr) == "" {
			return fmt.Errorf("gps.addr is required when gps.source is 'tcp'")
		}
	default:
		return fmt.Errorf("gps.source must be one of 'serial', 'gpsd', 'tcp'")
	}

	if g.StaleAfter <= 0 {
		g.StaleAfter = 3 * time.Second
	}

	seen := make(map[string]bool, len(g.Custom))
	for i, c := range g.Custom {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("gps.custom[%d].name is required", i)
		}
		if seen[c.Name] {
			return fmt.Errorf("gps.custom[%d].name %q is duplicated", i, c.Name)
		}
		seen[c.Name] = true
		if !sentenceNameRE.MatchString(c.Sentence) {
			return fmt.Errorf("gps.custom[%d].sentence must be an uppercase sentence identifier like GPRMB", i)
		}
		if c.Term < 1 {
			return fmt.Errorf("gps.custom[%d].term must be >= 1", i)
		}
	}
	return nil
}

func defaultMQTT(m *MQTTConfig) error {
	if !m.Enable {
		return nil
	}
	if strings.TrimSpace(m.Broker) == "" {
		return fmt.Errorf("output.mqtt.broker is required when output.mqtt.enable is true")
	}
	if m.Topic == "" {
		m.Topic = "gpsfeed/snapshot"
	}
	if m.ClientID == "" {
		m.ClientID = "gpsfeed"
	}
	if m.QoS < 0 || m.QoS > 2 {
		return fmt.Errorf("output.mqtt.qos must be 0, 1 or 2")
	}
	return nil
}

func defaultLog(l *LogConfig) error {
	l.Level = strings.ToLower(strings.TrimSpace(l.Level))
	if l.Level == "" {
		l.Level = "info"
	}
	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of 'debug', 'info', 'warn', 'error'")
	}
	if l.File != "" {
		if l.MaxSizeMB <= 0 {
			l.MaxSizeMB = 10
		}
		if l.MaxBackups <= 0 {
			l.MaxBackups = 3
		}
	}
	return nil
}
