package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "cfg.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func requireErrEq(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %q, got nil", want)
	}
	if err.Error() != want {
		t.Fatalf("error=%q want %q", err.Error(), want)
	}
}

const gpsOn = "gps:\n  enable: true\n"

func TestLoad_RequiresSource(t *testing.T) {
	path := writeTempConfig(t, "gps: {}\n")
	_, err := Load(path)
	requireErrEq(t, err, "gps.enable or replay.enable is required")
}

func TestLoad_EmptyFile(t *testing.T) {
	path := writeTempConfig(t, "")
	_, err := Load(path)
	requireErrEq(t, err, "gps.enable or replay.enable is required")
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeTempConfig(t, gpsOn)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.GPS.Source != "serial" || cfg.GPS.Baud != 9600 || cfg.GPS.SerialDriver != "termios" {
		t.Fatalf("gps=%+v want serial/9600/termios", cfg.GPS)
	}
	if cfg.GPS.StaleAfter != 3*time.Second {
		t.Fatalf("stale_after=%s want 3s", cfg.GPS.StaleAfter)
	}
	if cfg.Output.Interval != 1*time.Second {
		t.Fatalf("interval=%s want 1s", cfg.Output.Interval)
	}
	if cfg.Web.Listen != ":8080" || cfg.Web.WSInterval != cfg.Output.Interval {
		t.Fatalf("web=%+v", cfg.Web)
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("log.level=%q want info", cfg.Log.Level)
	}
}

func TestLoad_GPSDDefaultsAddr(t *testing.T) {
	path := writeTempConfig(t, "gps:\n  enable: true\n  source: GPSD\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.GPS.Source != "gpsd" || cfg.GPS.Addr != "127.0.0.1:2947" {
		t.Fatalf("gps=%+v", cfg.GPS)
	}
}

func TestLoad_GPSValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "UnknownSource",
			body: "gps:\n  enable: true\n  source: bluetooth\n",
			want: "gps.source must be one of 'serial', 'gpsd', 'tcp'",
		},
		{
			name: "TCPNeedsAddr",
			body: "gps:\n  enable: true\n  source: tcp\n",
			want: "gps.addr is required when gps.source is 'tcp'",
		},
		{
			name: "BadDriver",
			body: "gps:\n  enable: true\n  serial_driver: usb\n",
			want: "gps.serial_driver must be 'termios' or 'portable'",
		},
		{
			name: "CustomNeedsName",
			body: "gps:\n  enable: true\n  custom:\n    - sentence: GPRMB\n      term: 3\n",
			want: "gps.custom[0].name is required",
		},
		{
			name: "CustomBadSentence",
			body: "gps:\n  enable: true\n  custom:\n    - name: steer\n      sentence: gprmb\n      term: 3\n",
			want: "gps.custom[0].sentence must be an uppercase sentence identifier like GPRMB",
		},
		{
			name: "CustomTermZero",
			body: "gps:\n  enable: true\n  custom:\n    - name: steer\n      sentence: GPRMB\n",
			want: "gps.custom[0].term must be >= 1",
		},
		{
			name: "CustomDuplicateName",
			body: "gps:\n  enable: true\n  custom:\n    - {name: a, sentence: GPRMB, term: 3}\n    - {name: a, sentence: PGRME, term: 1}\n",
			want: "gps.custom[1].name \"a\" is duplicated",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeTempConfig(t, tc.body))
			requireErrEq(t, err, tc.want)
		})
	}
}

func TestLoad_CustomFieldsKept(t *testing.T) {
	body := gpsOn + "  custom:\n    - {name: xte, sentence: GPRMB, term: 2, numeric: true}\n    - {name: steer, sentence: GPRMB, term: 3}\n"
	cfg, err := Load(writeTempConfig(t, body))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(cfg.GPS.Custom) != 2 {
		t.Fatalf("custom=%d want 2", len(cfg.GPS.Custom))
	}
	if c := cfg.GPS.Custom[0]; c.Name != "xte" || c.Sentence != "GPRMB" || c.Term != 2 || !c.Numeric {
		t.Fatalf("custom[0]=%+v", c)
	}
}

func TestLoad_GPSAndReplayMutuallyExclusive(t *testing.T) {
	path := writeTempConfig(t, gpsOn+"replay:\n  enable: true\n  path: './x.log'\n")
	_, err := Load(path)
	requireErrEq(t, err, "gps and replay cannot both be enabled")
}

func TestLoad_RecordRequiresPath(t *testing.T) {
	path := writeTempConfig(t, gpsOn+"record:\n  enable: true\n")
	_, err := Load(path)
	requireErrEq(t, err, "record.path is required when record.enable is true")
}

func TestLoad_RecordWithLiveGPS(t *testing.T) {
	path := writeTempConfig(t, gpsOn+"record:\n  enable: true\n  path: './x.log'\n")
	if _, err := Load(path); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
}

func TestLoad_ReplayRequiresPath(t *testing.T) {
	path := writeTempConfig(t, "replay:\n  enable: true\n")
	_, err := Load(path)
	requireErrEq(t, err, "replay.path is required when replay.enable is true")
}

func TestLoad_ReplaySpeedDefaultsToOne(t *testing.T) {
	path := writeTempConfig(t, "replay:\n  enable: true\n  path: './x.log'\n  speed: 0\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Replay.Speed != 1 {
		t.Fatalf("speed=%v want 1", cfg.Replay.Speed)
	}
}

func TestLoad_ReplayNegativeSpeedRejected(t *testing.T) {
	path := writeTempConfig(t, "replay:\n  enable: true\n  path: './x.log'\n  speed: -1\n")
	_, err := Load(path)
	requireErrEq(t, err, "replay.speed must be > 0")
}

func TestLoad_RecordAndReplayMutuallyExclusive(t *testing.T) {
	path := writeTempConfig(t, "record:\n  enable: true\n  path: './a.log'\nreplay:\n  enable: true\n  path: './b.log'\n")
	_, err := Load(path)
	requireErrEq(t, err, "record and replay cannot both be enabled")
}

func TestLoad_OutputValidation(t *testing.T) {
	cases := []struct {
		name  string
		extra string
		want  string
	}{
		{
			name:  "UDPNeedsDest",
			extra: "output:\n  udp:\n    enable: true\n",
			want:  "output.udp.dest is required when output.udp.enable is true",
		},
		{
			name:  "MQTTNeedsBroker",
			extra: "output:\n  mqtt:\n    enable: true\n",
			want:  "output.mqtt.broker is required when output.mqtt.enable is true",
		},
		{
			name:  "MQTTQoS",
			extra: "output:\n  mqtt:\n    enable: true\n    broker: 'tcp://127.0.0.1:1883'\n    qos: 3\n",
			want:  "output.mqtt.qos must be 0, 1 or 2",
		},
		{
			name:  "LogLevel",
			extra: "log:\n  level: verbose\n",
			want:  "log.level must be one of 'debug', 'info', 'warn', 'error'",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeTempConfig(t, gpsOn+tc.extra))
			requireErrEq(t, err, tc.want)
		})
	}
}

func TestLoad_MQTTDefaults(t *testing.T) {
	body := gpsOn + "output:\n  mqtt:\n    enable: true\n    broker: 'tcp://127.0.0.1:1883'\n"
	cfg, err := Load(writeTempConfig(t, body))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Output.MQTT.Topic != "gpsfeed/snapshot" || cfg.Output.MQTT.ClientID != "gpsfeed" {
		t.Fatalf("mqtt=%+v", cfg.Output.MQTT)
	}
}

func TestLoad_LogFileDefaults(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, gpsOn+"log:\n  file: /tmp/gpsfeed.log\n"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Log.MaxSizeMB != 10 || cfg.Log.MaxBackups != 3 {
		t.Fatalf("log=%+v", cfg.Log)
	}
}

func TestLoad_RejectsUnknownField(t *testing.T) {
	path := writeTempConfig(t, gpsOn+"  mode: gdl90\n")
	_, err := Load(path)
	requireErrEq(t, err, "config contains unknown fields: field mode not found in type config.GPSConfig")
}

func TestLoad_TypeMismatchIsParseError(t *testing.T) {
	path := writeTempConfig(t, "gps:\n  enable: true\n  baud: fast\n")
	_, err := Load(path)
	if err == nil || !strings.HasPrefix(err.Error(), "parse config: ") {
		t.Fatalf("err=%v want parse config error", err)
	}
}

func TestDefaultAndValidate_Nil(t *testing.T) {
	requireErrEq(t, DefaultAndValidate(nil), "config is nil")
}
