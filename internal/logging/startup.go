package logging

import (
	"runtime"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// StartupLogger gathers what a command was started with and logs it as one
// structured event, so a single line answers "how was this run configured".
type StartupLogger struct {
	command string
	version string
	took    time.Duration

	features map[string]bool
	settings map[string]string
}

// NewStartupLogger starts the summary for command.
func NewStartupLogger(command string) *StartupLogger {
	return &StartupLogger{
		command:  command,
		features: make(map[string]bool),
		settings: make(map[string]string),
	}
}

// Version records the build version.
func (s *StartupLogger) Version(v string) *StartupLogger {
	s.version = v
	return s
}

// Feature records an on/off capability, e.g. whether a config file was found.
func (s *StartupLogger) Feature(name string, enabled bool) *StartupLogger {
	s.features[name] = enabled
	return s
}

// Config records one setting. Never pass credentials.
func (s *StartupLogger) Config(key, value string) *StartupLogger {
	s.settings[key] = value
	return s
}

// InitDuration records how long startup took.
func (s *StartupLogger) InitDuration(d time.Duration) *StartupLogger {
	s.took = d
	return s
}

// Log writes the summary to the global logger at INFO.
func (s *StartupLogger) Log() {
	s.emit(log.Logger)
}

func (s *StartupLogger) emit(l zerolog.Logger) {
	version := s.version
	if version == "" {
		version = "dev"
	}

	evt := l.Info().
		Str("command", s.command).
		Str("version", version).
		Str("logLevel", zerolog.GlobalLevel().String()).
		Dict("runtime", zerolog.Dict().
			Str("go", runtime.Version()).
			Str("platform", runtime.GOOS+"/"+runtime.GOARCH))

	if len(s.settings) > 0 {
		d := zerolog.Dict()
		for _, k := range sortedKeys(s.settings) {
			d = d.Str(k, s.settings[k])
		}
		evt = evt.Dict("config", d)
	}
	if len(s.features) > 0 {
		d := zerolog.Dict()
		for _, k := range sortedKeys(s.features) {
			d = d.Bool(k, s.features[k])
		}
		evt = evt.Dict("features", d)
	}
	if s.took > 0 {
		evt = evt.Dur("initDuration", s.took)
	}

	evt.Msg("Startup complete")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
