package config

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	appdefaults "github.com/saker-ai/orion-client/config"

	"github.com/saker-ai/orion-client/internal/channel"
	"github.com/saker-ai/orion-client/internal/logger"
	"github.com/saker-ai/orion-client/pkg/audio"
	"github.com/spf13/viper"
)

// ServerConfig describes how the assistant server is reached.
type ServerConfig struct {
	PageURL            string        `mapstructure:"page_url"`
	WSPath             string        `mapstructure:"ws_path"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
	HandshakeTimeout   time.Duration `mapstructure:"handshake_timeout"`
}

// SessionConfig holds the session parameters attached to every recording.
type SessionConfig struct {
	Temperature    float64 `mapstructure:"temperature"`
	TemperatureMin float64 `mapstructure:"temperature_min"`
	TemperatureMax float64 `mapstructure:"temperature_max"`
	ContextLength  int     `mapstructure:"context_length"`
	ContextMin     int     `mapstructure:"context_min"`
	ContextMax     int     `mapstructure:"context_max"`
	Instructions   string  `mapstructure:"instructions"`
	PresetPath     string  `mapstructure:"preset_path"`
}

// PlaybackConfig controls segment decoding and the playback clock.
type PlaybackConfig struct {
	Rate               float64       `mapstructure:"rate"`
	RateMin            float64       `mapstructure:"rate_min"`
	RateMax            float64       `mapstructure:"rate_max"`
	Format             string        `mapstructure:"format"`
	SampleRate         int           `mapstructure:"sample_rate"`
	Channels           int           `mapstructure:"channels"`
	OutputSampleRate   int           `mapstructure:"output_sample_rate"`
	SinkCommand        []string      `mapstructure:"sink_command"`
	SkipFailedSegments bool          `mapstructure:"skip_failed_segments"`
	Tick               time.Duration `mapstructure:"tick"`
}

// RecorderConfig selects the microphone implementation.
type RecorderConfig struct {
	Command       []string      `mapstructure:"command"`
	File          string        `mapstructure:"file"`
	Format        string        `mapstructure:"format"`
	ChunkBytes    int           `mapstructure:"chunk_bytes"`
	ChunkInterval time.Duration `mapstructure:"chunk_interval"`
	SampleRate    int           `mapstructure:"sample_rate"`
	Channels      int           `mapstructure:"channels"`
	FrameDuration int           `mapstructure:"frame_duration"`

	Opus audio.EncoderOptions `mapstructure:"opus"`
}

// VisualizerConfig sizes the playback visualizer canvas.
type VisualizerConfig struct {
	Style       string `mapstructure:"style"`
	ColorScheme string `mapstructure:"color_scheme"`
	Width       int    `mapstructure:"width"`
	Height      int    `mapstructure:"height"`
	FFTSize     int    `mapstructure:"fft_size"`
	FPS         int    `mapstructure:"fps"`
}

// AmbientConfig sizes the particle animation.
type AmbientConfig struct {
	Width         int     `mapstructure:"width"`
	Height        int     `mapstructure:"height"`
	BaseParticles int     `mapstructure:"base_particles"`
	BusyExtra     int     `mapstructure:"busy_extra"`
	SpeedBoost    float64 `mapstructure:"speed_boost"`
	LinkDistance  float64 `mapstructure:"link_distance"`
	FPS           int     `mapstructure:"fps"`
	Seed          uint64  `mapstructure:"seed"`
}

// StatusConfig holds the delays applied to transient status messages.
type StatusConfig struct {
	ErrorRevertDelay  time.Duration `mapstructure:"error_revert_delay"`
	NoticeRevertDelay time.Duration `mapstructure:"notice_revert_delay"`
	ResponseTimeout   time.Duration `mapstructure:"response_timeout"`
}

// ClipboardConfig overrides the clipboard command.
type ClipboardConfig struct {
	Command []string `mapstructure:"command"`
}

// ControlConfig configures the local HTTP control surface.
type ControlConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	HTTPAddr string `mapstructure:"http_addr"`
}

// Config represents a config.
type Config struct {
	RootDir    string           `mapstructure:"-"`
	WSURL      string           `mapstructure:"-"`
	Server     ServerConfig     `mapstructure:"server"`
	Session    SessionConfig    `mapstructure:"session"`
	Playback   PlaybackConfig   `mapstructure:"playback"`
	Recorder   RecorderConfig   `mapstructure:"recorder"`
	Visualizer VisualizerConfig `mapstructure:"visualizer"`
	Ambient    AmbientConfig    `mapstructure:"ambient"`
	Status     StatusConfig     `mapstructure:"status"`
	Clipboard  ClipboardConfig  `mapstructure:"clipboard"`
	Control    ControlConfig    `mapstructure:"control"`
	Log        logger.Config    `mapstructure:"log"`
}

// Load reads the embedded defaults, an optional conf.yaml from the root dir, and ORION_* env overrides.
func Load() (Config, error) {
	rootDir, err := resolveRootDir()
	if err != nil {
		return Config{}, err
	}

	v, err := newViper()
	if err != nil {
		return Config{}, err
	}
	v.SetConfigName("conf")
	v.SetConfigType("yaml")
	v.AddConfigPath(rootDir)

	if err := v.MergeInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
	}
	return finish(v, rootDir)
}

// LoadConfig loads an explicit config file on top of the defaults. An empty path falls back to Load.
func LoadConfig(configPath string) (Config, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		return Load()
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return Config{}, err
	}

	rootDir := strings.TrimSpace(os.Getenv("ORION_ROOT_DIR"))
	if rootDir == "" {
		rootDir = filepath.Dir(absPath)
		if filepath.Base(rootDir) == "config" {
			rootDir = filepath.Dir(rootDir)
		}
	}

	v, err := newViper()
	if err != nil {
		return Config{}, err
	}
	v.SetConfigFile(absPath)
	if err := v.MergeInConfig(); err != nil {
		return Config{}, err
	}
	return finish(v, rootDir)
}

// Parse loads a config from YAML bytes layered over the defaults. Env overrides still apply.
func Parse(data []byte) (Config, error) {
	v, err := newViper()
	if err != nil {
		return Config{}, err
	}
	if len(data) > 0 {
		if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
			return Config{}, err
		}
	}
	wd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}
	return finish(v, wd)
}

func newViper() (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(appdefaults.Default)); err != nil {
		return nil, fmt.Errorf("load embedded config: %w", err)
	}

	v.SetDefault("server.ws_path", "/ws")
	v.SetDefault("playback.rate", 1.0)
	v.SetDefault("status.error_revert_delay", 3*time.Second)
	v.SetDefault("status.notice_revert_delay", 2*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.stdout", true)

	v.SetEnvPrefix("orion")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v, nil
}

func finish(v *viper.Viper, rootDir string) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	cfg.RootDir = rootDir
	derivePaths(&cfg)
	if err := applyPreset(&cfg); err != nil {
		return Config{}, err
	}
	deriveControlAddr(&cfg)
	normalize(&cfg)

	wsURL, err := channel.EndpointURL(cfg.Server.PageURL, cfg.Server.WSPath)
	if err != nil {
		return Config{}, err
	}
	cfg.WSURL = wsURL
	return cfg, nil
}

func deriveControlAddr(cfg *Config) {
	if cfg.Control.HTTPAddr != "" {
		return
	}
	host := cfg.Control.Host
	port := cfg.Control.Port
	if port == 0 {
		port = 8102
	}
	if host == "" {
		cfg.Control.HTTPAddr = fmt.Sprintf(":%d", port)
		return
	}
	cfg.Control.HTTPAddr = net.JoinHostPort(host, strconv.Itoa(port))
}

func normalize(cfg *Config) {
	if cfg.Playback.RateMax <= cfg.Playback.RateMin {
		cfg.Playback.RateMin, cfg.Playback.RateMax = 0.97, 1.2
	}
	if cfg.Playback.Tick <= 0 {
		cfg.Playback.Tick = 20 * time.Millisecond
	}
	if cfg.Visualizer.FFTSize <= 0 {
		cfg.Visualizer.FFTSize = 256
	}
	if cfg.Visualizer.FPS <= 0 {
		cfg.Visualizer.FPS = 60
	}
	if cfg.Ambient.FPS <= 0 {
		cfg.Ambient.FPS = 60
	}
	if cfg.Session.ContextMax < cfg.Session.ContextMin {
		cfg.Session.ContextMax = cfg.Session.ContextMin
	}
	if cfg.Recorder.ChunkBytes <= 0 {
		cfg.Recorder.ChunkBytes = 4096
	}
}

func resolveRootDir() (string, error) {
	if root := strings.TrimSpace(os.Getenv("ORION_ROOT_DIR")); root != "" {
		return filepath.Abs(root)
	}

	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	dir := wd
	for i := 0; i < 6; i++ {
		if fileExists(filepath.Join(dir, "conf.yaml")) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return wd, nil
}

func derivePaths(cfg *Config) {
	if cfg.Session.PresetPath != "" {
		cfg.Session.PresetPath = resolvePath(cfg.RootDir, cfg.Session.PresetPath, "")
	}
	if cfg.Recorder.File != "" {
		cfg.Recorder.File = resolvePath(cfg.RootDir, cfg.Recorder.File, "")
	}
	if cfg.Log.File.Path != "" {
		cfg.Log.File.Path = resolvePath(cfg.RootDir, cfg.Log.File.Path, filepath.Join("data", "logs"))
	}
}

func resolvePath(rootDir string, configured string, fallback string) string {
	path := strings.TrimSpace(configured)
	if path == "" {
		path = fallback
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(rootDir, path)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
