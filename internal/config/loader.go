package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "flatdoc"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "FLATDOC"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader on the global viper instance so that cobra
// flag bindings are visible to it.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// NewIsolatedLoader creates a loader with its own viper instance.
func NewIsolatedLoader() *Loader {
	return &Loader{v: viper.New()}
}

// Load searches the default locations for a config file and merges it with
// environment variables and defaults. A missing file is not an error.
func (l *Loader) Load() (*Config, error) {
	cfg, err := l.LoadWithoutValidation()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadWithoutValidation is Load without the final Validate call.
func (l *Loader) LoadWithoutValidation() (*Config, error) {
	l.v.SetConfigName(ConfigFileName)
	l.v.SetConfigType("yaml")
	l.addConfigPaths()
	l.prepare()

	if err := l.v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return l.unmarshal()
}

// LoadWithFile loads configuration from a specific file path.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	if configFile == "" {
		return l.Load()
	}
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configFile)
	}

	l.v.SetConfigFile(configFile)
	l.prepare()

	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	cfg, err := l.unmarshal()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Reload unmarshals the current viper state again, picking up flag values
// bound after the initial load.
func (l *Loader) Reload() (*Config, error) {
	return l.unmarshal()
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance for advanced usage.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

func (l *Loader) prepare() {
	// A .env file in the working directory feeds FLATDOC_* variables.
	_ = godotenv.Load()
	l.setupEnvironmentVariables()
	l.setDefaults()
}

func (l *Loader) unmarshal() (*Config, error) {
	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &config, nil
}

// addConfigPaths adds the standard configuration search paths.
func (l *Loader) addConfigPaths() {
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
}

// setupEnvironmentVariables configures environment variable handling.
func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	// FLATDOC_PREPROCESS_RESIZE_HEIGHT maps to preprocess.resize.height
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults sets default values for all configuration options.
func (l *Loader) setDefaults() {
	d := DefaultConfig()

	l.v.SetDefault("log_level", d.LogLevel)
	l.v.SetDefault("verbose", d.Verbose)

	l.v.SetDefault("path.input_dir", d.Path.InputDir)
	l.v.SetDefault("path.output_dir", d.Path.OutputDir)

	p := d.Preprocess
	l.v.SetDefault("preprocess.resize.height", p.Resize.Height)
	l.v.SetDefault("preprocess.gaussian_blur.kernel_size", p.GaussianBlur.KernelSize)
	l.v.SetDefault("preprocess.canny_edge.lower", p.CannyEdge.Lower)
	l.v.SetDefault("preprocess.canny_edge.upper", p.CannyEdge.Upper)
	l.v.SetDefault("preprocess.auto_canny_edge.sigma", p.AutoCannyEdge.Sigma)
	l.v.SetDefault("preprocess.contour.find_mode", p.Contour.FindMode)
	l.v.SetDefault("preprocess.contour.find_method", p.Contour.FindMethod)
	l.v.SetDefault("preprocess.contour.epsilon_coeff", p.Contour.EpsilonCoeff)
	l.v.SetDefault("preprocess.contour.closed_contour", p.Contour.ClosedContour)
	l.v.SetDefault("preprocess.contour.max_candidates", p.Contour.MaxCandidates)
	l.v.SetDefault("preprocess.contour.close_iterations", p.Contour.CloseIterations)
	l.v.SetDefault("preprocess.contour.line_thickness", p.Contour.LineThickness)
	l.v.SetDefault("preprocess.contour.color.r", p.Contour.Color.R)
	l.v.SetDefault("preprocess.contour.color.g", p.Contour.Color.G)
	l.v.SetDefault("preprocess.contour.color.b", p.Contour.Color.B)
	l.v.SetDefault("preprocess.threshold.blocksize", p.Threshold.BlockSize)
	l.v.SetDefault("preprocess.threshold.method", p.Threshold.Method)
	l.v.SetDefault("preprocess.threshold.offset", p.Threshold.Offset)

	l.v.SetDefault("ocr.engine", d.OCR.Engine)
	l.v.SetDefault("ocr.lang", d.OCR.Lang)
	l.v.SetDefault("ocr.ocr_engine_modes", d.OCR.EngineMode)
	l.v.SetDefault("ocr.page_segmentation_method", d.OCR.PageSegMode)
	l.v.SetDefault("ocr.user_words", d.OCR.UserWords)
	l.v.SetDefault("ocr.configfile", d.OCR.ConfigFile)
	l.v.SetDefault("ocr.tessdata_dir", d.OCR.TessdataDir)
	l.v.SetDefault("ocr.timeout_sec", d.OCR.TimeoutSec)
	l.v.SetDefault("ocr.normalize", d.OCR.Normalize)

	l.v.SetDefault("output.step_by_step", d.Output.StepByStep)
	l.v.SetDefault("output.debug_dir", d.Output.DebugDir)

	l.v.SetDefault("verbosity.preprocess", d.Verbosity.Preprocess)
	l.v.SetDefault("verbosity.write", d.Verbosity.Write)
	l.v.SetDefault("verbosity.ocr", d.Verbosity.OCR)
	l.v.SetDefault("verbosity.timing", d.Verbosity.Timing)

	l.v.SetDefault("server.host", d.Server.Host)
	l.v.SetDefault("server.port", d.Server.Port)
	l.v.SetDefault("server.cors_origin", d.Server.CORSOrigin)
	l.v.SetDefault("server.max_upload_mb", d.Server.MaxUploadMB)
	l.v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	l.v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)

	l.v.SetDefault("journal.path", d.Journal.Path)
}

// GenerateDefaultConfigFile writes the default configuration as YAML.
func GenerateDefaultConfigFile(filename string) error {
	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}
	data, err := MarshalYAML(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0o600)
}

// MarshalYAML renders cfg using its yaml tags.
func MarshalYAML(cfg Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// GetConfigSearchPaths returns the paths where configuration files are searched.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
	}
	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		paths = append(paths, filepath.Join(configDir, "flatdoc"))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "flatdoc"))
	}

	return append(paths, "/etc/flatdoc")
}
