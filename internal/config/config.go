package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Scale modes
	ScaleModeRescale = "rescale"
	ScaleModeReparse = "reparse"

	// Default values
	DefaultPort            = 8080
	DefaultHost            = "127.0.0.1"
	DefaultLogLevel        = "info"
	DefaultMaxFileSize     = 100 * 1024 * 1024 // 100MB
	DefaultScale           = 1.0
	DefaultMinScale        = 0.25
	DefaultMaxScale        = 5.0
	DefaultLineTolerance   = 2.0
	DefaultLineHeightRatio = 0.3
	DefaultMaxSessions     = 16
	DefaultRenderTimeout   = 30 * time.Second

	// Directory permissions
	DefaultDirPerm = 0o750
)

// Config holds all configuration for the PDF overlay MCP server
type Config struct {
	// Server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// PDF configuration
	PDFDirectory string
	MaxFileSize  int64 // Maximum PDF file size in bytes

	// Overlay configuration
	Scale           float64
	MinScale        float64
	MaxScale        float64
	ScaleMode       string // "rescale" or "reparse"
	LineTolerance   float64
	LineHeightRatio float64
	MaxSessions     int
	Render          bool
	RenderTimeout   time.Duration

	// Application configuration
	Version    string
	ServerName string
	LogLevel   string
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		currentDir = "."
	}

	return &Config{
		Mode:            ModeStdio, // Default to stdio mode for MCP compatibility
		Host:            DefaultHost,
		Port:            DefaultPort,
		PDFDirectory:    currentDir,
		MaxFileSize:     DefaultMaxFileSize,
		Scale:           DefaultScale,
		MinScale:        DefaultMinScale,
		MaxScale:        DefaultMaxScale,
		ScaleMode:       ScaleModeRescale,
		LineTolerance:   DefaultLineTolerance,
		LineHeightRatio: DefaultLineHeightRatio,
		MaxSessions:     DefaultMaxSessions,
		Render:          false,
		RenderTimeout:   DefaultRenderTimeout,
		Version:         "1.0.0",
		ServerName:      "mcp-pdf-overlay",
		LogLevel:        DefaultLogLevel,
	}
}

// LoadFromFlags parses command line flags and returns a configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	// Check for version flag before parsing
	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	populateConfigFromViper(cfg)

	if cfg.PDFDirectory != "" {
		if expandedPath, err := filepath.Abs(cfg.PDFDirectory); err == nil {
			cfg.PDFDirectory = expandedPath
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix("MCP_PDF")
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("dir", cfg.PDFDirectory)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)
	viper.SetDefault("scale", cfg.Scale)
	viper.SetDefault("minscale", cfg.MinScale)
	viper.SetDefault("maxscale", cfg.MaxScale)
	viper.SetDefault("scalemode", cfg.ScaleMode)
	viper.SetDefault("linetolerance", cfg.LineTolerance)
	viper.SetDefault("lineheightratio", cfg.LineHeightRatio)
	viper.SetDefault("maxsessions", cfg.MaxSessions)
	viper.SetDefault("render", cfg.Render)
	viper.SetDefault("rendertimeout", cfg.RenderTimeout)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Server mode: 'stdio' for MCP standard I/O, 'server' for HTTP server")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	pflag.String("dir", cfg.PDFDirectory, "Directory containing PDF files")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum PDF file size in bytes")
	pflag.Float64("scale", cfg.Scale, "Default zoom scale for new sessions")
	pflag.Float64("minscale", cfg.MinScale, "Smallest scale a client may request")
	pflag.Float64("maxscale", cfg.MaxScale, "Largest scale a client may request")
	pflag.String("scalemode", cfg.ScaleMode, "How scale changes are applied: 'rescale' or 'reparse'")
	pflag.Float64("linetolerance", cfg.LineTolerance, "Minimum baseline distance in PDF units that starts a new text line")
	pflag.Float64("lineheightratio", cfg.LineHeightRatio, "Baseline distance as a fraction of run height that starts a new text line")
	pflag.Int("maxsessions", cfg.MaxSessions, "Maximum number of open document sessions")
	pflag.Bool("render", cfg.Render, "Enable page rendering with PDFium")
	pflag.Duration("rendertimeout", cfg.RenderTimeout, "Maximum time for one page render")
}

var flagKeys = []string{
	"mode", "host", "port", "dir", "loglevel", "maxfilesize",
	"scale", "minscale", "maxscale", "scalemode",
	"linetolerance", "lineheightratio", "maxsessions",
	"render", "rendertimeout",
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for _, key := range flagKeys {
		_ = viper.BindPFlag(key, pflag.Lookup(key))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nMCP PDF Overlay - A Model Context Protocol server exposing positioned PDF elements\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                         "+
			"# stdio mode, current directory (default)\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --dir=/path/to/pdfs --scale=1.5         "+
			"# stdio mode, custom directory and zoom\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=server --render --dir=/path/to/pdfs "+
			"# server mode with page rendering\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  MCP_PDF_MODE, MCP_PDF_HOST, MCP_PDF_PORT, MCP_PDF_DIR, MCP_PDF_LOGLEVEL,\n")
		fmt.Fprintf(os.Stderr, "  MCP_PDF_MAXFILESIZE, MCP_PDF_SCALE, MCP_PDF_MINSCALE, MCP_PDF_MAXSCALE,\n")
		fmt.Fprintf(os.Stderr, "  MCP_PDF_SCALEMODE, MCP_PDF_LINETOLERANCE, MCP_PDF_LINEHEIGHTRATIO,\n")
		fmt.Fprintf(os.Stderr, "  MCP_PDF_MAXSESSIONS, MCP_PDF_RENDER, MCP_PDF_RENDERTIMEOUT\n")
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return fmt.Errorf("version requested")
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.PDFDirectory = viper.GetString("dir")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")
	cfg.Scale = viper.GetFloat64("scale")
	cfg.MinScale = viper.GetFloat64("minscale")
	cfg.MaxScale = viper.GetFloat64("maxscale")
	cfg.ScaleMode = viper.GetString("scalemode")
	cfg.LineTolerance = viper.GetFloat64("linetolerance")
	cfg.LineHeightRatio = viper.GetFloat64("lineheightratio")
	cfg.MaxSessions = viper.GetInt("maxsessions")
	cfg.Render = viper.GetBool("render")
	cfg.RenderTimeout = viper.GetDuration("rendertimeout")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	// Port only matters in server mode
	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	if c.PDFDirectory == "" {
		return errors.New("PDF directory cannot be empty")
	}

	// Create the PDF directory if it doesn't exist
	if _, err := os.Stat(c.PDFDirectory); os.IsNotExist(err) {
		if err := os.MkdirAll(c.PDFDirectory, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create PDF directory %s: %w", c.PDFDirectory, err)
		}
	} else if err != nil {
		return fmt.Errorf("cannot access PDF directory %s: %w", c.PDFDirectory, err)
	}

	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	if err := c.validateScale(); err != nil {
		return err
	}

	if !positive(c.LineTolerance) {
		return errors.New("line tolerance must be positive")
	}
	if !positive(c.LineHeightRatio) {
		return errors.New("line height ratio must be positive")
	}

	if c.MaxSessions < 1 {
		return errors.New("maximum sessions must be at least 1")
	}

	if c.Render && c.RenderTimeout <= 0 {
		return errors.New("render timeout must be positive when rendering is enabled")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	return nil
}

func (c *Config) validateScale() error {
	if !positive(c.MinScale) || !positive(c.MaxScale) {
		return errors.New("scale bounds must be positive")
	}
	if c.MinScale > c.MaxScale {
		return fmt.Errorf("minimum scale %v exceeds maximum scale %v", c.MinScale, c.MaxScale)
	}
	if !positive(c.Scale) || c.Scale < c.MinScale || c.Scale > c.MaxScale {
		return fmt.Errorf("scale %v must be within [%v, %v]", c.Scale, c.MinScale, c.MaxScale)
	}
	if c.ScaleMode != ScaleModeRescale && c.ScaleMode != ScaleModeReparse {
		return errors.New("scale mode must be either 'rescale' or 'reparse'")
	}
	return nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, PDFDirectory: %s, LogLevel: %s, MaxFileSize: %d, "+
		"Scale: %v [%v-%v], ScaleMode: %s, MaxSessions: %d, Render: %t}",
		c.Mode, c.Host, c.Port, c.PDFDirectory, c.LogLevel, c.MaxFileSize,
		c.Scale, c.MinScale, c.MaxScale, c.ScaleMode, c.MaxSessions, c.Render)
}

// IsServerMode returns true if the server is running in HTTP server mode
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
