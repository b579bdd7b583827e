package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/yegors/mission-planner/internal/geo"
	"github.com/yegors/mission-planner/internal/stats"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server  ServerConfig  `toml:"server"`  // HTTP server settings
	Logging LoggingConfig `toml:"logging"` // Application logging settings
	Frame   FrameConfig   `toml:"frame"`   // Local coordinate frame anchor
	Flight  FlightConfig  `toml:"flight"`  // Vehicle speeds and default altitude
	Storage StorageConfig `toml:"storage"` // Export history persistence
	Export  ExportConfig  `toml:"export"`  // Mission file export settings
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port               int      `toml:"port"`                  // Primary HTTP port for the server
	Host               string   `toml:"host"`                  // Host address to bind to (e.g., 127.0.0.1 for localhost only, 0.0.0.0 for all interfaces)
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`  // List of origins allowed for CORS requests (use ["*"] for all origins)
	ReadTimeoutSecs    int      `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request (0 = no timeout)
	WriteTimeoutSecs   int      `toml:"write_timeout_seconds"` // Maximum duration for writing the response (0 = no timeout)
	IdleTimeoutSecs    int      `toml:"idle_timeout_seconds"`  // Maximum duration to wait for the next request when keep-alives are enabled
	AdditionalPorts    []int    `toml:"additional_ports"`      // Additional HTTP ports to listen on (useful for multiple interfaces)
	StaticFilesDir     string   `toml:"static_files_dir"`      // Directory to serve the planner UI from (empty = API only)
	MaxUploadKB        int      `toml:"max_upload_kb"`         // Largest mission file accepted by the upload and import endpoints
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`  // Log level: "debug", "info", "warn", or "error"
	Format string `toml:"format"` // Log format: "json" (structured) or "console" (human-readable)
}

// FrameConfig anchors the local tangent-plane frame
type FrameConfig struct {
	OriginLat float64 `toml:"origin_lat"` // Latitude of the frame origin in decimal degrees
	OriginLon float64 `toml:"origin_lon"` // Longitude of the frame origin in decimal degrees
	Zoom      int     `toml:"zoom"`       // Reference tile zoom level (default: 18)
}

// FlightConfig contains the vehicle parameters used by statistics and export
type FlightConfig struct {
	TakeoffSpeed    float64 `toml:"takeoff_speed"`    // Climb rate during takeoff in m/s
	LandingSpeed    float64 `toml:"landing_speed"`    // Descent rate during landing in m/s
	DefaultSpeed    float64 `toml:"default_speed"`    // Cruise speed until the first speed change in m/s
	DefaultAltitude float64 `toml:"default_altitude"` // Altitude of the home record in meters
}

// StorageConfig contains data persistence configuration
type StorageConfig struct {
	Type            string `toml:"type"`               // Storage backend type (currently only "sqlite" is supported)
	SQLitePath      string `toml:"sqlite_path"`        // SQLite database path; ":memory:" keeps history for the process lifetime only
	MaxExportsInAPI int    `toml:"max_exports_in_api"` // Maximum number of exports returned by /exports
}

// ExportConfig contains mission file export settings
type ExportConfig struct {
	MissionName string `toml:"mission_name"` // Name written into KML documents and download filenames
	Filename    string `toml:"filename"`     // Download filename for QGC exports
}

// Load loads the configuration from a TOML file
func Load(path string) (*Config, error) {
	var config Config

	// Check if the file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	// Read the config file
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	return &config, nil
}

// LoadWithFallback attempts to load config from multiple locations in order of preference
func LoadWithFallback(preferredPath string) (*Config, error) {
	// List of paths to check in order of preference
	searchPaths := []string{
		preferredPath,         // User-specified path (if provided)
		"configs/config.toml", // configs/ folder
		"config.toml",         // Root directory
	}

	// Remove duplicates while preserving order
	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			// File exists, try to load it
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// Validate validates the configuration and fills in defaults
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	// Validate AdditionalPorts
	portsSeen := make(map[int]bool)
	portsSeen[c.Server.Port] = true
	for _, p := range c.Server.AdditionalPorts {
		if p <= 0 || p > 65535 {
			return fmt.Errorf("invalid additional server port: %d", p)
		}
		if portsSeen[p] {
			return fmt.Errorf("duplicate port configured: %d (primary or additional)", p)
		}
		portsSeen[p] = true
	}
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.MaxUploadKB <= 0 {
		c.Server.MaxUploadKB = 1024
	}

	// Validate logging config
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	switch strings.ToLower(c.Logging.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("invalid logging format: %s (must be 'console' or 'json')", c.Logging.Format)
	}

	if err := c.ValidateFrame(); err != nil {
		return err
	}
	if err := c.ValidateFlight(); err != nil {
		return err
	}

	// Validate storage config
	if c.Storage.Type == "" {
		c.Storage.Type = "sqlite"
	}
	if c.Storage.Type != "sqlite" {
		return fmt.Errorf("invalid storage type: %s (only 'sqlite' is supported)", c.Storage.Type)
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = ":memory:"
	}
	if c.Storage.MaxExportsInAPI <= 0 {
		c.Storage.MaxExportsInAPI = 50
	}

	// Validate export config
	if c.Export.MissionName == "" {
		c.Export.MissionName = "Mission"
	}
	if c.Export.Filename == "" {
		c.Export.Filename = "mission.waypoints"
	}

	return nil
}

// ValidateFrame checks that the frame origin can be projected
func (c *Config) ValidateFrame() error {
	if c.Frame.Zoom == 0 {
		c.Frame.Zoom = geo.DefaultZoom
	}
	if _, err := geo.NewFrameWithZoom(c.Frame.OriginLat, c.Frame.OriginLon, c.Frame.Zoom); err != nil {
		return fmt.Errorf("invalid frame: %w", err)
	}
	return nil
}

// ValidateFlight fills in default vehicle parameters and rejects negative ones
func (c *Config) ValidateFlight() error {
	defaults := stats.DefaultParams()

	if c.Flight.TakeoffSpeed == 0 {
		c.Flight.TakeoffSpeed = defaults.TakeoffSpeed
	}
	if c.Flight.LandingSpeed == 0 {
		c.Flight.LandingSpeed = defaults.LandingSpeed
	}
	if c.Flight.DefaultSpeed == 0 {
		c.Flight.DefaultSpeed = defaults.DefaultSpeed
	}
	if c.Flight.DefaultAltitude == 0 {
		c.Flight.DefaultAltitude = 5
	}

	if c.Flight.TakeoffSpeed < 0 {
		return fmt.Errorf("invalid takeoff_speed: %f (must be > 0)", c.Flight.TakeoffSpeed)
	}
	if c.Flight.LandingSpeed < 0 {
		return fmt.Errorf("invalid landing_speed: %f (must be > 0)", c.Flight.LandingSpeed)
	}
	if c.Flight.DefaultSpeed < 0 {
		return fmt.Errorf("invalid default_speed: %f (must be > 0)", c.Flight.DefaultSpeed)
	}
	if c.Flight.DefaultAltitude < 0 {
		return fmt.Errorf("invalid default_altitude: %f (must be >= 0)", c.Flight.DefaultAltitude)
	}
	return nil
}

// GeoFrame returns the configured coordinate frame
func (c *Config) GeoFrame() (geo.Frame, error) {
	return geo.NewFrameWithZoom(c.Frame.OriginLat, c.Frame.OriginLon, c.Frame.Zoom)
}

// StatsParams returns the configured flight parameters
func (c *Config) StatsParams() stats.Params {
	return stats.Params{
		TakeoffSpeed: c.Flight.TakeoffSpeed,
		LandingSpeed: c.Flight.LandingSpeed,
		DefaultSpeed: c.Flight.DefaultSpeed,
	}
}
