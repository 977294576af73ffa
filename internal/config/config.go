// Package config holds the compiled-in checker configuration and the
// optional override file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const schemaVersion = "1.0"

// Config is the compiled-in configuration with optional overrides.
type Config struct {
	SchemaVersion string          `json:"schemaVersion" yaml:"schemaVersion" toml:"schemaVersion"`
	Paths         PathsConfig     `json:"paths" yaml:"paths" toml:"paths"`
	Device        DeviceConfig    `json:"device" yaml:"device" toml:"device"`
	LinkPaths     LinkPathsConfig `json:"linkPaths" yaml:"linkPaths" toml:"linkPaths"`
	Reports       ReportsConfig   `json:"reports" yaml:"reports" toml:"reports"`
	Logging       LoggingConfig   `json:"logging" yaml:"logging" toml:"logging"`
}

type PathsConfig struct {
	// MirrorRoot holds a copy of the device file system; /vendor and /odm
	// are read below it.
	MirrorRoot string `json:"mirrorRoot" yaml:"mirrorRoot" toml:"mirrorRoot"`
	OutputDir  string `json:"outputDir" yaml:"outputDir" toml:"outputDir"`
	DataDir    string `json:"dataDir" yaml:"dataDir" toml:"dataDir"`
	SigningKey string `json:"signingKey" yaml:"signingKey" toml:"signingKey"`
}

// DeviceConfig overrides what the mirrored build.prop files report.
type DeviceConfig struct {
	ABIs        []string `json:"abis" yaml:"abis" toml:"abis"`
	Is64Bit     *bool    `json:"is64Bit,omitempty" yaml:"is64Bit,omitempty" toml:"is64Bit,omitempty"`
	VndkVersion string   `json:"vndkVersion" yaml:"vndkVersion" toml:"vndkVersion"`
	// Enforced forces the VNDK run-time enforcement signal.
	Enforced  *bool    `json:"enforced,omitempty" yaml:"enforced,omitempty" toml:"enforced,omitempty"`
	PropFiles []string `json:"propFiles" yaml:"propFiles" toml:"propFiles"`
}

type LinkPathsConfig struct {
	SPHAL               []string `json:"spHal" yaml:"spHal" toml:"spHal"`
	Vendor              []string `json:"vendor" yaml:"vendor" toml:"vendor"`
	VndkSpExt           []string `json:"vndkSpExt" yaml:"vndkSpExt" toml:"vndkSpExt"`
	VendorApps          []string `json:"vendorApps" yaml:"vendorApps" toml:"vendorApps"`
	DefaultInterpreters []string `json:"defaultInterpreters" yaml:"defaultInterpreters" toml:"defaultInterpreters"`
	LegacyLibDirs       []string `json:"legacyLibDirs" yaml:"legacyLibDirs" toml:"legacyLibDirs"`
	LegacyBinDirs       []string `json:"legacyBinDirs" yaml:"legacyBinDirs" toml:"legacyBinDirs"`
}

type ReportsConfig struct {
	JSON  ReportConfig `json:"json" yaml:"json" toml:"json"`
	SARIF ReportConfig `json:"sarif" yaml:"sarif" toml:"sarif"`
	JUnit ReportConfig `json:"junit" yaml:"junit" toml:"junit"`
}

// ReportConfig enables one report file. An unset Enabled means on, and an
// empty Path places the file under Paths.OutputDir.
type ReportConfig struct {
	Enabled *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty" toml:"enabled,omitempty"`
	Path    string `json:"path" yaml:"path" toml:"path"`
}

// IsEnabled reports whether the report is written.
func (r ReportConfig) IsEnabled() bool { return r.Enabled == nil || *r.Enabled }

const (
	reportJSONName  = "report.json"
	reportSARIFName = "results.sarif"
	reportJUnitName = "junit.xml"
	signingKeyName  = "signing_ed25519"
)

type LoggingConfig struct {
	Level string `json:"level" yaml:"level" toml:"level"`
	JSON  bool   `json:"json" yaml:"json" toml:"json"`
}

type Flags struct {
	ConfigPath string
	MirrorRoot string
}

// Default returns the compiled-in defaults.
func Default() Config {
	const outputDir = ".vndkdep"
	return Config{
		SchemaVersion: schemaVersion,
		Paths: PathsConfig{
			MirrorRoot: ".",
			OutputDir:  outputDir,
			DataDir:    "golden",
			SigningKey: filepath.Join(outputDir, "keys", signingKeyName),
		},
		Device: DeviceConfig{
			PropFiles: []string{
				"/vendor/build.prop",
				"/odm/build.prop",
				"/system/build.prop",
			},
		},
		LinkPaths: LinkPathsConfig{
			SPHAL: []string{
				"/odm/{LIB}/egl", "/odm/{LIB}/hw", "/odm/{LIB}",
				"/vendor/{LIB}/egl", "/vendor/{LIB}/hw", "/vendor/{LIB}",
			},
			Vendor: []string{
				"/odm/{LIB}/hw", "/odm/{LIB}/egl", "/odm/{LIB}",
				"/vendor/{LIB}/hw", "/vendor/{LIB}/egl", "/vendor/{LIB}",
			},
			VndkSpExt:           []string{"/odm/{LIB}/vndk-sp", "/vendor/{LIB}/vndk-sp"},
			VendorApps:          []string{"/vendor/app", "/vendor/priv-app", "/odm/app", "/odm/priv-app"},
			DefaultInterpreters: []string{"/system/bin/linker", "/system/bin/linker64"},
			LegacyLibDirs:       []string{"/vendor/arib/lib/"},
			LegacyBinDirs:       []string{"/vendor/arib/bin/"},
		},
		Reports: ReportsConfig{
			JSON:  ReportConfig{Path: filepath.Join(outputDir, reportJSONName)},
			SARIF: ReportConfig{Path: filepath.Join(outputDir, reportSARIFName)},
			JUnit: ReportConfig{Path: filepath.Join(outputDir, reportJUnitName)},
		},
		Logging: LoggingConfig{
			Level: "info",
			JSON:  false,
		},
	}
}

// Load reads a config from disk. The format follows the extension: .yml
// and .yaml are YAML, .toml is TOML, anything else JSON.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		err = yaml.Unmarshal(data, &cfg)
	case ".toml":
		_, err = toml.Decode(string(data), &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Resolve applies defaults and optional overrides, then validates.
func Resolve(flags Flags) (Config, string, []string, error) {
	cfg := Default()
	var cfgPath string
	var warnings []string

	if flags.ConfigPath != "" {
		loaded, err := Load(flags.ConfigPath)
		if err != nil {
			return Config{}, "", nil, err
		}
		mergeConfigDefaults(&loaded, &cfg)
		cfg = loaded
		cfgPath = flags.ConfigPath
	}
	if flags.MirrorRoot != "" {
		cfg.Paths.MirrorRoot = flags.MirrorRoot
	}

	if cfg.SchemaVersion == "" {
		cfg.SchemaVersion = schemaVersion
	}
	if cfg.Device.Enforced != nil && !*cfg.Device.Enforced {
		warnings = append(warnings, "VNDK run-time enforcement forced off; vendor dependency errors will be ignored")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, "", nil, err
	}

	return cfg, cfgPath, warnings, nil
}

// Validate checks the resolved configuration for consistency.
func (c *Config) Validate() error {
	if c.SchemaVersion != schemaVersion {
		return fmt.Errorf("unsupported schemaVersion: %s (expected %s)", c.SchemaVersion, schemaVersion)
	}
	for name, paths := range map[string][]string{
		"linkPaths.spHal":  c.LinkPaths.SPHAL,
		"linkPaths.vendor": c.LinkPaths.Vendor,
	} {
		for _, p := range paths {
			if !strings.HasPrefix(p, "/") {
				return fmt.Errorf("%s: %q is not an absolute device path", name, p)
			}
		}
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown logging.level: %s", c.Logging.Level)
	}
	return nil
}

// HostPath maps a device path into the mirror root.
func (c *Config) HostPath(targetPath string) string {
	return filepath.Join(c.Paths.MirrorRoot, filepath.FromSlash(strings.TrimPrefix(targetPath, "/")))
}

func mergeConfigDefaults(cfg *Config, defaults *Config) {
	if cfg.Paths.MirrorRoot == "" {
		cfg.Paths.MirrorRoot = defaults.Paths.MirrorRoot
	}
	if cfg.Paths.OutputDir == "" {
		cfg.Paths.OutputDir = defaults.Paths.OutputDir
	}
	if cfg.Paths.DataDir == "" {
		cfg.Paths.DataDir = defaults.Paths.DataDir
	}
	if cfg.Paths.SigningKey == "" {
		cfg.Paths.SigningKey = filepath.Join(cfg.Paths.OutputDir, "keys", signingKeyName)
	}
	if len(cfg.Device.PropFiles) == 0 {
		cfg.Device.PropFiles = defaults.Device.PropFiles
	}
	if len(cfg.LinkPaths.SPHAL) == 0 {
		cfg.LinkPaths.SPHAL = defaults.LinkPaths.SPHAL
	}
	if len(cfg.LinkPaths.Vendor) == 0 {
		cfg.LinkPaths.Vendor = defaults.LinkPaths.Vendor
	}
	if len(cfg.LinkPaths.VndkSpExt) == 0 {
		cfg.LinkPaths.VndkSpExt = defaults.LinkPaths.VndkSpExt
	}
	if len(cfg.LinkPaths.VendorApps) == 0 {
		cfg.LinkPaths.VendorApps = defaults.LinkPaths.VendorApps
	}
	if len(cfg.LinkPaths.DefaultInterpreters) == 0 {
		cfg.LinkPaths.DefaultInterpreters = defaults.LinkPaths.DefaultInterpreters
	}
	if len(cfg.LinkPaths.LegacyLibDirs) == 0 {
		cfg.LinkPaths.LegacyLibDirs = defaults.LinkPaths.LegacyLibDirs
	}
	if len(cfg.LinkPaths.LegacyBinDirs) == 0 {
		cfg.LinkPaths.LegacyBinDirs = defaults.LinkPaths.LegacyBinDirs
	}
	for r, name := range map[*ReportConfig]string{
		&cfg.Reports.JSON:  reportJSONName,
		&cfg.Reports.SARIF: reportSARIFName,
		&cfg.Reports.JUnit: reportJUnitName,
	} {
		if r.Path == "" {
			r.Path = filepath.Join(cfg.Paths.OutputDir, name)
		}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaults.Logging.Level
	}
}
