// internal/platform/config/config.go
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"lspprovision/internal/platform/errors"
)

const (
	AppName   = "lsp-provision"
	envPrefix = "LSPPROVISION_"
)

// Component names in installation order.
const (
	ComponentPython     = "pylsp"
	ComponentJava       = "jdtls"
	ComponentPHP        = "phpactor"
	ComponentTypeScript = "typescript-language-server"
)

// Components lists every component in the fixed installation order.
var Components = []string{ComponentPython, ComponentJava, ComponentPHP, ComponentTypeScript}

type Config struct {
	// Run
	ConfigPath  string `yaml:"-"`
	CheckOnly   bool   `yaml:"-"`
	Force       bool   `yaml:"-"`
	Quiet       bool   `yaml:"-"`
	Verbose     bool   `yaml:"-"`
	ShowVersion bool   `yaml:"-"`

	// Layout
	DestDir    string   `yaml:"dest_dir"`
	ShellRC    string   `yaml:"shell_rc"`
	ReportPath string   `yaml:"report"`
	Skip       []string `yaml:"skip"`

	// Privilege and consent
	UseSudo             bool `yaml:"sudo"`
	AllowRuntimeRemoval bool `yaml:"allow_runtime_removal"`

	Python     Python     `yaml:"python"`
	Java       Java       `yaml:"java"`
	PHP        PHP        `yaml:"php"`
	TypeScript TypeScript `yaml:"typescript"`
}

type Python struct {
	AptPackage string `yaml:"apt_package"`
	PipPackage string `yaml:"pip_package"`
}

type Java struct {
	Major      int    `yaml:"major"`
	Repository string `yaml:"repository"`
	// Package defaults to openjdk-<major>-jdk.
	Package     string `yaml:"package"`
	ArchiveURL  string `yaml:"archive_url"`
	InstallDir  string `yaml:"install_dir"`
	JVMDir      string `yaml:"jvm_dir"`
	MinHeap     string `yaml:"min_heap"`
	MaxHeap     string `yaml:"max_heap"`
	DataDirExpr string `yaml:"data_dir"`
}

type PHP struct {
	Packages   []string `yaml:"packages"`
	Package    string   `yaml:"package"`
	Constraint string   `yaml:"constraint"`
}

type TypeScript struct {
	MinimumMajor int      `yaml:"minimum_major"`
	SetupURL     string   `yaml:"setup_url"`
	Packages     []string `yaml:"packages"`
	NpmGlobalBin string   `yaml:"npm_global_bin"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		ConfigPath: DefaultConfigPath(),
		DestDir:    filepath.Join(xdg.DataHome, AppName, "bin"),
		UseSudo:    true,

		Python: Python{
			AptPackage: "python3-pylsp",
			PipPackage: "python-lsp-server",
		},
		Java: Java{
			Major:       21,
			Repository:  "ppa:openjdk-r/ppa",
			ArchiveURL:  "https://download.eclipse.org/jdtls/snapshots/jdt-language-server-latest.tar.gz",
			InstallDir:  "~/jdtls",
			JVMDir:      "/usr/lib/jvm",
			MinHeap:     "1g",
			MaxHeap:     "2G",
			DataDirExpr: "$HOME/.cache/jdtls-workspace",
		},
		PHP: PHP{
			Packages:   []string{"php", "php-cli", "php-mbstring", "php-xml", "php-zip", "php-curl"},
			Package:    "phpactor/phpactor",
			Constraint: "^2024.0",
		},
		TypeScript: TypeScript{
			MinimumMajor: 18,
			SetupURL:     "https://deb.nodesource.com/setup_22.x",
			Packages:     []string{"typescript-language-server", "typescript"},
			NpmGlobalBin: "~/.npm-global/bin",
		},
	}
}

// DefaultConfigPath is the YAML file read when --config is not given.
func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, AppName, "config.yaml")
}

// DefaultReportPath is used when --report is passed without a value.
func DefaultReportPath() string {
	return filepath.Join(xdg.StateHome, AppName, "last-run.yaml")
}

// Load builds the configuration: defaults, then the YAML file, then
// LSPPROVISION_* variables, then flags. Later sources win.
func Load(args []string) (Config, error) {
	return load(args, os.Stderr)
}

// LoadWithOutput is Load with usage and flag errors written to usageOut.
func LoadWithOutput(args []string, usageOut io.Writer) (Config, error) {
	return load(args, usageOut)
}

func load(args []string, usageOut io.Writer) (Config, error) {
	fl := flagValues{Config: DefaultConfig()}
	fs := newFlagSet(&fl, usageOut)
	if err := fs.Parse(args); err != nil {
		return fl.Config, err
	}

	cfg := DefaultConfig()
	cfg.ConfigPath = getenv(envPrefix+"CONFIG", cfg.ConfigPath)
	if fs.Changed("config") {
		cfg.ConfigPath = fl.ConfigPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, errors.Wrap(err, "resolve home directory")
	}
	cfg.ConfigPath = expandHome(cfg.ConfigPath, home)

	if err := loadFromFile(&cfg, cfg.ConfigPath, fs.Changed("config")); err != nil {
		return cfg, err
	}
	loadFromEnv(&cfg)
	applyFlags(&cfg, &fl, fs)

	if err := normalize(&cfg, home, os.Getenv("SHELL")); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// flagValues receives parsed flags before they are merged over the
// file and environment layers.
type flagValues struct {
	Config
	noSudo bool
}

func newFlagSet(fl *flagValues, usageOut io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet(AppName, pflag.ContinueOnError)
	fs.SetOutput(usageOut)

	fs.StringVar(&fl.ConfigPath, "config", fl.ConfigPath, "Path to the YAML configuration file")
	fs.StringVar(&fl.DestDir, "dir", fl.DestDir, "Destination directory for language server binaries")
	fs.StringVar(&fl.ShellRC, "shell-rc", "", "Shell startup file to register the destination directory in")
	fs.BoolVar(&fl.CheckOnly, "check", false, "Only check components, do not install")
	fs.BoolVar(&fl.Force, "force", false, "Reinstall components even when already satisfied")
	fs.StringSliceVar(&fl.Skip, "skip", nil, "Components to skip (comma separated)")
	fs.BoolVar(&fl.noSudo, "no-sudo", false, "Run privileged commands without sudo")
	fs.BoolVar(&fl.AllowRuntimeRemoval, "allow-runtime-removal", false, "Allow removing an outdated system Node.js runtime")
	fs.StringVar(&fl.ReportPath, "report", "", "Write a YAML run report (default path when given without value)")
	fs.Lookup("report").NoOptDefVal = DefaultReportPath()
	fs.BoolVarP(&fl.Quiet, "quiet", "q", false, "Quiet mode (minimal output)")
	fs.BoolVar(&fl.Verbose, "verbose", false, "Verbose mode (detailed logging)")
	fs.BoolVarP(&fl.ShowVersion, "version", "v", false, "Show version and exit")

	fs.Usage = func() { printUsage(usageOut, fs) }
	return fs
}

// applyFlags copies every explicitly set flag from fl into cfg.
func applyFlags(cfg *Config, fl *flagValues, fs *pflag.FlagSet) {
	fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "dir":
			cfg.DestDir = fl.DestDir
		case "shell-rc":
			cfg.ShellRC = fl.ShellRC
		case "check":
			cfg.CheckOnly = fl.CheckOnly
		case "force":
			cfg.Force = fl.Force
		case "skip":
			cfg.Skip = fl.Skip
		case "no-sudo":
			cfg.UseSudo = !fl.noSudo
		case "allow-runtime-removal":
			cfg.AllowRuntimeRemoval = fl.AllowRuntimeRemoval
		case "report":
			cfg.ReportPath = fl.ReportPath
		case "quiet":
			cfg.Quiet = fl.Quiet
		case "verbose":
			cfg.Verbose = fl.Verbose
		case "version":
			cfg.ShowVersion = fl.ShowVersion
		}
	})
}

// loadFromFile merges the YAML file over cfg. A missing file is only an
// error when it was requested explicitly.
func loadFromFile(cfg *Config, path string, explicit bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return nil
		}
		return errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return errors.Wrapf(errors.ErrInvalidInput, "parse config %s: %v", path, err)
	}
	return nil
}

// loadFromEnv applies LSPPROVISION_* variables.
func loadFromEnv(cfg *Config) {
	if v := getenv(envPrefix+"DIR", ""); v != "" {
		cfg.DestDir = v
	}
	if v := getenv(envPrefix+"SHELL_RC", ""); v != "" {
		cfg.ShellRC = v
	}
	if v := getenv(envPrefix+"SKIP", ""); v != "" {
		cfg.Skip = splitList(v)
	}
	if v := getenv(envPrefix+"REPORT", ""); v != "" {
		cfg.ReportPath = v
	}
	if v := getenv(envPrefix+"NO_SUDO", ""); v != "" {
		cfg.UseSudo = !parseBool(v)
	}
	if v := getenv(envPrefix+"ALLOW_RUNTIME_REMOVAL", ""); v != "" {
		cfg.AllowRuntimeRemoval = parseBool(v)
	}
	if v := getenv(envPrefix+"FORCE", ""); v != "" {
		cfg.Force = parseBool(v)
	}

	// Components
	if v := getenv(envPrefix+"JAVA_MAJOR", ""); v != "" {
		cfg.Java.Major = parseInt(v, cfg.Java.Major)
	}
	if v := getenv(envPrefix+"JDTLS_URL", ""); v != "" {
		cfg.Java.ArchiveURL = v
	}
	if v := getenv(envPrefix+"JDTLS_DIR", ""); v != "" {
		cfg.Java.InstallDir = v
	}
	if v := getenv(envPrefix+"NODE_MINIMUM_MAJOR", ""); v != "" {
		cfg.TypeScript.MinimumMajor = parseInt(v, cfg.TypeScript.MinimumMajor)
	}
	if v := getenv(envPrefix+"NODE_SETUP_URL", ""); v != "" {
		cfg.TypeScript.SetupURL = v
	}
}

func normalize(c *Config, home, shell string) error {
	if strings.TrimSpace(c.DestDir) == "" {
		c.DestDir = DefaultConfig().DestDir
	}
	if c.ShellRC == "" {
		c.ShellRC = "~/.bashrc"
		if strings.HasSuffix(shell, "zsh") {
			c.ShellRC = "~/.zshrc"
		}
	}

	c.DestDir = filepath.Clean(expandHome(c.DestDir, home))
	c.ShellRC = filepath.Clean(expandHome(c.ShellRC, home))
	c.Java.InstallDir = filepath.Clean(expandHome(c.Java.InstallDir, home))
	c.TypeScript.NpmGlobalBin = filepath.Clean(expandHome(c.TypeScript.NpmGlobalBin, home))
	if c.ReportPath != "" {
		c.ReportPath = filepath.Clean(expandHome(c.ReportPath, home))
	}

	if c.Java.Major <= 0 {
		return errors.Wrapf(errors.ErrInvalidInput, "java major must be positive, got %d", c.Java.Major)
	}
	if c.Java.Package == "" {
		c.Java.Package = fmt.Sprintf("openjdk-%d-jdk", c.Java.Major)
	}
	if c.TypeScript.MinimumMajor <= 0 {
		return errors.Wrapf(errors.ErrInvalidInput, "node minimum major must be positive, got %d", c.TypeScript.MinimumMajor)
	}

	skip := make([]string, 0, len(c.Skip))
	for _, name := range c.Skip {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if !IsComponent(name) {
			return errors.Wrapf(errors.ErrInvalidInput, "unknown component %q (known: %s)", name, strings.Join(Components, ", "))
		}
		skip = append(skip, name)
	}
	c.Skip = skip
	return nil
}

// IsComponent reports whether name is one of the known components.
func IsComponent(name string) bool {
	for _, c := range Components {
		if c == name {
			return true
		}
	}
	return false
}

// Skips reports whether the component is excluded from this run.
func (c Config) Skips(name string) bool {
	for _, s := range c.Skip {
		if s == name {
			return true
		}
	}
	return false
}

// ToYAML serializes the configuration (useful for debugging).
func (c Config) ToYAML() (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Helpers

func expandHome(p, home string) string {
	switch {
	case p == "~" || p == "$HOME":
		return home
	case strings.HasPrefix(p, "~/"):
		return filepath.Join(home, p[2:])
	case strings.HasPrefix(p, "$HOME/"):
		return filepath.Join(home, p[len("$HOME/"):])
	}
	return p
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok {
		return v
	}
	return def
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "t", "true", "y", "yes", "on":
		return true
	default:
		return false
	}
}

func parseInt(v string, def int) int {
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return i
}
