package config

import (
	"os"
	"strings"
	"time"

	"codeberg.org/mutker/serialmon/internal/errors"
	"codeberg.org/mutker/serialmon/internal/recording"
	"codeberg.org/mutker/serialmon/internal/transport"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	appName          = "serialmon"
	defaultEnvPrefix = "SERIALMON"
	systemConfigDir  = "/etc/serialmon"

	DefaultPort              = ""
	DefaultBaudRate          = 115200
	DefaultPlotWidth         = 500
	DefaultMaxMemory         = 1000
	DefaultSaveDir           = "./data"
	DefaultSink              = recording.SinkCSV
	DefaultDBPath            = "./data/recordings.db"
	DefaultDelimiter         = ","
	DefaultReadTimeout       = 100 * time.Millisecond
	DefaultRefreshInterval   = 500 * time.Millisecond
	DefaultOpenRetryInterval = time.Second
	DefaultStopTimeout       = 2 * time.Second
	DefaultSimChannels       = 4
	DefaultSimInterval       = 100 * time.Millisecond
)

type Config struct {
	Port              string        `mapstructure:"port"`
	BaudRate          int           `mapstructure:"baudrate"`
	PlotWidth         int           `mapstructure:"plot_width"`
	MaxMemory         int           `mapstructure:"max_memory"`
	SaveDir           string        `mapstructure:"save_dir"`
	Sink              string        `mapstructure:"sink"`
	DBPath            string        `mapstructure:"db_path"`
	Delimiter         string        `mapstructure:"delimiter"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	RefreshInterval   time.Duration `mapstructure:"refresh_interval"`
	OpenRetryInterval time.Duration `mapstructure:"open_retry_interval"`
	StopTimeout       time.Duration `mapstructure:"stop_timeout"`
	Simulate          bool          `mapstructure:"simulate"`
	SimChannels       int           `mapstructure:"sim_channels"`
	SimInterval       time.Duration `mapstructure:"sim_interval"`
	Debug             bool          `mapstructure:"debug"`
	Verbose           bool          `mapstructure:"verbose"`

	// Not read from files or the environment
	ListPorts  bool   `mapstructure:"-"`
	ConfigFile string `mapstructure:"-"`
}

// flag name -> viper key
var flagKeys = map[string]string{
	"port":                "port",
	"baudrate":            "baudrate",
	"plot-width":          "plot_width",
	"max-memory":          "max_memory",
	"save-dir":            "save_dir",
	"sink":                "sink",
	"db-path":             "db_path",
	"delimiter":           "delimiter",
	"read-timeout":        "read_timeout",
	"refresh-interval":    "refresh_interval",
	"open-retry-interval": "open_retry_interval",
	"stop-timeout":        "stop_timeout",
	"simulate":            "simulate",
	"sim-channels":        "sim_channels",
	"sim-interval":        "sim_interval",
	"debug":               "debug",
	"verbose":             "verbose",
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet(appName, pflag.ContinueOnError)
	fs.SortFlags = false

	fs.StringP("port", "p", DefaultPort, "Serial port to read from")
	fs.IntP("baudrate", "b", DefaultBaudRate, "Serial port speed")
	fs.Int("plot-width", DefaultPlotWidth, "Number of samples summarized on each refresh")
	fs.Int("max-memory", DefaultMaxMemory, "Number of samples kept in memory")
	fs.String("save-dir", DefaultSaveDir, "Directory for CSV recordings")
	fs.String("sink", DefaultSink, "Recording sink: csv or sqlite")
	fs.String("db-path", DefaultDBPath, "SQLite database for recordings")
	fs.String("delimiter", DefaultDelimiter, "Field delimiter of incoming records")
	fs.Duration("read-timeout", DefaultReadTimeout, "Maximum time a single port read may block")
	fs.Duration("refresh-interval", DefaultRefreshInterval, "Period of the monitor refresh")
	fs.Duration("open-retry-interval", DefaultOpenRetryInterval, "Delay between attempts to open the port (0 disables retries)")
	fs.Duration("stop-timeout", DefaultStopTimeout, "Maximum time to wait for capture to stop")
	fs.Bool("simulate", false, "Generate random records instead of reading a port")
	fs.Int("sim-channels", DefaultSimChannels, "Channels per simulated record")
	fs.Duration("sim-interval", DefaultSimInterval, "Period of simulated records")
	fs.Bool("debug", false, "Enable debugging mode")
	fs.Bool("verbose", false, "Enable verbose logging")
	fs.Bool("list-ports", false, "List available serial ports and exit")
	fs.StringP("config", "c", "", "Path to configuration file")

	return fs
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", DefaultPort)
	v.SetDefault("baudrate", DefaultBaudRate)
	v.SetDefault("plot_width", DefaultPlotWidth)
	v.SetDefault("max_memory", DefaultMaxMemory)
	v.SetDefault("save_dir", DefaultSaveDir)
	v.SetDefault("sink", DefaultSink)
	v.SetDefault("db_path", DefaultDBPath)
	v.SetDefault("delimiter", DefaultDelimiter)
	v.SetDefault("read_timeout", DefaultReadTimeout)
	v.SetDefault("refresh_interval", DefaultRefreshInterval)
	v.SetDefault("open_retry_interval", DefaultOpenRetryInterval)
	v.SetDefault("stop_timeout", DefaultStopTimeout)
	v.SetDefault("simulate", false)
	v.SetDefault("sim_channels", DefaultSimChannels)
	v.SetDefault("sim_interval", DefaultSimInterval)
	v.SetDefault("debug", false)
	v.SetDefault("verbose", false)
}

// Load resolves the configuration from args, the environment, a config
// file and the defaults, in that order of precedence, and validates it.
// Validation is skipped when only a port listing was requested.
func Load(args []string, opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := options{
		envPrefix: defaultEnvPrefix,
		output:    os.Stderr,
	}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidArgument, err)
		}
	}

	fs := newFlagSet()
	fs.SetOutput(o.output)
	if err := fs.Parse(args); err != nil {
		return nil, errFactory.Wrap(errors.ErrParseFlags, err)
	}

	v := viper.New()
	setDefaults(v)

	for name, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return nil, errFactory.WithData(errors.ErrBindFlags, name)
		}
	}

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	configFile, _ := fs.GetString("config")
	if configFile == "" {
		configFile = o.configPath
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(appName)
		v.AddConfigPath(".")
		v.AddConfigPath(systemConfigDir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}
	cfg.ConfigFile = v.ConfigFileUsed()
	cfg.ListPorts, _ = fs.GetBool("list-ports")

	if cfg.ListPorts {
		return cfg, nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks every value that has a bounded domain.
func (c *Config) Validate() error {
	errFactory := errors.New()

	invalid := func(field string, value any) error {
		return errFactory.WithData(errors.ErrInvalidConfig, struct {
			Field string
			Value any
		}{
			Field: field,
			Value: value,
		})
	}

	if c.PlotWidth <= 0 {
		return invalid("plot_width", c.PlotWidth)
	}
	if c.MaxMemory <= 0 {
		return invalid("max_memory", c.MaxMemory)
	}
	if c.Delimiter == "" {
		return invalid("delimiter", c.Delimiter)
	}
	if c.RefreshInterval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.RefreshInterval.String())
	}
	if c.OpenRetryInterval < 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.OpenRetryInterval.String())
	}
	if c.StopTimeout <= 0 {
		return invalid("stop_timeout", c.StopTimeout.String())
	}

	if !c.Simulate && c.Port == "" {
		return errFactory.WithData(errors.ErrMissingConfig, "port")
	}

	if err := c.Transport().Validate(); err != nil {
		return errFactory.Wrap(errors.ErrInvalidConfig, err)
	}
	if err := c.Recording().Validate(); err != nil {
		return errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	return nil
}

func (c *Config) Transport() transport.Config {
	return transport.Config{
		Port:        c.Port,
		BaudRate:    c.BaudRate,
		ReadTimeout: c.ReadTimeout,
		Simulate:    c.Simulate,
		SimChannels: c.SimChannels,
		SimInterval: c.SimInterval,
	}
}

func (c *Config) Recording() recording.Config {
	return recording.Config{
		Sink:    c.Sink,
		SaveDir: c.SaveDir,
		DBPath:  c.DBPath,
	}
}
