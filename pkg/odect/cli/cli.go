//go:build cgo
// +build cgo

// Package cli implements the CLI app of odect
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/odect/odect/internal/common"
	"github.com/odect/odect/pkg/emissions"
	"github.com/odect/odect/pkg/entsoe"
	"github.com/odect/odect/pkg/odect/base"
	"github.com/odect/odect/pkg/pipeline"
	"github.com/odect/odect/pkg/psr"
	"github.com/odect/odect/pkg/sink"
	"github.com/prometheus/common/config"
	"github.com/prometheus/common/model"
	"github.com/prometheus/common/promslog"
	"github.com/prometheus/common/promslog/flag"
	"github.com/prometheus/common/version"
)

// Custom errors.
var (
	ErrNoData = errors.New("no generation data for the requested range")
)

// ENTSOEConfig contains the ENTSO-E API client configuration.
type ENTSOEConfig struct {
	URL              string                  `yaml:"url"`
	Token            config.Secret           `yaml:"token"`
	Timeout          model.Duration          `yaml:"timeout"`
	MaxRetries       uint64                  `yaml:"max_retries"`
	CacheTTL         model.Duration          `yaml:"cache_ttl"`
	HTTPClientConfig config.HTTPClientConfig `yaml:",inline"`
}

// StorageConfig contains the generation store configuration.
type StorageConfig struct {
	Path        string `yaml:"path"`
	Precision   int32  `yaml:"precision"`
	Concurrency int    `yaml:"concurrency"`
	// BackupPath is the directory receiving a DB backup after each run.
	BackupPath string `yaml:"backup_path"`
}

// EmissionsConfig contains the emission aggregator configuration.
type EmissionsConfig struct {
	FactorsFile  string           `yaml:"factors_file"`
	UnknownTypes emissions.Policy `yaml:"unknown_types"`
}

// OdectConfig contains the configuration of the odect run.
type OdectConfig struct {
	Target        pipeline.Zone          `yaml:"target"`
	Neighbours    []pipeline.Zone        `yaml:"neighbours"`
	DropTypes     []psr.Type             `yaml:"drop_types"`
	NetGeneration bool                   `yaml:"net_generation"`
	Models        []pipeline.ModelSeries `yaml:"models"`
	NDays         int                    `yaml:"n_days"`
	Storage       StorageConfig          `yaml:"storage"`
	ENTSOE        ENTSOEConfig           `yaml:"entsoe"`
	Emissions     EmissionsConfig        `yaml:"emissions"`
	Sinks         sink.Config            `yaml:"sinks"`
}

// OdectAppConfig contains the configuration of odect app.
type OdectAppConfig struct {
	Odect OdectConfig `yaml:"odect"`
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

// defaultConfig returns the default configuration: the Dutch bidding zone
// and its interconnected neighbours.
func defaultConfig() OdectAppConfig {
	return OdectAppConfig{
		Odect: OdectConfig{
			Target: pipeline.Zone{Name: "NL", Code: "10YNL----------L"},
			Neighbours: []pipeline.Zone{
				{Name: "BE", Code: "10YBE----------2"},
				{Name: "DE", Code: "10Y1001A1001A82H", LegacyCode: "10Y1001A1001A63L", LegacyUntil: day(2018, 10, 1)},
				{Name: "NO", Code: "10YNO-2--------T"},
				{Name: "DK", Code: "10YDK-1--------W", Since: day(2019, 9, 9)},
				{Name: "GB", Code: "10YGB----------A", MixFile: "data/gb_generation.csv"},
			},
			DropTypes: []psr.Type{psr.WindOnshore, psr.Solar},
			NDays:     7,
			Storage: StorageConfig{
				Path:      "odect.db",
				Precision: 1,
			},
			ENTSOE: ENTSOEConfig{
				URL:              entsoe.DefaultURL,
				Timeout:          model.Duration(30 * time.Second),
				MaxRetries:       3,
				CacheTTL:         model.Duration(time.Hour),
				HTTPClientConfig: config.DefaultHTTPClientConfig,
			},
			Emissions: EmissionsConfig{
				UnknownTypes: emissions.PolicySkip,
			},
		},
	}
}

// SetDirectory joins any relative file paths with dir.
func (c *OdectAppConfig) SetDirectory(dir string) {
	c.Odect.ENTSOE.HTTPClientConfig.SetDirectory(dir)

	join := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}

		return filepath.Join(dir, p)
	}

	c.Odect.Storage.Path = join(c.Odect.Storage.Path)
	c.Odect.Storage.BackupPath = join(c.Odect.Storage.BackupPath)
	c.Odect.Emissions.FactorsFile = join(c.Odect.Emissions.FactorsFile)

	for i := range c.Odect.Neighbours {
		c.Odect.Neighbours[i].MixFile = join(c.Odect.Neighbours[i].MixFile)
	}

	for i := range c.Odect.Models {
		c.Odect.Models[i].File = join(c.Odect.Models[i].File)
	}
}

// Validate validates the config.
func (c *OdectAppConfig) Validate() error {
	if err := c.Odect.Target.Validate(); err != nil {
		return err
	}

	for _, n := range c.Odect.Neighbours {
		if err := n.Validate(); err != nil {
			return err
		}
	}

	switch c.Odect.Emissions.UnknownTypes {
	case emissions.PolicySkip, emissions.PolicyAbort:
	default:
		return fmt.Errorf("%w: %s", emissions.ErrInvalidPolicy, c.Odect.Emissions.UnknownTypes)
	}

	if c.Odect.Storage.Precision < 0 {
		return fmt.Errorf("negative precision: %d", c.Odect.Storage.Precision)
	}

	// The UnmarshalYAML method of HTTPClientConfig is not being called because it's not a pointer.
	// We cannot make it a pointer as the parser panics for inlined pointer structs.
	// Thus we just do its validation here.
	return c.Odect.ENTSOE.HTTPClientConfig.Validate()
}

// UnmarshalYAML implements the yaml.Unmarshaler interface.
func (c *OdectAppConfig) UnmarshalYAML(unmarshal func(any) error) error {
	// Set a default config
	*c = defaultConfig()

	type plain OdectAppConfig

	if err := unmarshal((*plain)(c)); err != nil {
		return err
	}

	return c.Validate()
}

// Odect represents the `odect` cli.
type Odect struct {
	appName string
	App     kingpin.Application
	out     io.Writer
	now     func() time.Time
}

// NewOdect returns a new Odect instance.
func NewOdect() (*Odect, error) {
	return &Odect{
		appName: base.AppName,
		App:     base.App,
		out:     os.Stdout,
		now:     time.Now,
	}, nil
}

// Main is the entry point of the `odect` command.
func (o *Odect) Main() error {
	var (
		configFile = o.App.Flag(
			"config.file",
			"Configuration file path. Defaults are used for the Dutch bidding zone when not set.",
		).Envar("ODECT_CONFIG_FILE").Default("").String()
		start = o.App.Flag(
			"start",
			"First day (YYYYMMDD or YYYY-MM-DD, UTC). Defaults to n_days before end.",
		).Default("").String()
		end = o.App.Flag(
			"end",
			"Last day (YYYYMMDD or YYYY-MM-DD, UTC). Defaults to yesterday.",
		).Default("").String()
		view = o.App.Flag(
			"output.view",
			"Output view.",
		).Default(viewAEF).Enum(viewAEF, viewGeneration, viewEmissions, viewSummary)
		format = o.App.Flag(
			"output.format",
			"Output format.",
		).Default(formatTable).Enum(formatTable, formatCSV, formatMarkdown, formatHTML, formatNone)
		textfile = o.App.Flag(
			"metrics.textfile",
			"Write run metrics to this file for the node exporter textfile collector.",
		).Default("").String()
		token = o.App.Flag(
			"entsoe.token",
			"ENTSO-E transparency platform API token. Overrides config file.",
		).Envar(base.EnvTokenName).Default("").String()
	)

	promslogConfig := &promslog.Config{}
	flag.AddFlags(&o.App, promslogConfig)
	o.App.Version(version.Print(o.appName))
	o.App.UsageWriter(os.Stdout)
	o.App.HelpFlag.Short('h')

	_, err := o.App.Parse(os.Args[1:])
	if err != nil {
		return fmt.Errorf("failed to parse CLI flags: %w", err)
	}

	// Set logger here after properly configuring promlog
	logger := promslog.New(promslogConfig)

	cfg, err := readConfig(*configFile)
	if err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if *token != "" {
		cfg.Odect.ENTSOE.Token = config.Secret(*token)
	}

	if cfg.Odect.ENTSOE.Token == "" {
		logger.Warn("No ENTSO-E API token configured, requests will be rejected", "env", base.EnvTokenName)
	}

	from, to, err := dayRange(*start, *end, cfg.Odect.NDays, o.now())
	if err != nil {
		return err
	}

	logger.Info("Starting "+o.appName, "version", version.Info())
	logger.Info(
		"Operational information", "build_context", version.BuildContext(),
		"zone", cfg.Odect.Target.Name, "from", from.Format(time.DateOnly), "to", to.Format(time.DateOnly),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r, err := newRun(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer r.close()

	result, summaries, runErr := r.execute(ctx, from, to)
	if result == nil {
		return runErr
	}

	output(o.out, *view, *format, result, summaries)

	if *textfile != "" {
		if err := r.metrics.WriteTextfile(*textfile); err != nil {
			logger.Error("Failed to write metrics textfile", "path", *textfile, "err", err)
		}
	}

	return runErr
}

// readConfig returns the config from file or the default config.
func readConfig(configFile string) (*OdectAppConfig, error) {
	if configFile == "" {
		cfg := defaultConfig()

		return &cfg, nil
	}

	configFilePath, err := filepath.Abs(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path of the config file: %w", err)
	}

	cfg, err := common.MakeConfig[OdectAppConfig](configFilePath)
	if err != nil {
		return nil, err
	}

	cfg.SetDirectory(filepath.Dir(configFilePath))

	return cfg, nil
}
