package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/leadpipe/internal/agent"
	"github.com/sells-group/leadpipe/internal/catalog"
	"github.com/sells-group/leadpipe/internal/harvest"
	"github.com/sells-group/leadpipe/internal/ingest"
	"github.com/sells-group/leadpipe/internal/leads"
	"github.com/sells-group/leadpipe/internal/reasoning"
	"github.com/sells-group/leadpipe/internal/scoring"
	"github.com/sells-group/leadpipe/internal/skiptrace"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig       `yaml:"store" mapstructure:"store"`
	Server     ServerConfig      `yaml:"server" mapstructure:"server"`
	Log        LogConfig         `yaml:"log" mapstructure:"log"`
	Harvest    HarvestConfig     `yaml:"harvest" mapstructure:"harvest"`
	Ingest     ingest.Config     `yaml:"ingest" mapstructure:"ingest"`
	Scoring    scoring.Config    `yaml:"scoring" mapstructure:"scoring"`
	Predict    PredictConfig     `yaml:"predict" mapstructure:"predict"`
	Promotion  leads.Config      `yaml:"promotion" mapstructure:"promotion"`
	Compliance leads.ScrubConfig `yaml:"compliance" mapstructure:"compliance"`
	Catalog    catalog.Config    `yaml:"catalog" mapstructure:"catalog"`
	Skiptrace  skiptrace.Config  `yaml:"skiptrace" mapstructure:"skiptrace"`
	Anthropic  AnthropicConfig   `yaml:"anthropic" mapstructure:"anthropic"`
	Reasoning  reasoning.Config  `yaml:"reasoning" mapstructure:"reasoning"`
	Agent      agent.Config      `yaml:"agent" mapstructure:"agent"`
	Schedule   ScheduleConfig    `yaml:"schedule" mapstructure:"schedule"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	MaxConns    int    `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int    `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// HarvestConfig configures the source adapters.
type HarvestConfig struct {
	Concurrency int                   `yaml:"concurrency" mapstructure:"concurrency"`
	Notices     harvest.NoticesConfig `yaml:"notices" mapstructure:"notices"`
	TaxRoll     harvest.TaxRollConfig `yaml:"taxroll" mapstructure:"taxroll"`
	Probate     harvest.ProbateConfig `yaml:"probate" mapstructure:"probate"`
}

// PredictConfig configures the predictive scorer's weight schema.
type PredictConfig struct {
	// SchemaPath points to a YAML weight schema. Empty uses the shipped
	// default calibration.
	SchemaPath string `yaml:"schema_path" mapstructure:"schema_path"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// ScheduleConfig configures cron-driven cycles.
type ScheduleConfig struct {
	// Spec is a standard five-field cron expression.
	Spec string `yaml:"spec" mapstructure:"spec"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADPIPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.sqlite_path", "leadpipe.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("harvest.concurrency", 4)
	v.SetDefault("schedule.spec", "*/15 * * * *")

	setStructDefaults(v, "ingest", map[string]any{
		"default_county": "",
	})
	setScoringDefaults(v)
	setPromotionDefaults(v)
	setStructDefaults(v, "catalog", map[string]any{
		"rps":           catalog.DefaultConfig().RPS,
		"timeout_secs":  catalog.DefaultConfig().TimeoutSecs,
		"page_size":     catalog.DefaultConfig().PageSize,
		"max_pages":     catalog.DefaultConfig().MaxPages,
		"cost_per_page": catalog.DefaultConfig().CostPerPage,
	})
	setStructDefaults(v, "skiptrace", map[string]any{
		"rps":          skiptrace.DefaultConfig().RPS,
		"timeout_secs": skiptrace.DefaultConfig().TimeoutSecs,
	})
	setStructDefaults(v, "reasoning", map[string]any{
		"model":      reasoning.DefaultConfig().Model,
		"max_tokens": reasoning.DefaultConfig().MaxTokens,
	})
	setStructDefaults(v, "agent", map[string]any{
		"wall_budget_secs": agent.DefaultConfig().WallBudgetSecs,
		"concurrency":      agent.DefaultConfig().Concurrency,
	})

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Scoring.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the settings a command depends on are present.
// Mode selects the requirement set: "serve", "harvest", "cycle",
// "schedule", or "migrate".
func (c *Config) Validate(mode string) error {
	var missing []string

	requireStore := func() {
		switch c.Store.Driver {
		case "postgres":
			if c.Store.DatabaseURL == "" {
				missing = append(missing, "store.database_url is required")
			}
		case "sqlite":
			if c.Store.SQLitePath == "" {
				missing = append(missing, "store.sqlite_path is required")
			}
		default:
			missing = append(missing, "store.driver must be postgres or sqlite")
		}
	}

	switch mode {
	case "serve":
		requireStore()
		if c.Server.Port < 1 || c.Server.Port > 65535 {
			missing = append(missing, "server.port must be between 1 and 65535")
		}
	case "harvest":
		requireStore()
	case "cycle", "schedule":
		requireStore()
		if len(c.Agent.BulkRegions) > 0 && c.Catalog.BaseURL == "" {
			missing = append(missing, "catalog.base_url is required when agent.bulk_regions is set")
		}
		if mode == "schedule" && c.Schedule.Spec == "" {
			missing = append(missing, "schedule.spec is required")
		}
	case "migrate":
		requireStore()
	default:
		return eris.Errorf("config: unknown validation mode %q", mode)
	}

	if len(missing) > 0 {
		return eris.New("config: " + strings.Join(missing, "; "))
	}
	return nil
}

func setStructDefaults(v *viper.Viper, prefix string, defaults map[string]any) {
	for k, val := range defaults {
		v.SetDefault(prefix+"."+k, val)
	}
}

func setScoringDefaults(v *viper.Viper) {
	d := scoring.DefaultConfig()
	v.SetDefault("scoring.signal_scale", d.SignalScale)
	v.SetDefault("scoring.decay_half_life_days", d.DecayHalfLifeDays)
	v.SetDefault("scoring.stack_bonus_per_type", d.StackBonusPerType)
	v.SetDefault("scoring.stack_bonus_cap", d.StackBonusCap)
	v.SetDefault("scoring.absentee_weight", d.AbsenteeWeight)
	v.SetDefault("scoring.corporate_weight", d.CorporateWeight)
	v.SetDefault("scoring.inherited_weight", d.InheritedWeight)
	v.SetDefault("scoring.elderly_weight", d.ElderlyWeight)
	v.SetDefault("scoring.out_of_state_weight", d.OutOfStateWeight)
	v.SetDefault("scoring.equity_points_per_pct", d.EquityPointsPerPct)
	v.SetDefault("scoring.unknown_equity_score", d.UnknownEquityScore)
	v.SetDefault("scoring.market_exposure_cap", d.MarketExposureCap)
	v.SetDefault("scoring.conversion_baseline", d.ConversionBaseline)
	v.SetDefault("scoring.conversion_scale", d.ConversionScale)
	v.SetDefault("scoring.conversion_adj_cap", d.ConversionAdjCap)
	v.SetDefault("scoring.motivation_weight", d.MotivationWeight)
	v.SetDefault("scoring.deal_weight", d.DealWeight)
	v.SetDefault("scoring.blend_deterministic", d.BlendDeterministic)
	v.SetDefault("scoring.blend_predictive", d.BlendPredictive)
}

func setPromotionDefaults(v *viper.Viper) {
	d := leads.DefaultConfig()
	v.SetDefault("promotion.default_threshold", d.DefaultThreshold)
	v.SetDefault("promotion.thresholds", d.Thresholds)
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
