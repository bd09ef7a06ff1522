package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/elys-network/yieldbalancer/internal/types"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment key, e.g. YB_RISK_TIER.
const EnvPrefix = "YB"

// AppConfig holds all application configuration loaded from environment variables.
type AppConfig struct {
	// Mode selects the executor: "live" submits over gRPC, "paper" simulates.
	Mode      string
	LogLevel  string
	LogFormat string
	WebPort   string

	RiskTier        types.RiskTier
	PreferredAssets []string

	LoopInterval         time.Duration
	MonitorInterval      time.Duration
	SentimentThreshold   float64
	SignificantChangePct float64
	EmergencyThreshold   int
	DefensiveMix         types.Mix
	MinSocialSamples     int
	HistoryWindow        time.Duration
	MinConfidence        float64

	FeedInterval   time.Duration
	FeedRetryDelay time.Duration
	FeedMaxRetries int

	VolatileInterval         time.Duration
	PriceVolatilityThreshold float64

	// AutoRiskAdjust steps the risk tier from the portfolio's realized APY.
	AutoRiskAdjust bool
	RiskRaiseAPY   float64
	RiskLowerAPY   float64

	AlertBacklog       int
	MarketBenchmarkAPY float64
	RiskFreeRate       float64

	// PortfolioValue seeds the paper executor and sizes instruction amounts.
	PortfolioValue float64
	PortfolioDenom string
	DenomPrecision int

	Endpoints Endpoints
	Database  DatabaseConfig
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// LoadConfig reads configuration from the environment, falling back to defaults.
func LoadConfig() (*AppConfig, error) {
	log.Info().Msg("Loading application configuration from environment variables...")

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	tier, err := types.ParseRiskTier(v.GetString("risk_tier"))
	if err != nil {
		return nil, err
	}

	defensive, err := types.ParseMix(v.GetString("defensive_mix"))
	if err != nil {
		return nil, fmt.Errorf("defensive_mix: %w", err)
	}

	cfg := &AppConfig{
		Mode:                     strings.ToLower(v.GetString("mode")),
		LogLevel:                 v.GetString("log_level"),
		LogFormat:                v.GetString("log_format"),
		WebPort:                  v.GetString("web_port"),
		RiskTier:                 tier,
		PreferredAssets:          splitList(v.GetString("preferred_assets")),
		LoopInterval:             v.GetDuration("loop_interval"),
		MonitorInterval:          v.GetDuration("monitor_interval"),
		SentimentThreshold:       v.GetFloat64("sentiment_threshold"),
		SignificantChangePct:     v.GetFloat64("significant_change_pct"),
		EmergencyThreshold:       v.GetInt("emergency_threshold"),
		DefensiveMix:             defensive,
		MinSocialSamples:         v.GetInt("min_social_samples"),
		HistoryWindow:            v.GetDuration("history_window"),
		MinConfidence:            v.GetFloat64("min_confidence"),
		FeedInterval:             v.GetDuration("feed_interval"),
		FeedRetryDelay:           v.GetDuration("feed_retry_delay"),
		FeedMaxRetries:           v.GetInt("feed_max_retries"),
		VolatileInterval:         v.GetDuration("volatile_interval"),
		PriceVolatilityThreshold: v.GetFloat64("price_volatility_threshold"),
		AutoRiskAdjust:           v.GetBool("auto_risk_adjust"),
		RiskRaiseAPY:             v.GetFloat64("risk_raise_apy"),
		RiskLowerAPY:             v.GetFloat64("risk_lower_apy"),
		AlertBacklog:             v.GetInt("alert_backlog"),
		MarketBenchmarkAPY:       v.GetFloat64("market_benchmark_apy"),
		RiskFreeRate:             v.GetFloat64("risk_free_rate"),
		PortfolioValue:           v.GetFloat64("portfolio_value"),
		PortfolioDenom:           v.GetString("portfolio_denom"),
		DenomPrecision:           v.GetInt("denom_precision"),
		Database: DatabaseConfig{
			Host:     v.GetString("db_host"),
			Port:     v.GetInt("db_port"),
			User:     v.GetString("db_user"),
			Password: v.GetString("db_password"),
			DBName:   v.GetString("db_name"),
			SSLMode:  v.GetString("db_sslmode"),
		},
	}

	cfg.Endpoints = loadEndpointConfig(v)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Debug().
		Str("mode", cfg.Mode).
		Str("riskTier", cfg.RiskTier.String()).
		Strs("preferredAssets", cfg.PreferredAssets).
		Dur("loopInterval", cfg.LoopInterval).
		Msg("Configuration loaded successfully.")

	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can resolve it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("web_port", "8080")

	v.SetDefault("risk_tier", "moderate")
	v.SetDefault("preferred_assets", strings.Join(DefaultPreferredAssets, ","))

	v.SetDefault("loop_interval", "10m")
	v.SetDefault("monitor_interval", DefaultMonitorInterval.String())
	v.SetDefault("sentiment_threshold", DefaultSentimentThreshold)
	v.SetDefault("significant_change_pct", DefaultSignificantChangePct)
	v.SetDefault("emergency_threshold", DefaultEmergencyThreshold)
	v.SetDefault("defensive_mix", DefaultDefensiveMix)
	v.SetDefault("min_social_samples", DefaultMinSocialSamples)
	v.SetDefault("history_window", "24h")
	v.SetDefault("min_confidence", DefaultMinConfidence)

	v.SetDefault("feed_interval", "5m")
	v.SetDefault("feed_retry_delay", "5s")
	v.SetDefault("feed_max_retries", 5)

	v.SetDefault("volatile_interval", DefaultVolatileInterval.String())
	v.SetDefault("price_volatility_threshold", DefaultPriceVolatilityThreshold)
	v.SetDefault("auto_risk_adjust", true)
	v.SetDefault("risk_raise_apy", DefaultRiskRaiseAPY)
	v.SetDefault("risk_lower_apy", DefaultRiskLowerAPY)

	v.SetDefault("alert_backlog", 100)
	v.SetDefault("market_benchmark_apy", DefaultMarketBenchmarkAPY)
	v.SetDefault("risk_free_rate", DefaultRiskFreeRate)

	v.SetDefault("portfolio_value", 100000.0)
	v.SetDefault("portfolio_denom", "uusdc")
	v.SetDefault("denom_precision", 6)

	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", 5432)
	v.SetDefault("db_user", "postgres")
	v.SetDefault("db_password", "")
	v.SetDefault("db_name", "yieldbalancer")
	v.SetDefault("db_sslmode", "disable")

	setEndpointDefaults(v)
}

// Validate collects every invalid setting into one error.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.LoopInterval <= 0 {
		errs = append(errs, errors.New("loop_interval must be positive"))
	}
	if c.MonitorInterval <= 0 {
		errs = append(errs, errors.New("monitor_interval must be positive"))
	}
	if c.SentimentThreshold < 0 || c.SentimentThreshold > 100 {
		errs = append(errs, errors.New("sentiment_threshold must be between 0 and 100"))
	}
	if c.EmergencyThreshold < 0 || c.EmergencyThreshold > 100 {
		errs = append(errs, errors.New("emergency_threshold must be between 0 and 100"))
	}
	if c.HistoryWindow <= 0 {
		errs = append(errs, errors.New("history_window must be positive"))
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		errs = append(errs, errors.New("min_confidence must be between 0 and 1"))
	}
	if c.FeedMaxRetries < 1 {
		errs = append(errs, errors.New("feed_max_retries must be at least 1"))
	}
	if c.FeedInterval <= 0 {
		errs = append(errs, errors.New("feed_interval must be positive"))
	}
	if c.FeedRetryDelay <= 0 {
		errs = append(errs, errors.New("feed_retry_delay must be positive"))
	}
	if c.VolatileInterval <= 0 {
		errs = append(errs, errors.New("volatile_interval must be positive"))
	}
	if c.PriceVolatilityThreshold <= 0 {
		errs = append(errs, errors.New("price_volatility_threshold must be positive"))
	}
	if c.RiskLowerAPY >= c.RiskRaiseAPY {
		errs = append(errs, errors.New("risk_lower_apy must be below risk_raise_apy"))
	}
	if c.AlertBacklog < 1 {
		errs = append(errs, errors.New("alert_backlog must be at least 1"))
	}
	if c.PortfolioValue < 0 {
		errs = append(errs, errors.New("portfolio_value must not be negative"))
	}
	if c.DenomPrecision < 0 || c.DenomPrecision > 18 {
		errs = append(errs, errors.New("denom_precision must be between 0 and 18"))
	}
	if c.Endpoints.SourceRPS <= 0 {
		errs = append(errs, errors.New("source_rps must be positive"))
	}
	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
