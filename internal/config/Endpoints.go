package config

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Endpoints lists the external collaborators the service talks to.
// An empty URL disables the matching component.
type Endpoints struct {
	SocialURL         string
	NewsURL           string
	OnchainURL        string
	PipelineHealthURL string
	PoolsURL          string
	BenchmarkURL      string
	PriceHistoryURL   string
	SourceRPS         float64

	ExecutorGRPC string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	TelegramBotToken string
	TelegramChatID   string
}

func setEndpointDefaults(v *viper.Viper) {
	v.SetDefault("social_url", "")
	v.SetDefault("news_url", "")
	v.SetDefault("onchain_url", "")
	v.SetDefault("pipeline_health_url", "")
	v.SetDefault("pools_url", "")
	v.SetDefault("benchmark_url", "")
	v.SetDefault("price_history_url", "")
	v.SetDefault("source_rps", 1.0)
	v.SetDefault("executor_grpc", "")
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("telegram_bot_token", "")
	v.SetDefault("telegram_chat_id", "")
}

// loadEndpointConfig loads endpoint configuration from environment variables.
// This function is called by LoadConfig() in General.go.
func loadEndpointConfig(v *viper.Viper) Endpoints {
	e := Endpoints{
		SocialURL:         v.GetString("social_url"),
		NewsURL:           v.GetString("news_url"),
		OnchainURL:        v.GetString("onchain_url"),
		PipelineHealthURL: v.GetString("pipeline_health_url"),
		PoolsURL:          v.GetString("pools_url"),
		BenchmarkURL:      v.GetString("benchmark_url"),
		PriceHistoryURL:   v.GetString("price_history_url"),
		SourceRPS:         v.GetFloat64("source_rps"),
		ExecutorGRPC:      v.GetString("executor_grpc"),
		RedisAddr:         v.GetString("redis_addr"),
		RedisPassword:     v.GetString("redis_password"),
		RedisDB:           v.GetInt("redis_db"),
		TelegramBotToken:  v.GetString("telegram_bot_token"),
		TelegramChatID:    v.GetString("telegram_chat_id"),
	}

	log.Debug().
		Str("SocialURL", e.SocialURL).
		Str("NewsURL", e.NewsURL).
		Str("OnchainURL", e.OnchainURL).
		Str("PoolsURL", e.PoolsURL).
		Str("PriceHistoryURL", e.PriceHistoryURL).
		Str("ExecutorGRPC", e.ExecutorGRPC).
		Bool("redis", e.RedisAddr != "").
		Bool("telegram", e.TelegramBotToken != "").
		Msg("Endpoint configuration loaded successfully.")

	return e
}
