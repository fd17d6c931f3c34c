package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// MineConfig holds settings for the salt-mining command.
type MineConfig struct {
	RPCURL       string
	Deployer     string
	Factory      string
	PairedToken  string
	Name         string
	Symbol       string
	Supply       string
	RequesterID  uint64
	Image        string
	Provenance   string
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	LogLevel     string
}

// SimulateConfig holds settings for the scenario-simulation command.
type SimulateConfig struct {
	Name               string
	Symbol             string
	Supply             string
	Fee                uint32
	Tick               int32
	DevBuy             string
	CampaignPercentage uint8
	DeploymentsOut     string
	ClaimsOut          string
	PGDSN              string
	LogLevel           string
}

func newViper(cfgFile string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("LAUNCHKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

// LoadMine merges config file, environment variables, and flags for the
// mine command.
func LoadMine(cfgFile string, flags *pflag.FlagSet) (MineConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return MineConfig{}, err
	}

	v.SetDefault("workers", 1)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("log-level", "info")

	return MineConfig{
		RPCURL:       v.GetString("rpc"),
		Deployer:     v.GetString("deployer"),
		Factory:      v.GetString("factory"),
		PairedToken:  v.GetString("paired-token"),
		Name:         v.GetString("name"),
		Symbol:       v.GetString("symbol"),
		Supply:       v.GetString("supply"),
		RequesterID:  v.GetUint64("requester-id"),
		Image:        v.GetString("image"),
		Provenance:   v.GetString("provenance"),
		Workers:      v.GetInt("workers"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		LogLevel:     v.GetString("log-level"),
	}, nil
}

// LoadSimulate merges config file, environment variables, and flags for the
// simulate command.
func LoadSimulate(cfgFile string, flags *pflag.FlagSet) (SimulateConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return SimulateConfig{}, err
	}

	v.SetDefault("fee", uint32(3000))
	v.SetDefault("tick", int32(-230400))
	v.SetDefault("deployments-out", "./data/deployments.jsonl")
	v.SetDefault("claims-out", "./data/reward_claims.jsonl")
	v.SetDefault("log-level", "info")

	return SimulateConfig{
		Name:               v.GetString("name"),
		Symbol:             v.GetString("symbol"),
		Supply:             v.GetString("supply"),
		Fee:                uint32(v.GetUint64("fee")),
		Tick:               int32(v.GetInt64("tick")),
		DevBuy:             v.GetString("dev-buy"),
		CampaignPercentage: uint8(v.GetUint64("campaign-percentage")),
		DeploymentsOut:     v.GetString("deployments-out"),
		ClaimsOut:          v.GetString("claims-out"),
		PGDSN:              v.GetString("pg-dsn"),
		LogLevel:           v.GetString("log-level"),
	}, nil
}
