package core

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env          string
		Build        string
		AppName      string
		Debug        bool
		TestMode     bool
		WorkDir      string
		LogLevel     string
		RollbarToken string

		Server struct {
			Address         string
			Host            string
			DebugAddress    string
			ShutdownTimeout time.Duration
			DisableReqLogs  bool
			AllowOrigins    []string
		}

		Recommend RecommendConfig
	}

	// RecommendConfig holds the tunables of the recommendation pipeline.
	RecommendConfig struct {
		DefaultLimit        int
		MaxLimit            int
		ConfidenceThreshold float64
		CollaborativeWeight float64
		ContentWeight       float64
		MaxNeighbors        int
		MaxCandidates       int
		CacheTTL            time.Duration
		CacheCapacity       int
		CacheSweepSchedule  string
		Seed                int64
	}
)

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "BGE Héroes de la Patria")
	v.SetDefault("logLevel", "debug")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.address", ":3001")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.debugAddress", "")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.disableReqLogs", false)
	v.SetDefault("server.allowOrigins", []string{"*"})

	v.SetDefault("recommend.defaultLimit", 10)
	v.SetDefault("recommend.maxLimit", 50)
	v.SetDefault("recommend.confidenceThreshold", 0.7)
	v.SetDefault("recommend.collaborativeWeight", 0.6)
	v.SetDefault("recommend.contentWeight", 0.4)
	v.SetDefault("recommend.maxNeighbors", 5)
	v.SetDefault("recommend.maxCandidates", 20)
	v.SetDefault("recommend.cacheTTL", 15*time.Minute)
	v.SetDefault("recommend.cacheCapacity", 1000)
	v.SetDefault("recommend.cacheSweepSchedule", "")
	v.SetDefault("recommend.seed", int64(0))
}

// NewConfig loads the configuration for the environment named by $ENV (DEV (default), TEST, QA, PROD).
// Values come from defaults, then `config/.env.<env>` if present, then environment variables
// prefixed with the env name (eg. DEV_SERVER_ADDRESS).
func NewConfig() *Config {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(CleanString(os.Getenv("ENV")))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	case "QA", "PROD":
		v.SetDefault("debug", false)
		v.SetDefault("logLevel", "info")
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	wd := Getwd()
	if wd != "" {
		dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
		if _, err := os.Stat(dotEnvPath); err == nil {
			if err := godotenv.Load(dotEnvPath); err != nil {
				log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
			}
		} else if !os.IsNotExist(err) {
			log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
		}
	}
	v.AutomaticEnv()

	conf := &Config{
		Env:          env,
		Build:        v.GetString("build"),
		AppName:      v.GetString("appName"),
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		WorkDir:      wd,
		LogLevel:     v.GetString("logLevel"),
		RollbarToken: v.GetString("rollbarToken"),
	}
	conf.Server.Address = v.GetString("server.address")
	conf.Server.Host = v.GetString("server.host")
	conf.Server.DebugAddress = v.GetString("server.debugAddress")
	conf.Server.ShutdownTimeout = v.GetDuration("server.shutdownTimeout")
	conf.Server.DisableReqLogs = v.GetBool("server.disableReqLogs")
	conf.Server.AllowOrigins = v.GetStringSlice("server.allowOrigins")

	conf.Recommend = RecommendConfig{
		DefaultLimit:        v.GetInt("recommend.defaultLimit"),
		MaxLimit:            v.GetInt("recommend.maxLimit"),
		ConfidenceThreshold: v.GetFloat64("recommend.confidenceThreshold"),
		CollaborativeWeight: v.GetFloat64("recommend.collaborativeWeight"),
		ContentWeight:       v.GetFloat64("recommend.contentWeight"),
		MaxNeighbors:        v.GetInt("recommend.maxNeighbors"),
		MaxCandidates:       v.GetInt("recommend.maxCandidates"),
		CacheTTL:            v.GetDuration("recommend.cacheTTL"),
		CacheCapacity:       v.GetInt("recommend.cacheCapacity"),
		CacheSweepSchedule:  v.GetString("recommend.cacheSweepSchedule"),
		Seed:                v.GetInt64("recommend.seed"),
	}
	return conf
}
