package config

const (
	defaultConfigPath             = "~/.config/crosslink/config.toml"
	defaultDataDir                = "~/.local/share/crosslink"
	defaultLogDir                 = "~/.local/share/crosslink/logs"
	defaultAPIBind                = "127.0.0.1:7591"
	defaultTMDBLanguage           = "en-US"
	defaultTMDBBaseURL            = "https://api.themoviedb.org/3"
	defaultTMDBRequestsPerSecond  = 4
	defaultMDLBaseURL             = "https://kuryana.vercel.app"
	defaultMDLRequestTimeout      = 10
	defaultBreakerThreshold       = 5
	defaultBreakerCooldownSeconds = 60
	defaultTitleTTLHours          = 7 * 24
	defaultPersonTTLHours         = 7 * 24
	defaultStaleSweepHours        = 6 * 24
	defaultWarmConcurrency        = 3
	defaultWarmRoundDelayMS       = 1500
	defaultSyncTimeBudgetSeconds  = 50
	defaultSyncItemDelayMS        = 500
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		TMDB: TMDB{
			BaseURL:           defaultTMDBBaseURL,
			Language:          defaultTMDBLanguage,
			RequestsPerSecond: defaultTMDBRequestsPerSecond,
		},
		MDL: MDL{
			BaseURL:                 defaultMDLBaseURL,
			RequestTimeoutSeconds:   defaultMDLRequestTimeout,
			BreakerFailureThreshold: defaultBreakerThreshold,
			BreakerCooldownSeconds:  defaultBreakerCooldownSeconds,
		},
		Cache: Cache{
			TitleTTLHours:   defaultTitleTTLHours,
			PersonTTLHours:  defaultPersonTTLHours,
			StaleSweepHours: defaultStaleSweepHours,
		},
		Warm: Warm{
			Concurrency:  defaultWarmConcurrency,
			RoundDelayMS: defaultWarmRoundDelayMS,
		},
		Sync: Sync{
			TimeBudgetSeconds: defaultSyncTimeBudgetSeconds,
			ItemDelayMS:       defaultSyncItemDelayMS,
			ActiveStatuses:    []string{"watching"},
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
