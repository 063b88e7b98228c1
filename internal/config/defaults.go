package config

const (
	defaultDataDir     = "~/.local/share/clipmatch"
	defaultLogDir      = "~/.local/share/clipmatch/logs"
	defaultDownloadDir = "~/.local/share/clipmatch/downloads"
	defaultProfile     = "default"

	defaultLLMBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel          = "google/gemini-3-flash-preview"
	defaultVisionModel       = "google/gemini-3-flash-preview"
	defaultLLMReferer        = "https://github.com/clipmatch/clipmatch"
	defaultLLMTitle          = "Clipmatch Segment Analyzer"
	defaultLLMTimeoutSeconds = 25

	defaultVisionTimeoutSeconds = 60

	defaultSearchResultLimit = 8
	defaultSearchAttempts    = 3

	defaultVisualMaxCandidates = 3
	defaultVisualPaceMillis    = 1500

	defaultPollIntervalSeconds    = 5
	defaultMaxWaitMinutes         = 4
	defaultDownloadTimeoutSeconds = 120

	defaultLoginTimeoutMinutes = 5
	defaultLoginPollSeconds    = 3

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:     defaultDataDir,
			LogDir:      defaultLogDir,
			DownloadDir: defaultDownloadDir,
			Profile:     defaultProfile,
		},
		Platform: Platform{
			SearchPath:  "/search",
			LibraryPath: "/account/library",
			LoginPath:   "/sign-in",
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Vision: Vision{
			Model:          defaultVisionModel,
			TimeoutSeconds: defaultVisionTimeoutSeconds,
		},
		Search: Search{
			ResultLimit:     defaultSearchResultLimit,
			MaxAttempts:     defaultSearchAttempts,
			WithScreenshots: true,
		},
		Visual: Visual{
			MaxCandidates: defaultVisualMaxCandidates,
			PaceMillis:    defaultVisualPaceMillis,
		},
		Retrieval: Retrieval{
			PollIntervalSeconds:    defaultPollIntervalSeconds,
			MaxWaitMinutes:         defaultMaxWaitMinutes,
			DownloadTimeoutSeconds: defaultDownloadTimeoutSeconds,
		},
		Session: Session{
			LoginTimeoutMinutes: defaultLoginTimeoutMinutes,
			PollSeconds:         defaultLoginPollSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		History: History{
			Enabled: true,
		},
	}
}
