package config

const (
	defaultConfigPath                = "~/.config/clarifai/config.toml"
	defaultOutputDir                 = "~/.local/share/clarifai/videos"
	defaultWorkDir                   = "~/.local/share/clarifai/work"
	defaultLogDir                    = "~/.local/share/clarifai/logs"
	defaultStateDir                  = "~/.local/share/clarifai/state"
	defaultLLMBaseURL                = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel                  = "google/gemini-2.5-flash"
	defaultLLMReferer                = "https://github.com/qtzx06/clarifai"
	defaultLLMTitle                  = "clarifai"
	defaultLLMTimeoutSeconds         = 120
	defaultLLMRetryAttempts          = 3
	defaultManimBinary               = "manim"
	defaultRenderQuality             = QualityMedium
	defaultRenderTimeoutSeconds      = 300
	defaultFFmpegBinary              = "ffmpeg"
	defaultFFprobeBinary             = "ffprobe"
	defaultParallelSynthesis         = 1
	defaultWorkflowHeartbeatInterval = 15
	defaultWorkflowHeartbeatTimeout  = 120
	defaultStoreBackend              = StoreBackendSQLite
	defaultNotifyRequestTimeout      = 10
	defaultPublishPrefix             = "videos"
	defaultLogFormat                 = "console"
	defaultLogLevel                  = "info"
)

// Render quality presets accepted by render.quality.
const (
	QualityLow    = "low"
	QualityMedium = "medium"
	QualityHigh   = "high"
)

// Store backends accepted by store.backend.
const (
	StoreBackendSQLite = "sqlite"
	StoreBackendMemory = "memory"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			WorkDir:   defaultWorkDir,
			LogDir:    defaultLogDir,
			StateDir:  defaultStateDir,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
			RetryAttempts:  defaultLLMRetryAttempts,
		},
		Render: Render{
			ManimBinary:    defaultManimBinary,
			Quality:        defaultRenderQuality,
			TimeoutSeconds: defaultRenderTimeoutSeconds,
		},
		Assembly: Assembly{
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
		},
		Workflow: Workflow{
			ParallelSynthesis: defaultParallelSynthesis,
			HeartbeatInterval: defaultWorkflowHeartbeatInterval,
			HeartbeatTimeout:  defaultWorkflowHeartbeatTimeout,
		},
		Store: Store{
			Backend: defaultStoreBackend,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			JobCompleted:   true,
			JobFailed:      true,
		},
		Publish: Publish{
			UseSSL: true,
			Prefix: defaultPublishPrefix,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
