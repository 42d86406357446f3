package config

import "runtime"

const (
	defaultConfigPath              = "~/.config/screendescribe/config.toml"
	defaultLogDir                  = "~/.local/share/screendescribe/logs"
	defaultStateDir                = "~/.local/share/screendescribe"
	defaultIntervalSeconds         = 1800
	defaultSettleDelaySeconds      = 3
	defaultCaptureTimeoutSeconds   = 30
	defaultInferenceBaseURL        = "http://127.0.0.1:1234/v1/chat/completions"
	defaultInferenceModel          = "qwen3-vl-8b-instruct-mlx"
	defaultInferenceTemperature    = 0.9
	defaultInferenceMaxTokens      = 500
	defaultInferenceFrequency      = 1.1
	defaultInferenceTimeoutSeconds = 300
	defaultInferenceRetryAttempts  = 2
	defaultTrackingOutputFile      = "~/Desktop/TimeTracking.txt"
	defaultPreviewLength           = 100
	defaultMinFreeMiB              = 16
	defaultHistoryRetentionDays    = 90
	defaultNotifyRequestTimeout    = 10
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
	defaultLogRetentionDays        = 30
	defaultLogBufferSize           = 512
	defaultTracingExporter         = "stdout"
)

// DefaultPrompt is the instruction sent with every screenshot.
const DefaultPrompt = "Describe whats on the screenshot for personal time tracking purposes, " +
	`if you see "clients" on the window title describe to whom should the billing go to ` +
	"after the forwarding slash. The summary should be 500 characters long maximum in the " +
	"following format: Client: {clientname} - {summaryofwhatishappening} in two sentences. " +
	"If you see a chat window, social media, passwords, secrets or password manager window don't mention them."

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:   defaultLogDir,
			StateDir: defaultStateDir,
		},
		Schedule: Schedule{
			IntervalSeconds: defaultIntervalSeconds,
		},
		Capture: Capture{
			Command:            defaultCaptureCommand(runtime.GOOS),
			SettleDelaySeconds: defaultSettleDelaySeconds,
			TimeoutSeconds:     defaultCaptureTimeoutSeconds,
		},
		Inference: Inference{
			BaseURL:          defaultInferenceBaseURL,
			Model:            defaultInferenceModel,
			Prompt:           DefaultPrompt,
			Temperature:      defaultInferenceTemperature,
			MaxTokens:        defaultInferenceMaxTokens,
			FrequencyPenalty: defaultInferenceFrequency,
			TimeoutSeconds:   defaultInferenceTimeoutSeconds,
			RetryAttempts:    defaultInferenceRetryAttempts,
		},
		Tracking: Tracking{
			OutputFile:    defaultTrackingOutputFile,
			PreviewLength: defaultPreviewLength,
			MinFreeMiB:    defaultMinFreeMiB,

			HistoryRetentionDays: defaultHistoryRetentionDays,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Failures:       true,
			Recovery:       true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
			BufferSize:    defaultLogBufferSize,
		},
		Tracing: Tracing{
			Exporter: defaultTracingExporter,
		},
	}
}

func defaultCaptureCommand(goos string) []string {
	switch goos {
	case "darwin":
		// -x silences the shutter sound.
		return []string{"screencapture", "-x"}
	default:
		return []string{"grim"}
	}
}
