// Package config loads process configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/chadiek/voice-agent/internal/speech"
)

// defaultGreeting is spoken when the personalization lookup fails or the
// automation endpoint is not configured.
const defaultGreeting = "Merhaba, Klinik Emre'ye hoş geldiniz. Size nasıl yardımcı olabilirim?"

// defaultInstructions is the built-in persona. Deployments override it with
// AGENT_INSTRUCTIONS; the text is opaque configuration, not logic.
const defaultInstructions = "Sen Klinik Emre'nin AI resepsiyonistisin. Hastaların sorularını " +
	"yanıtla, randevularını yönet ve sıcak, profesyonel, kısa yanıtlar ver. Tıbbi tavsiye verme; " +
	"tıbbi soruları uzmanlara yönlendir."

// Config holds application configuration.
type Config struct {
	HTTPAddress     string
	OpenAIKey       string
	OpenAIModel     string
	WebhookURL      string
	TwilioAuthToken string
	Voice           string
	Instructions    string
	Greeting        string
	Temperature     float64
	Tuning          speech.Tuning
}

// Load reads environment variables and returns Config with sane defaults.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file loaded")
	}

	addr := os.Getenv("HTTP_ADDRESS")
	if addr == "" {
		addr = ":8080"
	}

	openAIKey := os.Getenv("OPENAI_API_KEY")
	if openAIKey == "" {
		log.Warn().Msg("OPENAI_API_KEY not set - calls will fail to reach the AI channel")
	}
	model := os.Getenv("OPENAI_REALTIME_MODEL")
	if model == "" {
		model = "gpt-4o-realtime-preview-2024-10-01"
	}

	webhookURL := os.Getenv("WEBHOOK_URL")
	if webhookURL == "" {
		log.Warn().Msg("WEBHOOK_URL not set - greetings, transcripts and tools will not work")
	}

	twilioToken := os.Getenv("TWILIO_AUTH_TOKEN")
	if twilioToken == "" {
		log.Warn().Msg("TWILIO_AUTH_TOKEN not set - carrier signature validation disabled")
	}

	voice := os.Getenv("AGENT_VOICE")
	if voice == "" {
		voice = "coral"
	}
	instructions := os.Getenv("AGENT_INSTRUCTIONS")
	if instructions == "" {
		instructions = defaultInstructions
	}
	greeting := os.Getenv("DEFAULT_GREETING")
	if greeting == "" {
		greeting = defaultGreeting
	}

	cfg := Config{
		HTTPAddress:     addr,
		OpenAIKey:       openAIKey,
		OpenAIModel:     model,
		WebhookURL:      webhookURL,
		TwilioAuthToken: twilioToken,
		Voice:           voice,
		Instructions:    instructions,
		Greeting:        greeting,
		Temperature:     envFloat("AGENT_TEMPERATURE", 0.8),
		Tuning:          loadTuning(),
	}
	log.Info().Str("addr", cfg.HTTPAddress).Str("model", cfg.OpenAIModel).Msg("config loaded")
	return cfg
}

// loadTuning exposes every detection threshold as an environment knob. The
// defaults are the settled production values.
func loadTuning() speech.Tuning {
	t := speech.Default()
	t.SpeechThreshold = envFloat("SPEECH_THRESHOLD", t.SpeechThreshold)
	t.NoiseFloor = envFloat("NOISE_FLOOR", t.NoiseFloor)
	t.MinimumLevel = envFloat("MINIMUM_AUDIO_LEVEL", t.MinimumLevel)
	t.Window = envDuration("SPEECH_WINDOW", t.Window)
	t.MinSamples = envInt("MIN_SPEECH_SAMPLES", t.MinSamples)
	t.ConsecutiveNeeded = envInt("CONSECUTIVE_SAMPLES_NEEDED", t.ConsecutiveNeeded)
	t.MaxSilenceGaps = envInt("MAX_SILENCE_GAPS", t.MaxSilenceGaps)
	t.SpeechRatio = envFloat("SPEECH_DETECTION_RATIO", t.SpeechRatio)
	t.OverlapThreshold = envDuration("SPEECH_OVERLAP_THRESHOLD", t.OverlapThreshold)
	t.InterruptCooldown = envDuration("INTERRUPT_COOLDOWN", t.InterruptCooldown)
	return t
}

func envFloat(key string, fallback float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Msg("invalid float env value, using default")
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Msg("invalid int env value, using default")
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Msg("invalid duration env value, using default")
		return fallback
	}
	return v
}
