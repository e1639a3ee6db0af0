package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env            string        `mapstructure:"ENV"`
	Port           string        `mapstructure:"PORT"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	AdminKey       string        `mapstructure:"ADMIN_KEY"`
	CORSAllowed    string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	LogLevel       string        `mapstructure:"LOG_LEVEL"`

	AssistantProvider  string `mapstructure:"ASSISTANT_PROVIDER"`
	AssistantBaseURL   string `mapstructure:"ASSISTANT_BASE_URL"`
	AssistantModel     string `mapstructure:"ASSISTANT_MODEL"`
	AssistantAPIKey    string `mapstructure:"ASSISTANT_API_KEY"`
	AssistantMaxTokens int    `mapstructure:"ASSISTANT_MAX_TOKENS"`

	TTSProvider       string `mapstructure:"TTS_PROVIDER"`
	ElevenLabsAPIKey  string `mapstructure:"ELEVENLABS_API_KEY"`
	ElevenLabsVoiceID string `mapstructure:"ELEVENLABS_VOICE_ID"`
	ElevenLabsModel   string `mapstructure:"ELEVENLABS_MODEL"`
	ElevenLabsBaseURL string `mapstructure:"ELEVENLABS_BASE_URL"`

	AMQPURL      string `mapstructure:"AMQP_URL"`
	AMQPExchange string `mapstructure:"AMQP_EXCHANGE"`

	RulesFile         string `mapstructure:"RULES_FILE"`
	PersistUnassigned bool   `mapstructure:"PERSIST_UNASSIGNED"`
	DBListen          bool   `mapstructure:"DB_LISTEN"`
}

// Load reads .env (if present) and the process environment. Callers that
// bind command-line flags pass their own viper instance to LoadFrom.
func Load() (Config, error) {
	return LoadFrom(viper.New())
}

func LoadFrom(v *viper.Viper) (Config, error) {
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("DATABASE_URL", "sqlite://opshub.db")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("ASSISTANT_PROVIDER", "mock")
	v.SetDefault("ASSISTANT_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("ASSISTANT_MODEL", "gpt-4o-mini")
	v.SetDefault("ASSISTANT_MAX_TOKENS", 150)
	v.SetDefault("TTS_PROVIDER", "mock")
	v.SetDefault("ELEVENLABS_VOICE_ID", "9BWtsMINqrJLrRacOk9x")
	v.SetDefault("ELEVENLABS_MODEL", "eleven_multilingual_v2")
	v.SetDefault("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io")
	v.SetDefault("AMQP_EXCHANGE", "opshub.changes")
	v.SetDefault("PERSIST_UNASSIGNED", false)
	v.SetDefault("DB_LISTEN", true)

	// Keys without a default must still be registered so Unmarshal sees
	// values that only exist in the environment.
	for _, key := range []string{"ADMIN_KEY", "ASSISTANT_API_KEY", "ELEVENLABS_API_KEY", "AMQP_URL", "RULES_FILE"} {
		v.SetDefault(key, "")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
