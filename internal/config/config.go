package config

import (
	"flag"
	"strings"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	DebugMode bool `env:"DEBUG_MODE"` //Режим дебага

	// Аудиокэш
	AudioDir  string `env:"AUDIO_DIR"`  // Каталог готовых аудиоклипов
	AudioKeep int    `env:"AUDIO_KEEP"` // Сколько последних клипов хранить на диске

	VolcTTS VolcTTSConfig // Конфигурация TTS (Volcengine)

	// Chat / Twitch
	ChatMax          int    `env:"CHAT_MAX"`           // Максимум хранимых сообщений чата
	TwitchUsername   string `env:"TWITCH_USERNAME"`    // Имя пользователя Twitch (логин)
	TwitchOAuthToken string `env:"TWITCH_OAUTH_TOKEN"` // OAuth токен Twitch (может быть без префикса oauth:)
	TwitchChannel    string `env:"TWITCH_CHANNEL"`     // Канал Twitch (один), без #

	// Цикл озвучки (Speaker)
	SpeakIntervalSeconds int  `env:"SPEAK_INTERVAL_SECONDS"` // Базовый интервал между озвучками
	MaxConsecutiveErrors int  `env:"MAX_CONSECUTIVE_ERRORS"` // Сколько ошибок подряд до остановки приложения
	EnableEarlySpeak     bool `env:"ENABLE_EARLY_SPEAK"`     // Озвучивать раньше интервала при появлении сообщений

	// Воспроизведение
	PlaybackEnabled       bool    `env:"PLAYBACK_ENABLED"`        // Проигрывать результат локально
	PlayerVolumeDB        float64 `env:"PLAYER_VOLUME_DB"`        // Громкость плеера в dB (отрицательные — тише)
	NotificationSoundPath string  `env:"NOTIFICATION_SOUND_PATH"` // Звук уведомления перед озвучкой; пусто — выключено
}

// VolcTTSConfig конфигурация двунаправленного стримингового синтеза Volcengine.
type VolcTTSConfig struct {
	Enabled     bool    `env:"VOLC_TTS_ENABLED"`  // Главный флаг включения/выключения синтеза
	AppID       string  `env:"VOLC_APP_ID"`       // App ID из консоли Volcengine
	AccessToken string  `env:"VOLC_ACCESS_TOKEN"` // Access Token из консоли Volcengine
	VoiceType   string  `env:"VOLC_VOICE_TYPE"`   // Идентификатор голоса
	Encoding    string  `env:"VOLC_ENCODING"`     // Формат аудио: mp3|wav|pcm|ogg_opus (проигрывание mp3/wav)
	SpeedRatio  float64 `env:"VOLC_SPEED_RATIO"`  // Скорость речи, 1.0 — без изменений
	VolumeRatio float64 `env:"VOLC_VOLUME_RATIO"` // Громкость, 1.0 — без изменений
	PitchRatio  float64 `env:"VOLC_PITCH_RATIO"`  // Тон, 1.0 — без изменений
}

// Defaults возвращает конфигурацию с предустановленными значениями по умолчанию.
// Эти значения перекрываются .env, переменными окружения и флагами CLI.
func Defaults() *Config {
	return &Config{
		DebugMode: false,
		AudioDir:  "data/audio",
		AudioKeep: 50,
		VolcTTS: VolcTTSConfig{
			Enabled:     false, // ключи берём из .env/ENV, без них синтез не включаем
			VoiceType:   "zh_female_shuangkuaisisi_moon_bigtts",
			Encoding:    "mp3",
			SpeedRatio:  1.0,
			VolumeRatio: 1.0,
			PitchRatio:  1.0,
		},
		// Chat/Twitch
		ChatMax: 30,
		// Speaker
		SpeakIntervalSeconds: 10,
		MaxConsecutiveErrors: 3,
		EnableEarlySpeak:     true,
		// Playback
		PlaybackEnabled: true,
		PlayerVolumeDB:  0,
	}
}

// NewConfig загружает конфигурацию приложения: дефолты, затем .env,
// переменные окружения и флаги CLI в порядке возрастания приоритета.
func NewConfig() *Config {
	_ = godotenv.Load()

	cfg := Defaults()
	_ = env.Parse(cfg)

	flag.BoolVar(&cfg.DebugMode, "debug-mode", cfg.DebugMode, "включить режим дебага для отображения доп инфы")
	flag.StringVar(&cfg.AudioDir, "audio-dir", cfg.AudioDir, "каталог для готовых аудиоклипов")
	flag.IntVar(&cfg.AudioKeep, "audio-keep", cfg.AudioKeep, "сколько последних клипов хранить в аудиокэше")
	// Параметры Volc TTS
	flag.BoolVar(&cfg.VolcTTS.Enabled, "volc-tts-enabled", cfg.VolcTTS.Enabled, "включить синтез речи Volcengine")
	flag.StringVar(&cfg.VolcTTS.AppID, "volc-app-id", cfg.VolcTTS.AppID, "App ID Volcengine (перекрывает ENV)")
	flag.StringVar(&cfg.VolcTTS.AccessToken, "volc-access-token", cfg.VolcTTS.AccessToken, "Access Token Volcengine (перекрывает ENV)")
	flag.StringVar(&cfg.VolcTTS.VoiceType, "volc-voice-type", cfg.VolcTTS.VoiceType, "идентификатор голоса для синтеза")
	flag.StringVar(&cfg.VolcTTS.Encoding, "volc-encoding", cfg.VolcTTS.Encoding, "формат аудио (mp3|wav|pcm|ogg_opus), проигрывание поддерживается для mp3 и wav")
	flag.Float64Var(&cfg.VolcTTS.SpeedRatio, "volc-speed-ratio", cfg.VolcTTS.SpeedRatio, "скорость речи (1.0 — без изменений)")
	flag.Float64Var(&cfg.VolcTTS.VolumeRatio, "volc-volume-ratio", cfg.VolcTTS.VolumeRatio, "громкость речи (1.0 — без изменений)")
	flag.Float64Var(&cfg.VolcTTS.PitchRatio, "volc-pitch-ratio", cfg.VolcTTS.PitchRatio, "тон речи (1.0 — без изменений)")
	// Chat/Twitch
	flag.IntVar(&cfg.ChatMax, "chat-max", cfg.ChatMax, "максимум хранимых сообщений чата")
	flag.StringVar(&cfg.TwitchUsername, "twitch-username", cfg.TwitchUsername, "логин Twitch для подключения к чату")
	flag.StringVar(&cfg.TwitchOAuthToken, "twitch-oauth-token", cfg.TwitchOAuthToken, "OAuth токен Twitch (может быть без префикса oauth:)")
	flag.StringVar(&cfg.TwitchChannel, "twitch-channel", cfg.TwitchChannel, "канал Twitch (без #)")
	// Speaker
	flag.IntVar(&cfg.SpeakIntervalSeconds, "speak-interval-seconds", cfg.SpeakIntervalSeconds, "базовый интервал озвучки в секундах")
	flag.IntVar(&cfg.MaxConsecutiveErrors, "max-consecutive-errors", cfg.MaxConsecutiveErrors, "количество последовательных ошибок до остановки приложения")
	flag.BoolVar(&cfg.EnableEarlySpeak, "enable-early-speak", cfg.EnableEarlySpeak, "озвучивать раньше интервала при появлении сообщений")
	// Playback
	flag.BoolVar(&cfg.PlaybackEnabled, "playback-enabled", cfg.PlaybackEnabled, "проигрывать синтезированное аудио локально")
	flag.Float64Var(&cfg.PlayerVolumeDB, "player-volume-db", cfg.PlayerVolumeDB, "громкость плеера в dB (отрицательные — тише)")
	flag.StringVar(&cfg.NotificationSoundPath, "notification-sound-path", cfg.NotificationSoundPath, "путь к звуковому файлу уведомления (mp3 или wav), пусто — выключено")
	flag.Parse()

	// Расширение формата храним без точки и в нижнем регистре
	cfg.VolcTTS.Encoding = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(cfg.VolcTTS.Encoding)), ".")

	return cfg
}
