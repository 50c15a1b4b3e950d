package main

import (
	twitchadapter "VolcTTSClient/internal/adapter/chat/twitch"
	"VolcTTSClient/internal/app/speaker"
	"VolcTTSClient/internal/config"
	"VolcTTSClient/internal/service/audiocache"
	"VolcTTSClient/internal/service/chat"
	"VolcTTSClient/internal/service/notify"
	"VolcTTSClient/internal/service/tts/player"
	"VolcTTSClient/internal/service/tts/volc"
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Компаньон стримера: читает чат Twitch, периодически озвучивает
// накопленные сообщения через Volcengine TTS и проигрывает результат.
func main() {
	cfg := config.NewConfig()

	// создаём предустановленный регистратор zap
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	// делаем регистратор SugaredLogger
	sugar := logger.Sugar()
	//сброс буфера логгера
	defer func() {
		if err := logger.Sync(); err != nil {
			sugar.Errorw("Failed to sync logger", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sugar.Infow(
		"Starting app",
		"DebugMode", cfg.DebugMode,
		"ttsEnabled", cfg.VolcTTS.Enabled,
		"audioDir", cfg.AudioDir,
	)

	chatSvc := chat.New(cfg.ChatMax)
	store := volc.NewStore(volcSettings(cfg.VolcTTS))
	cache := audiocache.New(cfg.AudioDir, cfg.AudioKeep, sugar)
	synth := volc.NewClient(sugar, store, cache)

	var p player.Player
	if cfg.PlaybackEnabled {
		p = player.NewWithVolume(cfg.PlayerVolumeDB)
	}
	var notifier *notify.SoundNotifier
	if cfg.NotificationSoundPath != "" {
		notifier = notify.NewSoundNotifier(sugar, cfg.NotificationSoundPath)
	}

	sp := speaker.New(cfg, chatSvc, synth, p, notifier, sugar)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return twitchadapter.Run(gctx, sugar, twitchadapter.Config{
			Username: cfg.TwitchUsername,
			OAuth:    cfg.TwitchOAuthToken,
			Channel:  cfg.TwitchChannel,
		}, chatSvc)
	})
	g.Go(func() error {
		return sp.Run(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		sugar.Errorw("App stopped with error", "error", err)
		os.Exit(1)
	}
	sugar.Infow("App stopped")
}

func volcSettings(v config.VolcTTSConfig) volc.Settings {
	return volc.Settings{
		Enabled:     v.Enabled,
		AppID:       v.AppID,
		AccessToken: v.AccessToken,
		VoiceType:   v.VoiceType,
		Encoding:    v.Encoding,
		SpeedRatio:  v.SpeedRatio,
		VolumeRatio: v.VolumeRatio,
		PitchRatio:  v.PitchRatio,
	}
}
