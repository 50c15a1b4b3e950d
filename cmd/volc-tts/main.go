package main

import (
	"VolcTTSClient/internal/config"
	"VolcTTSClient/internal/service/audiocache"
	"VolcTTSClient/internal/service/tts/player"
	"VolcTTSClient/internal/service/tts/volc"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Утилита для разового синтеза речи через Volcengine TTS (двунаправленный
// стриминг). Ключи берутся из .env/ENV (VOLC_APP_ID, VOLC_ACCESS_TOKEN).
// Результат сохраняется в аудиокэш; флагом -play можно сразу воспроизвести.
func main() {
	var (
		text string
		play bool
	)
	// Свои флаги регистрируем до NewConfig: flag.Parse один на всех
	flag.StringVar(&text, "text", "привет, я голос стрима", "текст для синтеза речи")
	flag.BoolVar(&play, "play", false, "сразу воспроизвести результат (mp3|wav)")

	cfg := config.NewConfig()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	sugar := logger.Sugar()
	defer func() {
		_ = logger.Sync()
	}()

	store := volc.NewStore(volcSettings(cfg.VolcTTS))
	cache := audiocache.New(cfg.AudioDir, cfg.AudioKeep, sugar)
	client := volc.NewClient(sugar, store, cache)

	path, err := client.Synthesize(context.Background(), text)
	if err != nil {
		sugar.Errorw("Синтез не удался", "error", err)
		os.Exit(1)
	}
	fmt.Printf("Готово. Аудио сохранено в: %s\n", path)

	if play {
		f, err := os.Open(path)
		if err != nil {
			sugar.Errorw("Не удалось открыть файл", "path", path, "error", err)
			os.Exit(1)
		}
		defer f.Close()
		p := player.NewWithVolume(cfg.PlayerVolumeDB)
		format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
		if err := p.Play(format, f); err != nil {
			sugar.Errorw("Воспроизведение не удалось", "error", err)
			os.Exit(1)
		}
		fmt.Println("Воспроизведение завершено.")
	}
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
