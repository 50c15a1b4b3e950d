package main

import (
	twitchadapter "VolcTTSClient/internal/adapter/chat/twitch"
	"VolcTTSClient/internal/config"
	"VolcTTSClient/internal/service/chat"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Читалка чата без синтеза: подключается к каналу и раз в интервал
// печатает порцию сообщений в том виде, в каком её получила бы озвучка.
// Удобно проверять фильтрацию и формат реплик, не тратя квоту TTS.
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

	chatSvc := chat.New(cfg.ChatMax)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return twitchadapter.Run(gctx, sugar, twitchadapter.Config{
			Username: cfg.TwitchUsername,
			OAuth:    cfg.TwitchOAuthToken,
			Channel:  cfg.TwitchChannel,
		}, chatSvc)
	})
	g.Go(func() error {
		interval := time.Duration(cfg.SpeakIntervalSeconds) * time.Second
		if interval <= 0 {
			interval = 10 * time.Second
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return context.Cause(gctx)
			case <-ticker.C:
				msgs := chatSvc.Drain()
				if len(msgs) == 0 {
					continue
				}
				fmt.Printf("--- порция из %d сообщений ---\n%s\n", len(msgs), strings.Join(msgs, ". "))
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		sugar.Errorw("App stopped with error", "error", err)
		os.Exit(1)
	}
	sugar.Infow("App stopped")
}
