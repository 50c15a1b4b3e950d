package speaker

import (
	"VolcTTSClient/internal/config"
	"VolcTTSClient/internal/service/chat"
	"VolcTTSClient/internal/service/notify"
	"VolcTTSClient/internal/service/tts"
	"VolcTTSClient/internal/service/tts/player"
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Speaker озвучивает накопленные сообщения чата: тикает по базовому
// интервалу, а при появлении новых сообщений может срабатывать раньше.
type Speaker struct {
	cfg      *config.Config
	chat     *chat.Chat
	synth    tts.Synthesizer
	player   player.Player // nil — синтез без воспроизведения
	notifier *notify.SoundNotifier
	logger   *zap.SugaredLogger

	consecutiveErrors int // счётчик ошибок подряд
}

func New(cfg *config.Config, ch *chat.Chat, synth tts.Synthesizer, p player.Player, notifier *notify.SoundNotifier, logger *zap.SugaredLogger) *Speaker {
	return &Speaker{cfg: cfg, chat: ch, synth: synth, player: p, notifier: notifier, logger: logger}
}

// Run крутит цикл до отмены контекста или достижения лимита ошибок подряд.
// Первая озвучка — по истечении первого интервала либо по раннему сигналу.
func (s *Speaker) Run(ctx context.Context) error {
	base := time.Duration(s.cfg.SpeakIntervalSeconds) * time.Second
	if base <= 0 {
		base = 10 * time.Second
	}
	s.logger.Infow("Speaker started", "interval", base.String(), "earlyTick", s.cfg.EnableEarlySpeak)

	for {
		t := time.NewTimer(base)
		earlyCh := (<-chan struct{})(nil)
		if s.cfg.EnableEarlySpeak {
			earlyCh = s.chat.NotifyCh()
		}
		select {
		case <-ctx.Done():
			if !t.Stop() {
				select {
				case <-t.C:
				default:
				}
			}
			return context.Cause(ctx)
		case <-t.C:
			// обычный тик по таймеру
		case <-earlyCh:
			if !t.Stop() {
				// слить, если уже сработал
				select {
				case <-t.C:
				default:
				}
			}
		}

		if err := s.speakPending(ctx); err != nil {
			s.consecutiveErrors++
			s.logger.Errorw("Озвучка не удалась", "error", err, "consecutiveErrors", s.consecutiveErrors)
			if s.consecutiveErrors >= max(1, s.cfg.MaxConsecutiveErrors) {
				s.logger.Errorw("Stopping due to consecutive errors threshold", "threshold", s.cfg.MaxConsecutiveErrors)
				return err
			}
		} else {
			s.consecutiveErrors = 0
		}
	}
}

// speakPending забирает накопленное, синтезирует одним запросом и
// проигрывает результат. Цикл последовательный: сообщения, пришедшие во
// время озвучки, копятся в буфере и подхватываются следующей итерацией.
func (s *Speaker) speakPending(ctx context.Context) error {
	msgs := s.chat.Drain()
	if len(msgs) == 0 {
		return nil
	}
	if !s.cfg.VolcTTS.Enabled {
		s.logger.Debugw("Синтез выключен, сообщения пропущены", "count", len(msgs))
		return nil
	}
	text := strings.Join(msgs, ". ")

	start := time.Now()
	path, err := s.synth.Synthesize(ctx, text)
	if err != nil {
		return err
	}
	s.logger.Infow("Реплика синтезирована", "messages", len(msgs), "path", path, "took", time.Since(start).String())

	if s.player == nil {
		return nil
	}
	if s.notifier != nil {
		_ = s.notifier.Play(ctx)
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return s.player.Play(format, f)
}
