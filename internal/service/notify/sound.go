package notify

import (
	ttsplayer "VolcTTSClient/internal/service/tts/player"
	"context"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// SoundNotifier проигрывает короткий звук-уведомление перед озвучкой
// очередной порции сообщений. Пустой путь выключает уведомления.
type SoundNotifier struct {
	logger *zap.SugaredLogger
	path   string
	ply    ttsplayer.Player
}

// NewSoundNotifier создаёт нотификатор. Относительный путь сначала ищем
// рядом с бинарём, затем от текущей рабочей директории.
func NewSoundNotifier(logger *zap.SugaredLogger, path string) *SoundNotifier {
	path = strings.TrimSpace(path)
	if path != "" && !filepath.IsAbs(path) {
		if exe, err := os.Executable(); err == nil {
			cand := filepath.Join(filepath.Dir(exe), path)
			if _, statErr := os.Stat(cand); statErr == nil {
				path = cand
			}
		}
	}
	return &SoundNotifier{logger: logger, path: path, ply: ttsplayer.New()}
}

// Play проигрывает звук уведомления. Ошибки логируются и возвращаются,
// чтобы вызывающий мог принять решение (обычно — проигнорировать).
func (n *SoundNotifier) Play(ctx context.Context) error {
	if n.path == "" {
		return nil
	}
	select {
	case <-ctx.Done():
		return context.Cause(ctx)
	default:
	}

	f, err := os.Open(n.path)
	if err != nil {
		n.logger.Warnw("Не удалось открыть звуковой файл уведомления", "path", n.path, "error", err)
		return err
	}
	defer f.Close()

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(n.path), "."))
	if ext == "" {
		ext = "mp3"
	}
	if err := n.ply.Play(ext, f); err != nil {
		n.logger.Warnw("Не удалось воспроизвести звуковое уведомление", "path", n.path, "error", err)
		return err
	}
	return nil
}
