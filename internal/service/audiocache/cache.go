package audiocache

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultRetention — сколько последних клипов держим на диске.
const DefaultRetention = 50

// Cache — каталог готовых аудиоклипов с ограничением по количеству.
// Состояния в памяти нет: каждая чистка заново перечитывает каталог.
type Cache struct {
	dir       string
	retention int
	logger    *zap.SugaredLogger
}

func New(dir string, retention int, logger *zap.SugaredLogger) *Cache {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Cache{dir: dir, retention: retention, logger: logger}
}

// Store записывает клип в новый файл и запускает чистку. Имя образовано от
// времени плюс случайный суффикс: метки времени совпадают при параллельных
// записях в пределах миллисекунды, суффикс исключает коллизию.
func (c *Cache) Store(data []byte, encoding string) (string, error) {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return "", fmt.Errorf("audio cache: create dir: %w", err)
	}

	ext := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(encoding)), ".")
	if ext == "" {
		ext = "mp3"
	}
	name := fmt.Sprintf("voice_%s_%s.%s", time.Now().Format("2006-01-02_15-04-05-000"), uuid.NewString()[:8], ext)
	path := filepath.Join(c.dir, name)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("audio cache: write %s: %w", path, err)
	}
	c.Sweep()
	return path, nil
}

// Sweep удаляет файлы сверх лимита, самые старые по времени модификации
// первыми. Параллельная чистка может удалить файл раньше нас — пропуск
// уже отсутствующего файла не ошибка.
func (c *Cache) Sweep() {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return
		}
		c.logger.Warnw("Не удалось прочитать каталог аудиокэша", "dir", c.dir, "error", err)
		return
	}

	type fileInfo struct {
		name string
		mod  int64
	}
	files := make([]fileInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		fi, statErr := e.Info()
		if statErr != nil {
			c.logger.Warnw("Не удалось получить информацию о файле кэша", "name", e.Name(), "error", statErr)
			continue
		}
		files = append(files, fileInfo{name: e.Name(), mod: fi.ModTime().UnixNano()})
	}
	if len(files) <= c.retention {
		return
	}

	slices.SortFunc(files, func(a, b fileInfo) int { // по убыванию времени
		return -cmp.Compare(a.mod, b.mod)
	})

	removed := 0
	for _, f := range files[c.retention:] {
		full := filepath.Join(c.dir, f.name)
		if err := os.Remove(full); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			c.logger.Warnw("Не удалось удалить старый клип", "path", full, "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		c.logger.Infow("Аудиокэш почищен", "dir", c.dir, "removed", removed, "keep", c.retention)
	}
}
