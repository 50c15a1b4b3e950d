package tts

import "context"

// Synthesizer абстракция сервиса синтеза речи. Возвращает путь к файлу
// с готовым аудио; доставка файла слушателю — забота вызывающего слоя.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (string, error)
}
