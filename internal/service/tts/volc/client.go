package volc

import (
	"VolcTTSClient/internal/service/audiocache"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	defaultEndpoint = "wss://openspeech.bytedance.com/api/v3/tts/bidirection"
	resourceID      = "volc.service_type.10029"

	// Дедлайн всей сессии: от открытия соединения до последнего кадра.
	sessionTimeout = 30 * time.Second

	// Сервис ограничивает длину одной реплики.
	maxTextRunes = 1000

	sampleRate = 24000
)

// Ошибки синтеза. Все терминальны для вызова: внутренних ретраев нет,
// политика повторов — забота вызывающего слоя.
var (
	ErrNotEnabled         = errors.New("volc tts: synthesis disabled in config")
	ErrMissingCredentials = errors.New("volc tts: missing app id or access token")
	ErrConnectionFailed   = errors.New("volc tts: connection failed")
	ErrSessionFailed      = errors.New("volc tts: session failed")
	ErrTimeout            = errors.New("volc tts: synthesis timed out")
	ErrEmptyResult        = errors.New("volc tts: empty audio result")
)

// Client — клиент двунаправленного стримингового синтеза речи Volcengine.
// На каждый вызов открывается отдельное WebSocket-соединение, одна сессия
// на соединение. Конкурентные вызовы независимы и не блокируют друг друга.
type Client struct {
	logger *zap.SugaredLogger
	store  *Store
	cache  *audiocache.Cache

	// Переопределяются в тестах.
	endpoint string
	timeout  time.Duration
}

func NewClient(logger *zap.SugaredLogger, store *Store, cache *audiocache.Cache) *Client {
	return &Client{
		logger:   logger,
		store:    store,
		cache:    cache,
		endpoint: defaultEndpoint,
		timeout:  sessionTimeout,
	}
}

// Synthesize синтезирует речь и возвращает путь к сохранённому аудиофайлу.
func (c *Client) Synthesize(ctx context.Context, text string) (string, error) {
	cfg := c.store.Get()
	audio, err := c.synthesize(ctx, text, cfg)
	if err != nil {
		return "", err
	}
	path, err := c.cache.Store(audio, cfg.Encoding)
	if err != nil {
		return "", fmt.Errorf("volc tts: store audio: %w", err)
	}
	c.logger.Infow("Аудио сохранено", "path", path, "bytes", len(audio))
	return path, nil
}

// synthesize выполняет одну сессию синтеза и возвращает сырые байты аудио.
func (c *Client) synthesize(ctx context.Context, text string, cfg Settings) ([]byte, error) {
	if !cfg.Enabled {
		return nil, ErrNotEnabled
	}
	if cfg.AppID == "" || cfg.AccessToken == "" {
		return nil, ErrMissingCredentials
	}
	if runes := []rune(text); len(runes) > maxTextRunes {
		c.logger.Warnw("Текст длиннее лимита, обрезан", "limit", maxTextRunes, "chars", len(runes))
		text = string(runes[:maxTextRunes])
	}

	// Идентификаторы живут один вызов и никогда не переиспользуются.
	connectID := uuid.NewString()
	sessionID := uuid.NewString()

	ctx, cancel := context.WithTimeoutCause(ctx, c.timeout, ErrTimeout)
	defer cancel()

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 15 * time.Second,
	}
	header := http.Header{}
	header.Set("X-Api-App-Key", cfg.AppID)
	header.Set("X-Api-Access-Key", cfg.AccessToken)
	header.Set("X-Api-Resource-Id", resourceID)
	header.Set("X-Api-Connect-Id", connectID)

	conn, resp, err := dialer.DialContext(ctx, c.endpoint, header)
	if err != nil {
		if errors.Is(context.Cause(ctx), ErrTimeout) {
			return nil, fmt.Errorf("%w: dial %s", ErrTimeout, c.endpoint)
		}
		// Диагностика рукопожатия, если есть HTTP-ответ.
		if resp != nil {
			return nil, fmt.Errorf("%w: dial %s: %s (HTTP %d): %v", ErrConnectionFailed, c.endpoint, http.StatusText(resp.StatusCode), resp.StatusCode, err)
		}
		return nil, fmt.Errorf("%w: dial %s: %v", ErrConnectionFailed, c.endpoint, err)
	}
	defer conn.Close()

	// Сторож дедлайна: по срабатыванию контекста закрывает соединение,
	// чтобы разблокировать чтение. Штатное завершение снимает сторожа.
	watchdogDone := make(chan struct{})
	defer close(watchdogDone)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-watchdogDone:
		}
	}()

	c.logger.Infow("Сессия синтеза начата", "connectId", connectID, "sessionId", sessionID, "chars", len([]rune(text)))
	start := time.Now()

	audio, err := c.runSession(ctx, conn, sessionID, text, cfg)
	if err != nil {
		c.logger.Errorw("Сессия синтеза не удалась", "sessionId", sessionID, "error", err, "took", time.Since(start).String())
		return nil, err
	}
	c.logger.Infow("Сессия синтеза завершена", "sessionId", sessionID, "bytes", len(audio), "took", time.Since(start).String())
	return audio, nil
}

// runSession гоняет протокольный автомат по кадрам от сервера. Отправки
// делаются синхронно в ответ на принятые события; других точек ожидания,
// кроме чтения следующего кадра, нет.
func (c *Client) runSession(ctx context.Context, conn *websocket.Conn, sessionID, text string, cfg Settings) ([]byte, error) {
	m := &machine{}

	if err := c.sendFrame(ctx, conn, newEventFrame(EventStartConnection, "", []byte("{}"))); err != nil {
		return nil, err
	}
	m.begin()

	var chunks [][]byte
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			m.fail()
			cause := context.Cause(ctx)
			switch {
			case errors.Is(cause, ErrTimeout):
				return nil, fmt.Errorf("%w after %s", ErrTimeout, c.timeout)
			case ctx.Err() != nil:
				return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, cause)
			default:
				return nil, fmt.Errorf("%w: transport closed: %v", ErrConnectionFailed, err)
			}
		}
		if msgType != websocket.BinaryMessage {
			c.logger.Debugw("Небинарное сообщение пропущено", "type", msgType)
			continue
		}

		frame, err := decodeFrame(data)
		if err != nil {
			// Маркеров ресинхронизации в протоколе нет: битый кадр
			// роняет сессию целиком.
			m.fail()
			return nil, fmt.Errorf("%w: %w", ErrSessionFailed, err)
		}
		if frame.IsError() {
			m.fail()
			return nil, fmt.Errorf("%w: server error %d: %s", ErrSessionFailed, frame.ErrorCode, frame.payloadMessage())
		}
		if !frame.HasEvent() {
			c.logger.Debugw("Кадр без события пропущен", "messageType", frame.MessageType)
			continue
		}

		ev := Event(frame.Event)
		c.logger.Debugw("Событие получено", "event", ev.String(), "state", m.state.String(), "payload", len(frame.Payload))

		switch m.step(ev) {
		case actionNone:
			// Неуместные и неизвестные события игнорируются.
		case actionSendStartSession:
			if err := c.sendFrame(ctx, conn, newEventFrame(EventStartSession, sessionID, startSessionPayload(cfg))); err != nil {
				return nil, err
			}
		case actionSendTaskThenFinish:
			if err := c.sendFrame(ctx, conn, newEventFrame(EventTaskRequest, sessionID, taskRequestPayload(text, cfg))); err != nil {
				return nil, err
			}
			if err := c.sendFrame(ctx, conn, newEventFrame(EventFinishSession, sessionID, []byte("{}"))); err != nil {
				return nil, err
			}
		case actionAppendAudio:
			chunks = append(chunks, frame.Payload)
		case actionSendFinishConnection:
			if err := c.sendFrame(ctx, conn, newEventFrame(EventFinishConnection, "", []byte("{}"))); err != nil {
				return nil, err
			}
		case actionResolve:
			total := 0
			for _, ch := range chunks {
				total += len(ch)
			}
			if total == 0 {
				return nil, ErrEmptyResult
			}
			// Склейка строго в порядке прихода: аудио — последовательный поток.
			out := make([]byte, 0, total)
			for _, ch := range chunks {
				out = append(out, ch...)
			}
			return out, nil
		case actionFail:
			if ev == EventConnectionFailed {
				return nil, fmt.Errorf("%w: %s", ErrConnectionFailed, frame.payloadMessage())
			}
			return nil, fmt.Errorf("%w: %s: %s", ErrSessionFailed, ev, frame.payloadMessage())
		}
	}
}

func (c *Client) sendFrame(ctx context.Context, conn *websocket.Conn, f *Frame) error {
	if err := conn.WriteMessage(websocket.BinaryMessage, f.encode()); err != nil {
		if errors.Is(context.Cause(ctx), ErrTimeout) {
			return fmt.Errorf("%w after %s", ErrTimeout, c.timeout)
		}
		return fmt.Errorf("%w: send %s: %v", ErrConnectionFailed, Event(f.Event), err)
	}
	return nil
}

// Схема JSON-нагрузок двунаправленного TTS.
type audioParams struct {
	Format       string `json:"format"`
	SampleRate   int    `json:"sample_rate"`
	SpeechRate   int    `json:"speech_rate"`
	LoudnessRate int    `json:"loudness_rate"`
}

type reqParams struct {
	Text        string      `json:"text,omitempty"`
	Speaker     string      `json:"speaker"`
	AudioParams audioParams `json:"audio_params"`
}

type sessionPayload struct {
	Event     int32     `json:"event"`
	Namespace string    `json:"namespace"`
	ReqParams reqParams `json:"req_params"`
}

func startSessionPayload(cfg Settings) []byte {
	b, _ := json.Marshal(sessionPayload{
		Event:     int32(EventStartSession),
		Namespace: "BidirectionalTTS",
		ReqParams: reqParams{
			Speaker:     cfg.VoiceType,
			AudioParams: newAudioParams(cfg),
		},
	})
	return b
}

func taskRequestPayload(text string, cfg Settings) []byte {
	b, _ := json.Marshal(sessionPayload{
		Event:     int32(EventTaskRequest),
		Namespace: "BidirectionalTTS",
		ReqParams: reqParams{
			Text:        text,
			Speaker:     cfg.VoiceType,
			AudioParams: newAudioParams(cfg),
		},
	})
	return b
}

func newAudioParams(cfg Settings) audioParams {
	format := cfg.Encoding
	if format == "" {
		format = "mp3"
	}
	return audioParams{
		Format:       format,
		SampleRate:   sampleRate,
		SpeechRate:   rateOffset(cfg.SpeedRatio),
		LoudnessRate: rateOffset(cfg.VolumeRatio),
	}
}

// rateOffset переводит коэффициент с центром 1.0 в проценты отклонения,
// как их принимает сервис: 1.2 → +20, 0.8 → -20.
func rateOffset(ratio float64) int {
	return int(math.Round((ratio - 1) * 100))
}
