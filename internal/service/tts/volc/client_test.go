package volc

import (
	"VolcTTSClient/internal/service/audiocache"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func enabledSettings() Settings {
	return Settings{
		Enabled:     true,
		AppID:       "app-123",
		AccessToken: "token-456",
		VoiceType:   "zh_female_test",
		Encoding:    "mp3",
		SpeedRatio:  1.0,
		VolumeRatio: 1.0,
		PitchRatio:  1.0,
	}
}

func testClient(t *testing.T, endpoint string, s Settings) *Client {
	t.Helper()
	cache := audiocache.New(filepath.Join(t.TempDir(), "audio"), 50, zap.NewNop().Sugar())
	c := NewClient(zap.NewNop().Sugar(), NewStore(s), cache)
	c.endpoint = endpoint
	c.timeout = 5 * time.Second
	return c
}

// fakeServer поднимает WebSocket-сервер со сценарием обмена и возвращает
// ws-эндпоинт. Сценарий выполняется в горутине обработчика, пока клиент
// заблокирован в вызове синтеза, поэтому assert внутри сценария безопасен.
func fakeServer(t *testing.T, script func(t *testing.T, conn *websocket.Conn, r *http.Request)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		script(t, conn, r)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// readClientFrame ждёт от клиента бинарный кадр. Возвращает nil, если
// соединение закрылось: сценарий в этом случае просто завершается.
func readClientFrame(conn *websocket.Conn) *Frame {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return nil
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		f, err := decodeFrame(data)
		if err != nil {
			return nil
		}
		return f
	}
}

func writeServerEvent(conn *websocket.Conn, ev Event, sessionID string, serialization byte, payload []byte) error {
	f := &Frame{
		Version:       protocolVersion,
		HeaderSize:    headerSizeWords,
		MessageType:   msgTypeFullServer,
		Flags:         flagEvent,
		Serialization: serialization,
		Compression:   compressionNone,
		Event:         int32(ev),
		SessionID:     sessionID,
		Payload:       payload,
	}
	return conn.WriteMessage(websocket.BinaryMessage, f.encode())
}

type scriptTaps struct {
	headers chan http.Header // заголовки рукопожатия
	text    chan string      // текст из TaskRequest
}

// synthesisScript разыгрывает полный серверный сценарий успешной сессии
// с заданными аудиокусками.
func synthesisScript(chunks [][]byte, taps scriptTaps) func(*testing.T, *websocket.Conn, *http.Request) {
	return func(t *testing.T, conn *websocket.Conn, r *http.Request) {
		if taps.headers != nil {
			taps.headers <- r.Header.Clone()
		}

		f := readClientFrame(conn)
		if f == nil || !assert.Equal(t, int32(EventStartConnection), f.Event) {
			return
		}
		if writeServerEvent(conn, EventConnectionStarted, "", serializationJSON, []byte("{}")) != nil {
			return
		}

		f = readClientFrame(conn)
		if f == nil || !assert.Equal(t, int32(EventStartSession), f.Event) {
			return
		}
		sid := f.SessionID
		if !assert.NotEmpty(t, sid, "StartSession must carry the session id") {
			return
		}
		if writeServerEvent(conn, EventSessionStarted, sid, serializationJSON, []byte("{}")) != nil {
			return
		}

		f = readClientFrame(conn)
		if f == nil || !assert.Equal(t, int32(EventTaskRequest), f.Event) {
			return
		}
		if taps.text != nil {
			var p sessionPayload
			assert.NoError(t, json.Unmarshal(f.Payload, &p))
			taps.text <- p.ReqParams.Text
		}

		f = readClientFrame(conn)
		if f == nil || !assert.Equal(t, int32(EventFinishSession), f.Event) {
			return
		}

		_ = writeServerEvent(conn, EventSentenceStart, sid, serializationJSON, []byte("{}"))
		for _, ch := range chunks {
			_ = writeServerEvent(conn, EventAudioResponse, sid, serializationRaw, ch)
		}
		_ = writeServerEvent(conn, EventSentenceEnd, sid, serializationJSON, []byte("{}"))
		_ = writeServerEvent(conn, EventSessionFinished, sid, serializationJSON, []byte("{}"))

		f = readClientFrame(conn)
		if f == nil || !assert.Equal(t, int32(EventFinishConnection), f.Event) {
			return
		}
		_ = writeServerEvent(conn, EventConnectionFinished, "", serializationJSON, []byte("{}"))
	}
}

func TestSynthesizeEndToEnd(t *testing.T) {
	chunkA := []byte{0x01, 0x02, 0x03}
	chunkB := []byte{0x04, 0x05}
	taps := scriptTaps{
		headers: make(chan http.Header, 1),
		text:    make(chan string, 1),
	}
	endpoint := fakeServer(t, synthesisScript([][]byte{chunkA, chunkB}, taps))
	client := testClient(t, endpoint, enabledSettings())

	path, err := client.Synthesize(context.Background(), "你好")
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(path, ".mp3"), "path %q must carry the encoding extension", path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04, 0x05}, data, "chunks must be concatenated in arrival order")

	headers := <-taps.headers
	assert.Equal(t, "app-123", headers.Get("X-Api-App-Key"))
	assert.Equal(t, "token-456", headers.Get("X-Api-Access-Key"))
	assert.Equal(t, "volc.service_type.10029", headers.Get("X-Api-Resource-Id"))
	assert.NotEmpty(t, headers.Get("X-Api-Connect-Id"))

	assert.Equal(t, "你好", <-taps.text)
}

func TestSynthesizeNotEnabled(t *testing.T) {
	var dialed atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dialed.Store(true)
	}))
	t.Cleanup(srv.Close)

	s := enabledSettings()
	s.Enabled = false
	client := testClient(t, "ws"+strings.TrimPrefix(srv.URL, "http"), s)

	_, err := client.Synthesize(context.Background(), "привет")
	require.ErrorIs(t, err, ErrNotEnabled)
	assert.False(t, dialed.Load(), "no connection must be attempted")
}

func TestSynthesizeMissingCredentials(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"no app id", func(s *Settings) { s.AppID = "" }},
		{"no access token", func(s *Settings) { s.AccessToken = "" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := enabledSettings()
			tc.mutate(&s)
			client := testClient(t, "ws://127.0.0.1:0", s)

			_, err := client.Synthesize(context.Background(), "привет")
			require.ErrorIs(t, err, ErrMissingCredentials)
		})
	}
}

func TestSynthesizeTruncatesLongText(t *testing.T) {
	textCh := make(chan string, 1)
	endpoint := fakeServer(t, synthesisScript([][]byte{{0xAA}}, scriptTaps{text: textCh}))
	client := testClient(t, endpoint, enabledSettings())

	_, err := client.Synthesize(context.Background(), strings.Repeat("好", 1500))
	require.NoError(t, err)

	sent := <-textCh
	assert.Equal(t, 1000, utf8.RuneCountInString(sent))
	assert.Equal(t, strings.Repeat("好", 1000), sent)
}

func TestSynthesizeTimeout(t *testing.T) {
	serverSawClose := make(chan struct{})
	endpoint := fakeServer(t, func(t *testing.T, conn *websocket.Conn, r *http.Request) {
		// Молчим: читаем кадры и ни на что не отвечаем.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				close(serverSawClose)
				return
			}
		}
	})
	client := testClient(t, endpoint, enabledSettings())
	client.timeout = 300 * time.Millisecond

	start := time.Now()
	_, err := client.Synthesize(context.Background(), "привет")
	require.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 3*time.Second, "deadline must fire close to the configured timeout")

	select {
	case <-serverSawClose:
		// транспорт закрыт со стороны клиента
	case <-time.After(2 * time.Second):
		t.Fatal("transport was not closed after the deadline")
	}
}

func TestSynthesizeServerErrorFrame(t *testing.T) {
	endpoint := fakeServer(t, func(t *testing.T, conn *websocket.Conn, r *http.Request) {
		if readClientFrame(conn) == nil {
			return
		}
		// Кадр ошибки вместо ConnectionStarted.
		_ = conn.WriteMessage(websocket.BinaryMessage, encodeErrorFrame(45000003, []byte(`{"error":"invalid voice type"}`)))
	})
	client := testClient(t, endpoint, enabledSettings())

	_, err := client.Synthesize(context.Background(), "привет")
	require.ErrorIs(t, err, ErrSessionFailed)
	assert.Contains(t, err.Error(), "45000003")
	assert.Contains(t, err.Error(), "invalid voice type")
}

func TestSynthesizeConnectionFailedEvent(t *testing.T) {
	endpoint := fakeServer(t, func(t *testing.T, conn *websocket.Conn, r *http.Request) {
		if readClientFrame(conn) == nil {
			return
		}
		_ = writeServerEvent(conn, EventConnectionFailed, "", serializationJSON, []byte(`{"error":"forbidden"}`))
	})
	client := testClient(t, endpoint, enabledSettings())

	_, err := client.Synthesize(context.Background(), "привет")
	require.ErrorIs(t, err, ErrConnectionFailed)
	assert.Contains(t, err.Error(), "forbidden")
}

func TestSynthesizeMalformedFrame(t *testing.T) {
	endpoint := fakeServer(t, func(t *testing.T, conn *websocket.Conn, r *http.Request) {
		if readClientFrame(conn) == nil {
			return
		}
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte{0x11})
	})
	client := testClient(t, endpoint, enabledSettings())

	_, err := client.Synthesize(context.Background(), "привет")
	require.ErrorIs(t, err, ErrSessionFailed)
	require.ErrorIs(t, err, ErrDecode)
}

func TestSynthesizeEmptyAudio(t *testing.T) {
	endpoint := fakeServer(t, synthesisScript(nil, scriptTaps{}))
	client := testClient(t, endpoint, enabledSettings())

	_, err := client.Synthesize(context.Background(), "привет")
	require.ErrorIs(t, err, ErrEmptyResult)
}

func TestSynthesizeDialRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)
	client := testClient(t, "ws"+strings.TrimPrefix(srv.URL, "http"), enabledSettings())

	_, err := client.Synthesize(context.Background(), "привет")
	require.ErrorIs(t, err, ErrConnectionFailed)
	assert.Contains(t, err.Error(), "403")
}

func TestRateOffset(t *testing.T) {
	tests := []struct {
		ratio float64
		want  int
	}{
		{1.0, 0},
		{1.2, 20},
		{0.8, -20},
		{1.15, 15},
		{0.5, -50},
		{2.0, 100},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, rateOffset(tc.ratio), "ratio %v", tc.ratio)
	}
}

func TestTaskRequestPayload(t *testing.T) {
	cfg := Settings{VoiceType: "voice_x", Encoding: "wav", SpeedRatio: 1.3, VolumeRatio: 0.9}

	var p sessionPayload
	require.NoError(t, json.Unmarshal(taskRequestPayload("привет", cfg), &p))
	assert.Equal(t, int32(EventTaskRequest), p.Event)
	assert.Equal(t, "BidirectionalTTS", p.Namespace)
	assert.Equal(t, "привет", p.ReqParams.Text)
	assert.Equal(t, "voice_x", p.ReqParams.Speaker)
	assert.Equal(t, "wav", p.ReqParams.AudioParams.Format)
	assert.Equal(t, 24000, p.ReqParams.AudioParams.SampleRate)
	assert.Equal(t, 30, p.ReqParams.AudioParams.SpeechRate)
	assert.Equal(t, -10, p.ReqParams.AudioParams.LoudnessRate)
}

func TestStartSessionPayload(t *testing.T) {
	cfg := enabledSettings()

	var p sessionPayload
	require.NoError(t, json.Unmarshal(startSessionPayload(cfg), &p))
	assert.Equal(t, int32(EventStartSession), p.Event)
	assert.Equal(t, "BidirectionalTTS", p.Namespace)
	assert.Empty(t, p.ReqParams.Text, "start session carries no text")
	assert.Equal(t, "zh_female_test", p.ReqParams.Speaker)
	assert.Equal(t, "mp3", p.ReqParams.AudioParams.Format)
}
