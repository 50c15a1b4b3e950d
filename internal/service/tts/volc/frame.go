package volc

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
)

// Бинарный кадровый протокол двунаправленного синтеза Volcengine.
// Кадр: 4-байтовый заголовок, далее опциональные секции — номер события,
// session id и полезная нагрузка. Все длины и числа — big-endian.

const (
	protocolVersion = 1
	headerSizeWords = 1 // заголовок из одного 4-байтового слова
)

// Типы сообщений (старшие 4 бита второго байта заголовка).
const (
	msgTypeFullClient = 0x01 // все кадры, отправляемые клиентом
	msgTypeFullServer = 0x09 // ответы сервера, включая аудио
	msgTypeError      = 0x0F // кадр ошибки, только от сервера
)

// Биты флагов (младшие 4 бита второго байта заголовка).
const (
	flagSequence = 0x01 // бит 0: присутствует sequence number
	flagEvent    = 0x04 // бит 2: присутствует номер события
)

// Способы сериализации нагрузки.
const (
	serializationRaw  = 0x0
	serializationJSON = 0x1
)

const compressionNone = 0x0

// ErrDecode — кадр короче заголовка либо заявленная длина выходит за
// границы буфера. Ресинхронизации в протоколе нет, поэтому такая ошибка
// всегда роняет сессию целиком.
var ErrDecode = errors.New("volc tts: frame decode error")

// Frame — один кадр протокола.
type Frame struct {
	Version       byte
	HeaderSize    byte // в 4-байтовых словах
	MessageType   byte
	Flags         byte
	Serialization byte
	Compression   byte

	Event     int32 // валидно при установленном flagEvent
	SessionID string
	Sequence  int32 // валидно при установленном flagSequence; протоколом заявлен, клиентом не используется

	Payload []byte

	// Заполняется только для кадров msgTypeError.
	ErrorCode uint32
}

func (f *Frame) HasEvent() bool    { return f.Flags&flagEvent != 0 }
func (f *Frame) HasSequence() bool { return f.Flags&flagSequence != 0 }
func (f *Frame) IsError() bool     { return f.MessageType == msgTypeError }

// newEventFrame собирает клиентский кадр события с JSON-нагрузкой.
func newEventFrame(ev Event, sessionID string, payload []byte) *Frame {
	return &Frame{
		Version:       protocolVersion,
		HeaderSize:    headerSizeWords,
		MessageType:   msgTypeFullClient,
		Flags:         flagEvent,
		Serialization: serializationJSON,
		Compression:   compressionNone,
		Event:         int32(ev),
		SessionID:     sessionID,
		Payload:       payload,
	}
}

// encode сериализует кадр в проволочный формат: заголовок, номер события
// (если есть флаг), session id с длиной (если задан), нагрузка с длиной.
// Невалидных комбинаций для клиентских кадров нет, ошибки невозможны.
func (f *Frame) encode() []byte {
	buf := make([]byte, 0, 16+len(f.SessionID)+len(f.Payload))
	buf = append(buf,
		f.Version<<4|f.HeaderSize&0x0F,
		f.MessageType<<4|f.Flags&0x0F,
		f.Serialization<<4|f.Compression&0x0F,
		0, // зарезервировано
	)
	if f.HasEvent() {
		buf = binary.BigEndian.AppendUint32(buf, uint32(f.Event))
	}
	if f.SessionID != "" {
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(f.SessionID)))
		buf = append(buf, f.SessionID...)
	}
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(f.Payload)))
	buf = append(buf, f.Payload...)
	return buf
}

// frameReader — курсор по принятому буферу с проверкой границ.
type frameReader struct {
	data []byte
	off  int
}

func (r *frameReader) remaining() int { return len(r.data) - r.off }

func (r *frameReader) uint32() (uint32, error) {
	if r.remaining() < 4 {
		return 0, fmt.Errorf("%w: need 4 bytes at offset %d, have %d", ErrDecode, r.off, r.remaining())
	}
	v := binary.BigEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v, nil
}

func (r *frameReader) bytes(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, fmt.Errorf("%w: declared length %d exceeds remaining %d bytes", ErrDecode, n, r.remaining())
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *frameReader) lengthPrefixed() ([]byte, error) {
	n, err := r.uint32()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return r.bytes(int(n))
}

// decodeFrame разбирает кадр с провода. Версию и размер заголовка читаем
// из буфера, а не предполагаем: сервер вправе прислать заголовок длиннее.
func decodeFrame(data []byte) (*Frame, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: frame shorter than header (%d bytes)", ErrDecode, len(data))
	}
	f := &Frame{
		Version:       data[0] >> 4,
		HeaderSize:    data[0] & 0x0F,
		MessageType:   data[1] >> 4,
		Flags:         data[1] & 0x0F,
		Serialization: data[2] >> 4,
		Compression:   data[2] & 0x0F,
	}

	r := &frameReader{data: data, off: max(4, int(f.HeaderSize)*4)}
	if r.off > len(data) {
		return nil, fmt.Errorf("%w: declared header of %d bytes exceeds frame of %d", ErrDecode, r.off, len(data))
	}

	if f.HasEvent() {
		ev, err := r.uint32()
		if err != nil {
			return nil, err
		}
		f.Event = int32(ev)
	}

	// Кадр ошибки устроен иначе: код ошибки и JSON-сообщение, других секций нет.
	if f.IsError() {
		code, err := r.uint32()
		if err != nil {
			return nil, err
		}
		f.ErrorCode = code
		payload, err := r.lengthPrefixed()
		if err != nil {
			return nil, err
		}
		f.Payload = payload
		return f, nil
	}

	if f.HasSequence() {
		seq, err := r.uint32()
		if err != nil {
			return nil, err
		}
		f.Sequence = int32(seq)
	}

	// Session id присылается только с событиями сессии (>=100). Поле
	// рекомендательное: неправдоподобную длину (0, >=100 или за границей
	// буфера) пропускаем и продолжаем разбор, не роняя кадр.
	if f.HasEvent() && f.Event >= 100 {
		idLen, err := r.uint32()
		if err != nil {
			return nil, err
		}
		if n := int(idLen); n > 0 && n < 100 && n <= r.remaining() {
			id, _ := r.bytes(n)
			f.SessionID = string(id)
		}
	}

	payload, err := r.lengthPrefixed()
	if err != nil {
		return nil, err
	}
	f.Payload = payload
	return f, nil
}

// payloadMessage вытаскивает человекочитаемое сообщение из JSON-нагрузки
// кадра ошибки или события отказа. Схема у сервера плавающая, поэтому
// пробуем известные поля, иначе возвращаем нагрузку как есть.
func (f *Frame) payloadMessage() string {
	if len(f.Payload) == 0 {
		return ""
	}
	var s struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(f.Payload, &s) == nil {
		if s.Error != "" {
			return s.Error
		}
		if s.Message != "" {
			return s.Message
		}
	}
	return string(f.Payload)
}
