package volc

import "fmt"

// Event — код события протокола. Полоса до 100 — управление соединением,
// от 100 — управление сессией, от 150 и 350 — уведомления сервера.
type Event int32

// Клиент → сервер.
const (
	EventStartConnection  Event = 1
	EventFinishConnection Event = 2
	EventStartSession     Event = 100
	EventCancelSession    Event = 101 // есть в протоколе, клиентом не отправляется
	EventFinishSession    Event = 102
	EventTaskRequest      Event = 200
)

// Сервер → клиент.
const (
	EventConnectionStarted  Event = 50
	EventConnectionFailed   Event = 51
	EventConnectionFinished Event = 52
	EventSessionStarted     Event = 150
	EventSessionCanceled    Event = 151
	EventSessionFinished    Event = 152
	EventSessionFailed      Event = 153
	EventSentenceStart      Event = 350
	EventSentenceEnd        Event = 351
	EventAudioResponse      Event = 352
)

func (e Event) String() string {
	switch e {
	case EventStartConnection:
		return "StartConnection"
	case EventFinishConnection:
		return "FinishConnection"
	case EventStartSession:
		return "StartSession"
	case EventCancelSession:
		return "CancelSession"
	case EventFinishSession:
		return "FinishSession"
	case EventTaskRequest:
		return "TaskRequest"
	case EventConnectionStarted:
		return "ConnectionStarted"
	case EventConnectionFailed:
		return "ConnectionFailed"
	case EventConnectionFinished:
		return "ConnectionFinished"
	case EventSessionStarted:
		return "SessionStarted"
	case EventSessionCanceled:
		return "SessionCanceled"
	case EventSessionFinished:
		return "SessionFinished"
	case EventSessionFailed:
		return "SessionFailed"
	case EventSentenceStart:
		return "SentenceStart"
	case EventSentenceEnd:
		return "SentenceEnd"
	case EventAudioResponse:
		return "AudioResponse"
	default:
		return fmt.Sprintf("Event(%d)", int32(e))
	}
}
