package volc

// sessionState — этап жизненного цикла одной сессии синтеза.
type sessionState int

const (
	stateIdle sessionState = iota
	stateConnectionPending
	stateConnectionOpen
	stateSessionPending
	stateSessionOpen
	stateSessionDraining
	stateConnectionDraining
	stateClosed
	stateFailed
)

func (s sessionState) String() string {
	switch s {
	case stateIdle:
		return "Idle"
	case stateConnectionPending:
		return "ConnectionPending"
	case stateConnectionOpen:
		return "ConnectionOpen"
	case stateSessionPending:
		return "SessionPending"
	case stateSessionOpen:
		return "SessionOpen"
	case stateSessionDraining:
		return "SessionDraining"
	case stateConnectionDraining:
		return "ConnectionDraining"
	case stateClosed:
		return "Closed"
	case stateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// terminal: Closed и Failed конечны, из них выходов нет.
func (s sessionState) terminal() bool { return s == stateClosed || s == stateFailed }

// stepAction — реакция на принятое событие. Сами отправки кадров делает
// вызывающий код: автомат чистый и побочных эффектов не имеет.
type stepAction int

const (
	actionNone stepAction = iota
	actionSendStartSession
	actionSendTaskThenFinish
	actionAppendAudio
	actionSendFinishConnection
	actionResolve
	actionFail
)

// machine — автомат протокола: (состояние, событие) → (состояние, действие).
// События обрабатываются строго в порядке прихода с одного соединения.
type machine struct {
	state sessionState
}

// begin переводит автомат из Idle в ожидание подтверждения соединения.
// Вызывается после отправки StartConnection.
func (m *machine) begin() {
	if m.state == stateIdle {
		m.state = stateConnectionPending
	}
}

// step применяет серверное событие. После терминального состояния все
// события игнорируются; неизвестные и неуместные — тоже.
func (m *machine) step(ev Event) stepAction {
	if m.state.terminal() {
		return actionNone
	}
	switch m.state {
	case stateConnectionPending:
		switch ev {
		case EventConnectionStarted:
			m.state = stateConnectionOpen
			return actionSendStartSession
		case EventConnectionFailed:
			m.state = stateFailed
			return actionFail
		}
	case stateConnectionOpen:
		switch ev {
		case EventSessionStarted:
			m.state = stateSessionOpen
			return actionSendTaskThenFinish
		case EventSessionFailed:
			m.state = stateFailed
			return actionFail
		}
	case stateSessionOpen:
		switch ev {
		case EventSentenceStart, EventSentenceEnd:
			// информационные, ничего не делаем
			return actionNone
		case EventAudioResponse:
			return actionAppendAudio
		case EventSessionFinished:
			m.state = stateSessionDraining
			return actionSendFinishConnection
		case EventSessionFailed:
			m.state = stateFailed
			return actionFail
		}
	case stateSessionDraining:
		if ev == EventConnectionFinished {
			m.state = stateClosed
			return actionResolve
		}
	}
	return actionNone
}

// fail переводит автомат в Failed из любого нетерминального состояния.
// Возвращает false, если терминал уже достигнут.
func (m *machine) fail() bool {
	if m.state.terminal() {
		return false
	}
	m.state = stateFailed
	return true
}
