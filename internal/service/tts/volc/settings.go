package volc

import "sync"

// Settings — учётные данные и параметры голоса. Каждый вызов синтеза
// берёт снимок на старте; обновления не влияют на уже идущие сессии.
type Settings struct {
	Enabled     bool
	AppID       string
	AccessToken string
	VoiceType   string
	Encoding    string  // mp3|wav|pcm|ogg_opus
	SpeedRatio  float64 // 1.0 — без изменений
	VolumeRatio float64 // 1.0 — без изменений
	PitchRatio  float64 // 1.0 — без изменений; сервисом пока не применяется
}

// Store — процессное хранилище настроек голоса с заменой целиком.
// Обновляется слоем оркестрации (например, из админки или команд чата).
type Store struct {
	mu sync.RWMutex
	s  Settings
}

func NewStore(s Settings) *Store { return &Store{s: s} }

// Get возвращает снимок текущих настроек.
func (st *Store) Get() Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.s
}

// Update заменяет настройки целиком.
func (st *Store) Update(s Settings) {
	st.mu.Lock()
	st.s = s
	st.mu.Unlock()
}
