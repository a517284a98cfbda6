package storage

import "sync"

// Settings держит Preferences в памяти и записывает каждое изменение в Storage
type Settings struct {
	store Storage

	mu    sync.RWMutex
	prefs Preferences
}

// NewSettings загружает сохранённые настройки
func NewSettings(store Storage) (*Settings, error) {
	prefs, err := LoadPreferences(store)
	if err != nil {
		return nil, err
	}
	return &Settings{store: store, prefs: prefs}, nil
}

func (s *Settings) Get() Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs
}

// ReadNotification сообщает, читать ли оповещения вслух
func (s *Settings) ReadNotification() bool {
	return s.Get().ReadNotification
}

// Set сохраняет настройки. При ошибке записи кэш не меняется.
func (s *Settings) Set(p Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := SavePreferences(s.store, p); err != nil {
		return err
	}
	s.prefs = p
	return nil
}
