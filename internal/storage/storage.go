// Package storage persists local panel preferences.
package storage

import (
	"strconv"
)

// KeyReadNotification флаг "читать оповещения вслух"
const KeyReadNotification = "readNotification"

// Storage хранилище настроек ключ-значение
type Storage interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Close() error
}

// Preferences локальные настройки оператора
type Preferences struct {
	ReadNotification bool `json:"readNotification"`
}

// LoadPreferences reads preferences; missing or unparsable values fall back to defaults.
func LoadPreferences(s Storage) (Preferences, error) {
	var p Preferences
	v, ok, err := s.Get(KeyReadNotification)
	if err != nil {
		return p, err
	}
	if ok {
		p.ReadNotification, _ = strconv.ParseBool(v)
	}
	return p, nil
}

// SavePreferences записывает все настройки
func SavePreferences(s Storage, p Preferences) error {
	return s.Set(KeyReadNotification, strconv.FormatBool(p.ReadNotification))
}
