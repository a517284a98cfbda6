// Package speech splits alert text into sentences and sequences them for a
// text-to-speech consumer, one segment at a time.
package speech

import (
	"regexp"
	"strings"
	"sync"
)

// Lang язык синтеза речи
const Lang = "en-US"

var sentenceRe = regexp.MustCompile("[^.!?]+[.!?]+[\\])'\"`’”]*|.+")

// Split разбивает текст на предложения (вместе с закрывающими кавычками/скобками)
func Split(text string) []string {
	if text == "" {
		return nil
	}
	return sentenceRe.FindAllString(text, -1)
}

// Utterance один сегмент для озвучивания
type Utterance struct {
	Seq   uint64 `json:"seq"`
	Index int    `json:"index"`
	Text  string `json:"text"`
	Lang  string `json:"lang"`
}

// Speaker озвучивает сегменты. Done вызывается потребителем после окончания сегмента.
type Speaker interface {
	Speak(u Utterance)
	Cancel()
}

// Gate сообщает, включено ли чтение оповещений вслух
type Gate func() bool

// Queue последовательность сегментов текущего текста.
// Новый Speak отменяет текущую последовательность.
type Queue struct {
	speaker Speaker
	gate    Gate

	mu       sync.Mutex
	seq      uint64
	segments []string
	next     int
	gated    bool
}

// NewQueue создаёт очередь. gate может быть nil (всегда включено).
func NewQueue(speaker Speaker, gate Gate) *Queue {
	if gate == nil {
		gate = func() bool { return true }
	}
	return &Queue{speaker: speaker, gate: gate}
}

// Speak начинает новую последовательность. При gated каждый сегмент
// озвучивается только пока gate открыт. Возвращает false, если ничего не начато.
func (q *Queue) Speak(text string, gated bool) bool {
	if text == "" || (gated && !q.gate()) {
		return false
	}
	segments := Split(text)

	q.mu.Lock()
	q.seq++
	q.segments = segments
	q.next = 0
	q.gated = gated
	u, ok := q.advanceLocked()
	q.mu.Unlock()

	q.speaker.Cancel()
	if ok {
		q.speaker.Speak(u)
	}
	return ok
}

// Done отмечает окончание сегмента последовательности seq и запускает следующий
func (q *Queue) Done(seq uint64) {
	q.mu.Lock()
	if seq != q.seq {
		q.mu.Unlock()
		return
	}
	u, ok := q.advanceLocked()
	q.mu.Unlock()

	if ok {
		q.speaker.Speak(u)
	}
}

// Cancel прерывает текущую последовательность
func (q *Queue) Cancel() {
	q.mu.Lock()
	q.seq++
	q.segments = nil
	q.next = 0
	q.mu.Unlock()

	q.speaker.Cancel()
}

// Pending returns how many segments of the current sequence are not spoken yet.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.segments) - q.next
}

func (q *Queue) advanceLocked() (Utterance, bool) {
	if q.next >= len(q.segments) {
		q.segments = nil
		q.next = 0
		return Utterance{}, false
	}
	if q.gated && !q.gate() {
		q.segments = nil
		q.next = 0
		return Utterance{}, false
	}
	u := Utterance{
		Seq:   q.seq,
		Index: q.next,
		Text:  strings.TrimSpace(q.segments[q.next]),
		Lang:  Lang,
	}
	q.next++
	return u, true
}
