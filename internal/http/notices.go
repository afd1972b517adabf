package http

import (
	"sync"
	"time"
)

const (
	NoticeError   = "error"
	NoticeSuccess = "success"
)

// Notice is a short user-visible message shown by the web page.
type Notice struct {
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NoticeBoard keeps notices until their time to live has passed.
type NoticeBoard struct {
	ttl     time.Duration
	now     func() time.Time
	mutex   sync.Mutex
	notices []Notice
}

func NewNoticeBoard(ttl time.Duration) *NoticeBoard {
	return &NoticeBoard{ttl: ttl, now: time.Now}
}

func (b *NoticeBoard) Post(level, message string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.notices = append(b.notices, Notice{
		Level:     level,
		Message:   message,
		ExpiresAt: b.now().Add(b.ttl),
	})
}

// Active returns the unexpired notices, oldest first, and forgets the rest.
func (b *NoticeBoard) Active() []Notice {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	now := b.now()
	active := b.notices[:0]
	for _, n := range b.notices {
		if now.Before(n.ExpiresAt) {
			active = append(active, n)
		}
	}
	b.notices = active

	return append([]Notice{}, active...)
}
