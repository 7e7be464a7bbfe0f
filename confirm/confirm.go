// Package confirm holds actions that need a second click before they run.
// A pending action is single-shot: it either gets confirmed by the user
// who started it within the window, gets cancelled, or times out and is
// dropped. Anyone else's click is rejected without side effects.
package confirm

import (
	"fmt"
	"sync"
	"time"

	"github.com/eclipsabot/eclipsa/errs"
)

type pending struct {
	userId string
	action func()
	timer  *time.Timer
}

type Manager struct {
	mu      sync.Mutex
	waiting map[string]*pending
}

func NewManager() *Manager {
	return &Manager{waiting: make(map[string]*pending)}
}

// Begin registers an action behind the given key. If the same key already
// has a pending action it is replaced and its timer stopped. onTimeout
// runs if the window elapses with no answer.
func (m *Manager) Begin(key, userId string, window time.Duration, action func(), onTimeout func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.waiting[key]; ok {
		old.timer.Stop()
	}

	p := &pending{userId: userId, action: action}
	p.timer = time.AfterFunc(window, func() {
		m.mu.Lock()
		cur, ok := m.waiting[key]
		if ok && cur == p {
			delete(m.waiting, key)
		}
		m.mu.Unlock()
		if ok && cur == p && onTimeout != nil {
			onTimeout()
		}
	})
	m.waiting[key] = p
}

// Confirm runs the pending action if the caller is the user who began it.
func (m *Manager) Confirm(key, userId string) error {
	p, err := m.take(key, userId)
	if err != nil {
		return err
	}
	p.action()
	return nil
}

// Cancel drops the pending action without running it.
func (m *Manager) Cancel(key, userId string) error {
	_, err := m.take(key, userId)
	return err
}

func (m *Manager) take(key, userId string) (*pending, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.waiting[key]
	if !ok {
		return nil, fmt.Errorf("no action pending, the window may have elapsed: %w", errs.ErrTimeout)
	}
	if p.userId != userId {
		return nil, fmt.Errorf("only the user who started this action can answer: %w", errs.ErrForbidden)
	}

	p.timer.Stop()
	delete(m.waiting, key)
	return p, nil
}
