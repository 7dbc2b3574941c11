package client

import (
	"sync"
	"time"
)

type typingState int

const (
	stateIdle typingState = iota
	stateTyping
)

// typingMachine is the per-chat IDLE -> TYPING -> IDLE state machine. A
// keystroke in IDLE announces typing and arms the inactivity timer; further
// keystrokes re-arm it; an explicit stop or the timer's expiry announce
// stop_typing and return to IDLE. The server holds no corresponding state.
type typingMachine struct {
	mu     sync.Mutex
	state  typingState
	timer  *time.Timer
	window time.Duration
	start  func()
	stop   func()
}

func newTypingMachine(window time.Duration, start, stop func()) *typingMachine {
	return &typingMachine{window: window, start: start, stop: stop}
}

// Keystroke transitions IDLE -> TYPING (announcing typing) or re-arms the
// inactivity timer while already TYPING.
func (m *typingMachine) Keystroke() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == stateTyping {
		m.timer.Reset(m.window)
		return
	}
	m.state = stateTyping
	m.timer = time.AfterFunc(m.window, m.expire)
	m.start()
}

// Stop makes the explicit TYPING -> IDLE transition, announcing stop_typing.
func (m *typingMachine) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != stateTyping {
		return
	}
	m.timer.Stop()
	m.state = stateIdle
	m.stop()
}

// expire is the timer's TYPING -> IDLE transition after the inactivity
// window elapses without a keystroke.
func (m *typingMachine) expire() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != stateTyping {
		return
	}
	m.state = stateIdle
	m.stop()
}

// shutdown silences the machine without emitting anything.
func (m *typingMachine) shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer != nil {
		m.timer.Stop()
	}
	m.state = stateIdle
}
