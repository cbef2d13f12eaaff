package chat

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrBusy is returned when a session is asked to start work while an
// extraction is still running.
var ErrBusy = errors.New("session is busy")

type State int

const (
	StateIdle State = iota
	StateAwaitingFile
	StateExtracting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingFile:
		return "awaiting file"
	case StateExtracting:
		return "extracting"
	}
	return "unknown"
}

// Session is the conversational context of one connected user. It is owned
// by a Store and lives until it is ended or expires. All methods are safe
// for concurrent use.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu       sync.Mutex
	messages []Message
	image    *File // most recently uploaded image
	ask      *AskFile
	state    State
	lastSeen time.Time
}

func newSession(now time.Time) *Session {
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		lastSeen:  now,
	}
}

// Post appends messages to the transcript.
func (s *Session) Post(msgs ...Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages, msgs...)
}

// Messages returns a copy of the transcript.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := make([]Message, len(s.messages))
	copy(msgs, s.messages)
	return msgs
}

// Actions returns the actions of the most recent message that offered any.
func (s *Session) Actions() []Action {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.messages) - 1; i >= 0; i-- {
		if len(s.messages[i].Actions) > 0 {
			return s.messages[i].Actions
		}
	}
	return nil
}

// Element finds an element attached to any message in the transcript.
func (s *Session) Element(id string) (Element, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.messages {
		for _, el := range m.Elements {
			if el.ID == id {
				return el, true
			}
		}
	}
	return Element{}, false
}

// Image returns the most recently uploaded image, if any.
func (s *Session) Image() (File, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.image == nil {
		return File{}, false
	}
	return *s.image, true
}

// SetImage replaces the stored image. At most one image is kept.
func (s *Session) SetImage(f File) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.image = &f
}

// Ask records an outstanding file request, replacing any earlier one.
func (s *Session) Ask(a *AskFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateExtracting {
		return ErrBusy
	}
	s.ask = a
	s.state = StateAwaitingFile
	return nil
}

// PendingAsk returns the outstanding file request, or nil.
func (s *Session) PendingAsk() *AskFile {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ask
}

// TakeAsk removes and returns the outstanding file request. A request is
// answered at most once.
func (s *Session) TakeAsk() *AskFile {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.ask
	s.ask = nil
	if s.state == StateAwaitingFile {
		s.state = StateIdle
	}
	return a
}

// BeginExtract moves the session into the extracting state. Only one
// extraction can run per session.
func (s *Session) BeginExtract() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateExtracting {
		return ErrBusy
	}
	s.ask = nil
	s.state = StateExtracting
	return nil
}

// EndExtract returns the session to idle.
func (s *Session) EndExtract() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = StateIdle
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastSeen = now
}

func (s *Session) idleSince() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastSeen, s.state == StateExtracting
}
