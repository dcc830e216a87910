package game

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/MysteryBlokHed/alheure/internal/bank"
	"github.com/MysteryBlokHed/alheure/internal/random"
)

// RoomManager owns the live sessions, keyed by join code.
type RoomManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	active   string // active session code when in single-session mode

	questions map[bank.Category][]bank.Question
	single    bool
	sched     Scheduler
	log       zerolog.Logger
	results   string
	source    func() (bank.Source, error)
}

type Option func(*RoomManager)

// WithSingleSession makes CreateSession end the previously active session.
func WithSingleSession(on bool) Option {
	return func(rm *RoomManager) { rm.single = on }
}

func WithScheduler(s Scheduler) Option {
	return func(rm *RoomManager) { rm.sched = s }
}

func WithLogger(l zerolog.Logger) Option {
	return func(rm *RoomManager) { rm.log = l }
}

// WithResultsFile makes every session append its results to filename when
// a game ends. Empty disables the export.
func WithResultsFile(filename string) Option {
	return func(rm *RoomManager) { rm.results = filename }
}

// WithSource overrides how each session's draw randomness is created.
func WithSource(f func() (bank.Source, error)) Option {
	return func(rm *RoomManager) { rm.source = f }
}

// NewRoomManager builds a manager whose sessions all draw from questions.
// Each session gets its own bank, so draws never leak between games.
func NewRoomManager(questions map[bank.Category][]bank.Question, opts ...Option) *RoomManager {
	rm := &RoomManager{
		sessions:  make(map[string]*Session),
		questions: questions,
		sched:     wallClock{},
		log:       zerolog.Nop(),
		source: func() (bank.Source, error) {
			return random.New()
		},
	}
	for _, opt := range opts {
		opt(rm)
	}
	return rm
}

func (rm *RoomManager) CreateSession(cfg SessionConfig) (code string, hostToken string, err error) {
	if err := cfg.Validate(); err != nil {
		return "", "", err
	}
	src, err := rm.source()
	if err != nil {
		return "", "", err
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	code = randomCode(src, 5)
	for rm.sessions[code] != nil {
		code = randomCode(src, 5)
	}
	s, err := NewSession(code, bank.New(rm.questions, src), cfg)
	if err != nil {
		return "", "", err
	}
	s.SetScheduler(rm.sched)
	s.SetLogger(rm.log)
	s.SetResultsFile(rm.results)

	if rm.single && rm.active != "" {
		if prev := rm.sessions[rm.active]; prev != nil {
			prev.Close()
			delete(rm.sessions, rm.active)
			rm.log.Info().Str("code", rm.active).Msg("previous session ended")
		}
	}
	rm.sessions[code] = s
	rm.active = code
	rm.log.Info().Str("code", code).Str("policy", cfg.CategoryPolicy).Msg("session created")
	return code, s.HostToken, nil
}

func (rm *RoomManager) Get(code string) (*Session, error) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	s := rm.sessions[code]
	if s == nil {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (rm *RoomManager) Active() (string, *Session) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	if rm.active == "" {
		return "", nil
	}
	return rm.active, rm.sessions[rm.active]
}

// Authorize returns the session if token is its host token.
func (rm *RoomManager) Authorize(code, token string) (*Session, error) {
	s, err := rm.Get(code)
	if err != nil {
		return nil, err
	}
	if token == "" || token != s.HostToken {
		return nil, ErrNotHost
	}
	return s, nil
}

// End closes a session and forgets it.
func (rm *RoomManager) End(code string) error {
	rm.mu.Lock()
	s := rm.sessions[code]
	if s == nil {
		rm.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(rm.sessions, code)
	if rm.active == code {
		rm.active = ""
	}
	rm.mu.Unlock()

	s.Close()
	rm.log.Info().Str("code", code).Msg("session ended")
	return nil
}

func randomCode(src bank.Source, n int) string {
	letters := []rune("ABCDEFGHJKLMNPQRSTUVWXYZ23456789")
	b := make([]rune, n)
	for i := range b {
		b[i] = letters[src.IntN(len(letters))]
	}
	return string(b)
}
