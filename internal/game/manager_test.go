package game

import (
	"errors"
	"testing"

	"github.com/MysteryBlokHed/alheure/internal/bank"
	"github.com/MysteryBlokHed/alheure/internal/random"
)

func newTestManager(opts ...Option) *RoomManager {
	opts = append([]Option{
		WithScheduler(newFakeClock()),
		WithSource(func() (bank.Source, error) { return random.NewSeeded(7), nil }),
	}, opts...)
	return NewRoomManager(fixture(10), opts...)
}

func TestNewRoomManager(t *testing.T) {
	rm := newTestManager()
	if rm.sessions == nil {
		t.Fatal("sessions map should be initialized")
	}
	if code, s := rm.Active(); code != "" || s != nil {
		t.Fatal("active session should be empty initially")
	}
}

func TestCreateSession(t *testing.T) {
	rm := newTestManager()
	config := SessionConfig{AnswerTime: 20, CategoryPolicy: PolicyBalanced}

	code, hostToken, err := rm.CreateSession(config)
	if err != nil {
		t.Fatalf("should be able to create session: %v", err)
	}
	if len(code) != 5 {
		t.Fatalf("expected a 5 character code, got %q", code)
	}
	if hostToken == "" {
		t.Fatal("host token should not be empty")
	}

	session, err := rm.Get(code)
	if err != nil {
		t.Fatalf("should be able to retrieve created session: %v", err)
	}
	if session.Code != code {
		t.Fatalf("expected code %s, got %s", code, session.Code)
	}
	if session.HostToken != hostToken {
		t.Fatalf("expected host token %s, got %s", hostToken, session.HostToken)
	}
	if session.Config.AnswerTime != 20 {
		t.Fatalf("expected answer time 20, got %d", session.Config.AnswerTime)
	}
	if session.GetPhase() != PhasePregame {
		t.Fatalf("expected phase %s, got %s", PhasePregame, session.GetPhase())
	}
	if active, _ := rm.Active(); active != code {
		t.Fatalf("expected %s to be active, got %s", code, active)
	}
}

func TestCreateSessionRejectsUnknownPolicy(t *testing.T) {
	rm := newTestManager()
	if _, _, err := rm.CreateSession(SessionConfig{CategoryPolicy: "nope"}); err == nil {
		t.Fatal("expected an error for an unknown policy")
	}
}

func TestCreateSessionValidatesConfig(t *testing.T) {
	rm := newTestManager()
	for _, cfg := range []SessionConfig{
		{AnswerTime: -1},
		{ShowdownTime: -5},
		{BuzzAnswerTime: -1},
	} {
		if _, _, err := rm.CreateSession(cfg); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%+v: expected ErrInvalidConfig, got %v", cfg, err)
		}
	}
	if _, s := rm.Active(); s != nil {
		t.Fatal("a rejected config should not create a session")
	}
}

func TestConfigOverridesKeepUnsetFields(t *testing.T) {
	base := SessionConfig{AnswerTime: 30, ShowdownTime: 15, BuzzAnswerTime: 10, CategoryPolicy: PolicyRoundRobin}
	answer, policy := 12, PolicyBalanced
	got := (&ConfigOverrides{AnswerTime: &answer, CategoryPolicy: &policy}).Apply(base)
	want := SessionConfig{AnswerTime: 12, ShowdownTime: 15, BuzzAnswerTime: 10, CategoryPolicy: PolicyBalanced}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}

	var none *ConfigOverrides
	if got := none.Apply(base); got != base {
		t.Fatalf("nil overrides should keep the base, got %+v", got)
	}
}

func TestGetUnknownSession(t *testing.T) {
	rm := newTestManager()
	if _, err := rm.Get("ZZZZZ"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestAuthorize(t *testing.T) {
	rm := newTestManager()
	code, hostToken, err := rm.CreateSession(SessionConfig{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := rm.Authorize(code, hostToken); err != nil {
		t.Fatalf("host should be authorized: %v", err)
	}
	if _, err := rm.Authorize(code, "guess"); !errors.Is(err, ErrNotHost) {
		t.Fatalf("expected ErrNotHost, got %v", err)
	}
	if _, err := rm.Authorize(code, ""); !errors.Is(err, ErrNotHost) {
		t.Fatalf("expected ErrNotHost for empty token, got %v", err)
	}
	if _, err := rm.Authorize("ZZZZZ", hostToken); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSessionsDoNotShareDraws(t *testing.T) {
	rm := NewRoomManager(fixture(1), WithScheduler(newFakeClock()))
	codeA, _, _ := rm.CreateSession(SessionConfig{})
	codeB, _, _ := rm.CreateSession(SessionConfig{})
	a, _ := rm.Get(codeA)
	b, _ := rm.Get(codeB)

	for _, s := range []*Session{a, b} {
		for _, name := range []string{"Alice", "Bob"} {
			if _, err := s.AddPlayer(name); err != nil {
				t.Fatalf("add: %v", err)
			}
		}
		if err := s.Start(); err != nil {
			t.Fatalf("start: %v", err)
		}
		// each session can draw the single question
		turn(t, s, alice, true)
	}
}

func TestSingleSessionModeEndsPrevious(t *testing.T) {
	rm := newTestManager(WithSingleSession(true))
	first, _, err := rm.CreateSession(SessionConfig{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	old, _ := rm.Get(first)

	second, _, err := rm.CreateSession(SessionConfig{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := rm.Get(first); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected the first session to be gone, got %v", err)
	}
	if err := old.Start(); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
	if active, _ := rm.Active(); active != second {
		t.Fatalf("expected %s active, got %s", second, active)
	}
}

func TestEndSession(t *testing.T) {
	rm := newTestManager()
	code, _, _ := rm.CreateSession(SessionConfig{})
	if err := rm.End(code); err != nil {
		t.Fatalf("end: %v", err)
	}
	if _, err := rm.Get(code); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if active, _ := rm.Active(); active != "" {
		t.Fatalf("expected no active session, got %s", active)
	}
	if err := rm.End(code); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound on second end, got %v", err)
	}
}
