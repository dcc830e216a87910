package game

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/MysteryBlokHed/alheure/internal/bank"
	"github.com/MysteryBlokHed/alheure/internal/roster"
)

// Session is one game: it owns the roster, the bank's draw state, the
// current phase and round. Every exported method takes the session lock, so
// transitions are applied one at a time in arrival order.
type Session struct {
	Code      string
	CreatedAt time.Time
	Config    SessionConfig

	HostToken string

	mu sync.Mutex

	bank   *bank.Bank
	roster *roster.Roster
	policy CategoryPolicy
	sched  Scheduler
	log    zerolog.Logger

	phase    Phase
	round    *Round
	roundIx  int
	lastTurn int
	duel     *showdown
	buzzSeq  uint64
	winner   *int
	fault    Code
	rounds   []Round
	buzzers  map[string]int // device token -> player id
	results  string         // file appended to at game over, if set
	closed   bool
	timer    Timer
	timerGen uint64
	deadline *time.Time

	version uint64
	pending []Event
	subs    map[int]chan Notification
	nextSub int
}

// NewSession builds a session in Pregame over b. The bank must not be
// shared with another session.
func NewSession(code string, b *bank.Bank, cfg SessionConfig) (*Session, error) {
	policy, err := NewPolicy(cfg.CategoryPolicy)
	if err != nil {
		return nil, err
	}
	return &Session{
		Code:      code,
		CreatedAt: time.Now().UTC(),
		Config:    cfg,
		HostToken: uuid.NewString(),
		bank:      b,
		roster:    roster.New(),
		policy:    policy,
		sched:     wallClock{},
		log:       zerolog.Nop(),
		phase:     PhasePregame,
		lastTurn:  -1,
		buzzers:   make(map[string]int),
		subs:      make(map[int]chan Notification),
	}, nil
}

func (s *Session) SetScheduler(sched Scheduler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sched = sched
}

func (s *Session) SetLogger(l zerolog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = l.With().Str("code", s.Code).Logger()
}

// SetResultsFile makes the session append its results to filename whenever
// a game ends.
func (s *Session) SetResultsFile(filename string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = filename
}

// AddPlayer appends a named player during setup.
func (s *Session) AddPlayer(name string) (roster.Player, error) {
	var p roster.Player
	err := s.setup("add player", func() error {
		var err error
		p, err = s.roster.AddPlayer(name)
		return err
	})
	return p, err
}

// AddPlaceholder appends an empty setup row.
func (s *Session) AddPlaceholder() (roster.Player, error) {
	var p roster.Player
	err := s.setup("add placeholder", func() error {
		p = s.roster.AddPlaceholder()
		return nil
	})
	return p, err
}

// RenamePlayer edits a setup row. On a validation error the row keeps the
// text and is flagged invalid; the error is still returned.
func (s *Session) RenamePlayer(id int, name string) (roster.Player, error) {
	var p roster.Player
	err := s.setup("rename player", func() error {
		var err error
		p, err = s.roster.Rename(id, name)
		return err
	})
	return p, err
}

func (s *Session) RemovePlayer(id int) error {
	return s.setup("remove player", func() error {
		if err := s.roster.RemovePlayer(id); err != nil {
			return err
		}
		s.releaseLocked(id)
		return nil
	})
}

// setup runs a roster edit, which is only legal in Pregame. Edits that
// change nothing still publish a snapshot so the setup screen can show
// validity flags.
func (s *Session) setup(what string, edit func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return err
	}
	if s.phase == PhaseFaulted {
		return ErrGameFaulted
	}
	if s.phase != PhasePregame {
		return s.faultLocked(fmt.Errorf("%w: %s during %s", ErrIllegalTransition, what, s.phase))
	}
	err := edit()
	s.touched()
	s.flush()
	return err
}

// Start leaves Pregame once at least two players have valid names.
func (s *Session) Start() error {
	return s.dispatch(input{kind: inputStart})
}

// Advance performs the next transition that needs no player input.
func (s *Session) Advance() error {
	return s.dispatch(input{kind: inputAdvance})
}

// AdvanceFrom is Advance for a client that saw the given snapshot version.
// If the game has moved on since, it returns ErrStaleInput and changes
// nothing.
func (s *Session) AdvanceFrom(version uint64) error {
	return s.dispatch(input{kind: inputAdvance, expect: &version})
}

// SubmitAnswer records the answer of the player on the clock. A nil answer
// counts as no answer.
func (s *Session) SubmitAnswer(playerID int, answer *string) error {
	return s.dispatch(input{kind: inputAnswer, player: playerID, answer: answer})
}

// SubmitAnswerFrom is SubmitAnswer guarded by a snapshot version, like
// AdvanceFrom. An answer that lands after the clock ran out is stale.
func (s *Session) SubmitAnswerFrom(version uint64, playerID int, answer *string) error {
	return s.dispatch(input{kind: inputAnswer, player: playerID, answer: answer, expect: &version})
}

// BuzzIn registers a showdown buzz. It reports whether this buzz won the
// right to answer; buzzes arriving outside the open question window are
// discarded without error.
func (s *Session) BuzzIn(playerID int, reported int64) (bool, error) {
	err := s.dispatch(input{kind: inputBuzz, player: playerID, reported: reported})
	if errors.Is(err, ErrStaleBuzz) {
		return false, nil
	}
	return err == nil, err
}

// Timeout expires the running answer clock, as the server timer would. It
// reports false when no clock is running.
func (s *Session) Timeout() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return false, err
	}
	if !s.clocked() {
		return false, nil
	}
	s.disarm()
	return true, s.applyLocked(input{kind: inputTimeout})
}

// Restart abandons the current game, if any, and returns to Pregame with
// the same players, all Active, and every question available again.
func (s *Session) Restart() error {
	return s.dispatch(input{kind: inputRestart})
}

// ClaimBuzzer issues a device token bound to a player so a phone can buzz
// for them. Each player has at most one device; the host frees it with
// ReleaseBuzzer.
func (s *Session) ClaimBuzzer(playerID int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return "", err
	}
	p, err := s.roster.Get(playerID)
	if err != nil {
		return "", err
	}
	if !p.Valid {
		return "", fmt.Errorf("%w: player %d has no name yet", roster.ErrInvalidName, playerID)
	}
	for _, id := range s.buzzers {
		if id == playerID {
			return "", fmt.Errorf("%w: %s", ErrBuzzerClaimed, p.Name)
		}
	}
	token := uuid.NewString()
	s.buzzers[token] = playerID
	return token, nil
}

// ReleaseBuzzer revokes the device token of a player, if any.
func (s *Session) ReleaseBuzzer(playerID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return err
	}
	if _, err := s.roster.Get(playerID); err != nil {
		return err
	}
	s.releaseLocked(playerID)
	return nil
}

func (s *Session) releaseLocked(playerID int) {
	for token, id := range s.buzzers {
		if id == playerID {
			delete(s.buzzers, token)
		}
	}
}

// BuzzerPlayer resolves a device token issued by ClaimBuzzer.
func (s *Session) BuzzerPlayer(token string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.buzzers[token]
	return id, ok
}

// Subscribe returns a channel receiving a Notification after every applied
// transition, and a function that ends the subscription. A subscriber that
// falls more than buffer notifications behind misses the overflow; the
// Version field lets it notice and catch up with Snapshot.
func (s *Session) Subscribe(buffer int) (<-chan Notification, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Notification, max(buffer, 1))
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

// Close stops the clock and ends every subscription. The session rejects
// all further input.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.disarm()
	for id, c := range s.subs {
		delete(s.subs, id)
		close(c)
	}
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) GetPhase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Players returns a copy of the roster in insertion order.
func (s *Session) Players() []roster.Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Collect(s.roster.All())
}

// Rounds returns the rounds played so far, oldest first.
func (s *Session) Rounds() []Round {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.rounds)
}

// Buzzes returns the buzz log of the current showdown.
func (s *Session) Buzzes() []Buzz {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.duel == nil {
		return nil
	}
	return slices.Clone(s.duel.log)
}

func (s *Session) usable() error {
	if s.closed {
		return ErrSessionClosed
	}
	return nil
}

func (s *Session) dispatch(in input) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return err
	}
	if in.expect != nil && *in.expect != s.version {
		return fmt.Errorf("%w: %s sent at version %d, now %d", ErrStaleInput, in.kind, *in.expect, s.version)
	}
	return s.applyLocked(in)
}

// applyLocked runs one transition and publishes the result. Fatal errors
// move the game to Faulted.
func (s *Session) applyLocked(in input) error {
	if s.phase == PhaseFaulted && in.kind != inputRestart {
		if in.kind == inputBuzz {
			return ErrStaleBuzz
		}
		return ErrGameFaulted
	}
	err := s.step(in)
	if Fatal(err) {
		err = s.faultLocked(err)
	}
	s.flush()
	return err
}

func (s *Session) faultLocked(err error) error {
	s.disarm()
	s.fault = CodeOf(err)
	s.log.Error().Err(err).Str("phase", string(s.phase)).Msg("game faulted")
	s.setPhase(PhaseFaulted)
	s.emit(Event{Kind: EventFault, Code: s.fault})
	s.flush()
	return err
}

func (s *Session) setPhase(p Phase) {
	if s.phase == p {
		return
	}
	s.log.Debug().Str("from", string(s.phase)).Str("to", string(p)).Msg("phase transition")
	s.phase = p
	s.emit(Event{Kind: EventPhaseChanged, Phase: p})
}

func (s *Session) emit(e Event) {
	s.pending = append(s.pending, e)
}

// touched forces a publish even when no event was raised.
func (s *Session) touched() {
	if len(s.pending) == 0 {
		s.version++
		s.publish(nil)
	}
}

func (s *Session) flush() {
	if len(s.pending) == 0 {
		return
	}
	events := s.pending
	s.pending = nil
	s.version++
	s.publish(events)
}

func (s *Session) publish(events []Event) {
	n := Notification{Snapshot: s.snapshotLocked(), Events: events}
	for id, c := range s.subs {
		select {
		case c <- n:
		default:
			s.log.Warn().Int("subscriber", id).Uint64("version", n.Snapshot.Version).Msg("subscriber lagging, dropped notification")
		}
	}
}

// arm starts the clock for the current phase.
func (s *Session) arm(secs int) {
	s.disarm()
	if secs <= 0 {
		return
	}
	d := seconds(secs)
	gen := s.timerGen
	s.deadline = ptr(s.sched.Now().Add(d).UTC())
	s.timer = s.sched.AfterFunc(d, func() { s.expire(gen) })
}

func (s *Session) disarm() {
	s.timerGen++
	s.deadline = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) expire(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.timerGen || s.timer == nil {
		return
	}
	s.timer = nil
	s.deadline = nil
	s.log.Debug().Str("phase", string(s.phase)).Msg("answer clock expired")
	_ = s.applyLocked(input{kind: inputTimeout})
}

// clocked reports whether the phase waits on an answer clock.
func (s *Session) clocked() bool {
	switch s.phase {
	case PhaseQuestionDisplayed, PhaseEliminationQuestionDisplayed, PhaseEliminationPlayerAnswered:
		return true
	}
	return false
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		Code:     s.Code,
		Version:  s.version,
		Phase:    s.phase,
		Roster:   slices.Collect(s.roster.All()),
		Winner:   s.winner,
		Deadline: s.deadline,
		Fault:    s.fault,
	}
	if s.round != nil {
		r := *s.round
		snap.Round = &r
		snap.Question = s.questionView()
		if r.Kind == RoundNormal {
			snap.CurrentPlayer = r.PlayerID
		}
	}
	if s.duel != nil {
		snap.EliminationPair = []int{s.duel.pair[0], s.duel.pair[1]}
		snap.Buzzer = s.duel.buzzer
	}
	return snap
}

// questionView hides what the phase has not revealed yet. In a showdown the
// category is shown before the prompt; in a normal round they come together.
func (s *Session) questionView() *QuestionView {
	q := s.round.Question
	if q == nil {
		return nil
	}
	v := &QuestionView{Category: q.Category}
	switch s.phase {
	case PhaseNewRound, PhasePreQuestion, PhaseNewEliminationRound:
		return nil
	case PhaseEliminationCategoryDisplayed, PhasePreEliminationQuestion:
		return v
	case PhaseQuestionDisplayed, PhaseEliminationQuestionDisplayed, PhaseEliminationPlayerAnswered, PhaseEliminationRoundFailed:
		v.Prompt = q.Prompt
	default:
		v.Prompt = q.Prompt
		v.Answer = q.Answer
	}
	return v
}
