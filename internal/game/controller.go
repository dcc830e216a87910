package game

import (
	"fmt"

	"github.com/MysteryBlokHed/alheure/internal/roster"
)

type inputKind int

const (
	inputStart inputKind = iota
	inputAdvance
	inputAnswer
	inputBuzz
	inputTimeout
	inputRestart
)

func (k inputKind) String() string {
	switch k {
	case inputStart:
		return "start"
	case inputAdvance:
		return "advance"
	case inputAnswer:
		return "answer"
	case inputBuzz:
		return "buzz"
	case inputTimeout:
		return "timeout"
	case inputRestart:
		return "restart"
	}
	return fmt.Sprintf("input(%d)", int(k))
}

type input struct {
	kind     inputKind
	player   int
	answer   *string
	reported int64
	// snapshot version the sender acted on; nil skips the check
	expect *uint64
}

// step is the game's transition function: given the current phase and an
// input it applies the matching transition, or reports the input as illegal
// for the phase.
func (s *Session) step(in input) error {
	if in.kind == inputRestart {
		s.restart()
		return nil
	}

	switch s.phase {
	case PhasePregame:
		if in.kind == inputStart {
			return s.startGame()
		}
	case PhaseNewRound:
		if in.kind == inputAdvance {
			return s.beginTurn()
		}
	case PhasePreQuestion:
		if in.kind == inputAdvance {
			s.revealQuestion(PhaseQuestionDisplayed, s.Config.AnswerTime)
			return nil
		}
	case PhaseQuestionDisplayed:
		switch in.kind {
		case inputAnswer:
			return s.resolveTurn(in.player, in.answer)
		case inputTimeout:
			return s.resolveTurn(*s.round.PlayerID, nil)
		}
	case PhaseAnswerDisplayed, PhaseEliminationAnswerDisplayed:
		if in.kind == inputAdvance {
			s.nextRound()
			return nil
		}
	case PhaseNewEliminationRound:
		if in.kind == inputAdvance {
			return s.revealShowdownCategory()
		}
	case PhaseEliminationCategoryDisplayed:
		if in.kind == inputAdvance {
			s.setPhase(PhasePreEliminationQuestion)
			return nil
		}
	case PhasePreEliminationQuestion:
		if in.kind == inputAdvance {
			s.revealQuestion(PhaseEliminationQuestionDisplayed, s.Config.ShowdownTime)
			return nil
		}
	case PhaseEliminationQuestionDisplayed:
		switch in.kind {
		case inputBuzz:
			return s.acceptBuzz(in.player, in.reported)
		case inputAnswer:
			return s.answerWithoutBuzz(in.player, in.answer)
		case inputTimeout:
			s.setPhase(PhaseEliminationRoundFailed)
			return nil
		}
	case PhaseEliminationPlayerAnswered:
		switch in.kind {
		case inputBuzz:
			return s.lateBuzz(in.player, in.reported)
		case inputAnswer:
			return s.resolveShowdown(in.player, in.answer)
		case inputTimeout:
			return s.resolveShowdown(*s.duel.buzzer, nil)
		}
	case PhaseEliminationRoundFailed:
		if in.kind == inputAdvance {
			s.revealAnswer(nil, nil, nil)
			s.closeRound()
			s.setPhase(PhaseEliminationAnswerDisplayed)
			return nil
		}
	case PhaseGameOver:
		if in.kind == inputAdvance {
			s.setPhase(PhasePlayAgainPrompt)
			return nil
		}
	}

	// A buzz outside the open showdown question is late, not a misconfigured client.
	if in.kind == inputBuzz {
		return ErrStaleBuzz
	}
	return fmt.Errorf("%w: %s during %s", ErrIllegalTransition, in.kind, s.phase)
}

func (s *Session) startGame() error {
	if roster.Count(s.roster.Valid()) < 2 {
		return ErrNotEnoughPlayers
	}
	s.roster.Seal()
	s.lastTurn = -1
	s.roundIx = 0
	s.rounds = nil
	s.duel = nil
	s.winner = nil
	s.log.Info().Int("players", roster.Count(s.roster.All())).Msg("game started")
	s.openRound(RoundNormal)
	return nil
}

// openRound replaces the round record and enters the round's first phase.
func (s *Session) openRound(kind RoundKind) {
	s.roundIx++
	s.round = &Round{Number: s.roundIx, Kind: kind}
	if kind == RoundElimination {
		s.round.Pair = []int{s.duel.pair[0], s.duel.pair[1]}
		s.setPhase(PhaseNewEliminationRound)
		return
	}
	s.duel = nil
	s.setPhase(PhaseNewRound)
}

// beginTurn picks the next player round-robin over the remaining players
// and draws their question.
func (s *Session) beginTurn() error {
	next, ok := s.nextPlayer()
	if !ok {
		return fmt.Errorf("%w: no player left to take a turn", ErrIllegalTransition)
	}
	q, err := s.policy.Next(s.bank)
	if err != nil {
		return err
	}
	s.lastTurn = next
	s.round.PlayerID = ptr(next)
	s.round.Question = &q
	s.setPhase(PhasePreQuestion)
	return nil
}

// nextPlayer returns the first remaining player after the one who answered
// last, wrapping around. Ids grow with insertion order, so comparing ids
// walks the roster in order.
func (s *Session) nextPlayer() (int, bool) {
	first := -1
	for p := range s.roster.Remaining() {
		if first < 0 {
			first = p.ID
		}
		if p.ID > s.lastTurn {
			return p.ID, true
		}
	}
	return first, first >= 0
}

func (s *Session) revealQuestion(phase Phase, secs int) {
	s.setPhase(phase)
	q := s.round.Question
	s.emit(Event{Kind: EventQuestionRevealed, Category: q.Category, PlayerID: s.round.PlayerID, Pair: s.round.Pair})
	s.arm(secs)
}

func (s *Session) revealAnswer(player *int, given *string, correct *bool) {
	q := s.round.Question
	s.emit(Event{Kind: EventAnswerRevealed, PlayerID: player, Category: q.Category, Answer: q.Answer, Given: given, Correct: correct})
}

// resolveTurn judges the answer of the player on the clock. A nil answer is
// a timeout and counts as wrong.
func (s *Session) resolveTurn(playerID int, answer *string) error {
	current := *s.round.PlayerID
	if playerID != current {
		if _, err := s.roster.Get(playerID); err != nil {
			return err
		}
		return fmt.Errorf("%w: player %d answered for %d", ErrNotYourTurn, playerID, current)
	}
	s.disarm()

	correct := answer != nil && s.round.Question.Check(*answer)
	s.revealAnswer(ptr(current), answer, ptr(correct))
	if !correct {
		if err := s.penalize(current); err != nil {
			return err
		}
	}
	s.closeRound()
	if s.checkGameOver() {
		return nil
	}
	s.setPhase(PhaseAnswerDisplayed)
	return nil
}

// penalize moves a player one step toward elimination.
func (s *Session) penalize(id int) error {
	p, err := s.roster.Get(id)
	if err != nil {
		return err
	}
	switch p.State {
	case roster.Active:
		if err := s.roster.MarkAtRisk(id); err != nil {
			return err
		}
		s.emit(Event{Kind: EventPlayerAtRisk, PlayerID: ptr(id)})
	case roster.AtRisk:
		return s.eliminate(id)
	}
	return nil
}

func (s *Session) eliminate(id int) error {
	if err := s.roster.MarkEliminated(id); err != nil {
		return err
	}
	s.log.Info().Int("player", id).Msg("player eliminated")
	s.emit(Event{Kind: EventPlayerEliminated, PlayerID: ptr(id)})
	return nil
}

// closeRound records the finished round in the history.
func (s *Session) closeRound() {
	if s.round != nil {
		s.rounds = append(s.rounds, *s.round)
	}
}

// checkGameOver ends the game once at most one player remains.
func (s *Session) checkGameOver() bool {
	remaining := roster.Count(s.roster.Remaining())
	if remaining > 1 {
		return false
	}
	s.disarm()
	for p := range s.roster.Remaining() {
		s.winner = ptr(p.ID)
	}
	s.log.Info().Int("remaining", remaining).Msg("game over")
	s.emit(Event{Kind: EventGameOver, PlayerID: s.winner})
	s.setPhase(PhaseGameOver)
	if s.results != "" {
		if err := appendResults(s.results, s.resultsLocked(s.sched.Now())); err != nil {
			s.log.Error().Err(err).Str("file", s.results).Msg("failed to export game results")
		} else {
			s.log.Info().Str("file", s.results).Msg("exported game results")
		}
	}
	return true
}

// nextRound runs after an answer has been shown. Showdowns take priority
// while two or more players are at risk.
func (s *Session) nextRound() {
	if s.checkGameOver() {
		return
	}
	if atRisk := s.roster.AtRiskByMark(); len(atRisk) >= 2 {
		s.startShowdown(atRisk[0].ID, atRisk[1].ID)
		return
	}
	s.openRound(RoundNormal)
}

func (s *Session) restart() {
	s.disarm()
	s.bank.Reset()
	s.roster.Reset()
	s.policy.Reset()
	s.round = nil
	s.rounds = nil
	s.roundIx = 0
	s.duel = nil
	s.winner = nil
	s.fault = ""
	s.lastTurn = -1
	s.log.Info().Msg("game restarted")
	s.setPhase(PhasePregame)
}
