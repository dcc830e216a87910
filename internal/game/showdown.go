package game

import (
	"fmt"
	"slices"
)

// showdown is the state of an elimination round between two at-risk
// players. The buzz log only grows; the first accepted entry decides who
// answers.
type showdown struct {
	pair   [2]int
	log    []Buzz
	buzzer *int
}

func (d *showdown) member(id int) bool {
	return slices.Contains(d.pair[:], id)
}

func (d *showdown) opponent(id int) int {
	if d.pair[0] == id {
		return d.pair[1]
	}
	return d.pair[0]
}

// startShowdown opens an elimination round between the two players who were
// marked at risk first.
func (s *Session) startShowdown(a, b int) {
	s.duel = &showdown{pair: [2]int{a, b}}
	s.log.Info().Int("a", a).Int("b", b).Msg("showdown started")
	s.openRound(RoundElimination)
	s.emit(Event{Kind: EventShowdownStarted, Pair: []int{a, b}})
}

func (s *Session) revealShowdownCategory() error {
	q, err := s.policy.Next(s.bank)
	if err != nil {
		return err
	}
	s.round.Question = &q
	s.setPhase(PhaseEliminationCategoryDisplayed)
	s.emit(Event{Kind: EventCategoryRevealed, Category: q.Category, Pair: s.round.Pair})
	return nil
}

// record appends a buzz to the log under the next receipt sequence number.
func (s *Session) record(playerID int, reported int64, accepted bool) Buzz {
	s.buzzSeq++
	b := Buzz{Seq: s.buzzSeq, PlayerID: playerID, Reported: reported, Accepted: accepted}
	s.duel.log = append(s.duel.log, b)
	return b
}

// acceptBuzz handles a buzz while the showdown question is open. The first
// buzz from a pair member stops the clock and gives that player the answer.
func (s *Session) acceptBuzz(playerID int, reported int64) error {
	if !s.duel.member(playerID) {
		s.record(playerID, reported, false)
		return ErrStaleBuzz
	}
	b := s.record(playerID, reported, true)
	s.duel.buzzer = ptr(playerID)
	s.log.Debug().Int("player", playerID).Uint64("seq", b.Seq).Msg("buzz accepted")
	s.disarm()
	s.setPhase(PhaseEliminationPlayerAnswered)
	s.emit(Event{Kind: EventBuzzAccepted, PlayerID: ptr(playerID)})
	s.arm(s.Config.BuzzAnswerTime)
	return nil
}

// lateBuzz logs a buzz that lost the race.
func (s *Session) lateBuzz(playerID int, reported int64) error {
	s.record(playerID, reported, false)
	return ErrStaleBuzz
}

// answerWithoutBuzz treats an answer sent before any buzz as a buzz
// immediately followed by the answer.
func (s *Session) answerWithoutBuzz(playerID int, answer *string) error {
	if !s.duel.member(playerID) {
		if _, err := s.roster.Get(playerID); err != nil {
			return err
		}
		return fmt.Errorf("%w: player %d is not in the showdown", ErrNotYourTurn, playerID)
	}
	if err := s.acceptBuzz(playerID, 0); err != nil {
		return err
	}
	return s.resolveShowdown(playerID, answer)
}

// resolveShowdown judges the buzzer's answer. A correct answer saves the
// buzzer and eliminates the opponent; anything else eliminates the buzzer.
func (s *Session) resolveShowdown(playerID int, answer *string) error {
	buzzer := *s.duel.buzzer
	if playerID != buzzer {
		if _, err := s.roster.Get(playerID); err != nil {
			return err
		}
		return fmt.Errorf("%w: player %d answered for %d", ErrNotYourTurn, playerID, buzzer)
	}
	s.disarm()

	correct := answer != nil && s.round.Question.Check(*answer)
	s.revealAnswer(ptr(buzzer), answer, ptr(correct))
	if correct {
		if err := s.roster.MarkActive(buzzer); err != nil {
			return err
		}
		s.emit(Event{Kind: EventPlayerRestored, PlayerID: ptr(buzzer)})
		if err := s.eliminate(s.duel.opponent(buzzer)); err != nil {
			return err
		}
	} else if err := s.eliminate(buzzer); err != nil {
		return err
	}
	s.closeRound()
	if s.checkGameOver() {
		return nil
	}
	s.setPhase(PhaseEliminationAnswerDisplayed)
	return nil
}
