package game

import (
	"testing"

	"github.com/MysteryBlokHed/alheure/internal/roster"
)

const (
	alice = 1
	bob   = 2
	carol = 3
)

func TestTurnsRotateOverRemainingPlayers(t *testing.T) {
	s, _ := startedSession(t, "Alice", "Bob", "Carol")

	for _, id := range []int{alice, bob, carol, alice} {
		turn(t, s, id, true)
		mustAdvance(t, s, PhaseNewRound)
	}
	rounds := s.Rounds()
	if len(rounds) != 4 {
		t.Fatalf("expected 4 rounds recorded, got %d", len(rounds))
	}
	for i, r := range rounds {
		if r.Number != i+1 || r.Kind != RoundNormal {
			t.Fatalf("unexpected round %d: %+v", i, r)
		}
	}
}

func TestWrongAnswersWithoutShowdown(t *testing.T) {
	s, _ := startedSession(t, "Alice", "Bob", "Carol")

	turn(t, s, alice, false)
	if got := state(t, s, alice); got != roster.AtRisk {
		t.Fatalf("expected Alice AtRisk, got %s", got)
	}
	mustAdvance(t, s, PhaseNewRound)
	turn(t, s, bob, true)
	mustAdvance(t, s, PhaseNewRound)
	turn(t, s, carol, true)
	mustAdvance(t, s, PhaseNewRound)

	turn(t, s, alice, false)
	if got := state(t, s, alice); got != roster.Eliminated {
		t.Fatalf("expected Alice Eliminated, got %s", got)
	}
	mustPhase(t, s, PhaseAnswerDisplayed)
	mustAdvance(t, s, PhaseNewRound)

	turn(t, s, bob, false)
	if got := state(t, s, bob); got != roster.AtRisk {
		t.Fatalf("expected Bob AtRisk, got %s", got)
	}
	// two players remain and only one is at risk
	mustPhase(t, s, PhaseAnswerDisplayed)
	mustAdvance(t, s, PhaseNewRound)

	turn(t, s, carol, true)
	mustPhase(t, s, PhaseAnswerDisplayed)
	if got := state(t, s, carol); got != roster.Active {
		t.Fatalf("expected Carol Active, got %s", got)
	}
	mustAdvance(t, s, PhaseNewRound)

	// eliminated players are skipped
	openQuestion(t, s, bob)
}

func TestSecondAtRiskStartsShowdown(t *testing.T) {
	s, _ := startedSession(t, "Alice", "Bob", "Carol")

	turn(t, s, alice, false)
	mustAdvance(t, s, PhaseNewRound)
	turn(t, s, bob, false)
	mustAdvance(t, s, PhaseNewEliminationRound)

	snap := s.Snapshot()
	if len(snap.EliminationPair) != 2 || snap.EliminationPair[0] != alice || snap.EliminationPair[1] != bob {
		t.Fatalf("expected Alice and Bob in the showdown, got %v", snap.EliminationPair)
	}
	if snap.CurrentPlayer != nil {
		t.Fatalf("no single player is on the clock in a showdown, got %d", *snap.CurrentPlayer)
	}
	if snap.Round == nil || snap.Round.Kind != RoundElimination {
		t.Fatalf("expected an elimination round, got %+v", snap.Round)
	}
}

func TestGameOverWhenOnePlayerRemains(t *testing.T) {
	s, _ := startedSession(t, "Alice", "Bob")
	ch, cancel := s.Subscribe(64)
	defer cancel()

	turn(t, s, alice, false)
	mustAdvance(t, s, PhaseNewRound)
	turn(t, s, bob, true)
	mustAdvance(t, s, PhaseNewRound)
	turn(t, s, alice, false)

	// the answer screen is skipped once the game is decided
	mustPhase(t, s, PhaseGameOver)
	snap := s.Snapshot()
	if snap.Winner == nil || *snap.Winner != bob {
		t.Fatalf("expected Bob to win, got %v", snap.Winner)
	}

	var sawGameOver bool
	for len(ch) > 0 {
		n := <-ch
		for _, e := range n.Events {
			if e.Kind == EventGameOver {
				sawGameOver = true
				if e.PlayerID == nil || *e.PlayerID != bob {
					t.Fatalf("expected game_over to name Bob, got %v", e.PlayerID)
				}
			}
		}
	}
	if !sawGameOver {
		t.Fatal("expected a game_over event")
	}

	mustAdvance(t, s, PhasePlayAgainPrompt)
	if err := s.Restart(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	mustPhase(t, s, PhasePregame)
}

func TestGameNeverOverWithTwoRemaining(t *testing.T) {
	s, _ := startedSession(t, "Alice", "Bob", "Carol")
	turn(t, s, alice, false)
	mustAdvance(t, s, PhaseNewRound)
	turn(t, s, bob, true)
	mustAdvance(t, s, PhaseNewRound)
	turn(t, s, carol, true)
	mustAdvance(t, s, PhaseNewRound)
	turn(t, s, alice, false)

	if s.GetPhase() == PhaseGameOver {
		t.Fatal("game over with two players remaining")
	}
	remaining := 0
	for _, p := range s.Players() {
		if p.State != roster.Eliminated {
			remaining++
		}
	}
	if remaining != 2 {
		t.Fatalf("expected 2 remaining, got %d", remaining)
	}
}

func TestAnswerRevealEvent(t *testing.T) {
	s, _ := startedSession(t, "Alice", "Bob")
	openQuestion(t, s, alice)
	ch, cancel := s.Subscribe(4)
	defer cancel()

	answer := "  LE PASSÉ   composé "
	if err := s.SubmitAnswer(alice, &answer); err != nil {
		t.Fatalf("answer: %v", err)
	}
	n := <-ch
	var found bool
	for _, e := range n.Events {
		if e.Kind != EventAnswerRevealed {
			continue
		}
		found = true
		if e.Correct == nil || !*e.Correct {
			t.Fatalf("expected the answer to be judged correct, got %+v", e)
		}
		if e.Answer != right || e.Given == nil || *e.Given != answer {
			t.Fatalf("unexpected reveal %+v", e)
		}
	}
	if !found {
		t.Fatalf("expected an answer_revealed event, got %+v", n.Events)
	}
}
