package game

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/MysteryBlokHed/alheure/internal/bank"
	"github.com/MysteryBlokHed/alheure/internal/roster"
)

type Phase string

const (
	// Before the game has started, roster being edited
	PhasePregame Phase = "Pregame"
	// The beginning of a new round
	PhaseNewRound Phase = "NewRound"
	// Before the question has been revealed
	PhasePreQuestion Phase = "PreQuestion"
	// Question onscreen, player must answer
	PhaseQuestionDisplayed Phase = "QuestionDisplayed"
	// Answer is onscreen
	PhaseAnswerDisplayed Phase = "AnswerDisplayed"

	PhaseNewEliminationRound          Phase = "NewEliminationRound"
	PhaseEliminationCategoryDisplayed Phase = "EliminationCategoryDisplayed"
	PhasePreEliminationQuestion       Phase = "PreEliminationQuestion"
	PhaseEliminationQuestionDisplayed Phase = "EliminationQuestionDisplayed"
	PhaseEliminationPlayerAnswered    Phase = "EliminationPlayerAnswered"
	PhaseEliminationRoundFailed       Phase = "EliminationRoundFailed"
	PhaseEliminationAnswerDisplayed   Phase = "EliminationAnswerDisplayed"

	// Game is done
	PhaseGameOver        Phase = "GameOver"
	PhasePlayAgainPrompt Phase = "PlayAgainPrompt"
	// A fatal error ended the game; only a restart leaves this phase
	PhaseFaulted Phase = "Faulted"
)

// Elimination reports whether the phase belongs to a showdown.
func (p Phase) Elimination() bool {
	switch p {
	case PhaseNewEliminationRound,
		PhaseEliminationCategoryDisplayed,
		PhasePreEliminationQuestion,
		PhaseEliminationQuestionDisplayed,
		PhaseEliminationPlayerAnswered,
		PhaseEliminationRoundFailed,
		PhaseEliminationAnswerDisplayed:
		return true
	}
	return false
}

// SessionConfig tunes a single game. Times are in seconds; zero disables the
// server-side clock for that window.
type SessionConfig struct {
	AnswerTime     int    `json:"answerTime"`
	ShowdownTime   int    `json:"showdownTime"`
	BuzzAnswerTime int    `json:"buzzAnswerTime"`
	CategoryPolicy string `json:"categoryPolicy"`
}

func (c SessionConfig) Validate() error {
	if c.AnswerTime < 0 || c.ShowdownTime < 0 || c.BuzzAnswerTime < 0 {
		return fmt.Errorf("%w: answer times must not be negative", ErrInvalidConfig)
	}
	if c.CategoryPolicy != "" && !slices.Contains(Policies, c.CategoryPolicy) {
		return fmt.Errorf("%w: unknown category policy %q (want one of %s)", ErrInvalidConfig, c.CategoryPolicy, strings.Join(Policies, ", "))
	}
	return nil
}

// ConfigOverrides is a partial SessionConfig sent by a client. Fields left
// out keep the server's value.
type ConfigOverrides struct {
	AnswerTime     *int    `json:"answerTime"`
	ShowdownTime   *int    `json:"showdownTime"`
	BuzzAnswerTime *int    `json:"buzzAnswerTime"`
	CategoryPolicy *string `json:"categoryPolicy"`
}

// Apply returns base with the set fields replaced.
func (o *ConfigOverrides) Apply(base SessionConfig) SessionConfig {
	if o == nil {
		return base
	}
	if o.AnswerTime != nil {
		base.AnswerTime = *o.AnswerTime
	}
	if o.ShowdownTime != nil {
		base.ShowdownTime = *o.ShowdownTime
	}
	if o.BuzzAnswerTime != nil {
		base.BuzzAnswerTime = *o.BuzzAnswerTime
	}
	if o.CategoryPolicy != nil {
		base.CategoryPolicy = *o.CategoryPolicy
	}
	return base
}

type RoundKind string

const (
	RoundNormal      RoundKind = "normal"
	RoundElimination RoundKind = "elimination"
)

type Round struct {
	Number   int            `json:"number"`
	Kind     RoundKind      `json:"kind"`
	PlayerID *int           `json:"playerId,omitempty"`
	Pair     []int          `json:"pair,omitempty"`
	Question *bank.Question `json:"-"`
}

// Buzz is one entry of a showdown's append-only buzz log. Seq is assigned on
// receipt and is the only ordering that counts; Reported is whatever the
// device sent and is kept for diagnostics.
type Buzz struct {
	Seq      uint64 `json:"seq"`
	PlayerID int    `json:"playerId"`
	Reported int64  `json:"reported"`
	Accepted bool   `json:"accepted"`
}

type EventKind string

const (
	EventPhaseChanged     EventKind = "phase_changed"
	EventCategoryRevealed EventKind = "category_revealed"
	EventQuestionRevealed EventKind = "question_revealed"
	EventAnswerRevealed   EventKind = "answer_revealed"
	EventPlayerAtRisk     EventKind = "player_at_risk"
	EventPlayerRestored   EventKind = "player_restored"
	EventPlayerEliminated EventKind = "player_eliminated"
	EventShowdownStarted  EventKind = "showdown_started"
	EventBuzzAccepted     EventKind = "buzz_accepted"
	EventGameOver         EventKind = "game_over"
	EventFault            EventKind = "fault"
)

type Event struct {
	Kind     EventKind     `json:"kind"`
	Phase    Phase         `json:"phase,omitempty"`
	PlayerID *int          `json:"playerId,omitempty"`
	Pair     []int         `json:"pair,omitempty"`
	Category bank.Category `json:"category,omitempty"`
	Answer   string        `json:"answer,omitempty"`
	Given    *string       `json:"given,omitempty"`
	Correct  *bool         `json:"correct,omitempty"`
	Code     Code          `json:"code,omitempty"`
}

// QuestionView is the part of the current question the phase allows to be
// shown.
type QuestionView struct {
	Category bank.Category `json:"category"`
	Prompt   string        `json:"prompt,omitempty"`
	Answer   string        `json:"answer,omitempty"`
}

type Snapshot struct {
	Code            string          `json:"sessionCode"`
	Version         uint64          `json:"version"`
	Phase           Phase           `json:"phase"`
	Round           *Round          `json:"round,omitempty"`
	Question        *QuestionView   `json:"question,omitempty"`
	CurrentPlayer   *int            `json:"currentPlayer,omitempty"`
	Roster          []roster.Player `json:"roster"`
	EliminationPair []int           `json:"eliminationPair,omitempty"`
	Buzzer          *int            `json:"buzzer,omitempty"`
	Winner          *int            `json:"winner,omitempty"`
	Deadline        *time.Time      `json:"deadline,omitempty"`
	Fault           Code            `json:"fault,omitempty"`
}

// Notification is pushed to subscribers after every applied transition.
type Notification struct {
	Snapshot Snapshot `json:"state"`
	Events   []Event  `json:"events"`
}

func ptr[T any](v T) *T {
	return &v
}
