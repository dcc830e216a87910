package game

import (
	"errors"

	"github.com/MysteryBlokHed/alheure/internal/bank"
	"github.com/MysteryBlokHed/alheure/internal/roster"
)

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrNotHost              = errors.New("not host")
	ErrSessionClosed        = errors.New("session closed")
	ErrNotEnoughPlayers     = errors.New("at least two valid players are required")
	ErrNotYourTurn          = errors.New("player is not on the clock")
	ErrNoQuestionsRemaining = errors.New("no questions remaining")
	ErrIllegalTransition    = errors.New("illegal transition")
	ErrStaleBuzz            = errors.New("stale buzz")
	ErrGameFaulted          = errors.New("game faulted")
	ErrStaleInput           = errors.New("input sent for an outdated game state")
	ErrBuzzerClaimed        = errors.New("player already has a buzzer")
	ErrInvalidConfig        = errors.New("invalid session config")
)

// Code is a machine-readable error code sent to clients.
type Code string

const (
	CodeUnknown              Code = "UNKNOWN"
	CodeInvalidName          Code = "INVALID_NAME"
	CodeDuplicateName        Code = "DUPLICATE_NAME"
	CodeUnknownPlayer        Code = "UNKNOWN_PLAYER"
	CodeExhaustedCategory    Code = "EXHAUSTED_CATEGORY"
	CodeNoQuestionsRemaining Code = "NO_QUESTIONS_REMAINING"
	CodeIllegalTransition    Code = "ILLEGAL_TRANSITION"
	CodeStaleBuzz            Code = "STALE_BUZZ"
	CodeNotYourTurn          Code = "NOT_YOUR_TURN"
	CodeNotEnoughPlayers     Code = "NOT_ENOUGH_PLAYERS"
	CodeGameFaulted          Code = "GAME_FAULTED"
	CodeSessionNotFound      Code = "SESSION_NOT_FOUND"
	CodeSessionClosed        Code = "SESSION_CLOSED"
	CodeNotHost              Code = "NOT_HOST"
	CodeStaleInput           Code = "STALE_INPUT"
	CodeBuzzerClaimed        Code = "BUZZER_CLAIMED"
	CodeInvalidConfig        Code = "INVALID_CONFIG"
)

var codes = []struct {
	err  error
	code Code
}{
	{roster.ErrInvalidName, CodeInvalidName},
	{roster.ErrDuplicateName, CodeDuplicateName},
	{roster.ErrUnknownPlayer, CodeUnknownPlayer},
	{bank.ErrExhaustedCategory, CodeExhaustedCategory},
	{ErrNoQuestionsRemaining, CodeNoQuestionsRemaining},
	{ErrIllegalTransition, CodeIllegalTransition},
	{ErrStaleBuzz, CodeStaleBuzz},
	{ErrNotYourTurn, CodeNotYourTurn},
	{ErrNotEnoughPlayers, CodeNotEnoughPlayers},
	{ErrGameFaulted, CodeGameFaulted},
	{ErrSessionNotFound, CodeSessionNotFound},
	{ErrSessionClosed, CodeSessionClosed},
	{ErrNotHost, CodeNotHost},
	{ErrStaleInput, CodeStaleInput},
	{ErrBuzzerClaimed, CodeBuzzerClaimed},
	{ErrInvalidConfig, CodeInvalidConfig},
}

// CodeOf maps an error returned by this package to its wire code.
func CodeOf(err error) Code {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeUnknown
}

// Fatal reports whether err ends the current game.
func Fatal(err error) bool {
	return errors.Is(err, ErrIllegalTransition) || errors.Is(err, ErrNoQuestionsRemaining)
}
