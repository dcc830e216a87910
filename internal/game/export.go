package game

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MysteryBlokHed/alheure/internal/roster"
)

// ExportResults appends the results of the session's game to a text file.
// Each finished game gets its own block, so one file collects a whole
// evening of play.
func ExportResults(s *Session, filename string) error {
	s.mu.Lock()
	text := s.resultsLocked(time.Now())
	s.mu.Unlock()
	return appendResults(filename, text)
}

func appendResults(filename, text string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	if _, err := file.WriteString(text); err != nil {
		return fmt.Errorf("failed to write to file: %w", err)
	}
	return nil
}

func (s *Session) resultsLocked(now time.Time) string {
	names := make(map[int]string)
	for p := range s.roster.All() {
		names[p.ID] = p.Name
	}
	name := func(id int) string {
		if n, ok := names[id]; ok {
			return n
		}
		return fmt.Sprintf("#%d", id)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("À l'heure Game Results - Session %s\n", s.Code))
	sb.WriteString(fmt.Sprintf("Started: %s\n", s.CreatedAt.Local().Format("2006-01-02 15:04:05")))
	sb.WriteString(strings.Repeat("=", 50) + "\n\n")

	sb.WriteString("Players:\n")
	for p := range s.roster.All() {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", p.Name, p.State))
	}
	sb.WriteString("\n")

	for _, r := range s.rounds {
		switch r.Kind {
		case RoundElimination:
			pair := make([]string, len(r.Pair))
			for i, id := range r.Pair {
				pair[i] = name(id)
			}
			sb.WriteString(fmt.Sprintf("Round %d: showdown %s\n", r.Number, strings.Join(pair, " vs ")))
		default:
			who := "?"
			if r.PlayerID != nil {
				who = name(*r.PlayerID)
			}
			sb.WriteString(fmt.Sprintf("Round %d: %s\n", r.Number, who))
		}
		if q := r.Question; q != nil {
			sb.WriteString(fmt.Sprintf("  [%s] \"%s\" -> %s\n", q.Category, q.Prompt, q.Answer))
		}
	}
	if len(s.rounds) > 0 {
		sb.WriteString("\n")
	}

	switch {
	case s.winner != nil:
		sb.WriteString(fmt.Sprintf("Winner: %s\n", name(*s.winner)))
	case roster.Count(s.roster.Remaining()) == 0 && s.phase == PhaseGameOver:
		sb.WriteString("No winner\n")
	}
	sb.WriteString(fmt.Sprintf("Game ended at %s\n", now.Format("2006-01-02 15:04:05")))
	sb.WriteString(strings.Repeat("=", 50) + "\n\n")
	return sb.String()
}
