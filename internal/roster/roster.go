// Package roster tracks the players of a game and their lifecycle.
package roster

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"

	"golang.org/x/text/cases"
)

var (
	ErrInvalidName   = errors.New("invalid name")
	ErrDuplicateName = errors.New("duplicate name")
	ErrUnknownPlayer = errors.New("unknown player")
	ErrSealed        = errors.New("roster is sealed")
	ErrLifecycle     = errors.New("invalid lifecycle transition")
)

// Lifecycle is a player's standing in the game.
type Lifecycle int

const (
	// Playing as usual
	Active Lifecycle = iota
	// Must win a showdown to stay in
	AtRisk
	// No longer playing
	Eliminated
)

func (l Lifecycle) String() string {
	switch l {
	case Active:
		return "Active"
	case AtRisk:
		return "AtRisk"
	case Eliminated:
		return "Eliminated"
	}
	return fmt.Sprintf("Lifecycle(%d)", int(l))
}

func (l Lifecycle) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

type Player struct {
	ID    int       `json:"id"`
	Name  string    `json:"name"`
	Valid bool      `json:"valid"`
	State Lifecycle `json:"state"`

	// order in which the player was last put at risk
	marked uint64
}

// Roster is the ordered set of players. It is not safe for concurrent use;
// the owning game session serializes access.
type Roster struct {
	players []*Player
	nextID  int
	marks   uint64
	sealed  bool
}

// fold maps a name to its case-insensitive comparison key. Casers carry
// state, so each call gets its own.
func fold(s string) string {
	return cases.Fold().String(s)
}

// New returns a roster holding the default empty placeholder row.
func New() *Roster {
	r := &Roster{}
	r.AddPlaceholder()
	return r
}

func (r *Roster) alloc(name string, valid bool) *Player {
	p := &Player{ID: r.nextID, Name: name, Valid: valid, State: Active}
	r.nextID++
	r.players = append(r.players, p)
	return p
}

// AddPlayer validates and appends a named player.
func (r *Roster) AddPlayer(name string) (Player, error) {
	if r.sealed {
		return Player{}, ErrSealed
	}
	name, err := r.validate(-1, name)
	if err != nil {
		return Player{}, err
	}
	return *r.alloc(name, true), nil
}

// AddPlaceholder appends an empty, invalid row to be filled in with Rename.
func (r *Roster) AddPlaceholder() Player {
	return *r.alloc("", false)
}

// Rename stores name on the player and records whether it passes
// validation. The validation error, if any, is returned alongside the
// updated player.
func (r *Roster) Rename(id int, name string) (Player, error) {
	if r.sealed {
		return Player{}, ErrSealed
	}
	p := r.find(id)
	if p == nil {
		return Player{}, fmt.Errorf("%w: %d", ErrUnknownPlayer, id)
	}
	clean, err := r.validate(id, name)
	if err != nil {
		p.Name = name
		p.Valid = false
		return *p, err
	}
	p.Name = clean
	p.Valid = true
	return *p, nil
}

func (r *Roster) validate(self int, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrInvalidName
	}
	key := fold(name)
	for _, p := range r.players {
		if p.ID == self || !p.Valid {
			continue
		}
		if fold(p.Name) == key {
			return "", fmt.Errorf("%w: %s", ErrDuplicateName, name)
		}
	}
	return name, nil
}

func (r *Roster) RemovePlayer(id int) error {
	if r.sealed {
		return ErrSealed
	}
	i := slices.IndexFunc(r.players, func(p *Player) bool { return p.ID == id })
	if i < 0 {
		return fmt.Errorf("%w: %d", ErrUnknownPlayer, id)
	}
	r.players = slices.Delete(r.players, i, i+1)
	return nil
}

// Seal drops rows that never got a valid name and freezes membership.
func (r *Roster) Seal() {
	r.players = slices.DeleteFunc(r.players, func(p *Player) bool { return !p.Valid })
	r.sealed = true
}

func (r *Roster) Sealed() bool {
	return r.sealed
}

// Reset returns every player to Active and reopens the roster for editing,
// with an empty placeholder row to fill in as after New.
func (r *Roster) Reset() {
	for _, p := range r.players {
		p.State = Active
		p.marked = 0
	}
	r.marks = 0
	r.sealed = false
	if !slices.ContainsFunc(r.players, func(p *Player) bool { return !p.Valid }) {
		r.AddPlaceholder()
	}
}

func (r *Roster) find(id int) *Player {
	for _, p := range r.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Get returns a copy of the player with the given id.
func (r *Roster) Get(id int) (Player, error) {
	p := r.find(id)
	if p == nil {
		return Player{}, fmt.Errorf("%w: %d", ErrUnknownPlayer, id)
	}
	return *p, nil
}

func (r *Roster) transition(id int, from, to Lifecycle) error {
	p := r.find(id)
	if p == nil {
		return fmt.Errorf("%w: %d", ErrUnknownPlayer, id)
	}
	if p.State != from {
		return fmt.Errorf("%w: player %d is %s, cannot become %s", ErrLifecycle, id, p.State, to)
	}
	p.State = to
	return nil
}

func (r *Roster) MarkAtRisk(id int) error {
	if err := r.transition(id, Active, AtRisk); err != nil {
		return err
	}
	r.marks++
	r.find(id).marked = r.marks
	return nil
}

func (r *Roster) MarkEliminated(id int) error {
	return r.transition(id, AtRisk, Eliminated)
}

// MarkActive restores an at-risk player. Only a won showdown does this.
func (r *Roster) MarkActive(id int) error {
	if err := r.transition(id, AtRisk, Active); err != nil {
		return err
	}
	r.find(id).marked = 0
	return nil
}

func (r *Roster) filter(keep func(*Player) bool) iter.Seq[Player] {
	return func(yield func(Player) bool) {
		for _, p := range r.players {
			if keep(p) && !yield(*p) {
				return
			}
		}
	}
}

// All yields every player in insertion order.
func (r *Roster) All() iter.Seq[Player] {
	return r.filter(func(*Player) bool { return true })
}

// Valid yields players whose name passed validation.
func (r *Roster) Valid() iter.Seq[Player] {
	return r.filter(func(p *Player) bool { return p.Valid })
}

func (r *Roster) Active() iter.Seq[Player] {
	return r.filter(func(p *Player) bool { return p.State == Active })
}

func (r *Roster) AtRisk() iter.Seq[Player] {
	return r.filter(func(p *Player) bool { return p.State == AtRisk })
}

// Remaining yields players still in the game, Active or AtRisk.
func (r *Roster) Remaining() iter.Seq[Player] {
	return r.filter(func(p *Player) bool { return p.State != Eliminated })
}

// AtRiskByMark lists at-risk players in the order they were put at risk.
func (r *Roster) AtRiskByMark() []Player {
	out := slices.Collect(r.AtRisk())
	slices.SortStableFunc(out, func(a, b Player) int {
		switch {
		case a.marked < b.marked:
			return -1
		case a.marked > b.marked:
			return 1
		}
		return 0
	})
	return out
}

// Count returns the number of elements in seq.
func Count(seq iter.Seq[Player]) int {
	n := 0
	for range seq {
		n++
	}
	return n
}
