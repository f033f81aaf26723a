package game

import (
	"fmt"
	"sort"
	"sync"

	"telegram-wager-bot/internal/model"
)

// Registry manages game registration and lookup by kind or command.
type Registry struct {
	games    map[model.GameKind]Game
	commands map[string]model.GameKind
	mu       sync.RWMutex
}

// NewRegistry creates a registry holding the given games.
func NewRegistry(games ...Game) (*Registry, error) {
	r := &Registry{
		games:    make(map[model.GameKind]Game),
		commands: make(map[string]model.GameKind),
	}
	for _, g := range games {
		if err := r.Register(g); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a game to the registry.
// If a game with the same kind already exists, it will be replaced.
func (r *Registry) Register(g Game) error {
	if g == nil {
		return fmt.Errorf("cannot register nil game")
	}
	if g.Kind() == "" {
		return fmt.Errorf("game kind cannot be empty")
	}
	if g.Command() == "" {
		return fmt.Errorf("game command cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.games[g.Kind()]; ok {
		delete(r.commands, old.Command())
	}
	r.games[g.Kind()] = g
	r.commands[g.Command()] = g.Kind()
	return nil
}

// Get retrieves a game by kind.
func (r *Registry) Get(kind model.GameKind) (Game, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.games[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGame, kind)
	}
	return g, nil
}

// ByCommand retrieves a game by its chat command.
func (r *Registry) ByCommand(command string) (Game, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kind, ok := r.commands[command]
	if !ok {
		return nil, false
	}
	return r.games[kind], true
}

// List returns all registered games ordered by command.
// The returned slice is a copy, so modifications won't affect the registry.
func (r *Registry) List() []Game {
	r.mu.RLock()
	defer r.mu.RUnlock()

	games := make([]Game, 0, len(r.games))
	for _, g := range r.games {
		games = append(games, g)
	}
	sort.Slice(games, func(i, j int) bool { return games[i].Command() < games[j].Command() })
	return games
}

// Count returns the number of registered games.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.games)
}
