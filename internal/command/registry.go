// Package command implements the persistent chat command registry and its
// dispatcher. The in-memory table is a cache of the cmd rows, rebuilt on
// startup and kept in step with the store on every mutation.
package command

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"twitch-economy-bot/internal/model"
	"twitch-economy-bot/internal/telemetry"
)

// MaxCost is the upper bound for a command's cost.
const MaxCost = 1_000_000_000

// Errors for registry operations.
var (
	ErrDuplicateName    = errors.New("command name already exists")
	ErrInvalidName      = errors.New("command name must be alphanumeric")
	ErrInvalidCost      = errors.New("command cost out of range")
	ErrEmptyDescription = errors.New("command description cannot be empty")
	ErrNotFound         = errors.New("command not found")
	ErrNoHandler        = errors.New("no handler for command category")
)

var nameRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Store is the persistence boundary for dynamic commands.
type Store interface {
	Insert(ctx context.Context, cmd *model.Command) error
	Update(ctx context.Context, cmd *model.Command) error
	Delete(ctx context.Context, name string) error
	SetEnabled(ctx context.Context, name string, enabled bool) error
	IncrementUsed(ctx context.Context, name string) error
	GetAll(ctx context.Context) ([]*model.Command, error)
}

// Invocation carries one resolved chat command to its handler.
type Invocation struct {
	Command *model.Command
	User    string
	Args    []string
}

// Handler executes one resolved invocation.
type Handler func(ctx context.Context, inv *Invocation) error

// Registry is the live dispatch table. Dynamic commands resolve through one
// generic handler per category; built-ins bind their own Go handler and are
// never persisted.
type Registry struct {
	store  Store
	prefix string

	mu       sync.RWMutex
	commands map[string]*model.Command
	aliases  map[string]string
	builtins map[string]Handler
	handlers map[string]Handler
}

// NewRegistry creates an empty registry. Call Load to populate it from the
// store.
func NewRegistry(store Store, prefix string) *Registry {
	return &Registry{
		store:    store,
		prefix:   prefix,
		commands: make(map[string]*model.Command),
		aliases:  make(map[string]string),
		builtins: make(map[string]Handler),
		handlers: make(map[string]Handler),
	}
}

// Load rebuilds the dispatch table from the store.
func (r *Registry) Load(ctx context.Context) error {
	stored, err := r.store.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load commands: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for name := range r.commands {
		if r.commands[name].Dynamic {
			delete(r.commands, name)
		}
	}
	// rebuild aliases from scratch, the surviving entries are built-ins
	r.aliases = make(map[string]string)
	for name, cmd := range r.commands {
		for _, alias := range cmd.Aliases {
			r.aliases[alias] = name
		}
	}

	for _, cmd := range stored {
		r.commands[cmd.Name] = cmd
		for _, alias := range cmd.Aliases {
			r.aliases[alias] = cmd.Name
		}
	}

	if telemetry.KnownCommandCount != nil {
		telemetry.KnownCommandCount.Set(float64(len(r.commands)))
	}
	log.Info().Int("count", len(stored)).Msg("command table loaded")
	return nil
}

// RegisterHandler binds the generic handler for a dynamic command category.
func (r *Registry) RegisterHandler(category string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[category] = h
}

// RegisterBuiltin installs a built-in command. Built-ins live only in
// memory, shadow no dynamic command and cannot be removed at runtime.
func (r *Registry) RegisterBuiltin(cmd *model.Command, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.commands[cmd.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateName, cmd.Name)
	}
	cmd.Dynamic = false
	cmd.Category = model.CategoryBuiltin
	cmd.Enabled = true
	r.commands[cmd.Name] = cmd
	r.builtins[cmd.Name] = h
	for _, alias := range cmd.Aliases {
		r.aliases[alias] = cmd.Name
	}
	return nil
}

func validate(cmd *model.Command) error {
	if !nameRe.MatchString(cmd.Name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, cmd.Name)
	}
	for _, alias := range cmd.Aliases {
		if !nameRe.MatchString(alias) {
			return fmt.Errorf("%w: alias %q", ErrInvalidName, alias)
		}
	}
	if cmd.Cost < 0 || cmd.Cost > MaxCost {
		return fmt.Errorf("%w: %d", ErrInvalidCost, cmd.Cost)
	}
	if strings.TrimSpace(cmd.Description) == "" {
		return ErrEmptyDescription
	}
	return nil
}

func (r *Registry) taken(name string) bool {
	if _, exists := r.commands[name]; exists {
		return true
	}
	_, exists := r.aliases[name]
	return exists
}

// Add validates and persists a dynamic command, then makes it dispatchable.
func (r *Registry) Add(ctx context.Context, cmd *model.Command) error {
	if err := validate(cmd); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.taken(cmd.Name) {
		return fmt.Errorf("%w: %s", ErrDuplicateName, cmd.Name)
	}
	for _, alias := range cmd.Aliases {
		if r.taken(alias) {
			return fmt.Errorf("%w: alias %s", ErrDuplicateName, alias)
		}
	}

	cmd.Dynamic = true
	if err := r.store.Insert(ctx, cmd); err != nil {
		return err
	}

	r.commands[cmd.Name] = cmd
	for _, alias := range cmd.Aliases {
		r.aliases[alias] = cmd.Name
	}
	log.Info().Str("command", cmd.Name).Str("category", cmd.Category).Msg("command added")
	return nil
}

// Update validates and persists changed fields of an existing dynamic
// command. The name itself is immutable; aliases may change.
func (r *Registry) Update(ctx context.Context, cmd *model.Command) error {
	if err := validate(cmd); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.commands[cmd.Name]
	if !exists || !current.Dynamic {
		return fmt.Errorf("%w: %s", ErrNotFound, cmd.Name)
	}
	for _, alias := range cmd.Aliases {
		if owner, exists := r.aliases[alias]; exists && owner != cmd.Name {
			return fmt.Errorf("%w: alias %s", ErrDuplicateName, alias)
		}
		if _, exists := r.commands[alias]; exists {
			return fmt.Errorf("%w: alias %s", ErrDuplicateName, alias)
		}
	}

	cmd.Dynamic = true
	cmd.Used = current.Used
	if err := r.store.Update(ctx, cmd); err != nil {
		return err
	}

	for _, alias := range current.Aliases {
		delete(r.aliases, alias)
	}
	r.commands[cmd.Name] = cmd
	for _, alias := range cmd.Aliases {
		r.aliases[alias] = cmd.Name
	}
	return nil
}

// Remove deletes a dynamic command from the store and the dispatch table.
func (r *Registry) Remove(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cmd, exists := r.commands[name]
	if !exists || !cmd.Dynamic {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	if err := r.store.Delete(ctx, name); err != nil {
		return err
	}

	delete(r.commands, name)
	for _, alias := range cmd.Aliases {
		delete(r.aliases, alias)
	}
	log.Info().Str("command", name).Msg("command removed")
	return nil
}

// Enable makes a command dispatchable again.
func (r *Registry) Enable(ctx context.Context, name string) error {
	return r.setEnabled(ctx, name, true)
}

// Disable stops a command from resolving. An invocation already in flight is
// not cancelled. Disabling a built-in only hides it; its handler stays bound
// and re-enabling brings it back.
func (r *Registry) Disable(ctx context.Context, name string) error {
	return r.setEnabled(ctx, name, false)
}

func (r *Registry) setEnabled(ctx context.Context, name string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cmd, exists := r.commands[name]
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	// Built-ins are never persisted; their flag lives only in memory.
	if cmd.Dynamic {
		if err := r.store.SetEnabled(ctx, name, enabled); err != nil {
			return err
		}
	}
	cmd.Enabled = enabled
	return nil
}

// Get returns a command by name or alias.
func (r *Registry) Get(name string) (*model.Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolve(name)
}

// All returns a snapshot of every registered command.
func (r *Registry) All() []*model.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	commands := make([]*model.Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		commands = append(commands, cmd)
	}
	return commands
}

func (r *Registry) resolve(name string) (*model.Command, bool) {
	if cmd, exists := r.commands[name]; exists {
		return cmd, true
	}
	if canonical, exists := r.aliases[name]; exists {
		return r.commands[canonical], true
	}
	return nil, false
}

// Dispatch parses a chat line and runs its command. Lines without the
// prefix, unknown names and disabled commands are silently ignored; case
// matters. The used counter is bumped after the handler returns cleanly.
func (r *Registry) Dispatch(ctx context.Context, user, message string) error {
	tokens := strings.Fields(message)
	if len(tokens) == 0 || !strings.HasPrefix(tokens[0], r.prefix) {
		return nil
	}
	name := strings.TrimPrefix(tokens[0], r.prefix)
	if name == "" {
		return nil
	}

	r.mu.RLock()
	cmd, exists := r.resolve(name)
	if !exists || !cmd.Enabled {
		r.mu.RUnlock()
		return nil
	}
	handler := r.builtins[cmd.Name]
	if cmd.Dynamic {
		handler = r.handlers[cmd.Category]
	}
	r.mu.RUnlock()

	if handler == nil {
		return fmt.Errorf("%w: %s", ErrNoHandler, cmd.Category)
	}

	telemetry.RecordDispatch(cmd.Name, cmd.Category)
	inv := &Invocation{Command: cmd, User: user, Args: tokens[1:]}
	if err := handler(ctx, inv); err != nil {
		telemetry.RecordFailure(cmd.Name)
		return fmt.Errorf("command %s: %w", cmd.Name, err)
	}

	r.mu.Lock()
	cmd.Used++
	r.mu.Unlock()
	if cmd.Dynamic {
		if err := r.store.IncrementUsed(ctx, cmd.Name); err != nil {
			log.Warn().Err(err).Str("command", cmd.Name).Msg("usage counter not updated")
		}
	}
	return nil
}
