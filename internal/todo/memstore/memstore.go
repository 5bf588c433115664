// Package memstore keeps todos in process memory. Expired records are hidden on
// read and dropped on the next write.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jaxxstorm/atlastodo/internal/todo"
)

type Store struct {
	mu    sync.Mutex
	todos map[string]todo.Todo
	now   func() time.Time
}

func New() *Store {
	return &Store{todos: map[string]todo.Todo{}, now: time.Now}
}

func (s *Store) List(ctx context.Context) ([]todo.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	out := make([]todo.Todo, 0, len(s.todos))
	for _, t := range s.todos {
		if !t.Expired(now) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) Create(ctx context.Context, in todo.CreateInput) (todo.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	t, err := todo.NewTodo(in, now)
	if err != nil {
		return todo.Todo{}, err
	}
	s.sweep(now)
	s.todos[t.ID] = t
	return t, nil
}

func (s *Store) Get(ctx context.Context, id string) (todo.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(id)
}

func (s *Store) Update(ctx context.Context, id string, in todo.UpdateInput) (todo.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.lookup(id)
	if err != nil {
		return todo.Todo{}, err
	}
	updated, err := todo.Apply(t, in, s.now())
	if err != nil {
		return todo.Todo{}, err
	}
	s.todos[id] = updated
	return updated, nil
}

func (s *Store) Delete(ctx context.Context, id string) (todo.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.lookup(id)
	if err != nil {
		return todo.Todo{}, err
	}
	delete(s.todos, id)
	return t, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) lookup(id string) (todo.Todo, error) {
	if _, err := todo.ParseID(id); err != nil {
		return todo.Todo{}, err
	}
	t, ok := s.todos[id]
	if !ok || t.Expired(s.now()) {
		return todo.Todo{}, todo.NewNotFoundError()
	}
	return t, nil
}

func (s *Store) sweep(now time.Time) {
	for id, t := range s.todos {
		if t.Expired(now) {
			delete(s.todos, id)
		}
	}
}
