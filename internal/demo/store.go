// Package demo holds the example routes served by the fast-dispatch binary.
package demo

import (
	"slices"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already registered")
	ErrInvalidUser    = errors.New("invalid user")
)

// User is the record kept by UserStore
type User struct {
	ID     int    `json:"id" msgpack:"id"`
	Name   string `json:"name" msgpack:"name"`
	Email  string `json:"email" msgpack:"email"`
	Age    int    `json:"age" msgpack:"age"`
	Active bool   `json:"active" msgpack:"active"`
}

// UserStore is an in-memory user table shared by every request
type UserStore struct {
	mu     sync.RWMutex
	users  map[int]User
	nextID int
}

// NewUserStore creates a store holding the given users
func NewUserStore(seed ...User) *UserStore {
	s := &UserStore{users: make(map[int]User), nextID: 1}
	for _, u := range seed {
		if _, err := s.Create(u); err != nil {
			panic(err)
		}
	}
	return s
}

// Get returns the user with id
func (s *UserStore) Get(id int) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return User{}, errors.Wrapf(ErrUserNotFound, "id %d", id)
	}
	return u, nil
}

// Create stores u under a new ID. Emails are unique, compared without case.
func (s *UserStore) Create(u User) (User, error) {
	if strings.TrimSpace(u.Name) == "" || !strings.Contains(u.Email, "@") {
		return User{}, errors.Wrapf(ErrInvalidUser, "name %q email %q", u.Name, u.Email)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return User{}, errors.Wrapf(ErrDuplicateEmail, "%s", u.Email)
		}
	}

	u.ID = s.nextID
	s.nextID++
	s.users[u.ID] = u
	return u, nil
}

// Delete removes the user with id
func (s *UserStore) Delete(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return errors.Wrapf(ErrUserNotFound, "id %d", id)
	}
	delete(s.users, id)
	return nil
}

// List returns all users ordered by ID
func (s *UserStore) List() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	slices.SortFunc(out, func(a, b User) int { return a.ID - b.ID })
	return out
}

// Len returns the number of stored users
func (s *UserStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}
