package auth

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// User is an account that can submit negotiations. Password hashes never
// leave this package.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	CreatedAt time.Time `json:"createdAt"`

	passwordHash []byte
}

// UserStore keeps accounts in memory, keyed by lowercased email.
type UserStore struct {
	mu      sync.RWMutex
	byEmail map[string]*User
	byID    map[string]*User

	clock func() time.Time
}

func NewUserStore() *UserStore {
	return &UserStore{
		byEmail: map[string]*User{},
		byID:    map[string]*User{},
		clock:   time.Now,
	}
}

// Register creates an account with a bcrypt password hash.
func (s *UserStore) Register(email, fullName, password string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return User{}, errors.New("a valid email is required")
	}
	if len(password) < 8 {
		return User{}, errors.New("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byEmail[email]; exists {
		return User{}, ErrEmailTaken
	}
	u := &User{
		ID:           uuid.NewString(),
		Email:        email,
		FullName:     strings.TrimSpace(fullName),
		CreatedAt:    s.clock().UTC(),
		passwordHash: hash,
	}
	s.byEmail[email] = u
	s.byID[u.ID] = u
	return *u, nil
}

// Authenticate checks email+password and returns the account on success.
// Lookup misses and bad passwords are indistinguishable to the caller.
func (s *UserStore) Authenticate(email, password string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	s.mu.RLock()
	u, ok := s.byEmail[email]
	s.mu.RUnlock()
	if !ok {
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(u.passwordHash, []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return *u, nil
}

// ByID returns the account for a verified token's subject.
func (s *UserStore) ByID(id string) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok {
		return User{}, false
	}
	return *u, true
}
