package memstorage

import (
	"context"
	"strings"
	"sync"

	"github.com/alure/alure-api/internal/domain/user"
	"github.com/alure/alure-api/internal/ierr"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository is the identity collaborator: the core never mints or
// verifies sessions itself, it only needs a user row with a bcrypt hash to
// back the is-admin capability and the hostname-reveal password re-check.
type UserRepository struct {
	mu    sync.RWMutex
	users map[string]*user.User
}

func NewUserRepository(adminUsername, adminPassword string) *UserRepository {
	repo := &UserRepository{
		users: make(map[string]*user.User),
	}

	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)

	adminUser := &user.User{
		ID:           uuid.New(),
		Username:     adminUsername,
		PasswordHash: string(hashedPassword),
		Role:         "admin",
	}
	repo.users[strings.ToLower(adminUser.Username)] = adminUser

	return repo
}

var _ user.Repository = (*UserRepository)(nil)

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[strings.ToLower(username)]
	if !ok {
		return nil, ierr.ErrUserNotFound
	}

	userCopy := *u
	return &userCopy, nil
}
