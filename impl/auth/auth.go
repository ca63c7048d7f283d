package auth

import (
	"fmt"

	"promoreg/entity"
	"promoreg/internal/config"
)

type Database interface {
	GetUser(token string) (*entity.User, error)
}

// Auth resolves bearer tokens to users: static users from the config first, then
// the users collection when a database is connected.
type Auth struct {
	users map[string]*entity.User
	db    Database
}

func New(users []config.User, db Database) *Auth {
	a := &Auth{
		users: make(map[string]*entity.User, len(users)),
		db:    db,
	}
	for _, u := range users {
		if u.Token == "" || u.Username == "" {
			continue
		}
		a.users[u.Token] = &entity.User{Username: u.Username, Token: u.Token}
	}
	return a
}

func (a *Auth) UserByToken(token string) (*entity.User, error) {
	if token == "" {
		return nil, fmt.Errorf("empty token")
	}
	if user, ok := a.users[token]; ok {
		return user, nil
	}
	if a.db == nil {
		return nil, fmt.Errorf("unknown token")
	}
	user, err := a.db.GetUser(token)
	if err != nil {
		return nil, err
	}
	if user.Disabled {
		return nil, fmt.Errorf("user %s is disabled", user.Username)
	}
	return user, nil
}
