package cont

import (
	"context"

	"promoreg/entity"
)

type ctxKey string

const UserDataKey ctxKey = "userData"

func PutUser(c context.Context, user *entity.User) context.Context {
	return context.WithValue(c, UserDataKey, *user)
}

// GetUser returns the authenticated user, or nil when the request is anonymous.
func GetUser(c context.Context) *entity.User {
	user, ok := c.Value(UserDataKey).(entity.User)
	if !ok {
		return nil
	}
	return &user
}

// Caller is the identity handed to the registry; empty for anonymous requests.
func Caller(c context.Context) string {
	if user := GetUser(c); user != nil {
		return user.Username
	}
	return ""
}
