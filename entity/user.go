package entity

// User is an authenticated API principal. Username is passed to the registry as
// the caller identity, so only the user whose name equals the owner may mutate.
type User struct {
	Username string `json:"username" bson:"username" validate:"required"`
	Name     string `json:"name" bson:"name" validate:"omitempty"`
	Token    string `json:"token" bson:"token" validate:"required,min=1"`
	Disabled bool   `json:"disabled" bson:"disabled"`
}
