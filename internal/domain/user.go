package domain

type ContextKey string

const UserContextKey ContextKey = "user"

// User is the caller as described by the verified token. Orders record its ID
// as the actor of every change.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Roles carried in the token role claim.
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
	RoleCustomer = "customer"
)

// KnownRole reports whether role may appear in a token.
func KnownRole(role string) bool {
	switch role {
	case RoleAdmin, RoleOperator, RoleCustomer:
		return true
	}
	return false
}

// CanOperate reports whether the user may work the dispatch console.
func (u *User) CanOperate() bool {
	return u.Role == RoleAdmin || u.Role == RoleOperator
}
