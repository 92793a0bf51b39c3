package entities

// ActorRole is the authenticated role supplied by the identity layer.
type ActorRole string

const (
	RoleBuyer  ActorRole = "buyer"
	RoleSeller ActorRole = "seller"
	RoleAdmin  ActorRole = "admin"
)

// Actor is the authenticated caller of an operation. The identity layer is
// trusted for authentication only; ownership is always re-checked against the
// stored party references on the record itself.
type Actor struct {
	ID   string
	Role ActorRole
}

// IsAdmin reports whether the actor carries the administrative role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
