package enums

// PrincipalRole is the role claim the identity provider stamps on access tokens.
type PrincipalRole string

const (
	PrincipalRoleOrganizer PrincipalRole = "organizer"
	PrincipalRoleAdmin     PrincipalRole = "admin"
)

var validPrincipalRoles = []PrincipalRole{
	PrincipalRoleOrganizer,
	PrincipalRoleAdmin,
}

// IsValid reports whether the value is a known PrincipalRole.
func (r PrincipalRole) IsValid() bool {
	return known(r, validPrincipalRoles)
}
