package enums

import "fmt"

// Role gates the HTTP surface. Producers may only submit jobs.
type Role string

const (
	RoleOperator Role = "operator"
	RoleProducer Role = "producer"
)

var validRoles = []Role{
	RoleOperator,
	RoleProducer,
}

func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

func ParseRole(value string) (Role, error) {
	for _, candidate := range validRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}
