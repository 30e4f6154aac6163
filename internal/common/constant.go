package common

// Roles assigned to user profiles. The first profile registered for a mobile
// number is the account holder, every later one is a dependent.
const (
	RolePrimary   = "SuperUser"
	RoleDependent = "FamilyUser"
)

// DisplayIDPrefix prefixes the human-typable profile identifier.
const DisplayIDPrefix = "UID-"

// DisplayIDDigits is the number of digits following DisplayIDPrefix.
const DisplayIDDigits = 7
