package domain

// Role is the account type chosen at registration. Accounts created
// administratively can carry no role at all.
type Role string

const (
	RoleFarmer     Role = "farmer"
	RoleDoctor     Role = "doctor"
	RoleUnassigned Role = ""
)

// ParseRole maps a registration choice onto a Role. Anything outside the two
// valid choices is reported as invalid rather than silently unassigned.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleFarmer, RoleDoctor:
		return Role(s), true
	}
	return RoleUnassigned, false
}

// Dashboard returns the dashboard route for a role. Users without a role land
// on the farmer dashboard.
func (r Role) Dashboard() string {
	if r == RoleDoctor {
		return "doctor"
	}
	return "farmer"
}

type User struct {
	ID        int64  `db:"id" json:"id"`
	Username  string `db:"username" json:"username"`
	Email     string `db:"email" json:"email"`
	Password  string `db:"password" json:"password,omitempty"`
	Role      Role   `db:"role" json:"role"`
	CreatedAt string `db:"created_at" json:"created_at,omitempty"`
}

type FarmerProfile struct {
	UserID   int64  `db:"user_id" json:"user_id"`
	FarmName string `db:"farm_name" json:"farm_name"`
	Location string `db:"location" json:"location"`
}

type DoctorProfile struct {
	UserID         int64  `db:"user_id" json:"user_id"`
	Specialization string `db:"specialization" json:"specialization"`
	LicenseNumber  string `db:"license_number" json:"license_number"`
}
