package domain

import "testing"

func TestParseRole(t *testing.T) {
	if role, ok := ParseRole("farmer"); !ok || role != RoleFarmer {
		t.Errorf("expected farmer role, got %q (ok=%v)", role, ok)
	}
	if role, ok := ParseRole("doctor"); !ok || role != RoleDoctor {
		t.Errorf("expected doctor role, got %q (ok=%v)", role, ok)
	}
	for _, bad := range []string{"", "admin", "Farmer"} {
		if _, ok := ParseRole(bad); ok {
			t.Errorf("expected %q to be rejected", bad)
		}
	}
}

func TestDashboardFallback(t *testing.T) {
	if RoleDoctor.Dashboard() != "doctor" {
		t.Error("expected doctors to land on the doctor dashboard")
	}
	if RoleFarmer.Dashboard() != "farmer" {
		t.Error("expected farmers to land on the farmer dashboard")
	}
	// Accounts with no role fall back to the farmer dashboard.
	if RoleUnassigned.Dashboard() != "farmer" {
		t.Error("expected unassigned users to fall back to the farmer dashboard")
	}
}
