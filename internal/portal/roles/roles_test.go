package roles

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	for _, claim := range []string{"Admin", "Learner", "Trainer", "Employer", "LIQA", "IQA", "EQA"} {
		role, ok := Parse(claim)
		assert.True(t, ok, claim)
		assert.Equal(t, Role(claim), role)
	}

	// legacy tokens carry lowercase claims
	role, ok := Parse("iqa")
	assert.True(t, ok)
	assert.Equal(t, IQA, role)

	role, ok = Parse("superuser")
	assert.False(t, ok)
	assert.Equal(t, Guest, role)

	role, ok = Parse("")
	assert.False(t, ok)
	assert.Equal(t, Guest, role)
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name  string
		route Route
		role  Role
		want  Decision
	}{
		{"admin views sample plans", RouteSamplePlans, Admin, Allow},
		{"iqa views sample plans", RouteSamplePlans, IQA, Allow},
		{"learner blocked from sample plans", RouteSamplePlans, Learner, RedirectHome},
		{"guest blocked from sample plans", RouteSamplePlans, Guest, RedirectSignIn},
		{"guest may view sign-in", RouteSignIn, Guest, Allow},
		{"authenticated session leaves sign-in", RouteSignIn, Trainer, RedirectHome},
		{"employer views employer screen", RouteEmployerView, Employer, Allow},
		{"trainer blocked from admin settings", RouteAdminSettings, Trainer, RedirectHome},
		{"unknown route denied", Route("nonsense"), Admin, RedirectHome},
		{"unknown route denied for guest", Route("nonsense"), Guest, RedirectSignIn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.route, tt.role))
		})
	}
}

func TestHomeViewFor(t *testing.T) {
	assert.Equal(t, EQASummary, HomeViewFor(EQA))
	assert.Equal(t, LearnerPortfolio, HomeViewFor(Learner))
	assert.Equal(t, Dashboard, HomeViewFor(Admin))
	assert.Equal(t, Dashboard, HomeViewFor(IQA))
	assert.Equal(t, Dashboard, HomeViewFor(Guest))
}

func TestIsQualityAssurer(t *testing.T) {
	assert.True(t, IQA.IsQualityAssurer())
	assert.True(t, LIQA.IsQualityAssurer())
	assert.True(t, EQA.IsQualityAssurer())
	assert.False(t, Trainer.IsQualityAssurer())
	assert.False(t, Guest.IsQualityAssurer())
}
