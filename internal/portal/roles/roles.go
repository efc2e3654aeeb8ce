// Package roles maps a session's role claim to the screens it may reach.
// Route access is a pure function of role so the frontend can gate
// navigation without any additional fetches.
package roles

import "strings"

// Role is one of the portal's fixed account roles. The zero value means
// guest (no active session).
type Role string

const (
	Guest    Role = ""
	Admin    Role = "Admin"
	Learner  Role = "Learner"
	Trainer  Role = "Trainer"
	Employer Role = "Employer"
	LIQA     Role = "LIQA"
	IQA      Role = "IQA"
	EQA      Role = "EQA"
)

// Parse maps a token role claim to a Role, ignoring case: tokens minted by
// older portal releases carry lowercase role claims. Unknown values resolve
// to Guest.
func Parse(claim string) (Role, bool) {
	for _, r := range []Role{Admin, Learner, Trainer, Employer, LIQA, IQA, EQA} {
		if strings.EqualFold(string(r), claim) {
			return r, true
		}
	}
	return Guest, false
}

// IsQualityAssurer reports whether the role audits assessment decisions.
func (r Role) IsQualityAssurer() bool {
	return r == LIQA || r == IQA || r == EQA
}

// Route identifies a navigable screen.
type Route string

const (
	RouteSignIn        Route = "sign-in"
	RouteHome          Route = "home"
	RouteSamplePlans   Route = "sample-plans"
	RouteCourses       Route = "courses"
	RouteLearners      Route = "learners"
	RouteCPD           Route = "cpd"
	RouteSessions      Route = "sessions"
	RouteSignOffs      Route = "sign-offs"
	RouteEmployerView  Route = "employer"
	RouteAdminSettings Route = "admin-settings"
)

// routeRoles declares which roles may view each route. A nil slice means the
// route is guest-only; an authenticated session must be redirected home.
var routeRoles = map[Route][]Role{
	RouteSignIn:        nil,
	RouteHome:          {Admin, Learner, Trainer, Employer, LIQA, IQA, EQA},
	RouteSamplePlans:   {Admin, LIQA, IQA, EQA},
	RouteCourses:       {Admin, Trainer, LIQA, IQA},
	RouteLearners:      {Admin, Trainer, Employer, LIQA, IQA, EQA},
	RouteCPD:           {Admin, Trainer, LIQA, IQA, EQA},
	RouteSessions:      {Admin, Learner, Trainer},
	RouteSignOffs:      {Admin, Trainer, LIQA, IQA, EQA},
	RouteEmployerView:  {Admin, Employer},
	RouteAdminSettings: {Admin},
}

// CanView reports whether the role may render the route.
func CanView(route Route, role Role) bool {
	permitted, ok := routeRoles[route]
	if !ok {
		return false
	}
	if permitted == nil {
		return role == Guest
	}
	for _, r := range permitted {
		if r == role {
			return true
		}
	}
	return false
}

// Decision is the navigation outcome for a route/role pair.
type Decision int

const (
	Allow Decision = iota
	RedirectHome
	RedirectSignIn
)

// Resolve decides whether the role may render the route and, when it may
// not, where to send it instead. Guests are sent to sign-in; authenticated
// sessions hitting a guest-only or forbidden route are sent home.
func Resolve(route Route, role Role) Decision {
	if CanView(route, role) {
		return Allow
	}
	if role == Guest {
		return RedirectSignIn
	}
	return RedirectHome
}

// HomeView selects which landing screen a role sees.
type HomeView int

const (
	Dashboard HomeView = iota
	EQASummary
	LearnerPortfolio
)

func (v HomeView) String() string {
	switch v {
	case EQASummary:
		return "eqa-summary"
	case LearnerPortfolio:
		return "learner-portfolio"
	}
	return "dashboard"
}

// HomeViewFor returns the landing view for the role. EQA accounts land on
// the summary tables, learners on their portfolio, everyone else on the
// default dashboard.
func HomeViewFor(role Role) HomeView {
	switch role {
	case EQA:
		return EQASummary
	case Learner:
		return LearnerPortfolio
	default:
		return Dashboard
	}
}
