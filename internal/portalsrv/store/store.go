// Package store holds the portal dev server's in-memory data: accounts and
// sample plans loaded from YAML fixtures. Mutations (applied samples, detail
// updates, password resets) live for the lifetime of the process.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"sigs.k8s.io/yaml"
)

// Account is a portal user the dev server can authenticate.
type Account struct {
	UserID          string   `json:"user_id"`
	Email           string   `json:"email"`
	PasswordHash    string   `json:"password_hash"`
	Role            string   `json:"role"`
	AllowedRoles    []string `json:"allowed_roles"`
	FirstName       string   `json:"first_name"`
	LastName        string   `json:"last_name"`
	PasswordChanged bool     `json:"password_changed"`
}

// HistoryEntry is one sampling event on a unit, newest last.
type HistoryEntry struct {
	PlannedDate string `json:"planned_date"`
	DetailID    string `json:"detail_id"`
	Completed   bool   `json:"completed"`
}

// Unit is a curriculum unit within a learner's plan entry.
type Unit struct {
	Code      string         `json:"unit_code"`
	Name      string         `json:"unit_name"`
	Selected  bool           `json:"is_selected"`
	Completed bool           `json:"completed"`
	History   []HistoryEntry `json:"sample_history,omitempty"`
}

// Learner is one learner's entry in a plan.
type Learner struct {
	LearnerID    string `json:"learner_id"`
	LearnerName  string `json:"learner_name"`
	AssessorName string `json:"assessor_name"`
	RiskLevel    string `json:"risk_level"`
	QAApproved   bool   `json:"qa_approved"`
	Employer     string `json:"employer"`
	PlannedDate  string `json:"planned_date"`
	SampleType   string `json:"sample_type"`
	Status       string `json:"status"`
	Units        []Unit `json:"units"`
}

// DetailRecord is one saved sample-detail edit.
type DetailRecord struct {
	DetailID                string          `json:"detail_id"`
	CompletedDate           string          `json:"completedDate,omitempty"`
	Feedback                string          `json:"feedback,omitempty"`
	Status                  string          `json:"status,omitempty"`
	AssessmentMethods       map[string]bool `json:"assessment_methods,omitempty"`
	IQAConclusion           map[string]bool `json:"iqa_conclusion,omitempty"`
	AssessorDecisionCorrect *bool           `json:"assessor_decision_correct,omitempty"`
	SampleType              string          `json:"sample_type,omitempty"`
	PlannedDate             string          `json:"plannedDate,omitempty"`
	Type                    string          `json:"type,omitempty"`
}

// Plan is one sample plan and its learners.
type Plan struct {
	PlanID     string         `json:"plan_id"`
	PlanName   string         `json:"plan_name"`
	CourseID   string         `json:"course_id"`
	CourseName string         `json:"course_name"`
	IQAID      string         `json:"iqa_id,omitempty"`
	Learners   []Learner      `json:"learners"`
	Details    []DetailRecord `json:"details,omitempty"`
}

// Course describes a course's plan-list behaviour. ListShape selects which
// of the legacy response shapes the plan-list endpoint uses for the course:
// "array", "envelope", or "object".
type Course struct {
	CourseID   string `json:"course_id"`
	CourseName string `json:"course_name"`
	ListShape  string `json:"list_shape"`
}

type accountsFile struct {
	Accounts []Account `json:"accounts"`
}

type plansFile struct {
	Courses []Course `json:"courses"`
	Plans   []Plan   `json:"plans"`
}

// Store is the in-memory fixture store. All methods are safe for concurrent
// use and return copies, never internal pointers.
type Store struct {
	mu        sync.RWMutex
	accounts  map[string]*Account // keyed by email
	plans     map[string]*Plan
	planOrder []string
	courses   map[string]Course
}

// Load reads accounts.yaml and plans.yaml from dir.
func Load(dir string) (*Store, error) {
	s := &Store{
		accounts: make(map[string]*Account),
		plans:    make(map[string]*Plan),
		courses:  make(map[string]Course),
	}

	accountsRaw, err := os.ReadFile(filepath.Join(dir, "accounts.yaml"))
	if err != nil {
		return nil, fmt.Errorf("unable to read accounts fixture: %w", err)
	}
	var af accountsFile
	if err := yaml.Unmarshal(accountsRaw, &af); err != nil {
		return nil, fmt.Errorf("invalid accounts fixture: %w", err)
	}
	for i := range af.Accounts {
		acct := af.Accounts[i]
		if acct.Email == "" || acct.UserID == "" {
			return nil, fmt.Errorf("account %d is missing email or user_id", i)
		}
		s.accounts[acct.Email] = &acct
	}

	plansRaw, err := os.ReadFile(filepath.Join(dir, "plans.yaml"))
	if err != nil {
		return nil, fmt.Errorf("unable to read plans fixture: %w", err)
	}
	var pf plansFile
	if err := yaml.Unmarshal(plansRaw, &pf); err != nil {
		return nil, fmt.Errorf("invalid plans fixture: %w", err)
	}
	for _, course := range pf.Courses {
		s.courses[course.CourseID] = course
	}
	for i := range pf.Plans {
		plan := pf.Plans[i]
		if plan.PlanID == "" {
			return nil, fmt.Errorf("plan %d is missing plan_id", i)
		}
		s.plans[plan.PlanID] = &plan
		s.planOrder = append(s.planOrder, plan.PlanID)
	}

	return s, nil
}

// AccountByEmail returns a copy of the account with the given email.
func (s *Store) AccountByEmail(email string) (Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.accounts[email]
	if !ok {
		return Account{}, false
	}
	return *acct, true
}

// AccountByID returns a copy of the account with the given user id.
func (s *Store) AccountByID(userID string) (Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, acct := range s.accounts {
		if acct.UserID == userID {
			return *acct, true
		}
	}
	return Account{}, false
}

// SetPassword replaces the account's password hash and marks the mandatory
// password change as done.
func (s *Store) SetPassword(email, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[email]
	if !ok {
		return fmt.Errorf("no account with email %s", email)
	}
	acct.PasswordHash = passwordHash
	acct.PasswordChanged = true
	return nil
}

// Course returns the course record, if known.
func (s *Store) Course(courseID string) (Course, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	course, ok := s.courses[courseID]
	return course, ok
}

// PlansForCourse returns copies of the course's plans, restricted to those
// owned by the given IQA when the plan carries an owner.
func (s *Store) PlansForCourse(courseID, iqaID string) []Plan {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var plans []Plan
	for _, id := range s.planOrder {
		plan := s.plans[id]
		if plan.CourseID != courseID {
			continue
		}
		if plan.IQAID != "" && iqaID != "" && plan.IQAID != iqaID {
			continue
		}
		plans = append(plans, copyPlan(plan))
	}
	return plans
}

// Plan returns a copy of the plan with the given id.
func (s *Store) Plan(planID string) (Plan, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	plan, ok := s.plans[planID]
	if !ok {
		return Plan{}, false
	}
	return copyPlan(plan), true
}

// AppliedUnit is one unit in an apply request.
type AppliedUnit struct {
	ID      string `json:"id"`
	UnitRef string `json:"unit_ref"`
}

// AppliedLearner is one learner's selections in an apply request.
type AppliedLearner struct {
	LearnerID   string        `json:"learner_id"`
	PlannedDate string        `json:"plannedDate"`
	Units       []AppliedUnit `json:"units"`
}

// ApplySamples records new samples on a plan: each named unit is marked
// selected and gains a history entry, and the learner rows take on the
// sample type.
func (s *Store) ApplySamples(planID, sampleType, createdBy string, learners []AppliedLearner) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	plan, ok := s.plans[planID]
	if !ok {
		return fmt.Errorf("no plan with id %s", planID)
	}

	for _, applied := range learners {
		learner := findLearner(plan, applied.LearnerID)
		if learner == nil {
			return fmt.Errorf("plan %s has no learner %s", planID, applied.LearnerID)
		}
		for _, appliedUnit := range applied.Units {
			unit := findUnit(learner, appliedUnit.ID)
			if unit == nil {
				return fmt.Errorf("learner %s has no unit %s", applied.LearnerID, appliedUnit.ID)
			}
			unit.Selected = true
			unit.History = append(unit.History, HistoryEntry{
				PlannedDate: applied.PlannedDate,
				DetailID:    uuid.NewString(),
			})
		}
		learner.SampleType = sampleType
		learner.Status = "sampled"
	}
	return nil
}

// SaveDetail appends a detail record to the plan. When the record carries a
// completed date, history entries with the matching planned date are marked
// completed.
func (s *Store) SaveDetail(planID string, record DetailRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	plan, ok := s.plans[planID]
	if !ok {
		return fmt.Errorf("no plan with id %s", planID)
	}

	if record.DetailID == "" {
		record.DetailID = uuid.NewString()
	}
	plan.Details = append(plan.Details, record)

	if record.CompletedDate == "" {
		return nil
	}
	for li := range plan.Learners {
		learner := &plan.Learners[li]
		for ui := range learner.Units {
			unit := &learner.Units[ui]
			for hi := range unit.History {
				if unit.History[hi].PlannedDate == record.PlannedDate {
					unit.History[hi].Completed = true
				}
			}
		}
	}
	return nil
}

func findLearner(plan *Plan, learnerID string) *Learner {
	for i := range plan.Learners {
		if plan.Learners[i].LearnerID == learnerID {
			return &plan.Learners[i]
		}
	}
	return nil
}

// findUnit matches by unit code, falling back to unit name for entries
// without codes.
func findUnit(learner *Learner, key string) *Unit {
	for i := range learner.Units {
		if learner.Units[i].Code == key {
			return &learner.Units[i]
		}
	}
	for i := range learner.Units {
		if learner.Units[i].Code == "" && learner.Units[i].Name == key {
			return &learner.Units[i]
		}
	}
	return nil
}

func copyPlan(plan *Plan) Plan {
	out := *plan
	out.Learners = make([]Learner, len(plan.Learners))
	for i, learner := range plan.Learners {
		copied := learner
		copied.Units = make([]Unit, len(learner.Units))
		for j, unit := range learner.Units {
			copiedUnit := unit
			copiedUnit.History = append([]HistoryEntry(nil), unit.History...)
			copied.Units[j] = copiedUnit
		}
		out.Learners[i] = copied
	}
	out.Details = append([]DetailRecord(nil), plan.Details...)
	return out
}
