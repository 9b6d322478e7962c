// Package testsupport holds form fixtures and store doubles shared by tests
// across packages.
package testsupport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/goliatone/go-formwizard/pkg/model"
)

// IntakeForm returns a three-step form exercising nested names, conditional
// requirements, visibility rules and checkbox groups.
func IntakeForm() *model.Form {
	return model.MustForm(model.Form{
		ID:             "intake",
		Title:          "Intake",
		Collection:     "intakes",
		SuccessMessage: "Thanks {{ name }}, we will call {{ applicant.phone }}.",
		FailureMessage: "Failed to submit. Please try again.",
		Static:         map[string]any{"status": "pending"},
		Steps: []model.Step{
			{
				Title: "Contact",
				Fields: []model.Field{
					{Name: "name", Kind: model.KindText, Required: true, Messages: map[string]string{"required": "Name is required"}},
					{Name: "applicant.phone", Kind: model.KindTel, Required: true, Pattern: `^[\d\s\-\(\)\+]+$`},
					{Name: "applicant.email", Kind: model.KindEmail},
					{Name: "zipCode", Kind: model.KindText, Pattern: `^\d{5}$`, Messages: map[string]string{"pattern": "ZIP code must be 5 digits"}},
				},
			},
			{
				Title: "Household",
				Fields: []model.Field{
					{Name: "householdSize", Kind: model.KindNumber, Required: true, Validations: []model.ValidationRule{
						{Kind: model.ValidationRuleMin, Params: map[string]string{"value": "1"}},
					}, Messages: map[string]string{"min": "Household size must be at least 1"}},
					{Name: "hasChildrenUnder2", Kind: model.KindCheckbox},
					{Name: "childrenAges", Kind: model.KindText, RequiredWhen: "hasChildrenUnder2"},
					{Name: "allergies", Kind: model.KindCheckboxGroup, Options: []model.Option{
						{Value: "peanuts", Label: "Peanuts"},
						{Value: "dairy", Label: "Dairy"},
						{Value: "other", Label: "Other"},
					}},
					{Name: "allergiesOther", Kind: model.KindText, VisibleWhen: `allergies has "other"`, RequiredWhen: `allergies has "other"`},
					{Name: "preferredLanguage", Kind: model.KindSelect, Default: "English", Options: []model.Option{
						{Value: "English"}, {Value: "Spanish"},
					}},
				},
			},
			{
				Title: "Review",
				Fields: []model.Field{
					{Name: "notes", Kind: model.KindTextarea},
					{Name: "consent", Kind: model.KindCheckbox, Required: true, Messages: map[string]string{"required": "You must consent to share your information"}},
				},
			},
		},
	})
}

// ContactForm returns a two-step form with no defaults or statics, so its
// normalized payload holds exactly what was entered.
func ContactForm() *model.Form {
	return model.MustForm(model.Form{
		ID:         "contact",
		Collection: "contacts",
		Steps: []model.Step{
			{Fields: []model.Field{
				{Name: "name", Kind: model.KindText, Required: true},
				{Name: "applicant.phone", Kind: model.KindTel, Required: true},
				{Name: "householdSize", Kind: model.KindNumber, Required: true},
				{Name: "notes", Kind: model.KindTextarea},
			}},
			{Fields: []model.Field{
				{Name: "consent", Kind: model.KindCheckbox, Required: true},
			}},
		},
	})
}

// FillIntake stores a complete valid answer set through set.
func FillIntake(set func(name string, value any)) {
	set("name", "Ada")
	set("applicant.phone", "555-0100")
	set("householdSize", "3")
	set("consent", true)
}

// Call records one Create invocation.
type Call struct {
	Collection string
	Payload    map[string]any
}

// RecordingStore captures Create calls. Err, when set, is returned instead of
// an id. Block, when set, is received from before Create returns.
type RecordingStore struct {
	mu    sync.Mutex
	calls []Call
	next  int

	Err   error
	Block chan struct{}
}

// Create records the call and returns a sequential id.
func (s *RecordingStore) Create(ctx context.Context, collection string, payload map[string]any) (string, error) {
	if s.Block != nil {
		select {
		case <-s.Block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Collection: collection, Payload: model.CloneTree(payload)})
	if s.Err != nil {
		return "", s.Err
	}
	s.next++
	return fmt.Sprintf("doc-%d", s.next), nil
}

// Calls returns the recorded calls.
func (s *RecordingStore) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// ErrStoreDown is a canned remote failure.
var ErrStoreDown = errors.New("testsupport: store unavailable")
