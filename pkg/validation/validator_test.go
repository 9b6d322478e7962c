package validation_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/session"
	"github.com/goliatone/go-formwizard/pkg/testsupport"
	"github.com/goliatone/go-formwizard/pkg/validation"
)

func TestValidateStepRequiredAndOverrides(t *testing.T) {
	t.Parallel()

	s := session.New(testsupport.IntakeForm())
	got := validation.New().ValidateStep(s, 1)

	want := validation.ErrorMap{
		"name":            "Name is required",
		"applicant.phone": "This field is required",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateStepFormatAndPattern(t *testing.T) {
	t.Parallel()

	s := session.New(testsupport.IntakeForm())
	s.SetValue("name", "Ada")
	s.SetValue("applicant.phone", "call me")
	s.SetValue("applicant.email", "not-an-email")
	s.SetValue("zipCode", "123")

	got := validation.New().ValidateStep(s, 1)
	want := validation.ErrorMap{
		"applicant.phone": "Invalid phone number",
		"applicant.email": "Invalid email address",
		"zipCode":         "ZIP code must be 5 digits",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateStepOnlyReportsThatStep(t *testing.T) {
	t.Parallel()

	s := session.New(testsupport.IntakeForm())
	s.SetValue("name", "Ada")
	s.SetValue("applicant.phone", "555-0100")

	if got := validation.New().ValidateStep(s, 1); len(got) != 0 {
		t.Fatalf("expected step 1 clean, got %v", got)
	}

	got := validation.New().ValidateStep(s, 2)
	for name := range got {
		if s.Form().StepOf(name) != 2 {
			t.Fatalf("error for %q does not belong to step 2", name)
		}
	}
	if _, ok := got["householdSize"]; !ok {
		t.Fatalf("expected householdSize error, got %v", got)
	}
}

func TestValidateStepConditionalRequirement(t *testing.T) {
	t.Parallel()

	s := session.New(testsupport.IntakeForm())
	s.SetValue("householdSize", "2")

	v := validation.New()
	if got := v.ValidateStep(s, 2); len(got) != 0 {
		t.Fatalf("expected no errors while condition is false, got %v", got)
	}

	s.SetValue("hasChildrenUnder2", true)
	want := validation.ErrorMap{"childrenAges": "This field is required"}
	if diff := cmp.Diff(want, v.ValidateStep(s, 2)); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateStepHiddenFieldsNeverFail(t *testing.T) {
	t.Parallel()

	s := session.New(testsupport.IntakeForm())
	s.SetValue("householdSize", "2")
	s.SetValue("allergies", "dairy")

	v := validation.New()
	if got := v.ValidateStep(s, 2); len(got) != 0 {
		t.Fatalf("hidden allergiesOther must not fail, got %v", got)
	}

	s.SetValue("allergies", "other")
	if got := v.ValidateStep(s, 2); got["allergiesOther"] == "" {
		t.Fatalf("expected allergiesOther required once visible, got %v", got)
	}
}

func TestValidateStepNumberRules(t *testing.T) {
	t.Parallel()

	v := validation.New()
	cases := []struct {
		value any
		want  string
	}{
		{value: "0", want: "Household size must be at least 1"},
		{value: "many", want: "Must be a number"},
		{value: float64(4), want: ""},
		{value: "4", want: ""},
	}
	for _, tc := range cases {
		s := session.New(testsupport.IntakeForm())
		s.SetValue("householdSize", tc.value)
		got := v.ValidateStep(s, 2)["householdSize"]
		if got != tc.want {
			t.Fatalf("householdSize=%v: got %q want %q", tc.value, got, tc.want)
		}
	}
}

func TestValidateStepOptionsAndLengths(t *testing.T) {
	t.Parallel()

	form := model.MustForm(model.Form{
		ID:         "volunteer",
		Collection: "volunteers",
		Steps: []model.Step{
			{Fields: []model.Field{
				{Name: "county", Kind: model.KindSelect, Required: true, Options: []model.Option{{Value: "Essex"}, {Value: "Morris"}}},
				{Name: "roles", Kind: model.KindCheckboxGroup, Options: []model.Option{{Value: "driver"}, {Value: "cook"}}, Validations: []model.ValidationRule{
					{Kind: model.ValidationRuleMinLength, Params: map[string]string{"value": "1"}},
				}},
				{Name: "bio", Kind: model.KindTextarea, Validations: []model.ValidationRule{
					{Kind: model.ValidationRuleMaxLength, Params: map[string]string{"value": "5"}},
				}},
				{Name: "site", Kind: model.KindURL},
				{Name: "start", Kind: model.KindDate},
			}},
			{Fields: []model.Field{{Name: "consent", Kind: model.KindCheckbox, Required: true}}},
		},
	})

	s := session.New(form)
	s.SetValue("county", "Atlantis")
	s.SetValue("roles", []string{"pilot"})
	s.SetValue("bio", "far too long")
	s.SetValue("site", "ftp://example.com")
	s.SetValue("start", "2024-13-40")

	want := validation.ErrorMap{
		"county": "Select a valid option",
		"roles":  "Select a valid option",
		"bio":    "Must be at most 5 characters",
		"site":   "Invalid URL",
		"start":  "Invalid date",
	}
	if diff := cmp.Diff(want, validation.New().ValidateStep(s, 1)); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateAllReportsFirstFailingStep(t *testing.T) {
	t.Parallel()

	s := session.New(testsupport.IntakeForm())
	testsupport.FillIntake(s.SetValue)
	s.SetValue("householdSize", "")
	s.SetValue("consent", false)

	result := validation.New().ValidateAll(s)
	if result.Valid() {
		t.Fatalf("expected invalid result")
	}
	if result.FirstFailing != 2 {
		t.Fatalf("FirstFailing = %d, want 2", result.FirstFailing)
	}
	if diff := cmp.Diff(validation.ErrorMap{"householdSize": "This field is required"}, result.Errors()); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}

	want := []validation.Issue{
		{Field: "householdSize", Step: 2, Message: "This field is required"},
		{Field: "consent", Step: 3, Message: "You must consent to share your information"},
	}
	if diff := cmp.Diff(want, result.Issues()); diff != "" {
		t.Fatalf("issues mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateAllCompleteForm(t *testing.T) {
	t.Parallel()

	s := session.New(testsupport.IntakeForm())
	testsupport.FillIntake(s.SetValue)

	result := validation.New().ValidateAll(s)
	if !result.Valid() {
		t.Fatalf("expected valid result, got %v", result.Issues())
	}
	if len(result.Errors()) != 0 {
		t.Fatalf("expected no errors")
	}
}

func TestWithMessagesOverridesDefaults(t *testing.T) {
	t.Parallel()

	messages := validation.DefaultMessages()
	messages.Required = "Obligatorio"

	s := session.New(testsupport.IntakeForm())
	got := validation.New(validation.WithMessages(messages)).ValidateStep(s, 1)
	if got["applicant.phone"] != "Obligatorio" {
		t.Fatalf("expected custom required message, got %q", got["applicant.phone"])
	}
	if got["name"] != "Name is required" {
		t.Fatalf("field override should win, got %q", got["name"])
	}
}

func TestValidationIsIdempotent(t *testing.T) {
	t.Parallel()

	s := session.New(testsupport.IntakeForm())
	s.SetValue("name", "Ada")
	s.SetValue("applicant.phone", "call me")
	s.SetValue("householdSize", "2")
	s.SetValue("hasChildrenUnder2", true)
	s.SetValue("allergies", "other")

	v := validation.New()
	for _, step := range []int{1, 2, 3} {
		first := v.ValidateStep(s, step)
		second := v.ValidateStep(s, step)
		if diff := cmp.Diff(first, second); diff != "" {
			t.Fatalf("step %d changed between runs (-first +second):\n%s", step, diff)
		}
	}

	conditional := v.ValidateStep(s, 2)
	if conditional["childrenAges"] == "" || conditional["allergiesOther"] == "" {
		t.Fatalf("expected conditional fields to fail on step 2, got %v", conditional)
	}

	first := v.ValidateAll(s)
	second := v.ValidateAll(s)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("ValidateAll changed between runs (-first +second):\n%s", diff)
	}
}

func TestValidateStepTelCharacters(t *testing.T) {
	t.Parallel()

	v := validation.New()
	cases := map[string]bool{
		"555-0100":          true,
		"+1 (555) 010-0199": true,
		"911":               true,
		"555.0100":          false,
		"call me":           false,
	}
	for phone, valid := range cases {
		s := session.New(testsupport.IntakeForm())
		s.SetValue("name", "Ada")
		s.SetValue("applicant.phone", phone)

		_, failed := v.ValidateStep(s, 1)["applicant.phone"]
		if failed == valid {
			t.Fatalf("phone %q: valid=%v, want %v", phone, !failed, valid)
		}
	}
}
