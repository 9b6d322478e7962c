package wizard_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formwizard/pkg/submit"
	"github.com/goliatone/go-formwizard/pkg/testsupport"
	"github.com/goliatone/go-formwizard/pkg/wizard"
)

func TestWizardWalkThrough(t *testing.T) {
	t.Parallel()

	store := &testsupport.RecordingStore{}
	w := wizard.New(testsupport.IntakeForm(), store)

	if w.OnStepNext() {
		t.Fatalf("expected empty step 1 to fail")
	}
	want := map[string]string{
		"name":            "Name is required",
		"applicant.phone": "This field is required",
	}
	if diff := cmp.Diff(want, w.CurrentErrors()); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
	if w.CurrentStep() != 1 {
		t.Fatalf("expected to stay on step 1")
	}

	w.OnFieldChange("name", "Ada")
	if _, ok := w.CurrentErrors()["name"]; ok {
		t.Fatalf("expected edit to clear the name error")
	}
	w.OnFieldChange("applicant.phone", "555-0100")

	if !w.OnStepNext() || w.CurrentStep() != 2 {
		t.Fatalf("expected to advance to step 2, at %d", w.CurrentStep())
	}
	if len(w.CurrentErrors()) != 0 {
		t.Fatalf("expected errors cleared after passing, got %v", w.CurrentErrors())
	}

	w.OnFieldChange("householdSize", "2")
	if !w.OnStepNext() || w.CurrentStep() != 3 {
		t.Fatalf("expected to advance to step 3")
	}
	if !w.IsLastStep() {
		t.Fatalf("expected last step")
	}

	if !w.OnStepBack() || w.CurrentStep() != 2 {
		t.Fatalf("expected back to step 2")
	}
	if w.OnStepTo(3) {
		t.Fatalf("expected jump beyond the highest passed step to be denied")
	}
	if !w.OnStepTo(1) || !w.OnStepTo(2) {
		t.Fatalf("expected jumps within passed steps to be allowed")
	}
	if !w.OnStepNext() || w.CurrentStep() != 3 {
		t.Fatalf("expected revalidated step 2 to advance")
	}

	w.OnFieldChange("consent", true)
	outcome, err := w.OnSubmit(context.Background())
	if err != nil {
		t.Fatalf("OnSubmit returned error: %v", err)
	}
	if outcome.State != submit.StateSucceeded {
		t.Fatalf("expected success, got %+v", outcome)
	}
	if w.State() != submit.StateSucceeded || w.IsSubmitting() {
		t.Fatalf("unexpected pipeline state %s", w.State())
	}
	if len(store.Calls()) != 1 {
		t.Fatalf("expected one store call")
	}
}

func TestWizardStepToDeniedLeavesStateUnchanged(t *testing.T) {
	t.Parallel()

	w := wizard.New(testsupport.IntakeForm(), &testsupport.RecordingStore{})
	w.OnFieldChange("name", "Ada")

	if w.OnStepTo(3) {
		t.Fatalf("expected jump past unvalidated steps to be denied")
	}
	if w.CurrentStep() != 1 {
		t.Fatalf("expected current step unchanged, got %d", w.CurrentStep())
	}
	if w.OnStepBack() {
		t.Fatalf("expected back on first step to be refused")
	}
}

func TestWizardVisibleAndRequiredFields(t *testing.T) {
	t.Parallel()

	w := wizard.New(testsupport.IntakeForm(), &testsupport.RecordingStore{})
	testsupport.FillIntake(w.OnFieldChange)
	if !w.OnStepNext() {
		t.Fatalf("expected step 1 to pass")
	}

	names := func() []string {
		var out []string
		for _, f := range w.VisibleFields() {
			out = append(out, f.Name)
		}
		return out
	}

	wantHidden := []string{"householdSize", "hasChildrenUnder2", "childrenAges", "allergies", "preferredLanguage"}
	if diff := cmp.Diff(wantHidden, names()); diff != "" {
		t.Fatalf("visible fields mismatch (-want +got):\n%s", diff)
	}

	w.OnFieldChange("allergies", "other")
	wantShown := []string{"householdSize", "hasChildrenUnder2", "childrenAges", "allergies", "allergiesOther", "preferredLanguage"}
	if diff := cmp.Diff(wantShown, names()); diff != "" {
		t.Fatalf("visible fields mismatch (-want +got):\n%s", diff)
	}

	w.OnFieldChange("hasChildrenUnder2", true)
	wantRequired := []string{"householdSize", "childrenAges", "allergiesOther"}
	if diff := cmp.Diff(wantRequired, w.RequiredFields()); diff != "" {
		t.Fatalf("required fields mismatch (-want +got):\n%s", diff)
	}
}

func TestWizardSubmitRejectionMovesToFailingStep(t *testing.T) {
	t.Parallel()

	w := wizard.New(testsupport.IntakeForm(), &testsupport.RecordingStore{})
	testsupport.FillIntake(w.OnFieldChange)
	w.OnStepNext()
	w.OnStepNext()
	w.OnFieldChange("consent", false)

	outcome, err := w.OnSubmit(context.Background())
	if err != nil {
		t.Fatalf("OnSubmit returned error: %v", err)
	}
	if outcome.State != submit.StateRejected || outcome.Step != 3 {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if w.CurrentErrors()["consent"] != "You must consent to share your information" {
		t.Fatalf("expected consent error, got %v", w.CurrentErrors())
	}
}

func TestWizardCancel(t *testing.T) {
	t.Parallel()

	w := wizard.New(testsupport.IntakeForm(), &testsupport.RecordingStore{})
	w.OnFieldChange("name", "Ada")
	w.Cancel()

	if !w.Session().Discarded() {
		t.Fatalf("expected session discarded")
	}
	if _, err := w.OnSubmit(context.Background()); err == nil {
		t.Fatalf("expected submit after cancel to fail")
	}
}
