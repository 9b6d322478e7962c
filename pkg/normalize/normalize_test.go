package normalize_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/normalize"
	"github.com/goliatone/go-formwizard/pkg/session"
	"github.com/goliatone/go-formwizard/pkg/testsupport"
)

func TestNormalizeContactPayload(t *testing.T) {
	t.Parallel()

	s := session.New(testsupport.ContactForm())
	s.SetValue("name", "Ada")
	s.SetValue("applicant.phone", "555-0100")
	s.SetValue("householdSize", "3")
	s.SetValue("notes", "")
	s.SetValue("consent", true)

	got, err := normalize.Normalize(s)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}

	want := map[string]any{
		"name":          "Ada",
		"applicant":     map[string]any{"phone": "555-0100"},
		"householdSize": 3.0,
		"consent":       true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeHiddenFieldsStaticsAndGroups(t *testing.T) {
	t.Parallel()

	s := session.New(testsupport.IntakeForm())
	testsupport.FillIntake(s.SetValue)
	s.SetValue("allergies", "dairy")
	s.SetValue("allergiesOther", "shellfish")
	s.SetValue("hasChildrenUnder2", "false")

	got, err := normalize.Normalize(s)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}

	want := map[string]any{
		"status":            "pending",
		"name":              "Ada",
		"applicant":         map[string]any{"phone": "555-0100"},
		"householdSize":     3.0,
		"hasChildrenUnder2": false,
		"allergies":         []string{"dairy"},
		"preferredLanguage": "English",
		"consent":           true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeDoesNotMutateSession(t *testing.T) {
	t.Parallel()

	s := session.New(testsupport.ContactForm())
	s.SetValue("householdSize", "2")
	before := s.Values()

	if _, err := normalize.Normalize(s); err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if diff := cmp.Diff(before, s.Values()); diff != "" {
		t.Fatalf("session mutated (-before +after):\n%s", diff)
	}
}

func TestNormalizeRejectsUnexpectedShapes(t *testing.T) {
	t.Parallel()

	s := session.New(testsupport.ContactForm())
	s.SetValue("consent", "maybe")

	_, err := normalize.Normalize(s)
	if !errors.Is(err, normalize.ErrUnexpectedValue) {
		t.Fatalf("expected ErrUnexpectedValue, got %v", err)
	}

	s = session.New(testsupport.ContactForm())
	s.SetValue("consent", true)
	s.SetValue("householdSize", "three")
	_, err = normalize.Normalize(s)
	if !errors.Is(err, normalize.ErrUnexpectedValue) {
		t.Fatalf("expected ErrUnexpectedValue for bad number, got %v", err)
	}
}

func TestNormalizeStaticCollision(t *testing.T) {
	t.Parallel()

	form := model.MustForm(model.Form{
		ID:         "clash",
		Collection: "clashes",
		Static:     map[string]any{"meta": "fixed"},
		Steps: []model.Step{
			{Fields: []model.Field{{Name: "meta.source", Kind: model.KindText, Required: true}}},
			{Fields: []model.Field{{Name: "consent", Kind: model.KindCheckbox, Required: true}}},
		},
	})
	s := session.New(form)
	s.SetValue("meta.source", "web")
	s.SetValue("consent", true)

	if _, err := normalize.Normalize(s); !errors.Is(err, normalize.ErrUnexpectedValue) {
		t.Fatalf("expected collision error, got %v", err)
	}
}

func TestNormalizeEmitsGroupSelectionsOnce(t *testing.T) {
	t.Parallel()

	s := session.FromPayload(testsupport.IntakeForm(), map[string]any{
		"allergies": []any{"dairy", "dairy"},
	})

	got, err := normalize.Normalize(s)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if diff := cmp.Diff([]string{"dairy"}, got["allergies"]); diff != "" {
		t.Fatalf("allergies mismatch (-want +got):\n%s", diff)
	}
}
