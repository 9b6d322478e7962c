package intake

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-formwizard/pkg/formdef"
	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/store"
	"github.com/goliatone/go-formwizard/pkg/store/memory"
	"github.com/goliatone/go-formwizard/pkg/submit"
	"github.com/goliatone/go-formwizard/pkg/testsupport"
)

func newTestComponent(t *testing.T, fns ...OptionFn) *Component {
	t.Helper()
	forms, err := formdef.NewRegistry(testsupport.IntakeForm(), testsupport.ContactForm())
	require.NoError(t, err)

	base := []OptionFn{WithForms(forms), WithStore(memory.New())}
	c, err := New(append(base, fns...)...)
	require.NoError(t, err)
	return c
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func TestNew_RequiresFormsAndStore(t *testing.T) {
	_, err := New(WithStore(memory.New()))
	assert.EqualError(t, err, "intake: missing form source")

	forms, err := formdef.NewRegistry(testsupport.ContactForm())
	require.NoError(t, err)
	_, err = New(WithForms(forms))
	assert.EqualError(t, err, "intake: missing store")
}

func TestHandler_ListsAndReturnsForms(t *testing.T) {
	h := newTestComponent(t).Handler()

	rec := do(t, h, http.MethodGet, "/forms", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json"))
	list := decode[struct {
		Data []formSummary `json:"data"`
	}](t, rec)
	require.Len(t, list.Data, 2)
	assert.Equal(t, formSummary{ID: "contact", Collection: "contacts", Steps: 2}, list.Data[0])
	assert.Equal(t, "intake", list.Data[1].ID)
	assert.Equal(t, 3, list.Data[1].Steps)

	rec = do(t, h, http.MethodGet, "/forms/intake", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	form := decode[struct {
		Data model.Form `json:"data"`
	}](t, rec)
	assert.Equal(t, "intakes", form.Data.Collection)
	assert.Len(t, form.Data.Steps, 3)

	rec = do(t, h, http.MethodGet, "/forms/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_SearchesFieldOptions(t *testing.T) {
	h := newTestComponent(t).Handler()

	rec := do(t, h, http.MethodGet, "/forms/intake/options/allergies?q=OTH", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[struct {
		Data []model.Option `json:"data"`
	}](t, rec)
	assert.Equal(t, []model.Option{{Value: "other", Label: "Other"}}, res.Data)

	rec = do(t, h, http.MethodGet, "/forms/intake/options/preferredLanguage?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res = decode[struct {
		Data []model.Option `json:"data"`
	}](t, rec)
	assert.Equal(t, []model.Option{{Value: "English", Label: "English"}}, res.Data)

	rec = do(t, h, http.MethodGet, "/forms/intake/options/name", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_OneShotSubmissionStoresSanitizedPayload(t *testing.T) {
	forms, err := formdef.NewRegistry(testsupport.IntakeForm())
	require.NoError(t, err)
	docs := memory.New()
	c, err := New(WithForms(forms), WithStore(docs))
	require.NoError(t, err)

	rec := do(t, c.Handler(), http.MethodPost, "/forms/intake/submissions", map[string]any{
		"name":          "<b>Ada</b>",
		"applicant":     map[string]any{"phone": "555-0100"},
		"householdSize": "3",
		"notes":         "Beans & rice",
		"consent":       true,
		"unknown":       "ignored",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[acceptedResponse](t, rec)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, "Thanks Ada, we will call 555-0100.", res.Message)

	stored, err := docs.List(context.Background(), "intakes", store.ListOptions{})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	payload := stored[0].Payload
	assert.Equal(t, "Ada", payload["name"])
	assert.Equal(t, "Beans & rice", payload["notes"])
	assert.Equal(t, "pending", payload["status"])
	assert.Equal(t, 3.0, payload["householdSize"])
	assert.NotContains(t, payload, "unknown")
}

func TestHandler_OneShotSubmissionRejected(t *testing.T) {
	h := newTestComponent(t).Handler()

	rec := do(t, h, http.MethodPost, "/forms/intake/submissions", map[string]any{
		"applicant": map[string]any{"phone": "555-0100"},
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	res := decode[rejectedResponse](t, rec)
	assert.Equal(t, 1, res.Step)
	assert.Equal(t, map[string]string{"name": "Name is required"}, res.Errors)
}

func TestHandler_OneShotSubmissionStoreFailure(t *testing.T) {
	failing := submit.StoreFunc(func(context.Context, string, map[string]any) (string, error) {
		return "", testsupport.ErrStoreDown
	})
	h := newTestComponent(t, WithStore(failing)).Handler()

	rec := do(t, h, http.MethodPost, "/forms/contact/submissions", map[string]any{
		"name": "Ada", "applicant.phone": "555-0100", "householdSize": 2, "consent": true,
	})
	require.Equal(t, http.StatusBadGateway, rec.Code)
	res := decode[failedResponse](t, rec)
	assert.Equal(t, "Failed to submit. Please try again.", res.Message)
}

func TestHandler_RejectsMalformedBodies(t *testing.T) {
	h := newTestComponent(t, WithMaxBodyBytes(16)).Handler()

	req := httptest.NewRequest(http.MethodPost, "/forms/contact/submissions", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/forms/contact/submissions", map[string]any{"name": strings.Repeat("a", 64)})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestHandler_SessionLifecycle(t *testing.T) {
	c := newTestComponent(t)
	h := c.Handler()

	rec := do(t, h, http.MethodPost, "/forms/contact/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	view := decode[SessionView](t, rec)
	require.NotEmpty(t, view.ID)
	assert.Equal(t, 1, view.Step)
	assert.Equal(t, 2, view.StepCount)
	assert.Equal(t, submit.StateIdle, view.State)
	assert.Equal(t, []string{"name", "applicant.phone", "householdSize"}, view.RequiredFields)
	base := "/sessions/" + view.ID

	rec = do(t, h, http.MethodPost, base+"/back", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodPost, base+"/next", nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	view = decode[SessionView](t, rec)
	assert.Equal(t, "This field is required", view.Errors["name"])

	for name, value := range map[string]any{"name": "Ada", "applicant.phone": "555-0100", "householdSize": "2"} {
		rec = do(t, h, http.MethodPost, base+"/fields", fieldChange{Name: name, Value: value})
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec = do(t, h, http.MethodPost, base+"/fields", fieldChange{Name: "nope", Value: "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, base+"/next", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view = decode[SessionView](t, rec)
	assert.Equal(t, 2, view.Step)
	assert.True(t, view.LastStep)
	assert.Empty(t, view.Errors)

	rec = do(t, h, http.MethodPost, base+"/steps/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, http.MethodPost, base+"/steps/2", nil)
	require.Equal(t, http.StatusConflict, rec.Code, "step 2 has not passed yet")
	rec = do(t, h, http.MethodPost, base+"/next", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[SessionView](t, rec).Step)
	rec = do(t, h, http.MethodPost, base+"/steps/x", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, base+"/submit", nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	rejected := decode[rejectedResponse](t, rec)
	assert.Equal(t, 2, rejected.Step)
	assert.Contains(t, rejected.Errors, "consent")

	rec = do(t, h, http.MethodPost, base+"/fields", fieldChange{Name: "consent", Value: true})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, base+"/submit", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	accepted := decode[acceptedResponse](t, rec)
	assert.NotEmpty(t, accepted.ID)

	rec = do(t, h, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 0, c.Sessions().Len())
}

func TestHandler_SessionSubmitInFlight(t *testing.T) {
	block := make(chan struct{})
	recording := &testsupport.RecordingStore{Block: block}
	c := newTestComponent(t, WithStore(recording))
	h := c.Handler()

	rec := do(t, h, http.MethodPost, "/forms/contact/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[SessionView](t, rec).ID
	wz, ok := c.Sessions().Get(id)
	require.True(t, ok)
	wz.OnFieldChange("name", "Ada")
	wz.OnFieldChange("applicant.phone", "555-0100")
	wz.OnFieldChange("householdSize", "2")
	wz.OnFieldChange("consent", true)

	done := make(chan int, 1)
	go func() {
		req := httptest.NewRequest(http.MethodPost, "/sessions/"+id+"/submit", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		done <- rec.Code
	}()
	require.Eventually(t, wz.IsSubmitting, time.Second, 5*time.Millisecond)

	rec = do(t, h, http.MethodPost, "/sessions/"+id+"/submit", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodGet, "/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[SessionView](t, rec).Submitting)

	close(block)
	assert.Equal(t, http.StatusCreated, <-done)
	assert.Len(t, recording.Calls(), 1)
}

func TestHandler_DeleteSession(t *testing.T) {
	c := newTestComponent(t)
	h := c.Handler()

	rec := do(t, h, http.MethodPost, "/forms/contact/sessions", nil)
	id := decode[SessionView](t, rec).ID

	rec = do(t, h, http.MethodDelete, "/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, h, http.MethodDelete, "/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_GuardRejects(t *testing.T) {
	h := newTestComponent(t, WithGuard(func(r *http.Request) error {
		return StatusError{Code: http.StatusUnauthorized}
	})).Handler()

	rec := do(t, h, http.MethodGet, "/forms", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	h := newTestComponent(t).Handler()

	rec := do(t, h, http.MethodPut, "/forms", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMetrics_CountOutcomesAndSessions(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	require.NoError(t, err)
	again, err := NewMetrics(reg)
	require.NoError(t, err, "re-registering should reuse collectors")
	assert.Same(t, metrics.submissions, again.submissions)

	c := newTestComponent(t, WithMetrics(metrics))
	h := c.Handler()

	do(t, h, http.MethodPost, "/forms/contact/submissions", map[string]any{})
	do(t, h, http.MethodPost, "/forms/contact/submissions", map[string]any{
		"name": "Ada", "applicant.phone": "555-0100", "householdSize": 2, "consent": true,
	})
	do(t, h, http.MethodPost, "/forms/contact/sessions", nil)

	families, err := reg.Gather()
	require.NoError(t, err)
	counts := map[string]float64{}
	var active float64
	for _, family := range families {
		switch family.GetName() {
		case "formwizard_submissions_total":
			for _, m := range family.GetMetric() {
				for _, label := range m.GetLabel() {
					if label.GetName() == "outcome" {
						counts[label.GetValue()] += m.GetCounter().GetValue()
					}
				}
			}
		case "formwizard_sessions_active":
			active = family.GetMetric()[0].GetGauge().GetValue()
		}
	}
	assert.Equal(t, map[string]float64{"rejected": 1, "succeeded": 1}, counts)
	assert.Equal(t, 1.0, active)
}

func TestRegisterRoutes_MountsUnderBasePath(t *testing.T) {
	forms, err := formdef.NewRegistry(testsupport.ContactForm())
	require.NoError(t, err)

	mux := http.NewServeMux()
	_, patterns, err := RegisterRoutes(mux, "/api/", WithForms(forms), WithStore(memory.New()))
	require.NoError(t, err)
	assert.Contains(t, patterns, "POST /api/forms/{form}/submissions")
	assert.Contains(t, patterns, "GET /api/openapi.json")

	rec := do(t, mux, http.MethodGet, "/api/openapi.json", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	doc := decode[struct {
		OpenAPI string                    `json:"openapi"`
		Paths   map[string]map[string]any `json:"paths"`
	}](t, rec)
	assert.Equal(t, "3.0.3", doc.OpenAPI)
	assert.Contains(t, doc.Paths, "/api/forms/contact/submissions")

	_, err = (&Component{}).RegisterRoutes(nil, "/")
	assert.Error(t, err)
}

func TestMountPath(t *testing.T) {
	assert.Equal(t, "/admin/forms", MountPath("/admin", "forms"))
	assert.Equal(t, "/admin/forms", MountPath("admin/", "/forms"))
	assert.Equal(t, "/forms", MountPath("/", "/forms"))
}

func TestHandler_DocumentRoutes(t *testing.T) {
	h := newTestComponent(t).Handler()

	rec := do(t, h, http.MethodPost, "/forms/contact/submissions", map[string]any{
		"name": "Ada", "applicant.phone": "555-0100", "householdSize": 2, "consent": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[acceptedResponse](t, rec).ID

	rec = do(t, h, http.MethodGet, "/collections/contacts/documents?limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[documentsResponse](t, rec)
	require.Len(t, list.Data, 1)
	assert.Equal(t, id, list.Data[0].ID)
	assert.Equal(t, 10, list.Limit)

	rec = do(t, h, http.MethodGet, "/collections/contacts/documents/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	doc := decode[struct {
		Data store.Document `json:"data"`
	}](t, rec)
	assert.Equal(t, "Ada", doc.Data.Payload["name"])

	rec = do(t, h, http.MethodDelete, "/collections/contacts/documents/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, h, http.MethodGet, "/collections/contacts/documents/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/collections/secrets/documents", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_DocumentRoutesNeedReadableStore(t *testing.T) {
	writeOnly := submit.StoreFunc(func(context.Context, string, map[string]any) (string, error) {
		return "x", nil
	})
	h := newTestComponent(t, WithStore(writeOnly)).Handler()

	rec := do(t, h, http.MethodGet, "/collections/contacts/documents", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
