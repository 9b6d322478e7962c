package intake

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/goliatone/go-formwizard/pkg/formdef"
	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/session"
	"github.com/goliatone/go-formwizard/pkg/submit"
	"github.com/goliatone/go-formwizard/pkg/wizard"
)

type HTTPError interface {
	error
	StatusCode() int
}

type StatusError struct {
	Code int
	Err  error
}

func (e StatusError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return http.StatusText(e.Code)
}

func (e StatusError) Unwrap() error { return e.Err }

func (e StatusError) StatusCode() int {
	if e.Code <= 0 {
		return http.StatusInternalServerError
	}
	return e.Code
}

type dataResponse struct {
	Data any `json:"data"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type formSummary struct {
	ID          string `json:"id"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Collection  string `json:"collection"`
	Steps       int    `json:"steps"`
}

type acceptedResponse struct {
	ID      string `json:"id"`
	Message string `json:"message,omitempty"`
}

type rejectedResponse struct {
	Step   int               `json:"step"`
	Errors map[string]string `json:"errors"`
}

type failedResponse struct {
	Message string `json:"message"`
}

type fieldChange struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// SessionView is the JSON shape of a server-held wizard.
type SessionView struct {
	ID             string            `json:"id"`
	Form           string            `json:"form"`
	Step           int               `json:"step"`
	StepCount      int               `json:"stepCount"`
	LastStep       bool              `json:"lastStep"`
	State          submit.State      `json:"state"`
	Submitting     bool              `json:"submitting"`
	Errors         map[string]string `json:"errors"`
	Values         map[string]any    `json:"values"`
	VisibleFields  []string          `json:"visibleFields"`
	RequiredFields []string          `json:"requiredFields"`
}

func viewOf(id string, w *wizard.Wizard) SessionView {
	visible := make([]string, 0)
	for _, field := range w.VisibleFields() {
		visible = append(visible, field.Name)
	}
	required := w.RequiredFields()
	if required == nil {
		required = []string{}
	}
	return SessionView{
		ID:             id,
		Form:           w.Form().ID,
		Step:           w.CurrentStep(),
		StepCount:      w.Form().StepCount(),
		LastStep:       w.IsLastStep(),
		State:          w.State(),
		Submitting:     w.IsSubmitting(),
		Errors:         w.CurrentErrors(),
		Values:         w.Values(),
		VisibleFields:  visible,
		RequiredFields: required,
	}
}

func (c *Component) listForms(w http.ResponseWriter, r *http.Request) {
	forms := c.opts.Forms.Forms()
	out := make([]formSummary, 0, len(forms))
	for _, form := range forms {
		out = append(out, formSummary{
			ID:          form.ID,
			Title:       form.Title,
			Description: form.Description,
			Collection:  form.Collection,
			Steps:       form.StepCount(),
		})
	}
	writeJSON(w, r, http.StatusOK, dataResponse{Data: out})
}

func (c *Component) getForm(w http.ResponseWriter, r *http.Request) {
	form, err := c.lookupForm(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dataResponse{Data: form})
}

func (c *Component) searchOptions(w http.ResponseWriter, r *http.Request) {
	form, err := c.lookupForm(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	name := r.PathValue("field")
	field, ok := form.Field(name)
	if !ok || !field.Kind.HasOptions() {
		writeError(w, r, StatusError{Code: http.StatusNotFound, Err: fmt.Errorf("intake: form %q has no option field %q", form.ID, name)})
		return
	}

	query := r.URL.Query().Get(c.opts.SearchParam)
	limit := parseInt(r.URL.Query().Get(c.opts.LimitParam))
	results := SearchOptions(field.Options, query, limit, c.opts)
	if results == nil {
		results = []model.Option{}
	}
	writeJSON(w, r, http.StatusOK, dataResponse{Data: results})
}

// submitOnce validates and stores a complete payload without a held session.
func (c *Component) submitOnce(w http.ResponseWriter, r *http.Request) {
	form, err := c.lookupForm(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var payload map[string]any
	if err := c.decodeBody(w, r, &payload); err != nil {
		writeError(w, r, err)
		return
	}
	if c.opts.SanitizeInput {
		payload = sanitizeTree(payload)
	}

	s := session.FromPayload(form, payload)
	pipeline := submit.New(c.opts.Store, c.pipelineOptions()...)
	outcome, err := pipeline.Submit(r.Context(), s)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOutcome(w, r, outcome)
}

func (c *Component) startSession(w http.ResponseWriter, r *http.Request) {
	form, err := c.lookupForm(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	wz := c.newWizard(form)
	id := c.sessions.Add(wz)
	c.opts.Logger.Debug("session started", "form", form.ID, "session", id)
	writeJSON(w, r, http.StatusCreated, viewOf(id, wz))
}

func (c *Component) getSession(w http.ResponseWriter, r *http.Request) {
	id, wz, err := c.lookupSession(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, viewOf(id, wz))
}

func (c *Component) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	wz, ok := c.sessions.Remove(id)
	if !ok {
		writeError(w, r, errUnknownSession(id))
		return
	}
	wz.Cancel()
	w.WriteHeader(http.StatusNoContent)
}

func (c *Component) changeField(w http.ResponseWriter, r *http.Request) {
	id, wz, err := c.lookupSession(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var change fieldChange
	if err := c.decodeBody(w, r, &change); err != nil {
		writeError(w, r, err)
		return
	}
	if _, ok := wz.Form().Field(change.Name); !ok {
		writeError(w, r, StatusError{Code: http.StatusBadRequest, Err: fmt.Errorf("intake: unknown field %q", change.Name)})
		return
	}
	if wz.Session().Discarded() {
		writeError(w, r, StatusError{Code: http.StatusGone, Err: submit.ErrDiscarded})
		return
	}
	value := change.Value
	if c.opts.SanitizeInput {
		value = sanitizeValue(value)
	}
	wz.OnFieldChange(change.Name, value)
	writeJSON(w, r, http.StatusOK, viewOf(id, wz))
}

func (c *Component) nextStep(w http.ResponseWriter, r *http.Request) {
	id, wz, err := c.lookupSession(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if !wz.OnStepNext() {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, r, status, viewOf(id, wz))
}

func (c *Component) previousStep(w http.ResponseWriter, r *http.Request) {
	id, wz, err := c.lookupSession(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if !wz.OnStepBack() {
		status = http.StatusConflict
	}
	writeJSON(w, r, status, viewOf(id, wz))
}

func (c *Component) jumpToStep(w http.ResponseWriter, r *http.Request) {
	id, wz, err := c.lookupSession(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	step, convErr := strconv.Atoi(r.PathValue("step"))
	if convErr != nil {
		writeError(w, r, StatusError{Code: http.StatusBadRequest, Err: fmt.Errorf("intake: invalid step %q", r.PathValue("step"))})
		return
	}
	status := http.StatusOK
	if !wz.OnStepTo(step) {
		status = http.StatusConflict
	}
	writeJSON(w, r, status, viewOf(id, wz))
}

func (c *Component) submitSession(w http.ResponseWriter, r *http.Request) {
	id, wz, err := c.lookupSession(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	outcome, err := wz.OnSubmit(r.Context())
	switch {
	case errors.Is(err, submit.ErrInFlight):
		writeError(w, r, StatusError{Code: http.StatusConflict, Err: err})
		return
	case errors.Is(err, submit.ErrDiscarded):
		writeError(w, r, StatusError{Code: http.StatusGone, Err: err})
		return
	case err != nil:
		writeError(w, r, err)
		return
	}
	if outcome.State == submit.StateSucceeded {
		c.sessions.Remove(id)
	}
	writeOutcome(w, r, outcome)
}

func (c *Component) lookupForm(r *http.Request) (*model.Form, error) {
	id := r.PathValue("form")
	form, err := c.opts.Forms.Form(id)
	if err != nil {
		if errors.Is(err, formdef.ErrUnknownForm) {
			return nil, StatusError{Code: http.StatusNotFound, Err: err}
		}
		return nil, err
	}
	return form, nil
}

func (c *Component) lookupSession(r *http.Request) (string, *wizard.Wizard, error) {
	id := r.PathValue("id")
	wz, ok := c.sessions.Get(id)
	if !ok {
		return id, nil, errUnknownSession(id)
	}
	return id, wz, nil
}

func errUnknownSession(id string) error {
	return StatusError{Code: http.StatusNotFound, Err: fmt.Errorf("intake: unknown session %q", id)}
}

func (c *Component) decodeBody(w http.ResponseWriter, r *http.Request, dest any) error {
	body := http.MaxBytesReader(w, r.Body, c.opts.MaxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dest); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return StatusError{Code: http.StatusRequestEntityTooLarge, Err: err}
		}
		return StatusError{Code: http.StatusBadRequest, Err: fmt.Errorf("intake: decode body: %w", err)}
	}
	return nil
}

func writeOutcome(w http.ResponseWriter, r *http.Request, outcome submit.Outcome) {
	switch outcome.State {
	case submit.StateSucceeded:
		writeJSON(w, r, http.StatusCreated, acceptedResponse{ID: outcome.ID, Message: outcome.Message})
	case submit.StateRejected:
		writeJSON(w, r, http.StatusUnprocessableEntity, rejectedResponse{Step: outcome.Step, Errors: outcome.Errors})
	default:
		writeJSON(w, r, http.StatusBadGateway, failedResponse{Message: outcome.Message})
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(body)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	var httpErr HTTPError
	if errors.As(err, &httpErr) && httpErr != nil {
		code = httpErr.StatusCode()
	}
	msg := http.StatusText(code)
	if code < http.StatusInternalServerError && err != nil {
		msg = err.Error()
	}
	writeJSON(w, r, code, errorResponse{Error: msg})
}

func writeGuardError(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusForbidden
	var httpErr HTTPError
	if errors.As(err, &httpErr) && httpErr != nil {
		code = httpErr.StatusCode()
		if code <= 0 {
			code = http.StatusForbidden
		}
	}
	writeJSON(w, r, code, errorResponse{Error: http.StatusText(code)})
}

func parseInt(raw string) int {
	if raw == "" {
		return 0
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return value
}
