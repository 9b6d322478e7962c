package openapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-formwizard/pkg/model"
)

// FormSource lists the forms a document should describe.
type FormSource interface {
	Forms() []*model.Form
}

// Options configures Build.
type Options struct {
	Title    string
	Version  string
	BasePath string
}

func (o Options) withDefaults() Options {
	if o.Title == "" {
		o.Title = "Form intake API"
	}
	if o.Version == "" {
		o.Version = "1.0.0"
	}
	o.BasePath = "/" + strings.Trim(o.BasePath, "/")
	if o.BasePath == "/" {
		o.BasePath = ""
	}
	return o
}

// Build returns a validated OpenAPI 3 document for the one-shot submission
// endpoint of every form in src.
func Build(ctx context.Context, src FormSource, opts Options) (*openapi3.T, error) {
	opts = opts.withDefaults()
	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{
		"SubmissionAccepted": openapi3.NewSchemaRef("", acceptedSchema()),
		"SubmissionRejected": openapi3.NewSchemaRef("", rejectedSchema()),
		"SubmissionFailed":   openapi3.NewSchemaRef("", failedSchema()),
		"FormSummary":        openapi3.NewSchemaRef("", summarySchema()),
	}

	doc := &openapi3.T{
		OpenAPI:    "3.0.3",
		Info:       &openapi3.Info{Title: opts.Title, Version: opts.Version},
		Paths:      openapi3.NewPaths(),
		Components: &components,
	}

	list := openapi3.NewOperation()
	list.OperationID = "listForms"
	list.Summary = "List available forms"
	summaries := openapi3.NewArraySchema()
	summaries.Items = componentRef(components, "FormSummary")
	list.Responses = openapi3.NewResponses(
		openapi3.WithStatus(http.StatusOK, &openapi3.ResponseRef{Value: openapi3.NewResponse().
			WithDescription("Form summaries").
			WithJSONSchema(summaries)}),
	)
	doc.AddOperation(opts.BasePath+"/forms", http.MethodGet, list)

	if src != nil {
		for _, form := range src.Forms() {
			name := ComponentName(form.ID)
			components.Schemas[name] = openapi3.NewSchemaRef("", SchemaFor(form))
			doc.AddOperation(opts.BasePath+"/forms/"+form.ID+"/submissions", http.MethodPost, submitOperation(components, form, name))
		}
	}

	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("openapi: validate document: %w", err)
	}
	return doc, nil
}

// ComponentName is the components/schemas key for a form's payload.
func ComponentName(formID string) string {
	return formID + "Submission"
}

func submitOperation(components openapi3.Components, form *model.Form, schemaName string) *openapi3.Operation {
	op := openapi3.NewOperation()
	op.OperationID = "submit_" + strings.ReplaceAll(form.ID, "-", "_")
	op.Summary = "Submit " + displayTitle(form)
	op.Description = form.Description
	op.Tags = []string{form.Collection}
	op.RequestBody = &openapi3.RequestBodyRef{Value: openapi3.NewRequestBody().
		WithRequired(true).
		WithJSONSchemaRef(componentRef(components, schemaName))}
	op.Responses = openapi3.NewResponses(
		openapi3.WithStatus(http.StatusCreated, responseRef(components, "Stored", "SubmissionAccepted")),
		openapi3.WithStatus(http.StatusUnprocessableEntity, responseRef(components, "Rejected by validation", "SubmissionRejected")),
		openapi3.WithStatus(http.StatusBadGateway, responseRef(components, "Store failure", "SubmissionFailed")),
	)
	return op
}

func responseRef(components openapi3.Components, description, schema string) *openapi3.ResponseRef {
	return &openapi3.ResponseRef{Value: openapi3.NewResponse().
		WithDescription(description).
		WithJSONSchemaRef(componentRef(components, schema))}
}

// componentRef points at a registered component schema. The value is kept
// alongside the ref so the document validates without a loader pass.
func componentRef(components openapi3.Components, name string) *openapi3.SchemaRef {
	var value *openapi3.Schema
	if existing, ok := components.Schemas[name]; ok {
		value = existing.Value
	}
	return openapi3.NewSchemaRef("#/components/schemas/"+name, value)
}

func displayTitle(form *model.Form) string {
	if form.Title != "" {
		return form.Title
	}
	return form.ID
}

func acceptedSchema() *openapi3.Schema {
	return openapi3.NewObjectSchema().
		WithProperty("id", openapi3.NewStringSchema()).
		WithProperty("message", openapi3.NewStringSchema()).
		WithRequired([]string{"id"})
}

func rejectedSchema() *openapi3.Schema {
	return openapi3.NewObjectSchema().
		WithProperty("step", openapi3.NewIntegerSchema()).
		WithProperty("errors", openapi3.NewObjectSchema().WithAdditionalProperties(openapi3.NewStringSchema())).
		WithRequired([]string{"step", "errors"})
}

func failedSchema() *openapi3.Schema {
	return openapi3.NewObjectSchema().
		WithProperty("message", openapi3.NewStringSchema()).
		WithRequired([]string{"message"})
}

func summarySchema() *openapi3.Schema {
	return openapi3.NewObjectSchema().
		WithProperty("id", openapi3.NewStringSchema()).
		WithProperty("title", openapi3.NewStringSchema()).
		WithProperty("collection", openapi3.NewStringSchema()).
		WithProperty("steps", openapi3.NewIntegerSchema())
}
