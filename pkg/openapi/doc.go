// Package openapi describes form submission payloads as OpenAPI 3 schemas so
// external clients can post to the intake endpoints without reading form
// definitions.
package openapi
