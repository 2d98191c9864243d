// Package errors provides coded, structured errors for tampa.
//
// Every error has a code (e.g. "T001") registered with a category, a short
// message and a longer detail. Callers attach a field-specific detail and
// wrap the underlying cause:
//
//	err := errors.New(errors.CodeMissingCapability).
//	    WithDetail("host *Card does not implement SetAttribute").
//	    WithSuggestion("embed element.Base in the component struct")
//
// Two errors with the same code match under errors.Is, so callers can test
// for a class of failure without inspecting messages:
//
//	if stderrors.Is(err, errors.New(errors.CodeLoaderRequired)) { ... }
//
// # Categories
//
//   - binding: property/state binding misuse on a host
//   - resource: resource construction errors
//   - config: environment configuration errors
//   - api: CRUD API request failures
//   - cli: command line usage errors
package errors
