// Package validation provides struct validation built on
// go-playground/validator, returning structured AppErrors with
// per-field details.
package validation
