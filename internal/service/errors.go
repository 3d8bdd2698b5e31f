package service

import (
	"github.com/zeebo/errs"
)

// Error classes surfaced by the services. Handlers map each class to a status.
var (
	ValidationError  = errs.Class("validation")
	NotFoundError    = errs.Class("not found")
	ConflictError    = errs.Class("conflict")
	ForbiddenError   = errs.Class("forbidden")
	StorageError     = errs.Class("storage")
	PersistenceError = errs.Class("persistence")
)

// IsClassified reports whether err already carries one of the service classes.
func IsClassified(err error) bool {
	return ValidationError.Has(err) ||
		NotFoundError.Has(err) ||
		ConflictError.Has(err) ||
		ForbiddenError.Has(err) ||
		StorageError.Has(err) ||
		PersistenceError.Has(err)
}

// persistence wraps unclassified errors as PersistenceError and passes
// classified ones through untouched.
func persistence(err error) error {
	if err == nil || IsClassified(err) {
		return err
	}
	return PersistenceError.Wrap(err)
}
