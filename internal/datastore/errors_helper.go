package datastore

import (
	"context"

	"github.com/tphakala/fieldlog/internal/errors"
)

// dbError wraps a backend failure, keeping the backend's message.
func dbError(err error, entity, operation string) error {
	category := errors.CategoryDatabase
	if errors.Is(err, context.DeadlineExceeded) {
		category = errors.CategoryTimeout
	}
	return errors.New(err).
		Component("datastore").
		Category(category).
		Context("entity", entity).
		Context("operation", operation).
		Build()
}

func notFound(entity, id string) error {
	return errors.Newf("%s %s not found", entity, id).
		Component("datastore").
		Category(errors.CategoryNotFound).
		Context("entity", entity).
		Build()
}

func storageError(err error, entity, operation string) error {
	return errors.New(err).
		Component("datastore").
		Category(errors.CategoryFileIO).
		Context("entity", entity).
		Context("operation", operation).
		Build()
}
