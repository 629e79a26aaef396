package api

import (
	"errors"
	"net/http"

	"github.com/cacvote/server/internal/store"
)

// statusForErr maps a store error to an HTTP status, using errors.As
// against each exported error type rather than sentinel-string matching.
// An unknown machine is malformed client input — the same bucket as a bad
// TLV or a bad signature — not an absent-resource lookup, so it shares
// VerificationFailedError's 400 rather than taking 404 (404 is reserved
// for the absent-object path, which handleGetObject handles directly).
func statusForErr(err error) (int, string) {
	var verificationErr *store.VerificationFailedError
	if errors.As(err, &verificationErr) {
		return http.StatusBadRequest, verificationErr.Error()
	}

	var missingJurisdictionErr *store.MissingJurisdictionError
	if errors.As(err, &missingJurisdictionErr) {
		return http.StatusBadRequest, missingJurisdictionErr.Error()
	}

	var unknownMachineErr *store.UnknownMachineError
	if errors.As(err, &unknownMachineErr) {
		return http.StatusBadRequest, unknownMachineErr.Error()
	}

	var integrityErr *store.IntegrityViolationError
	if errors.As(err, &integrityErr) {
		return http.StatusConflict, integrityErr.Error()
	}

	var resourceExhaustedErr *store.ResourceExhaustedError
	if errors.As(err, &resourceExhaustedErr) {
		return http.StatusServiceUnavailable, resourceExhaustedErr.Error()
	}

	var databaseErr *store.DatabaseError
	if errors.As(err, &databaseErr) {
		return http.StatusInternalServerError, databaseErr.Error()
	}

	return http.StatusInternalServerError, err.Error()
}
