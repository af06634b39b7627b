// Package application contains the kill log synchronization use cases:
// admission of API keys, remote error classification, state mutation,
// sharded scheduling, per-shard fetching and killmail ingestion.
package application

import (
	"time"

	"github.com/ericfisherdev/killsync/internal/domain/model"
)

// ErrorCodeUnparseable is stored in place of CodeUnparseable. Zero reads as
// healthy, so an unreadable response is recorded under a negative marker.
const ErrorCodeUnparseable = -1

// Remote error codes with documented handling.
const (
	CodeUnparseable         = 0
	CodeTimeout             = 28
	CodeKillsExhausted      = 119
	CodeBeforeKillIDUnknown = 120
	CodeSecurityLevelLow    = 200
	CodeNotOnAccount        = 201
	CodeKeyAuthFailure      = 202
	CodeKeyRevoked          = 203
	CodeAuthFailure         = 204
	CodeAuthFailureFinal    = 205
	CodeNPCCorporation      = 207
	CodeNotAvailable        = 209
	CodeAuthFailureAlt      = 210
	CodeLoginDenied         = 211
	CodeSecurityLevelLowAlt = 220
	CodeIllegalPageAccess   = 221
	CodeAccountExpired      = 222
	CodeForbidden           = 403
	CodeNotFound            = 404
	CodeInternalServerError = 500
	CodeBadGateway          = 502
	CodeServiceUnavailable  = 503
	CodeDatabaseFailure     = 520
	CodeInvalidLogin        = 521
	CodeNotOnAccountAlt     = 522
	CodeBackendDisabled     = 902
	CodeTemporaryBan        = 904
)

const (
	globalStopDuration   = 5 * time.Minute
	unavailableBackoff   = 5 * time.Minute
	serverErrorBackoff   = time.Hour
	accountExpiryBackoff = 7 * 24 * time.Hour
)

// rule is the static half of an Action. Backoffs are relative and resolved
// against the classification time.
type rule struct {
	action     model.Action
	backoff    time.Duration
	remoteHint bool
}

var (
	destroyKey  = model.Action{ClearAllCharacters: true, ClearAPIEntry: true}
	serviceStop = rule{action: model.Action{GlobalStop: globalStopDuration}}
	unavailable = rule{backoff: unavailableBackoff}
	retryHint   = rule{remoteHint: true}
	invalidKey  = rule{action: destroyKey}
	transferred = rule{action: model.Action{ClearCharacter: true}}
	demoted     = rule{action: model.Action{DemoteCharacter: true}}
	serverFault = rule{backoff: serverErrorBackoff}
)

var rules = map[int]rule{
	CodeTimeout:      serviceStop,
	CodeTemporaryBan: serviceStop,

	CodeForbidden:          unavailable,
	CodeBadGateway:         unavailable,
	CodeServiceUnavailable: unavailable,

	CodeKillsExhausted:      retryHint,
	CodeBeforeKillIDUnknown: retryHint,

	CodeIllegalPageAccess:   invalidKey,
	CodeSecurityLevelLow:    invalidKey,
	CodeSecurityLevelLowAlt: invalidKey,

	CodeNotOnAccount:    transferred,
	CodeNotOnAccountAlt: transferred,

	CodeNPCCorporation: demoted,
	CodeNotAvailable:   demoted,

	CodeAccountExpired: {action: destroyKey, backoff: accountExpiryBackoff},
	CodeLoginDenied:    invalidKey,

	CodeKeyAuthFailure:   invalidKey,
	CodeKeyRevoked:       invalidKey,
	CodeAuthFailure:      invalidKey,
	CodeAuthFailureFinal: invalidKey,
	CodeAuthFailureAlt:   invalidKey,
	CodeInvalidLogin:     invalidKey,

	CodeInternalServerError: serverFault,
	CodeDatabaseFailure:     serverFault,
	CodeNotFound:            serverFault,
	CodeBackendDisabled:     serverFault,
}

// Classify maps a remote error code to the state mutations it calls for.
// remoteCachedUntil is the retry hint carried by the error, if any. Codes
// outside the table, including CodeUnparseable, soft-invalidate the key.
func Classify(code int, remoteCachedUntil, now time.Time) model.Action {
	r, ok := rules[code]
	if !ok {
		return model.Action{ClearAPIEntry: true, Unhandled: true}
	}

	action := r.action
	switch {
	case r.remoteHint:
		action.CacheUntil = remoteCachedUntil
	case r.backoff > 0:
		action.CacheUntil = now.Add(r.backoff)
	}
	return action
}
