// Package source defines the boundary to institution data sources and the
// closed set of variants implementing it. The sync core is polymorphic over
// this capability pair; whether a variant drives a browser, calls an API or
// reads an export file on disk is invisible to it.
package source

import (
	"context"

	"dlev/finsync/internal/creds"
	"dlev/finsync/internal/models"
)

// Session is an authenticated connection to one institution. Sessions are
// stateful and expensive; the orchestrator closes them on every exit path.
type Session interface {
	Close() error
}

// Source is what every institution variant implements.
//
// Authenticate fails with syncerror.AuthenticationError on bad credentials or
// MFA timeout. Fetch returns the raw records of every account the credentials
// expose within the window, failing with syncerror.NetworkError or
// syncerror.DataExtractionError.
type Source interface {
	Authenticate(ctx context.Context, set creds.Set) (Session, error)
	Fetch(ctx context.Context, sess Session, window models.DateRange) ([]models.RawAccount, error)
}
