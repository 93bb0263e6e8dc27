package identity

import (
	"context"

	"github.com/whisperlink/whisperlink-backend/internal/auth"
	"github.com/whisperlink/whisperlink-backend/internal/db"
	svcErr "github.com/whisperlink/whisperlink-backend/internal/errors"
)

// IndexReader is the slice of the identity store the resolver needs for
// its fallback lookups.
type IndexReader interface {
	GetExternalIDIndex(ctx context.Context, externalID string) (*db.ExternalIDIndex, error)
	GetUser(ctx context.Context, uid string) (*db.User, error)
}

// Resolver maps session claims plus an optional client-supplied handle
// to one canonical handle. Pure resolution: it never writes.
type Resolver struct {
	store IndexReader
}

// NewResolver creates a resolver over the given index reader.
func NewResolver(store IndexReader) *Resolver {
	return &Resolver{store: store}
}

// Resolve applies the resolution ladder:
//
//  1. a handle asserted by the session claims wins, after validation;
//  2. a client-supplied handle must then match it exactly, otherwise the
//     call is treated as spoofing;
//  3. with no asserted handle, a previously-recorded handle is trusted
//     only when it is tied to the same external id and the same uid;
//  4. otherwise the caller has to re-authenticate.
func (r *Resolver) Resolve(ctx context.Context, sess *auth.Session, clientHandle string) (string, error) {
	client := Normalize(clientHandle)
	if client != "" {
		if err := Validate(client); err != nil {
			return "", err
		}
	}

	asserted := Normalize(sess.ScreenName)
	if asserted != "" {
		if err := Validate(asserted); err != nil {
			return "", err
		}
		if client != "" && client != asserted {
			return "", svcErr.PermissionDenied("username does not match your signed-in account")
		}
		return asserted, nil
	}

	if sess.ProviderUserID != "" {
		if idx, err := r.store.GetExternalIDIndex(ctx, sess.ProviderUserID); err != nil {
			return "", svcErr.Map(err)
		} else if idx != nil && idx.UID == sess.UID {
			h := Normalize(idx.Handle)
			if Validate(h) == nil {
				return h, nil
			}
		}

		if u, err := r.store.GetUser(ctx, sess.UID); err != nil {
			return "", svcErr.Map(err)
		} else if u != nil && u.ExternalID == sess.ProviderUserID {
			h := Normalize(u.Handle)
			if Validate(h) == nil {
				return h, nil
			}
		}
	}

	return "", svcErr.FailedPrecondition("could not read your username from this session, please sign out and sign in again")
}
