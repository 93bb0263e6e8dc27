package errors_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"

	svcErr "github.com/whisperlink/whisperlink-backend/internal/errors"
)

func TestMapNil(t *testing.T) {
	assert.NoError(t, svcErr.Map(nil))
}

func TestMapPassesThroughClassifiedErrors(t *testing.T) {
	in := svcErr.AlreadyExists("you already added this person")
	out := svcErr.Map(in)
	assert.Equal(t, in, out)
	assert.Equal(t, codes.AlreadyExists, status.Code(out))
}

func TestMapRecordNotFound(t *testing.T) {
	out := svcErr.Map(gorm.ErrRecordNotFound)
	assert.Equal(t, codes.NotFound, status.Code(out))
}

func TestMapDuplicatedKey(t *testing.T) {
	// TranslateError surfaces constraint violations as ErrDuplicatedKey;
	// a racing insert that slips past an existence check must still come
	// back as AlreadyExists, not Internal
	out := svcErr.Map(gorm.ErrDuplicatedKey)
	assert.Equal(t, codes.AlreadyExists, status.Code(out))

	wrapped := fmt.Errorf("create edge: %w", gorm.ErrDuplicatedKey)
	assert.Equal(t, codes.AlreadyExists, status.Code(svcErr.Map(wrapped)))
}

func TestMapContextErrors(t *testing.T) {
	assert.Equal(t, codes.DeadlineExceeded, status.Code(svcErr.Map(context.DeadlineExceeded)))
	assert.Equal(t, codes.Canceled, status.Code(svcErr.Map(context.Canceled)))
}

func TestMapUnknownErrorIsInternal(t *testing.T) {
	out := svcErr.Map(fmt.Errorf("driver: bad connection"))
	assert.Equal(t, codes.Internal, status.Code(out))
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{svcErr.Unauthenticated("x"), http.StatusUnauthorized},
		{svcErr.PermissionDenied("x"), http.StatusForbidden},
		{svcErr.InvalidArgument("x"), http.StatusBadRequest},
		{svcErr.FailedPrecondition("x"), http.StatusBadRequest},
		{svcErr.AlreadyExists("x"), http.StatusConflict},
		{svcErr.ResourceExhausted("x"), http.StatusTooManyRequests},
		{svcErr.Map(fmt.Errorf("boom")), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, svcErr.HTTPStatus(tc.err), "code %s", status.Code(tc.err))
	}
}
