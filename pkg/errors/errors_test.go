package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	err := New(KindTransientNotFound, "parent work not found")
	assert.Equal(t, "transient_not_found: parent work not found", err.Error())

	err = err.AddRecordType("instance").AddIdentifier("isbn:9780140449136")
	assert.Equal(t, "transient_not_found: record 'instance' -> identifier 'isbn:9780140449136': parent work not found", err.Error())
}

func TestNewfWrapsCause(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Newf(KindExternalService, "authority lookup failed: %w", cause)

	assert.Contains(t, err.Error(), "connection refused")
	assert.ErrorIs(t, err, cause)
}

func TestKindOf(t *testing.T) {
	err := New(KindInvalidIdentifier, "all zeros")
	assert.Equal(t, KindInvalidIdentifier, KindOf(err))
	assert.True(t, IsInvalidIdentifier(err))
	assert.False(t, IsTransientNotFound(err))

	wrapped := fmt.Errorf("processing record: %w", err)
	assert.Equal(t, KindInvalidIdentifier, KindOf(wrapped), "classification survives wrapping")

	assert.Equal(t, Kind(""), KindOf(stderrors.New("plain")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestToHTTPError(t *testing.T) {
	invalid := New(KindInvalidIdentifier, "bad identifier").ToHTTPError()
	require.True(t, httperror.IsHTTPError(invalid))
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(invalid))

	transient := New(KindTransientNotFound, "not yet").ToHTTPError()
	assert.Equal(t, http.StatusInternalServerError, httperror.GetStatusCode(transient))
}
