package logging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/require"
)

func TestNewContext(t *testing.T) {
	assert := require.New(t)

	ctx, err := NewContext(context.Background())
	assert.NoError(err)
	assert.NotEqual(uuid.Nil, ContextID(ctx))
	assert.Equal(uuid.Nil, ContextID(context.Background()))
}

func TestCtxIDMiddleware(t *testing.T) {
	assert := require.New(t)

	var id uuid.UUID
	h := CtxIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id = ContextID(r.Context())
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v3", nil))
	assert.NotEqual(uuid.Nil, id)
}
