package google

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/furniture-store/internal/domain/auth"
)

func TestVerifier_Verify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":"invalid_request","error_description":"Invalid Credentials"}`)
			return
		}
		_, _ = io.WriteString(w, `{"sub":"1090","name":"Anu Thomas","given_name":"Anu",`+
			`"picture":"https://lh3.googleusercontent.com/a/x","email":"anu@gmail.com","email_verified":true}`)
	}))
	defer srv.Close()

	v := NewVerifier(srv.URL, srv.Client())

	id, err := v.Verify(context.Background(), "good-token")
	require.NoError(t, err)
	assert.Equal(t, &auth.Identity{
		Subject: "1090",
		Email:   "anu@gmail.com",
		Name:    "Anu Thomas",
		Picture: "https://lh3.googleusercontent.com/a/x",
	}, id)

	_, err = v.Verify(context.Background(), "bad-token")
	require.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestVerifier_UpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewVerifier(srv.URL, srv.Client()).Verify(context.Background(), "t")
	require.Error(t, err)
	assert.NotErrorIs(t, err, auth.ErrInvalidToken)
}

func TestDecodeIdentity_MissingEmail(t *testing.T) {
	id, err := decodeIdentity([]byte(`{"sub":"1","email":null}`))
	require.NoError(t, err)
	assert.Empty(t, id.Email)
}
