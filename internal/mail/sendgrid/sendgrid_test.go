package sendgrid

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/furniture-store/internal/domain/notify"
)

type sentMail struct {
	From struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"from"`
	Subject          string `json:"subject"`
	Personalizations []struct {
		To []struct {
			Email string `json:"email"`
		} `json:"to"`
	} `json:"personalizations"`
	Content []struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	} `json:"content"`
}

func TestMailer_Send(t *testing.T) {
	var (
		auth string
		got  sentMail
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/mail/send", r.URL.Path)
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	m, err := New(Config{APIKey: "SG.key", From: "orders@nilambur.com", FromName: "Nilambur Furniture", Host: srv.URL})
	require.NoError(t, err)

	require.NoError(t, m.Send(context.Background(), notify.Message{
		To:      "anu@example.com",
		Subject: "Order Confirmed!",
		HTML:    "<p>Thanks</p>",
		Text:    "Thanks",
	}))

	assert.Equal(t, "Bearer SG.key", auth)
	assert.Equal(t, "orders@nilambur.com", got.From.Email)
	assert.Equal(t, "Nilambur Furniture", got.From.Name)
	assert.Equal(t, "Order Confirmed!", got.Subject)
	require.Len(t, got.Personalizations, 1)
	require.Len(t, got.Personalizations[0].To, 1)
	assert.Equal(t, "anu@example.com", got.Personalizations[0].To[0].Email)
	require.Len(t, got.Content, 2)
	assert.Equal(t, "text/plain", got.Content[0].Type)
	assert.Equal(t, "text/html", got.Content[1].Type)
}

func TestMailer_FromNameOverride(t *testing.T) {
	var got sentMail
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	m, err := New(Config{APIKey: "k", From: "orders@nilambur.com", FromName: "Store", Host: srv.URL})
	require.NoError(t, err)
	require.NoError(t, m.Send(context.Background(), notify.Message{
		To: "owner@nilambur.com", FromName: "Nilambur Security", Subject: "OTP", Text: "123456",
	}))
	assert.Equal(t, "Nilambur Security", got.From.Name)
	require.Len(t, got.Content, 1)
}

func TestMailer_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"errors":[{"message":"The from address does not match a verified Sender Identity."}]}`)
	}))
	defer srv.Close()

	m, err := New(Config{APIKey: "k", From: "x@y.z", Host: srv.URL})
	require.NoError(t, err)
	err = m.Send(context.Background(), notify.Message{To: "a@b.c", Subject: "s", Text: "t"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{From: "x@y.z"})
	require.Error(t, err)
	_, err = New(Config{APIKey: "k"})
	require.Error(t, err)
}
