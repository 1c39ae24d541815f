// Package google resolves Google OAuth access tokens to user profiles.
package google

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"golang.org/x/oauth2"

	"github.com/xenking/furniture-store/internal/domain/auth"
)

// UserInfoURL is the OpenID Connect userinfo endpoint.
const UserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

var _ auth.IdentityVerifier = (*Verifier)(nil)

// Verifier implements auth.IdentityVerifier against the userinfo endpoint.
type Verifier struct {
	url  string
	base *http.Client
}

// NewVerifier returns a Verifier. An empty url selects UserInfoURL and a nil
// client a default one with a timeout.
func NewVerifier(url string, client *http.Client) *Verifier {
	if url == "" {
		url = UserInfoURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Verifier{url: url, base: client}
}

// Verify implements auth.IdentityVerifier.
func (v *Verifier) Verify(ctx context.Context, accessToken string) (*auth.Identity, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, v.base)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.url, http.NoBody)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "userinfo")
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest:
		return nil, auth.ErrInvalidToken
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("userinfo: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(err, "read userinfo")
	}
	id, err := decodeIdentity(data)
	if err != nil {
		return nil, errors.Wrap(err, "decode userinfo")
	}
	return id, nil
}

func decodeIdentity(data []byte) (*auth.Identity, error) {
	var id auth.Identity
	err := jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		var target *string
		switch string(key) {
		case "sub":
			target = &id.Subject
		case "email":
			target = &id.Email
		case "name":
			target = &id.Name
		case "picture":
			target = &id.Picture
		default:
			return d.Skip()
		}
		if d.Next() != jx.String {
			return d.Skip()
		}
		s, err := d.Str()
		*target = s
		return err
	})
	if err != nil {
		return nil, err
	}
	return &id, nil
}
