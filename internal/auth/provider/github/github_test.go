package github

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakeGitHub struct {
	profile map[string]any
	emails  []map[string]any
	lastVer string
}

func (f *fakeGitHub) server(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		f.lastVer = r.Form.Get("code_verifier")
		if r.Form.Get("code") != "good-code" {
			http.Error(w, `{"error":"bad_verification_code"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"bearer"}`))
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(f.profile)
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(f.emails)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newProvider(t *testing.T, srv *httptest.Server) *Provider {
	t.Helper()
	p, err := New("id", "secret", "http://localhost/cb",
		WithEndpoint(oauth2.Endpoint{
			AuthURL:  srv.URL + "/login/oauth/authorize",
			TokenURL: srv.URL + "/login/oauth/access_token",
		}),
		WithAPIBaseURL(srv.URL),
	)
	require.NoError(t, err)
	return p
}

func TestNewRequiresFields(t *testing.T) {
	_, err := New("", "secret", "http://localhost/cb")
	require.Error(t, err)
}

func TestAuthCodeURL(t *testing.T) {
	p, err := New("id", "secret", "http://localhost/cb")
	require.NoError(t, err)

	u, err := url.Parse(p.AuthCodeURL("st", "ch"))
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "github.com", u.Host)
	assert.Equal(t, "st", q.Get("state"))
	assert.Equal(t, "ch", q.Get("code_challenge"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.Equal(t, "read:user user:email", q.Get("scope"))
}

func TestExchangeCodePublicEmail(t *testing.T) {
	f := &fakeGitHub{
		profile: map[string]any{"id": 42, "login": "octo", "name": "Octo Cat", "email": "Octo@GitHub.com"},
	}
	p := newProvider(t, f.server(t))

	id, err := p.ExchangeCode(context.Background(), "good-code", "verifier")
	require.NoError(t, err)

	assert.Equal(t, "verifier", f.lastVer)
	assert.Equal(t, "github", id.Provider)
	assert.Equal(t, "42", id.ProviderUserID)
	assert.Equal(t, "Octo@GitHub.com", id.Email)
	assert.True(t, id.EmailVerified)
	assert.Equal(t, "Octo Cat", id.Name)
}

func TestExchangeCodePrivateEmailUsesPrimaryVerified(t *testing.T) {
	f := &fakeGitHub{
		profile: map[string]any{"id": 7, "login": "hidden"},
		emails: []map[string]any{
			{"email": "old@example.com", "primary": false, "verified": true},
			{"email": "unverified@example.com", "primary": true, "verified": false},
			{"email": "main@example.com", "primary": true, "verified": true},
		},
	}
	p := newProvider(t, f.server(t))

	id, err := p.ExchangeCode(context.Background(), "good-code", "v")
	require.NoError(t, err)

	assert.Equal(t, "main@example.com", id.Email)
	assert.True(t, id.EmailVerified)
	assert.Equal(t, "hidden", id.Name)
}

func TestExchangeCodeNoVerifiedEmail(t *testing.T) {
	f := &fakeGitHub{
		profile: map[string]any{"id": 7, "login": "hidden"},
		emails:  []map[string]any{{"email": "x@example.com", "primary": true, "verified": false}},
	}
	p := newProvider(t, f.server(t))

	_, err := p.ExchangeCode(context.Background(), "good-code", "v")
	require.Error(t, err)
}

func TestExchangeCodeBadCode(t *testing.T) {
	f := &fakeGitHub{}
	p := newProvider(t, f.server(t))

	_, err := p.ExchangeCode(context.Background(), "bad-code", "v")
	require.Error(t, err)
}
