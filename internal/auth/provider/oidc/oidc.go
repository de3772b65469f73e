// Package oidc implements OAuth + OpenID Connect sign-in against any issuer
// that supports discovery. It returns identity facts only; no user or
// session decisions are made here.
package oidc

import (
	"context"
	"errors"
	"fmt"

	"ignews-service/internal/auth"
	"ignews-service/internal/logger"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

const DefaultName = "oidc"

var ErrEmailNotVerified = errors.New("email not verified by issuer")

type Config struct {
	// Name is the registry name, e.g. "google" or "oidc".
	Name         string
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

type Provider struct {
	name        string
	oauthConfig *oauth2.Config
	verifier    *gooidc.IDTokenVerifier
}

// New initializes a provider using issuer discovery.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.Issuer == "" || cfg.ClientID == "" || cfg.RedirectURL == "" {
		return nil, errors.New("oidc config missing required fields")
	}

	if cfg.Name == "" {
		cfg.Name = DefaultName
	}

	oidcProvider, err := gooidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to init %s oidc provider: %w", cfg.Name, err)
	}

	verifier := oidcProvider.Verifier(&gooidc.Config{
		ClientID: cfg.ClientID,
	})

	return newWithVerifier(cfg, oidcProvider.Endpoint(), verifier), nil
}

func newWithVerifier(cfg Config, ep oauth2.Endpoint, verifier *gooidc.IDTokenVerifier) *Provider {
	return &Provider{
		name: cfg.Name,
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     ep,
			Scopes: []string{
				gooidc.ScopeOpenID,
				"email",
				"profile",
			},
		},
		verifier: verifier,
	}
}

// Name returns the provider identifier used by the registry.
func (p *Provider) Name() string {
	return p.name
}

// AuthCodeURL builds the OAuth authorization URL with PKCE parameters.
func (p *Provider) AuthCodeURL(state string, codeChallenge string) string {
	return p.oauthConfig.AuthCodeURL(
		state,
		oauth2.AccessTypeOnline,
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

// ExchangeCode exchanges the authorization code and returns a normalized identity.
func (p *Provider) ExchangeCode(
	ctx context.Context,
	code string,
	codeVerifier string,
) (*auth.Identity, error) {

	token, err := p.oauthConfig.Exchange(
		ctx,
		code,
		oauth2.SetAuthURLParam("code_verifier", codeVerifier),
	)
	if err != nil {
		return nil, fmt.Errorf("%s token exchange failed: %w", p.name, err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, fmt.Errorf("%s did not return id_token", p.name)
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("%s id_token verification failed: %w", p.name, err)
	}

	var claims struct {
		Subject           string `json:"sub"`
		Email             string `json:"email"`
		EmailVerified     bool   `json:"email_verified"`
		Name              string `json:"name"`
		PreferredUsername string `json:"preferred_username"`
	}

	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%s id_token claims parse failed: %w", p.name, err)
	}

	if claims.Subject == "" || claims.Email == "" {
		return nil, fmt.Errorf("%s id_token missing required claims", p.name)
	}

	if !claims.EmailVerified {
		return nil, fmt.Errorf("%s: %w", p.name, ErrEmailNotVerified)
	}

	name := claims.Name
	if name == "" {
		name = claims.PreferredUsername
	}

	logger.Info("oidc verified", map[string]any{
		"provider":       p.name,
		"issuer":         idToken.Issuer,
		"email_verified": claims.EmailVerified,
		"audience":       idToken.Audience,
		"expiry_unix":    idToken.Expiry.Unix(),
	})

	return &auth.Identity{
		Provider:       p.name,
		ProviderUserID: claims.Subject,
		Email:          claims.Email,
		EmailVerified:  claims.EmailVerified,
		Name:           name,
	}, nil
}
