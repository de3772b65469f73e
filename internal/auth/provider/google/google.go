package google

import (
	"context"
	"errors"

	"ignews-service/internal/auth/provider/oidc"
)

const (
	providerName = "google"
	issuer       = "https://accounts.google.com"
)

// New builds a Google sign-in provider on top of OIDC discovery.
func New(
	ctx context.Context,
	clientID string,
	clientSecret string,
	redirectURL string,
) (*oidc.Provider, error) {

	if clientID == "" || clientSecret == "" || redirectURL == "" {
		return nil, errors.New("google oauth config missing required fields")
	}

	return oidc.New(ctx, oidc.Config{
		Name:         providerName,
		Issuer:       issuer,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
	})
}
