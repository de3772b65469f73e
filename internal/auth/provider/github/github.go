package github

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"ignews-service/internal/auth"
	"ignews-service/internal/logger"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"
	oauthgithub "golang.org/x/oauth2/github"
)

const (
	providerName   = "github"
	defaultAPIBase = "https://api.github.com"
)

// Provider implements the GitHub OAuth app flow. GitHub does not issue ID
// tokens, so identity facts come from the REST API with the access token.
type Provider struct {
	oauthConfig *oauth2.Config
	api         *resty.Client
}

type Option func(*Provider)

// WithEndpoint overrides the OAuth endpoints (GitHub Enterprise, tests).
func WithEndpoint(ep oauth2.Endpoint) Option {
	return func(p *Provider) {
		p.oauthConfig.Endpoint = ep
	}
}

// WithAPIBaseURL overrides the REST API base URL.
func WithAPIBaseURL(url string) Option {
	return func(p *Provider) {
		p.api.SetBaseURL(url)
	}
}

func New(
	clientID string,
	clientSecret string,
	redirectURL string,
	opts ...Option,
) (*Provider, error) {

	if clientID == "" || clientSecret == "" || redirectURL == "" {
		return nil, errors.New("github oauth config missing required fields")
	}

	p := &Provider{
		oauthConfig: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     oauthgithub.Endpoint,
			Scopes:       []string{"read:user", "user:email"},
		},
		api: resty.New().
			SetBaseURL(defaultAPIBase).
			SetHeader("Accept", "application/vnd.github+json").
			SetHeader("X-GitHub-Api-Version", "2022-11-28"),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Name returns the provider identifier used by the registry.
func (p *Provider) Name() string {
	return providerName
}

// AuthCodeURL builds the OAuth authorization URL with PKCE parameters.
func (p *Provider) AuthCodeURL(state string, codeChallenge string) string {
	return p.oauthConfig.AuthCodeURL(
		state,
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

type profile struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type emailEntry struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

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
		return nil, fmt.Errorf("github token exchange failed: %w", err)
	}

	var prof profile
	resp, err := p.api.R().
		SetContext(ctx).
		SetAuthToken(token.AccessToken).
		SetResult(&prof).
		Get("/user")
	if err != nil {
		return nil, fmt.Errorf("github profile request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("github profile request failed: status %d", resp.StatusCode())
	}

	if prof.ID == 0 {
		return nil, errors.New("github profile missing id")
	}

	// GitHub only lets a verified address be shown on the public profile.
	email := prof.Email
	verified := email != ""

	// The public profile email is empty when the user keeps it private.
	if email == "" {
		email, verified, err = p.primaryEmail(ctx, token.AccessToken)
		if err != nil {
			return nil, err
		}
	}

	name := prof.Name
	if name == "" {
		name = prof.Login
	}

	logger.Info("github identity fetched", map[string]any{
		"login":          prof.Login,
		"email_present":  email != "",
		"email_verified": verified,
	})

	return &auth.Identity{
		Provider:       providerName,
		ProviderUserID: strconv.FormatInt(prof.ID, 10),
		Email:          email,
		EmailVerified:  verified,
		Name:           name,
	}, nil
}

func (p *Provider) primaryEmail(ctx context.Context, accessToken string) (string, bool, error) {
	var entries []emailEntry

	resp, err := p.api.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetResult(&entries).
		Get("/user/emails")
	if err != nil {
		return "", false, fmt.Errorf("github emails request failed: %w", err)
	}
	if resp.IsError() {
		return "", false, fmt.Errorf("github emails request failed: status %d", resp.StatusCode())
	}

	var fallback *emailEntry
	for i := range entries {
		e := &entries[i]
		if !e.Verified {
			continue
		}
		if e.Primary {
			return e.Email, true, nil
		}
		if fallback == nil {
			fallback = e
		}
	}

	if fallback != nil {
		return fallback.Email, true, nil
	}

	return "", false, errors.New("github account has no verified email")
}
