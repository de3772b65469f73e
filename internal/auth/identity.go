package auth

// Identity represents a normalized external authentication identity
// returned by an OAuth provider. It contains facts only, no decisions.
type Identity struct {
	Provider       string // e.g. "github", "google"
	ProviderUserID string // provider-scoped unique user identifier
	Email          string // email returned by provider, as-is
	EmailVerified  bool   // whether provider asserts email ownership
	Name           string // display name, may be empty
}
