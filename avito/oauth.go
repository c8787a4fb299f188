package avito

import (
	"strings"

	"golang.org/x/oauth2"
)

// OAuth scopes the product requests.
const (
	ScopeShortTermRent  = "short_term_rent"
	ScopeMessengerRead  = "messenger:read"
	ScopeMessengerWrite = "messenger:write"
)

// authURL is where the marketplace hosts its consent screen. Unlike the API
// host it is not configurable; only the token URL varies in tests.
const authURL = "https://avito.ru/oauth"

// Endpoint returns the OAuth2 endpoint for the given API host. Credentials
// travel in the request body, not basic auth.
func Endpoint(baseURL string) oauth2.Endpoint {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}

	return oauth2.Endpoint{
		AuthURL:   authURL,
		TokenURL:  base + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
}

// ScopeContains reports whether a space-separated scope grant includes want.
func ScopeContains(scope, want string) bool {
	for _, s := range strings.Fields(scope) {
		if s == want {
			return true
		}
	}

	return false
}
