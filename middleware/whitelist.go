package middleware

// DefaultPublicPaths are the routes reachable without a token
var DefaultPublicPaths = []string{
	"/auth/register",
	"/auth/login",
	"/auth/confirm",
	"/auth/resend-code",
	"/health",
	"/health/deep",
}

// Whitelist decides whether a request path is public. Matching is
// exact: "/auth/login/" or "/auth/login/x" do not match "/auth/login".
type Whitelist struct {
	paths map[string]struct{}
}

// NewWhitelist creates a Whitelist from a list of exact paths
func NewWhitelist(paths ...string) *Whitelist {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}
	return &Whitelist{paths: set}
}

// Contains reports whether path is public
func (w *Whitelist) Contains(path string) bool {
	_, ok := w.paths[path]
	return ok
}
