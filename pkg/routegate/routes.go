package routegate

import "strings"

// Kind partitions paths by who may reach them.
type Kind int

const (
	// KindPublic routes render regardless of session state.
	KindPublic Kind = iota

	// KindProtected routes render only for a resolved, authenticated
	// session.
	KindProtected
)

func (k Kind) String() string {
	if k == KindProtected {
		return "protected"
	}
	return "public"
}

// Classification is the static public/protected partition of the
// application's paths. It is fixed data, never derived at runtime.
type Classification struct {
	login     string
	landing   string
	protected map[string]struct{}
}

// NewClassification builds a Classification.
//
// login is the sign-in screen (public), landing is the default
// authenticated screen, and protected lists every protected path.
// Unlisted paths are public, which keeps error and not-found screens
// reachable without a session.
func NewClassification(login, landing string, protected []string) Classification {
	set := make(map[string]struct{}, len(protected))
	for _, p := range protected {
		set[canonical(p)] = struct{}{}
	}
	return Classification{
		login:     canonical(login),
		landing:   canonical(landing),
		protected: set,
	}
}

// Default returns the SacaRolha route table: /login is the sign-in
// screen, /home the landing screen, and the catalogue screens are
// protected.
func Default() Classification {
	return NewClassification("/login", "/home", []string{
		"/home",
		"/listagem",
		"/cadastrar",
		"/visualizar",
		"/configuracoes",
	})
}

// Kind classifies path. The root path is public: it is a dispatch point,
// not renderable content (see Decide).
func (c Classification) Kind(path string) Kind {
	if _, ok := c.protected[canonical(path)]; ok {
		return KindProtected
	}
	return KindPublic
}

// Login returns the sign-in screen path.
func (c Classification) Login() string { return c.login }

// Landing returns the default authenticated screen path.
func (c Classification) Landing() string { return c.landing }

// IsLogin reports whether path is the sign-in screen.
func (c Classification) IsLogin(path string) bool {
	return canonical(path) == c.login
}

// IsRoot reports whether path is the dispatch-only root.
func (c Classification) IsRoot(path string) bool {
	return canonical(path) == "/"
}

// Canonical normalizes a path the way the navigation layer does:
// leading slash, no trailing slash except root, no query string.
func Canonical(path string) string {
	return canonical(path)
}

func canonical(path string) string {
	path, _, _ = strings.Cut(path, "?")
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	return path
}
