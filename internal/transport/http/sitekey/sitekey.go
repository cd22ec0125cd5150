// Package sitekey selects the cookie names for the front-end a request belongs to.
//
// The site is the first path segment after /api/v1/. Several front-ends share
// one backend without their cookies colliding.
package sitekey

import (
	"net/http"
	"strings"
	"time"

	"github.com/arklim/chat-account-api/internal/core/domain"
)

const apiPrefix = "/api/v1/"

// Cookies names the access and refresh cookies of one site.
type Cookies struct {
	Access  string
	Refresh string
}

// Options controls the attributes written on token cookies.
type Options struct {
	Secure        bool
	Domain        string
	SameSite      http.SameSite
	AccessMaxAge  time.Duration
	RefreshMaxAge time.Duration
}

// Resolver maps request paths to cookie pairs.
type Resolver struct {
	fallback Cookies
	sites    map[string]Cookies
	opts     Options
}

func NewResolver(fallback Cookies, sites map[string]Cookies, opts Options) *Resolver {
	if fallback.Access == "" {
		fallback.Access = "accessToken"
	}
	if fallback.Refresh == "" {
		fallback.Refresh = "refreshToken"
	}
	normalized := make(map[string]Cookies, len(sites))
	for site, cookies := range sites {
		normalized[strings.ToLower(site)] = cookies
	}
	if opts.SameSite == 0 {
		opts.SameSite = http.SameSiteLaxMode
	}
	return &Resolver{fallback: fallback, sites: normalized, opts: opts}
}

// FromPath extracts the segment following /api/v1/, or "" when there is none.
func FromPath(path string) string {
	idx := strings.Index(path, apiPrefix)
	if idx < 0 {
		return ""
	}
	rest := path[idx+len(apiPrefix):]
	if slash := strings.IndexByte(rest, '/'); slash >= 0 {
		rest = rest[:slash]
	}
	return strings.ToLower(rest)
}

// Resolve returns the site named by path and its cookie pair. Unknown sites
// use the fallback pair and report "".
func (r *Resolver) Resolve(path string) (string, Cookies) {
	site := FromPath(path)
	if cookies, ok := r.sites[site]; ok {
		return site, cookies
	}
	return "", r.fallback
}

// AccessToken reads the access cookie for the request's site.
func (r *Resolver) AccessToken(req *http.Request) string {
	_, cookies := r.Resolve(req.URL.Path)
	return cookieValue(req, cookies.Access)
}

// RefreshToken reads the refresh cookie for the request's site.
func (r *Resolver) RefreshToken(req *http.Request) string {
	_, cookies := r.Resolve(req.URL.Path)
	return cookieValue(req, cookies.Refresh)
}

// SetTokens writes both tokens as httpOnly cookies named for the request's site.
func (r *Resolver) SetTokens(w http.ResponseWriter, req *http.Request, pair domain.TokenPair) {
	_, cookies := r.Resolve(req.URL.Path)
	http.SetCookie(w, r.cookie(cookies.Access, pair.AccessToken, r.opts.AccessMaxAge))
	http.SetCookie(w, r.cookie(cookies.Refresh, pair.RefreshToken, r.opts.RefreshMaxAge))
}

// Clear expires both cookies of the request's site.
func (r *Resolver) Clear(w http.ResponseWriter, req *http.Request) {
	_, cookies := r.Resolve(req.URL.Path)
	for _, name := range []string{cookies.Access, cookies.Refresh} {
		cookie := r.cookie(name, "", 0)
		cookie.MaxAge = -1
		cookie.Expires = time.Unix(0, 0)
		http.SetCookie(w, cookie)
	}
}

func (r *Resolver) cookie(name, value string, maxAge time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   r.opts.Domain,
		MaxAge:   int(maxAge.Seconds()),
		Secure:   r.opts.Secure,
		HttpOnly: true,
		SameSite: r.opts.SameSite,
	}
}

func cookieValue(req *http.Request, name string) string {
	cookie, err := req.Cookie(name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(cookie.Value)
}

// ParseSameSite maps a config value onto http.SameSite. Unknown values are lax.
func ParseSameSite(raw string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
