// Package guard decides whether a route may render for the current session.
//
// Resolve is a pure function of the path and the session: it performs no
// I/O and can be called on every navigation.
package guard

import (
	"path"
	"strings"

	"github.com/mmynk/chama/internal/models"
)

// Redirect targets.
const (
	LoginPath     = "/login"
	DashboardPath = "/dashboard"
)

// State is the authentication state a guard distinguishes.
type State int

const (
	Anonymous State = iota
	AuthenticatedNonAdmin
	AuthenticatedAdmin
)

func (s State) String() string {
	switch s {
	case AuthenticatedNonAdmin:
		return "member"
	case AuthenticatedAdmin:
		return "admin"
	}
	return "anonymous"
}

// StateOf derives the guard state from a session. A session without a token
// is anonymous.
func StateOf(sess *models.Session) State {
	switch {
	case sess == nil || sess.Token == "":
		return Anonymous
	case sess.IsAdmin:
		return AuthenticatedAdmin
	}
	return AuthenticatedNonAdmin
}

// Access is the protection level of a route.
type Access int

const (
	Public Access = iota
	Protected
	Admin
)

func (a Access) String() string {
	switch a {
	case Public:
		return "public"
	case Admin:
		return "admin"
	}
	return "protected"
}

// Decision is the outcome of Resolve. Redirect is empty when Allowed.
type Decision struct {
	Path     string
	Access   Access
	Allowed  bool
	Redirect string
}

// Routes maps every known path to its access level. Paths missing from the
// table are protected.
var Routes = map[string]Access{
	"/":         Public,
	"/login":    Public,
	"/register": Public,

	"/dashboard":     Protected,
	"/profile":       Protected,
	"/group":         Protected,
	"/create-group":  Protected,
	"/contribute":    Protected,
	"/borrow":        Protected,
	"/repay":         Protected,
	"/transactions":  Protected,
	"/notifications": Protected,
	"/settings":      Protected,
	"/finance":       Protected,

	"/admin":           Admin,
	"/admin/dashboard": Admin,
}

// AccessOf returns the access level of p. Anything under /admin is admin-only.
func AccessOf(p string) Access {
	p = normalize(p)
	if a, ok := Routes[p]; ok {
		return a
	}
	if strings.HasPrefix(p, "/admin/") {
		return Admin
	}
	return Protected
}

// Resolve decides whether p renders for sess.
//
//	Anonymous   -> /login for protected and admin routes
//	NonAdmin    -> /dashboard for admin routes
//	Admin       -> everything renders
func Resolve(p string, sess *models.Session) Decision {
	p = normalize(p)
	d := Decision{Path: p, Access: AccessOf(p), Allowed: true}

	state := StateOf(sess)
	switch {
	case d.Access == Public:
	case state == Anonymous:
		d.Allowed, d.Redirect = false, LoginPath
	case d.Access == Admin && state != AuthenticatedAdmin:
		d.Allowed, d.Redirect = false, DashboardPath
	}
	return d
}

func normalize(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
