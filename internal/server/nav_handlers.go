package server

import (
	"fmt"
	"net/http"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/identity"
	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/nav"
)

// NavService serves resolved navigation trees. Resolution is pure, so the
// filtered result for a given (patch, role) pair never changes while the
// process runs; an LRU keyed by patch fingerprint and role class avoids
// re-resolving on every request.
type NavService struct {
	def   nav.Config
	patch *nav.Patch
	cache *lru.Cache[string, nav.Config]
}

// NewNavService creates the service over the built-in tree and an optional
// integrator patch.
func NewNavService(patch *nav.Patch) (*NavService, error) {
	cache, err := lru.New[string, nav.Config](16)
	if err != nil {
		return nil, fmt.Errorf("create navigation cache: %w", err)
	}
	return &NavService{def: nav.DefaultConfig(), patch: patch, cache: cache}, nil
}

// For returns the navigation tree visible to the given user.
func (s *NavService) For(user *identity.User) nav.Config {
	key := s.patch.Fingerprint() + "|" + roleClass(user)
	if cached, ok := s.cache.Get(key); ok {
		return cached
	}
	resolved := nav.VisibleTo(nav.Resolve(s.def, s.patch), user)
	s.cache.Add(key, resolved)
	return resolved
}

func roleClass(user *identity.User) string {
	switch {
	case user == nil || !user.IsAuthenticated:
		return "anonymous"
	case user.IsAdmin || user.IsOmniAdmin:
		return "admin"
	default:
		return "user"
	}
}

// HandleNavigation returns the navigation tree for the current user.
// Anonymous requests get the public items only.
func HandleNavigation(navs *NavService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := identity.UserFromContext(r.Context())
		writeJSON(w, http.StatusOK, navs.For(user))
	}
}
