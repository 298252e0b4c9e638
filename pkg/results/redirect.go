package results

import (
	"errors"
	"net/http"
	"strings"

	"github.com/R3E-Network/mvc_layer/pkg/actions"
	"github.com/R3E-Network/mvc_layer/pkg/services"
)

// ErrEmptyURL is returned when a redirect is created without a target.
var ErrEmptyURL = errors.New("redirect url cannot be empty")

// URLHelper resolves application-relative URLs.
type URLHelper interface {
	// IsLocalURL reports whether url points into this application.
	IsLocalURL(url string) bool
	// Content resolves "~/path" against the application base path.
	Content(url string) string
}

// PathBaseURLHelper resolves "~/" against PathBase.
type PathBaseURLHelper struct {
	PathBase string
}

// IsLocalURL implements URLHelper. Local URLs start with "/" (but not "//"
// or "/\") or with "~/".
func (PathBaseURLHelper) IsLocalURL(url string) bool {
	switch {
	case url == "":
		return false
	case strings.HasPrefix(url, "~/"):
		return true
	case url[0] == '/':
		return len(url) == 1 || (url[1] != '/' && url[1] != '\\')
	}
	return false
}

// Content implements URLHelper.
func (h PathBaseURLHelper) Content(url string) string {
	if strings.HasPrefix(url, "~/") {
		return strings.TrimSuffix(h.PathBase, "/") + url[1:]
	}
	return url
}

// RedirectResult sends 302, or 301 when Permanent, to URL.
type RedirectResult struct {
	URL       string
	Permanent bool
	// URLHelper overrides the helper from the services registry.
	URLHelper URLHelper
}

// NewRedirect creates a redirect to url.
func NewRedirect(url string, permanent bool) (*RedirectResult, error) {
	if url == "" {
		return nil, ErrEmptyURL
	}
	return &RedirectResult{URL: url, Permanent: permanent}, nil
}

// ExecuteResult implements Result.
func (r *RedirectResult) ExecuteResult(ac *actions.ActionContext) error {
	if r.URL == "" {
		return ErrEmptyURL
	}
	helper := r.URLHelper
	if helper == nil {
		var ok bool
		if helper, ok = services.Get[URLHelper](ac.Services, URLHelperService); !ok {
			helper = PathBaseURLHelper{}
		}
	}

	dest := r.URL
	if helper.IsLocalURL(dest) {
		dest = helper.Content(dest)
	}

	status := http.StatusFound
	if r.Permanent {
		status = http.StatusMovedPermanently
	}
	ac.Response.Header().Set("Location", dest)
	ac.Response.WriteHeader(status)
	return nil
}
