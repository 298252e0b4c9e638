package filters

import (
	"context"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/R3E-Network/mvc_layer/internal/errors"
	"github.com/R3E-Network/mvc_layer/internal/logging"
	"github.com/R3E-Network/mvc_layer/pkg/actions"
	"github.com/R3E-Network/mvc_layer/pkg/results"
)

// AllowAnonymousProperty marks an action that Authorize lets through
// without a token.
const AllowAnonymousProperty = "mvc.allow_anonymous"

// ClaimsItem is the ActionContext item key holding the validated *Claims.
const ClaimsItem = "mvc.claims"

// Claims represents JWT claims
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Authorize validates HMAC-signed bearer tokens.
type Authorize struct {
	secret []byte
	issuer string
	roles  map[string]bool
	logger *logging.Logger
}

// AuthorizeOption configures Authorize.
type AuthorizeOption func(*Authorize)

// WithIssuer requires the token issuer to match.
func WithIssuer(iss string) AuthorizeOption {
	return func(a *Authorize) { a.issuer = iss }
}

// WithRoles restricts access to tokens carrying one of roles.
func WithRoles(roles ...string) AuthorizeOption {
	return func(a *Authorize) {
		a.roles = make(map[string]bool, len(roles))
		for _, r := range roles {
			a.roles[r] = true
		}
	}
}

// WithAuthLogger sets the logger used for security events.
func WithAuthLogger(l *logging.Logger) AuthorizeOption {
	return func(a *Authorize) { a.logger = l }
}

// NewAuthorize creates an authorization filter for tokens signed with secret.
func NewAuthorize(secret []byte, opts ...AuthorizeOption) *Authorize {
	a := &Authorize{secret: secret, logger: logging.Discard()}
	for _, o := range opts {
		o(a)
	}
	return a
}

// OnAuthorization implements AuthorizationFilter. On success the user ID
// and role are added to the request context and the claims are stored
// under ClaimsItem.
func (a *Authorize) OnAuthorization(c *AuthorizationContext) error {
	if allow, ok := c.Descriptor.Property(AllowAnonymousProperty); ok && allow == true {
		return nil
	}

	authHeader := c.Request.Header.Get("Authorization")
	if authHeader == "" {
		a.reject(c, errors.Unauthorized("Missing Authorization header"))
		return nil
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		a.reject(c, errors.Unauthorized("Invalid Authorization header format"))
		return nil
	}

	claims, err := a.validateToken(parts[1])
	if err != nil {
		a.reject(c, err)
		return nil
	}
	if len(a.roles) > 0 && !a.roles[claims.Role] {
		a.reject(c, errors.Forbidden("Insufficient role").WithDetails("role", claims.Role))
		return nil
	}

	ctx := logging.WithUserID(c.Context(), claims.UserID)
	if claims.Role != "" {
		ctx = context.WithValue(ctx, logging.RoleKey, claims.Role)
	}
	c.WithContext(ctx)
	c.Set(ClaimsItem, claims)
	c.Logger = c.Logger.WithField("user_id", claims.UserID)

	c.Logger.Debug("Authentication successful")
	return nil
}

func (a *Authorize) validateToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, errors.InvalidToken(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.InvalidToken(nil).WithDetails("reason", "invalid claims")
	}
	return claims, nil
}

func (a *Authorize) reject(c *AuthorizationContext, err error) {
	se := errors.GetServiceError(err)
	a.logger.LogSecurityEvent(c.Context(), "authorization_failed", map[string]interface{}{
		"action": c.Descriptor.DisplayName(),
		"path":   c.Request.URL.Path,
		"code":   string(se.Code),
	})
	c.Result = results.ErrorResult{Err: se}
}

// ClaimsFrom returns the claims Authorize stored on ac.
func ClaimsFrom(ac *actions.ActionContext) (*Claims, bool) {
	v, ok := ac.Get(ClaimsItem)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok
}
