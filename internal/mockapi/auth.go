package mockapi

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/crypto/bcrypt"

	"github.com/five82/roster/internal/api"
)

const (
	issuer          = "roster-mockapi"
	tokenContextKey = "userToken"
)

// Claims are the JWT claims issued at login.
type Claims struct {
	jwt.StandardClaims
	Username string `json:"username,omitempty"`
	Role     string `json:"role,omitempty"`
}

type authenticator struct {
	secret []byte
	ttl    time.Duration
	data   *dataset
	now    func() time.Time
}

func newAuthenticator(secret []byte, ttl time.Duration, data *dataset) *authenticator {
	return &authenticator{secret: secret, ttl: ttl, data: data, now: time.Now}
}

func (a *authenticator) config() middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    a.secret,
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    tokenContextKey,
		Claims:        new(Claims),
	}
}

func (a *authenticator) issue(usr api.User) (string, error) {
	now := a.now()
	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatInt(usr.ID, 10),
			ExpiresAt: now.Add(a.ttl).Unix(),
			IssuedAt:  now.Unix(),
		},
		Username: usr.Username,
		Role:     usr.Role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return ss, nil
}

// authenticate checks credentials against the dataset.
func (a *authenticator) authenticate(username, password string) (api.User, error) {
	acc, ok := a.data.accountByUsername(username)
	if !ok {
		return api.User{}, errAuthenticationFailed
	}
	if err := bcrypt.CompareHashAndPassword(acc.hash, []byte(password)); err != nil {
		return api.User{}, errAuthenticationFailed
	}
	if !acc.Active {
		return api.User{}, errAccountDeactivated
	}
	return acc.User, nil
}

func (s *Server) login(ctx echo.Context) error {
	data := new(api.LoginRequest)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := ctx.Validate(data); err != nil {
		return err
	}
	usr, err := s.auth.authenticate(data.Username, data.Password)
	if err != nil {
		return err
	}
	token, err := s.auth.issue(usr)
	if err != nil {
		return err
	}
	s.app.Logger.Infof("user %s signed in", usr.Username)
	return ctx.JSON(http.StatusOK, api.LoginResponse{Token: token, User: usr})
}

func contextClaims(ctx echo.Context) (*Claims, error) {
	if token, ok := ctx.Get(tokenContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return claims, nil
		}
	}
	return nil, errUnauthorized
}

// requireRole rejects callers whose token carries none of roles.
func requireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := contextClaims(ctx)
			if err != nil {
				return err
			}
			for _, role := range roles {
				if claims.Role == role {
					return next(ctx)
				}
			}
			return errForbidden
		}
	}
}

var adminOnly = requireRole(api.RoleAdmin)

var staffOnly = requireRole(api.RoleAdmin, api.RoleTeacher)
