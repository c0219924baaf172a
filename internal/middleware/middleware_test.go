package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/anonto42/inkwell/backend/internal/models"
	"github.com/anonto42/inkwell/backend/internal/services"
)

type stubUsers struct {
	byToken map[string]*models.User
	byID    map[primitive.ObjectID]*models.User
	err     error
}

func (s *stubUsers) Authenticate(_ context.Context, token string) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	u, ok := s.byToken[token]
	if !ok {
		return nil, services.ErrInvalidToken
	}
	return u, nil
}

func (s *stubUsers) GetUser(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	u, ok := s.byID[id]
	if !ok {
		return nil, services.ErrNotFound
	}
	return u, nil
}

func newStub(users ...*models.User) *stubUsers {
	s := &stubUsers{byToken: map[string]*models.User{}, byID: map[primitive.ObjectID]*models.User{}}
	for _, u := range users {
		s.byToken["token-"+u.Username] = u
		s.byID[u.ID] = u
	}
	return s
}

func serve(e *echo.Echo, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(echo.HeaderAuthorization, header)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func whoAmI(c echo.Context) error {
	ident := IdentityFromContext(c)
	return c.String(http.StatusOK, ident.UserID.Hex()+":"+string(ident.Role))
}

func TestJWTAuthMiddleware(t *testing.T) {
	alice := &models.User{ID: primitive.NewObjectID(), Username: "alice", Role: models.RoleAuthor}

	tests := []struct {
		name   string
		header string
		err    error
		status int
		body   string
	}{
		{name: "valid", header: "Bearer token-alice", status: http.StatusOK, body: alice.ID.Hex() + ":author"},
		{name: "lowercase scheme", header: "bearer token-alice", status: http.StatusOK, body: alice.ID.Hex() + ":author"},
		{name: "missing header", status: http.StatusUnauthorized, body: "No token provided"},
		{name: "wrong scheme", header: "Basic token-alice", status: http.StatusUnauthorized, body: "Invalid Authorization header format"},
		{name: "no token", header: "Bearer", status: http.StatusUnauthorized, body: "Invalid Authorization header format"},
		{name: "unknown token", header: "Bearer junk", status: http.StatusUnauthorized, body: "Invalid token"},
		{name: "expired", header: "Bearer token-alice", err: services.ErrTokenExpired, status: http.StatusUnauthorized, body: "Token expired"},
		{name: "user gone", header: "Bearer token-alice", err: services.ErrNotFound, status: http.StatusNotFound, body: "User not found"},
		{name: "store down", header: "Bearer token-alice", err: errors.New("boom"), status: http.StatusInternalServerError, body: "Authentication failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := qt.New(t)

			stub := newStub(alice)
			stub.err = tt.err
			e := echo.New()
			e.GET("/", whoAmI, JWTAuthMiddleware(stub))

			rec := serve(e, tt.header)
			c.Assert(rec.Code, qt.Equals, tt.status)
			c.Assert(rec.Body.String(), qt.Contains, tt.body)
		})
	}
}

func TestIdentityFromContextWithoutAuth(t *testing.T) {
	c := qt.New(t)
	e := echo.New()
	ctx := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.Assert(IdentityFromContext(ctx), qt.IsNil)
}

func TestRequireRoles(t *testing.T) {
	c := qt.New(t)

	author := &models.User{ID: primitive.NewObjectID(), Username: "author", Role: models.RoleAuthor}
	reader := &models.User{ID: primitive.NewObjectID(), Username: "reader", Role: models.RoleReader}
	stub := newStub(author, reader)

	e := echo.New()
	e.GET("/", whoAmI, JWTAuthMiddleware(stub), RequireRoles(stub, models.RoleAuthor, models.RoleAdmin))

	rec := serve(e, "Bearer token-author")
	c.Assert(rec.Code, qt.Equals, http.StatusOK)

	rec = serve(e, "Bearer token-reader")
	c.Assert(rec.Code, qt.Equals, http.StatusForbidden)
	c.Assert(rec.Body.String(), qt.Contains, "Permission denied")

	// A promotion is honoured without a new token.
	promoted := *reader
	promoted.Role = models.RoleAdmin
	stub.byID[reader.ID] = &promoted
	rec = serve(e, "Bearer token-reader")
	c.Assert(rec.Code, qt.Equals, http.StatusOK)
	c.Assert(rec.Body.String(), qt.Equals, reader.ID.Hex()+":admin")

	// A demotion too.
	demoted := *author
	demoted.Role = models.RoleReader
	stub.byID[author.ID] = &demoted
	rec = serve(e, "Bearer token-author")
	c.Assert(rec.Code, qt.Equals, http.StatusForbidden)

	delete(stub.byID, author.ID)
	rec = serve(e, "Bearer token-author")
	c.Assert(rec.Code, qt.Equals, http.StatusNotFound)
}

func TestRequireRolesWithoutIdentity(t *testing.T) {
	c := qt.New(t)

	e := echo.New()
	e.GET("/", whoAmI, RequireRoles(newStub(), models.RoleAdmin))
	c.Assert(serve(e, "").Code, qt.Equals, http.StatusUnauthorized)
}

func TestRateLimit(t *testing.T) {
	c := qt.New(t)

	e := echo.New()
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusOK) },
		RateLimit(MemoryRateLimitStore(2, time.Hour), "Too many requests"))

	c.Assert(serve(e, "").Code, qt.Equals, http.StatusOK)
	c.Assert(serve(e, "").Code, qt.Equals, http.StatusOK)
	rec := serve(e, "")
	c.Assert(rec.Code, qt.Equals, http.StatusTooManyRequests)
	c.Assert(rec.Body.String(), qt.Contains, "Too many requests")
}
