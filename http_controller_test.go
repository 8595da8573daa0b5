package climb_test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	climb "github.com/goliatone/go-climb"
)

type capturingNotifier struct {
	mu      sync.Mutex
	secrets map[string]string
}

func (n *capturingNotifier) NotifyPasswordReset(_ context.Context, user *climb.User, secret string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.secrets == nil {
		n.secrets = map[string]string{}
	}
	n.secrets[user.Email] = secret
	return nil
}

func (n *capturingNotifier) Secret(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.secrets[email]
}

type testApp struct {
	*testStack
	app      *fiber.App
	notifier *capturingNotifier
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	stack := newTestStack(t)
	notifier := &capturingNotifier{}

	srv := climb.NewHTTPServer("climb-test", nopLogger{})
	climb.RegisterRoutes(srv.Router(),
		climb.WithRepositoryManager(stack.repo),
		climb.WithAuther(stack.auther),
		climb.WithGate(stack.gate),
		climb.WithControllerLogger(nopLogger{}),
		climb.WithControllerActivitySink(stack.sink),
		climb.WithResetNotifier(notifier),
		climb.WithControllerClock(stack.clock.Now),
	)

	return &testApp{testStack: stack, app: srv.WrappedRouter(), notifier: notifier}
}

func (a *testApp) do(t *testing.T, method, path string, body any, token string) *http.Response {
	t.Helper()
	resp, err := a.app.Test(jsonRequest(method, path, body, token), -1)
	require.NoError(t, err)
	return resp
}

type authResponse struct {
	Message string           `json:"message"`
	Token   string           `json:"token"`
	User    climb.PublicUser `json:"user"`
}

func (a *testApp) register(t *testing.T, name, email, password string) authResponse {
	t.Helper()
	resp := a.do(t, "POST", "/api/auth/register", map[string]any{
		"name":          name,
		"email":         email,
		"password":      password,
		"dateOfBirth":   "1990-04-12",
		"climbingLevel": "Intermediate",
	}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out authResponse
	decodeJSON(t, resp, &out)
	return out
}

func sessionBody(date string, duration int, location string) map[string]any {
	return map[string]any{
		"date":        date,
		"duration":    duration,
		"location":    location,
		"type":        "indoor",
		"energyLevel": 4,
		"quality":     3,
	}
}

func routeBody(name, date string, completed bool) map[string]any {
	return map[string]any{
		"name":      name,
		"grade":     "6a",
		"type":      "sport",
		"location":  "Siurana",
		"date":      date,
		"attempts":  2,
		"completed": completed,
	}
}

func TestHealth(t *testing.T) {
	a := newTestApp(t)

	resp := a.do(t, "GET", "/health", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]string
	decodeJSON(t, resp, &out)
	assert.Equal(t, "ok", out["status"])
}

func TestRegisterAndLogin(t *testing.T) {
	a := newTestApp(t)

	reg := a.register(t, "Alice", "Alice@Example.com", "hunter22")
	assert.Equal(t, "User registered successfully", reg.Message)
	assert.NotEmpty(t, reg.Token)
	assert.Equal(t, "alice@example.com", reg.User.Email)
	assert.Equal(t, "Intermediate", reg.User.ClimbingLevel)

	t.Run("duplicate email", func(t *testing.T) {
		resp := a.do(t, "POST", "/api/auth/register", map[string]any{
			"name":        "Other",
			"email":       "alice@example.com",
			"password":    "secret99",
			"dateOfBirth": "1991-01-01",
		}, "")
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, climb.TextCodeDuplicateIdentity, decodeError(t, resp).TextCode)
	})

	t.Run("invalid payload", func(t *testing.T) {
		resp := a.do(t, "POST", "/api/auth/register", map[string]any{
			"name":     "Bob",
			"email":    "bob",
			"password": "abc",
		}, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		body := decodeError(t, resp)
		assert.Equal(t, climb.TextCodeValidation, body.TextCode)
		assert.Contains(t, body.Details, "email")
		assert.Contains(t, body.Details, "password")
	})

	t.Run("login", func(t *testing.T) {
		resp := a.do(t, "POST", "/api/auth/login", map[string]any{
			"email":    "ALICE@example.com",
			"password": "hunter22",
		}, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out authResponse
		decodeJSON(t, resp, &out)
		assert.NotEmpty(t, out.Token)
		assert.Equal(t, reg.User.ID, out.User.ID)
	})

	t.Run("wrong password", func(t *testing.T) {
		resp := a.do(t, "POST", "/api/auth/login", map[string]any{
			"email":    "alice@example.com",
			"password": "nope-nope",
		}, "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, climb.TextCodeInvalidCredentials, decodeError(t, resp).TextCode)
	})

	t.Run("unknown email looks the same", func(t *testing.T) {
		resp := a.do(t, "POST", "/api/auth/login", map[string]any{
			"email":    "nobody@example.com",
			"password": "hunter22",
		}, "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, climb.TextCodeInvalidCredentials, decodeError(t, resp).TextCode)
	})

	assert.Contains(t, a.sink.Types(), climb.ActivityEventRegistered)
	assert.Contains(t, a.sink.Types(), climb.ActivityEventLoginSuccess)
	assert.Contains(t, a.sink.Types(), climb.ActivityEventLoginFailure)
}

func TestProfile(t *testing.T) {
	a := newTestApp(t)
	reg := a.register(t, "Alice", "alice@example.com", "hunter22")

	resp := a.do(t, "GET", "/api/auth/me", nil, reg.Token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var me climb.PublicUser
	decodeJSON(t, resp, &me)
	assert.Equal(t, "Alice", me.Name)

	resp = a.do(t, "PUT", "/api/auth/me", map[string]any{
		"name":          "Alice Honnold",
		"dateOfBirth":   "1990-04-12",
		"climbingLevel": "Expert",
	}, reg.Token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeJSON(t, resp, &me)
	assert.Equal(t, "Alice Honnold", me.Name)
	assert.Equal(t, "Expert", me.ClimbingLevel)
	assert.Equal(t, "alice@example.com", me.Email)

	resp = a.do(t, "PUT", "/api/auth/me", map[string]any{
		"name":          "Alice",
		"dateOfBirth":   "1990-04-12",
		"climbingLevel": "Legend",
	}, reg.Token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSessionsAreOwnerScoped(t *testing.T) {
	a := newTestApp(t)
	alice := a.register(t, "Alice", "alice@example.com", "hunter22")
	bob := a.register(t, "Bob", "bob@example.com", "hunter33")

	resp := a.do(t, "POST", "/api/sessions", sessionBody("2024-05-01", 90, "Boulder Lab"), alice.Token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created climb.Session
	decodeJSON(t, resp, &created)
	assert.Equal(t, alice.User.ID, created.UserID.String())
	assert.Equal(t, 90, created.Duration)

	path := "/api/sessions/" + created.ID.String()

	resp = a.do(t, "GET", path, nil, alice.Token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = a.do(t, "GET", path, nil, bob.Token)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, climb.TextCodeNotFound, decodeError(t, resp).TextCode)

	resp = a.do(t, "PUT", path, sessionBody("2024-05-01", 5, "Hijacked"), bob.Token)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = a.do(t, "DELETE", path, nil, bob.Token)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = a.do(t, "GET", "/api/sessions", nil, bob.Token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var bobs []climb.Session
	decodeJSON(t, resp, &bobs)
	assert.Empty(t, bobs)

	resp = a.do(t, "PUT", path, sessionBody("2024-05-02", 120, "Boulder Lab"), alice.Token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated climb.Session
	decodeJSON(t, resp, &updated)
	assert.Equal(t, 120, updated.Duration)
	assert.Equal(t, created.UserID, updated.UserID)

	resp = a.do(t, "DELETE", path, nil, alice.Token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var msg map[string]string
	decodeJSON(t, resp, &msg)
	assert.Equal(t, "Session deleted", msg["message"])

	resp = a.do(t, "GET", path, nil, alice.Token)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	types := a.sink.Types()
	assert.Contains(t, types, climb.ActivityEventSessionCreated)
	assert.Contains(t, types, climb.ActivityEventSessionUpdated)
	assert.Contains(t, types, climb.ActivityEventSessionDeleted)

	for _, evt := range a.sink.events {
		if evt.EventType == climb.ActivityEventSessionCreated {
			assert.Equal(t, created.ID.String(), evt.Metadata[climb.ActivityMetaSessionID])
			assert.Equal(t, alice.User.ID, evt.Actor.ID)
		}
	}
}

func TestSessionListQuery(t *testing.T) {
	a := newTestApp(t)
	alice := a.register(t, "Alice", "alice@example.com", "hunter22")

	for _, date := range []string{"2024-04-28", "2024-05-01", "2024-05-03", "2024-05-06"} {
		resp := a.do(t, "POST", "/api/sessions", sessionBody(date, 60, "Gym"), alice.Token)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp := a.do(t, "GET", "/api/sessions?from=2024-05-01&to=2024-05-03", nil, alice.Token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []climb.Session
	decodeJSON(t, resp, &list)
	require.Len(t, list, 2)
	assert.Equal(t, "2024-05-03", list[0].Date.Format("2006-01-02"))
	assert.Equal(t, "2024-05-01", list[1].Date.Format("2006-01-02"))

	resp = a.do(t, "GET", "/api/sessions?limit=1", nil, alice.Token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeJSON(t, resp, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "2024-05-06", list[0].Date.Format("2006-01-02"))

	for _, query := range []string{"?limit=0", "?limit=501", "?limit=ten", "?from=yesterday"} {
		resp = a.do(t, "GET", "/api/sessions"+query, nil, alice.Token)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, query)
	}
}

func TestSessionValidation(t *testing.T) {
	a := newTestApp(t)
	alice := a.register(t, "Alice", "alice@example.com", "hunter22")

	body := sessionBody("2024-05-01", 60, "Gym")
	body["type"] = "underwater"
	body["energyLevel"] = 9

	resp := a.do(t, "POST", "/api/sessions", body, alice.Token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	details := decodeError(t, resp).Details
	assert.Contains(t, details, "type")
	assert.Contains(t, details, "energyLevel")

	resp = a.do(t, "GET", "/api/sessions/not-a-uuid", nil, alice.Token)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSessionClimbsMustReferenceOwnRoutes(t *testing.T) {
	a := newTestApp(t)
	alice := a.register(t, "Alice", "alice@example.com", "hunter22")
	bob := a.register(t, "Bob", "bob@example.com", "hunter33")

	resp := a.do(t, "POST", "/api/routes", routeBody("Bob's Roof", "2024-05-01", true), bob.Token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var bobsRoute climb.Route
	decodeJSON(t, resp, &bobsRoute)

	resp = a.do(t, "POST", "/api/routes", routeBody("Alice's Slab", "2024-05-01", true), alice.Token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var alicesRoute climb.Route
	decodeJSON(t, resp, &alicesRoute)

	withClimb := func(routeID string) map[string]any {
		body := sessionBody("2024-05-01", 60, "Gym")
		body["climbs"] = []map[string]any{{"route": routeID, "attempts": 2, "completed": true}}
		return body
	}

	resp = a.do(t, "POST", "/api/sessions", withClimb(bobsRoute.ID.String()), alice.Token)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decodeError(t, resp)
	assert.Equal(t, climb.TextCodeValidation, body.TextCode)
	assert.Contains(t, body.Details, "climbs.0.route")

	resp = a.do(t, "GET", "/api/sessions", nil, alice.Token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []climb.Session
	decodeJSON(t, resp, &list)
	assert.Empty(t, list)

	resp = a.do(t, "POST", "/api/sessions", withClimb(alicesRoute.ID.String()), alice.Token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created climb.Session
	decodeJSON(t, resp, &created)
	require.Len(t, created.Climbs, 1)
	assert.Equal(t, alicesRoute.ID.String(), created.Climbs[0].RouteID)

	resp = a.do(t, "PUT", "/api/sessions/"+created.ID.String(), withClimb(bobsRoute.ID.String()), alice.Token)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decodeError(t, resp).Details, "climbs.0.route")
}

func TestSessionUpdateWithoutDateKeepsDate(t *testing.T) {
	a := newTestApp(t)
	alice := a.register(t, "Alice", "alice@example.com", "hunter22")

	resp := a.do(t, "POST", "/api/sessions", sessionBody("2024-04-20", 60, "Gym"), alice.Token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created climb.Session
	decodeJSON(t, resp, &created)

	change := sessionBody("", 95, "Gym")
	delete(change, "date")

	resp = a.do(t, "PUT", "/api/sessions/"+created.ID.String(), change, alice.Token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated climb.Session
	decodeJSON(t, resp, &updated)
	assert.Equal(t, 95, updated.Duration)
	assert.Equal(t, "2024-04-20", updated.Date.UTC().Format("2006-01-02"))
}

func TestRoutesAndDashboard(t *testing.T) {
	a := newTestApp(t)
	alice := a.register(t, "Alice", "alice@example.com", "hunter22")
	bob := a.register(t, "Bob", "bob@example.com", "hunter33")

	resp := a.do(t, "POST", "/api/routes", routeBody("La Rambla", "2024-05-01", true), alice.Token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var route climb.Route
	decodeJSON(t, resp, &route)

	resp = a.do(t, "POST", "/api/routes", routeBody("Kasbah", "2024-05-02", false), alice.Token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = a.do(t, "POST", "/api/sessions", sessionBody("2024-05-01", 90, "Siurana"), alice.Token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = a.do(t, "POST", "/api/sessions", sessionBody("2024-05-02", 45, "Gym"), alice.Token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = a.do(t, "GET", "/api/routes/"+route.ID.String(), nil, bob.Token)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = a.do(t, "GET", "/api/dashboard", nil, alice.Token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var summary climb.DashboardSummary
	decodeJSON(t, resp, &summary)
	assert.Equal(t, 2, summary.TotalRoutes)
	assert.Equal(t, 1, summary.CompletedRoutes)
	assert.Equal(t, 2, summary.TotalSessions)
	assert.Equal(t, 135, summary.TotalTime)
	assert.Len(t, summary.RecentRoutes, 2)
	assert.Len(t, summary.RecentSessions, 2)

	resp = a.do(t, "GET", "/api/dashboard", nil, bob.Token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeJSON(t, resp, &summary)
	assert.Zero(t, summary.TotalRoutes)
	assert.Zero(t, summary.TotalTime)

	resp = a.do(t, "GET", "/api/dashboard/calendar?from=2024-05-01&to=2024-05-31", nil, alice.Token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var calendar struct {
		From string              `json:"from"`
		To   string              `json:"to"`
		Days []climb.CalendarDay `json:"days"`
	}
	decodeJSON(t, resp, &calendar)
	assert.Equal(t, "2024-05-01", calendar.From)
	assert.Equal(t, "2024-05-31", calendar.To)
	require.Len(t, calendar.Days, 2)
	assert.Equal(t, "2024-05-01", calendar.Days[0].Date)
	assert.Equal(t, 1, calendar.Days[0].Completed)
	assert.Equal(t, []string{"Siurana"}, calendar.Days[0].Locations)
	assert.Equal(t, []string{"Gym", "Siurana"}, calendar.Days[1].Locations)

	resp = a.do(t, "GET", "/api/dashboard/calendar?from=2024-05-01", nil, alice.Token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = a.do(t, "DELETE", "/api/routes/"+route.ID.String(), nil, alice.Token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var msg map[string]string
	decodeJSON(t, resp, &msg)
	assert.Equal(t, "Route deleted", msg["message"])

	assert.Contains(t, a.sink.Types(), climb.ActivityEventRouteCreated)
	assert.Contains(t, a.sink.Types(), climb.ActivityEventRouteDeleted)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	a := newTestApp(t)

	for _, path := range []string{"/api/auth/me", "/api/sessions", "/api/routes", "/api/dashboard"} {
		resp := a.do(t, "GET", path, nil, "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
		body := decodeError(t, resp)
		assert.Equal(t, climb.TextCodeUnauthorized, body.TextCode, path)
		assert.Equal(t, climb.AuthFailureMessage, body.Message, path)
	}
}

func TestPasswordChangeRevokesOldTokens(t *testing.T) {
	a := newTestApp(t)
	alice := a.register(t, "Alice", "alice@example.com", "hunter22")

	a.clock.Advance(5 * time.Second)

	resp := a.do(t, "PUT", "/api/auth/password", map[string]any{
		"currentPassword": "wrong-one",
		"password":        "newpass1",
		"confirmPassword": "newpass1",
	}, alice.Token)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = a.do(t, "PUT", "/api/auth/password", map[string]any{
		"currentPassword": "hunter22",
		"password":        "newpass1",
		"confirmPassword": "newpass2",
	}, alice.Token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = a.do(t, "PUT", "/api/auth/password", map[string]any{
		"currentPassword": "hunter22",
		"password":        "newpass1",
		"confirmPassword": "newpass1",
	}, alice.Token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out map[string]string
	decodeJSON(t, resp, &out)
	require.NotEmpty(t, out["token"])

	a.clock.Advance(5 * time.Second)

	resp = a.do(t, "GET", "/api/auth/me", nil, alice.Token)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = a.do(t, "GET", "/api/auth/me", nil, out["token"])
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = a.do(t, "POST", "/api/auth/login", map[string]any{
		"email":    "alice@example.com",
		"password": "newpass1",
	}, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Contains(t, a.sink.Types(), climb.ActivityEventPasswordChanged)
}

func TestPasswordResetFlow(t *testing.T) {
	a := newTestApp(t)
	alice := a.register(t, "Alice", "alice@example.com", "hunter22")

	resp := a.do(t, "POST", "/api/auth/password-reset", map[string]any{"email": "ghost@example.com"}, "")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	var unknown map[string]string
	decodeJSON(t, resp, &unknown)

	resp = a.do(t, "POST", "/api/auth/password-reset", map[string]any{"email": "alice@example.com"}, "")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var known map[string]string
	decodeJSON(t, resp, &known)
	assert.Equal(t, unknown, known)

	secret := a.notifier.Secret("alice@example.com")
	require.NotEmpty(t, secret)

	resp = a.do(t, "POST", "/api/auth/password-reset/not-the-secret", map[string]any{
		"password":        "fresh-pass",
		"confirmPassword": "fresh-pass",
	}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, climb.TextCodeInvalidResetToken, decodeError(t, resp).TextCode)

	a.clock.Advance(2 * time.Minute)

	resp = a.do(t, "POST", "/api/auth/password-reset/"+secret, map[string]any{
		"password":        "fresh-pass",
		"confirmPassword": "fresh-pass",
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out authResponse
	decodeJSON(t, resp, &out)
	assert.NotEmpty(t, out.Token)
	assert.Equal(t, alice.User.ID, out.User.ID)

	resp = a.do(t, "GET", "/api/auth/me", nil, alice.Token)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = a.do(t, "POST", "/api/auth/password-reset/"+secret, map[string]any{
		"password":        "again-pass",
		"confirmPassword": "again-pass",
	}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = a.do(t, "POST", "/api/auth/login", map[string]any{
		"email":    "alice@example.com",
		"password": "fresh-pass",
	}, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPasswordResetExpires(t *testing.T) {
	a := newTestApp(t)
	a.register(t, "Alice", "alice@example.com", "hunter22")

	resp := a.do(t, "POST", "/api/auth/password-reset", map[string]any{"email": "alice@example.com"}, "")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	secret := a.notifier.Secret("alice@example.com")

	a.clock.Advance(climb.DefaultResetTTL + time.Second)

	resp = a.do(t, "POST", "/api/auth/password-reset/"+secret, map[string]any{
		"password":        "fresh-pass",
		"confirmPassword": "fresh-pass",
	}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, climb.TextCodeInvalidResetToken, decodeError(t, resp).TextCode)
}

