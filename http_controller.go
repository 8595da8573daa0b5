package climb

import (
	"net/http"
	"time"

	"github.com/goliatone/go-router"
)

type ControllerRoutes struct {
	Register      string
	Login         string
	Me            string
	Password      string
	PasswordReset string
	Sessions      string
	Routes        string
	Dashboard     string
	Health        string
}

type Controller struct {
	Logger        Logger
	Repo          RepositoryManager
	Auther        *Auther
	Gate          *Gate
	Dashboard     *Dashboard
	Routes        *ControllerRoutes
	ActivitySink  ActivitySink
	ResetNotifier ResetNotifier
	ResetTTL      time.Duration
	Clock         func() time.Time

	register      *RegisterUserHandler
	resetInit     *InitializePasswordResetHandler
	resetFinalize *FinalizePasswordResetHandler
	changePwd     *ChangePasswordHandler
}

type ControllerOption func(*Controller) *Controller

func WithRepositoryManager(repo RepositoryManager) ControllerOption {
	return func(c *Controller) *Controller {
		c.Repo = repo
		return c
	}
}

func WithAuther(auther *Auther) ControllerOption {
	return func(c *Controller) *Controller {
		c.Auther = auther
		return c
	}
}

func WithGate(gate *Gate) ControllerOption {
	return func(c *Controller) *Controller {
		c.Gate = gate
		return c
	}
}

func WithControllerLogger(logger Logger) ControllerOption {
	return func(c *Controller) *Controller {
		c.Logger = normalizeLogger(logger)
		return c
	}
}

func WithControllerActivitySink(sink ActivitySink) ControllerOption {
	return func(c *Controller) *Controller {
		c.ActivitySink = normalizeActivitySink(sink)
		return c
	}
}

func WithResetNotifier(notifier ResetNotifier) ControllerOption {
	return func(c *Controller) *Controller {
		c.ResetNotifier = notifier
		return c
	}
}

func WithResetTTL(ttl time.Duration) ControllerOption {
	return func(c *Controller) *Controller {
		c.ResetTTL = ttl
		return c
	}
}

func WithControllerClock(now func() time.Time) ControllerOption {
	return func(c *Controller) *Controller {
		if now != nil {
			c.Clock = now
		}
		return c
	}
}

func NewController(opts ...ControllerOption) *Controller {
	c := &Controller{
		Logger:       defLogger{},
		ActivitySink: noopActivitySink{},
		ResetTTL:     DefaultResetTTL,
		Clock:        time.Now,
		Routes: &ControllerRoutes{
			Register:      "/auth/register",
			Login:         "/auth/login",
			Me:            "/auth/me",
			Password:      "/auth/password",
			PasswordReset: "/auth/password-reset",
			Sessions:      "/sessions",
			Routes:        "/routes",
			Dashboard:     "/dashboard",
			Health:        "/health",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in climb controller...")
	}

	if c.Auther == nil {
		panic("Missing Auther in climb controller...")
	}

	if c.Gate == nil {
		panic("Missing Gate in climb controller...")
	}

	if c.ResetNotifier == nil {
		c.ResetNotifier = NewLoggerResetNotifier(c.Logger, false)
	}

	c.Dashboard = NewDashboard(c.Repo)

	c.register = NewRegisterUserHandler(c.Repo, c.Auther).
		WithActivitySink(c.ActivitySink).
		WithLogger(c.Logger)

	c.resetInit = NewInitializePasswordResetHandler(c.Repo).
		WithNotifier(c.ResetNotifier).
		WithTTL(c.ResetTTL).
		WithClock(c.Clock).
		WithActivitySink(c.ActivitySink).
		WithLogger(c.Logger)

	c.resetFinalize = NewFinalizePasswordResetHandler(c.Repo, c.Auther).
		WithClock(c.Clock).
		WithActivitySink(c.ActivitySink).
		WithLogger(c.Logger)

	c.changePwd = NewChangePasswordHandler(c.Repo, c.Auther).
		WithActivitySink(c.ActivitySink).
		WithLogger(c.Logger)

	return c
}

// RegisterRoutes mounts the API under /api and the health check at the root.
// Protected routes carry the gate middleware on the route itself.
func RegisterRoutes[T any](app router.Router[T], opts ...ControllerOption) *Controller {
	controller := NewController(opts...)
	protected := controller.Gate.Middleware()

	app.Get(controller.Routes.Health, controller.Health).SetName("health")

	api := app.Group("/api")

	api.Post(controller.Routes.Register, controller.RegistrationCreate).SetName("register.post")
	api.Post(controller.Routes.Login, controller.LoginPost).SetName("sign-in.post")
	api.Post(controller.Routes.PasswordReset, controller.PasswordResetPost).SetName("pwd-reset.post")
	api.Post(controller.Routes.PasswordReset+"/:token", controller.PasswordResetExecute).SetName("pwd-reset-do.post")

	api.Get(controller.Routes.Me, controller.ProfileShow, protected).SetName("me.get")
	api.Put(controller.Routes.Me, controller.ProfileUpdate, protected).SetName("me.put")
	api.Put(controller.Routes.Password, controller.PasswordChange, protected).SetName("password.put")

	api.Get(controller.Routes.Sessions, controller.SessionList, protected).SetName("sessions.list")
	api.Post(controller.Routes.Sessions, controller.SessionCreate, protected).SetName("sessions.create")
	api.Get(controller.Routes.Sessions+"/:id", controller.SessionShow, protected).SetName("sessions.get")
	api.Put(controller.Routes.Sessions+"/:id", controller.SessionUpdate, protected).SetName("sessions.update")
	api.Delete(controller.Routes.Sessions+"/:id", controller.SessionDelete, protected).SetName("sessions.delete")

	api.Get(controller.Routes.Routes, controller.RouteList, protected).SetName("routes.list")
	api.Post(controller.Routes.Routes, controller.RouteCreate, protected).SetName("routes.create")
	api.Get(controller.Routes.Routes+"/:id", controller.RouteShow, protected).SetName("routes.get")
	api.Put(controller.Routes.Routes+"/:id", controller.RouteUpdate, protected).SetName("routes.update")
	api.Delete(controller.Routes.Routes+"/:id", controller.RouteDelete, protected).SetName("routes.delete")

	api.Get(controller.Routes.Dashboard, controller.DashboardShow, protected).SetName("dashboard.get")
	api.Get(controller.Routes.Dashboard+"/calendar", controller.CalendarShow, protected).SetName("dashboard.calendar")

	return controller
}

func (a *Controller) Health(ctx router.Context) error {
	return ctx.JSON(http.StatusOK, map[string]any{"status": "ok"})
}

func (a *Controller) RegistrationCreate(ctx router.Context) error {
	payload := new(RegisterPayload)
	if err := parseBody(ctx, payload); err != nil {
		return err
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Debug("register user validate payload", "error", err)
		return err
	}

	profile := payload.User()
	var resp *RegisterUserResponse

	err := a.register.Execute(ctx.Context(), RegisterUserMessage{
		Name:          profile.Name,
		Email:         profile.Email,
		Password:      payload.Password,
		DateOfBirth:   profile.DateOfBirth,
		ClimbingLevel: profile.ClimbingLevel,
		OnResponse: func(r *RegisterUserResponse) {
			resp = r
		},
	})
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusCreated, map[string]any{
		"message": "User registered successfully",
		"token":   resp.Token,
		"user":    resp.User.Public(),
	})
}

func (a *Controller) LoginPost(ctx router.Context) error {
	payload := new(LoginPayload)
	if err := parseBody(ctx, payload); err != nil {
		return err
	}

	if err := payload.Validate(); err != nil {
		return err
	}

	token, user, err := a.Auther.Login(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"token": token,
		"user":  user.Public(),
	})
}

func (a *Controller) ProfileShow(ctx router.Context) error {
	user, err := a.currentUser(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, user.Public())
}

func (a *Controller) ProfileUpdate(ctx router.Context) error {
	user, err := a.currentUser(ctx)
	if err != nil {
		return err
	}

	payload := new(ProfilePayload)
	if err := parseBody(ctx, payload); err != nil {
		return err
	}
	if err := payload.Validate(); err != nil {
		return err
	}

	payload.Apply(user)

	updated, err := a.Repo.Users().UpdateProfile(ctx.Context(), user)
	if err != nil {
		return resourceError(err, "failed to update profile")
	}

	return ctx.JSON(http.StatusOK, updated.Public())
}

func (a *Controller) PasswordChange(ctx router.Context) error {
	owner, err := OwnerID(ctx)
	if err != nil {
		return err
	}

	payload := new(ChangePasswordPayload)
	if err := parseBody(ctx, payload); err != nil {
		return err
	}
	if err := payload.Validate(); err != nil {
		return err
	}

	var resp *ChangePasswordResponse
	err = a.changePwd.Execute(ctx.Context(), ChangePasswordMessage{
		UserID:          owner,
		CurrentPassword: payload.CurrentPassword,
		Password:        payload.Password,
		OnResponse: func(r *ChangePasswordResponse) {
			resp = r
		},
	})
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, map[string]any{"token": resp.Token})
}

func (a *Controller) PasswordResetPost(ctx router.Context) error {
	payload := new(PasswordResetRequestPayload)
	if err := parseBody(ctx, payload); err != nil {
		return err
	}
	if err := payload.Validate(); err != nil {
		return err
	}

	if err := a.resetInit.Execute(ctx.Context(), InitializePasswordResetMessage{
		Email: payload.Email,
	}); err != nil {
		return err
	}

	return ctx.JSON(http.StatusAccepted, map[string]any{
		"message": "If the email is registered, a password reset link has been sent",
	})
}

func (a *Controller) PasswordResetExecute(ctx router.Context) error {
	payload := new(PasswordResetVerifyPayload)
	if err := parseBody(ctx, payload); err != nil {
		return err
	}
	if err := payload.Validate(); err != nil {
		return err
	}

	var resp *FinalizePasswordResetResponse
	err := a.resetFinalize.Execute(ctx.Context(), FinalizePasswordResetMessage{
		Token:    ctx.Param("token"),
		Password: payload.Password,
		OnResponse: func(r *FinalizePasswordResetResponse) {
			resp = r
		},
	})
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"token": resp.Token,
		"user":  resp.User.Public(),
	})
}

// currentUser returns the user the gate loaded for this request
func (a *Controller) currentUser(ctx router.Context) (*User, error) {
	if user, ok := UserFromContext(ctx.Context()); ok {
		return user, nil
	}

	owner, err := OwnerID(ctx)
	if err != nil {
		return nil, err
	}

	user, err := a.Repo.Users().GetByUUID(ctx.Context(), owner)
	if err != nil {
		return nil, resourceError(err, "failed to load user")
	}
	return user, nil
}
