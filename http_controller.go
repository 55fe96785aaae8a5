package auth

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

type Middleware interface {
	ProtectedRoute(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc
}

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Patch(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Delete(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// GetRouterSession recovers the session stored by the JWT middleware.
func GetRouterSession(c router.Context, key string) (*SessionObject, error) {
	stored := c.Locals(key)
	if stored == nil {
		return nil, ErrUnableToFindSession
	}

	claims, ok := stored.(AuthClaims)
	if claims == nil || !ok {
		return nil, ErrUnableToDecodeSession
	}

	return sessionFromAuthClaims(claims)
}

// RegisterAccountRoutes mounts the account lifecycle endpoints. The self
// routes sit behind the JWT middleware; everything else is public.
func RegisterAccountRoutes(app RouteRegistrar, opts ...AccountsControllerOption) *AccountsController {
	controller := NewAccountsController(opts...)

	app.Get(controller.Routes.Login, controller.LoginShow).
		SetName("sign-in.get")

	app.Post(controller.Routes.Login, controller.LoginPost).
		SetName("sign-in.post")

	app.Get(controller.Routes.Logout, controller.LogOut).
		SetName("sign-out.get")

	app.Get(controller.Routes.Signup, controller.SignupShow).
		SetName("sign-up.get")

	app.Post(controller.Routes.Signup, controller.SignupPost).
		SetName("sign-up.post")

	app.Post(controller.Routes.Users, controller.SignupPost).
		SetName("users.create")

	protected := controller.Auther.ProtectedRoute(
		controller.Config,
		controller.Auther.MakeClientRouteAuthErrorHandler(false),
	)

	app.Get(controller.Routes.Me, controller.MeShow, protected).
		SetName("me.get")
	app.Patch(controller.Routes.Me, controller.MeUpdate, protected).
		SetName("me.patch")
	app.Delete(controller.Routes.Me, controller.MeDelete, protected).
		SetName("me.delete")

	return controller
}

type AccountsControllerRoutes struct {
	Login  string
	Logout string
	Signup string
	Users  string
	Me     string
}

// NewAccountsControllerRouteDefaults returns the default route layout.
func NewAccountsControllerRouteDefaults() *AccountsControllerRoutes {
	return &AccountsControllerRoutes{
		Login:  "/users/login",
		Logout: "/users/logout",
		Signup: "/users/signup",
		Users:  "/users",
		Me:     "/users/me",
	}
}

type AccountsController struct {
	Debug     bool
	Logger    Logger
	Config    Config
	Lifecycle *Lifecycle
	Routes    *AccountsControllerRoutes
	Auther    HTTPAuthenticator
}

type AccountsControllerOption func(*AccountsController) *AccountsController

func WithControllerLifecycle(lc *Lifecycle) AccountsControllerOption {
	return func(c *AccountsController) *AccountsController {
		c.Lifecycle = lc
		return c
	}
}

func WithControllerAuther(a HTTPAuthenticator) AccountsControllerOption {
	return func(c *AccountsController) *AccountsController {
		c.Auther = a
		return c
	}
}

func WithControllerConfig(cfg Config) AccountsControllerOption {
	return func(c *AccountsController) *AccountsController {
		c.Config = cfg
		return c
	}
}

func WithControllerLogger(l Logger) AccountsControllerOption {
	return func(c *AccountsController) *AccountsController {
		c.Logger = l
		return c
	}
}

func WithControllerDebug(debug bool) AccountsControllerOption {
	return func(c *AccountsController) *AccountsController {
		c.Debug = debug
		return c
	}
}

func NewAccountsController(opts ...AccountsControllerOption) *AccountsController {
	c := &AccountsController{
		Logger: defLogger{},
		Routes: NewAccountsControllerRouteDefaults(),
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Lifecycle == nil {
		panic("Missing Lifecycle in accounts controller...")
	}

	if c.Auther == nil {
		panic("Missing HTTPAuthenticator in accounts controller...")
	}

	if c.Config == nil {
		panic("Missing Config in accounts controller...")
	}

	return c
}

// LoginShow is the anonymous-only sign-in page. A live session has nothing
// to do here and goes straight to the profile instead.
func (a *AccountsController) LoginShow(ctx router.Context) error {
	if a.authContext(ctx).IsAuthenticated() {
		return ctx.Redirect(a.Routes.Me, fiber.StatusFound)
	}

	return ctx.JSON(fiber.StatusOK, map[string]string{
		"action": a.Routes.Login,
		"method": "POST",
	})
}

// SignupShow is the anonymous-only sign-up page; same redirect rule as
// LoginShow. The form posts to the users collection.
func (a *AccountsController) SignupShow(ctx router.Context) error {
	if a.authContext(ctx).IsAuthenticated() {
		return ctx.Redirect(a.Routes.Me, fiber.StatusFound)
	}

	return ctx.JSON(fiber.StatusOK, map[string]string{
		"action": a.Routes.Users,
		"method": "POST",
	})
}

// SignupPost creates the account and starts the session in one step. The
// response carries the session cookie and sends the client to the profile.
func (a *AccountsController) SignupPost(ctx router.Context) error {
	payload := new(CredentialInput)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("signup parse payload: %v", err)
		return ctx.JSON(fiber.StatusBadRequest, map[string]string{
			"error": "failed to parse request body",
		})
	}

	if a.Debug {
		fmt.Println("======= ACCOUNT SIGNUP ======")
		fmt.Println(print.MaybePrettyJSON(map[string]string{"email": payload.Email}))
		fmt.Println("=============================")
	}

	session, err := a.Lifecycle.Signup(ctx.Context(), *payload)
	if err != nil {
		a.Logger.Error("signup error: %v", err)
		return a.renderError(ctx, err)
	}

	a.Auther.Attach(ctx, session.Token)
	return ctx.Redirect(a.Routes.Me, fiber.StatusFound)
}

// LoginPost authenticates the credentials. Failures leave the response
// cookie-free and the reason is never disclosed beyond "invalid".
func (a *AccountsController) LoginPost(ctx router.Context) error {
	payload := new(CredentialInput)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("login parse payload: %v", err)
		return ctx.JSON(fiber.StatusBadRequest, map[string]string{
			"error": "failed to parse request body",
		})
	}

	session, err := a.Lifecycle.Login(ctx.Context(), *payload)
	if err != nil {
		return a.renderError(ctx, err)
	}

	a.Auther.Attach(ctx, session.Token)
	return ctx.Redirect(a.Routes.Me, fiber.StatusFound)
}

// LogOut clears the session cookie. There is no server state to tear down,
// so logging out while logged out is a no-op with the same response.
func (a *AccountsController) LogOut(ctx router.Context) error {
	a.Auther.Logout(ctx)
	return ctx.Redirect("/", fiber.StatusFound)
}

// MeShow returns the authenticated account, password hash excluded. A token
// whose account has been deleted reports an error, never a stale record.
func (a *AccountsController) MeShow(ctx router.Context) error {
	user, err := a.Lifecycle.ViewSelf(ctx.Context(), a.authContext(ctx))
	if err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, user)
}

// MeUpdate patches email and/or password. An email change re-issues the
// session cookie so the token keeps matching the account.
func (a *AccountsController) MeUpdate(ctx router.Context) error {
	payload := new(ProfilePatch)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("profile update parse payload: %v", err)
		return ctx.JSON(fiber.StatusBadRequest, map[string]string{
			"error": "failed to parse request body",
		})
	}

	updated, err := a.Lifecycle.Update(ctx.Context(), a.authContext(ctx), *payload)
	if err != nil {
		return a.renderError(ctx, err)
	}

	if updated.Token != "" {
		a.Auther.Attach(ctx, updated.Token)
	}

	return ctx.JSON(fiber.StatusOK, updated.Account)
}

// MeDelete removes the account and everything it owns, then clears the
// cookie. Tokens issued before the deletion keep verifying but resolve to a
// missing account from here on.
func (a *AccountsController) MeDelete(ctx router.Context) error {
	deleted, err := a.Lifecycle.Delete(ctx.Context(), a.authContext(ctx))
	if err != nil {
		return a.renderError(ctx, err)
	}

	a.Auther.Logout(ctx)

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"deleted":          true,
		"workouts_removed": deleted.WorkoutsRemoved,
	})
}

// authContext resolves the request to an AuthContext, preferring the claims
// the JWT middleware already validated and falling back to the raw token.
func (a *AccountsController) authContext(ctx router.Context) AuthContext {
	if stored := ctx.Locals(a.Config.GetContextKey()); stored != nil {
		if claims, ok := stored.(AuthClaims); ok {
			if id, err := uuid.Parse(claims.UserID()); err == nil {
				return AuthenticatedAs(id)
			}
		}
	}

	token, ok := a.Auther.ReadToken(ctx)
	if !ok {
		return Anonymous()
	}

	return a.Lifecycle.Authenticate(token)
}

func (a *AccountsController) renderError(ctx router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	body := map[string]any{
		"error": richErr.Message,
	}

	if richErr.TextCode != "" {
		body["code"] = richErr.TextCode
	}

	if richErr.Category == errors.CategoryValidation && len(richErr.Metadata) > 0 {
		body["validation"] = richErr.Metadata
	}

	return ctx.JSON(httpStatusFor(richErr), body)
}

// httpStatusFor maps the error taxonomy onto transport codes. Conflicts and
// missing accounts render as bad requests to match the client contract;
// authentication failures are the only source of 401.
func httpStatusFor(e *errors.Error) int {
	switch e.Category {
	case errors.CategoryAuth, errors.CategoryAuthz:
		return fiber.StatusUnauthorized
	case errors.CategoryValidation, errors.CategoryBadInput, errors.CategoryConflict, errors.CategoryNotFound:
		return fiber.StatusBadRequest
	default:
		if e.Code >= 400 {
			return e.Code
		}
		return fiber.StatusInternalServerError
	}
}
