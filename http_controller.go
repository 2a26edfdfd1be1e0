package members

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// genericErrorMessage is what store failures render. Details go to the
// log, never to the client.
const genericErrorMessage = "Sorry, an error occurred while processing your request."

type ControllerRoutes struct {
	Home    string
	SignUp  string
	Login   string
	Logout  string
	Members string
	Admin   string
	Promote string
	Demote  string
}

type ControllerViews struct {
	Home              string
	HomeAuthenticated string
	SignUp            string
	Login             string
	Members           string
	NotLoggedIn       string
	Admin             string
	Error             string
	NotFound          string
}

// Controller maps the HTTP surface onto the Authorizer. Every failure is
// converted to a rendered response here; nothing propagates to fiber's
// error handler except template problems.
type Controller struct {
	Logger  Logger
	Auth    *Authorizer
	Cookies *CookieCodec
	Routes  *ControllerRoutes
	Views   *ControllerViews
}

type ControllerOption func(*Controller) *Controller

func NewController(auth *Authorizer, cookies *CookieCodec, opts ...ControllerOption) *Controller {
	c := &Controller{
		Logger:  defLogger{},
		Auth:    auth,
		Cookies: cookies,
		Routes: &ControllerRoutes{
			Home:    "/",
			SignUp:  "/signup",
			Login:   "/login",
			Logout:  "/logout",
			Members: "/members",
			Admin:   "/admin",
			Promote: "/promote/:userId",
			Demote:  "/demote/:userId",
		},
		Views: &ControllerViews{
			Home:              "home",
			HomeAuthenticated: "home_authenticated",
			SignUp:            "signup",
			Login:             "login",
			Members:           "members",
			NotLoggedIn:       "not_logged_in",
			Admin:             "admin",
			Error:             "error",
			NotFound:          "404",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Auth == nil {
		panic("Missing Authorizer in members controller...")
	}

	if c.Cookies == nil {
		panic("Missing CookieCodec in members controller...")
	}

	return c
}

func (a *Controller) WithLogger(logger Logger) *Controller {
	if logger != nil {
		a.Logger = logger
	}
	return a
}

// RegisterRoutes binds the full HTTP surface, 404 catch-all included, so
// it must run after every other route group.
func RegisterRoutes(app *fiber.App, controller *Controller) {
	app.Get(controller.Routes.Home, controller.Home)

	app.Get(controller.Routes.SignUp, controller.SignUpShow)
	app.Post(controller.Routes.SignUp, controller.SignUpCreate)

	app.Get(controller.Routes.Login, controller.LoginShow)
	app.Post(controller.Routes.Login, controller.LoginPost)

	app.Get(controller.Routes.Logout, controller.LogOut)

	app.Get(controller.Routes.Members, controller.Members)

	app.Get(controller.Routes.Admin, controller.AdminIndex)
	app.Get(controller.Routes.Promote, controller.Promote)
	app.Get(controller.Routes.Demote, controller.Demote)

	app.Use(controller.NotFound)
}

// currentSession resolves the request cookie to a live session. Store
// failures degrade to anonymous rather than breaking page renders.
func (a *Controller) currentSession(c *fiber.Ctx) *Session {
	token := a.Cookies.ReadToken(c)
	if token == "" {
		return nil
	}

	session, err := a.Auth.SessionFromToken(c.Context(), token)
	if err != nil {
		a.Logger.Error("session resolve error", "error", err)
		return nil
	}

	return session
}

func (a *Controller) Home(c *fiber.Ctx) error {
	session := a.currentSession(c)

	if a.Auth.IsLoggedIn(session) {
		return c.Render(a.Views.HomeAuthenticated, fiber.Map{
			"name": session.Name,
		})
	}

	return c.Render(a.Views.Home, fiber.Map{})
}

func (a *Controller) SignUpShow(c *fiber.Ctx) error {
	return c.Render(a.Views.SignUp, fiber.Map{
		"errors": nil,
		"record": RegisterMessage{},
	})
}

func (a *Controller) SignUpCreate(c *fiber.Ctx) error {
	payload := new(RegisterMessage)

	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("signup parse payload", "error", err)
		return c.Status(fiber.StatusBadRequest).Render(a.Views.SignUp, fiber.Map{
			"errors": map[string]string{"form": "Failed to parse form"},
			"record": payload,
		})
	}

	user, err := a.Auth.Register(c.Context(), *payload)
	if err != nil {
		return a.renderSignUpError(c, payload, err)
	}

	session, err := a.Auth.EstablishSession(c.Context(), user)
	if err != nil {
		a.Logger.Error("signup session error", "error", err)
		return a.renderError(c, err)
	}

	a.Cookies.WriteCookie(c, session)

	return c.Redirect(a.Routes.Members, fiber.StatusSeeOther)
}

func (a *Controller) renderSignUpError(c *fiber.Ctx, payload *RegisterMessage, err error) error {
	if errors.Is(err, ErrDuplicateEmail) {
		return c.Status(fiber.StatusConflict).Render(a.Views.SignUp, fiber.Map{
			"errors": map[string]string{"email": "That email is already registered."},
			"record": payload,
		})
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && len(richErr.ValidationMap()) > 0 {
		return c.Status(fiber.StatusBadRequest).Render(a.Views.SignUp, fiber.Map{
			"errors": richErr.ValidationMap(),
			"record": payload,
		})
	}

	a.Logger.Error("signup register error", "error", err)
	return a.renderError(c, err)
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

func (a *Controller) LoginShow(c *fiber.Ctx) error {
	return c.Render(a.Views.Login, fiber.Map{
		"errors": nil,
		"record": LoginRequest{},
	})
}

func (a *Controller) LoginPost(c *fiber.Ctx) error {
	payload := new(LoginRequest)

	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("login parse payload", "error", err)
		return c.Status(fiber.StatusBadRequest).Render(a.Views.Login, fiber.Map{
			"errors": map[string]string{"form": "Failed to parse form"},
			"record": payload,
		})
	}

	if err := payload.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).Render(a.Views.Login, fiber.Map{
			"errors": map[string]string{"validation": err.Error()},
			"record": payload,
		})
	}

	session, err := a.Auth.Login(c.Context(), payload.Email, payload.Password)
	if err != nil {
		// UserNotFound and InvalidPassword render the same message so
		// the form cannot be used to enumerate accounts.
		if IsAuthFailure(err) {
			return c.Status(fiber.StatusUnauthorized).Render(a.Views.Login, fiber.Map{
				"errors": map[string]string{"authentication": "Invalid email or password."},
				"record": payload,
			})
		}

		a.Logger.Error("login error", "error", err)
		return a.renderError(c, err)
	}

	a.Cookies.WriteCookie(c, session)

	return c.Redirect(a.Routes.Members, fiber.StatusSeeOther)
}

func (a *Controller) Members(c *fiber.Ctx) error {
	session := a.currentSession(c)

	if !a.Auth.IsLoggedIn(session) {
		return c.Render(a.Views.NotLoggedIn, fiber.Map{})
	}

	return c.Render(a.Views.Members, fiber.Map{
		"name": session.Name,
	})
}

func (a *Controller) LogOut(c *fiber.Ctx) error {
	if token := a.Cookies.ReadToken(c); token != "" {
		if err := a.Auth.Logout(c.Context(), token); err != nil {
			a.Logger.Error("logout error", "error", err)
		}
	}

	a.Cookies.ClearCookie(c)

	return c.Redirect(a.Routes.Home, fiber.StatusSeeOther)
}

func (a *Controller) AdminIndex(c *fiber.Ctx) error {
	session := a.currentSession(c)

	users, err := a.Auth.ListUsers(c.Context(), session)
	if err != nil {
		return a.renderGuardError(c, err)
	}

	return c.Render(a.Views.Admin, fiber.Map{
		"name":  session.Name,
		"users": users,
	})
}

func (a *Controller) Promote(c *fiber.Ctx) error {
	return a.changeRole(c, RoleAdmin)
}

func (a *Controller) Demote(c *fiber.Ctx) error {
	return a.changeRole(c, RoleMember)
}

func (a *Controller) changeRole(c *fiber.Ctx, role UserRole) error {
	session := a.currentSession(c)

	targetID, err := parseUserID(c)
	if err != nil {
		return a.NotFound(c)
	}

	if role == RoleAdmin {
		err = a.Auth.Promote(c.Context(), session, targetID)
	} else {
		err = a.Auth.Demote(c.Context(), session, targetID)
	}

	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return a.NotFound(c)
		}
		return a.renderGuardError(c, err)
	}

	return c.Redirect(a.Routes.Admin, fiber.StatusSeeOther)
}

func (a *Controller) renderGuardError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return c.Status(fiber.StatusUnauthorized).Render(a.Views.NotLoggedIn, fiber.Map{})
	case errors.Is(err, ErrForbidden):
		return c.Status(fiber.StatusForbidden).Render(a.Views.Error, fiber.Map{
			"error": "Not Authorized",
		})
	default:
		a.Logger.Error("admin route error", "error", err)
		return a.renderError(c, err)
	}
}

func (a *Controller) renderError(c *fiber.Ctx, _ error) error {
	return c.Status(fiber.StatusInternalServerError).Render(a.Views.Error, fiber.Map{
		"error": genericErrorMessage,
	})
}

func (a *Controller) NotFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).Render(a.Views.NotFound, fiber.Map{})
}

func parseUserID(c *fiber.Ctx) (uuid.UUID, error) {
	return uuid.Parse(c.Params("userId"))
}
