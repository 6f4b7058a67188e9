package handler

import (
	"errors"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"yatube/internal/httputil"
	"yatube/internal/model"
	"yatube/internal/service"
	"yatube/internal/transport/http/middleware"
	"yatube/internal/web"
)

const invalidLoginMessage = "Please enter a correct username and password. Note that both fields may be case-sensitive."

// AuthHandler serves sign-up, log-in and log-out pages.
type AuthHandler struct {
	pages
	userService  *service.UserService
	authService  *service.AuthService
	cookieSecure bool
}

// NewAuthHandler wires dependencies for authentication pages.
func NewAuthHandler(userService *service.UserService, authService *service.AuthService, cookieSecure bool, view Renderer) *AuthHandler {
	return &AuthHandler{
		pages:        pages{view: view},
		userService:  userService,
		authService:  authService,
		cookieSecure: cookieSecure,
	}
}

// SignupForm handles GET /auth/signup/
func (h *AuthHandler) SignupForm(w http.ResponseWriter, r *http.Request) {
	h.view.Render(w, r, http.StatusOK, web.PageSignup, map[string]any{
		"Title":  "Sign up",
		"Form":   model.SignupForm{},
		"Errors": model.ValidationErrors{},
	})
}

// Signup handles POST /auth/signup/. A new account is logged in straight away.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	form := model.SignupForm{
		Username:        r.PostFormValue("username"),
		DisplayName:     r.PostFormValue("display_name"),
		Password:        r.PostFormValue("password1"),
		PasswordConfirm: r.PostFormValue("password2"),
	}

	user, err := h.userService.Register(r.Context(), form)
	if err != nil {
		var verrs model.ValidationErrors
		if errors.As(err, &verrs) {
			// Passwords are never echoed back.
			form.Password, form.PasswordConfirm = "", ""
			h.view.Render(w, r, http.StatusOK, web.PageSignup, map[string]any{
				"Title":  "Sign up",
				"Form":   form,
				"Errors": verrs,
			})
			return
		}
		h.serverError(w, r, err, "Signup")
		return
	}

	if err := h.startSession(w, user); err != nil {
		h.serverError(w, r, err, "Signup: session")
		return
	}
	httputil.Redirect(w, r, "/")
}

// LoginForm handles GET /auth/login/
func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	h.view.Render(w, r, http.StatusOK, web.PageLogin, map[string]any{
		"Title": "Log in",
		"Next":  r.URL.Query().Get("next"),
	})
}

// Login handles POST /auth/login/ and returns the user to next.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	form := model.LoginForm{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	}
	next := r.PostFormValue("next")

	user, err := h.userService.Login(r.Context(), form)
	if err != nil {
		if errors.Is(err, model.ErrInvalidCredentials) {
			h.view.Render(w, r, http.StatusOK, web.PageLogin, map[string]any{
				"Title":    "Log in",
				"Next":     next,
				"Username": form.Username,
				"Error":    invalidLoginMessage,
			})
			return
		}
		h.serverError(w, r, err, "Login")
		return
	}

	if err := h.startSession(w, user); err != nil {
		h.serverError(w, r, err, "Login: session")
		return
	}
	httputil.Redirect(w, r, httputil.SafeNext(next))
}

// Logout handles GET /auth/logout/
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     service.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	r = r.WithContext(middleware.WithViewer(r.Context(), nil))
	h.view.Render(w, r, http.StatusOK, web.PageLoggedOut, map[string]any{"Title": "Logged out"})
}

func (h *AuthHandler) startSession(w http.ResponseWriter, user *model.User) error {
	token, err := h.authService.IssueToken(user)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     service.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.authService.MaxAge().Seconds()),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	log.WithField("user_id", user.ID).Info("[AuthHandler] Session started")
	return nil
}
