package httputil

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
)

// LoginPath is where anonymous visitors of protected pages are sent.
const LoginPath = "/auth/login/"

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent
			log.Warnf("[httputil] encode response: %v", err)
		}
	}
}

// Redirect sends a 302 to location.
func Redirect(w http.ResponseWriter, r *http.Request, location string) {
	http.Redirect(w, r, location, http.StatusFound)
}

// LoginURL returns the login page with next set to the current request URI.
// Slashes stay readable: /auth/login/?next=/create/
func LoginURL(r *http.Request) string {
	next := strings.ReplaceAll(url.QueryEscape(r.URL.RequestURI()), "%2F", "/")
	return LoginPath + "?next=" + next
}

// SafeNext returns next when it is a local path, "/" otherwise.
// Control characters are refused since browsers drop tab and newline from
// URLs, which can turn "/\t/host" into "//host".
func SafeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return "/"
	}
	if strings.IndexFunc(next, func(r rune) bool { return r < 0x20 || r == 0x7f }) >= 0 {
		return "/"
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "/"
	}
	return next
}

// ParseID reads a positive integer URL parameter.
func ParseID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// PageParam is the raw "page" query value.
func PageParam(r *http.Request) string {
	return r.URL.Query().Get("page")
}

// ProfileURL, PostURL and friends build the site's canonical paths.
func ProfileURL(username string) string {
	return "/profile/" + url.PathEscape(username) + "/"
}

func PostURL(postID int64) string {
	return "/posts/" + strconv.FormatInt(postID, 10) + "/"
}

func GroupURL(slug string) string {
	return "/group/" + url.PathEscape(slug) + "/"
}
