package middleware

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"yatube/internal/cache"
	"yatube/internal/monitoring"
)

// CacheStatusHeader reports HIT or MISS on cached routes.
const CacheStatusHeader = "X-Page-Cache"

// CachePage serves GET requests from pages while the stored copy is younger
// than ttl. Entries are keyed by viewer and request URI, and only 200
// responses are stored. Cache errors degrade to a normal render.
func CachePage(pages cache.PageCache, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			key := pageKey(r)
			ctx := r.Context()

			page, found, err := pages.Get(ctx, key)
			if err != nil {
				log.Warnf("[PageCache] get %s: %v", key, err)
			}
			if found {
				monitoring.PageCacheRequests.WithLabelValues("hit").Inc()
				w.Header().Set("Content-Type", page.ContentType)
				w.Header().Set(CacheStatusHeader, "HIT")
				w.WriteHeader(page.Status)
				_, _ = w.Write(page.Body)
				return
			}
			monitoring.PageCacheRequests.WithLabelValues("miss").Inc()

			var body bytes.Buffer
			w.Header().Set(CacheStatusHeader, "MISS")
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Tee(&body)
			next.ServeHTTP(ww, r)

			if ww.Status() != http.StatusOK {
				return
			}
			stored := &cache.CachedPage{
				Status:      http.StatusOK,
				ContentType: ww.Header().Get("Content-Type"),
				Body:        body.Bytes(),
			}
			if err := pages.Put(ctx, key, stored, ttl); err != nil {
				log.Warnf("[PageCache] put %s: %v", key, err)
			}
		})
	}
}

func pageKey(r *http.Request) string {
	viewer := "anon"
	if id, ok := GetUserIDFromContext(r.Context()); ok {
		viewer = strconv.FormatInt(id, 10)
	}
	return viewer + ":" + r.URL.RequestURI()
}
