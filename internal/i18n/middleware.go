package i18n

import "net/http"

// Middleware injects a localizer into every request context. The "lang" query
// parameter wins over Accept-Language; lang is the fallback.
func Middleware(lang string) func(http.Handler) http.Handler {
	fallback := NewLocalizer(lang)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loc := fallback
			if q, accept := r.URL.Query().Get("lang"), r.Header.Get("Accept-Language"); q != "" || accept != "" {
				loc = NewLocalizer(q, accept, lang)
			}
			ctx := WithLocalizer(r.Context(), loc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
