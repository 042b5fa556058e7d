package middleware

import (
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"

	"complaintdesk/internal/ctxkeys"
	"complaintdesk/internal/obs"
	"complaintdesk/internal/routing"
)

// Guard runs every page request through the route resolver. Must be used
// after LoadSession.
//
// Redirects are silent 303s with a queued notice. A request without a live
// session goes to the login page with the original path in "next".
func Guard(logger *logrus.Logger, secureCookies bool) func(http.Handler) http.Handler {
	log := logger.WithField("component", "guard")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := ctxkeys.GetPrincipal(r.Context())
			d := routing.Authorize(p, r.URL.Path)
			obs.ObserveDecision(d.Kind.String())

			switch d.Kind {
			case routing.KindAllow:
				next.ServeHTTP(w, r)
				return

			case routing.KindRedirect:
				log.WithFields(logrus.Fields{
					"path": r.URL.Path,
					"to":   d.Location,
					"role": p.Role,
				}).Debug("navigation redirected")
				if msg := DecisionNotice(d, r.URL.Path); msg != "" {
					SetNotice(w, msg)
				}
				http.Redirect(w, r, d.Location, http.StatusSeeOther)

			default:
				SetNotice(w, DecisionNotice(d, r.URL.Path))
				ClearSessionCookies(w, secureCookies)
				target := routing.LoginPath + "?next=" + url.QueryEscape(r.URL.RequestURI())
				http.Redirect(w, r, target, http.StatusSeeOther)
			}
		})
	}
}
