package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (app *application) routes() *http.ServeMux {
	mux := http.NewServeMux()

	api := func(next http.HandlerFunc) http.Handler {
		return app.recoverPanic(app.logAndTraceRequest(secureHeaders(noCache(app.timeout(next)))))
	}

	mux.Handle("GET /api/healthy", api(app.healthy))
	mux.Handle("GET /api/test/timeout", api(app.testTimeout))

	mux.Handle("POST /api/focus/{screen}", api(app.focusPOST))

	mux.Handle("GET /api/workouts", api(app.workoutsGET))
	mux.Handle("POST /api/workouts", api(app.workoutsPOST))
	mux.Handle("GET /api/workouts/{id}", api(app.workoutGET))
	mux.Handle("PUT /api/workouts/{id}", api(app.workoutPUT))
	mux.Handle("DELETE /api/workouts/{id}", api(app.workoutDELETE))

	mux.Handle("GET /api/rules", api(app.rulesGET))
	mux.Handle("POST /api/rules", api(app.rulesPOST))
	mux.Handle("GET /api/rules/{id}", api(app.ruleGET))
	mux.Handle("PUT /api/rules/{id}", api(app.rulePUT))
	mux.Handle("DELETE /api/rules/{id}", api(app.ruleDELETE))

	mux.Handle("GET /api/sessions", api(app.sessionsGET))
	mux.Handle("POST /api/sessions", api(app.sessionsPOST))
	mux.Handle("GET /api/sessions/{id}", api(app.sessionGET))
	mux.Handle("POST /api/sessions/{id}/complete", api(app.sessionCompletePOST))
	mux.Handle("DELETE /api/sessions/{id}", api(app.sessionDELETE))

	mux.Handle("GET /api/notifications", api(app.notificationsGET))

	mux.Handle("GET /metrics", app.recoverPanic(promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{})))

	return mux
}
