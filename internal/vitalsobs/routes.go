package vitalsobs

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes монтирует automation-эндпоинты. Инвентарь забирает сам
// шлюз (Gateway_Bearer), показания приносит middleware-сервис
// (Middleware_Bearer) — поэтому маршруты вешаются на два роутера с
// разными auth-обёртками.
func RegisterRoutes(gatewayRouter, middlewareRouter *mux.Router, a *Automation) {
	gatewayRouter.HandleFunc("/vitals_observation/devices", a.ListDevices).
		Methods(http.MethodGet)
	middlewareRouter.HandleFunc("/vitals_observation/observations", a.RecordObservations).
		Methods(http.MethodPost)
}
