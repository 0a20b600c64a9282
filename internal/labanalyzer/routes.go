package labanalyzer

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes монтирует действия анализатора под /lab_analyzer/{uuid}.
func RegisterRoutes(r *mux.Router, a *Actions) {
	l := r.PathPrefix("/lab_analyzer/{uuid}").Subrouter()
	l.HandleFunc("/actions/get_status", a.GetStatus).Methods(http.MethodGet)
	l.HandleFunc("/actions/order_test", a.OrderTest).Methods(http.MethodPost)
	l.HandleFunc("/actions/get_results", a.GetResults).Methods(http.MethodPost)
	l.HandleFunc("/actions/clear_results", a.ClearResults).Methods(http.MethodPost)
}
