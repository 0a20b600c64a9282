package gatewaydev

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"teleicu/internal/models"
	"teleicu/internal/token"
)

// RegisterRoutes публикует discovery-эндпоинт платформы: её JWKS,
// без аутентификации, с суточным кэшем.
func RegisterRoutes(r *mux.Router, iss *token.Issuer, maxAge time.Duration) {
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	r.HandleFunc("/.well-known/jwks.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(maxAge.Seconds())))
		models.WriteJSON(w, http.StatusOK, iss.JWKS())
	}).Methods(http.MethodGet)
}
