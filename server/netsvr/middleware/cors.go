package middleware

import (
	"net/http"

	chimid "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// CORS 瀏覽器端客戶端跨來源存取 /v1 與 /ws。origins 為空時允許所有來源。
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", chimid.RequestIDHeader},
		ExposedHeaders:   []string{chimid.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	})
}
