package handlers

import (
	"log/slog"
	"net/http"

	chatpost "github.com/cloudhubibi/gtmchat/handlers/chat/post"
	healthget "github.com/cloudhubibi/gtmchat/handlers/health/get"
	"github.com/rs/cors"
	"github.com/tmc/langchaingo/llms"
)

// New returns the relay's routes. Each route is served both at the root
// and under /api.
func New(log *slog.Logger, llm llms.Model, opts chatpost.Options) http.Handler {
	mux := http.NewServeMux()

	hgh := healthget.New()
	mux.Handle("GET /health", hgh)
	mux.Handle("GET /api/health", hgh)

	cph := chatpost.New(log, llm, opts)
	mux.Handle("POST /chat", cph)
	mux.Handle("POST /api/chat", cph)

	return cors.AllowAll().Handler(mux)
}
