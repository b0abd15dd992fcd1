package get

import (
	"net/http"

	"github.com/a-h/respond"
	"github.com/cloudhubibi/gtmchat/models"
)

func New() Handler {
	return Handler{}
}

type Handler struct{}

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	respond.WithJSON(w, models.HealthResponse{
		Status:  "ok",
		Message: "Server is running",
	}, http.StatusOK)
}
