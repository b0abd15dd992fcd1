package get

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloudhubibi/gtmchat/models"
	"github.com/google/go-cmp/cmp"
)

func TestHandler(t *testing.T) {
	w := httptest.NewRecorder()
	New().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	var actual models.HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&actual); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	expected := models.HealthResponse{Status: "ok", Message: "Server is running"}
	if diff := cmp.Diff(expected, actual); diff != "" {
		t.Error(diff)
	}
}
