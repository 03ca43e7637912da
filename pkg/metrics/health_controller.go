package metrics

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/iota-uz/provisioning-sdk/pkg/application"
	"github.com/iota-uz/provisioning-sdk/pkg/httpapi"
)

const HealthPath = "/health"

type HealthController struct {
	started time.Time
}

func NewHealthController() application.Controller {
	return &HealthController{started: time.Now()}
}

func (c *HealthController) Key() string {
	return HealthPath
}

func (c *HealthController) Register(r *mux.Router) {
	r.HandleFunc(HealthPath, c.health).Methods(http.MethodGet)
}

func (c *HealthController) health(w http.ResponseWriter, _ *http.Request) {
	_ = httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(c.started).Round(time.Second).String(),
	})
}
