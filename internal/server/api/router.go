package api

import (
	"net/http"
	"time"

	"github.com/Danz17/txmtc-relay/internal/server/storage"
	"github.com/Danz17/txmtc-relay/pkg/version"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter assembles the relay's HTTP surface. Device management sits
// behind the operator bearer token; /health and the device-authorization
// endpoints are public, since an unauthorized device is exactly who uses
// them (the code itself is the capability).
func NewRouter(
	token string,
	devices *storage.DeviceRepository,
	deviceHandler *DeviceHandler,
	deviceAuthHandler *DeviceAuthHandler,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(CORSMiddleware)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"status":             "healthy",
			"service":            "txmtc-relay",
			"version":            version.Version,
			"devices_registered": devices.Count(),
			"timestamp":          time.Now().UTC().Format(time.RFC3339),
		})
	})

	// Device management (operator token)
	r.Route("/devices", func(r chi.Router) {
		r.Use(BearerAuth(token))

		r.Get("/", deviceHandler.ListDevices)
		r.Post("/", deviceHandler.AddDevice)

		// Fan-out routes come first; chi prefers static segments over the
		// {name} wildcard either way, but "all" must never be a device name.
		r.Post("/all/execute", deviceHandler.ExecuteOnAll)
		r.Get("/all/status", deviceHandler.GetAllStatus)

		r.Get("/{name}", deviceHandler.GetDevice)
		r.Delete("/{name}", deviceHandler.DeleteDevice)
		r.Get("/{name}/status", deviceHandler.GetStatus)
		r.Post("/{name}/execute", deviceHandler.Execute)
	})

	// Device authorization (public endpoints)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/request", deviceAuthHandler.RequestAuthorization)
		r.Post("/poll", deviceAuthHandler.Poll)
		r.Get("/{code}", deviceAuthHandler.ClaimPage)
		r.Post("/{code}", deviceAuthHandler.SubmitSecret)
		r.Get("/{code}/qr", deviceAuthHandler.ClaimQR)
	})

	r.Post("/handshake", deviceAuthHandler.Handshake)

	return r
}
