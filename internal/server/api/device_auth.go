package api

import (
	"errors"
	"html/template"
	"net/http"

	"github.com/Danz17/txmtc-relay/internal/server/services"
	"github.com/Danz17/txmtc-relay/pkg/models"
	"github.com/go-chi/chi/v5"
	qrcode "github.com/skip2/go-qrcode"
)

type DeviceAuthHandler struct {
	auth *services.DeviceAuthService
}

func NewDeviceAuthHandler(auth *services.DeviceAuthService) *DeviceAuthHandler {
	return &DeviceAuthHandler{auth: auth}
}

// RequestAuthorization handles POST /auth/request (public, no auth required).
// Called by a device to start the credential hand-off.
func (h *DeviceAuthHandler) RequestAuthorization(w http.ResponseWriter, r *http.Request) {
	var req models.AuthRequestBody
	if err := decodeJSON(r, &req); err != nil {
		respondErrorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.auth.RequestAuthorization(req.DeviceID, req.DeviceIdentity)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// Poll handles POST /auth/poll (public). Repeatable; the code is not
// consumed by polling.
func (h *DeviceAuthHandler) Poll(w http.ResponseWriter, r *http.Request) {
	var req models.PollRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErrorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.DeviceCode == "" {
		respondErrorJSON(w, http.StatusBadRequest, "device_code is required")
		return
	}

	resp, err := h.auth.Poll(req.DeviceCode)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// ClaimPage handles GET /auth/{code}: the human-facing form that attaches a
// credential to a pending code.
func (h *DeviceAuthHandler) ClaimPage(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	rec, err := h.auth.Claim(code)
	if err != nil {
		renderClaim(w, http.StatusNotFound, claimPageData{Title: "Unknown code",
			Message: "This authorization code is unknown or has expired. Ask the device for a fresh one."})
		return
	}

	if rec.Status == models.AuthStatusAuthorized {
		renderClaim(w, http.StatusOK, claimPageData{Title: "Already authorized",
			Message: "A credential is already attached to this code. Nothing left to do here."})
		return
	}

	renderClaim(w, http.StatusOK, claimPageData{
		Title:          "Authorize device",
		Code:           code,
		DeviceID:       rec.DeviceID,
		DeviceIdentity: rec.DeviceIdentity,
		ShowForm:       true,
	})
}

// SubmitSecret handles POST /auth/{code}: the form submission that grants
// the credential.
func (h *DeviceAuthHandler) SubmitSecret(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	if err := r.ParseForm(); err != nil {
		renderClaim(w, http.StatusBadRequest, claimPageData{Title: "Bad request",
			Message: "Could not read the submitted form."})
		return
	}

	err := h.auth.SubmitSecret(code, r.FormValue("secret"))
	switch {
	case err == nil:
		renderClaim(w, http.StatusOK, claimPageData{Title: "Device authorized",
			Message: "The credential was attached. The device will pick it up on its next poll; you can close this page."})
	case errors.Is(err, models.ErrNotFound):
		renderClaim(w, http.StatusNotFound, claimPageData{Title: "Unknown code",
			Message: "This authorization code is unknown or has expired. Ask the device for a fresh one."})
	case errors.Is(err, models.ErrValidation):
		rec, claimErr := h.auth.Claim(code)
		if claimErr == nil && rec.Status == models.AuthStatusAuthorized {
			renderClaim(w, http.StatusConflict, claimPageData{Title: "Already authorized",
				Message: "A credential is already attached to this code and cannot be replaced."})
			return
		}
		renderClaim(w, http.StatusBadRequest, claimPageData{
			Title:          "Authorize device",
			Code:           code,
			DeviceID:       rec.DeviceID,
			DeviceIdentity: rec.DeviceIdentity,
			ShowForm:       true,
			FormError:      err.Error(),
		})
	default:
		respondServiceError(w, err)
	}
}

// ClaimQR handles GET /auth/{code}/qr: a PNG QR code of the claim URL, for
// pasting into chat or scanning off a terminal.
func (h *DeviceAuthHandler) ClaimQR(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	if _, err := h.auth.Claim(code); err != nil {
		respondServiceError(w, err)
		return
	}

	png, err := qrcode.Encode(h.auth.ClaimURL(code), qrcode.Medium, 256)
	if err != nil {
		respondErrorJSON(w, http.StatusInternalServerError, "failed to render QR code")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// Handshake handles POST /handshake (public): optional signed verification
// of a device's claimed identity before it requests authorization.
func (h *DeviceAuthHandler) Handshake(w http.ResponseWriter, r *http.Request) {
	var req models.HandshakeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErrorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.DeviceID == "" || req.Timestamp == "" {
		respondErrorJSON(w, http.StatusBadRequest, "device_id and timestamp are required")
		return
	}

	if err := h.auth.VerifyHandshake(req.DeviceIdentity, req.DeviceID, req.Timestamp, req.Signature); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"verified": h.auth.HandshakeConfigured(),
	})
}

type claimPageData struct {
	Title          string
	Message        string
	Code           string
	DeviceID       string
	DeviceIdentity string
	ShowForm       bool
	FormError      string
}

var claimTemplate = template.Must(template.New("claim").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
{{if .Message}}<p>{{.Message}}</p>{{end}}
{{if .ShowForm}}
<p>Device <strong>{{.DeviceID}}</strong>{{if .DeviceIdentity}} ({{.DeviceIdentity}}){{end}} is asking for an API credential.</p>
{{if .FormError}}<p style="color:red">{{.FormError}}</p>{{end}}
<form method="POST" action="/auth/{{.Code}}">
  <label>Credential: <input type="password" name="secret" autocomplete="off"></label>
  <button type="submit">Authorize</button>
</form>
{{end}}
</body>
</html>
`))

func renderClaim(w http.ResponseWriter, statusCode int, data claimPageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	claimTemplate.Execute(w, data)
}
