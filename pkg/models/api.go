package models

// Device API types
type AddDeviceRequest struct {
	Name        string `json:"name"`
	Host        string `json:"host"`
	Port        int    `json:"port,omitempty"`
	UseTLS      bool   `json:"use_tls,omitempty"`
	Username    string `json:"username"`
	Secret      string `json:"secret"`
	Description string `json:"description,omitempty"`
}

type ExecuteRequest struct {
	Command   string            `json:"command"`
	Operation string            `json:"operation,omitempty"`
	Method    string            `json:"method,omitempty"`
	Args      map[string]string `json:"args,omitempty"`
}

// Result is the outcome of one command against one device. Failure is a
// value, never an exception: a dead device must not abort its siblings in a
// fan-out.
type Result struct {
	Success   bool                `json:"success"`
	Device    string              `json:"device"`
	Command   string              `json:"command"`
	Data      []map[string]string `json:"data,omitempty"`
	Error     string              `json:"error,omitempty"`
	ElapsedMs float64             `json:"elapsed_ms"`
}

// StatusSnapshot is the normalized health view of one device.
type StatusSnapshot struct {
	Device      string `json:"device"`
	Online      bool   `json:"online"`
	Identity    string `json:"identity,omitempty"`
	Version     string `json:"version,omitempty"`
	Uptime      string `json:"uptime,omitempty"`
	CPULoad     string `json:"cpu_load,omitempty"`
	MemoryUsed  string `json:"memory_used,omitempty"`
	Error       string `json:"error,omitempty"`
	LastChecked string `json:"last_checked"`
}

// Device-authorization API types
type AuthRequestBody struct {
	DeviceID       string `json:"device_id"`
	DeviceIdentity string `json:"device_identity,omitempty"`
}

type AuthRequestResponse struct {
	DeviceCode string `json:"device_code"`
	ClaimURL   string `json:"claim_url"`
	ExpiresIn  int    `json:"expires_in"`
}

type PollRequest struct {
	DeviceCode string `json:"device_code"`
}

type PollResponse struct {
	Authorized     bool   `json:"authorized"`
	Status         string `json:"status"`
	Secret         string `json:"secret,omitempty"`
	DeviceID       string `json:"device_id,omitempty"`
	DeviceIdentity string `json:"device_identity,omitempty"`
	AuthorizedAt   string `json:"authorized_at,omitempty"`
}

type HandshakeRequest struct {
	DeviceIdentity string `json:"device_identity"`
	DeviceID       string `json:"device_id"`
	Timestamp      string `json:"timestamp"`
	Signature      string `json:"signature,omitempty"`
}

// Error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
