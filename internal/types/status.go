package types

// HealthSnapshot is a consistent point-in-time view of capture health.
//
// It is built under a single lock by the capture loop's telemetry so a
// reader never sees a half-updated combination of fields.
type HealthSnapshot struct {
	CameraConnected bool    `json:"camera_connected"`
	MeasuredFPS     float64 `json:"measured_fps"`
	Recording       bool    `json:"recording"`
	LastError       string  `json:"last_error,omitempty"`
}
