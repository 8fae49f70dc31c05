package domain

import "time"

// ReadinessState is the lifecycle stage of the shared model handle.
type ReadinessState string

const (
	StateUninitialized ReadinessState = "uninitialized"
	StateDownloading   ReadinessState = "downloading"
	StateDownloaded    ReadinessState = "downloaded"
	StateLoading       ReadinessState = "loading"
	StateReady         ReadinessState = "ready"
	StateFailed        ReadinessState = "failed"
)

// Busy reports whether an operation is running in this state.
func (s ReadinessState) Busy() bool {
	return s == StateDownloading || s == StateLoading
}

// DownloadProgress reports bytes fetched so far for a model artifact.
type DownloadProgress struct {
	Status    string `json:"status,omitempty"`
	Completed int64  `json:"completed"`
	Total     int64  `json:"total"`
}

// Percent returns completion in the range [0, 100], or 0 when the total is unknown.
func (p DownloadProgress) Percent() float64 {
	if p.Total <= 0 {
		return 0
	}
	pct := float64(p.Completed) / float64(p.Total) * 100
	if pct > 100 {
		return 100
	}
	return pct
}

// ReadinessSnapshot is an immutable view of the model lifecycle. A new
// snapshot replaces the old one on every transition.
type ReadinessSnapshot struct {
	State     ReadinessState    `json:"state"`
	Model     string            `json:"model"`
	Backend   string            `json:"backend"`
	Detail    string            `json:"detail,omitempty"`
	Progress  *DownloadProgress `json:"progress,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Ready reports whether generation requests may be accepted.
func (s *ReadinessSnapshot) Ready() bool {
	return s != nil && s.State == StateReady
}
