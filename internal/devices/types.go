package devices

import (
	"context"
	"fmt"
	"image"
	"time"
)

// DeviceInfo describes an enumerated capture device.
type DeviceInfo struct {
	ID    string `json:"id" example:"usb-046d_HD_Pro_Webcam_C920-video-index0" doc:"Stable device identifier"`
	Label string `json:"label" example:"HD Pro Webcam C920" doc:"Human readable device name"`
	Path  string `json:"path,omitempty" example:"/dev/video0" doc:"Device node, when known"`
}

// Enumerator lists capture devices present on the host.
type Enumerator interface {
	ListCameras(ctx context.Context) ([]DeviceInfo, error)
	ListMicrophones(ctx context.Context) ([]DeviceInfo, error)
}

// Handle is a live capture of one device.
type Handle interface {
	// Frame returns the most recent frame. The image must not be modified.
	Frame() (image.Image, bool)
	// Done is closed when the capture ends for any reason.
	Done() <-chan struct{}
	// Err reports why the capture ended, if it did.
	Err() error
}

// Acquirer opens and closes device captures.
type Acquirer interface {
	Acquire(ctx context.Context, deviceID string) (Handle, error)
	Release(h Handle)
}

// BindingState is the lifecycle state of a device binding.
type BindingState string

// Binding states.
const (
	StatePending  BindingState = "pending"
	StateLive     BindingState = "live"
	StateFailed   BindingState = "failed"
	StateReleased BindingState = "released"
)

// Binding is a snapshot of one reference-counted device binding.
type Binding struct {
	DeviceID string       `json:"device_id" example:"/dev/video0" doc:"Bound device"`
	State    BindingState `json:"state" example:"live" doc:"pending, live or failed"`
	RefCount int          `json:"ref_count" example:"2" doc:"Visible sources referencing the device"`
	Sources  []string     `json:"sources" doc:"IDs of the referencing sources"`
	Error    string       `json:"error,omitempty" doc:"Last acquisition failure"`
	Since    time.Time    `json:"since" doc:"Time of the last state change"`
}

// DeviceError reports a failed device operation.
type DeviceError struct {
	DeviceID string
	Op       string
	Err      error
}

func (e *DeviceError) Error() string {
	if e.DeviceID == "" {
		return fmt.Sprintf("devices: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("device %s: %s: %v", e.DeviceID, e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }
