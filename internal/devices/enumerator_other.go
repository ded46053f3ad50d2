//go:build !linux

package devices

import "context"

type emptyEnumerator struct{}

// NewEnumerator returns the host's device enumerator. Enumeration is only
// implemented on linux; elsewhere devices are referenced by name.
func NewEnumerator() Enumerator {
	return emptyEnumerator{}
}

func (emptyEnumerator) ListCameras(context.Context) ([]DeviceInfo, error) {
	return []DeviceInfo{}, nil
}

func (emptyEnumerator) ListMicrophones(context.Context) ([]DeviceInfo, error) {
	return []DeviceInfo{}, nil
}
