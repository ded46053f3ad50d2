//go:build linux

package devices

// NewEnumerator returns the host's device enumerator.
func NewEnumerator() Enumerator {
	return NewSysfsEnumerator()
}
