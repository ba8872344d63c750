package gpu

import "github.com/cogentcore/webgpu/wgpu"

// BackendBuilderOption is a functional option used to configure adapter and device negotiation in Open.
type BackendBuilderOption func(*wgpuBackendImpl)

// WithPowerPreference sets the adapter power class to prefer.
//
// Parameters:
//   - pref: the preferred power class (e.g., wgpu.PowerPreferenceHighPerformance, wgpu.PowerPreferenceLowPower)
//
// Returns:
//   - BackendBuilderOption: a function that sets the power preference
func WithPowerPreference(pref wgpu.PowerPreference) BackendBuilderOption {
	return func(b *wgpuBackendImpl) {
		b.powerPreference = pref
	}
}

// WithForceFallbackAdapter forces selection of a software fallback adapter.
//
// Parameters:
//   - force: true to require the fallback adapter
//
// Returns:
//   - BackendBuilderOption: a function that sets the fallback adapter flag
func WithForceFallbackAdapter(force bool) BackendBuilderOption {
	return func(b *wgpuBackendImpl) {
		b.forceFallbackAdapter = force
	}
}

// WithDeviceLabel sets the debug label of the requested logical device.
//
// Parameters:
//   - label: the device label
//
// Returns:
//   - BackendBuilderOption: a function that sets the device label
func WithDeviceLabel(label string) BackendBuilderOption {
	return func(b *wgpuBackendImpl) {
		b.deviceLabel = label
	}
}
