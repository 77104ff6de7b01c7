package scanner

// Permission is the state of the camera permission as the scan screen sees it.
type Permission string

// Permission states.
const (
	PermissionGranted           Permission = "granted"
	PermissionAsk               Permission = "ask"
	PermissionRationale         Permission = "rationale"
	PermissionPermanentlyDenied Permission = "permanently_denied"
)

// PermissionStateFor derives the permission state from what the platform reports. A denied
// permission without a rationale counts as permanently denied only once it has been requested
// before; otherwise the user is simply asked.
func PermissionStateFor(granted, showRationale, requestedBefore bool) Permission {
	switch {
	case granted:
		return PermissionGranted
	case showRationale:
		return PermissionRationale
	case requestedBefore:
		return PermissionPermanentlyDenied
	default:
		return PermissionAsk
	}
}
