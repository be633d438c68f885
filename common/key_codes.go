package common

// Virtual key codes for input handling.
// These values match GLFW key codes which use ASCII values for printable keys.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
const (
	KeyF = 70 // F key (ASCII)
	KeyO = 79 // O key (ASCII)
	KeyQ = 81 // Q key (ASCII)
	KeyR = 82 // R key (ASCII)
	KeyS = 83 // S key (ASCII)

	KeySpace       = 32  // Spacebar (ASCII)
	KeyEsc         = 256 // Escape key (GLFW)
	KeyPrintScreen = 283 // Print Screen key (GLFW)
)

// Modifier bit flags as reported by GLFW key callbacks.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#ModifierKey
const (
	ModShift   = 0x1
	ModControl = 0x2
	ModAlt     = 0x4
	ModSuper   = 0x8
)
