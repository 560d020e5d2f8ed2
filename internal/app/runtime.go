package app

import (
	"os"
	"strconv"
)

// TestModeEnv, when true, makes the binaries return from main before touching
// PostgreSQL, Redis or the network.
const TestModeEnv = "BARBERIA_TEST_MODE"

// InTestMode reports whether TestModeEnv is set to a true value.
func InTestMode() bool {
	on, err := strconv.ParseBool(os.Getenv(TestModeEnv))
	return err == nil && on
}
