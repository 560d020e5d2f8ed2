// Package testing switches the binaries into test mode when blank-imported
// from a test, and fills the environment LoadConfig requires.
package testing

import (
	"os"
	stdtesting "testing"

	"github.com/barberia/backoffice/internal/app"
)

var testEnv = map[string]string{
	app.TestModeEnv:  "1",
	"SESSION_SECRET": "test-secret",
	"GOTENBERG_URL":  "http://127.0.0.1:0",
	"REDIS_ADDR":     "127.0.0.1:0",
}

func init() {
	for key, value := range testEnv {
		if _, set := os.LookupEnv(key); !set || key == app.TestModeEnv {
			_ = os.Setenv(key, value)
		}
	}
}

// TestMain lets a package delegate its TestMain here explicitly.
func TestMain(m *stdtesting.M) {
	os.Exit(m.Run())
}
