// Package testing is blank-imported by test files to mark the process as a test run.
package testing

import "os"

var defaults = map[string]string{
	"ESCUCHAS_TEST_MODE": "1",
	"BACKEND_URL":        "http://127.0.0.1:0",
	"SESSION_SECRET":     "test-session-secret",
	"CSRF_SECRET":        "test-csrf-secret",
}

func init() {
	for key, value := range defaults {
		if _, ok := os.LookupEnv(key); !ok {
			_ = os.Setenv(key, value)
		}
	}
}
