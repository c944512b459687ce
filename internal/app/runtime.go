package app

import (
	"os"
	"sync"
)

// InTestMode reports whether NATOURS_TEST_MODE=1 was set when the process
// first asked. Binaries use it to skip listeners and background workers.
var InTestMode = sync.OnceValue(func() bool {
	return os.Getenv("NATOURS_TEST_MODE") == "1"
})
