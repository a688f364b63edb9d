package renderer

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-rod/rod/lib/launcher"
)

// resolveBinary returns the Chromium executable to launch. An empty bin
// means search the usual install locations. Rod would otherwise download a
// browser on demand; a missing binary is reported instead.
func resolveBinary(bin string) (string, error) {
	if bin == "" {
		found, ok := launcher.LookPath()
		if !ok {
			return "", errors.New("no chromium binary found; set CRAWLKIT_BROWSER_BIN")
		}
		bin = found
	}

	info, err := os.Stat(bin)
	if err != nil {
		return "", fmt.Errorf("browser binary %s: %w", bin, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("browser binary %s is a directory", bin)
	}
	if info.Mode().Perm()&0o111 == 0 {
		return "", fmt.Errorf("browser binary %s is not executable", bin)
	}
	return bin, nil
}
