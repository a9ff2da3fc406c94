//go:build acceptance

package acceptance

import (
	"bytes"
	"os"
	"os/exec"
	"testing"
)

func whatifBin(t *testing.T) string {
	t.Helper()
	if bin := os.Getenv("WHATIF_BIN"); bin != "" {
		return bin
	}
	return "whatif"
}

// runCLI executes the binary with an isolated data directory so tests never
// touch the developer's history database.
func runCLI(t *testing.T, dataDir string, args ...string) (string, string, int) {
	t.Helper()

	cmd := exec.Command(whatifBin(t), args...)
	cmd.Env = append(os.Environ(), "XDG_DATA_HOME="+dataDir)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
	} else if err != nil {
		t.Fatalf("run %v: %v", args, err)
	}
	return stdout.String(), stderr.String(), exitCode
}
