package subprocess

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"
)

// helperModeEnv switches the test binary into a tiny line-echo server.
const helperModeEnv = "TOOLHUB_SUBPROCESS_HELPER"

func TestMain(m *testing.M) {
	if mode := os.Getenv(helperModeEnv); mode != "" {
		os.Exit(runHelper(mode))
	}

	os.Exit(m.Run())
}

// runHelper answers every request line with its own params as the result.
//
// Modes:
//
//	echo   answer until stdin closes
//	crash  write to stderr and exit 3 on the first request
//	hang   ignore stdin EOF and sleep until killed
func runHelper(mode string) int {
	if mode == "hang" {
		fmt.Fprintln(os.Stderr, "hanging")
		time.Sleep(time.Hour)

		return 0
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}

		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			fmt.Fprintln(os.Stderr, "bad line:", err)

			continue
		}

		if mode == "crash" {
			fmt.Fprintln(os.Stderr, "fatal: crash requested")

			return 3
		}

		var result any = json.RawMessage(req.Params)

		if req.Method == "env" {
			cwd, _ := os.Getwd()
			result = map[string]string{"value": os.Getenv("TOOLHUB_TEST_VALUE"), "cwd": cwd}
		}

		if len(req.ID) == 0 {
			continue
		}

		out, _ := json.Marshal(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result})
		fmt.Fprintf(os.Stdout, "%s\n", out)
	}

	return 0
}
