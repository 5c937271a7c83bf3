package cli_test

import (
	"bytes"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/calvinalkan/pageindex/internal/cli"
)

// lockedBuffer is written by the command goroutine and read by the test.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

func waitForOutput(t *testing.T, b *lockedBuffer, re *regexp.Regexp) []string {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)

	for time.Now().Before(deadline) {
		if m := re.FindStringSubmatch(b.String()); m != nil {
			return m
		}

		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("output never matched %s:\n%s", re, b.String())

	return nil
}

func Test_Watch_Serves_Metrics_And_Stops_When_Signalled(t *testing.T) {
	t.Parallel()

	c := newNotebook(t)

	var stdout, stderr lockedBuffer

	sigCh := make(chan os.Signal, 1)
	done := make(chan int, 1)

	go func() {
		args := []string{"pageindex", "--cwd", c.Dir, "watch", "--metrics-addr", "127.0.0.1:0"}
		done <- cli.Run(strings.NewReader(""), &stdout, &stderr, args, c.Env, sigCh)
	}()

	m := waitForOutput(t, &stdout, regexp.MustCompile(`metrics on (http://\S+/metrics)`))
	waitForOutput(t, &stdout, regexp.MustCompile(`watching `))

	resp, err := http.Get(m[1])
	if err != nil {
		t.Fatalf("GET %s: %v", m[1], err)
	}

	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}

	cli.AssertContains(t, string(body), "pageindex_pages_indexed_total")
	cli.AssertContains(t, string(body), "go_goroutines")

	sigCh <- os.Interrupt

	select {
	case code := <-done:
		if code != 0 {
			t.Fatalf("exitCode=%d, want 0\nstderr: %s", code, stderr.String())
		}
	case <-time.After(10 * time.Second):
		t.Fatal("watch did not stop after signal")
	}

	// The index is released and usable again.
	stdout2 := c.MustRun("lookup", "Projects:Notes")
	cli.AssertContains(t, stdout2, "exists=true")
}
