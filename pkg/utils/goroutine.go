package utils

import (
	"bytes"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"
)

// ModulePackages matches stack frames from this module's packages
const ModulePackages = "github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/"

// GoroutineLeakDetector fails a test when goroutines started after Start
// are still running at Check. Only goroutines whose stack contains the
// filter are considered, so runtime, HTTP keep-alive and test framework
// goroutines do not count.
type GoroutineLeakDetector struct {
	t        testing.TB
	filter   string
	timeout  time.Duration
	baseline map[int]bool
}

func NewGoroutineLeakDetector(t testing.TB) *GoroutineLeakDetector {
	return &GoroutineLeakDetector{
		t:       t,
		filter:  ModulePackages,
		timeout: 2 * time.Second,
	}
}

// SetFilter replaces the stack substring a goroutine must contain to count
func (d *GoroutineLeakDetector) SetFilter(filter string) *GoroutineLeakDetector {
	d.filter = filter
	return d
}

// SetTimeout bounds how long Check waits for goroutines to exit
func (d *GoroutineLeakDetector) SetTimeout(timeout time.Duration) *GoroutineLeakDetector {
	d.timeout = timeout
	return d
}

// Start records the goroutines that already exist
func (d *GoroutineLeakDetector) Start() {
	d.baseline = make(map[int]bool)
	for id := range goroutineStacks() {
		d.baseline[id] = true
	}
}

// Check waits until every goroutine started since Start has exited
func (d *GoroutineLeakDetector) Check() {
	d.t.Helper()

	deadline := time.Now().Add(d.timeout)
	for {
		leaked := d.leaked()
		if len(leaked) == 0 {
			return
		}
		if time.Now().After(deadline) {
			d.t.Errorf("Goroutine leak detected: %d goroutine(s) still running", len(leaked))
			d.t.Logf("Leaked goroutines:\n%s", strings.Join(leaked, "\n\n"))
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func (d *GoroutineLeakDetector) leaked() []string {
	var out []string
	for id, stack := range goroutineStacks() {
		if !d.baseline[id] && strings.Contains(stack, d.filter) {
			out = append(out, stack)
		}
	}
	return out
}

// goroutineStacks returns the stack of every goroutine keyed by its id
func goroutineStacks() map[int]string {
	buf := make([]byte, 1<<20)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) {
			buf = buf[:n]
			break
		}
		buf = make([]byte, 2*len(buf))
	}

	stacks := make(map[int]string)
	for _, block := range bytes.Split(buf, []byte("\n\n")) {
		// "goroutine 42 [chan receive]:"
		header, _, _ := bytes.Cut(block, []byte("\n"))
		fields := strings.Fields(string(header))
		if len(fields) < 2 || fields[0] != "goroutine" {
			continue
		}
		id, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		stacks[id] = string(block)
	}
	return stacks
}
