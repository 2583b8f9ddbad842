package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// recordingTB captures failures instead of failing the real test
type recordingTB struct {
	testing.TB
	failed bool
}

func (r *recordingTB) Helper()                                   {}
func (r *recordingTB) Logf(format string, args ...interface{})   {}
func (r *recordingTB) Errorf(format string, args ...interface{}) { r.failed = true }

func TestLeakDetectorPassesWhenGoroutinesExit(t *testing.T) {
	rec := &recordingTB{TB: t}
	detector := NewGoroutineLeakDetector(rec)
	detector.Start()

	done := make(chan struct{})
	go func() { close(done) }()
	<-done

	detector.Check()
	assert.False(t, rec.failed)
}

func TestLeakDetectorReportsBlockedGoroutine(t *testing.T) {
	rec := &recordingTB{TB: t}
	detector := NewGoroutineLeakDetector(rec).SetTimeout(50 * time.Millisecond)
	detector.Start()

	release := make(chan struct{})
	defer close(release)
	go func() { <-release }()

	detector.Check()
	assert.True(t, rec.failed)
}

func TestLeakDetectorIgnoresOtherPackages(t *testing.T) {
	rec := &recordingTB{TB: t}
	detector := NewGoroutineLeakDetector(rec).
		SetFilter("example.invalid/nothing").
		SetTimeout(20 * time.Millisecond)
	detector.Start()

	release := make(chan struct{})
	defer close(release)
	go func() { <-release }()

	detector.Check()
	assert.False(t, rec.failed)
}

func TestGoroutineStacksIncludesCaller(t *testing.T) {
	stacks := goroutineStacks()
	found := false
	for _, s := range stacks {
		if strings.Contains(s, "TestGoroutineStacksIncludesCaller") {
			found = true
		}
	}
	assert.True(t, found)
}
