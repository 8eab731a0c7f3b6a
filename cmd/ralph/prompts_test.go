package main

import (
	"testing"

	"github.com/ralphloop/ralph/internal/loop"
)

func TestModeFromArg(t *testing.T) {
	if mode, err := modeFromArg("build"); err != nil || mode != loop.ModeBuild {
		t.Errorf("modeFromArg(build) = %q, %v", mode, err)
	}
	if mode, err := modeFromArg("plan"); err != nil || mode != loop.ModePlan {
		t.Errorf("modeFromArg(plan) = %q, %v", mode, err)
	}
	if _, err := modeFromArg("deploy"); err == nil {
		t.Error("modeFromArg(deploy) returned nil error")
	}
}
