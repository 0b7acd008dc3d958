package format

import (
	"testing"
	"time"
)

func TestDuration(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0:00"},
		{59, "0:59"},
		{90, "1:30"},
		{3600, "1:00:00"},
		{7325, "2:02:05"},
		{-5, "0:00"},
	}
	for _, tt := range tests {
		if got := Duration(tt.in); got != tt.want {
			t.Errorf("Duration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTaskDuration(t *testing.T) {
	if got := TaskDuration(3200 * time.Millisecond); got != "3.2 seconds" {
		t.Errorf("TaskDuration() = %q", got)
	}
	if got := TaskDuration(90 * time.Second); got != "1.5 minutes" {
		t.Errorf("TaskDuration() = %q", got)
	}
	if got := TaskDuration(2 * time.Hour); got != "2.0 hours" {
		t.Errorf("TaskDuration() = %q", got)
	}
}
