package controller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestActivityLabel(t *testing.T) {
	now := time.Unix(1700000000, 0)

	cases := []struct {
		name    string
		elapsed time.Duration
		want    string
	}{
		{"just now", 5 * time.Second, "Active"},
		{"90 seconds", 90 * time.Second, "Active"},
		{"exactly two minutes", 2 * time.Minute, "Active"},
		{"400 seconds", 400 * time.Second, "Idle 6m"},
		{"59 minutes", 59 * time.Minute, "Idle 59m"},
		{"90 minutes", 90 * time.Minute, "Idle 1h"},
		{"one day", 25 * time.Hour, "Idle 25h"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ActivityLabel(now, now.Add(-tc.elapsed)))
		})
	}
}

func TestActivityLabelUnknown(t *testing.T) {
	assert.Equal(t, "Idle", ActivityLabel(time.Now(), time.Time{}))
}
