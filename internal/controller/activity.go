package controller

import (
	"fmt"
	"time"
)

// activeWindow is how recently a session must have been touched to count
// as Active.
const activeWindow = 2 * time.Minute

// ActivityLabel derives a session's activity classification from its last
// activity time. The label is computed, never stored: "Active" within the
// window, otherwise the elapsed time in the coarsest sensible unit.
func ActivityLabel(now, lastActivity time.Time) string {
	if lastActivity.IsZero() {
		return "Idle"
	}
	elapsed := now.Sub(lastActivity)
	if elapsed <= activeWindow {
		return "Active"
	}
	if elapsed < time.Hour {
		return fmt.Sprintf("Idle %dm", int(elapsed.Minutes()))
	}
	return fmt.Sprintf("Idle %dh", int(elapsed.Hours()))
}
