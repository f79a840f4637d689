package geofence

import (
	"testing"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name      string
		wasInside bool
		isInside  bool
		want      TransitionKind
	}{
		{"outside to inside is entered", false, true, TransitionEntered},
		{"inside to outside is exited", true, false, TransitionExited},
		{"inside stays inside", true, true, TransitionUnchanged},
		{"outside stays outside", false, false, TransitionUnchanged},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Detect(tt.wasInside, tt.isInside)
			if got != tt.want {
				t.Errorf("Detect(%v, %v) = %v, want %v", tt.wasInside, tt.isInside, got, tt.want)
			}
		})
	}
}
