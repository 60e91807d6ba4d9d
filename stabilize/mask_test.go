package stabilize

import "testing"

// TestBuildMask verifies the mask zeroes exactly the inclusive box region.
func TestBuildMask(t *testing.T) {
	box := IgnoreBox{MinX: 10, MaxX: 50, MinY: 10, MaxY: 50}
	mask := buildMask(box, 64, 64)
	defer mask.Close()

	if mask.Cols() != 64 || mask.Rows() != 64 {
		t.Fatalf("mask is %dx%d, want 64x64", mask.Cols(), mask.Rows())
	}

	zeros := [][2]int{{10, 10}, {50, 50}, {10, 50}, {30, 30}}
	for _, p := range zeros {
		if got := mask.GetUCharAt(p[1], p[0]); got != 0 {
			t.Errorf("mask at (%d,%d) = %d, want 0 (inside box)", p[0], p[1], got)
		}
	}
	ones := [][2]int{{9, 9}, {51, 51}, {0, 0}, {63, 63}, {9, 30}, {30, 51}}
	for _, p := range ones {
		if got := mask.GetUCharAt(p[1], p[0]); got == 0 {
			t.Errorf("mask at (%d,%d) = 0, want non-zero (outside box)", p[0], p[1])
		}
	}
}

// TestBuildMaskClipsToFrame verifies a box reaching past the frame border
// clips instead of failing.
func TestBuildMaskClipsToFrame(t *testing.T) {
	box := IgnoreBox{MinX: 56, MaxX: 100, MinY: 56, MaxY: 100}
	mask := buildMask(box, 64, 64)
	defer mask.Close()

	if got := mask.GetUCharAt(63, 63); got != 0 {
		t.Errorf("clipped box corner = %d, want 0", got)
	}
	if got := mask.GetUCharAt(0, 0); got == 0 {
		t.Error("pixel outside the box was zeroed")
	}
}
