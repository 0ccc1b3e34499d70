package imaging

import "testing"

func TestStack_Layout(t *testing.T) {
	s := NewStack(3, 2, 4, 8)
	s.Set(2, 1, 3, 42)

	if s.At(2, 1, 3) != 42 {
		t.Errorf("At: got %v, want 42", s.At(2, 1, 3))
	}
	plane := s.Plane(2)
	if len(plane) != 8 || plane[1*4+3] != 42 {
		t.Errorf("Plane(2) should be row-major and share storage: %v", plane)
	}
	plane[0] = 7
	if s.At(2, 0, 0) != 7 {
		t.Error("Plane should alias stack pixels")
	}
}

func TestStack_CheckChannel(t *testing.T) {
	s := NewStack(3, 1, 1, 8)
	for _, tt := range []struct {
		c  int
		ok bool
	}{{0, true}, {2, true}, {3, false}, {-1, false}} {
		if err := s.CheckChannel(tt.c); (err == nil) != tt.ok {
			t.Errorf("CheckChannel(%d): got %v", tt.c, err)
		}
	}
}

func TestMaxProject(t *testing.T) {
	a := NewStack(3, 2, 2, 8)
	b := NewStack(3, 2, 2, 16)
	a.Set(0, 0, 0, 10)
	b.Set(0, 0, 0, 5)
	b.Set(1, 1, 1, 900)

	out, err := MaxProject([]*Stack{a, b})
	if err != nil {
		t.Fatalf("MaxProject failed: %v", err)
	}
	if out.At(0, 0, 0) != 10 || out.At(1, 1, 1) != 900 {
		t.Errorf("projection values wrong: %v", out.Pix)
	}
	if out.BitDepth != 16 {
		t.Errorf("bit depth: got %d, want 16", out.BitDepth)
	}
	if a.At(1, 1, 1) != 0 {
		t.Error("inputs must not be modified")
	}

	if _, err := MaxProject(nil); err == nil {
		t.Error("expected error for no planes")
	}
	if _, err := MaxProject([]*Stack{a, NewStack(3, 2, 3, 8)}); err == nil {
		t.Error("expected error for shape mismatch")
	}
}
