package chardev

import (
	"errors"
	"testing"
)

func TestAllocator_Dynamic(t *testing.T) {
	a := NewAllocator()

	first, err := a.Allocate(Request{Name: "led"})
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if first.Major != 254 || first.Minor != 0 {
		t.Errorf("first identity = %s, want 254:0", first)
	}

	second, err := a.Allocate(Request{Name: "other"})
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if second.Major != 253 {
		t.Errorf("second major = %d, want 253", second.Major)
	}
	if !a.Allocated(first) || !a.Allocated(second) {
		t.Error("Allocated() = false for a held identity")
	}
}

func TestAllocator_PreferredMajor(t *testing.T) {
	a := NewAllocator()

	id, err := a.Allocate(Request{Major: 200, BaseMinor: 0, Count: 2, Name: "led"})
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if id != (Identity{Major: 200, Minor: 0}) {
		t.Errorf("identity = %s, want 200:0", id)
	}

	tests := []struct {
		name    string
		req     Request
		wantErr error
	}{
		{name: "same region", req: Request{Major: 200}, wantErr: ErrRegionBusy},
		{name: "overlapping minor", req: Request{Major: 200, BaseMinor: 1}, wantErr: ErrRegionBusy},
		{name: "adjacent minor", req: Request{Major: 200, BaseMinor: 2}},
		{name: "other major", req: Request{Major: 201}},
		{name: "major too large", req: Request{Major: 512}, wantErr: ErrInvalidRequest},
		{name: "minor too large", req: Request{Major: 202, BaseMinor: 1 << MinorBits}, wantErr: ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Allocate(tt.req)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("Allocate() error = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("Allocate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAllocator_Exhausted(t *testing.T) {
	a := NewAllocator()

	// 254..234 and 511..384.
	total := (254 - 234 + 1) + (511 - 384 + 1)
	for i := 0; i < total; i++ {
		if _, err := a.Allocate(Request{Name: "filler"}); err != nil {
			t.Fatalf("Allocate() #%d error = %v", i, err)
		}
	}

	if _, err := a.Allocate(Request{Name: "led"}); !errors.Is(err, ErrIdentityExhausted) {
		t.Fatalf("Allocate() error = %v, want ErrIdentityExhausted", err)
	}
	if a.Len() != total {
		t.Errorf("Len() = %d, want %d", a.Len(), total)
	}
}

func TestAllocator_DynamicSkipsTakenMajor(t *testing.T) {
	a := NewAllocator()
	if _, err := a.Allocate(Request{Major: 254, BaseMinor: 10}); err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}

	id, err := a.Allocate(Request{Name: "led"})
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if id.Major != 253 {
		t.Errorf("dynamic major = %d, want 253", id.Major)
	}
}

func TestAllocator_Release(t *testing.T) {
	a := NewAllocator()

	id, err := a.Allocate(Request{Name: "led"})
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if err := a.Release(id); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if a.Allocated(id) {
		t.Error("Allocated() = true after Release")
	}
	if err := a.Release(id); !errors.Is(err, ErrNotAllocated) {
		t.Errorf("second Release() error = %v, want ErrNotAllocated", err)
	}

	again, err := a.Allocate(Request{Name: "led"})
	if err != nil {
		t.Fatalf("Allocate() after release error = %v", err)
	}
	if again != id {
		t.Errorf("re-allocated identity = %s, want %s", again, id)
	}
}
