package intrinsic

import (
	"testing"

	"github.com/theseus-rs/ristretto-sub014/object"
)

func TestVersionSpecAdmits(t *testing.T) {
	tests := []struct {
		spec    VersionSpec
		version int
		want    bool
	}{
		{VAny(), 8, true},
		{VAny(), 25, true},
		{VEqual(17), 17, true},
		{VEqual(17), 18, false},
		{VAtMost(11), 11, true},
		{VAtMost(11), 12, false},
		{VAtLeast(9), 8, false},
		{VAtLeast(9), 21, true},
		{VBetween(11, 17), 10, false},
		{VBetween(11, 17), 11, true},
		{VBetween(11, 17), 17, true},
		{VBetween(11, 17), 18, false},
	}
	for _, tt := range tests {
		if got := tt.spec.Admits(tt.version); got != tt.want {
			t.Errorf("%v.Admits(%d) = %v, want %v", tt.spec, tt.version, got, tt.want)
		}
	}
}

func TestRegistryVersionSelection(t *testing.T) {
	r := NewRegistry()
	key := Key{Class: "java/lang/String", Name: "coder", Descriptor: "()B"}

	old := func(Env, []object.Value) (*object.Value, error) {
		v := object.Int(0)
		return &v, nil
	}
	modern := func(Env, []object.Value) (*object.Value, error) {
		v := object.Int(1)
		return &v, nil
	}
	r.Register(key, VAtMost(8), old)
	r.Register(key, VAtLeast(9), modern)

	fn, ok := r.Lookup(key, 8)
	if !ok {
		t.Fatal("no entry for version 8")
	}
	if v, _ := fn(nil, nil); v.I != 0 {
		t.Fatal("version 8 selected the wrong implementation")
	}
	fn, ok = r.Lookup(key, 21)
	if !ok {
		t.Fatal("no entry for version 21")
	}
	if v, _ := fn(nil, nil); v.I != 1 {
		t.Fatal("version 21 selected the wrong implementation")
	}
}

func TestRegistryMissAndSuspendable(t *testing.T) {
	r := NewRegistry()
	key := Key{Class: "java/lang/Thread", Name: "sleep", Descriptor: "(J)V"}
	if _, ok := r.Lookup(key, 21); ok {
		t.Fatal("lookup hit on an empty registry")
	}
	r.RegisterSuspendable(key, VAny(), func(Env, []object.Value) (*object.Value, error) {
		return nil, nil
	})
	_, suspendable, ok := r.LookupSuspendable(key, 21)
	if !ok || !suspendable {
		t.Fatalf("ok=%v suspendable=%v, want both true", ok, suspendable)
	}
}

func TestRegistryFirstAdmittingWins(t *testing.T) {
	r := NewRegistry()
	key := Key{Class: "x/Y", Name: "m", Descriptor: "()V"}
	order := ""
	r.Register(key, VAny(), func(Env, []object.Value) (*object.Value, error) {
		order = "first"
		return nil, nil
	})
	r.Register(key, VAny(), func(Env, []object.Value) (*object.Value, error) {
		order = "second"
		return nil, nil
	})
	fn, _ := r.Lookup(key, 21)
	_, _ = fn(nil, nil)
	if order != "first" {
		t.Fatalf("dispatched %q, want the first admitting registration", order)
	}
}
