package object

import "testing"

type fakeClass struct{ name string }

func (f *fakeClass) InternalName() string           { return f.name }
func (f *fakeClass) AssignableFrom(o ClassRef) bool { return f.name == o.InternalName() }

func TestValueCategories(t *testing.T) {
	tests := []struct {
		v    Value
		want int
	}{
		{Int(1), 1},
		{Float(1.5), 1},
		{Ref(nil), 1},
		{Long(1), 2},
		{Double(2.5), 2},
	}
	for _, tt := range tests {
		if got := tt.v.Category(); got != tt.want {
			t.Errorf("%v category = %d, want %d", tt.v.Kind, got, tt.want)
		}
	}
}

func TestDefaultValues(t *testing.T) {
	if v := DefaultValue("I"); v.Kind != KindI32 || v.I != 0 {
		t.Errorf("int default = %+v", v)
	}
	if v := DefaultValue("J"); v.Kind != KindI64 {
		t.Errorf("long default = %+v", v)
	}
	if v := DefaultValue("D"); v.Kind != KindF64 {
		t.Errorf("double default = %+v", v)
	}
	if v := DefaultValue("Ljava/lang/String;"); !v.IsNull() {
		t.Errorf("reference default = %+v", v)
	}
	if v := DefaultValue("[I"); !v.IsNull() {
		t.Errorf("array default = %+v", v)
	}
}

func TestNormalizePrim(t *testing.T) {
	tests := []struct {
		elem byte
		in   int64
		want int64
	}{
		{'B', 0xFF, -1},   // byte sign-extends
		{'S', 0xFFFF, -1}, // short sign-extends
		{'C', -1, 0xFFFF}, // char zero-extends
		{'Z', 3, 1},       // boolean masks to its low bit
		{'I', 1 << 40, 0}, // int truncates to 32 bits
		{'J', 1 << 40, 1 << 40},
	}
	for _, tt := range tests {
		if got := NormalizePrim(tt.elem, tt.in); got != tt.want {
			t.Errorf("NormalizePrim(%c, %#x) = %d, want %d", tt.elem, tt.in, got, tt.want)
		}
	}
}

func TestNewInstanceDefaults(t *testing.T) {
	k := &fakeClass{name: "pkg/Thing"}
	o := NewInstance(k, map[string]string{"count": "I", "next": "Lpkg/Thing;"})
	if o.Fields["count"].I != 0 || o.Fields["count"].Kind != KindI32 {
		t.Errorf("count = %+v", o.Fields["count"])
	}
	if !o.Fields["next"].IsNull() {
		t.Errorf("next = %+v", o.Fields["next"])
	}
	if o.ClassName() != "pkg/Thing" {
		t.Errorf("class name = %q", o.ClassName())
	}
}

func TestStringRoundTrip(t *testing.T) {
	k := &fakeClass{name: "java/lang/String"}
	s := NewString(k, "Hello, World!")
	if got := GoString(s); got != "Hello, World!" {
		t.Errorf("GoString = %q", got)
	}
	if !IsString(s) {
		t.Error("IsString = false")
	}
	if IsString(nil) {
		t.Error("IsString(nil) = true")
	}
}

func TestPrimArrays(t *testing.T) {
	a := NewPrimArray('I', 4)
	if a.ArrayLen() != 4 {
		t.Fatalf("len = %d", a.ArrayLen())
	}
	d := NewPrimArray('D', 3)
	if len(d.Prim.Floats) != 3 || d.Prim.Ints != nil {
		t.Fatal("double array uses the wrong backing store")
	}
	if _, ok := ElemForAtype(TChar); !ok {
		t.Fatal("TChar unmapped")
	}
	if _, ok := ElemForAtype(99); ok {
		t.Fatal("bogus atype mapped")
	}
}
