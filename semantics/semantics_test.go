package semantics

import "testing"

func TestTemplates(t *testing.T) {
	d := New(TemplateDefault)
	if d.Safety() != SafetyNetwork || d.Atomicity() != AtomicityOperation {
		t.Fatalf("unexpected default template: %+v", d)
	}

	p := New(TemplatePOSIX)
	if p.Safety() != SafetyStorage || p.Consistency() != ConsistencyImmediate || p.Ordering() != OrderingStrict {
		t.Fatalf("unexpected posix template: %+v", p)
	}

	tmp := New(TemplateTemporaryLocal)
	if tmp.Safety() != SafetyNone || tmp.Atomicity() != AtomicityNone {
		t.Fatalf("unexpected temporary-local template: %+v", tmp)
	}
}

func TestWithSettersBeforeBind(t *testing.T) {
	s := New(TemplateDefault).WithSafety(SafetyStorage).WithOrdering(OrderingRelaxed)
	if s.Safety() != SafetyStorage || s.Ordering() != OrderingRelaxed {
		t.Fatalf("setters did not apply before bind: %+v", s)
	}
}

func TestBindFreezes(t *testing.T) {
	s := New(TemplateDefault)
	s.Bind()
	s.WithSafety(SafetyNone)
	if s.Safety() != SafetyNetwork {
		t.Fatalf("WithSafety mutated a bound Semantics: %v", s.Safety())
	}
}

func TestGetAxis(t *testing.T) {
	s := New(TemplatePOSIX)
	cases := map[Axis]int{
		AxisSafety:      int(SafetyStorage),
		AxisConsistency: int(ConsistencyImmediate),
		AxisAtomicity:   int(AtomicityOperation),
		AxisOrdering:    int(OrderingStrict),
		AxisPersistency: int(PersistencyImmediate),
	}
	for axis, want := range cases {
		if got := s.Get(axis); got != want {
			t.Errorf("Get(%v) = %d, want %d", axis, got, want)
		}
	}
}
