package verdict

import "testing"

func TestEvaluateMaskTruthTable(t *testing.T) {
	cases := []struct {
		c    byte
		vs   []Verdict
		want bool
	}{
		{'1', []Verdict{OK, OK}, true},
		{'1', []Verdict{OK, WrongAnswer}, false},
		{'1', []Verdict{}, false},
		{'0', []Verdict{OK, WrongAnswer}, true},
		{'0', []Verdict{WrongAnswer, Timeout}, true},
		{'0', []Verdict{Error}, true},
		{'X', []Verdict{OK}, true},
		{'X', []Verdict{}, false},
		{'P', []Verdict{PartialOK, OK}, true},
		{'P', []Verdict{PartialOK, WrongAnswer}, false},
		{'P', []Verdict{OK, OK}, false},
		{'W', []Verdict{OK, WrongAnswer}, true},
		{'W', []Verdict{OK, OK}, false},
		{'!', []Verdict{Error}, true},
		{'!', []Verdict{WrongAnswer}, false},
		{'T', []Verdict{Timeout}, true},
		{'T', []Verdict{OK}, false},
	}
	for _, tc := range cases {
		got, err := Evaluate(tc.vs, tc.c)
		if err != nil {
			t.Fatalf("Evaluate(%v, %q): %v", tc.vs, tc.c, err)
		}
		if got != tc.want {
			t.Errorf("Evaluate(%v, %q) = %v, want %v", tc.vs, tc.c, got, tc.want)
		}
	}
}

func TestEvaluateInvalidChar(t *testing.T) {
	if _, err := Evaluate([]Verdict{OK}, 'Q'); err == nil {
		t.Fatal("expected error for invalid mask character")
	}
}

func TestDefinitiveOnesFailFast(t *testing.T) {
	definitive, err := Definitive([]Verdict{OK, WrongAnswer}, '1')
	if err != nil {
		t.Fatal(err)
	}
	if !definitive {
		t.Error("expected '1' to be definitive once all_c fails")
	}
}

func TestDefinitiveZeroNotDefinitiveUntilAnyFound(t *testing.T) {
	definitive, err := Definitive([]Verdict{OK, OK}, '0')
	if err != nil {
		t.Fatal(err)
	}
	if definitive {
		t.Error("expected '0' mask to stay non-definitive while no bad verdict has appeared")
	}

	definitive, err = Definitive([]Verdict{OK, WrongAnswer}, '0')
	if err != nil {
		t.Fatal(err)
	}
	if !definitive {
		t.Error("expected '0' mask to become definitive once a wrong_answer appears")
	}
}

func TestDefinitiveXShortCircuitsOnPass(t *testing.T) {
	// 'X' has trivial all_c and trivial-satisfied any_c after a single verdict.
	definitive, err := Definitive([]Verdict{OK}, 'X')
	if err != nil {
		t.Fatal(err)
	}
	if !definitive {
		t.Error("expected 'X' to be definitive once any verdict observed")
	}
}
