package verdict

import "fmt"

// predicate is (all_c, any_c): a mask character is satisfied over a set of
// verdicts V iff all_c holds for every v in V and any_c holds for at least
// one v in V.
type predicate struct {
	all func(Verdict) bool
	any func(Verdict) bool
	// trivial reports whether all_c is the trivial (always-true) predicate.
	// Used by Definitive: once the all_c part has passed and is trivial,
	// no further judged input can flip the verdict.
	trivial bool
}

var predicates = map[byte]predicate{
	'1': {
		all:     func(v Verdict) bool { return v == OK },
		any:     func(Verdict) bool { return true },
		trivial: false,
	},
	'0': {
		all:     func(Verdict) bool { return true },
		any:     func(v Verdict) bool { return v == WrongAnswer || v == Timeout || v == Error },
		trivial: true,
	},
	'X': {
		all:     func(Verdict) bool { return true },
		any:     func(Verdict) bool { return true },
		trivial: true,
	},
	'P': {
		all:     func(v Verdict) bool { return v != WrongAnswer && v != Timeout && v != Error },
		any:     func(v Verdict) bool { return v == PartialOK },
		trivial: false,
	},
	'W': {
		all:     func(Verdict) bool { return true },
		any:     func(v Verdict) bool { return v == WrongAnswer },
		trivial: true,
	},
	'!': {
		all:     func(Verdict) bool { return true },
		any:     func(v Verdict) bool { return v == Error },
		trivial: true,
	},
	'T': {
		all:     func(Verdict) bool { return true },
		any:     func(v Verdict) bool { return v == Timeout },
		trivial: true,
	},
}

// ValidMaskChar reports whether c is one of the seven recognized mask
// characters.
func ValidMaskChar(c byte) bool {
	_, ok := predicates[c]
	return ok
}

// Evaluate reports whether the given verdicts satisfy mask character c.
// An empty verdict set never satisfies any_c and so never evaluates true.
func Evaluate(vs []Verdict, c byte) (bool, error) {
	p, ok := predicates[c]
	if !ok {
		return false, fmt.Errorf("invalid mask character %q", c)
	}
	allOK := true
	anyOK := false
	for _, v := range vs {
		if !p.all(v) {
			allOK = false
		}
		if p.any(v) {
			anyOK = true
		}
	}
	return allOK && anyOK, nil
}

// Definitive reports whether the verdicts observed so far already make the
// outcome of mask character c immutable: either the all_c part has already
// failed (no further run can undo that), or it is the trivial (always-true)
// predicate and the any_c part is already satisfied, so no further judged
// input can change the answer.
//
// A mask whose any_c is not yet satisfied ('0' with no bad verdict seen,
// 'W' with no wrong_answer seen, ...) stays non-definitive: the matching
// verdict might still appear on a later input, so remaining runs must
// proceed.
func Definitive(vs []Verdict, c byte) (bool, error) {
	p, ok := predicates[c]
	if !ok {
		return false, fmt.Errorf("invalid mask character %q", c)
	}
	allOK := true
	anyOK := false
	for _, v := range vs {
		if !p.all(v) {
			allOK = false
		}
		if p.any(v) {
			anyOK = true
		}
	}
	if !allOK {
		return true, nil
	}
	return p.trivial && anyOK, nil
}
