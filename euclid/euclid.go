// Package euclid builds Euclidean rhythms with Bjorklund's bracket construction.
package euclid

// MaxSteps bounds pattern length.
const MaxSteps = 64

// Bjorklund distributes pulses onsets as evenly as possible over steps slots.
// pulses is clamped to [0, steps]; steps <= 0 yields nil.
func Bjorklund(steps, pulses int) []bool {
	if steps <= 0 {
		return nil
	}
	if pulses < 0 {
		pulses = 0
	}
	if pulses > steps {
		pulses = steps
	}

	// each bucket is a run of symbols; "a" holds the groups that started as onsets
	a := make([][]bool, pulses)
	for i := range a {
		a[i] = []bool{true}
	}
	b := make([][]bool, steps-pulses)
	for i := range b {
		b[i] = []bool{false}
	}

	for len(b) > 1 && len(a) > 0 {
		n := min(len(a), len(b))
		paired := make([][]bool, n)
		for i := 0; i < n; i++ {
			paired[i] = append(append([]bool{}, a[i]...), b[i]...)
		}
		var rest [][]bool
		if len(a) > n {
			rest = a[n:]
		} else {
			rest = b[n:]
		}
		a, b = paired, rest
	}

	seq := make([]bool, 0, steps)
	for _, g := range a {
		seq = append(seq, g...)
	}
	for _, g := range b {
		seq = append(seq, g...)
	}
	return seq
}

// Rotate moves the last r elements of seq to the front (right rotation).
// r is reduced modulo len(seq); a new slice is returned.
func Rotate(seq []bool, r int) []bool {
	n := len(seq)
	out := make([]bool, n)
	if n == 0 {
		return out
	}
	r %= n
	if r < 0 {
		r += n
	}
	copy(out, seq[n-r:])
	copy(out[r:], seq[:n-r])
	return out
}

// Pattern is Bjorklund followed by Rotate.
func Pattern(steps, pulses, rotation int) []bool {
	return Rotate(Bjorklund(steps, pulses), rotation)
}

// Ints renders a sequence as 0/1 values.
func Ints(seq []bool) []int {
	out := make([]int, len(seq))
	for i, on := range seq {
		if on {
			out[i] = 1
		}
	}
	return out
}
