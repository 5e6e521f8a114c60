package entropy

// Script replays a fixed sequence of draws. Once Floats runs out, Float64
// returns Fallback; once Ints runs out, Intn returns 0. Shuffle leaves the
// order unchanged so scripted runs see authored order.
type Script struct {
	Floats   []float64
	Ints     []int
	Fallback float64
}

func (s *Script) Float64() float64 {
	if len(s.Floats) == 0 {
		return s.Fallback
	}
	v := s.Floats[0]
	s.Floats = s.Floats[1:]
	return v
}

func (s *Script) Intn(n int) int {
	if len(s.Ints) == 0 || n <= 0 {
		return 0
	}
	v := s.Ints[0]
	s.Ints = s.Ints[1:]
	if v < 0 || v >= n {
		return v % n
	}
	return v
}

func (s *Script) Shuffle(n int, swap func(i, j int)) {}

// Remaining returns how many scripted floats have not been consumed.
func (s *Script) Remaining() int {
	return len(s.Floats)
}
