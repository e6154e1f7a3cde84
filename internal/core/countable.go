package core

import "slices"

// CountableSet is an insertion-ordered multiset of tokens. It is not safe
// for concurrent use.
type CountableSet struct {
	order  []string
	counts map[string]int
}

// NewCountableSet returns a set holding tokens, counting repeats.
func NewCountableSet(tokens ...string) *CountableSet {
	s := &CountableSet{counts: make(map[string]int, len(tokens))}
	for _, t := range tokens {
		s.Add(t)
	}
	return s
}

// Add records one occurrence of token.
func (s *CountableSet) Add(token string) {
	s.AddCount(token, 1)
}

// AddCount records n occurrences of token.
func (s *CountableSet) AddCount(token string, n int) {
	if s.counts == nil {
		s.counts = make(map[string]int)
	}
	if _, ok := s.counts[token]; !ok {
		s.order = append(s.order, token)
	}
	s.counts[token] += n
}

// Has reports whether token was added.
func (s *CountableSet) Has(token string) bool {
	_, ok := s.counts[token]
	return ok
}

// Count returns the number of occurrences of token.
func (s *CountableSet) Count(token string) int {
	return s.counts[token]
}

// Delete removes token.
func (s *CountableSet) Delete(token string) {
	if !s.Has(token) {
		return
	}
	delete(s.counts, token)
	s.order = slices.DeleteFunc(s.order, func(t string) bool { return t == token })
}

// Len returns the number of distinct tokens.
func (s *CountableSet) Len() int {
	return len(s.order)
}

// Values returns the distinct tokens in insertion order.
func (s *CountableSet) Values() []string {
	return slices.Clone(s.order)
}

// Clone returns an independent copy.
func (s *CountableSet) Clone() *CountableSet {
	c := &CountableSet{order: slices.Clone(s.order), counts: make(map[string]int, len(s.counts))}
	for k, v := range s.counts {
		c.counts[k] = v
	}
	return c
}
