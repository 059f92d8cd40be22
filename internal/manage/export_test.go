package manage

const MaxAccountID = maxAccountID

var RandomID = randomID

// SetIDGenerator replaces the external ID source.
func (s *Service) SetIDGenerator(fn func() int64) {
	s.newID = fn
}
