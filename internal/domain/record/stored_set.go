package record

// StoredSet is the keyed snapshot of a feed table. Keys are unique; when the
// underlying rows carry duplicate keys the row read last wins.
type StoredSet[R TimedRecord] struct {
	byKey map[Key]R
	order []Key
}

// NewStoredSet returns an empty StoredSet.
func NewStoredSet[R TimedRecord]() StoredSet[R] {
	return StoredSet[R]{byKey: map[Key]R{}}
}

// IndexStored builds a StoredSet from already decoded records. Records whose key
// cannot be derived are returned as errors and left out of the set.
func IndexStored[R TimedRecord](records []R) (StoredSet[R], []error) {
	set := NewStoredSet[R]()
	var errs []error
	for _, r := range records {
		k, err := r.Key()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		set.put(k, r)
	}
	return set, errs
}

// IndexRows decodes stored rows with decode and indexes the result.
func IndexRows[R TimedRecord](rows []Row, decode func(Row) (R, error)) (StoredSet[R], []error) {
	records := make([]R, 0, len(rows))
	var errs []error
	for _, row := range rows {
		r, err := decode(row)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		records = append(records, r)
	}
	set, keyErrs := IndexStored(records)
	return set, append(errs, keyErrs...)
}

func (s *StoredSet[R]) put(k Key, r R) {
	if s.byKey == nil {
		s.byKey = map[Key]R{}
	}
	if _, ok := s.byKey[k]; !ok {
		s.order = append(s.order, k)
	}
	s.byKey[k] = r
}

// Has reports whether k is stored.
func (s StoredSet[R]) Has(k Key) bool {
	_, ok := s.byKey[k]
	return ok
}

// Get returns the record stored under k.
func (s StoredSet[R]) Get(k Key) (R, bool) {
	r, ok := s.byKey[k]
	return r, ok
}

// Len returns the number of distinct keys.
func (s StoredSet[R]) Len() int { return len(s.order) }

// Records returns the stored records in read order.
func (s StoredSet[R]) Records() []R {
	out := make([]R, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.byKey[k])
	}
	return out
}
