package database

import "iter"

// noCopy trips go vet's copylocks check when an Iterator is copied.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Iterator walks the rows of a statement. Each Next is exactly one Step, so
// iterating and stepping by hand share the same position.
//
// A statement has a single Iterator; see Stmt.Iter.
type Iterator struct {
	noCopy noCopy

	stmt *Stmt
	row  Row
	err  error
	done bool
}

// Iter returns the statement's iterator. Every call returns the same
// Iterator. Once it is exhausted it stays exhausted until Reset.
func (s *Stmt) Iter() *Iterator {
	if s.iter == nil {
		s.iter = &Iterator{stmt: s}
	}
	return s.iter
}

// Next advances to the next row. It returns false when the rows are exhausted
// or an error occurred; check Err afterwards.
func (it *Iterator) Next() bool {
	if it.done {
		return false
	}
	ok, err := it.stmt.Step()
	if err != nil || !ok {
		it.finish(err)
		return false
	}
	row, err := it.stmt.Row()
	if err != nil {
		it.finish(err)
		return false
	}
	it.row = row
	return true
}

// Row returns the row produced by the last successful Next.
func (it *Iterator) Row() Row { return it.row }

// Err returns the error that ended the iteration, if any.
func (it *Iterator) Err() error { return it.err }

func (it *Iterator) finish(err error) {
	it.done = true
	it.err = err
	it.row = Row{}
}

func (it *Iterator) rewind() {
	it.done = false
	it.err = nil
	it.row = Row{}
}

// All returns the statement's rows as a sequence for range loops. It shares
// the statement's Iterator: breaking out of the loop and ranging again
// continues where the loop stopped. A failure is yielded once, as the last
// element, with a zero Row.
func (s *Stmt) All() iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		it := s.Iter()
		for it.Next() {
			if !yield(it.Row(), nil) {
				return
			}
		}
		if err := it.Err(); err != nil {
			yield(Row{}, err)
		}
	}
}
