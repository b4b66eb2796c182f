package ot

// TransformAgainst rebases op so that it keeps its meaning after other has
// already been applied to the list op was computed against. It returns false
// when other made op meaningless; the caller must then drop op.
//
// The append sentinel is never shifted: an append lands at whatever the end of
// the list is when it is finally applied.
func (op *Operation[T]) TransformAgainst(other Operation[T]) bool {
	switch op.Kind {
	case KindNoop:
		return false
	case KindClear:
		return true
	}

	switch other.Kind {
	case KindInsert:
		return op.transformInsert(other.Index)
	case KindRemove:
		return op.transformRemove(other.Index)
	case KindMove:
		op.transformMove(other.From, other.To)
		return true
	case KindClear:
		return op.transformClear()
	default:
		// Modify and Noop never change positions.
		return true
	}
}

func (op *Operation[T]) transformInsert(j int) bool {
	if j == AppendIndex {
		// An append by other only ever extends the tail, which no index here
		// can point past.
		return true
	}
	switch op.Kind {
	case KindInsert:
		if op.Index != AppendIndex {
			op.Index = shiftForInsert(op.Index, j)
		}
	case KindRemove, KindModify:
		op.Index = shiftForInsert(op.Index, j)
	case KindMove:
		op.From = shiftForInsert(op.From, j)
		op.To = shiftForInsert(op.To, j)
	}
	return true
}

func (op *Operation[T]) transformRemove(j int) bool {
	switch op.Kind {
	case KindInsert:
		if op.Index != AppendIndex && j < op.Index {
			op.Index--
		}
	case KindRemove, KindModify:
		if j == op.Index {
			return false
		}
		if j < op.Index {
			op.Index--
		}
	case KindMove:
		if j == op.From || j == op.To {
			return false
		}
		if j < op.From {
			op.From--
		}
		if j < op.To {
			op.To--
		}
	}
	return true
}

func (op *Operation[T]) transformMove(from, to int) {
	switch op.Kind {
	case KindInsert:
		if op.Index != AppendIndex {
			op.Index = TransformIndex(op.Index, from, to)
		}
	case KindRemove, KindModify:
		op.Index = TransformIndex(op.Index, from, to)
	case KindMove:
		op.From = TransformIndex(op.From, from, to)
		op.To = TransformIndex(op.To, from, to)
	}
}

func (op *Operation[T]) transformClear() bool {
	if op.Kind != KindInsert {
		return false
	}
	if op.Index != AppendIndex {
		op.Index = 0
	}
	return true
}

func shiftForInsert(index, j int) int {
	if j <= index {
		return index + 1
	}
	return index
}

// TransformIndex returns where index ends up after the element at from has
// been moved to to.
func TransformIndex(index, from, to int) int {
	switch {
	case index == from:
		return to
	case from < to && index > from && index <= to:
		return index - 1
	case from > to && index >= to && index < from:
		return index + 1
	default:
		return index
	}
}
