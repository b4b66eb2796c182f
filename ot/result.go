package ot

// ProcessResult is the outcome of SyncList.ProcessOperation.
type ProcessResult uint8

const (
	// Successful means the rebased operation was applied and recorded and
	// must be propagated to other replicas.
	Successful ProcessResult = iota
	// DiscardOperation means concurrent activity made the operation moot.
	// Nothing changed and nothing needs to be propagated.
	DiscardOperation
	// BadOperation means the rebased operation does not fit the current list.
	BadOperation
	// OutOfOperationalRange means the base version left the history window;
	// the submitter needs a full snapshot.
	OutOfOperationalRange
	// InvalidVersion means the base version is negative or in the future.
	InvalidVersion
)

var resultNames = [...]string{
	Successful:            "successful",
	DiscardOperation:      "discard",
	BadOperation:          "bad_operation",
	OutOfOperationalRange: "out_of_range",
	InvalidVersion:        "invalid_version",
}

func (r ProcessResult) String() string {
	if int(r) < len(resultNames) {
		return resultNames[r]
	}
	return "unknown"
}

// Rejected reports whether the result refused the operation outright.
func (r ProcessResult) Rejected() bool {
	return r == BadOperation || r == OutOfOperationalRange || r == InvalidVersion
}
