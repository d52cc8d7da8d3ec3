package clause

import "github.com/colstream/qpipe/pkg/qerrors"

func errAssertion(msg string) error {
	return qerrors.New(qerrors.TypeAssertionFailure, msg)
}

func errInvalidArg(msg string) error {
	return qerrors.New(qerrors.TypeInvalidUserArgument, msg)
}

// invalidAsFirst is shared by AggregationClause, MergeClause and
// ConcatClause: structure_for_plan on these must raise a fatal assertion,
// since they require already-grouped entities and cannot open a pipeline.
func invalidAsFirst(name string) error {
	return errAssertion(name + " must not be the first clause in the pipeline")
}
