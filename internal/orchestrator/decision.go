package orchestrator

import "fmt"

// Decision tells the pipeline whether downstream build steps should run.
type Decision string

const (
	DecisionProceed       Decision = "proceed"
	DecisionSkipUnchanged Decision = "skip_unchanged"
)

// Decide compares the revision recorded by the previous run with the current
// one. Revisions are opaque tokens compared for equality only.
func Decide(previous string, hasPrevious bool, current string, force bool) (Decision, string) {
	switch {
	case !hasPrevious || previous == "":
		return DecisionProceed, "no revision recorded by a previous build"
	case previous != current:
		return DecisionProceed, fmt.Sprintf("revision changed from %s to %s", previous, current)
	case force:
		return DecisionProceed, fmt.Sprintf("revision %s unchanged but force_build is set", current)
	default:
		return DecisionSkipUnchanged, fmt.Sprintf("Revision From Previous Build %s Equals Latest From Repo %s - Build Not Needed", previous, current)
	}
}
