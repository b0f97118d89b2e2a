package service

// Commits that only touch one of these are left alone unless a project
// configures an explicit branch filter.
var mainlineBranches = map[string]struct{}{
	"trunk":  {},
	"master": {},
	"main":   {},
}

// EligibleBranch picks the branch a commit is handled for. With a filter the
// commit must be on exactly that branch; without one the first branch that
// is not a mainline branch wins.
func EligibleBranch(branches []string, filter string) (string, bool) {
	if filter != "" {
		for _, b := range branches {
			if b == filter {
				return b, true
			}
		}
		return "", false
	}

	for _, b := range branches {
		if b == "" {
			continue
		}
		if _, ok := mainlineBranches[b]; !ok {
			return b, true
		}
	}
	return "", false
}

func IsEligible(branches []string, filter string) bool {
	_, ok := EligibleBranch(branches, filter)
	return ok
}
