package orchestrator

// Plan is the static CPU affinity plan for one pod (spec.md §4.8): pod p
// gets cores [p*C, (p+1)*C); within the pod, the first F cores are
// reserved for fetchers and the remaining C-F for parsers.
type Plan struct {
	FetcherCores []int
	ParserCores  []int
}

// PlanFor computes pod podIndex's Plan for coresPerPod cores per pod and
// fetcherCores reserved for fetchers within that range.
func PlanFor(podIndex, coresPerPod, fetcherCores int) Plan {
	base := podIndex * coresPerPod
	if fetcherCores > coresPerPod {
		fetcherCores = coresPerPod
	}

	plan := Plan{}
	for c := base; c < base+fetcherCores; c++ {
		plan.FetcherCores = append(plan.FetcherCores, c)
	}
	for c := base + fetcherCores; c < base+coresPerPod; c++ {
		plan.ParserCores = append(plan.ParserCores, c)
	}
	return plan
}
