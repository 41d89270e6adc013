package replace

import "drift"

// TempNameSuffix is appended to the logical name to park the old container
// while the replacement takes its place.
const TempNameSuffix = "-old-temp"

// Plan is derived from a container record at the moment drift is confirmed.
// It is consumed within a single replacement and never persisted.
type Plan struct {
	TargetName string
	TempName   string
	Image      string
	Config     *drift.RuntimeConfig
}

// NewPlan builds the replacement plan for rec: same logical name, same
// runtime config, image re-resolved from the (refreshed) local cache.
func NewPlan(rec drift.ContainerRecord) Plan {
	return Plan{
		TargetName: rec.Name,
		TempName:   rec.Name + TempNameSuffix,
		Image:      rec.ImageRef,
		Config:     rec.Config,
	}
}
