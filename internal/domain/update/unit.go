package update

// UnitStatus is the lifecycle state of a deployment unit.
type UnitStatus int

const (
	// UnitStarting means the unit exists but is not serving yet.
	UnitStarting UnitStatus = iota
	// UnitRunning means the unit is serving.
	UnitRunning
	// UnitStopping means the unit is being retired.
	UnitStopping
	// UnitStopped means the unit exists but is not serving.
	UnitStopped
)

// String returns a human-readable status name for logs.
func (s UnitStatus) String() string {
	switch s {
	case UnitStarting:
		return "starting"
	case UnitRunning:
		return "running"
	case UnitStopping:
		return "stopping"
	default:
		return "stopped"
	}
}

// DeploymentUnit is one instance of the workload known to the runtime.
// At most one unit is canonical at any settled time; during a swap the
// canonical unit and a candidate coexist for a bounded interval.
type DeploymentUnit struct {
	// ID is the opaque runtime handle of the unit.
	ID string
	// Name is the runtime name the unit is registered under.
	Name string
	// ImageRef is the image the unit was started from.
	ImageRef string
	// Status is the last observed lifecycle state.
	Status UnitStatus
}

// Running reports whether the unit is currently serving.
func (u *DeploymentUnit) Running() bool {
	return u != nil && u.Status == UnitRunning
}
