package jobs

import (
	"time"

	api "github.com/micheleDibi/StyleForge-sub000/api/v1alpha1"
)

const (
	DefaultPollInterval = 3 * time.Second
	ScanPollInterval    = 4 * time.Second

	ShortJobTimeout = 5 * time.Minute
	LongJobTimeout  = 30 * time.Minute
)

// Phase is the family-independent classification of a job status.
type Phase int

const (
	PhaseUnknown Phase = iota
	PhasePending
	PhaseRunning
	PhaseCompleted
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseRunning:
		return "running"
	case PhaseCompleted:
		return "completed"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions can occur.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

var vocabularies = map[api.JobFamily]map[string]Phase{
	api.JobFamilyGeneric: {
		api.StatusPending: PhasePending,
		api.StatusRunning: PhaseRunning,
	},
	api.JobFamilyTraining: {
		api.StatusPending:  PhasePending,
		api.StatusTraining: PhaseRunning,
	},
	api.JobFamilyGeneration: {
		api.StatusPending:    PhasePending,
		api.StatusGenerating: PhaseRunning,
	},
	api.JobFamilyHumanization: {
		api.StatusPending:    PhasePending,
		api.StatusGenerating: PhaseRunning,
	},
	api.JobFamilyThesis: {
		api.StatusPending:    PhasePending,
		api.StatusGenerating: PhaseRunning,
	},
	api.JobFamilyScan: {
		api.StatusPending:  PhasePending,
		api.StatusScanning: PhaseRunning,
		api.StatusRunning:  PhaseRunning,
	},
}

// Classify maps a status string of the given family to its phase.
// The terminal values are shared by every family.
func Classify(family api.JobFamily, status string) Phase {
	switch status {
	case api.StatusCompleted:
		return PhaseCompleted
	case api.StatusFailed:
		return PhaseFailed
	}
	if phase, ok := vocabularies[family][status]; ok {
		return phase
	}
	return PhaseUnknown
}

// Classifier returns Classify bound to a family.
func Classifier(family api.JobFamily) func(string) Phase {
	return func(status string) Phase {
		return Classify(family, status)
	}
}

// ParseFamily accepts a family name or one of its aliases.
func ParseFamily(s string) (api.JobFamily, error) {
	family, ok := api.StringToJobFamily(s)
	if !ok {
		return "", NewErrUnknownFamily(s)
	}
	return family, nil
}

func Families() []api.JobFamily {
	return []api.JobFamily{
		api.JobFamilyGeneric,
		api.JobFamilyTraining,
		api.JobFamilyGeneration,
		api.JobFamilyHumanization,
		api.JobFamilyThesis,
		api.JobFamilyScan,
	}
}

// DefaultInterval is the poll interval used for a family when none is configured.
func DefaultInterval(family api.JobFamily) time.Duration {
	if family == api.JobFamilyScan {
		return ScanPollInterval
	}
	return DefaultPollInterval
}

// DefaultTimeout is the overall poll timeout of a family. Document
// generation runs far longer than the other jobs.
func DefaultTimeout(family api.JobFamily) time.Duration {
	switch family {
	case api.JobFamilyGeneration, api.JobFamilyHumanization, api.JobFamilyThesis:
		return LongJobTimeout
	default:
		return ShortJobTimeout
	}
}
