package v1alpha1

func StringToJobFamily(s string) (JobFamily, bool) {
	switch s {
	case string(JobFamilyGeneric), "job", "jobs":
		return JobFamilyGeneric, true
	case string(JobFamilyTraining), "trainings":
		return JobFamilyTraining, true
	case string(JobFamilyGeneration), "generations":
		return JobFamilyGeneration, true
	case string(JobFamilyHumanization), "humanizations":
		return JobFamilyHumanization, true
	case string(JobFamilyThesis), "theses":
		return JobFamilyThesis, true
	case string(JobFamilyScan), "scans", "detection":
		return JobFamilyScan, true
	default:
		return "", false
	}
}

// ErrorMessage returns the failure message of the job or an empty string.
func (s JobStatus) ErrorMessage() string {
	if s.Error == nil {
		return ""
	}
	return *s.Error
}

func (s JobStatus) MessageText() string {
	if s.Message == nil {
		return ""
	}
	return *s.Message
}
