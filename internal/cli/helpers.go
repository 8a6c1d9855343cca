package cli

import (
	"fmt"
	"strings"

	api "github.com/micheleDibi/StyleForge-sub000/api/v1alpha1"
	"github.com/micheleDibi/StyleForge-sub000/internal/jobs"
)

// parseJobArg splits FAMILY/ID. A bare ID refers to a generic job.
func parseJobArg(arg string) (api.JobFamily, string, error) {
	name, id, found := strings.Cut(arg, "/")
	if !found {
		name, id = string(api.JobFamilyGeneric), arg
	}
	family, err := jobs.ParseFamily(name)
	if err != nil {
		return "", "", err
	}
	id = strings.TrimSpace(id)
	if id == "" || strings.Contains(id, "/") {
		return "", "", fmt.Errorf("invalid job id %q", id)
	}
	return family, id, nil
}
