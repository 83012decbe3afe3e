package types

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var ErrMalformedJobKey = errors.New("job key must have the form role/environment/name")

// JobKey uniquely identifies a job.
type JobKey struct {
	Role        string `json:"role"`
	Environment string `json:"environment"`
	Name        string `json:"name"`
}

func (k JobKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Role, k.Environment, k.Name)
}

// ParseJobKey parses a JobKey rendered by JobKey.String.
func ParseJobKey(s string) (JobKey, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return JobKey{}, errors.Wrap(ErrMalformedJobKey, fmt.Sprintf("\"%s\"", s))
	}

	return JobKey{Role: parts[0], Environment: parts[1], Name: parts[2]}, nil
}

// TaskGroupKey identifies a group of equivalent pending tasks of a job.
type TaskGroupKey struct {
	Job      JobKey `json:"job"`
	TaskName string `json:"task_name"`
}

func (k TaskGroupKey) String() string {
	if k.TaskName == "" {
		return k.Job.String()
	}

	return fmt.Sprintf("%s[%s]", k.Job.String(), k.TaskName)
}

// ResourceRequest is the resource ask of a pending task together with the job the task belongs to.
type ResourceRequest struct {
	Job       JobKey      `json:"job"`
	Resources ResourceBag `json:"resources"`
}

// NewResourceRequest creates a new ResourceRequest and returns a pointer to it.
func NewResourceRequest(job JobKey, cpus float64, ramMb float64, diskMb float64) *ResourceRequest {
	return &ResourceRequest{
		Job:       job,
		Resources: NewResourceBag(cpus, ramMb, diskMb),
	}
}
