package service

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/noah-isme/student-clearance-api/pkg/jobs"
)

const artifactRemovalJob = "artifact.remove"

type artifactQueue interface {
	Enqueue(job jobs.Job) error
}

type artifactDeleter interface {
	Delete(rel string) error
}

// ArtifactRemovalHandler deletes the stored file named by the job payload.
// Files that are already gone count as removed.
func ArtifactRemovalHandler(store artifactDeleter) jobs.Handler {
	return func(_ context.Context, job jobs.Job) error {
		if job.Type != artifactRemovalJob {
			return fmt.Errorf("unexpected job type %q", job.Type)
		}
		if job.Payload == "" {
			return nil
		}
		if err := store.Delete(job.Payload); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove artifact %s: %w", job.Payload, err)
		}
		return nil
	}
}
