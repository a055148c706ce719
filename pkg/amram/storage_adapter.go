package amram

import (
	"github.com/himanishpuri/AmramAI/pkg/amram/storage"
	"github.com/himanishpuri/AmramAI/pkg/models"
)

// storageAdapter adapts storage.DBClient to the Storage interface.
type storageAdapter struct {
	db *storage.DBClient
}

// NewSQLiteStorage opens (or creates) the job history database at dbPath.
func NewSQLiteStorage(dbPath string) (Storage, error) {
	db, err := storage.NewDBClientWithPath(dbPath)
	if err != nil {
		return nil, err
	}
	return &storageAdapter{db: db}, nil
}

func (s *storageAdapter) CreateJob(source, sourceURL, title, model string) (string, error) {
	return s.db.CreateJob(source, sourceURL, title, model)
}

func (s *storageAdapter) FinishJob(job *models.Job) error {
	return s.db.FinishJob(job)
}

func (s *storageAdapter) GetJob(id string) (*models.Job, error) {
	return s.db.GetJob(id)
}

func (s *storageAdapter) ListJobs(limit int) ([]models.Job, error) {
	return s.db.ListJobs(limit)
}

func (s *storageAdapter) DeleteJob(id string) error {
	return s.db.DeleteJob(id)
}

func (s *storageAdapter) Close() error {
	return s.db.Close()
}
