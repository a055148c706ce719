package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/himanishpuri/AmramAI/pkg/models"
	"github.com/himanishpuri/AmramAI/pkg/utils"
)

// DefaultDBFile is the database name used inside the data directory.
const DefaultDBFile = "amram.sqlite3"
const errDBClientNil = "db client is nil"

var ErrJobNotFound = errors.New("job not found")

type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

type Job struct {
	ID            string `gorm:"primaryKey;type:varchar(36)"`
	Source        string `gorm:"index:idx_job_source"`
	SourceURL     string
	Title         string
	Model         string
	Status        string `gorm:"index:idx_job_status"`
	DurationMs    int64
	Windows       int
	FailedWindows int
	GapSamples    int
	Error         string
	OutputDir     string
	CreatedAt     time.Time `gorm:"index:idx_job_created"`
	FinishedAt    *time.Time
	Stems         []Stem `gorm:"foreignKey:JobID;constraint:OnDelete:CASCADE"`
}

type Stem struct {
	ID    uint   `gorm:"primaryKey;autoIncrement"`
	JobID string `gorm:"type:varchar(36);uniqueIndex:idx_stem_job_name,priority:1"`
	Name  string `gorm:"uniqueIndex:idx_stem_job_name,priority:2"`
	Path  string
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := utils.MakeDir(dir); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_pragma=foreign_keys(1)"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Job{}, &Stem{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *DBClient) ready() error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	return nil
}

// CreateJob inserts a running job and returns its ID.
func (c *DBClient) CreateJob(source, sourceURL, title, model string) (string, error) {
	if err := c.ready(); err != nil {
		return "", err
	}
	job := Job{
		ID:        utils.NewJobID(),
		Source:    source,
		SourceURL: sourceURL,
		Title:     title,
		Model:     model,
		Status:    string(models.JobRunning),
	}
	if err := c.DB.Create(&job).Error; err != nil {
		return "", fmt.Errorf("creating job: %w", err)
	}
	return job.ID, nil
}

// FinishJob stores the final state of a job together with its stems.
func (c *DBClient) FinishJob(job *models.Job) error {
	if err := c.ready(); err != nil {
		return err
	}
	now := time.Now()
	return c.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Job{}).Where("id = ?", job.ID).Updates(map[string]any{
			"status":         string(job.Status),
			"duration_ms":    job.DurationMs,
			"windows":        job.Windows,
			"failed_windows": job.FailedWindows,
			"gap_samples":    job.GapSamples,
			"error":          job.Error,
			"output_dir":     job.OutputDir,
			"finished_at":    now,
		})
		if res.Error != nil {
			return fmt.Errorf("updating job: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrJobNotFound
		}
		if len(job.Stems) == 0 {
			return nil
		}
		stems := make([]Stem, len(job.Stems))
		for i, s := range job.Stems {
			stems[i] = Stem{JobID: job.ID, Name: s.Name, Path: s.Path}
		}
		if err := tx.Create(&stems).Error; err != nil {
			return fmt.Errorf("storing stems: %w", err)
		}
		return nil
	})
}

func (c *DBClient) GetJob(id string) (*models.Job, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	var job Job
	err := c.DB.Preload("Stems").Where("id = ?", id).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying job: %w", err)
	}
	return job.toModel(), nil
}

// ListJobs returns jobs newest first. A non-positive limit returns all.
func (c *DBClient) ListJobs(limit int) ([]models.Job, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	q := c.DB.Preload("Stems").Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []Job
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	jobs := make([]models.Job, len(rows))
	for i := range rows {
		jobs[i] = *rows[i].toModel()
	}
	return jobs, nil
}

func (c *DBClient) DeleteJob(id string) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("job_id = ?", id).Delete(&Stem{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&Job{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrJobNotFound
		}
		return nil
	})
}

func (c *DBClient) CountJobs() (int64, error) {
	if err := c.ready(); err != nil {
		return 0, err
	}
	var n int64
	err := c.DB.Model(&Job{}).Count(&n).Error
	return n, err
}

func (j *Job) toModel() *models.Job {
	out := &models.Job{
		ID:            j.ID,
		Source:        j.Source,
		SourceURL:     j.SourceURL,
		Title:         j.Title,
		Model:         j.Model,
		Status:        models.JobStatus(j.Status),
		DurationMs:    j.DurationMs,
		Windows:       j.Windows,
		FailedWindows: j.FailedWindows,
		GapSamples:    j.GapSamples,
		Error:         j.Error,
		OutputDir:     j.OutputDir,
		CreatedAt:     j.CreatedAt,
		FinishedAt:    j.FinishedAt,
	}
	for _, s := range j.Stems {
		out.Stems = append(out.Stems, models.Stem{Name: s.Name, Path: s.Path})
	}
	return out
}
