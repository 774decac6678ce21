package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"privacyhub/internal/domain/changes"
	"privacyhub/internal/domain/dal"
	"privacyhub/internal/domain/tenancy"
	"privacyhub/internal/platform/config"
	"privacyhub/internal/platform/metrics"
)

const JobImpactScan = "impact_scan"

const (
	statusRunning   = "running"
	statusCompleted = "completed"
	statusFailed    = "failed"
)

type Service struct {
	DB     *pgxpool.Pool
	Cfg    config.Config
	Logger *slog.Logger
	queue  chan job
}

type job struct {
	Type  string
	OrgID string
	Run   func(context.Context) (any, error)
}

func New(db *pgxpool.Pool, cfg config.Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		DB:     db,
		Cfg:    cfg,
		Logger: logger,
		queue:  make(chan job, 128),
	}
}

func (s *Service) Start(ctx context.Context) {
	go s.worker(ctx)
	if s.Cfg.ImpactScanInterval > 0 {
		go s.scheduleImpactScans(ctx, s.Cfg.ImpactScanInterval)
	}
}

// Enqueue hands a job to the worker. A full queue drops the job; the next tick
// schedules it again.
func (s *Service) Enqueue(jobType, orgID string, run func(context.Context) (any, error)) bool {
	select {
	case s.queue <- job{Type: jobType, OrgID: orgID, Run: run}:
		return true
	default:
		s.Logger.Warn("job queue full", "jobType", jobType, "orgId", orgID)
		return false
	}
}

func (s *Service) RunNow(ctx context.Context, jobType, orgID string, run func(context.Context) (any, error)) (any, error) {
	return s.runJob(ctx, job{Type: jobType, OrgID: orgID, Run: run})
}

// ScanImpact runs one impact scan for orgID, resuming from the watermark of
// the last completed scan.
func (s *Service) ScanImpact(ctx context.Context, orgID string) (changes.ScanResult, error) {
	details, err := s.RunNow(ctx, JobImpactScan, orgID, s.impactScan(orgID))
	res, _ := details.(changes.ScanResult)
	return res, err
}

// EnqueueImpactScan schedules a scan for orgID on the background worker.
func (s *Service) EnqueueImpactScan(orgID string) bool {
	return s.Enqueue(JobImpactScan, orgID, s.impactScan(orgID))
}

type Run struct {
	ID          string          `json:"id"`
	JobType     string          `json:"jobType"`
	Status      string          `json:"status"`
	Details     json.RawMessage `json:"details"`
	StartedAt   time.Time       `json:"startedAt"`
	CompletedAt *time.Time      `json:"completedAt"`
}

// ListRuns returns the most recent runs for orgID, newest first.
func (s *Service) ListRuns(ctx context.Context, orgID, jobType string, limit int) ([]Run, error) {
	if _, ok := tenancy.ParseID(orgID); !ok {
		return nil, dal.ErrNotFoundOrForbidden
	}
	query := `
    SELECT id::text, job_type, status, details_json, started_at, completed_at
    FROM job_runs
    WHERE organization_id = $1`
	args := []any{orgID}
	if jobType != "" {
		query += fmt.Sprintf(" AND job_type = $%d", len(args)+1)
		args = append(args, jobType)
	}
	query += fmt.Sprintf(" ORDER BY started_at DESC, id LIMIT $%d", len(args)+1)
	args = append(args, dal.NormalizeLimit(limit, 20, 100))

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Run, error) {
		var r Run
		err := row.Scan(&r.ID, &r.JobType, &r.Status, &r.Details, &r.StartedAt, &r.CompletedAt)
		return r, err
	})
}

func (s *Service) impactScan(orgID string) func(context.Context) (any, error) {
	return func(ctx context.Context) (any, error) {
		watermark, err := s.lastWatermark(ctx, orgID)
		if err != nil {
			return nil, err
		}
		// Entries are stamped at insert, so a transaction still open during the
		// previous scan can commit rows older than its watermark. Rescanning the
		// overlap picks them up; pairs already linked are skipped.
		since := watermark
		if !since.IsZero() {
			since = since.Add(-s.Cfg.ImpactScanOverlap)
		}
		res, err := changes.NewImpactAnalyzer(changes.NewLedger(s.DB)).Scan(ctx, orgID, since)
		if res.Watermark.Before(watermark) {
			res.Watermark = watermark
		}
		return res, err
	}
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				s.Logger.Warn("job run failed", "jobType", j.Type, "orgId", j.OrgID, "err", err)
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	runID := ""
	if err := s.DB.QueryRow(ctx, `
    INSERT INTO job_runs (organization_id, job_type, status)
    VALUES ($1,$2,$3)
    RETURNING id::text
  `, j.OrgID, j.Type, statusRunning).Scan(&runID); err != nil {
		s.Logger.Warn("job run insert failed", "jobType", j.Type, "orgId", j.OrgID, "err", err)
	}

	details, err := j.Run(ctx)
	status := statusCompleted
	if err != nil {
		status = statusFailed
		details = map[string]any{"error": err.Error(), "partial": details}
	}
	metrics.JobRun(j.Type, status)

	detailsJSON, marshalErr := json.Marshal(details)
	if marshalErr != nil {
		s.Logger.Warn("job details marshal failed", "err", marshalErr)
		detailsJSON = []byte("{}")
	}
	if runID != "" {
		if _, updErr := s.DB.Exec(ctx, `
      UPDATE job_runs
      SET status = $1, details_json = $2, completed_at = now()
      WHERE id = $3
    `, status, detailsJSON, runID); updErr != nil {
			s.Logger.Warn("job run update failed", "err", updErr)
		}
	}
	return details, err
}

func (s *Service) scheduleImpactScans(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			orgs, err := s.listOrganizations(ctx)
			if err != nil {
				s.Logger.Warn("impact scheduler organization lookup failed", "err", err)
				continue
			}
			for _, orgID := range orgs {
				s.Enqueue(JobImpactScan, orgID, s.impactScan(orgID))
			}
		}
	}
}

// lastWatermark returns the newest change covered by a completed scan, or the
// zero time when the organization was never scanned.
func (s *Service) lastWatermark(ctx context.Context, orgID string) (time.Time, error) {
	var watermark *time.Time
	err := s.DB.QueryRow(ctx, `
    SELECT (details_json->>'watermark')::timestamptz
    FROM job_runs
    WHERE organization_id = $1 AND job_type = $2 AND status = $3
    ORDER BY started_at DESC
    LIMIT 1
  `, orgID, JobImpactScan, statusCompleted).Scan(&watermark)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && watermark == nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return *watermark, nil
}

func (s *Service) listOrganizations(ctx context.Context) ([]string, error) {
	rows, err := s.DB.Query(ctx, `SELECT id::text FROM organizations WHERE deleted_at IS NULL AND status = 'ACTIVE'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
