package fam

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/tagreview/pkg/models"
)

type recordSource interface {
	FetchTags(ctx context.Context, projectKey string) ([]Record, error)
}

type projectLister interface {
	ListActiveProjects(ctx context.Context) ([]*models.Project, error)
}

// Syncer pulls tag records from FAM for active projects.
type Syncer struct {
	source   recordSource
	ingestor *Ingestor
	projects projectLister
}

// NewSyncer creates a new syncer
func NewSyncer(source recordSource, ingestor *Ingestor, projects projectLister) *Syncer {
	return &Syncer{source: source, ingestor: ingestor, projects: projects}
}

// SyncProject pulls and ingests one project's tags.
func (s *Syncer) SyncProject(ctx context.Context, project *models.Project) (*models.ImportRun, error) {
	records, err := s.source.FetchTags(ctx, project.ExternalKey)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tags for %s: %w", project.ExternalKey, err)
	}
	return s.ingestor.IngestRecords(ctx, project.ID, records)
}

// SyncAll walks every active project. A failing project is logged and
// counted, the walk continues.
func (s *Syncer) SyncAll(ctx context.Context) error {
	projects, err := s.projects.ListActiveProjects(ctx)
	if err != nil {
		return err
	}

	failed := 0
	for _, project := range projects {
		run, err := s.SyncProject(ctx, project)
		if err != nil {
			failed++
			log.Error().Err(err).Str("project", project.ExternalKey).Msg("project sync failed")
			continue
		}
		log.Info().
			Str("project", project.ExternalKey).
			Str("import_run", run.ID).
			Int("rows_total", run.RowsTotal).
			Int("rows_failed", run.RowsFailed).
			Msg("project synced")
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d projects failed to sync", failed, len(projects))
	}
	return nil
}
