package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lucentdata/metricplane/pkg/apperrors"
	"github.com/lucentdata/metricplane/pkg/graph"
	"github.com/lucentdata/metricplane/pkg/models"
	"github.com/lucentdata/metricplane/pkg/repositories"
)

// ImpactService answers governance questions over the dependency graph:
// what sits downstream of a version, and how risky a change between two
// versions is. It builds a fresh graph from the metadata store per call;
// the graph is small and correctness beats caching here.
type ImpactService interface {
	// Impact reports every version transitively downstream of the named
	// concept version.
	Impact(ctx context.Context, conceptName, versionName string) (*graph.ImpactReport, error)

	// Diff compares two versions of the same concept and classifies the
	// change risk from the structural delta and the blast radius.
	Diff(ctx context.Context, conceptName, versionA, versionB string) (*graph.DiffReport, error)
}

type impactService struct {
	metadata repositories.MetadataRepository
	logger   *zap.Logger
}

// NewImpactService creates an ImpactService.
func NewImpactService(metadata repositories.MetadataRepository, logger *zap.Logger) ImpactService {
	return &impactService{
		metadata: metadata,
		logger:   logger.Named("impact-service"),
	}
}

var _ ImpactService = (*impactService)(nil)

func (s *impactService) Impact(ctx context.Context, conceptName, versionName string) (*graph.ImpactReport, error) {
	g, snap, err := s.buildGraph(ctx)
	if err != nil {
		return nil, err
	}

	version, err := findVersion(snap, conceptName, versionName)
	if err != nil {
		return nil, err
	}

	report, err := g.Impact(version.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Computed impact",
		zap.String("concept", conceptName),
		zap.String("version", versionName),
		zap.Int("downstream_count", report.DownstreamCount))
	return report, nil
}

func (s *impactService) Diff(ctx context.Context, conceptName, versionA, versionB string) (*graph.DiffReport, error) {
	g, snap, err := s.buildGraph(ctx)
	if err != nil {
		return nil, err
	}

	bundleA, err := s.loadBundle(ctx, snap, conceptName, versionA)
	if err != nil {
		return nil, err
	}
	bundleB, err := s.loadBundle(ctx, snap, conceptName, versionB)
	if err != nil {
		return nil, err
	}

	report, err := g.Diff(conceptName, bundleA, bundleB)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Computed version diff",
		zap.String("concept", conceptName),
		zap.String("version_a", versionA),
		zap.String("version_b", versionB),
		zap.String("risk", report.Risk))
	return report, nil
}

func (s *impactService) buildGraph(ctx context.Context) (*graph.Graph, *graph.Snapshot, error) {
	concepts, err := s.metadata.ListConcepts(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list concepts: %w", err)
	}
	versions, err := s.metadata.ListAllVersions(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list versions: %w", err)
	}
	definitions, err := s.metadata.ListAllDefinitions(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list definitions: %w", err)
	}
	declared, err := s.metadata.ListDependencies(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list dependencies: %w", err)
	}

	snap := &graph.Snapshot{
		Concepts:    concepts,
		Versions:    versions,
		Definitions: definitions,
		Declared:    declared,
	}
	g, err := graph.Build(*snap)
	if err != nil {
		return nil, nil, err
	}
	return g, snap, nil
}

func (s *impactService) loadBundle(ctx context.Context, snap *graph.Snapshot, conceptName, versionName string) (graph.VersionBundle, error) {
	version, err := findVersion(snap, conceptName, versionName)
	if err != nil {
		return graph.VersionBundle{}, err
	}

	bundle := graph.VersionBundle{Version: version}
	def, err := s.metadata.GetLogicalDefinition(ctx, version.ID)
	if err != nil {
		return graph.VersionBundle{}, fmt.Errorf("get logical definition: %w", err)
	}
	bundle.Definition = def

	if def != nil {
		mappings, err := s.metadata.ListPhysicalMappings(ctx, def.ID)
		if err != nil {
			return graph.VersionBundle{}, fmt.Errorf("list physical mappings: %w", err)
		}
		bundle.Mappings = mappings
	}
	return bundle, nil
}

// findVersion resolves concept and version by exact name within a snapshot.
func findVersion(snap *graph.Snapshot, conceptName, versionName string) (*models.ConceptVersion, error) {
	var concept *models.Concept
	for _, c := range snap.Concepts {
		if c.Name == conceptName {
			concept = c
			break
		}
	}
	if concept == nil {
		return nil, fmt.Errorf("concept %q: %w", conceptName, apperrors.ErrConceptNotFound)
	}

	for _, v := range snap.Versions {
		if v.ConceptID == concept.ID && v.Name == versionName {
			return v, nil
		}
	}
	return nil, fmt.Errorf("version %q of concept %q: %w",
		versionName, conceptName, apperrors.ErrVersionNotFound)
}
