package workspace

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	goRedis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"golang-workspace-automation/internal/models"
	"golang-workspace-automation/internal/repository"
	"golang-workspace-automation/pkg/postgres"
	"golang-workspace-automation/pkg/redis"
)

// DirectoryService resolves workspace identifiers to descriptors through a
// read-through cache. Mutations are unsupported here.
type DirectoryService interface {
	Resolve(ctx context.Context, identifier string) (*models.WorkspaceDescriptor, error)
	ListAll(ctx context.Context, param *models.GetWorkspaceParam) ([]models.WorkspaceDescriptor, error)
	Evict(ctx context.Context, identifier string) error
	Add(ctx context.Context, descriptor *models.WorkspaceDescriptor) error
	Update(ctx context.Context, descriptor *models.WorkspaceDescriptor) error
	Remove(ctx context.Context, identifier string) error
}

type directoryService struct {
	log           *logrus.Logger
	workspaceRepo repository.WorkspaceRepository
	redisClient   *redis.Client
	dbCfg         postgres.Config
	cacheTTL      time.Duration
}

func NewDirectoryService(
	log *logrus.Logger,
	workspaceRepo repository.WorkspaceRepository,
	redisClient *redis.Client,
	dbCfg postgres.Config,
	cacheTTL time.Duration,
) DirectoryService {
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Minute
	}
	return &directoryService{
		log:           log,
		workspaceRepo: workspaceRepo,
		redisClient:   redisClient,
		dbCfg:         dbCfg,
		cacheTTL:      cacheTTL,
	}
}

func cacheKeyByID(id uint) string {
	return fmt.Sprintf("workspace:id:%d", id)
}

func cacheKeyByName(name string) string {
	return "workspace:name:" + name
}

func (s *directoryService) Resolve(ctx context.Context, identifier string) (*models.WorkspaceDescriptor, error) {
	if cached := s.fromCache(ctx, identifier); cached != nil {
		return cached, nil
	}

	workspace, err := s.lookup(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if workspace == nil {
		// Negative results are not cached so newly created workspaces
		// become resolvable immediately.
		return nil, ErrWorkspaceNotFound
	}

	descriptor := s.toDescriptor(workspace)
	s.populateCache(ctx, descriptor)
	return descriptor, nil
}

// lookup tries a numeric id match first, then falls back to the name.
func (s *directoryService) lookup(ctx context.Context, identifier string) (*models.WorkspaceEntity, error) {
	if id, err := strconv.ParseUint(identifier, 10, 32); err == nil {
		workspace, err := s.workspaceRepo.GetByID(ctx, uint(id))
		if err != nil {
			return nil, fmt.Errorf("failed to look up workspace by id: %w", err)
		}
		if workspace != nil {
			return workspace, nil
		}
	}
	workspace, err := s.workspaceRepo.GetByName(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("failed to look up workspace by name: %w", err)
	}
	return workspace, nil
}

func (s *directoryService) fromCache(ctx context.Context, identifier string) *models.WorkspaceDescriptor {
	key := cacheKeyByName(identifier)
	if _, err := strconv.ParseUint(identifier, 10, 32); err == nil {
		key = "workspace:id:" + identifier
	}
	raw, err := s.redisClient.Get(ctx, key).Result()
	if err != nil {
		if err != goRedis.Nil {
			s.log.WithError(err).Warn("workspace cache read failed")
		}
		return nil
	}
	var descriptor models.WorkspaceDescriptor
	if err := json.Unmarshal([]byte(raw), &descriptor); err != nil {
		s.log.WithError(err).Warn("workspace cache entry malformed, ignoring")
		return nil
	}
	// DSN is never cached; rebuild it from the locator template.
	descriptor.DSN = s.dbCfg.WorkspaceDSN(descriptor.ID)
	return &descriptor
}

func (s *directoryService) populateCache(ctx context.Context, descriptor *models.WorkspaceDescriptor) {
	raw, err := json.Marshal(descriptor)
	if err != nil {
		s.log.WithError(err).Warn("failed to marshal workspace descriptor for cache")
		return
	}
	pipe := s.redisClient.Pipeline()
	pipe.Set(ctx, cacheKeyByID(descriptor.ID), raw, s.cacheTTL)
	pipe.Set(ctx, cacheKeyByName(descriptor.Name), raw, s.cacheTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.WithError(err).Warn("failed to populate workspace cache")
	}
}

func (s *directoryService) toDescriptor(workspace *models.WorkspaceEntity) *models.WorkspaceDescriptor {
	return &models.WorkspaceDescriptor{
		ID:          workspace.ID,
		Name:        workspace.Name,
		DisplayName: workspace.DisplayName,
		Location:    workspace.Location,
		IsActive:    workspace.IsActive,
		DSN:         s.dbCfg.WorkspaceDSN(workspace.ID),
	}
}

// ListAll bypasses the cache; it exists for administrative enumeration.
func (s *directoryService) ListAll(ctx context.Context, param *models.GetWorkspaceParam) ([]models.WorkspaceDescriptor, error) {
	workspaces, err := s.workspaceRepo.List(ctx, param)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}
	descriptors := make([]models.WorkspaceDescriptor, 0, len(workspaces))
	for i := range workspaces {
		descriptors = append(descriptors, *s.toDescriptor(&workspaces[i]))
	}
	return descriptors, nil
}

// Evict drops the cache entries for an identifier without consulting the
// database, so entries for workspaces that no longer exist can be cleared
// too. The cached descriptor, when present, names both aliases.
func (s *directoryService) Evict(ctx context.Context, identifier string) error {
	keys := []string{cacheKeyByName(identifier)}
	if _, err := strconv.ParseUint(identifier, 10, 32); err == nil {
		keys = append(keys, "workspace:id:"+identifier)
	}
	if cached := s.fromCache(ctx, identifier); cached != nil {
		keys = append(keys, cacheKeyByID(cached.ID), cacheKeyByName(cached.Name))
	}
	return s.redisClient.Del(ctx, keys...).Err()
}

func (s *directoryService) Add(ctx context.Context, _ *models.WorkspaceDescriptor) error {
	return ErrDirectoryReadOnly
}

func (s *directoryService) Update(ctx context.Context, _ *models.WorkspaceDescriptor) error {
	return ErrDirectoryReadOnly
}

func (s *directoryService) Remove(ctx context.Context, _ string) error {
	return ErrDirectoryReadOnly
}
