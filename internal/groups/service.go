package groups

import (
	"context"
	"encoding/json"
	"time"

	"warden/internal/constants"
	"warden/internal/moderation"
	pkgerrors "warden/pkg/errors"
	"warden/pkg/models"
)

const (
	entityTypeConfig  = "config"
	entityTypeKeyword = "keyword"
)

type service struct {
	repo                Repository
	versioningRepo      VersioningRepository
	configEventProducer *ConfigEventProducer
	cache               *SnapshotCache
	auditEnabled        bool
}

type ServiceOption func(*service)

func WithVersioning(versioningRepo VersioningRepository) ServiceOption {
	return func(s *service) {
		s.versioningRepo = versioningRepo
		s.auditEnabled = true
	}
}

func WithConfigEvents(configEventProducer *ConfigEventProducer) ServiceOption {
	return func(s *service) {
		s.configEventProducer = configEventProducer
	}
}

func WithCache(cache *SnapshotCache) ServiceOption {
	return func(s *service) {
		s.cache = cache
	}
}

func NewService(repo Repository, opts ...ServiceOption) Service {
	s := &service{
		repo:         repo,
		auditEnabled: false,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *service) UpsertConfig(ctx context.Context, groupID int64, req UpsertConfigRequest) (*moderation.GroupConfig, error) {
	if err := ValidateUpsertConfig(req); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrValidation)
	}

	var oldValue map[string]interface{}
	if old, err := s.repo.GetConfig(ctx, groupID); err == nil {
		oldValue, _ = configToMap(old)
	}

	cfg := req.toGroupConfig(groupID)
	if err := s.repo.UpsertConfig(ctx, cfg); err != nil {
		if pkgerrors.IsConflict(err) {
			return nil, err
		}
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	action := models.ChangeActionUpdate
	if oldValue == nil {
		action = models.ChangeActionCreate
	}
	s.createVersionAndAudit(ctx, cfg, action, oldValue)
	s.publishConfigEvent(ctx, action, groupID)
	s.invalidateCache(ctx, groupID)

	return s.repo.GetConfig(ctx, groupID)
}

// UpdateRuleFamily replaces a single family inside a group's config.
// Groups without stored config start from an empty one, so a family can
// be configured before the full config ever existed.
func (s *service) UpdateRuleFamily(ctx context.Context, groupID int64, family string, payload json.RawMessage) (*moderation.GroupConfig, error) {
	var oldValue map[string]interface{}
	cfg, err := s.repo.GetConfig(ctx, groupID)
	if err != nil {
		if !pkgerrors.IsConfigMissing(err) {
			return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
		}
		cfg = &moderation.GroupConfig{GroupID: groupID}
	} else {
		oldValue, _ = configToMap(cfg)
	}

	if err := applyRuleFamilyPatch(cfg, family, payload); err != nil {
		if pkgerrors.IsUnknownRuleKind(err) {
			return nil, err
		}
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrValidation)
	}

	if err := s.repo.UpsertConfig(ctx, cfg); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	action := models.ChangeActionUpdate
	if oldValue == nil {
		action = models.ChangeActionCreate
	}
	s.createVersionAndAudit(ctx, cfg, action, oldValue)
	s.publishConfigEvent(ctx, action, groupID)
	s.invalidateCache(ctx, groupID)

	return s.repo.GetConfig(ctx, groupID)
}

func (s *service) GetConfig(ctx context.Context, groupID int64) (*moderation.GroupConfig, error) {
	cfg, err := s.repo.GetConfig(ctx, groupID)
	if err != nil {
		if pkgerrors.IsConfigMissing(err) {
			return nil, err
		}
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return cfg, nil
}

func (s *service) DeleteConfig(ctx context.Context, groupID int64) error {
	var oldValue map[string]interface{}
	if old, err := s.repo.GetConfig(ctx, groupID); err == nil {
		oldValue, _ = configToMap(old)
	}

	if err := s.repo.DeleteConfig(ctx, groupID); err != nil {
		if pkgerrors.IsNotFound(err) {
			return err
		}
		return pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	if s.auditEnabled && s.versioningRepo != nil {
		auditLog := s.buildAuditLog(groupID, entityTypeConfig, models.ChangeActionDelete, oldValue, nil, getChangedBy(ctx))
		_ = s.versioningRepo.CreateAuditLog(ctx, auditLog)
	}

	s.publishConfigEvent(ctx, models.ChangeActionDelete, groupID)
	s.invalidateCache(ctx, groupID)

	return nil
}

func (s *service) GetConfigVersions(ctx context.Context, groupID int64) ([]ConfigVersion, error) {
	if s.versioningRepo == nil {
		return nil, pkgerrors.ErrInternal.WithDetail("message", "versioning not enabled")
	}
	versions, err := s.versioningRepo.GetVersions(ctx, groupID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return versions, nil
}

func (s *service) GetAuditLogs(ctx context.Context, groupID *int64, entityType string, limit int) ([]AuditLog, error) {
	if s.versioningRepo == nil {
		return nil, pkgerrors.ErrInternal.WithDetail("message", "audit logging not enabled")
	}
	if limit <= 0 || limit > constants.MaxLimit {
		limit = constants.DefaultLimit
	}
	logs, err := s.versioningRepo.GetAuditLogs(ctx, groupID, entityType, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return logs, nil
}

func (s *service) AddKeyword(ctx context.Context, groupID int64, req AddKeywordRequest) (*moderation.KeywordRule, error) {
	if err := ValidateAddKeyword(req); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrValidation)
	}

	rule := &moderation.KeywordRule{
		Keyword: moderation.NormalizeKeyword(req.Keyword),
		Action:  models.ActionKind(req.Action),
		AddedBy: req.AddedBy,
		AddedAt: time.Now(),
	}

	if err := s.repo.UpsertKeyword(ctx, groupID, rule); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	if s.auditEnabled && s.versioningRepo != nil {
		newValue := map[string]interface{}{
			"keyword": rule.Keyword,
			"action":  string(rule.Action),
		}
		auditLog := s.buildAuditLog(groupID, entityTypeKeyword, models.ChangeActionCreate, nil, newValue, getChangedBy(ctx))
		_ = s.versioningRepo.CreateAuditLog(ctx, auditLog)
	}

	if s.configEventProducer != nil {
		_ = s.configEventProducer.PublishKeywordRuleEvent(ctx, models.ChangeActionCreate, groupID, rule.Keyword, getChangedBy(ctx))
	}
	s.invalidateCache(ctx, groupID)

	return rule, nil
}

func (s *service) RemoveKeyword(ctx context.Context, groupID int64, keyword string) error {
	normalized := moderation.NormalizeKeyword(keyword)
	if normalized == "" {
		return pkgerrors.ErrValidation.WithDetail("message", "keyword is required")
	}

	if err := s.repo.DeleteKeyword(ctx, groupID, normalized); err != nil {
		if pkgerrors.IsNotFound(err) {
			return err
		}
		return pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	if s.auditEnabled && s.versioningRepo != nil {
		oldValue := map[string]interface{}{
			"keyword": normalized,
		}
		auditLog := s.buildAuditLog(groupID, entityTypeKeyword, models.ChangeActionDelete, oldValue, nil, getChangedBy(ctx))
		_ = s.versioningRepo.CreateAuditLog(ctx, auditLog)
	}

	if s.configEventProducer != nil {
		_ = s.configEventProducer.PublishKeywordRuleEvent(ctx, models.ChangeActionDelete, groupID, normalized, getChangedBy(ctx))
	}
	s.invalidateCache(ctx, groupID)

	return nil
}

func (s *service) ListKeywords(ctx context.Context, groupID int64) ([]moderation.KeywordRule, error) {
	keywords, err := s.repo.ListKeywords(ctx, groupID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return keywords, nil
}

func (s *service) createVersionAndAudit(ctx context.Context, cfg *moderation.GroupConfig, action string, oldValue map[string]interface{}) {
	if !s.auditEnabled || s.versioningRepo == nil {
		return
	}

	configJSON, err := json.Marshal(cfg)
	if err != nil {
		return
	}

	version := 1
	if nextVersion, err := s.versioningRepo.GetNextVersion(ctx, cfg.GroupID); err == nil {
		version = nextVersion
	}

	if err := s.versioningRepo.CreateVersion(ctx, &ConfigVersion{
		GroupID:    cfg.GroupID,
		ConfigData: string(configJSON),
		Version:    version,
		ChangedBy:  getChangedBy(ctx),
	}); err != nil {
		return
	}

	newValue, err := configToMap(cfg)
	if err != nil {
		return
	}

	auditLog := s.buildAuditLog(cfg.GroupID, entityTypeConfig, action, oldValue, newValue, getChangedBy(ctx))
	_ = s.versioningRepo.CreateAuditLog(ctx, auditLog)
}

func (s *service) buildAuditLog(groupID int64, entityType, action string, oldValue, newValue map[string]interface{}, changedBy string) *AuditLog {
	return &AuditLog{
		GroupID:    &groupID,
		EntityType: entityType,
		Action:     action,
		OldValue:   oldValue,
		NewValue:   newValue,
		ChangedBy:  changedBy,
	}
}

func (s *service) publishConfigEvent(ctx context.Context, action string, groupID int64) {
	if s.configEventProducer != nil {
		_ = s.configEventProducer.PublishGroupConfigEvent(ctx, action, groupID, getChangedBy(ctx))
	}
}

func (s *service) invalidateCache(ctx context.Context, groupID int64) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, groupID)
	}
}

func configToMap(cfg *moderation.GroupConfig) (map[string]interface{}, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func getChangedBy(ctx context.Context) string {
	if userID := ctx.Value("user_id"); userID != nil {
		if id, ok := userID.(string); ok {
			return id
		}
	}
	return "system"
}
