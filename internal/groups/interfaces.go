package groups

import (
	"context"
	"encoding/json"

	"warden/internal/moderation"
)

type Service interface {
	UpsertConfig(ctx context.Context, groupID int64, req UpsertConfigRequest) (*moderation.GroupConfig, error)
	UpdateRuleFamily(ctx context.Context, groupID int64, family string, payload json.RawMessage) (*moderation.GroupConfig, error)
	GetConfig(ctx context.Context, groupID int64) (*moderation.GroupConfig, error)
	DeleteConfig(ctx context.Context, groupID int64) error
	GetConfigVersions(ctx context.Context, groupID int64) ([]ConfigVersion, error)
	GetAuditLogs(ctx context.Context, groupID *int64, entityType string, limit int) ([]AuditLog, error)

	AddKeyword(ctx context.Context, groupID int64, req AddKeywordRequest) (*moderation.KeywordRule, error)
	RemoveKeyword(ctx context.Context, groupID int64, keyword string) error
	ListKeywords(ctx context.Context, groupID int64) ([]moderation.KeywordRule, error)
}
