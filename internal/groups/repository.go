package groups

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"warden/internal/moderation"
	pkgerrors "warden/pkg/errors"
	"warden/pkg/models"
)

type Repository interface {
	UpsertConfig(ctx context.Context, cfg *moderation.GroupConfig) error
	GetConfig(ctx context.Context, groupID int64) (*moderation.GroupConfig, error)
	DeleteConfig(ctx context.Context, groupID int64) error
	UpsertKeyword(ctx context.Context, groupID int64, rule *moderation.KeywordRule) error
	DeleteKeyword(ctx context.Context, groupID int64, keyword string) error
	ListKeywords(ctx context.Context, groupID int64) ([]moderation.KeywordRule, error)
}

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) UpsertConfig(ctx context.Context, cfg *moderation.GroupConfig) error {
	now := time.Now()

	linkFilter, err := marshalFamily(cfg.LinkFilter)
	if err != nil {
		return err
	}
	mentionFilter, err := marshalFamily(cfg.MentionFilter)
	if err != nil {
		return err
	}
	badWordFilter, err := marshalFamily(cfg.BadWordFilter)
	if err != nil {
		return err
	}
	spamRate, err := marshalFamily(cfg.SpamRate)
	if err != nil {
		return err
	}
	floodRate, err := marshalFamily(cfg.FloodRate)
	if err != nil {
		return err
	}
	newAccount, err := marshalFamily(cfg.NewAccount)
	if err != nil {
		return err
	}
	customRules, err := json.Marshal(cfg.CustomRules)
	if err != nil {
		return fmt.Errorf("failed to marshal custom rules: %w", err)
	}
	escalation, err := json.Marshal(cfg.Escalation)
	if err != nil {
		return fmt.Errorf("failed to marshal escalation policy: %w", err)
	}

	query := `
		INSERT INTO group_configs (group_id, link_filter, mention_filter, bad_word_filter, spam_rate, flood_rate, new_account, custom_rules, escalation, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		ON CONFLICT (group_id) DO UPDATE SET
			link_filter = EXCLUDED.link_filter,
			mention_filter = EXCLUDED.mention_filter,
			bad_word_filter = EXCLUDED.bad_word_filter,
			spam_rate = EXCLUDED.spam_rate,
			flood_rate = EXCLUDED.flood_rate,
			new_account = EXCLUDED.new_account,
			custom_rules = EXCLUDED.custom_rules,
			escalation = EXCLUDED.escalation,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		cfg.GroupID, linkFilter, mentionFilter, badWordFilter,
		spamRate, floodRate, newAccount, customRules, escalation, now,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return pkgerrors.ErrConflict.WithCause(err).WithDetail("group_id", cfg.GroupID)
		}
		return fmt.Errorf("failed to upsert group config: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetConfig(ctx context.Context, groupID int64) (*moderation.GroupConfig, error) {
	query := `
		SELECT group_id, link_filter, mention_filter, bad_word_filter, spam_rate, flood_rate, new_account, custom_rules, escalation
		FROM group_configs
		WHERE group_id = $1
	`

	row := r.db.QueryRowContext(ctx, query, groupID)

	cfg := moderation.GroupConfig{}
	var linkFilter, mentionFilter, badWordFilter, spamRate, floodRate, newAccount, customRules, escalation []byte
	err := row.Scan(
		&cfg.GroupID, &linkFilter, &mentionFilter, &badWordFilter,
		&spamRate, &floodRate, &newAccount, &customRules, &escalation,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrConfigMissing.WithDetail("group_id", groupID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group config: %w", err)
	}

	if err := unmarshalFamily(linkFilter, &cfg.LinkFilter); err != nil {
		return nil, err
	}
	if err := unmarshalFamily(mentionFilter, &cfg.MentionFilter); err != nil {
		return nil, err
	}
	if err := unmarshalFamily(badWordFilter, &cfg.BadWordFilter); err != nil {
		return nil, err
	}
	if err := unmarshalFamily(spamRate, &cfg.SpamRate); err != nil {
		return nil, err
	}
	if err := unmarshalFamily(floodRate, &cfg.FloodRate); err != nil {
		return nil, err
	}
	if err := unmarshalFamily(newAccount, &cfg.NewAccount); err != nil {
		return nil, err
	}
	if len(customRules) > 0 {
		if err := json.Unmarshal(customRules, &cfg.CustomRules); err != nil {
			return nil, fmt.Errorf("failed to unmarshal custom rules: %w", err)
		}
	}
	if len(escalation) > 0 {
		if err := json.Unmarshal(escalation, &cfg.Escalation); err != nil {
			return nil, fmt.Errorf("failed to unmarshal escalation policy: %w", err)
		}
	}

	keywords, err := r.ListKeywords(ctx, groupID)
	if err != nil {
		return nil, err
	}
	cfg.Keywords = keywords

	return &cfg, nil
}

func (r *PostgresRepository) DeleteConfig(ctx context.Context, groupID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM group_configs WHERE group_id = $1`, groupID)
	if err != nil {
		return fmt.Errorf("failed to delete group config: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return pkgerrors.ErrNotFound.WithDetail("group_id", groupID)
	}

	return nil
}

// UpsertKeyword inserts the keyword or, when it already exists in the
// group, replaces its action while keeping the original added_by and
// added_at.
func (r *PostgresRepository) UpsertKeyword(ctx context.Context, groupID int64, rule *moderation.KeywordRule) error {
	if rule.AddedAt.IsZero() {
		rule.AddedAt = time.Now()
	}

	query := `
		INSERT INTO keyword_rules (id, group_id, keyword, action, added_by, added_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (group_id, keyword) DO UPDATE SET action = EXCLUDED.action
	`

	_, err := r.db.ExecContext(ctx, query,
		uuid.New().String(), groupID, rule.Keyword, string(rule.Action), rule.AddedBy, rule.AddedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert keyword rule: %w", err)
	}

	return nil
}

func (r *PostgresRepository) DeleteKeyword(ctx context.Context, groupID int64, keyword string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM keyword_rules WHERE group_id = $1 AND keyword = $2`,
		groupID, keyword,
	)
	if err != nil {
		return fmt.Errorf("failed to delete keyword rule: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return pkgerrors.ErrNotFound.WithDetail("keyword", keyword)
	}

	return nil
}

func (r *PostgresRepository) ListKeywords(ctx context.Context, groupID int64) ([]moderation.KeywordRule, error) {
	query := `
		SELECT keyword, action, added_by, added_at
		FROM keyword_rules
		WHERE group_id = $1
		ORDER BY added_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list keyword rules: %w", err)
	}
	defer rows.Close()

	var keywords []moderation.KeywordRule
	for rows.Next() {
		var kw moderation.KeywordRule
		var action string
		if err := rows.Scan(&kw.Keyword, &action, &kw.AddedBy, &kw.AddedAt); err != nil {
			return nil, fmt.Errorf("failed to scan keyword rule: %w", err)
		}
		kw.Action = models.ActionKind(action)
		keywords = append(keywords, kw)
	}

	return keywords, rows.Err()
}

func marshalFamily(v interface{}) ([]byte, error) {
	switch rule := v.(type) {
	case *moderation.FilterRule:
		if rule == nil {
			return nil, nil
		}
	case *moderation.BadWordRule:
		if rule == nil {
			return nil, nil
		}
	case *moderation.RateRule:
		if rule == nil {
			return nil, nil
		}
	case *moderation.NewAccountRule:
		if rule == nil {
			return nil, nil
		}
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rule family: %w", err)
	}
	return data, nil
}

func unmarshalFamily(data []byte, target interface{}) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to unmarshal rule family: %w", err)
	}
	return nil
}
