package groups

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ConfigVersion is a full snapshot of a group's config at the time of
// a change, for point-in-time inspection and rollback.
type ConfigVersion struct {
	ID           string    `json:"id"`
	GroupID      int64     `json:"group_id"`
	ConfigData   string    `json:"config_data"`
	Version      int       `json:"version"`
	ChangedBy    string    `json:"changed_by,omitempty"`
	ChangeReason string    `json:"change_reason,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type AuditLog struct {
	ID           string                 `json:"id"`
	GroupID      *int64                 `json:"group_id,omitempty"`
	EntityType   string                 `json:"entity_type"`
	Action       string                 `json:"action"`
	OldValue     map[string]interface{} `json:"old_value,omitempty"`
	NewValue     map[string]interface{} `json:"new_value,omitempty"`
	ChangedBy    string                 `json:"changed_by"`
	ChangeReason string                 `json:"change_reason,omitempty"`
	IPAddress    string                 `json:"ip_address,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
}

type VersioningRepository interface {
	CreateVersion(ctx context.Context, version *ConfigVersion) error
	GetVersions(ctx context.Context, groupID int64) ([]ConfigVersion, error)
	GetVersion(ctx context.Context, groupID int64, version int) (*ConfigVersion, error)
	CreateAuditLog(ctx context.Context, log *AuditLog) error
	GetAuditLogs(ctx context.Context, groupID *int64, entityType string, limit int) ([]AuditLog, error)
	GetNextVersion(ctx context.Context, groupID int64) (int, error)
}

type postgresVersioningRepository struct {
	db *sql.DB
}

func NewVersioningRepository(db *sql.DB) VersioningRepository {
	return &postgresVersioningRepository{db: db}
}

func (r *postgresVersioningRepository) CreateVersion(ctx context.Context, version *ConfigVersion) error {
	if version.ID == "" {
		version.ID = uuid.New().String()
	}
	if version.CreatedAt.IsZero() {
		version.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO config_versions (id, group_id, config_data, version, changed_by, change_reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		version.ID, version.GroupID, version.ConfigData,
		version.Version, version.ChangedBy, version.ChangeReason, version.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create config version: %w", err)
	}

	return nil
}

func (r *postgresVersioningRepository) GetVersions(ctx context.Context, groupID int64) ([]ConfigVersion, error) {
	query := `
		SELECT id, group_id, config_data, version, changed_by, change_reason, created_at
		FROM config_versions
		WHERE group_id = $1
		ORDER BY version DESC
	`

	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query config versions: %w", err)
	}
	defer rows.Close()

	var versions []ConfigVersion
	for rows.Next() {
		var v ConfigVersion
		if err := rows.Scan(
			&v.ID, &v.GroupID, &v.ConfigData,
			&v.Version, &v.ChangedBy, &v.ChangeReason, &v.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan config version: %w", err)
		}
		versions = append(versions, v)
	}

	return versions, rows.Err()
}

func (r *postgresVersioningRepository) GetVersion(ctx context.Context, groupID int64, version int) (*ConfigVersion, error) {
	query := `
		SELECT id, group_id, config_data, version, changed_by, change_reason, created_at
		FROM config_versions
		WHERE group_id = $1 AND version = $2
	`

	var v ConfigVersion
	err := r.db.QueryRowContext(ctx, query, groupID, version).Scan(
		&v.ID, &v.GroupID, &v.ConfigData,
		&v.Version, &v.ChangedBy, &v.ChangeReason, &v.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get config version: %w", err)
	}

	return &v, nil
}

func (r *postgresVersioningRepository) CreateAuditLog(ctx context.Context, log *AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now()
	}

	var oldValueJSON, newValueJSON []byte
	var err error

	if log.OldValue != nil {
		oldValueJSON, err = json.Marshal(log.OldValue)
		if err != nil {
			return fmt.Errorf("failed to marshal old value: %w", err)
		}
	}

	if log.NewValue != nil {
		newValueJSON, err = json.Marshal(log.NewValue)
		if err != nil {
			return fmt.Errorf("failed to marshal new value: %w", err)
		}
	}

	query := `
		INSERT INTO config_audit_logs (id, group_id, entity_type, action, old_value, new_value, changed_by, change_reason, ip_address, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.db.ExecContext(ctx, query,
		log.ID, log.GroupID, log.EntityType, log.Action,
		oldValueJSON, newValueJSON, log.ChangedBy, log.ChangeReason, log.IPAddress, log.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}

	return nil
}

func (r *postgresVersioningRepository) GetAuditLogs(ctx context.Context, groupID *int64, entityType string, limit int) ([]AuditLog, error) {
	var query string
	var args []interface{}

	if groupID != nil {
		query = `
			SELECT id, group_id, entity_type, action, old_value, new_value, changed_by, change_reason, ip_address, timestamp
			FROM config_audit_logs
			WHERE group_id = $1
			ORDER BY timestamp DESC
			LIMIT $2
		`
		args = []interface{}{*groupID, limit}
	} else if entityType != "" {
		query = `
			SELECT id, group_id, entity_type, action, old_value, new_value, changed_by, change_reason, ip_address, timestamp
			FROM config_audit_logs
			WHERE entity_type = $1
			ORDER BY timestamp DESC
			LIMIT $2
		`
		args = []interface{}{entityType, limit}
	} else {
		query = `
			SELECT id, group_id, entity_type, action, old_value, new_value, changed_by, change_reason, ip_address, timestamp
			FROM config_audit_logs
			ORDER BY timestamp DESC
			LIMIT $1
		`
		args = []interface{}{limit}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	var logs []AuditLog
	for rows.Next() {
		var log AuditLog
		var oldValueJSON, newValueJSON []byte
		var groupIDPtr *int64
		var changeReason, ipAddress sql.NullString

		if err := rows.Scan(
			&log.ID, &groupIDPtr, &log.EntityType, &log.Action,
			&oldValueJSON, &newValueJSON, &log.ChangedBy, &changeReason, &ipAddress, &log.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}

		log.GroupID = groupIDPtr
		log.ChangeReason = changeReason.String
		log.IPAddress = ipAddress.String

		if len(oldValueJSON) > 0 {
			if err := json.Unmarshal(oldValueJSON, &log.OldValue); err != nil {
				return nil, fmt.Errorf("failed to unmarshal old value: %w", err)
			}
		}

		if len(newValueJSON) > 0 {
			if err := json.Unmarshal(newValueJSON, &log.NewValue); err != nil {
				return nil, fmt.Errorf("failed to unmarshal new value: %w", err)
			}
		}

		logs = append(logs, log)
	}

	return logs, rows.Err()
}

func (r *postgresVersioningRepository) GetNextVersion(ctx context.Context, groupID int64) (int, error) {
	query := `SELECT COALESCE(MAX(version), 0) + 1 FROM config_versions WHERE group_id = $1`

	var version int
	err := r.db.QueryRowContext(ctx, query, groupID).Scan(&version)
	if err != nil {
		return 1, nil // First version
	}

	return version, nil
}
