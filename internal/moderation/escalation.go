package moderation

import (
	"time"

	"github.com/google/uuid"

	"warden/pkg/metrics"
	"warden/pkg/models"
)

// EscalationEngine is the per-user warning state machine: Clean below
// MuteThreshold, MuteTier from MuteThreshold, KickTier from
// KickThreshold. It is evaluated after every warning and emits at most
// one sanction per evaluation, always the highest tier crossed.
type EscalationEngine struct {
	ledger *WarningLedger
	mutes  *MuteScheduler
}

func NewEscalationEngine(ledger *WarningLedger, mutes *MuteScheduler) *EscalationEngine {
	return &EscalationEngine{
		ledger: ledger,
		mutes:  mutes,
	}
}

// OnWarning evaluates the thresholds after a warning moved the active
// count from prevCount to newCount. Crossing into KickTier clears the
// user's active warnings (fresh start for the next escalation cycle)
// and does not additionally emit the mute-tier action.
func (e *EscalationEngine) OnWarning(groupID, userID int64, prevCount, newCount int, policy EscalationPolicy, now time.Time) []models.Action {
	if !policy.Valid() {
		return nil
	}

	if newCount >= policy.KickThreshold && prevCount < policy.KickThreshold {
		metrics.EscalationsTotal.WithLabelValues("kick").Inc()
		e.ledger.ClearAll(groupID, userID)

		kind := policy.AutoAction
		if kind != models.ActionBan {
			kind = models.ActionKick
		}
		action := models.Action{
			ID:       uuid.New().String(),
			Kind:     kind,
			GroupID:  groupID,
			UserID:   userID,
			Rule:     string(RuleEscalation),
			Reason:   "warning limit reached",
			IssuedAt: now,
		}
		if kind == models.ActionBan {
			e.mutes.ScheduleBan(groupID, userID, 0, action.Reason)
		}
		return []models.Action{action}
	}

	if newCount >= policy.MuteThreshold && prevCount < policy.MuteThreshold {
		metrics.EscalationsTotal.WithLabelValues("mute").Inc()
		restriction := e.mutes.ScheduleMute(groupID, userID, policy.MuteDuration, "warning threshold reached")
		return []models.Action{{
			ID:              uuid.New().String(),
			Kind:            models.ActionMute,
			GroupID:         groupID,
			UserID:          userID,
			Rule:            string(RuleEscalation),
			Reason:          restriction.Reason,
			DurationSeconds: int64(policy.MuteDuration / time.Second),
			IssuedAt:        now,
		}}
	}

	return nil
}

// Rollback undoes the local restriction record behind a sanction whose
// delivery failed at the transport boundary, so the engine does not
// believe a sanction took effect when it did not. The caller owns the
// retry policy.
func (e *EscalationEngine) Rollback(action models.Action) {
	switch action.Kind {
	case models.ActionMute:
		e.mutes.Cancel(action.GroupID, action.UserID, RestrictionMute)
	case models.ActionBan:
		e.mutes.Cancel(action.GroupID, action.UserID, RestrictionBan)
	}
}
