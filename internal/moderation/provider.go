package moderation

import "context"

type defaultedProvider struct {
	inner    ConfigProvider
	defaults EscalationPolicy
}

// NewDefaultedProvider wraps a ConfigProvider so groups that never
// configured an escalation policy fall back to the engine-wide
// default. Missing configs still pass through untouched; a group
// without any config keeps all rules disabled.
func NewDefaultedProvider(inner ConfigProvider, defaults EscalationPolicy) ConfigProvider {
	return &defaultedProvider{inner: inner, defaults: defaults}
}

func (p *defaultedProvider) Snapshot(ctx context.Context, groupID int64) (*GroupConfig, error) {
	cfg, err := p.inner.Snapshot(ctx, groupID)
	if err != nil {
		return cfg, err
	}

	if cfg.Escalation == (EscalationPolicy{}) && p.defaults.Valid() {
		cfg.Escalation = p.defaults
	}
	return cfg, nil
}
