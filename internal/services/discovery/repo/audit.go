package repo

import (
	"context"
	"strings"
	"time"

	"webgap/internal/platform/logger"
	"webgap/internal/platform/store"
	"webgap/internal/services/discovery/domain"
)

// auditTable is the wide ClickHouse event table; one row per lifecycle event
const auditTable = "discovery_audit"

// CHAudit writes run lifecycle events to ClickHouse. All writes are
// best-effort: failures are logged and never surface to the stream
type CHAudit struct {
	ch  store.Clickhouse
	log logger.Logger
}

var _ domain.AuditPort = (*CHAudit)(nil)

// NewCHAudit returns an audit sink. A nil ch disables every write
func NewCHAudit(ch store.Clickhouse) *CHAudit {
	return &CHAudit{ch: ch, log: *logger.Named("audit")}
}

// RunStarted implements domain.AuditPort
func (a *CHAudit) RunStarted(ctx context.Context, runID string, p domain.Params, tileCount int) {
	a.insert(ctx, runID, "search_started", strings.Join(p.BusinessTypes, ","), p.Location, tileCount, domain.BusinessEvent{}, domain.DoneEvent{})
}

// BusinessFound implements domain.AuditPort
func (a *CHAudit) BusinessFound(ctx context.Context, runID string, b domain.BusinessEvent) {
	a.insert(ctx, runID, "business_found", "", "", 0, b, domain.DoneEvent{})
}

// RunDone implements domain.AuditPort
func (a *CHAudit) RunDone(ctx context.Context, runID string, d domain.DoneEvent) {
	a.insert(ctx, runID, "search_done", "", "", d.TotalTiles, domain.BusinessEvent{}, d)
}

func (a *CHAudit) insert(
	ctx context.Context,
	runID, event, types, location string,
	tileCount int,
	b domain.BusinessEvent,
	d domain.DoneEvent,
) {
	if a.ch == nil {
		return
	}
	row := []any{
		time.Now().UTC(),
		runID,
		event,
		types,
		location,
		uint32(tileCount),
		b.Identity,
		b.Name,
		string(b.Source),
		uint32(d.TotalFound),
		uint32(d.TilesSearched),
	}
	if err := a.ch.Insert(ctx, auditTable, [][]any{row}); err != nil {
		a.log.Warn().Err(err).Str("event", event).Str("run_id", runID).Msg("audit insert failed")
	}
}
