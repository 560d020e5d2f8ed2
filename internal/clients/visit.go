package clients

import (
	"context"
	"time"

	"github.com/barberia/backoffice/internal/audit"
)

// RecordVisit moves the client's last visit forward to at. Earlier visits are
// ignored so that completing an old appointment never rewinds the date.
func RecordVisit(ctx context.Context, rec *audit.Recorder, tx TxRepository, clientID int64, at time.Time) error {
	before, err := tx.GetForUpdate(ctx, clientID)
	if err != nil {
		return err
	}
	if before.LastVisitAt != nil && !at.After(*before.LastVisitAt) {
		return nil
	}
	after := before
	visit := at
	after.LastVisitAt = &visit
	if err := tx.Update(ctx, after); err != nil {
		return err
	}
	return rec.Record(ctx, tx.Audit(), audit.Change{Table: audit.TableClients, Operation: audit.OpUpdate, RecordID: clientID, Old: before, New: after})
}
