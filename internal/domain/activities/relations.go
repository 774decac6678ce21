package activities

import (
	"context"

	"github.com/jackc/pgx/v5"

	"privacyhub/internal/domain/changes"
	"privacyhub/internal/domain/dal"
	"privacyhub/internal/domain/relations"
	"privacyhub/internal/platform/db"
)

// Sync replaces the ids linked to the activity through rel. An unchanged set
// writes nothing, not even a change entry.
func (s *Store) Sync(ctx context.Context, rel Relation, orgID, activityID string, ids []string, actor changes.Actor) (relations.SyncResult, error) {
	return db.InTxResult(ctx, s.DB, func(tx pgx.Tx) (relations.SyncResult, error) {
		return syncTx(ctx, tx, rel, orgID, activityID, ids, actor)
	})
}

func syncTx(ctx context.Context, tx pgx.Tx, rel Relation, orgID, activityID string, ids []string, actor changes.Actor) (relations.SyncResult, error) {
	res, err := relations.SyncTx(ctx, tx, rel.Junction, activityID, orgID, ids)
	if err != nil {
		return relations.SyncResult{}, err
	}
	if !res.Changed() {
		return res, nil
	}
	before := append(append([]string{}, res.Unchanged...), res.Removed...)
	after := append(append([]string{}, res.Unchanged...), res.Added...)
	if err := changes.RecordRelation(ctx, tx, orgID, changes.ProcessingActivity, activityID, rel.Field, before, after, actor); err != nil {
		return relations.SyncResult{}, err
	}
	return res, nil
}

// Link adds ids to the activity and returns the ones that were not linked yet.
func (s *Store) Link(ctx context.Context, rel Relation, orgID, activityID string, ids []string, actor changes.Actor) ([]string, error) {
	return db.InTxResult(ctx, s.DB, func(tx pgx.Tx) ([]string, error) {
		before, err := relations.ListTx(ctx, tx, rel.Junction, activityID, orgID)
		if err != nil {
			return nil, err
		}
		added, err := relations.LinkTx(ctx, tx, rel.Junction, activityID, orgID, ids)
		if err != nil {
			return nil, err
		}
		if len(added) == 0 {
			return added, nil
		}
		after := append(append([]string{}, before...), added...)
		if err := changes.RecordRelation(ctx, tx, orgID, changes.ProcessingActivity, activityID, rel.Field, before, after, actor); err != nil {
			return nil, err
		}
		return added, nil
	})
}

// Unlink removes one link. Unlinking something that is not linked succeeds
// and records nothing.
func (s *Store) Unlink(ctx context.Context, rel Relation, orgID, activityID, id string, actor changes.Actor) (bool, error) {
	return db.InTxResult(ctx, s.DB, func(tx pgx.Tx) (bool, error) {
		removed, err := relations.UnlinkTx(ctx, tx, rel.Junction, activityID, orgID, id)
		if err != nil || !removed {
			return removed, err
		}
		after, err := relations.ListTx(ctx, tx, rel.Junction, activityID, orgID)
		if err != nil {
			return false, err
		}
		before := append(append([]string{}, after...), id)
		if err := changes.RecordRelation(ctx, tx, orgID, changes.ProcessingActivity, activityID, rel.Field, before, after, actor); err != nil {
			return false, err
		}
		return true, nil
	})
}

func (s *Store) ListLinked(ctx context.Context, rel Relation, orgID, activityID string) ([]string, error) {
	return relations.NewEngine(s.DB).List(ctx, rel.Junction, activityID, orgID)
}

func listTx(ctx context.Context, q dal.Querier, rel Relation, orgID, activityID string) ([]string, error) {
	ids, err := relations.ListTx(ctx, q, rel.Junction, activityID, orgID)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

func (s *Store) SyncPurposes(ctx context.Context, orgID, activityID string, ids []string, actor changes.Actor) (relations.SyncResult, error) {
	return s.Sync(ctx, Purposes, orgID, activityID, ids, actor)
}

func (s *Store) LinkPurposes(ctx context.Context, orgID, activityID string, ids []string, actor changes.Actor) ([]string, error) {
	return s.Link(ctx, Purposes, orgID, activityID, ids, actor)
}

func (s *Store) UnlinkPurpose(ctx context.Context, orgID, activityID, purposeID string, actor changes.Actor) (bool, error) {
	return s.Unlink(ctx, Purposes, orgID, activityID, purposeID, actor)
}

func (s *Store) ListPurposes(ctx context.Context, orgID, activityID string) ([]string, error) {
	return s.ListLinked(ctx, Purposes, orgID, activityID)
}

func (s *Store) SyncDataCategories(ctx context.Context, orgID, activityID string, ids []string, actor changes.Actor) (relations.SyncResult, error) {
	return s.Sync(ctx, DataCategories, orgID, activityID, ids, actor)
}

func (s *Store) LinkDataCategories(ctx context.Context, orgID, activityID string, ids []string, actor changes.Actor) ([]string, error) {
	return s.Link(ctx, DataCategories, orgID, activityID, ids, actor)
}

func (s *Store) UnlinkDataCategory(ctx context.Context, orgID, activityID, categoryID string, actor changes.Actor) (bool, error) {
	return s.Unlink(ctx, DataCategories, orgID, activityID, categoryID, actor)
}

func (s *Store) ListDataCategories(ctx context.Context, orgID, activityID string) ([]string, error) {
	return s.ListLinked(ctx, DataCategories, orgID, activityID)
}

func (s *Store) SyncDataSubjects(ctx context.Context, orgID, activityID string, ids []string, actor changes.Actor) (relations.SyncResult, error) {
	return s.Sync(ctx, DataSubjects, orgID, activityID, ids, actor)
}

func (s *Store) LinkDataSubjects(ctx context.Context, orgID, activityID string, ids []string, actor changes.Actor) ([]string, error) {
	return s.Link(ctx, DataSubjects, orgID, activityID, ids, actor)
}

func (s *Store) UnlinkDataSubject(ctx context.Context, orgID, activityID, subjectID string, actor changes.Actor) (bool, error) {
	return s.Unlink(ctx, DataSubjects, orgID, activityID, subjectID, actor)
}

func (s *Store) ListDataSubjects(ctx context.Context, orgID, activityID string) ([]string, error) {
	return s.ListLinked(ctx, DataSubjects, orgID, activityID)
}

func (s *Store) SyncRecipients(ctx context.Context, orgID, activityID string, ids []string, actor changes.Actor) (relations.SyncResult, error) {
	return s.Sync(ctx, Recipients, orgID, activityID, ids, actor)
}

func (s *Store) LinkRecipients(ctx context.Context, orgID, activityID string, ids []string, actor changes.Actor) ([]string, error) {
	return s.Link(ctx, Recipients, orgID, activityID, ids, actor)
}

func (s *Store) UnlinkRecipient(ctx context.Context, orgID, activityID, recipientID string, actor changes.Actor) (bool, error) {
	return s.Unlink(ctx, Recipients, orgID, activityID, recipientID, actor)
}

func (s *Store) ListRecipients(ctx context.Context, orgID, activityID string) ([]string, error) {
	return s.ListLinked(ctx, Recipients, orgID, activityID)
}

func (s *Store) SyncAssets(ctx context.Context, orgID, activityID string, ids []string, actor changes.Actor) (relations.SyncResult, error) {
	return s.Sync(ctx, Assets, orgID, activityID, ids, actor)
}

func (s *Store) LinkAssets(ctx context.Context, orgID, activityID string, ids []string, actor changes.Actor) ([]string, error) {
	return s.Link(ctx, Assets, orgID, activityID, ids, actor)
}

func (s *Store) UnlinkAsset(ctx context.Context, orgID, activityID, assetID string, actor changes.Actor) (bool, error) {
	return s.Unlink(ctx, Assets, orgID, activityID, assetID, actor)
}

func (s *Store) ListAssets(ctx context.Context, orgID, activityID string) ([]string, error) {
	return s.ListLinked(ctx, Assets, orgID, activityID)
}
