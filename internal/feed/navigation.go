package feed

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Cursor returns the stored cursor for a user, creating a zero-valued
// navigation row on first access. No bounds validation happens here; only
// the controller knows the catalog size at the moment of use.
func (s *Service) Cursor(ctx context.Context, userID UserID) (int64, error) {
	var state UserNavState
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID.String()).
		Take(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		seed := UserNavState{UserID: userID.String()}
		if err := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}},
				DoNothing: true,
			}).
			Create(&seed).Error; err != nil {
			s.logError(opCursor, "seed_failed", err, zap.String("user_id", userID.String()))
			return 0, newServiceError(opCursor, "seed_failed", err)
		}
		return 0, nil
	}
	if err != nil {
		s.logError(opCursor, "query_failed", err, zap.String("user_id", userID.String()))
		return 0, newServiceError(opCursor, "query_failed", err)
	}
	return state.CursorIndex, nil
}

// SetCursor upserts the user's cursor, last writer wins.
func (s *Service) SetCursor(ctx context.Context, userID UserID, index int64) error {
	state := UserNavState{UserID: userID.String(), CursorIndex: index}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"cursor_idx"}),
		}).
		Create(&state).Error
	if err != nil {
		s.logError(opSetCursor, "upsert_failed", err, zap.String("user_id", userID.String()))
		return newServiceError(opSetCursor, "upsert_failed", err)
	}
	return nil
}

// SetPendingComment upserts the user's armed comment target, last writer
// wins. A nil videoID clears the target.
func (s *Service) SetPendingComment(ctx context.Context, userID UserID, videoID *int64) error {
	return s.setPendingComment(s.db.WithContext(ctx), userID, videoID)
}

func (s *Service) setPendingComment(tx *gorm.DB, userID UserID, videoID *int64) error {
	state := UserNavState{UserID: userID.String(), PendingVideoID: videoID}
	err := tx.
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"pending_video_id": videoID}),
		}).
		Create(&state).Error
	if err != nil {
		s.logError(opSetPending, "upsert_failed", err, zap.String("user_id", userID.String()))
		return newServiceError(opSetPending, "upsert_failed", err)
	}
	return nil
}

// PendingComment returns the user's armed comment target, or nil when no
// comment is pending.
func (s *Service) PendingComment(ctx context.Context, userID UserID) (*int64, error) {
	var state UserNavState
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID.String()).
		Take(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		s.logError(opPendingComment, "query_failed", err, zap.String("user_id", userID.String()))
		return nil, newServiceError(opPendingComment, "query_failed", err)
	}
	return state.PendingVideoID, nil
}
