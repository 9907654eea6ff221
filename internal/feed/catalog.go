package feed

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InsertVideoParams describes a catalog submission.
type InsertVideoParams struct {
	AddedBy        UserID
	MediaKind      MediaKind
	AssetRef       string
	AssetUniqueRef string
	Caption        string
}

// InsertVideo appends a record to the catalog. The caption is trimmed and
// truncated before storage. Submissions whose asset unique ref is already
// known fail with ErrDuplicateAsset and leave the catalog untouched.
func (s *Service) InsertVideo(ctx context.Context, params InsertVideoParams) (VideoRecord, error) {
	if _, err := ParseMediaKind(string(params.MediaKind)); err != nil {
		return VideoRecord{}, newServiceError(opInsertVideo, "invalid_media_kind", err)
	}
	if params.AssetRef == "" || params.AssetUniqueRef == "" {
		return VideoRecord{}, newServiceError(opInsertVideo, "invalid_asset_ref", ErrInvalidAssetRef)
	}

	record := VideoRecord{
		AssetRef:       params.AssetRef,
		AssetUniqueRef: params.AssetUniqueRef,
		MediaKind:      params.MediaKind,
		Caption:        clipText(params.Caption, maxCaptionLength),
		CreatedAt:      s.clock().UTC(),
		AddedBy:        params.AddedBy.String(),
	}

	// The unique index on asset_unique_ref is the arbiter. DoNothing turns a
	// duplicate submission into zero affected rows instead of a driver error.
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "asset_unique_ref"}},
			DoNothing: true,
		}).
		Create(&record)
	if result.Error != nil {
		s.logError(opInsertVideo, "insert_failed", result.Error,
			zap.String("asset_unique_ref", params.AssetUniqueRef))
		return VideoRecord{}, newServiceError(opInsertVideo, "insert_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return VideoRecord{}, ErrDuplicateAsset
	}

	return record, nil
}

// CountVideos returns the number of addressable catalog records.
func (s *Service) CountVideos(ctx context.Context) (int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&VideoRecord{}).Count(&total).Error; err != nil {
		s.logError(opCountVideos, "count_failed", err)
		return 0, newServiceError(opCountVideos, "count_failed", err)
	}
	return total, nil
}

// VideoAtPosition returns the record at the zero-based offset into the
// id-ascending order, or ErrVideoNotFound when the offset is out of range.
func (s *Service) VideoAtPosition(ctx context.Context, index int64) (VideoRecord, error) {
	if index < 0 {
		return VideoRecord{}, ErrVideoNotFound
	}

	var record VideoRecord
	err := s.db.WithContext(ctx).
		Order("id ASC").
		Offset(int(index)).
		Limit(1).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return VideoRecord{}, ErrVideoNotFound
	}
	if err != nil {
		s.logError(opVideoAt, "query_failed", err, zap.Int64("index", index))
		return VideoRecord{}, newServiceError(opVideoAt, "query_failed", err)
	}
	return record, nil
}

// VideoByID returns the record with the given identity, or ErrVideoNotFound.
func (s *Service) VideoByID(ctx context.Context, videoID int64) (VideoRecord, error) {
	var record VideoRecord
	err := s.db.WithContext(ctx).Where("id = ?", videoID).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return VideoRecord{}, ErrVideoNotFound
	}
	if err != nil {
		s.logError(opVideoByID, "query_failed", err, zap.Int64("video_id", videoID))
		return VideoRecord{}, newServiceError(opVideoByID, "query_failed", err)
	}
	return record, nil
}

// DeleteVideo removes a record and cascades: its like and comment facts are
// deleted and any navigation row holding it as the armed comment target is
// cleared, all in one transaction. The cascade is explicit because the
// SQLite foreign_keys pragma is not guaranteed on for every connection.
func (s *Service) DeleteVideo(ctx context.Context, videoID int64) error {
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ?", videoID).Delete(&VideoRecord{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrVideoNotFound
		}
		if err := tx.Where("video_id = ?", videoID).Delete(&LikeFact{}).Error; err != nil {
			return err
		}
		if err := tx.Where("video_id = ?", videoID).Delete(&CommentFact{}).Error; err != nil {
			return err
		}
		return tx.Model(&UserNavState{}).
			Where("pending_video_id = ?", videoID).
			Update("pending_video_id", nil).Error
	})
	if errors.Is(txErr, ErrVideoNotFound) {
		return ErrVideoNotFound
	}
	if txErr != nil {
		s.logError(opDeleteVideo, "delete_failed", txErr, zap.Int64("video_id", videoID))
		return newServiceError(opDeleteVideo, "delete_failed", txErr)
	}
	return nil
}
