package feed

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	noOpLogger         = zap.NewNop()
)

// ServiceError carries a stable operation code alongside the underlying cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew     = "feed.service.new"
	opInsertVideo    = "feed.insert_video"
	opCountVideos    = "feed.count_videos"
	opVideoAt        = "feed.video_at_position"
	opVideoByID      = "feed.video_by_id"
	opDeleteVideo    = "feed.delete_video"
	opRecordLike     = "feed.record_like"
	opRecordComment  = "feed.record_comment"
	opCounts         = "feed.counts"
	opRecentComments = "feed.recent_comments"
	opCursor         = "feed.cursor"
	opSetCursor      = "feed.set_cursor"
	opPendingComment = "feed.pending_comment"
	opSetPending     = "feed.set_pending_comment"
	opDispatch       = "feed.dispatch"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

const userLockStripes = 64

// ServiceConfig describes the dependencies of the feed service.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	// RandomIndex returns a uniform integer in [0, n). Defaults to
	// math/rand/v2 when nil; tests inject a deterministic source.
	RandomIndex func(n int) int
	Logger      *zap.Logger
}

// Service implements the video catalog, interaction ledger, navigation state
// and the feed controller over one shared backing store.
type Service struct {
	db          *gorm.DB
	clock       func() time.Time
	randomIndex func(n int) int
	logger      *zap.Logger

	// userLocks serializes dispatches for the same user. Two rapid actions
	// from one user must not interleave between cursor read and write.
	userLocks [userLockStripes]sync.Mutex
}

// NewService constructs the feed service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	randomIndex := cfg.RandomIndex
	if randomIndex == nil {
		randomIndex = rand.IntN
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:          cfg.Database,
		clock:       clock,
		randomIndex: randomIndex,
		logger:      logger,
	}, nil
}

func (s *Service) userLock(userID UserID) *sync.Mutex {
	hasher := fnv.New32a()
	hasher.Write([]byte(userID.String())) //nolint:errcheck
	return &s.userLocks[hasher.Sum32()%userLockStripes]
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil || s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("feed service error", attrs...)
}
