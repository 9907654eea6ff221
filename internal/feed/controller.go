package feed

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Direction enumerates feed navigation moves.
type Direction string

const (
	// DirectionNext advances the cursor by one, clamped to the last position.
	DirectionNext Direction = "next"
	// DirectionPrev moves the cursor back by one, clamped to zero.
	DirectionPrev Direction = "prev"
	// DirectionRandom jumps to a uniformly random position.
	DirectionRandom Direction = "random"
)

// ErrInvalidDirection indicates an unrecognized navigation direction.
var ErrInvalidDirection = errors.New("feed: invalid direction")

// ParseDirection validates raw input and returns a Direction.
func ParseDirection(rawInput string) (Direction, error) {
	switch Direction(rawInput) {
	case DirectionNext, DirectionPrev, DirectionRandom:
		return Direction(rawInput), nil
	default:
		return "", ErrInvalidDirection
	}
}

// Action is the tagged union consumed by Dispatch. Every variant carries the
// acting user; transition logic lives in one place instead of being spread
// over collaborator callbacks.
type Action interface {
	actingUser() UserID
}

// ViewFeed requests the user's current feed position.
type ViewFeed struct {
	User UserID
}

// Advance moves the user's cursor and requests the resulting position.
type Advance struct {
	User      UserID
	Direction Direction
}

// Like records a like for the addressed video.
type Like struct {
	User    UserID
	VideoID int64
}

// BeginComment arms the user's next free-text input as a comment on the
// addressed video.
type BeginComment struct {
	User    UserID
	VideoID int64
}

// SubmitCommentText consumes the user's armed comment target, if any.
type SubmitCommentText struct {
	User UserID
	Text string
}

// AddVideo submits a new catalog record.
type AddVideo struct {
	User           UserID
	MediaKind      MediaKind
	AssetRef       string
	AssetUniqueRef string
	Caption        string
}

// ListComments requests the most recent comments for the addressed video.
type ListComments struct {
	User    UserID
	VideoID int64
	Limit   int
}

// RemoveVideo deletes a catalog record and everything attached to it.
type RemoveVideo struct {
	User    UserID
	VideoID int64
}

func (a ViewFeed) actingUser() UserID          { return a.User }
func (a Advance) actingUser() UserID           { return a.User }
func (a Like) actingUser() UserID              { return a.User }
func (a BeginComment) actingUser() UserID      { return a.User }
func (a SubmitCommentText) actingUser() UserID { return a.User }
func (a AddVideo) actingUser() UserID          { return a.User }
func (a ListComments) actingUser() UserID      { return a.User }
func (a RemoveVideo) actingUser() UserID       { return a.User }

// ResultKind enumerates the signals a dispatch can produce. Expected
// alternate outcomes (duplicate, already liked, empty catalog) are signals,
// never errors.
type ResultKind string

const (
	// ResultFeedView carries the video at the user's (possibly corrected) cursor.
	ResultFeedView ResultKind = "feed_view"
	// ResultEmptyCatalog signals there is nothing to show; a normal state.
	ResultEmptyCatalog ResultKind = "empty_catalog"
	// ResultLikeRecorded signals the like was newly counted.
	ResultLikeRecorded ResultKind = "like_recorded"
	// ResultAlreadyLiked signals the user had liked this video before.
	ResultAlreadyLiked ResultKind = "already_liked"
	// ResultCommentPromptArmed signals the next free-text input will be a comment.
	ResultCommentPromptArmed ResultKind = "comment_prompt_armed"
	// ResultCommentStored signals the armed comment was recorded.
	ResultCommentStored ResultKind = "comment_stored"
	// ResultCommentIgnored signals the text was not consumed as a comment.
	ResultCommentIgnored ResultKind = "comment_ignored"
	// ResultVideoAdded signals a successful catalog insert.
	ResultVideoAdded ResultKind = "video_added"
	// ResultDuplicateVideo signals the physical asset is already in the catalog.
	ResultDuplicateVideo ResultKind = "duplicate_video"
	// ResultCommentList carries the requested recent comments.
	ResultCommentList ResultKind = "comment_list"
	// ResultVideoRemoved signals a successful catalog delete.
	ResultVideoRemoved ResultKind = "video_removed"
	// ResultVideoGone signals the addressed video no longer exists.
	ResultVideoGone ResultKind = "video_gone"
)

// FeedView is a consistent snapshot of one feed position.
type FeedView struct {
	Video    VideoRecord
	Counts   InteractionCounts
	Position int64
	Total    int64
}

// Result is the structured outcome of one dispatched action.
type Result struct {
	Kind     ResultKind
	View     *FeedView
	Video    *VideoRecord
	Counts   *InteractionCounts
	Comments []CommentFact
}

// Dispatch resolves one action against the store and returns a consistent
// snapshot. Dispatches for the same user are serialized; different users
// proceed concurrently. Errors are reserved for infrastructure failure.
func (s *Service) Dispatch(ctx context.Context, action Action) (Result, error) {
	// The validated (trimmed) identifier keys locks and rows; " x " and "x"
	// must never address distinct state.
	user, err := NewUserID(action.actingUser().String())
	if err != nil {
		return Result{}, newServiceError(opDispatch, "invalid_user", err)
	}

	lock := s.userLock(user)
	lock.Lock()
	defer lock.Unlock()

	switch a := action.(type) {
	case ViewFeed:
		return s.handleViewFeed(ctx, user)
	case Advance:
		a.User = user
		return s.handleAdvance(ctx, a)
	case Like:
		a.User = user
		return s.handleLike(ctx, a)
	case BeginComment:
		a.User = user
		return s.handleBeginComment(ctx, a)
	case SubmitCommentText:
		a.User = user
		return s.handleSubmitCommentText(ctx, a)
	case AddVideo:
		a.User = user
		return s.handleAddVideo(ctx, a)
	case ListComments:
		a.User = user
		return s.handleListComments(ctx, a)
	case RemoveVideo:
		a.User = user
		return s.handleRemoveVideo(ctx, a)
	default:
		return Result{}, newServiceError(opDispatch, "unknown_action", nil)
	}
}

func clampIndex(index, total int64) int64 {
	if index < 0 {
		return 0
	}
	if index > total-1 {
		return total - 1
	}
	return index
}

func (s *Service) handleViewFeed(ctx context.Context, user UserID) (Result, error) {
	total, err := s.CountVideos(ctx)
	if err != nil {
		return Result{}, err
	}
	if total == 0 {
		return Result{Kind: ResultEmptyCatalog}, nil
	}

	stored, err := s.Cursor(ctx, user)
	if err != nil {
		return Result{}, err
	}

	index := clampIndex(stored, total)
	if index != stored {
		if err := s.SetCursor(ctx, user, index); err != nil {
			return Result{}, err
		}
	}

	return s.viewAt(ctx, user, index, total)
}

func (s *Service) handleAdvance(ctx context.Context, action Advance) (Result, error) {
	total, err := s.CountVideos(ctx)
	if err != nil {
		return Result{}, err
	}
	if total == 0 {
		return Result{Kind: ResultEmptyCatalog}, nil
	}

	stored, err := s.Cursor(ctx, action.User)
	if err != nil {
		return Result{}, err
	}

	var index int64
	switch action.Direction {
	case DirectionNext:
		index = clampIndex(stored+1, total)
	case DirectionPrev:
		index = clampIndex(stored-1, total)
	case DirectionRandom:
		index = int64(s.randomIndex(int(total)))
	default:
		return Result{}, newServiceError(opDispatch, "invalid_direction", ErrInvalidDirection)
	}

	if err := s.SetCursor(ctx, action.User, index); err != nil {
		return Result{}, err
	}

	return s.viewAt(ctx, action.User, index, total)
}

// viewAt fetches the record at index with its counts. A miss at a
// freshly-clamped index means the catalog shrank again between clamp and
// fetch; fall back to position zero, and only then report an empty catalog.
func (s *Service) viewAt(ctx context.Context, user UserID, index, total int64) (Result, error) {
	video, err := s.VideoAtPosition(ctx, index)
	if errors.Is(err, ErrVideoNotFound) {
		index = 0
		if err := s.SetCursor(ctx, user, index); err != nil {
			return Result{}, err
		}
		video, err = s.VideoAtPosition(ctx, index)
		if errors.Is(err, ErrVideoNotFound) {
			return Result{Kind: ResultEmptyCatalog}, nil
		}
		if err != nil {
			return Result{}, err
		}
		if total, err = s.CountVideos(ctx); err != nil {
			return Result{}, err
		}
	} else if err != nil {
		return Result{}, err
	}

	counts, err := s.Counts(ctx, video.ID)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Kind: ResultFeedView,
		View: &FeedView{Video: video, Counts: counts, Position: index, Total: total},
	}, nil
}

func (s *Service) handleLike(ctx context.Context, action Like) (Result, error) {
	video, err := s.VideoByID(ctx, action.VideoID)
	if errors.Is(err, ErrVideoNotFound) {
		return Result{Kind: ResultVideoGone}, nil
	}
	if err != nil {
		return Result{}, err
	}

	accepted, err := s.RecordLike(ctx, video.ID, action.User)
	if err != nil {
		return Result{}, err
	}

	counts, err := s.Counts(ctx, video.ID)
	if err != nil {
		return Result{}, err
	}

	kind := ResultLikeRecorded
	if !accepted {
		kind = ResultAlreadyLiked
	}
	return Result{Kind: kind, Video: &video, Counts: &counts}, nil
}

func (s *Service) handleBeginComment(ctx context.Context, action BeginComment) (Result, error) {
	video, err := s.VideoByID(ctx, action.VideoID)
	if errors.Is(err, ErrVideoNotFound) {
		return Result{Kind: ResultVideoGone}, nil
	}
	if err != nil {
		return Result{}, err
	}

	target := video.ID
	if err := s.SetPendingComment(ctx, action.User, &target); err != nil {
		return Result{}, err
	}

	return Result{Kind: ResultCommentPromptArmed, Video: &video}, nil
}

// handleSubmitCommentText consumes the armed comment target exactly once:
// the fact insert and the target clear commit together, so a second stray
// message can never produce a second comment.
func (s *Service) handleSubmitCommentText(ctx context.Context, action SubmitCommentText) (Result, error) {
	pending, err := s.PendingComment(ctx, action.User)
	if err != nil {
		return Result{}, err
	}
	if pending == nil {
		return Result{Kind: ResultCommentIgnored}, nil
	}

	stored := false
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		stored, err = s.recordComment(tx, *pending, action.User, action.Text)
		if err != nil {
			return err
		}
		return s.setPendingComment(tx, action.User, nil)
	})
	if txErr != nil {
		s.logError(opDispatch, "comment_consume_failed", txErr,
			zap.String("user_id", action.User.String()))
		return Result{}, newServiceError(opDispatch, "comment_consume_failed", txErr)
	}

	if !stored {
		return Result{Kind: ResultCommentIgnored}, nil
	}

	counts, err := s.Counts(ctx, *pending)
	if err != nil {
		return Result{}, err
	}
	result := Result{Kind: ResultCommentStored, Counts: &counts}
	// Best effort: the target may have been removed since the prompt was armed.
	if video, lookupErr := s.VideoByID(ctx, *pending); lookupErr == nil {
		result.Video = &video
	}
	return result, nil
}

func (s *Service) handleAddVideo(ctx context.Context, action AddVideo) (Result, error) {
	record, err := s.InsertVideo(ctx, InsertVideoParams{
		AddedBy:        action.User,
		MediaKind:      action.MediaKind,
		AssetRef:       action.AssetRef,
		AssetUniqueRef: action.AssetUniqueRef,
		Caption:        action.Caption,
	})
	if errors.Is(err, ErrDuplicateAsset) {
		return Result{Kind: ResultDuplicateVideo}, nil
	}
	if err != nil {
		return Result{}, err
	}
	return Result{Kind: ResultVideoAdded, Video: &record}, nil
}

func (s *Service) handleListComments(ctx context.Context, action ListComments) (Result, error) {
	video, err := s.VideoByID(ctx, action.VideoID)
	if errors.Is(err, ErrVideoNotFound) {
		return Result{Kind: ResultVideoGone}, nil
	}
	if err != nil {
		return Result{}, err
	}

	facts, err := s.RecentComments(ctx, video.ID, action.Limit)
	if err != nil {
		return Result{}, err
	}
	return Result{Kind: ResultCommentList, Video: &video, Comments: facts}, nil
}

func (s *Service) handleRemoveVideo(ctx context.Context, action RemoveVideo) (Result, error) {
	err := s.DeleteVideo(ctx, action.VideoID)
	if errors.Is(err, ErrVideoNotFound) {
		return Result{Kind: ResultVideoGone}, nil
	}
	if err != nil {
		return Result{}, err
	}
	return Result{Kind: ResultVideoRemoved}, nil
}
