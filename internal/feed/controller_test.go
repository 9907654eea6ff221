package feed

import (
	"context"
	"testing"
	"time"
)

func TestDispatchViewFeedEmptyCatalog(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	user := mustUserID(t, "viewer-1")

	result, err := service.Dispatch(ctx, ViewFeed{User: user})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Kind != ResultEmptyCatalog {
		t.Fatalf("expected empty catalog signal, got %s", result.Kind)
	}

	result, err = service.Dispatch(ctx, Advance{User: user, Direction: DirectionNext})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Kind != ResultEmptyCatalog {
		t.Fatalf("expected empty catalog signal for advance, got %s", result.Kind)
	}
}

func TestDispatchViewFeedIsIdempotent(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	user := mustUserID(t, "viewer-1")

	mustInsertVideo(t, service, "a")
	mustInsertVideo(t, service, "b")

	first, err := service.Dispatch(ctx, ViewFeed{User: user})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := service.Dispatch(ctx, ViewFeed{User: user})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.Kind != ResultFeedView || second.Kind != ResultFeedView {
		t.Fatalf("expected feed views, got %s and %s", first.Kind, second.Kind)
	}
	if first.View.Video.ID != second.View.Video.ID {
		t.Fatalf("expected identical video on repeated view")
	}
	if first.View.Counts != second.View.Counts {
		t.Fatalf("expected identical counts on repeated view")
	}
	if first.View.Position != second.View.Position {
		t.Fatalf("expected identical position on repeated view")
	}
}

func TestDispatchAdvanceClampsAtBounds(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	user := mustUserID(t, "mover-1")

	mustInsertVideo(t, service, "a")
	mustInsertVideo(t, service, "b")
	last := mustInsertVideo(t, service, "c")

	if err := service.SetCursor(ctx, user, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := service.Dispatch(ctx, Advance{User: user, Direction: DirectionNext})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.View.Position != 2 || result.View.Video.ID != last.ID {
		t.Fatalf("expected cursor to stay clamped at 2, got position %d", result.View.Position)
	}

	for _, expected := range []int64{1, 0} {
		result, err = service.Dispatch(ctx, Advance{User: user, Direction: DirectionPrev})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.View.Position != expected {
			t.Fatalf("expected position %d, got %d", expected, result.View.Position)
		}
	}

	// Another step back stays clamped at zero.
	result, err = service.Dispatch(ctx, Advance{User: user, Direction: DirectionPrev})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.View.Position != 0 {
		t.Fatalf("expected position to stay at 0, got %d", result.View.Position)
	}
}

func TestDispatchAdvanceRandomUsesInjectedSource(t *testing.T) {
	_, db := newTestService(t)

	service, err := NewService(ServiceConfig{
		Database:    db,
		Clock:       func() time.Time { return time.Unix(1700000600, 0).UTC() },
		RandomIndex: func(n int) int { return n - 1 },
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}

	ctx := context.Background()
	user := mustUserID(t, "gambler-1")

	mustInsertVideo(t, service, "a")
	mustInsertVideo(t, service, "b")
	last := mustInsertVideo(t, service, "c")

	result, err := service.Dispatch(ctx, Advance{User: user, Direction: DirectionRandom})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.View.Position != 2 || result.View.Video.ID != last.ID {
		t.Fatalf("expected random jump to last position, got %d", result.View.Position)
	}

	cursor, err := service.Cursor(ctx, user)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cursor != 2 {
		t.Fatalf("expected random position persisted, got %d", cursor)
	}
}

func TestDispatchViewFeedCorrectsStaleCursor(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	user := mustUserID(t, "returning-user")

	mustInsertVideo(t, service, "a")
	only := mustInsertVideo(t, service, "b")

	// Cursor persisted while the catalog was larger.
	if err := service.SetCursor(ctx, user, 9); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := service.Dispatch(ctx, ViewFeed{User: user})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Kind != ResultFeedView {
		t.Fatalf("expected feed view, got %s", result.Kind)
	}
	if result.View.Position != 1 || result.View.Video.ID != only.ID {
		t.Fatalf("expected clamp to last position, got %d", result.View.Position)
	}

	cursor, err := service.Cursor(ctx, user)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cursor != 1 {
		t.Fatalf("expected corrected cursor persisted, got %d", cursor)
	}
}

func TestViewAtFallsBackToZeroWhenIndexVanishes(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	user := mustUserID(t, "racer")

	first := mustInsertVideo(t, service, "a")
	mustInsertVideo(t, service, "b")

	// Simulate the catalog shrinking between clamp and fetch: the caller
	// believes there are five records but only two remain.
	result, err := service.viewAt(ctx, user, 4, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Kind != ResultFeedView {
		t.Fatalf("expected feed view, got %s", result.Kind)
	}
	if result.View.Position != 0 || result.View.Video.ID != first.ID {
		t.Fatalf("expected fallback to position 0, got position %d video %d",
			result.View.Position, result.View.Video.ID)
	}
	if result.View.Total != 2 {
		t.Fatalf("expected total re-read as 2, got %d", result.View.Total)
	}

	cursor, err := service.Cursor(ctx, user)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cursor != 0 {
		t.Fatalf("expected fallback cursor persisted, got %d", cursor)
	}
}

func TestViewAtEmptyCatalogAfterFallback(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	user := mustUserID(t, "racer")

	// Everything vanished after the caller counted; even position 0 misses.
	result, err := service.viewAt(ctx, user, 3, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Kind != ResultEmptyCatalog {
		t.Fatalf("expected empty catalog, got %s", result.Kind)
	}

	cursor, err := service.Cursor(ctx, user)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cursor != 0 {
		t.Fatalf("expected cursor reset persisted, got %d", cursor)
	}
}

func TestDispatchLikePassesThroughOutcome(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	user := mustUserID(t, "liker-1")

	video := mustInsertVideo(t, service, "likeable")

	result, err := service.Dispatch(ctx, Like{User: user, VideoID: video.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Kind != ResultLikeRecorded {
		t.Fatalf("expected like recorded, got %s", result.Kind)
	}
	if result.Counts.Likes != 1 {
		t.Fatalf("expected refreshed like count 1, got %d", result.Counts.Likes)
	}

	result, err = service.Dispatch(ctx, Like{User: user, VideoID: video.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Kind != ResultAlreadyLiked {
		t.Fatalf("expected already liked, got %s", result.Kind)
	}
	if result.Counts.Likes != 1 {
		t.Fatalf("expected like count unchanged, got %d", result.Counts.Likes)
	}

	result, err = service.Dispatch(ctx, Like{User: user, VideoID: video.ID + 99})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Kind != ResultVideoGone {
		t.Fatalf("expected video gone for unknown id, got %s", result.Kind)
	}
}

func TestDispatchCommentConsumedExactlyOnce(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	user := mustUserID(t, "commenter-1")

	video := mustInsertVideo(t, service, "discussed")

	result, err := service.Dispatch(ctx, BeginComment{User: user, VideoID: video.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Kind != ResultCommentPromptArmed {
		t.Fatalf("expected comment prompt, got %s", result.Kind)
	}

	result, err = service.Dispatch(ctx, SubmitCommentText{User: user, Text: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Kind != ResultCommentStored {
		t.Fatalf("expected comment stored, got %s", result.Kind)
	}

	result, err = service.Dispatch(ctx, SubmitCommentText{User: user, Text: "again"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Kind != ResultCommentIgnored {
		t.Fatalf("expected stray text to be ignored, got %s", result.Kind)
	}

	facts, err := service.RecentComments(ctx, video.ID, DefaultCommentLimit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(facts) != 1 || facts[0].Text != "hi" {
		t.Fatalf("expected exactly one comment %q, got %d facts", "hi", len(facts))
	}
}

func TestDispatchBlankCommentConsumesPendingWithoutStoring(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	user := mustUserID(t, "quiet-commenter")

	video := mustInsertVideo(t, service, "quiet")

	if _, err := service.Dispatch(ctx, BeginComment{User: user, VideoID: video.ID}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := service.Dispatch(ctx, SubmitCommentText{User: user, Text: "   "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Kind != ResultCommentIgnored {
		t.Fatalf("expected blank text to be ignored, got %s", result.Kind)
	}

	pending, err := service.PendingComment(ctx, user)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pending != nil {
		t.Fatalf("expected pending target consumed")
	}

	counts, err := service.Counts(ctx, video.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if counts.Comments != 0 {
		t.Fatalf("expected no comment stored, got %d", counts.Comments)
	}
}

func TestDispatchAddVideoReportsDuplicates(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	user := mustUserID(t, "uploader-1")

	result, err := service.Dispatch(ctx, AddVideo{
		User:           user,
		MediaKind:      MediaKindVideo,
		AssetRef:       "ref-1",
		AssetUniqueRef: "X",
		Caption:        "first",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Kind != ResultVideoAdded {
		t.Fatalf("expected video added, got %s", result.Kind)
	}

	result, err = service.Dispatch(ctx, AddVideo{
		User:           user,
		MediaKind:      MediaKindVideo,
		AssetRef:       "ref-2",
		AssetUniqueRef: "X",
		Caption:        "second",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Kind != ResultDuplicateVideo {
		t.Fatalf("expected duplicate signal, got %s", result.Kind)
	}

	total, err := service.CountVideos(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected catalog size to increase by exactly 1, got %d", total)
	}
}

func TestDispatchListCommentsAndRemove(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	user := mustUserID(t, "moderator-1")

	video := mustInsertVideo(t, service, "moderated")
	if _, err := service.RecordComment(ctx, video.ID, user, "keep it civil"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := service.Dispatch(ctx, ListComments{User: user, VideoID: video.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Kind != ResultCommentList || len(result.Comments) != 1 {
		t.Fatalf("expected one listed comment, got kind %s with %d", result.Kind, len(result.Comments))
	}

	result, err = service.Dispatch(ctx, RemoveVideo{User: user, VideoID: video.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Kind != ResultVideoRemoved {
		t.Fatalf("expected video removed, got %s", result.Kind)
	}

	result, err = service.Dispatch(ctx, RemoveVideo{User: user, VideoID: video.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Kind != ResultVideoGone {
		t.Fatalf("expected video gone on second removal, got %s", result.Kind)
	}
}

func TestDispatchRejectsBlankUser(t *testing.T) {
	service, _ := newTestService(t)

	if _, err := service.Dispatch(context.Background(), ViewFeed{User: "  "}); err == nil {
		t.Fatalf("expected blank acting user to be rejected")
	}
}

func TestDispatchTrimsActingUser(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	video := mustInsertVideo(t, service, "padded")

	// Whitespace padding must not mint a second identity.
	result, err := service.Dispatch(ctx, Like{User: "  liker-7  ", VideoID: video.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Kind != ResultLikeRecorded {
		t.Fatalf("expected like recorded, got %s", result.Kind)
	}

	result, err = service.Dispatch(ctx, Like{User: "liker-7", VideoID: video.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Kind != ResultAlreadyLiked {
		t.Fatalf("expected already liked for trimmed form, got %s", result.Kind)
	}

	counts, err := service.Counts(ctx, video.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if counts.Likes != 1 {
		t.Fatalf("expected one like row across both forms, got %d", counts.Likes)
	}
}
