package feed

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
)

func TestRecordLikeIsIdempotentPerUser(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	video := mustInsertVideo(t, service, "v1")
	user := mustUserID(t, "liker-1")

	accepted, err := service.RecordLike(ctx, video.ID, user)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !accepted {
		t.Fatalf("expected first like to be accepted")
	}

	accepted, err = service.RecordLike(ctx, video.ID, user)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if accepted {
		t.Fatalf("expected second like to report already liked")
	}

	counts, err := service.Counts(ctx, video.ID)
	if err != nil {
		t.Fatalf("unexpected counts error: %v", err)
	}
	if counts.Likes != 1 {
		t.Fatalf("expected like count 1, got %d", counts.Likes)
	}
}

func TestRecordLikeConcurrentSamePairAdmitsOneWinner(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	video := mustInsertVideo(t, service, "contended")
	user := mustUserID(t, "racer-1")

	const attempts = 16
	results := make([]bool, attempts)
	errs := make([]error, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			results[slot], errs[slot] = service.RecordLike(ctx, video.ID, user)
		}(i)
	}
	wg.Wait()

	acceptedCount := 0
	for i := 0; i < attempts; i++ {
		if errs[i] != nil {
			t.Fatalf("unexpected error on attempt %d: %v", i, errs[i])
		}
		if results[i] {
			acceptedCount++
		}
	}
	if acceptedCount != 1 {
		t.Fatalf("expected exactly one accepted like, got %d", acceptedCount)
	}

	counts, err := service.Counts(ctx, video.ID)
	if err != nil {
		t.Fatalf("unexpected counts error: %v", err)
	}
	if counts.Likes != 1 {
		t.Fatalf("expected like count to increase by exactly 1, got %d", counts.Likes)
	}
}

func TestRecordLikeDistinctUsersEachCount(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	video := mustInsertVideo(t, service, "popular")
	for i := 0; i < 3; i++ {
		user := mustUserID(t, fmt.Sprintf("fan-%d", i))
		accepted, err := service.RecordLike(ctx, video.ID, user)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !accepted {
			t.Fatalf("expected like from fan-%d to be accepted", i)
		}
	}

	counts, err := service.Counts(ctx, video.ID)
	if err != nil {
		t.Fatalf("unexpected counts error: %v", err)
	}
	if counts.Likes != 3 {
		t.Fatalf("expected like count 3, got %d", counts.Likes)
	}
}

func TestRecordCommentDropsBlankAndTruncates(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	video := mustInsertVideo(t, service, "commented")
	user := mustUserID(t, "writer-1")

	stored, err := service.RecordComment(ctx, video.ID, user, "   \n\t ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored {
		t.Fatalf("expected blank comment to be dropped")
	}

	stored, err = service.RecordComment(ctx, video.ID, user, strings.Repeat("b", maxCommentLength+30))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !stored {
		t.Fatalf("expected comment to be stored")
	}

	facts, err := service.RecentComments(ctx, video.ID, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(facts) != 1 {
		t.Fatalf("expected exactly one comment fact, got %d", len(facts))
	}
	if len([]rune(facts[0].Text)) != maxCommentLength {
		t.Fatalf("expected comment truncated to %d, got %d", maxCommentLength, len([]rune(facts[0].Text)))
	}
}

func TestRecentCommentsOrdersMostRecentFirst(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	video := mustInsertVideo(t, service, "threaded")
	user := mustUserID(t, "writer-1")

	for i := 0; i < 5; i++ {
		if _, err := service.RecordComment(ctx, video.ID, user, fmt.Sprintf("comment %d", i)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	facts, err := service.RecentComments(ctx, video.ID, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(facts) != 3 {
		t.Fatalf("expected 3 comments, got %d", len(facts))
	}
	if facts[0].Text != "comment 4" || facts[1].Text != "comment 3" || facts[2].Text != "comment 2" {
		t.Fatalf("unexpected ordering: %q, %q, %q", facts[0].Text, facts[1].Text, facts[2].Text)
	}

	all, err := service.RecentComments(ctx, video.ID, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("expected default limit to return all 5, got %d", len(all))
	}
}
