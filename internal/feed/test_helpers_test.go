package feed

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:tiktuk_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&VideoRecord{}, &LikeFact{}, &CommentFact{}, &UserNavState{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	clock := func() time.Time { return time.Unix(1700000600, 0).UTC() }

	service, err := NewService(ServiceConfig{
		Database: db,
		Clock:    clock,
	})
	if err != nil {
		t.Fatalf("failed to construct feed service: %v", err)
	}

	return service, db
}

func mustUserID(t *testing.T, value string) UserID {
	t.Helper()
	id, err := NewUserID(value)
	if err != nil {
		t.Fatalf("unexpected user id error: %v", err)
	}
	return id
}

func mustInsertVideo(t *testing.T, service *Service, uniqueRef string) VideoRecord {
	t.Helper()
	record, err := service.InsertVideo(context.Background(), InsertVideoParams{
		AddedBy:        mustUserID(t, "uploader-1"),
		MediaKind:      MediaKindVideo,
		AssetRef:       "asset-" + uniqueRef,
		AssetUniqueRef: uniqueRef,
		Caption:        "caption " + uniqueRef,
	})
	if err != nil {
		t.Fatalf("unexpected insert error: %v", err)
	}
	return record
}
