package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yegors/mission-planner/pkg/logger"
)

func newTestStorage(t *testing.T) *ExportStorage {
	t.Helper()
	db, err := Open(MemoryPath, logger.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s, err := NewExportStorage(db, logger.NewNop())
	if err != nil {
		t.Fatalf("NewExportStorage: %v", err)
	}
	return s
}

func TestSaveAndGetExport(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	rec := &ExportRecord{
		Format:         FormatQGC,
		MissionName:    "survey",
		CommandCount:   3,
		DistanceMeters: 24.5,
		TimeSeconds:    9.25,
		Content:        "QGC WPL 110\n",
	}
	if err := s.SaveExport(ctx, rec); err != nil {
		t.Fatalf("SaveExport: %v", err)
	}
	if rec.ID == "" || rec.CreatedAt.IsZero() {
		t.Fatalf("ID and CreatedAt should be filled in: %+v", rec)
	}

	got, err := s.GetExport(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetExport: %v", err)
	}
	if got.Content != rec.Content || got.CommandCount != 3 || got.MissionName != "survey" {
		t.Fatalf("got %+v", got)
	}
	if !got.CreatedAt.Equal(rec.CreatedAt) {
		t.Fatalf("created_at %v, want %v", got.CreatedAt, rec.CreatedAt)
	}
}

func TestGetExportNotFound(t *testing.T) {
	s := newTestStorage(t)
	if _, err := s.GetExport(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestListExportsNewestFirst(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i, format := range []string{FormatQGC, FormatKML, FormatQGC} {
		rec := &ExportRecord{
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
			Format:       format,
			CommandCount: i,
			Content:      "x",
		}
		if err := s.SaveExport(ctx, rec); err != nil {
			t.Fatalf("SaveExport: %v", err)
		}
	}

	list, err := s.ListExports(ctx, 10, 0)
	if err != nil {
		t.Fatalf("ListExports: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("got %d records", len(list))
	}
	if list[0].CommandCount != 2 || list[2].CommandCount != 0 {
		t.Fatalf("wrong order: %d, %d", list[0].CommandCount, list[2].CommandCount)
	}
	if list[0].Content != "" {
		t.Fatal("list should not carry content")
	}

	page, err := s.ListExports(ctx, 1, 1)
	if err != nil {
		t.Fatalf("ListExports: %v", err)
	}
	if len(page) != 1 || page[0].CommandCount != 1 {
		t.Fatalf("unexpected page %+v", page)
	}
}
