package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"findingchart/internal/model"
)

func newSession(id string, charts int) *model.Session {
	now := time.Now()
	s := &model.Session{
		ID:        id,
		Options:   model.FormOptions{Survey: "poss2ukstu_red", Size: "8"},
		CreatedAt: now,
		UpdatedAt: now,
	}
	for i := 0; i < charts; i++ {
		s.Charts = append(s.Charts, model.ChartRecord{
			Index:  i,
			Target: model.TargetSpec{Name: "T" + string(rune('A'+i))},
			Status: model.StatusGenerating,
		})
	}
	return s
}

func forEachStorage(t *testing.T, fn func(t *testing.T, s Storage)) {
	t.Helper()
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStorage())
	})
	t.Run("disk", func(t *testing.T) {
		d := NewDiskStorage(t.TempDir(), 4)
		if err := d.Init(); err != nil {
			t.Fatalf("Init: %v", err)
		}
		t.Cleanup(func() { d.Close() })
		fn(t, d)
	})
}

func TestSessionLifecycle(t *testing.T) {
	forEachStorage(t, func(t *testing.T, s Storage) {
		if err := s.CreateSession(newSession("s1", 2)); err != nil {
			t.Fatalf("CreateSession: %v", err)
		}

		got, err := s.GetSession("s1")
		if err != nil {
			t.Fatalf("GetSession: %v", err)
		}
		if len(got.Charts) != 2 || got.Charts[1].Target.Name != "TB" {
			t.Fatalf("charts = %+v", got.Charts)
		}

		// returned sessions are copies
		got.Charts[0].Status = model.StatusReady
		again, _ := s.GetSession("s1")
		if again.Charts[0].Status != model.StatusGenerating {
			t.Error("mutating a returned session changed the store")
		}

		list, err := s.ListSessions()
		if err != nil {
			t.Fatalf("ListSessions: %v", err)
		}
		if len(list) != 1 || list[0].ID != "s1" {
			t.Fatalf("ListSessions = %+v", list)
		}

		if err := s.DeleteSession("s1"); err != nil {
			t.Fatalf("DeleteSession: %v", err)
		}
		if _, err := s.GetSession("s1"); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("GetSession after delete = %v, want ErrSessionNotFound", err)
		}
		if err := s.DeleteSession("s1"); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("second DeleteSession = %v, want ErrSessionNotFound", err)
		}
	})
}

func TestSaveChart(t *testing.T) {
	forEachStorage(t, func(t *testing.T, s Storage) {
		if err := s.CreateSession(newSession("s1", 1)); err != nil {
			t.Fatal(err)
		}

		record := model.ChartRecord{Index: 0, Target: model.TargetSpec{Name: "TA"}, Status: model.StatusReady, RA: "1", Dec: "2"}
		images := model.ChartImages{Chart: []byte("chart"), Thumb: []byte("thumb")}
		if err := s.SaveChart("s1", record, images); err != nil {
			t.Fatalf("SaveChart: %v", err)
		}

		got, _ := s.GetSession("s1")
		if got.Charts[0].Status != model.StatusReady || got.Charts[0].RA != "1" {
			t.Errorf("record = %+v", got.Charts[0])
		}

		chart, err := s.GetChartImage("s1", 0, model.ImageChart)
		if err != nil || string(chart) != "chart" {
			t.Errorf("chart image = %q, %v", chart, err)
		}
		thumb, err := s.GetChartImage("s1", 0, model.ImageThumb)
		if err != nil || string(thumb) != "thumb" {
			t.Errorf("thumb image = %q, %v", thumb, err)
		}

		// appending the next index grows the session
		next := model.ChartRecord{Index: 1, Target: model.TargetSpec{Name: "TB"}, Status: model.StatusGenerating}
		if err := s.SaveChart("s1", next, model.ChartImages{Chart: []byte("c2")}); err != nil {
			t.Fatalf("SaveChart append: %v", err)
		}
		if _, err := s.GetChartImage("s1", 1, model.ImageThumb); !errors.Is(err, ErrChartNotFound) {
			t.Errorf("missing thumb = %v, want ErrChartNotFound", err)
		}

		gap := model.ChartRecord{Index: 5}
		if err := s.SaveChart("s1", gap, images); !errors.Is(err, ErrInvalidData) {
			t.Errorf("SaveChart with gap = %v, want ErrInvalidData", err)
		}
		if _, err := s.GetChartImage("s1", 9, model.ImageChart); !errors.Is(err, ErrChartNotFound) {
			t.Errorf("GetChartImage out of range = %v, want ErrChartNotFound", err)
		}
	})
}

func TestSaveChartToDeletedSession(t *testing.T) {
	forEachStorage(t, func(t *testing.T, s Storage) {
		if err := s.CreateSession(newSession("gone", 1)); err != nil {
			t.Fatal(err)
		}
		if err := s.DeleteSession("gone"); err != nil {
			t.Fatal(err)
		}

		err := s.SaveChart("gone", model.ChartRecord{Index: 0}, model.ChartImages{Chart: []byte("x")})
		if !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("SaveChart = %v, want ErrSessionNotFound", err)
		}
		if _, err := s.GetChartImage("gone", 0, model.ImageChart); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("GetChartImage = %v, want ErrSessionNotFound", err)
		}
	})
}

func TestCreateSessionInvalid(t *testing.T) {
	forEachStorage(t, func(t *testing.T, s Storage) {
		if err := s.CreateSession(&model.Session{}); !errors.Is(err, ErrInvalidData) {
			t.Errorf("CreateSession without ID = %v, want ErrInvalidData", err)
		}
	})
}

func TestDiskStorageReload(t *testing.T) {
	dir := t.TempDir()
	d := NewDiskStorage(dir, 4)
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	if err := d.CreateSession(newSession("persisted", 1)); err != nil {
		t.Fatal(err)
	}
	record := model.ChartRecord{Index: 0, Target: model.TargetSpec{Name: "TA"}, Status: model.StatusUnavailable, Error: "HTTP 500"}
	if err := d.SaveChart("persisted", record, model.ChartImages{Chart: []byte("png")}); err != nil {
		t.Fatal(err)
	}
	d.Close()

	reopened := NewDiskStorage(dir, 4)
	if err := reopened.Init(); err != nil {
		t.Fatal(err)
	}
	got, err := reopened.GetSession("persisted")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Charts[0].Error != "HTTP 500" {
		t.Errorf("record = %+v", got.Charts[0])
	}
	data, err := reopened.GetChartImage("persisted", 0, model.ImageChart)
	if err != nil || string(data) != "png" {
		t.Errorf("chart image = %q, %v", data, err)
	}
}

func TestDiskStorageCacheEviction(t *testing.T) {
	d := NewDiskStorage(t.TempDir(), 2)
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"a", "b", "c"} {
		if err := d.CreateSession(newSession(id, 1)); err != nil {
			t.Fatal(err)
		}
	}
	if n := len(d.cache); n != 2 {
		t.Errorf("cache holds %d sessions, want 2", n)
	}
	for _, id := range []string{"a", "b", "c"} {
		if _, err := d.GetSession(id); err != nil {
			t.Errorf("GetSession(%s): %v", id, err)
		}
	}
}

func TestDiskStorageBackup(t *testing.T) {
	dir := t.TempDir()
	d := NewDiskStorage(dir, 4)
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	if err := d.CreateSession(newSession("s1", 1)); err != nil {
		t.Fatal(err)
	}
	if err := d.SaveChart("s1", model.ChartRecord{Index: 0}, model.ChartImages{Chart: []byte("png")}); err != nil {
		t.Fatal(err)
	}

	if err := d.Backup(); err != nil {
		t.Fatalf("Backup: %v", err)
	}

	backups, err := os.ReadDir(filepath.Join(dir, "backup"))
	if err != nil || len(backups) != 1 {
		t.Fatalf("backup dir entries = %v, %v", backups, err)
	}
	root := filepath.Join(dir, "backup", backups[0].Name())
	for _, path := range []string{
		"sessions.json",
		filepath.Join("sessions", "s1.json"),
		filepath.Join("charts", "s1", "0_chart.png"),
	} {
		if _, err := os.Stat(filepath.Join(root, path)); err != nil {
			t.Errorf("backup missing %s: %v", path, err)
		}
	}
}
