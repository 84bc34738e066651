package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"findingchart/internal/model"
	"findingchart/pkg/logger"
)

// DiskStorage keeps one JSON file per session and the chart PNGs of each
// session in their own directory. Recently used sessions stay cached.
type DiskStorage struct {
	dataDir   string
	mu        sync.RWMutex
	cache     map[string]*model.Session
	cacheSize int
}

type SessionIndex struct {
	ID        string    `json:"id"`
	Charts    int       `json:"charts"`
	CreatedAt time.Time `json:"created_at"`
}

func NewDiskStorage(dataDir string, cacheSize int) *DiskStorage {
	if cacheSize <= 0 {
		cacheSize = 1
	}
	return &DiskStorage{
		dataDir:   dataDir,
		cache:     make(map[string]*model.Session),
		cacheSize: cacheSize,
	}
}

func (d *DiskStorage) Init() error {
	if err := d.createDirectories(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}

	if err := d.loadSessions(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}

	logger.Info("Disk storage initialized successfully")
	return nil
}

func (d *DiskStorage) createDirectories() error {
	dirs := []string{
		d.dataDir,
		filepath.Join(d.dataDir, "sessions"),
		filepath.Join(d.dataDir, "charts"),
		filepath.Join(d.dataDir, "backup"),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return nil
}

func (d *DiskStorage) indexPath() string {
	return filepath.Join(d.dataDir, "sessions.json")
}

func (d *DiskStorage) sessionPath(sessionID string) string {
	return filepath.Join(d.dataDir, "sessions", sessionID+".json")
}

func (d *DiskStorage) chartDir(sessionID string) string {
	return filepath.Join(d.dataDir, "charts", sessionID)
}

func (d *DiskStorage) imagePath(sessionID string, index int, kind model.ImageKind) string {
	return filepath.Join(d.chartDir(sessionID), strconv.Itoa(index)+"_"+string(kind)+".png")
}

func (d *DiskStorage) loadSessions() error {
	if _, err := os.Stat(d.indexPath()); os.IsNotExist(err) {
		return d.saveSessionIndex([]*SessionIndex{})
	}

	indexes, err := d.readSessionIndex()
	if err != nil {
		return err
	}

	for _, index := range indexes {
		if len(d.cache) >= d.cacheSize {
			break
		}

		session, err := d.loadSessionFromFile(index.ID)
		if err != nil {
			logger.Errorf("Failed to load session %s: %v", index.ID, err)
			continue
		}

		d.cache[index.ID] = session
	}

	return nil
}

func (d *DiskStorage) readSessionIndex() ([]*SessionIndex, error) {
	data, err := os.ReadFile(d.indexPath())
	if err != nil {
		return nil, err
	}

	var indexes []*SessionIndex
	if err := json.Unmarshal(data, &indexes); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return indexes, nil
}

func (d *DiskStorage) loadSessionFromFile(sessionID string) (*model.Session, error) {
	data, err := os.ReadFile(d.sessionPath(sessionID))
	if err != nil {
		return nil, err
	}

	var session model.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return &session, nil
}

// writeFile replaces path atomically through a temp file.
func writeFile(path string, data []byte) error {
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tempPath, path)
}

func (d *DiskStorage) saveSessionIndex(indexes []*SessionIndex) error {
	data, err := json.MarshalIndent(indexes, "", "  ")
	if err != nil {
		return err
	}
	return writeFile(d.indexPath(), data)
}

func (d *DiskStorage) saveSessionToFile(session *model.Session) error {
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return err
	}
	return writeFile(d.sessionPath(session.ID), data)
}

// session returns the live cached session, loading it if needed. Callers
// hold d.mu for writing.
func (d *DiskStorage) session(sessionID string) (*model.Session, error) {
	if session, exists := d.cache[sessionID]; exists {
		return session, nil
	}

	session, err := d.loadSessionFromFile(sessionID)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	d.cache[sessionID] = session
	d.evictCache()
	return session, nil
}

func (d *DiskStorage) CreateSession(session *model.Session) error {
	if session == nil || session.ID == "" {
		return ErrInvalidData
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	stored := cloneSession(session)
	if err := os.MkdirAll(d.chartDir(stored.ID), 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	if err := d.saveSessionToFile(stored); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	if err := d.updateSessionIndex(); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	d.cache[stored.ID] = stored
	d.evictCache()

	return nil
}

func (d *DiskStorage) GetSession(sessionID string) (*model.Session, error) {
	d.mu.RLock()
	if session, exists := d.cache[sessionID]; exists {
		s := cloneSession(session)
		d.mu.RUnlock()
		return s, nil
	}
	d.mu.RUnlock()

	d.mu.Lock()
	defer d.mu.Unlock()

	session, err := d.session(sessionID)
	if err != nil {
		return nil, err
	}
	return cloneSession(session), nil
}

func (d *DiskStorage) DeleteSession(sessionID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	sessionPath := d.sessionPath(sessionID)
	if _, err := os.Stat(sessionPath); os.IsNotExist(err) {
		return ErrSessionNotFound
	}

	if err := os.Remove(sessionPath); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	if err := os.RemoveAll(d.chartDir(sessionID)); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	delete(d.cache, sessionID)

	return d.updateSessionIndex()
}

func (d *DiskStorage) ListSessions() ([]*model.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	indexes, err := d.readSessionIndex()
	if err != nil {
		if errors.Is(err, ErrInvalidData) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	sessions := make([]*model.Session, 0, len(indexes))
	for _, index := range indexes {
		session, err := d.session(index.ID)
		if err != nil {
			logger.Warnf("Skipping session %s: %v", index.ID, err)
			continue
		}
		sessions = append(sessions, cloneSession(session))
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})

	return sessions, nil
}

func (d *DiskStorage) SaveChart(sessionID string, record model.ChartRecord, images model.ChartImages) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	session, err := d.session(sessionID)
	if err != nil {
		return err
	}
	if err := putRecord(session, record); err != nil {
		return err
	}
	session.UpdatedAt = time.Now()

	for kind, data := range map[model.ImageKind][]byte{
		model.ImageChart: images.Chart,
		model.ImageThumb: images.Thumb,
	} {
		if data == nil {
			continue
		}
		if err := writeFile(d.imagePath(sessionID, record.Index, kind), data); err != nil {
			return fmt.Errorf("%w: %v", ErrFileOperation, err)
		}
	}

	if err := d.saveSessionToFile(session); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	return nil
}

func (d *DiskStorage) GetChartImage(sessionID string, index int, kind model.ImageKind) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if _, err := os.Stat(d.sessionPath(sessionID)); os.IsNotExist(err) {
		return nil, ErrSessionNotFound
	}

	data, err := os.ReadFile(d.imagePath(sessionID, index, kind))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrChartNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	return data, nil
}

func (d *DiskStorage) updateSessionIndex() error {
	files, err := os.ReadDir(filepath.Join(d.dataDir, "sessions"))
	if err != nil {
		return err
	}

	indexes := []*SessionIndex{}
	for _, file := range files {
		if filepath.Ext(file.Name()) != ".json" {
			continue
		}

		sessionID := file.Name()[:len(file.Name())-5]
		session, exists := d.cache[sessionID]
		if !exists {
			session, err = d.loadSessionFromFile(sessionID)
			if err != nil {
				logger.Errorf("Failed to load session %s for index update: %v", sessionID, err)
				continue
			}
		}

		indexes = append(indexes, &SessionIndex{
			ID:        session.ID,
			Charts:    len(session.Charts),
			CreatedAt: session.CreatedAt,
		})
	}

	return d.saveSessionIndex(indexes)
}

func (d *DiskStorage) evictCache() {
	if len(d.cache) <= d.cacheSize {
		return
	}

	type cacheEntry struct {
		id        string
		updatedAt time.Time
	}

	var entries []cacheEntry
	for id, session := range d.cache {
		entries = append(entries, cacheEntry{
			id:        id,
			updatedAt: session.UpdatedAt,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].updatedAt.Before(entries[j].updatedAt)
	})

	toEvict := len(d.cache) - d.cacheSize
	for i := 0; i < toEvict; i++ {
		delete(d.cache, entries[i].id)
	}
}

func (d *DiskStorage) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cache = make(map[string]*model.Session)
	return nil
}

func (d *DiskStorage) Backup() error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	backupDir := filepath.Join(d.dataDir, "backup", fmt.Sprintf("backup_%d", time.Now().UnixNano()))

	if err := os.MkdirAll(backupDir, 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	for _, dir := range []string{"sessions", "charts"} {
		if err := copyDir(filepath.Join(d.dataDir, dir), filepath.Join(backupDir, dir)); err != nil {
			return fmt.Errorf("%w: %v", ErrFileOperation, err)
		}
	}

	if err := copyFile(d.indexPath(), filepath.Join(backupDir, "sessions.json")); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	logger.Infof("Backup completed: %s", backupDir)
	return nil
}

// copyDir copies src recursively, skipping temp files left by writeFile.
func copyDir(src, dst string) error {
	return filepath.WalkDir(src, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if entry.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		if filepath.Ext(path) == ".tmp" {
			return nil
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}

	return os.WriteFile(dst, data, 0644)
}
