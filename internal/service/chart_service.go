package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"findingchart/internal/archive"
	"findingchart/internal/config"
	"findingchart/internal/model"
	"findingchart/internal/parser"
	"findingchart/internal/render"
	"findingchart/internal/storage"
	"findingchart/pkg/logger"
)

// Fetcher loads the survey image for one target. Implementations settle
// every call exactly once and never panic.
type Fetcher interface {
	Fetch(ctx context.Context, t model.TargetSpec) model.FetchResult
}

// batch is the live, in-memory side of a session: the canvases still being
// rendered and the goroutines rendering them.
type batch struct {
	id     string
	charts []*render.Chart
	wg     sync.WaitGroup
	done   chan struct{}
	events *hub
}

type ChartService struct {
	storage storage.Storage
	fetcher Fetcher
	icons   render.Icons
	cfg     *config.Config

	mu      sync.RWMutex
	batches map[string]*batch

	ctx    context.Context
	cancel context.CancelFunc
	loops  sync.WaitGroup
}

// NewStorage builds the configured session store, falling back to memory
// when the disk store cannot be initialised.
func NewStorage(cfg config.StorageConfig) storage.Storage {
	var store storage.Storage

	if cfg.Type == "disk" {
		store = storage.NewDiskStorage(cfg.DataDir, cfg.CacheSize)
	} else {
		store = storage.NewMemoryStorage()
	}

	if err := store.Init(); err != nil {
		logger.Errorf("Failed to initialize storage: %v", err)
		store = storage.NewMemoryStorage()
		store.Init()
	}

	return store
}

func NewChartService(cfg *config.Config, store storage.Storage, fetcher Fetcher, icons render.Icons) *ChartService {
	ctx, cancel := context.WithCancel(context.Background())
	s := &ChartService{
		storage: store,
		fetcher: fetcher,
		icons:   icons,
		cfg:     cfg,
		batches: make(map[string]*batch),
		ctx:     ctx,
		cancel:  cancel,
	}

	if cfg.Session.CleanupInterval > 0 && cfg.Session.TTL > 0 {
		s.loops.Add(1)
		go s.cleanupOldSessions()
	}
	if cfg.Storage.BackupInterval > 0 {
		s.loops.Add(1)
		go s.backupPeriodically()
	}

	return s
}

// Close stops the background loops and abandons in-flight image loads.
func (s *ChartService) Close() error {
	s.cancel()
	s.loops.Wait()
	return s.storage.Close()
}

// Options describes the form choices and the defaults for a new submission.
func (s *ChartService) Options() model.OptionsResponse {
	return model.OptionsResponse{
		Surveys: s.cfg.Chart.Surveys,
		Formats: []string{
			string(model.FormatDecimal),
			string(model.FormatSexagesimalColon),
			string(model.FormatSexagesimalSpace),
		},
		Units:         []string{string(model.UnitArcsec), string(model.UnitMilliarcsec)},
		OutputEpoch:   parser.DefaultOutputEpoch(time.Now()),
		MinFieldSize:  s.cfg.Chart.MinFieldSize,
		MaxFieldSize:  s.cfg.Chart.MaxFieldSize,
		DefaultSurvey: s.cfg.Chart.DefaultSurvey,
	}
}

func (s *ChartService) withDefaults(f model.FormOptions) model.FormOptions {
	if strings.TrimSpace(f.OutputEpoch) == "" {
		f.OutputEpoch = parser.DefaultOutputEpoch(time.Now())
	}
	if strings.TrimSpace(f.Survey) == "" {
		f.Survey = s.cfg.Chart.DefaultSurvey
	}
	return f
}

// Generate parses a submission and starts rendering one chart per target.
// Nothing is rendered if any line is malformed. The session named by
// req.SessionID, if any, is discarded first.
func (s *ChartService) Generate(req model.GenerateRequest) (*model.Session, error) {
	form := s.withDefaults(req.FormOptions)
	opts, err := parser.OptionsFromForm(form)
	if err != nil {
		return nil, err
	}
	opts.Surveys = s.cfg.Chart.Surveys
	opts.MinFieldSize = s.cfg.Chart.MinFieldSize
	opts.MaxFieldSize = s.cfg.Chart.MaxFieldSize

	targets, err := parser.Parse(req.Coords, opts)
	if err != nil {
		return nil, err
	}

	if req.SessionID != "" {
		if err := s.DeleteSession(req.SessionID); err != nil && !errors.Is(err, storage.ErrSessionNotFound) {
			logger.Warnf("Failed to discard previous session %s: %v", req.SessionID, err)
		}
	}

	now := time.Now()
	session := &model.Session{
		ID:        uuid.New().String(),
		Options:   form,
		Charts:    make([]model.ChartRecord, 0, len(targets)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	b := &batch{
		id:     session.ID,
		charts: make([]*render.Chart, 0, len(targets)),
		done:   make(chan struct{}),
		events: newHub(),
	}
	for i, t := range targets {
		c := render.NewChart(t, s.icons)
		b.charts = append(b.charts, c)
		session.Charts = append(session.Charts, newRecord(i, t, c.Snapshot()))
	}

	if err := s.storage.CreateSession(session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	for i, c := range b.charts {
		if err := s.saveChart(session.ID, i, c); err != nil {
			s.storage.DeleteSession(session.ID)
			return nil, fmt.Errorf("failed to store placeholder: %w", err)
		}
	}

	s.mu.Lock()
	s.batches[session.ID] = b
	s.mu.Unlock()

	for i, c := range b.charts {
		b.wg.Add(1)
		go s.renderChart(b, i, c)
	}
	go func() {
		b.wg.Wait()
		close(b.done)
		b.events.close()

		s.mu.Lock()
		if s.batches[b.id] == b {
			delete(s.batches, b.id)
		}
		s.mu.Unlock()
		logger.Infof("Session %s settled: %d charts", b.id, len(b.charts))
	}()

	logger.Infof("Session %s created with %d targets", session.ID, len(targets))
	return session, nil
}

// renderChart fetches the image of one chart and stores the settled canvas.
// A session discarded in the meantime is not an error.
func (s *ChartService) renderChart(b *batch, i int, c *render.Chart) {
	defer b.wg.Done()

	t := c.Target()
	res := s.fetcher.Fetch(s.ctx, t)
	if !c.Apply(res) {
		return
	}
	if res.Err != nil {
		logger.Warnf("Chart %s (%s #%d) unavailable: %v", t.Name, b.id, i, res.Err)
	}

	if err := s.saveChart(b.id, i, c); err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			logger.Debugf("Dropping chart %d of discarded session %s", i, b.id)
			return
		}
		logger.Errorf("Failed to store chart %d of session %s: %v", i, b.id, err)
	}

	status := c.Status()
	ev := model.ChartEvent{
		SessionID: b.id,
		Index:     i,
		Name:      t.Name,
		Status:    status,
		Timestamp: time.Now().Unix(),
	}
	if res.Err != nil {
		ev.Error = res.Err.Error()
	}
	b.events.publish(ev)
}

func (s *ChartService) saveChart(sessionID string, i int, c *render.Chart) error {
	snap := c.Snapshot()

	chart, err := render.EncodePNG(snap.Canvas)
	if err != nil {
		return fmt.Errorf("failed to encode chart: %w", err)
	}
	images := model.ChartImages{Chart: chart}
	if snap.Thumb != nil {
		thumb, err := render.EncodePNG(snap.Thumb)
		if err != nil {
			return fmt.Errorf("failed to encode thumbnail: %w", err)
		}
		images.Thumb = thumb
	}

	return s.storage.SaveChart(sessionID, newRecord(i, c.Target(), snap), images)
}

func newRecord(i int, t model.TargetSpec, snap render.Snapshot) model.ChartRecord {
	r := model.ChartRecord{
		Index:     i,
		Target:    t,
		Status:    snap.Status,
		Error:     snap.Reason,
		UpdatedAt: time.Now(),
	}
	if snap.Metadata != nil {
		r.RA = snap.Metadata.RA
		r.Dec = snap.Metadata.Dec
	}
	return r
}

func (s *ChartService) liveBatch(sessionID string) *batch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.batches[sessionID]
}

// Wait blocks until every chart of the session has settled. Sessions that
// are no longer rendering return at once.
func (s *ChartService) Wait(ctx context.Context, sessionID string) error {
	b := s.liveBatch(sessionID)
	if b == nil {
		_, err := s.GetSession(sessionID)
		return err
	}

	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe streams status changes of the session's charts. The channel is
// closed when the batch settles; cancel releases it early.
func (s *ChartService) Subscribe(sessionID string) (<-chan model.ChartEvent, func(), error) {
	b := s.liveBatch(sessionID)
	if b == nil {
		if _, err := s.GetSession(sessionID); err != nil {
			return nil, nil, err
		}
		ch := make(chan model.ChartEvent)
		close(ch)
		return ch, func() {}, nil
	}

	ch, cancel := b.events.subscribe()
	return ch, cancel, nil
}

func (s *ChartService) GetSession(sessionID string) (*model.Session, error) {
	session, err := s.storage.GetSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session %s: %w", sessionID, err)
	}

	return session, nil
}

func (s *ChartService) ListSessions() ([]*model.Session, error) {
	sessions, err := s.storage.ListSessions()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	return sessions, nil
}

// DeleteSession forgets a session. Its in-flight loads keep running but
// their results are dropped.
func (s *ChartService) DeleteSession(sessionID string) error {
	s.mu.Lock()
	delete(s.batches, sessionID)
	s.mu.Unlock()

	if err := s.storage.DeleteSession(sessionID); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}

	return nil
}

func (s *ChartService) ChartImage(sessionID string, index int, kind model.ImageKind) ([]byte, error) {
	data, err := s.storage.GetChartImage(sessionID, index, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to get chart %d of session %s: %w", index, sessionID, err)
	}

	return data, nil
}

// WriteArchive zips every chart of the session as it currently stands,
// whatever its status.
func (s *ChartService) WriteArchive(sessionID string, w io.Writer) error {
	session, err := s.GetSession(sessionID)
	if err != nil {
		return err
	}

	entries := make([]archive.Entry, 0, len(session.Charts))
	for _, r := range session.Charts {
		data, err := s.ChartImage(sessionID, r.Index, model.ImageChart)
		if err != nil {
			return err
		}
		entries = append(entries, archive.Entry{
			Name:   r.Target.Name,
			Survey: r.Target.Survey,
			PNG:    data,
		})
	}

	return archive.Write(w, entries, archive.Options{IncludeSurvey: s.cfg.Archive.IncludeSurvey})
}

// ArchiveName is the download name of WriteArchive's output.
func (s *ChartService) ArchiveName() string {
	if s.cfg.Archive.FileName != "" {
		return s.cfg.Archive.FileName
	}
	return archive.FileName
}

// ImportSpreadsheet turns an uploaded workbook into target list text.
func (s *ChartService) ImportSpreadsheet(r io.Reader, sheet string) (model.ImportResponse, error) {
	lines, err := parser.LinesFromSpreadsheet(r, sheet)
	if err != nil {
		return model.ImportResponse{}, err
	}

	count := 0
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			count++
		}
	}
	return model.ImportResponse{Coords: strings.Join(lines, "\n"), Lines: count}, nil
}

func (s *ChartService) cleanupOldSessions() {
	defer s.loops.Done()

	ticker := time.NewTicker(s.cfg.Session.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.cleanupExpired(time.Now().Add(-s.cfg.Session.TTL))
		}
	}
}

func (s *ChartService) cleanupExpired(cutoff time.Time) {
	sessions, err := s.storage.ListSessions()
	if err != nil {
		logger.Errorf("Failed to list sessions for cleanup: %v", err)
		return
	}

	for _, session := range sessions {
		if session.UpdatedAt.Before(cutoff) {
			if err := s.DeleteSession(session.ID); err != nil {
				logger.Errorf("Failed to delete expired session %s: %v", session.ID, err)
			} else {
				logger.Infof("Cleaned up expired session: %s", session.ID)
			}
		}
	}
}

func (s *ChartService) backupPeriodically() {
	defer s.loops.Done()

	ticker := time.NewTicker(s.cfg.Storage.BackupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := s.storage.Backup(); err != nil {
				logger.Errorf("Backup failed: %v", err)
			}
		}
	}
}
