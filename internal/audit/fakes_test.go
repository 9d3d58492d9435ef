package audit

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/cuongbtq/job-audit/internal/domain"
	"github.com/cuongbtq/job-audit/internal/extract"
	"github.com/cuongbtq/job-audit/internal/fetcher"
)

// memStore is an in-memory Store that also serves the scrape pipeline
type memStore struct {
	mu        sync.Mutex
	positions []domain.Position
	closed    map[int64]*domain.ClosedRoleAuditTask
	open      map[int64]*domain.OpenRoleAuditTask
	scraped   map[string]domain.ScrapedJob
	promoted  map[int64]bool
	nextID    int64
	history   map[int64][]domain.AuditStatus
}

func newMemStore() *memStore {
	return &memStore{
		closed:   map[int64]*domain.ClosedRoleAuditTask{},
		open:     map[int64]*domain.OpenRoleAuditTask{},
		scraped:  map[string]domain.ScrapedJob{},
		promoted: map[int64]bool{},
		history:  map[int64][]domain.AuditStatus{},
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) ReplaceClosedRoleTasks(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = map[int64]*domain.ClosedRoleAuditTask{}
	var n int64
	for _, p := range m.positions {
		if p.Status != domain.PositionStatusOpen || p.Hidden {
			continue
		}
		id := m.id()
		m.closed[id] = &domain.ClosedRoleAuditTask{
			ID: id, JobID: p.ID, URL: p.URL, JobTitle: p.Title,
			Status: domain.AuditStatusNotRun, StatusMessage: domain.StatusMessageNotRun,
		}
		n++
	}
	return n, nil
}

func (m *memStore) ListClosedRoleTasks(ctx context.Context, ids []int64) ([]domain.ClosedRoleAuditTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []domain.ClosedRoleAuditTask{}
	for _, t := range m.closed {
		if len(ids) == 0 || contains(ids, t.ID) {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) GetClosedRoleTask(ctx context.Context, id int64) (*domain.ClosedRoleAuditTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.closed[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memStore) UpdateClosedRoleTaskStatus(ctx context.Context, ids []int64, status domain.AuditStatus, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		if t, ok := m.closed[id]; ok {
			t.Status, t.StatusMessage = status, message
			m.history[id] = append(m.history[id], status)
		}
	}
	return nil
}

func (m *memStore) ResetClosedRoleTasks(ctx context.Context, ids []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		if t, ok := m.closed[id]; ok {
			t.Status, t.StatusMessage = domain.AuditStatusPending, domain.StatusMessagePending
			t.Result, t.Justification, t.Screenshot = "", "", ""
			m.history[id] = append(m.history[id], domain.AuditStatusPending)
		}
	}
	return nil
}

func (m *memStore) CompleteClosedRoleTask(ctx context.Context, id int64, outcome domain.ClosedRoleOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.closed[id]
	if !ok {
		return domain.ErrTaskNotFound
	}
	t.Status, t.StatusMessage = domain.AuditStatusCompleted, domain.StatusMessageCompleted
	t.Result, t.Justification, t.Screenshot = outcome.Result, outcome.Justification, outcome.Screenshot
	m.history[id] = append(m.history[id], domain.AuditStatusCompleted)
	return nil
}

func (m *memStore) ListOpenRoleTasks(ctx context.Context, ids []int64) ([]domain.OpenRoleAuditTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []domain.OpenRoleAuditTask{}
	for _, t := range m.open {
		if len(ids) == 0 || contains(ids, t.ID) {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) GetOpenRoleTask(ctx context.Context, id int64) (*domain.OpenRoleAuditTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.open[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memStore) FindOpenRoleTaskByURL(ctx context.Context, url string) (*domain.OpenRoleAuditTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var found *domain.OpenRoleAuditTask
	for _, t := range m.open {
		if t.URL == url && (found == nil || t.ID < found.ID) {
			found = t
		}
	}
	if found == nil {
		return nil, nil
	}
	cp := *found
	return &cp, nil
}

func (m *memStore) CreateOpenRoleTask(ctx context.Context, task *domain.OpenRoleAuditTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	task.ID = m.id()
	task.Status, task.StatusMessage = domain.AuditStatusNotRun, domain.StatusMessageNotRun
	task.CreatedAt, task.UpdatedAt = time.Now(), time.Now()
	cp := *task
	m.open[task.ID] = &cp
	return nil
}

func (m *memStore) DeleteOpenRoleTask(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.open[id]; !ok {
		return domain.ErrTaskNotFound
	}
	delete(m.open, id)
	for u, j := range m.scraped {
		if j.ScrapingTaskID == nil || *j.ScrapingTaskID != id {
			continue
		}
		if m.promoted[j.ID] {
			j.ScrapingTaskID = nil
			m.scraped[u] = j
			continue
		}
		delete(m.scraped, u)
	}
	return nil
}

func (m *memStore) UpdateOpenRoleTaskStatus(ctx context.Context, ids []int64, status domain.AuditStatus, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		if t, ok := m.open[id]; ok {
			t.Status, t.StatusMessage = status, message
			m.history[id] = append(m.history[id], status)
		}
	}
	return nil
}

func (m *memStore) DeleteScrapedJobsByTask(ctx context.Context, taskID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for u, j := range m.scraped {
		if j.ScrapingTaskID != nil && *j.ScrapingTaskID == taskID && !m.promoted[j.ID] {
			delete(m.scraped, u)
			n++
		}
	}
	return n, nil
}

func (m *memStore) ExistingScrapedURLs(ctx context.Context, urls []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []string{}
	for _, u := range urls {
		if _, ok := m.scraped[u]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memStore) InsertScrapedJobs(ctx context.Context, jobs []domain.ScrapedJob) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, j := range jobs {
		if _, ok := m.scraped[j.URL]; ok {
			continue
		}
		j.ID = m.id()
		m.scraped[j.URL] = j
		n++
	}
	return n, nil
}

// promote marks the scraped job at url as copied into positions
func (m *memStore) promote(url string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.scraped[url].ID
	m.promoted[id] = true
	return id
}

func (m *memStore) scrapedFor(taskID int64) []domain.ScrapedJob {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.ScrapedJob
	for _, j := range m.scraped {
		if j.ScrapingTaskID != nil && *j.ScrapingTaskID == taskID {
			out = append(out, j)
		}
	}
	return out
}

func (m *memStore) openStatus(id int64) domain.AuditStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open[id].Status
}

func (m *memStore) closedStatus(id int64) domain.AuditStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed[id].Status
}

func contains(ids []int64, id int64) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

// recordingQueue captures messages and fails for selected task ids
type recordingQueue struct {
	mu   sync.Mutex
	msgs []domain.TaskMessage
	fail map[int64]bool
}

func (q *recordingQueue) Enqueue(ctx context.Context, msg domain.TaskMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.fail[msg.TaskID] {
		return errors.New("channel closed")
	}
	q.msgs = append(q.msgs, msg)
	return nil
}

type stubChecker struct {
	outcome *domain.ClosedRoleOutcome
	err     error
	urls    []string
}

func (c *stubChecker) CheckClosedRole(ctx context.Context, url string) (*domain.ClosedRoleOutcome, error) {
	c.urls = append(c.urls, url)
	return c.outcome, c.err
}

// sitePages serves a listing page and detail pages; failing urls return ErrFetchFailed
type sitePages struct {
	fail map[string]bool
}

func (p *sitePages) Fetch(ctx context.Context, url string) (*fetcher.Page, error) {
	if p.fail[url] {
		return nil, domain.ErrFetchFailed
	}
	return &fetcher.Page{URL: url, Text: "page " + url}, nil
}

type fixedLinks []string

func (l fixedLinks) ExtractLinks(ctx context.Context, text, sourceURL string, hints extract.Hints) ([]string, error) {
	return l, nil
}

type titleJobs struct{}

func (titleJobs) ExtractJob(ctx context.Context, text, url string) (*domain.ScrapedJob, error) {
	return &domain.ScrapedJob{URL: url, Title: "Role " + url, JobType: domain.JobTypeFullTime, Site: domain.SiteProduct}, nil
}
