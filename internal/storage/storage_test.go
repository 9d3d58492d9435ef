package storage

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cuongbtq/job-audit/internal/domain"
	"github.com/cuongbtq/job-audit/shared/logger"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) (*Storage, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStorage(sqlx.NewDb(db, "sqlmock"), logger.NewNop()), mock
}

func TestReplaceClosedRoleTasks(t *testing.T) {
	s, mock := newTestStorage(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM closed_role_audit_tasks").WillReturnResult(sqlmock.NewResult(0, 7))
	mock.ExpectExec("INSERT INTO closed_role_audit_tasks").
		WithArgs(domain.AuditStatusNotRun, domain.StatusMessageNotRun, domain.PositionStatusOpen).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	created, err := s.ReplaceClosedRoleTasks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceClosedRoleTasks_RollsBackOnInsertFailure(t *testing.T) {
	s, mock := newTestStorage(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM closed_role_audit_tasks").WillReturnResult(sqlmock.NewResult(0, 7))
	mock.ExpectExec("INSERT INTO closed_role_audit_tasks").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := s.ReplaceClosedRoleTasks(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert closed role tasks")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExistingScrapedURLs_SingleQuery(t *testing.T) {
	s, mock := newTestStorage(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT url FROM scraped_positions WHERE url = ANY($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"url"}).AddRow("https://a.com/1"))

	got, err := s.ExistingScrapedURLs(context.Background(), []string{"https://a.com/1", "https://a.com/3"})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.com/1"}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExistingScrapedURLs_EmptyInput(t *testing.T) {
	s, mock := newTestStorage(t)

	got, err := s.ExistingScrapedURLs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildScrapedInsert(t *testing.T) {
	taskID := int64(9)
	jobs := []domain.ScrapedJob{
		{URL: "https://a.com/1", Title: "PM", JobType: domain.JobTypeFullTime, Site: domain.SiteProduct, ScrapingTaskID: &taskID, Hidden: true},
		{URL: "https://a.com/2", Title: "APM", JobType: domain.JobTypeInternship, Site: domain.SiteProduct, ScrapingTaskID: &taskID, Hidden: true},
	}

	query, args := buildScrapedInsert(jobs)

	cols := len(scrapedInsertColumns)
	assert.Len(t, args, 2*cols)
	assert.Contains(t, query, "($1, $2,")
	assert.Contains(t, query, "$30)")
	assert.NotContains(t, query, "$31")
	assert.True(t, strings.HasSuffix(query, "ON CONFLICT (url) DO NOTHING"))
	assert.Equal(t, "https://a.com/2", args[cols])
}

func TestInsertScrapedJobs(t *testing.T) {
	s, mock := newTestStorage(t)

	jobs := []domain.ScrapedJob{
		{URL: "https://a.com/1", Title: "PM", JobType: domain.JobTypeFullTime, Site: domain.SiteProduct},
		{URL: "https://a.com/2", Title: "APM", JobType: domain.JobTypeInternship, Site: domain.SiteProduct},
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO scraped_positions")).WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := s.InsertScrapedJobs(context.Background(), jobs)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertScrapedJobs_Empty(t *testing.T) {
	s, mock := newTestStorage(t)

	n, err := s.InsertScrapedJobs(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOpenRoleTask(t *testing.T) {
	s, mock := newTestStorage(t)
	now := time.Now()

	cols := []string{"id", "url", "status", "status_message", "extra_notes", "company_id",
		"company_name", "site", "job_title_filter", "created_at", "updated_at"}

	mock.ExpectQuery("FROM open_role_audit_tasks t").
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			int64(5), "https://careers.example.com", "PENDING", "Task is pending", "",
			int64(42), "Example", "product", "", now, now))

	task, err := s.GetOpenRoleTask(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, domain.AuditStatusPending, task.Status)
	require.NotNil(t, task.CompanyID)
	assert.Equal(t, int64(42), *task.CompanyID)
	assert.Equal(t, "Example", task.CompanyName)
}

func TestGetOpenRoleTask_NotFound(t *testing.T) {
	s, mock := newTestStorage(t)

	mock.ExpectQuery("FROM open_role_audit_tasks t").
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.GetOpenRoleTask(context.Background(), 5)
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
}

func TestDeleteOpenRoleTask_NotFound(t *testing.T) {
	s, mock := newTestStorage(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM scraped_positions sp").
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM open_role_audit_tasks").
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.DeleteOpenRoleTask(context.Background(), 5)
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteOpenRoleTask_KeepsPromotedJobs(t *testing.T) {
	s, mock := newTestStorage(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM scraped_positions sp\s+WHERE sp.scraping_task = \$1\s+AND NOT EXISTS \(SELECT 1 FROM positions p WHERE p.scraped_id = sp.id\)`).
		WithArgs(int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("DELETE FROM open_role_audit_tasks").
		WithArgs(int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.DeleteOpenRoleTask(context.Background(), 8))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteScrapedJobsByTask_SkipsPromoted(t *testing.T) {
	s, mock := newTestStorage(t)

	mock.ExpectExec(`DELETE FROM scraped_positions sp\s+WHERE sp.scraping_task = \$1\s+AND NOT EXISTS \(SELECT 1 FROM positions p WHERE p.scraped_id = sp.id\)`).
		WithArgs(int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := s.DeleteScrapedJobsByTask(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOpenRoleTask(t *testing.T) {
	s, mock := newTestStorage(t)
	now := time.Now()

	mock.ExpectQuery("INSERT INTO open_role_audit_tasks").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(11), now, now))

	task := &domain.OpenRoleAuditTask{URL: "https://careers.example.com"}
	require.NoError(t, s.CreateOpenRoleTask(context.Background(), task))

	assert.Equal(t, int64(11), task.ID)
	assert.Equal(t, domain.AuditStatusNotRun, task.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetClosedRoleTasks(t *testing.T) {
	s, mock := newTestStorage(t)

	mock.ExpectExec(regexp.QuoteMeta("result = '', justification = '', screenshot = ''")).
		WithArgs(domain.AuditStatusPending, domain.StatusMessagePending, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, s.ResetClosedRoleTasks(context.Background(), []int64{1, 2}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteScrapedJob(t *testing.T) {
	s, mock := newTestStorage(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM positions WHERE scraped_id").WithArgs(int64(3)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM scraped_positions WHERE id").WithArgs(int64(3)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.DeleteScrapedJob(context.Background(), 3))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteScrapedJob_NotFoundRollsBack(t *testing.T) {
	s, mock := newTestStorage(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM positions WHERE scraped_id").WithArgs(int64(3)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM scraped_positions WHERE id").WithArgs(int64(3)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.DeleteScrapedJob(context.Background(), 3)
	assert.ErrorIs(t, err, domain.ErrPositionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func positionRow(id, scrapedID int64, status string, closedOn driver.Value) *sqlmock.Rows {
	cols := []string{"id", "company_id", "title", "url", "job_type", "status", "hidden", "closed_on",
		"salary_text", "visa_sponsored", "location", "site", "scraped_id", "created_at"}
	return sqlmock.NewRows(cols).AddRow(
		id, int64(42), "Product Manager", "https://a.com/1", domain.JobTypeFullTime, status, false, closedOn,
		"", domain.VisaUnknown, "Remote", "product", scrapedID, time.Now())
}

func TestPromoteScrapedJob(t *testing.T) {
	s, mock := newTestStorage(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO positions").
		WithArgs(int64(3), domain.PositionStatusOpen).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM positions WHERE scraped_id").
		WithArgs(int64(3)).
		WillReturnRows(positionRow(100, 3, domain.PositionStatusOpen, nil))
	mock.ExpectCommit()

	pos, err := s.PromoteScrapedJob(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(100), pos.ID)
	assert.Equal(t, domain.PositionStatusOpen, pos.Status)
	assert.False(t, pos.Hidden)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromoteScrapedJob_UnknownScrapedJob(t *testing.T) {
	s, mock := newTestStorage(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO positions").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FROM positions WHERE scraped_id").WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, err := s.PromoteScrapedJob(context.Background(), 3)
	assert.ErrorIs(t, err, domain.ErrPositionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdatePositionStatus(t *testing.T) {
	s, mock := newTestStorage(t)
	closedOn := "10/18/26"

	mock.ExpectQuery("UPDATE positions").
		WithArgs(domain.PositionStatusClosed, &closedOn, int64(100)).
		WillReturnRows(positionRow(100, 3, domain.PositionStatusClosed, closedOn))

	pos, err := s.UpdatePositionStatus(context.Background(), 100, domain.PositionStatusClosed, &closedOn)
	require.NoError(t, err)
	require.NotNil(t, pos.ClosedOn)
	assert.Equal(t, closedOn, *pos.ClosedOn)
}

func TestUpdatePositionStatus_NotFound(t *testing.T) {
	s, mock := newTestStorage(t)

	mock.ExpectQuery("UPDATE positions").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.UpdatePositionStatus(context.Background(), 100, domain.PositionStatusOpen, nil)
	assert.ErrorIs(t, err, domain.ErrPositionNotFound)
}

func TestGetLastBroadcast(t *testing.T) {
	s, mock := newTestStorage(t)
	at := time.Date(2026, 10, 17, 18, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT last_updated_time FROM config").
		WithArgs(BroadcastMarkerKey).
		WillReturnRows(sqlmock.NewRows([]string{"last_updated_time"}).AddRow(at))

	got, err := s.GetLastBroadcast(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, at.Equal(*got))
}

func TestGetLastBroadcast_Null(t *testing.T) {
	s, mock := newTestStorage(t)

	mock.ExpectQuery("SELECT last_updated_time FROM config").
		WillReturnRows(sqlmock.NewRows([]string{"last_updated_time"}).AddRow(nil))

	got, err := s.GetLastBroadcast(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSetLastBroadcast(t *testing.T) {
	s, mock := newTestStorage(t)
	at := time.Now()

	mock.ExpectExec("INSERT INTO config").
		WithArgs(BroadcastMarkerKey, at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.SetLastBroadcast(context.Background(), at))
	assert.NoError(t, mock.ExpectationsWereMet())
}
