package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/smallgroups-admin-api/internal/models"
)

func TestAttendanceRepositoryListByMeetings(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	marks, err := repo.ListByMeetings(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, marks)

	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance WHERE meeting_id = ANY($1) ORDER BY id")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "meeting_id", "person_id", "is_new", "created_at"}).
			AddRow(1, 40, "p1", false, time.Now()).
			AddRow(2, 40, nil, true, time.Now()))

	marks, err = repo.ListByMeetings(context.Background(), []int64{40})
	require.NoError(t, err)
	require.Len(t, marks, 2)
	assert.Nil(t, marks[1].PersonID)
	assert.True(t, marks[1].IsNew)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryExists(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM attendance WHERE meeting_id = $1 AND person_id = $2)")).
		WithArgs(int64(40), "p1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.Exists(context.Background(), 40, "p1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestAttendanceRepositoryCreateMark(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	person := "p1"
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO attendance (meeting_id, person_id, is_new, created_at) VALUES ($1, $2, $3, $4) RETURNING id")).
		WithArgs(int64(40), person, true, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(77))

	mark := &models.AttendanceMark{MeetingID: 40, PersonID: &person, IsNew: true}
	require.NoError(t, repo.Create(context.Background(), mark))
	assert.Equal(t, int64(77), mark.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositorySetNewMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE attendance SET is_new = $2 WHERE id = $1")).
		WithArgs(int64(5), false).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.SetNew(context.Background(), 5, false), sql.ErrNoRows)
}

func TestAttendanceRepositoryCreatePersonAndMembership(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	visit := "2024-05-02"
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO people (id, full_name, age, phone, email, first_visit_date, created_at)")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO memberships (group_id, person_id, is_member, created_at)")).
		WithArgs(int64(3), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	person := &models.Person{FullName: "Lucía", FirstVisitDate: &visit}
	require.NoError(t, repo.CreatePerson(context.Background(), person))
	require.NotEmpty(t, person.ID)
	require.NoError(t, repo.CreateMembership(context.Background(), 3, person.ID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryListEntries(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance a LEFT JOIN people p ON p.id = a.person_id WHERE a.meeting_id = $1")).
		WithArgs(int64(40)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "is_new", "created_at", "person_id", "full_name", "phone", "email", "age"}).
			AddRow(1, true, time.Now(), "p1", "Lucía", nil, nil, 31))

	entries, err := repo.ListEntries(context.Background(), 40)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].Age)
	assert.Equal(t, 31, *entries[0].Age)
	assert.NoError(t, mock.ExpectationsWereMet())
}
