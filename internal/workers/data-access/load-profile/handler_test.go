package loadprofile

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swipestats-workers/internal/common/errors"
	"swipestats-workers/internal/common/logger"
	"swipestats-workers/internal/repository"
)

const profileID = "0a1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c6d7e8f9"

var loadQuery = regexp.QuoteMeta(`SELECT profile FROM "normalized_profiles" WHERE profile_id = $1`)

func setup(t *testing.T) (*Handler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := repository.NewPostgresProfileStore(db, "")
	return NewHandler(LoadConfig(), store, logger.NewTestLogger(t)), mock
}

func TestExecute_Found(t *testing.T) {
	h, mock := setup(t)
	mock.ExpectQuery(loadQuery).
		WithArgs(profileID).
		WillReturnRows(sqlmock.NewRows([]string{"profile"}).
			AddRow([]byte(`{"profileId":"` + profileID + `","platform":"hinge","usage":[{"date":"2023-02-01","swipeLikes":4}]}`)))

	out, err := h.Execute(context.Background(), &Input{ProfileID: profileID})
	require.NoError(t, err)

	assert.True(t, out.Found)
	require.NotNil(t, out.Profile)
	assert.Equal(t, "hinge", string(out.Profile.Platform))
	assert.NotNil(t, out.Profile.Matches)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_NotFound(t *testing.T) {
	h, mock := setup(t)
	mock.ExpectQuery(loadQuery).
		WithArgs(profileID).
		WillReturnRows(sqlmock.NewRows([]string{"profile"}))

	out, err := h.Execute(context.Background(), &Input{ProfileID: profileID})
	require.NoError(t, err)
	assert.False(t, out.Found)
	assert.Nil(t, out.Profile)
}

func TestExecute_StoreFailure(t *testing.T) {
	h, mock := setup(t)
	mock.ExpectQuery(loadQuery).
		WithArgs(profileID).
		WillReturnError(assert.AnError)

	_, err := h.Execute(context.Background(), &Input{ProfileID: profileID})
	require.Error(t, err)

	std := errors.FromError(err)
	assert.Equal(t, errors.ErrCodeProfileLoadFailed, std.Code)
	assert.True(t, std.Retryable)
}

func TestExecute_InvalidProfileID(t *testing.T) {
	h, _ := setup(t)

	for _, id := range []string{"", "abc", "zz1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c6d7e8f9"} {
		_, err := h.Execute(context.Background(), &Input{ProfileID: id})
		require.Error(t, err, id)
		assert.Equal(t, errors.ErrCodeInvalidInput, errors.FromError(err).Code)
	}
}
