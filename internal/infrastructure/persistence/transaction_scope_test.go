package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/herbtrace/backend/internal/application/traceability"
	"github.com/herbtrace/backend/internal/domain/batch"
	"github.com/herbtrace/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormTransactionScope(t *testing.T) {
	db := setupSQLiteDB(t)
	scope := NewGormTransactionScope(db)
	ctx := context.Background()

	t.Run("commits batch and binding together", func(t *testing.T) {
		err := scope.Execute(ctx, func(repos traceability.TransactionalRepositories) error {
			if err := repos.Batches().Create(ctx, newTestBatch(t, "ASH1")); err != nil {
				return err
			}
			code, _ := batch.NewTraceBinding("CODE1", "ASH1", testNow)
			return repos.TraceBindings().Create(ctx, code)
		})
		require.NoError(t, err)

		_, err = NewGormHerbBatchRepository(db).FindByID(ctx, "ASH1")
		assert.NoError(t, err)
		_, err = NewGormTraceBindingRepository(db).FindByCode(ctx, "CODE1")
		assert.NoError(t, err)
	})

	t.Run("rolls back on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := scope.Execute(ctx, func(repos traceability.TransactionalRepositories) error {
			if err := repos.Batches().Create(ctx, newTestBatch(t, "ASH2")); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		_, err = NewGormHerbBatchRepository(db).FindByID(ctx, "ASH2")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}
