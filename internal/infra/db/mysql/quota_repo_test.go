package mysql

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/fineprint/internal/infra/db/dbtest"
)

// Needs a disposable database, e.g.
// FINEPRINT_TEST_MYSQL_DSN="root:root@tcp(localhost:3306)/fineprint_test?parseTime=true"
func TestQuotaRepository(t *testing.T) {
	dsn := os.Getenv("FINEPRINT_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("FINEPRINT_TEST_MYSQL_DSN not set")
	}
	ctx := context.Background()
	db, err := Connect(ctx, dsn)
	require.NoError(t, err)
	repo := NewQuotaRepository(db)
	t.Cleanup(func() { repo.Close() })
	require.NoError(t, repo.Migrate(ctx))

	dbtest.RunQuotaRepository(t, repo, dbtest.Sequence("mysql-"+uuid.NewString()))
}
