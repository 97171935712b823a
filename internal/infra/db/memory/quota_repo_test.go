package memory

import (
	"testing"

	"github.com/bryanwahyu/fineprint/internal/infra/db/dbtest"
)

func TestQuotaRepository(t *testing.T) {
	dbtest.RunQuotaRepository(t, NewQuotaRepository(), dbtest.Sequence("mem"))
}
