package persistence_test

import (
	"context"
	"log"
	"os"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"

	"github.com/nexuscrm/salescrm/internal/config"
	"github.com/nexuscrm/salescrm/internal/infrastructure/database"
	"github.com/nexuscrm/salescrm/internal/infrastructure/persistence"
)

func init() {
	// An optional .env at the repository root can point the integration
	// tests at a real database via TEST_DATABASE_DRIVER and TEST_DATABASE_URL.
	paths := []string{
		"../../../.env",
		".env",
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			if err := godotenv.Load(p); err == nil {
				log.Printf("Loaded .env from %s for tests", p)
				return
			}
		}
	}
}

type testStore struct {
	conn       *database.Connection
	tx         *persistence.TransactionManager
	schema     *persistence.SchemaRepository
	users      *persistence.UserRepository
	companies  *persistence.CompanyRepository
	contacts   *persistence.ContactRepository
	deals      *persistence.DealRepository
	activities *persistence.ActivityRepository
	tasks      *persistence.TaskRepository
	documents  *persistence.DocumentRepository
}

// openTestStore migrates a fresh in-memory SQLite database, or the database
// named by TEST_DATABASE_URL when set, and wipes it after the test.
func openTestStore(t *testing.T) *testStore {
	t.Helper()
	ctx := context.Background()

	cfg := config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"}
	if url := os.Getenv("TEST_DATABASE_URL"); url != "" {
		cfg = config.DatabaseConfig{Driver: os.Getenv("TEST_DATABASE_DRIVER"), URL: url}
	}

	conn, err := database.Open(ctx, cfg)
	require.NoError(t, err)

	schemaRepo := persistence.NewSchemaRepository(conn)
	require.NoError(t, schemaRepo.Migrate(ctx))
	t.Cleanup(func() {
		_ = schemaRepo.Wipe(context.Background())
		_ = conn.Close()
	})

	base := persistence.NewRecordRepository(conn)
	return &testStore{
		conn:       conn,
		tx:         persistence.NewTransactionManager(conn),
		schema:     schemaRepo,
		users:      persistence.NewUserRepository(base),
		companies:  persistence.NewCompanyRepository(base),
		contacts:   persistence.NewContactRepository(base),
		deals:      persistence.NewDealRepository(base),
		activities: persistence.NewActivityRepository(base),
		tasks:      persistence.NewTaskRepository(base),
		documents:  persistence.NewDocumentRepository(base),
	}
}
