package services_test

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nexuscrm/salescrm/internal/application/services"
	"github.com/nexuscrm/salescrm/internal/config"
	"github.com/nexuscrm/salescrm/internal/domain/events"
	"github.com/nexuscrm/salescrm/internal/domain/models"
	"github.com/nexuscrm/salescrm/internal/infrastructure/database"
	"github.com/nexuscrm/salescrm/internal/infrastructure/persistence"
	"github.com/nexuscrm/salescrm/pkg/auth"
	"github.com/nexuscrm/salescrm/pkg/constants"
	"github.com/nexuscrm/salescrm/pkg/utils"
)

func init() {
	// An optional .env at the repository root can point the tests at a real
	// database via TEST_DATABASE_DRIVER and TEST_DATABASE_URL.
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

const testSecret = "test-secret-0123456789abcdef"

// openTestConn migrates a fresh in-memory SQLite database, or the database
// named by TEST_DATABASE_URL when set, and wipes it after the test.
func openTestConn(t *testing.T) *database.Connection {
	t.Helper()
	ctx := context.Background()

	cfg := config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"}
	if url := os.Getenv("TEST_DATABASE_URL"); url != "" {
		cfg = config.DatabaseConfig{Driver: os.Getenv("TEST_DATABASE_DRIVER"), URL: url}
	}

	conn, err := database.Open(ctx, cfg)
	require.NoError(t, err)

	schema := persistence.NewSchemaRepository(conn)
	require.NoError(t, schema.Migrate(ctx))
	t.Cleanup(func() {
		_ = schema.Wipe(context.Background())
		_ = conn.Close()
	})
	return conn
}

func testConfig() *config.Config {
	return &config.Config{
		Auth:    config.AuthConfig{JWTSecret: testSecret, TokenTTL: time.Hour, AllowRegistration: true},
		Storage: config.StorageConfig{MaxUpload: 1 << 20, URLExpiry: 5 * time.Minute},
	}
}

// newManager wires every service over a test database. deps may carry
// optional adapters; Conn, Tokens and Config are filled in when empty.
func newManager(t *testing.T, deps services.Dependencies) *services.ServiceManager {
	t.Helper()
	if deps.Conn == nil {
		deps.Conn = openTestConn(t)
	}
	if deps.Config == nil {
		deps.Config = testConfig()
	}
	if deps.Tokens == nil {
		tm, err := auth.NewTokenManager(testSecret, time.Hour, "test")
		require.NoError(t, err)
		deps.Tokens = tm
	}
	sm := services.NewServiceManager(deps)
	t.Cleanup(func() { sm.Close(context.Background()) })
	return sm
}

// seedUser inserts a profile and returns its session.
func seedUser(t *testing.T, sm *services.ServiceManager, role string) *models.UserSession {
	t.Helper()
	user := &models.UserSession{
		ID:    utils.GenerateID(),
		Email: utils.GenerateID()[:8] + "@example.com",
		Name:  "Test User",
		Role:  role,
	}
	_, err := sm.Auth.GetMe(context.Background(), user)
	require.NoError(t, err)
	return user
}

func salesRep(t *testing.T, sm *services.ServiceManager) *models.UserSession {
	return seedUser(t, sm, constants.RoleSalesRep)
}

// recorder collects published changes.
type recorder struct {
	changes chan events.Change
}

func record(sm *services.ServiceManager, eventType events.EventType) *recorder {
	r := &recorder{changes: make(chan events.Change, 64)}
	sm.EventBus.Subscribe(eventType, func(_ context.Context, c events.Change) error {
		r.changes <- c
		return nil
	})
	return r
}

func (r *recorder) drain() []events.Change {
	var out []events.Change
	for {
		select {
		case c := <-r.changes:
			out = append(out, c)
		default:
			return out
		}
	}
}

// MockCompleter is a testify mock of the LLM provider.
type MockCompleter struct {
	mock.Mock
}

func (m *MockCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	args := m.Called(ctx, system, prompt)
	return args.String(0), args.Error(1)
}

func (m *MockCompleter) Name() string {
	return "mock"
}

func strPtr(s string) *string { return &s }
func f64Ptr(v float64) *float64 { return &v }
func intPtr(v int) *int { return &v }
