package testhelpers

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ekaya-inc/ekaya-quality/pkg/retry"
)

// PostgresImage is the stock PostgreSQL image used for integration tests.
const PostgresImage = "postgres:16-alpine"

const (
	TestUser     = "quality"
	TestPassword = "test_password"
	TestDatabase = "quality_test"
)

// TestDB holds a shared test database container and connection pool.
// The pool is for seeding; code under test opens its own connections from
// Host and Port.
type TestDB struct {
	Container testcontainers.Container
	Pool      *pgxpool.Pool
	ConnStr   string
	Host      string
	Port      int
}

var (
	sharedTestDB     *TestDB
	sharedTestDBOnce sync.Once
	sharedTestDBErr  error
)

// GetTestDB returns a shared PostgreSQL container for integration tests,
// seeded with the fixture tables in CustomersFixture.
// The container is created once and reused across all tests in the run.
func GetTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedTestDBOnce.Do(func() {
		sharedTestDB, sharedTestDBErr = setupTestDB()
	})

	if sharedTestDBErr != nil {
		t.Fatalf("Failed to setup test database: %v", sharedTestDBErr)
	}

	return sharedTestDB
}

func setupTestDB() (*TestDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        PostgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       TestDatabase,
			"POSTGRES_USER":     TestUser,
			"POSTGRES_PASSWORD": TestPassword,
		},
		// The server logs readiness twice: once for the init run, once for real.
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		TestUser, TestPassword, host, port.Port(), TestDatabase)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := retry.Do(ctx, retry.DefaultConfig(), func() error { return pool.Ping(ctx) }); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping test database: %w", err)
	}

	if _, err := pool.Exec(ctx, CustomersFixture); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to seed fixtures: %w", err)
	}

	return &TestDB{
		Container: container,
		Pool:      pool,
		ConnStr:   connStr,
		Host:      host,
		Port:      port.Int(),
	}, nil
}

// CustomersFixture creates public.customers with ten rows:
//   - id is unique and never null
//   - email matches the email pattern on every non-null row, one row is null
//   - age is numeric, non-negative, with one outlier (120)
//   - signed_up spans January to June 2024
//   - rows 9 and 10 share email and phone; no two rows are fully identical
//   - public.customer_dupes holds two identical rows and one distinct row
const CustomersFixture = `
CREATE TABLE IF NOT EXISTS public.customers (
	id         INTEGER PRIMARY KEY,
	email      TEXT,
	phone      VARCHAR(32),
	age        INTEGER,
	balance    NUMERIC(10, 2),
	signed_up  DATE
);
TRUNCATE public.customers;
INSERT INTO public.customers (id, email, phone, age, balance, signed_up) VALUES
	(1,  'ada@example.com',     '+1 555 010 2030', 31, 120.50, '2024-01-05'),
	(2,  'grace@example.com',   '+1 555 010 2031', 45,  80.00, '2024-01-20'),
	(3,  'alan@example.org',    '+44 20 7946 0018', 29, 310.25, '2024-02-11'),
	(4,  'edsger@example.nl',   '+31 20 555 0101', 38,   0.00, '2024-02-28'),
	(5,  'barbara@example.com', '+1 555 010 2032', 52,  45.10, '2024-03-03'),
	(6,  NULL,                  '+1 555 010 2033', 27,  12.00, '2024-03-15'),
	(7,  'donald@example.com',  '+1 555 010 2034', 33,  99.99, '2024-04-01'),
	(8,  'frances@example.com', '+1 555 010 2035', 41, 150.00, '2024-05-09'),
	(9,  'john@example.com',    '+1 555 010 2036', 36,  75.00, '2024-06-21'),
	(10, 'john@example.com',    '+1 555 010 2036', 120, 75.00, '2024-06-21');

CREATE TABLE IF NOT EXISTS public.customer_dupes (
	name  TEXT,
	score INTEGER
);
TRUNCATE public.customer_dupes;
INSERT INTO public.customer_dupes (name, score) VALUES ('x', 1), ('x', 1), ('y', 2);
`
