package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/openvcon/vconstore/internal/store"
	"github.com/openvcon/vconstore/internal/store/storetest"
)

var testDSN string

// TestMain starts one postgres container shared by all tests. Set
// VCONSTORE_TEST_POSTGRES_DSN to point at an existing server instead, or
// leave Docker unavailable to skip.
func TestMain(m *testing.M) {
	if dsn := os.Getenv("VCONSTORE_TEST_POSTGRES_DSN"); dsn != "" {
		testDSN = dsn
		os.Exit(m.Run())
	}

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "vcon",
			"POSTGRES_PASSWORD": "vcon",
			"POSTGRES_DB":       "vcon",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}
	container, err := func() (c testcontainers.Container, err error) {
		// testcontainers panics (rather than returning an error) when no
		// Docker host can be found; treat that as "container unavailable".
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%v", r)
			}
		}()
		return testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
	}()
	if err != nil {
		fmt.Printf("postgres container unavailable, skipping: %v\n", err)
		os.Exit(0)
	}

	host, err := container.Host(ctx)
	if err != nil {
		fmt.Printf("container host: %v\n", err)
		os.Exit(1)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		fmt.Printf("container port: %v\n", err)
		os.Exit(1)
	}
	testDSN = fmt.Sprintf("postgres://vcon:vcon@%s:%s/vcon?sslmode=disable", host, port.Port())

	code := m.Run()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

// newTestStore gives each subtest its own schema so the suite sees an
// empty store. The schema is pinned through the DSN so every pooled
// connection resolves the same search_path.
func newTestStore(t *testing.T) store.Store {
	t.Helper()
	ctx := context.Background()
	schema := fmt.Sprintf("t%d", schemaSeq())

	admin, err := Open(testDSN)
	require.NoError(t, err)
	_, err = admin.ExecContext(ctx, `CREATE SCHEMA `+schema)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = admin.ExecContext(context.Background(), `DROP SCHEMA `+schema+` CASCADE`)
		_ = admin.Close()
	})

	db, err := Open(testDSN + "&options=-csearch_path%3D" + schema)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, EnsureSchema(ctx, db))
	s, err := New(db)
	require.NoError(t, err)
	return s
}

var seq int

func schemaSeq() int {
	seq++
	return seq
}

func TestPostgresStore(t *testing.T) {
	storetest.Run(t, newTestStore)
}

func TestOpenRejectsEmptyDSN(t *testing.T) {
	_, err := Open("")
	require.Error(t, err)
}

func TestDDLStatements(t *testing.T) {
	stmts := DDLStatements()
	require.NotEmpty(t, stmts)
	for _, s := range stmts {
		require.NotContains(t, s, ";")
	}
}
