// Package containertest starts throwaway backing services for integration
// tests.
package containertest

import (
	"fmt"
	"os"
	"testing"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// SkipUnlessAvailable skips t when the network or the container provider is
// unavailable.
func SkipUnlessAvailable(t *testing.T) {
	t.Helper()

	if os.Getenv("DONT_USE_NETWORK") != "" {
		t.Skip("test requires network egress")
		return
	}

	testcontainers.SkipIfProviderIsNotHealthy(t)
}

func hostPort(t *testing.T, c testcontainers.Container, port string) string {
	t.Helper()

	host, err := c.Host(t.Context())
	if err != nil {
		t.Fatal(err)
	}

	mapped, err := c.MappedPort(t.Context(), nat.Port(port))
	if err != nil {
		t.Fatal(err)
	}

	return fmt.Sprintf("%s:%s", host, mapped.Port())
}

// Valkey starts a valkey server and returns a redis:// URL for it.
func Valkey(t *testing.T) string {
	t.Helper()
	SkipUnlessAvailable(t)

	req := testcontainers.ContainerRequest{
		Image:        "valkey/valkey:8",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}
	valkeyC, err := testcontainers.GenericContainer(t.Context(), testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	testcontainers.CleanupContainer(t, valkeyC)
	if err != nil {
		t.Fatal(err)
	}

	return fmt.Sprintf("redis://%s/0", hostPort(t, valkeyC, "6379/tcp"))
}

// Postgres starts a postgres server and returns a connection URL for it.
func Postgres(t *testing.T) string {
	t.Helper()
	SkipUnlessAvailable(t)

	req := testcontainers.ContainerRequest{
		Image:        "postgres:17-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "wall",
			"POSTGRES_PASSWORD": "hunter2",
			"POSTGRES_DB":       "wall",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}
	pgC, err := testcontainers.GenericContainer(t.Context(), testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	testcontainers.CleanupContainer(t, pgC)
	if err != nil {
		t.Fatal(err)
	}

	return fmt.Sprintf("postgres://wall:hunter2@%s/wall?sslmode=disable", hostPort(t, pgC, "5432/tcp"))
}
