// Package testutil starts the database containers shared by integration
// tests. Tests are skipped when Docker is not available.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// sharedContainer is started by the first test that asks for it and reused
// for the rest of the test binary. The testcontainers reaper removes it when
// the binary exits.
type sharedContainer struct {
	name  string
	start func(ctx context.Context) (string, error)

	once sync.Once
	addr string
	err  error
}

func (c *sharedContainer) get(t *testing.T) string {
	t.Helper()
	c.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
		defer cancel()
		c.addr, c.err = c.start(ctx)
	})
	if c.err != nil {
		t.Skipf("%s container unavailable: %v", c.name, c.err)
	}
	return c.addr
}

// runContainer starts image with port exposed and returns its host:port.
func runContainer(ctx context.Context, image, port string, env map[string]string, waitFor ...wait.Strategy) (string, error) {
	c, err := testcontainers.Run(ctx, image,
		testcontainers.WithExposedPorts(port),
		testcontainers.WithEnv(env),
		testcontainers.WithWaitStrategy(waitFor...),
	)
	if err != nil {
		if c != nil {
			_ = c.Terminate(context.Background())
		}
		return "", err
	}

	endpoint, err := c.PortEndpoint(ctx, nat.Port(port), "")
	if err != nil {
		_ = c.Terminate(context.Background())
		return "", err
	}
	return endpoint, nil
}

var mongoContainer = &sharedContainer{
	name: "mongo",
	start: func(ctx context.Context) (string, error) {
		endpoint, err := runContainer(ctx, "mongo:7", "27017/tcp", nil,
			wait.ForListeningPort("27017/tcp"),
			wait.ForLog("mongod startup complete"),
		)
		if err != nil {
			return "", err
		}
		return "mongodb://" + endpoint, nil
	},
}

// GetMongoURI returns the URI of the shared MongoDB container.
func GetMongoURI(t *testing.T) string {
	t.Helper()
	return mongoContainer.get(t)
}

const (
	pgUser     = "sitesync"
	pgPassword = "sitesync"
	pgDatabase = "sitesync_test"
)

func pgDSN(hostPort string) string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable", pgUser, pgPassword, hostPort, pgDatabase)
}

var postgresContainer = &sharedContainer{
	name: "postgres",
	start: func(ctx context.Context) (string, error) {
		endpoint, err := runContainer(ctx, "postgres:16", "5432/tcp",
			map[string]string{
				"POSTGRES_USER":     pgUser,
				"POSTGRES_PASSWORD": pgPassword,
				"POSTGRES_DB":       pgDatabase,
			},
			wait.ForAll(
				wait.ForListeningPort("5432/tcp"),
				wait.ForLog("ready to accept connections"),
				wait.ForSQL("5432/tcp", "pgx", func(host string, port nat.Port) string {
					return pgDSN(host + ":" + port.Port())
				}).WithQuery("SELECT 1"),
			).WithDeadline(2*time.Minute),
		)
		if err != nil {
			return "", err
		}
		return pgDSN(endpoint), nil
	},
}

// GetPostgresEndpoint returns a DSN for the shared PostgreSQL container.
func GetPostgresEndpoint(t *testing.T) string {
	t.Helper()
	return postgresContainer.get(t)
}

var redisContainer = &sharedContainer{
	name: "redis",
	start: func(ctx context.Context) (string, error) {
		return runContainer(ctx, "redis:7", "6379/tcp", nil,
			wait.ForListeningPort("6379/tcp"),
			wait.ForLog("Ready to accept connections"),
		)
	},
}

// GetRedisAddress returns host:port of the shared Redis container.
func GetRedisAddress(t *testing.T) string {
	t.Helper()
	return redisContainer.get(t)
}
