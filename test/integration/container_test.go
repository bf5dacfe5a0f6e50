//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

const (
	clinicDBUser     = "carebridge"
	clinicDBPassword = "carebridge-it"
	clinicDBName     = "clinic_it"
)

// clinicDBImage is the Postgres image the suite runs against. The schema
// relies on gen_random_uuid, so anything from 13 up works.
func clinicDBImage() string {
	if img := os.Getenv("CLINIC_IT_POSTGRES_IMAGE"); img != "" {
		return img
	}
	return "postgres:16-alpine"
}

// startClinicDB runs a throwaway Postgres for the clinic schema through the
// Docker CLI. Docker picks the host port; the returned stop func removes the
// container.
func startClinicDB(ctx context.Context) (string, func(), error) {
	name := fmt.Sprintf("carebridge-clinic-it-%d", time.Now().UnixNano())
	out, err := exec.CommandContext(ctx, "docker", "run", "-d", "--rm",
		"--name", name,
		"--label", "carebridge.suite=integration",
		"-p", "127.0.0.1::5432",
		"-e", "POSTGRES_USER="+clinicDBUser,
		"-e", "POSTGRES_PASSWORD="+clinicDBPassword,
		"-e", "POSTGRES_DB="+clinicDBName,
		clinicDBImage(),
	).CombinedOutput()
	if err != nil {
		return "", nil, fmt.Errorf("docker run %s: %w: %s", clinicDBImage(), err, out)
	}
	id := strings.TrimSpace(string(out))
	stop := func() { _ = exec.Command("docker", "rm", "-f", id).Run() }

	addr, err := publishedAddr(ctx, id)
	if err != nil {
		stop()
		return "", nil, err
	}
	dsn := fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable", clinicDBUser, clinicDBPassword, addr, clinicDBName)
	if err := awaitClinicDB(ctx, dsn, 45*time.Second); err != nil {
		stop()
		return "", nil, err
	}
	return dsn, stop, nil
}

// publishedAddr reads the host address docker bound to the container's 5432.
func publishedAddr(ctx context.Context, id string) (string, error) {
	out, err := exec.CommandContext(ctx, "docker", "port", id, "5432/tcp").Output()
	if err != nil {
		return "", fmt.Errorf("docker port: %w", err)
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	if line == "" {
		return "", fmt.Errorf("docker port: no binding for 5432")
	}
	return line, nil
}

// awaitClinicDB polls until the server answers a query. The entrypoint
// restarts postgres once after init, so a single successful dial is not
// enough; the check has to run a statement.
func awaitClinicDB(ctx context.Context, dsn string, within time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, within)
	defer cancel()

	tick := time.NewTicker(400 * time.Millisecond)
	defer tick.Stop()
	var lastErr error
	for {
		if lastErr = pingClinicDB(ctx, dsn); lastErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("clinic db not ready after %v: %w", within, lastErr)
		case <-tick.C:
		}
	}
}

func pingClinicDB(ctx context.Context, dsn string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close(context.Background())
	var one int
	return conn.QueryRow(ctx, "SELECT 1").Scan(&one)
}
