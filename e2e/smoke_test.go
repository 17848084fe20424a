//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"stationmeteo-server/internal/modules/weather/synthetic"
	"stationmeteo-server/internal/mqtt"
)

const (
	repoRootRel = ".."    // relative to ./e2e
	mainPkgRel  = "./cmd" // main.go lives in cmd/
	topic       = "stationmeteo/e2e"
)

func TestSmoke_PushRetrieveExport(t *testing.T) {
	repoRoot := repoRootPath(t)

	// SQLite "service" container that creates the DB file in a host temp dir
	sqlitePath := startSQLite(t)
	brokerHost, brokerPort := startMosquitto(t)

	bin := buildBinary(t, repoRoot)
	addr := pickFreeAddr(t)

	cmd := exec.Command(bin, "serve", "--env-file", "")
	cmd.Env = append(os.Environ(),
		"APP_ENV=dev",
		"LOG_LEVEL=info",
		"HTTP_ADDR="+addr,
		"DB_DRIVER=sqlite3",
		"SQLITE_PATH="+sqlitePath,
		"MQTT_BROKER="+brokerHost,
		"MQTT_PORT="+brokerPort,
		"MQTT_TOPIC="+topic,
		"POLL_INTERVAL=1h",
		"EXPORT_DIR="+t.TempDir(),
		"EXPORT_BASE_URL=http://"+addr,
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_, _ = cmd.Process.Wait()
	})

	client := &http.Client{Timeout: 5 * time.Second}
	base := "http://" + addr

	waitForOK(t, client, base+"/healthz", 10*time.Second)
	waitForSubscribed(t, client, base+"/healthz", 30*time.Second)

	port, err := strconv.Atoi(brokerPort)
	if err != nil {
		t.Fatalf("broker port %q: %v", brokerPort, err)
	}
	pub := mqtt.NewPublisher(mqtt.Options{Broker: brokerHost, Port: port, ClientID: "e2e-publisher", Topic: topic}, slog.Default())
	t.Cleanup(pub.Disconnect)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := pub.Connect(ctx); err != nil {
		t.Fatalf("publisher connect: %v", err)
	}

	gen := synthetic.New(2024)
	day := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)
	last := day
	for i := 0; i < 4; i++ {
		last = day.Add(time.Duration(i) * 30 * time.Minute)
		if err := pub.PublishTelemetry(ctx, gen.Telemetry(last)); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	// delivery is asynchronous; wait until the last reading is live
	deadline := time.Now().Add(20 * time.Second)
	for {
		var cur struct {
			Status  string `json:"status"`
			Reading *struct {
				Source  string `json:"source"`
				Reading struct {
					Timestamp time.Time `json:"timestamp"`
				} `json:"reading"`
			} `json:"reading"`
		}
		getJSON(t, client, base+"/api/v1/current", &cur)
		if cur.Status == "ok" && cur.Reading != nil && cur.Reading.Reading.Timestamp.Equal(last) {
			if cur.Reading.Source != "push" {
				t.Fatalf("source = %q; want push", cur.Reading.Source)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("current reading never reached %s (last: %+v)", last, cur)
		}
		time.Sleep(200 * time.Millisecond)
	}

	var page struct {
		TotalItems int `json:"totalItems"`
		Items      []struct {
			Count int `json:"count"`
		} `json:"items"`
	}
	getJSON(t, client, base+"/api/v1/historical?startDate=2024-08-01&endDate=2024-08-01&granularity=hourly", &page)
	if page.TotalItems != 2 || len(page.Items) != 2 || page.Items[0].Count != 2 {
		t.Fatalf("historical page = %+v; want 2 hourly buckets of 2", page)
	}

	resp, err := client.Post(base+"/api/v1/export", "application/json",
		strings.NewReader(`{"startDate":"2024-08-01","endDate":"2024-08-01","granularity":"daily","format":"csv"}`))
	if err != nil {
		t.Fatalf("POST /api/v1/export: %v", err)
	}
	var artifact struct {
		Locator string `json:"locator"`
	}
	decodeJSON(t, resp, http.StatusCreated, &artifact)

	dl, err := client.Get(artifact.Locator)
	if err != nil {
		t.Fatalf("GET %s: %v", artifact.Locator, err)
	}
	defer dl.Body.Close()
	body, _ := io.ReadAll(dl.Body)
	if dl.StatusCode != http.StatusOK || !strings.HasPrefix(string(body), "bucketStart,") {
		t.Fatalf("download status=%d body=%q", dl.StatusCode, body)
	}

	stopServer(t, cmd)
}

func getJSON(t *testing.T, client *http.Client, url string, v any) {
	t.Helper()
	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	decodeJSON(t, resp, http.StatusOK, v)
}

func decodeJSON(t *testing.T, resp *http.Response, wantStatus int, v any) {
	t.Helper()
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s status=%d want=%d body=%s", resp.Request.URL, resp.StatusCode, wantStatus, b)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode json: %v", err)
	}
}

func startMosquitto(t *testing.T) (host, port string) {
	t.Helper()
	ctx := context.Background()

	const mqttPort = nat.Port("1883/tcp")
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "eclipse-mosquitto:2",
			ExposedPorts: []string{string(mqttPort)},
			Cmd:          []string{"mosquitto", "-c", "/mosquitto-no-auth.conf"},
			WaitingFor:   wait.ForListeningPort(mqttPort).WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start mosquitto container: %v", err)
	}
	t.Cleanup(func() {
		_ = c.Terminate(ctx)
	})

	host, err = c.Host(ctx)
	if err != nil {
		t.Fatalf("mosquitto host: %v", err)
	}
	mapped, err := c.MappedPort(ctx, mqttPort)
	if err != nil {
		t.Fatalf("mosquitto port: %v", err)
	}
	return host, mapped.Port()
}

func startSQLite(t *testing.T) string {
	t.Helper()

	// Host temp dir that will contain app.db
	hostDir := t.TempDir()
	dbPath := filepath.Join(hostDir, "stationmeteo.db")

	ctx := context.Background()

	req := tc.ContainerRequest{
		Image:      "nouchka/sqlite3:latest",
		WorkingDir: "/data",
		// Create the DB file and keep container alive
		Entrypoint: []string{"sh", "-c"},
		Cmd: []string{
			"sqlite3 /data/stationmeteo.db \"PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON;\" && " +
				"echo 'sqlite ready' && " +
				"tail -f /dev/null",
		},

		HostConfigModifier: func(hc *container.HostConfig) {
			hc.Binds = append(hc.Binds, hostDir+":/data")
		},
		WaitingFor: wait.ForLog("sqlite ready").WithStartupTimeout(30 * time.Second),
	}

	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start sqlite container: %v", err)
	}

	t.Cleanup(func() {
		_ = c.Terminate(ctx)
	})

	// Ensure file exists on host (container created it in the bind mount)
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("sqlite db file not created: %v", err)
	}

	return dbPath
}

func repoRootPath(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}

	repo := filepath.Clean(filepath.Join(wd, repoRootRel))
	if _, err := os.Stat(filepath.Join(repo, "go.mod")); err != nil {
		t.Fatalf("repo root %q does not contain go.mod: %v", repo, err)
	}

	return repo
}

func buildBinary(t *testing.T, repoRoot string) string {
	t.Helper()

	tmp := t.TempDir()
	out := filepath.Join(tmp, "stationmeteo")

	build := exec.Command("go", "build", "-o", out, mainPkgRel)
	build.Dir = repoRoot
	build.Env = os.Environ()

	b, err := build.CombinedOutput()
	if err != nil {
		t.Fatalf("go build failed: %v\n%s", err, string(b))
	}

	return out
}

func pickFreeAddr(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen :0: %v", err)
	}
	defer ln.Close()

	return ln.Addr().String()
}

func waitForOK(t *testing.T, client *http.Client, url string, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server not healthy after %s: %s", timeout, url)
}

func waitForSubscribed(t *testing.T, client *http.Client, url string, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		var body map[string]string
		getJSON(t, client, url, &body)
		if body["mqtt"] == "subscribed" {
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	t.Fatalf("mqtt subscriber not ready after %s", timeout)
}

func stopServer(t *testing.T, cmd *exec.Cmd) {
	t.Helper()

	_ = cmd.Process.Signal(syscall.SIGTERM)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		t.Fatalf("server did not exit in time")
	case err := <-done:
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				t.Fatalf("server exited non-zero: %v", err)
			}
			t.Fatalf("server wait error: %v", err)
		}
	}
}
