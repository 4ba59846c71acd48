//go:build integration || !unit

package integration

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	httpserver "staybook/internal/adapters/http_server"
	redisad "staybook/internal/adapters/redis"
	"staybook/internal/app"
	"staybook/internal/domain"
	mysqlrepo "staybook/internal/storage/mysql"
)

// fakeGateway stands in for the card processor so the suite runs offline.
// References are stable per call so confirm-payment can look them up.
type fakeGateway struct {
	mu     sync.Mutex
	n      int
	status map[string]string
}

func (g *fakeGateway) Charge(ctx context.Context, amountMinor int64, currency, token string) (domain.Charge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	ref := fmt.Sprintf("pi_e2e_%d", g.n)
	if g.status == nil {
		g.status = map[string]string{}
	}
	g.status[ref] = "requires_confirmation"
	return domain.Charge{Reference: ref, ClientSecret: ref + "_secret"}, nil
}

func (g *fakeGateway) ChargeStatus(ctx context.Context, reference string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if s, ok := g.status[reference]; ok {
		return s, nil
	}
	return "", domain.ErrNotFound
}

func startMySQL(t *testing.T) *sql.DB {
	t.Helper()

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env:        []string{"MYSQL_ROOT_PASSWORD=root", "MYSQL_DATABASE=staybook"},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	dsn := fmt.Sprintf("root:root@tcp(127.0.0.1:%s)/staybook?parseTime=true&multiStatements=true&loc=UTC",
		resource.GetPort("3306/tcp"))

	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	dir := os.Getenv("MIGRATIONS_DIR")
	if dir == "" {
		dir = filepath.Join("..", "..", "migrations")
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir %s: %v", dir, err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(b)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
	return db
}

func seed(t *testing.T, db *sql.DB) {
	t.Helper()
	stmts := []string{
		`INSERT INTO room_types (id, name, monthly_price, daily_price) VALUES (10, 'standard', 100.00, 10.00)`,
		`INSERT INTO rooms (id, room_type_id, number) VALUES (1, 10, '101')`,
		`INSERT INTO services (id, name, monthly_price, daily_price, is_free, is_limited, total_units) VALUES
		   (2, 'cleaning', 30.00, 3.00, 0, 0, 0),
		   (3, 'wifi',     50.00, 5.00, 1, 0, 0)`,
		`INSERT INTO room_type_services (room_type_id, service_id) VALUES (10, 2), (10, 3)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeGateway) {
	t.Helper()

	db := startMySQL(t)
	seed(t, db)
	repo := mysqlrepo.New(db)

	mr := miniredis.RunT(t)
	cache := redisad.New(mr.Addr(), "", 0)
	notifier := redisad.NewNotifier(mr.Addr(), "", 0, "staybook.events")

	gw := &fakeGateway{}

	quotes := app.NewQuoteService(repo)
	avail := app.NewAvailabilityService(repo, cache, time.Minute)
	catalog := app.NewCatalogService(repo, cache, time.Minute)
	payments := app.NewPaymentService(quotes, avail, repo, gw, notifier, "usd")

	srv := httpserver.New()
	srv.MountHandlers(&httpserver.Handlers{
		Catalog:  catalog,
		Avail:    avail,
		Quotes:   quotes,
		Payments: payments,
	})
	ts := httptest.NewServer(srv.Mux())
	t.Cleanup(ts.Close)
	return ts, gw
}

func doJSON(t *testing.T, method, url string, body any, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestHTTP_BookingFlow(t *testing.T) {
	ts, _ := newTestServer(t)
	user := map[string]string{"X-User-ID": "7"}

	booking := map[string]any{
		"roomId":     1,
		"serviceIds": []int64{2, 3},
		"startDate":  "2031-12-01",
		"endDate":    "2031-12-10",
	}

	t.Run("calculate cost", func(t *testing.T) {
		resp, out := doJSON(t, http.MethodPost, ts.URL+"/v1/bookings/calculate-cost", booking, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d: %v", resp.StatusCode, out)
		}
		// 9 days: room 90.00 + cleaning 27.00, wifi free
		if out["totalCost"] != "117.00" || out["roomCost"] != "90.00" || out["servicesCost"] != "27.00" {
			t.Fatalf("costs: %v", out)
		}
		if out["countMonth"] != float64(0) || out["countDay"] != float64(9) {
			t.Fatalf("span: %v", out)
		}
	})

	t.Run("rejects past start date", func(t *testing.T) {
		bad := map[string]any{"roomId": 1, "startDate": "2020-01-01", "endDate": "2020-01-05"}
		resp, _ := doJSON(t, http.MethodPost, ts.URL+"/v1/bookings/calculate-cost", bad, nil)
		if resp.StatusCode != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d", resp.StatusCode)
		}
	})

	var paymentRef string

	t.Run("payment intent", func(t *testing.T) {
		req := map[string]any{}
		for k, v := range booking {
			req[k] = v
		}
		req["paymentMethodToken"] = "pm_card_visa"

		resp, out := doJSON(t, http.MethodPost, ts.URL+"/v1/bookings/payment-intent", req, user)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("status = %d: %v", resp.StatusCode, out)
		}
		if out["totalCost"] != "117.00" {
			t.Fatalf("intent total disagrees with preview: %v", out)
		}
		ref, _ := out["paymentReference"].(string)
		if ref == "" || out["clientSecret"] == "" {
			t.Fatalf("intent: %v", out)
		}
		paymentRef = ref
	})

	t.Run("payment intent requires user header", func(t *testing.T) {
		req := map[string]any{}
		for k, v := range booking {
			req[k] = v
		}
		req["paymentMethodToken"] = "pm_card_visa"
		resp, _ := doJSON(t, http.MethodPost, ts.URL+"/v1/bookings/payment-intent", req, nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d", resp.StatusCode)
		}
	})

	t.Run("overlapping intent conflicts", func(t *testing.T) {
		req := map[string]any{
			"roomId":             1,
			"startDate":          "2031-12-05",
			"endDate":            "2031-12-20",
			"paymentMethodToken": "pm_card_visa",
		}
		resp, out := doJSON(t, http.MethodPost, ts.URL+"/v1/bookings/payment-intent", req, user)
		if resp.StatusCode != http.StatusConflict {
			t.Fatalf("status = %d: %v", resp.StatusCode, out)
		}
	})

	t.Run("unavailable dates reflect the booking", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodGet, ts.URL+"/v1/bookables/room/1/unavailable-dates", nil, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		// list body, decode separately
		resp2, err := http.Get(ts.URL + "/v1/bookables/room/1/unavailable-dates")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		defer resp2.Body.Close()
		var ranges []map[string]string
		if err := json.NewDecoder(resp2.Body).Decode(&ranges); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(ranges) != 1 || ranges[0]["start"] != "2031-12-01" || ranges[0]["end"] != "2031-12-10" {
			t.Fatalf("ranges: %v", ranges)
		}
	})

	t.Run("confirm payment", func(t *testing.T) {
		req := map[string]any{"paymentReference": paymentRef, "outcome": "succeeded"}
		resp, out := doJSON(t, http.MethodPost, ts.URL+"/v1/bookings/confirm-payment", req, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d: %v", resp.StatusCode, out)
		}
		if out["status"] != "paid" {
			t.Fatalf("confirm: %v", out)
		}
	})

	t.Run("duplicate confirm rejected", func(t *testing.T) {
		req := map[string]any{"paymentReference": paymentRef, "outcome": "succeeded"}
		resp, _ := doJSON(t, http.MethodPost, ts.URL+"/v1/bookings/confirm-payment", req, nil)
		if resp.StatusCode != http.StatusConflict {
			t.Fatalf("status = %d", resp.StatusCode)
		}
	})

	t.Run("unknown reference", func(t *testing.T) {
		req := map[string]any{"paymentReference": "pi_nope", "outcome": "succeeded"}
		resp, _ := doJSON(t, http.MethodPost, ts.URL+"/v1/bookings/confirm-payment", req, nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("status = %d", resp.StatusCode)
		}
	})

	t.Run("room detail with etag revalidation", func(t *testing.T) {
		resp, out := doJSON(t, http.MethodGet, ts.URL+"/v1/rooms/1", nil, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d: %v", resp.StatusCode, out)
		}
		if out["number"] != "101" {
			t.Fatalf("room: %v", out)
		}
		etag := resp.Header.Get("ETag")
		if etag == "" {
			t.Fatalf("no ETag on room detail")
		}

		req, _ := http.NewRequest(http.MethodGet, ts.URL+"/v1/rooms/1", nil)
		req.Header.Set("If-None-Match", etag)
		resp2, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("revalidate: %v", err)
		}
		defer resp2.Body.Close()
		if resp2.StatusCode != http.StatusNotModified {
			t.Fatalf("revalidation status = %d", resp2.StatusCode)
		}
	})

	t.Run("missing room is 404", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodGet, ts.URL+"/v1/rooms/404", nil, nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("status = %d", resp.StatusCode)
		}
	})
}
