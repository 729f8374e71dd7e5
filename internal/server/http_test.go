package server_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"

	"MatchCore/internal/core"
	"MatchCore/internal/event"
	"MatchCore/internal/observability"
	"MatchCore/internal/order"
	"MatchCore/internal/query"
	"MatchCore/internal/server"
)

type fixture struct {
	srv     *httptest.Server
	health  *observability.HealthChecker
	metrics *observability.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	e, err := core.NewTradingEngine(core.Config{Market: "BTC-USD", BaseAsset: "BTC", QuoteAsset: "USD"},
		nil, nil, observability.NewLoggerTo(io.Discard, "core"), nil)
	if err != nil {
		t.Fatal(err)
	}

	d := decimal.RequireFromString
	for _, evt := range []event.Event{
		&event.Transfer{Sequence: 1, ToUserID: 5, Asset: "USD", Amount: d("500")},
		&event.OrderRequest{Sequence: 2, CreatedAt: 2, UserID: 5, Direction: order.Buy, Price: d("100"), Quantity: d("2")},
	} {
		if _, err := e.ProcessEvent(evt); err != nil {
			t.Fatal(err)
		}
	}

	reg := prometheus.NewRegistry()
	f := &fixture{
		health:  observability.NewHealthChecker(),
		metrics: observability.NewMetrics(reg),
	}
	handler, err := server.NewHTTPHandler(&server.Deps{
		QueryService:   query.NewQueryService(e, nil),
		HealthChecker:  f.health,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Metrics:        f.metrics,
		Logger:         observability.NewLoggerTo(io.Discard, "server"),
	})
	if err != nil {
		t.Fatal(err)
	}
	f.srv = httptest.NewServer(handler)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) get(t *testing.T, path string, out any) int {
	t.Helper()
	resp, err := http.Get(f.srv.URL + path)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return resp.StatusCode
}

func TestHTTP_GetOrder(t *testing.T) {
	f := newFixture(t)

	var o query.OrderResponse
	if code := f.get(t, "/v1/orders/1", &o); code != http.StatusOK {
		t.Fatalf("status: got %d", code)
	}
	if o.UserID != 5 || o.Price != "100" || o.AsOfSequence != 2 {
		t.Errorf("got %+v", o)
	}

	if code := f.get(t, "/v1/orders/42", nil); code != http.StatusNotFound {
		t.Errorf("unknown order: got %d, want 404", code)
	}
	if code := f.get(t, "/v1/orders/abc", nil); code != http.StatusBadRequest {
		t.Errorf("bad id: got %d, want 400", code)
	}
}

func TestHTTP_UserRoutes(t *testing.T) {
	f := newFixture(t)

	var orders []query.OrderResponse
	if code := f.get(t, "/v1/users/5/orders", &orders); code != http.StatusOK || len(orders) != 1 {
		t.Errorf("orders: code=%d got %+v", code, orders)
	}

	var balances []query.BalanceResponse
	if code := f.get(t, "/v1/users/5/balances", &balances); code != http.StatusOK {
		t.Fatalf("balances: code=%d", code)
	}
	if len(balances) != 1 || balances[0].Available != "300" || balances[0].Frozen != "200" {
		t.Errorf("balances: %+v", balances)
	}

	if code := f.get(t, "/v1/users/5/journals", nil); code != http.StatusServiceUnavailable {
		t.Errorf("journals without db: got %d, want 503", code)
	}
}

func TestHTTP_DepthAndMarket(t *testing.T) {
	f := newFixture(t)

	var depth query.DepthResponse
	if code := f.get(t, "/v1/depth?levels=5", &depth); code != http.StatusOK {
		t.Fatalf("depth: code=%d", code)
	}
	if len(depth.Bids) != 1 || depth.Bids[0].Quantity != "2" || len(depth.Asks) != 0 {
		t.Errorf("depth: %+v", depth)
	}
	if code := f.get(t, "/v1/depth?levels=-1", nil); code != http.StatusBadRequest {
		t.Errorf("negative levels: got %d", code)
	}

	var m query.MarketResponse
	if code := f.get(t, "/v1/market", &m); code != http.StatusOK {
		t.Fatalf("market: code=%d", code)
	}
	if m.Market != "BTC-USD" || m.LastSequence != 2 || m.OpenOrders != 1 {
		t.Errorf("market: %+v", m)
	}

	got := testutil.ToFloat64(f.metrics.QueryRequests.WithLabelValues("get_market", "200"))
	if got != 1 {
		t.Errorf("query metric: got %v, want 1", got)
	}
}

func TestHTTP_HealthAndMetrics(t *testing.T) {
	f := newFixture(t)

	if code := f.get(t, "/healthz", nil); code != http.StatusOK {
		t.Errorf("healthz: got %d", code)
	}
	if code := f.get(t, "/readyz", nil); code != http.StatusServiceUnavailable {
		t.Errorf("readyz before ready: got %d", code)
	}
	f.health.SetReady(true)
	if code := f.get(t, "/readyz", nil); code != http.StatusOK {
		t.Errorf("readyz when ready: got %d", code)
	}
	f.health.SetHalted()
	if code := f.get(t, "/readyz", nil); code != http.StatusServiceUnavailable {
		t.Errorf("readyz when halted: got %d", code)
	}

	if code := f.get(t, "/metrics", nil); code != http.StatusOK {
		t.Errorf("metrics: got %d", code)
	}
}
