package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"

	"MatchCore/internal/observability"
	"MatchCore/internal/query"
)

type route struct {
	endpoint string
	pattern  string
	handle   func(r *http.Request, params map[string]string) (any, error)
}

type errBadRequest struct{ msg string }

func (e errBadRequest) Error() string { return e.msg }

// NewHTTPHandler builds the HTTP surface: JSON query routes on a gateway
// ServeMux, plus health and metrics endpoints.
func NewHTTPHandler(deps *Deps) (http.Handler, error) {
	qs := deps.QueryService
	gw := runtime.NewServeMux()

	routes := []route{
		{"get_order", "/v1/orders/{order_id}", func(r *http.Request, p map[string]string) (any, error) {
			id, err := pathInt(p, "order_id")
			if err != nil {
				return nil, err
			}
			return qs.GetOrder(r.Context(), id)
		}},
		{"get_user_orders", "/v1/users/{user_id}/orders", func(r *http.Request, p map[string]string) (any, error) {
			id, err := pathInt(p, "user_id")
			if err != nil {
				return nil, err
			}
			return qs.GetUserOrders(r.Context(), id)
		}},
		{"get_balances", "/v1/users/{user_id}/balances", func(r *http.Request, p map[string]string) (any, error) {
			id, err := pathInt(p, "user_id")
			if err != nil {
				return nil, err
			}
			return qs.GetBalances(r.Context(), id)
		}},
		{"list_journals", "/v1/users/{user_id}/journals", func(r *http.Request, p map[string]string) (any, error) {
			id, err := pathInt(p, "user_id")
			if err != nil {
				return nil, err
			}
			limit, before, err := page(r)
			if err != nil {
				return nil, err
			}
			return qs.GetJournalHistory(r.Context(), id, limit, before)
		}},
		{"get_depth", "/v1/depth", func(r *http.Request, _ map[string]string) (any, error) {
			levels, err := queryInt(r, "levels")
			if err != nil {
				return nil, err
			}
			return qs.GetDepth(r.Context(), int(levels))
		}},
		{"get_market", "/v1/market", func(r *http.Request, _ map[string]string) (any, error) {
			return qs.GetMarket(r.Context())
		}},
		{"list_trades", "/v1/trades", func(r *http.Request, _ map[string]string) (any, error) {
			limit, before, err := page(r)
			if err != nil {
				return nil, err
			}
			return qs.GetTrades(r.Context(), limit, before)
		}},
	}

	for _, rt := range routes {
		if err := gw.HandlePath(http.MethodGet, rt.pattern, jsonHandler(rt, deps.Metrics)); err != nil {
			return nil, fmt.Errorf("register %s: %w", rt.pattern, err)
		}
	}

	mux := http.NewServeMux()
	if deps.HealthChecker != nil {
		mux.HandleFunc("/healthz", deps.HealthChecker.LivenessHandler)
		mux.HandleFunc("/readyz", deps.HealthChecker.ReadinessHandler)
	}
	if deps.MetricsHandler != nil {
		mux.Handle("/metrics", deps.MetricsHandler)
	}
	mux.Handle("/", gw)
	return mux, nil
}

func jsonHandler(rt route, metrics *observability.Metrics) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		start := time.Now()
		body, err := rt.handle(r, params)
		code := statusCode(err)

		if metrics != nil {
			metrics.QueryRequests.WithLabelValues(rt.endpoint, strconv.Itoa(code)).Inc()
			metrics.QueryDuration.WithLabelValues(rt.endpoint).Observe(time.Since(start).Seconds())
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if err != nil {
			json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		json.NewEncoder(w).Encode(body)
	}
}

func statusCode(err error) int {
	var bad errBadRequest
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &bad):
		return http.StatusBadRequest
	case errors.Is(err, query.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, query.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func pathInt(params map[string]string, name string) (int64, error) {
	v, err := strconv.ParseInt(params[name], 10, 64)
	if err != nil || v <= 0 {
		return 0, errBadRequest{fmt.Sprintf("invalid %s: %q", name, params[name])}
	}
	return v, nil
}

// queryInt parses an optional non-negative query parameter; absent is 0.
func queryInt(r *http.Request, name string) (int64, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		return 0, errBadRequest{fmt.Sprintf("invalid %s: %q", name, s)}
	}
	return v, nil
}

func page(r *http.Request) (limit int, before *int64, err error) {
	l, err := queryInt(r, "limit")
	if err != nil {
		return 0, nil, err
	}
	b, err := queryInt(r, "before_sequence")
	if err != nil {
		return 0, nil, err
	}
	if b > 0 {
		before = &b
	}
	return int(l), before, nil
}
