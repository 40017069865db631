package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /widgets/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(Middleware(mux))
	defer srv.Close()

	// Different IDs must all land on the one pattern label, not one label
	// value per ID.
	for _, id := range []string{"a1", "b2", "c3"} {
		resp, err := http.Get(srv.URL + "/widgets/" + id)
		if err != nil {
			t.Fatalf("get %s: %v", id, err)
		}
		resp.Body.Close()
	}

	got := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/widgets/{id}", "200"))
	if got != 3 {
		t.Errorf("pattern-labeled count = %v, want 3", got)
	}
	for _, id := range []string{"a1", "b2", "c3"} {
		if n := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/widgets/"+id, "200")); n != 0 {
			t.Errorf("raw path /widgets/%s recorded %v requests, want 0", id, n)
		}
	}
}

func TestMiddlewareUnmatchedRequests(t *testing.T) {
	srv := httptest.NewServer(Middleware(http.NewServeMux()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/no/such/route")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()

	if got := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "404")); got != 1 {
		t.Errorf("unmatched count = %v, want 1", got)
	}
}
