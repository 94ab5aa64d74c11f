package sales

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/drblury/stocksync/internal/event"
	"github.com/drblury/stocksync/internal/jsoncodec"
)

func testServer(t *testing.T) (*httptest.Server, *fakePublisher) {
	t.Helper()
	stock := &fakeStock{products: map[int64]event.ProductSnapshot{
		1: {ID: 1, Name: "Mouse", Price: 50, Quantity: 10},
	}}
	pub := &fakePublisher{}
	svc := testService(stock, pub)
	srv := httptest.NewServer(NewHTTPHandler(svc, nil, nil))
	t.Cleanup(srv.Close)
	return srv, pub
}

func TestOrderAPICreateAndGet(t *testing.T) {
	srv, pub := testServer(t)

	resp, err := http.Post(srv.URL+"/pedidos", "application/json",
		strings.NewReader(`{"clienteNome":"Maria","itens":[{"produtoId":1,"quantidade":2}]}`))
	if err != nil {
		t.Fatalf("POST /pedidos: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST /pedidos status = %d, want 201", resp.StatusCode)
	}

	var created Order
	if err := jsoncodec.Decode(resp.Body, &created); err != nil {
		t.Fatalf("decode created order: %v", err)
	}
	if created.ID == 0 || created.CustomerName != "Maria" {
		t.Fatalf("created order = %+v", created)
	}
	if len(pub.events) != 1 || pub.events[0].kind != event.KindOrderCreated {
		t.Fatalf("events = %+v", pub.events)
	}

	getResp, err := http.Get(srv.URL + "/pedidos/1")
	if err != nil {
		t.Fatalf("GET /pedidos/1: %v", err)
	}
	defer getResp.Body.Close()
	if getResp.StatusCode != http.StatusOK {
		t.Fatalf("GET /pedidos/1 status = %d, want 200", getResp.StatusCode)
	}
}

func TestOrderAPIErrorStatuses(t *testing.T) {
	srv, _ := testServer(t)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{"missing order", http.MethodGet, "/pedidos/99", "", http.StatusNotFound},
		{"bad id", http.MethodGet, "/pedidos/zero", "", http.StatusBadRequest},
		{"invalid body", http.MethodPost, "/pedidos", "{not json", http.StatusBadRequest},
		{"no items", http.MethodPost, "/pedidos", `{"clienteNome":"Ana"}`, http.StatusBadRequest},
		{"unknown product", http.MethodPost, "/pedidos", `{"clienteNome":"Ana","itens":[{"produtoId":9,"quantidade":1}]}`, http.StatusNotFound},
		{"insufficient stock", http.MethodPost, "/pedidos", `{"clienteNome":"Ana","itens":[{"produtoId":1,"quantidade":11}]}`, http.StatusBadRequest},
		{"resend missing", http.MethodPost, "/pedidos/99/reenviar", "", http.StatusNotFound},
		{"delete missing", http.MethodDelete, "/pedidos/99", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, srv.URL+tt.path, strings.NewReader(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("%s %s status = %d, want %d", tt.method, tt.path, resp.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestOrderAPIDeleteAndResend(t *testing.T) {
	srv, pub := testServer(t)

	resp, err := http.Post(srv.URL+"/pedidos", "application/json",
		strings.NewReader(`{"clienteNome":"Ana","itens":[{"produtoId":1,"quantidade":1}]}`))
	if err != nil {
		t.Fatalf("POST /pedidos: %v", err)
	}
	resp.Body.Close()

	resendResp, err := http.Post(srv.URL+"/pedidos/1/reenviar", "application/json", nil)
	if err != nil {
		t.Fatalf("POST reenviar: %v", err)
	}
	resendResp.Body.Close()
	if resendResp.StatusCode != http.StatusOK {
		t.Fatalf("reenviar status = %d, want 200", resendResp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/pedidos/1", nil)
	delResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE /pedidos/1: %v", err)
	}
	delResp.Body.Close()
	if delResp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", delResp.StatusCode)
	}

	kinds := make([]event.Kind, 0, len(pub.events))
	for _, e := range pub.events {
		kinds = append(kinds, e.kind)
	}
	want := []event.Kind{event.KindOrderCreated, event.KindOrderResent, event.KindOrderDeleted}
	if len(kinds) != len(want) {
		t.Fatalf("kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("kinds = %v, want %v", kinds, want)
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	svc := testService(&fakeStock{}, &fakePublisher{})
	healthy := true
	srv := httptest.NewServer(NewHTTPHandler(svc, nil, func() bool { return healthy }))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d, want 200", resp.StatusCode)
	}

	healthy = false
	resp, err = http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("healthz status = %d, want 503", resp.StatusCode)
	}
}
