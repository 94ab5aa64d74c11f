package stock

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/drblury/stocksync/internal/event"
	"github.com/drblury/stocksync/internal/jsoncodec"
	"github.com/drblury/stocksync/internal/store"
)

type productEvent struct {
	kind      event.Kind
	product   event.ProductSnapshot
	productID int64
}

type fakeProductPublisher struct {
	events []productEvent
	err    error
}

func (f *fakeProductPublisher) PublishProduct(_ context.Context, kind event.Kind, product event.ProductSnapshot) error {
	f.events = append(f.events, productEvent{kind: kind, product: product})
	return f.err
}

func (f *fakeProductPublisher) PublishProductRemoved(_ context.Context, productID int64) error {
	f.events = append(f.events, productEvent{kind: event.KindProductRemoved, productID: productID})
	return f.err
}

func testProductServer(t *testing.T) (*httptest.Server, *store.Store, *fakeProductPublisher) {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) = %v", err)
	}
	t.Cleanup(func() { st.Close() })

	pub := &fakeProductPublisher{}
	srv := httptest.NewServer(NewHTTPHandler(st, pub, nil, nil))
	t.Cleanup(srv.Close)
	return srv, st, pub
}

func TestProductAPILifecycle(t *testing.T) {
	srv, st, pub := testProductServer(t)

	resp, err := http.Post(srv.URL+"/produtos", "application/json",
		strings.NewReader(`{"id":1,"nome":"Mouse","descricao":"sem fio","preco":89.9,"quantidade":15}`))
	if err != nil {
		t.Fatalf("POST /produtos: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}

	getResp, err := http.Get(srv.URL + "/produtos/1")
	if err != nil {
		t.Fatalf("GET /produtos/1: %v", err)
	}
	defer getResp.Body.Close()
	var product event.ProductSnapshot
	if err := jsoncodec.Decode(getResp.Body, &product); err != nil {
		t.Fatalf("decode product: %v", err)
	}
	if product.Name != "Mouse" || product.Quantity != 15 {
		t.Fatalf("product = %+v", product)
	}

	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/produtos/1",
		strings.NewReader(`{"nome":"Mouse Gamer","preco":129.9,"quantidade":12}`))
	putResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT /produtos/1: %v", err)
	}
	putResp.Body.Close()
	if putResp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d, want 200", putResp.StatusCode)
	}

	delReq, _ := http.NewRequest(http.MethodDelete, srv.URL+"/produtos/1", nil)
	delResp, err := http.DefaultClient.Do(delReq)
	if err != nil {
		t.Fatalf("DELETE /produtos/1: %v", err)
	}
	delResp.Body.Close()
	if delResp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", delResp.StatusCode)
	}

	if _, err := st.GetProduct(context.Background(), 1); err == nil {
		t.Fatal("product still in store after delete")
	}

	wantKinds := []event.Kind{event.KindProductCreated, event.KindProductUpdated, event.KindProductRemoved}
	if len(pub.events) != len(wantKinds) {
		t.Fatalf("published %d events, want %d", len(pub.events), len(wantKinds))
	}
	for i, want := range wantKinds {
		if pub.events[i].kind != want {
			t.Fatalf("event[%d].kind = %q, want %q", i, pub.events[i].kind, want)
		}
	}
	if pub.events[2].productID != 1 {
		t.Fatalf("removal event product id = %d, want 1", pub.events[2].productID)
	}
}

func TestProductAPIAvailability(t *testing.T) {
	srv, st, _ := testProductServer(t)
	if err := st.UpsertProduct(context.Background(), event.ProductSnapshot{ID: 2, Name: "Teclado", Quantity: 3}); err != nil {
		t.Fatalf("UpsertProduct() = %v", err)
	}

	check := func(path string, want bool) {
		t.Helper()
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		defer resp.Body.Close()
		var body map[string]bool
		if err := jsoncodec.Decode(resp.Body, &body); err != nil {
			t.Fatalf("decode availability: %v", err)
		}
		if body["disponivel"] != want {
			t.Fatalf("GET %s disponivel = %v, want %v", path, body["disponivel"], want)
		}
	}

	check("/produtos/2/disponibilidade/3", true)
	check("/produtos/2/disponibilidade/4", false)
}

func TestProductAPIErrors(t *testing.T) {
	srv, _, pub := testProductServer(t)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{"missing product", http.MethodGet, "/produtos/9", "", http.StatusNotFound},
		{"bad id", http.MethodGet, "/produtos/abc", "", http.StatusBadRequest},
		{"invalid body", http.MethodPost, "/produtos", "{not json", http.StatusBadRequest},
		{"missing id", http.MethodPost, "/produtos", `{"nome":"X","quantidade":1}`, http.StatusBadRequest},
		{"negative quantity", http.MethodPost, "/produtos", `{"id":5,"nome":"X","quantidade":-1}`, http.StatusBadRequest},
		{"update missing", http.MethodPut, "/produtos/9", `{"nome":"X","quantidade":1}`, http.StatusNotFound},
		{"delete missing", http.MethodDelete, "/produtos/9", "", http.StatusNotFound},
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

	if len(pub.events) != 0 {
		t.Fatalf("rejected requests published %d events", len(pub.events))
	}
}
