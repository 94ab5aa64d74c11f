package sales

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPStockClientProduct(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/produtos/7":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id":7,"nome":"Monitor","descricao":"29 pol","preco":899.9,"quantidade":4}`))
		case "/produtos/8":
			http.NotFound(w, r)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	client := NewHTTPStockClient(srv.URL, srv.Client(), nil)

	product, err := client.Product(context.Background(), 7)
	if err != nil {
		t.Fatalf("Product(7) = %v", err)
	}
	if product == nil {
		t.Fatal("Product(7) = nil, want snapshot")
	}
	if product.Name != "Monitor" || product.Quantity != 4 || product.Price != 899.9 {
		t.Errorf("product = %+v", product)
	}

	product, err = client.Product(context.Background(), 8)
	if err != nil {
		t.Fatalf("Product(8) = %v, want nil error on 404", err)
	}
	if product != nil {
		t.Fatalf("Product(8) = %+v, want nil on 404", product)
	}

	if _, err = client.Product(context.Background(), 9); err == nil {
		t.Fatal("Product(9) = nil error, want error on 500")
	}
}

func TestHTTPStockClientNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // refuse all requests

	client := NewHTTPStockClient(srv.URL, nil, nil)
	if _, err := client.Product(context.Background(), 1); err == nil {
		t.Fatal("Product() = nil error against a closed server")
	}
}
