package upstream_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukkan/storefront-gateway/internal/domain"
	"github.com/dukkan/storefront-gateway/internal/upstream"
	"github.com/dukkan/storefront-gateway/pkg/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *upstream.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return upstream.NewClient(config.UpstreamConfig{
		BaseURL:         server.URL,
		Timeout:         2 * time.Second,
		RetryMaxElapsed: 100 * time.Millisecond,
	})
}

func mustParsePhone(t *testing.T, raw string) domain.PhoneNumber {
	t.Helper()
	phone, err := domain.ParsePhone(raw, "SA")
	if err != nil {
		t.Fatalf("ParsePhone(%q): %v", raw, err)
	}
	return phone
}

func TestInitiateAuthSendsChannelAndSplitNumber(t *testing.T) {
	var got map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/initiate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]string{"session_token": "tok-1"})
	})

	token, err := client.InitiateAuth(context.Background(), mustParsePhone(t, "+966501234567"))
	if err != nil {
		t.Fatalf("InitiateAuth: %v", err)
	}
	if token != "tok-1" {
		t.Fatalf("got token %q", token)
	}
	if got["channel"] != "phone" || got["country_code"] != "966" || got["phone"] != "501234567" {
		t.Fatalf("unexpected request body: %v", got)
	}
}

func TestVerifyOTPDecodesNewCustomer(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"type":                  "new",
			"requires_registration": true,
			"session_token":         "tok-2",
		})
	})

	result, err := client.VerifyOTP(context.Background(), "1234", "tok-1")
	if err != nil {
		t.Fatalf("VerifyOTP: %v", err)
	}
	if result.Outcome != domain.OutcomeRegistrationRequired {
		t.Fatalf("got outcome %v", result.Outcome)
	}
	if result.SessionToken != "tok-2" {
		t.Fatalf("got session token %q", result.SessionToken)
	}
}

func TestVerifyOTPDecodesAuthenticated(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"type":       "authenticated",
			"token":      "bearer-1",
			"customer":   map[string]any{"id": 7, "name": "Sara"},
			"cart_token": "cart-1",
		})
	})

	result, err := client.VerifyOTP(context.Background(), "1234", "tok-1")
	if err != nil {
		t.Fatalf("VerifyOTP: %v", err)
	}
	if result.Outcome != domain.OutcomeAuthenticated {
		t.Fatalf("got outcome %v", result.Outcome)
	}
	if result.Token != "bearer-1" || result.Customer.Name != "Sara" || result.CartToken != "cart-1" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestVerifyOTPRejectsUnknownType(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"type": "magic_link"})
	})

	_, err := client.VerifyOTP(context.Background(), "1234", "tok-1")
	if !errors.Is(err, upstream.ErrUnknownOutcome) {
		t.Fatalf("expected ErrUnknownOutcome, got %v", err)
	}
}

func TestErrorMessagePassesThroughVerbatim(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "الكمية غير متوفرة"})
	})

	_, err := client.VerifyOTP(context.Background(), "1234", "tok-1")
	var apiErr *upstream.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusUnprocessableEntity || apiErr.Message != "الكمية غير متوفرة" {
		t.Fatalf("message mangled: %+v", apiErr)
	}
}

func TestFetchCartSendsBothTokens(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Cart-Token") != "cart-1" {
			t.Errorf("missing cart token header")
		}
		if r.Header.Get("Authorization") != "Bearer bearer-1" {
			t.Errorf("missing bearer header")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"cart_token": "cart-1", "items": []any{}})
	})

	cart, err := client.FetchCart(context.Background(), upstream.CartTokens{CartToken: "cart-1", Bearer: "bearer-1"})
	if err != nil {
		t.Fatalf("FetchCart: %v", err)
	}
	if cart.Token != "cart-1" {
		t.Fatalf("got cart token %q", cart.Token)
	}
}

func TestListProductsEncodesQuery(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("page") != "2" || q.Get("category") != "oud" || q.Get("currency") != "SAR" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		if q.Has("search") {
			t.Errorf("empty fields must be omitted: %s", r.URL.RawQuery)
		}
		_ = json.NewEncoder(w).Encode(domain.ProductPage{Page: 2})
	})

	page, err := client.ListProducts(context.Background(), upstream.ListProductsOptions{
		Page:     2,
		Category: "oud",
		Currency: "SAR",
	})
	if err != nil {
		t.Fatalf("ListProducts: %v", err)
	}
	if page.Page != 2 {
		t.Fatalf("got page %d", page.Page)
	}
}

func TestGetHomepageDropsUnknownComponents(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"components": []map[string]any{
				{"id": "c1", "type": "hero"},
				{"id": "c2", "type": "video_banner"},
				{"id": "c3", "type": "reviews"},
			},
		})
	})

	homepage, err := client.GetHomepage(context.Background())
	if err != nil {
		t.Fatalf("GetHomepage: %v", err)
	}
	if len(homepage.Components) != 2 {
		t.Fatalf("expected 2 known components, got %d", len(homepage.Components))
	}
	if homepage.Components[0].ID != "c1" || homepage.Components[1].ID != "c3" {
		t.Fatalf("wrong components kept: %+v", homepage.Components)
	}
}
