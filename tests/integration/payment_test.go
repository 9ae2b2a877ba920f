//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestPaymentStatus_NoPayment(t *testing.T) {
	o := placeOrder(t, testAPIKey, orderRequest{
		Items: []orderItemRequest{{ProductID: waffleID, Quantity: 1}},
	})

	resp := doReq(t, http.MethodGet, "/api/orders/"+o.ID+"/payment_status", testAPIKey, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestCreatePayment_ProviderRejected(t *testing.T) {
	// The test stack runs with a dummy Stripe key, so the provider call
	// fails and must surface as a gateway error without creating local
	// payment state.
	o := placeOrder(t, testAPIKey, orderRequest{
		Items: []orderItemRequest{{ProductID: waffleID, Quantity: 1}},
	})

	resp := doReq(t, http.MethodPost, "/api/orders/"+o.ID+"/create_payment", testAPIKey, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}

	// No payment record may exist after a failed provider call.
	resp = doReq(t, http.MethodGet, "/api/orders/"+o.ID+"/payment_status", testAPIKey, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestWebhook_InvalidSignatureRejected(t *testing.T) {
	resp := doReq(t, http.MethodPost, "/api/payments/webhook", "", map[string]string{"type": "payment_intent.succeeded"})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	body := decodeJSON[errorResponse](t, resp)
	if body.Code != "invalid_signature" {
		t.Errorf("code: got %q", body.Code)
	}
}
