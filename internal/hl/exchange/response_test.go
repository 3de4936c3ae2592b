package exchange

import (
	"errors"
	"testing"
)

func TestOrderIDFromResponseStatusFilled(t *testing.T) {
	resp := filledResponse()
	got := OrderIDFromResponse(resp)
	if got != "292577153770" {
		t.Fatalf("expected order id 292577153770, got %s", got)
	}
}

func TestParseFill(t *testing.T) {
	fill, err := ParseFill(filledResponse())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fill.TotalSize != 0.02 || fill.AvgPrice != 1891.4 || fill.OrderID != "292577153770" {
		t.Fatalf("unexpected fill %+v", fill)
	}
}

func TestParseFillErrors(t *testing.T) {
	rejected := map[string]any{
		"status": "ok",
		"response": map[string]any{
			"type": "order",
			"data": map[string]any{
				"statuses": []any{
					map[string]any{"error": "Order could not immediately match against any resting orders."},
				},
			},
		},
	}
	if _, err := ParseFill(rejected); err == nil || err.Error() != "Order could not immediately match against any resting orders." {
		t.Fatalf("expected exchange message, got %v", err)
	}

	resting := map[string]any{
		"status": "ok",
		"response": map[string]any{
			"type": "order",
			"data": map[string]any{
				"statuses": []any{
					map[string]any{"resting": map[string]any{"oid": float64(7)}},
				},
			},
		},
	}
	if _, err := ParseFill(resting); !errors.Is(err, ErrNotFilled) {
		t.Fatalf("expected ErrNotFilled, got %v", err)
	}

	failed := map[string]any{"status": "err", "response": "User or API Wallet does not exist."}
	if _, err := ParseFill(failed); err == nil || err.Error() != "User or API Wallet does not exist." {
		t.Fatalf("expected exchange message, got %v", err)
	}
}

func TestCheckResponse(t *testing.T) {
	if err := CheckResponse(map[string]any{"status": "ok"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := CheckResponse(nil); err == nil {
		t.Fatalf("expected error for nil response")
	}
	if err := CheckResponse(map[string]any{"status": "err", "response": "Insufficient margin"}); err == nil || err.Error() != "Insufficient margin" {
		t.Fatalf("expected exchange message, got %v", err)
	}
}

func filledResponse() map[string]any {
	return map[string]any{
		"status": "ok",
		"response": map[string]any{
			"type": "order",
			"data": map[string]any{
				"statuses": []any{
					map[string]any{
						"filled": map[string]any{
							"totalSz": "0.02",
							"avgPx":   "1891.4",
							"oid":     float64(292577153770),
							"cloid":   "0x188a0f9ee162351d6d6af5b09b97b1c7",
						},
					},
				},
			},
		},
	}
}
