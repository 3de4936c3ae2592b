package exchange

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrNotFilled = errors.New("order not filled")

// CheckResponse turns a non-ok /exchange envelope into an error carrying the
// exchange message.
func CheckResponse(resp map[string]any) error {
	if resp == nil {
		return errors.New("empty exchange response")
	}
	status := stringFromAny(resp["status"])
	if status == "ok" {
		return nil
	}
	if msg := stringFromAny(resp["response"]); msg != "" {
		return errors.New(msg)
	}
	if status == "" {
		return errors.New("exchange response missing status")
	}
	return fmt.Errorf("exchange status %s", status)
}

// ParseFill reads statuses[0] of an order response. An IOC order that rests
// or errors is reported as an error.
func ParseFill(resp map[string]any) (Fill, error) {
	if err := CheckResponse(resp); err != nil {
		return Fill{}, err
	}
	response, _ := resp["response"].(map[string]any)
	data, _ := response["data"].(map[string]any)
	statuses, _ := data["statuses"].([]any)
	if len(statuses) == 0 {
		return Fill{}, errors.New("order response missing statuses")
	}
	status, ok := statuses[0].(map[string]any)
	if !ok {
		if msg := stringFromAny(statuses[0]); msg != "" {
			return Fill{}, fmt.Errorf("%w: %s", ErrNotFilled, msg)
		}
		return Fill{}, errors.New("malformed order status")
	}
	if msg := stringFromAny(status["error"]); msg != "" {
		return Fill{}, errors.New(msg)
	}
	filled, ok := status["filled"].(map[string]any)
	if !ok {
		return Fill{}, fmt.Errorf("%w: order %s", ErrNotFilled, OrderIDFromResponse(resp))
	}
	return Fill{
		TotalSize: floatFromAny(filled["totalSz"]),
		AvgPrice:  floatFromAny(filled["avgPx"]),
		OrderID:   stringFromAny(filled["oid"]),
	}, nil
}

func OrderIDFromResponse(resp map[string]any) string {
	if resp == nil {
		return ""
	}
	return orderIDFromAny(resp)
}

func stringFromAny(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatInt(int64(val), 10)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return ""
	}
}

func floatFromAny(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f
	default:
		return 0
	}
}

func orderIDFromAny(v any) string {
	switch val := v.(type) {
	case map[string]any:
		for _, key := range []string{"orderId", "orderID", "oid", "id"} {
			if id := stringFromAny(val[key]); id != "" {
				return id
			}
		}
		for _, nested := range val {
			if id := orderIDFromAny(nested); id != "" {
				return id
			}
		}
	case []any:
		for _, nested := range val {
			if id := orderIDFromAny(nested); id != "" {
				return id
			}
		}
	}
	return ""
}
