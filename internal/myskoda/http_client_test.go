package myskoda

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewHTTPClient(StaticToken("test-token"), WithBaseURL(server.URL))
}

func TestHTTPClient_Auth(t *testing.T) {
	var gotAuth, gotAgent string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAgent = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(`{"id":"user-1"}`))
	})

	if _, err := client.GetUser(context.Background()); err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}
	if gotAgent != UserAgent {
		t.Errorf("User-Agent = %q, want %q", gotAgent, UserAgent)
	}
}

func TestHTTPClient_GetVehicle(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/garage/vehicles/TMBTEST123" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{
			"vin": "TMBTEST123",
			"name": "My Enyaq",
			"specification": {"model": "Enyaq iV 80", "modelYear": "2024"},
			"capabilities": {"capabilities": [{"id": "STATE"}, {"id": "CHARGING"}]}
		}`))
	})

	info, err := client.GetVehicle(context.Background(), "TMBTEST123")
	if err != nil {
		t.Fatalf("GetVehicle() error = %v", err)
	}
	if info.Name != "My Enyaq" || info.Model != "Enyaq iV 80" {
		t.Errorf("info = %+v", info)
	}
	if !info.HasCapability(CapabilityCharging) {
		t.Error("expected CHARGING capability")
	}
	if info.HasCapability(CapabilityParkingPosition) {
		t.Error("unexpected PARKING_POSITION capability")
	}
}

func TestHTTPClient_GetStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"overall": {"locked": "YES", "doors": "CLOSED", "windows": "OPEN", "lights": "OFF"},
			"detail": {"trunk": "CLOSED", "bonnet": "CLOSED"},
			"carCapturedTimestamp": "2026-01-15T10:00:00Z"
		}`))
	})

	status, err := client.GetStatus(context.Background(), "TMBTEST123")
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if !status.Locked {
		t.Error("Locked = false, want true")
	}
	if status.DoorsOpen {
		t.Error("DoorsOpen = true, want false")
	}
	if !status.WindowsOpen {
		t.Error("WindowsOpen = false, want true")
	}
	if status.CapturedAt.IsZero() {
		t.Error("CapturedAt not parsed")
	}
}

func TestHTTPClient_GetCharging(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"settings": {"targetStateOfChargeInPercent": 80, "maxChargeCurrentAc": "MAXIMUM"},
			"status": {
				"state": "CHARGING",
				"chargeType": "AC",
				"chargePowerInKw": 11.0,
				"remainingTimeToFullyChargedInMinutes": 95,
				"battery": {"stateOfChargeInPercent": 62, "remainingCruisingRangeInMeters": 290000}
			}
		}`))
	})

	charging, err := client.GetCharging(context.Background(), "TMBTEST123")
	if err != nil {
		t.Fatalf("GetCharging() error = %v", err)
	}
	if charging.Settings.TargetSoCPercent != 80 {
		t.Errorf("TargetSoCPercent = %d, want 80", charging.Settings.TargetSoCPercent)
	}
	status := charging.Status
	if status == nil {
		t.Fatal("Status = nil")
	}
	if status.State != ChargeStateCharging {
		t.Errorf("State = %q, want charging", status.State)
	}
	if status.SoCPercent != 62 {
		t.Errorf("SoCPercent = %d, want 62", status.SoCPercent)
	}
	if status.RemainingRangeKM != 290 {
		t.Errorf("RemainingRangeKM = %d, want 290 (meters converted)", status.RemainingRangeKM)
	}
	if status.RemainingTimeMinutes == nil || *status.RemainingTimeMinutes != 95 {
		t.Errorf("RemainingTimeMinutes = %v, want 95", status.RemainingTimeMinutes)
	}
}

func TestHTTPClient_GetChargingNoStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"settings": {"targetStateOfChargeInPercent": 80}}`))
	})

	charging, err := client.GetCharging(context.Background(), "TMBTEST123")
	if err != nil {
		t.Fatalf("GetCharging() error = %v", err)
	}
	if charging.Status != nil {
		t.Errorf("Status = %+v, want nil when vehicle never reported one", charging.Status)
	}
}

func TestHTTPClient_APIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	})

	_, err := client.GetUser(context.Background())
	if err == nil {
		t.Fatal("GetUser() error = nil, want APIError")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d, want 429", apiErr.StatusCode)
	}
	if !IsTransient(err) {
		t.Error("IsTransient() = false for 429")
	}
}

func TestHTTPClient_Lock(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusAccepted)
	})

	if err := client.Lock(context.Background(), "TMBTEST123", "1234"); err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	if gotPath != "/v1/vehicle-access/TMBTEST123/lock" {
		t.Errorf("path = %q", gotPath)
	}
	if gotBody["currentSpin"] != "1234" {
		t.Errorf("body = %v, want currentSpin", gotBody)
	}
}

func TestHTTPClient_SetChargeLimit(t *testing.T) {
	var gotBody map[string]int
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s, want PUT", r.Method)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	})

	if err := client.SetChargeLimit(context.Background(), "TMBTEST123", 80); err != nil {
		t.Fatalf("SetChargeLimit() error = %v", err)
	}
	if gotBody["targetSOCInPercent"] != 80 {
		t.Errorf("body = %v, want targetSOCInPercent 80", gotBody)
	}
}

func TestHTTPClient_TokenSourceFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request sent despite missing token")
	}))
	defer server.Close()

	failing := tokenSourceFunc(func(ctx context.Context) (string, error) {
		return "", errors.New("no cached credentials")
	})
	client := NewHTTPClient(failing, WithBaseURL(server.URL))

	if _, err := client.GetUser(context.Background()); err == nil {
		t.Fatal("GetUser() error = nil, want token failure")
	}
}

type tokenSourceFunc func(ctx context.Context) (string, error)

func (f tokenSourceFunc) AccessToken(ctx context.Context) (string, error) {
	return f(ctx)
}
