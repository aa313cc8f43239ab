package myskoda

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// BaseURL is the base URL for the MySkoda REST API
	BaseURL = "https://mysmob.api.connect.skoda-auto.cz/api"

	// UserAgent to use for requests
	UserAgent = "skoda-watch/0.1.0"
)

// TokenSource provides a bearer token for API requests. Implementations may
// refresh the token transparently.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource returning a fixed token.
type StaticToken string

// AccessToken implements TokenSource.
func (t StaticToken) AccessToken(context.Context) (string, error) {
	return string(t), nil
}

// HTTPClient implements the Client interface against the MySkoda REST API.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	tokens     TokenSource
}

// NewHTTPClient creates a new MySkoda HTTP client.
func NewHTTPClient(tokens TokenSource, opts ...Option) *HTTPClient {
	client := &HTTPClient{
		baseURL:   BaseURL,
		userAgent: UserAgent,
		tokens:    tokens,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Option is a functional option for configuring the HTTP client.
type Option func(*HTTPClient)

// WithBaseURL sets a custom base URL (useful for testing).
func WithBaseURL(url string) Option {
	return func(c *HTTPClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *HTTPClient) {
		c.httpClient = httpClient
	}
}

// do performs an authenticated request and decodes a JSON response into
// result when result is non-nil.
func (c *HTTPClient) do(ctx context.Context, method, path string, payload, result any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return fmt.Errorf("access token: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Message: string(msg)}
	}

	if result == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

// GetUser retrieves the authenticated account's profile.
func (c *HTTPClient) GetUser(ctx context.Context) (*User, error) {
	var wire struct {
		ID        string `json:"id"`
		Email     string `json:"email"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/users", nil, &wire); err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &User{
		ID:        wire.ID,
		Email:     wire.Email,
		FirstName: wire.FirstName,
		LastName:  wire.LastName,
	}, nil
}

// GetVehicle retrieves identity and capabilities for a vehicle.
func (c *HTTPClient) GetVehicle(ctx context.Context, vin string) (*VehicleInfo, error) {
	var wire struct {
		VIN           string `json:"vin"`
		Name          string `json:"name"`
		Specification struct {
			Model     string `json:"model"`
			ModelYear string `json:"modelYear"`
		} `json:"specification"`
		Capabilities struct {
			Capabilities []struct {
				ID string `json:"id"`
			} `json:"capabilities"`
		} `json:"capabilities"`
	}
	if err := c.do(ctx, http.MethodGet, "/v2/garage/vehicles/"+vin, nil, &wire); err != nil {
		return nil, fmt.Errorf("get vehicle: %w", err)
	}

	info := &VehicleInfo{
		VIN:       wire.VIN,
		Name:      wire.Name,
		Model:     wire.Specification.Model,
		ModelYear: wire.Specification.ModelYear,
	}
	for _, cap := range wire.Capabilities.Capabilities {
		info.Capabilities = append(info.Capabilities, Capability(cap.ID))
	}
	return info, nil
}

// GetStatus retrieves the lock/closure status sub-resource.
func (c *HTTPClient) GetStatus(ctx context.Context, vin string) (*Status, error) {
	var wire struct {
		Overall struct {
			Locked  string `json:"locked"`
			Doors   string `json:"doors"`
			Windows string `json:"windows"`
			Lights  string `json:"lights"`
		} `json:"overall"`
		Detail struct {
			Trunk  string `json:"trunk"`
			Bonnet string `json:"bonnet"`
		} `json:"detail"`
		CarCapturedTimestamp time.Time `json:"carCapturedTimestamp"`
	}
	if err := c.do(ctx, http.MethodGet, "/v2/vehicle-status/"+vin, nil, &wire); err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}
	return &Status{
		Locked:      wire.Overall.Locked == "YES",
		DoorsOpen:   wire.Overall.Doors == "OPEN",
		WindowsOpen: wire.Overall.Windows == "OPEN",
		TrunkOpen:   wire.Detail.Trunk == "OPEN",
		BonnetOpen:  wire.Detail.Bonnet == "OPEN",
		LightsOn:    wire.Overall.Lights == "ON",
		CapturedAt:  wire.CarCapturedTimestamp,
	}, nil
}

// GetCharging retrieves the charging sub-resource.
func (c *HTTPClient) GetCharging(ctx context.Context, vin string) (*Charging, error) {
	var wire struct {
		Settings struct {
			TargetStateOfChargeInPercent int    `json:"targetStateOfChargeInPercent"`
			MaxChargeCurrentAC           string `json:"maxChargeCurrentAc"`
		} `json:"settings"`
		Status *struct {
			State                                string  `json:"state"`
			ChargeType                           string  `json:"chargeType"`
			ChargingRateInKilometersPerHour      float64 `json:"chargingRateInKilometersPerHour"`
			ChargePowerInKw                      float64 `json:"chargePowerInKw"`
			RemainingTimeToFullyChargedInMinutes *int    `json:"remainingTimeToFullyChargedInMinutes"`
			Battery                              struct {
				StateOfChargeInPercent         int `json:"stateOfChargeInPercent"`
				RemainingCruisingRangeInMeters int `json:"remainingCruisingRangeInMeters"`
			} `json:"battery"`
		} `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/charging/"+vin, nil, &wire); err != nil {
		return nil, fmt.Errorf("get charging: %w", err)
	}

	charging := &Charging{
		Settings: ChargingSettings{
			TargetSoCPercent:   wire.Settings.TargetStateOfChargeInPercent,
			MaxChargeCurrentAC: wire.Settings.MaxChargeCurrentAC,
		},
	}
	if wire.Status != nil {
		charging.Status = &ChargingStatus{
			State:                ParseChargeState(wire.Status.State),
			ChargeType:           wire.Status.ChargeType,
			ChargingPowerKW:      wire.Status.ChargePowerInKw,
			RemainingTimeMinutes: wire.Status.RemainingTimeToFullyChargedInMinutes,
			SoCPercent:           wire.Status.Battery.StateOfChargeInPercent,
			RemainingRangeKM:     wire.Status.Battery.RemainingCruisingRangeInMeters / 1000,
		}
	}
	return charging, nil
}

// GetAirConditioning retrieves the air-conditioning sub-resource.
func (c *HTTPClient) GetAirConditioning(ctx context.Context, vin string) (*AirConditioning, error) {
	var wire struct {
		State             string `json:"state"`
		TargetTemperature struct {
			TemperatureValue float64 `json:"temperatureValue"`
		} `json:"targetTemperature"`
		WindowHeatingState struct {
			Front string `json:"front"`
			Rear  string `json:"rear"`
		} `json:"windowHeatingState"`
		EstimatedDateTimeToReachTargetTemperature *time.Time `json:"estimatedDateTimeToReachTargetTemperature"`
	}
	if err := c.do(ctx, http.MethodGet, "/v2/air-conditioning/"+vin, nil, &wire); err != nil {
		return nil, fmt.Errorf("get air conditioning: %w", err)
	}
	return &AirConditioning{
		State:                  airConditioningStateFromWire(wire.State),
		TargetTemperatureC:     wire.TargetTemperature.TemperatureValue,
		WindowHeatingFront:     wire.WindowHeatingState.Front == "ON",
		WindowHeatingRear:      wire.WindowHeatingState.Rear == "ON",
		EstimatedReachDateTime: wire.EstimatedDateTimeToReachTargetTemperature,
	}, nil
}

func airConditioningStateFromWire(s string) AirConditioningState {
	switch s {
	case "ON":
		return AirConditioningStateOn
	case "COOLING":
		return AirConditioningStateCooling
	case "HEATING", "VENTILATION":
		return AirConditioningStateHeating
	default:
		return AirConditioningStateOff
	}
}

// GetAuxiliaryHeating retrieves the auxiliary-heater sub-resource.
func (c *HTTPClient) GetAuxiliaryHeating(ctx context.Context, vin string) (*AuxiliaryHeating, error) {
	var wire struct {
		State             string `json:"state"`
		DurationInMinutes int    `json:"durationInMinutes"`
	}
	if err := c.do(ctx, http.MethodGet, "/v2/air-conditioning/"+vin+"/auxiliary-heating", nil, &wire); err != nil {
		return nil, fmt.Errorf("get auxiliary heating: %w", err)
	}
	return &AuxiliaryHeating{
		State:           airConditioningStateFromWire(wire.State),
		DurationMinutes: wire.DurationInMinutes,
	}, nil
}

// GetDrivingRange retrieves the driving-range sub-resource.
func (c *HTTPClient) GetDrivingRange(ctx context.Context, vin string) (*DrivingRange, error) {
	var wire struct {
		CarType            string `json:"carType"`
		TotalRangeInKm     int    `json:"totalRangeInKm"`
		PrimaryEngineRange struct {
			CurrentSoCInPercent int `json:"currentSoCInPercent"`
			RemainingRangeInKm  int `json:"remainingRangeInKm"`
		} `json:"primaryEngineRange"`
	}
	if err := c.do(ctx, http.MethodGet, "/v2/vehicle-status/"+vin+"/driving-range", nil, &wire); err != nil {
		return nil, fmt.Errorf("get driving range: %w", err)
	}

	carType := EngineTypeElectric
	switch wire.CarType {
	case "hybrid":
		carType = EngineTypeHybrid
	case "gasoline", "diesel":
		carType = EngineTypeGasoline
	}

	return &DrivingRange{
		CarType:              carType,
		TotalRangeKM:         wire.TotalRangeInKm,
		PrimaryEngineRangeKM: wire.PrimaryEngineRange.RemainingRangeInKm,
		PrimaryEngineSoC:     wire.PrimaryEngineRange.CurrentSoCInPercent,
	}, nil
}

// GetHealth retrieves the vehicle-health sub-resource.
func (c *HTTPClient) GetHealth(ctx context.Context, vin string) (*Health, error) {
	var wire struct {
		MileageInKm   int `json:"mileageInKm"`
		WarningLights []struct {
			Category string `json:"category"`
		} `json:"warningLights"`
		CapturedAt time.Time `json:"capturedAt"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/vehicle-health-report/warning-lights/"+vin, nil, &wire); err != nil {
		return nil, fmt.Errorf("get health: %w", err)
	}
	health := &Health{
		MileageKM:  wire.MileageInKm,
		CapturedAt: wire.CapturedAt,
	}
	for _, w := range wire.WarningLights {
		health.Warnings = append(health.Warnings, w.Category)
	}
	return health, nil
}

// GetMaintenance retrieves the maintenance sub-resource.
func (c *HTTPClient) GetMaintenance(ctx context.Context, vin string) (*Maintenance, error) {
	var wire struct {
		MaintenanceReport struct {
			MileageInKm         int  `json:"mileageInKm"`
			InspectionDueInDays int  `json:"inspectionDueInDays"`
			InspectionDueInKm   int  `json:"inspectionDueInKm"`
			OilServiceDueInDays *int `json:"oilServiceDueInDays"`
		} `json:"maintenanceReport"`
		PreferredServicePartner struct {
			Name string `json:"name"`
		} `json:"preferredServicePartner"`
	}
	if err := c.do(ctx, http.MethodGet, "/v3/vehicle-maintenance/vehicles/"+vin, nil, &wire); err != nil {
		return nil, fmt.Errorf("get maintenance: %w", err)
	}
	return &Maintenance{
		MileageKM:          wire.MaintenanceReport.MileageInKm,
		InspectionDueDays:  wire.MaintenanceReport.InspectionDueInDays,
		InspectionDueKM:    wire.MaintenanceReport.InspectionDueInKm,
		OilServiceDueDays:  wire.MaintenanceReport.OilServiceDueInDays,
		ServicePartnerName: wire.PreferredServicePartner.Name,
	}, nil
}

// GetPositions retrieves the last known GPS positions.
func (c *HTTPClient) GetPositions(ctx context.Context, vin string) (*Positions, error) {
	var wire struct {
		Positions []struct {
			Type           string `json:"type"`
			GPSCoordinates struct {
				Latitude  float64 `json:"latitude"`
				Longitude float64 `json:"longitude"`
			} `json:"gpsCoordinates"`
		} `json:"positions"`
		Errors []struct {
			Type string `json:"type"`
		} `json:"errors"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/maps/positions?vin="+vin, nil, &wire); err != nil {
		return nil, fmt.Errorf("get positions: %w", err)
	}
	positions := &Positions{}
	for _, p := range wire.Positions {
		positions.Positions = append(positions.Positions, Position{
			Latitude:  p.GPSCoordinates.Latitude,
			Longitude: p.GPSCoordinates.Longitude,
			Type:      p.Type,
		})
	}
	for _, e := range wire.Errors {
		positions.Errors = append(positions.Errors, e.Type)
	}
	return positions, nil
}

// GetDepartureInfo retrieves the departure timers.
func (c *HTTPClient) GetDepartureInfo(ctx context.Context, vin string) (*DepartureInfo, error) {
	var wire struct {
		Timers []struct {
			ID      int    `json:"id"`
			Enabled bool   `json:"enabled"`
			Time    string `json:"time"`
			Type    string `json:"type"`
		} `json:"timers"`
		Settings struct {
			MinimumBatteryStateOfChargeInPercent int `json:"minimumBatteryStateOfChargeInPercent"`
		} `json:"settings"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/vehicle-automatization/"+vin+"/departure/timers", nil, &wire); err != nil {
		return nil, fmt.Errorf("get departure info: %w", err)
	}
	info := &DepartureInfo{MinimumSoCPercent: wire.Settings.MinimumBatteryStateOfChargeInPercent}
	for _, t := range wire.Timers {
		info.Timers = append(info.Timers, DepartureTimer{
			ID:      t.ID,
			Enabled: t.Enabled,
			Time:    t.Time,
			Type:    t.Type,
		})
	}
	return info, nil
}

// StartCharging requests the vehicle to start charging.
func (c *HTTPClient) StartCharging(ctx context.Context, vin string) error {
	return c.do(ctx, http.MethodPost, "/v1/charging/"+vin+"/start", nil, nil)
}

// StopCharging requests the vehicle to stop charging.
func (c *HTTPClient) StopCharging(ctx context.Context, vin string) error {
	return c.do(ctx, http.MethodPost, "/v1/charging/"+vin+"/stop", nil, nil)
}

// SetChargeLimit sets the target state of charge in percent.
func (c *HTTPClient) SetChargeLimit(ctx context.Context, vin string, percent int) error {
	payload := map[string]int{"targetSOCInPercent": percent}
	return c.do(ctx, http.MethodPut, "/v1/charging/"+vin+"/set-charge-limit", payload, nil)
}

// SetReducedCurrentLimit toggles reduced AC charging current.
func (c *HTTPClient) SetReducedCurrentLimit(ctx context.Context, vin string, reduced bool) error {
	current := "MAXIMUM"
	if reduced {
		current = "REDUCED"
	}
	payload := map[string]string{"chargingCurrent": current}
	return c.do(ctx, http.MethodPut, "/v1/charging/"+vin+"/set-charging-current", payload, nil)
}

// StartAirConditioning starts climatisation at the given temperature.
func (c *HTTPClient) StartAirConditioning(ctx context.Context, vin string, temperatureC float64) error {
	payload := map[string]any{
		"targetTemperature": map[string]any{
			"temperatureValue": temperatureC,
			"unitInCar":        "CELSIUS",
		},
	}
	return c.do(ctx, http.MethodPost, "/v2/air-conditioning/"+vin+"/start", payload, nil)
}

// StopAirConditioning stops climatisation.
func (c *HTTPClient) StopAirConditioning(ctx context.Context, vin string) error {
	return c.do(ctx, http.MethodPost, "/v2/air-conditioning/"+vin+"/stop", nil, nil)
}

// StartWindowHeating starts front and rear window heating.
func (c *HTTPClient) StartWindowHeating(ctx context.Context, vin string) error {
	return c.do(ctx, http.MethodPost, "/v2/air-conditioning/"+vin+"/start-window-heating", nil, nil)
}

// StopWindowHeating stops window heating.
func (c *HTTPClient) StopWindowHeating(ctx context.Context, vin string) error {
	return c.do(ctx, http.MethodPost, "/v2/air-conditioning/"+vin+"/stop-window-heating", nil, nil)
}

// StartAuxiliaryHeating starts the auxiliary heater.
func (c *HTTPClient) StartAuxiliaryHeating(ctx context.Context, vin, spin string, durationMinutes int) error {
	payload := map[string]any{
		"spin":              spin,
		"durationInMinutes": durationMinutes,
	}
	return c.do(ctx, http.MethodPost, "/v2/air-conditioning/"+vin+"/auxiliary-heating/start", payload, nil)
}

// StopAuxiliaryHeating stops the auxiliary heater.
func (c *HTTPClient) StopAuxiliaryHeating(ctx context.Context, vin, spin string) error {
	payload := map[string]string{"spin": spin}
	return c.do(ctx, http.MethodPost, "/v2/air-conditioning/"+vin+"/auxiliary-heating/stop", payload, nil)
}

// Lock locks the vehicle.
func (c *HTTPClient) Lock(ctx context.Context, vin, spin string) error {
	payload := map[string]string{"currentSpin": spin}
	return c.do(ctx, http.MethodPost, "/v1/vehicle-access/"+vin+"/lock", payload, nil)
}

// Unlock unlocks the vehicle.
func (c *HTTPClient) Unlock(ctx context.Context, vin, spin string) error {
	payload := map[string]string{"currentSpin": spin}
	return c.do(ctx, http.MethodPost, "/v1/vehicle-access/"+vin+"/unlock", payload, nil)
}

// compile-time interface check
var _ Client = (*HTTPClient)(nil)
