package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/naijago/internal/models"
	"github.com/example/naijago/internal/observability"
)

const systemInstruction = "You are a helpful assistant for 'NaijaGo', a ride-sharing and courier app in Nigeria. " +
	"Generate realistic and appealing service options based on the user's request. " +
	"All monetary values should be in Nigerian Naira (₦)."

// GeminiClient performs structured-output generation requests against a
// Gemini-style generateContent endpoint.
type GeminiClient struct {
	Endpoint string
	Model    string
	APIKey   string
	Client   *http.Client
	Logger   *slog.Logger
}

func NewGeminiClient(endpoint, model, apiKey string, logger *slog.Logger) *GeminiClient {
	return &GeminiClient{
		Endpoint: strings.TrimRight(endpoint, "/"),
		Model:    model,
		APIKey:   apiKey,
		Client:   &http.Client{Timeout: 10 * time.Second},
		Logger:   logger,
	}
}

var rideSchema = map[string]any{
	"type": "ARRAY",
	"items": map[string]any{
		"type": "OBJECT",
		"properties": map[string]any{
			"type":        map[string]any{"type": "STRING", "description": "Type of ride (e.g., 'Economy', 'Keke', 'Comfort')"},
			"fare":        map[string]any{"type": "STRING", "description": "Estimated fare in Nigerian Naira (e.g., '₦2500 - ₦3000')"},
			"eta":         map[string]any{"type": "STRING", "description": "Estimated time of arrival in minutes (e.g., '5 mins')"},
			"description": map[string]any{"type": "STRING", "description": "A brief, appealing description of the ride type."},
			"icon":        map[string]any{"type": "STRING", "description": "An icon identifier from this list: 'car', 'bike', 'luxury'"},
		},
		"required": []string{"type", "fare", "eta", "description", "icon"},
	},
}

var courierSchema = map[string]any{
	"type": "OBJECT",
	"properties": map[string]any{
		"fare":        map[string]any{"type": "STRING", "description": "Estimated cost in Nigerian Naira (e.g., '₦1500')"},
		"eta":         map[string]any{"type": "STRING", "description": "Estimated delivery time (e.g., '2-3 hours')"},
		"description": map[string]any{"type": "STRING", "description": "A summary of the courier service for this delivery."},
		"tracking_id": map[string]any{"type": "STRING", "description": "A generated fictional tracking ID (e.g., 'NG-GO-12345678')"},
	},
	"required": []string{"fare", "eta", "description", "tracking_id"},
}

var driverSchema = map[string]any{
	"type": "OBJECT",
	"properties": map[string]any{
		"name":          map[string]any{"type": "STRING", "description": "A realistic Nigerian driver name"},
		"vehicle":       map[string]any{"type": "STRING", "description": "Vehicle make, model and colour"},
		"license_plate": map[string]any{"type": "STRING", "description": "A Lagos-style plate (e.g., 'LSD 123 AB')"},
	},
	"required": []string{"name", "vehicle", "license_plate"},
}

func (g *GeminiClient) GenerateOptions(ctx context.Context, req models.BookingRequest) (models.SearchResults, error) {
	isRide := req.Service == models.ServiceRide

	var prompt string
	var schema map[string]any
	if isRide {
		prompt = fmt.Sprintf("A user in Nigeria wants to book a ride from %q to %q. Provide 3 distinct ride options for them. "+
			"Include 'Keke' as one of the options if the distance seems short or within a city.", req.Pickup, req.Dropoff)
		schema = rideSchema
	} else {
		prompt = fmt.Sprintf("A user in Nigeria wants to send a package from %q to %q. The package is: %q. Provide a courier quote.",
			req.Pickup, req.Dropoff, req.PackageNote)
		schema = courierSchema
	}

	raw, err := g.generate(ctx, prompt, schema)
	if err != nil {
		return models.SearchResults{}, ErrUnavailable
	}

	if isRide {
		var options []models.RideOption
		if err := json.Unmarshal(raw, &options); err != nil || len(options) == 0 {
			g.logf("provider parse failed", err)
			return models.SearchResults{}, ErrUnavailable
		}
		return models.SearchResults{RideOptions: options}, nil
	}
	var quote models.CourierQuote
	if err := json.Unmarshal(raw, &quote); err != nil {
		g.logf("provider parse failed", err)
		return models.SearchResults{}, ErrUnavailable
	}
	return models.SearchResults{CourierQuote: &quote}, nil
}

func (g *GeminiClient) GenerateDriverProfile(ctx context.Context) (models.DriverProfile, error) {
	raw, err := g.generate(ctx, "Generate a driver profile for a NaijaGo ride that was just confirmed.", driverSchema)
	if err != nil {
		return models.DriverProfile{}, ErrUnavailable
	}
	var p models.DriverProfile
	if err := json.Unmarshal(raw, &p); err != nil || p.Name == "" {
		g.logf("provider parse failed", err)
		return models.DriverProfile{}, ErrUnavailable
	}
	p.PhotoURL = "https://i.pravatar.cc/150?u=" + strings.ReplaceAll(p.Name, " ", "")
	return p, nil
}

// generate posts a generateContent request and returns the model's JSON text.
func (g *GeminiClient) generate(ctx context.Context, prompt string, schema map[string]any) ([]byte, error) {
	start := time.Now()
	defer func() { observability.ProviderRequestDuration.Observe(time.Since(start).Seconds()) }()

	body := map[string]any{
		"system_instruction": map[string]any{"parts": []map[string]any{{"text": systemInstruction}}},
		"contents":           []map[string]any{{"parts": []map[string]any{{"text": prompt}}}},
		"generationConfig": map[string]any{
			"responseMimeType": "application/json",
			"responseSchema":   schema,
		},
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", g.Endpoint, g.Model, g.APIKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.Client.Do(httpReq)
	if err != nil {
		g.logf("provider request failed", err)
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		g.logf("provider request failed", fmt.Errorf("status %d", resp.StatusCode))
		return nil, fmt.Errorf("provider status %d", resp.StatusCode)
	}

	var out struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("provider returned no candidates")
	}
	return []byte(strings.TrimSpace(out.Candidates[0].Content.Parts[0].Text)), nil
}

func (g *GeminiClient) logf(msg string, err error) {
	if g.Logger != nil {
		g.Logger.Warn(msg, "error", err)
	}
}
