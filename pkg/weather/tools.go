package weather

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/fraser/skycast/pkg/tool"
)

// Failure codes reported by the weather tools.
const (
	FailNotFound    = "not_found"
	FailUnreachable = "upstream_unreachable"
	FailStatus      = "upstream_status"
	FailRejected    = "upstream_rejected"
)

// Register registers the weather lookup tools on the registry.
func Register(reg *tool.Registry, client *Client) error {
	tools := []tool.Tool{
		getWeatherTool(client),
		getAlertsTool(client),
		getForecastTool(client),
	}

	for _, def := range tools {
		if err := reg.Register(def); err != nil {
			return fmt.Errorf("failed to register tool %s: %w", def.Name, err)
		}
	}
	return nil
}

func getWeatherTool(client *Client) tool.Tool {
	return tool.Tool{
		Name:        "get_weather",
		Description: "Current weather conditions for a location, as structured data.",
		Schema: tool.Schema{
			Fields: []tool.Field{
				{Name: "location", Kind: tool.KindString, Description: "City name or adcode to look up", Required: true},
			},
		},
		Handler: func(ctx context.Context, args tool.Args) (interface{}, error) {
			location := args.String("location")

			lives, err := client.Live(ctx, location)
			if err != nil {
				return nil, mapFailure(err)
			}
			if len(lives) == 0 {
				return nil, tool.Failf(FailNotFound, "no weather data for location: %s", location)
			}

			live := lives[0]
			value := map[string]interface{}{
				"province":   live.Province,
				"city":       live.City,
				"weather":    live.Weather,
				"humidity":   live.Humidity,
				"wind":       live.WindDirection,
				"windPower":  live.WindPower,
				"reportedAt": live.ReportTime,
			}
			if tempC, err := strconv.ParseFloat(live.Temperature, 64); err == nil {
				value["tempC"] = tempC
			} else {
				value["tempC"] = live.Temperature
			}
			return value, nil
		},
	}
}

func getAlertsTool(client *Client) tool.Tool {
	return tool.Tool{
		Name:        "get_alerts",
		Description: "Today's weather conditions for a city, as formatted text.",
		Schema: tool.Schema{
			Fields: []tool.Field{
				{Name: "city", Kind: tool.KindString, Description: "City adcode", Required: true},
			},
		},
		Handler: func(ctx context.Context, args tool.Args) (interface{}, error) {
			lives, err := client.Live(ctx, args.String("city"))
			if err != nil {
				return nil, mapFailure(err)
			}
			return FormatLive(lives), nil
		},
	}
}

func getForecastTool(client *Client) tool.Tool {
	return tool.Tool{
		Name:        "get_forecast",
		Description: "Multi-day weather forecast for a city, as formatted text.",
		Schema: tool.Schema{
			Fields: []tool.Field{
				{Name: "city", Kind: tool.KindString, Description: "City adcode", Required: true},
				{Name: "days", Kind: tool.KindInteger, Description: "Days to include, upstream maximum when omitted", Required: false},
			},
		},
		Handler: func(ctx context.Context, args tool.Args) (interface{}, error) {
			forecasts, err := client.Forecast(ctx, args.String("city"))
			if err != nil {
				return nil, mapFailure(err)
			}

			if days := int(args.Int("days")); days > 0 {
				forecasts = clipForecasts(forecasts, days)
			}
			return FormatForecast(forecasts), nil
		},
	}
}

func clipForecasts(forecasts []Forecast, days int) []Forecast {
	clipped := make([]Forecast, len(forecasts))
	for i, forecast := range forecasts {
		clipped[i] = forecast
		if len(forecast.Casts) > days {
			clipped[i].Casts = forecast.Casts[:days]
		}
	}
	return clipped
}

// mapFailure converts client errors into declared tool failures so the
// dispatcher passes code and message through to the caller.
func mapFailure(err error) *tool.Failure {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return tool.Failf(FailStatus, "weather source returned status %d", statusErr.StatusCode)
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return tool.Failf(FailRejected, "weather source rejected request: %s", apiErr.Info)
	}

	return tool.Failf(FailUnreachable, "weather source unreachable: %v", err)
}
