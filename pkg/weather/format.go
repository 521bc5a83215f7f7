package weather

import (
	"fmt"
	"strings"
)

// FormatLive renders current-conditions reports as a text block.
func FormatLive(reports []Live) string {
	if len(reports) == 0 {
		return "No current weather data available."
	}

	var b strings.Builder
	b.Grow(len(reports) * 200)

	for _, report := range reports {
		fmt.Fprintf(&b, "Province: %s\nCity: %s\nWeather: %s\nTemperature: %s°\nWind: %s (%s)\nHumidity: %s%%\nReported: %s\n---\n",
			report.Province,
			report.City,
			report.Weather,
			report.Temperature,
			report.WindDirection,
			report.WindPower,
			report.Humidity,
			report.ReportTime,
		)
	}
	return b.String()
}

// FormatForecast renders multi-day forecasts as a text block.
func FormatForecast(forecasts []Forecast) string {
	if len(forecasts) == 0 {
		return "No forecast data available."
	}

	var b strings.Builder
	b.Grow(len(forecasts) * 150)

	for _, forecast := range forecasts {
		fmt.Fprintf(&b, "City: %s\n", forecast.City)
		for _, day := range forecast.Casts {
			fmt.Fprintf(&b, "Date: %s\nDay: %s %s° %s (%s)\nNight: %s %s° %s (%s)\n---\n",
				day.Date,
				day.DayWeather, day.DayTemp, day.DayWind, day.DayPower,
				day.NightWeather, day.NightTemp, day.NightWind, day.NightPower,
			)
		}
	}
	return b.String()
}
