package openmeteo

// forecastResponse is the subset of the Open-Meteo forecast payload we read.
type forecastResponse struct {
	Timezone         string `json:"timezone"`
	UTCOffsetSeconds int    `json:"utc_offset_seconds"`

	Current struct {
		Temperature   float64 `json:"temperature_2m"`
		Precipitation float64 `json:"precipitation"`
		WeatherCode   int     `json:"weather_code"`
		WindSpeed     float64 `json:"wind_speed_10m"`
	} `json:"current"`

	Hourly struct {
		Time          []string   `json:"time"`
		Temperature   []float64  `json:"temperature_2m"`
		WeatherCode   []int      `json:"weather_code"`
		Visibility    []*float64 `json:"visibility"`
		Precipitation []float64  `json:"precipitation"`
	} `json:"hourly"`
}
