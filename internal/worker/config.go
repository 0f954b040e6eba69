// Package worker runs background jobs that keep provider caches warm.
package worker

import (
	"sort"
	"time"
)

// PrewarmTarget is a named group of points whose weather is kept cached.
type PrewarmTarget struct {
	Name string

	// Points are typically transit hubs and arterial junctions.
	Points []Point

	// Priority determines refresh order (lower = higher priority).
	Priority int
}

// Point represents a geographic coordinate.
type Point struct {
	Lat float64
	Lon float64
}

// PrewarmConfig holds configuration for the weather prewarm job.
type PrewarmConfig struct {
	// Targets to prewarm. If empty, DefaultPrewarmTargets is used.
	Targets []PrewarmTarget

	// Concurrency is the number of points fetched at once.
	// Default: 3
	Concurrency int

	// Timeout bounds a single point lookup.
	// Default: 10 seconds
	Timeout time.Duration

	// Interval between runs when started as a loop.
	// Default: 10 minutes
	Interval time.Duration
}

// DefaultPrewarmConfig returns the default prewarm configuration.
func DefaultPrewarmConfig() PrewarmConfig {
	return PrewarmConfig{
		Targets:     DefaultPrewarmTargets(),
		Concurrency: 3,
		Timeout:     10 * time.Second,
		Interval:    10 * time.Minute,
	}
}

// DefaultPrewarmTargets covers the Mumbai metropolitan region, where route
// midpoints cluster along the western and central corridors.
func DefaultPrewarmTargets() []PrewarmTarget {
	return []PrewarmTarget{
		{
			Name:     "South Mumbai",
			Priority: 1,
			Points: []Point{
				{Lat: 18.9398, Lon: 72.8355}, // CSMT
				{Lat: 18.9220, Lon: 72.8347}, // Colaba
				{Lat: 18.9690, Lon: 72.8205}, // Mumbai Central
			},
		},
		{
			Name:     "Western Suburbs",
			Priority: 1,
			Points: []Point{
				{Lat: 19.0178, Lon: 72.8478}, // Dadar
				{Lat: 19.0544, Lon: 72.8402}, // Bandra
				{Lat: 19.0990, Lon: 72.8680}, // Airport
				{Lat: 19.1197, Lon: 72.8468}, // Andheri
			},
		},
		{
			Name:     "Central Suburbs",
			Priority: 2,
			Points: []Point{
				{Lat: 19.0760, Lon: 72.8777}, // Kurla
				{Lat: 19.0860, Lon: 72.9080}, // Ghatkopar
				{Lat: 19.1860, Lon: 72.9750}, // Thane
			},
		},
		{
			Name:     "Navi Mumbai",
			Priority: 3,
			Points: []Point{
				{Lat: 19.0330, Lon: 73.0297}, // Vashi
				{Lat: 19.0235, Lon: 73.0400}, // Sanpada
			},
		},
	}
}

// AllPoints returns all points from all targets, ordered by priority.
func (c PrewarmConfig) AllPoints() []Point {
	targets := make([]PrewarmTarget, len(c.Targets))
	copy(targets, c.Targets)
	sort.SliceStable(targets, func(i, j int) bool {
		return targets[i].Priority < targets[j].Priority
	})

	var points []Point
	for _, target := range targets {
		points = append(points, target.Points...)
	}
	return points
}

// TotalPoints returns the total number of points to prewarm.
func (c PrewarmConfig) TotalPoints() int {
	total := 0
	for _, target := range c.Targets {
		total += len(target.Points)
	}
	return total
}
