// Papermap - Scientific Article Search and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/papermap

// Package export writes the two JSON artifacts consumed by the map
// frontend: a full item info dictionary and the coordinate/color list
// for the 2D article map.
package export

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/papermap/internal/logging"
	"github.com/tomtom215/papermap/internal/models"
)

// greyColor marks items without a single unambiguous keyword
// category.
const greyColor = "rgb(169,169,169)"

// Store is the subset of the database the exporter needs.
type Store interface {
	AllItems(ctx context.Context) ([]models.Item, error)
}

// Point is one entry of the coordinate export.
type Point struct {
	ID    string  `json:"item_id"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Color string  `json:"color"`
}

// Exporter writes the frontend JSON artifacts.
type Exporter struct {
	store Store
	dir   string
	log   zerolog.Logger
}

// New creates an Exporter writing into dir.
func New(store Store, dir string) *Exporter {
	return &Exporter{
		store: store,
		dir:   dir,
		log:   logging.With().Str("component", "export").Logger(),
	}
}

// Run regenerates item_info.json and xyc.json from the current
// corpus.
func (e *Exporter) Run(ctx context.Context) error {
	items, err := e.store.AllItems(ctx)
	if err != nil {
		return fmt.Errorf("load items: %w", err)
	}
	if err := os.MkdirAll(e.dir, 0o750); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}

	info := make(map[string]models.ItemView, len(items))
	for i := range items {
		info[items[i].ID] = items[i].FullView()
	}
	if err := writeJSON(filepath.Join(e.dir, "item_info.json"), info); err != nil {
		return err
	}

	colors := ColorMap(items)
	points := make([]Point, len(items))
	for i, it := range items {
		color, ok := colors[it.Keywords]
		if !ok {
			color = greyColor
		}
		points[i] = Point{ID: it.ID, X: it.X, Y: it.Y, Color: color}
	}
	if err := writeJSON(filepath.Join(e.dir, "xyc.json"), points); err != nil {
		return err
	}

	e.log.Info().Int("items", len(items)).Str("dir", e.dir).Msg("frontend artifacts exported")
	return nil
}

// ColorMap assigns each single-keyword category a distinct color,
// hues spread evenly around the wheel in sorted-keyword order. Items
// ingested under several keywords (comma-joined) get no entry and
// render grey.
func ColorMap(items []models.Item) map[string]string {
	seen := make(map[string]struct{})
	for _, it := range items {
		if it.Keywords == "" || strings.Contains(it.Keywords, ",") {
			continue
		}
		seen[it.Keywords] = struct{}{}
	}

	keywords := make([]string, 0, len(seen))
	for k := range seen {
		keywords = append(keywords, k)
	}
	sort.Strings(keywords)

	colors := make(map[string]string, len(keywords))
	for i, k := range keywords {
		r, g, b := hsvToRGB(float64(i)/float64(len(keywords)), 1, 0.8)
		colors[k] = fmt.Sprintf("rgb(%d,%d,%d)", r, g, b)
	}
	return colors
}

// hsvToRGB converts h, s, v in [0, 1] to 8-bit RGB.
func hsvToRGB(h, s, v float64) (int, int, int) {
	i := math.Floor(h * 6)
	f := h*6 - i
	p := v * (1 - s)
	q := v * (1 - f*s)
	t := v * (1 - (1-f)*s)

	var r, g, b float64
	switch int(i) % 6 {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	case 5:
		r, g, b = v, p, q
	}
	return int(255 * r), int(255 * g), int(255 * b)
}

func writeJSON(path string, v any) error {
	encoded, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path+".tmp", encoded, 0o640); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(path+".tmp", path); err != nil {
		return fmt.Errorf("install %s: %w", filepath.Base(path), err)
	}
	return nil
}
