// Package importer reads itinerary stops from CSV files.
package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/passbi/passbi_itinerary/internal/models"
	"github.com/passbi/passbi_itinerary/internal/trip"
	"github.com/sirupsen/logrus"
)

// Row is one parsed CSV line
type Row struct {
	Line  int
	Input trip.StopInput
}

// ParseStopsFile parses a stops CSV file.
// Header: name,lat,lng,day,category,visit_minutes,notes (column order is free).
func ParseStopsFile(path string) ([]Row, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	return ParseStops(file)
}

// ParseStops parses stops from CSV. Malformed rows are skipped with a warning.
func ParseStops(reader io.Reader) ([]Row, error) {
	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	header, err := csvReader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	colMap := makeColumnMap(header)
	for _, required := range []string{"name", "lat", "lng"} {
		if _, ok := colMap[required]; !ok {
			return nil, fmt.Errorf("missing required column %q", required)
		}
	}

	var rows []Row
	line := 1
	for {
		record, err := csvReader.Read()
		line++
		if err == io.EOF {
			break
		}
		if err != nil {
			logrus.WithField("line", line).Warnf("Skipping malformed row: %v", err)
			continue
		}

		name := getField(record, colMap, "name")
		latStr := getField(record, colMap, "lat")
		lngStr := getField(record, colMap, "lng")

		// Skip rows without required fields
		if name == "" || latStr == "" || lngStr == "" {
			logrus.WithField("line", line).Warn("Skipping row with missing required fields")
			continue
		}

		lat, err := strconv.ParseFloat(latStr, 64)
		if err != nil {
			logrus.WithField("line", line).Warnf("Invalid latitude: %v", err)
			continue
		}

		lng, err := strconv.ParseFloat(lngStr, 64)
		if err != nil {
			logrus.WithField("line", line).Warnf("Invalid longitude: %v", err)
			continue
		}

		in := trip.StopInput{
			Name:     name,
			Location: models.LatLng{Lat: lat, Lng: lng},
			Category: models.ParseCategory(strings.ToLower(getField(record, colMap, "category"))),
			Notes:    getField(record, colMap, "notes"),
		}
		if day, err := strconv.Atoi(getField(record, colMap, "day")); err == nil {
			in.Day = day
		}
		if minutes, err := strconv.Atoi(getField(record, colMap, "visit_minutes")); err == nil {
			in.VisitMinutes = minutes
		}

		rows = append(rows, Row{Line: line, Input: in})
	}

	return rows, nil
}

// CleanStops removes rows with invalid coordinates
func CleanStops(rows []Row) []Row {
	cleaned := []Row{}

	for _, row := range rows {
		p := row.Input.Location
		log := logrus.WithFields(logrus.Fields{"line": row.Line, "name": row.Input.Name})

		// Check for valid coordinates
		if p.Lat < -90 || p.Lat > 90 {
			log.Warnf("Invalid latitude %f", p.Lat)
			continue
		}
		if p.Lng < -180 || p.Lng > 180 {
			log.Warnf("Invalid longitude %f", p.Lng)
			continue
		}
		if p.IsZero() {
			log.Warn("Null island coordinates, skipping")
			continue
		}

		cleaned = append(cleaned, row)
	}

	if len(cleaned) < len(rows) {
		logrus.Infof("Cleaned stops: removed %d invalid rows", len(rows)-len(cleaned))
	}

	return cleaned
}

func makeColumnMap(header []string) map[string]int {
	colMap := make(map[string]int)
	for i, col := range header {
		colMap[strings.ToLower(strings.TrimSpace(col))] = i
	}
	return colMap
}

func getField(record []string, colMap map[string]int, fieldName string) string {
	if idx, ok := colMap[fieldName]; ok && idx < len(record) {
		return strings.TrimSpace(record[idx])
	}
	return ""
}
