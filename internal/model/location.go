package model

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SRID of every stored point (WGS84)
const SRID = 4326

// Point is a PostGIS point in GeoJSON form: coordinates are [lon, lat].
// It is written with ST_MakePoint and read back through ST_AsGeoJSON.
type Point struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// NewPoint derives the point for a lat/lon pair
func NewPoint(lat, lon float64) Point {
	return Point{Type: "Point", Coordinates: [2]float64{lon, lat}}
}

// Lon returns the x coordinate
func (p Point) Lon() float64 { return p.Coordinates[0] }

// Lat returns the y coordinate
func (p Point) Lat() float64 { return p.Coordinates[1] }

// GormDataType implements schema.GormDataTypeInterface
func (Point) GormDataType() string {
	return fmt.Sprintf("geometry(Point,%d)", SRID)
}

// GormValue implements gorm.Valuer
func (p Point) GormValue(ctx context.Context, db *gorm.DB) clause.Expr {
	return clause.Expr{
		SQL:  fmt.Sprintf("ST_SetSRID(ST_MakePoint(?, ?), %d)", SRID),
		Vars: []interface{}{p.Lon(), p.Lat()},
	}
}

// Scan implements sql.Scanner for ST_AsGeoJSON output
func (p *Point) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*p = Point{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Point", value)
	}
	if len(raw) == 0 {
		*p = Point{}
		return nil
	}
	var decoded Point
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("decode geojson point: %w", err)
	}
	if decoded.Type != "Point" {
		return fmt.Errorf("unexpected geometry type %q", decoded.Type)
	}
	*p = decoded
	return nil
}

// Location is a place attached to exactly one user or one task
type Location struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	UserID      *uint     `json:"user_id,omitempty"`
	TaskID      *uint     `json:"task_id,omitempty"`
	PlaceID     int64     `json:"place_id" gorm:"not null"`
	DisplayName string    `json:"display_name" gorm:"size:500"`
	Name        string    `json:"name" gorm:"size:255"`
	Lat         float64   `json:"lat" gorm:"not null"`
	Lon         float64   `json:"lon" gorm:"not null"`
	Geom        Point     `json:"geom" gorm:"column:geom"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// LocationInput is the payload for creating or replacing a location
type LocationInput struct {
	PlaceID     int64   `json:"place_id" binding:"required"`
	DisplayName string  `json:"display_name"`
	Name        string  `json:"name"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
}

// Validate checks coordinate ranges
func (in LocationInput) Validate() error {
	if in.Lat < -90 || in.Lat > 90 {
		return fmt.Errorf("lat %v out of range [-90, 90]", in.Lat)
	}
	if in.Lon < -180 || in.Lon > 180 {
		return fmt.Errorf("lon %v out of range [-180, 180]", in.Lon)
	}
	return nil
}

// Apply copies the input onto l and re-derives the point
func (in LocationInput) Apply(l *Location) {
	l.PlaceID = in.PlaceID
	l.DisplayName = in.DisplayName
	l.Name = in.Name
	l.Lat = in.Lat
	l.Lon = in.Lon
	l.Geom = NewPoint(in.Lat, in.Lon)
}
