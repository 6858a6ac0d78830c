package models

import (
	"time"

	"github.com/uptrace/bun"
)

type TripStatus string

const (
	TripStatusScheduled TripStatus = "scheduled"
	TripStatusCompleted TripStatus = "completed"
	TripStatusCancelled TripStatus = "cancelled"
)

type Route struct {
	bun.BaseModel `bun:"table:routes"`

	ID          string  `bun:"id,pk" json:"id"`
	Origin      string  `bun:"origin,notnull" json:"origin"`
	Destination string  `bun:"destination,notnull" json:"destination"`
	BaseFare    float64 `bun:"base_fare,notnull" json:"base_fare"`
}

type BusStatus string

const (
	BusStatusOperational BusStatus = "operational"
	BusStatusMaintenance BusStatus = "maintenance"
)

type Bus struct {
	bun.BaseModel `bun:"table:buses"`

	ID           string    `bun:"id,pk" json:"id"`
	Plate        string    `bun:"plate,unique,notnull" json:"plate"`
	Manufacturer string    `bun:"manufacturer" json:"manufacturer"`
	Capacity     int       `bun:"capacity,notnull" json:"capacity"`
	Status       BusStatus `bun:"status,notnull" json:"status"`
}

type Driver struct {
	bun.BaseModel `bun:"table:drivers"`

	ID        string `bun:"id,pk" json:"id"`
	FullName  string `bun:"full_name,notnull" json:"full_name"`
	LicenseNo string `bun:"license_no,unique,notnull" json:"license_no"`
}

type Trip struct {
	bun.BaseModel `bun:"table:trips"`

	ID          string     `bun:"id,pk" json:"id"`
	RouteID     string     `bun:"route_id,notnull" json:"route_id"`
	BusID       string     `bun:"bus_id,notnull" json:"bus_id"`
	DriverID    string     `bun:"driver_id,notnull" json:"driver_id"`
	DepartureAt time.Time  `bun:"departure_at,notnull" json:"departure_at"`
	ArrivalAt   time.Time  `bun:"arrival_at,nullzero" json:"arrival_at,omitempty"`
	Status      TripStatus `bun:"status,notnull" json:"status"`
}

// TripSeating is a trip joined with the data the sale path needs:
// the seat capacity of its bus and the reference fare of its route.
type TripSeating struct {
	TripID      string     `bun:"trip_id"`
	Status      TripStatus `bun:"status"`
	DepartureAt time.Time  `bun:"departure_at"`
	Capacity    int        `bun:"capacity"`
	BaseFare    float64    `bun:"base_fare"`
}

// SeatMap is the advisory availability view of a trip.
type SeatMap struct {
	TripID    string `json:"trip_id"`
	Capacity  int    `json:"capacity"`
	Sold      []int  `json:"sold"`
	Available int    `json:"available"`
}

// TripSearch selects scheduled trips departing in [From, To). Empty Origin or
// Destination matches any.
type TripSearch struct {
	Origin      string
	Destination string
	From        time.Time
	To          time.Time
}

// TripSummary is one trip offered for sale, with the seats still free.
type TripSummary struct {
	TripID       string     `bun:"trip_id" json:"trip_id"`
	Origin       string     `bun:"origin" json:"origin"`
	Destination  string     `bun:"destination" json:"destination"`
	DepartureAt  time.Time  `bun:"departure_at" json:"departure_at"`
	ArrivalAt    time.Time  `bun:"arrival_at" json:"arrival_at,omitempty"`
	Status       TripStatus `bun:"status" json:"status"`
	BaseFare     float64    `bun:"base_fare" json:"base_fare"`
	BusPlate     string     `bun:"bus_plate" json:"bus_plate"`
	Manufacturer string     `bun:"manufacturer" json:"manufacturer"`
	Capacity     int        `bun:"capacity" json:"capacity"`
	DriverName   string     `bun:"driver_name" json:"driver_name"`
	Available    int        `bun:"available" json:"available"`
}
