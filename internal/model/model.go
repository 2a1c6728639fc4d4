package model

import (
	"database/sql"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Run{},
	&Sample{},
}

////////////////////////
// RUN MODELS
////////////////////////

// Run is one simulated ride
type Run struct {
	gorm.Model
	Name      string    `json:"name" gorm:"size:127;index:idx_run_name"`
	Source    string    `json:"source" gorm:"size:255"`
	StartedAt time.Time `json:"startedAt" gorm:"index:idx_run_started_at"`

	// Inputs
	AveragePower float64        `json:"averagePower"` // W
	Mass         float64        `json:"mass"`         // kg
	TimeStep     float64        `json:"timeStep"`     // s
	Options      datatypes.JSON `json:"options"`      // sample interval, physics coefficients

	// Route
	Waypoints int     `json:"waypoints"`
	Length    float64 `json:"length"` // m
	Climb     float64 `json:"climb"`  // m

	// Profile is a LineString of (position, altitude).
	Profile geom.Geometry `json:"-" gorm:"type:geometry"`
	// Track is a LineString in EPSG:3857, empty unless read from GPX.
	Track geom.Geometry `json:"-" gorm:"type:geometry"`

	// Outcome, set at EndRun
	TotalElapsedTime sql.NullFloat64 `json:"totalElapsedTime"`
	Aborted          bool            `json:"aborted"`
	Steps            int             `json:"steps"`
	FinalVelocity    float64         `json:"finalVelocity"`
	SampleCount      int             `json:"sampleCount"`
	EndedAt          sql.NullTime    `json:"endedAt"`

	Samples []Sample `json:"samples,omitempty" gorm:"foreignkey:RunID"`
}

func (*Run) TableName() string {
	return "runs"
}

// Sample is one emitted observation of a run
type Sample struct {
	ID          uint       `json:"id" gorm:"primarykey"`
	RunID       uint       `json:"runId" gorm:"index:idx_sample_run_id"`
	Run         Run        `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:RunID;"`
	Time        float64    `json:"time" gorm:"index:idx_sample_time"`
	Point       geom.Point `json:"point" gorm:"type:geometry"` // (position, altitude)
	Position    float64    `json:"position"`
	Altitude    float64    `json:"altitude"`
	Velocity    float64    `json:"velocity"`
	Slope       float64    `json:"slope"`
	PowerMargin float64    `json:"powerMargin"`
}

func (*Sample) TableName() string {
	return "samples"
}
