// Package activity writes a simulated ride as a FIT activity file.
package activity

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/muktihari/fit/encoder"
	"github.com/muktihari/fit/profile/mesgdef"
	"github.com/muktihari/fit/profile/typedef"
	"github.com/muktihari/fit/proto"
	"github.com/pathsim/bikesim/pkg/core"
)

// Degrees to semicircles (FIT position unit)
const degreesToSemicircles = 2147483648.0 / 180.0

// serial number reported in the file_id message
const serialNumber = 1

// Encode writes the samples of res as a cycling activity to w.
// Record timestamps are info.StartedAt plus the sample time.
func Encode(w io.Writer, info core.RunInfo, res core.Result) error {
	start := info.StartedAt.Truncate(time.Second)
	end := start.Add(seconds(res.TotalElapsedTime))

	fit := proto.FIT{}

	fileID := mesgdef.FileId{
		Type:         typedef.FileActivity,
		Manufacturer: typedef.ManufacturerDevelopment,
		Product:      0,
		SerialNumber: serialNumber,
		TimeCreated:  start,
	}
	fit.Messages = append(fit.Messages, fileID.ToMesg(nil))

	startEvent := mesgdef.Event{
		Timestamp: start,
		Event:     typedef.EventTimer,
		EventType: typedef.EventTypeStart,
	}
	fit.Messages = append(fit.Messages, startEvent.ToMesg(nil))

	var maxSpeed float64
	for _, s := range res.Samples {
		fit.Messages = append(fit.Messages, record(start, info, s).ToMesg(nil))
		maxSpeed = math.Max(maxSpeed, s.Velocity)
	}

	stopEvent := mesgdef.Event{
		Timestamp: end,
		Event:     typedef.EventTimer,
		EventType: typedef.EventTypeStopAll,
	}
	fit.Messages = append(fit.Messages, stopEvent.ToMesg(nil))

	elapsed := uint32(res.TotalElapsedTime * 1000)                                  // ms
	distance := uint32(math.Max(res.Final.Position-info.Path[0].Position, 0) * 100) // cm
	var avgSpeed uint32
	if res.TotalElapsedTime > 0 {
		avgSpeed = uint32(float64(distance) / 100 / res.TotalElapsedTime * 1000) // mm/s
	}
	power := uint16(math.Round(info.Rider.AveragePower))

	lap := mesgdef.Lap{
		Timestamp:        end,
		StartTime:        start,
		TotalElapsedTime: elapsed,
		TotalTimerTime:   elapsed,
		TotalDistance:    distance,
		AvgPower:         power,
		Event:            typedef.EventLap,
		EventType:        typedef.EventTypeStop,
	}
	fit.Messages = append(fit.Messages, lap.ToMesg(nil))

	session := mesgdef.Session{
		Timestamp:        end,
		StartTime:        start,
		TotalElapsedTime: elapsed,
		TotalTimerTime:   elapsed,
		TotalDistance:    distance,
		TotalAscent:      uint16(math.Round(info.Path.Climb())),
		EnhancedAvgSpeed: avgSpeed,
		EnhancedMaxSpeed: uint32(maxSpeed * 1000),
		AvgPower:         power,
		Sport:            typedef.SportCycling,
		SubSport:         typedef.SubSportVirtualActivity,
		Event:            typedef.EventSession,
		EventType:        typedef.EventTypeStop,
		Trigger:          typedef.SessionTriggerActivityEnd,
	}
	fit.Messages = append(fit.Messages, session.ToMesg(nil))

	activity := mesgdef.Activity{
		Timestamp:      end,
		TotalTimerTime: elapsed,
		NumSessions:    1,
		Type:           typedef.ActivityManual,
		Event:          typedef.EventActivity,
		EventType:      typedef.EventTypeStop,
	}
	fit.Messages = append(fit.Messages, activity.ToMesg(nil))

	enc := encoder.New(w)
	if err := enc.Encode(&fit); err != nil {
		return fmt.Errorf("encode activity: %w", err)
	}
	return nil
}

// WriteFile writes the activity to path.
func WriteFile(path string, info core.RunInfo, res core.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create activity file: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	if err := Encode(bw, info, res); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write activity file: %w", err)
	}
	return f.Close()
}

func record(start time.Time, info core.RunInfo, s core.Sample) *mesgdef.Record {
	rec := mesgdef.NewRecord(nil)
	rec.Timestamp = start.Add(seconds(s.Time))
	rec.Distance = uint32(math.Max(s.Position-info.Path[0].Position, 0) * 100) // cm
	rec.EnhancedSpeed = uint32(math.Max(s.Velocity, 0) * 1000)                 // mm/s
	rec.EnhancedAltitude = uint32(math.Max((s.Altitude+500)*5, 0))             // scale 5, offset 500
	rec.Grade = int16(math.Round(s.Slope * 100 * 100))                         // %, scale 100
	rec.Power = uint16(math.Round(info.Rider.AveragePower))

	if g, ok := geoAt(info, s.Position); ok {
		rec.PositionLat = int32(g.Latitude * degreesToSemicircles)
		rec.PositionLong = int32(g.Longitude * degreesToSemicircles)
	}
	return rec
}

// geoAt returns the track coordinate of the last waypoint at or before pos,
// when the path came with one coordinate per waypoint.
func geoAt(info core.RunInfo, pos float64) (core.GeoPoint, bool) {
	if len(info.Track) == 0 || len(info.Track) != len(info.Path) {
		return core.GeoPoint{}, false
	}
	i := 0
	for i+1 < len(info.Path) && info.Path[i+1].Position <= pos {
		i++
	}
	return info.Track[i], true
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
