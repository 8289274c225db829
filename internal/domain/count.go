package domain

import (
	"fmt"
	"strings"
	"time"
)

// Direction is the compass orientation assigned to a counter channel.
type Direction string

const (
	North Direction = "north"
	East  Direction = "east"
	South Direction = "south"
	West  Direction = "west"
)

// ParseDirection accepts the forms found in the database and in filenames:
// a single letter or the full word, any case.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "n", "north":
		return North, nil
	case "e", "east":
		return East, nil
	case "s", "south":
		return South, nil
	case "w", "west":
		return West, nil
	}
	return "", fmt.Errorf("unrecognized direction %q", s)
}

func (d Direction) String() string { return string(d) }

// Directions maps counter channels to directions. Channel 1 always has a
// direction; channels 2 and 3 are empty unless the filename encodes them.
type Directions struct {
	Direction1 Direction
	Direction2 Direction
	Direction3 Direction
}

// ByChannel resolves a channel number to its direction. The second return
// value is false for channels the count does not have.
func (d Directions) ByChannel(channel int) (Direction, bool) {
	switch channel {
	case 1:
		return d.Direction1, d.Direction1 != ""
	case 2:
		return d.Direction2, d.Direction2 != ""
	case 3:
		return d.Direction3, d.Direction3 != ""
	}
	return "", false
}

// CountKind identifies the shape of an input count. The set is closed: each
// kind determines its record type, its storage tables, and its AADV factor
// strategy.
type CountKind int

const (
	IndividualVehicleKind CountKind = iota
	FifteenMinuteVehicleKind
	FifteenMinuteBicycleKind
	FifteenMinutePedestrianKind
)

func (k CountKind) String() string {
	switch k {
	case IndividualVehicleKind:
		return "vehicle"
	case FifteenMinuteVehicleKind:
		return "15minutevehicle"
	case FifteenMinuteBicycleKind:
		return "15minutebicycle"
	case FifteenMinutePedestrianKind:
		return "15minutepedestrian"
	}
	return "unknown"
}

// Metadata is an input count's metadata, parsed from its filename.
type Metadata struct {
	Technician string
	Recordnum  int
	Directions Directions
	CounterID  int
	SpeedLimit *int // nil when the filename says "na"
}

// VehicleEvent is one observed vehicle, before any binning.
type VehicleEvent struct {
	Time    time.Time
	Channel int
	Class   int
	Speed   float64
}

// NewVehicleEvent validates the class code before constructing the event.
func NewVehicleEvent(t time.Time, channel, class int, speed float64) (VehicleEvent, error) {
	if class < 0 || class > 15 {
		return VehicleEvent{}, BadVehicleClassError{Class: class}
	}
	return VehicleEvent{Time: t, Channel: channel, Class: class, Speed: speed}, nil
}

// FifteenMinuteVehicle is a pre-binned simple volume reading.
type FifteenMinuteVehicle struct {
	Recordnum int
	Time      time.Time
	Count     int
	Direction Direction
	Lane      int
}

// FifteenMinuteBikePed is a pre-binned bicycle or pedestrian reading. In and
// Out are nil for single-direction counts, which only record the total.
type FifteenMinuteBikePed struct {
	Recordnum int
	Time      time.Time
	Total     int
	In        *int
	Out       *int
}
