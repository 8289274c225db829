// Package extract parses counter export files: count metadata from the
// structured filename and typed records from the CSV contents.
package extract

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dvrpc/traffic-counts-sub000/internal/domain"
)

// FilenameError reports a filename that does not follow the
// technician-recordnum-directions-counterid-speedlimit convention.
type FilenameError struct {
	Name    string
	Problem string
}

func (e FilenameError) Error() string {
	return fmt.Sprintf("filename %q is not to specification: %s", e.Name, e.Problem)
}

// directionCodes maps the filename direction field to channel directions.
var directionCodes = map[string]domain.Directions{
	"ns":  {Direction1: domain.North, Direction2: domain.South},
	"sn":  {Direction1: domain.South, Direction2: domain.North},
	"ew":  {Direction1: domain.East, Direction2: domain.West},
	"we":  {Direction1: domain.West, Direction2: domain.East},
	"nn":  {Direction1: domain.North, Direction2: domain.North},
	"ss":  {Direction1: domain.South, Direction2: domain.South},
	"ee":  {Direction1: domain.East, Direction2: domain.East},
	"ww":  {Direction1: domain.West, Direction2: domain.West},
	"nnn": {Direction1: domain.North, Direction2: domain.North, Direction3: domain.North},
	"sss": {Direction1: domain.South, Direction2: domain.South, Direction3: domain.South},
	"eee": {Direction1: domain.East, Direction2: domain.East, Direction3: domain.East},
	"www": {Direction1: domain.West, Direction2: domain.West, Direction3: domain.West},
	"n":   {Direction1: domain.North},
	"s":   {Direction1: domain.South},
	"e":   {Direction1: domain.East},
	"w":   {Direction1: domain.West},
}

// ParseMetadata reads count metadata from a filename, e.g.
// rc-166905-ew-40972-35.txt.
func ParseMetadata(path string) (domain.Metadata, error) {
	name := filepath.Base(path)
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	parts := strings.Split(stem, "-")

	if len(parts) < 5 {
		return domain.Metadata{}, FilenameError{Name: name, Problem: "too few parts"}
	}
	if len(parts) > 5 {
		return domain.Metadata{}, FilenameError{Name: name, Problem: "too many parts"}
	}

	// The technician field is initials; digits mean the field is missing.
	if _, err := strconv.Atoi(parts[0]); err == nil {
		return domain.Metadata{}, FilenameError{Name: name, Problem: "invalid technician"}
	}

	recordnum, err := strconv.Atoi(parts[1])
	if err != nil {
		return domain.Metadata{}, FilenameError{Name: name, Problem: "invalid record number"}
	}

	directions, ok := directionCodes[parts[2]]
	if !ok {
		return domain.Metadata{}, FilenameError{Name: name, Problem: "invalid directions"}
	}

	counterID, err := strconv.Atoi(parts[3])
	if err != nil {
		return domain.Metadata{}, FilenameError{Name: name, Problem: "invalid counter id"}
	}

	var speedLimit *int
	if parts[4] != "na" {
		limit, err := strconv.Atoi(parts[4])
		if err != nil {
			return domain.Metadata{}, FilenameError{Name: name, Problem: "invalid speed limit"}
		}
		speedLimit = &limit
	}

	return domain.Metadata{
		Technician: parts[0],
		Recordnum:  recordnum,
		Directions: directions,
		CounterID:  counterID,
		SpeedLimit: speedLimit,
	}, nil
}

// KindFromDir determines the count kind from the directory a file was
// dropped in.
func KindFromDir(path string) (domain.CountKind, error) {
	switch filepath.Base(filepath.Dir(path)) {
	case "vehicle":
		return domain.IndividualVehicleKind, nil
	case "15minutevehicle":
		return domain.FifteenMinuteVehicleKind, nil
	case "15minutebicycle":
		return domain.FifteenMinuteBicycleKind, nil
	case "15minutepedestrian":
		return domain.FifteenMinutePedestrianKind, nil
	}
	return 0, fmt.Errorf("no count kind for directory %q", filepath.Dir(path))
}
