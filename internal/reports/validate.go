package reports

import (
	"errors"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/patrickwarner/floodwatch/internal/models"
)

const (
	msgMissingFields      = "Missing required fields"
	msgInvalidStatus      = "Invalid status value"
	msgInvalidCoordinates = "Invalid coordinates format"
	msgInvalidWaterLevel  = "Invalid water level value"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// formFields mirrors Input for tag-based checks.
type formFields struct {
	Location    string `json:"location" validate:"required"`
	Coordinates string `json:"coordinates" validate:"required"`
	WaterLevel  string `json:"waterLevel" validate:"required"`
	Description string `json:"description" validate:"required"`
	Status      string `json:"status" validate:"omitempty,oneof=ACTIVE RESOLVED"`
}

var requiredFields = []string{"location", "coordinates", "waterLevel", "description"}

// parsedInput is Input after validation.
type parsedInput struct {
	Location    string
	Coordinates models.Coordinates
	WaterLevel  float64
	Description string
	Status      *models.Status
}

// checkFields checks presence, then status when allowed. The first failure is
// returned as a *ValidationError.
func checkFields(in Input, allowStatus bool) (*models.Status, error) {
	f := formFields{
		Location:    in.Location,
		Coordinates: in.Coordinates,
		WaterLevel:  in.WaterLevel,
		Description: in.Description,
	}
	if allowStatus {
		f.Status = in.Status
	}

	if err := validate.Struct(f); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return nil, err
		}
		if missing := missingFields(fieldErrs); missing != nil {
			return nil, &ValidationError{Message: msgMissingFields, Details: missing}
		}
		return nil, &ValidationError{
			Message: msgInvalidStatus,
			Details: map[string]any{"status": "Status must be either 'ACTIVE' or 'RESOLVED'"},
		}
	}

	if f.Status == "" {
		return nil, nil
	}
	st := models.Status(f.Status)
	return &st, nil
}

// parseValues decodes coordinates, then water level, from input that passed
// checkFields.
func parseValues(in Input, status *models.Status) (parsedInput, error) {
	coords, err := models.ParseCoordinates([]byte(in.Coordinates))
	if err != nil {
		return parsedInput{}, &ValidationError{Message: msgInvalidCoordinates}
	}

	level, err := parseWaterLevel(in.WaterLevel)
	if err != nil {
		return parsedInput{}, &ValidationError{Message: msgInvalidWaterLevel}
	}

	return parsedInput{
		Location:    in.Location,
		Coordinates: coords,
		WaterLevel:  level,
		Description: in.Description,
		Status:      status,
	}, nil
}

// missingFields returns a presence report for every required field, or nil
// when none is missing.
func missingFields(errs validator.ValidationErrors) map[string]any {
	absent := make(map[string]bool)
	for _, fe := range errs {
		if fe.Tag() == "required" {
			absent[fe.Field()] = true
		}
	}
	if len(absent) == 0 {
		return nil
	}
	details := make(map[string]any, len(requiredFields))
	for _, name := range requiredFields {
		details[name] = absent[name]
	}
	return details
}

func parseWaterLevel(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, strconv.ErrSyntax
	}
	return v, nil
}
