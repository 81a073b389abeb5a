package attendance

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/pkl/core"
)

var (
	statusTag  = "attendance_status"
	statusText = "status must be one of present, sick or leave"

	coordsPairTag  = "coords_pair"
	coordsPairText = "latitude and longitude must be provided together"

	locationTag  = "location"
	locationText = "location needs coordinates or a place"
)

// InitValidators registers the attendance validations and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(statusTag, checkInStatusValidation)
	core.RegisterCustomTranslation(validate, translator, statusTag, statusText)

	validate.RegisterStructValidation(locationStructValidation, Location{})
	core.RegisterCustomTranslation(validate, translator, coordsPairTag, coordsPairText)
	core.RegisterCustomTranslation(validate, translator, locationTag, locationText)
}

// checkInStatusValidation only accepts statuses a student may submit; absent is system-entered.
func checkInStatusValidation(fl validator.FieldLevel) bool {
	status := Status(fl.Field().String())
	for _, st := range CheckInStatuses {
		if status == st {
			return true
		}
	}
	return false
}

func locationStructValidation(sl validator.StructLevel) {
	loc := sl.Current().Interface().(Location)

	hasLat, hasLng := loc.Latitude != nil, loc.Longitude != nil
	if hasLat != hasLng {
		if hasLat {
			sl.ReportError(loc.Longitude, "longitude", "Longitude", coordsPairTag, "")
		} else {
			sl.ReportError(loc.Latitude, "latitude", "Latitude", coordsPairTag, "")
		}
		return
	}
	if !hasLat && loc.Place == "" {
		sl.ReportError(loc.Place, "place", "Place", locationTag, "")
	}
}
