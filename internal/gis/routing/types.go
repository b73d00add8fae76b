package routing

import (
	"errors"
)

type routeResponse struct {
	Code   string  `json:"code"`
	Routes []route `json:"routes"`
}

type route struct {
	// Geometry is the encoded polyline of the full path.
	Geometry string  `json:"geometry"`
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
}

func (r routeResponse) validate() error {
	if r.Code != "Ok" {
		return errors.New("routing service returned code " + r.Code)
	}
	if len(r.Routes) == 0 {
		return errors.New("no route found")
	}
	return nil
}

// Summary describes the selected route.
type Summary struct {
	// Distance in meters.
	Distance float64
	// Duration in seconds.
	Duration float64
}
