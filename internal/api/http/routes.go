package httpapi

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-widget/internal/app"
	"github.com/i474232898/weather-widget/internal/bridge"
	"github.com/i474232898/weather-widget/internal/search"
	"github.com/i474232898/weather-widget/internal/state"
	"github.com/i474232898/weather-widget/internal/weather"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(router fiber.Router, service *app.Service, searcher *search.Controller, widget *bridge.Bridge) {
	v1 := router.Group("/api/v1")

	v1.Get("/weather", func(c *fiber.Ctx) error {
		return c.JSON(newStateView(service.State()))
	})

	v1.Post("/weather/refresh", func(c *fiber.Ctx) error {
		if err := service.Refresh(c.UserContext()); err != nil {
			if errors.Is(err, app.ErrBusy) {
				return fiber.NewError(fiber.StatusConflict, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to refresh weather")
		}
		return c.JSON(newStateView(service.State()))
	})

	v1.Delete("/weather/error", func(c *fiber.Ctx) error {
		service.ClearError()
		return c.JSON(newStateView(service.State()))
	})

	v1.Put("/settings/unit", func(c *fiber.Ctx) error {
		var req unitRequest
		if err := bind(c, &req); err != nil {
			return err
		}
		service.SetUnit(weather.Unit(req.Unit))
		return c.JSON(newStateView(service.State()))
	})

	v1.Post("/settings/unit/toggle", func(c *fiber.Ctx) error {
		service.ToggleUnit()
		return c.JSON(newStateView(service.State()))
	})

	v1.Put("/search/query", func(c *fiber.Ctx) error {
		var req queryRequest
		if err := bind(c, &req); err != nil {
			return err
		}
		searcher.Type(req.Query)
		return c.JSON(newSearchView(searcher.View()))
	})

	v1.Get("/search", func(c *fiber.Ctx) error {
		return c.JSON(newSearchView(searcher.View()))
	})

	v1.Post("/search/select", func(c *fiber.Ctx) error {
		var req selectRequest
		if err := bind(c, &req); err != nil {
			return err
		}
		err := searcher.Select(c.UserContext(), *req.Index)
		if errors.Is(err, search.ErrInvalidIndex) {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		// A failed load is reported through the state's error message.
		return c.JSON(newStateView(service.State()))
	})

	v1.Get("/widget", func(c *fiber.Ctx) error {
		snapshot := widget.Load(c.UserContext())
		if snapshot == nil {
			return fiber.NewError(fiber.StatusNotFound, "no widget snapshot")
		}
		data, err := bridge.EncodeSnapshot(*snapshot)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to encode widget snapshot")
		}
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Send(data)
	})
}

func bind(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

type unitRequest struct {
	Unit string `json:"unit" validate:"required,oneof=C F"`
}

type queryRequest struct {
	Query string `json:"query"`
}

type selectRequest struct {
	Index *int `json:"index" validate:"required,min=0"`
}

type readingView struct {
	City        string           `json:"city"`
	Location    weather.Location `json:"location"`
	Temperature float64          `json:"temperature"`
	Formatted   string           `json:"formatted"`
	WeatherCode int              `json:"weatherCode"`
	Emoji       string           `json:"emoji"`
	Timestamp   time.Time        `json:"timestamp"`
}

type stateView struct {
	Weather                   *readingView      `json:"weather"`
	IsLoading                 bool              `json:"isLoading"`
	Error                     string            `json:"error,omitempty"`
	SavedLocation             *weather.Location `json:"savedLocation"`
	TemperatureUnit           weather.Unit      `json:"temperatureUnit"`
	LocationPermissionGranted *bool             `json:"locationPermissionGranted"`
}

func newStateView(s state.State) stateView {
	v := stateView{
		IsLoading:                 s.IsLoading,
		Error:                     s.Error,
		SavedLocation:             s.SavedLocation,
		TemperatureUnit:           s.TemperatureUnit,
		LocationPermissionGranted: s.LocationPermissionGranted,
	}
	if r := s.CurrentWeather; r != nil {
		temp := r.TemperatureIn(s.TemperatureUnit)
		v.Weather = &readingView{
			City:        r.Location.City(),
			Location:    r.Location,
			Temperature: temp,
			Formatted:   weather.FormatTemperature(temp, s.TemperatureUnit),
			WeatherCode: r.WeatherCode,
			Emoji:       weather.Emoji(r.WeatherCode),
			Timestamp:   r.Timestamp,
		}
	}
	return v
}

type resultView struct {
	Index    int              `json:"index"`
	Label    string           `json:"label"`
	Location weather.Location `json:"location"`
}

type searchView struct {
	Phase   search.Phase `json:"phase"`
	Query   string       `json:"query"`
	Results []resultView `json:"results"`
	Error   string       `json:"error,omitempty"`
}

func newSearchView(v search.View) searchView {
	out := searchView{
		Phase:   v.Phase,
		Query:   v.Query,
		Results: make([]resultView, 0, len(v.Results)),
		Error:   v.Error,
	}
	for i, loc := range v.Results {
		out.Results = append(out.Results, resultView{Index: i, Label: loc.Label(), Location: loc})
	}
	return out
}
