package handlers

import (
	"github.com/arzan03/natours/internal/models"
	"github.com/arzan03/natours/internal/query"
	"github.com/arzan03/natours/internal/repository"
	"github.com/arzan03/natours/internal/services"
	"github.com/gofiber/fiber/v2"
)

type TourHandler struct {
	*Factory[models.Tour, *models.Tour]
	tours *services.TourService
}

func NewTourHandler(store repository.Store[models.Tour], tours *services.TourService, populate *services.Populator) *TourHandler {
	return &TourHandler{
		Factory: NewFactory[models.Tour](store, query.Tours, Hooks[models.Tour]{
			Prepare:      applyTourImages,
			PopulateOne:  populate.TourDetail,
			PopulateMany: populate.TourGuides,
		}),
		tours: tours,
	}
}

func applyTourImages(c *fiber.Ctx, tour *models.Tour, _ bool) error {
	uploaded, ok := c.Locals(tourImagesKey).(*tourImages)
	if !ok {
		return nil
	}
	if uploaded.cover != "" {
		tour.ImageCover = uploaded.cover
	}
	if len(uploaded.images) > 0 {
		tour.Images = uploaded.images
	}
	return nil
}

// AliasTopTours rewrites the query to the five best rated, cheapest tours
func AliasTopTours(c *fiber.Ctx) error {
	args := c.Context().QueryArgs()
	for k, v := range query.TopCheap() {
		args.Set(k, v)
	}
	return c.Next()
}

func (h *TourHandler) GetTourStats(c *fiber.Ctx) error {
	stats, err := h.tours.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return sendData(c, fiber.StatusOK, "stats", stats)
}

func (h *TourHandler) GetMonthlyPlan(c *fiber.Ctx) error {
	plan, err := h.tours.MonthlyPlan(c.UserContext(), c.Params("year"))
	if err != nil {
		return err
	}
	return sendData(c, fiber.StatusOK, "plan", plan)
}

// GetToursWithin serves /tours-within/:distance/center/:latlng/unit/:unit
func (h *TourHandler) GetToursWithin(c *fiber.Ctx) error {
	tours, err := h.tours.Within(c.UserContext(), c.Params("distance"), c.Params("latlng"), c.Params("unit"))
	if err != nil {
		return err
	}
	return sendList(c, len(tours), tours)
}

func (h *TourHandler) GetDistances(c *fiber.Ctx) error {
	distances, err := h.tours.Distances(c.UserContext(), c.Params("latlng"), c.Params("unit"))
	if err != nil {
		return err
	}
	return sendData(c, fiber.StatusOK, "data", distances)
}

