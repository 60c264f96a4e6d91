package services

import (
	"context"
	"strconv"
	"strings"

	"github.com/arzan03/natours/internal/apperr"
	"github.com/arzan03/natours/internal/models"
	"github.com/arzan03/natours/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	earthRadiusMi = 3963.2
	earthRadiusKm = 6378.1
	metersToMi    = 0.000621371
	metersToKm    = 0.001
)

type TourAnalytics interface {
	Stats(ctx context.Context) ([]repository.TourStat, error)
	MonthlyPlan(ctx context.Context, year int) ([]repository.MonthPlan, error)
	Distances(ctx context.Context, lng, lat, multiplier float64) ([]repository.TourDistance, error)
}

type TourService struct {
	tours     repository.Store[models.Tour]
	analytics TourAnalytics
}

func NewTourService(tours repository.Store[models.Tour], analytics TourAnalytics) *TourService {
	return &TourService{tours: tours, analytics: analytics}
}

func (s *TourService) Stats(ctx context.Context) ([]repository.TourStat, error) {
	return s.analytics.Stats(ctx)
}

func (s *TourService) MonthlyPlan(ctx context.Context, rawYear string) ([]repository.MonthPlan, error) {
	year, err := strconv.Atoi(rawYear)
	if err != nil || year < 1 {
		return nil, apperr.BadRequest("Invalid year: " + rawYear)
	}
	return s.analytics.MonthlyPlan(ctx, year)
}

// Within lists tours whose start location lies within distance of latlng
func (s *TourService) Within(ctx context.Context, rawDistance, latlng, unit string) ([]models.Tour, error) {
	lat, lng, err := ParseLatLng(latlng)
	if err != nil {
		return nil, err
	}
	distance, err := strconv.ParseFloat(rawDistance, 64)
	if err != nil || distance < 0 {
		return nil, apperr.BadRequest("Invalid distance: " + rawDistance)
	}
	if err := checkUnit(unit); err != nil {
		return nil, err
	}

	radius := distance / earthRadiusKm
	if unit == "mi" {
		radius = distance / earthRadiusMi
	}
	return s.tours.Find(ctx, repository.WithinFilter(lng, lat, radius), nil)
}

// Distances ranks tours by distance from latlng, in miles or kilometres
func (s *TourService) Distances(ctx context.Context, latlng, unit string) ([]repository.TourDistance, error) {
	lat, lng, err := ParseLatLng(latlng)
	if err != nil {
		return nil, err
	}
	if err := checkUnit(unit); err != nil {
		return nil, err
	}

	multiplier := metersToKm
	if unit == "mi" {
		multiplier = metersToMi
	}
	return s.analytics.Distances(ctx, lng, lat, multiplier)
}

func checkUnit(unit string) error {
	if unit != "mi" && unit != "km" {
		return apperr.BadRequest("Please provide the unit as mi or km.")
	}
	return nil
}

// ParseLatLng reads "lat,lng"
func ParseLatLng(s string) (lat, lng float64, err error) {
	bad := apperr.BadRequest("Please provide latitude and longitude in the format lat,lng.")
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, bad
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return 0, 0, bad
	}
	return lat, lng, nil
}

// Populator resolves references for responses
type Populator struct {
	users   repository.Store[models.User]
	tours   repository.Store[models.Tour]
	reviews repository.Store[models.Review]
}

func NewPopulator(users repository.Store[models.User], tours repository.Store[models.Tour], reviews repository.Store[models.Review]) *Populator {
	return &Populator{users: users, tours: tours, reviews: reviews}
}

func (p *Populator) summaries(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.UserSummary, error) {
	out := make(map[primitive.ObjectID]models.UserSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	users, err := p.users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, nil)
	if err != nil {
		return nil, err
	}
	for i := range users {
		out[users[i].ID] = users[i].Summary()
	}
	return out, nil
}

// TourGuides replaces guide ids with user summaries, keeping the stored order
func (p *Populator) TourGuides(ctx context.Context, tours []models.Tour) error {
	var ids []primitive.ObjectID
	for _, t := range tours {
		ids = append(ids, t.Guides...)
	}
	byID, err := p.summaries(ctx, ids)
	if err != nil {
		return err
	}
	for i := range tours {
		tours[i].GuideDetails = make([]models.UserSummary, 0, len(tours[i].Guides))
		for _, id := range tours[i].Guides {
			if u, ok := byID[id]; ok {
				tours[i].GuideDetails = append(tours[i].GuideDetails, u)
			}
		}
	}
	return nil
}

// TourDetail adds guides and the tour's reviews
func (p *Populator) TourDetail(ctx context.Context, tour *models.Tour) error {
	single := []models.Tour{*tour}
	if err := p.TourGuides(ctx, single); err != nil {
		return err
	}
	*tour = single[0]

	reviews, err := p.reviews.Find(ctx, bson.M{"tour": tour.ID}, nil)
	if err != nil {
		return err
	}
	if err := p.ReviewAuthors(ctx, reviews); err != nil {
		return err
	}
	tour.Reviews = reviews
	return nil
}

func (p *Populator) ReviewAuthors(ctx context.Context, reviews []models.Review) error {
	ids := make([]primitive.ObjectID, 0, len(reviews))
	for _, r := range reviews {
		ids = append(ids, r.User)
	}
	byID, err := p.summaries(ctx, ids)
	if err != nil {
		return err
	}
	for i := range reviews {
		if u, ok := byID[reviews[i].User]; ok {
			reviews[i].Author = &u
		}
	}
	return nil
}

func (p *Populator) BookingRefs(ctx context.Context, bookings []models.Booking) error {
	userIDs := make([]primitive.ObjectID, 0, len(bookings))
	tourIDs := make([]primitive.ObjectID, 0, len(bookings))
	for _, b := range bookings {
		userIDs = append(userIDs, b.User)
		tourIDs = append(tourIDs, b.Tour)
	}
	users, err := p.summaries(ctx, userIDs)
	if err != nil {
		return err
	}
	tours, err := p.tours.Unscoped().Find(ctx, bson.M{"_id": bson.M{"$in": tourIDs}}, nil)
	if err != nil {
		return err
	}
	names := make(map[primitive.ObjectID]string, len(tours))
	for _, t := range tours {
		names[t.ID] = t.Name
	}
	for i := range bookings {
		if u, ok := users[bookings[i].User]; ok {
			bookings[i].Buyer = &u
		}
		bookings[i].TourName = names[bookings[i].Tour]
	}
	return nil
}
