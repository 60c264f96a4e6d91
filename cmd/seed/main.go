// Command seed loads the development data set into MongoDB or removes it.
//
//	seed -import -dir ./dev-data
//	seed -delete
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/arzan03/natours/internal/config"
	"github.com/arzan03/natours/internal/db"
	"github.com/arzan03/natours/internal/logger"
	"github.com/arzan03/natours/internal/models"
	"github.com/arzan03/natours/internal/repository"
	"github.com/arzan03/natours/internal/services"
	"github.com/goccy/go-json"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type stores struct {
	users   repository.Store[models.User]
	tours   repository.Store[models.Tour]
	reviews repository.Store[models.Review]
	ratings *services.RatingService
	hash    func(string) (string, error)
}

func main() {
	importData := flag.Bool("import", false, "load tours.json, users.json and reviews.json")
	deleteData := flag.Bool("delete", false, "remove all tours, users and reviews")
	dir := flag.String("dir", "dev-data", "directory holding the JSON files")
	flag.Parse()

	if *importData == *deleteData {
		fmt.Fprintln(os.Stderr, "use exactly one of -import or -delete")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	zlog, err := logger.New(cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zlog.Sync()

	ctx := context.Background()
	client, err := db.ConnectMongoDB(ctx, cfg.Database.URI, cfg.Database.Timeout, zlog)
	if err != nil {
		zlog.Fatal("MongoDB connection failed", zap.Error(err))
	}
	defer client.Disconnect(ctx)
	database := client.Database(cfg.Database.Name)

	if *deleteData {
		if err := wipe(ctx, database); err != nil {
			zlog.Fatal("Delete failed", zap.Error(err))
		}
		zlog.Info("Data successfully deleted")
		return
	}

	if err := db.EnsureIndexes(ctx, database); err != nil {
		zlog.Fatal("Index creation failed", zap.Error(err))
	}
	tours := repository.NewMongo[models.Tour](database.Collection(db.Tours), repository.TourOptions())
	auth := services.NewAuthService(nil, nil, nil, cfg.JWT, zlog)
	s := stores{
		users:   repository.NewMongo[models.User](database.Collection(db.Users), repository.UserOptions()),
		tours:   tours,
		reviews: repository.NewMongo[models.Review](database.Collection(db.Reviews), repository.Options{}),
		ratings: services.NewRatingService(tours, repository.NewReviewRatings(database.Collection(db.Reviews)), zlog),
		hash:    auth.HashPassword,
	}
	n, err := load(ctx, s, *dir)
	if err != nil {
		zlog.Fatal("Import failed", zap.Error(err))
	}
	zlog.Info("Data successfully loaded", zap.Int("documents", n))
}

func wipe(ctx context.Context, database *mongo.Database) error {
	for _, name := range []string{db.Tours, db.Users, db.Reviews} {
		if _, err := database.Collection(name).DeleteMany(ctx, bson.M{}); err != nil {
			return fmt.Errorf("clear %s: %w", name, err)
		}
	}
	return nil
}

// load inserts tours, then users with hashed passwords, then reviews, and
// finally recomputes the rating of every reviewed tour
func load(ctx context.Context, s stores, dir string) (int, error) {
	tours, err := readFile[models.Tour](filepath.Join(dir, "tours.json"))
	if err != nil {
		return 0, err
	}
	for i := range tours {
		t := &tours[i]
		if t.RatingsAverage == 0 {
			t.RatingsAverage = models.DefaultRating
		}
		t.BeforeSave(true)
		if err := s.tours.Insert(ctx, t); err != nil {
			return 0, fmt.Errorf("tour %q: %w", t.Name, err)
		}
	}

	users, err := readFile[seedUser](filepath.Join(dir, "users.json"))
	if err != nil {
		return 0, err
	}
	for i := range users {
		u := users[i].User
		if u.Photo == "" {
			u.Photo = models.DefaultPhoto
		}
		if u.Role == "" {
			u.Role = models.RoleUser
		}
		u.Active = true
		u.BeforeSave(true)
		if u.Password, err = s.hash(users[i].Password); err != nil {
			return 0, err
		}
		if err := s.users.Insert(ctx, &u); err != nil {
			return 0, fmt.Errorf("user %q: %w", u.Email, err)
		}
	}

	reviews, err := readFile[models.Review](filepath.Join(dir, "reviews.json"))
	if err != nil {
		return 0, err
	}
	reviewed := map[primitive.ObjectID]bool{}
	for i := range reviews {
		r := &reviews[i]
		if r.CreatedAt.IsZero() {
			r.CreatedAt = r.ID.Timestamp()
		}
		if err := s.reviews.Insert(ctx, r); err != nil {
			return 0, fmt.Errorf("review %s: %w", r.ID.Hex(), err)
		}
		reviewed[r.Tour] = true
	}
	for id := range reviewed {
		if err := s.ratings.Recalculate(ctx, id); err != nil {
			return 0, err
		}
	}
	return len(tours) + len(users) + len(reviews), nil
}

// seedUser carries the plain password the export holds
type seedUser struct {
	models.User
	Password string `json:"password"`
}

func (u *seedUser) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &u.User); err != nil {
		return err
	}
	var pw struct {
		Password string `json:"password"`
	}
	if err := json.Unmarshal(data, &pw); err != nil {
		return err
	}
	u.Password = pw.Password
	return nil
}

// readFile decodes an exported collection, accepting _id for the id key
func readFile[T any](path string) ([]T, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var docs []map[string]any
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for _, d := range docs {
		if id, ok := d["_id"]; ok {
			d["id"] = id
			delete(d, "_id")
		}
	}

	normalized, err := json.Marshal(docs)
	if err != nil {
		return nil, err
	}
	var out []T
	if err := json.Unmarshal(normalized, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}
