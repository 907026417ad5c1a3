package db

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/avvvet/deckbuilder-services/internal/decksvc/models"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	SyncReportCollection = "sync_reports"
	defaultDBName        = "deckbuilder"
)

// ConnectToDB opens the Mongo database named by the URI path.
func ConnectToDB(mongoURI string) (*mongo.Database, func(), error) {
	uri, err := url.Parse(mongoURI)
	if err != nil {
		return nil, nil, fmt.Errorf("parse MongoDB URI: %w", err)
	}

	dbName := strings.TrimPrefix(uri.Path, "/")
	if dbName == "" {
		dbName = defaultDBName
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		return nil, nil, fmt.Errorf("connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping MongoDB: %w", err)
	}

	closeFn := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(ctx); err != nil {
			log.Warnf("mongo disconnect: %s", err)
		}
	}
	return client.Database(dbName), closeFn, nil
}

func CreateTTLIndexForCollection(ctx context.Context, db *mongo.Database, collectionName string) error {
	collection := db.Collection(collectionName)

	// Define the TTL index
	indexModel := mongo.IndexModel{
		Keys:    bson.M{"expires_at": 1},
		Options: options.Index().SetExpireAfterSeconds(0), // 0 means that MongoDB will calculate the TTL based on the `ExpiresAt` field.
	}

	_, err := collection.Indexes().CreateOne(ctx, indexModel)
	if err != nil {
		return fmt.Errorf("create TTL index on %s: %w", collectionName, err)
	}
	return nil
}

// ReportArchive keeps sync reports for a limited time.
type ReportArchive struct {
	coll *mongo.Collection
	ttl  time.Duration
}

// NewReportArchive ensures the TTL index exists and returns the archive.
func NewReportArchive(ctx context.Context, db *mongo.Database, ttl time.Duration) (*ReportArchive, error) {
	if err := CreateTTLIndexForCollection(ctx, db, SyncReportCollection); err != nil {
		return nil, err
	}
	return &ReportArchive{coll: db.Collection(SyncReportCollection), ttl: ttl}, nil
}

func (a *ReportArchive) ReportSync(ctx context.Context, report *models.SyncReport) error {
	doc := expiring(report, a.ttl, time.Now().UTC())
	if _, err := a.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("archive sync report %s: %w", report.RunID, err)
	}
	return nil
}

// Recent returns the newest reports first.
func (a *ReportArchive) Recent(ctx context.Context, limit int) ([]*models.SyncReport, error) {
	opts := options.Find().SetSort(bson.D{{Key: "started_at", Value: -1}}).SetLimit(int64(limit))
	cur, err := a.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find sync reports: %w", err)
	}
	defer cur.Close(ctx)

	reports := []*models.SyncReport{}
	if err := cur.All(ctx, &reports); err != nil {
		return nil, fmt.Errorf("decode sync reports: %w", err)
	}
	return reports, nil
}

// expiring copies report with its expiry set; a zero ttl keeps it forever.
func expiring(report *models.SyncReport, ttl time.Duration, now time.Time) *models.SyncReport {
	doc := *report
	doc.ExpiresAt = nil
	if ttl > 0 {
		exp := now.Add(ttl)
		doc.ExpiresAt = &exp
	}
	return &doc
}
