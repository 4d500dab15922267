package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names.
const (
	colReports       = "reports"
	colSchools       = "schools"
	colCountries     = "countries"
	colContinents    = "continents"
	colUsers         = "users"
	colVerifications = "emailverifications"
	colResetTokens   = "passwordresettokens"
)

// Connect opens and pings one shared client. The caller owns the handle and
// disconnects it on shutdown.
func Connect(ctx context.Context, uri, dbName string) (*mongo.Database, func(context.Context) error, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, err
	}
	return client.Database(dbName), client.Disconnect, nil
}
