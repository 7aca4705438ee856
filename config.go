package odm

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	mongoClient  *mongo.Client
	databaseName string
)

// Configure installs the driver client and database name used by
// manager.For and Database. Call it before any database access, as early as
// possible.
func Configure(client *mongo.Client, dbName string) error {
	if client == nil {
		return fmt.Errorf("%w: need a connected mongo client", ErrImproperlyConfigured)
	}
	if dbName == "" {
		return fmt.Errorf("%w: need a database name", ErrImproperlyConfigured)
	}
	mongoClient = client
	databaseName = dbName
	return nil
}

// Client returns the configured driver client.
func Client() (*mongo.Client, error) {
	if mongoClient == nil {
		return nil, fmt.Errorf("%w: call Configure before connecting to the database", ErrImproperlyConfigured)
	}
	return mongoClient, nil
}

// Database returns a handle on the configured database.
func Database() (*mongo.Database, error) {
	c, err := Client()
	if err != nil {
		return nil, err
	}
	return c.Database(databaseName), nil
}

// Disconnect closes the configured client; call it when the host application
// tears down.
func Disconnect(ctx context.Context) error {
	if mongoClient == nil {
		return nil
	}
	err := mongoClient.Disconnect(ctx)
	mongoClient = nil
	databaseName = ""
	return err
}

// Settings carries the connection and decoding configuration loaded from the
// environment.
type Settings struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
	StrictDecode   bool
}

// DecodeOpt maps the strictness setting onto decode options.
func (s Settings) DecodeOpt() DecodeOpt {
	if s.StrictDecode {
		return DecodeOpt{Unknown: UnknownStrict}
	}
	return DecodeOpt{}
}

// LoadSettings reads configuration from environment variables and an
// optional .env file: MONGODB_URI (required), MONGODB_DATABASE (required),
// MONGODB_TIMEOUT (seconds, default 10), ODM_STRICT_DECODE (default false).
func LoadSettings() (Settings, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("MONGODB_TIMEOUT", 10)
	v.SetDefault("ODM_STRICT_DECODE", false)

	s := Settings{
		URI:            v.GetString("MONGODB_URI"),
		Database:       v.GetString("MONGODB_DATABASE"),
		ConnectTimeout: time.Duration(v.GetInt("MONGODB_TIMEOUT")) * time.Second,
		StrictDecode:   v.GetBool("ODM_STRICT_DECODE"),
	}
	if s.URI == "" {
		return Settings{}, fmt.Errorf("%w: MONGODB_URI is required", ErrImproperlyConfigured)
	}
	if s.Database == "" {
		return Settings{}, fmt.Errorf("%w: MONGODB_DATABASE is required", ErrImproperlyConfigured)
	}
	return s, nil
}

// Connect dials the database, pings it and returns the client. The caller
// owns the client's lifetime; pass it to Configure to make it the package
// default.
func Connect(ctx context.Context, s Settings) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, s.ConnectTimeout)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(s.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}
