// Package mongocheck connects to a MongoDB deployment and runs the read/write
// sanity checks behind `atlasdiag ping`.
package mongocheck

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jaxxstorm/atlastodo/internal/todo/mongostore"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

const pingCollection = "test_connection_ping"

var ErrMissingURI = errors.New("MONGODB_URI not set")

var ServerSelectionHints = []string{
	"Wrong URI",
	"Network access (IP allow list) not configured",
	"Cluster paused or not available",
}

type Options struct {
	URI      string
	Insecure bool
	Timeout  time.Duration
	Logger   *zap.Logger
}

type Result struct {
	Version     string
	ServerTime  time.Time
	Database    string
	Collections []string
	InsertedID  string
}

type serverStatus struct {
	Version   string    `bson:"version"`
	LocalTime time.Time `bson:"localTime"`
}

// Run connects with opts and reports each check to out as it passes. In
// insecure mode certificate validation is skipped and only a ping is attempted.
func Run(ctx context.Context, opts Options, out io.Writer) (Result, error) {
	result := Result{}
	if opts.URI == "" {
		return result, ErrMissingURI
	}
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	clientOpts := options.Client().ApplyURI(opts.URI).SetServerSelectionTimeout(opts.Timeout)
	if opts.Insecure {
		fmt.Fprintln(out, "Attempting insecure TLS connect to MongoDB (debug only) ...")
		clientOpts.SetTLSConfig(&tls.Config{InsecureSkipVerify: true})
	} else {
		fmt.Fprintln(out, "Attempting to connect to MongoDB ...")
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return result, fmt.Errorf("connect: %w", err)
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			opts.Logger.Warn("disconnect failed", zap.Error(err))
		}
	}()

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return result, fmt.Errorf("ping: %w", err)
	}
	if opts.Insecure {
		fmt.Fprintln(out, "Insecure connection succeeded (TLS validation bypassed).")
		return result, nil
	}
	fmt.Fprintln(out, "Connected to MongoDB successfully.")

	result.Database = mongostore.DatabaseName(opts.URI)
	db := client.Database(result.Database)

	var status serverStatus
	if err := db.RunCommand(ctx, bson.D{{Key: "serverStatus", Value: 1}}).Decode(&status); err != nil {
		opts.Logger.Info("serverStatus unavailable", zap.Error(err))
	} else {
		result.Version = status.Version
		result.ServerTime = status.LocalTime
		fmt.Fprintf(out, "Server version: %s, server time: %s\n", status.Version, status.LocalTime.Format(time.RFC3339))
	}
	fmt.Fprintf(out, "Current database: %s\n", result.Database)

	collections, err := db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return result, fmt.Errorf("list collections: %w", err)
	}
	result.Collections = collections
	fmt.Fprintf(out, "Collections in database: %v\n", collections)

	coll := db.Collection(pingCollection)
	inserted, err := coll.InsertOne(ctx, bson.D{{Key: "ping", Value: true}, {Key: "time", Value: time.Now()}})
	if err != nil {
		return result, fmt.Errorf("insert test document: %w", err)
	}
	if oid, ok := inserted.InsertedID.(primitive.ObjectID); ok {
		result.InsertedID = oid.Hex()
	}
	fmt.Fprintf(out, "Insert test OK, inserted id: %s\n", result.InsertedID)

	if _, err := coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: inserted.InsertedID}}); err != nil {
		return result, fmt.Errorf("delete test document: %w", err)
	}
	fmt.Fprintln(out, "Cleanup OK, test document removed.")
	return result, nil
}

// IsServerSelection reports whether err means no server could be reached at all,
// as opposed to a failure after connecting.
func IsServerSelection(err error) bool {
	return mongo.IsTimeout(err) || mongo.IsNetworkError(err)
}
