package stores

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"snapnotes/core"
	"snapnotes/stores/aws"
	"snapnotes/stores/filesystem"
	"snapnotes/stores/memory"
	"snapnotes/stores/mongo"
	"snapnotes/stores/sqlite"

	"github.com/sirupsen/logrus"
)

// Store is the backend every note and photo operation is persisted through.
type Store interface {
	core.KVStore
}

// GetStore builds the backend selected by STORAGE_TYPE. The default is in-memory.
func GetStore(ctx context.Context) (Store, error) {
	return GetStoreOrDefault(ctx, "")
}

// GetStoreOrDefault is GetStore with fallbackType standing in for an empty STORAGE_TYPE.
func GetStoreOrDefault(ctx context.Context, fallbackType string) (Store, error) {
	storageType := os.Getenv("STORAGE_TYPE")
	if storageType == "" {
		storageType = fallbackType
	}
	var (
		store Store
		err   error
	)

	storageField := logrus.Fields{
		"storageType": storageType,
	}

	switch storageType {
	case "filesystem":
		basePath := os.Getenv("LOCAL_STORAGE_PATH")
		if basePath == "" {
			basePath = "./data" // Default path
		}
		storageField["basePath"] = basePath
		store, err = filesystem.NewStore(basePath)
	case "sqlite":
		dataSourceName := os.Getenv("DATA_SOURCE_NAME")
		if dataSourceName == "" {
			dataSourceName = "snapnotes.db" // Default filename
		}
		storageField["dataSourceName"] = dataSourceName
		store, err = sqlite.NewStore(dataSourceName)
	case "s3":
		bucketName := os.Getenv("S3_BUCKET_NAME")
		if bucketName == "" {
			return nil, fmt.Errorf("S3_BUCKET_NAME environment variable must be set for s3 storage type")
		}
		prefix := os.Getenv("S3_KEY_PREFIX")
		storageField["bucketName"] = bucketName
		storageField["prefix"] = prefix
		store, err = aws.NewStore(ctx, bucketName, prefix)
	case "mongodb":
		uri := os.Getenv("MONGODB_URI")
		if uri == "" {
			return nil, fmt.Errorf("MONGODB_URI environment variable must be set for mongodb storage type")
		}
		dbName := os.Getenv("MONGODB_DATABASE")
		if dbName == "" {
			dbName = "snapnotes"
		}
		storageField["database"] = dbName
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		store, err = mongo.Connect(connectCtx, uri, dbName)
	default:
		store = memory.NewStore()
		storageField["storageType"] = "in-memory"
		logrus.Warn("Notes are kept in memory and are lost when the process exits")
	}
	if err != nil {
		return nil, fmt.Errorf("init %s storage: %w", storageField["storageType"], err)
	}

	logrus.WithFields(storageField).Info("Use storage")
	return store, nil
}

// Close releases the backend's resources if it holds any.
func Close(store Store) error {
	if closer, ok := store.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
