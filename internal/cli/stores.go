package cli

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/hupe1980/vecboard/blobstore"
	blobminio "github.com/hupe1980/vecboard/blobstore/minio"
	blobs3 "github.com/hupe1980/vecboard/blobstore/s3"
	"github.com/hupe1980/vecboard/codec"
	"github.com/hupe1980/vecboard/internal/config"
	"github.com/hupe1980/vecboard/store"
	badgerstore "github.com/hupe1980/vecboard/store/badger"
	"github.com/hupe1980/vecboard/store/blob"
	boltstore "github.com/hupe1980/vecboard/store/bolt"
	"github.com/hupe1980/vecboard/store/dynamo"
	"github.com/hupe1980/vecboard/store/memory"
	redisstore "github.com/hupe1980/vecboard/store/redis"
	"github.com/hupe1980/vecboard/store/resilient"
)

// openStore builds the configured backend. The returned close function
// releases every resource the backend holds.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, func() error, error) {
	sc := cfg.Store
	compression, err := codec.ParseCompression(sc.Compression)
	if err != nil {
		return nil, nil, err
	}

	var (
		s       store.Store
		closers []func() error
	)

	switch sc.Backend {
	case "memory":
		s = memory.New()
	case "local":
		s, closers, err = openBlob(cfg, blobstore.NewLocalStore(sc.Path), compression)
	case "minio":
		client, cerr := blobminio.Connect(sc.Endpoint, sc.AccessKey, sc.SecretKey, sc.Secure)
		if cerr != nil {
			return nil, nil, cerr
		}
		s, closers, err = openBlob(cfg, blobminio.NewStore(client, sc.Bucket, sc.Prefix), compression)
	case "s3":
		awsCfg, aerr := loadAWS(ctx, sc)
		if aerr != nil {
			return nil, nil, aerr
		}
		client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
			if sc.Endpoint != "" {
				o.BaseEndpoint = aws.String(sc.Endpoint)
				o.UsePathStyle = true
			}
		})
		s, closers, err = openBlob(cfg, blobs3.NewStore(client, sc.Bucket, sc.Prefix), compression)
	case "badger":
		bs, berr := badgerstore.Open(sc.Path, func(o *badgerstore.Options) { o.Compression = compression })
		if berr != nil {
			return nil, nil, berr
		}
		s, closers = bs, []func() error{bs.Close}
	case "bolt":
		bs, berr := boltstore.Open(sc.Path, func(o *boltstore.Options) { o.Compression = compression })
		if berr != nil {
			return nil, nil, berr
		}
		s, closers = bs, []func() error{bs.Close}
	case "dynamo":
		awsCfg, aerr := loadAWS(ctx, sc)
		if aerr != nil {
			return nil, nil, aerr
		}
		client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			if sc.Endpoint != "" {
				o.BaseEndpoint = aws.String(sc.Endpoint)
			}
		})
		s = dynamo.New(client, sc.Table, func(o *dynamo.Options) { o.Compression = compression })
	case "redis":
		rs, client, rerr := redisstore.NewFromURL(sc.RedisURL, func(o *redisstore.Options) {
			o.Prefix = sc.RedisPrefix
			o.Compression = compression
		})
		if rerr != nil {
			return nil, nil, rerr
		}
		s, closers = rs, []func() error{client.Close}
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", sc.Backend)
	}
	if err != nil {
		return nil, nil, err
	}

	if rc := cfg.Resilience; rc.Enabled && sc.Backend != "memory" {
		s = resilient.New(s, func(o *resilient.Options) {
			o.Name = sc.Backend
			o.MaxRetries = rc.MaxRetries
			o.BaseDelay = rc.BaseDelay
			o.FailureThreshold = rc.FailureThreshold
			o.OpenTimeout = rc.OpenTimeout
			o.Logger = coordinatorLogger(loggerFromContext(ctx)).Logger
		})
	}

	closeAll := func() error {
		var first error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil && first == nil {
				first = err
			}
		}
		return first
	}
	return s, closeAll, nil
}

func openBlob(cfg *config.Config, blobs blobstore.BlobStore, compression codec.Compression) (store.Store, []func() error, error) {
	c, ok := codec.ByName(cfg.Store.Codec)
	if !ok {
		return nil, nil, fmt.Errorf("unknown codec %q", cfg.Store.Codec)
	}

	var closers []func() error
	if cfg.Store.CacheBytes > 0 {
		cached, err := blobstore.NewCachingStore(blobs, cfg.Store.CacheBytes)
		if err != nil {
			return nil, nil, err
		}
		blobs = cached
		closers = append(closers, cached.Close)
	}

	s := blob.New(blobs, func(o *blob.Options) {
		o.Codec = c
		o.Compression = compression
	})
	return s, closers, nil
}

func loadAWS(ctx context.Context, sc config.StoreConfig) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if sc.Region != "" {
		opts = append(opts, awsconfig.WithRegion(sc.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}
