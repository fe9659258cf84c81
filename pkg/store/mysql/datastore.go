package mysql

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"meshtrack/pkg/retry"
	"meshtrack/pkg/store/mysql/model"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Datastore wraps GORM DB and provides transaction support plus the
// gateway-wide retry policy applied to every entity operation.
type Datastore struct {
	db       *gorm.DB
	retryCfg retry.Config
}

// NewDatastore creates a new MySQL datastore
func NewDatastore(dsn string, retryCfg retry.Config) (*Datastore, error) {
	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: newLogger,
		// Duplicate-key and similar driver errors surface as gorm sentinels,
		// which the retry classifier treats as permanent.
		TranslateError: true,
		// Disable default transaction for better performance
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get generic database object: %w", err)
	}

	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	return &Datastore{db: db, retryCfg: retryCfg}, nil
}

// AutoMigrate creates or updates the nodes, messages, tasks and
// delivery_events tables.
func (ds *Datastore) AutoMigrate() error {
	return ds.db.AutoMigrate(
		&model.Node{},
		&model.Message{},
		&model.Task{},
		&model.DeliveryEvent{},
	)
}

// Close closes the database connection
func (ds *Datastore) Close() error {
	sqlDB, err := ds.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type contextTxKey struct{}

// ExecTx executes a function within a transaction. If the function returns an
// error, the transaction is rolled back; otherwise it is committed.
func (ds *Datastore) ExecTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return ds.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ctx = context.WithValue(ctx, contextTxKey{}, tx)
		return fn(ctx)
	})
}

// DB returns the GORM DB instance for the current context: the active
// transaction when one is in flight, the main DB otherwise.
func (ds *Datastore) DB(ctx context.Context) *gorm.DB {
	tx, ok := ctx.Value(contextTxKey{}).(*gorm.DB)
	if ok {
		return tx.WithContext(ctx)
	}
	return ds.db.WithContext(ctx)
}

// withRetry wraps a store operation with the gateway retry policy. Callers
// never see a raw transient error: they get the success value, a permanent
// error, or a retry.ExhaustedError tagged with the operation label.
func (ds *Datastore) withRetry(ctx context.Context, label string, op func(ctx context.Context) error) error {
	return retry.Do(ctx, ds.retryCfg, label, op)
}
