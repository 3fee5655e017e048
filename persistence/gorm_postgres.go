// persistence/gorm_postgres.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// GormPostgres is the GORM flavor of the Postgres document store. Both
// Postgres and GormPostgres speak to the same documents table; pick one per
// deployment via the database.driver config value.
type GormPostgres struct {
	db *gorm.DB
}

// DocumentModel is the GORM mapping for a stored document.
type DocumentModel struct {
	Key     string `gorm:"primaryKey"`
	Data    []byte `gorm:"type:jsonb;not null"`
	Version int64  `gorm:"not null;default:1"`
}

func (DocumentModel) TableName() string { return "documents" }

func NewGormPostgres(host string, port int, user, password, dbname string) (*GormPostgres, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	gormLogger := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold: time.Second,
			LogLevel:      gormlogger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&DocumentModel{}); err != nil {
		return nil, err
	}
	return &GormPostgres{db: db}, nil
}

func (g *GormPostgres) Get(ctx context.Context, key string, dest any) error {
	return storeGet(ctx, g, key, dest)
}

func (g *GormPostgres) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	return runTransaction(ctx, g, fn)
}

func (g *GormPostgres) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (g *GormPostgres) fetch(ctx context.Context, key string) (map[string]any, int64, error) {
	var model DocumentModel
	err := g.db.WithContext(ctx).Where("key = ?", key).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, 0, ErrNotFound
	}
	if err != nil {
		return nil, 0, err
	}

	var doc map[string]any
	if err := json.Unmarshal(model.Data, &doc); err != nil {
		return nil, 0, err
	}
	return doc, model.Version, nil
}

func (g *GormPostgres) listKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := g.db.WithContext(ctx).
		Model(&DocumentModel{}).
		Where("key LIKE ?", prefix+"%").
		Pluck("key", &keys).Error
	return keys, err
}

func (g *GormPostgres) commit(ctx context.Context, reads map[string]int64, ops []writeOp) error {
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for key, version := range reads {
			var model DocumentModel
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("key = ?", key).First(&model).Error
			current := model.Version
			if errors.Is(err, gorm.ErrRecordNotFound) {
				current = 0
			} else if err != nil {
				return err
			}
			if current != version {
				return ErrConflict
			}
		}

		for _, op := range ops {
			if err := applyGormOp(tx, op); err != nil {
				return err
			}
		}
		return nil
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
	return translateGormError(err)
}

// translateGormError maps serialization failures onto ErrConflict so the
// shared retry loop re-runs the transaction function.
func translateGormError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01") {
		return ErrConflict
	}
	return err
}

func applyGormOp(tx *gorm.DB, op writeOp) error {
	switch op.kind {
	case opSet:
		raw, err := json.Marshal(op.doc)
		if err != nil {
			return err
		}
		return upsertGormDocument(tx, op.key, raw)
	case opUpdate:
		var base map[string]any
		var model DocumentModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("key = ?", op.key).First(&model).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if model.Data != nil {
			if err := json.Unmarshal(model.Data, &base); err != nil {
				return err
			}
		}
		merged, err := mergeUpdate(base, op.fields)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(merged)
		if err != nil {
			return err
		}
		return upsertGormDocument(tx, op.key, raw)
	case opDelete:
		return tx.Where("key = ?", op.key).Delete(&DocumentModel{}).Error
	}
	return nil
}

func upsertGormDocument(tx *gorm.DB, key string, data []byte) error {
	result := tx.Model(&DocumentModel{}).
		Where("key = ?", key).
		Updates(map[string]any{
			"data":    data,
			"version": gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return tx.Create(&DocumentModel{Key: key, Data: data, Version: 1}).Error
	}
	return nil
}
