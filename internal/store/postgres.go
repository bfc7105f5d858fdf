package store

import (
	"context"
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"geotasks/api/internal/model"
)

// PostgreSQL error codes
const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

// locationColumns reads geom back as GeoJSON for model.Point.Scan
const locationColumns = "id, user_id, task_id, place_id, display_name, name, lat, lon, " +
	"ST_AsGeoJSON(geom) AS geom, created_at, updated_at"

// Open connects to PostgreSQL through gorm
func Open(dsn string, level logger.LogLevel) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.New(log.New(os.Stdout, "[DB] ", log.LstdFlags), logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
	})
}

// ParseLogLevel maps silent|error|warn|info to a gorm log level, defaulting to warn
func ParseLogLevel(s string) logger.LogLevel {
	switch strings.ToLower(s) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

// GormStore implements Repository on top of gorm and PostGIS
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a gorm backed repository
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

var _ Repository = (*GormStore)(nil)

// Transaction implements Repository
func (s *GormStore) Transaction(ctx context.Context, fn func(tx Repository) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
	return translateError(err)
}

// Ping checks the database connection
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *GormStore) CreateUser(ctx context.Context, user *model.User) error {
	return translateError(s.db.WithContext(ctx).Create(user).Error)
}

func (s *GormStore) GetUser(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}

func (s *GormStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}

func (s *GormStore) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}

func (s *GormStore) ListActiveUsers(ctx context.Context, page model.Page) ([]model.User, error) {
	var users []model.User
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("id").
		Offset(page.Offset).
		Limit(page.Limit).
		Find(&users).Error
	return users, translateError(err)
}

func (s *GormStore) SaveUser(ctx context.Context, user *model.User) error {
	result := s.db.WithContext(ctx).Model(user).
		Select("username", "email", "password", "role", "is_active", "updated_at").
		Updates(user)
	return rowsOrNotFound(result)
}

func (s *GormStore) DeleteUser(ctx context.Context, id uint) error {
	return rowsOrNotFound(s.db.WithContext(ctx).Delete(&model.User{}, id))
}

func (s *GormStore) CreateTask(ctx context.Context, task *model.Task) error {
	return translateError(s.db.WithContext(ctx).Create(task).Error)
}

func (s *GormStore) GetTask(ctx context.Context, id uint) (*model.Task, error) {
	var task model.Task
	if err := s.db.WithContext(ctx).First(&task, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &task, nil
}

func (s *GormStore) FindTaskByTitle(ctx context.Context, userID uint, title string) (*model.Task, error) {
	var task model.Task
	err := s.db.WithContext(ctx).Where("user_id = ? AND title = ?", userID, title).First(&task).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &task, nil
}

func (s *GormStore) ListActiveTasks(ctx context.Context, userID uint, filter model.TaskFilter, page model.Page) ([]model.Task, error) {
	query := s.db.WithContext(ctx).Where("user_id = ? AND is_active = ?", userID, true)
	if filter.Priority != nil {
		query = query.Where("priority = ?", *filter.Priority)
	}
	if filter.Done != nil {
		query = query.Where("done = ?", *filter.Done)
	}

	var tasks []model.Task
	err := query.Order("id").Offset(page.Offset).Limit(page.Limit).Find(&tasks).Error
	return tasks, translateError(err)
}

func (s *GormStore) SaveTask(ctx context.Context, task *model.Task) error {
	result := s.db.WithContext(ctx).Model(task).
		Select("title", "description", "done", "priority", "is_active", "updated_at").
		Updates(task)
	return rowsOrNotFound(result)
}

func (s *GormStore) DeleteTask(ctx context.Context, id uint) error {
	return rowsOrNotFound(s.db.WithContext(ctx).Delete(&model.Task{}, id))
}

func (s *GormStore) CreateLocation(ctx context.Context, loc *model.Location) error {
	loc.Geom = model.NewPoint(loc.Lat, loc.Lon)
	return translateError(s.db.WithContext(ctx).Create(loc).Error)
}

func (s *GormStore) GetLocationByUser(ctx context.Context, userID uint) (*model.Location, error) {
	return s.findLocation(ctx, "user_id = ?", userID)
}

func (s *GormStore) GetLocationByTask(ctx context.Context, taskID uint) (*model.Location, error) {
	return s.findLocation(ctx, "task_id = ?", taskID)
}

func (s *GormStore) findLocation(ctx context.Context, cond string, arg interface{}) (*model.Location, error) {
	var loc model.Location
	err := s.db.WithContext(ctx).Select(locationColumns).Where(cond, arg).First(&loc).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &loc, nil
}

func (s *GormStore) SaveLocation(ctx context.Context, loc *model.Location) error {
	loc.Geom = model.NewPoint(loc.Lat, loc.Lon)
	result := s.db.WithContext(ctx).Model(loc).
		Select("place_id", "display_name", "name", "lat", "lon", "geom", "updated_at").
		Updates(loc)
	return rowsOrNotFound(result)
}

func (s *GormStore) DeleteLocation(ctx context.Context, id uint) error {
	return rowsOrNotFound(s.db.WithContext(ctx).Delete(&model.Location{}, id))
}

func rowsOrNotFound(result *gorm.DB) error {
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// translateError maps driver errors onto ErrNotFound and *ConstraintError
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == pgUniqueViolation || pgErr.Code == pgCheckViolation) {
		return &ConstraintError{Constraint: pgErr.ConstraintName, Err: err}
	}
	return err
}
