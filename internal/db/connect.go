// Package db provides store connections and schema migration for Questlog.
//
// Questlog keeps three separate store domains: the planner store (quests,
// milestones, checkpoints, commits, progress history, assessments), the
// schedule store (schedule blocks) and the tasks store (tasks and completion
// records). The planner store is a single transactional domain; the schedule
// and tasks stores are deliberately independent, which is why the completion
// syncer uses compensating writes instead of a shared transaction.
package db

import (
	"fmt"
	"os"
	"path/filepath"

	"questlog/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Stores bundles the three store domains.
type Stores struct {
	Planner  *gorm.DB
	Schedule *gorm.DB
	Tasks    *gorm.DB
}

// Open connects all three stores according to cfg: SQLite files under
// DataDir by default, or three databases on a MySQL server when configured.
func Open(cfg *config.Config) (*Stores, error) {
	if cfg.MySQL != nil {
		return openMySQL(cfg.MySQL)
	}
	return openSQLite(cfg.DataDir)
}

func openSQLite(dataDir string) (*Stores, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("db: create data dir %s: %w", dataDir, err)
	}
	planner, err := OpenSQLiteFile(filepath.Join(dataDir, "planner.db"))
	if err != nil {
		return nil, err
	}
	schedule, err := OpenSQLiteFile(filepath.Join(dataDir, "schedule.db"))
	if err != nil {
		return nil, err
	}
	tasks, err := OpenSQLiteFile(filepath.Join(dataDir, "tasks.db"))
	if err != nil {
		return nil, err
	}
	return &Stores{Planner: planner, Schedule: schedule, Tasks: tasks}, nil
}

// OpenSQLiteFile opens a single SQLite database file with WAL journaling
// and a busy timeout suited to short synchronous writers.
func OpenSQLiteFile(path string) (*gorm.DB, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("db: open sqlite %s: %w", path, err)
	}
	return db, nil
}

func openMySQL(cfg *config.MySQLConfig) (*Stores, error) {
	planner, err := ConnectMySQL(cfg.Host, cfg.Port, cfg.Prefix+"_planner")
	if err != nil {
		return nil, err
	}
	schedule, err := ConnectMySQL(cfg.Host, cfg.Port, cfg.Prefix+"_schedule")
	if err != nil {
		return nil, err
	}
	tasks, err := ConnectMySQL(cfg.Host, cfg.Port, cfg.Prefix+"_tasks")
	if err != nil {
		return nil, err
	}
	return &Stores{Planner: planner, Schedule: schedule, Tasks: tasks}, nil
}

// DSN builds a MySQL DSN for the given database.
func DSN(host string, port int, database string) string {
	return fmt.Sprintf("root@tcp(%s:%d)/%s?parseTime=true", host, port, database)
}

// ConnectMySQL opens a GORM connection to a MySQL database.
func ConnectMySQL(host string, port int, database string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(DSN(host, port, database)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("db: connect to %s:%d/%s: %w", host, port, database, err)
	}
	return db, nil
}

// ConnectAdmin opens a GORM connection to the MySQL server without selecting
// a database, used for CREATE DATABASE operations during init.
func ConnectAdmin(host string, port int) (*gorm.DB, error) {
	dsn := fmt.Sprintf("root@tcp(%s:%d)/?parseTime=true", host, port)
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("db: admin connect to %s:%d: %w", host, port, err)
	}
	return db, nil
}

// CreateDatabase creates the named database if it doesn't already exist.
func CreateDatabase(adminDB *gorm.DB, name string) error {
	sql := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", name)
	if err := adminDB.Exec(sql).Error; err != nil {
		return fmt.Errorf("db: create database %s: %w", name, err)
	}
	return nil
}

// DropDatabase drops the named database if it exists.
func DropDatabase(adminDB *gorm.DB, name string) error {
	sql := fmt.Sprintf("DROP DATABASE IF EXISTS `%s`", name)
	if err := adminDB.Exec(sql).Error; err != nil {
		return fmt.Errorf("db: drop database %s: %w", name, err)
	}
	return nil
}
